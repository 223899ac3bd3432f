package app

import (
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type Repos struct {
	Company      repos.CompanyRepo
	RiskCategory repos.RiskCategoryRepo
	Risk         repos.RiskRepo
	Examination  repos.ExaminationRepo
	Job          repos.JobRepo
	JobRisk      repos.JobRiskRepo

	RiskExamRule repos.RiskExamRuleRepo
	JobExamRule  repos.JobExamRuleRepo

	PCMSOVersion     repos.PCMSOVersionRepo
	PCMSORequirement repos.PCMSORequirementRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Company:      repos.NewCompanyRepo(db, log),
		RiskCategory: repos.NewRiskCategoryRepo(db, log),
		Risk:         repos.NewRiskRepo(db, log),
		Examination:  repos.NewExaminationRepo(db, log),
		Job:          repos.NewJobRepo(db, log),
		JobRisk:      repos.NewJobRiskRepo(db, log),

		RiskExamRule: repos.NewRiskExamRuleRepo(db, log),
		JobExamRule:  repos.NewJobExamRuleRepo(db, log),

		PCMSOVersion:     repos.NewPCMSOVersionRepo(db, log),
		PCMSORequirement: repos.NewPCMSORequirementRepo(db, log),
	}
}
