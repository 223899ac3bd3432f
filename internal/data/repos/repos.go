package repos

import (
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/repos/catalog"
	"github.com/occhealth/pcmso-backend/internal/data/repos/pcmso"
	"github.com/occhealth/pcmso-backend/internal/data/repos/rules"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type CompanyRepo = catalog.CompanyRepo
type RiskCategoryRepo = catalog.RiskCategoryRepo
type RiskRepo = catalog.RiskRepo
type RiskFilter = catalog.RiskFilter
type ExaminationRepo = catalog.ExaminationRepo
type ExaminationFilter = catalog.ExaminationFilter
type JobRepo = catalog.JobRepo
type JobRiskRepo = catalog.JobRiskRepo

type RiskExamRuleRepo = rules.RiskExamRuleRepo
type RiskExamRuleFilter = rules.RiskExamRuleFilter
type JobExamRuleRepo = rules.JobExamRuleRepo
type JobExamRuleFilter = rules.JobExamRuleFilter

type PCMSOVersionRepo = pcmso.VersionRepo
type PCMSORequirementRepo = pcmso.RequirementRepo

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return catalog.NewCompanyRepo(db, baseLog)
}
func NewRiskCategoryRepo(db *gorm.DB, baseLog *logger.Logger) RiskCategoryRepo {
	return catalog.NewRiskCategoryRepo(db, baseLog)
}
func NewRiskRepo(db *gorm.DB, baseLog *logger.Logger) RiskRepo {
	return catalog.NewRiskRepo(db, baseLog)
}
func NewExaminationRepo(db *gorm.DB, baseLog *logger.Logger) ExaminationRepo {
	return catalog.NewExaminationRepo(db, baseLog)
}
func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return catalog.NewJobRepo(db, baseLog)
}
func NewJobRiskRepo(db *gorm.DB, baseLog *logger.Logger) JobRiskRepo {
	return catalog.NewJobRiskRepo(db, baseLog)
}

func NewRiskExamRuleRepo(db *gorm.DB, baseLog *logger.Logger) RiskExamRuleRepo {
	return rules.NewRiskExamRuleRepo(db, baseLog)
}
func NewJobExamRuleRepo(db *gorm.DB, baseLog *logger.Logger) JobExamRuleRepo {
	return rules.NewJobExamRuleRepo(db, baseLog)
}

func NewPCMSOVersionRepo(db *gorm.DB, baseLog *logger.Logger) PCMSOVersionRepo {
	return pcmso.NewVersionRepo(db, baseLog)
}
func NewPCMSORequirementRepo(db *gorm.DB, baseLog *logger.Logger) PCMSORequirementRepo {
	return pcmso.NewRequirementRepo(db, baseLog)
}
