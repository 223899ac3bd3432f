package db

import (
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
)

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		// Catalog
		&types.Company{},
		&types.RiskCategory{},
		&types.Risk{},
		&types.Examination{},
		&types.Job{},
		&types.JobRisk{},

		// Rule stores
		&types.ExamRuleByRisk{},
		&types.ExamRuleByJob{},

		// PCMSO versions
		&types.PCMSOVersion{},
		&types.PCMSOExamRequirement{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
