package rules

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

// Applicability marks the occupational events an exam is required on.
type Applicability struct {
	OnAdmission bool `gorm:"column:applicable_on_admission;not null" json:"applicable_on_admission"`
	OnDismissal bool `gorm:"column:applicable_on_dismissal;not null" json:"applicable_on_dismissal"`
	OnReturn    bool `gorm:"column:applicable_on_return;not null" json:"applicable_on_return"`
	OnChange    bool `gorm:"column:applicable_on_change;not null" json:"applicable_on_change"`
	Periodic    bool `gorm:"column:applicable_periodic;not null" json:"applicable_periodic"`
}

// Or merges two applicability sets.
func (a Applicability) Or(b Applicability) Applicability {
	return Applicability{
		OnAdmission: a.OnAdmission || b.OnAdmission,
		OnDismissal: a.OnDismissal || b.OnDismissal,
		OnReturn:    a.OnReturn || b.OnReturn,
		OnChange:    a.OnChange || b.OnChange,
		Periodic:    a.Periodic || b.Periodic,
	}
}

// RuleFields is shared by both rule sources.
type RuleFields struct {
	PeriodicityType         periodicity.Type `gorm:"column:periodicity_type;not null;index" json:"periodicity_type"`
	PeriodicityValue        *int             `gorm:"column:periodicity_value" json:"periodicity_value,omitempty"`
	PeriodicityAdvancedRule datatypes.JSON   `gorm:"column:periodicity_advanced_rule" json:"periodicity_advanced_rule,omitempty"`
	Applicability
	Justification string `gorm:"column:justification" json:"justification,omitempty"`
	Notes         string `gorm:"column:notes" json:"notes,omitempty"`
	Active        bool   `gorm:"column:active;not null;index" json:"active"`
}

func (f RuleFields) Policy() (periodicity.Policy, error) {
	return periodicity.Parse(string(f.PeriodicityType), f.PeriodicityValue, f.PeriodicityAdvancedRule)
}

// SetPolicy stores p in the periodicity columns.
func (f *RuleFields) SetPolicy(p periodicity.Policy) {
	f.PeriodicityType = p.Type
	f.PeriodicityValue = p.Months
	if adv := p.AdvancedJSON(); adv != nil {
		f.PeriodicityAdvancedRule = datatypes.JSON(adv)
	} else {
		f.PeriodicityAdvancedRule = nil
	}
}

type ExamRuleByRisk struct {
	ID     uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	RiskID uuid.UUID            `gorm:"type:uuid;column:risk_id;not null;uniqueIndex:idx_risk_exam_rule" json:"risk_id"`
	ExamID uuid.UUID            `gorm:"type:uuid;column:exam_id;not null;uniqueIndex:idx_risk_exam_rule;index" json:"exam_id"`
	Risk   *catalog.Risk        `gorm:"foreignKey:RiskID" json:"risk,omitempty"`
	Exam   *catalog.Examination `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	RuleFields
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ExamRuleByRisk) TableName() string { return "exam_rule_by_risk" }

func (r *ExamRuleByRisk) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type ExamRuleByJob struct {
	ID     uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	JobID  uuid.UUID            `gorm:"type:uuid;column:job_id;not null;uniqueIndex:idx_job_exam_rule" json:"job_id"`
	ExamID uuid.UUID            `gorm:"type:uuid;column:exam_id;not null;uniqueIndex:idx_job_exam_rule;index" json:"exam_id"`
	Job    *catalog.Job         `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Exam   *catalog.Examination `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	RuleFields
	OverrideRiskRules bool      `gorm:"column:override_risk_rules;not null;index" json:"override_risk_rules"`
	CreatedAt         time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

func (ExamRuleByJob) TableName() string { return "exam_rule_by_job" }

func (r *ExamRuleByJob) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
