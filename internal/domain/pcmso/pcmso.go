package pcmso

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/domain/rules"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusSigned      Status = "SIGNED"
	StatusOutdated    Status = "OUTDATED"
	StatusArchived    Status = "ARCHIVED"
)

// Terminal statuses accept no further transition.
func (s Status) Terminal() bool {
	return s == StatusOutdated || s == StatusArchived
}

// Editable statuses are the only ones whose content may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusUnderReview
}

var transitions = map[Status][]Status{
	StatusDraft:       {StatusUnderReview, StatusSigned, StatusArchived},
	StatusUnderReview: {StatusSigned, StatusArchived},
	StatusSigned:      {StatusOutdated},
}

// CanTransition reports whether from -> to is a forward lifecycle move.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourcesFrom lists the statuses that may move to "to".
func SourcesFrom(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusDraft, StatusUnderReview, StatusSigned} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

type Version struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID        uuid.UUID      `gorm:"type:uuid;column:company_id;not null;uniqueIndex:idx_pcmso_company_version" json:"company_id"`
	VersionNumber    int            `gorm:"column:version_number;not null;uniqueIndex:idx_pcmso_company_version" json:"version_number"`
	Status           Status         `gorm:"column:status;not null;index" json:"status"`
	Title            string         `gorm:"column:title;not null" json:"title"`
	ContentHTML      string         `gorm:"column:content_html;type:text" json:"content_html"`
	DiffFromPrevious datatypes.JSON `gorm:"column:diff_from_previous" json:"diff_from_previous,omitempty"`
	GeneratedByAI    bool           `gorm:"column:generated_by_ai;not null" json:"generated_by_ai"`
	AIModel          string         `gorm:"column:ai_model" json:"ai_model,omitempty"`
	CreatedByUserID  uuid.UUID      `gorm:"type:uuid;column:created_by_user_id" json:"created_by_user_id"`
	SignedAt         *time.Time     `gorm:"column:signed_at" json:"signed_at,omitempty"`
	SignedByUserID   *uuid.UUID     `gorm:"type:uuid;column:signed_by_user_id" json:"signed_by_user_id,omitempty"`
	Digest           string         `gorm:"column:digest" json:"digest,omitempty"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (Version) TableName() string { return "pcmso_version" }

func (v *Version) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

var (
	ErrImmutableRequirement = errors.New("pcmso exam requirements are immutable once materialized")
	ErrVersionDelete        = errors.New("pcmso versions cannot be deleted")
)

func (v *Version) BeforeDelete(*gorm.DB) error { return ErrVersionDelete }

type SourceType string

const (
	SourceRisk SourceType = "RISK"
	SourceJob  SourceType = "JOB"
)

// SourceRef records one rule that contributed to a materialized requirement.
type SourceRef struct {
	Source   SourceType `json:"source"`
	RuleID   uuid.UUID  `json:"ruleId"`
	RiskID   *uuid.UUID `json:"riskId,omitempty"`
	RiskName string     `json:"riskName,omitempty"`
}

// ExamRequirement is the frozen (job, exam) row of a version. Rows are
// written once, in the draft transaction, and reject any later update or delete.
type ExamRequirement struct {
	ID                      uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	VersionID               uuid.UUID        `gorm:"type:uuid;column:version_id;not null;uniqueIndex:idx_pcmso_requirement" json:"version_id"`
	JobID                   uuid.UUID        `gorm:"type:uuid;column:job_id;not null;uniqueIndex:idx_pcmso_requirement;index" json:"job_id"`
	ExamID                  uuid.UUID        `gorm:"type:uuid;column:exam_id;not null;uniqueIndex:idx_pcmso_requirement;index" json:"exam_id"`
	JobTitle                string           `gorm:"column:job_title;not null" json:"job_title"`
	ExamName                string           `gorm:"column:exam_name;not null" json:"exam_name"`
	Source                  SourceType       `gorm:"column:source;not null" json:"source"`
	SourceRuleID            uuid.UUID        `gorm:"type:uuid;column:source_rule_id;not null;index" json:"source_rule_id"`
	SourceRiskID            *uuid.UUID       `gorm:"type:uuid;column:source_risk_id" json:"source_risk_id,omitempty"`
	PeriodicityType         periodicity.Type `gorm:"column:periodicity_type;not null" json:"periodicity_type"`
	PeriodicityValue        *int             `gorm:"column:periodicity_value" json:"periodicity_value,omitempty"`
	PeriodicityAdvancedRule datatypes.JSON   `gorm:"column:periodicity_advanced_rule" json:"periodicity_advanced_rule,omitempty"`
	rules.Applicability
	Provenance datatypes.JSON `gorm:"column:provenance" json:"provenance"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
}

func (ExamRequirement) TableName() string { return "pcmso_exam_requirement" }

func (r *ExamRequirement) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *ExamRequirement) BeforeUpdate(*gorm.DB) error { return ErrImmutableRequirement }
func (r *ExamRequirement) BeforeDelete(*gorm.DB) error { return ErrImmutableRequirement }

func (r ExamRequirement) Policy() (periodicity.Policy, error) {
	return periodicity.Parse(string(r.PeriodicityType), r.PeriodicityValue, r.PeriodicityAdvancedRule)
}
