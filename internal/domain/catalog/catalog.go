package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RiskType string

const (
	RiskPhysical   RiskType = "PHYSICAL"
	RiskChemical   RiskType = "CHEMICAL"
	RiskBiological RiskType = "BIOLOGICAL"
	RiskErgonomic  RiskType = "ERGONOMIC"
	RiskAccident   RiskType = "ACCIDENT"
)

func (t RiskType) Valid() bool {
	switch t {
	case RiskPhysical, RiskChemical, RiskBiological, RiskErgonomic, RiskAccident:
		return true
	}
	return false
}

type Intensity string

const (
	IntensityLow      Intensity = "LOW"
	IntensityMedium   Intensity = "MEDIUM"
	IntensityHigh     Intensity = "HIGH"
	IntensityVeryHigh Intensity = "VERY_HIGH"
)

type ExamCategory string

const (
	ExamClinical      ExamCategory = "CLINICAL"
	ExamLaboratory    ExamCategory = "LABORATORY"
	ExamImaging       ExamCategory = "IMAGING"
	ExamComplementary ExamCategory = "COMPLEMENTARY"
	ExamPsychosocial  ExamCategory = "PSYCHOSOCIAL"
	ExamFunctional    ExamCategory = "FUNCTIONAL"
	ExamOther         ExamCategory = "OTHER"
)

func (c ExamCategory) Valid() bool {
	switch c {
	case ExamClinical, ExamLaboratory, ExamImaging, ExamComplementary, ExamPsychosocial, ExamFunctional, ExamOther:
		return true
	}
	return false
}

type Company struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TradeName     string    `gorm:"column:trade_name;not null" json:"trade_name"`
	CorporateName string    `gorm:"column:corporate_name" json:"corporate_name,omitempty"`
	CNPJ          string    `gorm:"column:cnpj;index" json:"cnpj,omitempty"`
	Active        bool      `gorm:"column:active;not null;index" json:"active"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "company" }

func (c *Company) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type RiskCategory struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	Color       string    `gorm:"column:color" json:"color,omitempty"`
	Icon        string    `gorm:"column:icon" json:"icon,omitempty"`
	Active      bool      `gorm:"column:active;not null;index" json:"active"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (RiskCategory) TableName() string { return "risk_category" }

func (c *RiskCategory) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Risk struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	CategoryID      uuid.UUID     `gorm:"type:uuid;column:category_id;not null;index" json:"category_id"`
	Category        *RiskCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Type            RiskType      `gorm:"column:type;not null;index" json:"type"`
	Code            *string       `gorm:"column:code;uniqueIndex" json:"code,omitempty"`
	Name            string        `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description     string        `gorm:"column:description" json:"description,omitempty"`
	SourceGenerator string        `gorm:"column:source_generator" json:"source_generator,omitempty"`
	HealthEffects   string        `gorm:"column:health_effects" json:"health_effects,omitempty"`
	ControlMeasures string        `gorm:"column:control_measures" json:"control_measures,omitempty"`
	AllowsIntensity bool          `gorm:"column:allows_intensity;not null;default:false" json:"allows_intensity"`
	Active          bool          `gorm:"column:active;not null;index" json:"active"`
	CreatedAt       time.Time     `gorm:"not null;index" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (Risk) TableName() string { return "risk" }

func (r *Risk) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type Examination struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string         `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Description      string         `gorm:"column:description" json:"description,omitempty"`
	Category         ExamCategory   `gorm:"column:category;not null;index" json:"category"`
	RegulatoryCodes  datatypes.JSON `gorm:"column:regulatory_codes" json:"regulatory_codes"`
	IncludeInASO     bool           `gorm:"column:include_in_aso;not null" json:"include_in_aso"`
	IncludeInReports bool           `gorm:"column:include_in_reports;not null" json:"include_in_reports"`
	Active           bool           `gorm:"column:active;not null;index" json:"active"`
	CreatedAt        time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null" json:"updated_at"`
}

func (Examination) TableName() string { return "examination" }

func (e *Examination) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if len(e.RegulatoryCodes) == 0 {
		e.RegulatoryCodes = datatypes.JSON([]byte("[]"))
	}
	return nil
}

type Job struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID         uuid.UUID  `gorm:"type:uuid;column:company_id;not null;index" json:"company_id"`
	Title             string     `gorm:"column:title;not null" json:"title"`
	CBO               string     `gorm:"column:cbo" json:"cbo,omitempty"`
	Description       string     `gorm:"column:description" json:"description,omitempty"`
	MainEnvironmentID *uuid.UUID `gorm:"type:uuid;column:main_environment_id" json:"main_environment_id,omitempty"`
	Active            bool       `gorm:"column:active;not null;index" json:"active"`
	Risks             []JobRisk  `gorm:"foreignKey:JobID" json:"risks,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`
}

func (Job) TableName() string { return "job" }

func (j *Job) BeforeCreate(*gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

// JobRisk associates a job with a hazard it is exposed to.
type JobRisk struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID  `gorm:"type:uuid;column:job_id;not null;uniqueIndex:idx_job_risk" json:"job_id"`
	RiskID    uuid.UUID  `gorm:"type:uuid;column:risk_id;not null;uniqueIndex:idx_job_risk;index" json:"risk_id"`
	Risk      *Risk      `gorm:"foreignKey:RiskID" json:"risk,omitempty"`
	Intensity *Intensity `gorm:"column:intensity" json:"intensity,omitempty"`
	Notes     string     `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (JobRisk) TableName() string { return "job_risk" }

func (jr *JobRisk) BeforeCreate(*gorm.DB) error {
	if jr.ID == uuid.Nil {
		jr.ID = uuid.New()
	}
	return nil
}
