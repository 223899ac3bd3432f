package domain

import (
	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/domain/rules"
)

type (
	Company      = catalog.Company
	RiskCategory = catalog.RiskCategory
	Risk         = catalog.Risk
	RiskType     = catalog.RiskType
	Intensity    = catalog.Intensity
	Examination  = catalog.Examination
	ExamCategory = catalog.ExamCategory
	Job          = catalog.Job
	JobRisk      = catalog.JobRisk
)

type (
	Applicability  = rules.Applicability
	RuleFields     = rules.RuleFields
	ExamRuleByRisk = rules.ExamRuleByRisk
	ExamRuleByJob  = rules.ExamRuleByJob
)

type (
	PCMSOStatus          = pcmso.Status
	PCMSOVersion         = pcmso.Version
	PCMSOExamRequirement = pcmso.ExamRequirement
	PCMSOSourceType      = pcmso.SourceType
	PCMSOSourceRef       = pcmso.SourceRef
)

const (
	RiskPhysical   = catalog.RiskPhysical
	RiskChemical   = catalog.RiskChemical
	RiskBiological = catalog.RiskBiological
	RiskErgonomic  = catalog.RiskErgonomic
	RiskAccident   = catalog.RiskAccident
)

const (
	IntensityLow      = catalog.IntensityLow
	IntensityMedium   = catalog.IntensityMedium
	IntensityHigh     = catalog.IntensityHigh
	IntensityVeryHigh = catalog.IntensityVeryHigh
)

const (
	ExamClinical      = catalog.ExamClinical
	ExamLaboratory    = catalog.ExamLaboratory
	ExamImaging       = catalog.ExamImaging
	ExamComplementary = catalog.ExamComplementary
	ExamPsychosocial  = catalog.ExamPsychosocial
	ExamFunctional    = catalog.ExamFunctional
	ExamOther         = catalog.ExamOther
)
