package services

import (
	"github.com/google/uuid"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/normalization"
)

type ExamSuggestion struct {
	ExamID           uuid.UUID          `json:"exam_id"`
	ExamName         string             `json:"exam_name"`
	Category         types.ExamCategory `json:"category"`
	PeriodicityType  periodicity.Type   `json:"periodicity_type"`
	PeriodicityValue *int               `json:"periodicity_value,omitempty"`
	Reasoning        string             `json:"reasoning"`
}

type suggestionRule struct {
	// risk matches when every keyword of any one group occurs in the risk name.
	risk      [][]string
	exam      []string
	months    int
	reasoning string
}

// Keywords are folded before matching, so accents are optional.
var suggestionRules = []suggestionRule{
	{
		risk:      [][]string{{"ruido"}, {"noise"}},
		exam:      []string{"audiometria", "audiometry"},
		months:    12,
		reasoning: "NR-7: audiometry is mandatory for noise exposure above 85 dB(A)",
	},
	{
		risk:      [][]string{{"poeira", "silica"}, {"dust", "silica"}},
		exam:      []string{"raio-x de torax", "raio x de torax", "chest x-ray", "chest xray"},
		months:    12,
		reasoning: "NR-7: chest X-ray is required for mineral dust exposure (silicosis)",
	},
	{
		risk:      [][]string{{"poeira"}, {"gas"}, {"vapor"}, {"dust"}, {"fume"}},
		exam:      []string{"espirometria", "spirometry"},
		months:    12,
		reasoning: "NR-7: spirometry is mandatory for mineral dust and chemical agent exposure",
	},
	{
		risk:      [][]string{{"agrotoxico"}, {"organofosforado"}, {"carbamato"}, {"pesticide"}, {"organophosphate"}, {"carbamate"}},
		exam:      []string{"acetilcolinesterase", "cholinesterase"},
		months:    6,
		reasoning: "NR-7: cholinesterase is mandatory for organophosphate and carbamate exposure",
	},
	{
		risk:      [][]string{{"chumbo"}, {"lead"}},
		exam:      []string{"chumbo no sangue", "plumbemia", "blood lead"},
		months:    6,
		reasoning: "NR-7: blood lead is mandatory for occupational lead exposure",
	},
	{
		risk:      [][]string{{"mercurio"}, {"mercury"}},
		exam:      []string{"mercurio urinario", "urinary mercury"},
		months:    6,
		reasoning: "NR-7: urinary mercury is mandatory for mercury exposure",
	},
	{
		risk:      [][]string{{"benzeno"}, {"benzene"}},
		exam:      []string{"muconico", "muconic"},
		months:    6,
		reasoning: "NR-7: t,t-muconic acid is mandatory for benzene exposure",
	},
}

func (r suggestionRule) matchesRisk(name string) bool {
	for _, group := range r.risk {
		if normalization.ContainsAll(name, group) {
			return true
		}
	}
	return false
}

// suggestExams proposes at most one rule per examination, the first table
// entry that matches both the risk and the exam name.
func suggestExams(risk *types.Risk, exams []*types.Examination, skip map[uuid.UUID]bool) []ExamSuggestion {
	out := []ExamSuggestion{}
	var applicable []suggestionRule
	for _, r := range suggestionRules {
		if r.matchesRisk(risk.Name) {
			applicable = append(applicable, r)
		}
	}
	if len(applicable) == 0 {
		return out
	}
	for _, exam := range exams {
		if skip[exam.ID] {
			continue
		}
		for _, r := range applicable {
			if !normalization.ContainsAny(exam.Name, r.exam) {
				continue
			}
			months := r.months
			out = append(out, ExamSuggestion{
				ExamID:           exam.ID,
				ExamName:         exam.Name,
				Category:         exam.Category,
				PeriodicityType:  periodicity.Periodic,
				PeriodicityValue: &months,
				Reasoning:        r.reasoning,
			})
			break
		}
	}
	return out
}
