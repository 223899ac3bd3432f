// Package consolidate merges risk-derived and job-derived exam rules for a
// single job into one requirement set.
//
// Risk-sourced rules are inserted first. A job rule on the same exam either
// replaces every risk source (OverrideRiskRules) or joins them. Output is
// deterministic for a given input regardless of input ordering.
package consolidate

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/domain/rules"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

type RiskRule struct {
	RuleID        uuid.UUID           `json:"ruleId"`
	RiskID        uuid.UUID           `json:"riskId"`
	RiskName      string              `json:"riskName"`
	ExamID        uuid.UUID           `json:"examId"`
	ExamName      string              `json:"examName"`
	Policy        periodicity.Policy  `json:"policy"`
	Applicability rules.Applicability `json:"applicability"`
}

type JobRule struct {
	RuleID            uuid.UUID           `json:"ruleId"`
	ExamID            uuid.UUID           `json:"examId"`
	ExamName          string              `json:"examName"`
	Policy            periodicity.Policy  `json:"policy"`
	Applicability     rules.Applicability `json:"applicability"`
	OverrideRiskRules bool                `json:"overrideRiskRules"`
}

type Input struct {
	JobID     uuid.UUID
	JobTitle  string
	JobRules  []JobRule
	RiskRules []RiskRule
}

// Source is one rule contributing to a consolidated exam.
type Source struct {
	Type          pcmso.SourceType    `json:"source"`
	RuleID        uuid.UUID           `json:"ruleId"`
	RiskID        *uuid.UUID          `json:"riskId,omitempty"`
	RiskName      string              `json:"riskName,omitempty"`
	Policy        periodicity.Policy  `json:"policy"`
	Applicability rules.Applicability `json:"applicability"`
}

type Entry struct {
	ExamID        uuid.UUID           `json:"examId"`
	ExamName      string              `json:"examName"`
	Sources       []Source            `json:"sources"`
	Effective     periodicity.Policy  `json:"effectivePolicy"`
	Applicability rules.Applicability `json:"applicability"`
}

// Primary is the source whose policy became the effective one.
func (e Entry) Primary() Source {
	for _, s := range e.Sources {
		if s.Policy.Equal(e.Effective) {
			return s
		}
	}
	return e.Sources[0]
}

// SourceRefs is the provenance stored on materialized rows.
func (e Entry) SourceRefs() []pcmso.SourceRef {
	out := make([]pcmso.SourceRef, 0, len(e.Sources))
	for _, s := range e.Sources {
		out = append(out, pcmso.SourceRef{Source: s.Type, RuleID: s.RuleID, RiskID: s.RiskID, RiskName: s.RiskName})
	}
	return out
}

// RiskIDs lists the risks among the sources.
func (e Entry) RiskIDs() []uuid.UUID {
	var out []uuid.UUID
	for _, s := range e.Sources {
		if s.RiskID != nil {
			out = append(out, *s.RiskID)
		}
	}
	return out
}

type Override struct {
	ExamID              uuid.UUID   `json:"examId"`
	ExamName            string      `json:"examName"`
	JobRuleID           uuid.UUID   `json:"jobRuleId"`
	OverriddenRiskRules []uuid.UUID `json:"overriddenRiskRules"`
}

type Result struct {
	JobID        uuid.UUID  `json:"jobId"`
	JobTitle     string     `json:"jobTitle"`
	JobRules     []JobRule  `json:"jobRules"`
	RiskRules    []RiskRule `json:"riskRules"`
	Consolidated []Entry    `json:"consolidated"`
	Overrides    []Override `json:"overrides"`
}

func Job(in Input) Result {
	riskRules := append([]RiskRule(nil), in.RiskRules...)
	sort.SliceStable(riskRules, func(i, j int) bool {
		a, b := riskRules[i], riskRules[j]
		if a.RiskName != b.RiskName {
			return a.RiskName < b.RiskName
		}
		return a.RuleID.String() < b.RuleID.String()
	})
	jobRules := append([]JobRule(nil), in.JobRules...)
	sort.SliceStable(jobRules, func(i, j int) bool {
		a, b := jobRules[i], jobRules[j]
		if a.ExamName != b.ExamName {
			return a.ExamName < b.ExamName
		}
		return a.RuleID.String() < b.RuleID.String()
	})

	byExam := map[uuid.UUID]*Entry{}
	entryFor := func(examID uuid.UUID, examName string) *Entry {
		e, ok := byExam[examID]
		if !ok {
			e = &Entry{ExamID: examID, ExamName: examName}
			byExam[examID] = e
		}
		return e
	}

	for _, rr := range riskRules {
		riskID := rr.RiskID
		e := entryFor(rr.ExamID, rr.ExamName)
		e.Sources = append(e.Sources, Source{
			Type:          pcmso.SourceRisk,
			RuleID:        rr.RuleID,
			RiskID:        &riskID,
			RiskName:      rr.RiskName,
			Policy:        rr.Policy,
			Applicability: rr.Applicability,
		})
	}

	overrides := []Override{}
	for _, jr := range jobRules {
		e := entryFor(jr.ExamID, jr.ExamName)
		src := Source{
			Type:          pcmso.SourceJob,
			RuleID:        jr.RuleID,
			Policy:        jr.Policy,
			Applicability: jr.Applicability,
		}
		var dropped []uuid.UUID
		if jr.OverrideRiskRules {
			kept := make([]Source, 0, len(e.Sources))
			for _, s := range e.Sources {
				if s.Type == pcmso.SourceRisk {
					dropped = append(dropped, s.RuleID)
					continue
				}
				kept = append(kept, s)
			}
			e.Sources = kept
		}
		e.Sources = append(e.Sources, src)
		if len(dropped) > 0 {
			overrides = append(overrides, Override{
				ExamID:              jr.ExamID,
				ExamName:            jr.ExamName,
				JobRuleID:           jr.RuleID,
				OverriddenRiskRules: dropped,
			})
		}
	}

	entries := make([]Entry, 0, len(byExam))
	for _, e := range byExam {
		policies := make([]periodicity.Policy, 0, len(e.Sources))
		var app rules.Applicability
		for _, s := range e.Sources {
			policies = append(policies, s.Policy)
			app = app.Or(s.Applicability)
		}
		e.Effective, _ = periodicity.MostStringent(policies...)
		e.Applicability = app
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].ExamName), strings.ToLower(entries[j].ExamName)
		if a != b {
			return a < b
		}
		return entries[i].ExamID.String() < entries[j].ExamID.String()
	})

	return Result{
		JobID:        in.JobID,
		JobTitle:     in.JobTitle,
		JobRules:     jobRules,
		RiskRules:    riskRules,
		Consolidated: entries,
		Overrides:    overrides,
	}
}
