// Package snapshot reduces per-job requirements to one requirement per exam
// and compares two such reductions.
package snapshot

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/consolidate"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

type JobRef struct {
	ID    uuid.UUID `json:"jobId"`
	Title string    `json:"jobTitle"`
}

type RiskRef struct {
	ID   uuid.UUID `json:"riskId"`
	Name string    `json:"riskName"`
}

// Item is the exam-level view: the most stringent policy across every job
// that requires the exam.
type Item struct {
	ExamID   uuid.UUID          `json:"examId"`
	ExamName string             `json:"examName"`
	Policy   periodicity.Policy `json:"policy"`
	Source   pcmso.SourceType   `json:"sourceType"`
	Jobs     []JobRef           `json:"jobs"`
	Risks    []RiskRef          `json:"risks"`
}

type Map map[uuid.UUID]Item

type contribution struct {
	policy periodicity.Policy
	source pcmso.SourceType
}

// Builder accumulates contributions per exam.
type Builder struct {
	names  map[uuid.UUID]string
	contrs map[uuid.UUID][]contribution
	jobs   map[uuid.UUID]map[uuid.UUID]string
	risks  map[uuid.UUID]map[uuid.UUID]string
}

func NewBuilder() *Builder {
	return &Builder{
		names:  map[uuid.UUID]string{},
		contrs: map[uuid.UUID][]contribution{},
		jobs:   map[uuid.UUID]map[uuid.UUID]string{},
		risks:  map[uuid.UUID]map[uuid.UUID]string{},
	}
}

func (b *Builder) Add(examID uuid.UUID, examName string, policy periodicity.Policy, source pcmso.SourceType, job JobRef, risks ...RiskRef) {
	if _, ok := b.names[examID]; !ok || b.names[examID] == "" {
		b.names[examID] = examName
	}
	b.contrs[examID] = append(b.contrs[examID], contribution{policy: policy, source: source})
	if b.jobs[examID] == nil {
		b.jobs[examID] = map[uuid.UUID]string{}
	}
	if job.ID != uuid.Nil {
		b.jobs[examID][job.ID] = job.Title
	}
	if b.risks[examID] == nil {
		b.risks[examID] = map[uuid.UUID]string{}
	}
	for _, r := range risks {
		if r.ID == uuid.Nil {
			continue
		}
		if existing := b.risks[examID][r.ID]; existing == "" {
			b.risks[examID][r.ID] = r.Name
		}
	}
}

func (b *Builder) Build() Map {
	out := make(Map, len(b.contrs))
	for examID, contrs := range b.contrs {
		best := contrs[0]
		for _, c := range contrs[1:] {
			switch {
			case c.policy.StricterThan(best.policy):
				best = c
			case c.policy.Equal(best.policy) && c.source < best.source:
				best = c
			}
		}
		out[examID] = Item{
			ExamID:   examID,
			ExamName: b.names[examID],
			Policy:   best.policy,
			Source:   best.source,
			Jobs:     sortedJobs(b.jobs[examID]),
			Risks:    sortedRisks(b.risks[examID]),
		}
	}
	return out
}

// FromConsolidated reduces live consolidation results across jobs.
func FromConsolidated(results []consolidate.Result) Map {
	b := NewBuilder()
	for _, res := range results {
		job := JobRef{ID: res.JobID, Title: res.JobTitle}
		for _, e := range res.Consolidated {
			risks := make([]RiskRef, 0, len(e.Sources))
			for _, s := range e.Sources {
				if s.RiskID != nil {
					risks = append(risks, RiskRef{ID: *s.RiskID, Name: s.RiskName})
				}
			}
			b.Add(e.ExamID, e.ExamName, e.Effective, e.Primary().Type, job, risks...)
		}
	}
	return b.Build()
}

// FromRequirements reduces the materialized rows of one version.
func FromRequirements(rows []pcmso.ExamRequirement) (Map, error) {
	b := NewBuilder()
	for _, row := range rows {
		policy, err := row.Policy()
		if err != nil {
			return nil, fmt.Errorf("requirement %s: %w", row.ID, err)
		}
		var risks []RiskRef
		if len(row.Provenance) > 0 {
			var refs []pcmso.SourceRef
			if err := json.Unmarshal(row.Provenance, &refs); err != nil {
				return nil, fmt.Errorf("requirement %s provenance: %w", row.ID, err)
			}
			for _, ref := range refs {
				if ref.RiskID != nil {
					risks = append(risks, RiskRef{ID: *ref.RiskID, Name: ref.RiskName})
				}
			}
		} else if row.SourceRiskID != nil {
			risks = append(risks, RiskRef{ID: *row.SourceRiskID})
		}
		b.Add(row.ExamID, row.ExamName, policy, row.Source, JobRef{ID: row.JobID, Title: row.JobTitle}, risks...)
	}
	return b.Build(), nil
}

func sortedJobs(m map[uuid.UUID]string) []JobRef {
	out := make([]JobRef, 0, len(m))
	for id, title := range m {
		out = append(out, JobRef{ID: id, Title: title})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func sortedRisks(m map[uuid.UUID]string) []RiskRef {
	out := make([]RiskRef, 0, len(m))
	for id, name := range m {
		out = append(out, RiskRef{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}
