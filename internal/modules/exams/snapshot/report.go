package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

type VersionRef struct {
	ID            uuid.UUID  `json:"id"`
	VersionNumber int        `json:"versionNumber"`
	SignedAt      *time.Time `json:"signedAt,omitempty"`
}

type Change struct {
	Type             ChangeType          `json:"type"`
	Description      string              `json:"description"`
	AffectedExamID   *uuid.UUID          `json:"affectedExamId,omitempty"`
	AffectedExamName string              `json:"affectedExamName,omitempty"`
	AffectedJobID    *uuid.UUID          `json:"affectedJobId,omitempty"`
	AffectedRiskID   *uuid.UUID          `json:"affectedRiskId,omitempty"`
	OldValue         *periodicity.Policy `json:"oldValue,omitempty"`
	NewValue         *periodicity.Policy `json:"newValue,omitempty"`
}

type AffectedJob struct {
	JobID       uuid.UUID `json:"jobId"`
	JobTitle    string    `json:"jobTitle"`
	ChangeCount int       `json:"changeCount"`
}

type AffectedRisk struct {
	RiskID      uuid.UUID `json:"riskId"`
	RiskName    string    `json:"riskName"`
	ChangeCount int       `json:"changeCount"`
}

type ChangeReport struct {
	HasChanges        bool           `json:"hasChanges"`
	LastSignedVersion *VersionRef    `json:"lastSignedVersion"`
	Changes           []Change       `json:"changes"`
	AffectedJobs      []AffectedJob  `json:"affectedJobs"`
	AffectedRisks     []AffectedRisk `json:"affectedRisks"`
}

// Bootstrap is the report for a company without any signed version: every
// active job and every mapped risk is new.
func Bootstrap(jobs []JobRef, risks []RiskRef) ChangeReport {
	rep := ChangeReport{Changes: []Change{}, AffectedJobs: []AffectedJob{}, AffectedRisks: []AffectedRisk{}}
	for _, j := range jobs {
		id := j.ID
		rep.Changes = append(rep.Changes, Change{
			Type:          ChangeRuleAdded,
			Description:   fmt.Sprintf("Job %q will be included in the first PCMSO version", j.Title),
			AffectedJobID: &id,
		})
		rep.AffectedJobs = append(rep.AffectedJobs, AffectedJob{JobID: j.ID, JobTitle: j.Title, ChangeCount: 1})
	}
	for _, r := range risks {
		id := r.ID
		rep.Changes = append(rep.Changes, Change{
			Type:           ChangeRuleAdded,
			Description:    fmt.Sprintf("Risk %q will be included in the first PCMSO version", r.Name),
			AffectedRiskID: &id,
		})
		rep.AffectedRisks = append(rep.AffectedRisks, AffectedRisk{RiskID: r.ID, RiskName: r.Name, ChangeCount: 1})
	}
	rep.HasChanges = len(jobs) > 0 || len(risks) > 0
	return rep
}

// Steady turns a comparison against the last signed version into a report.
func Steady(last VersionRef, cmp Comparison) ChangeReport {
	rep := ChangeReport{
		LastSignedVersion: &last,
		Changes:           []Change{},
		AffectedJobs:      []AffectedJob{},
		AffectedRisks:     []AffectedRisk{},
	}
	jobs := map[uuid.UUID]*AffectedJob{}
	risks := map[uuid.UUID]*AffectedRisk{}
	touch := func(items ...Item) {
		seenJob := map[uuid.UUID]bool{}
		seenRisk := map[uuid.UUID]bool{}
		for _, it := range items {
			for _, j := range it.Jobs {
				if seenJob[j.ID] {
					continue
				}
				seenJob[j.ID] = true
				if jobs[j.ID] == nil {
					jobs[j.ID] = &AffectedJob{JobID: j.ID, JobTitle: j.Title}
				}
				jobs[j.ID].ChangeCount++
			}
			for _, r := range it.Risks {
				if seenRisk[r.ID] {
					continue
				}
				seenRisk[r.ID] = true
				if risks[r.ID] == nil {
					risks[r.ID] = &AffectedRisk{RiskID: r.ID, RiskName: r.Name}
				}
				if risks[r.ID].RiskName == "" {
					risks[r.ID].RiskName = r.Name
				}
				risks[r.ID].ChangeCount++
			}
		}
	}

	for _, it := range cmp.Added {
		id, p := it.ExamID, it.Policy
		rep.Changes = append(rep.Changes, Change{
			Type:             ChangeExamAdded,
			Description:      fmt.Sprintf("Exam %q added", it.ExamName),
			AffectedExamID:   &id,
			AffectedExamName: it.ExamName,
			NewValue:         &p,
		})
		touch(it)
	}
	for _, it := range cmp.Removed {
		id, p := it.ExamID, it.Policy
		rep.Changes = append(rep.Changes, Change{
			Type:             ChangeExamRemoved,
			Description:      fmt.Sprintf("Exam %q removed", it.ExamName),
			AffectedExamID:   &id,
			AffectedExamName: it.ExamName,
			OldValue:         &p,
		})
		touch(it)
	}
	for _, m := range cmp.Modified {
		id, oldP, newP := m.ExamID, m.Old.Policy, m.New.Policy
		rep.Changes = append(rep.Changes, Change{
			Type:             ChangePeriodicityChanged,
			Description:      fmt.Sprintf("Exam %q periodicity changed: %s -> %s", m.ExamName, oldP.Describe(), newP.Describe()),
			AffectedExamID:   &id,
			AffectedExamName: m.ExamName,
			OldValue:         &oldP,
			NewValue:         &newP,
		})
		touch(m.Old, m.New)
	}

	for _, j := range jobs {
		rep.AffectedJobs = append(rep.AffectedJobs, *j)
	}
	sort.Slice(rep.AffectedJobs, func(i, k int) bool {
		return rep.AffectedJobs[i].JobID.String() < rep.AffectedJobs[k].JobID.String()
	})
	for _, r := range risks {
		rep.AffectedRisks = append(rep.AffectedRisks, *r)
	}
	sort.Slice(rep.AffectedRisks, func(i, k int) bool {
		return rep.AffectedRisks[i].RiskID.String() < rep.AffectedRisks[k].RiskID.String()
	})
	rep.HasChanges = len(rep.Changes) > 0
	return rep
}
