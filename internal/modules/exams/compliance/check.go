// Package compliance checks a materialized exam set against a table of
// hazard -> mandatory exam rules.
package compliance

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/normalization"
)

type RiskExposure struct {
	ID   uuid.UUID
	Name string
	Code string
}

type JobExposure struct {
	JobID    uuid.UUID
	JobTitle string
	Risks    []RiskExposure
}

type MaterializedExam struct {
	ExamID   uuid.UUID
	ExamName string
	Policy   periodicity.Policy
}

type Input struct {
	// Jobs are the company's active jobs with their current risk associations.
	Jobs []JobExposure
	// Exams holds the version's requirement rows grouped by job id.
	Exams map[uuid.UUID][]MaterializedExam
}

type Finding struct {
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	JobID     *uuid.UUID `json:"jobId,omitempty"`
	JobTitle  string     `json:"jobTitle,omitempty"`
	Hazard    string     `json:"hazard,omitempty"`
	RiskID    *uuid.UUID `json:"riskId,omitempty"`
	RiskName  string     `json:"riskName,omitempty"`
	Exam      string     `json:"exam,omitempty"`
	Reference string     `json:"reference,omitempty"`
}

type Report struct {
	IsCompliant     bool      `json:"isCompliant"`
	Errors          []Finding `json:"errors"`
	Warnings        []Finding `json:"warnings"`
	Recommendations []Finding `json:"recommendations"`
}

// Matches reports whether a risk falls under the hazard.
func (h Hazard) Matches(r RiskExposure) bool {
	text := r.Name + " " + r.Code
	for _, group := range h.Match {
		if normalization.ContainsAll(text, group) {
			return true
		}
	}
	return false
}

func (t *Table) Check(in Input) Report {
	rep := Report{Errors: []Finding{}, Warnings: []Finding{}, Recommendations: []Finding{}}

	jobs := append([]JobExposure(nil), in.Jobs...)
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].JobTitle != jobs[j].JobTitle {
			return jobs[i].JobTitle < jobs[j].JobTitle
		}
		return jobs[i].JobID.String() < jobs[j].JobID.String()
	})

	for _, job := range jobs {
		jobID := job.JobID
		exams := in.Exams[job.JobID]
		if len(exams) == 0 {
			rep.Recommendations = append(rep.Recommendations, Finding{
				Code:     "job_without_exams",
				Message:  fmt.Sprintf("Job %q has no required examinations in this version; confirm it carries no occupational exposure", job.JobTitle),
				JobID:    &jobID,
				JobTitle: job.JobTitle,
			})
		}

		risks := append([]RiskExposure(nil), job.Risks...)
		sort.Slice(risks, func(i, j int) bool { return risks[i].Name < risks[j].Name })

		reported := map[string]bool{}
		for _, risk := range risks {
			riskID := risk.ID
			for _, hz := range t.Hazards {
				if !hz.Matches(risk) {
					continue
				}
				for _, req := range hz.Requirements {
					key := hz.ID + "|" + req.Exam
					if reported[key] {
						continue
					}
					reported[key] = true

					base := Finding{
						JobID:     &jobID,
						JobTitle:  job.JobTitle,
						Hazard:    hz.Name,
						RiskID:    &riskID,
						RiskName:  risk.Name,
						Exam:      req.Exam,
						Reference: req.Reference,
					}
					found, ok := findExam(exams, req.Keywords)
					if !ok {
						f := base
						if req.Severity == SeverityError {
							f.Code = "mandatory_exam_missing"
							f.Message = fmt.Sprintf("Job %q is exposed to %q (%s) but has no %s", job.JobTitle, risk.Name, hz.Name, req.Exam)
							rep.Errors = append(rep.Errors, f)
						} else {
							f.Code = "recommended_exam_missing"
							f.Message = fmt.Sprintf("Job %q is exposed to %q (%s); %s is recommended", job.JobTitle, risk.Name, hz.Name, req.Exam)
							rep.Warnings = append(rep.Warnings, f)
						}
						continue
					}
					if req.MaxPeriodicityMonths <= 0 {
						continue
					}
					interval, periodic := found.Policy.MinInterval()
					if !periodic || interval > req.MaxPeriodicityMonths {
						f := base
						f.Code = "periodicity_above_recommended"
						f.Message = fmt.Sprintf("Job %q: %s is scheduled %s; at most every %d months is recommended for %s",
							job.JobTitle, found.ExamName, found.Policy.Describe(), req.MaxPeriodicityMonths, hz.Name)
						rep.Recommendations = append(rep.Recommendations, f)
					}
				}
			}
		}
	}

	if len(t.BaselineExamKeywords) > 0 && !anyBaseline(in.Exams, t.BaselineExamKeywords) {
		rep.Warnings = append(rep.Warnings, Finding{
			Code:    "baseline_clinical_exam_missing",
			Message: "No baseline clinical (occupational medical) examination is required by this version",
			Exam:    "Exame clínico ocupacional",
		})
	}

	rep.IsCompliant = len(rep.Errors) == 0
	return rep
}

func findExam(exams []MaterializedExam, keywords []string) (MaterializedExam, bool) {
	for _, e := range exams {
		if normalization.ContainsAny(e.ExamName, keywords) {
			return e, true
		}
	}
	return MaterializedExam{}, false
}

func anyBaseline(byJob map[uuid.UUID][]MaterializedExam, keywords []string) bool {
	for _, exams := range byJob {
		if _, ok := findExam(exams, keywords); ok {
			return true
		}
	}
	return false
}
