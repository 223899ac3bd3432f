package services

import (
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/compliance"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type ComplianceService interface {
	ValidateCompliance(dbc dbctx.Context, versionID uuid.UUID) (*compliance.Report, error)
}

type complianceService struct {
	db           *gorm.DB
	log          *logger.Logger
	metrics      *observability.Metrics
	table        *compliance.Table
	versions     repos.PCMSOVersionRepo
	requirements repos.PCMSORequirementRepo
	jobs         repos.JobRepo
}

func NewComplianceService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	table *compliance.Table,
	versions repos.PCMSOVersionRepo,
	requirements repos.PCMSORequirementRepo,
	jobs repos.JobRepo,
) ComplianceService {
	return &complianceService{
		db:           db,
		log:          baseLog.With("service", "ComplianceService"),
		metrics:      metrics,
		table:        table,
		versions:     versions,
		requirements: requirements,
		jobs:         jobs,
	}
}

func (s *complianceService) ValidateCompliance(dbc dbctx.Context, versionID uuid.UUID) (out *compliance.Report, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.ValidateCompliance", idAttr("version_id", versionID))
	defer func() { op.end(err) }()

	version, err := s.versions.GetByID(dbc, versionID)
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	if version == nil {
		return nil, apierr.NotFound("version_not_found", "PCMSO version %s not found", versionID)
	}
	rows, err := s.requirements.ListByVersion(dbc, versionID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	jobs, err := s.jobs.ListActiveByCompany(dbc, version.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	in := compliance.Input{Exams: map[uuid.UUID][]compliance.MaterializedExam{}}
	for _, row := range rows {
		policy, err := row.Policy()
		if err != nil {
			return nil, fmt.Errorf("requirement %s: stored periodicity: %w", row.ID, err)
		}
		in.Exams[row.JobID] = append(in.Exams[row.JobID], compliance.MaterializedExam{
			ExamID:   row.ExamID,
			ExamName: row.ExamName,
			Policy:   policy,
		})
	}
	for _, job := range jobs {
		exposure := compliance.JobExposure{JobID: job.ID, JobTitle: job.Title}
		for _, jr := range job.Risks {
			if jr.Risk == nil || !jr.Risk.Active {
				continue
			}
			r := compliance.RiskExposure{ID: jr.RiskID, Name: jr.Risk.Name}
			if jr.Risk.Code != nil {
				r.Code = *jr.Risk.Code
			}
			exposure.Risks = append(exposure.Risks, r)
		}
		in.Jobs = append(in.Jobs, exposure)
	}

	rep := s.table.Check(in)
	for severity, findings := range map[string][]compliance.Finding{
		"error":          rep.Errors,
		"warning":        rep.Warnings,
		"recommendation": rep.Recommendations,
	} {
		counts := map[string]int{}
		for _, f := range findings {
			counts[f.Code]++
		}
		for code, n := range counts {
			s.metrics.AddFindings(severity, code, n)
		}
	}
	op.span.SetAttributes(
		attribute.Bool("compliant", rep.IsCompliant),
		attribute.Int("errors", len(rep.Errors)),
		attribute.Int("warnings", len(rep.Warnings)),
	)
	s.log.Debug("compliance checked",
		"version_id", versionID,
		"compliant", rep.IsCompliant,
		"errors", len(rep.Errors),
		"warnings", len(rep.Warnings),
		"recommendations", len(rep.Recommendations),
	)
	return &rep, nil
}
