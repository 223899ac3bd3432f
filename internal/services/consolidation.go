package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/consolidate"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

// ConsolidationService loads rules from storage and runs the consolidation
// engine. Nothing is cached; every call recomputes from the current rows.
type ConsolidationService interface {
	ConsolidateJob(dbc dbctx.Context, jobID uuid.UUID) (*consolidate.Result, error)
	// ConsolidateCompany covers every active job of the company, ordered by job title.
	ConsolidateCompany(dbc dbctx.Context, companyID uuid.UUID) ([]consolidate.Result, error)
	// ConsolidateJobs runs the engine over already loaded jobs. Risk
	// associations must be preloaded.
	ConsolidateJobs(dbc dbctx.Context, jobs []*types.Job) ([]consolidate.Result, error)
}

type consolidationService struct {
	db        *gorm.DB
	log       *logger.Logger
	metrics   *observability.Metrics
	companies repos.CompanyRepo
	jobs      repos.JobRepo
	riskRules repos.RiskExamRuleRepo
	jobRules  repos.JobExamRuleRepo
}

func NewConsolidationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	companies repos.CompanyRepo,
	jobs repos.JobRepo,
	riskRules repos.RiskExamRuleRepo,
	jobRules repos.JobExamRuleRepo,
) ConsolidationService {
	return &consolidationService{
		db:        db,
		log:       baseLog.With("service", "ConsolidationService"),
		metrics:   metrics,
		companies: companies,
		jobs:      jobs,
		riskRules: riskRules,
		jobRules:  jobRules,
	}
}

func (s *consolidationService) ConsolidateJob(dbc dbctx.Context, jobID uuid.UUID) (out *consolidate.Result, err error) {
	dbc, op := startOperation(dbc, s.metrics, "exams.ConsolidateJob", idAttr("job_id", jobID))
	defer func() { op.end(err) }()

	job, err := s.jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, apierr.NotFound("job_not_found", "job %s not found", jobID)
	}
	results, err := s.ConsolidateJobs(dbc, []*types.Job{job})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (s *consolidationService) ConsolidateCompany(dbc dbctx.Context, companyID uuid.UUID) (out []consolidate.Result, err error) {
	dbc, op := startOperation(dbc, s.metrics, "exams.ConsolidateCompany", idAttr("company_id", companyID))
	defer func() { op.end(err) }()

	company, err := s.companies.GetByID(dbc, companyID)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if company == nil {
		return nil, apierr.NotFound("company_not_found", "company %s not found", companyID)
	}
	jobs, err := s.jobs.ListActiveByCompany(dbc, companyID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return s.ConsolidateJobs(dbc, jobs)
}

func (s *consolidationService) ConsolidateJobs(dbc dbctx.Context, jobs []*types.Job) ([]consolidate.Result, error) {
	out := make([]consolidate.Result, 0, len(jobs))
	if len(jobs) == 0 {
		return out, nil
	}

	jobIDs := make([]uuid.UUID, 0, len(jobs))
	riskSet := map[uuid.UUID]bool{}
	var riskIDs []uuid.UUID
	for _, j := range jobs {
		jobIDs = append(jobIDs, j.ID)
		for _, jr := range j.Risks {
			if jr.Risk != nil && !jr.Risk.Active {
				continue
			}
			if !riskSet[jr.RiskID] {
				riskSet[jr.RiskID] = true
				riskIDs = append(riskIDs, jr.RiskID)
			}
		}
	}

	jobRuleRows, err := s.jobRules.ListActiveByJobIDs(dbc, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("list job exam rules: %w", err)
	}
	riskRuleRows, err := s.riskRules.ListActiveByRiskIDs(dbc, riskIDs)
	if err != nil {
		return nil, fmt.Errorf("list risk exam rules: %w", err)
	}

	jobRulesByJob := map[uuid.UUID][]consolidate.JobRule{}
	for _, r := range jobRuleRows {
		if r.Exam != nil && !r.Exam.Active {
			continue
		}
		policy, err := r.Policy()
		if err != nil {
			return nil, fmt.Errorf("job exam rule %s: stored periodicity: %w", r.ID, err)
		}
		jobRulesByJob[r.JobID] = append(jobRulesByJob[r.JobID], consolidate.JobRule{
			RuleID:            r.ID,
			ExamID:            r.ExamID,
			ExamName:          examName(r.Exam),
			Policy:            policy,
			Applicability:     r.Applicability,
			OverrideRiskRules: r.OverrideRiskRules,
		})
	}
	riskRulesByRisk := map[uuid.UUID][]consolidate.RiskRule{}
	for _, r := range riskRuleRows {
		if r.Exam != nil && !r.Exam.Active {
			continue
		}
		policy, err := r.Policy()
		if err != nil {
			return nil, fmt.Errorf("risk exam rule %s: stored periodicity: %w", r.ID, err)
		}
		riskName := ""
		if r.Risk != nil {
			riskName = r.Risk.Name
		}
		riskRulesByRisk[r.RiskID] = append(riskRulesByRisk[r.RiskID], consolidate.RiskRule{
			RuleID:        r.ID,
			RiskID:        r.RiskID,
			RiskName:      riskName,
			ExamID:        r.ExamID,
			ExamName:      examName(r.Exam),
			Policy:        policy,
			Applicability: r.Applicability,
		})
	}

	for _, j := range jobs {
		in := consolidate.Input{JobID: j.ID, JobTitle: j.Title, JobRules: jobRulesByJob[j.ID]}
		for _, jr := range j.Risks {
			if jr.Risk != nil && !jr.Risk.Active {
				continue
			}
			in.RiskRules = append(in.RiskRules, riskRulesByRisk[jr.RiskID]...)
		}
		out = append(out, consolidate.Job(in))
	}
	return out, nil
}

func examName(e *types.Examination) string {
	if e == nil {
		return ""
	}
	return e.Name
}
