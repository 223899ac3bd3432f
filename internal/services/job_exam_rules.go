package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/db"
	"github.com/occhealth/pcmso-backend/internal/data/repos"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type JobExamRuleInput struct {
	JobID             uuid.UUID `json:"job_id"`
	ExamID            uuid.UUID `json:"exam_id"`
	OverrideRiskRules bool      `json:"override_risk_rules"`
	RuleInput
}

type JobExamRulePatch struct {
	RulePatch
	OverrideRiskRules *bool `json:"override_risk_rules"`
}

type JobExamRuleService interface {
	Create(dbc dbctx.Context, in JobExamRuleInput) (*types.ExamRuleByJob, error)
	List(dbc dbctx.Context, filter repos.JobExamRuleFilter) ([]*types.ExamRuleByJob, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByJob, error)
	Update(dbc dbctx.Context, id uuid.UUID, patch JobExamRulePatch) (*types.ExamRuleByJob, error)
	Remove(dbc dbctx.Context, id uuid.UUID) error
	ListForJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.ExamRuleByJob, error)
}

type jobExamRuleService struct {
	db           *gorm.DB
	log          *logger.Logger
	rules        repos.JobExamRuleRepo
	jobs         repos.JobRepo
	exams        repos.ExaminationRepo
	requirements repos.PCMSORequirementRepo
}

func NewJobExamRuleService(
	db *gorm.DB,
	baseLog *logger.Logger,
	rules repos.JobExamRuleRepo,
	jobs repos.JobRepo,
	exams repos.ExaminationRepo,
	requirements repos.PCMSORequirementRepo,
) JobExamRuleService {
	return &jobExamRuleService{
		db:           db,
		log:          baseLog.With("service", "JobExamRuleService"),
		rules:        rules,
		jobs:         jobs,
		exams:        exams,
		requirements: requirements,
	}
}

func (s *jobExamRuleService) Create(dbc dbctx.Context, in JobExamRuleInput) (*types.ExamRuleByJob, error) {
	job, err := s.jobs.GetByID(dbc, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, apierr.NotFound("job_not_found", "job %s not found", in.JobID)
	}
	exam, err := s.exams.GetByID(dbc, in.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get examination: %w", err)
	}
	if exam == nil {
		return nil, apierr.NotFound("examination_not_found", "examination %s not found", in.ExamID)
	}
	existing, err := s.rules.GetByJobAndExam(dbc, in.JobID, in.ExamID)
	if err != nil {
		return nil, fmt.Errorf("lookup job exam rule: %w", err)
	}
	if existing != nil {
		return nil, duplicateJobRule(job.Title, exam.Name)
	}
	fields, err := in.fields()
	if err != nil {
		return nil, err
	}
	row := &types.ExamRuleByJob{JobID: in.JobID, ExamID: in.ExamID, RuleFields: fields, OverrideRiskRules: in.OverrideRiskRules}
	if err := s.rules.Create(dbc, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, duplicateJobRule(job.Title, exam.Name)
		}
		return nil, fmt.Errorf("create job exam rule: %w", err)
	}
	s.log.Info("job exam rule created", "rule_id", row.ID, "job_id", row.JobID, "exam_id", row.ExamID, "override", row.OverrideRiskRules)
	return s.Get(dbc, row.ID)
}

func duplicateJobRule(job, exam string) error {
	return apierr.Conflict("job_exam_rule_exists", "a rule linking job %q to exam %q already exists; update it instead", job, exam)
}

func (s *jobExamRuleService) List(dbc dbctx.Context, filter repos.JobExamRuleFilter) ([]*types.ExamRuleByJob, error) {
	if filter.PeriodicityType != "" && !filter.PeriodicityType.Valid() {
		return nil, apierr.Validation("invalid_periodicity_type", "invalid periodicity type %q", filter.PeriodicityType)
	}
	return s.rules.List(dbc, filter)
}

func (s *jobExamRuleService) Get(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByJob, error) {
	row, err := s.rules.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("get job exam rule: %w", err)
	}
	if row == nil {
		return nil, apierr.NotFound("job_exam_rule_not_found", "job exam rule %s not found", id)
	}
	return row, nil
}

func (s *jobExamRuleService) Update(dbc dbctx.Context, id uuid.UUID, patch JobExamRulePatch) (*types.ExamRuleByJob, error) {
	current, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	updates, err := patch.updates(current.RuleFields)
	if err != nil {
		return nil, err
	}
	setBool(updates, "override_risk_rules", patch.OverrideRiskRules)
	if patch.deactivates(current.RuleFields) {
		if err := ensureRuleNotPinned(dbc, s.requirements, id); err != nil {
			return nil, err
		}
	}
	if err := s.rules.UpdateFields(dbc, id, updates); err != nil {
		return nil, fmt.Errorf("update job exam rule: %w", err)
	}
	return s.Get(dbc, id)
}

func (s *jobExamRuleService) Remove(dbc dbctx.Context, id uuid.UUID) error {
	current, err := s.Get(dbc, id)
	if err != nil {
		return err
	}
	if err := ensureRuleNotPinned(dbc, s.requirements, id); err != nil {
		return err
	}
	if !current.Active {
		return nil
	}
	if err := s.rules.UpdateFields(dbc, id, map[string]interface{}{"active": false}); err != nil {
		return fmt.Errorf("deactivate job exam rule: %w", err)
	}
	s.log.Info("job exam rule removed", "rule_id", id)
	return nil
}

func (s *jobExamRuleService) ListForJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.ExamRuleByJob, error) {
	job, err := s.jobs.GetByID(dbc, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if job == nil {
		return nil, apierr.NotFound("job_not_found", "job %s not found", jobID)
	}
	active := true
	return s.rules.List(dbc, repos.JobExamRuleFilter{JobID: &jobID, Active: &active})
}
