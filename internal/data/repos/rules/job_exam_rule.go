package rules

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type JobExamRuleFilter struct {
	JobID             *uuid.UUID
	ExamID            *uuid.UUID
	Active            *bool
	PeriodicityType   periodicity.Type
	OverrideRiskRules *bool
}

type JobExamRuleRepo interface {
	Create(dbc dbctx.Context, rule *types.ExamRuleByJob) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByJob, error)
	GetByJobAndExam(dbc dbctx.Context, jobID, examID uuid.UUID) (*types.ExamRuleByJob, error)
	// List orders by job title, then exam name.
	List(dbc dbctx.Context, filter JobExamRuleFilter) ([]*types.ExamRuleByJob, error)
	ListActiveByJobIDs(dbc dbctx.Context, jobIDs []uuid.UUID) ([]*types.ExamRuleByJob, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type jobExamRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobExamRuleRepo(db *gorm.DB, baseLog *logger.Logger) JobExamRuleRepo {
	return &jobExamRuleRepo{db: db, log: baseLog.With("repo", "JobExamRuleRepo")}
}

func (r *jobExamRuleRepo) Create(dbc dbctx.Context, rule *types.ExamRuleByJob) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit("Job", "Exam").Create(rule).Error
}

func (r *jobExamRuleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ExamRuleByJob
	err := transaction.WithContext(dbc.Ctx).
		Preload("Job").
		Preload("Exam").
		Where("id = ?", id).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *jobExamRuleRepo) GetByJobAndExam(dbc dbctx.Context, jobID, examID uuid.UUID) (*types.ExamRuleByJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ExamRuleByJob
	err := transaction.WithContext(dbc.Ctx).
		Where("job_id = ? AND exam_id = ?", jobID, examID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *jobExamRuleRepo) List(dbc dbctx.Context, filter JobExamRuleFilter) ([]*types.ExamRuleByJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.ExamRuleByJob{}).
		Joins("JOIN job ON job.id = exam_rule_by_job.job_id").
		Joins("JOIN examination ON examination.id = exam_rule_by_job.exam_id").
		Preload("Job").
		Preload("Exam")
	if filter.JobID != nil {
		q = q.Where("exam_rule_by_job.job_id = ?", *filter.JobID)
	}
	if filter.ExamID != nil {
		q = q.Where("exam_rule_by_job.exam_id = ?", *filter.ExamID)
	}
	if filter.Active != nil {
		q = q.Where("exam_rule_by_job.active = ?", *filter.Active)
	}
	if filter.PeriodicityType != "" {
		q = q.Where("exam_rule_by_job.periodicity_type = ?", filter.PeriodicityType)
	}
	if filter.OverrideRiskRules != nil {
		q = q.Where("exam_rule_by_job.override_risk_rules = ?", *filter.OverrideRiskRules)
	}
	var out []*types.ExamRuleByJob
	if err := q.Order("job.title ASC, examination.name ASC, exam_rule_by_job.id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobExamRuleRepo) ListActiveByJobIDs(dbc dbctx.Context, jobIDs []uuid.UUID) ([]*types.ExamRuleByJob, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ExamRuleByJob
	if len(jobIDs) == 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Preload("Exam").
		Where("job_id IN ? AND active = ?", jobIDs, true).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *jobExamRuleRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.ExamRuleByJob{}).
		Where("id = ?", id).
		Updates(updates).Error
}
