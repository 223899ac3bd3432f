package catalog

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type JobRepo interface {
	Create(dbc dbctx.Context, job *types.Job) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error)
	// ListActiveByCompany returns active jobs with their risk associations
	// (and each association's risk) preloaded, ordered by title.
	ListActiveByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*types.Job, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) Create(dbc dbctx.Context, job *types.Job) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit("Risks").Create(job).Error
}

// GetByID preloads the job's risk associations.
func (r *jobRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var job types.Job
	err := transaction.WithContext(dbc.Ctx).
		Preload("Risks").
		Preload("Risks.Risk").
		Where("id = ?", id).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListActiveByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*types.Job, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Job
	err := transaction.WithContext(dbc.Ctx).
		Preload("Risks").
		Preload("Risks.Risk").
		Where("company_id = ? AND active = ?", companyID, true).
		Order("title ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

type JobRiskRepo interface {
	Create(dbc dbctx.Context, rows []*types.JobRisk) error
	ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.JobRisk, error)
}

type jobRiskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRiskRepo(db *gorm.DB, baseLog *logger.Logger) JobRiskRepo {
	return &jobRiskRepo{db: db, log: baseLog.With("repo", "JobRiskRepo")}
}

func (r *jobRiskRepo) Create(dbc dbctx.Context, rows []*types.JobRisk) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Omit("Risk").Create(&rows).Error
}

func (r *jobRiskRepo) ListByJob(dbc dbctx.Context, jobID uuid.UUID) ([]*types.JobRisk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.JobRisk
	err := transaction.WithContext(dbc.Ctx).
		Preload("Risk").
		Where("job_id = ?", jobID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
