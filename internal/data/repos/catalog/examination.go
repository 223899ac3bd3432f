package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type ExaminationFilter struct {
	Active   *bool
	Category types.ExamCategory
	Search   string
}

type ExaminationRepo interface {
	Create(dbc dbctx.Context, exam *types.Examination) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Examination, error)
	GetByName(dbc dbctx.Context, name string) (*types.Examination, error)
	List(dbc dbctx.Context, filter ExaminationFilter) ([]*types.Examination, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type examinationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExaminationRepo(db *gorm.DB, baseLog *logger.Logger) ExaminationRepo {
	return &examinationRepo{db: db, log: baseLog.With("repo", "ExaminationRepo")}
}

func (r *examinationRepo) Create(dbc dbctx.Context, exam *types.Examination) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(exam).Error
}

func (r *examinationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Examination, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Examination
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *examinationRepo) GetByName(dbc dbctx.Context, name string) (*types.Examination, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Examination
	err := transaction.WithContext(dbc.Ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *examinationRepo) List(dbc dbctx.Context, filter ExaminationFilter) ([]*types.Examination, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.Examination{})
	if filter.Active != nil {
		q = q.Where("active = ?", *filter.Active)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	var out []*types.Examination
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *examinationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Examination{}).
		Where("id = ?", id).
		Updates(updates).Error
}
