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

type RiskCategoryRepo interface {
	Create(dbc dbctx.Context, category *types.RiskCategory) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RiskCategory, error)
	GetByName(dbc dbctx.Context, name string) (*types.RiskCategory, error)
	List(dbc dbctx.Context, activeOnly bool) ([]*types.RiskCategory, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type riskCategoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRiskCategoryRepo(db *gorm.DB, baseLog *logger.Logger) RiskCategoryRepo {
	return &riskCategoryRepo{db: db, log: baseLog.With("repo", "RiskCategoryRepo")}
}

func (r *riskCategoryRepo) Create(dbc dbctx.Context, category *types.RiskCategory) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(category).Error
}

func (r *riskCategoryRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.RiskCategory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.RiskCategory
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *riskCategoryRepo) GetByName(dbc dbctx.Context, name string) (*types.RiskCategory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.RiskCategory
	err := transaction.WithContext(dbc.Ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *riskCategoryRepo) List(dbc dbctx.Context, activeOnly bool) ([]*types.RiskCategory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.RiskCategory
	q := transaction.WithContext(dbc.Ctx).Model(&types.RiskCategory{})
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *riskCategoryRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.RiskCategory{}).
		Where("id = ?", id).
		Updates(updates).Error
}

type RiskFilter struct {
	Active     *bool
	Type       types.RiskType
	CategoryID *uuid.UUID
	Search     string
}

type RiskRepo interface {
	Create(dbc dbctx.Context, risk *types.Risk) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Risk, error)
	GetByName(dbc dbctx.Context, name string) (*types.Risk, error)
	GetByCode(dbc dbctx.Context, code string) (*types.Risk, error)
	List(dbc dbctx.Context, filter RiskFilter) ([]*types.Risk, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type riskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRiskRepo(db *gorm.DB, baseLog *logger.Logger) RiskRepo {
	return &riskRepo{db: db, log: baseLog.With("repo", "RiskRepo")}
}

func (r *riskRepo) Create(dbc dbctx.Context, risk *types.Risk) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit("Category").Create(risk).Error
}

func (r *riskRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Risk, error) {
	return r.first(dbc, "risk.id = ?", id)
}

func (r *riskRepo) GetByName(dbc dbctx.Context, name string) (*types.Risk, error) {
	return r.first(dbc, "risk.name = ?", name)
}

func (r *riskRepo) GetByCode(dbc dbctx.Context, code string) (*types.Risk, error) {
	return r.first(dbc, "risk.code = ?", code)
}

func (r *riskRepo) first(dbc dbctx.Context, query string, arg interface{}) (*types.Risk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.Risk
	err := transaction.WithContext(dbc.Ctx).
		Preload("Category").
		Where(query, arg).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *riskRepo) List(dbc dbctx.Context, filter RiskFilter) ([]*types.Risk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).Model(&types.Risk{}).Preload("Category")
	if filter.Active != nil {
		q = q.Where("active = ?", *filter.Active)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.CategoryID != nil {
		q = q.Where("category_id = ?", *filter.CategoryID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(code, '')) LIKE ?", like, like)
	}
	var out []*types.Risk
	if err := q.Order("name ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *riskRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.Risk{}).
		Where("id = ?", id).
		Updates(updates).Error
}
