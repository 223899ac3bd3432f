package catalog

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type CompanyRepo interface {
	Create(dbc dbctx.Context, company *types.Company) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Company, error)
}

type companyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompanyRepo(db *gorm.DB, baseLog *logger.Logger) CompanyRepo {
	return &companyRepo{db: db, log: baseLog.With("repo", "CompanyRepo")}
}

func (r *companyRepo) Create(dbc dbctx.Context, company *types.Company) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if company == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(company).Error
}

// GetByID returns nil, nil when the company does not exist.
func (r *companyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Company, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var company types.Company
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &company, nil
}
