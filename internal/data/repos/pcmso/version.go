package pcmso

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type VersionRepo interface {
	Create(dbc dbctx.Context, version *types.PCMSOVersion) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PCMSOVersion, error)
	// ListByCompany orders by version number, newest first.
	ListByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*types.PCMSOVersion, error)
	MaxVersionNumber(dbc dbctx.Context, companyID uuid.UUID) (int, error)
	LatestSigned(dbc dbctx.Context, companyID uuid.UUID) (*types.PCMSOVersion, error)
	// UpdateFieldsIfStatus applies updates only while the row is in one of
	// the allowed statuses. It reports whether a row was changed.
	UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []pcmso.Status, updates map[string]interface{}) (bool, error)
	// MarkOutdatedBefore flips every SIGNED version of the company numbered
	// below versionNumber to OUTDATED and returns how many rows moved.
	MarkOutdatedBefore(dbc dbctx.Context, companyID uuid.UUID, versionNumber int) (int64, error)
}

type versionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVersionRepo(db *gorm.DB, baseLog *logger.Logger) VersionRepo {
	return &versionRepo{db: db, log: baseLog.With("repo", "PCMSOVersionRepo")}
}

func (r *versionRepo) Create(dbc dbctx.Context, version *types.PCMSOVersion) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(version).Error
}

func (r *versionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PCMSOVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var v types.PCMSOVersion
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *versionRepo) ListByCompany(dbc dbctx.Context, companyID uuid.UUID) ([]*types.PCMSOVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PCMSOVersion
	err := transaction.WithContext(dbc.Ctx).
		Omit("content_html").
		Where("company_id = ?", companyID).
		Order("version_number DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *versionRepo) MaxVersionNumber(dbc dbctx.Context, companyID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var max *int
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.PCMSOVersion{}).
		Where("company_id = ?", companyID).
		Select("MAX(version_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *versionRepo) LatestSigned(dbc dbctx.Context, companyID uuid.UUID) (*types.PCMSOVersion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var v types.PCMSOVersion
	err := transaction.WithContext(dbc.Ctx).
		Where("company_id = ? AND status = ?", companyID, pcmso.StatusSigned).
		Order("version_number DESC").
		Limit(1).
		Find(&v).Error
	if err != nil {
		return nil, err
	}
	if v.ID == uuid.Nil {
		return nil, nil
	}
	return &v, nil
}

func (r *versionRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uuid.UUID, allowed []pcmso.Status, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(allowed) == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.PCMSOVersion{}).
		Where("id = ? AND status IN ?", id, allowed).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *versionRepo) MarkOutdatedBefore(dbc dbctx.Context, companyID uuid.UUID, versionNumber int) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.PCMSOVersion{}).
		Where("company_id = ? AND status = ? AND version_number < ?", companyID, pcmso.StatusSigned, versionNumber).
		Updates(map[string]interface{}{
			"status":     pcmso.StatusOutdated,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
