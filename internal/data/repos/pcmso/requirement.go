package pcmso

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type RequirementRepo interface {
	CreateMany(dbc dbctx.Context, rows []*types.PCMSOExamRequirement) error
	// ListByVersion orders by job title, exam name.
	ListByVersion(dbc dbctx.Context, versionID uuid.UUID) ([]*types.PCMSOExamRequirement, error)
	// RuleReferenced reports whether a rule contributed to a requirement row
	// of a version whose status is one of statuses.
	RuleReferenced(dbc dbctx.Context, ruleID uuid.UUID, statuses []pcmso.Status) (bool, error)
}

type requirementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRequirementRepo(db *gorm.DB, baseLog *logger.Logger) RequirementRepo {
	return &requirementRepo{db: db, log: baseLog.With("repo", "PCMSORequirementRepo")}
}

const requirementBatchSize = 200

func (r *requirementRepo) CreateMany(dbc dbctx.Context, rows []*types.PCMSOExamRequirement) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).CreateInBatches(rows, requirementBatchSize).Error
}

func (r *requirementRepo) ListByVersion(dbc dbctx.Context, versionID uuid.UUID) ([]*types.PCMSOExamRequirement, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PCMSOExamRequirement
	err := transaction.WithContext(dbc.Ctx).
		Where("version_id = ?", versionID).
		Order("job_title ASC, exam_name ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *requirementRepo) RuleReferenced(dbc dbctx.Context, ruleID uuid.UUID, statuses []pcmso.Status) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if ruleID == uuid.Nil || len(statuses) == 0 {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.PCMSOExamRequirement{}).
		Joins("JOIN pcmso_version ON pcmso_version.id = pcmso_exam_requirement.version_id").
		Where("(pcmso_exam_requirement.source_rule_id = ? OR CAST(pcmso_exam_requirement.provenance AS TEXT) LIKE ?)", ruleID, "%"+ruleID.String()+"%").
		Where("pcmso_version.status IN ?", statuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
