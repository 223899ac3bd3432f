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

type RiskExamRuleFilter struct {
	RiskID          *uuid.UUID
	ExamID          *uuid.UUID
	Active          *bool
	PeriodicityType periodicity.Type
	RiskType        types.RiskType
}

type RiskExamRuleRepo interface {
	Create(dbc dbctx.Context, rule *types.ExamRuleByRisk) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByRisk, error)
	GetByRiskAndExam(dbc dbctx.Context, riskID, examID uuid.UUID) (*types.ExamRuleByRisk, error)
	// List orders by risk name, then exam name.
	List(dbc dbctx.Context, filter RiskExamRuleFilter) ([]*types.ExamRuleByRisk, error)
	ListActiveByRiskIDs(dbc dbctx.Context, riskIDs []uuid.UUID) ([]*types.ExamRuleByRisk, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type riskExamRuleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRiskExamRuleRepo(db *gorm.DB, baseLog *logger.Logger) RiskExamRuleRepo {
	return &riskExamRuleRepo{db: db, log: baseLog.With("repo", "RiskExamRuleRepo")}
}

func (r *riskExamRuleRepo) Create(dbc dbctx.Context, rule *types.ExamRuleByRisk) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Omit("Risk", "Exam").Create(rule).Error
}

func (r *riskExamRuleRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByRisk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ExamRuleByRisk
	err := transaction.WithContext(dbc.Ctx).
		Preload("Risk").
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

func (r *riskExamRuleRepo) GetByRiskAndExam(dbc dbctx.Context, riskID, examID uuid.UUID) (*types.ExamRuleByRisk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.ExamRuleByRisk
	err := transaction.WithContext(dbc.Ctx).
		Where("risk_id = ? AND exam_id = ?", riskID, examID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *riskExamRuleRepo) List(dbc dbctx.Context, filter RiskExamRuleFilter) ([]*types.ExamRuleByRisk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.ExamRuleByRisk{}).
		Joins("JOIN risk ON risk.id = exam_rule_by_risk.risk_id").
		Joins("JOIN examination ON examination.id = exam_rule_by_risk.exam_id").
		Preload("Risk").
		Preload("Exam")
	if filter.RiskID != nil {
		q = q.Where("exam_rule_by_risk.risk_id = ?", *filter.RiskID)
	}
	if filter.ExamID != nil {
		q = q.Where("exam_rule_by_risk.exam_id = ?", *filter.ExamID)
	}
	if filter.Active != nil {
		q = q.Where("exam_rule_by_risk.active = ?", *filter.Active)
	}
	if filter.PeriodicityType != "" {
		q = q.Where("exam_rule_by_risk.periodicity_type = ?", filter.PeriodicityType)
	}
	if filter.RiskType != "" {
		q = q.Where("risk.type = ?", filter.RiskType)
	}
	var out []*types.ExamRuleByRisk
	if err := q.Order("risk.name ASC, examination.name ASC, exam_rule_by_risk.id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *riskExamRuleRepo) ListActiveByRiskIDs(dbc dbctx.Context, riskIDs []uuid.UUID) ([]*types.ExamRuleByRisk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ExamRuleByRisk
	if len(riskIDs) == 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Preload("Risk").
		Preload("Exam").
		Where("risk_id IN ? AND active = ?", riskIDs, true).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *riskExamRuleRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
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
		Model(&types.ExamRuleByRisk{}).
		Where("id = ?", id).
		Updates(updates).Error
}
