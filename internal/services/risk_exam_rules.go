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

type RiskExamRuleInput struct {
	RiskID uuid.UUID `json:"risk_id"`
	ExamID uuid.UUID `json:"exam_id"`
	RuleInput
}

type RiskExamRuleService interface {
	Create(dbc dbctx.Context, in RiskExamRuleInput) (*types.ExamRuleByRisk, error)
	List(dbc dbctx.Context, filter repos.RiskExamRuleFilter) ([]*types.ExamRuleByRisk, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByRisk, error)
	Update(dbc dbctx.Context, id uuid.UUID, patch RulePatch) (*types.ExamRuleByRisk, error)
	// Remove deactivates the rule. Rules that materialized into a live
	// version cannot be removed.
	Remove(dbc dbctx.Context, id uuid.UUID) error
	ListForRisk(dbc dbctx.Context, riskID uuid.UUID) ([]*types.ExamRuleByRisk, error)
	SuggestExamsForRisk(dbc dbctx.Context, riskID uuid.UUID) ([]ExamSuggestion, error)
}

type riskExamRuleService struct {
	db           *gorm.DB
	log          *logger.Logger
	rules        repos.RiskExamRuleRepo
	risks        repos.RiskRepo
	exams        repos.ExaminationRepo
	requirements repos.PCMSORequirementRepo
}

func NewRiskExamRuleService(
	db *gorm.DB,
	baseLog *logger.Logger,
	rules repos.RiskExamRuleRepo,
	risks repos.RiskRepo,
	exams repos.ExaminationRepo,
	requirements repos.PCMSORequirementRepo,
) RiskExamRuleService {
	return &riskExamRuleService{
		db:           db,
		log:          baseLog.With("service", "RiskExamRuleService"),
		rules:        rules,
		risks:        risks,
		exams:        exams,
		requirements: requirements,
	}
}

func (s *riskExamRuleService) Create(dbc dbctx.Context, in RiskExamRuleInput) (*types.ExamRuleByRisk, error) {
	risk, err := s.risks.GetByID(dbc, in.RiskID)
	if err != nil {
		return nil, fmt.Errorf("get risk: %w", err)
	}
	if risk == nil {
		return nil, apierr.NotFound("risk_not_found", "risk %s not found", in.RiskID)
	}
	exam, err := s.exams.GetByID(dbc, in.ExamID)
	if err != nil {
		return nil, fmt.Errorf("get examination: %w", err)
	}
	if exam == nil {
		return nil, apierr.NotFound("examination_not_found", "examination %s not found", in.ExamID)
	}
	existing, err := s.rules.GetByRiskAndExam(dbc, in.RiskID, in.ExamID)
	if err != nil {
		return nil, fmt.Errorf("lookup risk exam rule: %w", err)
	}
	if existing != nil {
		return nil, duplicateRiskRule(risk.Name, exam.Name)
	}
	fields, err := in.fields()
	if err != nil {
		return nil, err
	}
	row := &types.ExamRuleByRisk{RiskID: in.RiskID, ExamID: in.ExamID, RuleFields: fields}
	if err := s.rules.Create(dbc, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, duplicateRiskRule(risk.Name, exam.Name)
		}
		return nil, fmt.Errorf("create risk exam rule: %w", err)
	}
	s.log.Info("risk exam rule created", "rule_id", row.ID, "risk_id", row.RiskID, "exam_id", row.ExamID, "periodicity_type", row.PeriodicityType)
	return s.Get(dbc, row.ID)
}

func duplicateRiskRule(risk, exam string) error {
	return apierr.Conflict("risk_exam_rule_exists", "a rule linking risk %q to exam %q already exists; update it instead", risk, exam)
}

func (s *riskExamRuleService) List(dbc dbctx.Context, filter repos.RiskExamRuleFilter) ([]*types.ExamRuleByRisk, error) {
	if filter.PeriodicityType != "" && !filter.PeriodicityType.Valid() {
		return nil, apierr.Validation("invalid_periodicity_type", "invalid periodicity type %q", filter.PeriodicityType)
	}
	if filter.RiskType != "" && !filter.RiskType.Valid() {
		return nil, apierr.Validation("validation_risk_type", "invalid risk type %q", filter.RiskType)
	}
	return s.rules.List(dbc, filter)
}

func (s *riskExamRuleService) Get(dbc dbctx.Context, id uuid.UUID) (*types.ExamRuleByRisk, error) {
	row, err := s.rules.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("get risk exam rule: %w", err)
	}
	if row == nil {
		return nil, apierr.NotFound("risk_exam_rule_not_found", "risk exam rule %s not found", id)
	}
	return row, nil
}

func (s *riskExamRuleService) Update(dbc dbctx.Context, id uuid.UUID, patch RulePatch) (*types.ExamRuleByRisk, error) {
	current, err := s.Get(dbc, id)
	if err != nil {
		return nil, err
	}
	updates, err := patch.updates(current.RuleFields)
	if err != nil {
		return nil, err
	}
	if patch.deactivates(current.RuleFields) {
		if err := ensureRuleNotPinned(dbc, s.requirements, id); err != nil {
			return nil, err
		}
	}
	if err := s.rules.UpdateFields(dbc, id, updates); err != nil {
		return nil, fmt.Errorf("update risk exam rule: %w", err)
	}
	return s.Get(dbc, id)
}

func (s *riskExamRuleService) Remove(dbc dbctx.Context, id uuid.UUID) error {
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
		return fmt.Errorf("deactivate risk exam rule: %w", err)
	}
	s.log.Info("risk exam rule removed", "rule_id", id)
	return nil
}

func (s *riskExamRuleService) ListForRisk(dbc dbctx.Context, riskID uuid.UUID) ([]*types.ExamRuleByRisk, error) {
	risk, err := s.risks.GetByID(dbc, riskID)
	if err != nil {
		return nil, fmt.Errorf("get risk: %w", err)
	}
	if risk == nil {
		return nil, apierr.NotFound("risk_not_found", "risk %s not found", riskID)
	}
	active := true
	return s.rules.List(dbc, repos.RiskExamRuleFilter{RiskID: &riskID, Active: &active})
}

func (s *riskExamRuleService) SuggestExamsForRisk(dbc dbctx.Context, riskID uuid.UUID) ([]ExamSuggestion, error) {
	risk, err := s.risks.GetByID(dbc, riskID)
	if err != nil {
		return nil, fmt.Errorf("get risk: %w", err)
	}
	if risk == nil {
		return nil, apierr.NotFound("risk_not_found", "risk %s not found", riskID)
	}
	linked, err := s.rules.List(dbc, repos.RiskExamRuleFilter{RiskID: &riskID})
	if err != nil {
		return nil, fmt.Errorf("list risk exam rules: %w", err)
	}
	skip := make(map[uuid.UUID]bool, len(linked))
	for _, r := range linked {
		skip[r.ExamID] = true
	}
	active := true
	exams, err := s.exams.List(dbc, repos.ExaminationFilter{Active: &active})
	if err != nil {
		return nil, fmt.Errorf("list examinations: %w", err)
	}
	return suggestExams(risk, exams, skip), nil
}

// ensureRuleNotPinned rejects changes that would pull a rule out from under a live version.
func ensureRuleNotPinned(dbc dbctx.Context, requirements repos.PCMSORequirementRepo, ruleID uuid.UUID) error {
	used, err := requirements.RuleReferenced(dbc, ruleID, pinningStatuses)
	if err != nil {
		return fmt.Errorf("check rule usage: %w", err)
	}
	if used {
		return apierr.Conflict("rule_in_use", "rule %s is referenced by a draft, under-review or signed PCMSO version", ruleID)
	}
	return nil
}
