package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/db"
	"github.com/occhealth/pcmso-backend/internal/data/repos"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type RiskCategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
}

type RiskCategoryPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Icon        *string `json:"icon"`
	Active      *bool   `json:"active"`
}

type RiskInput struct {
	CategoryID      uuid.UUID      `json:"category_id"`
	Type            types.RiskType `json:"type"`
	Code            *string        `json:"code"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	SourceGenerator string         `json:"source_generator"`
	HealthEffects   string         `json:"health_effects"`
	ControlMeasures string         `json:"control_measures"`
	AllowsIntensity bool           `json:"allows_intensity"`
}

type RiskPatch struct {
	CategoryID      *uuid.UUID      `json:"category_id"`
	Type            *types.RiskType `json:"type"`
	Code            *string         `json:"code"`
	Name            *string         `json:"name"`
	Description     *string         `json:"description"`
	SourceGenerator *string         `json:"source_generator"`
	HealthEffects   *string         `json:"health_effects"`
	ControlMeasures *string         `json:"control_measures"`
	AllowsIntensity *bool           `json:"allows_intensity"`
	Active          *bool           `json:"active"`
}

type ExaminationInput struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	Category         types.ExamCategory `json:"category"`
	RegulatoryCodes  []string           `json:"regulatory_codes"`
	IncludeInASO     *bool              `json:"include_in_aso"`
	IncludeInReports *bool              `json:"include_in_reports"`
}

type ExaminationPatch struct {
	Name             *string             `json:"name"`
	Description      *string             `json:"description"`
	Category         *types.ExamCategory `json:"category"`
	RegulatoryCodes  *[]string           `json:"regulatory_codes"`
	IncludeInASO     *bool               `json:"include_in_aso"`
	IncludeInReports *bool               `json:"include_in_reports"`
	Active           *bool               `json:"active"`
}

// CatalogService manages the hazard and examination catalog. Entries are
// never hard deleted; Deactivate* flips active to false.
type CatalogService interface {
	CreateRiskCategory(dbc dbctx.Context, in RiskCategoryInput) (*types.RiskCategory, error)
	ListRiskCategories(dbc dbctx.Context, activeOnly bool) ([]*types.RiskCategory, error)
	GetRiskCategory(dbc dbctx.Context, id uuid.UUID) (*types.RiskCategory, error)
	UpdateRiskCategory(dbc dbctx.Context, id uuid.UUID, patch RiskCategoryPatch) (*types.RiskCategory, error)
	DeactivateRiskCategory(dbc dbctx.Context, id uuid.UUID) (*types.RiskCategory, error)

	CreateRisk(dbc dbctx.Context, in RiskInput) (*types.Risk, error)
	ListRisks(dbc dbctx.Context, filter repos.RiskFilter) ([]*types.Risk, error)
	GetRisk(dbc dbctx.Context, id uuid.UUID) (*types.Risk, error)
	UpdateRisk(dbc dbctx.Context, id uuid.UUID, patch RiskPatch) (*types.Risk, error)
	DeactivateRisk(dbc dbctx.Context, id uuid.UUID) (*types.Risk, error)

	CreateExamination(dbc dbctx.Context, in ExaminationInput) (*types.Examination, error)
	ListExaminations(dbc dbctx.Context, filter repos.ExaminationFilter) ([]*types.Examination, error)
	GetExamination(dbc dbctx.Context, id uuid.UUID) (*types.Examination, error)
	UpdateExamination(dbc dbctx.Context, id uuid.UUID, patch ExaminationPatch) (*types.Examination, error)
	DeactivateExamination(dbc dbctx.Context, id uuid.UUID) (*types.Examination, error)
}

type catalogService struct {
	db         *gorm.DB
	log        *logger.Logger
	categories repos.RiskCategoryRepo
	risks      repos.RiskRepo
	exams      repos.ExaminationRepo
}

func NewCatalogService(
	db *gorm.DB,
	baseLog *logger.Logger,
	categories repos.RiskCategoryRepo,
	risks repos.RiskRepo,
	exams repos.ExaminationRepo,
) CatalogService {
	return &catalogService{
		db:         db,
		log:        baseLog.With("service", "CatalogService"),
		categories: categories,
		risks:      risks,
		exams:      exams,
	}
}

// ---- risk categories ----

func (s *catalogService) CreateRiskCategory(dbc dbctx.Context, in RiskCategoryInput) (*types.RiskCategory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Validation("validation_name_required", "name is required")
	}
	existing, err := s.categories.GetByName(dbc, name)
	if err != nil {
		return nil, fmt.Errorf("lookup risk category: %w", err)
	}
	if existing != nil {
		return nil, apierr.Conflict("risk_category_exists", "risk category %q already exists", name)
	}
	row := &types.RiskCategory{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       strings.TrimSpace(in.Color),
		Icon:        strings.TrimSpace(in.Icon),
		Active:      true,
	}
	if err := s.categories.Create(dbc, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("risk_category_exists", "risk category %q already exists", name)
		}
		return nil, fmt.Errorf("create risk category: %w", err)
	}
	return row, nil
}

func (s *catalogService) ListRiskCategories(dbc dbctx.Context, activeOnly bool) ([]*types.RiskCategory, error) {
	return s.categories.List(dbc, activeOnly)
}

func (s *catalogService) GetRiskCategory(dbc dbctx.Context, id uuid.UUID) (*types.RiskCategory, error) {
	row, err := s.categories.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("get risk category: %w", err)
	}
	if row == nil {
		return nil, apierr.NotFound("risk_category_not_found", "risk category %s not found", id)
	}
	return row, nil
}

func (s *catalogService) UpdateRiskCategory(dbc dbctx.Context, id uuid.UUID, patch RiskCategoryPatch) (*types.RiskCategory, error) {
	current, err := s.GetRiskCategory(dbc, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apierr.Validation("validation_name_required", "name is required")
		}
		if name != current.Name {
			other, err := s.categories.GetByName(dbc, name)
			if err != nil {
				return nil, fmt.Errorf("lookup risk category: %w", err)
			}
			if other != nil {
				return nil, apierr.Conflict("risk_category_exists", "risk category %q already exists", name)
			}
		}
		updates["name"] = name
	}
	setString(updates, "description", patch.Description)
	setString(updates, "color", patch.Color)
	setString(updates, "icon", patch.Icon)
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}
	if err := s.categories.UpdateFields(dbc, id, updates); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("risk_category_exists", "risk category name already exists")
		}
		return nil, fmt.Errorf("update risk category: %w", err)
	}
	return s.GetRiskCategory(dbc, id)
}

func (s *catalogService) DeactivateRiskCategory(dbc dbctx.Context, id uuid.UUID) (*types.RiskCategory, error) {
	inactive := false
	return s.UpdateRiskCategory(dbc, id, RiskCategoryPatch{Active: &inactive})
}

// ---- risks ----

func (s *catalogService) CreateRisk(dbc dbctx.Context, in RiskInput) (*types.Risk, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Validation("validation_name_required", "name is required")
	}
	if !in.Type.Valid() {
		return nil, apierr.Validation("validation_risk_type", "invalid risk type %q", in.Type)
	}
	if _, err := s.GetRiskCategory(dbc, in.CategoryID); err != nil {
		return nil, err
	}
	code := trimmedPtr(in.Code)
	if err := s.checkRiskUnique(dbc, uuid.Nil, name, code); err != nil {
		return nil, err
	}
	row := &types.Risk{
		CategoryID:      in.CategoryID,
		Type:            in.Type,
		Code:            code,
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		SourceGenerator: strings.TrimSpace(in.SourceGenerator),
		HealthEffects:   strings.TrimSpace(in.HealthEffects),
		ControlMeasures: strings.TrimSpace(in.ControlMeasures),
		AllowsIntensity: in.AllowsIntensity,
		Active:          true,
	}
	if err := s.risks.Create(dbc, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("risk_exists", "risk %q already exists", name)
		}
		return nil, fmt.Errorf("create risk: %w", err)
	}
	s.log.Info("risk created", "risk_id", row.ID, "type", row.Type)
	return s.GetRisk(dbc, row.ID)
}

func (s *catalogService) checkRiskUnique(dbc dbctx.Context, self uuid.UUID, name string, code *string) error {
	if name != "" {
		other, err := s.risks.GetByName(dbc, name)
		if err != nil {
			return fmt.Errorf("lookup risk: %w", err)
		}
		if other != nil && other.ID != self {
			return apierr.Conflict("risk_exists", "risk %q already exists", name)
		}
	}
	if code != nil {
		other, err := s.risks.GetByCode(dbc, *code)
		if err != nil {
			return fmt.Errorf("lookup risk: %w", err)
		}
		if other != nil && other.ID != self {
			return apierr.Conflict("risk_code_exists", "risk code %q already in use", *code)
		}
	}
	return nil
}

func (s *catalogService) ListRisks(dbc dbctx.Context, filter repos.RiskFilter) ([]*types.Risk, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, apierr.Validation("validation_risk_type", "invalid risk type %q", filter.Type)
	}
	return s.risks.List(dbc, filter)
}

func (s *catalogService) GetRisk(dbc dbctx.Context, id uuid.UUID) (*types.Risk, error) {
	row, err := s.risks.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("get risk: %w", err)
	}
	if row == nil {
		return nil, apierr.NotFound("risk_not_found", "risk %s not found", id)
	}
	return row, nil
}

func (s *catalogService) UpdateRisk(dbc dbctx.Context, id uuid.UUID, patch RiskPatch) (*types.Risk, error) {
	if _, err := s.GetRisk(dbc, id); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	var name string
	if patch.Name != nil {
		name = strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apierr.Validation("validation_name_required", "name is required")
		}
		updates["name"] = name
	}
	code := trimmedPtr(patch.Code)
	if patch.Code != nil {
		// An empty code clears it.
		updates["code"] = code
	}
	if err := s.checkRiskUnique(dbc, id, name, code); err != nil {
		return nil, err
	}
	if patch.Type != nil {
		if !patch.Type.Valid() {
			return nil, apierr.Validation("validation_risk_type", "invalid risk type %q", *patch.Type)
		}
		updates["type"] = *patch.Type
	}
	if patch.CategoryID != nil {
		if _, err := s.GetRiskCategory(dbc, *patch.CategoryID); err != nil {
			return nil, err
		}
		updates["category_id"] = *patch.CategoryID
	}
	setString(updates, "description", patch.Description)
	setString(updates, "source_generator", patch.SourceGenerator)
	setString(updates, "health_effects", patch.HealthEffects)
	setString(updates, "control_measures", patch.ControlMeasures)
	if patch.AllowsIntensity != nil {
		updates["allows_intensity"] = *patch.AllowsIntensity
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}
	if err := s.risks.UpdateFields(dbc, id, updates); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("risk_exists", "risk name or code already exists")
		}
		return nil, fmt.Errorf("update risk: %w", err)
	}
	return s.GetRisk(dbc, id)
}

func (s *catalogService) DeactivateRisk(dbc dbctx.Context, id uuid.UUID) (*types.Risk, error) {
	inactive := false
	return s.UpdateRisk(dbc, id, RiskPatch{Active: &inactive})
}

// ---- examinations ----

func (s *catalogService) CreateExamination(dbc dbctx.Context, in ExaminationInput) (*types.Examination, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.Validation("validation_name_required", "name is required")
	}
	category := in.Category
	if category == "" {
		category = types.ExamComplementary
	}
	if !category.Valid() {
		return nil, apierr.Validation("validation_exam_category", "invalid examination category %q", in.Category)
	}
	existing, err := s.exams.GetByName(dbc, name)
	if err != nil {
		return nil, fmt.Errorf("lookup examination: %w", err)
	}
	if existing != nil {
		return nil, apierr.Conflict("examination_exists", "examination %q already exists", name)
	}
	codes, err := regulatoryCodes(in.RegulatoryCodes)
	if err != nil {
		return nil, err
	}
	row := &types.Examination{
		Name:             name,
		Description:      strings.TrimSpace(in.Description),
		Category:         category,
		RegulatoryCodes:  codes,
		IncludeInASO:     boolOr(in.IncludeInASO, true),
		IncludeInReports: boolOr(in.IncludeInReports, true),
		Active:           true,
	}
	if err := s.exams.Create(dbc, row); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("examination_exists", "examination %q already exists", name)
		}
		return nil, fmt.Errorf("create examination: %w", err)
	}
	return row, nil
}

func (s *catalogService) ListExaminations(dbc dbctx.Context, filter repos.ExaminationFilter) ([]*types.Examination, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, apierr.Validation("validation_exam_category", "invalid examination category %q", filter.Category)
	}
	return s.exams.List(dbc, filter)
}

func (s *catalogService) GetExamination(dbc dbctx.Context, id uuid.UUID) (*types.Examination, error) {
	row, err := s.exams.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("get examination: %w", err)
	}
	if row == nil {
		return nil, apierr.NotFound("examination_not_found", "examination %s not found", id)
	}
	return row, nil
}

func (s *catalogService) UpdateExamination(dbc dbctx.Context, id uuid.UUID, patch ExaminationPatch) (*types.Examination, error) {
	current, err := s.GetExamination(dbc, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apierr.Validation("validation_name_required", "name is required")
		}
		if name != current.Name {
			other, err := s.exams.GetByName(dbc, name)
			if err != nil {
				return nil, fmt.Errorf("lookup examination: %w", err)
			}
			if other != nil {
				return nil, apierr.Conflict("examination_exists", "examination %q already exists", name)
			}
		}
		updates["name"] = name
	}
	if patch.Category != nil {
		if !patch.Category.Valid() {
			return nil, apierr.Validation("validation_exam_category", "invalid examination category %q", *patch.Category)
		}
		updates["category"] = *patch.Category
	}
	if patch.RegulatoryCodes != nil {
		codes, err := regulatoryCodes(*patch.RegulatoryCodes)
		if err != nil {
			return nil, err
		}
		updates["regulatory_codes"] = codes
	}
	setString(updates, "description", patch.Description)
	if patch.IncludeInASO != nil {
		updates["include_in_aso"] = *patch.IncludeInASO
	}
	if patch.IncludeInReports != nil {
		updates["include_in_reports"] = *patch.IncludeInReports
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}
	if err := s.exams.UpdateFields(dbc, id, updates); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apierr.Conflict("examination_exists", "examination name already exists")
		}
		return nil, fmt.Errorf("update examination: %w", err)
	}
	return s.GetExamination(dbc, id)
}

func (s *catalogService) DeactivateExamination(dbc dbctx.Context, id uuid.UUID) (*types.Examination, error) {
	inactive := false
	return s.UpdateExamination(dbc, id, ExaminationPatch{Active: &inactive})
}

func regulatoryCodes(in []string) (datatypes.JSON, error) {
	codes := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("encode regulatory codes: %w", err)
	}
	return datatypes.JSON(raw), nil
}

func setString(updates map[string]interface{}, column string, v *string) {
	if v != nil {
		updates[column] = strings.TrimSpace(*v)
	}
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
