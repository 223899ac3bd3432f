package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/http/response"
	"github.com/occhealth/pcmso-backend/internal/services"
)

// CatalogHandler serves risk categories, risks and examinations. DELETE
// deactivates the entry; catalog rows are never removed.
type CatalogHandler struct {
	catalog services.CatalogService
}

func NewCatalogHandler(catalog services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ---- risk categories ----

func (h *CatalogHandler) CreateRiskCategory(c *gin.Context) {
	var in services.RiskCategoryInput
	if !bindJSON(c, &in) {
		return
	}
	row, err := h.catalog.CreateRiskCategory(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"risk_category": row})
}

func (h *CatalogHandler) ListRiskCategories(c *gin.Context) {
	active, err := queryBool(c, "active")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rows, err := h.catalog.ListRiskCategories(requestDBC(c), active != nil && *active)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risk_categories": rows})
}

func (h *CatalogHandler) GetRiskCategory(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_risk_category_id")
	if !ok {
		return
	}
	row, err := h.catalog.GetRiskCategory(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risk_category": row})
}

func (h *CatalogHandler) UpdateRiskCategory(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_risk_category_id")
	if !ok {
		return
	}
	var patch services.RiskCategoryPatch
	if !bindJSON(c, &patch) {
		return
	}
	row, err := h.catalog.UpdateRiskCategory(requestDBC(c), id, patch)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risk_category": row})
}

func (h *CatalogHandler) DeactivateRiskCategory(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_risk_category_id")
	if !ok {
		return
	}
	row, err := h.catalog.DeactivateRiskCategory(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risk_category": row})
}

// ---- risks ----

func (h *CatalogHandler) CreateRisk(c *gin.Context) {
	var in services.RiskInput
	if !bindJSON(c, &in) {
		return
	}
	row, err := h.catalog.CreateRisk(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"risk": row})
}

// GET /api/risks?active=&type=&category_id=&search=
func (h *CatalogHandler) ListRisks(c *gin.Context) {
	var filter repos.RiskFilter
	var err error
	if filter.Active, err = queryBool(c, "active"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if filter.CategoryID, err = queryUUID(c, "category_id"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	filter.Type = types.RiskType(strings.ToUpper(c.Query("type")))
	filter.Search = strings.TrimSpace(c.Query("search"))

	rows, err := h.catalog.ListRisks(requestDBC(c), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risks": rows})
}

func (h *CatalogHandler) GetRisk(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_risk_id")
	if !ok {
		return
	}
	row, err := h.catalog.GetRisk(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risk": row})
}

func (h *CatalogHandler) UpdateRisk(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_risk_id")
	if !ok {
		return
	}
	var patch services.RiskPatch
	if !bindJSON(c, &patch) {
		return
	}
	row, err := h.catalog.UpdateRisk(requestDBC(c), id, patch)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risk": row})
}

func (h *CatalogHandler) DeactivateRisk(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_risk_id")
	if !ok {
		return
	}
	row, err := h.catalog.DeactivateRisk(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"risk": row})
}

// ---- examinations ----

func (h *CatalogHandler) CreateExamination(c *gin.Context) {
	var in services.ExaminationInput
	if !bindJSON(c, &in) {
		return
	}
	row, err := h.catalog.CreateExamination(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"examination": row})
}

// GET /api/examinations?active=&category=&search=
func (h *CatalogHandler) ListExaminations(c *gin.Context) {
	var filter repos.ExaminationFilter
	var err error
	if filter.Active, err = queryBool(c, "active"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	filter.Category = types.ExamCategory(strings.ToUpper(c.Query("category")))
	filter.Search = strings.TrimSpace(c.Query("search"))

	rows, err := h.catalog.ListExaminations(requestDBC(c), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"examinations": rows})
}

func (h *CatalogHandler) GetExamination(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_examination_id")
	if !ok {
		return
	}
	row, err := h.catalog.GetExamination(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"examination": row})
}

func (h *CatalogHandler) UpdateExamination(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_examination_id")
	if !ok {
		return
	}
	var patch services.ExaminationPatch
	if !bindJSON(c, &patch) {
		return
	}
	row, err := h.catalog.UpdateExamination(requestDBC(c), id, patch)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"examination": row})
}

func (h *CatalogHandler) DeactivateExamination(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_examination_id")
	if !ok {
		return
	}
	row, err := h.catalog.DeactivateExamination(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"examination": row})
}
