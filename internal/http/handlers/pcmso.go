package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/occhealth/pcmso-backend/internal/http/response"
	"github.com/occhealth/pcmso-backend/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PCMSOHandler struct {
	pcmso      services.PCMSOService
	compliance services.ComplianceService
	export     services.ExportService
}

func NewPCMSOHandler(pcmso services.PCMSOService, compliance services.ComplianceService, export services.ExportService) *PCMSOHandler {
	return &PCMSOHandler{pcmso: pcmso, compliance: compliance, export: export}
}

// GET /api/pcmso/companies/:companyId/detect-changes
func (h *PCMSOHandler) DetectChanges(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId", "invalid_company_id")
	if !ok {
		return
	}
	rep, err := h.pcmso.DetectChanges(requestDBC(c), companyID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// POST /api/pcmso/companies/:companyId/generate-draft
func (h *PCMSOHandler) GenerateDraft(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId", "invalid_company_id")
	if !ok {
		return
	}
	var opts services.DraftOptions
	if !bindOptionalJSON(c, &opts) {
		return
	}
	draft, err := h.pcmso.GenerateDraft(requestDBC(c), companyID, actor(c), opts)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, draft)
}

// GET /api/pcmso/companies/:companyId/versions
func (h *PCMSOHandler) ListVersions(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId", "invalid_company_id")
	if !ok {
		return
	}
	versions, err := h.pcmso.ListVersions(requestDBC(c), companyID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": versions})
}

// GET /api/pcmso/companies/:companyId/latest-signed
func (h *PCMSOHandler) LatestSigned(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId", "invalid_company_id")
	if !ok {
		return
	}
	v, err := h.pcmso.LatestSigned(requestDBC(c), companyID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}

// GET /api/pcmso/versions/:versionId
func (h *PCMSOHandler) GetVersion(c *gin.Context) {
	versionID, ok := pathUUID(c, "versionId", "invalid_version_id")
	if !ok {
		return
	}
	v, err := h.pcmso.GetVersion(requestDBC(c), versionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}

// POST /api/pcmso/versions/:versionId/submit-review
func (h *PCMSOHandler) SubmitForReview(c *gin.Context) {
	versionID, ok := pathUUID(c, "versionId", "invalid_version_id")
	if !ok {
		return
	}
	v, err := h.pcmso.SubmitForReview(requestDBC(c), versionID, actor(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}

// POST /api/pcmso/versions/:versionId/sign
func (h *PCMSOHandler) SignVersion(c *gin.Context) {
	versionID, ok := pathUUID(c, "versionId", "invalid_version_id")
	if !ok {
		return
	}
	v, err := h.pcmso.SignVersion(requestDBC(c), versionID, actor(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}

// POST /api/pcmso/versions/:versionId/archive
func (h *PCMSOHandler) ArchiveVersion(c *gin.Context) {
	versionID, ok := pathUUID(c, "versionId", "invalid_version_id")
	if !ok {
		return
	}
	v, err := h.pcmso.ArchiveVersion(requestDBC(c), versionID, actor(c))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": v})
}

// PATCH /api/pcmso/companies/:companyId/versions/:versionNumber/mark-outdated
func (h *PCMSOHandler) MarkPreviousVersionsOutdated(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId", "invalid_company_id")
	if !ok {
		return
	}
	number, err := strconv.Atoi(c.Param("versionNumber"))
	if err != nil || number < 1 {
		response.RespondError(c, http.StatusBadRequest, "invalid_version_number", fmt.Errorf("versionNumber must be a positive integer"))
		return
	}
	n, err := h.pcmso.MarkPreviousVersionsOutdated(requestDBC(c), companyID, number)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"outdated": n})
}

// GET /api/pcmso/versions/:versionId/verify
func (h *PCMSOHandler) VerifyDigest(c *gin.Context) {
	versionID, ok := pathUUID(c, "versionId", "invalid_version_id")
	if !ok {
		return
	}
	check, err := h.pcmso.VerifyDigest(requestDBC(c), versionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, check)
}

// GET /api/pcmso/versions/:versionId/compliance
func (h *PCMSOHandler) ValidateCompliance(c *gin.Context) {
	versionID, ok := pathUUID(c, "versionId", "invalid_version_id")
	if !ok {
		return
	}
	rep, err := h.compliance.ValidateCompliance(requestDBC(c), versionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, rep)
}

// GET /api/pcmso/versions/:versionId/export.xlsx
func (h *PCMSOHandler) ExportXLSX(c *gin.Context) {
	versionID, ok := pathUUID(c, "versionId", "invalid_version_id")
	if !ok {
		return
	}
	raw, err := h.export.ExportVersionXLSX(requestDBC(c), versionID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="pcmso-%s.xlsx"`, versionID))
	c.Data(http.StatusOK, xlsxContentType, raw)
}

// GET /api/pcmso/diff?from=&to=
func (h *PCMSOHandler) Diff(c *gin.Context) {
	from, err := queryUUID(c, "from")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_version_id", err)
		return
	}
	to, err := queryUUID(c, "to")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_version_id", err)
		return
	}
	if from == nil || to == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("from and to are required"))
		return
	}
	diff, err := h.pcmso.Diff(requestDBC(c), *from, *to)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, diff)
}
