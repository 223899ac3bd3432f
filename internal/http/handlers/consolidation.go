package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/occhealth/pcmso-backend/internal/http/response"
	"github.com/occhealth/pcmso-backend/internal/services"
)

type ConsolidationHandler struct {
	consolidation services.ConsolidationService
}

func NewConsolidationHandler(consolidation services.ConsolidationService) *ConsolidationHandler {
	return &ConsolidationHandler{consolidation: consolidation}
}

// GET /api/exams/jobs/:jobId/consolidated
func (h *ConsolidationHandler) ConsolidateJob(c *gin.Context) {
	jobID, ok := pathUUID(c, "jobId", "invalid_job_id")
	if !ok {
		return
	}
	res, err := h.consolidation.ConsolidateJob(requestDBC(c), jobID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/exams/companies/:companyId/consolidated
func (h *ConsolidationHandler) ConsolidateCompany(c *gin.Context) {
	companyID, ok := pathUUID(c, "companyId", "invalid_company_id")
	if !ok {
		return
	}
	results, err := h.consolidation.ConsolidateCompany(requestDBC(c), companyID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": results})
}
