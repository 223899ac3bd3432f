package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/http/response"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/services"
)

type RiskExamRuleHandler struct {
	rules services.RiskExamRuleService
}

func NewRiskExamRuleHandler(rules services.RiskExamRuleService) *RiskExamRuleHandler {
	return &RiskExamRuleHandler{rules: rules}
}

// POST /api/risk-exam-rules
func (h *RiskExamRuleHandler) Create(c *gin.Context) {
	var in services.RiskExamRuleInput
	if !bindJSON(c, &in) {
		return
	}
	rule, err := h.rules.Create(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"rule": rule})
}

// GET /api/risk-exam-rules?risk_id=&exam_id=&active=&periodicity_type=&risk_type=
func (h *RiskExamRuleHandler) List(c *gin.Context) {
	var filter repos.RiskExamRuleFilter
	var err error
	if filter.RiskID, err = queryUUID(c, "risk_id"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if filter.ExamID, err = queryUUID(c, "exam_id"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if filter.Active, err = queryBool(c, "active"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	filter.PeriodicityType = periodicity.Type(strings.ToUpper(c.Query("periodicity_type")))
	filter.RiskType = types.RiskType(strings.ToUpper(c.Query("risk_type")))

	rules, err := h.rules.List(requestDBC(c), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rules": rules})
}

// GET /api/risk-exam-rules/:id
func (h *RiskExamRuleHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_rule_id")
	if !ok {
		return
	}
	rule, err := h.rules.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rule": rule})
}

// PATCH /api/risk-exam-rules/:id
func (h *RiskExamRuleHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_rule_id")
	if !ok {
		return
	}
	var patch services.RulePatch
	if !bindJSON(c, &patch) {
		return
	}
	rule, err := h.rules.Update(requestDBC(c), id, patch)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rule": rule})
}

// DELETE /api/risk-exam-rules/:id
func (h *RiskExamRuleHandler) Remove(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_rule_id")
	if !ok {
		return
	}
	if err := h.rules.Remove(requestDBC(c), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/risk-exam-rules/risk/:riskId
func (h *RiskExamRuleHandler) ListForRisk(c *gin.Context) {
	riskID, ok := pathUUID(c, "riskId", "invalid_risk_id")
	if !ok {
		return
	}
	rules, err := h.rules.ListForRisk(requestDBC(c), riskID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rules": rules})
}

// GET /api/risk-exam-rules/suggestions/:riskId
func (h *RiskExamRuleHandler) Suggestions(c *gin.Context) {
	riskID, ok := pathUUID(c, "riskId", "invalid_risk_id")
	if !ok {
		return
	}
	suggestions, err := h.rules.SuggestExamsForRisk(requestDBC(c), riskID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"suggestions": suggestions})
}

type JobExamRuleHandler struct {
	rules services.JobExamRuleService
}

func NewJobExamRuleHandler(rules services.JobExamRuleService) *JobExamRuleHandler {
	return &JobExamRuleHandler{rules: rules}
}

// POST /api/job-exam-rules
func (h *JobExamRuleHandler) Create(c *gin.Context) {
	var in services.JobExamRuleInput
	if !bindJSON(c, &in) {
		return
	}
	rule, err := h.rules.Create(requestDBC(c), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"rule": rule})
}

// GET /api/job-exam-rules?job_id=&exam_id=&active=&periodicity_type=&override_risk_rules=
func (h *JobExamRuleHandler) List(c *gin.Context) {
	var filter repos.JobExamRuleFilter
	var err error
	if filter.JobID, err = queryUUID(c, "job_id"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if filter.ExamID, err = queryUUID(c, "exam_id"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if filter.Active, err = queryBool(c, "active"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if filter.OverrideRiskRules, err = queryBool(c, "override_risk_rules"); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	filter.PeriodicityType = periodicity.Type(strings.ToUpper(c.Query("periodicity_type")))

	rules, err := h.rules.List(requestDBC(c), filter)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rules": rules})
}

// GET /api/job-exam-rules/:id
func (h *JobExamRuleHandler) Get(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_rule_id")
	if !ok {
		return
	}
	rule, err := h.rules.Get(requestDBC(c), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rule": rule})
}

// PATCH /api/job-exam-rules/:id
func (h *JobExamRuleHandler) Update(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_rule_id")
	if !ok {
		return
	}
	var patch services.JobExamRulePatch
	if !bindJSON(c, &patch) {
		return
	}
	rule, err := h.rules.Update(requestDBC(c), id, patch)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rule": rule})
}

// DELETE /api/job-exam-rules/:id
func (h *JobExamRuleHandler) Remove(c *gin.Context) {
	id, ok := pathUUID(c, "id", "invalid_rule_id")
	if !ok {
		return
	}
	if err := h.rules.Remove(requestDBC(c), id); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/job-exam-rules/job/:jobId
func (h *JobExamRuleHandler) ListForJob(c *gin.Context) {
	jobID, ok := pathUUID(c, "jobId", "invalid_job_id")
	if !ok {
		return
	}
	rules, err := h.rules.ListForJob(requestDBC(c), jobID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"rules": rules})
}
