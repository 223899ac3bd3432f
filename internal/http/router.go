package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/occhealth/pcmso-backend/internal/http/handlers"
	httpMW "github.com/occhealth/pcmso-backend/internal/http/middleware"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware
	CORSOrigins    []string
	ServiceName    string

	CatalogHandler       *httpH.CatalogHandler
	RiskExamRuleHandler  *httpH.RiskExamRuleHandler
	JobExamRuleHandler   *httpH.JobExamRuleHandler
	ConsolidationHandler *httpH.ConsolidationHandler
	PCMSOHandler         *httpH.PCMSOHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "pcmso-backend"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	if cfg.Metrics != nil {
		r.Use(httpMW.Metrics(cfg.Metrics))
	}
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Catalog
	if h := cfg.CatalogHandler; h != nil {
		api.POST("/risk-categories", h.CreateRiskCategory)
		api.GET("/risk-categories", h.ListRiskCategories)
		api.GET("/risk-categories/:id", h.GetRiskCategory)
		api.PATCH("/risk-categories/:id", h.UpdateRiskCategory)
		api.DELETE("/risk-categories/:id", h.DeactivateRiskCategory)

		api.POST("/risks", h.CreateRisk)
		api.GET("/risks", h.ListRisks)
		api.GET("/risks/:id", h.GetRisk)
		api.PATCH("/risks/:id", h.UpdateRisk)
		api.DELETE("/risks/:id", h.DeactivateRisk)

		api.POST("/examinations", h.CreateExamination)
		api.GET("/examinations", h.ListExaminations)
		api.GET("/examinations/:id", h.GetExamination)
		api.PATCH("/examinations/:id", h.UpdateExamination)
		api.DELETE("/examinations/:id", h.DeactivateExamination)
	}

	// Rules
	if h := cfg.RiskExamRuleHandler; h != nil {
		api.POST("/risk-exam-rules", h.Create)
		api.GET("/risk-exam-rules", h.List)
		api.GET("/risk-exam-rules/risk/:riskId", h.ListForRisk)
		api.GET("/risk-exam-rules/suggestions/:riskId", h.Suggestions)
		api.GET("/risk-exam-rules/:id", h.Get)
		api.PATCH("/risk-exam-rules/:id", h.Update)
		api.DELETE("/risk-exam-rules/:id", h.Remove)
	}
	if h := cfg.JobExamRuleHandler; h != nil {
		api.POST("/job-exam-rules", h.Create)
		api.GET("/job-exam-rules", h.List)
		api.GET("/job-exam-rules/job/:jobId", h.ListForJob)
		api.GET("/job-exam-rules/:id", h.Get)
		api.PATCH("/job-exam-rules/:id", h.Update)
		api.DELETE("/job-exam-rules/:id", h.Remove)
	}

	// Consolidation
	if h := cfg.ConsolidationHandler; h != nil {
		api.GET("/exams/jobs/:jobId/consolidated", h.ConsolidateJob)
		api.GET("/exams/companies/:companyId/consolidated", h.ConsolidateCompany)
	}

	// PCMSO versions
	if h := cfg.PCMSOHandler; h != nil {
		api.GET("/pcmso/companies/:companyId/detect-changes", h.DetectChanges)
		api.POST("/pcmso/companies/:companyId/generate-draft", h.GenerateDraft)
		api.GET("/pcmso/companies/:companyId/versions", h.ListVersions)
		api.GET("/pcmso/companies/:companyId/latest-signed", h.LatestSigned)
		api.PATCH("/pcmso/companies/:companyId/versions/:versionNumber/mark-outdated", h.MarkPreviousVersionsOutdated)
		api.GET("/pcmso/versions/:versionId", h.GetVersion)
		api.POST("/pcmso/versions/:versionId/submit-review", h.SubmitForReview)
		api.POST("/pcmso/versions/:versionId/sign", h.SignVersion)
		api.POST("/pcmso/versions/:versionId/archive", h.ArchiveVersion)
		api.GET("/pcmso/versions/:versionId/verify", h.VerifyDigest)
		api.GET("/pcmso/versions/:versionId/compliance", h.ValidateCompliance)
		api.GET("/pcmso/versions/:versionId/export.xlsx", h.ExportXLSX)
		api.GET("/pcmso/diff", h.Diff)
	}

	return r
}
