package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/http"
	httpH "github.com/occhealth/pcmso-backend/internal/http/handlers"
	httpMW "github.com/occhealth/pcmso-backend/internal/http/middleware"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health        *httpH.HealthHandler
	Catalog       *httpH.CatalogHandler
	RiskExamRules *httpH.RiskExamRuleHandler
	JobExamRules  *httpH.JobExamRuleHandler
	Consolidation *httpH.ConsolidationHandler
	PCMSO         *httpH.PCMSOHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:        httpH.NewHealthHandler(db),
		Catalog:       httpH.NewCatalogHandler(s.Catalog),
		RiskExamRules: httpH.NewRiskExamRuleHandler(s.RiskExamRules),
		JobExamRules:  httpH.NewJobExamRuleHandler(s.JobExamRules),
		Consolidation: httpH.NewConsolidationHandler(s.Consolidation),
		PCMSO:         httpH.NewPCMSOHandler(s.PCMSO, s.Compliance, s.Export),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey, cfg.JWTIssuer),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	if cfg.LogMode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AuthMiddleware: middleware.Auth,
		CORSOrigins:    cfg.CORSOrigins,
		ServiceName:    cfg.Otel.ServiceName,

		CatalogHandler:       handlers.Catalog,
		RiskExamRuleHandler:  handlers.RiskExamRules,
		JobExamRuleHandler:   handlers.JobExamRules,
		ConsolidationHandler: handlers.Consolidation,
		PCMSOHandler:         handlers.PCMSO,

		HealthHandler: handlers.Health,
	})
}
