package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/events"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/compliance"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
	"github.com/occhealth/pcmso-backend/internal/services"
)

type Services struct {
	Catalog       services.CatalogService
	RiskExamRules services.RiskExamRuleService
	JobExamRules  services.JobExamRuleService
	Consolidation services.ConsolidationService
	PCMSO         services.PCMSOService
	Compliance    services.ComplianceService
	Export        services.ExportService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, metrics *observability.Metrics, publisher events.Publisher) (Services, error) {
	log.Info("Wiring services...")

	table, err := loadComplianceTable(log, cfg.ComplianceRulesPath)
	if err != nil {
		return Services{}, err
	}

	consolidation := services.NewConsolidationService(db, log, metrics, r.Company, r.Job, r.RiskExamRule, r.JobExamRule)
	return Services{
		Catalog:       services.NewCatalogService(db, log, r.RiskCategory, r.Risk, r.Examination),
		RiskExamRules: services.NewRiskExamRuleService(db, log, r.RiskExamRule, r.Risk, r.Examination, r.PCMSORequirement),
		JobExamRules:  services.NewJobExamRuleService(db, log, r.JobExamRule, r.Job, r.Examination, r.PCMSORequirement),
		Consolidation: consolidation,
		PCMSO: services.NewPCMSOService(db, log, metrics, publisher,
			r.Company, r.Job, r.PCMSOVersion, r.PCMSORequirement, consolidation),
		Compliance: services.NewComplianceService(db, log, metrics, table, r.PCMSOVersion, r.PCMSORequirement, r.Job),
		Export:     services.NewExportService(db, log, metrics, r.Company, r.PCMSOVersion, r.PCMSORequirement),
	}, nil
}

func loadComplianceTable(log *logger.Logger, path string) (*compliance.Table, error) {
	if path == "" {
		return compliance.DefaultTable()
	}
	table, err := compliance.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("load compliance rules %q: %w", path, err)
	}
	log.Info("Loaded compliance rules", "path", path, "hazards", len(table.Hazards))
	return table, nil
}

// wirePublisher fans lifecycle events out to Redis and the webhook when they
// are configured. The returned closer releases the Redis client.
func wirePublisher(log *logger.Logger, cfg Config) (events.Publisher, func() error, error) {
	var (
		out    events.Multi
		closer = func() error { return nil }
	)
	if cfg.RedisAddr != "" {
		bus, err := events.NewRedisBus(log, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			return nil, closer, fmt.Errorf("init redis events: %w", err)
		}
		out = append(out, bus)
		closer = bus.Close
	}
	if cfg.EventsWebhookURL != "" {
		hook, err := events.NewWebhook(log, cfg.EventsWebhookURL, cfg.EventsWebhookTimeout)
		if err != nil {
			_ = closer()
			return nil, func() error { return nil }, fmt.Errorf("init events webhook: %w", err)
		}
		out = append(out, hook)
	}
	switch len(out) {
	case 0:
		return events.Noop(), closer, nil
	case 1:
		return out[0], closer, nil
	}
	return out, closer, nil
}
