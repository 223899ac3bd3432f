package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	"github.com/occhealth/pcmso-backend/internal/data/repos/testutil"
	"github.com/occhealth/pcmso-backend/internal/events"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/compliance"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
)

type harness struct {
	db      *gorm.DB
	ctx     context.Context
	dbc     dbctx.Context
	metrics *observability.Metrics
	events  *events.Recorder

	catalog       CatalogService
	riskRules     RiskExamRuleService
	jobRules      JobExamRuleService
	consolidation ConsolidationService
	pcmso         PCMSOService
	compliance    ComplianceService
	export        ExportService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.NewMetrics()
	rec := &events.Recorder{}

	companies := repos.NewCompanyRepo(conn, log)
	categories := repos.NewRiskCategoryRepo(conn, log)
	risks := repos.NewRiskRepo(conn, log)
	exams := repos.NewExaminationRepo(conn, log)
	jobs := repos.NewJobRepo(conn, log)
	riskRules := repos.NewRiskExamRuleRepo(conn, log)
	jobRules := repos.NewJobExamRuleRepo(conn, log)
	versions := repos.NewPCMSOVersionRepo(conn, log)
	requirements := repos.NewPCMSORequirementRepo(conn, log)

	table, err := compliance.DefaultTable()
	require.NoError(t, err)

	consolidation := NewConsolidationService(conn, log, metrics, companies, jobs, riskRules, jobRules)
	ctx := context.Background()
	return &harness{
		db:            conn,
		ctx:           ctx,
		dbc:           dbctx.Context{Ctx: ctx},
		metrics:       metrics,
		events:        rec,
		catalog:       NewCatalogService(conn, log, categories, risks, exams),
		riskRules:     NewRiskExamRuleService(conn, log, riskRules, risks, exams, requirements),
		jobRules:      NewJobExamRuleService(conn, log, jobRules, jobs, exams, requirements),
		consolidation: consolidation,
		pcmso:         NewPCMSOService(conn, log, metrics, rec, companies, jobs, versions, requirements, consolidation),
		compliance:    NewComplianceService(conn, log, metrics, table, versions, requirements, jobs),
		export:        NewExportService(conn, log, metrics, companies, versions, requirements),
	}
}
