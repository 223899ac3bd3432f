package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/repos"
	"github.com/occhealth/pcmso-backend/internal/data/repos/testutil"
	"github.com/occhealth/pcmso-backend/internal/events"
	httpH "github.com/occhealth/pcmso-backend/internal/http/handlers"
	httpMW "github.com/occhealth/pcmso-backend/internal/http/middleware"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/compliance"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/services"
)

const testSecret = "test-secret"

type testServer struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	token  string
	events *events.Recorder
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := testutil.DB(t)
	log := testutil.Logger(t)
	metrics := observability.NewMetrics()
	rec := &events.Recorder{}

	companies := repos.NewCompanyRepo(conn, log)
	jobs := repos.NewJobRepo(conn, log)
	risks := repos.NewRiskRepo(conn, log)
	exams := repos.NewExaminationRepo(conn, log)
	riskRules := repos.NewRiskExamRuleRepo(conn, log)
	jobRules := repos.NewJobExamRuleRepo(conn, log)
	versions := repos.NewPCMSOVersionRepo(conn, log)
	requirements := repos.NewPCMSORequirementRepo(conn, log)

	table, err := compliance.DefaultTable()
	require.NoError(t, err)

	consolidation := services.NewConsolidationService(conn, log, metrics, companies, jobs, riskRules, jobRules)
	pcmso := services.NewPCMSOService(conn, log, metrics, rec, companies, jobs, versions, requirements, consolidation)

	engine := NewRouter(RouterConfig{
		Log:            log,
		Metrics:        metrics,
		AuthMiddleware: httpMW.NewAuthMiddleware(log, testSecret, ""),

		CatalogHandler:       httpH.NewCatalogHandler(services.NewCatalogService(conn, log, repos.NewRiskCategoryRepo(conn, log), risks, exams)),
		RiskExamRuleHandler:  httpH.NewRiskExamRuleHandler(services.NewRiskExamRuleService(conn, log, riskRules, risks, exams, requirements)),
		JobExamRuleHandler:   httpH.NewJobExamRuleHandler(services.NewJobExamRuleService(conn, log, jobRules, jobs, exams, requirements)),
		ConsolidationHandler: httpH.NewConsolidationHandler(consolidation),
		PCMSOHandler: httpH.NewPCMSOHandler(pcmso,
			services.NewComplianceService(conn, log, metrics, table, versions, requirements, jobs),
			services.NewExportService(conn, log, metrics, companies, versions, requirements)),
		HealthHandler: httpH.NewHealthHandler(conn),
	})

	token, err := httpMW.IssueToken(testSecret, "", uuid.New(), time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, db: conn, engine: engine, token: token, events: rec}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type idEnvelope map[string]struct {
	ID uuid.UUID `json:"id"`
}

type errorEnvelope struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func TestHealthcheckIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	rec := s.do(http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)
	s.token = ""
	rec := s.do(http.MethodGet, "/api/risks", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	s.token = "garbage"
	rec = s.do(http.MethodGet, "/api/risks", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/api/risks", nil)
	rec := s.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "api_requests_total")
}

func TestBadIDsAndMissingEntities(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/api/pcmso/versions/nope", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_version_id", decode[errorEnvelope](t, rec).Error.Code)

	rec = s.do(http.MethodGet, "/api/pcmso/versions/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "version_not_found", decode[errorEnvelope](t, rec).Error.Code)

	rec = s.do(http.MethodGet, "/api/pcmso/diff?from="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/risks?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuleAndVersionFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	rec := s.do(http.MethodPost, "/api/risk-categories", map[string]any{"name": "Físicos"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	categoryID := decode[idEnvelope](t, rec)["risk_category"].ID

	rec = s.do(http.MethodPost, "/api/risks", map[string]any{
		"category_id": categoryID,
		"type":        "PHYSICAL",
		"name":        "Ruído contínuo acima de 85 dB(A)",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	riskID := decode[idEnvelope](t, rec)["risk"].ID

	rec = s.do(http.MethodPost, "/api/examinations", map[string]any{
		"name":     "Audiometria tonal",
		"category": "COMPLEMENTARY",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	examID := decode[idEnvelope](t, rec)["examination"].ID

	company := testutil.SeedCompany(t, ctx, s.db, "Metalúrgica Alfa")
	job := testutil.SeedJob(t, ctx, s.db, company.ID, "Operador de prensa", riskID)

	rule := map[string]any{
		"risk_id":                 riskID,
		"exam_id":                 examID,
		"periodicity_type":        "PERIODIC",
		"periodicity_value":       12,
		"applicable_on_admission": true,
		"applicable_periodic":     true,
	}
	rec = s.do(http.MethodPost, "/api/risk-exam-rules", rule)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ruleID := decode[idEnvelope](t, rec)["rule"].ID

	rec = s.do(http.MethodPost, "/api/risk-exam-rules", rule)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "risk_exam_rule_exists", decode[errorEnvelope](t, rec).Error.Code)

	rec = s.do(http.MethodPost, "/api/risk-exam-rules", map[string]any{
		"risk_id":          riskID,
		"exam_id":          uuid.New(),
		"periodicity_type": "PERIODIC",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/risk-exam-rules/risk/"+riskID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]any](t, rec)["rules"], 1)

	rec = s.do(http.MethodGet, "/api/exams/jobs/"+job.ID.String()+"/consolidated", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	consolidated := decode[struct {
		Consolidated []struct {
			ExamID uuid.UUID `json:"examId"`
		} `json:"consolidated"`
	}](t, rec)
	require.Len(t, consolidated.Consolidated, 1)
	assert.Equal(t, examID, consolidated.Consolidated[0].ExamID)

	rec = s.do(http.MethodGet, "/api/pcmso/companies/"+company.ID.String()+"/detect-changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[struct {
		HasChanges bool `json:"hasChanges"`
	}](t, rec).HasChanges)

	rec = s.do(http.MethodPost, "/api/pcmso/companies/"+company.ID.String()+"/generate-draft", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	draft := decode[struct {
		Version struct {
			ID            uuid.UUID `json:"id"`
			VersionNumber int       `json:"version_number"`
			Status        string    `json:"status"`
		} `json:"version"`
		RequirementCount int `json:"requirementCount"`
	}](t, rec)
	assert.Equal(t, 1, draft.Version.VersionNumber)
	assert.Equal(t, "DRAFT", draft.Version.Status)
	assert.Equal(t, 1, draft.RequirementCount)
	versionPath := "/api/pcmso/versions/" + draft.Version.ID.String()

	// The draft pins the rule.
	rec = s.do(http.MethodDelete, "/api/risk-exam-rules/"+ruleID.String(), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "rule_in_use", decode[errorEnvelope](t, rec).Error.Code)

	rec = s.do(http.MethodPost, versionPath+"/submit-review", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, versionPath+"/sign", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, versionPath+"/sign", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodGet, versionPath+"/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[struct {
		Valid bool `json:"valid"`
	}](t, rec).Valid)

	rec = s.do(http.MethodGet, versionPath+"/compliance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[struct {
		IsCompliant bool `json:"isCompliant"`
	}](t, rec).IsCompliant)

	rec = s.do(http.MethodGet, versionPath+"/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotZero(t, rec.Body.Len())

	rec = s.do(http.MethodGet, "/api/pcmso/diff?from="+draft.Version.ID.String()+"&to="+draft.Version.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	diff := decode[struct {
		ExamsAdded    []any `json:"examsAdded"`
		ExamsRemoved  []any `json:"examsRemoved"`
		ExamsModified []any `json:"examsModified"`
	}](t, rec)
	assert.Empty(t, diff.ExamsAdded)
	assert.Empty(t, diff.ExamsRemoved)
	assert.Empty(t, diff.ExamsModified)

	rec = s.do(http.MethodGet, "/api/pcmso/companies/"+company.ID.String()+"/latest-signed", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/pcmso/companies/"+company.ID.String()+"/detect-changes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[struct {
		HasChanges bool `json:"hasChanges"`
	}](t, rec).HasChanges)

	outdatePath := "/api/pcmso/companies/" + company.ID.String() + "/versions/2/mark-outdated"
	rec = s.do(http.MethodPatch, outdatePath, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), decode[map[string]int64](t, rec)["outdated"])

	rec = s.do(http.MethodPatch, outdatePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(0), decode[map[string]int64](t, rec)["outdated"])

	rec = s.do(http.MethodGet, versionPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OUTDATED", decode[struct {
		Version struct {
			Status string `json:"status"`
		} `json:"version"`
	}](t, rec).Version.Status)

	rec = s.do(http.MethodPatch, "/api/pcmso/companies/"+company.ID.String()+"/versions/zero/mark-outdated", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_version_number", decode[errorEnvelope](t, rec).Error.Code)

	rec = s.do(http.MethodPatch, "/api/pcmso/companies/"+uuid.NewString()+"/versions/2/mark-outdated", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	types := s.events.Types()
	assert.Contains(t, types, events.DraftGenerated)
	assert.Contains(t, types, events.VersionSigned)
	assert.Contains(t, types, events.VersionOutdated)
}

func TestInvalidPeriodicityIsRejected(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	cat := testutil.SeedRiskCategory(t, ctx, s.db, "Químicos")
	risk := testutil.SeedRisk(t, ctx, s.db, cat.ID, "CHEMICAL", "Benzeno")
	exam := testutil.SeedExam(t, ctx, s.db, "Hemograma")

	rec := s.do(http.MethodPost, "/api/risk-exam-rules", map[string]any{
		"risk_id":           risk.ID,
		"exam_id":           exam.ID,
		"periodicity_type":  "EVENT_ONLY",
		"periodicity_value": 6,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "event_only_with_interval", decode[errorEnvelope](t, rec).Error.Code)

	rec = s.do(http.MethodPost, "/api/risk-exam-rules", map[string]any{
		"risk_id":           risk.ID,
		"exam_id":           exam.ID,
		"periodicity_type":  "PERIODIC",
		"periodicity_value": 0,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_periodicity_value", decode[errorEnvelope](t, rec).Error.Code)
}

func TestCatalogDeleteDeactivates(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/examinations", map[string]any{"name": "Espirometria", "category": "FUNCTIONAL"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[idEnvelope](t, rec)["examination"].ID

	rec = s.do(http.MethodDelete, "/api/examinations/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/examinations/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]struct {
		Active bool `json:"active"`
	}](t, rec)
	assert.False(t, got["examination"].Active)

	rec = s.do(http.MethodGet, "/api/examinations?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[map[string][]any](t, rec)["examinations"])
}
