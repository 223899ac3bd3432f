package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/pcmso-backend/internal/data/repos/testutil"
	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
)

func TestValidateComplianceMachineOperator(t *testing.T) {
	h := newHarness(t)
	company := testutil.SeedCompany(t, h.ctx, h.db, "Acme")
	cat := testutil.SeedRiskCategory(t, h.ctx, h.db, "Físicos")
	noise := testutil.SeedRisk(t, h.ctx, h.db, cat.ID, catalog.RiskPhysical, "Noise >85dB")
	clinical := testutil.SeedExam(t, h.ctx, h.db, "Exame clínico ocupacional")
	audio := testutil.SeedExam(t, h.ctx, h.db, "Audiometria tonal")
	job := testutil.SeedJob(t, h.ctx, h.db, company.ID, "Machine Operator", noise.ID)
	testutil.SeedJobRule(t, h.ctx, h.db, job.ID, clinical.ID, periodicity.EveryMonths(12), false)
	user := uuid.New()

	d1, err := h.pcmso.GenerateDraft(h.dbc, company.ID, user, DraftOptions{})
	require.NoError(t, err)

	rep, err := h.compliance.ValidateCompliance(h.dbc, d1.Version.ID)
	require.NoError(t, err)
	assert.False(t, rep.IsCompliant)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, "mandatory_exam_missing", rep.Errors[0].Code)
	assert.Contains(t, rep.Errors[0].Message, "Machine Operator")
	assert.Contains(t, rep.Errors[0].Message, "Noise >85dB")
	assert.Empty(t, rep.Warnings)

	testutil.SeedRiskRule(t, h.ctx, h.db, noise.ID, audio.ID, periodicity.EveryMonths(24))
	d2, err := h.pcmso.GenerateDraft(h.dbc, company.ID, user, DraftOptions{})
	require.NoError(t, err)

	rep, err = h.compliance.ValidateCompliance(h.dbc, d2.Version.ID)
	require.NoError(t, err)
	assert.True(t, rep.IsCompliant)
	assert.Empty(t, rep.Errors)
	require.Len(t, rep.Recommendations, 1)
	assert.Equal(t, "periodicity_above_recommended", rep.Recommendations[0].Code)

	_, err = h.compliance.ValidateCompliance(h.dbc, uuid.New())
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}
