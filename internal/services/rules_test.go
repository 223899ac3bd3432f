package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/pcmso-backend/internal/data/repos/testutil"
	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
)

func TestRiskExamRuleCreateAndDuplicate(t *testing.T) {
	h := newHarness(t)
	cat := testutil.SeedRiskCategory(t, h.ctx, h.db, "Físicos")
	noise := testutil.SeedRisk(t, h.ctx, h.db, cat.ID, catalog.RiskPhysical, "Noise >85dB")
	audio := testutil.SeedExam(t, h.ctx, h.db, "Audiometry")

	in := RiskExamRuleInput{
		RiskID: noise.ID,
		ExamID: audio.ID,
		RuleInput: RuleInput{
			PeriodicityType:       periodicity.Periodic,
			PeriodicityValue:      testutil.PtrInt(12),
			ApplicableOnAdmission: true,
			ApplicablePeriodic:    true,
		},
	}
	rule, err := h.riskRules.Create(h.dbc, in)
	require.NoError(t, err)
	assert.True(t, rule.Active)
	assert.False(t, rule.OnDismissal)
	require.NotNil(t, rule.Exam)
	assert.Equal(t, "Audiometry", rule.Exam.Name)

	_, err = h.riskRules.Create(h.dbc, in)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindConflict, ae.Kind)
	assert.Equal(t, "risk_exam_rule_exists", ae.Code)
	assert.Contains(t, ae.Error(), "Noise >85dB")
}

func TestRiskExamRuleRejectsInvalidPeriodicity(t *testing.T) {
	h := newHarness(t)
	cat := testutil.SeedRiskCategory(t, h.ctx, h.db, "Físicos")
	noise := testutil.SeedRisk(t, h.ctx, h.db, cat.ID, catalog.RiskPhysical, "Noise")
	audio := testutil.SeedExam(t, h.ctx, h.db, "Audiometry")

	cases := map[string]RuleInput{
		"event only with value": {PeriodicityType: periodicity.EventOnly, PeriodicityValue: testutil.PtrInt(12)},
		"periodic without value": {PeriodicityType: periodicity.Periodic},
		"out of range":           {PeriodicityType: periodicity.Periodic, PeriodicityValue: testutil.PtrInt(121)},
		"unknown type":           {PeriodicityType: "YEARLY", PeriodicityValue: testutil.PtrInt(12)},
		"bad advanced rule": {
			PeriodicityType:         periodicity.Custom,
			PeriodicityAdvancedRule: json.RawMessage(`{"type":"MOON_PHASE"}`),
		},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.riskRules.Create(h.dbc, RiskExamRuleInput{RiskID: noise.ID, ExamID: audio.ID, RuleInput: rule})
			require.Error(t, err)
			assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
		})
	}
}

func TestRiskExamRuleUpdateToEventOnlyClearsInterval(t *testing.T) {
	h := newHarness(t)
	cat := testutil.SeedRiskCategory(t, h.ctx, h.db, "Físicos")
	noise := testutil.SeedRisk(t, h.ctx, h.db, cat.ID, catalog.RiskPhysical, "Noise")
	audio := testutil.SeedExam(t, h.ctx, h.db, "Audiometry")
	rule := testutil.SeedRiskRule(t, h.ctx, h.db, noise.ID, audio.ID, periodicity.EveryMonths(12))

	eventOnly := periodicity.EventOnly
	updated, err := h.riskRules.Update(h.dbc, rule.ID, RulePatch{PeriodicityType: &eventOnly})
	require.NoError(t, err)
	assert.Equal(t, periodicity.EventOnly, updated.PeriodicityType)
	assert.Nil(t, updated.PeriodicityValue)

	_, err = h.riskRules.Update(h.dbc, rule.ID, RulePatch{PeriodicityValue: testutil.PtrInt(6)})
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}

func TestRuleInUseCannotBeRemoved(t *testing.T) {
	h := newHarness(t)
	company := testutil.SeedCompany(t, h.ctx, h.db, "Acme")
	cat := testutil.SeedRiskCategory(t, h.ctx, h.db, "Físicos")
	noise := testutil.SeedRisk(t, h.ctx, h.db, cat.ID, catalog.RiskPhysical, "Noise")
	audio := testutil.SeedExam(t, h.ctx, h.db, "Audiometry")
	testutil.SeedJob(t, h.ctx, h.db, company.ID, "Machine Operator", noise.ID)
	rule := testutil.SeedRiskRule(t, h.ctx, h.db, noise.ID, audio.ID, periodicity.EveryMonths(12))

	_, err := h.pcmso.GenerateDraft(h.dbc, company.ID, uuid.New(), DraftOptions{})
	require.NoError(t, err)

	err = h.riskRules.Remove(h.dbc, rule.ID)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "rule_in_use", ae.Code)

	inactive := false
	_, err = h.riskRules.Update(h.dbc, rule.ID, RulePatch{Active: &inactive})
	assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))

	// Pinned rules may still be tightened.
	updated, err := h.riskRules.Update(h.dbc, rule.ID, RulePatch{PeriodicityValue: testutil.PtrInt(6)})
	require.NoError(t, err)
	assert.Equal(t, 6, *updated.PeriodicityValue)
}

func TestJobExamRuleLifecycle(t *testing.T) {
	h := newHarness(t)
	company := testutil.SeedCompany(t, h.ctx, h.db, "Acme")
	job := testutil.SeedJob(t, h.ctx, h.db, company.ID, "Welder")
	exam := testutil.SeedExam(t, h.ctx, h.db, "Visual acuity")

	rule, err := h.jobRules.Create(h.dbc, JobExamRuleInput{
		JobID:             job.ID,
		ExamID:            exam.ID,
		OverrideRiskRules: true,
		RuleInput:         RuleInput{PeriodicityType: periodicity.Periodic, PeriodicityValue: testutil.PtrInt(24)},
	})
	require.NoError(t, err)
	assert.True(t, rule.OverrideRiskRules)

	_, err = h.jobRules.Create(h.dbc, JobExamRuleInput{
		JobID:     job.ID,
		ExamID:    exam.ID,
		RuleInput: RuleInput{PeriodicityType: periodicity.EventOnly},
	})
	assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))

	off := false
	updated, err := h.jobRules.Update(h.dbc, rule.ID, JobExamRulePatch{OverrideRiskRules: &off})
	require.NoError(t, err)
	assert.False(t, updated.OverrideRiskRules)

	require.NoError(t, h.jobRules.Remove(h.dbc, rule.ID))
	listed, err := h.jobRules.ListForJob(h.dbc, job.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	_, err = h.jobRules.ListForJob(h.dbc, company.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestSuggestExamsForRisk(t *testing.T) {
	h := newHarness(t)
	cat := testutil.SeedRiskCategory(t, h.ctx, h.db, "Químicos")
	silica := testutil.SeedRisk(t, h.ctx, h.db, cat.ID, catalog.RiskChemical, "Poeira de sílica livre")
	xray := testutil.SeedExam(t, h.ctx, h.db, "Raio-X de tórax (OIT)")
	spiro := testutil.SeedExam(t, h.ctx, h.db, "Espirometria")
	testutil.SeedExam(t, h.ctx, h.db, "Audiometria")

	got, err := h.riskRules.SuggestExamsForRisk(h.dbc, silica.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	byExam := map[string]ExamSuggestion{}
	for _, s := range got {
		byExam[s.ExamName] = s
	}
	assert.Equal(t, 12, *byExam[xray.Name].PeriodicityValue)
	assert.Contains(t, byExam[xray.Name].Reasoning, "chest X-ray")
	assert.Contains(t, byExam[spiro.Name].Reasoning, "spirometry")

	testutil.SeedRiskRule(t, h.ctx, h.db, silica.ID, spiro.ID, periodicity.EveryMonths(24))
	got, err = h.riskRules.SuggestExamsForRisk(h.dbc, silica.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, xray.ID, got[0].ExamID)
}
