package consolidate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/domain/rules"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

var admissionAndPeriodic = rules.Applicability{OnAdmission: true, Periodic: true}

func noiseAudiometry(examID uuid.UUID) RiskRule {
	return RiskRule{
		RuleID:        uuid.New(),
		RiskID:        uuid.New(),
		RiskName:      "Noise >85dB",
		ExamID:        examID,
		ExamName:      "Audiometry",
		Policy:        periodicity.EveryMonths(12),
		Applicability: admissionAndPeriodic,
	}
}

func TestRiskRuleOnlyYieldsSingleRiskEntry(t *testing.T) {
	audiometry := uuid.New()
	rr := noiseAudiometry(audiometry)

	res := Job(Input{JobID: uuid.New(), JobTitle: "Machine Operator", RiskRules: []RiskRule{rr}})

	require.Len(t, res.Consolidated, 1)
	e := res.Consolidated[0]
	assert.Equal(t, audiometry, e.ExamID)
	require.Len(t, e.Sources, 1)
	assert.Equal(t, pcmso.SourceRisk, e.Sources[0].Type)
	assert.Equal(t, rr.RuleID, e.Sources[0].RuleID)
	assert.True(t, e.Effective.Equal(periodicity.EveryMonths(12)))
	assert.Empty(t, res.Overrides)
}

func TestOverrideReplacesEveryRiskSource(t *testing.T) {
	audiometry := uuid.New()
	noise := noiseAudiometry(audiometry)
	vibration := RiskRule{
		RuleID:   uuid.New(),
		RiskID:   uuid.New(),
		RiskName: "Vibration",
		ExamID:   audiometry,
		ExamName: "Audiometry",
		Policy:   periodicity.EveryMonths(24),
	}
	jobRule := JobRule{
		RuleID:            uuid.New(),
		ExamID:            audiometry,
		ExamName:          "Audiometry",
		Policy:            periodicity.EveryMonths(6),
		Applicability:     admissionAndPeriodic,
		OverrideRiskRules: true,
	}

	res := Job(Input{JobID: uuid.New(), JobTitle: "Machine Operator", RiskRules: []RiskRule{vibration, noise}, JobRules: []JobRule{jobRule}})

	require.Len(t, res.Consolidated, 1)
	e := res.Consolidated[0]
	require.Len(t, e.Sources, 1)
	assert.Equal(t, pcmso.SourceJob, e.Sources[0].Type)
	assert.Equal(t, jobRule.RuleID, e.Sources[0].RuleID)
	assert.True(t, e.Effective.Equal(periodicity.EveryMonths(6)))

	require.Len(t, res.Overrides, 1)
	ov := res.Overrides[0]
	assert.Equal(t, audiometry, ov.ExamID)
	assert.Equal(t, jobRule.RuleID, ov.JobRuleID)
	assert.ElementsMatch(t, []uuid.UUID{noise.RuleID, vibration.RuleID}, ov.OverriddenRiskRules)
}

func TestJobRuleWithoutOverrideIsUnion(t *testing.T) {
	audiometry := uuid.New()
	noise := noiseAudiometry(audiometry)
	other := noiseAudiometry(audiometry)
	other.RiskName = "Impact noise"
	jobRule := JobRule{RuleID: uuid.New(), ExamID: audiometry, ExamName: "Audiometry", Policy: periodicity.EveryMonths(24)}

	res := Job(Input{JobID: uuid.New(), RiskRules: []RiskRule{noise, other}, JobRules: []JobRule{jobRule}})

	require.Len(t, res.Consolidated, 1)
	e := res.Consolidated[0]
	assert.Len(t, e.Sources, 3)
	assert.Empty(t, res.Overrides)
	// 12 months beats 24 months.
	assert.True(t, e.Effective.Equal(periodicity.EveryMonths(12)))
	assert.Equal(t, pcmso.SourceRisk, e.Primary().Type)
	assert.Len(t, e.RiskIDs(), 2)
}

func TestOverrideWithoutRiskSourcesRecordsNothing(t *testing.T) {
	exam := uuid.New()
	jobRule := JobRule{RuleID: uuid.New(), ExamID: exam, ExamName: "Clinical exam", Policy: periodicity.EveryMonths(12), OverrideRiskRules: true}

	res := Job(Input{JobID: uuid.New(), JobRules: []JobRule{jobRule}})

	require.Len(t, res.Consolidated, 1)
	assert.Len(t, res.Consolidated[0].Sources, 1)
	assert.Empty(t, res.Overrides)
}

func TestOutputIsOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	r1 := RiskRule{RuleID: uuid.New(), RiskID: uuid.New(), RiskName: "Benzene", ExamID: a, ExamName: "Blood count", Policy: periodicity.EveryMonths(6)}
	r2 := RiskRule{RuleID: uuid.New(), RiskID: uuid.New(), RiskName: "Silica", ExamID: b, ExamName: "Spirometry", Policy: periodicity.EveryMonths(24)}
	r3 := RiskRule{RuleID: uuid.New(), RiskID: uuid.New(), RiskName: "Asbestos", ExamID: b, ExamName: "Spirometry", Policy: periodicity.EveryMonths(12)}

	x := Job(Input{RiskRules: []RiskRule{r1, r2, r3}})
	y := Job(Input{RiskRules: []RiskRule{r3, r1, r2}})
	assert.Equal(t, x, y)

	require.Len(t, x.Consolidated, 2)
	assert.Equal(t, "Blood count", x.Consolidated[0].ExamName)
	assert.Equal(t, "Asbestos", x.Consolidated[1].Sources[0].RiskName)
	assert.True(t, x.Consolidated[1].Effective.Equal(periodicity.EveryMonths(12)))
}

func TestApplicabilityIsMerged(t *testing.T) {
	exam := uuid.New()
	rr := RiskRule{RuleID: uuid.New(), RiskID: uuid.New(), ExamID: exam, Policy: periodicity.EveryMonths(12), Applicability: rules.Applicability{OnAdmission: true}}
	jr := JobRule{RuleID: uuid.New(), ExamID: exam, Policy: periodicity.EveryMonths(12), Applicability: rules.Applicability{OnDismissal: true}}

	res := Job(Input{RiskRules: []RiskRule{rr}, JobRules: []JobRule{jr}})

	require.Len(t, res.Consolidated, 1)
	app := res.Consolidated[0].Applicability
	assert.True(t, app.OnAdmission)
	assert.True(t, app.OnDismissal)
	assert.False(t, app.OnReturn)
}
