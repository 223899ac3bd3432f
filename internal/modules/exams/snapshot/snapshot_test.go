package snapshot

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/consolidate"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

func months(n int) *int { return &n }

func requirement(versionID, jobID, examID uuid.UUID, examName string, source pcmso.SourceType, m int, riskID *uuid.UUID) pcmso.ExamRequirement {
	ref := pcmso.SourceRef{Source: source, RuleID: uuid.New(), RiskID: riskID, RiskName: "Noise"}
	prov, _ := json.Marshal([]pcmso.SourceRef{ref})
	return pcmso.ExamRequirement{
		ID:               uuid.New(),
		VersionID:        versionID,
		JobID:            jobID,
		JobTitle:         "Machine Operator",
		ExamID:           examID,
		ExamName:         examName,
		Source:           source,
		SourceRuleID:     ref.RuleID,
		SourceRiskID:     riskID,
		PeriodicityType:  periodicity.Periodic,
		PeriodicityValue: months(m),
		Provenance:       datatypes.JSON(prov),
	}
}

func TestCompareOfIdenticalMapsIsEmpty(t *testing.T) {
	v := uuid.New()
	risk := uuid.New()
	rows := []pcmso.ExamRequirement{
		requirement(v, uuid.New(), uuid.New(), "Audiometry", pcmso.SourceRisk, 12, &risk),
		requirement(v, uuid.New(), uuid.New(), "Clinical exam", pcmso.SourceJob, 12, nil),
	}
	m, err := FromRequirements(rows)
	require.NoError(t, err)

	cmp := Compare(m, m)
	assert.True(t, cmp.Empty())
	assert.NotNil(t, cmp.Added)
	assert.NotNil(t, cmp.Removed)
	assert.NotNil(t, cmp.Modified)
}

func TestCompareClassifiesChanges(t *testing.T) {
	audiometry, spirometry, clinical := uuid.New(), uuid.New(), uuid.New()
	job := uuid.New()
	risk := uuid.New()
	prevRows := []pcmso.ExamRequirement{
		requirement(uuid.New(), job, audiometry, "Audiometry", pcmso.SourceRisk, 12, &risk),
		requirement(uuid.New(), job, spirometry, "Spirometry", pcmso.SourceRisk, 24, &risk),
	}
	currRows := []pcmso.ExamRequirement{
		requirement(uuid.New(), job, audiometry, "Audiometry", pcmso.SourceJob, 6, nil),
		requirement(uuid.New(), job, clinical, "Clinical exam", pcmso.SourceJob, 12, nil),
	}
	prev, err := FromRequirements(prevRows)
	require.NoError(t, err)
	curr, err := FromRequirements(currRows)
	require.NoError(t, err)

	cmp := Compare(prev, curr)
	require.Len(t, cmp.Added, 1)
	assert.Equal(t, clinical, cmp.Added[0].ExamID)
	require.Len(t, cmp.Removed, 1)
	assert.Equal(t, spirometry, cmp.Removed[0].ExamID)
	require.Len(t, cmp.Modified, 1)
	assert.Equal(t, audiometry, cmp.Modified[0].ExamID)
	assert.Equal(t, []FieldChange{{Field: "periodicityValue", Old: "12", New: "6"}}, cmp.Modified[0].Changes)

	rep := Steady(VersionRef{ID: uuid.New(), VersionNumber: 1}, cmp)
	assert.True(t, rep.HasChanges)
	require.Len(t, rep.Changes, 3)
	assert.Equal(t, ChangeExamAdded, rep.Changes[0].Type)
	assert.Equal(t, ChangeExamRemoved, rep.Changes[1].Type)
	assert.Equal(t, ChangePeriodicityChanged, rep.Changes[2].Type)
	require.Len(t, rep.AffectedJobs, 1)
	assert.Equal(t, 3, rep.AffectedJobs[0].ChangeCount)
	require.Len(t, rep.AffectedRisks, 1)
	assert.Equal(t, risk, rep.AffectedRisks[0].RiskID)
}

func TestEqualPolicyThroughDifferentProvenanceIsNoChange(t *testing.T) {
	exam := uuid.New()
	risk := uuid.New()
	prev, err := FromRequirements([]pcmso.ExamRequirement{
		requirement(uuid.New(), uuid.New(), exam, "Audiometry", pcmso.SourceRisk, 12, &risk),
	})
	require.NoError(t, err)

	jobRule := consolidate.JobRule{RuleID: uuid.New(), ExamID: exam, ExamName: "Audiometry", Policy: periodicity.EveryMonths(12), OverrideRiskRules: true}
	curr := FromConsolidated([]consolidate.Result{
		consolidate.Job(consolidate.Input{JobID: uuid.New(), JobTitle: "Welder", JobRules: []consolidate.JobRule{jobRule}}),
	})

	assert.True(t, Compare(prev, curr).Empty())
}

func TestReductionAcrossJobsTakesMostStringent(t *testing.T) {
	exam := uuid.New()
	jobA, jobB := uuid.New(), uuid.New()
	v := uuid.New()
	m, err := FromRequirements([]pcmso.ExamRequirement{
		requirement(v, jobA, exam, "Audiometry", pcmso.SourceRisk, 24, nil),
		requirement(v, jobB, exam, "Audiometry", pcmso.SourceJob, 6, nil),
	})
	require.NoError(t, err)

	item := m[exam]
	assert.True(t, item.Policy.Equal(periodicity.EveryMonths(6)))
	assert.Equal(t, pcmso.SourceJob, item.Source)
	assert.Len(t, item.Jobs, 2)

	// Same rows, opposite order.
	m2, err := FromRequirements([]pcmso.ExamRequirement{
		requirement(v, jobB, exam, "Audiometry", pcmso.SourceJob, 6, nil),
		requirement(v, jobA, exam, "Audiometry", pcmso.SourceRisk, 24, nil),
	})
	require.NoError(t, err)
	assert.True(t, m2[exam].Policy.Equal(item.Policy))
	assert.Equal(t, item.Source, m2[exam].Source)
}

func TestBootstrapReportsEverythingAsRuleAdded(t *testing.T) {
	rep := Bootstrap(
		[]JobRef{{ID: uuid.New(), Title: "Machine Operator"}},
		[]RiskRef{{ID: uuid.New(), Name: "Noise >85dB"}, {ID: uuid.New(), Name: "Silica dust"}},
	)
	assert.True(t, rep.HasChanges)
	assert.Nil(t, rep.LastSignedVersion)
	require.Len(t, rep.Changes, 3)
	for _, c := range rep.Changes {
		assert.Equal(t, ChangeRuleAdded, c.Type)
	}
	assert.Len(t, rep.AffectedJobs, 1)
	assert.Len(t, rep.AffectedRisks, 2)

	empty := Bootstrap(nil, nil)
	assert.False(t, empty.HasChanges)
	assert.Empty(t, empty.Changes)
}
