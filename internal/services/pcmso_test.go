package services

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/pcmso-backend/internal/data/repos/testutil"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/events"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/snapshot"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
)

type pcmsoFixture struct {
	company *types.Company
	noise   *types.Risk
	audio   *types.Examination
	job     *types.Job
	rule    *types.ExamRuleByRisk
	user    uuid.UUID
}

// seedMachineOperator maps a noise-exposed job to a yearly audiometry.
func seedMachineOperator(t *testing.T, h *harness) pcmsoFixture {
	t.Helper()
	f := pcmsoFixture{user: uuid.New()}
	f.company = testutil.SeedCompany(t, h.ctx, h.db, "Acme")
	cat := testutil.SeedRiskCategory(t, h.ctx, h.db, "Físicos")
	f.noise = testutil.SeedRisk(t, h.ctx, h.db, cat.ID, catalog.RiskPhysical, "Noise >85dB")
	f.audio = testutil.SeedExam(t, h.ctx, h.db, "Audiometry")
	f.job = testutil.SeedJob(t, h.ctx, h.db, f.company.ID, "Machine Operator", f.noise.ID)
	f.rule = testutil.SeedRiskRule(t, h.ctx, h.db, f.noise.ID, f.audio.ID, periodicity.EveryMonths(12))
	return f
}

func TestDetectChangesBootstrap(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	rep, err := h.pcmso.DetectChanges(h.dbc, f.company.ID)
	require.NoError(t, err)

	assert.True(t, rep.HasChanges)
	assert.Nil(t, rep.LastSignedVersion)
	require.Len(t, rep.Changes, 2)
	for _, c := range rep.Changes {
		assert.Equal(t, snapshot.ChangeRuleAdded, c.Type)
	}
	require.Len(t, rep.AffectedJobs, 1)
	assert.Equal(t, "Machine Operator", rep.AffectedJobs[0].JobTitle)
	require.Len(t, rep.AffectedRisks, 1)
	assert.Equal(t, f.noise.ID, rep.AffectedRisks[0].RiskID)

	_, err = h.pcmso.DetectChanges(h.dbc, uuid.New())
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestGenerateDraftMaterializesRequirements(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	draft, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)

	v := draft.Version
	assert.Equal(t, 1, v.VersionNumber)
	assert.Equal(t, pcmso.StatusDraft, v.Status)
	assert.Equal(t, "PCMSO Acme - v1", v.Title)
	assert.Equal(t, f.user, v.CreatedByUserID)
	assert.Empty(t, v.DiffFromPrevious)
	assert.Contains(t, v.ContentHTML, "Machine Operator")
	assert.Equal(t, 1, draft.RequirementCount)

	detail, err := h.pcmso.GetVersion(h.dbc, v.ID)
	require.NoError(t, err)
	require.Len(t, detail.Requirements, 1)
	row := detail.Requirements[0]
	assert.Equal(t, f.job.ID, row.JobID)
	assert.Equal(t, f.audio.ID, row.ExamID)
	assert.Equal(t, pcmso.SourceRisk, row.Source)
	assert.Equal(t, f.rule.ID, row.SourceRuleID)
	assert.Equal(t, 12, *row.PeriodicityValue)

	var refs []pcmso.SourceRef
	require.NoError(t, json.Unmarshal(row.Provenance, &refs))
	require.Len(t, refs, 1)
	assert.Equal(t, "Noise >85dB", refs[0].RiskName)

	assert.Equal(t, []events.Type{events.DraftGenerated}, h.events.Types())

	second, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{Title: "Revisão anual"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version.VersionNumber)
	assert.Equal(t, "Revisão anual", second.Version.Title)
}

func TestSignLifecycleOutdatesPreviousVersions(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	d1, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	signed, err := h.pcmso.SignVersion(h.dbc, d1.Version.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, pcmso.StatusSigned, signed.Status)
	require.NotNil(t, signed.SignedAt)
	require.NotNil(t, signed.SignedByUserID)
	assert.Equal(t, f.user, *signed.SignedByUserID)
	assert.Len(t, signed.Digest, 64)

	_, err = h.pcmso.SignVersion(h.dbc, d1.Version.ID, uuid.New())
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindConflict, ae.Kind)
	assert.Equal(t, "version_already_signed", ae.Code)

	unchanged, err := h.pcmso.GetVersion(h.dbc, d1.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, pcmso.StatusSigned, unchanged.Status)
	assert.Equal(t, signed.Digest, unchanged.Digest)
	require.NotNil(t, unchanged.SignedByUserID)
	assert.Equal(t, f.user, *unchanged.SignedByUserID)
	require.NotNil(t, unchanged.SignedAt)
	assert.True(t, signed.SignedAt.Equal(*unchanged.SignedAt))

	rep, err := h.pcmso.DetectChanges(h.dbc, f.company.ID)
	require.NoError(t, err)
	assert.False(t, rep.HasChanges)
	require.NotNil(t, rep.LastSignedVersion)
	assert.Equal(t, 1, rep.LastSignedVersion.VersionNumber)

	six := 6
	_, err = h.riskRules.Update(h.dbc, f.rule.ID, RulePatch{PeriodicityValue: &six})
	require.NoError(t, err)

	rep, err = h.pcmso.DetectChanges(h.dbc, f.company.ID)
	require.NoError(t, err)
	require.True(t, rep.HasChanges)
	require.Len(t, rep.Changes, 1)
	assert.Equal(t, snapshot.ChangePeriodicityChanged, rep.Changes[0].Type)

	d2, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	var blob map[string]interface{}
	require.NoError(t, json.Unmarshal(d2.Version.DiffFromPrevious, &blob))
	assert.Equal(t, true, blob["hasChanges"])
	assert.Contains(t, blob, "detectedAt")

	_, err = h.pcmso.SignVersion(h.dbc, d2.Version.ID, f.user)
	require.NoError(t, err)

	v1, err := h.pcmso.GetVersion(h.dbc, d1.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, pcmso.StatusOutdated, v1.Status)

	latest, err := h.pcmso.LatestSigned(h.dbc, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, d2.Version.ID, latest.ID)

	assert.Equal(t, []events.Type{
		events.DraftGenerated,
		events.VersionSigned,
		events.DraftGenerated,
		events.VersionSigned,
		events.VersionOutdated,
	}, h.events.Types())

	_, err = h.pcmso.SignVersion(h.dbc, d1.Version.ID, f.user)
	assert.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))
}

func TestSignRejectsVersionOlderThanLatestSigned(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	d1, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	d2, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	_, err = h.pcmso.SignVersion(h.dbc, d2.Version.ID, f.user)
	require.NoError(t, err)

	_, err = h.pcmso.SignVersion(h.dbc, d1.Version.ID, f.user)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindBadRequest, ae.Kind)
	assert.Equal(t, "version_superseded", ae.Code)

	v1, err := h.pcmso.GetVersion(h.dbc, d1.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, pcmso.StatusDraft, v1.Status)
	assert.Empty(t, v1.Digest)

	versions, err := h.pcmso.ListVersions(h.dbc, f.company.ID)
	require.NoError(t, err)
	signedCount := 0
	for _, v := range versions {
		if v.Status == pcmso.StatusSigned {
			signedCount++
		}
	}
	assert.Equal(t, 1, signedCount)
}

func TestConcurrentSignHasOneWinner(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)
	d, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)

	const signers = 4
	errs := make([]error, signers)
	var wg sync.WaitGroup
	for i := 0; i < signers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.pcmso.SignVersion(h.dbc, d.Version.ID, uuid.New())
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))
	}
	assert.Equal(t, 1, wins)
}

func TestStatusTransitions(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	d, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)

	reviewed, err := h.pcmso.SubmitForReview(h.dbc, d.Version.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, pcmso.StatusUnderReview, reviewed.Status)

	_, err = h.pcmso.SubmitForReview(h.dbc, d.Version.ID, f.user)
	assert.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))

	archived, err := h.pcmso.ArchiveVersion(h.dbc, d.Version.ID, f.user)
	require.NoError(t, err)
	assert.Equal(t, pcmso.StatusArchived, archived.Status)

	_, err = h.pcmso.SignVersion(h.dbc, d.Version.ID, f.user)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "version_not_signable", ae.Code)

	d2, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	_, err = h.pcmso.SignVersion(h.dbc, d2.Version.ID, f.user)
	require.NoError(t, err)
	_, err = h.pcmso.ArchiveVersion(h.dbc, d2.Version.ID, f.user)
	assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))
	_, err = h.pcmso.SubmitForReview(h.dbc, d2.Version.ID, f.user)
	assert.Equal(t, apierr.KindConflict, apierr.KindOf(err))

	_, err = h.pcmso.SubmitForReview(h.dbc, uuid.New(), f.user)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestMarkPreviousVersionsOutdatedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	d1, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	_, err = h.pcmso.SignVersion(h.dbc, d1.Version.ID, f.user)
	require.NoError(t, err)

	n, err := h.pcmso.MarkPreviousVersionsOutdated(h.dbc, f.company.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = h.pcmso.MarkPreviousVersionsOutdated(h.dbc, f.company.ID, 2)
	require.NoError(t, err)
	assert.Zero(t, n)

	v1, err := h.pcmso.GetVersion(h.dbc, d1.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, pcmso.StatusOutdated, v1.Status)
	assert.Equal(t, []events.Type{
		events.DraftGenerated,
		events.VersionSigned,
		events.VersionOutdated,
	}, h.events.Types())

	_, err = h.pcmso.MarkPreviousVersionsOutdated(h.dbc, uuid.New(), 2)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
	_, err = h.pcmso.MarkPreviousVersionsOutdated(h.dbc, f.company.ID, 0)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}

func TestEventsWaitForCallerTransaction(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	tx := h.db.Begin()
	require.NoError(t, tx.Error)
	_, err := h.pcmso.GenerateDraft(h.dbc.WithTx(tx), f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback().Error)

	assert.Empty(t, h.events.Types())
	versions, err := h.pcmso.ListVersions(h.dbc, f.company.ID)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestVerifyDigestDetectsTampering(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	d, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)

	_, err = h.pcmso.VerifyDigest(h.dbc, d.Version.ID)
	assert.Equal(t, apierr.KindBadRequest, apierr.KindOf(err))

	_, err = h.pcmso.SignVersion(h.dbc, d.Version.ID, f.user)
	require.NoError(t, err)

	check, err := h.pcmso.VerifyDigest(h.dbc, d.Version.ID)
	require.NoError(t, err)
	assert.True(t, check.Valid)

	require.NoError(t, h.db.Exec("UPDATE pcmso_version SET content_html = ? WHERE id = ?", "<p>edited</p>", d.Version.ID).Error)
	check, err = h.pcmso.VerifyDigest(h.dbc, d.Version.ID)
	require.NoError(t, err)
	assert.False(t, check.Valid)
	assert.NotEqual(t, check.StoredDigest, check.ComputedDigest)
}

func TestDiffVersions(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	d1, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)

	same, err := h.pcmso.Diff(h.dbc, d1.Version.ID, d1.Version.ID)
	require.NoError(t, err)
	assert.Empty(t, same.ExamsAdded)
	assert.Empty(t, same.ExamsRemoved)
	assert.Empty(t, same.ExamsModified)
	assert.Empty(t, same.ContentPatch)

	six := 6
	_, err = h.riskRules.Update(h.dbc, f.rule.ID, RulePatch{PeriodicityValue: &six})
	require.NoError(t, err)
	spiro := testutil.SeedExam(t, h.ctx, h.db, "Spirometry")
	testutil.SeedJobRule(t, h.ctx, h.db, f.job.ID, spiro.ID, periodicity.EveryMonths(24), false)

	d2, err := h.pcmso.GenerateDraft(h.dbc, f.company.ID, f.user, DraftOptions{})
	require.NoError(t, err)

	diff, err := h.pcmso.Diff(h.dbc, d1.Version.ID, d2.Version.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, diff.FromVersion.VersionNumber)
	assert.Equal(t, 2, diff.ToVersion.VersionNumber)
	assert.Equal(t, 1, diff.RulesAdded)
	assert.Equal(t, 0, diff.RulesRemoved)
	assert.Equal(t, 1, diff.RulesModified)
	require.Len(t, diff.ExamsAdded, 1)
	assert.Equal(t, spiro.ID, diff.ExamsAdded[0].ExamID)
	require.Len(t, diff.ExamsModified, 1)
	assert.NotEmpty(t, diff.ExamsModified[0].Changes)
	assert.NotEmpty(t, diff.ContentPatch)

	other := testutil.SeedCompany(t, h.ctx, h.db, "Other")
	testutil.SeedJob(t, h.ctx, h.db, other.ID, "Clerk")
	foreign, err := h.pcmso.GenerateDraft(h.dbc, other.ID, f.user, DraftOptions{})
	require.NoError(t, err)
	_, err = h.pcmso.Diff(h.dbc, d1.Version.ID, foreign.Version.ID)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindValidation, ae.Kind)
	assert.Equal(t, "versions_from_different_companies", ae.Code)

	_, err = h.pcmso.Diff(h.dbc, d1.Version.ID, uuid.New())
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestLatestSignedNotFound(t *testing.T) {
	h := newHarness(t)
	f := seedMachineOperator(t, h)

	_, err := h.pcmso.LatestSigned(h.dbc, f.company.ID)
	ae, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "no_signed_version", ae.Code)

	list, err := h.pcmso.ListVersions(h.dbc, f.company.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
