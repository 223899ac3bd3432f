package rules

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/occhealth/pcmso-backend/internal/data/db"
	"github.com/occhealth/pcmso-backend/internal/data/repos/testutil"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
)

func TestRiskExamRuleRepo(t *testing.T) {
	conn := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewRiskExamRuleRepo(conn, testutil.Logger(t))

	cat := testutil.SeedRiskCategory(t, ctx, conn, "Físicos")
	noise := testutil.SeedRisk(t, ctx, conn, cat.ID, catalog.RiskPhysical, "Noise >85dB")
	benzene := testutil.SeedRisk(t, ctx, conn, cat.ID, catalog.RiskChemical, "Benzene")
	audiometry := testutil.SeedExam(t, ctx, conn, "Audiometry")
	blood := testutil.SeedExam(t, ctx, conn, "Blood count")

	r1 := &types.ExamRuleByRisk{RiskID: noise.ID, ExamID: audiometry.ID}
	r1.SetPolicy(periodicity.EveryMonths(12))
	r1.Active = true
	require.NoError(t, repo.Create(dbc, r1))

	r2 := &types.ExamRuleByRisk{RiskID: benzene.ID, ExamID: blood.ID}
	r2.SetPolicy(periodicity.EveryMonths(6))
	r2.Active = true
	require.NoError(t, repo.Create(dbc, r2))

	dup := &types.ExamRuleByRisk{RiskID: noise.ID, ExamID: audiometry.ID}
	dup.SetPolicy(periodicity.EveryMonths(6))
	err := repo.Create(dbc, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))

	all, err := repo.List(dbc, RiskExamRuleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Benzene", all[0].Risk.Name)
	assert.Equal(t, "Noise >85dB", all[1].Risk.Name)
	assert.Equal(t, "Audiometry", all[1].Exam.Name)

	physical, err := repo.List(dbc, RiskExamRuleFilter{RiskType: catalog.RiskPhysical})
	require.NoError(t, err)
	require.Len(t, physical, 1)
	assert.Equal(t, r1.ID, physical[0].ID)

	found, err := repo.GetByRiskAndExam(dbc, noise.ID, audiometry.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	p, err := found.Policy()
	require.NoError(t, err)
	assert.True(t, p.Equal(periodicity.EveryMonths(12)))

	require.NoError(t, repo.UpdateFields(dbc, r2.ID, map[string]interface{}{"active": false}))
	active, err := repo.ListActiveByRiskIDs(dbc, []uuid.UUID{noise.ID, benzene.ID})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, r1.ID, active[0].ID)
}

func TestJobExamRuleRepo(t *testing.T) {
	conn := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewJobExamRuleRepo(conn, testutil.Logger(t))

	company := testutil.SeedCompany(t, ctx, conn, "Acme")
	operator := testutil.SeedJob(t, ctx, conn, company.ID, "Machine Operator")
	clerk := testutil.SeedJob(t, ctx, conn, company.ID, "Clerk")
	exam := testutil.SeedExam(t, ctx, conn, "Audiometry")

	r1 := testutil.SeedJobRule(t, ctx, conn, operator.ID, exam.ID, periodicity.EveryMonths(6), true)
	testutil.SeedJobRule(t, ctx, conn, clerk.ID, exam.ID, periodicity.EveryMonths(24), false)

	dup := &types.ExamRuleByJob{JobID: operator.ID, ExamID: exam.ID}
	dup.SetPolicy(periodicity.EveryMonths(12))
	err := repo.Create(dbc, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))

	all, err := repo.List(dbc, JobExamRuleFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Clerk", all[0].Job.Title)

	overriding, err := repo.List(dbc, JobExamRuleFilter{OverrideRiskRules: testutil.PtrBool(true)})
	require.NoError(t, err)
	require.Len(t, overriding, 1)
	assert.Equal(t, r1.ID, overriding[0].ID)

	active, err := repo.ListActiveByJobIDs(dbc, []uuid.UUID{operator.ID})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Audiometry", active[0].Exam.Name)
}
