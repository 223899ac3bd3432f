package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/domain/catalog"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/periodicity"
)

func SeedCompany(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Company {
	tb.Helper()
	c := &types.Company{TradeName: name, CorporateName: name + " Ltda", Active: true}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed company: %v", err)
	}
	return c
}

func SeedRiskCategory(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.RiskCategory {
	tb.Helper()
	c := &types.RiskCategory{Name: name, Active: true}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed risk category: %v", err)
	}
	return c
}

func SeedRisk(tb testing.TB, ctx context.Context, tx *gorm.DB, categoryID uuid.UUID, typ types.RiskType, name string) *types.Risk {
	tb.Helper()
	r := &types.Risk{CategoryID: categoryID, Type: typ, Name: name, Active: true}
	if err := tx.WithContext(ctx).Omit("Category").Create(r).Error; err != nil {
		tb.Fatalf("seed risk: %v", err)
	}
	return r
}

func SeedExam(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Examination {
	tb.Helper()
	e := &types.Examination{Name: name, Category: catalog.ExamComplementary, IncludeInASO: true, IncludeInReports: true, Active: true}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed examination: %v", err)
	}
	return e
}

// SeedJob creates an active job exposed to the given risks.
func SeedJob(tb testing.TB, ctx context.Context, tx *gorm.DB, companyID uuid.UUID, title string, riskIDs ...uuid.UUID) *types.Job {
	tb.Helper()
	j := &types.Job{CompanyID: companyID, Title: title, Active: true}
	if err := tx.WithContext(ctx).Omit("Risks").Create(j).Error; err != nil {
		tb.Fatalf("seed job: %v", err)
	}
	for _, riskID := range riskIDs {
		jr := &types.JobRisk{JobID: j.ID, RiskID: riskID}
		if err := tx.WithContext(ctx).Omit("Risk").Create(jr).Error; err != nil {
			tb.Fatalf("seed job risk: %v", err)
		}
	}
	return j
}

func SeedRiskRule(tb testing.TB, ctx context.Context, tx *gorm.DB, riskID, examID uuid.UUID, policy periodicity.Policy) *types.ExamRuleByRisk {
	tb.Helper()
	r := &types.ExamRuleByRisk{RiskID: riskID, ExamID: examID}
	r.SetPolicy(policy)
	r.Active = true
	r.Applicability = types.Applicability{OnAdmission: true, Periodic: true}
	if err := tx.WithContext(ctx).Omit("Risk", "Exam").Create(r).Error; err != nil {
		tb.Fatalf("seed risk rule: %v", err)
	}
	return r
}

func SeedJobRule(tb testing.TB, ctx context.Context, tx *gorm.DB, jobID, examID uuid.UUID, policy periodicity.Policy, override bool) *types.ExamRuleByJob {
	tb.Helper()
	r := &types.ExamRuleByJob{JobID: jobID, ExamID: examID, OverrideRiskRules: override}
	r.SetPolicy(policy)
	r.Active = true
	r.Applicability = types.Applicability{OnAdmission: true, Periodic: true}
	if err := tx.WithContext(ctx).Omit("Job", "Exam").Create(r).Error; err != nil {
		tb.Fatalf("seed job rule: %v", err)
	}
	return r
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrBool(v bool) *bool { return &v }

func PtrInt(v int) *int { return &v }
