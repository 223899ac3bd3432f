package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/occhealth/pcmso-backend/internal/data/db"
	"github.com/occhealth/pcmso-backend/internal/data/repos"
	types "github.com/occhealth/pcmso-backend/internal/domain"
	"github.com/occhealth/pcmso-backend/internal/domain/pcmso"
	"github.com/occhealth/pcmso-backend/internal/events"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/consolidate"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/render"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/signing"
	"github.com/occhealth/pcmso-backend/internal/modules/exams/snapshot"
	"github.com/occhealth/pcmso-backend/internal/observability"
	"github.com/occhealth/pcmso-backend/internal/platform/apierr"
	"github.com/occhealth/pcmso-backend/internal/platform/ctxutil"
	"github.com/occhealth/pcmso-backend/internal/platform/dbctx"
	"github.com/occhealth/pcmso-backend/internal/platform/logger"
)

type DraftOptions struct {
	Title   string `json:"title"`
	UseAI   bool   `json:"useAI"`
	AIModel string `json:"aiModel"`
}

type DraftResult struct {
	Version          *types.PCMSOVersion   `json:"version"`
	Changes          snapshot.ChangeReport `json:"changes"`
	RequirementCount int                   `json:"requirementCount"`
}

type VersionDetail struct {
	*types.PCMSOVersion
	Requirements []*types.PCMSOExamRequirement `json:"exam_requirements"`
}

type DigestCheck struct {
	VersionID      uuid.UUID    `json:"versionId"`
	Status         pcmso.Status `json:"status"`
	StoredDigest   string       `json:"storedDigest"`
	ComputedDigest string       `json:"computedDigest"`
	Valid          bool         `json:"valid"`
}

type VersionSummary struct {
	ID            uuid.UUID    `json:"id"`
	VersionNumber int          `json:"versionNumber"`
	Status        pcmso.Status `json:"status"`
	Title         string       `json:"title"`
}

type VersionDiff struct {
	FromVersion   VersionSummary      `json:"fromVersion"`
	ToVersion     VersionSummary      `json:"toVersion"`
	ExamsAdded    []snapshot.Item     `json:"examsAdded"`
	ExamsRemoved  []snapshot.Item     `json:"examsRemoved"`
	ExamsModified []snapshot.Modified `json:"examsModified"`
	RulesAdded    int                 `json:"rulesAdded"`
	RulesRemoved  int                 `json:"rulesRemoved"`
	RulesModified int                 `json:"rulesModified"`
	// ContentPatch is a unified-style patch from the older rendered content to the newer.
	ContentPatch string `json:"contentPatch"`
}

// diffBlob is the stored diff_from_previous document.
type diffBlob struct {
	snapshot.ChangeReport
	DetectedAt time.Time `json:"detectedAt"`
}

type PCMSOService interface {
	DetectChanges(dbc dbctx.Context, companyID uuid.UUID) (*snapshot.ChangeReport, error)
	GenerateDraft(dbc dbctx.Context, companyID, userID uuid.UUID, opts DraftOptions) (*DraftResult, error)
	SubmitForReview(dbc dbctx.Context, versionID, userID uuid.UUID) (*types.PCMSOVersion, error)
	SignVersion(dbc dbctx.Context, versionID, userID uuid.UUID) (*types.PCMSOVersion, error)
	ArchiveVersion(dbc dbctx.Context, versionID, userID uuid.UUID) (*types.PCMSOVersion, error)
	MarkPreviousVersionsOutdated(dbc dbctx.Context, companyID uuid.UUID, currentVersionNumber int) (int64, error)
	VerifyDigest(dbc dbctx.Context, versionID uuid.UUID) (*DigestCheck, error)

	GetVersion(dbc dbctx.Context, versionID uuid.UUID) (*VersionDetail, error)
	ListVersions(dbc dbctx.Context, companyID uuid.UUID) ([]*types.PCMSOVersion, error)
	LatestSigned(dbc dbctx.Context, companyID uuid.UUID) (*types.PCMSOVersion, error)
	Diff(dbc dbctx.Context, fromID, toID uuid.UUID) (*VersionDiff, error)
}

type pcmsoService struct {
	db            *gorm.DB
	log           *logger.Logger
	metrics       *observability.Metrics
	publisher     events.Publisher
	companies     repos.CompanyRepo
	jobs          repos.JobRepo
	versions      repos.PCMSOVersionRepo
	requirements  repos.PCMSORequirementRepo
	consolidation ConsolidationService
	now           func() time.Time
}

func NewPCMSOService(
	db *gorm.DB,
	baseLog *logger.Logger,
	metrics *observability.Metrics,
	publisher events.Publisher,
	companies repos.CompanyRepo,
	jobs repos.JobRepo,
	versions repos.PCMSOVersionRepo,
	requirements repos.PCMSORequirementRepo,
	consolidation ConsolidationService,
) PCMSOService {
	if publisher == nil {
		publisher = events.Noop()
	}
	return &pcmsoService{
		db:            db,
		log:           baseLog.With("service", "PCMSOService"),
		metrics:       metrics,
		publisher:     publisher,
		companies:     companies,
		jobs:          jobs,
		versions:      versions,
		requirements:  requirements,
		consolidation: consolidation,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ---- change detection ----

func (s *pcmsoService) DetectChanges(dbc dbctx.Context, companyID uuid.UUID) (out *snapshot.ChangeReport, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.DetectChanges", idAttr("company_id", companyID))
	defer func() { op.end(err) }()

	if _, err := s.company(dbc, companyID); err != nil {
		return nil, err
	}
	state, err := s.detect(dbc, companyID)
	if err != nil {
		return nil, err
	}
	return &state.report, nil
}

type detection struct {
	report     snapshot.ChangeReport
	results    []consolidate.Result
	lastSigned *types.PCMSOVersion
}

// detect compares the live consolidated state against the last signed
// version. Outside a transaction both sides load concurrently.
func (s *pcmsoService) detect(dbc dbctx.Context, companyID uuid.UUID) (detection, error) {
	var (
		last    *types.PCMSOVersion
		prevReq []*types.PCMSOExamRequirement
		jobs    []*types.Job
		results []consolidate.Result
	)
	loadPrev := func(dbc dbctx.Context) error {
		v, err := s.versions.LatestSigned(dbc, companyID)
		if err != nil {
			return fmt.Errorf("latest signed version: %w", err)
		}
		if v == nil {
			return nil
		}
		rows, err := s.requirements.ListByVersion(dbc, v.ID)
		if err != nil {
			return fmt.Errorf("list requirements: %w", err)
		}
		last, prevReq = v, rows
		return nil
	}
	loadCurr := func(dbc dbctx.Context) error {
		var err error
		jobs, err = s.jobs.ListActiveByCompany(dbc, companyID)
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		results, err = s.consolidation.ConsolidateJobs(dbc, jobs)
		return err
	}

	if isDBTransaction(dbc.Tx) {
		if err := loadPrev(dbc); err != nil {
			return detection{}, err
		}
		if err := loadCurr(dbc); err != nil {
			return detection{}, err
		}
	} else {
		g, gctx := errgroup.WithContext(dbc.Ctx)
		g.Go(func() error { return loadPrev(dbctx.Context{Ctx: gctx}) })
		g.Go(func() error { return loadCurr(dbctx.Context{Ctx: gctx}) })
		if err := g.Wait(); err != nil {
			return detection{}, err
		}
	}

	if last == nil {
		return detection{report: snapshot.Bootstrap(jobRefs(jobs), riskRefs(jobs)), results: results}, nil
	}
	prev, err := snapshot.FromRequirements(derefRequirements(prevReq))
	if err != nil {
		return detection{}, fmt.Errorf("snapshot of version %d: %w", last.VersionNumber, err)
	}
	ref := snapshot.VersionRef{ID: last.ID, VersionNumber: last.VersionNumber, SignedAt: last.SignedAt}
	cmp := snapshot.Compare(prev, snapshot.FromConsolidated(results))
	return detection{report: snapshot.Steady(ref, cmp), results: results, lastSigned: last}, nil
}

func jobRefs(jobs []*types.Job) []snapshot.JobRef {
	out := make([]snapshot.JobRef, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, snapshot.JobRef{ID: j.ID, Title: j.Title})
	}
	return out
}

// riskRefs lists the active risks mapped to any of the jobs, by name.
func riskRefs(jobs []*types.Job) []snapshot.RiskRef {
	seen := map[uuid.UUID]bool{}
	var out []snapshot.RiskRef
	for _, j := range jobs {
		for _, jr := range j.Risks {
			if jr.Risk == nil || !jr.Risk.Active || seen[jr.RiskID] {
				continue
			}
			seen[jr.RiskID] = true
			out = append(out, snapshot.RiskRef{ID: jr.RiskID, Name: jr.Risk.Name})
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Name != out[k].Name {
			return out[i].Name < out[k].Name
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	return out
}

// ---- draft generation ----

func (s *pcmsoService) GenerateDraft(dbc dbctx.Context, companyID, userID uuid.UUID, opts DraftOptions) (out *DraftResult, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.GenerateDraft", idAttr("company_id", companyID))
	defer func() { op.end(err) }()

	var result DraftResult
	err = inTx(dbc, s.db, func(dbc dbctx.Context) error {
		company, err := s.company(dbc, companyID)
		if err != nil {
			return err
		}
		state, err := s.detect(dbc, companyID)
		if err != nil {
			return err
		}
		maxNumber, err := s.versions.MaxVersionNumber(dbc, companyID)
		if err != nil {
			return fmt.Errorf("max version number: %w", err)
		}
		next := maxNumber + 1
		now := s.now()

		title := strings.TrimSpace(opts.Title)
		if title == "" {
			title = fmt.Sprintf("PCMSO %s - v%d", company.TradeName, next)
		}
		content, err := render.HTML(render.Input{
			Company:       *company,
			Title:         title,
			VersionNumber: next,
			GeneratedAt:   now,
			Jobs:          state.results,
			Changes:       state.report,
		})
		if err != nil {
			return fmt.Errorf("render content: %w", err)
		}

		version := &types.PCMSOVersion{
			CompanyID:       companyID,
			VersionNumber:   next,
			Status:          pcmso.StatusDraft,
			Title:           title,
			ContentHTML:     content,
			GeneratedByAI:   opts.UseAI,
			AIModel:         strings.TrimSpace(opts.AIModel),
			CreatedByUserID: userID,
		}
		if state.lastSigned != nil {
			raw, err := json.Marshal(diffBlob{ChangeReport: state.report, DetectedAt: now})
			if err != nil {
				return fmt.Errorf("encode diff: %w", err)
			}
			version.DiffFromPrevious = datatypes.JSON(raw)
		}
		if err := s.versions.Create(dbc, version); err != nil {
			if db.IsUniqueViolation(err) {
				return apierr.Conflict("version_number_taken", "version %d of company %s was created concurrently", next, companyID)
			}
			return fmt.Errorf("create version: %w", err)
		}

		rows, err := materialize(version.ID, state.results)
		if err != nil {
			return err
		}
		if err := s.requirements.CreateMany(dbc, rows); err != nil {
			if db.IsUniqueViolation(err) {
				return apierr.Conflict("version_number_taken", "version %d of company %s was created concurrently", next, companyID)
			}
			return fmt.Errorf("create requirements: %w", err)
		}

		result = DraftResult{Version: version, Changes: state.report, RequirementCount: len(rows)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	op.span.SetAttributes(attribute.Int("version_number", result.Version.VersionNumber), attribute.Int("requirements", result.RequirementCount))
	s.log.Info("pcmso draft generated",
		"company_id", companyID,
		"version_id", result.Version.ID,
		"version_number", result.Version.VersionNumber,
		"requirements", result.RequirementCount,
		"has_changes", result.Changes.HasChanges,
	)
	s.emit(dbc, events.Event{
		Type:          events.DraftGenerated,
		CompanyID:     companyID,
		VersionID:     result.Version.ID,
		VersionNumber: result.Version.VersionNumber,
		ActorUserID:   userID,
	})
	return &result, nil
}

// materialize freezes the consolidated state into one row per (job, exam).
func materialize(versionID uuid.UUID, results []consolidate.Result) ([]*types.PCMSOExamRequirement, error) {
	var rows []*types.PCMSOExamRequirement
	for _, res := range results {
		for _, entry := range res.Consolidated {
			primary := entry.Primary()
			provenance, err := json.Marshal(entry.SourceRefs())
			if err != nil {
				return nil, fmt.Errorf("encode provenance: %w", err)
			}
			row := &types.PCMSOExamRequirement{
				VersionID:        versionID,
				JobID:            res.JobID,
				JobTitle:         res.JobTitle,
				ExamID:           entry.ExamID,
				ExamName:         entry.ExamName,
				Source:           primary.Type,
				SourceRuleID:     primary.RuleID,
				SourceRiskID:     primary.RiskID,
				PeriodicityType:  entry.Effective.Type,
				PeriodicityValue: entry.Effective.Months,
				Applicability:    entry.Applicability,
				Provenance:       datatypes.JSON(provenance),
			}
			if adv := entry.Effective.AdvancedJSON(); adv != nil {
				row.PeriodicityAdvancedRule = datatypes.JSON(adv)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// ---- lifecycle ----

func (s *pcmsoService) SubmitForReview(dbc dbctx.Context, versionID, userID uuid.UUID) (out *types.PCMSOVersion, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.SubmitForReview", idAttr("version_id", versionID))
	defer func() { op.end(err) }()

	v, err := s.version(dbc, versionID)
	if err != nil {
		return nil, err
	}
	switch v.Status {
	case pcmso.StatusDraft:
	case pcmso.StatusSigned:
		return nil, apierr.Conflict("version_already_signed", "version %d is already signed", v.VersionNumber)
	default:
		return nil, apierr.BadRequest("invalid_status_transition", "cannot submit a %s version for review", v.Status)
	}
	ok, err := s.versions.UpdateFieldsIfStatus(dbc, versionID, pcmso.SourcesFrom(pcmso.StatusUnderReview), map[string]interface{}{
		"status": pcmso.StatusUnderReview,
	})
	if err != nil {
		return nil, fmt.Errorf("submit for review: %w", err)
	}
	if !ok {
		return nil, apierr.Conflict("version_status_changed", "version %d changed status concurrently", v.VersionNumber)
	}
	s.emit(dbc, events.Event{Type: events.VersionReview, CompanyID: v.CompanyID, VersionID: v.ID, VersionNumber: v.VersionNumber, ActorUserID: userID})
	return s.version(dbc, versionID)
}

func (s *pcmsoService) SignVersion(dbc dbctx.Context, versionID, userID uuid.UUID) (out *types.PCMSOVersion, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.SignVersion", idAttr("version_id", versionID))
	defer func() { op.end(err) }()

	var (
		signed   *types.PCMSOVersion
		outdated int64
	)
	err = inTx(dbc, s.db, func(dbc dbctx.Context) error {
		v, err := s.version(dbc, versionID)
		if err != nil {
			return err
		}
		if err := signable(v); err != nil {
			return err
		}
		latest, err := s.versions.LatestSigned(dbc, v.CompanyID)
		if err != nil {
			return fmt.Errorf("latest signed version: %w", err)
		}
		if latest != nil && latest.VersionNumber > v.VersionNumber {
			return apierr.BadRequest("version_superseded", "version %d is older than signed version %d", v.VersionNumber, latest.VersionNumber)
		}
		rows, err := s.requirements.ListByVersion(dbc, versionID)
		if err != nil {
			return fmt.Errorf("list requirements: %w", err)
		}
		digest, err := signing.Digest(*v, derefRequirements(rows))
		if err != nil {
			return fmt.Errorf("digest: %w", err)
		}
		now := s.now()
		ok, err := s.versions.UpdateFieldsIfStatus(dbc, versionID, pcmso.SourcesFrom(pcmso.StatusSigned), map[string]interface{}{
			"status":            pcmso.StatusSigned,
			"signed_at":         now,
			"signed_by_user_id": userID,
			"digest":            digest,
		})
		if err != nil {
			return fmt.Errorf("sign version: %w", err)
		}
		if !ok {
			return apierr.Conflict("version_already_signed", "version %d was signed concurrently", v.VersionNumber)
		}
		outdated, err = s.MarkPreviousVersionsOutdated(dbc, v.CompanyID, v.VersionNumber)
		if err != nil {
			return err
		}
		signed, err = s.version(dbc, versionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("pcmso version signed",
		"company_id", signed.CompanyID,
		"version_id", signed.ID,
		"version_number", signed.VersionNumber,
		"signed_by_user_id", userID,
		"outdated", outdated,
	)
	s.emit(dbc, events.Event{
		Type:          events.VersionSigned,
		CompanyID:     signed.CompanyID,
		VersionID:     signed.ID,
		VersionNumber: signed.VersionNumber,
		Digest:        signed.Digest,
		ActorUserID:   userID,
	})
	if outdated > 0 {
		s.emit(dbc, events.Event{Type: events.VersionOutdated, CompanyID: signed.CompanyID, VersionID: signed.ID, VersionNumber: signed.VersionNumber, Count: outdated})
	}
	return signed, nil
}

func signable(v *types.PCMSOVersion) error {
	switch {
	case v.Status == pcmso.StatusSigned:
		return apierr.Conflict("version_already_signed", "version %d is already signed", v.VersionNumber)
	case v.Status.Terminal():
		return apierr.BadRequest("version_not_signable", "a %s version cannot be signed", v.Status)
	}
	return nil
}

func (s *pcmsoService) ArchiveVersion(dbc dbctx.Context, versionID, userID uuid.UUID) (out *types.PCMSOVersion, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.ArchiveVersion", idAttr("version_id", versionID))
	defer func() { op.end(err) }()

	v, err := s.version(dbc, versionID)
	if err != nil {
		return nil, err
	}
	switch {
	case v.Status == pcmso.StatusSigned:
		return nil, apierr.Conflict("version_already_signed", "signed version %d cannot be archived", v.VersionNumber)
	case v.Status.Terminal():
		return nil, apierr.BadRequest("invalid_status_transition", "version %d is already %s", v.VersionNumber, v.Status)
	}
	ok, err := s.versions.UpdateFieldsIfStatus(dbc, versionID, pcmso.SourcesFrom(pcmso.StatusArchived), map[string]interface{}{
		"status": pcmso.StatusArchived,
	})
	if err != nil {
		return nil, fmt.Errorf("archive version: %w", err)
	}
	if !ok {
		return nil, apierr.Conflict("version_status_changed", "version %d changed status concurrently", v.VersionNumber)
	}
	s.emit(dbc, events.Event{Type: events.VersionArchived, CompanyID: v.CompanyID, VersionID: v.ID, VersionNumber: v.VersionNumber, ActorUserID: userID})
	return s.version(dbc, versionID)
}

func (s *pcmsoService) MarkPreviousVersionsOutdated(dbc dbctx.Context, companyID uuid.UUID, currentVersionNumber int) (n int64, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.MarkPreviousVersionsOutdated", idAttr("company_id", companyID))
	defer func() { op.end(err) }()

	if currentVersionNumber < 1 {
		return 0, apierr.Validation("invalid_version_number", "version number must be at least 1, got %d", currentVersionNumber)
	}
	if _, err := s.company(dbc, companyID); err != nil {
		return 0, err
	}
	n, err = s.versions.MarkOutdatedBefore(dbc, companyID, currentVersionNumber)
	if err != nil {
		return 0, fmt.Errorf("mark previous versions outdated: %w", err)
	}
	if n > 0 {
		s.log.Info("pcmso versions outdated", "company_id", companyID, "before_version", currentVersionNumber, "count", n)
		s.emit(dbc, events.Event{Type: events.VersionOutdated, CompanyID: companyID, VersionNumber: currentVersionNumber, Count: n})
	}
	return n, nil
}

func (s *pcmsoService) VerifyDigest(dbc dbctx.Context, versionID uuid.UUID) (out *DigestCheck, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.VerifyDigest", idAttr("version_id", versionID))
	defer func() { op.end(err) }()

	v, err := s.version(dbc, versionID)
	if err != nil {
		return nil, err
	}
	if v.Digest == "" {
		return nil, apierr.BadRequest("version_not_signed", "version %d has never been signed", v.VersionNumber)
	}
	rows, err := s.requirements.ListByVersion(dbc, versionID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	computed, err := signing.Digest(*v, derefRequirements(rows))
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	return &DigestCheck{
		VersionID:      v.ID,
		Status:         v.Status,
		StoredDigest:   v.Digest,
		ComputedDigest: computed,
		Valid:          computed == v.Digest,
	}, nil
}

// ---- reads ----

func (s *pcmsoService) GetVersion(dbc dbctx.Context, versionID uuid.UUID) (*VersionDetail, error) {
	v, err := s.version(dbc, versionID)
	if err != nil {
		return nil, err
	}
	rows, err := s.requirements.ListByVersion(dbc, versionID)
	if err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	return &VersionDetail{PCMSOVersion: v, Requirements: rows}, nil
}

func (s *pcmsoService) ListVersions(dbc dbctx.Context, companyID uuid.UUID) ([]*types.PCMSOVersion, error) {
	if _, err := s.company(dbc, companyID); err != nil {
		return nil, err
	}
	return s.versions.ListByCompany(dbc, companyID)
}

func (s *pcmsoService) LatestSigned(dbc dbctx.Context, companyID uuid.UUID) (*types.PCMSOVersion, error) {
	if _, err := s.company(dbc, companyID); err != nil {
		return nil, err
	}
	v, err := s.versions.LatestSigned(dbc, companyID)
	if err != nil {
		return nil, fmt.Errorf("latest signed version: %w", err)
	}
	if v == nil {
		return nil, apierr.NotFound("no_signed_version", "company %s has no signed PCMSO version", companyID)
	}
	return v, nil
}

// ---- diff ----

func (s *pcmsoService) Diff(dbc dbctx.Context, fromID, toID uuid.UUID) (out *VersionDiff, err error) {
	dbc, op := startOperation(dbc, s.metrics, "pcmso.Diff", idAttr("from_version_id", fromID), idAttr("to_version_id", toID))
	defer func() { op.end(err) }()

	from, err := s.GetVersion(dbc, fromID)
	if err != nil {
		return nil, err
	}
	to, err := s.GetVersion(dbc, toID)
	if err != nil {
		return nil, err
	}
	if from.CompanyID != to.CompanyID {
		return nil, apierr.Validation("versions_from_different_companies", "versions %s and %s belong to different companies", fromID, toID)
	}
	prev, err := snapshot.FromRequirements(derefRequirements(from.Requirements))
	if err != nil {
		return nil, fmt.Errorf("snapshot of version %d: %w", from.VersionNumber, err)
	}
	curr, err := snapshot.FromRequirements(derefRequirements(to.Requirements))
	if err != nil {
		return nil, fmt.Errorf("snapshot of version %d: %w", to.VersionNumber, err)
	}
	cmp := snapshot.Compare(prev, curr)

	return &VersionDiff{
		FromVersion:   summarize(from.PCMSOVersion),
		ToVersion:     summarize(to.PCMSOVersion),
		ExamsAdded:    cmp.Added,
		ExamsRemoved:  cmp.Removed,
		ExamsModified: cmp.Modified,
		RulesAdded:    len(cmp.Added),
		RulesRemoved:  len(cmp.Removed),
		RulesModified: len(cmp.Modified),
		ContentPatch:  contentPatch(from.ContentHTML, to.ContentHTML),
	}, nil
}

func contentPatch(from, to string) string {
	if from == to {
		return ""
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(from, to, false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.PatchToText(dmp.PatchMake(from, diffs))
}

func summarize(v *types.PCMSOVersion) VersionSummary {
	return VersionSummary{ID: v.ID, VersionNumber: v.VersionNumber, Status: v.Status, Title: v.Title}
}

// ---- helpers ----

func (s *pcmsoService) company(dbc dbctx.Context, id uuid.UUID) (*types.Company, error) {
	c, err := s.companies.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	if c == nil {
		return nil, apierr.NotFound("company_not_found", "company %s not found", id)
	}
	return c, nil
}

func (s *pcmsoService) version(dbc dbctx.Context, id uuid.UUID) (*types.PCMSOVersion, error) {
	v, err := s.versions.GetByID(dbc, id)
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	if v == nil {
		return nil, apierr.NotFound("version_not_found", "PCMSO version %s not found", id)
	}
	return v, nil
}

// emit publishes after the write has committed. Publish failures are logged only.
// Nothing is published while dbc carries a transaction: its owner decides
// whether the write ever commits.
func (s *pcmsoService) emit(dbc dbctx.Context, evt events.Event) {
	if dbc.Tx != nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now()
	}
	if err := s.publisher.Publish(ctxutil.Default(dbc.Ctx), evt); err != nil {
		s.log.Warn("event publish failed", "type", evt.Type, "version_id", evt.VersionID, "error", err)
	}
}

func derefRequirements(rows []*types.PCMSOExamRequirement) []pcmso.ExamRequirement {
	out := make([]pcmso.ExamRequirement, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	return out
}
