package aggregates_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/yungbote/lessonbank-backend/internal/data/aggregates"
	aggtest "github.com/yungbote/lessonbank-backend/internal/data/aggregates/testutil"
	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	"github.com/yungbote/lessonbank-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"gorm.io/gorm"
)

type resolutionFixture struct {
	db    *gorm.DB
	deps  aggregates.DuplicateResolutionAggregateDeps
	hooks *aggtest.HooksRecorder
	admin uuid.UUID
}

func newResolutionFixture(t *testing.T) *resolutionFixture {
	t.Helper()
	db := testutil.SQLite(t)
	log := testutil.Logger(t)
	hooks := &aggtest.HooksRecorder{}
	f := &resolutionFixture{
		db:    db,
		hooks: hooks,
		deps: aggregates.DuplicateResolutionAggregateDeps{
			Base:        aggregates.BaseDeps{DB: db, Log: log, Hooks: hooks},
			Lessons:     repos.NewLessonRepo(db, log),
			Archives:    repos.NewArchiveRepo(db, log),
			Resolutions: repos.NewResolutionRepo(db, log),
			Canonicals:  repos.NewCanonicalRepo(db, log),
			Roles:       repos.NewUserRoleRepo(db, log),
		},
	}
	f.admin = testutil.SeedRole(t, context.Background(), db, types.RoleAdmin, true)
	return f
}

func (f *resolutionFixture) agg() domainagg.DuplicateResolutionAggregate {
	return aggregates.NewDuplicateResolutionAggregate(f.deps)
}

func (f *resolutionFixture) lesson(t *testing.T, id uuid.UUID) *types.Lesson {
	t.Helper()
	l, err := f.deps.Lessons.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil {
		t.Fatalf("get lesson: %v", err)
	}
	return l
}

func (f *resolutionFixture) archives(t *testing.T, group string) []*types.LessonArchive {
	t.Helper()
	rows, err := f.deps.Archives.ListByGroup(dbctx.Context{Ctx: context.Background()}, group)
	if err != nil {
		t.Fatalf("list archives: %v", err)
	}
	return rows
}

func (f *resolutionFixture) resolutions(t *testing.T, group string) []*types.DuplicateResolution {
	t.Helper()
	rows, err := f.deps.Resolutions.ListByGroup(dbctx.Context{Ctx: context.Background()}, group)
	if err != nil {
		t.Fatalf("list resolutions: %v", err)
	}
	return rows
}

func TestResolveGroupMergesArchivesAndDeletes(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Garden Salsa",
		testutil.WithGrades("3"),
		testutil.WithAttrs(types.Attributes{Tags: []string{"salsa"}, CulturalHeritage: []string{"Mexican"}}))
	dupA := testutil.SeedLesson(t, ctx, f.db, "Garden salsa (copy)",
		testutil.WithGrades("4"),
		testutil.WithAttrs(types.Attributes{Tags: []string{"salsa", "tomato"}, LessonFormat: "single_period"}))
	dupB := testutil.SeedLesson(t, ctx, f.db, "Salsa garden",
		testutil.WithAttrs(types.Attributes{Skills: []string{"knife skills"}}))

	res, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID:         "grp-salsa",
		CanonicalID:     canon.ID,
		DuplicateIDs:    []uuid.UUID{dupA.ID, dupB.ID},
		DuplicateType:   types.DuplicateTypeNear,
		SimilarityScore: 0.91,
		MergeMetadata:   true,
		TitleUpdates:    map[uuid.UUID]string{canon.ID: "  Garden Salsa Fresca "},
		ResolvedBy:      f.admin,
	})
	if err != nil {
		t.Fatalf("ResolveGroup: %v", err)
	}
	if res.ActionTaken != aggregates.ActionMergeAndArchive || res.ArchivedCount != 2 || res.DeletedCount != 2 || res.TitlesUpdated != 1 {
		t.Fatalf("result: %+v", res)
	}

	for _, id := range []uuid.UUID{dupA.ID, dupB.ID} {
		if f.lesson(t, id) != nil {
			t.Fatalf("duplicate %s still in catalog", id)
		}
	}
	got := f.lesson(t, canon.ID)
	if got.Title != "Garden Salsa Fresca" {
		t.Fatalf("title: %q", got.Title)
	}
	if !strings.Contains(got.AuditNotes, `Title changed from "Garden Salsa" to "Garden Salsa Fresca"`) {
		t.Fatalf("audit notes: %q", got.AuditNotes)
	}
	if strings.Join(got.Tags, ",") != "salsa,tomato" || strings.Join(got.Skills, ",") != "knife skills" {
		t.Fatalf("merged tags=%v skills=%v", got.Tags, got.Skills)
	}
	if strings.Join(got.GradeLevels, ",") != "3,4" || got.LessonFormat != "single_period" {
		t.Fatalf("merged grades=%v format=%q", got.GradeLevels, got.LessonFormat)
	}

	archived := f.archives(t, "grp-salsa")
	if len(archived) != 2 {
		t.Fatalf("archives: %d", len(archived))
	}
	for _, a := range archived {
		if a.CanonicalID == nil || *a.CanonicalID != canon.ID || a.ArchivedBy != f.admin {
			t.Fatalf("archive row: %+v", a)
		}
		if !strings.Contains(a.ArchiveReason, "Duplicate (near) of lesson "+canon.ID.String()) {
			t.Fatalf("reason: %q", a.ArchiveReason)
		}
	}

	recs := f.resolutions(t, "grp-salsa")
	if len(recs) != 1 {
		t.Fatalf("resolutions: %d", len(recs))
	}
	rec := recs[0]
	if rec.ID != res.ResolutionID || rec.LessonsInGroup != 3 || rec.ArchivedCount != 2 || !rec.MetadataMerged {
		t.Fatalf("record: %+v", rec)
	}
	if len(rec.TitleChanges) != 1 || rec.TitleChanges[0].To != "Garden Salsa Fresca" {
		t.Fatalf("title changes: %+v", rec.TitleChanges)
	}
	if !strings.HasPrefix(rec.Notes, "Title changes: ") || !strings.Contains(rec.Notes, `"to":"Garden Salsa Fresca"`) {
		t.Fatalf("notes should carry the title change log: %q", rec.Notes)
	}
	if f.hooks.LastStatus("Lessons.DuplicateResolution.ResolveGroup") != "success" {
		t.Fatalf("hooks: %+v", f.hooks.Operations)
	}
}

func TestResolveGroupRollsBackOnCommitFailure(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Bread Basics")
	dup := testutil.SeedLesson(t, ctx, f.db, "Bread basics v2")
	f.deps.Base.Runner = &aggtest.InjectedTxRunner{DB: f.db, FailCommit: errors.New("connection reset")}

	_, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID:       "grp-bread",
		CanonicalID:   canon.ID,
		DuplicateIDs:  []uuid.UUID{dup.ID},
		DuplicateType: types.DuplicateTypeExact,
		ResolvedBy:    f.admin,
		TitleUpdates:  map[uuid.UUID]string{canon.ID: "Bread Basics 101"},
	})
	if err == nil {
		t.Fatalf("expected commit failure")
	}
	if f.lesson(t, dup.ID) == nil {
		t.Fatalf("duplicate deleted despite rollback")
	}
	if got := f.lesson(t, canon.ID).Title; got != "Bread Basics" {
		t.Fatalf("title change leaked: %q", got)
	}
	if len(f.archives(t, "grp-bread")) != 0 || len(f.resolutions(t, "grp-bread")) != 0 {
		t.Fatalf("archive or record leaked")
	}
}

type failingResolutions struct {
	repos.ResolutionRepo
}

func (failingResolutions) Create(dbctx.Context, *types.DuplicateResolution) error {
	return errors.New("insert duplicate_resolution: disk full")
}

func TestResolveGroupRollsBackWhenRecordFails(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Herb Tasting")
	dup := testutil.SeedLesson(t, ctx, f.db, "Herb tasting")
	f.deps.Resolutions = failingResolutions{f.deps.Resolutions}

	_, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID:       "grp-herb",
		CanonicalID:   canon.ID,
		DuplicateIDs:  []uuid.UUID{dup.ID},
		DuplicateType: types.DuplicateTypeTitle,
		ResolvedBy:    f.admin,
	})
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal, got %v", err)
	}
	if f.lesson(t, dup.ID) == nil || len(f.archives(t, "grp-herb")) != 0 {
		t.Fatalf("partial resolution persisted")
	}
}

func TestResolveGroupValidation(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Compost 101")
	dup := testutil.SeedLesson(t, ctx, f.db, "Compost")
	base := domainagg.ResolveDuplicateGroupInput{
		GroupID:       "grp-compost",
		CanonicalID:   canon.ID,
		DuplicateIDs:  []uuid.UUID{dup.ID},
		DuplicateType: types.DuplicateTypeNear,
		ResolvedBy:    f.admin,
	}
	cases := []struct {
		name   string
		mutate func(*domainagg.ResolveDuplicateGroupInput)
		want   domainagg.ErrorCode
	}{
		{"self duplicate", func(in *domainagg.ResolveDuplicateGroupInput) {
			in.DuplicateIDs = []uuid.UUID{dup.ID, canon.ID}
		}, domainagg.CodeInvariantViolation},
		{"empty duplicates", func(in *domainagg.ResolveDuplicateGroupInput) { in.DuplicateIDs = nil }, domainagg.CodeValidation},
		{"repeated duplicate", func(in *domainagg.ResolveDuplicateGroupInput) {
			in.DuplicateIDs = []uuid.UUID{dup.ID, dup.ID}
		}, domainagg.CodeValidation},
		{"unknown type", func(in *domainagg.ResolveDuplicateGroupInput) { in.DuplicateType = "similar" }, domainagg.CodeValidation},
		{"unknown mode", func(in *domainagg.ResolveDuplicateGroupInput) { in.Mode = "merge" }, domainagg.CodeValidation},
		{"score range", func(in *domainagg.ResolveDuplicateGroupInput) { in.SimilarityScore = 1.2 }, domainagg.CodeValidation},
		{"blank title", func(in *domainagg.ResolveDuplicateGroupInput) {
			in.TitleUpdates = map[uuid.UUID]string{canon.ID: "   "}
		}, domainagg.CodeValidation},
		{"title outside group", func(in *domainagg.ResolveDuplicateGroupInput) {
			in.TitleUpdates = map[uuid.UUID]string{uuid.New(): "Other"}
		}, domainagg.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			in.DuplicateIDs = append([]uuid.UUID{}, base.DuplicateIDs...)
			tc.mutate(&in)
			_, err := f.agg().ResolveGroup(ctx, in)
			if !domainagg.IsCode(err, tc.want) {
				t.Fatalf("want %s, got %v", tc.want, err)
			}
		})
	}
	if f.lesson(t, dup.ID) == nil {
		t.Fatalf("validation failure touched the catalog")
	}
}

func TestResolveGroupMissingLessonNamesSubject(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Soup Stock")
	dup := testutil.SeedLesson(t, ctx, f.db, "Soup stock")
	ghost := uuid.New()

	_, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID:       "grp-soup",
		CanonicalID:   canon.ID,
		DuplicateIDs:  []uuid.UUID{dup.ID, ghost},
		DuplicateType: types.DuplicateTypeNear,
		ResolvedBy:    f.admin,
	})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) || domainagg.SubjectOf(err) != ghost.String() {
		t.Fatalf("want not_found for %s, got %v", ghost, err)
	}
	if f.lesson(t, dup.ID) == nil {
		t.Fatalf("existing duplicate removed")
	}
}

func TestResolveGroupRequiresResolverRole(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Pickling")
	dup := testutil.SeedLesson(t, ctx, f.db, "Pickles")
	teacher := testutil.SeedRole(t, ctx, f.db, types.RoleTeacher, true)
	inactive := testutil.SeedRole(t, ctx, f.db, types.RoleReviewer, false)

	for name, user := range map[string]uuid.UUID{"teacher": teacher, "inactive": inactive, "unknown": uuid.New()} {
		_, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
			GroupID:       "grp-pickle",
			CanonicalID:   canon.ID,
			DuplicateIDs:  []uuid.UUID{dup.ID},
			DuplicateType: types.DuplicateTypeNear,
			ResolvedBy:    user,
		})
		if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
			t.Fatalf("%s: want precondition_failed, got %v", name, err)
		}
	}
	if f.lesson(t, dup.ID) == nil {
		t.Fatalf("unauthorized resolution removed a lesson")
	}
}

func TestResolveGroupSplitAndKeepAll(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Knife Safety")
	dup := testutil.SeedLesson(t, ctx, f.db, "Knife Safety")

	res, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID:       "grp-knife",
		CanonicalID:   canon.ID,
		DuplicateIDs:  []uuid.UUID{dup.ID},
		DuplicateType: types.DuplicateTypeTitle,
		Mode:          types.ResolutionModeSplit,
		SubGroupName:  "grade bands",
		TitleUpdates:  map[uuid.UUID]string{dup.ID: "Knife Safety (Grades 6-8)"},
		ResolvedBy:    f.admin,
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if res.ActionTaken != aggregates.ActionSplit || res.ArchivedCount != 0 || res.TitlesUpdated != 1 {
		t.Fatalf("split result: %+v", res)
	}
	if got := f.lesson(t, dup.ID); got == nil || got.Title != "Knife Safety (Grades 6-8)" {
		t.Fatalf("split should retitle and keep the lesson: %+v", got)
	}

	res, err = f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID:       "grp-knife-2",
		CanonicalID:   canon.ID,
		DuplicateType: types.DuplicateTypeNear,
		Mode:          types.ResolutionModeKeepAll,
		Notes:         "distinct audiences",
		ResolvedBy:    f.admin,
	})
	if err != nil {
		t.Fatalf("keep_all: %v", err)
	}
	if res.ActionTaken != aggregates.ActionKeepAll {
		t.Fatalf("keep_all result: %+v", res)
	}
	recs := f.resolutions(t, "grp-knife-2")
	if len(recs) != 1 || recs[0].LessonsInGroup != 1 || recs[0].ResolutionMode != types.ResolutionModeKeepAll {
		t.Fatalf("keep_all record: %+v", recs)
	}
}

func TestResolveGroupKeepAllRetainsDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Knife Safety")
	dup := testutil.SeedLesson(t, ctx, f.db, "Knife safety")

	res, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID:       "grp-knife-keep",
		CanonicalID:   canon.ID,
		DuplicateIDs:  []uuid.UUID{dup.ID},
		DuplicateType: types.DuplicateTypeTitle,
		Mode:          types.ResolutionModeKeepAll,
		Notes:         "reviewed",
		TitleUpdates:  map[uuid.UUID]string{dup.ID: "Knife Safety II"},
		ResolvedBy:    f.admin,
	})
	if err != nil {
		t.Fatalf("keep_all: %v", err)
	}
	if res.ActionTaken != aggregates.ActionKeepAll || res.ArchivedCount != 0 || res.DeletedCount != 0 || res.TitlesUpdated != 1 {
		t.Fatalf("keep_all result: %+v", res)
	}
	if f.lesson(t, canon.ID) == nil {
		t.Fatalf("canonical removed")
	}
	if got := f.lesson(t, dup.ID); got == nil || got.Title != "Knife Safety II" {
		t.Fatalf("duplicate should stay in the catalog with its new title: %+v", got)
	}
	if n := len(f.archives(t, "grp-knife-keep")); n != 0 {
		t.Fatalf("keep_all wrote %d archive rows", n)
	}
	recs := f.resolutions(t, "grp-knife-keep")
	if len(recs) != 1 {
		t.Fatalf("resolutions: %d", len(recs))
	}
	rec := recs[0]
	if rec.LessonsInGroup != 2 || rec.ArchivedCount != 0 || rec.ResolutionMode != types.ResolutionModeKeepAll {
		t.Fatalf("record: %+v", rec)
	}
	if len(rec.TitleChanges) != 1 || rec.TitleChanges[0].From != "Knife safety" {
		t.Fatalf("title changes: %+v", rec.TitleChanges)
	}
	if !strings.HasPrefix(rec.Notes, "reviewed\nTitle changes: ") || !strings.Contains(rec.Notes, `"to":"Knife Safety II"`) {
		t.Fatalf("notes: %q", rec.Notes)
	}
}

func TestLinkCanonical(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Seed Saving")
	dup := testutil.SeedLesson(t, ctx, f.db, "Saving Seeds")
	other := testutil.SeedLesson(t, ctx, f.db, "Seeds")

	res, err := f.agg().LinkCanonical(ctx, domainagg.LinkCanonicalInput{
		DuplicateID:     dup.ID,
		CanonicalID:     canon.ID,
		SimilarityScore: 0.88,
		ResolutionType:  types.DuplicateTypeNear,
		ResolvedBy:      f.admin,
	})
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if res.MappingID == uuid.Nil {
		t.Fatalf("missing mapping id")
	}
	if got := f.lesson(t, dup.ID); got.CanonicalID == nil || *got.CanonicalID != canon.ID {
		t.Fatalf("canonical pointer: %+v", got.CanonicalID)
	}

	// dup now points at canon, so it cannot be a canonical itself.
	_, err = f.agg().LinkCanonical(ctx, domainagg.LinkCanonicalInput{
		DuplicateID: other.ID, CanonicalID: dup.ID, ResolutionType: types.DuplicateTypeNear, ResolvedBy: f.admin,
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("chained canonical: want invariant_violation, got %v", err)
	}
	// canon has dependents, so it cannot become a duplicate.
	_, err = f.agg().LinkCanonical(ctx, domainagg.LinkCanonicalInput{
		DuplicateID: canon.ID, CanonicalID: other.ID, ResolutionType: types.DuplicateTypeNear, ResolvedBy: f.admin,
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("canonical with dependents: want invariant_violation, got %v", err)
	}
	_, err = f.agg().LinkCanonical(ctx, domainagg.LinkCanonicalInput{
		DuplicateID: canon.ID, CanonicalID: canon.ID, ResolutionType: types.DuplicateTypeNear, ResolvedBy: f.admin,
	})
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("self link: want invariant_violation, got %v", err)
	}
}

func TestDeleteArchiveRequiresSuperAdmin(t *testing.T) {
	ctx := context.Background()
	f := newResolutionFixture(t)
	canon := testutil.SeedLesson(t, ctx, f.db, "Fermentation")
	dup := testutil.SeedLesson(t, ctx, f.db, "Fermenting")
	res, err := f.agg().ResolveGroup(ctx, domainagg.ResolveDuplicateGroupInput{
		GroupID: "grp-ferment", CanonicalID: canon.ID, DuplicateIDs: []uuid.UUID{dup.ID},
		DuplicateType: types.DuplicateTypeNear, ResolvedBy: f.admin,
	})
	if err != nil || len(res.ArchiveRecords) != 1 {
		t.Fatalf("resolve: %+v %v", res, err)
	}
	archiveID := res.ArchiveRecords[0]

	err = f.agg().DeleteArchive(ctx, domainagg.DeleteArchiveInput{ArchiveID: archiveID, DeletedBy: f.admin})
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("admin delete: want precondition_failed, got %v", err)
	}
	super := testutil.SeedRole(t, ctx, f.db, types.RoleSuperAdmin, true)
	if err := f.agg().DeleteArchive(ctx, domainagg.DeleteArchiveInput{ArchiveID: archiveID, DeletedBy: super}); err != nil {
		t.Fatalf("super admin delete: %v", err)
	}
	err = f.agg().DeleteArchive(ctx, domainagg.DeleteArchiveInput{ArchiveID: archiveID, DeletedBy: super})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("second delete: want not_found, got %v", err)
	}
}
