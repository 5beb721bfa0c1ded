package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	domainagg "github.com/yungbote/lessonbank-backend/internal/domain/aggregates"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"gorm.io/datatypes"
)

const maxTitleLength = 500

const (
	ActionMergeAndArchive = "merge_and_archive"
	ActionArchive         = "archive"
	ActionSplit           = "split"
	ActionKeepAll         = "keep_all"
)

type DuplicateResolutionAggregateDeps struct {
	Base BaseDeps

	Lessons     repos.LessonRepo
	Archives    repos.ArchiveRepo
	Resolutions repos.ResolutionRepo
	Canonicals  repos.CanonicalRepo
	Roles       repos.UserRoleRepo
}

type duplicateResolutionAggregate struct {
	deps DuplicateResolutionAggregateDeps
}

func NewDuplicateResolutionAggregate(deps DuplicateResolutionAggregateDeps) domainagg.DuplicateResolutionAggregate {
	deps.Base = deps.Base.withDefaults()
	return &duplicateResolutionAggregate{deps: deps}
}

func (a *duplicateResolutionAggregate) Contract() domainagg.Contract {
	return domainagg.DuplicateResolutionAggregateContract
}

func (a *duplicateResolutionAggregate) configured() bool {
	d := a.deps
	return d.Lessons != nil && d.Archives != nil && d.Resolutions != nil && d.Canonicals != nil && d.Roles != nil
}

func (a *duplicateResolutionAggregate) ResolveGroup(ctx context.Context, in domainagg.ResolveDuplicateGroupInput) (domainagg.ResolveDuplicateGroupResult, error) {
	const op = "Lessons.DuplicateResolution.ResolveGroup"
	var out domainagg.ResolveDuplicateGroupResult
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "duplicate resolution repos not configured", nil)
	}
	in, err := normalizeResolveInput(in)
	if err != nil {
		return out, MapError(op, err)
	}

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := authorize(dbc, a.deps.Roles, op, in.ResolvedBy, types.CanResolve); err != nil {
			return err
		}

		ids := append([]uuid.UUID{in.CanonicalID}, in.DuplicateIDs...)
		locked, err := a.deps.Lessons.LockByIDs(dbc, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if locked[id] == nil {
				return notFound(op, "lesson", id.String())
			}
		}

		plan := planResolution(in, locked)
		res, err := a.applyResolution(dbc, plan)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	return out, err
}

// normalizeResolveInput validates in and returns it trimmed, with Mode defaulted.
// Nothing here touches the database.
func normalizeResolveInput(in domainagg.ResolveDuplicateGroupInput) (domainagg.ResolveDuplicateGroupInput, error) {
	in.GroupID = strings.TrimSpace(in.GroupID)
	in.DuplicateType = strings.ToLower(strings.TrimSpace(in.DuplicateType))
	in.Mode = strings.ToLower(strings.TrimSpace(in.Mode))
	in.Notes = strings.TrimSpace(in.Notes)
	in.SubGroupName = strings.TrimSpace(in.SubGroupName)
	in.ParentGroupID = strings.TrimSpace(in.ParentGroupID)
	if in.Mode == "" {
		in.Mode = types.ResolutionModeSingle
	}

	switch {
	case in.GroupID == "":
		return in, ValidationError("group_id is required")
	case in.CanonicalID == uuid.Nil:
		return in, ValidationError("canonical_id is required")
	case in.ResolvedBy == uuid.Nil:
		return in, ValidationError("resolved_by is required")
	case !types.Valid(in.DuplicateType, types.DuplicateTypes):
		return in, ValidationError(fmt.Sprintf("unknown duplicate_type %q", in.DuplicateType))
	case !types.Valid(in.Mode, types.ResolutionModes):
		return in, ValidationError(fmt.Sprintf("unknown resolution mode %q", in.Mode))
	case math.IsNaN(in.SimilarityScore) || in.SimilarityScore < 0 || in.SimilarityScore > 1:
		return in, ValidationError("similarity_score must be within [0, 1]")
	}
	if len(in.DuplicateIDs) == 0 && in.Mode != types.ResolutionModeKeepAll {
		return in, ValidationError("duplicate_ids must not be empty")
	}

	seen := map[uuid.UUID]bool{in.CanonicalID: true}
	for _, id := range in.DuplicateIDs {
		if id == uuid.Nil {
			return in, ValidationError("duplicate_ids must not contain empty ids")
		}
		if id == in.CanonicalID {
			return in, InvariantError("canonical lesson cannot be listed as its own duplicate")
		}
		if seen[id] {
			return in, ValidationError(fmt.Sprintf("duplicate id %s listed more than once", id))
		}
		seen[id] = true
	}

	clean := make(map[uuid.UUID]string, len(in.TitleUpdates))
	for id, title := range in.TitleUpdates {
		if !seen[id] {
			return in, ValidationError(fmt.Sprintf("title update for %s which is not in the group", id))
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return in, ValidationError(fmt.Sprintf("title update for %s is empty", id))
		}
		if utf8.RuneCountInString(title) > maxTitleLength {
			return in, ValidationError(fmt.Sprintf("title update for %s exceeds %d characters", id, maxTitleLength))
		}
		clean[id] = title
	}
	in.TitleUpdates = clean
	return in, nil
}

// resolutionPlan is every write ResolveGroup makes, computed before the first one.
type resolutionPlan struct {
	in        domainagg.ResolveDuplicateGroupInput
	canonical *types.Lesson
	dups      []*types.Lesson

	titles       []types.TitleChange
	notes        map[uuid.UUID]string
	merge        bool
	mergedFacets []string
	archive      bool
	action       string
}

func planResolution(in domainagg.ResolveDuplicateGroupInput, locked map[uuid.UUID]*types.Lesson) resolutionPlan {
	p := resolutionPlan{
		in:        in,
		canonical: locked[in.CanonicalID],
		notes:     map[uuid.UUID]string{},
	}
	for _, id := range in.DuplicateIDs {
		p.dups = append(p.dups, locked[id])
	}

	// Deterministic order: canonical first, then duplicates as given.
	ordered := append([]uuid.UUID{in.CanonicalID}, in.DuplicateIDs...)
	for _, id := range ordered {
		to, ok := in.TitleUpdates[id]
		if !ok {
			continue
		}
		l := locked[id]
		if l.Title == to {
			continue
		}
		p.titles = append(p.titles, types.TitleChange{LessonID: id, From: l.Title, To: to})
		p.notes[id] = appendAuditNote(l.AuditNotes,
			fmt.Sprintf("Title changed from %q to %q during duplicate resolution (group %s)", l.Title, to, in.GroupID))
	}

	switch in.Mode {
	case types.ResolutionModeSingle:
		p.archive = true
		p.merge = in.MergeMetadata
		p.action = ActionArchive
		if p.merge {
			p.action = ActionMergeAndArchive
		}
	case types.ResolutionModeSplit:
		p.action = ActionSplit
	default:
		p.action = ActionKeepAll
	}
	return p
}

func (a *duplicateResolutionAggregate) applyResolution(dbc dbctx.Context, p resolutionPlan) (domainagg.ResolveDuplicateGroupResult, error) {
	const op = "Lessons.DuplicateResolution.ResolveGroup"
	in := p.in
	now := a.deps.Base.now()
	out := domainagg.ResolveDuplicateGroupResult{Mode: in.Mode, ActionTaken: p.action}

	byID := map[uuid.UUID]*types.Lesson{p.canonical.ID: p.canonical}
	for _, d := range p.dups {
		byID[d.ID] = d
	}
	for _, tc := range p.titles {
		if err := a.deps.Lessons.UpdateFields(dbc, tc.LessonID, map[string]interface{}{
			"title":       tc.To,
			"audit_notes": p.notes[tc.LessonID],
			"updated_at":  now,
		}); err != nil {
			return out, err
		}
		l := byID[tc.LessonID]
		l.Title = tc.To
		l.AuditNotes = p.notes[tc.LessonID]
		l.UpdatedAt = now
	}
	out.TitlesUpdated = len(p.titles)

	if p.merge && len(p.dups) > 0 {
		out.MergedFacets = mergeInto(p.canonical, p.dups)
		if len(out.MergedFacets) > 0 {
			p.canonical.UpdatedAt = now
			if err := a.deps.Lessons.Save(dbc, p.canonical); err != nil {
				return out, err
			}
		}
	}

	if p.archive && len(p.dups) > 0 {
		snaps := make([]*types.LessonArchive, 0, len(p.dups))
		ids := make([]uuid.UUID, 0, len(p.dups))
		reason := fmt.Sprintf("Duplicate (%s) of lesson %s - resolved in group %s", in.DuplicateType, in.CanonicalID, in.GroupID)
		for _, d := range p.dups {
			snaps = append(snaps, types.NewArchiveSnapshot(d, reason, in.ResolvedBy, in.CanonicalID, in.GroupID, now))
			ids = append(ids, d.ID)
		}
		created, err := a.deps.Archives.Create(dbc, snaps)
		if err != nil {
			return out, err
		}
		if len(created) != len(snaps) {
			return out, InvariantError(fmt.Sprintf("archived %d of %d duplicates", len(created), len(snaps)))
		}
		deleted, err := a.deps.Lessons.FullDeleteByIDs(dbc, ids)
		if err != nil {
			return out, err
		}
		if deleted != int64(len(ids)) {
			return out, InvariantError(fmt.Sprintf("deleted %d of %d duplicates; catalog changed during resolution", deleted, len(ids)))
		}
		for _, c := range created {
			out.ArchiveRecords = append(out.ArchiveRecords, c.ID)
		}
		out.ArchivedIDs = ids
		out.ArchivedCount = len(created)
		out.DeletedCount = int(deleted)
	}

	rec := &types.DuplicateResolution{
		GroupID:         in.GroupID,
		CanonicalID:     in.CanonicalID,
		DuplicateType:   in.DuplicateType,
		SimilarityScore: in.SimilarityScore,
		LessonsInGroup:  1 + len(in.DuplicateIDs),
		ActionTaken:     p.action,
		Notes:           resolutionNotes(in.Notes, p.titles),
		ResolvedBy:      in.ResolvedBy,
		ResolutionMode:  in.Mode,
		SubGroupName:    in.SubGroupName,
		ParentGroupID:   in.ParentGroupID,
		DuplicateIDs:    datatypes.JSONSlice[uuid.UUID](append([]uuid.UUID{}, in.DuplicateIDs...)),
		TitleChanges:    datatypes.JSONSlice[types.TitleChange](append([]types.TitleChange{}, p.titles...)),
		MetadataMerged:  len(out.MergedFacets) > 0,
		ArchivedCount:   out.ArchivedCount,
		ResolvedAt:      now,
	}
	if err := a.deps.Resolutions.Create(dbc, rec); err != nil {
		return out, err
	}
	out.ResolutionID = rec.ID

	a.deps.Base.Log.Info("duplicate group resolved",
		"op", op,
		"group_id", in.GroupID,
		"canonical_id", in.CanonicalID,
		"mode", in.Mode,
		"action", p.action,
		"archived", out.ArchivedCount,
		"titles_updated", out.TitlesUpdated,
	)
	return out, nil
}

// mergeInto unions the duplicates' tags into canonical and returns the facets that grew.
func mergeInto(canonical *types.Lesson, dups []*types.Lesson) []string {
	attrs := canonical.Attrs()
	changed := map[string]bool{}
	grow := func(name string, dst *[]string, src []string) {
		merged := types.UnionStrings(*dst, src)
		if len(merged) != len(types.UnionStrings(*dst)) {
			changed[name] = true
		}
		*dst = merged
	}

	grades := []string(canonical.GradeLevels)
	for _, d := range dups {
		da := d.Attrs()
		grow(string(types.FacetGradeLevels), &grades, d.GradeLevels)
		grow(string(types.FacetThematicCategories), &attrs.ThematicCategories, da.ThematicCategories)
		grow(string(types.FacetSeasonTiming), &attrs.SeasonTiming, da.SeasonTiming)
		grow(string(types.FacetCoreCompetencies), &attrs.CoreCompetencies, da.CoreCompetencies)
		grow(string(types.FacetCulturalHeritage), &attrs.CulturalHeritage, da.CulturalHeritage)
		grow(string(types.FacetLocationRequirements), &attrs.LocationRequirements, da.LocationRequirements)
		grow(string(types.FacetActivityType), &attrs.ActivityType, da.ActivityType)
		grow(string(types.FacetAcademicIntegration), &attrs.AcademicIntegration, da.AcademicIntegration)
		grow(string(types.FacetSocialEmotionalLearning), &attrs.SocialEmotionalLearning, da.SocialEmotionalLearning)
		grow(string(types.FacetCookingMethod), &attrs.CookingMethods, da.CookingMethods)
		grow(string(types.FacetMainIngredients), &attrs.MainIngredients, da.MainIngredients)
		grow(string(types.FacetSkills), &attrs.Skills, da.Skills)
		grow(string(types.FacetTags), &attrs.Tags, da.Tags)
		grow("observances", &attrs.Observances, da.Observances)

		if strings.TrimSpace(attrs.LessonFormat) == "" && strings.TrimSpace(da.LessonFormat) != "" {
			attrs.LessonFormat = strings.TrimSpace(da.LessonFormat)
			changed[string(types.FacetLessonFormat)] = true
		}
		for k, v := range da.Extensions {
			if _, ok := attrs.Extensions[k]; ok {
				continue
			}
			if attrs.Extensions == nil {
				attrs.Extensions = map[string]json.RawMessage{}
			}
			attrs.Extensions[k] = v
			changed[k] = true
		}
	}
	if len(changed) == 0 {
		return nil
	}
	canonical.GradeLevels = grades
	canonical.SetAttrs(attrs)

	out := make([]string, 0, len(changed))
	for k := range changed {
		out = append(out, k)
	}
	return types.SortedCopy(out)
}

func appendAuditNote(existing, note string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

func (a *duplicateResolutionAggregate) LinkCanonical(ctx context.Context, in domainagg.LinkCanonicalInput) (domainagg.LinkCanonicalResult, error) {
	const op = "Lessons.DuplicateResolution.LinkCanonical"
	var out domainagg.LinkCanonicalResult
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "duplicate resolution repos not configured", nil)
	}
	in.ResolutionType = strings.ToLower(strings.TrimSpace(in.ResolutionType))
	switch {
	case in.DuplicateID == uuid.Nil || in.CanonicalID == uuid.Nil:
		return out, MapError(op, ValidationError("duplicate_id and canonical_id are required"))
	case in.ResolvedBy == uuid.Nil:
		return out, MapError(op, ValidationError("resolved_by is required"))
	case in.DuplicateID == in.CanonicalID:
		return out, MapError(op, InvariantError("a lesson cannot be its own canonical"))
	case !types.Valid(in.ResolutionType, types.DuplicateTypes):
		return out, MapError(op, ValidationError(fmt.Sprintf("unknown resolution_type %q", in.ResolutionType)))
	case math.IsNaN(in.SimilarityScore) || in.SimilarityScore < 0 || in.SimilarityScore > 1:
		return out, MapError(op, ValidationError("similarity_score must be within [0, 1]"))
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if err := authorize(dbc, a.deps.Roles, op, in.ResolvedBy, types.CanResolve); err != nil {
			return err
		}
		locked, err := a.deps.Lessons.LockByIDs(dbc, []uuid.UUID{in.CanonicalID, in.DuplicateID})
		if err != nil {
			return err
		}
		canonical, dup := locked[in.CanonicalID], locked[in.DuplicateID]
		if canonical == nil {
			return notFound(op, "lesson", in.CanonicalID.String())
		}
		if dup == nil {
			return notFound(op, "lesson", in.DuplicateID.String())
		}
		if canonical.CanonicalID != nil {
			return domainagg.NewSubjectError(domainagg.CodeInvariantViolation, op, canonical.ID.String(),
				"canonical lesson is itself linked to another canonical", nil)
		}
		children, err := a.deps.Canonicals.ListByCanonicalID(dbc, dup.ID)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return domainagg.NewSubjectError(domainagg.CodeInvariantViolation, op, dup.ID.String(),
				fmt.Sprintf("lesson is canonical for %d other lessons", len(children)), nil)
		}

		row := &types.CanonicalLesson{
			DuplicateID:     dup.ID,
			CanonicalID:     canonical.ID,
			SimilarityScore: in.SimilarityScore,
			ResolutionType:  in.ResolutionType,
			ResolvedBy:      in.ResolvedBy,
			CreatedAt:       a.deps.Base.now(),
		}
		if err := a.deps.Canonicals.Upsert(dbc, row); err != nil {
			return err
		}
		if err := a.deps.Lessons.UpdateFields(dbc, dup.ID, map[string]interface{}{
			"canonical_id": canonical.ID,
			"updated_at":   a.deps.Base.now(),
		}); err != nil {
			return err
		}
		mapping, err := a.deps.Canonicals.GetByDuplicateID(dbc, dup.ID)
		if err != nil {
			return err
		}
		out = domainagg.LinkCanonicalResult{DuplicateID: dup.ID, CanonicalID: canonical.ID}
		if mapping != nil {
			out.MappingID = mapping.ID
		}
		return nil
	})
	return out, err
}

func (a *duplicateResolutionAggregate) DeleteArchive(ctx context.Context, in domainagg.DeleteArchiveInput) error {
	const op = "Lessons.DuplicateResolution.DeleteArchive"
	if !a.configured() {
		return domainagg.NewError(domainagg.CodeInternal, op, "duplicate resolution repos not configured", nil)
	}
	if in.ArchiveID == uuid.Nil || in.DeletedBy == uuid.Nil {
		return MapError(op, ValidationError("archive_id and deleted_by are required"))
	}
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		superAdmin := func(role string) bool { return role == types.RoleSuperAdmin }
		if err := authorize(dbc, a.deps.Roles, op, in.DeletedBy, superAdmin); err != nil {
			return err
		}
		row, err := a.deps.Archives.GetByID(dbc, in.ArchiveID)
		if err != nil {
			return err
		}
		if row == nil {
			return notFound(op, "lesson_archive", in.ArchiveID.String())
		}
		n, err := a.deps.Archives.DeleteByID(dbc, in.ArchiveID)
		if err != nil {
			return err
		}
		if n != 1 {
			return ConflictError("archive row changed during delete")
		}
		a.deps.Base.Log.Warn("lesson archive deleted", "archive_id", in.ArchiveID, "lesson_id", row.LessonID, "deleted_by", in.DeletedBy)
		return nil
	})
}

// authorize loads userID's role inside the write and checks it with allowed.
func authorize(dbc dbctx.Context, roles repos.UserRoleRepo, op string, userID uuid.UUID, allowed func(string) bool) error {
	role, err := roles.Get(dbc, userID)
	if err != nil {
		return err
	}
	switch {
	case role == nil:
		return domainagg.NewSubjectError(domainagg.CodePreconditionFailed, op, userID.String(), "user has no role", nil)
	case !role.IsActive:
		return domainagg.NewSubjectError(domainagg.CodePreconditionFailed, op, userID.String(), "user role is inactive", nil)
	case !allowed(role.Role):
		return domainagg.NewSubjectError(domainagg.CodePreconditionFailed, op, userID.String(),
			fmt.Sprintf("role %q is not permitted", role.Role), nil)
	}
	return nil
}

// resolutionNotes appends the serialized title changes to the caller's notes.
func resolutionNotes(notes string, titles []types.TitleChange) string {
	if len(titles) == 0 {
		return notes
	}
	raw, err := json.Marshal(titles)
	if err != nil {
		return notes
	}
	line := "Title changes: " + string(raw)
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}
