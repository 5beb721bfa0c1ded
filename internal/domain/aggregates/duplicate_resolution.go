package aggregates

import (
	"context"

	"github.com/google/uuid"
)

var DuplicateResolutionAggregateContract = Contract{
	Name:             "Lessons.DuplicateResolutionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	OwnedTables:      []string{"lesson_archive", "canonical_lesson", "duplicate_resolution"},
	Notes:            "Canonical designation, metadata merge, archival and catalog deletes for a duplicate group.",
}

// DuplicateResolutionAggregate owns duplicate-group resolution invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodePreconditionFailed, CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type DuplicateResolutionAggregate interface {
	Aggregate

	// ResolveGroup designates the canonical lesson, applies title corrections and merges,
	// archives then deletes the duplicates, and records the decision. All or nothing.
	ResolveGroup(ctx context.Context, in ResolveDuplicateGroupInput) (ResolveDuplicateGroupResult, error)

	// LinkCanonical records a live duplicate -> canonical mapping without archiving.
	LinkCanonical(ctx context.Context, in LinkCanonicalInput) (LinkCanonicalResult, error)

	// DeleteArchive removes an archive row. Super admins only.
	DeleteArchive(ctx context.Context, in DeleteArchiveInput) error
}

type ResolveDuplicateGroupInput struct {
	GroupID         string
	CanonicalID     uuid.UUID
	DuplicateIDs    []uuid.UUID
	DuplicateType   string
	SimilarityScore float64
	MergeMetadata   bool
	Notes           string
	Mode            string
	SubGroupName    string
	ParentGroupID   string
	TitleUpdates    map[uuid.UUID]string
	ResolvedBy      uuid.UUID
}

type ResolveDuplicateGroupResult struct {
	ResolutionID   uuid.UUID
	Mode           string
	ActionTaken    string
	ArchivedCount  int
	DeletedCount   int
	TitlesUpdated  int
	MergedFacets   []string
	ArchivedIDs    []uuid.UUID
	ArchiveRecords []uuid.UUID
}

type LinkCanonicalInput struct {
	DuplicateID     uuid.UUID
	CanonicalID     uuid.UUID
	SimilarityScore float64
	ResolutionType  string
	ResolvedBy      uuid.UUID
}

type LinkCanonicalResult struct {
	MappingID   uuid.UUID
	DuplicateID uuid.UUID
	CanonicalID uuid.UUID
}

type DeleteArchiveInput struct {
	ArchiveID uuid.UUID
	DeletedBy uuid.UUID
}
