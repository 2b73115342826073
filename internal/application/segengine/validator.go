package segengine

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/voteops/segengine/internal/domain/repository"
)

// ValidatePreCommit implements C9's pre-commit checks: no segment may be
// empty, every voter must appear exactly once across all segments, and the
// total must match the scope's voter count. Oversized/undersized segments
// are annotated (already done in BuiltSegment) but never fail validation on
// their own.
func ValidatePreCommit(segments []BuiltSegment, expectedVoterCount int) error {
	if len(segments) == 0 {
		return ErrAssignmentFailed
	}

	seen := make(map[uuid.UUID]bool)
	total := 0
	for _, seg := range segments {
		if len(seg.VoterIDs) == 0 {
			return newErr(KindValidation, CodeEmptySegment, "segment "+seg.Code+" has no voters")
		}
		for _, id := range seg.VoterIDs {
			if seen[id] {
				return newErr(KindValidation, CodeDuplicateVoter, "voter "+id.String()+" assigned to more than one segment")
			}
			seen[id] = true
			total++
		}
	}

	if total != expectedVoterCount {
		return newErr(KindValidation, CodeVoterCountMismatch, "voter count mismatch between scope and assembled segments")
	}

	return nil
}

// ValidatePostCommit implements C9's post-commit checks: every in-scope
// family must be covered by at least one persisted segment, no two
// persisted segments may interior-overlap (always checked, per the open
// question resolved in favor of always-on validation), and every persisted
// geometry must be valid and non-empty.
func ValidatePostCommit(ctx context.Context, segRepo repository.SegmentRepository, nodeID uuid.UUID, allFamilyIDs []uuid.UUID) error {
	assigned, err := segRepo.FindAssignedFamilyIDs(ctx, nodeID)
	if err != nil {
		return wrapErr(KindPersistence, CodeUnassignedFamily, "failed to load assigned families", err)
	}

	assignedSet := make(map[uuid.UUID]bool, len(assigned))
	for _, id := range assigned {
		assignedSet[id] = true
	}

	missing := make([]uuid.UUID, 0)
	for _, id := range allFamilyIDs {
		if !assignedSet[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Slice(missing, func(i, j int) bool { return missing[i].String() < missing[j].String() })
		return newErr(KindValidation, CodeUnassignedFamily, "family "+missing[0].String()+" is not covered by any segment")
	}

	overlapping, err := segRepo.CountOverlappingPairs(ctx, nodeID)
	if err != nil {
		return wrapErr(KindPersistence, CodeInteriorOverlap, "failed to check segment overlap", err)
	}
	if overlapping > 0 {
		return newErr(KindValidation, CodeInteriorOverlap, "segments interior-overlap")
	}

	invalid, err := segRepo.CountInvalidGeometries(ctx, nodeID)
	if err != nil {
		return wrapErr(KindPersistence, CodeInvalidGeometry, "failed to check segment geometry validity", err)
	}
	if invalid > 0 {
		return newErr(KindValidation, CodeInvalidGeometry, "one or more segments have an invalid or empty geometry")
	}

	return nil
}
