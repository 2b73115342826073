package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

// SegmentRepository implements the persistence half of C10: purging prior
// drafts and bulk-inserting the new (segment, segment_member, audit) set
// inside the caller's transaction.
type SegmentRepository interface {
	// DeleteDraftsForNode deletes segment_members for draft segments of
	// nodeID, then the draft segments themselves, in that order.
	DeleteDraftsForNode(ctx context.Context, nodeID uuid.UUID) error

	// BulkInsertSegments inserts segments in the given order; palette
	// color assignment by creation index is the caller's responsibility.
	BulkInsertSegments(ctx context.Context, segments []*models.SegmentModel) error

	// BulkInsertMembers inserts segment_members in chunks of chunkSize.
	BulkInsertMembers(ctx context.Context, members []*models.SegmentMemberModel, chunkSize int) error

	FindByNodeAndVersion(ctx context.Context, nodeID uuid.UUID, version int) ([]*models.SegmentModel, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.SegmentModel, error)

	// CountOverlappingPairs returns the number of segment pairs in
	// (nodeID, draft) whose geometries interior-overlap.
	CountOverlappingPairs(ctx context.Context, nodeID uuid.UUID) (int, error)

	// FindAssignedFamilyIDs returns the family ids already attached to a
	// segment of (nodeID, draft), used by the post-commit coverage check.
	FindAssignedFamilyIDs(ctx context.Context, nodeID uuid.UUID) ([]uuid.UUID, error)

	// CountInvalidGeometries returns the number of draft segments of nodeID
	// whose full_geometry is either invalid or empty.
	CountInvalidGeometries(ctx context.Context, nodeID uuid.UUID) (int, error)
}

// AuditRepository writes the audit batch/movement pair C10 produces for
// each completed job.
type AuditRepository interface {
	CreateBatch(ctx context.Context, batch *models.AuditBatchModel) error
	CreateMovements(ctx context.Context, movements []*models.AuditMovementModel) error
}
