package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

// HierarchyRepository reads the election/level/node/booth/voter/family tree
// that a segmentation run is scoped against. The core never writes these
// entities: they are populated by external loaders.
type HierarchyRepository interface {
	FindNodeByID(ctx context.Context, id uuid.UUID) (*models.HierarchyNodeModel, error)
	FindLevelByID(ctx context.Context, id uuid.UUID) (*models.HierarchyLevelModel, error)

	// FindDescendantNodeIDs walks the tree downward from nodeID (inclusive)
	// via parent_id, returning every descendant node id.
	FindDescendantNodeIDs(ctx context.Context, electionID, nodeID uuid.UUID) ([]uuid.UUID, error)

	// FindBoothsByNodeIDs returns every booth attached to one of nodeIDs.
	FindBoothsByNodeIDs(ctx context.Context, nodeIDs []uuid.UUID) ([]*models.BoothModel, error)

	// FindConstituencyAncestors returns, for each of boothIDs, the id of the
	// nearest ancestor node classified as a constituency.
	FindConstituencyAncestors(ctx context.Context, electionID uuid.UUID, boothIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)

	// FindFamiliesByBoothIDs returns every family attached to one of
	// boothIDs with member_count > 0.
	FindFamiliesByBoothIDs(ctx context.Context, boothIDs []uuid.UUID) ([]*models.FamilyModel, error)

	// FindVotersByFamilyIDs returns every voter belonging to one of
	// familyIDs, sorted by id for deterministic downstream ordering.
	FindVotersByFamilyIDs(ctx context.Context, familyIDs []uuid.UUID) ([]*models.VoterModel, error)

	// CountVotersByBoothIDs returns the total voter count across boothIDs,
	// used by the validator to check conservation against the raw dataset.
	CountVotersByBoothIDs(ctx context.Context, boothIDs []uuid.UUID) (int, error)
}
