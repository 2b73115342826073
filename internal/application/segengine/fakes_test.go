package segengine

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

// fakeHierarchyRepository is an in-memory stand-in for
// repository.HierarchyRepository, built from plain slices so scope/unit
// tests can set up a small tree without a database.
type fakeHierarchyRepository struct {
	nodes     map[uuid.UUID]*models.HierarchyNodeModel
	levels    map[uuid.UUID]*models.HierarchyLevelModel
	booths    map[uuid.UUID]*models.BoothModel
	families  map[uuid.UUID]*models.FamilyModel
	voters    map[uuid.UUID]*models.VoterModel
	ancestors map[uuid.UUID]uuid.UUID
}

func newFakeHierarchyRepository() *fakeHierarchyRepository {
	return &fakeHierarchyRepository{
		nodes:     make(map[uuid.UUID]*models.HierarchyNodeModel),
		levels:    make(map[uuid.UUID]*models.HierarchyLevelModel),
		booths:    make(map[uuid.UUID]*models.BoothModel),
		families:  make(map[uuid.UUID]*models.FamilyModel),
		voters:    make(map[uuid.UUID]*models.VoterModel),
		ancestors: make(map[uuid.UUID]uuid.UUID),
	}
}

func (f *fakeHierarchyRepository) FindNodeByID(ctx context.Context, id uuid.UUID) (*models.HierarchyNodeModel, error) {
	n, ok := f.nodes[id]
	if !ok {
		return nil, ErrUnknownScope
	}
	return n, nil
}

func (f *fakeHierarchyRepository) FindLevelByID(ctx context.Context, id uuid.UUID) (*models.HierarchyLevelModel, error) {
	l, ok := f.levels[id]
	if !ok {
		return nil, ErrUnknownScope
	}
	return l, nil
}

func (f *fakeHierarchyRepository) FindDescendantNodeIDs(ctx context.Context, electionID, nodeID uuid.UUID) ([]uuid.UUID, error) {
	out := []uuid.UUID{nodeID}
	for {
		grew := false
		for _, n := range f.nodes {
			if n.ParentID == nil {
				continue
			}
			for _, id := range out {
				if *n.ParentID == id && !containsUUID(out, n.ID) {
					out = append(out, n.ID)
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (f *fakeHierarchyRepository) FindBoothsByNodeIDs(ctx context.Context, nodeIDs []uuid.UUID) ([]*models.BoothModel, error) {
	var out []*models.BoothModel
	for _, b := range f.booths {
		if containsUUID(nodeIDs, b.NodeID) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeHierarchyRepository) FindConstituencyAncestors(ctx context.Context, electionID uuid.UUID, boothIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(boothIDs))
	for _, id := range boothIDs {
		if anc, ok := f.ancestors[id]; ok {
			out[id] = anc
		}
	}
	return out, nil
}

func (f *fakeHierarchyRepository) FindFamiliesByBoothIDs(ctx context.Context, boothIDs []uuid.UUID) ([]*models.FamilyModel, error) {
	var out []*models.FamilyModel
	for _, fam := range f.families {
		if containsUUID(boothIDs, fam.BoothID) {
			out = append(out, fam)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeHierarchyRepository) FindVotersByFamilyIDs(ctx context.Context, familyIDs []uuid.UUID) ([]*models.VoterModel, error) {
	var out []*models.VoterModel
	for _, v := range f.voters {
		if containsUUID(familyIDs, v.FamilyID) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (f *fakeHierarchyRepository) CountVotersByBoothIDs(ctx context.Context, boothIDs []uuid.UUID) (int, error) {
	n := 0
	for _, v := range f.voters {
		if containsUUID(boothIDs, v.BoothID) {
			n++
		}
	}
	return n, nil
}

func containsUUID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// fakeSegmentRepository backs ValidatePostCommit tests.
type fakeSegmentRepository struct {
	assignedFamilyIDs []uuid.UUID
	overlappingPairs  int
	invalidGeometries int
	err               error

	deletedForNode   []uuid.UUID
	insertedSegments []*models.SegmentModel
	insertedMembers  []*models.SegmentMemberModel
}

func (f *fakeSegmentRepository) FindAssignedFamilyIDs(ctx context.Context, nodeID uuid.UUID) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.assignedFamilyIDs, nil
}

func (f *fakeSegmentRepository) CountOverlappingPairs(ctx context.Context, nodeID uuid.UUID) (int, error) {
	return f.overlappingPairs, nil
}

func (f *fakeSegmentRepository) CountInvalidGeometries(ctx context.Context, nodeID uuid.UUID) (int, error) {
	return f.invalidGeometries, nil
}

func (f *fakeSegmentRepository) DeleteDraftsForNode(ctx context.Context, nodeID uuid.UUID) error {
	f.deletedForNode = append(f.deletedForNode, nodeID)
	return nil
}

func (f *fakeSegmentRepository) BulkInsertSegments(ctx context.Context, segments []*models.SegmentModel) error {
	for _, sm := range segments {
		if sm.ID == uuid.Nil {
			sm.ID = uuid.New()
		}
	}
	f.insertedSegments = append(f.insertedSegments, segments...)
	return nil
}

func (f *fakeSegmentRepository) BulkInsertMembers(ctx context.Context, members []*models.SegmentMemberModel, chunkSize int) error {
	f.insertedMembers = append(f.insertedMembers, members...)
	return nil
}

func (f *fakeSegmentRepository) FindByNodeAndVersion(ctx context.Context, nodeID uuid.UUID, version int) ([]*models.SegmentModel, error) {
	return nil, nil
}

func (f *fakeSegmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SegmentModel, error) {
	return nil, nil
}

// fakeAuditRepository backs PersistSegments tests.
type fakeAuditRepository struct {
	batches   []*models.AuditBatchModel
	movements []*models.AuditMovementModel
}

func (f *fakeAuditRepository) CreateBatch(ctx context.Context, batch *models.AuditBatchModel) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeAuditRepository) CreateMovements(ctx context.Context, movements []*models.AuditMovementModel) error {
	f.movements = append(f.movements, movements...)
	return nil
}

// fakeExceptionRepository backs recordReviewExceptions tests.
type fakeExceptionRepository struct {
	created []*models.ExceptionModel
	err     error
}

func (f *fakeExceptionRepository) Create(ctx context.Context, exception *models.ExceptionModel) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, exception)
	return nil
}

func (f *fakeExceptionRepository) FindByJobID(ctx context.Context, electionID, jobID uuid.UUID) ([]*models.ExceptionModel, error) {
	return f.created, nil
}
