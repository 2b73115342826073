package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

var segmentColumns = []string{
	"id", "election_id", "node_id", "display_name", "color", "status",
	"centroid", "boundary", "full_geometry", "total_voters", "total_families",
	"metadata", "created_at", "updated_at",
}

func TestSegmentRepository_DeleteDraftsForNode_ShouldDeleteMembersThenSegments(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	mock.ExpectExec("^DELETE FROM \"segment_members\"").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("^DELETE FROM \"segments\"").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteDraftsForNode(context.Background(), uuid.New())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentRepository_BulkInsertSegments_ShouldNoOp_WhenEmpty(t *testing.T) {
	db, _ := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	err := repo.BulkInsertSegments(context.Background(), nil)

	require.NoError(t, err)
}

func TestSegmentRepository_BulkInsertSegments_ShouldInsertAllRows(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	mock.ExpectExec("^INSERT INTO \"segments\"").WillReturnResult(sqlmock.NewResult(0, 2))

	segments := []*models.SegmentModel{
		{ID: uuid.New(), ElectionID: uuid.New(), NodeID: uuid.New(), DisplayName: "SEG-001", Color: "#fff", Status: models.SegmentStatusDraft, Metadata: models.JSONBMap{}},
		{ID: uuid.New(), ElectionID: uuid.New(), NodeID: uuid.New(), DisplayName: "SEG-002", Color: "#000", Status: models.SegmentStatusDraft, Metadata: models.JSONBMap{}},
	}

	err := repo.BulkInsertSegments(context.Background(), segments)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentRepository_BulkInsertMembers_ShouldSplitIntoChunks(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	mock.ExpectExec("^INSERT INTO \"segment_members\"").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("^INSERT INTO \"segment_members\"").WillReturnResult(sqlmock.NewResult(0, 1))

	members := make([]*models.SegmentMemberModel, 3)
	for i := range members {
		members[i] = &models.SegmentMemberModel{ID: uuid.New(), SegmentID: uuid.New(), FamilyID: uuid.New()}
	}

	err := repo.BulkInsertMembers(context.Background(), members, 2)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSegmentRepository_FindByNodeAndVersion_ShouldReturnSegmentsForTheNode(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	nodeID := uuid.New()
	segID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("^SELECT").
		WillReturnRows(sqlmock.NewRows(segmentColumns).
			AddRow(segID, uuid.New(), nodeID, "SEG-001", "#fff", models.SegmentStatusDraft, nil, nil, nil, 100, 20, []byte(`{"version":1}`), now, now))

	segments, err := repo.FindByNodeAndVersion(context.Background(), nodeID, 1)

	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, "SEG-001", segments[0].DisplayName)
}

func TestSegmentRepository_FindByID_ShouldReturnWrappedError_WhenMissing(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	mock.ExpectQuery("^SELECT").WillReturnRows(sqlmock.NewRows(segmentColumns))

	_, err := repo.FindByID(context.Background(), uuid.New())

	assert.Error(t, err)
}

func TestSegmentRepository_CountOverlappingPairs_ShouldReturnTheCount(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountOverlappingPairs(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSegmentRepository_CountInvalidGeometries_ShouldReturnTheCount(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	count, err := repo.CountInvalidGeometries(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSegmentRepository_FindAssignedFamilyIDs_ShouldReturnTheFamilyIDs(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewSegmentRepository(db)

	famID := uuid.New()
	mock.ExpectQuery("^SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}).AddRow(famID))

	ids, err := repo.FindAssignedFamilyIDs(context.Background(), uuid.New())

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{famID}, ids)
}

func TestAuditRepository_CreateBatch_ShouldInsertTheBatch(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewAuditRepository(db)

	mock.ExpectExec("^INSERT INTO \"audit_batches\"").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateBatch(context.Background(), &models.AuditBatchModel{
		ElectionID:   uuid.New(),
		BatchType:    "segmentation",
		Description:  "auto segmentation run",
		TotalChanges: 3,
		Status:       "applied",
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_CreateMovements_ShouldNoOp_WhenEmpty(t *testing.T) {
	db, _ := newBunDBWithMock(t)
	repo := NewAuditRepository(db)

	err := repo.CreateMovements(context.Background(), nil)

	require.NoError(t, err)
}

func TestAuditRepository_CreateMovements_ShouldInsertAllRows(t *testing.T) {
	db, mock := newBunDBWithMock(t)
	repo := NewAuditRepository(db)

	mock.ExpectExec("^INSERT INTO \"audit_movements\"").WillReturnResult(sqlmock.NewResult(0, 2))

	movements := []*models.AuditMovementModel{
		{ID: uuid.New(), BatchID: uuid.New(), Action: models.AuditActionCreate, EntityType: models.AuditEntityTypeSegment, EntityID: uuid.New(), NewData: models.JSONBMap{}},
		{ID: uuid.New(), BatchID: uuid.New(), Action: models.AuditActionCreate, EntityType: models.AuditEntityTypeSegment, EntityID: uuid.New(), NewData: models.JSONBMap{}},
	}

	err := repo.CreateMovements(context.Background(), movements)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
