package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

var _ repository.SegmentRepository = (*SegmentRepository)(nil)

// SegmentRepository implements the persistence half of C10 against a
// bun.IDB, so the dispatcher can pass it either the plain *bun.DB or the
// open engine transaction depending on call site.
type SegmentRepository struct {
	db bun.IDB
}

// NewSegmentRepository creates a new SegmentRepository.
func NewSegmentRepository(db bun.IDB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

// DeleteDraftsForNode deletes segment_members for draft segments of nodeID,
// then the draft segments themselves.
func (r *SegmentRepository) DeleteDraftsForNode(ctx context.Context, nodeID uuid.UUID) error {
	_, err := r.db.NewDelete().
		Model((*models.SegmentMemberModel)(nil)).
		Where("segment_id IN (SELECT id FROM segments WHERE node_id = ? AND status = ?)", nodeID, models.SegmentStatusDraft).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete draft segment members: %w", err)
	}

	_, err = r.db.NewDelete().
		Model((*models.SegmentModel)(nil)).
		Where("node_id = ?", nodeID).
		Where("status = ?", models.SegmentStatusDraft).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete draft segments: %w", err)
	}
	return nil
}

func (r *SegmentRepository) BulkInsertSegments(ctx context.Context, segments []*models.SegmentModel) error {
	if len(segments) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().Model(&segments).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to bulk insert segments: %w", err)
	}
	return nil
}

// BulkInsertMembers inserts members in chunks of chunkSize, per spec §4.10
// step 3 (chunks of 5000).
func (r *SegmentRepository) BulkInsertMembers(ctx context.Context, members []*models.SegmentMemberModel, chunkSize int) error {
	if chunkSize <= 0 {
		chunkSize = 5000
	}
	for start := 0; start < len(members); start += chunkSize {
		end := start + chunkSize
		if end > len(members) {
			end = len(members)
		}
		chunk := members[start:end]
		_, err := r.db.NewInsert().Model(&chunk).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to bulk insert segment members (chunk %d-%d): %w", start, end, err)
		}
	}
	return nil
}

func (r *SegmentRepository) FindByNodeAndVersion(ctx context.Context, nodeID uuid.UUID, version int) ([]*models.SegmentModel, error) {
	var segments []*models.SegmentModel
	err := r.db.NewSelect().
		Model(&segments).
		Where("node_id = ?", nodeID).
		Where("metadata->>'version' = ?", fmt.Sprintf("%d", version)).
		Order("metadata->>'segment_code' ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find segments by node and version: %w", err)
	}
	return segments, nil
}

func (r *SegmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SegmentModel, error) {
	segment := &models.SegmentModel{}
	err := r.db.NewSelect().Model(segment).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("segment not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find segment: %w", err)
	}
	return segment, nil
}

// CountOverlappingPairs counts segment pairs in (nodeID, draft) whose
// geometries interior-overlap, using PostGIS ST_Overlaps semantics (strict:
// boundary touching does not count).
func (r *SegmentRepository) CountOverlappingPairs(ctx context.Context, nodeID uuid.UUID) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM segments a
		JOIN segments b ON a.id < b.id AND a.node_id = b.node_id
		WHERE a.node_id = ? AND a.status = ? AND b.status = ?
		AND ST_Overlaps(a.full_geometry, b.full_geometry)
	`
	err := r.db.QueryRowContext(ctx, query, nodeID, models.SegmentStatusDraft, models.SegmentStatusDraft).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overlapping segment pairs: %w", err)
	}
	return count, nil
}

// CountInvalidGeometries counts draft segments of nodeID whose
// full_geometry fails PostGIS's own validity or emptiness check.
func (r *SegmentRepository) CountInvalidGeometries(ctx context.Context, nodeID uuid.UUID) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM segments
		WHERE node_id = ? AND status = ?
		AND (full_geometry IS NULL OR NOT ST_IsValid(full_geometry) OR ST_IsEmpty(full_geometry))
	`
	err := r.db.QueryRowContext(ctx, query, nodeID, models.SegmentStatusDraft).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count invalid segment geometries: %w", err)
	}
	return count, nil
}

func (r *SegmentRepository) FindAssignedFamilyIDs(ctx context.Context, nodeID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.NewSelect().
		Model((*models.SegmentMemberModel)(nil)).
		ColumnExpr("sm.family_id").
		Join("JOIN segments AS sg ON sg.id = sm.segment_id").
		Where("sg.node_id = ?", nodeID).
		Where("sg.status = ?", models.SegmentStatusDraft).
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to find assigned family ids: %w", err)
	}
	return ids, nil
}

var _ repository.AuditRepository = (*AuditRepository)(nil)

// AuditRepository writes the audit batch/movement pair produced by C10.
type AuditRepository struct {
	db bun.IDB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db bun.IDB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) CreateBatch(ctx context.Context, batch *models.AuditBatchModel) error {
	_, err := r.db.NewInsert().Model(batch).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create audit batch: %w", err)
	}
	return nil
}

func (r *AuditRepository) CreateMovements(ctx context.Context, movements []*models.AuditMovementModel) error {
	if len(movements) == 0 {
		return nil
	}
	_, err := r.db.NewInsert().Model(&movements).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create audit movements: %w", err)
	}
	return nil
}
