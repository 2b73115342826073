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

var _ repository.HierarchyRepository = (*HierarchyRepository)(nil)

// HierarchyRepository implements repository.HierarchyRepository using bun.
type HierarchyRepository struct {
	db bun.IDB
}

// NewHierarchyRepository creates a new HierarchyRepository.
func NewHierarchyRepository(db bun.IDB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

func (r *HierarchyRepository) FindNodeByID(ctx context.Context, id uuid.UUID) (*models.HierarchyNodeModel, error) {
	node := &models.HierarchyNodeModel{}
	err := r.db.NewSelect().
		Model(node).
		Relation("Level").
		Where("hn.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("hierarchy node not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find hierarchy node: %w", err)
	}
	return node, nil
}

func (r *HierarchyRepository) FindLevelByID(ctx context.Context, id uuid.UUID) (*models.HierarchyLevelModel, error) {
	level := &models.HierarchyLevelModel{}
	err := r.db.NewSelect().Model(level).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("hierarchy level not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find hierarchy level: %w", err)
	}
	return level, nil
}

// FindDescendantNodeIDs performs a recursive CTE walk down parent_id,
// starting at nodeID inclusive.
func (r *HierarchyRepository) FindDescendantNodeIDs(ctx context.Context, electionID, nodeID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	query := `
		WITH RECURSIVE descendants AS (
			SELECT id FROM hierarchy_nodes WHERE id = ? AND election_id = ?
			UNION ALL
			SELECT hn.id FROM hierarchy_nodes hn
			JOIN descendants d ON hn.parent_id = d.id
		)
		SELECT id FROM descendants ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, nodeID, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to walk hierarchy descendants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan descendant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *HierarchyRepository) FindBoothsByNodeIDs(ctx context.Context, nodeIDs []uuid.UUID) ([]*models.BoothModel, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	var booths []*models.BoothModel
	err := r.db.NewSelect().
		Model(&booths).
		Where("node_id IN (?)", bun.In(nodeIDs)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find booths by node ids: %w", err)
	}
	return booths, nil
}

// FindConstituencyAncestors walks from each booth's node upward via
// parent_id until it finds a node whose level name matches the
// constituency discriminator, and reports that ancestor per booth.
func (r *HierarchyRepository) FindConstituencyAncestors(ctx context.Context, electionID uuid.UUID, boothIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	result := make(map[uuid.UUID]uuid.UUID)
	if len(boothIDs) == 0 {
		return result, nil
	}

	query := `
		WITH RECURSIVE ancestry AS (
			SELECT b.id AS booth_id, hn.id AS node_id, hn.parent_id, hl.name AS level_name
			FROM booths b
			JOIN hierarchy_nodes hn ON hn.id = b.node_id
			JOIN hierarchy_levels hl ON hl.id = hn.level_id
			WHERE b.id IN (?) AND b.election_id = ?
			UNION ALL
			SELECT a.booth_id, hn.id, hn.parent_id, hl.name
			FROM ancestry a
			JOIN hierarchy_nodes hn ON hn.id = a.parent_id
			JOIN hierarchy_levels hl ON hl.id = hn.level_id
		)
		SELECT booth_id, node_id, level_name FROM ancestry ORDER BY booth_id
	`
	rows, err := r.db.QueryContext(ctx, query, bun.In(boothIDs), electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve constituency ancestors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var boothID, nodeID uuid.UUID
		var levelName string
		if err := rows.Scan(&boothID, &nodeID, &levelName); err != nil {
			return nil, fmt.Errorf("failed to scan constituency ancestor row: %w", err)
		}
		if isConstituencyLevel(levelName) {
			if _, seen := result[boothID]; !seen {
				result[boothID] = nodeID
			}
		}
	}
	return result, rows.Err()
}

func isConstituencyLevel(name string) bool {
	return containsFold(name, "assembly") || containsFold(name, "ac")
}

func containsFold(s, substr string) bool {
	sl, subl := len(s), len(substr)
	if subl == 0 || subl > sl {
		return subl == 0
	}
	lower := func(b byte) byte {
		if b >= 'A' && b <= 'Z' {
			return b + ('a' - 'A')
		}
		return b
	}
	for i := 0; i+subl <= sl; i++ {
		match := true
		for j := 0; j < subl; j++ {
			if lower(s[i+j]) != lower(substr[j]) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (r *HierarchyRepository) FindFamiliesByBoothIDs(ctx context.Context, boothIDs []uuid.UUID) ([]*models.FamilyModel, error) {
	if len(boothIDs) == 0 {
		return nil, nil
	}
	var families []*models.FamilyModel
	err := r.db.NewSelect().
		Model(&families).
		Where("booth_id IN (?)", bun.In(boothIDs)).
		Where("member_count > 0").
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find families by booth ids: %w", err)
	}
	return families, nil
}

func (r *HierarchyRepository) FindVotersByFamilyIDs(ctx context.Context, familyIDs []uuid.UUID) ([]*models.VoterModel, error) {
	if len(familyIDs) == 0 {
		return nil, nil
	}
	var voters []*models.VoterModel
	err := r.db.NewSelect().
		Model(&voters).
		Where("family_id IN (?)", bun.In(familyIDs)).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find voters by family ids: %w", err)
	}
	return voters, nil
}

func (r *HierarchyRepository) CountVotersByBoothIDs(ctx context.Context, boothIDs []uuid.UUID) (int, error) {
	if len(boothIDs) == 0 {
		return 0, nil
	}
	count, err := r.db.NewSelect().
		Model((*models.VoterModel)(nil)).
		Where("booth_id IN (?)", bun.In(boothIDs)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count voters by booth ids: %w", err)
	}
	return count, nil
}
