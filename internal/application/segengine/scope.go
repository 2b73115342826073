package segengine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/voteops/segengine/internal/domain/repository"
)

// ResolveScope implements C1: classify the node as constituency or booth,
// enumerate the in-scope booth ids, and assert the booth set does not span
// more than one constituency.
func ResolveScope(ctx context.Context, repo repository.HierarchyRepository, electionID, nodeID uuid.UUID) (*ScopeResult, error) {
	node, err := repo.FindNodeByID(ctx, nodeID)
	if err != nil {
		return nil, wrapErr(KindScope, CodeUnknownScope, "failed to load hierarchy node", err)
	}
	if node.Level == nil {
		level, lerr := repo.FindLevelByID(ctx, node.LevelID)
		if lerr != nil {
			return nil, wrapErr(KindScope, CodeUnknownScope, "failed to load hierarchy level", lerr)
		}
		node.Level = level
	}

	kind, ok := classifyLevel(node.Level.Name)
	if !ok {
		return nil, ErrUnknownScope
	}

	var boothIDs []uuid.UUID
	switch kind {
	case ScopeBooth:
		booths, berr := repo.FindBoothsByNodeIDs(ctx, []uuid.UUID{nodeID})
		if berr != nil {
			return nil, wrapErr(KindScope, CodeBoothNotFound, "failed to load booths for booth node", berr)
		}
		for _, b := range booths {
			boothIDs = append(boothIDs, b.ID)
		}
		if len(boothIDs) == 0 {
			return nil, ErrBoothNotFound
		}
	case ScopeConstituency:
		descendantIDs, derr := repo.FindDescendantNodeIDs(ctx, electionID, nodeID)
		if derr != nil {
			return nil, wrapErr(KindScope, CodeBoothNotFound, "failed to walk hierarchy descendants", derr)
		}
		if len(descendantIDs) == 0 {
			return nil, ErrBoothNotFound
		}
		booths, berr := repo.FindBoothsByNodeIDs(ctx, descendantIDs)
		if berr != nil {
			return nil, wrapErr(KindScope, CodeBoothNotFound, "failed to load booths under constituency", berr)
		}
		for _, b := range booths {
			boothIDs = append(boothIDs, b.ID)
		}
		if len(boothIDs) == 0 {
			return nil, ErrBoothNotFound
		}

		ancestors, aerr := repo.FindConstituencyAncestors(ctx, electionID, boothIDs)
		if aerr != nil {
			return nil, wrapErr(KindScope, CodeBoundaryViolation, "failed to resolve constituency ancestors", aerr)
		}
		distinct := make(map[uuid.UUID]struct{})
		for _, ancestor := range ancestors {
			distinct[ancestor] = struct{}{}
		}
		if len(distinct) > 1 {
			return nil, ErrBoundaryViolation
		}
	default:
		return nil, ErrUnknownScope
	}

	sort.Slice(boothIDs, func(i, j int) bool { return boothIDs[i].String() < boothIDs[j].String() })

	return &ScopeResult{Kind: kind, BoothIDs: boothIDs}, nil
}

// classifyLevel maps a hierarchy level name to a scope kind via
// case-insensitive substring matching, per spec §4.1 step 1.
func classifyLevel(levelName string) (ScopeKind, bool) {
	lower := strings.ToLower(levelName)
	switch {
	case strings.Contains(lower, "booth"), strings.Contains(lower, "polling"):
		return ScopeBooth, true
	case strings.Contains(lower, "assembly"), strings.Contains(lower, "ac"):
		return ScopeConstituency, true
	default:
		return "", false
	}
}

// describeScope renders a short diagnostic string for logging.
func describeScope(result *ScopeResult) string {
	return fmt.Sprintf("scope=%s booths=%d", result.Kind, len(result.BoothIDs))
}
