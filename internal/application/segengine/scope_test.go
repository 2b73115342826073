package segengine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

func TestResolveScope_ShouldReturnBoothScope_WhenNodeIsABoothLevel(t *testing.T) {
	repo := newFakeHierarchyRepository()
	electionID := uuid.New()
	levelID := uuid.New()
	nodeID := uuid.New()
	boothID := uuid.New()

	repo.levels[levelID] = &models.HierarchyLevelModel{ID: levelID, Name: "Polling Booth"}
	repo.nodes[nodeID] = &models.HierarchyNodeModel{ID: nodeID, LevelID: levelID}
	repo.booths[boothID] = &models.BoothModel{ID: boothID, NodeID: nodeID}

	result, err := ResolveScope(context.Background(), repo, electionID, nodeID)

	require.NoError(t, err)
	assert.Equal(t, ScopeBooth, result.Kind)
	assert.Equal(t, []uuid.UUID{boothID}, result.BoothIDs)
}

func TestResolveScope_ShouldReturnConstituencyScope_WhenBoothsShareOneAncestor(t *testing.T) {
	repo := newFakeHierarchyRepository()
	electionID := uuid.New()
	levelID := uuid.New()
	boothLevelID := uuid.New()
	constituencyNodeID := uuid.New()
	boothNodeID := uuid.New()
	booth1, booth2 := uuid.New(), uuid.New()

	repo.levels[levelID] = &models.HierarchyLevelModel{ID: levelID, Name: "Assembly Constituency"}
	repo.levels[boothLevelID] = &models.HierarchyLevelModel{ID: boothLevelID, Name: "Booth"}
	repo.nodes[constituencyNodeID] = &models.HierarchyNodeModel{ID: constituencyNodeID, LevelID: levelID}
	repo.nodes[boothNodeID] = &models.HierarchyNodeModel{ID: boothNodeID, LevelID: boothLevelID, ParentID: &constituencyNodeID}
	repo.booths[booth1] = &models.BoothModel{ID: booth1, NodeID: boothNodeID}
	repo.booths[booth2] = &models.BoothModel{ID: booth2, NodeID: boothNodeID}
	repo.ancestors[booth1] = constituencyNodeID
	repo.ancestors[booth2] = constituencyNodeID

	result, err := ResolveScope(context.Background(), repo, electionID, constituencyNodeID)

	require.NoError(t, err)
	assert.Equal(t, ScopeConstituency, result.Kind)
	assert.Len(t, result.BoothIDs, 2)
}

func TestResolveScope_ShouldReturnBoundaryViolation_WhenBoothsSpanTwoConstituencies(t *testing.T) {
	repo := newFakeHierarchyRepository()
	electionID := uuid.New()
	levelID := uuid.New()
	constituencyNodeID := uuid.New()
	boothNodeID := uuid.New()
	booth1, booth2 := uuid.New(), uuid.New()
	otherConstituency := uuid.New()

	repo.levels[levelID] = &models.HierarchyLevelModel{ID: levelID, Name: "Assembly Constituency"}
	repo.nodes[constituencyNodeID] = &models.HierarchyNodeModel{ID: constituencyNodeID, LevelID: levelID}
	repo.nodes[boothNodeID] = &models.HierarchyNodeModel{ID: boothNodeID, LevelID: levelID, ParentID: &constituencyNodeID}
	repo.booths[booth1] = &models.BoothModel{ID: booth1, NodeID: boothNodeID}
	repo.booths[booth2] = &models.BoothModel{ID: booth2, NodeID: boothNodeID}
	repo.ancestors[booth1] = constituencyNodeID
	repo.ancestors[booth2] = otherConstituency

	_, err := ResolveScope(context.Background(), repo, electionID, constituencyNodeID)

	assert.True(t, errors.Is(err, ErrBoundaryViolation))
}

func TestResolveScope_ShouldReturnUnknownScope_WhenLevelNameMatchesNeitherPattern(t *testing.T) {
	repo := newFakeHierarchyRepository()
	electionID := uuid.New()
	levelID := uuid.New()
	nodeID := uuid.New()

	repo.levels[levelID] = &models.HierarchyLevelModel{ID: levelID, Name: "District"}
	repo.nodes[nodeID] = &models.HierarchyNodeModel{ID: nodeID, LevelID: levelID}

	_, err := ResolveScope(context.Background(), repo, electionID, nodeID)

	assert.True(t, errors.Is(err, ErrUnknownScope))
}

func TestResolveScope_ShouldReturnBoothNotFound_WhenBoothNodeHasNoBooths(t *testing.T) {
	repo := newFakeHierarchyRepository()
	electionID := uuid.New()
	levelID := uuid.New()
	nodeID := uuid.New()

	repo.levels[levelID] = &models.HierarchyLevelModel{ID: levelID, Name: "Booth"}
	repo.nodes[nodeID] = &models.HierarchyNodeModel{ID: nodeID, LevelID: levelID}

	_, err := ResolveScope(context.Background(), repo, electionID, nodeID)

	assert.True(t, errors.Is(err, ErrBoothNotFound))
}

func TestClassifyLevel_IsCaseInsensitive(t *testing.T) {
	kind, ok := classifyLevel("POLLING BOOTH")

	assert.True(t, ok)
	assert.Equal(t, ScopeBooth, kind)
}
