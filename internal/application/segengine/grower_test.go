package segengine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridCells builds a rows x cols grid of adjacent unit-spaced cells so
// buildAdjacency's tolerance check connects immediate neighbors.
func gridCells(rows, cols int, step float64) []Cell {
	var cells []Cell
	id := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, Cell{
				ID:       id,
				Centroid: orb.Point{float64(c) * step, float64(r) * step},
			})
			id++
		}
	}
	return cells
}

func TestGrowRegions_ShouldKeepOversizedCellsAsSingleCellRegions(t *testing.T) {
	cells := gridCells(1, 2, 0.01)
	assignments := map[int]*CellAssignment{
		0: {CellID: 0, VoterCount: AbsoluteMax + 10},
		1: {CellID: 1, VoterCount: 20},
	}

	regions, err := GrowRegions(cells, assignments, GridSpacing{DegLat: 0.01, DegLng: 0.01})

	require.NoError(t, err)
	var oversized *Region
	for _, r := range regions {
		if r.Oversized {
			oversized = r
		}
	}
	require.NotNil(t, oversized)
	assert.Equal(t, []int{0}, oversized.CellIDs)
	assert.Equal(t, AbsoluteMax+10, oversized.Voters)
}

func TestGrowRegions_ShouldMergeUndersizedRegionsIntoNeighbors(t *testing.T) {
	cells := gridCells(1, 3, 0.01)
	assignments := map[int]*CellAssignment{
		0: {CellID: 0, VoterCount: 120},
		1: {CellID: 1, VoterCount: 5},
		2: {CellID: 2, VoterCount: 131},
	}

	regions, err := GrowRegions(cells, assignments, GridSpacing{DegLat: 0.01, DegLng: 0.01})

	require.NoError(t, err)
	for _, r := range regions {
		assert.False(t, r.Tombstoned)
		if len(r.CellIDs) == 1 && r.CellIDs[0] == 1 {
			t.Fatalf("undersized region 1 should have been merged, not left standalone")
		}
	}
}

func TestGrowRegions_ShouldFillCellsWithoutUnitsIntoNearestRegion(t *testing.T) {
	cells := gridCells(1, 3, 0.01)
	assignments := map[int]*CellAssignment{
		0: {CellID: 0, VoterCount: 50},
		2: {CellID: 2, VoterCount: 50},
	}

	regions, err := GrowRegions(cells, assignments, GridSpacing{DegLat: 0.01, DegLng: 0.01})

	require.NoError(t, err)
	covered := make(map[int]bool)
	for _, r := range regions {
		for _, id := range r.CellIDs {
			covered[id] = true
		}
	}
	assert.True(t, covered[1], "empty cell 1 should be absorbed into some region")
}

func TestFlattenRegionVoterIDs_ShouldCollectAndSortAcrossUnits(t *testing.T) {
	v1, v2 := uuid.New(), uuid.New()
	unitID := uuid.New()
	region := &Region{CellIDs: []int{0}}
	assignments := map[int]*CellAssignment{0: {CellID: 0, UnitIDs: []uuid.UUID{unitID}}}
	unitVoters := map[uuid.UUID][]uuid.UUID{unitID: {v1, v2}}

	ids := flattenRegionVoterIDs(region, assignments, unitVoters)

	assert.Len(t, ids, 2)
	assert.True(t, ids[0].String() <= ids[1].String())
}
