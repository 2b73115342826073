package segengine

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/voteops/segengine/internal/infrastructure/logger"
)

// GrowRegions implements C6: turn cell assignments into contiguous regions
// whose voter counts land inside the size band, by growing from seed cells
// across an 8-connectivity adjacency graph, isolating oversized cells, and
// merging undersized regions into their best-fitting neighbor. Cells left
// without a unit are then filled in passes into an adjacent region by
// nearest seed distance; empty cells with no path of adjacent cells to any
// region stay unfilled, so the returned regions need not cover every cell.
func GrowRegions(cells []Cell, assignments map[int]*CellAssignment, spacing GridSpacing) ([]*Region, error) {
	byID := make(map[int]Cell, len(cells))
	for _, c := range cells {
		byID[c.ID] = c
	}
	adjacency := buildAdjacency(cells, spacing, byID)

	occupied := make(map[int]*CellAssignment, len(assignments))
	for id, a := range assignments {
		if a.VoterCount > 0 {
			occupied[id] = a
		}
	}

	var oversizedIDs, normalIDs []int
	for id, a := range occupied {
		if a.VoterCount > AbsoluteMax {
			oversizedIDs = append(oversizedIDs, id)
		} else {
			normalIDs = append(normalIDs, id)
		}
	}
	sortCellIDsByPosition(oversizedIDs, byID)
	sortCellIDsByPosition(normalIDs, byID)

	regions := make([]*Region, 0, len(normalIDs)+len(oversizedIDs))
	cellToRegion := make(map[int]*Region, len(occupied))
	nextRegionID := 0

	// Oversized cells become single-cell regions flagged for manual
	// attention; they are never merged or grown further.
	for _, id := range oversizedIDs {
		r := &Region{
			ID:        nextRegionID,
			CellIDs:   []int{id},
			Voters:    occupied[id].VoterCount,
			SeedCell:  id,
			Oversized: true,
		}
		nextRegionID++
		regions = append(regions, r)
		cellToRegion[id] = r
	}

	assigned := make(map[int]bool, len(occupied))
	for _, id := range oversizedIDs {
		assigned[id] = true
	}

	// Grow a region from each remaining seed, in (lat desc, lng asc) order,
	// via BFS across adjacency bounded by TargetIdeal (soft) and
	// AbsoluteMax (hard).
	for _, seed := range normalIDs {
		if assigned[seed] {
			continue
		}

		r := &Region{ID: nextRegionID, SeedCell: seed}
		nextRegionID++

		frontier := []int{seed}
		assigned[seed] = true
		r.CellIDs = append(r.CellIDs, seed)
		r.Voters += occupied[seed].VoterCount

		for len(frontier) > 0 && r.Voters < TargetIdeal {
			current := frontier[0]
			frontier = frontier[1:]

			neighbors := adjacency[current]
			for _, n := range neighbors {
				if assigned[n] {
					continue
				}
				a, ok := occupied[n]
				if !ok {
					continue
				}
				if a.VoterCount > AbsoluteMax {
					continue
				}
				if r.Voters+a.VoterCount > AbsoluteMax {
					continue
				}
				assigned[n] = true
				r.CellIDs = append(r.CellIDs, n)
				r.Voters += a.VoterCount
				frontier = append(frontier, n)
				if r.Voters >= TargetIdeal {
					break
				}
			}
		}

		sort.Ints(r.CellIDs)
		regions = append(regions, r)
		for _, id := range r.CellIDs {
			cellToRegion[id] = r
		}
	}

	regions = mergeUndersized(regions, adjacency, cellToRegion)
	regions = fillEmptyCells(cells, regions, adjacency, cellToRegion)

	return regions, nil
}

// buildAdjacency computes 8-connectivity neighbor lists between cells whose
// centroids are within spacing tolerance of each other, each neighbor list
// ordered (lat desc, lng asc) for deterministic growth.
func buildAdjacency(cells []Cell, spacing GridSpacing, byID map[int]Cell) map[int][]int {
	adjacency := make(map[int][]int, len(cells))
	tolLat := spacing.DegLat * 1.5
	tolLng := spacing.DegLng * 1.5
	if tolLat <= 0 {
		tolLat = 1e-6
	}
	if tolLng <= 0 {
		tolLng = 1e-6
	}

	for i := range cells {
		for j := range cells {
			if i == j {
				continue
			}
			a, b := cells[i], cells[j]
			dLat := math.Abs(a.Centroid[1] - b.Centroid[1])
			dLng := math.Abs(a.Centroid[0] - b.Centroid[0])
			if dLat <= tolLat && dLng <= tolLng {
				adjacency[a.ID] = append(adjacency[a.ID], b.ID)
			}
		}
	}
	for id, neighbors := range adjacency {
		sortCellIDsByPosition(neighbors, byID)
		adjacency[id] = neighbors
	}
	return adjacency
}

// sortCellIDsByPosition orders cell ids by latitude descending, then
// longitude ascending, the deterministic seed/neighbor order the region
// grower walks in.
func sortCellIDsByPosition(ids []int, byID map[int]Cell) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]].Centroid, byID[ids[j]].Centroid
		if a[1] != b[1] {
			return a[1] > b[1]
		}
		return a[0] < b[0]
	})
}

// mergeUndersized repeatedly merges the smallest undersized region into the
// adjacent region that minimizes the merged region's overflow past
// TargetMax, ties broken by the lowest neighbor region id. Regions that
// cannot find any adjacent merge candidate are left as-is (flagged
// undersized for manual review downstream).
func mergeUndersized(regions []*Region, adjacency map[int][]int, cellToRegion map[int]*Region) []*Region {
	stuck := make(map[int]bool)
	changed := true
	for changed {
		changed = false

		var smallest *Region
		for _, r := range regions {
			if r.Tombstoned || r.Oversized || stuck[r.ID] {
				continue
			}
			if r.Voters >= AbsoluteMin {
				continue
			}
			if smallest == nil || r.Voters < smallest.Voters || (r.Voters == smallest.Voters && r.ID < smallest.ID) {
				smallest = r
			}
		}
		if smallest == nil {
			break
		}

		neighborRegionIDs := make(map[int]bool)
		for _, cellID := range smallest.CellIDs {
			for _, n := range adjacency[cellID] {
				nr, ok := cellToRegion[n]
				if !ok || nr.Tombstoned || nr.Oversized || nr.ID == smallest.ID {
					continue
				}
				neighborRegionIDs[nr.ID] = true
			}
		}
		if len(neighborRegionIDs) == 0 {
			stuck[smallest.ID] = true
			changed = true
			continue
		}

		var best *Region
		bestOverflow := math.Inf(1)
		for _, r := range regions {
			if !neighborRegionIDs[r.ID] {
				continue
			}
			merged := r.Voters + smallest.Voters
			overflow := math.Max(0, float64(merged-TargetMax))
			if overflow < bestOverflow || (overflow == bestOverflow && (best == nil || r.ID < best.ID)) {
				best = r
				bestOverflow = overflow
			}
		}
		if best == nil {
			stuck[smallest.ID] = true
			changed = true
			continue
		}

		best.CellIDs = append(best.CellIDs, smallest.CellIDs...)
		sort.Ints(best.CellIDs)
		best.Voters += smallest.Voters
		for _, cellID := range smallest.CellIDs {
			cellToRegion[cellID] = best
		}
		smallest.Tombstoned = true
		smallest.CellIDs = nil
		changed = true
	}

	live := make([]*Region, 0, len(regions))
	for _, r := range regions {
		if !r.Tombstoned {
			live = append(live, r)
		}
	}
	return live
}

// fillEmptyCells assigns every cell with no units to the region of its
// nearest seed cell, pass by pass, applying each pass's decisions
// simultaneously so fill order never depends on map iteration. Repeats
// until a pass makes no progress.
func fillEmptyCells(cells []Cell, regions []*Region, adjacency map[int][]int, cellToRegion map[int]*Region) []*Region {
	byID := make(map[int]Cell, len(cells))
	for _, c := range cells {
		byID[c.ID] = c
	}

	for {
		var empty []int
		for _, c := range cells {
			if _, ok := cellToRegion[c.ID]; !ok {
				empty = append(empty, c.ID)
			}
		}
		if len(empty) == 0 {
			break
		}
		sort.Ints(empty)

		assignments := make(map[int]*Region, len(empty))
		for _, cellID := range empty {
			var nearest *Region
			for _, n := range adjacency[cellID] {
				r, ok := cellToRegion[n]
				if !ok {
					continue
				}
				if nearest == nil || regionSeedDistance(byID[cellID], r, byID) < regionSeedDistance(byID[cellID], nearest, byID) ||
					(regionSeedDistance(byID[cellID], r, byID) == regionSeedDistance(byID[cellID], nearest, byID) && r.ID < nearest.ID) {
					nearest = r
				}
			}
			if nearest != nil {
				assignments[cellID] = nearest
			}
		}
		if len(assignments) == 0 {
			// No empty cell borders an occupied region; these are isolated
			// and stay unfilled rather than being forced into a distant
			// region.
			for _, cellID := range empty {
				logger.Warn("isolated empty cell left unfilled", "cell_id", cellID)
			}
			break
		}

		for cellID, r := range assignments {
			r.CellIDs = append(r.CellIDs, cellID)
			cellToRegion[cellID] = r
		}
		for _, r := range regions {
			sort.Ints(r.CellIDs)
		}
	}

	return regions
}

func regionSeedDistance(c Cell, r *Region, byID map[int]Cell) float64 {
	return planarDistance(c.Centroid, byID[r.SeedCell].Centroid)
}

// flattenRegionVoterIDs collects and sorts every voter id covered by the
// units assigned to a region's cells, given the cell assignments used to
// grow it.
func flattenRegionVoterIDs(r *Region, assignments map[int]*CellAssignment, unitVoters map[uuid.UUID][]uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, cellID := range r.CellIDs {
		a, ok := assignments[cellID]
		if !ok {
			continue
		}
		for _, unitID := range a.UnitIDs {
			ids = append(ids, unitVoters[unitID]...)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
