package segengine

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// AssignUnitsToCells implements C5: assign every unit to its nearest cell
// by distance from the unit centroid to the cell geometry (zero if the
// centroid falls inside the cell). Every unit must land somewhere; if any
// unit has no usable centroid or no cell is found, the whole assignment
// fails.
func AssignUnitsToCells(units []Unit, cells []Cell, index *CellIndex) (map[int]*CellAssignment, error) {
	if len(cells) == 0 {
		return nil, ErrAssignmentFailed
	}

	assignments := make(map[int]*CellAssignment)

	for _, u := range units {
		if !u.HasGeometry {
			return nil, ErrAssignmentFailed
		}

		cell, ok := nearestCell(u.Centroid, cells, index)
		if !ok {
			return nil, ErrAssignmentFailed
		}

		a, exists := assignments[cell.ID]
		if !exists {
			a = &CellAssignment{CellID: cell.ID, Centroid: cell.Centroid}
			assignments[cell.ID] = a
		}
		a.UnitIDs = append(a.UnitIDs, u.ID)
		a.VoterCount += u.VoterCount
	}

	for _, a := range assignments {
		sort.Slice(a.UnitIDs, func(i, j int) bool { return a.UnitIDs[i].String() < a.UnitIDs[j].String() })
	}

	return assignments, nil
}

// nearestCell finds the cell minimizing distance from p to the cell
// geometry. The spatial index narrows the search to nearby candidates by
// centroid distance; ties are broken by the lowest cell id.
func nearestCell(p orb.Point, cells []Cell, index *CellIndex) (Cell, bool) {
	if index != nil {
		if c, ok := index.Nearest(p); ok {
			return refineNearest(p, c, cells), true
		}
	}
	return bruteForceNearest(p, cells)
}

// refineNearest checks the index's pick against a small neighborhood of
// cells sorted by centroid distance, since the index only guarantees
// nearest-centroid, not nearest-geometry.
func refineNearest(p orb.Point, hint Cell, cells []Cell) Cell {
	type candidate struct {
		cell Cell
		dist float64
	}
	candidates := make([]candidate, 0, len(cells))
	for _, c := range cells {
		candidates = append(candidates, candidate{cell: c, dist: planarDistance(p, c.Centroid)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	limit := 12
	if limit > len(candidates) {
		limit = len(candidates)
	}

	best := hint
	bestDist := distanceToCell(p, hint)
	for _, c := range candidates[:limit] {
		d := distanceToCell(p, c.cell)
		if d < bestDist || (d == bestDist && c.cell.ID < best.ID) {
			best = c.cell
			bestDist = d
		}
	}
	return best
}

func bruteForceNearest(p orb.Point, cells []Cell) (Cell, bool) {
	if len(cells) == 0 {
		return Cell{}, false
	}
	best := cells[0]
	bestDist := distanceToCell(p, best)
	for _, c := range cells[1:] {
		d := distanceToCell(p, c)
		if d < bestDist || (d == bestDist && c.ID < best.ID) {
			best = c
			bestDist = d
		}
	}
	return best, true
}

func distanceToCell(p orb.Point, c Cell) float64 {
	if len(c.Polygon) == 0 {
		return planarDistance(p, c.Centroid)
	}
	ring := c.Polygon[0]
	if ringContains(ring, p) {
		return 0
	}
	best := math.Inf(1)
	n := len(ring)
	for i := 0; i < n; i++ {
		a := ring[i]
		b := ring[(i+1)%n]
		d := pointToSegmentDistance(p, a, b)
		if d < best {
			best = d
		}
	}
	return best
}

func pointToSegmentDistance(p, a, b orb.Point) float64 {
	vx, vy := b[0]-a[0], b[1]-a[1]
	wx, wy := p[0]-a[0], p[1]-a[1]

	lenSq := vx*vx + vy*vy
	if lenSq == 0 {
		return planarDistance(p, a)
	}

	t := (wx*vx + wy*vy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	proj := orb.Point{a[0] + t*vx, a[1] + t*vy}
	return planarDistance(p, proj)
}
