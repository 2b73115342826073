package segengine

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// BuildSegmentsFromRegions implements C7: turn grown regions into the final
// assembled segments. Each region's geometry is the convex hull of every
// vertex of its cell polygons (no polygon-union library exists in the
// reference corpus). The hull is always one polygon; it is not the exact
// union of the cells: for a region that is not convex it also covers the
// ground between its cells, which can overlap a neighboring segment's
// geometry. The centroid is the unweighted mean of the member cell
// centroids.
func BuildSegmentsFromRegions(
	regions []*Region,
	cells []Cell,
	assignments map[int]*CellAssignment,
	unitVoters map[uuid.UUID][]uuid.UUID,
) ([]BuiltSegment, error) {
	cellByID := make(map[int]Cell, len(cells))
	for _, c := range cells {
		cellByID[c.ID] = c
	}

	sorted := make([]*Region, len(regions))
	copy(sorted, regions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	segments := make([]BuiltSegment, 0, len(sorted))
	for i, r := range sorted {
		if len(r.CellIDs) == 0 {
			continue
		}

		var points []orb.Point
		for _, cellID := range r.CellIDs {
			c, ok := cellByID[cellID]
			if !ok {
				continue
			}
			points = append(points, c.Polygon[0]...)
		}
		if len(points) == 0 {
			return nil, ErrGeometryBuild
		}

		hull := convexHull(points)
		if len(hull) < 3 {
			return nil, ErrGeometryBuild
		}
		poly := orb.Polygon{closeRing(hull)}

		centroid := weightedCentroid(r, cellByID)

		voterIDs := flattenRegionVoterIDs(r, assignments, unitVoters)
		familyIDs := flattenRegionFamilyIDs(r, assignments)

		seg := BuiltSegment{
			Code:                 fmt.Sprintf("SEG-%03d", i+1),
			Geometry:             poly,
			Boundary:             poly,
			Centroid:             centroid,
			FamilyIDs:            familyIDs,
			VoterIDs:             voterIDs,
			TotalVoters:          r.Voters,
			TotalFamilies:        len(familyIDs),
			Algorithm:            AlgorithmGridRegionGrowing,
			Oversized:            r.Voters > AbsoluteMax,
			Undersized:           r.Voters < AbsoluteMin,
			RequiresManualReview: r.Oversized || r.Voters > AbsoluteMax || r.Voters < AbsoluteMin,
		}
		segments = append(segments, seg)
	}

	return segments, nil
}

func weightedCentroid(r *Region, cellByID map[int]Cell) orb.Point {
	var sumLng, sumLat, weight float64
	for _, cellID := range r.CellIDs {
		c, ok := cellByID[cellID]
		if !ok {
			continue
		}
		sumLng += c.Centroid[0]
		sumLat += c.Centroid[1]
		weight++
	}
	if weight == 0 {
		return orb.Point{}
	}
	return orb.Point{sumLng / weight, sumLat / weight}
}

func flattenRegionFamilyIDs(r *Region, assignments map[int]*CellAssignment) []uuid.UUID {
	var ids []uuid.UUID
	for _, cellID := range r.CellIDs {
		a, ok := assignments[cellID]
		if !ok {
			continue
		}
		ids = append(ids, a.UnitIDs...)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
