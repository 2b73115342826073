package segengine

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Boundary is the output of C3: a single simple polygon over the unit
// centroids and its area on the geographic sphere.
type Boundary struct {
	Polygon orb.Polygon
	AreaM2  float64
}

// ComputeBoundary implements C3: a concave hull over unit centroids with a
// tightness target of 0.98. No concave-hull implementation exists anywhere
// in the reference corpus, so this hand-rolls the classic "dig the convex
// hull" construction: start from the convex hull, then repeatedly pull the
// nearest untouched interior point into any edge that is long relative to
// the hull's average edge length, as long as doing so keeps the ring
// simple. Falls back to the convex hull itself when the hull has fewer than
// 4 vertices, or when no digging candidate keeps the ring simple.
func ComputeBoundary(units []Unit) (*Boundary, error) {
	points := make([]orb.Point, 0, len(units))
	for _, u := range units {
		if u.HasGeometry {
			points = append(points, u.Centroid)
		}
	}
	if len(points) == 0 {
		return nil, ErrNoBoundary
	}

	hull := convexHull(points)
	if len(hull) < 4 {
		// A hull of 3 or fewer vertices is not dug further.
		poly := orb.Polygon{closeRing(hull)}
		return &Boundary{Polygon: poly, AreaM2: geo.Area(poly)}, nil
	}

	ring := concaveDig(hull, points, tightnessTarget)
	poly := orb.Polygon{closeRing(ring)}
	area := geo.Area(poly)
	if area < 0 {
		area = -area
	}
	return &Boundary{Polygon: poly, AreaM2: area}, nil
}

const tightnessTarget = 0.98

// convexHull computes the convex hull of points via Andrew's monotone
// chain, returning an open (non-repeating-first-point) counter-clockwise
// ring.
func convexHull(points []orb.Point) []orb.Point {
	pts := uniqueSorted(points)
	n := len(pts)
	if n < 3 {
		return pts
	}

	hull := make([]orb.Point, 0, 2*n)

	// Lower hull.
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	// Upper hull.
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

func uniqueSorted(points []orb.Point) []orb.Point {
	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	out := sorted[:0]
	for i, p := range sorted {
		if i == 0 || p != sorted[i-1] {
			out = append(out, p)
		}
	}
	return out
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// concaveDig pulls interior points into long convex-hull edges while the
// ring stays simple, bounded by a hard iteration cap for termination.
func concaveDig(hull []orb.Point, allPoints []orb.Point, tightness float64) []orb.Point {
	used := make(map[orb.Point]bool, len(hull))
	for _, p := range hull {
		used[p] = true
	}

	ring := make([]orb.Point, len(hull))
	copy(ring, hull)

	avgEdge := averageEdgeLength(ring)
	threshold := avgEdge * (2.0 - tightness)

	maxDigs := len(allPoints) * 2
	for digs := 0; digs < maxDigs; digs++ {
		bestIdx := -1
		var bestCandidate orb.Point
		bestDist := math.Inf(1)

		for i := 0; i < len(ring); i++ {
			a := ring[i]
			b := ring[(i+1)%len(ring)]
			edgeLen := planarDistance(a, b)
			if edgeLen < threshold {
				continue
			}

			mid := orb.Point{(a[0] + b[0]) / 2, (a[1] + b[1]) / 2}
			for _, cand := range allPoints {
				if used[cand] {
					continue
				}
				d := planarDistance(mid, cand)
				if d >= bestDist {
					continue
				}
				if !keepsSimple(ring, i, cand) {
					continue
				}
				bestDist = d
				bestCandidate = cand
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			break
		}

		newRing := make([]orb.Point, 0, len(ring)+1)
		newRing = append(newRing, ring[:bestIdx+1]...)
		newRing = append(newRing, bestCandidate)
		newRing = append(newRing, ring[bestIdx+1:]...)
		ring = newRing
		used[bestCandidate] = true
	}

	return ring
}

func averageEdgeLength(ring []orb.Point) float64 {
	if len(ring) == 0 {
		return 0
	}
	total := 0.0
	for i := range ring {
		a := ring[i]
		b := ring[(i+1)%len(ring)]
		total += planarDistance(a, b)
	}
	return total / float64(len(ring))
}

func planarDistance(a, b orb.Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// keepsSimple checks that inserting candidate between ring[edgeIdx] and
// ring[edgeIdx+1] does not make either new segment cross any other edge of
// the ring.
func keepsSimple(ring []orb.Point, edgeIdx int, candidate orb.Point) bool {
	n := len(ring)
	a := ring[edgeIdx]
	b := ring[(edgeIdx+1)%n]

	for i := 0; i < n; i++ {
		if i == edgeIdx {
			continue
		}
		c := ring[i]
		d := ring[(i+1)%n]
		if segmentsIntersect(a, candidate, c, d) || segmentsIntersect(candidate, b, c, d) {
			return false
		}
	}
	return true
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func closeRing(ring []orb.Point) orb.Ring {
	closed := make(orb.Ring, len(ring), len(ring)+1)
	copy(closed, ring)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		closed = append(closed, ring[0])
	}
	return closed
}

// largestPolygon keeps the largest-area piece when a spatial operation
// returns a multipolygon, per spec §4.3/§4.7/§4.8 ("keep the largest
// piece").
func largestPolygon(mp orb.MultiPolygon) orb.Polygon {
	if len(mp) == 0 {
		return nil
	}
	best := mp[0]
	bestArea := math.Abs(geo.Area(best))
	for _, p := range mp[1:] {
		a := math.Abs(geo.Area(p))
		if a > bestArea {
			best = p
			bestArea = a
		}
	}
	return best
}
