package segengine

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

const (
	minEdgeM = 50.0
	maxEdgeM = 2000.0
	// metersPerDegreeLat is the (near-constant) meters covered by one
	// degree of latitude; longitude is scaled by cos(lat).
	metersPerDegreeLat = 111320.0
)

// GridSpacing carries the lat/lng degree step used to build a grid, which
// the region grower needs as its adjacency tolerance.
type GridSpacing struct {
	DegLat float64
	DegLng float64
}

// BuildGrid implements C4: decide an edge length from the unit count and
// boundary area, tile the boundary's bounding box into square cells, keep
// the ones that intersect the boundary, and return them ordered
// deterministically (centroid latitude descending, then longitude
// ascending).
func BuildGrid(boundary *Boundary, unitCount int) ([]Cell, GridSpacing, error) {
	if unitCount <= 0 || len(boundary.Polygon) == 0 {
		return nil, GridSpacing{}, ErrNoBoundary
	}

	estimatedSegments := math.Max(1, math.Round(float64(unitCount)*2.65/TargetIdeal))
	targetCells := estimatedSegments * 6
	denom := math.Max(targetCells, float64(unitCount)*0.5)
	rawEdgeM := math.Sqrt(boundary.AreaM2 / denom)
	edgeM := clamp(rawEdgeM, minEdgeM, maxEdgeM)

	centroidLat := ringCentroidLat(boundary.Polygon[0])
	degLat := edgeM / metersPerDegreeLat
	cosLat := math.Cos(centroidLat * math.Pi / 180)
	if math.Abs(cosLat) < 1e-9 {
		cosLat = 1e-9
	}
	degLng := edgeM / (metersPerDegreeLat * cosLat)

	bound := boundary.Polygon.Bound()

	var cells []Cell
	id := 0
	for lat := bound.Min[1]; lat < bound.Max[1]; lat += degLat {
		for lng := bound.Min[0]; lng < bound.Max[0]; lng += degLng {
			cellBound := orb.Bound{
				Min: orb.Point{lng, lat},
				Max: orb.Point{lng + degLng, lat + degLat},
			}
			cellPoly := boundToPolygon(cellBound)
			if !cellIntersectsBoundary(cellPoly, boundary.Polygon) {
				continue
			}
			centroid := orb.Point{
				(cellBound.Min[0] + cellBound.Max[0]) / 2,
				(cellBound.Min[1] + cellBound.Max[1]) / 2,
			}
			cells = append(cells, Cell{ID: id, Polygon: cellPoly, Centroid: centroid})
			id++
		}
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Centroid[1] != cells[j].Centroid[1] {
			return cells[i].Centroid[1] > cells[j].Centroid[1]
		}
		return cells[i].Centroid[0] < cells[j].Centroid[0]
	})

	return cells, GridSpacing{DegLat: degLat, DegLng: degLng}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boundToPolygon(b orb.Bound) orb.Polygon {
	ring := orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}
	return orb.Polygon{ring}
}

// cellIntersectsBoundary approximates polygon-polygon intersection by
// testing the cell's center and corners against the boundary, and the
// boundary's vertices against the cell bound: sufficient for deciding grid
// coverage without a full clipping routine (none exists anywhere in the
// reference corpus).
func cellIntersectsBoundary(cell orb.Polygon, boundary orb.Polygon) bool {
	ring := cell[0]
	for _, p := range ring {
		if ringContains(boundary[0], p) {
			return true
		}
	}
	cellBound := cell.Bound()
	for _, p := range boundary[0] {
		if cellBound.Contains(p) {
			return true
		}
	}
	center := orb.Point{(cellBound.Min[0] + cellBound.Max[0]) / 2, (cellBound.Min[1] + cellBound.Max[1]) / 2}
	return ringContains(boundary[0], center)
}

// ringContains is a standard even-odd ray-casting point-in-polygon test.
func ringContains(ring orb.Ring, p orb.Point) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := ring[i], ring[j]
		if (pi[1] > p[1]) != (pj[1] > p[1]) &&
			p[0] < (pj[0]-pi[0])*(p[1]-pi[1])/(pj[1]-pi[1])+pi[0] {
			inside = !inside
		}
	}
	return inside
}

func ringCentroidLat(ring orb.Ring) float64 {
	if len(ring) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range ring {
		sum += p[1]
	}
	return sum / float64(len(ring))
}

// cellPoint adapts a Cell's centroid to orb.Pointer so it can be indexed in
// a quadtree.
type cellPoint struct {
	cell Cell
}

func (c cellPoint) Point() orb.Point { return c.cell.Centroid }

// CellIndex is the spatial index C4 requires to exist before C5's
// nearest-cell queries run.
type CellIndex struct {
	tree  *quadtree.Quadtree
	cells map[int]Cell
}

// NewCellIndex builds a quadtree over the cell centroids.
func NewCellIndex(cells []Cell) *CellIndex {
	if len(cells) == 0 {
		return &CellIndex{cells: map[int]Cell{}}
	}

	bound := orb.Bound{Min: cells[0].Centroid, Max: cells[0].Centroid}
	for _, c := range cells[1:] {
		bound = bound.Extend(c.Centroid)
	}
	// Quadtrees need a non-degenerate bound.
	if bound.Min[0] == bound.Max[0] {
		bound.Max[0] += 1e-6
	}
	if bound.Min[1] == bound.Max[1] {
		bound.Max[1] += 1e-6
	}

	tree := quadtree.New(bound)
	byID := make(map[int]Cell, len(cells))
	for _, c := range cells {
		_ = tree.Add(cellPoint{cell: c})
		byID[c.ID] = c
	}

	return &CellIndex{tree: tree, cells: byID}
}

// Nearest returns the cell whose centroid is nearest the given point.
func (idx *CellIndex) Nearest(p orb.Point) (Cell, bool) {
	if idx.tree == nil {
		return Cell{}, false
	}
	found := idx.tree.Find(p)
	if found == nil {
		return Cell{}, false
	}
	cp, ok := found.(cellPoint)
	if !ok {
		return Cell{}, false
	}
	return cp.cell, true
}
