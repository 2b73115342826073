package segengine

import (
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// ScopeKind classifies a hierarchy node per C1.
type ScopeKind string

const (
	ScopeConstituency ScopeKind = "constituency"
	ScopeBooth        ScopeKind = "booth"
)

// Strategy selects the partitioning algorithm the dispatcher runs.
type Strategy string

const (
	StrategyGridBased Strategy = "grid-based"
	StrategyGeoHash   Strategy = "geo-hash"
)

const (
	AlgorithmGridRegionGrowing = "grid_region_growing"
	AlgorithmGeoHashFixed7     = "geohash_fixed_precision_7"
)

// Grid-strategy size bounds (spec §4.6, §9 threshold resolution).
const (
	TargetMin    = 100
	TargetIdeal  = 115
	TargetMax    = 130
	AbsoluteMin  = 90
	AbsoluteMax  = 135
)

// Voter is the minimal voter projection the engine needs: nothing beyond
// its id and the family it belongs to.
type Voter struct {
	ID       uuid.UUID
	FamilyID uuid.UUID
}

// RawFamily is the input projection of a family row, before it becomes an
// atomic Unit.
type RawFamily struct {
	ID          uuid.UUID
	BoothID     uuid.UUID
	MemberCount int
	Latitude    *float64
	Longitude   *float64
	VoterIDs    []uuid.UUID
}

// Unit is an atomic, indivisible voter-movement unit (C2): one family, its
// voter ids sorted for determinism, and its centroid when coordinates exist.
type Unit struct {
	ID          uuid.UUID // == family id
	VoterCount  int
	VoterIDs    []uuid.UUID
	Centroid    orb.Point
	HasGeometry bool
}

// SortUnitsByID returns units ordered by id ascending, the deterministic
// order C2 promises downstream.
func SortUnitsByID(units []Unit) []Unit {
	sorted := make([]Unit, len(units))
	copy(sorted, units)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

// Cell is one tile of the adaptive grid (C4).
type Cell struct {
	ID       int
	Polygon  orb.Polygon
	Centroid orb.Point
}

// CellAssignment is the result of C5: the units and voter count attached to
// one cell.
type CellAssignment struct {
	CellID     int
	UnitIDs    []uuid.UUID
	VoterCount int
	Centroid   orb.Point
}

// Region is a set of grown cells destined to become one segment (C6).
type Region struct {
	ID         int
	CellIDs    []int
	Voters     int
	SeedCell   int
	Oversized  bool
	Tombstoned bool
}

// GeoTile is one geohash-grouped bucket of families (C8).
type GeoTile struct {
	Geohash    string
	FamilyIDs  []uuid.UUID
	VoterCount int
	Polygon    orb.Polygon
}

// BuiltSegment is the assembled, not-yet-persisted output of C7/C8: one
// segment's geometry, centroid, voter/family membership and annotations.
type BuiltSegment struct {
	Code               string
	Geometry           orb.Geometry
	Boundary           orb.Geometry
	Centroid           orb.Point
	FamilyIDs          []uuid.UUID
	VoterIDs           []uuid.UUID
	TotalVoters        int
	TotalFamilies       int
	Algorithm          string
	Oversized          bool
	Undersized         bool
	RequiresManualReview bool
}

// ScopeResult is the output of C1: the scope's kind and the in-scope booth
// ids, sorted.
type ScopeResult struct {
	Kind     ScopeKind
	BoothIDs []uuid.UUID
}

// EngineResult is the dispatcher's (C11) summary of one completed run.
type EngineResult struct {
	SegmentCount int    `json:"segment_count"`
	VoterCount   int    `json:"voter_count"`
	FamilyCount  int    `json:"family_count"`
	AlgorithmMS  int64  `json:"algorithm_ms"`
	DBWriteMS    int64  `json:"db_write_ms"`
	TotalMS      int64  `json:"total_ms"`
	RunHash      string `json:"run_hash"`
}
