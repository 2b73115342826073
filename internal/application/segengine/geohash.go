package segengine

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

const geohashBase32 = "0123456789bcdefghjkmnpqrstuvwxyz"

const geohashPrecision = 7

// encodeGeohash computes the standard base-32 geohash for a point at a
// fixed precision. No geohash library exists anywhere in the reference
// corpus, so this hand-rolls the interleaved-bit-interval encoding the
// format is defined by.
func encodeGeohash(lng, lat float64, precision int) string {
	latRange := [2]float64{-90, 90}
	lngRange := [2]float64{-180, 180}

	hash := make([]byte, 0, precision)
	bit, ch := 0, 0
	evenBit := true

	for len(hash) < precision {
		if evenBit {
			mid := (lngRange[0] + lngRange[1]) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				lngRange[0] = mid
			} else {
				lngRange[1] = mid
			}
		} else {
			mid := (latRange[0] + latRange[1]) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				latRange[0] = mid
			} else {
				latRange[1] = mid
			}
		}
		evenBit = !evenBit

		if bit < 4 {
			bit++
		} else {
			hash = append(hash, geohashBase32[ch])
			bit = 0
			ch = 0
		}
	}

	return string(hash)
}

// BuildGeoTiles implements C8's tile-grouping step: compute each family's
// 7-character geohash and group families sharing a tile, sorted
// lexicographically by geohash for determinism.
func BuildGeoTiles(units []Unit) ([]GeoTile, error) {
	byHash := make(map[string]*GeoTile)

	for _, u := range units {
		if !u.HasGeometry {
			return nil, ErrNoUnits
		}
		hash := encodeGeohash(u.Centroid[0], u.Centroid[1], geohashPrecision)
		t, ok := byHash[hash]
		if !ok {
			t = &GeoTile{Geohash: hash}
			byHash[hash] = t
		}
		t.FamilyIDs = append(t.FamilyIDs, u.ID)
		t.VoterCount += u.VoterCount
	}

	tiles := make([]GeoTile, 0, len(byHash))
	for _, t := range byHash {
		sort.Slice(t.FamilyIDs, func(i, j int) bool { return t.FamilyIDs[i].String() < t.FamilyIDs[j].String() })
		tiles = append(tiles, *t)
	}
	sort.Slice(tiles, func(i, j int) bool { return tiles[i].Geohash < tiles[j].Geohash })

	return tiles, nil
}

// PackGeoTiles implements C8's greedy packing: walk tiles in lexicographic
// order, accumulating them into the current segment until adding the next
// tile would exceed TargetMax, or the segment has already reached
// TargetIdeal, then start a new segment. A single tile whose own voter
// count already exceeds TargetMax becomes its own segment rather than
// blocking the pack; that segment is flagged oversized and for manual
// review only when its count also exceeds AbsoluteMax.
func PackGeoTiles(tiles []GeoTile, units []Unit) ([]BuiltSegment, error) {
	unitByID := make(map[uuid.UUID]Unit, len(units))
	for _, u := range units {
		unitByID[u.ID] = u
	}

	var segments []BuiltSegment
	var current []GeoTile
	currentVoters := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		segments = append(segments, assembleGeoSegment(current, currentVoters, unitByID, len(segments)+1))
		current = nil
		currentVoters = 0
	}

	for _, t := range tiles {
		if t.VoterCount > TargetMax {
			flush()
			segments = append(segments, assembleGeoSegment([]GeoTile{t}, t.VoterCount, unitByID, len(segments)+1))
			continue
		}
		if currentVoters+t.VoterCount > TargetMax && len(current) > 0 {
			flush()
		}
		current = append(current, t)
		currentVoters += t.VoterCount
		if currentVoters >= TargetIdeal {
			flush()
		}
	}
	flush()

	return segments, nil
}

func assembleGeoSegment(tiles []GeoTile, voters int, unitByID map[uuid.UUID]Unit, index int) BuiltSegment {
	var familyIDs, voterIDs []uuid.UUID
	var points []orb.Point

	for _, t := range tiles {
		familyIDs = append(familyIDs, t.FamilyIDs...)
		for _, fid := range t.FamilyIDs {
			u, ok := unitByID[fid]
			if !ok {
				continue
			}
			voterIDs = append(voterIDs, u.VoterIDs...)
			if u.HasGeometry {
				points = append(points, u.Centroid)
			}
		}
	}

	sort.Slice(familyIDs, func(i, j int) bool { return familyIDs[i].String() < familyIDs[j].String() })
	sort.Slice(voterIDs, func(i, j int) bool { return voterIDs[i].String() < voterIDs[j].String() })

	var geom orb.Geometry
	var centroid orb.Point
	if len(points) >= 3 {
		hull := convexHull(points)
		geom = orb.Polygon{closeRing(hull)}
		centroid = weightedPointCentroid(points)
	} else if len(points) > 0 {
		centroid = weightedPointCentroid(points)
		geom = centroid
	}

	return BuiltSegment{
		Code:                 fmt.Sprintf("SEG-%03d", index),
		Geometry:             geom,
		Boundary:             geom,
		Centroid:             centroid,
		FamilyIDs:            familyIDs,
		VoterIDs:             voterIDs,
		TotalVoters:          voters,
		TotalFamilies:        len(familyIDs),
		Algorithm:            AlgorithmGeoHashFixed7,
		Oversized:            voters > AbsoluteMax,
		Undersized:           voters < AbsoluteMin,
		RequiresManualReview: voters > AbsoluteMax || voters < AbsoluteMin,
	}
}

func weightedPointCentroid(points []orb.Point) orb.Point {
	var sumLng, sumLat float64
	for _, p := range points {
		sumLng += p[0]
		sumLat += p[1]
	}
	n := float64(len(points))
	if n == 0 {
		return orb.Point{}
	}
	return orb.Point{sumLng / n, sumLat / n}
}
