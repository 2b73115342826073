package segengine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

func gridUnits(n int) []Unit {
	units := make([]Unit, n)
	for i := 0; i < n; i++ {
		lng := 77.0 + float64(i%10)*0.01
		lat := 12.0 + float64(i/10)*0.01
		units[i] = Unit{
			ID:          uuid.New(),
			VoterCount:  4,
			VoterIDs:    []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()},
			Centroid:    orb.Point{lng, lat},
			HasGeometry: true,
		}
	}
	return SortUnitsByID(units)
}

func TestRunStrategy_ShouldBuildSegments_ForGridBasedStrategy(t *testing.T) {
	units := gridUnits(40)

	segments, err := runStrategy(context.Background(), StrategyGridBased, units)

	require.NoError(t, err)
	assert.NotEmpty(t, segments)
	for _, s := range segments {
		assert.Equal(t, AlgorithmGridRegionGrowing, s.Algorithm)
	}
}

func TestRunStrategy_ShouldBuildSegments_ForGeoHashStrategy(t *testing.T) {
	units := gridUnits(40)

	segments, err := runStrategy(context.Background(), StrategyGeoHash, units)

	require.NoError(t, err)
	assert.NotEmpty(t, segments)
	for _, s := range segments {
		assert.Equal(t, AlgorithmGeoHashFixed7, s.Algorithm)
	}
}

func TestRunStrategy_ShouldError_ForUnknownStrategy(t *testing.T) {
	units := gridUnits(5)

	_, err := runStrategy(context.Background(), Strategy("bogus"), units)

	assert.Error(t, err)
}

func TestRecordReviewExceptions_ShouldSkipSegmentsNotFlaggedForReview(t *testing.T) {
	repo := &fakeExceptionRepository{}
	segments := []BuiltSegment{{Code: "SEG-001", RequiresManualReview: false}}

	err := recordReviewExceptions(context.Background(), repo, uuid.New(), uuid.New(), segments)

	require.NoError(t, err)
	assert.Empty(t, repo.created)
}

func TestRecordReviewExceptions_ShouldRecordOversizedAndUndersized(t *testing.T) {
	repo := &fakeExceptionRepository{}
	segments := []BuiltSegment{
		{Code: "SEG-001", RequiresManualReview: true, Oversized: true},
		{Code: "SEG-002", RequiresManualReview: true, Undersized: true},
	}

	err := recordReviewExceptions(context.Background(), repo, uuid.New(), uuid.New(), segments)

	require.NoError(t, err)
	require.Len(t, repo.created, 2)
	assert.Equal(t, models.ExceptionTypeOversized, repo.created[0].Type)
	assert.Equal(t, models.ExceptionTypeUndersized, repo.created[1].Type)
	assert.Equal(t, models.ExceptionSeverityMedium, repo.created[0].Severity)
}
