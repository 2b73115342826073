package segengine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"

	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
	"github.com/voteops/segengine/internal/infrastructure/tracing"
)

// Repositories bundles the constructors the dispatcher needs to build
// transaction-scoped repositories for one run.
type Repositories struct {
	NewHierarchyRepository func(bun.IDB) repository.HierarchyRepository
	NewSegmentRepository   func(bun.IDB) repository.SegmentRepository
	NewAuditRepository     func(bun.IDB) repository.AuditRepository
	NewExceptionRepository func(bun.IDB) repository.ExceptionRepository
}

// Run implements C11: dispatch to the configured strategy, running C1-C10
// inside a single database transaction so a failure at any step leaves no
// partial segmentation behind. Scope resolution and persistence each run
// in their own trace span; the run's span carries the timing breakdown the
// result reports.
func Run(
	ctx context.Context,
	db *bun.DB,
	repos Repositories,
	strategy Strategy,
	electionID, nodeID, jobID uuid.UUID,
	version int,
) (*EngineResult, error) {
	ctx, span := tracing.StartSpan(ctx, "segengine.Run")
	defer span.End()

	start := time.Now()
	var algorithmMS, dbWriteMS int64
	var result *EngineResult

	err := db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hierarchyRepo := repos.NewHierarchyRepository(tx)
		segRepo := repos.NewSegmentRepository(tx)
		auditRepo := repos.NewAuditRepository(tx)
		exceptionRepo := repos.NewExceptionRepository(tx)

		algoStart := time.Now()

		scopeCtx, scopeSpan := tracing.StartSpan(ctx, "segengine.resolve_scope")
		scope, err := ResolveScope(scopeCtx, hierarchyRepo, electionID, nodeID)
		scopeSpan.End()
		if err != nil {
			return err
		}

		voterCount, err := hierarchyRepo.CountVotersByBoothIDs(ctx, scope.BoothIDs)
		if err != nil {
			return wrapErr(KindInput, CodeNoVoters, "failed to count scope voters", err)
		}
		if voterCount == 0 {
			return ErrNoVoters
		}

		units, err := BuildUnits(ctx, hierarchyRepo, scope.BoothIDs)
		if err != nil {
			return err
		}

		segments, err := runStrategy(ctx, strategy, units)
		if err != nil {
			return err
		}

		algorithmMS = time.Since(algoStart).Milliseconds()

		if err := ValidatePreCommit(segments, voterCount); err != nil {
			return err
		}

		writeStart := time.Now()
		writeCtx, writeSpan := tracing.StartSpan(ctx, "segengine.persist")
		hash, err := PersistSegments(writeCtx, segRepo, auditRepo, electionID, nodeID, jobID, version, segments)
		writeSpan.End()
		if err != nil {
			return err
		}

		allFamilyIDs := make([]uuid.UUID, 0, len(units))
		for _, u := range units {
			allFamilyIDs = append(allFamilyIDs, u.ID)
		}
		if err := ValidatePostCommit(ctx, segRepo, nodeID, allFamilyIDs); err != nil {
			return err
		}

		if err := recordReviewExceptions(ctx, exceptionRepo, electionID, jobID, segments); err != nil {
			return err
		}

		dbWriteMS = time.Since(writeStart).Milliseconds()

		familyCount := 0
		for _, seg := range segments {
			familyCount += seg.TotalFamilies
		}

		result = &EngineResult{
			SegmentCount: len(segments),
			VoterCount:   voterCount,
			FamilyCount:  familyCount,
			AlgorithmMS:  algorithmMS,
			DBWriteMS:    dbWriteMS,
			RunHash:      hash,
		}
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}

	result.TotalMS = time.Since(start).Milliseconds()
	span.SetAttributes(
		attribute.Int64("segengine.algorithm_ms", result.AlgorithmMS),
		attribute.Int64("segengine.db_write_ms", result.DBWriteMS),
		attribute.Int64("segengine.total_ms", result.TotalMS),
		attribute.Int("segengine.segment_count", result.SegmentCount),
	)

	return result, nil
}

func runStrategy(ctx context.Context, strategy Strategy, units []Unit) ([]BuiltSegment, error) {
	switch strategy {
	case StrategyGridBased:
		boundary, err := ComputeBoundary(units)
		if err != nil {
			return nil, err
		}
		cells, spacing, err := BuildGrid(boundary, len(units))
		if err != nil {
			return nil, err
		}
		index := NewCellIndex(cells)
		assignments, err := AssignUnitsToCells(units, cells, index)
		if err != nil {
			return nil, err
		}
		regions, err := GrowRegions(cells, assignments, spacing)
		if err != nil {
			return nil, err
		}
		unitVoters := make(map[uuid.UUID][]uuid.UUID, len(units))
		for _, u := range units {
			unitVoters[u.ID] = u.VoterIDs
		}
		return BuildSegmentsFromRegions(regions, cells, assignments, unitVoters)

	case StrategyGeoHash:
		tiles, err := BuildGeoTiles(units)
		if err != nil {
			return nil, err
		}
		return PackGeoTiles(tiles, units)

	default:
		return nil, newErr(KindInput, CodeAssignmentFailed, "unknown segmentation strategy: "+string(strategy))
	}
}

// recordReviewExceptions writes one exception row per segment flagged for
// manual review, so operators see oversized/undersized outcomes without
// needing to scan every segment.
func recordReviewExceptions(ctx context.Context, exceptionRepo repository.ExceptionRepository, electionID, jobID uuid.UUID, segments []BuiltSegment) error {
	for _, seg := range segments {
		if !seg.RequiresManualReview {
			continue
		}

		exType := models.ExceptionTypeOther
		switch {
		case seg.Oversized:
			exType = models.ExceptionTypeOversized
		case seg.Undersized:
			exType = models.ExceptionTypeUndersized
		}

		exc := &models.ExceptionModel{
			ElectionID: electionID,
			Entity:     models.ExceptionEntitySegment,
			Severity:   models.ExceptionSeverityMedium,
			Type:       exType,
			Metadata: models.JSONBMap{
				"job_id":       jobID.String(),
				"segment_code": seg.Code,
				"total_voters": seg.TotalVoters,
			},
		}
		if err := exceptionRepo.Create(ctx, exc); err != nil {
			return wrapErr(KindPersistence, CodeJobFailed, "failed to record review exception", err)
		}
	}
	return nil
}
