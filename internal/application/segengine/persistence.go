package segengine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

// PersistSegments implements C10: replace the node's prior draft segments
// with the freshly built set, their member rows, and one audit batch
// recording the run, then return a content hash of the final assignment so
// repeated runs over unchanged input are detectable.
func PersistSegments(
	ctx context.Context,
	segRepo repository.SegmentRepository,
	auditRepo repository.AuditRepository,
	electionID, nodeID uuid.UUID,
	jobID uuid.UUID,
	version int,
	segments []BuiltSegment,
) (string, error) {
	if err := segRepo.DeleteDraftsForNode(ctx, nodeID); err != nil {
		return "", wrapErr(KindPersistence, CodeJobFailed, "failed to delete prior draft segments", err)
	}

	segmentModels := make([]*models.SegmentModel, 0, len(segments))
	for i, seg := range segments {
		var exception interface{}
		switch {
		case seg.Oversized:
			exception = "oversized"
		case seg.Undersized:
			exception = "undersized"
		}

		metadata := models.JSONBMap{
			"node_id":      nodeID.String(),
			"segment_code": seg.Code,
			"version":      version,
			"job_id":       jobID.String(),
			"algorithm":    seg.Algorithm,
			"exception":    exception,
		}
		if seg.RequiresManualReview {
			metadata["requires_manual_review"] = true
		}

		sm := &models.SegmentModel{
			ElectionID:    electionID,
			NodeID:        nodeID,
			DisplayName:   seg.Code,
			Color:         models.SegmentPalette[i%len(models.SegmentPalette)],
			Status:        models.SegmentStatusDraft,
			Centroid:      models.NewGeometry(seg.Centroid),
			Boundary:      models.NewGeometry(seg.Boundary),
			FullGeometry:  models.NewGeometry(seg.Geometry),
			TotalVoters:   seg.TotalVoters,
			TotalFamilies: seg.TotalFamilies,
			Metadata:      metadata,
		}
		segmentModels = append(segmentModels, sm)
	}

	if err := segRepo.BulkInsertSegments(ctx, segmentModels); err != nil {
		return "", wrapErr(KindPersistence, CodeJobFailed, "failed to insert segments", err)
	}

	var members []*models.SegmentMemberModel
	for i, seg := range segments {
		for _, familyID := range seg.FamilyIDs {
			members = append(members, &models.SegmentMemberModel{
				SegmentID: segmentModels[i].ID,
				FamilyID:  familyID,
			})
		}
	}
	if err := segRepo.BulkInsertMembers(ctx, members, 5000); err != nil {
		return "", wrapErr(KindPersistence, CodeJobFailed, "failed to insert segment members", err)
	}

	batch := &models.AuditBatchModel{
		ElectionID:   electionID,
		BatchType:    "segmentation",
		Description:  fmt.Sprintf("segmentation run for node %s (version %d)", nodeID, version),
		TotalChanges: len(segments),
	}
	if err := auditRepo.CreateBatch(ctx, batch); err != nil {
		return "", wrapErr(KindPersistence, CodeJobFailed, "failed to create audit batch", err)
	}

	movements := make([]*models.AuditMovementModel, 0, len(segmentModels))
	for _, sm := range segmentModels {
		movements = append(movements, &models.AuditMovementModel{
			BatchID:    batch.ID,
			Action:     models.AuditActionCreate,
			EntityType: models.AuditEntityTypeSegment,
			EntityID:   sm.ID,
			NewData: models.JSONBMap{
				"display_name":   sm.DisplayName,
				"total_voters":   sm.TotalVoters,
				"total_families": sm.TotalFamilies,
			},
		})
	}
	if err := auditRepo.CreateMovements(ctx, movements); err != nil {
		return "", wrapErr(KindPersistence, CodeJobFailed, "failed to create audit movements", err)
	}

	return runHash(segments), nil
}

// runHash computes a stable fingerprint of the run's final family
// assignment: every family id sorted and comma-joined, then MD5'd. Two runs
// over identical input produce the same hash regardless of algorithm
// ordering quirks upstream.
func runHash(segments []BuiltSegment) string {
	var allFamilyIDs []string
	for _, seg := range segments {
		for _, id := range seg.FamilyIDs {
			allFamilyIDs = append(allFamilyIDs, id.String())
		}
	}
	sort.Strings(allFamilyIDs)

	joined := ""
	for i, id := range allFamilyIDs {
		if i > 0 {
			joined += ","
		}
		joined += id
	}

	sum := md5.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])
}
