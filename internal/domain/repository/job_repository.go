package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

// JobRepository persists segmentation job queue rows and implements the
// lease protocol the runner relies on for single-consumer guarantees.
type JobRepository interface {
	Create(ctx context.Context, job *models.SegmentationJobModel) error

	// LeaseNext selects the oldest queued auto-segment job with row-lock
	// exclusion (skip rows already held by another worker), transitions it
	// to running if and only if it is still queued, and returns it. Returns
	// (nil, nil) if no job is available to lease.
	LeaseNext(ctx context.Context) (*models.SegmentationJobModel, error)

	// NextVersion computes the next version number for a node as
	// max(existing version + 1, 1) over that node's prior jobs/segments.
	NextVersion(ctx context.Context, nodeID uuid.UUID) (int, error)

	MarkCompleted(ctx context.Context, jobID uuid.UUID, result models.JSONBMap) error
	MarkFailed(ctx context.Context, jobID uuid.UUID) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.SegmentationJobModel, error)
}

// ExceptionRepository persists exception rows surfaced by the validator and
// the job runner's failure path.
type ExceptionRepository interface {
	Create(ctx context.Context, exception *models.ExceptionModel) error
	FindByJobID(ctx context.Context, electionID uuid.UUID, jobID uuid.UUID) ([]*models.ExceptionModel, error)
}
