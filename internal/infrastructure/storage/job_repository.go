package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

var _ repository.JobRepository = (*JobRepository)(nil)

// JobRepository implements the job-queue lease protocol (spec §4.12) using
// SELECT ... FOR UPDATE SKIP LOCKED plus a conditional status transition,
// so that at most one worker ever moves a given job out of queued.
type JobRepository struct {
	db *bun.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *bun.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.SegmentationJobModel) error {
	_, err := r.db.NewInsert().Model(job).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create segmentation job: %w", err)
	}
	return nil
}

// LeaseNext implements the two-step lease: lock the oldest queued row,
// skipping rows another worker already holds, then flip it to running only
// if it is still queued. Both steps run in one transaction so the row lock
// is held across the transition.
func (r *JobRepository) LeaseNext(ctx context.Context) (*models.SegmentationJobModel, error) {
	var leased *models.SegmentationJobModel

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var candidate models.SegmentationJobModel
		err := tx.NewSelect().
			Model(&candidate).
			Where("status = ?", models.JobStatusQueued).
			Where("job_type = ?", models.JobTypeAutoSegment).
			Order("created_at ASC").
			Limit(1).
			For("UPDATE SKIP LOCKED").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to select next queued job: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*models.SegmentationJobModel)(nil)).
			Set("status = ?", models.JobStatusRunning).
			Set("started_at = now()").
			Set("updated_at = now()").
			Where("id = ?", candidate.ID).
			Where("status = ?", models.JobStatusQueued).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to transition job to running: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to inspect lease result: %w", err)
		}
		if affected == 0 {
			// Another worker claimed it between SELECT and UPDATE: a
			// recoverable LeaseError, not a failure. Skip silently.
			return nil
		}

		if err := tx.NewSelect().Model(&candidate).Where("id = ?", candidate.ID).Scan(ctx); err != nil {
			return fmt.Errorf("failed to reload leased job: %w", err)
		}
		leased = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return leased, nil
}

// NextVersion computes max(existing version + 1, 1) over this node's
// completed jobs and the versions recorded in its segments' metadata.
func (r *JobRepository) NextVersion(ctx context.Context, nodeID uuid.UUID) (int, error) {
	var maxVersion int
	query := `SELECT GREATEST(
		(SELECT COALESCE(MAX(version), 0) FROM segmentation_jobs WHERE node_id = ? AND status = ?),
		(SELECT COALESCE(MAX((metadata->>'version')::int), 0) FROM segments WHERE node_id = ?)
	)`
	err := r.db.QueryRowContext(ctx, query, nodeID, models.JobStatusCompleted, nodeID).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next version: %w", err)
	}
	next := maxVersion + 1
	if next < 1 {
		next = 1
	}
	return next, nil
}

func (r *JobRepository) MarkCompleted(ctx context.Context, jobID uuid.UUID, result models.JSONBMap) error {
	_, err := r.db.NewUpdate().
		Model((*models.SegmentationJobModel)(nil)).
		Set("status = ?", models.JobStatusCompleted).
		Set("result = ?", result).
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

func (r *JobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID) error {
	_, err := r.db.NewUpdate().
		Model((*models.SegmentationJobModel)(nil)).
		Set("status = ?", models.JobStatusFailed).
		Set("completed_at = now()").
		Set("updated_at = now()").
		Where("id = ?", jobID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SegmentationJobModel, error) {
	job := &models.SegmentationJobModel{}
	err := r.db.NewSelect().Model(job).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("segmentation job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to find segmentation job: %w", err)
	}
	return job, nil
}

var _ repository.ExceptionRepository = (*ExceptionRepository)(nil)

// ExceptionRepository persists exception rows.
type ExceptionRepository struct {
	db bun.IDB
}

// NewExceptionRepository creates a new ExceptionRepository.
func NewExceptionRepository(db bun.IDB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

func (r *ExceptionRepository) Create(ctx context.Context, exception *models.ExceptionModel) error {
	_, err := r.db.NewInsert().Model(exception).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create exception: %w", err)
	}
	return nil
}

func (r *ExceptionRepository) FindByJobID(ctx context.Context, electionID uuid.UUID, jobID uuid.UUID) ([]*models.ExceptionModel, error) {
	var exceptions []*models.ExceptionModel
	err := r.db.NewSelect().
		Model(&exceptions).
		Where("election_id = ?", electionID).
		Where("metadata->>'job_id' = ?", jobID.String()).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find exceptions by job id: %w", err)
	}
	return exceptions, nil
}
