// Package jobrunner drives the segmentation job queue: it leases the oldest
// queued job, hands it to the dispatcher inside one transaction, and
// records the outcome. Workers poll independently; the queue's row-lock
// lease protocol is what keeps them from double-processing a job.
package jobrunner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/voteops/segengine/internal/application/segengine"
	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/logger"
	"github.com/voteops/segengine/internal/infrastructure/storage/models"
)

// Runner polls the job queue and drives each leased job through the engine.
type Runner struct {
	db            *bun.DB
	jobRepo       repository.JobRepository
	exceptionRepo repository.ExceptionRepository
	engineRepos   segengine.Repositories
	strategy      segengine.Strategy
	pollInterval  time.Duration
	workerID      int
}

// Config collects the dependencies one Runner needs.
type Config struct {
	DB            *bun.DB
	JobRepo       repository.JobRepository
	ExceptionRepo repository.ExceptionRepository
	EngineRepos   segengine.Repositories
	Strategy      segengine.Strategy
	PollInterval  time.Duration
	WorkerID      int
}

// New creates a Runner from Config.
func New(cfg Config) *Runner {
	return &Runner{
		db:            cfg.DB,
		jobRepo:       cfg.JobRepo,
		exceptionRepo: cfg.ExceptionRepo,
		engineRepos:   cfg.EngineRepos,
		strategy:      cfg.Strategy,
		pollInterval:  cfg.PollInterval,
		workerID:      cfg.WorkerID,
	}
}

// Run polls until ctx is cancelled, processing at most one job per tick.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	logger.Info("job runner started", "worker_id", r.workerID, "poll_interval", r.pollInterval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("job runner stopping", "worker_id", r.workerID)
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// tick leases and processes at most one job; errors are logged, never
// panicked on, so one bad job never takes a worker down.
func (r *Runner) tick(ctx context.Context) {
	job, err := r.jobRepo.LeaseNext(ctx)
	if err != nil {
		logger.Error("failed to lease job", "worker_id", r.workerID, "error", err)
		return
	}
	if job == nil {
		// No queued job, or another worker won the race for it.
		return
	}

	logger.Info("leased job", "worker_id", r.workerID, "job_id", job.ID, "node_id", job.NodeID)

	if err := r.process(ctx, job); err != nil {
		logger.Error("job failed", "worker_id", r.workerID, "job_id", job.ID, "error", err)
		if markErr := r.jobRepo.MarkFailed(ctx, job.ID); markErr != nil {
			logger.Error("failed to mark job failed", "job_id", job.ID, "error", markErr)
		}
		r.recordFailureException(ctx, job, err)
		return
	}

	logger.Info("job completed", "worker_id", r.workerID, "job_id", job.ID)
}

func (r *Runner) process(ctx context.Context, job *models.SegmentationJobModel) error {
	version, err := r.jobRepo.NextVersion(ctx, job.NodeID)
	if err != nil {
		return err
	}
	if job.Version == 0 {
		job.Version = version
	}

	result, err := segengine.Run(ctx, r.db, r.engineRepos, r.strategy, job.ElectionID, job.NodeID, job.ID, job.Version)
	if err != nil {
		return err
	}

	resultJSON := models.JSONBMap{
		"segment_count": result.SegmentCount,
		"voter_count":   result.VoterCount,
		"family_count":  result.FamilyCount,
		"algorithm_ms":  result.AlgorithmMS,
		"db_write_ms":   result.DBWriteMS,
		"total_ms":      result.TotalMS,
		"run_hash":      result.RunHash,
	}
	return r.jobRepo.MarkCompleted(ctx, job.ID, resultJSON)
}

func (r *Runner) recordFailureException(ctx context.Context, job *models.SegmentationJobModel, cause error) {
	exc := &models.ExceptionModel{
		ElectionID: job.ElectionID,
		Entity:     models.ExceptionEntitySegment,
		Severity:   models.ExceptionSeverityHigh,
		Type:       models.ExceptionTypeOther,
		Metadata: models.JSONBMap{
			"job_id": job.ID.String(),
			"reason": "JOB_FAILED",
			"error":  cause.Error(),
		},
	}
	if err := r.exceptionRepo.Create(ctx, exc); err != nil {
		logger.Error("failed to record job failure exception", "job_id", job.ID, "error", err)
	}
}

// SubmitJob creates a queued job row for the given node, the entry point
// the REST submission endpoint calls.
func SubmitJob(ctx context.Context, jobRepo repository.JobRepository, electionID, nodeID uuid.UUID, name, createdBy *string) (*models.SegmentationJobModel, error) {
	job := &models.SegmentationJobModel{
		ElectionID: electionID,
		NodeID:     nodeID,
		JobType:    models.JobTypeAutoSegment,
		Status:     models.JobStatusQueued,
		Name:       name,
		CreatedBy:  createdBy,
	}
	if err := jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
