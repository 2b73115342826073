package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	JobTypeAutoSegment = "auto_segment"

	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// SegmentationJobModel is one row of the job queue. A consumer outside the
// core inserts rows with status='queued'; the runner claims and drives them.
type SegmentationJobModel struct {
	bun.BaseModel `bun:"table:segmentation_jobs,alias:sj"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID  uuid.UUID  `bun:"election_id,notnull,type:uuid"`
	NodeID      uuid.UUID  `bun:"node_id,notnull,type:uuid"`
	JobType     string     `bun:"job_type,notnull,default:'auto_segment'"`
	Status      string     `bun:"status,notnull,default:'queued'"`
	Version     int        `bun:"version,notnull,default:0"`
	Name        *string    `bun:"name"`
	Description *string    `bun:"description"`
	CreatedBy   *string    `bun:"created_by"`
	Result      JSONBMap   `bun:"result,type:jsonb"`
	StartedAt   *time.Time `bun:"started_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func (SegmentationJobModel) TableName() string { return "segmentation_jobs" }

func (j *SegmentationJobModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	j.CreatedAt = now
	j.UpdatedAt = now
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.JobType == "" {
		j.JobType = JobTypeAutoSegment
	}
	if j.Status == "" {
		j.Status = JobStatusQueued
	}
	return nil
}

func (j *SegmentationJobModel) BeforeUpdate(ctx interface{}) error {
	j.UpdatedAt = time.Now()
	return nil
}

// IsTerminal reports whether the job has reached an absorbing state.
func (j *SegmentationJobModel) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ExceptionModel surfaces an out-of-band condition: an oversized/undersized
// segment flagged for manual review, or a terminal job failure.
type ExceptionModel struct {
	bun.BaseModel `bun:"table:exceptions,alias:ex"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	ElectionID uuid.UUID `bun:"election_id,notnull,type:uuid"`
	Entity     string    `bun:"entity,notnull"`
	Severity   string    `bun:"severity,notnull"`
	Type       string    `bun:"type,notnull"`
	Metadata   JSONBMap  `bun:"metadata,type:jsonb,default:'{}'"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (ExceptionModel) TableName() string { return "exceptions" }

func (e *ExceptionModel) BeforeInsert(ctx interface{}) error {
	e.CreatedAt = time.Now()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Metadata == nil {
		e.Metadata = make(JSONBMap)
	}
	return nil
}

const (
	ExceptionEntitySegment = "segment"

	ExceptionSeverityLow      = "low"
	ExceptionSeverityMedium   = "medium"
	ExceptionSeverityHigh     = "high"
	ExceptionSeverityCritical = "critical"

	ExceptionTypeOversized  = "oversized"
	ExceptionTypeUndersized = "undersized"
	ExceptionTypeOther      = "other"
)
