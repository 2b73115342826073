package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voteops/segengine/internal/application/jobrunner"
	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/logger"
)

// JobHandlers exposes the job queue: submitting a segmentation run and
// reading back its status/result.
type JobHandlers struct {
	jobRepo       repository.JobRepository
	exceptionRepo repository.ExceptionRepository
	logger        *logger.Logger
}

func NewJobHandlers(jobRepo repository.JobRepository, exceptionRepo repository.ExceptionRepository, log *logger.Logger) *JobHandlers {
	return &JobHandlers{jobRepo: jobRepo, exceptionRepo: exceptionRepo, logger: log}
}

type submitJobRequest struct {
	ElectionID string  `json:"election_id" binding:"required,uuid"`
	NodeID     string  `json:"node_id" binding:"required,uuid"`
	Name       *string `json:"name"`
	CreatedBy  *string `json:"created_by"`
}

// HandleSubmitJob queues a new auto-segmentation job for a node. The job
// runner picks it up on its next poll tick.
func (h *JobHandlers) HandleSubmitJob(c *gin.Context) {
	var req submitJobRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}

	electionID, err := uuid.Parse(req.ElectionID)
	if err != nil {
		respondAPIError(c, ErrInvalidID)
		return
	}
	nodeID, err := uuid.Parse(req.NodeID)
	if err != nil {
		respondAPIError(c, ErrInvalidID)
		return
	}

	job, err := jobrunner.SubmitJob(c.Request.Context(), h.jobRepo, electionID, nodeID, req.Name, req.CreatedBy)
	if err != nil {
		respondAPIError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, job)
}

// HandleGetJob returns a job's current status and result payload.
func (h *JobHandlers) HandleGetJob(c *gin.Context) {
	idParam, ok := getParam(c, "id")
	if !ok {
		return
	}
	jobID, err := uuid.Parse(idParam)
	if err != nil {
		respondAPIError(c, ErrInvalidID)
		return
	}

	job, err := h.jobRepo.FindByID(c.Request.Context(), jobID)
	if err != nil {
		respondAPIError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, job)
}

// HandleListJobExceptions lists the exceptions raised while processing a
// job: oversized/undersized segment flags and terminal failure reasons.
func (h *JobHandlers) HandleListJobExceptions(c *gin.Context) {
	idParam, ok := getParam(c, "id")
	if !ok {
		return
	}
	jobID, err := uuid.Parse(idParam)
	if err != nil {
		respondAPIError(c, ErrInvalidID)
		return
	}

	electionIDParam := c.Query("election_id")
	electionID, err := uuid.Parse(electionIDParam)
	if err != nil {
		respondAPIError(c, NewAPIError("MISSING_PARAMETER", "election_id query parameter is required", http.StatusBadRequest))
		return
	}

	exceptions, err := h.exceptionRepo.FindByJobID(c.Request.Context(), electionID, jobID)
	if err != nil {
		respondAPIError(c, err)
		return
	}

	respondList(c, http.StatusOK, exceptions, len(exceptions), getQueryInt(c, "limit", len(exceptions)), getQueryInt(c, "offset", 0))
}

// SegmentHandlers exposes the read-only segment surface: list by node and
// version, get one segment by id.
type SegmentHandlers struct {
	segRepo repository.SegmentRepository
	logger  *logger.Logger
}

func NewSegmentHandlers(segRepo repository.SegmentRepository, log *logger.Logger) *SegmentHandlers {
	return &SegmentHandlers{segRepo: segRepo, logger: log}
}

// HandleListSegments lists the segments produced for a node at a given
// version (draft run), defaulting to version 1.
func (h *SegmentHandlers) HandleListSegments(c *gin.Context) {
	nodeIDParam, ok := getParam(c, "node_id")
	if !ok {
		return
	}
	nodeID, err := uuid.Parse(nodeIDParam)
	if err != nil {
		respondAPIError(c, ErrInvalidID)
		return
	}

	version := getQueryInt(c, "version", 1)

	segments, err := h.segRepo.FindByNodeAndVersion(c.Request.Context(), nodeID, version)
	if err != nil {
		respondAPIError(c, err)
		return
	}

	respondList(c, http.StatusOK, segments, len(segments), getQueryInt(c, "limit", len(segments)), getQueryInt(c, "offset", 0))
}

// HandleGetSegment returns one segment by id.
func (h *SegmentHandlers) HandleGetSegment(c *gin.Context) {
	idParam, ok := getParam(c, "id")
	if !ok {
		return
	}
	id, err := uuid.Parse(idParam)
	if err != nil {
		respondAPIError(c, ErrInvalidID)
		return
	}

	segment, err := h.segRepo.FindByID(c.Request.Context(), id)
	if err != nil {
		respondAPIError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, segment)
}
