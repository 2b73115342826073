package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"

	"github.com/voteops/segengine/internal/domain/repository"
	"github.com/voteops/segengine/internal/infrastructure/logger"
)

// Dependencies collects everything the router needs to wire up endpoints.
type Dependencies struct {
	DB            *bun.DB
	JobRepo       repository.JobRepository
	ExceptionRepo repository.ExceptionRepository
	SegmentRepo   repository.SegmentRepository
	Logger        *logger.Logger
}

// NewRouter builds the gin engine: health/readiness probes plus the job and
// segment read/write surface under /api/v1.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	logging := NewLoggingMiddleware(deps.Logger)
	recovery := NewRecoveryMiddleware(deps.Logger)
	router.Use(recovery.Recovery())
	router.Use(logging.RequestLogger())

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := deps.DB.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	jobHandlers := NewJobHandlers(deps.JobRepo, deps.ExceptionRepo, deps.Logger)
	segmentHandlers := NewSegmentHandlers(deps.SegmentRepo, deps.Logger)

	apiV1 := router.Group("/api/v1")
	{
		jobs := apiV1.Group("/jobs")
		{
			jobs.POST("", jobHandlers.HandleSubmitJob)
			jobs.GET("/:id", jobHandlers.HandleGetJob)
			jobs.GET("/:id/exceptions", jobHandlers.HandleListJobExceptions)
		}

		segments := apiV1.Group("/segments")
		{
			segments.GET("/:id", segmentHandlers.HandleGetSegment)
		}

		nodes := apiV1.Group("/nodes")
		{
			nodes.GET("/:node_id/segments", segmentHandlers.HandleListSegments)
		}
	}

	return router
}
