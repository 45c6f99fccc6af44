package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/aerodoc/internal/application/orchestrator"
	"github.com/aescanero/aerodoc/internal/application/workers"
	"github.com/aescanero/aerodoc/pkg/domain"
)

// QuestionRequest carries a user question
type QuestionRequest struct {
	Question string `json:"question" binding:"required"`
}

// QuestionSubmitResponse represents a question submission response
type QuestionSubmitResponse struct {
	RunID       string           `json:"run_id"`
	Status      domain.RunStatus `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// writeError maps orchestrator errors to HTTP responses. Unknown errors are
// logged and reported without their text.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidQuestion):
		abortWithError(c, http.StatusBadRequest, "INVALID_QUESTION", err.Error())
	case errors.Is(err, domain.ErrRunNotFound):
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", "Run not found")
	case errors.Is(err, orchestrator.ErrRunNotActive):
		abortWithError(c, http.StatusConflict, "RUN_NOT_ACTIVE", "Run has already finished")
	case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrPoolStopped):
		abortWithError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "The service cannot accept new questions right now")
	default:
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "INTERNAL", "The request could not be completed")
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"orchestrator": "ok"}
	status := http.StatusOK
	overall := "healthy"

	if s.health != nil {
		pool := s.health.GetStatus()
		checks["worker_pool"] = pool
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}
	}
	checks["active_runs"] = s.orchestrator.ActiveRuns()

	c.JSON(status, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleSubmitQuestion schedules a run and returns its ID
func (s *Server) handleSubmitQuestion(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	runID, err := s.orchestrator.Submit(c.Request.Context(), req.Question)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, QuestionSubmitResponse{
		RunID:       runID,
		Status:      domain.RunStatusSubmitted,
		SubmittedAt: time.Now().UTC(),
	})
}

// handleAsk runs a question to completion and returns the outcome. A
// rejected question is a normal outcome, not an HTTP error.
func (s *Server) handleAsk(c *gin.Context) {
	var req QuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	outcome, err := s.orchestrator.Ask(c.Request.Context(), req.Question)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// handleGetPipeline renders the transition table
func (s *Server) handleGetPipeline(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"entry":       orchestrator.EntryStage,
		"transitions": orchestrator.Transitions(),
	})
}

// handleListRuns lists known runs, most recent first
func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.orchestrator.ListRuns(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleGetRun returns the run record
func (s *Server) handleGetRun(c *gin.Context) {
	rec, err := s.orchestrator.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

// finishedRun loads a run and aborts with 409 if it has not finished
func (s *Server) finishedRun(c *gin.Context) (*domain.RunRecord, bool) {
	rec, err := s.orchestrator.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if !rec.Status.IsTerminal() || rec.Outcome == nil {
		abortWithError(c, http.StatusConflict, "NOT_COMPLETED", "Run has not finished yet")
		return nil, false
	}
	return rec, true
}

// handleGetResult returns the outcome of a finished run
func (s *Server) handleGetResult(c *gin.Context) {
	rec, ok := s.finishedRun(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":       rec.RunID,
		"status":       rec.Status,
		"outcome":      rec.Outcome,
		"completed_at": rec.CompletedAt,
	})
}

// handleGetDocument downloads the reviewed document as markdown
func (s *Server) handleGetDocument(c *gin.Context) {
	rec, ok := s.finishedRun(c)
	if !ok {
		return
	}
	if !rec.Outcome.Succeeded() {
		abortWithError(c, http.StatusConflict, "NO_DOCUMENT", "Run did not produce a document")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="aeronautic_answer_%s.md"`, rec.RunID))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(rec.Outcome.Document))
}

// handleGetContext downloads the raw retrieved context
func (s *Server) handleGetContext(c *gin.Context) {
	rec, ok := s.finishedRun(c)
	if !ok {
		return
	}
	if rec.State == nil || rec.State.RetrievedContext == "" {
		abortWithError(c, http.StatusNotFound, "NO_CONTEXT", "Run has no retrieved context")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="retrieved_context_%s.txt"`, rec.RunID))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(rec.State.RetrievedContext))
}

// handleCancelRun requests cancellation of a running run
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.orchestrator.CancelRun(c.Request.Context(), runID); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":       runID,
		"status":       "cancelling",
		"requested_at": time.Now().UTC(),
	})
}
