package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/criteria"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/runs"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/verify"
)

// RunAcceptedResponse is returned with 202 when a run was queued
type RunAcceptedResponse struct {
	Status   string   `json:"status" jsonschema:"required,enum=accepted"`
	TicketID string   `json:"ticketId" jsonschema:"required"`
	RunID    string   `json:"runId" jsonschema:"required"`
	Criteria []string `json:"criteria" jsonschema:"required"`
	Position int      `json:"position"`
	PollURL  string   `json:"pollUrl" jsonschema:"required"`
}

// RunConflictResponse is returned with 409 while a run for the ticket is active
type RunConflictResponse struct {
	Error     string      `json:"error" jsonschema:"required"`
	TicketID  string      `json:"ticketId" jsonschema:"required"`
	RunID     string      `json:"runId" jsonschema:"required"`
	RunStatus runs.Status `json:"runStatus" jsonschema:"required"`
	Position  int         `json:"position"`
}

// SkippedResponse is returned with 200 when an event does not start a run
type SkippedResponse struct {
	Status string `json:"status" jsonschema:"required,enum=skipped,enum=ignored"`
	Reason string `json:"reason" jsonschema:"required"`
}

// TriggerRunRequest is the body of a manual run
type TriggerRunRequest struct {
	Description string `json:"description" binding:"required" jsonschema:"required,description=Ticket description containing the acceptance criteria"`
	TargetURL   string `json:"targetUrl,omitempty" jsonschema:"description=Overrides the configured target URL"`
	Identifier  string `json:"identifier,omitempty" jsonschema:"description=Human readable ticket identifier such as ENG-123"`
	Comment     bool   `json:"comment,omitempty" jsonschema:"description=Post a summary comment to the ticket when done"`
}

// RunStatusResponse is one run record with its queue position
type RunStatusResponse struct {
	Run      runs.Record `json:"run" jsonschema:"required"`
	Position int         `json:"position"`
}

// ListRunsResponse lists every known run record
type ListRunsResponse struct {
	Runs  []runs.Record `json:"runs" jsonschema:"required"`
	Total int           `json:"total" jsonschema:"required"`
}

// startRun extracts criteria and hands the job to the coordinator, writing
// the response. It reports whether a run was queued.
func (h *Handler) startRun(c *gin.Context, job verify.Job, description string) bool {
	found := criteria.Extract(description)
	if len(found) == 0 {
		c.JSON(http.StatusOK, SkippedResponse{
			Status: "skipped",
			Reason: "no acceptance criteria found",
		})
		return false
	}
	job.Criteria = found
	if job.TargetURL == "" {
		job.TargetURL = h.targetURL
	}

	rec, _, err := h.coord.AcceptRun(job.TicketID, h.work.Work(job))
	if err != nil {
		var conflict *runs.ConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, RunConflictResponse{
				Error:     "a run for this ticket is already " + string(conflict.Status),
				TicketID:  conflict.TicketID,
				RunID:     conflict.RunID,
				RunStatus: conflict.Status,
				Position:  h.coord.Queue().Position(conflict.TicketID),
			})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return false
	}

	h.logger.Info().
		Str("ticket_id", job.TicketID).
		Str("identifier", job.Identifier).
		Str("run_id", rec.RunID).
		Int("criteria", len(found)).
		Msg("Verification run queued")

	c.JSON(http.StatusAccepted, RunAcceptedResponse{
		Status:   "accepted",
		TicketID: job.TicketID,
		RunID:    rec.RunID,
		Criteria: found,
		Position: h.coord.Queue().Position(job.TicketID),
		PollURL:  "/internal/runs/" + job.TicketID,
	})
	return true
}

// TriggerRun starts a verification run without a webhook
// @Summary Trigger verification run
// @Description Extracts acceptance criteria from the given description and queues a verification run for the ticket. Returns 202 immediately.
// @Tags runs
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param request body TriggerRunRequest true "Run request"
// @Success 202 {object} RunAcceptedResponse
// @Success 200 {object} SkippedResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} RunConflictResponse
// @Router /internal/runs/{ticketId} [post]
func (h *Handler) TriggerRun(c *gin.Context) {
	ticketID := strings.TrimSpace(c.Param("ticketId"))
	if ticketID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticketId is required"})
		return
	}

	var req TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.startRun(c, verify.Job{
		TicketID:   ticketID,
		Identifier: req.Identifier,
		TargetURL:  req.TargetURL,
		Comment:    req.Comment,
	}, req.Description)
}

// GetRun returns the run record of a ticket
// @Summary Get run status
// @Description Returns the current or recently completed run of a ticket with its queue position (0 running, 1-based waiting, -1 not in queue)
// @Tags runs
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Success 200 {object} RunStatusResponse
// @Failure 404 {object} map[string]string
// @Router /internal/runs/{ticketId} [get]
func (h *Handler) GetRun(c *gin.Context) {
	ticketID := c.Param("ticketId")
	rec, ok := h.coord.Get(ticketID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded for ticket"})
		return
	}

	position := taskqueue.NotFound
	if rec.Status != runs.StatusCompleted {
		position = h.coord.Queue().Position(ticketID)
	}
	c.JSON(http.StatusOK, RunStatusResponse{Run: rec, Position: position})
}

// ListRuns returns all run records
// @Summary List runs
// @Description Lists queued, running and recently completed runs
// @Tags runs
// @Produce json
// @Success 200 {object} ListRunsResponse
// @Router /internal/runs [get]
func (h *Handler) ListRuns(c *gin.Context) {
	records := h.coord.List()
	c.JSON(http.StatusOK, ListRunsResponse{Runs: records, Total: len(records)})
}

// WithdrawRun removes a waiting run from the queue
// @Summary Withdraw queued run
// @Description Withdraws a run that is still waiting for a slot. Running runs cannot be withdrawn.
// @Tags runs
// @Param ticketId path string true "Ticket ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /internal/runs/{ticketId} [delete]
func (h *Handler) WithdrawRun(c *gin.Context) {
	err := h.coord.Withdraw(c.Param("ticketId"))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, runs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded for ticket"})
	case errors.Is(err, runs.ErrNotQueued):
		c.JSON(http.StatusConflict, gin.H{"error": "run has already started"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// QueueStatus returns a snapshot of the task queue
// @Summary Queue status
// @Description Returns running and waiting tasks with the concurrency ceiling
// @Tags queue
// @Produce json
// @Success 200 {object} taskqueue.Status
// @Router /internal/queue [get]
func (h *Handler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.coord.Queue().Status())
}
