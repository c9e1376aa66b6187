package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/history"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/results"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
)

// HistoryRequest represents query parameters for listing run history
type HistoryRequest struct {
	TicketID string `form:"ticketId" jsonschema:"description=Only runs for this ticket"`
	Since    string `form:"since" jsonschema:"description=RFC3339 lower bound on finish time"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=500" jsonschema:"minimum=1,maximum=500,default=50"`
	Offset   int    `form:"offset" binding:"omitempty,min=0" jsonschema:"minimum=0,default=0"`
}

// HistoryResponse lists recorded runs
type HistoryResponse struct {
	Runs   []history.Entry `json:"runs" jsonschema:"required"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// RecentResultsRequest represents query parameters for recent results
type RecentResultsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100" jsonschema:"minimum=1,maximum=100,default=20"`
}

// RecentResultsResponse lists the latest result of recently verified tickets
type RecentResultsResponse struct {
	Results []*types.Result `json:"results" jsonschema:"required"`
}

// ListRecentResults returns the latest results of recently verified tickets
// @Summary Recent results
// @Description Returns the cached latest result of the most recently verified tickets, newest first
// @Tags results
// @Produce json
// @Param limit query int false "Number of tickets (default 20, max 100)"
// @Success 200 {object} RecentResultsResponse
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /internal/results [get]
func (h *Handler) ListRecentResults(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result cache not configured"})
		return
	}

	var req RecentResultsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = 20
	}

	ctx := c.Request.Context()
	ids, err := h.results.Recent(ctx, req.Limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list recent results")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list results"})
		return
	}

	out := make([]*types.Result, 0, len(ids))
	for _, id := range ids {
		result, err := h.results.Get(ctx, id)
		if errors.Is(err, results.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Str("ticket_id", id).Msg("Failed to read cached result")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read result"})
			return
		}
		out = append(out, result)
	}

	c.JSON(http.StatusOK, RecentResultsResponse{Results: out})
}

// GetResult returns the latest verification result of a ticket
// @Summary Latest result
// @Description Returns the most recent cached verification result of a ticket
// @Tags results
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Success 200 {object} types.Result
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /internal/results/{ticketId} [get]
func (h *Handler) GetResult(c *gin.Context) {
	if h.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result cache not configured"})
		return
	}

	result, err := h.results.Get(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		if errors.Is(err, results.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no result for ticket"})
			return
		}
		log.Error().Err(err).Str("ticket_id", c.Param("ticketId")).Msg("Failed to read cached result")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read result"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListHistory returns recorded runs, newest first
// @Summary Run history
// @Description Lists finished verification runs from the history database
// @Tags results
// @Produce json
// @Param ticketId query string false "Filter by ticket ID"
// @Param since query string false "RFC3339 lower bound on finish time"
// @Param limit query int false "Page size (default 50, max 500)"
// @Param offset query int false "Offset"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /internal/history [get]
func (h *Handler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history database not configured"})
		return
	}

	var req HistoryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit == 0 {
		req.Limit = 50
	}

	filter := history.Filter{
		TicketID: req.TicketID,
		Limit:    req.Limit,
		Offset:   req.Offset,
	}
	if req.Since != "" {
		since, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp"})
			return
		}
		filter.Since = &since
	}

	entries, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list run history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list history"})
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Runs:   entries,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}
