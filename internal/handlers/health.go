package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/database"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string              `json:"status" jsonschema:"enum=ok,enum=degraded"`
	Database    string              `json:"database" jsonschema:"enum=connected,enum=disconnected,enum=not configured"`
	Connections *database.PoolStats `json:"connections,omitempty"`
	Queue       taskqueue.Status    `json:"queue"`
}

// HealthCheck handles the health check endpoint
// @Summary Health check
// @Description Returns service health with the queue snapshot and database connectivity
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status: "ok",
		Queue:  h.coord.Queue().Status(),
	}

	if database.Pool() == nil {
		response.Database = "not configured"
		c.JSON(http.StatusOK, response)
		return
	}

	if err := database.Status(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("Health check could not reach database")
		response.Status = "degraded"
		response.Database = "disconnected"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	response.Database = "connected"
	response.Connections = database.Stats()

	c.JSON(http.StatusOK, response)
}
