package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/metrics"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/middleware"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/tracker"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/verify"
)

// Webhook outcomes reported to metrics
const (
	webhookAccepted  = "accepted"
	webhookIgnored   = "ignored"
	webhookSkipped   = "skipped"
	webhookConflict  = "conflict"
	webhookMalformed = "malformed"
)

// LinearWebhook handles issue webhooks from Linear
// @Summary Linear issue webhook
// @Description Receives Linear issue events. Issues entering a trigger state or label have their acceptance criteria extracted and verified. Signature and freshness are checked by middleware.
// @Tags webhooks
// @Accept json
// @Produce json
// @Param Linear-Signature header string true "Hex HMAC-SHA256 of the body"
// @Param Linear-Delivery header string false "Delivery id"
// @Success 202 {object} RunAcceptedResponse
// @Success 200 {object} SkippedResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} RunConflictResponse
// @Router /webhooks/linear [post]
func (h *Handler) LinearWebhook(c *gin.Context) {
	body, err := rawBody(c)
	if err != nil {
		metrics.RecordWebhook(webhookMalformed)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	payload, err := tracker.ParsePayload(body)
	if err != nil {
		metrics.RecordWebhook(webhookMalformed)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	event, ok := payload.IssueEvent()
	if !ok {
		metrics.RecordWebhook(webhookIgnored)
		c.JSON(http.StatusOK, SkippedResponse{Status: "ignored", Reason: "not an issue event"})
		return
	}

	logger := h.logger.With().
		Str("ticket_id", event.TicketID).
		Str("identifier", event.Identifier).
		Str("action", event.Action).
		Str("state", event.State).
		Logger()

	if !h.trigger.Matches(event) {
		logger.Debug().Msg("Issue event does not match trigger")
		metrics.RecordWebhook(webhookIgnored)
		c.JSON(http.StatusOK, SkippedResponse{Status: "ignored", Reason: "issue does not match trigger"})
		return
	}

	description := ""
	if event.Description != nil {
		description = *event.Description
	}

	job := verify.Job{
		TicketID:   event.TicketID,
		Identifier: event.DisplayID(),
		Comment:    true,
	}
	if h.startRun(c, job, description) {
		metrics.RecordWebhook(webhookAccepted)
		return
	}

	switch c.Writer.Status() {
	case http.StatusConflict:
		logger.Info().Msg("Run already active for ticket")
		metrics.RecordWebhook(webhookConflict)
	case http.StatusOK:
		logger.Info().Msg("No acceptance criteria in ticket description")
		metrics.RecordWebhook(webhookSkipped)
	}
}

// rawBody returns the body verified by the webhook middleware, falling back
// to reading the request.
func rawBody(c *gin.Context) ([]byte, error) {
	if v, ok := c.Get(middleware.RawBodyKey); ok {
		if body, ok := v.([]byte); ok {
			return body, nil
		}
	}
	return io.ReadAll(c.Request.Body)
}
