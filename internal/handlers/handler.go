package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/history"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/runs"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/tracker"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/verify"
)

// WorkBuilder turns a verification job into queue work.
type WorkBuilder interface {
	Work(job verify.Job) taskqueue.Work[*types.Result]
}

// ResultReader returns cached results.
type ResultReader interface {
	Get(ctx context.Context, ticketID string) (*types.Result, error)
	Recent(ctx context.Context, limit int) ([]string, error)
}

// HistoryReader lists recorded runs.
type HistoryReader interface {
	List(ctx context.Context, f history.Filter) ([]history.Entry, error)
}

// Deps are the collaborators of the HTTP handlers. Results and History are
// optional; their endpoints answer 503 when unset.
type Deps struct {
	Coordinator *runs.Coordinator[*types.Result]
	Work        WorkBuilder
	Trigger     tracker.Trigger
	TargetURL   string
	Results     ResultReader
	History     HistoryReader
	Logger      *zerolog.Logger
}

// Handler serves the webhook, run and status endpoints.
type Handler struct {
	coord     *runs.Coordinator[*types.Result]
	work      WorkBuilder
	trigger   tracker.Trigger
	targetURL string
	results   ResultReader
	history   HistoryReader
	logger    *zerolog.Logger
}

// New creates a Handler from deps.
func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{
		coord:     deps.Coordinator,
		work:      deps.Work,
		trigger:   deps.Trigger,
		targetURL: deps.TargetURL,
		results:   deps.Results,
		history:   deps.History,
		logger:    logger,
	}
}

// RegisterInternal mounts the internal API on group.
func (h *Handler) RegisterInternal(group *gin.RouterGroup) {
	group.GET("/queue", h.QueueStatus)
	group.GET("/runs", h.ListRuns)
	group.POST("/runs/:ticketId", h.TriggerRun)
	group.GET("/runs/:ticketId", h.GetRun)
	group.DELETE("/runs/:ticketId", h.WithdrawRun)
	group.GET("/results", h.ListRecentResults)
	group.GET("/results/:ticketId", h.GetResult)
	group.GET("/history", h.ListHistory)
}
