package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/history"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/results"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/runs"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/tracker"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
	"github.com/Imaginary-Space/linear-stagehand-tests/internal/verify"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// gatedWork records jobs and holds every run until release is closed.
type gatedWork struct {
	mu      sync.Mutex
	jobs    []verify.Job
	release chan struct{}
}

func (g *gatedWork) Work(job verify.Job) taskqueue.Work[*types.Result] {
	g.mu.Lock()
	g.jobs = append(g.jobs, job)
	g.mu.Unlock()
	return taskqueue.WorkFunc[*types.Result](func(ctx context.Context) (*types.Result, error) {
		<-g.release
		return &types.Result{TicketID: job.TicketID}, nil
	})
}

func (g *gatedWork) lastJob() verify.Job {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.jobs[len(g.jobs)-1]
}

type fakeResults map[string]*types.Result

func (f fakeResults) Get(ctx context.Context, ticketID string) (*types.Result, error) {
	if r, ok := f[ticketID]; ok {
		return r, nil
	}
	return nil, results.ErrNotFound
}

// Recent orders by FinishedAt, newest first
func (f fakeResults) Recent(ctx context.Context, limit int) ([]string, error) {
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return f[ids[i]].FinishedAt.After(f[ids[j]].FinishedAt) })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

type fakeHistory struct {
	entries []history.Entry
	filter  history.Filter
}

func (f *fakeHistory) List(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	f.filter = filter
	return f.entries, nil
}

type testServer struct {
	router *gin.Engine
	coord  *runs.Coordinator[*types.Result]
	work   *gatedWork
}

func newTestServer(t *testing.T, deps Deps) *testServer {
	t.Helper()

	queue := taskqueue.New[*types.Result](1)
	coord := runs.NewCoordinator(queue)
	work := &gatedWork{release: make(chan struct{})}
	t.Cleanup(func() { close(work.release) })

	deps.Coordinator = coord
	deps.Work = work
	if deps.TargetURL == "" {
		deps.TargetURL = "https://app.example.com"
	}
	if deps.Trigger.States == nil {
		deps.Trigger = tracker.Trigger{States: []string{"In Review"}, Labels: []string{"qa"}}
	}
	h := New(deps)

	router := gin.New()
	router.GET("/health", h.HealthCheck)
	router.POST("/webhooks/linear", h.LinearWebhook)
	h.RegisterInternal(router.Group("/internal"))

	return &testServer{router: router, coord: coord, work: work}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) waitRunning(t *testing.T, ticketID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, ok := s.coord.Get(ticketID)
		return ok && rec.Status == runs.StatusRunning
	}, time.Second, 5*time.Millisecond)
}

func issuePayload(t *testing.T, action, id, state, description string) string {
	t.Helper()
	payload := map[string]any{
		"action":           action,
		"type":             "Issue",
		"webhookTimestamp": time.Now().UnixMilli(),
		"data": map[string]any{
			"id":          id,
			"identifier":  "ENG-" + id,
			"title":       "Landing page",
			"description": description,
			"state":       map[string]any{"id": "s1", "name": state},
			"labels":      []any{},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(b)
}

const criteriaDescription = "Intro\n\n## Acceptance Criteria\n- [ ] Logo shows\n- [x] Footer shows\n"

func TestLinearWebhookAcceptsMatchingIssue(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := s.do(http.MethodPost, "/webhooks/linear", issuePayload(t, "create", "1", "In Review", criteriaDescription))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp RunAcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, "1", resp.TicketID)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, []string{"Logo shows", "Footer shows"}, resp.Criteria)
	assert.Equal(t, "/internal/runs/1", resp.PollURL)

	job := s.work.lastJob()
	assert.Equal(t, "ENG-1", job.Identifier)
	assert.Equal(t, "https://app.example.com", job.TargetURL)
	assert.True(t, job.Comment)
}

func TestLinearWebhookConflictWhileRunning(t *testing.T) {
	s := newTestServer(t, Deps{})
	body := issuePayload(t, "create", "1", "In Review", criteriaDescription)

	require.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/webhooks/linear", body).Code)
	s.waitRunning(t, "1")

	w := s.do(http.MethodPost, "/webhooks/linear", body)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp RunConflictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, runs.StatusRunning, resp.RunStatus)
	assert.Equal(t, 0, resp.Position)
	assert.Len(t, s.work.jobs, 1, "no work is built past the first accepted run")
}

func TestLinearWebhookSkipsAndIgnores(t *testing.T) {
	s := newTestServer(t, Deps{})

	tests := []struct {
		name   string
		body   string
		code   int
		status string
	}{
		{
			name:   "non issue entity",
			body:   `{"action":"create","type":"Comment","data":{"id":"c1"}}`,
			code:   http.StatusOK,
			status: "ignored",
		},
		{
			name:   "state outside trigger",
			body:   issuePayload(t, "create", "2", "Backlog", criteriaDescription),
			code:   http.StatusOK,
			status: "ignored",
		},
		{
			name:   "update without state change",
			body:   issuePayload(t, "update", "3", "In Review", criteriaDescription),
			code:   http.StatusOK,
			status: "ignored",
		},
		{
			name:   "no criteria in description",
			body:   issuePayload(t, "create", "4", "In Review", "Just some prose."),
			code:   http.StatusOK,
			status: "skipped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/webhooks/linear", tt.body)
			require.Equal(t, tt.code, w.Code)

			var resp SkippedResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
		})
	}
	assert.Empty(t, s.coord.List())
}

func TestLinearWebhookMalformedBody(t *testing.T) {
	s := newTestServer(t, Deps{})
	w := s.do(http.MethodPost, "/webhooks/linear", `{"action":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerRun(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := s.do(http.MethodPost, "/internal/runs/T1", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "description is required")

	w = s.do(http.MethodPost, "/internal/runs/T1", `{"description":"1. Opens\n2) Closes","targetUrl":"https://staging.example.com","identifier":"ENG-9"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp RunAcceptedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Opens", "Closes"}, resp.Criteria)

	job := s.work.lastJob()
	assert.Equal(t, "https://staging.example.com", job.TargetURL)
	assert.Equal(t, "ENG-9", job.Identifier)
	assert.False(t, job.Comment)
}

func TestGetRunAndQueuePositions(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := s.do(http.MethodGet, "/internal/runs/T1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := `{"description":"- [ ] works"}`
	require.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/internal/runs/T1", body).Code)
	s.waitRunning(t, "T1")
	require.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/internal/runs/T2", body).Code)

	w = s.do(http.MethodGet, "/internal/runs/T2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status RunStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, runs.StatusQueued, status.Run.Status)
	assert.Equal(t, 1, status.Position)

	w = s.do(http.MethodGet, "/internal/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "T1", list.Runs[0].TicketID)

	w = s.do(http.MethodGet, "/internal/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	var queue taskqueue.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &queue))
	assert.Equal(t, 1, queue.Concurrency)
	assert.Equal(t, 1, queue.RunningCount)
	assert.Equal(t, 1, queue.QueuedCount)
}

func TestWithdrawRun(t *testing.T) {
	s := newTestServer(t, Deps{})

	body := `{"description":"- [ ] works"}`
	require.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/internal/runs/T1", body).Code)
	s.waitRunning(t, "T1")
	require.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/internal/runs/T2", body).Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/internal/runs/T2", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/internal/runs/T2", "").Code)
	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, "/internal/runs/T1", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/internal/runs/nope", "").Code)

	// a withdrawn ticket can be queued again
	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, "/internal/runs/T2", body).Code)
}

func TestGetResult(t *testing.T) {
	s := newTestServer(t, Deps{})
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/internal/results/T1", "").Code)

	s = newTestServer(t, Deps{Results: fakeResults{"T1": {TicketID: "T1", RunID: "r1", Passed: 2}}})

	w := s.do(http.MethodGet, "/internal/results/T1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var result types.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "r1", result.RunID)
	assert.Equal(t, 2, result.Passed)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/internal/results/T2", "").Code)
}

func TestListRecentResults(t *testing.T) {
	s := newTestServer(t, Deps{})
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/internal/results", "").Code)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s = newTestServer(t, Deps{Results: fakeResults{
		"T1": {TicketID: "T1", RunID: "r1", FinishedAt: base},
		"T2": {TicketID: "T2", RunID: "r2", FinishedAt: base.Add(time.Minute)},
		"T3": {TicketID: "T3", RunID: "r3", FinishedAt: base.Add(2 * time.Minute)},
	}})

	w := s.do(http.MethodGet, "/internal/results?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp RecentResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "T3", resp.Results[0].TicketID)
	assert.Equal(t, "T2", resp.Results[1].TicketID)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/internal/results?limit=1000", "").Code)
}

func TestListHistory(t *testing.T) {
	s := newTestServer(t, Deps{})
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/internal/history", "").Code)

	hist := &fakeHistory{entries: []history.Entry{{RunID: "r1", TicketID: "T1", Status: history.StatusPassed}}}
	s = newTestServer(t, Deps{History: hist})

	w := s.do(http.MethodGet, "/internal/history?ticketId=T1&since=2026-03-01T00:00:00Z&offset=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, "r1", resp.Runs[0].RunID)
	assert.Equal(t, 50, resp.Limit)

	assert.Equal(t, "T1", hist.filter.TicketID)
	assert.Equal(t, 10, hist.filter.Offset)
	require.NotNil(t, hist.filter.Since)
	assert.Equal(t, 2026, hist.filter.Since.Year())

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/internal/history?since=yesterday", "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/internal/history?limit=1000", "").Code)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t, Deps{})

	w := s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "not configured", resp.Database)
	assert.Equal(t, 1, resp.Queue.Concurrency)
}
