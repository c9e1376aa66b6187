package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/taskqueue"
)

const ticket = `Build the landing page.

## Acceptance Criteria
- Logo is visible
- Footer links work

## Notes
- not a criterion
`

func TestPrintExtractionText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printExtraction(&buf, ticket, true, "text"))

	out := buf.String()
	assert.Contains(t, out, "Section: ## Acceptance Criteria")
	assert.Contains(t, out, "2 criteria (bullet):")
	assert.Contains(t, out, " 1. Logo is visible")
	assert.Contains(t, out, " 2. Footer links work")
	assert.NotContains(t, out, "not a criterion")
}

func TestPrintExtractionJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printExtraction(&buf, "1. One\n2. Two", true, "json"))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, []any{"One", "Two"}, parsed["criteria"])
	assert.Equal(t, "numbered", parsed["style"])
	assert.NotContains(t, parsed, "section")
}

func TestPrintExtractionNothingFound(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printExtraction(&buf, "", false, "text"))
	assert.Contains(t, buf.String(), "No acceptance criteria found")

	assert.Error(t, printExtraction(&buf, "x", false, "yaml"))
}

func TestPrintQueue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-90 * time.Second)
	status := taskqueue.Status{
		Concurrency:  3,
		RunningCount: 1,
		QueuedCount:  1,
		Running:      []taskqueue.TaskInfo{{ID: "T1", State: taskqueue.StateRunning, EnqueuedAt: now.Add(-2 * time.Minute), StartedAt: &started}},
		Queued:       []taskqueue.TaskInfo{{ID: "T2", State: taskqueue.StateQueued, EnqueuedAt: now.Add(-5 * time.Second)}},
	}

	var buf bytes.Buffer
	printQueue(&buf, status, now)

	out := buf.String()
	assert.Contains(t, out, "Running 1/3, waiting 1")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "T2")
	assert.Contains(t, out, "5s")
}
