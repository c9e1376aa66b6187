package results

import (
	"context"
	"testing"
	"time"

	mrd "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Imaginary-Space/linear-stagehand-tests/internal/types"
)

func newMiniCache(t *testing.T, ttl time.Duration) (*Cache, *mrd.Miniredis) {
	t.Helper()
	s := mrd.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewCache(rdb, ttl), s
}

func sampleResult(ticketID string, finished time.Time) *types.Result {
	r := &types.Result{
		TicketID:  ticketID,
		RunID:     "run-" + ticketID,
		TargetURL: "https://app.example.com",
		Criteria: []types.CriterionResult{
			{Index: 0, Criterion: "A", Verdict: types.VerdictPassed},
			{Index: 1, Criterion: "B", Verdict: types.VerdictFailed, Reasoning: "not found"},
		},
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
	}
	r.Tally()
	return r
}

func TestCachePutGet(t *testing.T) {
	cache, _ := newMiniCache(t, time.Hour)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, cache.Put(ctx, sampleResult("T1", now)))

	got, err := cache.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "run-T1", got.RunID)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Criteria, 2)
	assert.Equal(t, "not found", got.Criteria[1].Reasoning)
	assert.True(t, got.FinishedAt.Equal(now))
}

func TestCacheMissing(t *testing.T) {
	cache, _ := newMiniCache(t, time.Hour)
	_, err := cache.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCacheExpires(t *testing.T) {
	cache, s := newMiniCache(t, time.Minute)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, cache.Put(ctx, sampleResult("T1", now)))
	require.NoError(t, cache.Put(ctx, sampleResult("T2", now.Add(time.Second))))

	ids, err := cache.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"T2", "T1"}, ids)

	s.FastForward(2 * time.Minute)

	_, err = cache.Get(ctx, "T1")
	assert.ErrorIs(t, err, ErrNotFound)

	ids, err = cache.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestDefaultTTL(t *testing.T) {
	cache := NewCache(nil, 0)
	assert.Equal(t, DefaultTTL, cache.ttl)
}
