package sweepers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) Purge() int {
	p.calls.Add(1)
	return 2
}

func TestRunSweeperPurgesOnTick(t *testing.T) {
	logger := zerolog.Nop()
	purger := &countingPurger{}
	sweeper := NewRunSweeper(purger, &logger, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		sweeper.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return purger.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	sweeper.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	logger := zerolog.Nop()
	sweeper := NewRunSweeper(&countingPurger{}, &logger, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweepReturnsCount(t *testing.T) {
	logger := zerolog.Nop()
	sweeper := NewRunSweeper(&countingPurger{}, &logger, 0)
	assert.Equal(t, 2, sweeper.Sweep())
	assert.Equal(t, 5*time.Minute, sweeper.interval)
}
