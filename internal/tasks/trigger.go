package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discx/internal/shared"
)

// IntervalTrigger runs a callback periodically and on request.
//
// Requests made while a run is pending are coalesced into that run.
type IntervalTrigger struct {
	interval time.Duration
	run      func(context.Context) bool
	requests chan struct{}
	logger   *log.Logger
}

// NewIntervalTrigger creates a trigger for run. A zero interval fires on request only.
func NewIntervalTrigger(interval time.Duration, run func(context.Context) bool, logger *log.Logger) *IntervalTrigger {
	return &IntervalTrigger{
		interval: interval,
		run:      run,
		requests: make(chan struct{}, 1),
		logger:   shared.WithLogger(logger, "component", "trigger"),
	}
}

// Request asks for a run as soon as possible. It never blocks.
func (t *IntervalTrigger) Request() {
	select {
	case t.requests <- struct{}{}:
	default:
	}
}

// Run fires the callback until ctx is done.
func (t *IntervalTrigger) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if t.interval > 0 {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			t.fire(ctx, "interval")
		case <-t.requests:
			t.fire(ctx, "request")
		}
	}
}

func (t *IntervalTrigger) fire(ctx context.Context, reason string) {
	start := time.Now()
	ok := t.run(ctx)
	if ok {
		t.logger.Debug("background run finished", "reason", reason, "duration", time.Since(start))
	} else {
		t.logger.Warn("background run reported failure", "reason", reason, "duration", time.Since(start))
	}
}
