package sources

import (
	"context"
	"errors"
	"fmt"
	"time"

	"NarrativeScout/backend/go/internal/models"
	"NarrativeScout/backend/go/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// ErrNoSignals is returned when collection produced nothing to analyse.
var ErrNoSignals = errors.New("no signals collected from any source")

// Outcome is the result of running one collector.
type Outcome struct {
	Source   string        `json:"source"`
	Count    int           `json:"count"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Collection holds the merged signals and a per-collector outcome, both in registration order.
type Collection struct {
	Signals  []models.Signal
	Outcomes []Outcome
}

// Failed returns the outcomes of collectors that returned an error.
func (c *Collection) Failed() []Outcome {
	var failed []Outcome
	for _, o := range c.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Orchestrator runs collectors concurrently and merges their results.
type Orchestrator struct {
	collectors []Collector
	timeout    time.Duration
	log        *logger.Logger
}

// NewOrchestrator creates an Orchestrator. A zero timeout means collectors run until ctx is done.
func NewOrchestrator(timeout time.Duration, log *logger.Logger, collectors ...Collector) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{collectors: collectors, timeout: timeout, log: log.Named("orchestrator")}
}

type slot struct {
	signals  []models.Signal
	err      error
	duration time.Duration
}

// Collect runs every collector, waits for all of them, and concatenates their signals in
// registration order. A failing collector is logged and skipped. If every collector fails,
// or nothing at all was collected, the error wraps ErrNoSignals; the returned Collection
// still carries every outcome.
func (o *Orchestrator) Collect(ctx context.Context) (*Collection, error) {
	slots := make([]slot, len(o.collectors))

	// Tasks never return an error so that one failure cannot cancel its siblings.
	var g errgroup.Group
	for i, c := range o.collectors {
		i, c := i, c
		g.Go(func() error {
			start := time.Now()
			signals, err := o.run(ctx, c)
			slots[i] = slot{signals: signals, err: err, duration: time.Since(start)}
			return nil
		})
	}
	_ = g.Wait()

	coll := &Collection{Outcomes: make([]Outcome, len(o.collectors))}
	failures := 0
	for i, c := range o.collectors {
		s := slots[i]
		coll.Outcomes[i] = Outcome{Source: c.Name(), Count: len(s.signals), Err: s.err, Duration: s.duration}
		log := o.log.WithField("source", c.Name()).WithField("duration_ms", s.duration.Milliseconds())
		if s.err != nil {
			failures++
			log.WithError(models.ErrorInfo{Message: s.err.Error(), Type: "collector_error", Source: c.Name()}).
				Error("signal collection failed")
			continue
		}
		log.WithField("count", len(s.signals)).Info("signals collected")
		coll.Signals = append(coll.Signals, s.signals...)
	}

	if failures == len(o.collectors) {
		return coll, fmt.Errorf("%w: all %d collectors failed", ErrNoSignals, len(o.collectors))
	}
	if len(coll.Signals) == 0 {
		return coll, fmt.Errorf("%w: collectors returned no signals", ErrNoSignals)
	}
	o.log.WithField("total", len(coll.Signals)).Info("total signals collected")
	return coll, nil
}

// run executes one collector under the per-collector timeout. A timeout or a panic is
// reported as that collector's failure.
func (o *Orchestrator) run(ctx context.Context, c Collector) ([]models.Signal, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	type result struct {
		signals []models.Signal
		err     error
	}
	// Buffered so a collector that ignores ctx can still finish its send and exit
	// after the timeout has been reported.
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("collector %s panicked: %v", c.Name(), r)}
			}
		}()
		signals, err := c.Collect(ctx)
		done <- result{signals: signals, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return r.signals, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("collector %s: %w", c.Name(), ctx.Err())
	}
}
