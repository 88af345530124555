// Package runner drives the broker poll loop and its periodic maintenance.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ibs-source/serial-broker/internal/broker"
	"github.com/ibs-source/serial-broker/internal/config"
	"github.com/ibs-source/serial-broker/internal/log"
	"github.com/ibs-source/serial-broker/internal/message"
	"github.com/ibs-source/serial-broker/internal/transport"
)

// Trimmer caps the delivery sink; *redis.Client satisfies it
type Trimmer interface {
	Trim(ctx context.Context) (int64, error)
}

// Runner orchestrates the polling, sweep, trim and demo loops of one broker
type Runner struct {
	broker        *broker.Broker
	trimmer       Trimmer
	pollInterval  time.Duration
	errorBackoff  time.Duration
	sweepInterval time.Duration
	trimInterval  time.Duration
	demo          bool
	demoInterval  time.Duration
	demoGap       time.Duration
	demoQoS       message.QoS
	log           *log.Logger
}

// New creates a runner for b. trimmer may be nil when no sink is configured.
func New(b *broker.Broker, cfg *config.Config, trimmer Trimmer, logger *log.Logger) *Runner {
	return &Runner{
		broker:        b,
		trimmer:       trimmer,
		pollInterval:  cfg.Runtime.PollInterval,
		errorBackoff:  cfg.Runtime.ErrorBackoff,
		sweepInterval: cfg.Runtime.SweepInterval,
		trimInterval:  cfg.Redis.TrimInterval,
		demo:          cfg.Runtime.Demo,
		demoInterval:  cfg.Runtime.DemoInterval,
		demoGap:       defaultDemoGap,
		demoQoS:       message.QoS(cfg.Broker.DefaultQoS),
		log:           logger,
	}
}

// startLoop starts a loop goroutine and reports non-canceled errors
func (r *Runner) startLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	name string,
	loop func(context.Context) error,
	errCh chan<- error,
) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("%s loop error: %w", name, err)
		}
	}()
}

// Run blocks until ctx is canceled or a loop fails. Loops that fail stop the
// others before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Starting broker runner")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	r.startLoop(ctx, &wg, "poll", r.pollLoop, errCh)
	if r.broker.SweepEnabled() {
		r.startLoop(ctx, &wg, "sweep", r.sweepLoop, errCh)
	}
	if r.trimmer != nil && r.trimInterval > 0 {
		r.startLoop(ctx, &wg, "trim", r.trimLoop, errCh)
	}
	if r.demo {
		r.log.Info("Demo publisher enabled every %v", r.demoInterval)
		r.startLoop(ctx, &wg, "demo", r.demoLoop, errCh)
	}

	select {
	case <-ctx.Done():
		r.log.Info("Shutting down broker runner")
		wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		r.log.Error("Runner error: %v", err)
		cancel()
		wg.Wait()
		return err
	}
}

// pollLoop feeds received bytes to the broker. A closed transport ends the
// loop; other receive errors are retried after the error backoff.
func (r *Runner) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := r.broker.ProcessMessages(); err != nil {
			if errors.Is(err, transport.ErrClosed) {
				return err
			}
			r.log.Error("Failed to process messages: %v", err)
			if !sleep(ctx, r.errorBackoff) {
				return ctx.Err()
			}
		}
	}
}

// sweepLoop resends or expires unacknowledged publishes
func (r *Runner) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			resent, expired := r.broker.Sweep(now)
			if resent > 0 || expired > 0 {
				r.log.Info("Sweep resent %d and expired %d publishes", resent, expired)
			}
		}
	}
}

// trimLoop periodically caps the delivery stream
func (r *Runner) trimLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.trimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.trimmer.Trim(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				r.log.Error("Failed to trim delivery stream: %v", err)
				continue
			}
			if n > 0 {
				r.log.Debug("Trimmed %d delivery entries", n)
			}
		}
	}
}

// sleep waits for d or until ctx is done; it reports false in the latter case
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
