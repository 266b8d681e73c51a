package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Trigger reasons.
const (
	ReasonStartup      = "startup"
	ReasonForeground   = "foreground"
	ReasonConnectivity = "connectivity"
	ReasonTimer        = "timer"
	ReasonMutation     = "mutation"
	ReasonRetry        = "retry"
)

// Runner runs one reconciliation pass.
type Runner interface {
	Run(ctx context.Context) (*Report, error)
}

// Notifier is told about changes the authority refused for good.
type Notifier interface {
	Rejected(ctx context.Context, r Rejection)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, r Rejection)

func (f NotifierFunc) Rejected(ctx context.Context, r Rejection) { f(ctx, r) }

// NewLinearBackoff waits base, 2*base, 3*base, ... never more than max,
// and never gives up.
func NewLinearBackoff(base, max time.Duration) retry.Backoff {
	var attempt int64
	b := retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * base, false
	})
	return retry.WithCappedDuration(max, b)
}

type SchedulerOptions struct {
	// Interval between periodic passes; zero disables the timer.
	Interval   time.Duration
	RetryBase  time.Duration
	RetryMax   time.Duration
	OnReport   func(*Report)
	NewBackoff func() retry.Backoff
}

// Scheduler decides when passes run. Triggers coalesce: any number of
// triggers arriving while a pass runs cause at most one follow-up pass.
// Passes never overlap, whether started by the loop or by RunNow.
type Scheduler struct {
	runner   Runner
	notifier Notifier
	logger   logging.Logger
	opts     SchedulerOptions

	trigger chan string
	// slot holds a token while a pass runs.
	slot chan struct{}

	mu     sync.Mutex
	last   *Report
	lastAt time.Time
}

func NewScheduler(runner Runner, notifier Notifier, logger logging.Logger, opts SchedulerOptions) *Scheduler {
	if opts.RetryBase <= 0 {
		opts.RetryBase = 2 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = time.Minute
	}
	if opts.NewBackoff == nil {
		base, max := opts.RetryBase, opts.RetryMax
		opts.NewBackoff = func() retry.Backoff { return NewLinearBackoff(base, max) }
	}
	return &Scheduler{
		runner:   runner,
		notifier: notifier,
		logger:   logger.With("module", "scheduler"),
		opts:     opts,
		trigger:  make(chan string, 1),
		slot:     make(chan struct{}, 1),
	}
}

// Trigger asks for a pass. It never blocks.
func (s *Scheduler) Trigger(reason string) {
	select {
	case s.trigger <- reason:
	default:
	}
}

// LastReport returns the most recent pass report and when it finished.
func (s *Scheduler) LastReport() (*Report, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastAt
}

// Start runs the scheduling loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	var tick <-chan time.Time
	if s.opts.Interval > 0 {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var (
		backoff retry.Backoff
		retryC  <-chan time.Time
		timer   *time.Timer
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, retryC = nil, nil
		}
	}
	defer stopTimer()

	for {
		var reason string
		select {
		case <-ctx.Done():
			return
		case reason = <-s.trigger:
		case <-tick:
			reason = ReasonTimer
		case <-retryC:
			reason = ReasonRetry
		}
		stopTimer()

		settled := s.pass(ctx, reason)
		if ctx.Err() != nil {
			return
		}
		if settled {
			backoff = nil
			continue
		}

		if backoff == nil {
			backoff = s.opts.NewBackoff()
		}
		delay, _ := backoff.Next()
		s.logger.Debug(ctx, "pass left pending work, retrying", "delay", delay)
		timer = time.NewTimer(delay)
		retryC = timer.C
	}
}

// RunNow runs a pass in the caller's goroutine once no other pass is
// running. Work it leaves pending is handed to the loop's retry path.
func (s *Scheduler) RunNow(ctx context.Context) (*Report, error) {
	rep, err := s.run(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, rep)
	if !rep.Settled() {
		s.Trigger(ReasonRetry)
	}
	return rep, nil
}

// run calls the runner while holding the pass slot.
func (s *Scheduler) run(ctx context.Context) (*Report, error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.slot }()
	return s.runner.Run(ctx)
}

func (s *Scheduler) pass(ctx context.Context, reason string) bool {
	s.logger.Debug(ctx, "reconcile triggered", "reason", reason)

	rep, err := s.run(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn(ctx, "reconcile pass failed", "reason", reason, "error", err)
		}
		return false
	}
	s.publish(ctx, rep)
	return rep.Settled()
}

func (s *Scheduler) publish(ctx context.Context, rep *Report) {
	s.mu.Lock()
	s.last, s.lastAt = rep, time.Now()
	s.mu.Unlock()

	if s.notifier != nil {
		for _, rj := range rep.Rejected {
			s.notifier.Rejected(ctx, rj)
		}
	}
	if s.opts.OnReport != nil {
		s.opts.OnReport(rep)
	}
}
