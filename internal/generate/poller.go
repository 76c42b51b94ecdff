package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wan-video/wan-gateway/internal/wanx"
)

// Static errors for terminal poll outcomes.
var (
	ErrGenerationFailed = errors.New("video generation failed")
	ErrPollDeadline     = errors.New("polling deadline exceeded")
)

// OutcomeKind classifies one poll iteration.
type OutcomeKind int

// Poll outcomes. Pending and Unknown keep the loop going; the rest stop it.
const (
	OutcomePending OutcomeKind = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeUnknown
)

// PollOutcome is the normalized result of a single status query.
type PollOutcome struct {
	Kind      OutcomeKind
	VideoURL  string
	Detail    string
	RawStatus string
}

// outcomeFromTask maps a provider task report onto a PollOutcome. A task
// reported SUCCEEDED without a reachable URL is treated as still pending;
// some backends flip the status one poll before the URL appears.
func outcomeFromTask(task wanx.Task) PollOutcome {
	switch task.Status {
	case wanx.StatusSucceeded:
		if task.VideoURL == "" {
			return PollOutcome{Kind: OutcomeUnknown, RawStatus: task.RawStatus}
		}
		return PollOutcome{Kind: OutcomeSucceeded, VideoURL: task.VideoURL}
	case wanx.StatusFailed, wanx.StatusCanceled:
		return PollOutcome{Kind: OutcomeFailed, Detail: task.Detail, RawStatus: task.RawStatus}
	case wanx.StatusPending, wanx.StatusRunning:
		return PollOutcome{Kind: OutcomePending, RawStatus: task.RawStatus}
	default:
		return PollOutcome{Kind: OutcomeUnknown, RawStatus: task.RawStatus}
	}
}

// clock abstracts time for deadline tests.
type clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Poller repeatedly queries task status until a terminal state or the
// deadline. Transport and parse errors during a poll are logged and retried
// at the next interval; a single flaky poll never aborts the wait.
type Poller struct {
	client wanx.Client
	logger *slog.Logger
	clock  clock
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithPollerLogger sets a custom logger.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// withClock injects a fake clock in tests.
func withClock(c clock) PollerOption {
	return func(p *Poller) {
		p.clock = c
	}
}

// NewPoller creates a Poller over the given task client.
func NewPoller(client wanx.Client, opts ...PollerOption) *Poller {
	p := &Poller{
		client: client,
		logger: slog.Default(),
		clock:  realClock{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Poll waits for taskID to reach a terminal state and returns the artifact
// URL. It returns ErrGenerationFailed when the provider reports failure,
// ErrPollDeadline when the deadline passes without a terminal state, and the
// context error when ctx is cancelled.
func (p *Poller) Poll(ctx context.Context, taskID string, interval, deadline time.Duration) (string, error) {
	start := p.clock.Now()

	for p.clock.Now().Sub(start) < deadline {
		task, err := p.client.GetTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.logger.Warn("poll attempt failed, will retry",
				slog.String("task_id", taskID),
				slog.String("error", err.Error()),
			)
			if sleepErr := p.clock.Sleep(ctx, interval); sleepErr != nil {
				return "", sleepErr
			}
			continue
		}

		outcome := outcomeFromTask(task)
		switch outcome.Kind {
		case OutcomeSucceeded:
			p.logger.Info("task succeeded", slog.String("task_id", taskID))
			return outcome.VideoURL, nil
		case OutcomeFailed:
			p.logger.Error("task failed",
				slog.String("task_id", taskID),
				slog.String("detail", outcome.Detail),
			)
			if outcome.Detail != "" {
				return "", fmt.Errorf("%w: %s", ErrGenerationFailed, outcome.Detail)
			}
			return "", ErrGenerationFailed
		case OutcomePending:
			p.logger.Debug("task still in progress",
				slog.String("task_id", taskID),
				slog.String("status", outcome.RawStatus),
			)
		case OutcomeUnknown:
			p.logger.Warn("unrecognized task status, continuing to poll",
				slog.String("task_id", taskID),
				slog.String("status", outcome.RawStatus),
			)
		}

		if err := p.clock.Sleep(ctx, interval); err != nil {
			return "", err
		}
	}

	p.logger.Error("task polling timed out",
		slog.String("task_id", taskID),
		slog.Duration("deadline", deadline),
	)
	return "", ErrPollDeadline
}
