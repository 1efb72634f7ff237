package research

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modfin/quill/internal/tools"
)

var ErrSessionFailed = errors.New("session failed")
var ErrPollBudget = errors.New("poll budget exceeded")

// NoResult is returned when a session completes without producing an
// assistant reply.
const NoResult = "The session produced no result."

type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

type DriverConfig struct {
	PollInterval time.Duration // defaults to 1s
	MaxPolls     int           // defaults to 120
	Retry        RetryConfig
}

// Driver runs the session state machine: poll until the provider asks for
// tool output, resolve every pending call through the registry, submit, and
// repeat until the session is terminal. Polling is bounded, both in wait time
// per step and in total number of polls.
type Driver struct {
	provider Provider
	registry *tools.Registry
	cfg      DriverConfig
	logger   *slog.Logger
}

func NewDriver(provider Provider, registry *tools.Registry, cfg DriverConfig, logger *slog.Logger) *Driver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 120
	}
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}
	return &Driver{provider: provider, registry: registry, cfg: cfg, logger: logger}
}

// Research submits query as a new session and drives it to a terminal state,
// returning the session's final reply.
func (d *Driver) Research(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query is empty")
	}

	sess, err := retry(ctx, d.cfg.Retry, d.logger, "start session", func() (Session, error) {
		return d.provider.Start(ctx, query)
	})
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}

	logger := d.logger.With("session", sess.ID)
	logger.Debug("session started", "status", sess.Status)

	for polls := 0; ; polls++ {
		switch sess.Status {

		case StatusCompleted:
			text, err := retry(ctx, d.cfg.Retry, logger, "fetch final message", func() (string, error) {
				return d.provider.FinalMessage(ctx, sess.ID)
			})
			if err != nil {
				return "", fmt.Errorf("failed to fetch final message: %w", err)
			}
			if strings.TrimSpace(text) == "" {
				return NoResult, nil
			}
			return text, nil

		case StatusFailed:
			reason := sess.FailureReason
			if reason == "" {
				reason = "unknown"
			}
			return "", fmt.Errorf("%w: %s", ErrSessionFailed, reason)

		case StatusRequiresToolOutput:
			outputs := d.resolve(ctx, logger, sess.PendingCalls)
			sess, err = retry(ctx, d.cfg.Retry, logger, "submit tool outputs", func() (Session, error) {
				return d.provider.SubmitToolOutputs(ctx, sess.ID, outputs)
			})
			if err != nil {
				return "", fmt.Errorf("failed to submit tool outputs: %w", err)
			}
			continue
		}

		// queued, running, or something this version does not recognize.
		// Keep polling, but only within the budget.
		if polls >= d.cfg.MaxPolls {
			return "", fmt.Errorf("%w: still %q after %d polls", ErrPollBudget, sess.Status, polls)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d.cfg.PollInterval):
		}

		sess, err = retry(ctx, d.cfg.Retry, logger, "poll session", func() (Session, error) {
			return d.provider.Poll(ctx, sess.ID)
		})
		if err != nil {
			return "", fmt.Errorf("failed to poll session: %w", err)
		}
	}
}

// resolve invokes every pending call through the registry. A failing call,
// including an unknown tool name, becomes a textual error output so the
// session can react to it instead of the whole batch aborting.
func (d *Driver) resolve(ctx context.Context, logger *slog.Logger, calls []ToolCall) []ToolOutput {
	outputs := make([]ToolOutput, 0, len(calls))
	for _, call := range calls {
		logger.Debug("invoking tool", "tool", call.Name, "call_id", call.ID)

		out, err := d.registry.Invoke(ctx, call.Name, call.Arguments)
		if err != nil {
			logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "err", err)
			out = fmt.Sprintf("error: %s", err)
		}

		outputs = append(outputs, ToolOutput{CallID: call.ID, Output: out})
	}
	return outputs
}

// retry runs fn with exponential backoff. Every kind of provider error is
// treated as retryable, the session either recovers or the caller gets the
// last error once the attempts run out.
func retry[T any](ctx context.Context, cfg RetryConfig, logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := cfg.InitialInterval
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		res, err := fn()
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}

		logger.Debug("retrying after error", "op", op, "attempt", attempt+1, "delay", delay, "err", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
			delay = min(delay*2, cfg.MaxInterval)
		}
	}

	return zero, fmt.Errorf("%s after %d retries: %w", op, cfg.MaxRetries, lastErr)
}
