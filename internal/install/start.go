package install

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/messages"
)

// Poster runs callbacks on the host's serialization point.
type Poster interface {
	Post(fn func()) bool
}

// Ensurer is the part of Installer used by the recovery loop.
type Ensurer interface {
	EnsureInstalled(ctx context.Context) (bool, error)
}

// Start installs in the background and delivers the outcome through poster.
// An unsupported platform or an existing root is reported synchronously.
func (i *Installer) Start(ctx context.Context, poster Poster, whenDone func(), onFailure func(error)) {
	if err := i.CheckPlatform(); err != nil {
		onFailure(err)
		return
	}
	if i.Installed() {
		whenDone()
		return
	}
	go func() {
		_, err := i.EnsureInstalled(ctx)
		poster.Post(func() {
			if err != nil {
				onFailure(err)
				return
			}
			whenDone()
		})
	}()
}

// Choice is the user's answer to an install failure.
type Choice int

const (
	// ChoiceRetry starts a full new attempt.
	ChoiceRetry Choice = iota + 1
	// ChoiceAbandon gives up; the caller exits.
	ChoiceAbandon
)

// Prompter asks how to proceed after a retryable failure.
type Prompter interface {
	Recover(err error) (Choice, error)
}

// PromptFunc adapts a function into a Prompter.
type PromptFunc func(err error) (Choice, error)

// Recover calls f. A nil PromptFunc is an error.
func (f PromptFunc) Recover(err error) (Choice, error) {
	if f == nil {
		return 0, errors.New(messages.InstallPromptRequired)
	}
	return f(err)
}

// RunWithRecovery calls EnsureInstalled until it succeeds, the failure is not
// retryable, or the prompter abandons. Abandonment returns an error matching
// both ErrAbandoned and the last install failure.
func RunWithRecovery(ctx context.Context, ensurer Ensurer, prompter Prompter, logger *slog.Logger) (bool, error) {
	logger = logging.OrDiscard(logger)
	for attempt := 1; ; attempt++ {
		installed, err := ensurer.EnsureInstalled(ctx)
		if err == nil {
			return installed, nil
		}
		var installErr *Error
		if errors.As(err, &installErr) && !installErr.Retryable() {
			return false, err
		}
		if ctx.Err() != nil {
			return false, err
		}
		if prompter == nil {
			return false, err
		}
		choice, promptErr := prompter.Recover(err)
		if promptErr != nil {
			return false, promptErr
		}
		if choice != ChoiceRetry {
			return false, fmt.Errorf("%w: %w", ErrAbandoned, err)
		}
		logger.Info(messages.InstallLogRetry, "attempt", attempt+1)
	}
}
