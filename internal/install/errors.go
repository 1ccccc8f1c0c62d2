package install

import (
	"errors"
	"fmt"

	"github.com/conn-castle/alpine-term/internal/messages"
)

// Kind classifies an install failure.
type Kind int

const (
	// KindUnsupportedPlatform means the device architecture is not allow-listed. Never retried.
	KindUnsupportedPlatform Kind = iota + 1
	// KindPrepareFailed means the data or staging directory could not be prepared.
	KindPrepareFailed
	// KindExtractionFailed means an archive entry or blob could not be written.
	KindExtractionFailed
	// KindPublishFailed means the staging directory could not be renamed into place.
	KindPublishFailed
)

var (
	ErrUnsupportedPlatform = errors.New(messages.InstallUnsupportedPlatform)
	ErrPrepareFailed       = errors.New(messages.InstallPrepareFailed)
	ErrExtractionFailed    = errors.New(messages.InstallExtractionFailed)
	ErrPublishFailed       = errors.New(messages.InstallPublishFailed)
	// ErrAbandoned is returned by RunWithRecovery when the user gives up.
	ErrAbandoned = errors.New(messages.InstallAbandoned)
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnsupportedPlatform:
		return ErrUnsupportedPlatform
	case KindPrepareFailed:
		return ErrPrepareFailed
	case KindExtractionFailed:
		return ErrExtractionFailed
	case KindPublishFailed:
		return ErrPublishFailed
	default:
		return nil
	}
}

// Error is the typed failure returned by EnsureInstalled.
// Entry names the archive member or blob being written for KindExtractionFailed.
type Error struct {
	Kind  Kind
	Entry string
	Err   error
}

func (e *Error) Error() string {
	sentinel := e.Kind.sentinel()
	if sentinel == nil || e.Kind == KindUnsupportedPlatform {
		return e.Err.Error()
	}
	return fmt.Sprintf(messages.InstallErrorFmt, sentinel, e.Err)
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	sentinel := e.Kind.sentinel()
	return sentinel != nil && target == sentinel
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a fresh attempt could succeed.
func (e *Error) Retryable() bool {
	return e.Kind != KindUnsupportedPlatform
}
