package notify

import (
	"log/slog"
	"time"

	"github.com/conn-castle/alpine-term/internal/logging"
	"github.com/conn-castle/alpine-term/internal/messages"
)

// Publisher displays a Status.
type Publisher interface {
	Publish(Status) error
	Clear() error
}

// Synchronizer keeps the published Status in line with host state.
// Its methods run on the host's main loop.
type Synchronizer struct {
	publisher Publisher
	terminate func()
	now       func() time.Time
	logger    *slog.Logger
}

// NewSynchronizer returns a Synchronizer publishing through p. terminate is
// invoked instead of publishing once the host is idle.
func NewSynchronizer(p Publisher, terminate func(), logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		publisher: p,
		terminate: terminate,
		now:       time.Now,
		logger:    logging.OrDiscard(logger),
	}
}

// Republish publishes a fresh Status for state, or calls the terminator when
// there are no sessions and the lock is not held. It reports whether it published.
func (s *Synchronizer) Republish(state State) bool {
	if state.Idle() {
		if s.terminate != nil {
			s.terminate()
		}
		return false
	}
	s.publish(state)
	return true
}

// PublishInitial publishes without the idle rule. The host uses it at startup,
// before the first session exists.
func (s *Synchronizer) PublishInitial(state State) {
	s.publish(state)
}

// Clear removes the published Status.
func (s *Synchronizer) Clear() {
	if err := s.publisher.Clear(); err != nil {
		s.logger.Warn(messages.NotifyLogClearFailed, "error", err)
	}
}

func (s *Synchronizer) publish(state State) {
	status := Derive(state)
	status.UpdatedAt = s.now().UTC()
	if err := s.publisher.Publish(status); err != nil {
		s.logger.Warn(messages.NotifyLogPublishFailed, "error", err)
	}
}
