package inmemory

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pipprompter/server/internal/domain"
)

var (
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrInvalidBuffer      = errors.New("subscriber buffer must be at least 1")
)

// repo is the single owner of the presentation state. Every mutation goes
// through commitLocked; snapshots are published to subscribers while the lock
// is still held, so a subscriber never receives a state older than one it
// has already seen.
type repo struct {
	mu          sync.Mutex
	state       domain.PresentationState
	subscribers map[string]chan domain.PresentationState
	logger      *slog.Logger
}

func NewRepo(initial domain.PresentationState, logger *slog.Logger) *repo {
	return &repo{
		state:       initial,
		subscribers: make(map[string]chan domain.PresentationState),
		logger:      logger,
	}
}

func (r *repo) Get() domain.PresentationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Merge applies the fields present in patch and returns the resulting
// snapshot together with the fields that were not applied.
func (r *repo) Merge(patch domain.Patch) (domain.PresentationState, []domain.FieldError) {
	return r.MergeFunc(func(domain.PresentationState) domain.Patch {
		return patch
	})
}

// MergeFunc builds the patch from the current state inside the critical
// section. fn must be fast and free of I/O.
func (r *repo) MergeFunc(fn func(current domain.PresentationState) domain.Patch) (domain.PresentationState, []domain.FieldError) {
	funcName := "state.inmemory.MergeFunc"
	r.mu.Lock()
	defer r.mu.Unlock()

	patch := fn(r.state)
	next := r.state
	var rejected []domain.FieldError
	for _, field := range patch.Fields() {
		if field.IsBinding() && r.state.IsRunning {
			rejected = append(rejected, domain.FieldError{
				Field:   field,
				Code:    domain.CodeLocked,
				Message: "cannot change while the control server is running",
			})
			continue
		}

		if err := next.ApplyField(field, patch[field]); err != nil {
			var fe domain.FieldError
			if !errors.As(err, &fe) {
				fe = domain.FieldError{Field: field, Code: domain.CodeInvalid, Message: err.Error()}
			}
			rejected = append(rejected, fe)
		}
	}

	if len(domain.Diff(r.state, next)) == 0 {
		r.logger.Debug(funcName, "result", "unchanged", "rejected", len(rejected))
		return r.state, rejected
	}

	r.commitLocked(next)
	r.logger.Debug(funcName, "revision", r.state.Revision, "rejected", len(rejected))
	return r.state, rejected
}

// SetRunning records whether the control server owns its socket. While
// running, the bind address and port are locked.
func (r *repo) SetRunning(running bool) domain.PresentationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsRunning == running {
		return r.state
	}

	next := r.state
	next.IsRunning = running
	r.commitLocked(next)
	return r.state
}

// MarkRunning commits isRunning=true only if the binding still matches the
// address and port the caller bound. It reports false, leaving the state
// untouched, when the binding changed in the meantime.
func (r *repo) MarkRunning(address string, port int) (domain.PresentationState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.ServerAddress != address || r.state.ServerPort != port {
		r.logger.Debug("state.inmemory.MarkRunning", "result", "binding changed")
		return r.state, false
	}
	if r.state.IsRunning {
		return r.state, true
	}

	next := r.state
	next.IsRunning = true
	r.commitLocked(next)
	return r.state, true
}

func (r *repo) SetPipMode(pip bool) domain.PresentationState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsPipMode == pip {
		return r.state
	}

	next := r.state
	next.IsPipMode = pip
	r.commitLocked(next)
	return r.state
}

// Subscribe registers a listener for committed snapshots. The channel keeps
// only the newest undelivered snapshots: when it is full the oldest pending
// one is replaced.
func (r *repo) Subscribe(buffer int) (string, <-chan domain.PresentationState, error) {
	if buffer < 1 {
		return "", nil, ErrInvalidBuffer
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan domain.PresentationState, buffer)
	r.subscribers[id] = ch

	r.logger.Debug("state.inmemory.Subscribe", "subscriber_id", id, "subscribers", len(r.subscribers))
	return id, ch, nil
}

func (r *repo) Unsubscribe(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.subscribers[id]
	if !ok {
		return ErrSubscriberNotFound
	}

	delete(r.subscribers, id)
	close(ch)

	r.logger.Debug("state.inmemory.Unsubscribe", "subscriber_id", id, "subscribers", len(r.subscribers))
	return nil
}

func (r *repo) commitLocked(next domain.PresentationState) {
	next.Revision = r.state.Revision + 1
	r.state = next

	for id, ch := range r.subscribers {
		select {
		case ch <- next:
			continue
		default:
		}

		// full: drop the oldest pending snapshot and retry once
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
			r.logger.Warn("state.inmemory.publish", "subscriber_id", id, "error", "subscriber channel full")
		}
	}
}
