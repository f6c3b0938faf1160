package sonara

import (
	"context"
	"errors"
	"sync"

	"github.com/sonara-lab/sonara/observability"
)

// DefaultRetentionLimit is the number of messages kept after trimming
// when no explicit limit is configured.
const DefaultRetentionLimit = 4

// HistoryObserver receives the new snapshot after every history mutation.
type HistoryObserver func(messages []Message)

// HistoryStoreConfig holds configuration for a HistoryStore.
type HistoryStoreConfig struct {
	// RetentionLimit caps how many messages are retained. Values below 1
	// fall back to DefaultRetentionLimit.
	RetentionLimit int

	// Repository persists the history after each mutation. Nil disables
	// persistence; the store then lives in memory only.
	Repository HistoryRepository

	Logger observability.Logger
}

// HistoryStore is the in-memory, retention-bounded message sequence at
// the heart of a session. It is the single owner of the conversation:
// every mutation trims to the retention limit, persists the result and
// notifies subscribers with an immutable snapshot. Persistence failures
// are logged and swallowed — in-memory state is the source of truth for
// the running session.
type HistoryStore struct {
	mu        sync.RWMutex
	messages  []Message
	limit     int
	repo      HistoryRepository
	logger    observability.Logger
	observers []HistoryObserver
}

// NewHistoryStore creates a HistoryStore from configuration.
func NewHistoryStore(cfg HistoryStoreConfig) *HistoryStore {
	if cfg.RetentionLimit < 1 {
		cfg.RetentionLimit = DefaultRetentionLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNullLogger()
	}

	return &HistoryStore{
		limit:  cfg.RetentionLimit,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}
}

// Subscribe registers an observer that is called with the new snapshot
// after every mutation. Observers must not mutate the snapshot.
func (h *HistoryStore) Subscribe(observer HistoryObserver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, observer)
}

// Append inserts a message at the end of the sequence, dropping the
// oldest entries once the retention limit is exceeded. The trimmed
// sequence is persisted and subscribers are notified.
func (h *HistoryStore) Append(ctx context.Context, msg Message) {
	h.mu.Lock()
	h.messages = append(h.messages, msg)
	if len(h.messages) > h.limit {
		h.messages = h.messages[len(h.messages)-h.limit:]
	}
	snapshot := cloneMessages(h.messages)
	observers := h.observers
	h.mu.Unlock()

	h.persist(ctx, snapshot)
	for _, observer := range observers {
		observer(snapshot)
	}
}

// Clear empties the sequence and deletes the persisted document, so a
// subsequent load behaves like a first run.
func (h *HistoryStore) Clear(ctx context.Context) {
	h.mu.Lock()
	h.messages = nil
	observers := h.observers
	h.mu.Unlock()

	if h.repo != nil {
		if err := h.repo.Delete(ctx); err != nil {
			h.logger.WithErr(err).Error("failed to delete persisted history")
		}
	}

	for _, observer := range observers {
		observer([]Message{})
	}
}

// Snapshot returns a read-only copy of the current message sequence.
func (h *HistoryStore) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return cloneMessages(h.messages)
}

// Len reports the number of retained messages.
func (h *HistoryStore) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Load restores the persisted history into the store, trimming to the
// retention limit. A missing document yields an empty history and no
// error. Subscribers are notified only when messages were restored.
func (h *HistoryStore) Load(ctx context.Context) error {
	if h.repo == nil {
		return nil
	}

	messages, err := h.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrHistoryNotFound) {
			return nil
		}
		return err
	}

	if len(messages) > h.limit {
		messages = messages[len(messages)-h.limit:]
	}

	h.mu.Lock()
	h.messages = cloneMessages(messages)
	snapshot := cloneMessages(h.messages)
	observers := h.observers
	h.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}
	for _, observer := range observers {
		observer(snapshot)
	}
	return nil
}

func (h *HistoryStore) persist(ctx context.Context, snapshot []Message) {
	if h.repo == nil {
		return
	}
	if err := h.repo.Save(ctx, snapshot); err != nil {
		h.logger.WithErr(err).Error("failed to persist history")
	}
}
