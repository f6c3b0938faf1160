package sonara

import (
	"context"
	"strings"
	"sync"

	"github.com/sonara-lab/sonara/observability"
)

// SessionState is the observable state of the session controller.
type SessionState string

const (
	// StateIdle means no exchange is in flight.
	StateIdle SessionState = "idle"
	// StateAwaitingReply means a user submission has been dispatched and
	// its reply has not arrived yet.
	StateAwaitingReply SessionState = "awaiting_reply"
)

// LoadingObserver is notified whenever the loading flag changes.
type LoadingObserver func(loading bool)

// SpeechObserver is notified with each assistant reply that should be
// spoken aloud. The core never talks to a text-to-speech engine itself.
type SpeechObserver func(text string)

// SessionConfig holds configuration for a SessionController.
type SessionConfig struct {
	// History is the store the session appends to. Required.
	History *HistoryStore

	// Completion produces assistant replies. Required.
	Completion CompletionClient

	Logger observability.Logger
}

// SessionController orchestrates one conversation turn at a time: it
// appends the submitted text to the history, dispatches the retained
// window to the completion client and, on success, appends the reply and
// asks observers to speak it. At most one exchange is in flight; a second
// submission while awaiting a reply is rejected with ErrSessionBusy.
type SessionController struct {
	history    *HistoryStore
	completion CompletionClient
	logger     observability.Logger

	mu         sync.Mutex
	state      SessionState
	loading    bool
	generation uint64
	cancel     context.CancelFunc

	loadingObservers []LoadingObserver
	speechObservers  []SpeechObserver
}

// NewSessionController creates a controller and populates the history
// store from its repository before the first observable render. A load
// failure degrades to an empty history rather than preventing startup.
func NewSessionController(ctx context.Context, config SessionConfig) *SessionController {
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}

	s := &SessionController{
		history:    config.History,
		completion: config.Completion,
		logger:     config.Logger,
		state:      StateIdle,
	}

	if err := s.history.Load(ctx); err != nil {
		s.logger.WithErr(err).Warn("failed to load persisted history, starting empty")
	}

	return s
}

// OnHistoryChanged registers an observer for history snapshots.
func (s *SessionController) OnHistoryChanged(observer HistoryObserver) {
	s.history.Subscribe(observer)
}

// OnLoadingChanged registers an observer for the loading flag.
func (s *SessionController) OnLoadingChanged(observer LoadingObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingObservers = append(s.loadingObservers, observer)
}

// OnSpeechRequested registers an observer for speakable replies.
func (s *SessionController) OnSpeechRequested(observer SpeechObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speechObservers = append(s.speechObservers, observer)
}

// State returns the current session state.
func (s *SessionController) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loading reports whether an exchange is in flight.
func (s *SessionController) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// History returns a read-only snapshot of the conversation.
func (s *SessionController) History() []Message {
	return s.history.Snapshot()
}

// Submit runs one conversation turn. Empty or whitespace-only text is
// rejected with ErrEmptyInput and causes no side effects. The user
// message is appended and persisted before the request is dispatched, so
// a crash mid-call still leaves the utterance durably recorded. On
// success the trimmed reply is appended and announced to speech
// observers; on failure the history is left with the user message only
// and the error is returned for the caller to surface or log.
func (s *SessionController) Submit(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.state == StateAwaitingReply {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	s.state = StateAwaitingReply
	generation := s.generation
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.setLoading(true)
	defer func() {
		cancel()
		s.mu.Lock()
		s.state = StateIdle
		s.cancel = nil
		s.mu.Unlock()
		s.setLoading(false)
	}()

	s.history.Append(turnCtx, NewMessage(UserRole, trimmed))

	reply, err := s.completion.Complete(turnCtx, s.history.Snapshot())
	if err != nil {
		s.logger.WithErr(err).Error("completion request failed")
		return err
	}

	s.mu.Lock()
	stale := generation != s.generation
	s.mu.Unlock()
	if stale {
		// The conversation was cleared while the reply was in flight.
		s.logger.Debug("discarding reply for a cleared conversation")
		return nil
	}

	s.history.Append(turnCtx, NewMessage(AssistantRole, reply))
	s.emitSpeech(reply)

	return nil
}

// Clear empties the conversation and removes the persisted document.
// Valid in any state: an in-flight exchange is cancelled and a reply that
// still arrives is discarded instead of appending into the cleared
// history.
func (s *SessionController) Clear(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.history.Clear(ctx)
}

func (s *SessionController) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	observers := s.loadingObservers
	s.mu.Unlock()

	for _, observer := range observers {
		observer(loading)
	}
}

func (s *SessionController) emitSpeech(text string) {
	s.mu.Lock()
	observers := s.speechObservers
	s.mu.Unlock()

	for _, observer := range observers {
		observer(text)
	}
}
