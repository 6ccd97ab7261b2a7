package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gemini-relay/internal/models"
	"gemini-relay/internal/prompt"
	"gemini-relay/internal/sessions"
)

const (
	MissingPromptMessage    = "Manca il prompt utente"
	InvalidSessionIDMessage = "session_id non valido"

	maxSessionIDLen = 128
	historyWriteTTL = 5 * time.Second
)

// ReplyRequest is one user message addressed to the relay.
type ReplyRequest struct {
	Prompt    string
	SessionID string
}

// Reply is the relay's answer. SessionID is set only when the policy keeps
// conversation history.
type Reply struct {
	Text      string
	SessionID string
	Fallback  bool
}

// RelayService validates a message, applies the prompt policy and calls the
// provider once.
type RelayService struct {
	provider Provider
	policy   *prompt.Policy
	store    sessions.Store
	locks    *sessions.Locks
	fallback string
	timeout  time.Duration
	slots    chan struct{}
	logger   *slog.Logger
	newID    func() string
}

// RelayConfig wires a RelayService. Store is required only when the policy
// is stateful.
type RelayConfig struct {
	Provider      Provider
	Policy        *prompt.Policy
	Store         sessions.Store
	FallbackText  string
	Timeout       time.Duration
	// MaxConcurrent caps simultaneous provider calls. Zero means no cap.
	MaxConcurrent int
	Logger        *slog.Logger
}

func NewRelayService(cfg RelayConfig) (*RelayService, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.Policy == nil {
		return nil, errors.New("prompt policy is required")
	}
	if cfg.Policy.Stateful() && cfg.Store == nil {
		return nil, errors.New("session mode requires a session store")
	}

	var slots chan struct{}
	if cfg.MaxConcurrent > 0 {
		// Token bucket
		slots = make(chan struct{}, cfg.MaxConcurrent)
		for i := 0; i < cfg.MaxConcurrent; i++ {
			slots <- struct{}{}
		}
	}

	return &RelayService{
		provider: cfg.Provider,
		policy:   cfg.Policy,
		store:    cfg.Store,
		locks:    sessions.NewLocks(),
		fallback: cfg.FallbackText,
		timeout:  cfg.Timeout,
		slots:    slots,
		logger:   cfg.Logger,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// acquireSlot blocks until a provider slot is free or ctx ends.
func (s *RelayService) acquireSlot(ctx context.Context) error {
	if s.slots == nil {
		return nil
	}
	select {
	case <-s.slots:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *RelayService) releaseSlot() {
	if s.slots != nil {
		s.slots <- struct{}{}
	}
}

// Reply runs one relay round trip. Errors are *ValidationError for bad
// input, *ProviderError for provider failures, or wrap context.Canceled when
// the caller went away.
func (s *RelayService) Reply(ctx context.Context, req ReplyRequest) (*Reply, error) {
	message := strings.TrimSpace(req.Prompt)
	if message == "" {
		return nil, &ValidationError{Message: MissingPromptMessage}
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if len(sessionID) > maxSessionIDLen {
		return nil, &ValidationError{Message: InvalidSessionIDMessage}
	}

	text, err := s.policy.Build(message)
	if err != nil {
		return nil, err
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var history []models.Turn
	if s.policy.Stateful() {
		if sessionID == "" {
			sessionID = s.newID()
		}

		unlock, err := s.locks.Lock(callCtx, sessionID)
		if err != nil {
			return nil, s.abandoned(ctx, fmt.Errorf("waiting for session %s: %w", sessionID, err))
		}
		defer unlock()

		history, err = s.store.Load(callCtx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session history: %w", err)
		}
	} else {
		sessionID = ""
	}

	if err := s.acquireSlot(callCtx); err != nil {
		return nil, s.abandoned(ctx, fmt.Errorf("waiting for a provider slot: %w", err))
	}
	// Never start the upstream call for a caller that is already gone.
	if err := callCtx.Err(); err != nil {
		s.releaseSlot()
		return nil, s.abandoned(ctx, err)
	}

	start := time.Now()
	out, err := s.provider.Generate(callCtx, history, text)
	s.releaseSlot()
	if err != nil {
		return nil, s.abandoned(ctx, err)
	}

	s.logger.Debug("provider replied",
		"provider", s.provider.Name(),
		"session_id", sessionID,
		"history_turns", len(history),
		"duration", time.Since(start),
	)

	if strings.TrimSpace(out) == "" {
		s.logger.Warn("provider returned empty text, using fallback",
			"provider", s.provider.Name(),
			"session_id", sessionID,
		)
		return &Reply{Text: s.fallback, SessionID: sessionID, Fallback: true}, nil
	}

	if s.policy.Stateful() {
		s.remember(ctx, sessionID, text, out)
	}

	return &Reply{Text: out, SessionID: sessionID}, nil
}

// abandoned classifies a failure: caller cancellation wraps context.Canceled,
// anything else (timeouts included) is a provider failure.
func (s *RelayService) abandoned(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("reply abandoned by caller: %w", context.Canceled)
	}
	return &ProviderError{Provider: s.provider.Name(), Err: err}
}

// remember stores the exchange. The write survives caller cancellation: the
// provider already answered, so the history must reflect it.
func (s *RelayService) remember(ctx context.Context, sessionID, userText, modelText string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTTL)
	defer cancel()

	err := s.store.Append(writeCtx, sessionID,
		models.Turn{Role: models.RoleUser, Text: userText},
		models.Turn{Role: models.RoleModel, Text: modelText},
	)
	if err != nil {
		s.logger.Error("failed to store session history", "session_id", sessionID, "error", err)
	}
}

// EndSession drops the history of sessionID.
func (s *RelayService) EndSession(ctx context.Context, sessionID string) error {
	if s.store == nil {
		return nil
	}
	if len(sessionID) > maxSessionIDLen {
		return &ValidationError{Message: InvalidSessionIDMessage}
	}

	unlock, err := s.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	return s.store.Delete(ctx, sessionID)
}
