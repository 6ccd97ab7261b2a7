package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gemini-relay/internal/models"
)

type entry struct {
	turns    []models.Turn
	lastSeen time.Time
}

// MemoryStore keeps sessions in process memory. A janitor goroutine started
// with Start evicts idle entries.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore(opts Options, logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*entry),
		opts:     opts.withDefaults(),
		logger:   logger,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

func (s *MemoryStore) Load(_ context.Context, id string) ([]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		return nil, nil
	}
	return append([]models.Turn(nil), e.turns...), nil
}

func (s *MemoryStore) Append(_ context.Context, id string, turns ...models.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || s.expired(e) {
		e = &entry{}
		s.sessions[id] = e
	}
	e.turns = trim(append(e.turns, turns...), s.opts.MaxTurns)
	e.lastSeen = s.now()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Start launches the eviction loop.
func (s *MemoryStore) Start() {
	go s.loop()
}

func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *MemoryStore) loop() {
	interval := s.opts.IdleTimeout / 2
	if interval <= 0 {
		interval = s.opts.IdleTimeout
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if n := s.evictIdle(); n > 0 {
				s.logger.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}

func (s *MemoryStore) evictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, e := range s.sessions {
		if s.expired(e) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *MemoryStore) expired(e *entry) bool {
	return s.now().Sub(e.lastSeen) > s.opts.IdleTimeout
}
