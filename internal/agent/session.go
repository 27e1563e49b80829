package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/pitchside/internal/match"
	"github.com/nidhogg/pitchside/internal/provider"
	"go.uber.org/zap"
)

var (
	// ErrNoSession is returned for an unknown or closed session key.
	ErrNoSession = errors.New("session not found")
	// ErrNoMatch is returned when a session has no match selected yet.
	ErrNoMatch = errors.New("no match selected")
)

// Session binds one match dataset to its own tools and executor. It is
// discarded, never updated, when its owner selects another match.
type Session struct {
	Ref       match.Ref
	Dataset   *match.Dataset
	CreatedAt time.Time

	exec *Executor
	mu   sync.Mutex
}

func newSession(ref match.Ref, ds *match.Dataset, gen provider.Generator, cfg Config, logger *zap.Logger) *Session {
	return &Session{
		Ref:       ref,
		Dataset:   ds,
		CreatedAt: time.Now(),
		exec:      NewExecutor(gen, NewToolRegistry(ds), cfg, logger),
	}
}

// Ask runs the loop for question. Runs on the same session are serialized.
func (s *Session) Ask(ctx context.Context, question string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec.Run(ctx, question, s.Dataset.Info.Context())
}

// Tools returns the session's tool registry.
func (s *Session) Tools() *ToolRegistry { return s.exec.Tools() }

// DefaultIdleTimeout is how long an unused UI session is kept.
const DefaultIdleTimeout = 2 * time.Hour

type slot struct {
	sess     *Session // nil until a match is selected
	lastUsed time.Time
}

// Sessions owns the analysis session of every open UI session. Sessions
// left unused for longer than the idle timeout are evicted by EvictIdle,
// which the janitor runs periodically.
type Sessions struct {
	data   match.DataProvider
	gen    provider.Generator
	cfg    Config
	idle   time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	slots map[string]*slot
}

// NewSessions creates an empty session table.
func NewSessions(data match.DataProvider, gen provider.Generator, cfg Config, logger *zap.Logger) *Sessions {
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Sessions{
		data:   data,
		gen:    gen,
		cfg:    cfg,
		idle:   idle,
		now:    time.Now,
		logger: logger,
		slots:  make(map[string]*slot),
	}
}

// Open registers a new UI session and returns its key.
func (s *Sessions) Open() string {
	key := uuid.New().String()
	s.mu.Lock()
	s.slots[key] = &slot{lastUsed: s.now()}
	s.mu.Unlock()
	s.logger.Info("session opened", zap.String("session", key))
	return key
}

// Close forgets key and its analysis session.
func (s *Sessions) Close(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slots[key]; !ok {
		return false
	}
	delete(s.slots, key)
	s.logger.Info("session closed", zap.String("session", key))
	return true
}

// Len returns the number of open UI sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Current returns the analysis session of key and marks key as used.
func (s *Sessions) Current(key string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok {
		return nil, ErrNoSession
	}
	sl.lastUsed = s.now()
	if sl.sess == nil {
		return nil, ErrNoMatch
	}
	return sl.sess, nil
}

// Select makes ref the match of key. Selecting the current match again keeps
// the existing session. Otherwise the dataset is fetched first and, on
// success, replaces the previous session wholesale; on failure the previous
// session is left as it was.
func (s *Sessions) Select(ctx context.Context, key string, ref match.Ref) (*Session, error) {
	s.mu.Lock()
	sl, ok := s.slots[key]
	var cur *Session
	if ok {
		sl.lastUsed = s.now()
		cur = sl.sess
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}
	if cur != nil && cur.Ref == ref {
		return cur, nil
	}

	ds, err := s.data.Fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	next := newSession(ref, ds, s.gen, s.cfg, s.logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok = s.slots[key]
	if !ok {
		return nil, ErrNoSession
	}
	sl.sess = next
	sl.lastUsed = s.now()
	s.logger.Info("match selected",
		zap.String("session", key),
		zap.Int("match_id", ref.MatchID),
		zap.String("match", ds.Info.Context()))
	return next, nil
}

// Ask runs a question against the current match of key.
func (s *Sessions) Ask(ctx context.Context, key, question string) (*Result, error) {
	sess, err := s.Current(key)
	if err != nil {
		return nil, err
	}
	return sess.Ask(ctx, question)
}

// EvictIdle drops every session unused for longer than the idle timeout
// and returns how many were dropped.
func (s *Sessions) EvictIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.idle)
	n := 0
	for key, sl := range s.slots {
		if sl.lastUsed.Before(cutoff) {
			delete(s.slots, key)
			n++
		}
	}
	if n > 0 {
		s.logger.Info("idle sessions evicted", zap.Int("count", n), zap.Int("remaining", len(s.slots)))
	}
	return n
}

// StartJanitor runs EvictIdle every interval until ctx is done.
func (s *Sessions) StartJanitor(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.EvictIdle()
			}
		}
	}()
}
