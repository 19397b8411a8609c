package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teamlens/teamlens/internal/filter"
	"github.com/teamlens/teamlens/internal/scope"
)

const filterKeyPrefix = "teamlens:filters:"

// Sessions owns one Controller per authenticated user. Filter state is
// written through to redis on every commit so a restarted process restores
// where the user left off, and idle sessions are swept out of memory.
type Sessions struct {
	redis      *redis.Client
	loc        *time.Location
	idleTTL    time.Duration
	sweepEvery time.Duration
	persistTTL time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	ctrl     *Controller
	identity scope.Identity
	lastSeen time.Time
}

func NewSessions(redisClient *redis.Client, loc *time.Location, idleTTL, sweepEvery, persistTTL time.Duration, logger *slog.Logger) *Sessions {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	if persistTTL <= 0 {
		persistTTL = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sessions{
		redis:      redisClient,
		loc:        loc,
		idleTTL:    idleTTL,
		sweepEvery: sweepEvery,
		persistTTL: persistTTL,
		logger:     logger,
		sessions:   make(map[string]*session),
	}
}

// Acquire returns the caller's controller, restoring persisted filter state
// on first touch. A changed identity (role or managed teams) discards the
// cached controller so capabilities are never stale.
func (s *Sessions) Acquire(ctx context.Context, id scope.Identity) *Controller {
	s.mu.Lock()
	if existing, ok := s.sessions[id.UserID]; ok && reflect.DeepEqual(existing.identity, id) {
		existing.lastSeen = time.Now()
		ctrl := existing.ctrl
		s.mu.Unlock()
		return ctrl
	}
	s.mu.Unlock()

	restored := s.restore(ctx, id.UserID)
	ctrl := NewController(id, s.loc,
		WithInitialState(restored),
		WithCommitHook(func(st filter.State) { s.persist(id.UserID, st) }),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id.UserID]; ok && reflect.DeepEqual(existing.identity, id) {
		existing.lastSeen = time.Now()
		return existing.ctrl
	}
	s.sessions[id.UserID] = &session{ctrl: ctrl, identity: id, lastSeen: time.Now()}
	return ctrl
}

// Drop forgets a user's in-memory session. Persisted state stays in redis.
func (s *Sessions) Drop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Run sweeps idle sessions until the context ends.
func (s *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sessions) sweep() {
	cutoff := time.Now().Add(-s.idleTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for userID, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, userID)
		}
	}
}

func (s *Sessions) restore(ctx context.Context, userID string) filter.State {
	if s.redis == nil {
		return filter.Default()
	}
	data, err := s.redis.Get(ctx, filterKeyPrefix+userID).Bytes()
	if err != nil {
		return filter.Default()
	}
	var st filter.State
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("discarding corrupt persisted filter state", "user_id", userID, "error", err)
		return filter.Default()
	}
	return st
}

func (s *Sessions) persist(userID string, st filter.State) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.redis.Set(ctx, filterKeyPrefix+userID, data, s.persistTTL).Err(); err != nil {
		s.logger.Warn("persist filter state failed", "user_id", userID, "error", err)
	}
}
