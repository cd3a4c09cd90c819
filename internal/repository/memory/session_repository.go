package memory

import (
	"context"
	"sync"
	"time"

	"kbchat-be/internal/entity"
	"kbchat-be/internal/repository/contract"

	"github.com/patrickmn/go-cache"
)

var _ contract.SessionRepository = (*SessionRepository)(nil)

type sessionEntry struct {
	mu    sync.Mutex
	turns []entity.ChatTurn
	// set once the entry left the cache; writers must fetch a fresh one
	dead bool
}

// SessionRepository holds chat histories in process memory. Idle sessions
// expire after ttl and each history is capped at maxTurns, oldest first out.
type SessionRepository struct {
	cache    *cache.Cache
	maxTurns int

	// guards entry creation so two first messages don't race
	createMu sync.Mutex
}

func NewSessionRepository(ttl time.Duration, maxTurns int) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	// Purge expired sessions every ttl/6, but no more often than once a minute
	cleanup := ttl / 6
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &SessionRepository{
		cache:    cache.New(ttl, cleanup),
		maxTurns: maxTurns,
	}
}

func (r *SessionRepository) Append(_ context.Context, sessionID string, turns ...entity.ChatTurn) error {
	for {
		if r.appendTo(r.getOrCreate(sessionID), sessionID, turns) {
			return nil
		}
	}
}

// appendTo reports false when entry was cleared or expired after it was
// looked up, in which case nothing was written.
func (r *SessionRepository) appendTo(entry *sessionEntry, sessionID string, turns []entity.ChatTurn) bool {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if x, found := r.cache.Get(sessionID); entry.dead || !found || x.(*sessionEntry) != entry {
		entry.dead = true
		return false
	}

	entry.turns = append(entry.turns, turns...)
	if r.maxTurns > 0 && len(entry.turns) > r.maxTurns {
		trimmed := make([]entity.ChatTurn, r.maxTurns)
		copy(trimmed, entry.turns[len(entry.turns)-r.maxTurns:])
		entry.turns = trimmed
	}

	// Re-set to slide the expiration window
	r.cache.Set(sessionID, entry, cache.DefaultExpiration)
	return true
}

func (r *SessionRepository) GetHistory(_ context.Context, sessionID string) ([]entity.ChatTurn, error) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return []entity.ChatTurn{}, nil
	}
	entry := x.(*sessionEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]entity.ChatTurn, len(entry.turns))
	copy(out, entry.turns)
	return out, nil
}

func (r *SessionRepository) Clear(_ context.Context, sessionID string) error {
	x, found := r.cache.Get(sessionID)
	if !found {
		r.cache.Delete(sessionID)
		return nil
	}
	entry := x.(*sessionEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.dead = true
	entry.turns = nil
	r.cache.Delete(sessionID)
	return nil
}

// Count returns the number of live sessions.
func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}

func (r *SessionRepository) getOrCreate(sessionID string) *sessionEntry {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*sessionEntry)
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()
	if x, found := r.cache.Get(sessionID); found {
		return x.(*sessionEntry)
	}
	entry := &sessionEntry{}
	r.cache.Set(sessionID, entry, cache.DefaultExpiration)
	return entry
}
