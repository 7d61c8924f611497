// Package session owns the in-memory per-user conversational state.
// State is ephemeral: it is rebuilt from scratch on restart and
// expired by the scheduler sweep.
package session

import (
	"errors"
	"sync"
	"time"
)

// HistoryLimit caps per-user history; the oldest entry is evicted first.
const HistoryLimit = 20

const shardCount = 16

var ErrInvalidModel = errors.New("unknown model")

// Record is one completed enhancement.
type Record struct {
	Input     string
	Output    string
	ModelUsed string
	Timestamp time.Time
}

// Session is a point-in-time copy of one user's state. Mutations go
// through the store; a Session never aliases store internals.
type Session struct {
	UserID     int64
	History    []Record
	Model      string
	LastActive time.Time
}

type state struct {
	history    []Record
	model      string
	lastActive time.Time
}

type shard struct {
	mu       sync.Mutex
	sessions map[int64]*state
}

// Store maps user IDs to sessions. Keys are sharded so unrelated
// users never contend on the same lock.
type Store struct {
	defaultModel string
	models       map[string]struct{}
	shards       [shardCount]shard
}

// NewStore builds a store whose SetModel accepts only the given
// closed model set. defaultModel is assigned to new sessions.
func NewStore(defaultModel string, models []string) *Store {
	s := &Store{
		defaultModel: defaultModel,
		models:       make(map[string]struct{}, len(models)),
	}
	for _, m := range models {
		s.models[m] = struct{}{}
	}
	s.models[defaultModel] = struct{}{}
	for i := range s.shards {
		s.shards[i].sessions = make(map[int64]*state)
	}
	return s
}

func (s *Store) shardFor(userID int64) *shard {
	return &s.shards[uint64(userID)%shardCount]
}

// locked returns the user's state, creating a default one if absent.
// The shard lock must be held.
func (sh *shard) locked(userID int64, defaultModel string, now time.Time) *state {
	st, ok := sh.sessions[userID]
	if !ok {
		st = &state{model: defaultModel, lastActive: now}
		sh.sessions[userID] = st
	}
	return st
}

// GetOrCreate returns a copy of the user's session, creating a
// default one on first access, and refreshes last-active.
func (s *Store) GetOrCreate(userID int64, now time.Time) Session {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.locked(userID, s.defaultModel, now)
	st.lastActive = now
	return snapshot(userID, st)
}

// Append records one enhancement, evicting the oldest entry beyond
// HistoryLimit, and refreshes last-active to the record timestamp.
func (s *Store) Append(userID int64, rec Record) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.locked(userID, s.defaultModel, rec.Timestamp)
	st.history = append(st.history, rec)
	if len(st.history) > HistoryLimit {
		st.history = st.history[len(st.history)-HistoryLimit:]
	}
	st.lastActive = rec.Timestamp
}

// SetModel switches the user's preferred model. The model must belong
// to the closed set given at construction.
func (s *Store) SetModel(userID int64, model string, now time.Time) error {
	if _, ok := s.models[model]; !ok {
		return ErrInvalidModel
	}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.locked(userID, s.defaultModel, now)
	st.model = model
	st.lastActive = now
	return nil
}

// Touch refreshes last-active without other mutation.
func (s *Store) Touch(userID int64, now time.Time) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.locked(userID, s.defaultModel, now).lastActive = now
}

// Sweep removes every session idle for longer than maxIdle and
// returns the number removed.
func (s *Store) Sweep(now time.Time, maxIdle time.Duration) int {
	removed := 0
	cutoff := now.Add(-maxIdle)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for userID, st := range sh.sessions {
			if st.lastActive.Before(cutoff) {
				delete(sh.sessions, userID)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Stats reports the live session count and total stored history
// entries across all users.
func (s *Store) Stats() (sessions int, prompts int) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sessions += len(sh.sessions)
		for _, st := range sh.sessions {
			prompts += len(st.history)
		}
		sh.mu.Unlock()
	}
	return sessions, prompts
}

func snapshot(userID int64, st *state) Session {
	history := make([]Record, len(st.history))
	copy(history, st.history)
	return Session{
		UserID:     userID,
		History:    history,
		Model:      st.model,
		LastActive: st.lastActive,
	}
}
