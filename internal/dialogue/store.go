package dialogue

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("chat session not found")

// Store holds the live chat sessions of all users. Sessions are only ever
// handed out to the user that created them.
type Store struct {
	extractor Extractor
	opts      []Option

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore(ex Extractor, opts ...Option) *Store {
	return &Store{
		extractor: ex,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

func (st *Store) Create(userID string) (*Session, error) {
	if userID == "" {
		return nil, ErrMissingIdentity
	}
	s := NewSession(uuid.New().String(), userID, st.extractor, st.opts...)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	return s, nil
}

func (st *Store) Get(id, userID string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns the user's sessions, oldest first.
func (st *Store) List(userID string) []*Session {
	st.mu.Lock()
	var out []*Session
	for _, s := range st.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	st.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (st *Store) Delete(id, userID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok || s.UserID != userID {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

// DeleteUser drops every session of userID.
func (st *Store) DeleteUser(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range st.sessions {
		if s.UserID == userID {
			delete(st.sessions, id)
		}
	}
}

// completeIdleFactor stretches the idle limit for sessions holding a
// complete draft that has not been saved yet.
const completeIdleFactor = 12

// Sweep evicts sessions idle for longer than maxIdle as of now. Sessions with
// a message in flight are kept, and an unsaved complete draft survives for
// completeIdleFactor times maxIdle. It returns the number of evicted sessions.
func (st *Store) Sweep(now time.Time, maxIdle time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, s := range st.sessions {
		last, busy, complete := s.idleSince()
		limit := maxIdle
		if complete {
			limit *= completeIdleFactor
		}
		if busy || now.Sub(last) <= limit {
			continue
		}
		delete(st.sessions, id)
		n++
	}
	return n
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
