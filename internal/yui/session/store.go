package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// entry pairs a session with the mutex that serialises its updates.
type entry struct {
	mu      sync.Mutex
	session Session
}

// Store maps user identities to sessions. It is safe for concurrent use:
// updates to one user's session are serialised by that user's own mutex, so
// two overlapping turns of the same user cannot lose each other's context,
// while different users never block each other.
type Store struct {
	items *cache.Cache
	now   func() time.Time
}

// NewStore returns an empty store. Entries never expire.
func NewStore() *Store {
	return &Store{
		items: cache.New(cache.NoExpiration, 0),
		now:   time.Now,
	}
}

// entryFor returns the user's entry, creating it lazily.
func (s *Store) entryFor(userID string) *entry {
	if v, ok := s.items.Get(userID); ok {
		return v.(*entry)
	}
	now := s.now()
	e := &entry{session: Session{
		UserID:    userID,
		Mode:      DefaultMode,
		CreatedAt: now,
		UpdatedAt: now,
	}}
	// Add fails when another goroutine created the entry first; use theirs.
	if err := s.items.Add(userID, e, cache.NoExpiration); err != nil {
		v, _ := s.items.Get(userID)
		return v.(*entry)
	}
	return e
}

// Get returns a snapshot of the user's session, or the default session when
// the user has none. Get never creates a session.
func (s *Store) Get(userID string) Session {
	v, ok := s.items.Get(userID)
	if !ok {
		return Session{UserID: userID, Mode: DefaultMode}
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.clone()
}

// Update runs fn with exclusive access to the user's session, creating the
// session first if needed. Changes fn makes are kept even when it returns an
// error.
func (s *Store) Update(userID string, fn func(*Session) error) error {
	e := s.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	err := fn(&e.session)
	e.session.UpdatedAt = s.now()
	return err
}

// SetMode selects mode for the user without touching the context.
func (s *Store) SetMode(userID string, mode Mode) {
	_ = s.Update(userID, func(sess *Session) error {
		sess.Mode = mode
		return nil
	})
}

// CycleMode advances the user's mode one step through the cycle and returns
// the new mode.
func (s *Store) CycleMode(userID string) Mode {
	var next Mode
	_ = s.Update(userID, func(sess *Session) error {
		sess.Mode = sess.Mode.Next()
		next = sess.Mode
		return nil
	})
	return next
}

// ClearContext drops the user's dialogue context; the mode is preserved.
func (s *Store) ClearContext(userID string) {
	_ = s.Update(userID, func(sess *Session) error {
		sess.Context = nil
		return nil
	})
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	return s.items.ItemCount()
}
