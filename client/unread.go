package client

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Store is the viewer-local key/value scope that backs read markers
// (the equivalent of browser local storage). Not shared across devices
// or sessions unless the backing store is.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// UnreadTracker keeps a per-viewer, per-ticket "has been opened" flag,
// independent of any server state.
//
// A ticket is unread until its detail view is opened, then read
// forever: a read ticket does NOT revert to unread when new messages
// arrive. That is a known limitation of the design, kept deliberately.
type UnreadTracker struct {
	store Store
}

func NewUnreadTracker(store Store) *UnreadTracker {
	return &UnreadTracker{store: store}
}

func readKey(ticketID int64) string {
	return fmt.Sprintf("ticket_read_%d", ticketID)
}

// IsUnread reports whether the viewer has never opened the ticket.
func (u *UnreadTracker) IsUnread(ticketID int64) bool {
	value, ok := u.store.Get(readKey(ticketID))
	return !ok || value != "true"
}

// MarkRead records that the viewer opened the ticket's detail view.
func (u *UnreadTracker) MarkRead(ticketID int64) error {
	return u.store.Set(readKey(ticketID), "true")
}

/*
|--------------------------------------------------------------------------
| STORES
|--------------------------------------------------------------------------
*/

// MemoryStore is a process-lifetime Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}

// FileStore persists the key/value scope as a JSON file, giving read
// markers the same lifetime as the viewer's local profile.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

func NewFileStore(path string) (*FileStore, error) {
	store := &FileStore{
		path:   path,
		values: make(map[string]string),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &store.values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return store, nil
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}
