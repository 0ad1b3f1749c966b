// Package history implements the History Store (spec.md §4.3): the
// per-user delivered-item set that keeps the polling loop from
// re-notifying the same marketplace item twice.
package history

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/storage"
)

// MaxEntriesPerUser is the optional FIFO cap spec.md §4.3 allows per user
// history file.
const MaxEntriesPerUser = 50000

// Store is the file-backed, per-user History Store. One LineStore per
// user id under dataDir/sent_products/, lazily created and cached.
type Store struct {
	dataDir string

	mu      sync.Mutex
	stores  map[string]*storage.LineStore
	seen    map[string]map[string]struct{} // userID -> set of item ids, in-memory cache of the file
}

// NewStore returns a Store rooted at dataDir (storage.data.dir from
// config).
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		stores:  make(map[string]*storage.LineStore),
		seen:    make(map[string]map[string]struct{}),
	}
}

func (s *Store) pathFor(userID string) string {
	return filepath.Join(s.dataDir, "sent_products", "user_"+userID+".txt")
}

func (s *Store) lineStore(userID string) *storage.LineStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, ok := s.stores[userID]; ok {
		return ls
	}
	ls := storage.NewLineStore(s.pathFor(userID))
	s.stores[userID] = ls
	return ls
}

func (s *Store) seenSet(userID string) (map[string]struct{}, error) {
	s.mu.Lock()
	if set, ok := s.seen[userID]; ok {
		s.mu.Unlock()
		return set, nil
	}
	s.mu.Unlock()

	ls := s.lineStore(userID)
	lines, err := ls.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("history: load user %s: %w", userID, err)
	}
	set := make(map[string]struct{}, len(lines))
	for _, id := range lines {
		set[id] = struct{}{}
	}

	s.mu.Lock()
	s.seen[userID] = set
	s.mu.Unlock()
	return set, nil
}

// FilterNew returns the subset of items not already present in userID's
// history, preserving input order.
func (s *Store) FilterNew(userID string, items []model.Item) ([]model.Item, error) {
	set, err := s.seenSet(userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Item, 0, len(items))
	for _, it := range items {
		if _, ok := set[it.Key()]; !ok {
			out = append(out, it)
		}
	}
	return out, nil
}

// MarkSent records itemID as delivered for userID. Per spec.md §4.3 and
// §9 ("Open Questions", resolved toward mark-before-send), callers must
// invoke MarkSent before the notification actually goes out so a crash
// between send and mark can never cause a duplicate — at worst it causes
// a missed delivery, never a double one.
func (s *Store) MarkSent(userID, itemID string) error {
	set, err := s.seenSet(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := set[itemID]; ok {
		s.mu.Unlock()
		return nil
	}
	set[itemID] = struct{}{}
	s.mu.Unlock()

	ls := s.lineStore(userID)
	return ls.AppendCapped(itemID, MaxEntriesPerUser)
}

// Clear removes all recorded history for userID.
func (s *Store) Clear(userID string) error {
	ls := s.lineStore(userID)
	if err := ls.RewriteAll(nil); err != nil {
		return fmt.Errorf("history: clear user %s: %w", userID, err)
	}
	s.mu.Lock()
	s.seen[userID] = make(map[string]struct{})
	s.mu.Unlock()
	return nil
}
