// Package allowlist implements the Allow-list (spec.md §4.4): the set of
// user ids authorized to run a polling loop, backed by whitelist.txt.
package allowlist

import (
	"fmt"
	"sync"

	"github.com/joestump/marketwatch/internal/storage"
)

// List is a durable, in-memory-cached set of authorized user ids.
type List struct {
	ls *storage.LineStore

	mu  sync.RWMutex
	set map[string]struct{}
}

// New returns a List backed by path (storage.data.dir/whitelist.txt). It
// eagerly loads the current contents.
func New(path string) (*List, error) {
	l := &List{ls: storage.NewLineStore(path), set: make(map[string]struct{})}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *List) reload() error {
	lines, err := l.ls.ReadAll()
	if err != nil {
		return fmt.Errorf("allowlist: load: %w", err)
	}
	set := make(map[string]struct{}, len(lines))
	for _, id := range lines {
		set[id] = struct{}{}
	}
	l.mu.Lock()
	l.set = set
	l.mu.Unlock()
	return nil
}

// Contains reports whether userID is authorized.
func (l *List) Contains(userID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.set[userID]
	return ok
}

// List returns every authorized user id, in no particular order.
func (l *List) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.set))
	for id := range l.set {
		out = append(out, id)
	}
	return out
}

// Add authorizes userID, persisting the change durably before returning
// (spec.md §4.4).
func (l *List) Add(userID string) error {
	l.mu.Lock()
	if _, ok := l.set[userID]; ok {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	if err := l.ls.Append(userID); err != nil {
		return fmt.Errorf("allowlist: add %s: %w", userID, err)
	}
	l.mu.Lock()
	l.set[userID] = struct{}{}
	l.mu.Unlock()
	return nil
}

// Remove revokes userID, persisting the change durably before returning.
func (l *List) Remove(userID string) error {
	l.mu.Lock()
	if _, ok := l.set[userID]; !ok {
		l.mu.Unlock()
		return nil
	}
	delete(l.set, userID)
	remaining := make([]string, 0, len(l.set))
	for id := range l.set {
		remaining = append(remaining, id)
	}
	l.mu.Unlock()

	if err := l.ls.RewriteAll(remaining); err != nil {
		return fmt.Errorf("allowlist: remove %s: %w", userID, err)
	}
	return nil
}
