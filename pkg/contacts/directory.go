// Package contacts defines the Contact Directory collaborator. The
// engine never validates assignee ids — they flow through as opaque
// strings — but the HTTP layer resolves them to display names when it
// serves execution snapshots.
package contacts

import (
	"context"
	"sync"
)

// Contact is the directory's view of an assignee.
type Contact struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	Available bool     `json:"available"`
}

// Directory resolves assignee ids attached to user tasks.
type Directory interface {
	Resolve(ctx context.Context, id string) (Contact, bool)
}

// StaticDirectory is an in-memory Directory backed by a fixed set of
// contacts, suitable for tests and the examples. Unknown ids resolve to
// a bare contact carrying the id as its name, mirroring how the engine
// lets invalid assignees propagate.
type StaticDirectory struct {
	mu       sync.RWMutex
	contacts map[string]Contact
}

func NewStaticDirectory(contacts ...Contact) *StaticDirectory {
	d := &StaticDirectory{contacts: make(map[string]Contact, len(contacts))}
	for _, c := range contacts {
		d.contacts[c.ID] = c
	}
	return d
}

// Register adds or replaces a contact.
func (d *StaticDirectory) Register(c Contact) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contacts[c.ID] = c
}

func (d *StaticDirectory) Resolve(_ context.Context, id string) (Contact, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if c, ok := d.contacts[id]; ok {
		return c, true
	}
	return Contact{ID: id, Name: id}, false
}
