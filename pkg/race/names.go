package race

import (
	"sync"

	"github.com/gofrs/uuid/v5"
)

// NameResolver provides display names for participants.
type NameResolver interface {
	Name(id uuid.UUID) string
}

// Names is a NameResolver fed by the host whenever a participant joins.
// Unknown participants are shown by their id.
type Names struct {
	mu    sync.RWMutex
	names map[uuid.UUID]string
}

var _ NameResolver = (*Names)(nil)

func NewNames() *Names {
	return &Names{names: make(map[uuid.UUID]string)}
}

func (n *Names) Set(id uuid.UUID, name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if name == "" {
		delete(n.names, id)
		return
	}
	n.names[id] = name
}

func (n *Names) Name(id uuid.UUID) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if name, ok := n.names[id]; ok {
		return name
	}
	return id.String()
}
