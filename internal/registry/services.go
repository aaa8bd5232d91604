package registry

import (
	"sort"
	"sync"

	"github.com/adred-codev/fgws/internal/protocol"
)

// ServiceRegistry assigns and tracks server-advertised services, keyed by
// service name. Mirrors ChannelRegistry: every Add call allocates a fresh
// id, even for a name/descriptor already registered.
type ServiceRegistry struct {
	mu     sync.RWMutex
	byID   map[uint32]protocol.Service
	byName map[string]uint32
	nextID uint32
}

func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		byID:   make(map[uint32]protocol.Service),
		byName: make(map[string]uint32),
		nextID: 1,
	}
}

// Add registers a service descriptor, always allocating a new id.
func (r *ServiceRegistry) Add(desc protocol.Service) protocol.Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	desc.ID = id
	r.byID[id] = desc
	r.byName[desc.Name] = id
	return desc
}

func (r *ServiceRegistry) Remove(id uint32) (protocol.Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, ok := r.byID[id]
	if !ok {
		return protocol.Service{}, false
	}
	delete(r.byID, id)
	if r.byName[svc.Name] == id {
		delete(r.byName, svc.Name)
	}
	return svc, true
}

func (r *ServiceRegistry) Get(id uint32) (protocol.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.byID[id]
	return svc, ok
}

func (r *ServiceRegistry) List() []protocol.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.Service, 0, len(r.byID))
	for _, svc := range r.byID {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
