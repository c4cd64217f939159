package service

import (
	"fmt"
	"sort"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

// Handler projects a single event onto an inventory.
type Handler func(event domain.Event, inventory *domain.Inventory) error

// Registration binds one handler to a set of event kinds.
type Registration struct {
	Kinds   []domain.EventKind
	Handler Handler
}

func On(handler Handler, kinds ...domain.EventKind) Registration {
	return Registration{Kinds: kinds, Handler: handler}
}

// Registry is the dispatch table from event kind to handler. It is built once
// and never changes afterwards, so one value can be shared by every
// aggregation run.
type Registry struct {
	handlers map[domain.EventKind]Handler
}

// NewRegistry builds a registry from an explicit list of registrations. A kind
// registered twice or a nil handler is a programming error.
func NewRegistry(registrations ...Registration) (*Registry, error) {
	handlers := make(map[domain.EventKind]Handler)
	for _, reg := range registrations {
		if reg.Handler == nil {
			return nil, fmt.Errorf("nil handler for kinds %v", reg.Kinds)
		}
		for _, kind := range reg.Kinds {
			if _, exists := handlers[kind]; exists {
				return nil, fmt.Errorf("duplicate handler for %s", kind)
			}
			handlers[kind] = reg.Handler
		}
	}
	return &Registry{handlers: handlers}, nil
}

func MustNewRegistry(registrations ...Registration) *Registry {
	r, err := NewRegistry(registrations...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry covers every kind in domain.EventKinds.
func DefaultRegistry() *Registry {
	return MustNewRegistry(
		On(handleInventoryEvent, domain.MovementKinds()...),
		On(handleAuditEvent, domain.KindAudit),
		On(handleSnapshotEvent, domain.KindSnapshot),
	)
}

func (r *Registry) Lookup(kind domain.EventKind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds in lexical order.
func (r *Registry) Kinds() []domain.EventKind {
	kinds := make([]domain.EventKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
