// Package registry maps message types to their handlers.
//
// Commands and queries bind exactly one handler per type; binding a second
// one fails with mediator.ErrDuplicateHandler so configuration mistakes
// surface at start-up. Events bind any number of subscribers.
package registry

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/xraph/mediator"
)

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]CommandHandler
	queries  map[string]QueryHandler
	events   map[string][]EventHandler
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		commands: make(map[string]CommandHandler),
		queries:  make(map[string]QueryHandler),
		events:   make(map[string][]EventHandler),
	}
}

// RegisterCommand binds h to typ.
func (r *Registry) RegisterCommand(typ string, h CommandHandler) error {
	if err := checkBinding(typ, isNil(h)); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[typ]; exists {
		return fmt.Errorf("%w: command %q", mediator.ErrDuplicateHandler, typ)
	}
	r.commands[typ] = h
	return nil
}

// RegisterQuery binds h to typ.
func (r *Registry) RegisterQuery(typ string, h QueryHandler) error {
	if err := checkBinding(typ, isNil(h)); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.queries[typ]; exists {
		return fmt.Errorf("%w: query %q", mediator.ErrDuplicateHandler, typ)
	}
	r.queries[typ] = h
	return nil
}

// Subscribe appends h to the subscribers of typ.
func (r *Registry) Subscribe(typ string, h EventHandler) error {
	if err := checkBinding(typ, isNil(h)); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[typ] = append(r.events[typ], h)
	return nil
}

// UnregisterCommand removes the handler for typ. It reports whether one
// was bound.
func (r *Registry) UnregisterCommand(typ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.commands[typ]
	delete(r.commands, typ)
	return ok
}

// UnregisterQuery removes the handler for typ. It reports whether one
// was bound.
func (r *Registry) UnregisterQuery(typ string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.queries[typ]
	delete(r.queries, typ)
	return ok
}

// Unsubscribe removes the subscribers of typ with the given name, or all
// of them when name is empty. It returns how many were removed.
func (r *Registry) Unsubscribe(typ, name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.events[typ]
	if name == "" {
		delete(r.events, typ)
		return len(subs)
	}
	// Copy so snapshots handed out by Subscribers stay intact.
	kept := slices.DeleteFunc(slices.Clone(subs), func(h EventHandler) bool {
		return h.Name() == name
	})
	removed := len(subs) - len(kept)
	if len(kept) == 0 {
		delete(r.events, typ)
	} else {
		r.events[typ] = kept
	}
	return removed
}

// Command resolves the handler for a command type.
func (r *Registry) Command(typ string) (CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.commands[typ]
	return h, ok
}

// Query resolves the handler for a query type.
func (r *Registry) Query(typ string) (QueryHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.queries[typ]
	return h, ok
}

// Subscribers returns a snapshot of the subscribers of typ. An empty
// result means the event is published to nobody; it is not an error.
func (r *Registry) Subscribers(typ string) []EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.events[typ])
}

// CommandTypes returns all bound command types, sorted.
func (r *Registry) CommandTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.commands)
}

// QueryTypes returns all bound query types, sorted.
func (r *Registry) QueryTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.queries)
}

// EventTypes returns all event types with at least one subscriber, sorted.
func (r *Registry) EventTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.events)
}

func checkBinding(typ string, nilHandler bool) error {
	if typ == "" {
		return mediator.ErrInvalidType
	}
	if nilHandler {
		return fmt.Errorf("%w: %q", mediator.ErrNilHandler, typ)
	}
	return nil
}

// isNil also catches nil funcs stored in a non-nil interface, which would
// otherwise register and panic on first dispatch.
func isNil(h any) bool {
	switch f := h.(type) {
	case nil:
		return true
	case CommandHandlerFunc:
		return f == nil
	case QueryHandlerFunc:
		return f == nil
	case *eventFunc:
		return f == nil || f.fn == nil
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
