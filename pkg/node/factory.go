package node

import (
	"maps"
	"slices"
	"sync"

	"github.com/matzehuels/stratum/pkg/errors"
)

// Constructor builds a node of one kind.
type Constructor func(id string, cfg Config) Node

// Factory creates nodes by kind name. It is safe for concurrent use.
type Factory struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{ctors: make(map[string]Constructor)}
}

// DefaultFactory returns a factory with every built-in kind registered.
func DefaultFactory() *Factory {
	f := NewFactory()
	f.Register(KindConstant, NewConstant)
	f.Register(KindGradient, NewGradient)
	f.Register(KindAdd, NewAdd)
	f.Register(KindScale, NewScale)
	f.Register(KindClamp, NewClamp)
	f.Register(KindBroadcast, NewBroadcast)
	f.Register(KindReceive, NewReceive)
	return f
}

// Register adds or replaces the constructor for kind.
func (f *Factory) Register(kind string, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ctors[kind] = c
}

// New instantiates a node of the given kind. It returns an UNKNOWN_NODE_TYPE
// error when no constructor is registered for kind.
func (f *Factory) New(kind, id string, cfg Config) (Node, error) {
	f.mu.RLock()
	c, ok := f.ctors[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnknownNodeType, "unknown node type %q (known: %v)", kind, f.Kinds())
	}
	return c(id, cfg), nil
}

// Has reports whether kind is registered.
func (f *Factory) Has(kind string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.ctors[kind]
	return ok
}

// Kinds returns the registered kind names, sorted.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.ctors))
}
