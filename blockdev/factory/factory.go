// Package factory provides a name-based registry of block device backend
// constructors, mirroring distribution's registry/storage/driver/factory so
// that a backend (memorydev, filedev, ...) can be selected by name from
// configuration instead of being wired in by hand.
package factory

import (
	"context"
	"fmt"

	"github.com/distribution/sealedblock/blockdev"
)

// Factory constructs a blockdev.BlockDevice from a set of named
// parameters. Parameter keys and accepted values vary by backend.
type Factory interface {
	Create(ctx context.Context, parameters map[string]interface{}) (blockdev.BlockDevice, error)
}

var factories = make(map[string]Factory)

// Register makes a backend available by name. Panics if name is already
// registered or factory is nil, matching distribution's factory.Register
// semantics (a programming error, not a runtime condition to recover from).
func Register(name string, f Factory) {
	if f == nil {
		panic("factory: nil Factory")
	}
	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("factory: backend %q already registered", name))
	}
	factories[name] = f
}

// Create constructs the named backend with the given parameters.
func Create(ctx context.Context, name string, parameters map[string]interface{}) (blockdev.BlockDevice, error) {
	f, ok := factories[name]
	if !ok {
		return nil, UnknownBackendError{Name: name}
	}
	return f.Create(ctx, parameters)
}

// UnknownBackendError records a lookup for a backend name that was never
// registered (no blank import pulled it in, or it was misspelled).
type UnknownBackendError struct {
	Name string
}

func (e UnknownBackendError) Error() string {
	return fmt.Sprintf("factory: backend not registered: %s", e.Name)
}
