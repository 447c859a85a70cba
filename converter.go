package grayscale

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownBackend is returned by Open for an unregistered backend name.
var ErrUnknownBackend = errors.New("grayscale: unknown backend")

// Converter turns a color PixelBuffer into a luminance Result.
//
// Implementations are provided by backend packages and registered by name.
// The gpu backend is enabled by blank import:
//
//	import _ "github.com/gogpu/grayscale/gpu"
//
// A Converter serializes its own conversions; it is safe to share, but
// conversions do not overlap.
type Converter interface {
	// Name returns the backend name ("gpu", "cpu", "opencl").
	Name() string

	// Convert computes the luminance of every pixel of src.
	// On error the Result is nil; there are no partial results.
	Convert(ctx context.Context, src *PixelBuffer) (*Result, error)

	// Close releases every resource held by the converter.
	Close() error
}

// Factory opens a converter for a resolved configuration.
type Factory func(cfg Config) (Converter, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// RegisterBackend registers a converter factory under name.
// Registering the same name again replaces the previous factory.
//
// Typical usage from a backend package:
//
//	func init() {
//	    grayscale.RegisterBackend("gpu", open)
//	}
func RegisterBackend(name string, f Factory) {
	if name == "" || f == nil {
		panic("grayscale: RegisterBackend with empty name or nil factory")
	}
	registryMu.Lock()
	registry[name] = f
	registryMu.Unlock()
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	registryMu.RUnlock()
	sort.Strings(names)
	return names
}

// Open opens the backend selected by the options (default "gpu").
func Open(opts ...Option) (Converter, error) {
	cfg := NewConfig(opts...)
	registryMu.RLock()
	f, ok := registry[cfg.Backend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrUnknownBackend, cfg.Backend, Backends())
	}
	c, err := f(cfg)
	if err != nil {
		return nil, err
	}
	propagateLogger(c, Logger())
	Logger().Info("grayscale: backend opened", "backend", c.Name())
	return c, nil
}

// Convert opens a converter, converts src once and releases the converter.
//
// This is the single-shot path: one device, one program build, one kernel
// invocation. Callers converting many images should Open once and reuse the
// Converter.
func Convert(ctx context.Context, src *PixelBuffer, opts ...Option) (res *Result, err error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	c, err := Open(opts...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			res, err = nil, fmt.Errorf("grayscale: close %s backend: %w", c.Name(), cerr)
		}
	}()
	return c.Convert(ctx, src)
}
