//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/grayscale"
)

var errClosed = errors.New("gpu: converter is closed")

// Converter runs conversions on one ComputeContext.
//
// The device is selected and the program built once, in Open; every
// Convert call then allocates, launches and releases its own buffers.
// Conversions are serialized so the queue sees one submission at a time.
type Converter struct {
	mu      sync.Mutex
	cctx    *ComputeContext
	timeout time.Duration
}

var _ grayscale.Converter = (*Converter)(nil)

// Open selects a device (or adopts cfg.DeviceProvider) and builds the
// compute context.
func Open(cfg grayscale.Config) (*Converter, error) {
	setLogger(grayscale.Logger())

	var (
		cctx *ComputeContext
		err  error
	)
	if cfg.DeviceProvider != nil {
		cctx, err = NewComputeContextFromProvider(cfg.DeviceProvider)
	} else {
		cctx, err = openSelected(cfg)
	}
	if err != nil {
		return nil, err
	}
	return &Converter{cctx: cctx, timeout: cfg.Timeout}, nil
}

func openSelected(cfg grayscale.Config) (*ComputeContext, error) {
	platforms, err := ResolvePlatforms(cfg.Platforms)
	if err != nil {
		return nil, grayscale.NewError(grayscale.DeviceUnavailable, stepPlatform, err)
	}
	sel, err := SelectDevice(platforms, cfg.AllowSoftware)
	if err != nil {
		return nil, err
	}
	return NewComputeContext(sel)
}

// Name returns "gpu".
func (c *Converter) Name() string { return "gpu" }

// SetLogger sets the logger used by the gpu package.
func (c *Converter) SetLogger(l *slog.Logger) { setLogger(l) }

// Context returns the compute context, or nil after Close. It can be
// handed to other gogpu libraries as a gpucontext.DeviceProvider.
func (c *Converter) Context() *ComputeContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cctx
}

// Convert runs one kernel dispatch over src.
func (c *Converter) Convert(ctx context.Context, src *grayscale.PixelBuffer) (*grayscale.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cctx == nil {
		return nil, errClosed
	}
	return c.cctx.Dispatch(ctx, src, c.timeout)
}

// Close releases the compute context. It is safe to call more than once.
func (c *Converter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cctx == nil {
		return nil
	}
	err := c.cctx.Close()
	c.cctx = nil
	return err
}
