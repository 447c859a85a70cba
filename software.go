package grayscale

import (
	"context"
	"sync"

	"github.com/gogpu/grayscale/internal/parallel"
)

func init() {
	RegisterBackend("cpu", func(cfg Config) (Converter, error) {
		return NewSoftwareConverter(cfg.Workers), nil
	})
}

// SoftwareConverter is the CPU reference backend.
//
// It evaluates the same per-pixel formula as the device kernel, with the
// same single precision rounding and truncation, so its output is byte
// identical to a correct GPU run. Rows are split into bands that run on a
// worker pool; each band writes a disjoint slice of the result.
type SoftwareConverter struct {
	mu   sync.Mutex
	pool *parallel.WorkerPool
}

var _ Converter = (*SoftwareConverter)(nil)

// NewSoftwareConverter returns a CPU converter using the given number of
// workers (GOMAXPROCS when workers <= 0).
func NewSoftwareConverter(workers int) *SoftwareConverter {
	return &SoftwareConverter{pool: parallel.NewWorkerPool(workers)}
}

func (c *SoftwareConverter) Name() string { return "cpu" }

// Convert computes the luminance of src. It stops between bands when ctx
// is done and returns ctx.Err().
func (c *SoftwareConverter) Convert(ctx context.Context, src *PixelBuffer) (*Result, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, src.Pixels())
	bands := parallel.Bands(src.Height, c.pool.Workers()*2)
	work := make([]func(), len(bands))
	for i, band := range bands {
		work[i] = func() { convertRows(src, out, band.Y0, band.Y1) }
	}
	if err := c.pool.ExecuteAll(ctx, work); err != nil {
		return nil, err
	}
	return &Result{Width: src.Width, Height: src.Height, Pix: out}, nil
}

// Close waits for a conversion in progress, then stops the worker pool.
func (c *SoftwareConverter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool.Close()
	return nil
}

func convertRows(src *PixelBuffer, out []byte, y0, y1 int) {
	w, ch := src.Width, src.Channels
	for y := y0; y < y1; y++ {
		row := y * w
		for x := range w {
			out[row+x] = lumaAt(src.Pix, (row+x)*ch, ch, src.Order)
		}
	}
}
