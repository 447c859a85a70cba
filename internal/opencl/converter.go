//go:build opencl

// Package opencl is the OpenCL host path of the rgb_to_gray conversion.
//
// It runs the kernel through an OpenCL runtime and registers itself as the
// "opencl" backend. Build with -tags opencl; it needs an OpenCL ICD loader
// at link time.
package opencl

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/gogpu/grayscale"
	"github.com/jgillich/go-opencl/cl"
)

//go:embed rgb_to_gray.cl
var kernelSource string

const kernelName = "rgb_to_gray"

var errNoDevice = errors.New("no OpenCL GPU device found")

func init() {
	grayscale.RegisterBackend("opencl", func(cfg grayscale.Config) (grayscale.Converter, error) {
		c, err := Open()
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Converter owns an OpenCL context, queue and built kernel on one GPU
// device.
type Converter struct {
	mu      sync.Mutex
	log     *slog.Logger
	device  *cl.Device
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernel  *cl.Kernel
}

var _ grayscale.Converter = (*Converter)(nil)

// Open takes the first GPU device of the first platform that has one,
// creates its context and queue, and builds the kernel.
func Open() (*Converter, error) {
	c := &Converter{log: grayscale.Logger()}

	platforms, err := cl.GetPlatforms()
	if err != nil || len(platforms) == 0 {
		if err == nil {
			err = errors.New("no OpenCL platform")
		}
		return nil, grayscale.NewError(grayscale.DeviceUnavailable, "Getting platform", err)
	}
	for _, p := range platforms {
		devices, derr := p.GetDevices(cl.DeviceTypeGPU)
		if derr != nil && derr != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			c.device = devices[0]
			break
		}
	}
	if c.device == nil {
		return nil, grayscale.NewError(grayscale.DeviceUnavailable, "Getting device", errNoDevice)
	}

	c.context, err = cl.CreateContext([]*cl.Device{c.device})
	if err != nil {
		return nil, grayscale.NewError(grayscale.ContextCreationFailed, "Creating context", err)
	}
	c.queue, err = c.context.CreateCommandQueue(c.device, 0)
	if err != nil {
		c.Close()
		return nil, grayscale.NewError(grayscale.QueueCreationFailed, "Creating command queue", err)
	}
	c.program, err = c.context.CreateProgramWithSource([]string{kernelSource})
	if err != nil {
		c.Close()
		return nil, grayscale.NewError(grayscale.ProgramBuildFailed, "Creating program", err)
	}
	if err := c.program.BuildProgram([]*cl.Device{c.device}, ""); err != nil {
		c.Close()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, grayscale.NewBuildError("Building program", string(buildErr), err)
		}
		return nil, grayscale.NewBuildError("Building program", err.Error(), err)
	}
	c.kernel, err = c.program.CreateKernel(kernelName)
	if err != nil {
		c.Close()
		return nil, grayscale.NewError(grayscale.ProgramBuildFailed, "Creating kernel", err)
	}

	c.log.Info("opencl: device selected", "name", c.device.Name(), "vendor", c.device.Vendor())
	return c, nil
}

// Name returns "opencl".
func (c *Converter) Name() string { return "opencl" }

// SetLogger sets the converter's logger.
func (c *Converter) SetLogger(l *slog.Logger) {
	c.mu.Lock()
	c.log = l
	c.mu.Unlock()
}

// Convert runs one NDRange of width x height work items over src. The
// blocking read at the end is the only synchronization point; ctx is
// checked before the launch.
func (c *Converter) Convert(ctx context.Context, src *grayscale.PixelBuffer) (*grayscale.Result, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kernel == nil {
		return nil, grayscale.NewError(grayscale.KernelLaunchFailed, "Enqueueing NDRange kernel",
			errors.New("converter is closed"))
	}

	w, h := src.Width, src.Height
	n := w * h

	input, err := c.context.CreateEmptyBuffer(cl.MemReadOnly, len(src.Pix))
	if err != nil {
		return nil, grayscale.NewError(grayscale.BufferAllocationFailed, "Creating buffers", err)
	}
	defer input.Release()
	output, err := c.context.CreateEmptyBuffer(cl.MemWriteOnly, n)
	if err != nil {
		return nil, grayscale.NewError(grayscale.BufferAllocationFailed, "Creating buffers", err)
	}
	defer output.Release()

	ev, err := c.queue.EnqueueWriteBuffer(input, true, 0, len(src.Pix), unsafe.Pointer(&src.Pix[0]), nil)
	if err != nil {
		return nil, grayscale.NewError(grayscale.DataTransferFailed, "Writing to input buffer", err)
	}
	releaseEvent(ev)

	if err := c.setArgs(input, output, src); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, grayscale.NewError(grayscale.KernelLaunchFailed, "Enqueueing NDRange kernel", err)
	}

	ev, err = c.queue.EnqueueNDRangeKernel(c.kernel, nil, []int{w, h}, nil, nil)
	if err != nil {
		return nil, grayscale.NewError(grayscale.KernelLaunchFailed, "Enqueueing NDRange kernel", err)
	}
	releaseEvent(ev)
	c.log.Debug("opencl: kernel enqueued", "width", w, "height", h, "channels", src.Channels)

	out := make([]byte, n)
	ev, err = c.queue.EnqueueReadBuffer(output, true, 0, n, unsafe.Pointer(&out[0]), nil)
	if err != nil {
		return nil, grayscale.NewError(grayscale.ReadbackFailed, "Reading from output buffer", err)
	}
	releaseEvent(ev)

	return &grayscale.Result{Width: w, Height: h, Pix: out}, nil
}

func (c *Converter) setArgs(input, output *cl.MemObject, src *grayscale.PixelBuffer) error {
	bind := func(index int, err error) error {
		if err != nil {
			return grayscale.NewArgError(index, fmt.Errorf("set kernel argument: %w", err))
		}
		return nil
	}
	if err := bind(0, c.kernel.SetArgBuffer(0, input)); err != nil {
		return err
	}
	if err := bind(1, c.kernel.SetArgBuffer(1, output)); err != nil {
		return err
	}
	if err := bind(2, c.kernel.SetArgInt32(2, int32(src.Width))); err != nil {
		return err
	}
	if err := bind(3, c.kernel.SetArgInt32(3, int32(src.Height))); err != nil {
		return err
	}
	if err := bind(4, c.kernel.SetArgInt32(4, int32(src.Channels))); err != nil {
		return err
	}
	return bind(5, c.kernel.SetArgInt32(5, int32(src.Order)))
}

func releaseEvent(ev *cl.Event) {
	if ev != nil {
		ev.Release()
	}
}

// Close releases kernel, program, queue and context in that order.
func (c *Converter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kernel != nil {
		c.kernel.Release()
		c.kernel = nil
	}
	if c.program != nil {
		c.program.Release()
		c.program = nil
	}
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.context != nil {
		c.context.Release()
		c.context = nil
	}
	return nil
}
