// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/grayscale"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Context creation steps.
const (
	stepCreateContext = "Creating context"
	stepCreateQueue   = "Creating command queue"
)

var errNoQueue = errors.New("device has no command queue")

// selfTestTimeout bounds the known-answer dispatch run on CPU adapters.
const selfTestTimeout = 5 * time.Second

// ComputeContext owns one compute device, its queue and the compiled
// rgb_to_gray program.
//
// Everything the context creates is released in reverse creation order by
// Close. A context built from an external provider does not own the device
// and leaves it alive on Close.
type ComputeContext struct {
	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    hal.Queue
	info     gputypes.AdapterInfo
	limits   gputypes.Limits
	external bool

	program *Program
	res     releaser
}

var _ gpucontext.DeviceProvider = (*ComputeContext)(nil)

// NewComputeContext opens the selected adapter and builds the kernel
// program. It takes ownership of sel.Instance: on error everything created
// so far, the instance included, has been destroyed.
func NewComputeContext(sel *Selection) (*ComputeContext, error) {
	c := &ComputeContext{
		instance: sel.Instance,
		adapter:  sel.Adapter.Adapter,
		info:     sel.Adapter.Info,
		limits:   sel.Adapter.Capabilities.Limits,
	}
	if sel.Instance != nil {
		c.res.push("instance", sel.Instance.Destroy)
	}
	if c.limits.MaxComputeWorkgroupsPerDimension == 0 {
		c.limits = gputypes.DefaultLimits()
	}

	open, err := c.adapter.Open(gputypes.Features(0), c.limits)
	if err != nil {
		c.res.release()
		return nil, grayscale.NewError(grayscale.ContextCreationFailed, stepCreateContext,
			fmt.Errorf("open adapter %q: %w", c.info.Name, err))
	}
	c.device = open.Device
	c.res.push("device", open.Device.Destroy)

	if open.Queue == nil {
		c.res.release()
		return nil, grayscale.NewError(grayscale.QueueCreationFailed, stepCreateQueue, errNoQueue)
	}
	c.queue = open.Queue

	if err := c.buildProgram(); err != nil {
		c.res.release()
		return nil, err
	}
	if c.info.DeviceType == gputypes.DeviceTypeCPU {
		if err := c.selfTest(); err != nil {
			_ = c.Close()
			return nil, grayscale.NewError(grayscale.DeviceUnavailable, stepDevice,
				fmt.Errorf("adapter %q: %w", c.info.Name, err))
		}
	}
	return c, nil
}

// selfTest converts a single red pixel and compares it with Luma. CPU
// adapters interpret the kernel in software and may lack instructions it
// relies on, which shows up as wrong output rather than an error.
func (c *ComputeContext) selfTest() error {
	src := &grayscale.PixelBuffer{
		Descriptor: grayscale.Descriptor{Width: 1, Height: 1, Channels: 3, Order: grayscale.OrderRGB},
		Pix:        []byte{255, 0, 0},
	}
	res, err := c.Dispatch(context.Background(), src, selfTestTimeout)
	if err != nil {
		return fmt.Errorf("known-answer dispatch: %w", err)
	}
	if want := grayscale.Luma(255, 0, 0); res.Pix[0] != want {
		return fmt.Errorf("known-answer dispatch returned %d, want %d", res.Pix[0], want)
	}
	slogger().Debug("gpu: known-answer dispatch passed", "adapter", c.info.Name)
	return nil
}

// NewComputeContextFromProvider builds the program on a device shared by
// an external provider. The provider must implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. If it is also a
// gpucontext.DeviceProvider its adapter info is reported.
func NewComputeContextFromProvider(provider any) (*ComputeContext, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, grayscale.NewError(grayscale.ContextCreationFailed, stepCreateContext,
			errors.New("provider does not expose HAL types"))
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, grayscale.NewError(grayscale.ContextCreationFailed, stepCreateContext,
			errors.New("provider HalDevice is not hal.Device"))
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, grayscale.NewError(grayscale.QueueCreationFailed, stepCreateQueue,
			errors.New("provider HalQueue is not hal.Queue"))
	}

	c := &ComputeContext{
		device:   device,
		queue:    queue,
		limits:   gputypes.DefaultLimits(),
		external: true,
	}
	if dp, ok := provider.(gpucontext.DeviceProvider); ok {
		ai := dp.AdapterInfo()
		c.info = gputypes.AdapterInfo{Name: ai.Name, DeviceType: deviceTypeOf(ai.Type)}
		if a, ok := dp.Adapter().(hal.Adapter); ok {
			c.adapter = a
		}
	}

	if err := c.buildProgram(); err != nil {
		c.res.release()
		return nil, err
	}
	slogger().Info("gpu: using shared device", "name", c.info.Name)
	return c, nil
}

func (c *ComputeContext) buildProgram() error {
	var scope releaser
	p, err := newProgram(c.device, rgbToGraySource, &scope)
	if err != nil {
		scope.release()
		return err
	}
	c.program = p
	c.res.adopt(&scope)
	return nil
}

// Close releases the program, the device (unless shared) and the instance,
// in that order. It is safe to call more than once.
func (c *ComputeContext) Close() error {
	if c.device != nil {
		if err := c.device.WaitIdle(); err != nil {
			slogger().Warn("gpu: wait idle before release", "err", err)
		}
	}
	c.res.release()
	c.program = nil
	c.device = nil
	c.queue = nil
	return nil
}

// Limits returns the limits the kernel dispatch is checked against.
func (c *ComputeContext) Limits() gputypes.Limits { return c.limits }

// Info returns the adapter description.
func (c *ComputeContext) Info() gputypes.AdapterInfo { return c.info }

// External reports whether the device is owned by someone else.
func (c *ComputeContext) External() bool { return c.external }

// Device returns the hal.Device.
func (c *ComputeContext) Device() gpucontext.Device { return c.device }

// Queue returns the hal.Queue.
func (c *ComputeContext) Queue() gpucontext.Queue { return c.queue }

// Adapter returns the hal.Adapter, or nil for a shared device whose
// provider did not report one.
func (c *ComputeContext) Adapter() gpucontext.Adapter { return c.adapter }

// SurfaceFormat returns TextureFormatUndefined; the context is headless.
func (c *ComputeContext) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatUndefined
}

// AdapterInfo reports the adapter name and class.
func (c *ComputeContext) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: c.info.Name, Type: adapterTypeOf(c.info.DeviceType)}
}

// HalDevice returns the device for libraries following the HalDevice
// provider convention.
func (c *ComputeContext) HalDevice() any { return c.device }

// HalQueue returns the queue for libraries following the HalQueue
// provider convention.
func (c *ComputeContext) HalQueue() any { return c.queue }

func adapterTypeOf(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

func deviceTypeOf(t gpucontext.AdapterType) gputypes.DeviceType {
	switch t {
	case gpucontext.AdapterTypeDiscrete:
		return gputypes.DeviceTypeDiscreteGPU
	case gpucontext.AdapterTypeIntegrated:
		return gputypes.DeviceTypeIntegratedGPU
	case gpucontext.AdapterTypeSoftware:
		return gputypes.DeviceTypeCPU
	default:
		return gputypes.DeviceTypeOther
	}
}
