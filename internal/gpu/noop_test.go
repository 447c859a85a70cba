//go:build !nogpu

package gpu

import (
	"errors"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// createNoopDevice returns a noop device and queue with cleanup.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

// noopSelection returns a Selection for the noop adapter, as if it had been
// picked by SelectDevice.
func noopSelection(t *testing.T) *Selection {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		t.Fatal("noop instance has no adapters")
	}
	return &Selection{Instance: instance, Adapter: adapters[0], Platform: gputypes.BackendEmpty}
}

// fakeBackend is a platform whose adapters report deviceType. It wraps
// the noop backend so every device operation succeeds.
type fakeBackend struct {
	variant    gputypes.Backend
	deviceType gputypes.DeviceType
	name       string
	failCreate bool
}

func (b fakeBackend) Variant() gputypes.Backend { return b.variant }

func (b fakeBackend) CreateInstance(desc *hal.InstanceDescriptor) (hal.Instance, error) {
	if b.failCreate {
		return nil, errors.New("fake: no driver")
	}
	inner, err := noop.API{}.CreateInstance(desc)
	if err != nil {
		return nil, err
	}
	return &fakeInstance{Instance: inner, backend: b}, nil
}

type fakeInstance struct {
	hal.Instance
	backend fakeBackend
}

func (i *fakeInstance) EnumerateAdapters(surface hal.Surface) []hal.ExposedAdapter {
	adapters := i.Instance.EnumerateAdapters(surface)
	for j := range adapters {
		adapters[j].Info.DeviceType = i.backend.deviceType
		adapters[j].Info.Backend = i.backend.variant
		if i.backend.name != "" {
			adapters[j].Info.Name = i.backend.name
		}
	}
	return adapters
}

// failingAdapter is a noop adapter whose Open returns a fixed result.
// It records the limits it was opened with.
type failingAdapter struct {
	noop.Adapter
	err     error
	noQueue bool
	opened  gputypes.Limits
}

func (a *failingAdapter) Open(f gputypes.Features, l gputypes.Limits) (hal.OpenDevice, error) {
	a.opened = l
	if a.err != nil {
		return hal.OpenDevice{}, a.err
	}
	open, err := a.Adapter.Open(f, l)
	if a.noQueue {
		open.Queue = nil
	}
	return open, err
}

// eventLog records device object lifetimes in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// recordingDevice wraps a noop device and logs every create and destroy
// of the objects the kernel uses. failBuffer makes the n-th CreateBuffer
// call (1-based) fail.
type recordingDevice struct {
	hal.Device
	log        *eventLog
	failBuffer int
	nBuffers   int
	names      map[any]string
}

func newRecordingDevice(inner hal.Device) *recordingDevice {
	return &recordingDevice{Device: inner, log: &eventLog{}, names: map[any]string{}}
}

func (d *recordingDevice) created(obj any, name string) {
	d.names[obj] = name
	d.log.add("create " + name)
}

func (d *recordingDevice) destroyed(obj any) {
	d.log.add("destroy " + d.names[obj])
}

func (d *recordingDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.nBuffers++
	if d.failBuffer > 0 && d.nBuffers == d.failBuffer {
		return nil, errors.New("fake: out of device memory")
	}
	b, err := d.Device.CreateBuffer(desc)
	if err == nil {
		d.created(b, desc.Label)
	}
	return b, err
}

func (d *recordingDevice) DestroyBuffer(b hal.Buffer) {
	d.destroyed(b)
	d.Device.DestroyBuffer(b)
}

// tagged gives a noop placeholder a distinct identity; noop resources are
// zero sized and may share an address.
type tagged struct {
	hal.Resource
	name string
}

func (d *recordingDevice) tag(r hal.Resource, err error, name string) (*tagged, error) {
	if err != nil {
		return nil, err
	}
	t := &tagged{Resource: r, name: name}
	d.created(t, name)
	return t, nil
}

func (d *recordingDevice) release(r hal.Resource) {
	d.destroyed(r)
	if t, ok := r.(*tagged); ok {
		t.Resource.Destroy()
	}
}

func (d *recordingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	g, err := d.Device.CreateBindGroup(desc)
	t, err := d.tag(g, err, "bind group")
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *recordingDevice) DestroyBindGroup(g hal.BindGroup) { d.release(g) }

func (d *recordingDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	m, err := d.Device.CreateShaderModule(desc)
	t, err := d.tag(m, err, "shader module")
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *recordingDevice) DestroyShaderModule(m hal.ShaderModule) { d.release(m) }

func (d *recordingDevice) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor) (hal.BindGroupLayout, error) {
	l, err := d.Device.CreateBindGroupLayout(desc)
	t, err := d.tag(l, err, "bind group layout")
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *recordingDevice) DestroyBindGroupLayout(l hal.BindGroupLayout) { d.release(l) }

func (d *recordingDevice) CreatePipelineLayout(desc *hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	l, err := d.Device.CreatePipelineLayout(desc)
	t, err := d.tag(l, err, "pipeline layout")
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *recordingDevice) DestroyPipelineLayout(l hal.PipelineLayout) { d.release(l) }

func (d *recordingDevice) CreateComputePipeline(desc *hal.ComputePipelineDescriptor) (hal.ComputePipeline, error) {
	p, err := d.Device.CreateComputePipeline(desc)
	t, err := d.tag(p, err, "compute pipeline")
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *recordingDevice) DestroyComputePipeline(p hal.ComputePipeline) { d.release(p) }

func (d *recordingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	e, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	re := &recordingEncoder{CommandEncoder: e, dev: d}
	d.created(re, "command encoder")
	return re, nil
}

type recordingEncoder struct {
	hal.CommandEncoder
	dev *recordingDevice
}

func (e *recordingEncoder) Destroy() {
	e.dev.destroyed(e)
	e.CommandEncoder.Destroy()
}

// stalledQueue never reports a submission as completed.
type stalledQueue struct {
	hal.Queue
}

func (stalledQueue) PollCompleted() uint64 { return 0 }

// testProvider shares a device the way a gogpu application does.
type testProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p testProvider) HalDevice() any { return p.device }
func (p testProvider) HalQueue() any  { return p.queue }
