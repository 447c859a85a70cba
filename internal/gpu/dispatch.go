//go:build !nogpu

package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/grayscale"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Dispatch steps.
const (
	stepCreateBuffers = "Creating buffers"
	stepWriteInput    = "Writing to input buffer"
	stepSetArgs       = "Setting kernel arguments"
	stepEnqueue       = "Enqueueing NDRange kernel"
	stepReadOutput    = "Reading from output buffer"
)

// Status codes for size checks, as the OpenCL runtime reports them.
const (
	codeInvalidBufferSize     = -61
	codeInvalidGlobalWorkSize = -63
)

// Poll interval bounds while waiting for a submission.
const (
	pollMin = 50 * time.Microsecond
	pollMax = 5 * time.Millisecond
)

var errNotContext = errors.New("compute context is closed")

// align4 rounds n up to a multiple of four bytes.
func align4(n uint64) uint64 { return (n + 3) &^ 3 }

// Dispatch runs rgb_to_gray once over src and returns the luminance bytes.
//
// Buffers, bind group and command encoder live only for this call and are
// released in reverse creation order before it returns, on every path.
// The wait for the device is bounded by ctx and timeout.
func (c *ComputeContext) Dispatch(ctx context.Context, src *grayscale.PixelBuffer, timeout time.Duration) (*grayscale.Result, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if c.device == nil || c.program == nil {
		return nil, grayscale.NewError(grayscale.KernelLaunchFailed, stepEnqueue, errNotContext)
	}

	w, h := src.Width, src.Height
	if limit := c.limits.MaxComputeWorkgroupsPerDimension; limit > 0 &&
		(uint64(w) > uint64(limit) || uint64(h) > uint64(limit)) {
		return nil, grayscale.NewError(grayscale.KernelLaunchFailed, stepEnqueue,
			fmt.Errorf("grid %dx%d exceeds %d invocations per dimension", w, h, limit)).
			WithCode(codeInvalidGlobalWorkSize)
	}

	inSize := align4(uint64(len(src.Pix)))
	outSize := align4(uint64(w) * uint64(h))
	if err := c.checkBindingSize("rgb_to_gray_input", inSize); err != nil {
		return nil, err
	}
	if err := c.checkBindingSize("rgb_to_gray_output", outSize); err != nil {
		return nil, err
	}

	slogger().Debug("gpu: dispatch",
		"width", w, "height", h, "channels", src.Channels, "order", src.Order,
		"input_bytes", inSize, "output_bytes", outSize)

	var res releaser
	defer res.release()

	// Buffers.
	input, err := c.createBuffer(&res, "rgb_to_gray_input", inSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	output, err := c.createBuffer(&res, "rgb_to_gray_output", outSize,
		gputypes.BufferUsageStorage|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	params, err := c.createBuffer(&res, "rgb_to_gray_params", paramsSize,
		gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}
	staging, err := c.createBuffer(&res, "rgb_to_gray_staging", outSize,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return nil, err
	}

	// Upload.
	data := src.Pix
	if uint64(len(data)) != inSize {
		data = make([]byte, inSize)
		copy(data, src.Pix)
	}
	if err := c.queue.WriteBuffer(input, 0, data); err != nil {
		return nil, grayscale.NewError(grayscale.DataTransferFailed, stepWriteInput,
			fmt.Errorf("write %d bytes: %w", inSize, err))
	}

	// Arguments.
	var args kernelArgs
	if err := args.setBuffer(argInput, input, inSize); err != nil {
		return nil, err
	}
	if err := args.setBuffer(argOutput, output, outSize); err != nil {
		return nil, err
	}
	if err := args.setInt32(argWidth, int32(w)); err != nil {
		return nil, err
	}
	if err := args.setInt32(argHeight, int32(h)); err != nil {
		return nil, err
	}
	if err := args.setInt32(argChannels, int32(src.Channels)); err != nil {
		return nil, err
	}
	if err := args.setUint32(argOrder, uint32(src.Order)); err != nil {
		return nil, err
	}
	if err := args.complete(); err != nil {
		return nil, err
	}
	if err := c.queue.WriteBuffer(params, 0, args.params()); err != nil {
		return nil, grayscale.NewError(grayscale.DataTransferFailed, stepWriteInput,
			fmt.Errorf("write kernel parameters: %w", err))
	}
	group, err := c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "rgb_to_gray_bind_group",
		Layout: c.program.layout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: bindingPixels, Resource: bufferBinding(args.buffers[argInput])},
			{Binding: bindingLuma, Resource: bufferBinding(args.buffers[argOutput])},
			{Binding: bindingParams, Resource: gputypes.BufferBinding{Buffer: params.NativeHandle(), Size: paramsSize}},
		},
	})
	if err != nil {
		return nil, grayscale.NewError(grayscale.KernelArgumentBindFailed, stepSetArgs,
			fmt.Errorf("create bind group: %w", err))
	}
	res.push("bind group", func() { c.device.DestroyBindGroup(group) })

	// Launch.
	index, err := c.submit(&res, input, output, staging, group, w, h, outSize)
	if err != nil {
		return nil, err
	}

	// Readback.
	if err := waitSubmission(ctx, c.queue, index, timeout); err != nil {
		// In-flight resources must not be destroyed under the device.
		if werr := c.device.WaitIdle(); werr != nil {
			slogger().Warn("gpu: wait idle after abandoned submission", "err", werr)
		}
		return nil, grayscale.NewError(grayscale.ReadbackFailed, stepReadOutput, err)
	}
	pix, err := c.readBack(staging, outSize, w*h)
	if err != nil {
		return nil, err
	}
	return &grayscale.Result{Width: w, Height: h, Pix: pix}, nil
}

// checkBindingSize rejects a storage buffer larger than the device binds.
func (c *ComputeContext) checkBindingSize(label string, size uint64) error {
	limit := c.limits.MaxStorageBufferBindingSize
	if limit == 0 || size <= limit {
		return nil
	}
	return grayscale.NewError(grayscale.BufferAllocationFailed, stepCreateBuffers,
		fmt.Errorf("%s of %d bytes exceeds storage binding limit %d", label, size, limit)).
		WithCode(codeInvalidBufferSize)
}

func bufferBinding(b boundBuffer) gputypes.BufferBinding {
	return gputypes.BufferBinding{Buffer: b.buf.NativeHandle(), Size: b.size}
}

func (c *ComputeContext) createBuffer(res *releaser, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, grayscale.NewError(grayscale.BufferAllocationFailed, stepCreateBuffers,
			fmt.Errorf("%s (%d bytes): %w", label, size, err))
	}
	res.push(label, func() { c.device.DestroyBuffer(buf) })
	return buf, nil
}

// submit records clear, dispatch and copy-to-staging into one command
// buffer and submits it. It returns the submission index.
func (c *ComputeContext) submit(res *releaser, input, output, staging hal.Buffer,
	group hal.BindGroup, w, h int, outSize uint64,
) (uint64, error) {
	launchErr := func(what string, err error) error {
		return grayscale.NewError(grayscale.KernelLaunchFailed, stepEnqueue, fmt.Errorf("%s: %w", what, err))
	}

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "rgb_to_gray"})
	if err != nil {
		return 0, launchErr("create command encoder", err)
	}
	// The encoder owns its command buffers; destroying it frees them.
	res.push("command encoder", encoder.Destroy)

	if err := encoder.BeginEncoding("rgb_to_gray"); err != nil {
		return 0, launchErr("begin encoding", err)
	}

	encoder.ClearBuffer(output, 0, outSize)
	encoder.TransitionBuffers([]hal.BufferBarrier{
		{Buffer: output, Usage: hal.BufferUsageTransition{
			OldUsage: gputypes.BufferUsageCopyDst, NewUsage: gputypes.BufferUsageStorage}},
		{Buffer: input, Usage: hal.BufferUsageTransition{
			OldUsage: gputypes.BufferUsageCopyDst, NewUsage: gputypes.BufferUsageStorage}},
	})

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "rgb_to_gray"})
	pass.SetPipeline(c.program.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.Dispatch(uint32(w), uint32(h), 1)
	pass.End()

	encoder.TransitionBuffers([]hal.BufferBarrier{
		{Buffer: output, Usage: hal.BufferUsageTransition{
			OldUsage: gputypes.BufferUsageStorage, NewUsage: gputypes.BufferUsageCopySrc}},
	})
	encoder.CopyBufferToBuffer(output, staging, []hal.BufferCopy{{Size: outSize}})

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return 0, launchErr("end encoding", err)
	}

	index, err := c.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return 0, launchErr("submit", err)
	}
	slogger().Debug("gpu: submitted", "index", index, "grid_x", w, "grid_y", h)
	return index, nil
}

// waitSubmission polls the queue until index has completed, backing off
// from pollMin to pollMax between polls.
func waitSubmission(ctx context.Context, queue hal.Queue, index uint64, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = grayscale.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := pollMin
	timer := time.NewTimer(delay)
	defer timer.Stop()
	for queue.PollCompleted() < index {
		select {
		case <-ctx.Done():
			return fmt.Errorf("submission %d not completed: %w", index, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, pollMax)
		timer.Reset(delay)
	}
	return nil
}

// readBack maps the staging buffer and copies out the first n bytes.
func (c *ComputeContext) readBack(staging hal.Buffer, size uint64, n int) ([]byte, error) {
	mapping, err := c.device.MapBuffer(staging, 0, size)
	if err != nil {
		return nil, grayscale.NewError(grayscale.ReadbackFailed, stepReadOutput,
			fmt.Errorf("map staging buffer: %w", err))
	}
	if mapping.Ptr == nil {
		_ = c.device.UnmapBuffer(staging)
		return nil, grayscale.NewError(grayscale.ReadbackFailed, stepReadOutput,
			errors.New("map staging buffer: nil pointer"))
	}
	if !mapping.IsCoherent {
		slogger().Debug("gpu: staging mapping is not coherent")
	}

	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(mapping.Ptr), size))

	if err := c.device.UnmapBuffer(staging); err != nil {
		slogger().Warn("gpu: unmap staging buffer", "err", err)
	}
	return out, nil
}
