// Package grayscale converts color images to 8-bit luminance on a GPU
// compute device.
//
// # Overview
//
// The conversion is a compute-dispatch pipeline: select a GPU-class device,
// compile the rgb_to_gray kernel, stage the pixels in device memory, launch
// one invocation per pixel over a width×height grid, and read the luminance
// bytes back. Every failure is returned as an *Error naming the failed step;
// the library never exits the process.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/grayscale"
//	    _ "github.com/gogpu/grayscale/gpu" // register the gpu backend
//	)
//
//	buf, _ := grayscale.NewPixelBuffer(grayscale.Descriptor{
//	    Width: 640, Height: 480, Channels: 3, Order: grayscale.OrderBGR,
//	})
//	res, err := grayscale.Convert(ctx, buf)
//	if errors.Is(err, grayscale.DeviceUnavailable) {
//	    res, err = grayscale.Convert(ctx, buf, grayscale.WithBackend("cpu"))
//	}
//
// # Backends
//
//   - gpu: wgpu HAL compute pipeline (import github.com/gogpu/grayscale/gpu)
//   - cpu: bit-compatible reference on a worker pool (always registered)
//   - opencl: OpenCL host path (build with -tags opencl)
//
// # Luminance
//
// Each output byte is 0.299*R + 0.587*G + 0.114*B evaluated in single
// precision and truncated. Channel order (BGR or RGB) is part of the
// Descriptor and is passed to the kernel as an argument.
package grayscale

// Version is the current version of the module.
const Version = "0.1.0"
