//go:build !nogpu

// Package gpu implements the grayscale compute pipeline on wgpu/hal.
//
// The pipeline runs in four stages, each owned by one type:
//
//	SelectDevice -> ComputeContext -> Program -> dispatch
//
// SelectDevice walks the compute platforms (HAL backends) in preference
// order and returns the first GPU-class adapter. ComputeContext opens it and
// owns the device, queue and program for the converter's lifetime. Program
// compiles the embedded WGSL kernel through naga, keeping the compiler
// diagnostics as a build log. dispatch allocates the per-image buffers,
// uploads, binds the kernel arguments one by one, launches a width×height
// grid and reads the luminance back through a staging buffer.
//
// Every device object is pushed on a releaser when created and destroyed in
// reverse order, on success and on every error path.
//
// Tests run the whole pipeline against the HAL noop device, which performs
// no GPU work: shapes, step errors and release order are checked there,
// pixel values are checked against the CPU reference backend.
package gpu
