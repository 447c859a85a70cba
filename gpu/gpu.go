//go:build !nogpu

// Package gpu registers the "gpu" grayscale backend.
//
// The backend runs the rgb_to_gray compute kernel through the wgpu HAL on
// the first GPU-class device found on Vulkan, Metal, DX12 or GL. Importing
// this package also registers every HAL backend available on the platform.
//
// If no GPU-class device exists, opening the backend fails with
// grayscale.DeviceUnavailable; there is no silent CPU fallback. With
// grayscale.WithSoftwareAdapters the pure-Go software adapter may be
// selected ("software" platform); it must first convert a known pixel
// correctly.
//
// Usage:
//
//	import _ "github.com/gogpu/grayscale/gpu" // enable the gpu backend
package gpu

import (
	"github.com/gogpu/grayscale"
	gpuimpl "github.com/gogpu/grayscale/internal/gpu"

	_ "github.com/gogpu/wgpu/hal/allbackends"
)

func init() {
	grayscale.RegisterBackend("gpu", func(cfg grayscale.Config) (grayscale.Converter, error) {
		c, err := gpuimpl.Open(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

// Device describes an adapter seen on a compute platform.
type Device = gpuimpl.DeviceInfo

// Devices lists the adapters of the given platforms (all known platforms
// when names is empty). GPUClass reports whether an adapter can be
// selected for conversion.
func Devices(names []string, allowSoftware bool) ([]Device, error) {
	platforms, err := gpuimpl.ResolvePlatforms(names)
	if err != nil {
		return nil, err
	}
	return gpuimpl.EnumerateDevices(platforms, allowSoftware), nil
}

// SetDeviceProvider returns an option that shares a GPU device from an
// external provider (e.g., gogpu) instead of selecting one.
//
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The converter never destroys a shared device.
func SetDeviceProvider(provider any) grayscale.Option {
	return grayscale.WithDeviceProvider(provider)
}
