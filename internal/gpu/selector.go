// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/grayscale"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Step descriptions for device discovery.
const (
	stepPlatform = "Getting platform"
	stepDevice   = "Getting device"
)

var (
	errNoPlatform = errors.New("no compute platform available")
	errNoDevice   = errors.New("no GPU-class device found")
)

// defaultPlatforms is the search order when no platforms are configured.
var defaultPlatforms = []gputypes.Backend{
	gputypes.BackendVulkan,
	gputypes.BackendMetal,
	gputypes.BackendDX12,
	gputypes.BackendGL,
}

var platformNames = map[string]gputypes.Backend{
	"vulkan":   gputypes.BackendVulkan,
	"metal":    gputypes.BackendMetal,
	"dx12":     gputypes.BackendDX12,
	"gl":       gputypes.BackendGL,
	"empty":    gputypes.BackendEmpty,
	"software": gputypes.BackendEmpty,
}

// ParsePlatform maps a platform name to its HAL backend variant.
func ParsePlatform(name string) (gputypes.Backend, error) {
	b, ok := platformNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("gpu: unknown platform %q", name)
	}
	return b, nil
}

// ResolvePlatforms returns the registered HAL backends for names, in order.
// Empty names means the default order. Platforms that are known but not
// compiled in are skipped.
func ResolvePlatforms(names []string) ([]hal.Backend, error) {
	variants := defaultPlatforms
	if len(names) > 0 {
		variants = make([]gputypes.Backend, 0, len(names))
		for _, name := range names {
			v, err := ParsePlatform(name)
			if err != nil {
				return nil, err
			}
			variants = append(variants, v)
		}
	}
	backends := make([]hal.Backend, 0, len(variants))
	for _, v := range variants {
		if b, ok := hal.GetBackend(v); ok {
			backends = append(backends, b)
		}
	}
	return backends, nil
}

// Selection is the device chosen by SelectDevice. The caller owns Instance
// and must destroy it after the device opened from Adapter is destroyed.
type Selection struct {
	Instance hal.Instance
	Adapter  hal.ExposedAdapter
	Platform gputypes.Backend
}

// isGPUClass reports whether an adapter of type t may run the kernel.
func isGPUClass(t gputypes.DeviceType, allowSoftware bool) bool {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU, gputypes.DeviceTypeVirtualGPU:
		return true
	case gputypes.DeviceTypeCPU:
		return allowSoftware
	default:
		return false
	}
}

// SelectDevice returns the first GPU-class device of the first platform
// that has one.
//
// Platforms are tried in order. A platform whose instance cannot be created
// is skipped. It fails with DeviceUnavailable at step "Getting platform"
// when no platform could be instantiated, and at step "Getting device" when
// none of them exposes a GPU-class adapter. There is no retry.
func SelectDevice(platforms []hal.Backend, allowSoftware bool) (*Selection, error) {
	instantiated := 0
	for _, p := range platforms {
		instance, err := p.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			slogger().Debug("gpu: platform unavailable", "platform", p.Variant(), "err", err)
			continue
		}
		instantiated++

		adapters := instance.EnumerateAdapters(nil)
		for i := range adapters {
			info := adapters[i].Info
			if !isGPUClass(info.DeviceType, allowSoftware) {
				slogger().Debug("gpu: adapter skipped",
					"platform", p.Variant(), "name", info.Name, "type", info.DeviceType)
				continue
			}
			slogger().Info("gpu: device selected",
				"platform", p.Variant(), "name", info.Name, "type", info.DeviceType)
			return &Selection{Instance: instance, Adapter: adapters[i], Platform: p.Variant()}, nil
		}
		instance.Destroy()
	}

	if instantiated == 0 {
		return nil, grayscale.NewError(grayscale.DeviceUnavailable, stepPlatform, errNoPlatform)
	}
	return nil, grayscale.NewError(grayscale.DeviceUnavailable, stepDevice, errNoDevice)
}

// DeviceInfo describes one adapter seen during enumeration.
type DeviceInfo struct {
	Platform gputypes.Backend
	Name     string
	Driver   string
	Type     gputypes.DeviceType
	GPUClass bool
}

// EnumerateDevices lists every adapter of every platform that can be
// instantiated. Instances are destroyed before it returns.
func EnumerateDevices(platforms []hal.Backend, allowSoftware bool) []DeviceInfo {
	var out []DeviceInfo
	for _, p := range platforms {
		instance, err := p.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
		if err != nil {
			continue
		}
		for _, a := range instance.EnumerateAdapters(nil) {
			out = append(out, DeviceInfo{
				Platform: p.Variant(),
				Name:     a.Info.Name,
				Driver:   a.Info.Driver,
				Type:     a.Info.DeviceType,
				GPUClass: isGPUClass(a.Info.DeviceType, allowSoftware),
			})
		}
		instance.Destroy()
	}
	return out
}
