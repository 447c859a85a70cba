//go:build !nogpu

package gpu_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/gogpu/grayscale"
	"github.com/gogpu/grayscale/gpu"
)

// openSoftware opens the gpu backend on wgpu's software adapter, which runs
// the real rgb_to_gray pipeline through the SPIR-V interpreter.
func openSoftware(t *testing.T) grayscale.Converter {
	t.Helper()
	c, err := grayscale.Open(
		grayscale.WithBackend("gpu"),
		grayscale.WithSoftwareAdapters(true),
		grayscale.WithPlatforms("software"),
	)
	var e *grayscale.Error
	if errors.As(err, &e) && e.Step == "Getting platform" {
		t.Skipf("software adapter unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("Open(gpu, software) = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func pixels(t *testing.T, w, h, ch int, order grayscale.ChannelOrder) *grayscale.PixelBuffer {
	t.Helper()
	buf, err := grayscale.NewPixelBuffer(grayscale.Descriptor{Width: w, Height: h, Channels: ch, Order: order})
	if err != nil {
		t.Fatalf("NewPixelBuffer: %v", err)
	}
	return buf
}

func convert(t *testing.T, c grayscale.Converter, src *grayscale.PixelBuffer) []byte {
	t.Helper()
	res, err := c.Convert(context.Background(), src)
	if err != nil {
		t.Fatalf("Convert(%dx%dx%d %v) = %v", src.Width, src.Height, src.Channels, src.Order, err)
	}
	if res.Width != src.Width || res.Height != src.Height || len(res.Pix) != src.Pixels() {
		t.Fatalf("result %dx%d with %d bytes, want %dx%d", res.Width, res.Height, len(res.Pix), src.Width, src.Height)
	}
	return res.Pix
}

func TestKernelKnownValues(t *testing.T) {
	c := openSoftware(t)

	tests := []struct {
		name    string
		r, g, b uint8
		want    uint8
	}{
		{"white", 255, 255, 255, 255},
		{"black", 0, 0, 0, 0},
		{"red", 255, 0, 0, 76},
		{"green", 0, 255, 0, 149},
		{"blue", 0, 0, 255, 29},
		{"mid gray", 128, 128, 128, 128},
	}
	for _, tt := range tests {
		for _, order := range []grayscale.ChannelOrder{grayscale.OrderBGR, grayscale.OrderRGB} {
			src := pixels(t, 1, 1, 3, order)
			src.Set(0, 0, tt.r, tt.g, tt.b)
			if got := convert(t, c, src); got[0] != tt.want {
				t.Errorf("%s %v = %d, want %d", tt.name, order, got[0], tt.want)
			}
		}
	}
}

func TestKernelByteSlots(t *testing.T) {
	c := openSoftware(t)

	src := pixels(t, 3, 2, 3, grayscale.OrderBGR)
	src.Set(2, 1, 255, 0, 0)
	got := convert(t, c, src)
	for i, v := range got {
		want := uint8(0)
		if i == 5 {
			want = 76
		}
		if v != want {
			t.Errorf("offset %d = %d, want %d", i, v, want)
		}
	}
}

func TestKernelOrderSwapsChannels(t *testing.T) {
	c := openSoftware(t)

	pix := []byte{255, 0, 0}
	bgr := &grayscale.PixelBuffer{Descriptor: grayscale.Descriptor{Width: 1, Height: 1, Channels: 3, Order: grayscale.OrderBGR}, Pix: pix}
	rgb := &grayscale.PixelBuffer{Descriptor: grayscale.Descriptor{Width: 1, Height: 1, Channels: 3, Order: grayscale.OrderRGB}, Pix: pix}

	if got := convert(t, c, bgr); got[0] != 29 {
		t.Errorf("BGR {255,0,0} = %d, want 29", got[0])
	}
	if got := convert(t, c, rgb); got[0] != 76 {
		t.Errorf("RGB {255,0,0} = %d, want 76", got[0])
	}
}

func TestKernelMatchesCPU(t *testing.T) {
	c := openSoftware(t)
	cpu := grayscale.NewSoftwareConverter(1)
	defer cpu.Close()

	for _, tt := range []struct {
		w, h, ch int
		order    grayscale.ChannelOrder
	}{
		{3, 2, 3, grayscale.OrderBGR},
		{7, 5, 3, grayscale.OrderRGB},
		{5, 3, 4, grayscale.OrderBGR},
		{5, 3, 1, grayscale.OrderBGR},
	} {
		src := pixels(t, tt.w, tt.h, tt.ch, tt.order)
		for i := range src.Pix {
			src.Pix[i] = byte(i * 37)
		}
		want, err := cpu.Convert(context.Background(), src)
		if err != nil {
			t.Fatal(err)
		}
		if got := convert(t, c, src); !bytes.Equal(got, want.Pix) {
			t.Errorf("%dx%dx%d %v:\n gpu %v\n cpu %v", tt.w, tt.h, tt.ch, tt.order, got, want.Pix)
		}
	}
}

func TestDevicesListsSoftwareAdapter(t *testing.T) {
	devices, err := gpu.Devices([]string{"software"}, true)
	if err != nil {
		t.Fatalf("Devices = %v", err)
	}
	if len(devices) == 0 {
		t.Skip("no software adapter enumerated")
	}
	for _, d := range devices {
		if !d.GPUClass {
			t.Errorf("%s not selectable with software adapters allowed", d.Name)
		}
	}
	devices, err = gpu.Devices([]string{"software"}, false)
	if err != nil {
		t.Fatalf("Devices = %v", err)
	}
	for _, d := range devices {
		if d.GPUClass {
			t.Errorf("%s selectable without software adapters", d.Name)
		}
	}
}
