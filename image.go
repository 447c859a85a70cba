package grayscale

import (
	"fmt"
	"image"
)

// ChannelOrder is the order of the color components inside a pixel.
type ChannelOrder uint8

const (
	// OrderBGR stores blue first, then green, then red. This is the layout
	// produced by BMP files and OpenCV style loaders, and the kernel's
	// native reading.
	OrderBGR ChannelOrder = iota

	// OrderRGB stores red first, then green, then blue.
	OrderRGB
)

// String returns "bgr" or "rgb".
func (o ChannelOrder) String() string {
	switch o {
	case OrderBGR:
		return "bgr"
	case OrderRGB:
		return "rgb"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", uint8(o))
	}
}

// ParseChannelOrder parses "bgr" or "rgb".
func ParseChannelOrder(s string) (ChannelOrder, error) {
	switch s {
	case "bgr", "BGR":
		return OrderBGR, nil
	case "rgb", "RGB":
		return OrderRGB, nil
	}
	return 0, fmt.Errorf("grayscale: unknown channel order %q", s)
}

// Descriptor describes the layout of an interleaved pixel buffer.
type Descriptor struct {
	Width    int
	Height   int
	Channels int
	Order    ChannelOrder
}

// Pixels returns Width*Height.
func (d Descriptor) Pixels() int { return d.Width * d.Height }

// Size returns the byte length of a buffer with this layout.
func (d Descriptor) Size() int { return d.Width * d.Height * d.Channels }

// Validate checks dimensions, channel count and order.
func (d Descriptor) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return NewError(UnsupportedFormat, "Validating image",
			fmt.Errorf("invalid dimensions %dx%d", d.Width, d.Height))
	}
	switch d.Channels {
	case 1, 3, 4:
	default:
		return NewError(UnsupportedFormat, "Validating image",
			fmt.Errorf("unsupported channel count %d", d.Channels))
	}
	if d.Order != OrderBGR && d.Order != OrderRGB {
		return NewError(UnsupportedFormat, "Validating image",
			fmt.Errorf("unsupported channel order %v", d.Order))
	}
	return nil
}

// PixelBuffer is an interleaved host image.
//
// Converters only read Pix; the caller keeps ownership.
type PixelBuffer struct {
	Descriptor
	Pix []byte
}

// NewPixelBuffer allocates a zeroed buffer for d.
func NewPixelBuffer(d Descriptor) (*PixelBuffer, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &PixelBuffer{Descriptor: d, Pix: make([]byte, d.Size())}, nil
}

// Validate checks the descriptor and that len(Pix) matches it.
func (b *PixelBuffer) Validate() error {
	if b == nil {
		return NewError(UnsupportedFormat, "Validating image", fmt.Errorf("nil pixel buffer"))
	}
	if err := b.Descriptor.Validate(); err != nil {
		return err
	}
	if len(b.Pix) != b.Size() {
		return NewError(UnsupportedFormat, "Validating image",
			fmt.Errorf("pixel data is %d bytes, want %d", len(b.Pix), b.Size()))
	}
	return nil
}

// Set writes a pixel given as red, green and blue, honoring Order.
// For 4-channel buffers the fourth byte is set to 255. For 1-channel
// buffers only r is stored.
func (b *PixelBuffer) Set(x, y int, r, g, bl uint8) {
	i := (y*b.Width + x) * b.Channels
	if b.Channels == 1 {
		b.Pix[i] = r
		return
	}
	if b.Order == OrderRGB {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
	} else {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2] = bl, g, r
	}
	if b.Channels == 4 {
		b.Pix[i+3] = 0xff
	}
}

// Result is a single-channel luminance image, one byte per pixel, rows
// packed without padding.
type Result struct {
	Width  int
	Height int
	Pix    []byte
}

// At returns the luminance at (x, y).
func (r *Result) At(x, y int) uint8 { return r.Pix[y*r.Width+x] }

// Gray returns an *image.Gray sharing Pix.
func (r *Result) Gray() *image.Gray {
	return &image.Gray{
		Pix:    r.Pix,
		Stride: r.Width,
		Rect:   image.Rect(0, 0, r.Width, r.Height),
	}
}
