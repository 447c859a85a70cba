// Package imageio loads color images into grayscale.PixelBuffer values and
// writes luminance results back to disk.
//
// Decoding goes through imaging, so JPEG, PNG, GIF, TIFF and BMP are read
// with EXIF orientation applied; WebP is registered as well. Pixels are
// always delivered as three interleaved channels in the requested order.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/webp" // register WebP with image.Decode

	"github.com/gogpu/grayscale"
)

// Steps reported in errors.
const (
	stepLoad  = "Loading image"
	stepWrite = "Writing image"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 90

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("imageio: image has no pixels")

// Load reads and decodes the image at path.
//
// A missing file is FileNotFound; an unknown or corrupt format is
// UnsupportedFormat.
func Load(path string, order grayscale.ChannelOrder) (*grayscale.PixelBuffer, error) {
	img, err := imaging.Open(filepath.Clean(path), imaging.AutoOrientation(true))
	if err != nil {
		return nil, loadError(path, err)
	}
	return FromImage(img, order)
}

// LoadBMP reads a BMP file without going through format detection.
func LoadBMP(path string, order grayscale.ChannelOrder) (*grayscale.PixelBuffer, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, loadError(path, err)
	}
	defer func() { _ = f.Close() }()

	img, err := bmp.Decode(f)
	if err != nil {
		return nil, grayscale.NewError(grayscale.UnsupportedFormat, stepLoad,
			fmt.Errorf("decode BMP %s: %w", path, err))
	}
	return FromImage(img, order)
}

// Decode decodes an image from r.
func Decode(r io.Reader, order grayscale.ChannelOrder) (*grayscale.PixelBuffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, grayscale.NewError(grayscale.UnsupportedFormat, stepLoad,
			fmt.Errorf("decode: %w", err))
	}
	return FromImage(img, order)
}

func loadError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return grayscale.NewError(grayscale.FileNotFound, stepLoad, err)
	}
	return grayscale.NewError(grayscale.UnsupportedFormat, stepLoad,
		fmt.Errorf("decode %s: %w", path, err))
}

// FromImage packs img into a 3-channel buffer. Alpha is dropped.
func FromImage(img image.Image, order grayscale.ChannelOrder) (*grayscale.PixelBuffer, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, grayscale.NewError(grayscale.UnsupportedFormat, stepLoad, ErrEmptyImage)
	}
	buf, err := grayscale.NewPixelBuffer(grayscale.Descriptor{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Channels: 3,
		Order:    order,
	})
	if err != nil {
		return nil, err
	}

	nrgba := imaging.Clone(img)
	for y := range buf.Height {
		row := nrgba.Pix[y*nrgba.Stride:]
		dst := buf.Pix[y*buf.Width*3:]
		for x := range buf.Width {
			r, g, bl := row[x*4], row[x*4+1], row[x*4+2]
			if order == grayscale.OrderRGB {
				dst[x*3], dst[x*3+1], dst[x*3+2] = r, g, bl
			} else {
				dst[x*3], dst[x*3+1], dst[x*3+2] = bl, g, r
			}
		}
	}
	return buf, nil
}
