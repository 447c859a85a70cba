package imageio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/gogpu/grayscale"
)

// outputMode is the permission of written images, as os.Create would give
// before the umask.
const outputMode os.FileMode = 0o644

// SaveOptions controls how a result is written.
type SaveOptions struct {
	// Quality is the JPEG quality, 1-100. Zero means DefaultQuality.
	Quality int
}

// Save writes res to path in the format named by its extension (jpg, jpeg,
// png, gif, tif, tiff, bmp).
//
// The image is encoded into a temporary file in the destination directory
// and renamed into place, so a failed write never leaves a file at path.
func Save(path string, res *grayscale.Result, opts SaveOptions) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return grayscale.NewError(grayscale.UnsupportedFormat, stepWrite,
			fmt.Errorf("%s: %w", path, err))
	}
	quality := opts.Quality
	if quality == 0 {
		quality = DefaultQuality
	}
	if quality < 1 || quality > 100 {
		return fmt.Errorf("imageio: JPEG quality %d out of range 1-100", quality)
	}
	if res == nil || len(res.Pix) != res.Width*res.Height || len(res.Pix) == 0 {
		return grayscale.NewError(grayscale.UnsupportedFormat, stepWrite, ErrEmptyImage)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".grayscale-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("imageio: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	// CreateTemp makes the file 0600.
	if err := tmp.Chmod(outputMode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("imageio: chmod temp file: %w", err)
	}
	if err := imaging.Encode(tmp, res.Gray(), format, imaging.JPEGQuality(quality)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("imageio: encode %s: %w", format, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("imageio: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Clean(path)); err != nil {
		return fmt.Errorf("imageio: rename into place: %w", err)
	}
	tmpName = ""
	return nil
}
