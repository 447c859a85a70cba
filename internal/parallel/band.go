// Package parallel runs row-band work on a work-stealing goroutine pool.
package parallel

import "errors"

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("parallel: pool closed")

// Band is a half-open row range [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Rows returns the number of rows in the band.
func (b Band) Rows() int { return b.Y1 - b.Y0 }

// minBandRows keeps bands large enough that scheduling overhead stays small
// next to the per-row work.
const minBandRows = 16

// Bands splits rows [0, height) into at most parts contiguous bands of
// near-equal size. Every row belongs to exactly one band. It returns nil
// when height is not positive.
func Bands(height, parts int) []Band {
	if height <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if maxParts := (height + minBandRows - 1) / minBandRows; parts > maxParts {
		parts = maxParts
	}

	bands := make([]Band, 0, parts)
	base, extra := height/parts, height%parts
	y := 0
	for i := range parts {
		n := base
		if i < extra {
			n++
		}
		bands = append(bands, Band{Y0: y, Y1: y + n})
		y += n
	}
	return bands
}
