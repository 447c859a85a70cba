package grayscale

// Luma weights (ITU-R BT.601) in single precision, as the kernel uses them.
const (
	weightR float32 = 0.299
	weightG float32 = 0.587
	weightB float32 = 0.114
)

// Luma returns the truncated BT.601 luminance of a pixel.
//
// Every product and sum is rounded to float32 before the next operation so
// the result matches the device kernel bit for bit; the final conversion
// truncates toward zero.
func Luma(r, g, b uint8) uint8 {
	pr := float32(weightR * float32(r))
	pg := float32(weightG * float32(g))
	pb := float32(weightB * float32(b))
	return uint8(float32(float32(pr+pg) + pb))
}

// lumaAt computes the luminance of the pixel starting at pix[idx].
func lumaAt(pix []byte, idx, channels int, order ChannelOrder) uint8 {
	if channels == 1 {
		return pix[idx]
	}
	if order == OrderRGB {
		return Luma(pix[idx], pix[idx+1], pix[idx+2])
	}
	return Luma(pix[idx+2], pix[idx+1], pix[idx])
}
