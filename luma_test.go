package grayscale

import "testing"

func TestLuma(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		want    uint8
	}{
		{"black", 0, 0, 0, 0},
		{"red", 255, 0, 0, 76},
		{"green", 0, 255, 0, 149},
		{"blue", 0, 0, 255, 29},
		{"mid gray", 128, 128, 128, 128},
		{"white", 255, 255, 255, 255},
		{"mixed", 10, 20, 30, 18},
	}
	for _, tt := range tests {
		if got := Luma(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("%s: Luma(%d, %d, %d) = %d, want %d", tt.name, tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}

func TestLumaAtOrder(t *testing.T) {
	pix := []byte{30, 20, 10, 99}
	if got, want := lumaAt(pix, 0, 3, OrderBGR), Luma(10, 20, 30); got != want {
		t.Errorf("BGR lumaAt = %d, want %d", got, want)
	}
	if got, want := lumaAt(pix, 0, 4, OrderRGB), Luma(30, 20, 10); got != want {
		t.Errorf("RGB lumaAt = %d, want %d", got, want)
	}
	if got := lumaAt(pix, 3, 1, OrderBGR); got != 99 {
		t.Errorf("single channel lumaAt = %d, want 99", got)
	}
}
