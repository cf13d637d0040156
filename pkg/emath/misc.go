package emath

import "math"

// Some functions that only operate on basic types, that are useful

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// `f` is assumed to be in the range [0,1]
func GammaExpand_F64(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}

// Integer clipping, in the same shape as the hardware's CLIP(v, lo, hi)
func ClipInt(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClipF64(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func MaxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func AbsInt(a int) int {
	if a < 0 {
		return -a
	}
	return a
}

// Bit-width masks for the packed hardware fields
const (
	Max8Bits  = 1<<8 - 1
	Max10Bits = 1<<10 - 1
	Max12Bits = 1<<12 - 1
	Max29Bits = 1<<29 - 1
	Max32Bits = 1<<32 - 1
)

// DivMin is the epsilon used for "is this zero" and "has this changed"
// tests on calibration floats.
const DivMin = 1e-5
