package ecolor

import (
	"github.com/abworrall/ispfuse/pkg/emath"
)

var (
	// Full range BT.601, as used by the JPEG file interchange format.
	//
	// https://en.wikipedia.org/wiki/YCbCr#JPEG_conversion
	//
	// These are the coefficients the CCM saturation adjustment has been
	// tuned against, so don't "fix" the rounding on them.
	RGB_to_YCbCr601 = emath.Mat3{
		0.299, 0.587, 0.114,
		-0.1687, -0.3313, 0.5,
		0.5, -0.4187, -0.0813,
	}

	YCbCr601_to_RGB = emath.Mat3{
		1.0, 0.0, 1.402,
		1.0, -0.34414, -0.71414,
		1.0, 1.772, 0.0,
	}
)

// ScaleChroma runs a color correction matrix through YCbCr space, and
// scales the two chroma rows by `level` (1.0 leaves it alone, 0.0
// desaturates to gray).
func ScaleChroma(m emath.Mat3, level float64) emath.Mat3 {
	ycc := RGB_to_YCbCr601.Mult(m)
	ycc = ycc.ScaleRows(emath.Vec3{1, level, level})
	return YCbCr601_to_RGB.Mult(ycc)
}

// Luma weights for the 8 bit Y computed from AE block stats. Limited
// range lands Y in [16,235].
type LumaCoeffs struct {
	R, G, B, Offset float64
}

var (
	LumaFullRange    = LumaCoeffs{0.299, 0.587, 0.114, 0}
	LumaLimitedRange = LumaCoeffs{0.25, 0.5, 0.1094, 16}
)

func (lc LumaCoeffs) Y(r, g, b float64) float64 {
	return lc.R*r + lc.G*g + lc.B*b + lc.Offset
}
