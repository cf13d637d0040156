package ccm

import (
	"github.com/abworrall/ispfuse/pkg/ecolor"
	"github.com/abworrall/ispfuse/pkg/emath"
)

// SaturationAdjust scales the chroma a matrix produces. The matrix is
// first pulled toward identity by fScale (which is how much of the CCM
// the hardware will apply), adjusted in YCbCr, and pushed back out.
// A level of 50 is neutral; 0 removes all chroma, 100 doubles it.
func SaturationAdjust(fScale, level float64, m emath.Mat3) emath.Mat3 {
	if fScale < emath.DivMin {
		return m
	}

	a := emath.Lerp(m, emath.Identity3(), fScale)
	a = ecolor.ScaleChroma(a, (level-50)/50+1)
	return emath.Lerp(a, emath.Identity3(), 1/fScale)
}
