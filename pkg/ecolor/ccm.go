package ecolor

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/ispfuse/pkg/emath"
)

// A Ccm is what the ISP hardware applies to each white-balanced pixel:
// out = Matrix * in + Offs. Both sides are linear RGB, in [0,1].
type Ccm struct {
	Matrix emath.Mat3
	Offs   emath.Vec3
}

func (c Ccm) String() string {
	return fmt.Sprintf("%s+%s", c.Matrix, c.Offs)
}

// ApplyCcm color corrects a linear color, clamping the result into gamut.
func ApplyCcm(col colorful.Color, c Ccm) colorful.Color {
	r, g, b := col.LinearRgb()
	out := c.Matrix.Apply(emath.Vec3{r, g, b}).AddScaled(c.Offs, 1.0)
	out.FloorAt(0)
	out.CeilingAt(1)
	return colorful.LinearRgb(out[0], out[1], out[2])
}

// Correct takes any image color (e.g. a pixel from a test chart),
// treats it as sRGB encoded, and returns the color corrected version.
func (c Ccm) Correct(in color.Color) colorful.Color {
	col, ok := colorful.MakeColor(in)
	if !ok {
		// fully transparent; nothing to correct
		return colorful.Color{}
	}
	return ApplyCcm(col, c)
}

// WhiteBalance applies AWB gains (R/G, B/G) to a linear camera color,
// the way the hardware does before the CCM stage.
func WhiteBalance(col colorful.Color, rGain, bGain float64) colorful.Color {
	r, g, b := col.LinearRgb()
	v := emath.Vec3{r * rGain, g, b * bGain}
	v.CeilingAt(1)
	return colorful.LinearRgb(v[0], v[1], v[2])
}
