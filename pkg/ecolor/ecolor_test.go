package ecolor

import (
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"

	"github.com/abworrall/ispfuse/pkg/emath"
)

func TestScaleChroma(t *testing.T) {
	// The two BT.601 tables are only inverses to ~4 decimal places
	id := emath.Identity3()
	assert.InDelta(t, 0.0, ScaleChroma(id, 1.0).MaxAbsDiff(id), 1e-3)

	// Zero chroma makes everything gray: every row sums the same way
	gray := ScaleChroma(id, 0.0)
	for r := 1; r < 3; r++ {
		for c := 0; c < 3; c++ {
			assert.InDelta(t, gray[c], gray[3*r+c], 1e-3)
		}
	}
}

func TestLuma(t *testing.T) {
	assert.InDelta(t, 255.0, LumaFullRange.Y(255, 255, 255), 1e-9)
	assert.InDelta(t, 16.0, LumaLimitedRange.Y(0, 0, 0), 1e-9)
}

func TestApplyCcm(t *testing.T) {
	c := Ccm{Matrix: emath.Identity3()}
	col := colorful.LinearRgb(0.2, 0.4, 0.6)
	out := ApplyCcm(col, c)
	assert.True(t, out.AlmostEqualRgb(col))

	// Offsets push into gamut limits
	c.Offs = emath.Vec3{2, -2, 0}
	r, g, b := ApplyCcm(col, c).LinearRgb()
	assert.InDelta(t, 1.0, r, 1e-9)
	assert.InDelta(t, 0.0, g, 1e-9)
	assert.InDelta(t, 0.6, b, 1e-9)

	assert.Equal(t, colorful.Color{}, c.Correct(color.RGBA{}))
}

func TestWhiteBalance(t *testing.T) {
	out := WhiteBalance(colorful.LinearRgb(0.25, 0.5, 0.1), 2, 3)
	r, g, b := out.LinearRgb()
	assert.InDelta(t, 0.5, r, 1e-9)
	assert.InDelta(t, 0.5, g, 1e-9)
	assert.InDelta(t, 0.3, b, 1e-9)
}
