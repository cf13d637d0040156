package emath

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// A Curve is a piecewise linear function of sensor gain, as found all
// over the calibration data (gain->saturation, gain->alpha scale, ...).
// Values outside the calibrated range are clamped to the end points.
type Curve struct {
	Xs []float64
	Ys []float64

	pl interp.PiecewiseLinear
	ok bool
}

// NewCurve checks the abscissae never decrease, which gonum's Fit would
// otherwise panic on. Repeated abscissae keep their first point (the
// default attribute tables repeat gain 1 for every point). A single
// point makes a constant curve.
func NewCurve(xs, ys []float64) (Curve, error) {
	c := Curve{}
	if len(xs) != len(ys) {
		return c, fmt.Errorf("curve: %d xs vs %d ys", len(xs), len(ys))
	} else if len(xs) == 0 {
		return c, fmt.Errorf("curve: no points")
	}
	c.Xs = append(c.Xs, xs[0])
	c.Ys = append(c.Ys, ys[0])
	for i := 1; i < len(xs); i++ {
		if xs[i] < xs[i-1] {
			return c, fmt.Errorf("curve: xs[%d]=%v below xs[%d]=%v", i, xs[i], i-1, xs[i-1])
		} else if xs[i] == xs[i-1] {
			continue
		}
		c.Xs = append(c.Xs, xs[i])
		c.Ys = append(c.Ys, ys[i])
	}
	if len(c.Xs) >= 2 {
		if err := c.pl.Fit(c.Xs, c.Ys); err != nil {
			return c, fmt.Errorf("curve: %v", err)
		}
	}
	c.ok = true
	return c, nil
}

func (c Curve) At(x float64) float64 {
	if !c.ok {
		return 0
	}
	if len(c.Xs) == 1 {
		return c.Ys[0]
	}
	return c.pl.Predict(x)
}

// Len is the number of distinct points kept.
func (c Curve) Len() int { return len(c.Xs) }
