package ccm

import (
	"github.com/abworrall/ispfuse/pkg/calib"
	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/result"
)

type Range int

const (
	InRange Range = iota
	OutOfRangeHigh
	OutOfRangeLow
)

// Bracket picks the two profiles either side of the target saturation.
// The profiles must be sorted, highest saturation first. Outside the
// calibrated range both profiles are the end one.
func Bracket(sat float64, profiles []*calib.Matrix) (a, b *calib.Matrix, r Range, err error) {
	n := len(profiles)
	if n == 0 {
		return nil, nil, InRange, result.Paramf("ccm bracket", "no profiles")
	}

	if sat >= profiles[0].Saturation {
		return profiles[0], profiles[0], OutOfRangeHigh, nil
	} else if sat <= profiles[n-1].Saturation {
		return profiles[n-1], profiles[n-1], OutOfRangeLow, nil
	}

	i := 0
	for i < n-1 && sat <= profiles[i+1].Saturation {
		i++
	}
	return profiles[i], profiles[i+1], InRange, nil
}

// Interpolate blends the bracketing profiles' matrices and offsets.
func Interpolate(sat float64, profiles []*calib.Matrix) (emath.Mat3, emath.Vec3, error) {
	a, b, r, err := Bracket(sat, profiles)
	if err != nil {
		return emath.Mat3{}, emath.Vec3{}, err
	}
	if r != InRange {
		return a.Matrix, a.Offsets, nil
	}

	f1 := (b.Saturation - sat) / (b.Saturation - a.Saturation)
	return emath.Lerp(a.Matrix, b.Matrix, f1), emath.LerpVec(a.Offsets, b.Offsets, f1), nil
}
