package emath

// 3x3 matrices and 3-vectors, used for color correction matrices and
// the color space transforms around them. Row-major.

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64" // Will be "image/math/f64" at some point, hopefully make this file redundant
)

// Use local types so we can hang methods off them
type Vec3 f64.Vec3
type Mat3 f64.Mat3

func Identity3() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

func (a Mat3) Mult(b Mat3) Mat3 {
	return Mat3{
		a[3*0+0]*b[3*0+0] + a[3*0+1]*b[3*1+0] + a[3*0+2]*b[3*2+0],
		a[3*0+0]*b[3*0+1] + a[3*0+1]*b[3*1+1] + a[3*0+2]*b[3*2+1],
		a[3*0+0]*b[3*0+2] + a[3*0+1]*b[3*1+2] + a[3*0+2]*b[3*2+2],

		a[3*1+0]*b[3*0+0] + a[3*1+1]*b[3*1+0] + a[3*1+2]*b[3*2+0],
		a[3*1+0]*b[3*0+1] + a[3*1+1]*b[3*1+1] + a[3*1+2]*b[3*2+1],
		a[3*1+0]*b[3*0+2] + a[3*1+1]*b[3*1+2] + a[3*1+2]*b[3*2+2],

		a[3*2+0]*b[3*0+0] + a[3*2+1]*b[3*1+0] + a[3*2+2]*b[3*2+0],
		a[3*2+0]*b[3*0+1] + a[3*2+1]*b[3*1+1] + a[3*2+2]*b[3*2+1],
		a[3*2+0]*b[3*0+2] + a[3*2+1]*b[3*1+2] + a[3*2+2]*b[3*2+2],
	}
}

func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		(m[3*0+0]*v[0] + m[3*0+1]*v[1] + m[3*0+2]*v[2]),
		(m[3*1+0]*v[0] + m[3*1+1]*v[1] + m[3*1+2]*v[2]),
		(m[3*2+0]*v[0] + m[3*2+1]*v[1] + m[3*2+2]*v[2]),
	}
}

// ScaleRows multiplies each row of the matrix by the matching element of s.
func (m Mat3) ScaleRows(s Vec3) Mat3 {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[3*r+c] *= s[r]
		}
	}
	return m
}

// Lerp returns f*a + (1-f)*b, elementwise.
func Lerp(a, b Mat3, f float64) Mat3 {
	var out Mat3
	for i := range out {
		out[i] = f*a[i] + (1-f)*b[i]
	}
	return out
}

func LerpVec(a, b Vec3, f float64) Vec3 {
	return Vec3{
		f*a[0] + (1-f)*b[0],
		f*a[1] + (1-f)*b[1],
		f*a[2] + (1-f)*b[2],
	}
}

// AddScaled returns m + k*n; used to accumulate probability weighted matrices.
func (m Mat3) AddScaled(n Mat3, k float64) Mat3 {
	for i := range m {
		m[i] += k * n[i]
	}
	return m
}

func (v Vec3) AddScaled(w Vec3, k float64) Vec3 {
	return Vec3{v[0] + k*w[0], v[1] + k*w[1], v[2] + k*w[2]}
}

// MaxAbsDiff is the largest elementwise |a-b|.
func (a Mat3) MaxAbsDiff(b Mat3) float64 {
	max := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > max {
			max = d
		}
	}
	return max
}

func (v Vec3) MaxAbsDiff(w Vec3) float64 {
	max := 0.0
	for i := range v {
		if d := math.Abs(v[i] - w[i]); d > max {
			max = d
		}
	}
	return max
}

func (m Mat3) String() string {
	str := fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*0+0], m[3*0+1], m[3*0+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*1+0], m[3*1+1], m[3*1+2])
	str += fmt.Sprintf("[%10f, %10f, %10f]\n", m[3*2+0], m[3*2+1], m[3*2+2])
	return str
}
func (v Vec3) String() string {
	return fmt.Sprintf("[%12.10f, %12.10f, %12.10f]", v[0], v[1], v[2])
}

func (v *Vec3) FloorAt(min float64) {
	if v[0] < min {
		v[0] = min
	}
	if v[1] < min {
		v[1] = min
	}
	if v[2] < min {
		v[2] = min
	}
}

func (v *Vec3) CeilingAt(max float64) {
	if v[0] > max {
		v[0] = max
	}
	if v[1] > max {
		v[1] = max
	}
	if v[2] > max {
		v[2] = max
	}
}
