package geom

import (
	"fmt"
)

// A Rect is the region of the stitched sensor image that one physical
// ISP processes. The left ISP starts at X=0; the right one starts
// somewhere before the left one ends, so they overlap.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) String() string { return fmt.Sprintf("[%d,%d %dx%d]", r.X, r.Y, r.W, r.H) }

// A Window is a measurement ROI (AE, AWB, AF...) in stitched image
// coordinates.
type Window struct {
	HOffs int `yaml:"h_offs"`
	VOffs int `yaml:"v_offs"`
	HSize int `yaml:"h_size"`
	VSize int `yaml:"v_size"`
}

func (w Window) String() string {
	return fmt.Sprintf("win{h:%d+%d, v:%d+%d}", w.HOffs, w.HSize, w.VOffs, w.VSize)
}

func (w Window) Area() int { return w.HSize * w.VSize }

// IspPair is the pair of crops for a dual ISP session.
type IspPair struct {
	Left  Rect
	Right Rect
}

// Overlap is the width of the region both ISPs see.
func (p IspPair) Overlap() int {
	return p.Left.X + p.Left.W - p.Right.X
}

func (p IspPair) Validate() error {
	if p.Left.W <= 0 || p.Right.W <= 0 {
		return fmt.Errorf("isp pair: bad widths, left %s, right %s", p.Left, p.Right)
	} else if p.Overlap() < 0 {
		return fmt.Errorf("isp pair: gap of %d between left %s and right %s", -p.Overlap(), p.Left, p.Right)
	}
	return nil
}

// NewIspPair splits a stitched image of width w into two crops, each
// extending `overlap` pixels past the middle.
func NewIspPair(w, h, overlap int) IspPair {
	half := w / 2
	return IspPair{
		Left:  Rect{X: 0, Y: 0, W: half + overlap, H: h},
		Right: Rect{X: half - overlap, Y: 0, W: w - half + overlap, H: h},
	}
}

// LocalWindow maps a window into the coordinates of one of the two
// ISPs, clipped to its crop.
func (p IspPair) LocalWindow(w Window, right bool) Window {
	crop := p.Left
	if right {
		crop = p.Right
	}
	st := w.HOffs - crop.X
	ed := w.HOffs + w.HSize - crop.X
	if st < 0 {
		st = 0
	}
	if ed > crop.W {
		ed = crop.W
	}
	if ed < st {
		ed = st
	}
	return Window{HOffs: st, VOffs: w.VOffs, HSize: ed - st, VSize: w.VSize}
}
