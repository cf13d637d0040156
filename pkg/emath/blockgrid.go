package emath

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
)

// A BlockGrid is a small grid of floats, one per statistics block (e.g.
// the 15x15 AE luma grid), with some operations to look at it.
type BlockGrid struct {
	stride int
	values []float64
}

func NewBlockGrid(w, h int) BlockGrid {
	return BlockGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

// BlockGridFrom lays out a row-major slice of block values as a square grid.
func BlockGridFrom[T uint8 | uint16 | uint32 | uint64 | int | float64](vals []T, w int) BlockGrid {
	bg := NewBlockGrid(w, len(vals)/w)
	for i := range bg.values {
		bg.values[i] = float64(vals[i])
	}
	return bg
}

func (bg *BlockGrid) Set(x, y int, v float64) { bg.values[bg.stride*y+x] = v }
func (bg *BlockGrid) Get(x, y int) float64    { return bg.values[bg.stride*y+x] }
func (bg *BlockGrid) Dx() int                 { return bg.stride }
func (bg *BlockGrid) Dy() int                 { return len(bg.values) / bg.stride }

// ColumnSums is handy for eyeballing the seam between the two ISPs
func (bg *BlockGrid) ColumnSums() []float64 {
	out := make([]float64, bg.Dx())
	for y := 0; y < bg.Dy(); y++ {
		for x := 0; x < bg.Dx(); x++ {
			out[x] += bg.Get(x, y)
		}
	}
	return out
}

func (bg *BlockGrid) MinMax() (float64, float64) {
	min := math.MaxFloat64
	max := -1.0 * min
	for i := 0; i < len(bg.values); i++ {
		if bg.values[i] > max {
			max = bg.values[i]
		}
		if bg.values[i] < min {
			min = bg.values[i]
		}
	}
	return min, max
}

func (bg *BlockGrid) Stats() string {
	min, max := bg.MinMax()
	return fmt.Sprintf("bg[%dx%d, vals{%f,%f}]", bg.Dx(), bg.Dy(), min, max)
}

// ToImg saves a simple grayscale, based on the range of values in the
// grid, with each block blown up to `cell` pixels square, and gamma
// scaling the gray to look normal for human vision
func (bg *BlockGrid) ToImg(title, filename string, cell int) error {
	if cell < 1 {
		cell = 1
	}
	min, max := bg.MinMax()
	span := max - min
	if span == 0 {
		span = 1
	}

	img := image.NewRGBA64(image.Rectangle{Max: image.Point{bg.Dx() * cell, bg.Dy() * cell}})
	for x := 0; x < img.Bounds().Dx(); x++ {
		for y := 0; y < img.Bounds().Dy(); y++ {
			lum := bg.Get(x/cell, y/cell)
			gray := GammaExpand_F64((lum - min) / span)
			col := color.RGBA64{uint16(gray * 65535.0), uint16(gray * 65535.0), uint16(gray * 65535.0), 0xFFFF}
			img.Set(x, y, col)
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0, 0)
	dc.DrawString(title, 4, 14)
	return dc.SavePNG(filename)
}
