package geom

import (
	"fmt"
)

// A BlockPlan says how to assemble an AF block grid from the two ISPs'
// grids. For each row, the first LeftBlocks columns come from the
// right hand end of the left ISP's row, then RightBlocks columns come
// from the right ISP's row, starting at column RightSkip (the columns
// before that all sit in the overlap, already covered by the left).
//
// If no right columns are skipped, the seam column is built by
// blending the last left column and the first right column using
// LeftRatio and RightRatio.
type BlockPlan struct {
	Side        SplitMode
	LeftBlocks  int
	RightBlocks int
	RightSkip   int
	LeftRatio   float64
	RightRatio  float64

	WinB WinBPlan
}

// WinBPlan covers AF window B, which is a single block; if it is split
// its values are blended by how much of it each ISP sees.
type WinBPlan struct {
	Side       SplitMode
	LeftRatio  float64
	RightRatio float64
}

func (bp BlockPlan) String() string {
	return fmt.Sprintf("afplan{A:%s l=%d r=%d skip=%d ratio=%.3f/%.3f, B:%s %.3f/%.3f}",
		bp.Side, bp.LeftBlocks, bp.RightBlocks, bp.RightSkip, bp.LeftRatio, bp.RightRatio,
		bp.WinB.Side, bp.WinB.LeftRatio, bp.WinB.RightRatio)
}

// MapAfBlocks works out the BlockPlan for AF windows A and B, for an
// AF grid of n x n blocks.
func MapAfBlocks(winA, winB Window, p IspPair, n int) BlockPlan {
	bp := BlockPlan{}

	ovW := p.Overlap()
	lEd := p.Left.X + p.Left.W
	rSt := p.Right.X

	xSt := winA.HOffs
	xEd := xSt + winA.HSize

	setSkip := func(blkW int) {
		if blkW < ovW {
			bp.RightSkip = ovW / blkW
		} else {
			bp.RightSkip = 0
			bp.LeftRatio = float64(ovW) / float64(blkW)
			bp.RightRatio = 1 - bp.LeftRatio
		}
	}

	switch {
	case xSt < rSt && xEd > lEd:
		bp.Side = Split

		if winA.HSize < p.Left.W {
			blkW := winA.HSize / n
			if blkW == 0 {
				return mapAfBlocksDegenerate(winA, winB, p, n)
			}
			bp.LeftBlocks = (lEd - xSt + blkW - 1) / blkW
			if bp.LeftBlocks > n {
				bp.LeftBlocks = n
			}
			bp.RightBlocks = n - bp.LeftBlocks
			setSkip(blkW)

		} else if winA.HSize < p.Left.W*3/2 {
			lWinEd := lEd - 2
			blkW := (lWinEd - xSt) / (n + 1)
			if blkW == 0 {
				return mapAfBlocksDegenerate(winA, winB, p, n)
			}
			lWinSt := lWinEd - blkW*n
			bp.LeftBlocks = ((lWinEd-lWinSt)*n + winA.HSize - 1) / winA.HSize
			bp.RightBlocks = n - bp.LeftBlocks
			setSkip(blkW)

		} else {
			bp.Side = FullSpan
			bp.LeftBlocks = n
			bp.RightBlocks = n
		}

	case xSt >= rSt && xEd > lEd:
		bp.Side = RightOnly
		bp.RightBlocks = n

	default:
		bp.Side = LeftOnly
		bp.LeftBlocks = n
	}

	bp.WinB = mapWinB(winB, p)
	return bp
}

// If the window is too small to have a nonzero block width, just put
// it all on whichever side holds its midpoint.
func mapAfBlocksDegenerate(winA, winB Window, p IspPair, n int) BlockPlan {
	bp := BlockPlan{WinB: mapWinB(winB, p)}
	if winA.HOffs+winA.HSize/2 < p.Right.X {
		bp.Side = LeftOnly
		bp.LeftBlocks = n
	} else {
		bp.Side = RightOnly
		bp.RightBlocks = n
	}
	return bp
}

func mapWinB(w Window, p IspPair) WinBPlan {
	lEd := p.Left.X + p.Left.W
	xSt := w.HOffs
	xEd := xSt + w.HSize

	switch {
	case xSt < p.Right.X && xEd > lEd:
		l := float64(lEd-2-xSt) / float64(xEd-xSt)
		return WinBPlan{Side: Split, LeftRatio: l, RightRatio: 1 - l}
	case xSt >= p.Right.X && xEd > lEd:
		return WinBPlan{Side: RightOnly, LeftRatio: 0, RightRatio: 1}
	default:
		return WinBPlan{Side: LeftOnly, LeftRatio: 1, RightRatio: 0}
	}
}
