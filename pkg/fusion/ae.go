package fusion

import (
	"math"

	"github.com/abworrall/ispfuse/pkg/ecolor"
	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
	"github.com/abworrall/ispfuse/pkg/result"
)

// mergeBlocks assembles a wnd x wnd block grid from the two ISPs'
// grids. When the window is split, each ISP saw it at twice the
// horizontal resolution, so pairs of blocks are combined: the left
// half of the output comes from pairs on the left ISP, the right half
// from pairs on the right ISP, and the middle column from the last
// left block and the first right block.
func mergeBlocks[T any](l, r []T, wnd int, mode geom.SplitMode, combine func(a, b T) T) []T {
	out := make([]T, wnd*wnd)

	switch mode {
	case geom.LeftOnly:
		copy(out, l)
	case geom.RightOnly:
		copy(out, r)
	default:
		for i := 0; i < wnd; i++ {
			row := i * wnd
			for j := 0; j < wnd; j++ {
				switch {
				case j < wnd/2:
					out[row+j] = combine(l[row+2*j], l[row+2*j+1])
				case j > wnd/2:
					out[row+j] = combine(r[row+2*j-wnd], r[row+2*j-wnd+1])
				default:
					out[row+j] = combine(l[row+wnd-1], r[row])
				}
			}
		}
	}

	return out
}

type rgb struct{ r, g, b int64 }

func unpackAe(in []hwstats.AeBlock) []rgb {
	out := make([]rgb, len(in))
	for i, b := range in {
		out[i] = rgb{int64(b.R()), int64(b.G()), int64(b.B())}
	}
	return out
}

func averageRGB(a, b rgb) rgb { return rgb{(a.r + b.r) / 2, (a.g + b.g) / 2, (a.b + b.b) / 2} }

// mergeAeWindow fuses one AE window, then takes out the black level and
// applies the awb1 gain. It returns the grid, and the weighted mean of
// the selected channel.
func (e *Engine) mergeAeWindow(l, r []hwstats.AeBlock, wnd int, mode geom.SplitMode, weights []uint8) (*AeGrid, uint16) {
	blocks := mergeBlocks(unpackAe(l), unpackAe(r), wnd, mode, averageRGB)
	ctx := e.bls

	luma := ecolor.LumaLimitedRange
	if e.cfg.YRangeFull {
		luma = ecolor.LumaFullRange
	}

	g := &AeGrid{
		Grid: wnd,
		R:    make([]uint16, len(blocks)),
		G:    make([]uint16, len(blocks)),
		B:    make([]uint16, len(blocks)),
		Y:    make([]uint8, len(blocks)),
	}

	for i, b := range blocks {
		g.R[i] = uint16(emath.ClipInt(b.r*ctx.Gain.R/256-ctx.Val.R, 0, emath.Max10Bits))
		g.G[i] = uint16(emath.ClipInt(b.g*ctx.Gain.Gr/256-ctx.Val.Gr, 0, emath.Max12Bits))
		g.B[i] = uint16(emath.ClipInt(b.b*ctx.Gain.B/256-ctx.Val.B, 0, emath.Max10Bits))

		y := luma.Y(float64(g.R[i]>>2), float64(g.G[i]>>4), float64(g.B[i]>>2))
		g.Y[i] = uint8(emath.ClipInt(int64(math.Round(y)), 0, emath.Max8Bits))
	}

	var sel func(i int) uint64
	switch e.cfg.ChannelSel {
	case "rgb":
		return g, 0
	case "r":
		sel = func(i int) uint64 { return uint64(g.R[i] >> 2) }
	case "g":
		sel = func(i int) uint64 { return uint64(g.G[i] >> 4) }
	case "b":
		sel = func(i int) uint64 { return uint64(g.B[i] >> 2) }
	default:
		sel = func(i int) uint64 { return uint64(g.Y[i]) }
	}

	sum, sumW := uint64(0), uint64(0)
	for i := range blocks {
		w := uint64(1)
		if i < len(weights) {
			w = uint64(weights[i])
		}
		sum += sel(i) * w
		sumW += w
	}
	if sumW == 0 {
		return g, 0
	}
	return g, uint16(math.Round(256.0 * float64(sum) / float64(sumW)))
}

// mergeSubWins fuses the big window's sub-window sums, which are always
// split across both ISPs.
func (e *Engine) mergeSubWins(l, r [4]hwstats.SubWinRaw) [4]SubWinSum {
	ctx := e.bls
	out := [4]SubWinSum{}

	for i := range out {
		pix := int64(e.cfg.SubWin[i].Area()) >> 2
		sumR := int64(uint64(l[i].SumR) + uint64(r[i].SumR))
		sumG := int64(uint64(l[i].SumG) + uint64(r[i].SumG))
		sumB := int64(uint64(l[i].SumB) + uint64(r[i].SumB))

		out[i].R = uint64(emath.ClipInt(sumR*ctx.Gain.R/256-pix*ctx.Val.R, 0, emath.Max29Bits))
		out[i].G = uint64(emath.ClipInt(sumG*ctx.Gain.Gr/256-pix*ctx.Val.Gr, 0, emath.Max32Bits))
		out[i].B = uint64(emath.ClipInt(sumB*ctx.Gain.B/256-pix*ctx.Val.B, 0, emath.Max29Bits))
	}

	return out
}

// FuseAe fuses the AE windows, sub-windows and histograms. Which
// engines are in use depends on the swap mode: s_lite uses the lite
// engine for channel 0, m_lite uses the big engine for channel 0. HDR
// uses both.
func (e *Engine) FuseAe(l, r *hwstats.RawStatBuffer) result.Result[*MergedAe] {
	useLite := e.cfg.SwapMode == "s_lite"
	bits := []uint{hwstats.MeasAeLiteS, hwstats.MeasHistLiteS}
	if !useLite {
		bits = []uint{hwstats.MeasAeBigM, hwstats.MeasHistBigM}
	}

	if res, ok := precheck[*MergedAe](e.dec, "fuse ae", l, r, bits...); !ok {
		return res
	}

	ae := &MergedAe{
		LiteMode:     e.aeLiteMode,
		BigMode:      e.aeBigMode,
		HistLiteMode: e.histLiteMode,
		HistBigMode:  e.histBigMode,
	}

	liteCh, bigCh := 0, 1
	if !useLite {
		liteCh, bigCh = 1, 0
	}
	ae.LiteChannel = liteCh

	liteWidth := hwstats.HistBins / e.dec.LiteHistBins()

	if e.cfg.Hdr || useLite {
		ae.LiteHist = MergeHist(l.Ae.LiteHist, r.Ae.LiteHist, e.histLiteMode, e.cfg.HistModeLite, e.bls)
		ae.Lite, ae.RawMean[liteCh] = e.mergeAeWindow(l.Ae.Lite, r.Ae.Lite, e.dec.LiteGrid(), e.aeLiteMode, e.cfg.LiteWeight)
		ae.HistMean[liteCh] = HistMean(ae.LiteHist[:e.dec.LiteHistBins()], liteWidth)
	}

	if e.cfg.Hdr || !useLite {
		ae.BigHist = MergeHist(l.Ae.BigHist, r.Ae.BigHist, e.histBigMode, e.cfg.HistModeBig, e.bls)
		ae.Big, ae.RawMean[bigCh] = e.mergeAeWindow(l.Ae.Big, r.Ae.Big, e.dec.BigGrid(), e.aeBigMode, e.cfg.BigWeight)
		ae.SubWin = e.mergeSubWins(l.Ae.SubWin, r.Ae.SubWin)
		ae.HistMean[bigCh] = HistMean(ae.BigHist, 1)
	}

	return result.Ok(ae)
}
