package fusion

import (
	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
)

// The histogram engine counts pixels before the black level has been
// subtracted, or the awb1 gain applied. A histRemap moves each input
// bin to where it would have landed afterwards.
type histRemap struct {
	ob, bls   int64 // black levels, in 256 bin units
	awbPart   int64
	blsPart   int64
	divPart   int64
	roundPart int64
}

// Modes 2, 3 and 4 are R, G and B histograms; anything else is Y.
func newHistRemap(histMode int, ctx BlsContext) histRemap {
	hr := histRemap{}

	switch histMode {
	case 2:
		hr.ob, hr.bls, hr.awbPart = ctx.ObRB>>2, ctx.Ori.R>>2, ctx.Gain.R
		hr.divPart, hr.roundPart = 256, 128
	case 3:
		hr.ob, hr.bls, hr.awbPart = ctx.ObG>>4, ctx.Ori.Gr>>4, ctx.Gain.Gr
		hr.divPart, hr.roundPart = 256, 128
	case 4:
		hr.ob, hr.bls, hr.awbPart = ctx.ObRB>>2, ctx.Ori.B>>2, ctx.Gain.B
		hr.divPart, hr.roundPart = 256, 128
	default:
		hr.ob = ((ctx.ObG>>4)*587 + (ctx.ObRB>>2)*299 + (ctx.ObRB>>2)*114 + 500) / 1000
		hr.bls = ((ctx.Ori.Gr>>4)*587 + (ctx.Ori.R>>2)*299 + (ctx.Ori.B>>2)*114 + 500) / 1000
		hr.awbPart = 100
		hr.divPart = 7655/ctx.Gain.R + 15027/ctx.Gain.Gr + 2919/ctx.Gain.B
		hr.roundPart = hr.divPart / 2
	}

	if hr.divPart == 0 {
		// Absurdly large gains
		hr.divPart, hr.roundPart = 1, 0
	}
	hr.blsPart = (hr.ob + hr.bls) * hr.awbPart

	return hr
}

// bin returns the output bin for input bin i, for a histogram with n
// bins. The black levels are in 256 bin units, so a narrow (32 bin)
// histogram's bin is taken at its center on that scale, remapped, and
// then put back into the narrow bin space.
func (hr histRemap) bin(i, n int) int {
	width := int64(1)
	if n < hwstats.HistBins {
		width = int64(hwstats.HistBins / n)
	}
	x := int64(i)
	if width > 1 {
		x = width*x + width/2
	}

	tmp := int64(0)
	if x-hr.ob-hr.bls > 0 {
		tmp = (x*hr.awbPart - hr.blsPart + hr.roundPart) / hr.divPart
	}
	if tmp > hwstats.HistBins-1 {
		tmp = hwstats.HistBins - 1
	}

	return int(tmp / width)
}

// MergeHist fuses two AE histograms into a 256 bin one. A histogram
// with fewer bins (the V32-lite lite histogram) fills the first bins
// of the output.
func MergeHist(l, r []uint32, mode geom.SplitMode, histMode int, ctx BlsContext) []uint32 {
	out := make([]uint32, hwstats.HistBins)

	n := len(l)
	if mode == geom.RightOnly {
		n = len(r)
	} else if mode != geom.LeftOnly && len(r) < n {
		n = len(r)
	}
	if n > hwstats.HistBins {
		n = hwstats.HistBins
	}

	in := func(i int) uint32 {
		switch mode {
		case geom.LeftOnly:
			return l[i]
		case geom.RightOnly:
			return r[i]
		default:
			return l[i] + r[i]
		}
	}

	if !ctx.Active {
		for i := 0; i < n; i++ {
			out[i] = in(i)
		}
		return out
	}

	hr := newHistRemap(histMode, ctx)
	for i := 0; i < n; i++ {
		out[hr.bin(i, n)] += in(i)
	}
	return out
}

// HistMean is the mean bin number (1-based), as an 8 bit value. binWidth
// scales narrow histograms up to the 256 bin scale.
func HistMean(bins []uint32, binWidth int) uint8 {
	pix := uint64(0)
	sum := 0.0
	for i, b := range bins {
		pix += uint64(b)
		sum += float64(b) * float64(i+1) * float64(binWidth)
	}
	if pix == 0 {
		pix = 1
	}
	mean := sum / float64(pix)
	if mean > 255 {
		mean = 255
	}
	return uint8(mean)
}
