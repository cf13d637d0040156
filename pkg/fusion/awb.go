package fusion

import (
	"log"

	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
	"github.com/abworrall/ispfuse/pkg/result"
)

// awbSide is one ISP's AWB stats after overflow normalisation. The raw
// buffer is left alone; the rescaled values live here.
type awbSide struct {
	ram    []hwstats.AwbBlockRaw
	wpNum2 []uint32
}

// normaliseAwb undoes the hardware's reduced precision. Over a large
// window (or with luma weighted white point blocks) the block sums are
// accumulated with fewer weight bits, so scale them back up by
// (2^(k+1)-1)/(2^k-1).
func (e *Engine) normaliseAwb(b *hwstats.RawStatBuffer, win geom.Window) awbSide {
	side := awbSide{
		ram:    b.CopyAwbRam(),
		wpNum2: make([]uint32, len(b.Awb.Sum)),
	}
	for i, s := range b.Awb.Sum {
		side.wpNum2[i] = s.WpNum2
	}

	k := uint(e.cfg.WpWeightBits)
	factor := float64(int64(1)<<(k+1)-1) / float64(int64(1)<<k-1)
	scale := func(v uint32) uint32 { return uint32(float64(v)*factor + 0.5) }
	scaleRam := func() {
		for i := range side.ram {
			side.ram[i] = hwstats.AwbBlockRaw{
				R:  scale(side.ram[i].R),
				G:  scale(side.ram[i].G),
				B:  scale(side.ram[i].B),
				Wp: scale(side.ram[i].Wp),
			}
		}
	}

	if win.Area() > e.cfg.AwbMaxArea {
		scaleRam()
		for i, s := range b.Awb.Sum {
			side.wpNum2[i] = s.WpNumNor >> uint(e.cfg.WpGainFracBits)
		}
		if e.cfg.Verbosity > 1 {
			log.Printf("fusion: awb window %s over max area, rescaled\n", win)
		}
	} else if e.cfg.AwbBlkMode == "realwp" && e.cfg.AwbBlkLumaWeight {
		scaleRam()
	}

	return side
}

// FuseAwb fuses the per light source sums, the white point blocks and
// the white point histogram.
func (e *Engine) FuseAwb(l, r *hwstats.RawStatBuffer) result.Result[*MergedAwb] {
	if res, ok := precheck[*MergedAwb](e.dec, "fuse awb", l, r, hwstats.MeasAwb); !ok {
		return res
	}

	mode := e.awbMode
	pick := func(a, b uint32) uint64 {
		switch mode {
		case geom.LeftOnly:
			return uint64(a)
		case geom.RightOnly:
			return uint64(b)
		default:
			return uint64(a) + uint64(b)
		}
	}

	awb := &MergedAwb{
		Mode:   mode,
		Light:  make([]LightSum, e.dec.LightNum()),
		WpNo2:  make([]uint64, e.dec.LightNum()),
		Exc:    make([]ExcSum, e.dec.ExcRangeNum()),
		WpHist: make([]uint32, e.dec.WpHistBins()),
	}

	ls, rs := e.normaliseAwb(l, e.cfg.AwbLeft), e.normaliseAwb(r, e.cfg.AwbRight)

	for i := range awb.Light {
		a, b := l.Awb.Sum[i], r.Awb.Sum[i]
		awb.Light[i] = LightSum{
			NorRGain: pick(a.RGainNor, b.RGainNor),
			NorBGain: pick(a.BGainNor, b.BGainNor),
			NorWpNo:  pick(a.WpNumNor, b.WpNumNor),
			BigRGain: pick(a.RGainBig, b.RGainBig),
			BigBGain: pick(a.BGainBig, b.BGainBig),
			BigWpNo:  pick(a.WpNumBig, b.WpNumBig),
		}
		awb.WpNo2[i] = pick(ls.wpNum2[i], rs.wpNum2[i])
	}

	for i := range awb.Exc {
		a, b := l.Awb.SumExc[i], r.Awb.SumExc[i]
		awb.Exc[i] = ExcSum{
			RGain: pick(a.RGain, b.RGain),
			BGain: pick(a.BGain, b.BGain),
			WpNo:  pick(a.WpNum, b.WpNum),
		}
	}

	for i := range awb.WpHist {
		awb.WpHist[i] = uint32(pick(hwstats.DecodeSatFlag(l.Awb.WpHist[i]), hwstats.DecodeSatFlag(r.Awb.WpHist[i])))
	}

	widen := func(in []hwstats.AwbBlockRaw) []AwbBlock {
		out := make([]AwbBlock, len(in))
		for i, b := range in {
			out[i] = AwbBlock{uint64(b.R), uint64(b.G), uint64(b.B), uint64(b.Wp)}
		}
		return out
	}
	sum := func(a, b AwbBlock) AwbBlock {
		return AwbBlock{a.R + b.R, a.G + b.G, a.B + b.B, a.WpNo + b.WpNo}
	}
	awb.Blocks = mergeBlocks(widen(ls.ram), widen(rs.ram), e.dec.AwbGrid(), mode, sum)

	return result.Ok(awb)
}
