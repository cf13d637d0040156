package fusion

import (
	"github.com/abworrall/ispfuse/pkg/hwstats"
	"github.com/abworrall/ispfuse/pkg/result"
)

// FuseDehaze averages the two ISPs' dehaze stats. The IIR histogram is
// weighted by how much of the picture each ISP summed over.
func (e *Engine) FuseDehaze(l, r *hwstats.RawStatBuffer) result.Result[*MergedDehaze] {
	if res, ok := precheck[*MergedDehaze](e.dec, "fuse dehaze", l, r, hwstats.MeasDehaze); !ok {
		return res
	}

	a, b := l.Dhaz, r.Dhaz
	avg := func(x, y uint32) uint32 { return uint32((uint64(x) + uint64(y)) / 2) }

	d := &MergedDehaze{
		AirBase: avg(a.AirBase, b.AirBase),
		Wt:      avg(a.Wt, b.Wt),
		GRatio:  avg(a.GRatio, b.GRatio),
		TMax:    avg(a.TMax, b.TMax),
		PicSumH: avg(a.PicSumH, b.PicSumH),
		HRgbIir: make([]uint32, e.dec.DehazeIirNum()),
	}

	sumL, sumR := uint64(a.PicSumH), uint64(b.PicSumH)
	if sumL == 0 {
		sumL = uint64(e.cfg.DhazPicSumMin)
	}
	if sumR == 0 {
		sumR = uint64(e.cfg.DhazPicSumMin)
	}

	for i := range d.HRgbIir {
		v := (uint64(a.HRgbIir[i])*sumL + uint64(b.HRgbIir[i])*sumR) / (sumL + sumR)
		if v > uint64(e.cfg.DhazIirMax) {
			v = uint64(e.cfg.DhazIirMax)
		}
		d.HRgbIir[i] = uint32(v)
	}

	return result.Ok(d)
}
