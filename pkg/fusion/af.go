package fusion

import (
	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
	"github.com/abworrall/ispfuse/pkg/result"
)

const afLumaMax = emath.Max12Bits

// afCompBls is the black level still present in the AF luma, which is
// tapped off the AE engine before bls1 is subtracted. Zero unless bls1
// is on and AF is reading the raw path.
func (e *Engine) afCompBls() int64 {
	c := e.cfg
	if !c.Bls.Bls1Enable || c.Hdr || c.AfFromAwb || c.AfFromYnr {
		return 0
	}
	comp := (c.Bls.Bls1.Gr+c.Bls.Bls1.Gb)/2 - c.Bls.ObOffset
	if comp < 0 {
		comp = 0
	}
	return comp
}

// afLuma stretches a green value back to full scale after removing
// the black level.
func afLuma(g, comp int64) uint32 {
	if comp >= afLumaMax {
		return 0
	}
	v := (g - comp) * afLumaMax / (afLumaMax - comp)
	if v < 0 {
		return 0
	}
	return uint32(v)
}

func afLumaF(g float64, comp int64) uint32 {
	if comp >= afLumaMax {
		return 0
	}
	v := (g - float64(comp)) * afLumaMax / float64(afLumaMax-comp)
	if v < 0 {
		return 0
	}
	return uint32(v)
}

func addFv(a, b hwstats.AfFvRaw) AfFv {
	return AfFv{a.V1 + b.V1, a.V2 + b.V2, a.H1 + b.H1, a.H2 + b.H2}
}

func blendFv(a, b hwstats.AfFvRaw, la, lb float64) AfFv {
	f := func(x, y uint32) uint32 { return uint32(float64(x)*la + float64(y)*lb) }
	return AfFv{f(a.V1, b.V1), f(a.V2, b.V2), f(a.H1, b.H1), f(a.H2, b.H2)}
}

// FuseAf assembles the AF window A block grid according to the block
// plan, and blends window B.
func (e *Engine) FuseAf(l, r *hwstats.RawStatBuffer) result.Result[*MergedAf] {
	if res, ok := precheck[*MergedAf](e.dec, "fuse af", l, r, hwstats.MeasAf); !ok {
		return res
	}

	n := e.dec.AfGrid()
	plan := e.afPlan
	comp := e.afCompBls()

	af := &MergedAf{
		Plan:    plan,
		Fv:      make([]AfFv, n*n),
		Luma:    make([]uint32, n*n),
		Highlit: make([]uint32, n*n),
		CompBls: uint32(comp >> 2),
	}

	L, R := l.Af, r.Af

	// single copies a block across from one side
	single := func(dst int, side hwstats.AfRaw, src int) {
		f := side.Ram[src]
		af.Fv[dst] = AfFv{f.V1, f.V2, f.H1, f.H2}
		af.Luma[dst] = afLuma(int64(side.Luma[src].G()), comp)
		af.Highlit[dst] = side.Luma[src].Highlit()
	}

	// pair combines two horizontally adjacent blocks from one side
	pair := func(dst int, side hwstats.AfRaw, src int) {
		af.Fv[dst] = addFv(side.Ram[src], side.Ram[src+1])
		g := (int64(side.Luma[src].G()) + int64(side.Luma[src+1].G())) >> 1
		af.Luma[dst] = afLuma(g, comp)
		af.Highlit[dst] = side.Luma[src].Highlit() + side.Luma[src+1].Highlit()
	}

	switch plan.Side {
	case geom.LeftOnly:
		for i := 0; i < n*n; i++ {
			single(i, L, i)
		}

	case geom.RightOnly:
		for i := 0; i < n*n; i++ {
			single(i, R, i)
		}

	case geom.FullSpan:
		half := n / 2
		for i := 0; i < n; i++ {
			row := i * n
			for j := 0; j < n; j++ {
				switch {
				case j == 0:
					single(row, L, row)
				case j <= half:
					pair(row+j, L, row+2*(j-1)+1)
				default:
					pair(row+j, R, row+2*(j-half-1)+1)
				}
			}
		}

	default:
		for i := 0; i < n; i++ {
			row := i * n
			for k := 0; k < plan.LeftBlocks; k++ {
				single(row+k, L, row+n-plan.LeftBlocks+k)
			}
			for k := 0; k < plan.RightBlocks && plan.RightSkip+k < n; k++ {
				single(row+plan.LeftBlocks+k, R, row+plan.RightSkip+k)
			}
		}

		if plan.RightSkip == 0 && plan.LeftBlocks > 0 {
			for i := 0; i < n; i++ {
				dst := i*n + plan.LeftBlocks - 1
				li, ri := i*n+n-1, i*n
				af.Fv[dst] = blendFv(L.Ram[li], R.Ram[ri], plan.LeftRatio, plan.RightRatio)
				g := float64(L.Luma[li].G())*plan.LeftRatio + float64(R.Luma[ri].G())*plan.RightRatio
				af.Luma[dst] = afLumaF(g, comp)
				af.Highlit[dst] = L.Luma[li].Highlit() + R.Luma[ri].Highlit()
			}
		}
	}

	switch b := plan.WinB; b.Side {
	case geom.Split:
		af.LumaB = uint32(float64(L.LumB)*b.LeftRatio + float64(R.LumB)*b.RightRatio)
		af.SharpnessB = uint32(float64(L.SumB)*b.LeftRatio + float64(R.SumB)*b.RightRatio)
		af.HighlitB = L.HighlitB + R.HighlitB
	case geom.RightOnly:
		af.LumaB, af.SharpnessB, af.HighlitB = R.LumB, R.SumB, R.HighlitB
	default:
		af.LumaB, af.SharpnessB, af.HighlitB = L.LumB, L.SumB, L.HighlitB
	}

	return result.Ok(af)
}
