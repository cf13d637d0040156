package fusion

import (
	"fmt"
)

// BlsContext holds the black level and pre-white-balance gain values
// that the fusion math needs, all derived from the frame's BLS/AWB
// config. It is worked out once per configuration.
//
// The ISP has already subtracted the sensor OB level and applied the
// awb1 gains to the image, but the statistics are tapped before that;
// we apply the same corrections to the fused statistics.
type BlsContext struct {
	Active bool // bls1 is on, and not HDR

	ObRB int64 // OB offset at R/B stat depth (10 bits)
	ObG  int64 // OB offset at G stat depth (12 bits)

	Ori  Quad // bls1 values at stat bit depth
	Gain Quad // awb1 gains, 256 == 1.0, never below 1.0
	Val  Quad // what to subtract from gained stats: (ob + ori) * gain
}

func DeriveBls(cfg Config) BlsContext {
	bls := cfg.Bls
	ctx := BlsContext{
		Active: bls.Bls1Enable && !cfg.Hdr,
		ObRB:   bls.ObOffset >> 2,
		ObG:    bls.ObOffset,
	}
	if ctx.ObRB < 0 {
		ctx.ObRB = 0
	}

	predGain := bls.ObPredGain >> 8
	if predGain < 1 {
		predGain = 1
	}

	if ctx.Active {
		ctx.Ori = Quad{
			R:  (bls.Bls1.R / predGain) >> 2,
			Gr: bls.Bls1.Gr / predGain,
			Gb: bls.Bls1.Gb / predGain,
			B:  (bls.Bls1.B / predGain) >> 2,
		}
	}

	atLeast256 := func(v int64) int64 {
		if v < 256 {
			return 256
		}
		return v
	}
	ctx.Gain = Quad{
		R:  atLeast256(cfg.AwbGain1.R),
		Gr: atLeast256(cfg.AwbGain1.Gr),
		Gb: atLeast256(cfg.AwbGain1.Gb),
		B:  atLeast256(cfg.AwbGain1.B),
	}

	ctx.Val = Quad{
		R:  ((ctx.ObRB+ctx.Ori.R)*ctx.Gain.R + 128) / 256,
		Gr: ((ctx.ObG+ctx.Ori.Gr)*ctx.Gain.Gr + 128) / 256,
		Gb: ((ctx.ObG+ctx.Ori.Gb)*ctx.Gain.Gb + 128) / 256,
		B:  ((ctx.ObRB+ctx.Ori.B)*ctx.Gain.B + 128) / 256,
	}

	return ctx
}

func (ctx BlsContext) String() string {
	return fmt.Sprintf("bls{active:%v ob:%d/%d ori:%v gain:%v val:%v}",
		ctx.Active, ctx.ObRB, ctx.ObG, ctx.Ori, ctx.Gain, ctx.Val)
}
