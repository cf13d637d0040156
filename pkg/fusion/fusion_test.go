package fusion

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
	"github.com/abworrall/ispfuse/pkg/result"
)

var allMeas = hwstats.MeasType(0).With(hwstats.MeasAwb, hwstats.MeasAf, hwstats.MeasAeLiteS,
	hwstats.MeasAeBigM, hwstats.MeasHistLiteS, hwstats.MeasHistBigM, hwstats.MeasDehaze)

var (
	fullWin  = geom.Window{HOffs: 0, VOffs: 0, HSize: 4000, VSize: 3000}
	leftWin  = geom.Window{HOffs: 0, VOffs: 0, HSize: 1000, VSize: 1000}
	rightWin = geom.Window{HOffs: 3000, VOffs: 0, HSize: 1000, VSize: 1000}
)

func testConfig() Config {
	c := NewConfig()
	c.Isp = geom.NewIspPair(4000, 3000, 64)
	c.AeLite, c.HistLite = leftWin, leftWin
	c.AeBig, c.HistBig = fullWin, fullWin
	c.Awb = fullWin
	c.AfA, c.AfB = fullWin, leftWin
	for i := range c.SubWin {
		c.SubWin[i] = geom.Window{HSize: 20, VSize: 20}
	}
	return c
}

func testEngine(t *testing.T, mutate func(c *Config)) *Engine {
	c := testConfig()
	if mutate != nil {
		mutate(&c)
	}
	e, err := NewEngine(c)
	require.NoError(t, err)
	return e
}

func testBuffers(frameID uint32, meas hwstats.MeasType) (*hwstats.RawStatBuffer, *hwstats.RawStatBuffer) {
	l, r := hwstats.NewRawStatBuffer(hwstats.V32{}), hwstats.NewRawStatBuffer(hwstats.V32{})
	l.FrameID, r.FrameID = frameID, frameID
	l.MeasType, r.MeasType = meas, meas
	return l, r
}

func TestScenarioLeftOnlyHistogram(t *testing.T) {
	e := testEngine(t, nil)
	l, r := testBuffers(42, 0x0880)
	for i := range l.Ae.LiteHist {
		l.Ae.LiteHist[i] = uint32(i * 3)
		r.Ae.LiteHist[i] = 7
	}

	res := e.FuseAe(l, r)
	require.True(t, res.IsOk(), "%v", res.Err)
	ae := res.Value

	assert.Equal(t, geom.LeftOnly, ae.HistLiteMode)
	assert.Equal(t, l.Ae.LiteHist, ae.LiteHist)
	assert.NotNil(t, ae.Lite)
	assert.Nil(t, ae.Big, "s_lite, not HDR")
}

func TestScenarioFrameMismatch(t *testing.T) {
	e := testEngine(t, nil)
	l, r := testBuffers(42, allMeas)
	l.FrameID = 41

	res := e.FuseAe(l, r)
	assert.Equal(t, result.StatusError, res.Status)
	assert.True(t, errors.Is(res.Err, result.ErrParam))
	assert.Nil(t, res.Value)

	rec, err := e.FuseFrame(l, r)
	assert.Nil(t, rec)
	assert.True(t, errors.Is(err, result.ErrParam))

	l.FrameID = 42
	l.MeasType = allMeas &^ (1 << hwstats.MeasAf)
	assert.True(t, errors.Is(e.FuseAf(l, r).Err, result.ErrParam))
}

func TestBypass(t *testing.T) {
	e := testEngine(t, nil)
	l, r := testBuffers(1, allMeas)

	res := e.FuseAwb(nil, r)
	assert.True(t, res.IsBypass())
	assert.True(t, errors.Is(res.Err, result.ErrBypass))

	short, _ := testBuffers(1, allMeas)
	short.Awb.Ram = short.Awb.Ram[:10]
	assert.True(t, e.FuseAwb(short, r).IsBypass())

	l.MeasType, r.MeasType = 0, 0
	assert.True(t, e.FuseAwb(l, r).IsBypass())
	assert.True(t, e.FuseAe(l, r).IsBypass())
	assert.True(t, e.FuseDehaze(l, r).IsBypass())
}

func TestFuseFrame(t *testing.T) {
	e := testEngine(t, nil)
	l, r := testBuffers(7, allMeas)

	rec, err := e.FuseFrame(l, r)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), rec.FrameID)
	assert.True(t, rec.AeValid && rec.AwbValid && rec.AfValid && rec.DhazValid)
	assert.NotNil(t, rec.Ae)

	// No AF this frame; everything else still fuses
	l.MeasType = allMeas &^ (1 << hwstats.MeasAf)
	r.MeasType = l.MeasType
	rec, err = e.FuseFrame(l, r)
	require.NoError(t, err)
	assert.False(t, rec.AfValid)
	assert.Nil(t, rec.Af)
	assert.True(t, rec.AwbValid)
}

func TestDeriveBls(t *testing.T) {
	c := testConfig()
	c.Bls = BlsConfig{ObOffset: 64, ObPredGain: 512, Bls1Enable: true, Bls1: Quad{R: 400, Gr: 400, Gb: 200, B: 80}}
	c.AwbGain1 = Quad{R: 512, Gr: 0, Gb: 256, B: 300}

	ctx := DeriveBls(c)
	assert.True(t, ctx.Active)
	assert.Equal(t, int64(16), ctx.ObRB)
	assert.Equal(t, int64(64), ctx.ObG)
	assert.Equal(t, Quad{R: 50, Gr: 200, Gb: 100, B: 10}, ctx.Ori)
	assert.Equal(t, Quad{R: 512, Gr: 256, Gb: 256, B: 300}, ctx.Gain)
	assert.Equal(t, Quad{R: 132, Gr: 264, Gb: 164, B: 30}, ctx.Val)

	c.Hdr = true
	ctx = DeriveBls(c)
	assert.False(t, ctx.Active)
	assert.Equal(t, Quad{}, ctx.Ori)
}

func TestMergeHistRemap(t *testing.T) {
	c := testConfig()
	c.Bls = BlsConfig{ObOffset: 64, Bls1Enable: true}
	ctx := DeriveBls(c)

	in := make([]uint32, 256)
	for i := range in {
		in[i] = 1
	}

	// G histogram: black level of 4 bins, unity gain, so everything slides down 4
	out := MergeHist(in, nil, geom.LeftOnly, 3, ctx)
	assert.Equal(t, uint32(5), out[0])
	assert.Equal(t, uint32(1), out[1])
	assert.Equal(t, uint32(1), out[251])
	assert.Equal(t, uint32(0), out[252])
	assert.Equal(t, uint64(256), total(out))

	// Y histogram, with gain
	c.AwbGain1 = Quad{R: 512, Gr: 512, Gb: 512, B: 512}
	out = MergeHist(in, in, geom.Split, 5, DeriveBls(c))
	assert.Equal(t, uint64(512), total(out))
	assert.Equal(t, uint32(2*129), out[255], "bins 127 and up saturate")
}

func TestMergeHistLite(t *testing.T) {
	c := testConfig()
	c.Bls = BlsConfig{ObOffset: 64, Bls1Enable: true}
	ctx := DeriveBls(c)

	in := make([]uint32, 32)
	for i := range in {
		in[i] = 1
	}
	out := MergeHist(in, nil, geom.LeftOnly, 3, ctx)
	assert.Equal(t, 256, len(out))
	assert.Equal(t, uint64(32), total(out[:32]))
	assert.Equal(t, uint64(0), total(out[32:]))

	// A black level of 4 (of 256) is half a narrow bin, and bin centers
	// don't cross a boundary
	assert.Equal(t, in, out[:32])

	// Not remapped, just copied
	out = MergeHist(in, nil, geom.LeftOnly, 3, BlsContext{})
	assert.Equal(t, in, out[:32])

	// Zero black level and unity gain is the identity
	c.Bls = BlsConfig{Bls1Enable: true}
	ctx = DeriveBls(c)
	require.True(t, ctx.Active)
	ramp := make([]uint32, 32)
	for i := range ramp {
		ramp[i] = uint32(i + 1)
	}
	out = MergeHist(ramp, nil, geom.LeftOnly, 3, ctx)
	assert.Equal(t, ramp, out[:32])
	assert.Equal(t, HistMean(ramp, 8), HistMean(out[:32], 8))

	// A black level of 16 (two narrow bins) slides everything down two,
	// piling bins 0..2 into the first
	c.Bls = BlsConfig{ObOffset: 256, Bls1Enable: true}
	out = MergeHist(in, nil, geom.LeftOnly, 3, DeriveBls(c))
	assert.Equal(t, uint32(3), out[0])
	assert.Equal(t, uint32(1), out[1])
	assert.Equal(t, uint32(1), out[29])
	assert.Equal(t, uint32(0), out[30])
	assert.Equal(t, uint32(0), out[31])
	assert.Equal(t, uint64(32), total(out))
}

// Split histograms are a plain sum, so which ISP is which can't matter
func TestMergeHistSplitCommutes(t *testing.T) {
	a, b := make([]uint32, 256), make([]uint32, 256)
	for i := range a {
		a[i] = uint32(i * i % 97)
		b[i] = uint32(3*i + 1)
	}

	c := testConfig()
	c.Bls = BlsConfig{ObOffset: 80, Bls1Enable: true, Bls1: Quad{R: 40, Gr: 40, Gb: 40, B: 40}}
	c.AwbGain1 = Quad{R: 600, Gr: 256, Gb: 256, B: 450}
	for _, ctx := range []BlsContext{{}, DeriveBls(c)} {
		for _, mode := range []int{2, 3, 4, 5} {
			assert.Equal(t, MergeHist(a, b, geom.Split, mode, ctx), MergeHist(b, a, geom.Split, mode, ctx))
		}
	}
}

func TestHistMean(t *testing.T) {
	bins := make([]uint32, 256)
	bins[9] = 4 // bin number 10
	assert.Equal(t, uint8(10), HistMean(bins, 1))
	assert.Equal(t, uint8(0), HistMean(make([]uint32, 256), 1))
	assert.Equal(t, uint8(80), HistMean(bins[:32], 8))
}

func TestMergeBlocks(t *testing.T) {
	l, r := make([]int, 25), make([]int, 25)
	for i := range l {
		l[i] = i % 5
		r[i] = 10 + i%5
	}
	sum := func(a, b int) int { return a + b }

	out := mergeBlocks(l, r, 5, geom.Split, sum)
	assert.Equal(t, []int{1, 5, 14, 23, 27}, out[20:25])
	assert.Equal(t, l, mergeBlocks(l, r, 5, geom.LeftOnly, sum))
	assert.Equal(t, r, mergeBlocks(l, r, 5, geom.RightOnly, sum))
}

func TestFuseAeWindow(t *testing.T) {
	e := testEngine(t, nil)
	l, r := testBuffers(1, allMeas)
	for i := range l.Ae.Lite {
		l.Ae.Lite[i] = hwstats.PackAeBlock(400, 2000, 100)
		r.Ae.Lite[i] = hwstats.PackAeBlock(1, 1, 1)
	}

	ae := e.FuseAe(l, r).Value
	require.NotNil(t, ae)
	assert.Equal(t, geom.LeftOnly, ae.LiteMode)
	assert.Equal(t, uint16(400), ae.Lite.R[0])
	assert.Equal(t, uint16(2000), ae.Lite.G[0])
	assert.Equal(t, uint16(100), ae.Lite.B[0])
	assert.Equal(t, uint8(106), ae.Lite.Y[0])
	assert.Equal(t, uint16(106*256), ae.RawMean[0])

	e = testEngine(t, func(c *Config) { c.ChannelSel = "rgb" })
	assert.Equal(t, uint16(0), e.FuseAe(l, r).Value.RawMean[0])

	// A black level eats into the values
	e = testEngine(t, func(c *Config) { c.Bls.ObOffset = 64 })
	ae = e.FuseAe(l, r).Value
	assert.Equal(t, uint16(400-16), ae.Lite.R[0])
	assert.Equal(t, uint16(2000-64), ae.Lite.G[0])
}

func TestFuseAeBig(t *testing.T) {
	e := testEngine(t, func(c *Config) {
		c.SwapMode = "m_lite"
		c.Bls.ObOffset = 64
	})
	l, r := testBuffers(1, allMeas)
	l.Ae.SubWin[0] = hwstats.SubWinRaw{SumR: 1000, SumG: 5000, SumB: 100}
	r.Ae.SubWin[0] = hwstats.SubWinRaw{SumR: 2000, SumG: 5000, SumB: 100}

	ae := e.FuseAe(l, r).Value
	require.NotNil(t, ae)
	assert.Nil(t, ae.Lite)
	assert.NotNil(t, ae.Big)
	assert.Equal(t, 1, ae.LiteChannel)
	assert.Equal(t, geom.Split, ae.BigMode)
	assert.Equal(t, SubWinSum{R: 1400, G: 3600, B: 0}, ae.SubWin[0])

	// m_lite needs the big engine's bits
	l.MeasType = hwstats.MeasType(0).With(hwstats.MeasAeLiteS, hwstats.MeasHistLiteS)
	r.MeasType = l.MeasType
	assert.True(t, e.FuseAe(l, r).IsBypass())
}

func TestFuseAwb(t *testing.T) {
	e := testEngine(t, func(c *Config) {
		c.AwbMaxArea = 1000
		c.AwbLeft = geom.Window{HSize: 100, VSize: 100}
		c.AwbRight = geom.Window{HSize: 10, VSize: 10}
	})
	l, r := testBuffers(1, allMeas)

	for i := range l.Awb.Ram {
		l.Awb.Ram[i] = hwstats.AwbBlockRaw{R: 63, G: 63, B: 63, Wp: 63}
		r.Awb.Ram[i] = hwstats.AwbBlockRaw{R: 10, G: 10, B: 10, Wp: 10}
	}
	for i := range l.Awb.Sum {
		l.Awb.Sum[i] = hwstats.LightSumRaw{RGainNor: 100, WpNumNor: 160, WpNum2: 99}
		r.Awb.Sum[i] = hwstats.LightSumRaw{RGainNor: 50, WpNumNor: 80, WpNum2: 5}
	}
	l.Awb.WpHist[0], r.Awb.WpHist[0] = 0x8123, 0x0001

	awb := e.FuseAwb(l, r).Value
	require.NotNil(t, awb)
	assert.Equal(t, geom.Split, awb.Mode)

	// Left was rescaled by 127/63, right was not
	assert.Equal(t, uint64(254), awb.Blocks[0].R)
	assert.Equal(t, uint64(137), awb.Blocks[7].R)
	assert.Equal(t, uint64(20), awb.Blocks[14].R)

	assert.Equal(t, uint64(150), awb.Light[0].NorRGain)
	assert.Equal(t, uint64(240), awb.Light[0].NorWpNo)
	assert.Equal(t, uint64(160>>4+5), awb.WpNo2[0])
	assert.Equal(t, uint32(0x123*8+1), awb.WpHist[0])

	// The input buffers weren't touched
	assert.Equal(t, uint32(63), l.Awb.Ram[0].R)
	assert.Equal(t, uint32(99), l.Awb.Sum[0].WpNum2)

	// Realwp blocks with luma weighting get rescaled regardless of area
	e = testEngine(t, func(c *Config) {
		c.AwbBlkMode = "realwp"
		c.AwbBlkLumaWeight = true
		c.Awb = leftWin
	})
	awb = e.FuseAwb(l, r).Value
	assert.Equal(t, geom.LeftOnly, awb.Mode)
	assert.Equal(t, uint64(127), awb.Blocks[0].R)
	assert.Equal(t, uint64(99), awb.WpNo2[0])
}

func TestFuseAf(t *testing.T) {
	l, r := testBuffers(1, allMeas)
	for i := range l.Af.Ram {
		l.Af.Ram[i] = hwstats.AfFvRaw{V1: uint32(i % 15)}
		r.Af.Ram[i] = hwstats.AfFvRaw{V1: uint32(1000 + i%15)}
		l.Af.Luma[i] = hwstats.PackAfLuma(1000, 1)
		r.Af.Luma[i] = hwstats.PackAfLuma(2000, 2)
	}
	l.Af.LumB, r.Af.LumB = 1000, 2000

	// Full width
	e := testEngine(t, nil)
	af := e.FuseAf(l, r).Value
	require.NotNil(t, af)
	assert.Equal(t, geom.FullSpan, af.Plan.Side)
	v1 := func(row int) []uint32 {
		out := []uint32{}
		for _, fv := range af.Fv[row*15 : row*15+15] {
			out = append(out, fv.V1)
		}
		return out
	}
	assert.Equal(t, []uint32{0, 3, 7, 11, 15, 19, 23, 27, 2003, 2007, 2011, 2015, 2019, 2023, 2027}, v1(3))
	assert.Equal(t, uint32(1000), af.Luma[1])
	assert.Equal(t, uint32(2), af.Highlit[1])
	assert.Equal(t, uint32(4), af.Highlit[14])
	assert.Equal(t, uint32(1000), af.LumaB, "window B on the left")

	// Split, with a blended seam column
	e = testEngine(t, func(c *Config) {
		c.AfA = geom.Window{HOffs: 1000, HSize: 1950, VSize: 1000}
		c.AfB = geom.Window{HOffs: 1000, HSize: 2000, VSize: 100}
	})
	af = e.FuseAf(l, r).Value
	require.NotNil(t, af)
	assert.Equal(t, geom.Split, af.Plan.Side)
	assert.Equal(t, []uint32{6, 7, 8, 9, 10, 11, 12, 13, 29, 1000, 1001, 1002, 1003, 1004, 1005}, v1(0))
	assert.Equal(t, uint32(3), af.Highlit[8])
	assert.InDelta(t, 1469, float64(af.LumaB), 1)
	assert.Equal(t, uint32(0), af.CompBls)
}

func TestFuseAfCompBls(t *testing.T) {
	e := testEngine(t, func(c *Config) {
		c.AfA = leftWin
		c.Bls = BlsConfig{ObOffset: 64, Bls1Enable: true, Bls1: Quad{R: 256, Gr: 256, Gb: 256, B: 256}}
	})
	l, r := testBuffers(1, allMeas)
	for i := range l.Af.Luma {
		l.Af.Luma[i] = hwstats.PackAfLuma(1000, 0)
	}
	l.Af.Luma[1] = hwstats.PackAfLuma(100, 0)

	af := e.FuseAf(l, r).Value
	require.NotNil(t, af)
	assert.Equal(t, uint32(48), af.CompBls)
	assert.Equal(t, uint32(847), af.Luma[0])
	assert.Equal(t, uint32(0), af.Luma[1], "floored at zero")

	e = testEngine(t, func(c *Config) {
		c.AfA = leftWin
		c.AfFromYnr = true
		c.Bls = BlsConfig{ObOffset: 64, Bls1Enable: true, Bls1: Quad{R: 256, Gr: 256, Gb: 256, B: 256}}
	})
	assert.Equal(t, uint32(0), e.FuseAf(l, r).Value.CompBls)
}

func TestFuseDehaze(t *testing.T) {
	e := testEngine(t, nil)
	l, r := testBuffers(1, allMeas)
	l.Dhaz.AirBase, r.Dhaz.AirBase = 100, 201
	l.Dhaz.PicSumH, r.Dhaz.PicSumH = 3, 1
	for i := range l.Dhaz.HRgbIir {
		l.Dhaz.HRgbIir[i], r.Dhaz.HRgbIir[i] = 100, 200
	}
	l.Dhaz.HRgbIir[1] = 5000

	d := e.FuseDehaze(l, r).Value
	require.NotNil(t, d)
	assert.Equal(t, uint32(150), d.AirBase)
	assert.Equal(t, uint32(2), d.PicSumH)
	assert.Equal(t, uint32(125), d.HRgbIir[0])
	assert.Equal(t, uint32(1023), d.HRgbIir[1])

	l.Dhaz.PicSumH, r.Dhaz.PicSumH = 0, 0
	d = e.FuseDehaze(l, r).Value
	assert.Equal(t, uint32(150), d.HRgbIir[0])
}

func total(bins []uint32) uint64 {
	t := uint64(0)
	for _, b := range bins {
		t += uint64(b)
	}
	return t
}
