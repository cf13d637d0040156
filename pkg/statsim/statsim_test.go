package statsim

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/abworrall/ispfuse/pkg/fusion"
	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
)

var (
	fullWin = geom.Window{HSize: 4000, VSize: 3000}
	leftWin = geom.Window{HSize: 1000, VSize: 1000}
)

func testConfig() fusion.Config {
	c := fusion.NewConfig()
	c.Isp = geom.NewIspPair(4000, 3000, 64)
	c.AeLite, c.HistLite = leftWin, leftWin
	c.AeBig, c.HistBig = fullWin, fullWin
	c.Awb = fullWin
	c.AfA, c.AfB = fullWin, leftWin
	for i := range c.SubWin {
		c.SubWin[i] = geom.Window{HOffs: 1800, VOffs: 1400, HSize: 400, VSize: 200}
	}
	return c
}

func uniform(w, h int, c color.RGBA64) *image.RGBA64 {
	img := image.NewRGBA64(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA64(x, y, c)
		}
	}
	return img
}

// 8 bit {64, 128, 32}: luma 98, awb gains 2.0 and 4.0
var cast = color.RGBA64{0x4000, 0x8000, 0x2000, 0xffff}

func TestSynthesizeShape(t *testing.T) {
	sim, err := NewSimulator(testConfig())
	require.NoError(t, err)

	l, r, err := sim.Synthesize(uniform(400, 300, cast), 7)
	require.NoError(t, err)

	for _, b := range []*hwstats.RawStatBuffer{l, r} {
		assert.NoError(t, hwstats.V32{}.Validate(b))
		assert.Equal(t, uint32(7), b.FrameID)
		assert.Equal(t, AllMeas, b.MeasType)
	}

	_, _, err = sim.Synthesize(image.NewRGBA64(image.Rectangle{}), 8)
	assert.Error(t, err)
}

func TestUniformSceneFuses(t *testing.T) {
	cfg := testConfig()
	sim, err := NewSimulator(cfg)
	require.NoError(t, err)
	e, err := fusion.NewEngine(cfg)
	require.NoError(t, err)

	l, r, err := sim.Synthesize(uniform(400, 300, cast), 1)
	require.NoError(t, err)
	rec, err := e.FuseFrame(l, r)
	require.NoError(t, err)
	require.True(t, rec.AeValid)
	require.True(t, rec.AwbValid)
	require.True(t, rec.AfValid)
	require.True(t, rec.DhazValid)

	// Every block the same
	for i, y := range rec.Ae.Lite.Y {
		assert.InDelta(t, 98, int(y), 1, "block %d", i)
	}
	assert.Equal(t, uint8(99), rec.Ae.HistMean[0], "1-based bin of luma 98")

	light := rec.Awb.Light[0]
	require.NotZero(t, light.NorWpNo)
	frac := float64(int64(1) << uint(cfg.WpGainFracBits))
	assert.InDelta(t, 2.0, float64(light.NorRGain)/float64(light.NorWpNo)/frac, 1e-9)
	assert.InDelta(t, 4.0, float64(light.NorBGain)/float64(light.NorWpNo)/frac, 1e-9)

	// Nothing in focus in a flat field
	for i, fv := range rec.Af.Fv {
		assert.Equal(t, fusion.AfFv{}, fv, "block %d", i)
	}

	assert.Equal(t, uint32(98), rec.Dhaz.AirBase)
}

func TestSubWindowSums(t *testing.T) {
	sim, err := NewSimulator(testConfig())
	require.NoError(t, err)

	l, r, err := sim.Synthesize(uniform(400, 300, cast), 1)
	require.NoError(t, err)

	// The sub-window straddles the seam; each side sums the part it sees,
	// at 12 bits per Bayer quad
	sumG := uint64(l.Ae.SubWin[0].SumG) + uint64(r.Ae.SubWin[0].SumG)
	leftQuads := (2064 - 1800) * 200 / 4
	rightQuads := (2200 - 1936) * 200 / 4
	assert.Equal(t, uint64(2048*(leftQuads+rightQuads)), sumG)
}

func TestEdgesHaveFocus(t *testing.T) {
	img := uniform(400, 300, cast)
	for y := 0; y < 300; y++ {
		for x := 0; x < 400; x += 8 {
			img.SetRGBA64(x, y, color.RGBA64{0xffff, 0xffff, 0xffff, 0xffff})
		}
	}

	sim, err := NewSimulator(testConfig())
	require.NoError(t, err)
	l, _, err := sim.Synthesize(img, 1)
	require.NoError(t, err)

	assert.NotZero(t, l.Af.Ram[0].H1)
	assert.Zero(t, l.Af.Ram[0].V1, "stripes are vertical")
	assert.NotZero(t, l.Af.SumB)
	assert.NotZero(t, l.Af.Luma[0].Highlit())
}

func TestLoadScenes(t *testing.T) {
	dir := t.TempDir()
	img := uniform(40, 30, cast)

	write := func(name string, enc func(f *os.File) error) {
		f, err := os.Create(filepath.Join(dir, name))
		require.NoError(t, err)
		require.NoError(t, enc(f))
		require.NoError(t, f.Close())
	}
	write("a.png", func(f *os.File) error { return png.Encode(f, img) })
	write("b.tif", func(f *os.File) error { return tiff.Encode(f, img, nil) })
	write("notes.txt", func(f *os.File) error { _, err := f.WriteString("hello"); return err })

	scenes, err := LoadScenes(dir)
	require.NoError(t, err)
	require.Len(t, scenes, 2)

	assert.Equal(t, filepath.Join(dir, "a.png"), scenes[0].Filename)
	assert.Equal(t, 1.0, scenes[0].SensorGain, "no EXIF")
	assert.Equal(t, image.Rect(0, 0, 40, 30), scenes[1].Image.Bounds())

	_, err = LoadScenes(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}
