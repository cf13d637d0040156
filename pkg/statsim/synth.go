package statsim

import (
	"fmt"
	"image"
	"log"
	"math"

	"golang.org/x/image/draw"

	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/fusion"
	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
)

// A Simulator stands in for the two ISPs of a dual ISP session. Given a
// picture of the whole (stitched) sensor, it writes the stats buffers
// each ISP would have produced for its own crop. It is a rough model:
// block sums are area averages, every mid-tone pixel is a white point
// (gray world), and focus values are plain gradient energies.
type Simulator struct {
	Verbosity int

	cfg fusion.Config
	dec hwstats.StatDecoder
}

// Everything the hardware can measure
var AllMeas = hwstats.MeasType(0).With(hwstats.MeasAwb, hwstats.MeasAf, hwstats.MeasAeLiteS,
	hwstats.MeasAeBigM, hwstats.MeasHistLiteS, hwstats.MeasHistBigM, hwstats.MeasDehaze)

// White point luma limits, 8 bit
const (
	wpLumaMin = 16
	wpLumaMax = 235
	highlit   = 250 // AF highlight threshold, 8 bit
)

func NewSimulator(cfg fusion.Config) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dec, err := hwstats.DecoderByName(cfg.Hardware)
	if err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, dec: dec, Verbosity: cfg.Verbosity}, nil
}

// A view maps stitched sensor coordinates onto the pixels of the
// scene image, which is usually much smaller than the sensor.
type view struct {
	img    *image.RGBA64
	sx, sy float64
	crop   geom.Rect
}

func newView(img *image.RGBA64, pair geom.IspPair, right bool) view {
	w := pair.Right.X + pair.Right.W
	h := emath.MaxInt(pair.Left.H, pair.Right.H)
	v := view{
		img:  img,
		sx:   float64(img.Bounds().Dx()) / float64(w),
		sy:   float64(img.Bounds().Dy()) / float64(h),
		crop: pair.Left,
	}
	if right {
		v.crop = pair.Right
	}
	return v
}

// rect is the image region under a window given in the crop's local
// coordinates.
func (v view) rect(w geom.Window) image.Rectangle {
	b := v.img.Bounds()
	r := image.Rect(
		b.Min.X+int(math.Floor(float64(v.crop.X+w.HOffs)*v.sx)),
		b.Min.Y+int(math.Floor(float64(v.crop.Y+w.VOffs)*v.sy)),
		b.Min.X+int(math.Ceil(float64(v.crop.X+w.HOffs+w.HSize)*v.sx)),
		b.Min.Y+int(math.Ceil(float64(v.crop.Y+w.VOffs+w.VSize)*v.sy)),
	)
	return r.Intersect(b)
}

// rgb8 returns a pixel's channels as 8 bit values.
func (v view) rgb8(x, y int) (r, g, b uint32) {
	c := v.img.RGBA64At(x, y)
	return uint32(c.R >> 8), uint32(c.G >> 8), uint32(c.B >> 8)
}

func luma8(r, g, b uint32) uint32 {
	return uint32(0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b) + 0.5)
}

// blocks scales the region down onto a grid x grid image, so each
// output pixel is (roughly) the average of its block.
func (v view) blocks(w geom.Window, grid int) *image.RGBA64 {
	dst := image.NewRGBA64(image.Rect(0, 0, grid, grid))
	if sr := v.rect(w); !sr.Empty() {
		draw.BiLinear.Scale(dst, dst.Bounds(), v.img, sr, draw.Src, nil)
	}
	return dst
}

// Synthesize produces the left and right stats buffers for one frame.
func (s *Simulator) Synthesize(img image.Image, frameID uint32) (l, r *hwstats.RawStatBuffer, err error) {
	if img == nil || img.Bounds().Empty() {
		return nil, nil, fmt.Errorf("synthesize: empty image")
	}

	// One conversion up front; everything after reads RGBA64 directly
	rgba, ok := img.(*image.RGBA64)
	if !ok {
		rgba = image.NewRGBA64(img.Bounds())
		draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	l = s.synthSide(newView(rgba, s.cfg.Isp, false), false, frameID)
	r = s.synthSide(newView(rgba, s.cfg.Isp, true), true, frameID)

	if s.Verbosity > 0 {
		log.Printf("statsim: frame %d from %s image\n", frameID, img.Bounds().Size())
	}
	return l, r, nil
}

func (s *Simulator) synthSide(v view, right bool, frameID uint32) *hwstats.RawStatBuffer {
	b := hwstats.NewRawStatBuffer(s.dec)
	b.FrameID = frameID
	b.MeasType = AllMeas

	local := func(w geom.Window) geom.Window { return s.cfg.Isp.LocalWindow(w, right) }

	s.synthAe(v, b, local)
	s.synthAwb(v, b, right)
	s.synthAf(v, b, local)
	s.synthDehaze(v, b)

	return b
}

// {{{ AE

func (s *Simulator) synthAe(v view, b *hwstats.RawStatBuffer, local func(geom.Window) geom.Window) {
	aeGrid := func(out []hwstats.AeBlock, w geom.Window, grid int) {
		img := v.blocks(w, grid)
		for y := 0; y < grid; y++ {
			for x := 0; x < grid; x++ {
				c := img.RGBA64At(x, y)
				out[y*grid+x] = hwstats.PackAeBlock(uint32(c.R>>6), uint32(c.G>>4), uint32(c.B>>6))
			}
		}
	}
	aeGrid(b.Ae.Lite, local(s.cfg.AeLite), s.dec.LiteGrid())
	aeGrid(b.Ae.Big, local(s.cfg.AeBig), s.dec.BigGrid())

	s.hist(v, b.Ae.LiteHist, local(s.cfg.HistLite), s.cfg.HistModeLite)
	s.hist(v, b.Ae.BigHist, local(s.cfg.HistBig), s.cfg.HistModeBig)

	for i, sw := range s.cfg.SubWin {
		w := local(sw)
		sr := v.rect(w)
		if sr.Empty() {
			continue
		}

		// Mean 12 bit value, times the number of Bayer quads in the window
		var sumR, sumG, sumB, n float64
		for y := sr.Min.Y; y < sr.Max.Y; y++ {
			for x := sr.Min.X; x < sr.Max.X; x++ {
				c := v.img.RGBA64At(x, y)
				sumR += float64(c.R >> 4)
				sumG += float64(c.G >> 4)
				sumB += float64(c.B >> 4)
				n++
			}
		}
		quads := float64(w.Area() >> 2)
		clip := func(f float64) uint32 {
			return uint32(emath.ClipInt(int64(f/n*quads), 0, emath.Max32Bits))
		}
		b.Ae.SubWin[i] = hwstats.SubWinRaw{SumR: clip(sumR), SumG: clip(sumG), SumB: clip(sumB)}
	}
}

// hist counts 8 bit values of the channel picked by the hist mode
// (2:R, 3:G, 4:B, 5:Y) into len(bins) bins.
func (s *Simulator) hist(v view, bins []uint32, w geom.Window, mode int) {
	sr := v.rect(w)
	width := uint32(hwstats.HistBins / len(bins))
	for y := sr.Min.Y; y < sr.Max.Y; y++ {
		for x := sr.Min.X; x < sr.Max.X; x++ {
			r, g, b := v.rgb8(x, y)
			val := luma8(r, g, b)
			switch mode {
			case 2:
				val = r
			case 3:
				val = g
			case 4:
				val = b
			}
			if val > 255 {
				val = 255
			}
			bins[val/width]++
		}
	}
}

// }}}
// {{{ AWB

// synthAwb treats every mid-tone pixel as a white point. The per light
// gains are G/R and G/B, in WpGainFracBits fixed point.
func (s *Simulator) synthAwb(v view, b *hwstats.RawStatBuffer, right bool) {
	w := s.cfg.AwbLeft
	if right {
		w = s.cfg.AwbRight
	}
	sr := v.rect(w)
	if sr.Empty() {
		return
	}

	grid := s.dec.AwbGrid()
	frac := float64(int64(1) << uint(s.cfg.WpGainFracBits))
	wpWidth := uint32(256 / len(b.Awb.WpHist))

	var rGain, bGain, wpNum float64
	wpHist := make([]uint32, len(b.Awb.WpHist))

	for y := sr.Min.Y; y < sr.Max.Y; y++ {
		by := (y - sr.Min.Y) * grid / sr.Dy()
		for x := sr.Min.X; x < sr.Max.X; x++ {
			bx := (x - sr.Min.X) * grid / sr.Dx()
			blk := &b.Awb.Ram[by*grid+bx]

			r, g, bl := v.rgb8(x, y)
			blk.R += r
			blk.G += g
			blk.B += bl

			lum := luma8(r, g, bl)
			if lum < wpLumaMin || lum > wpLumaMax || r == 0 || bl == 0 {
				continue
			}
			blk.Wp++
			rGain += float64(g) / float64(r) * frac
			bGain += float64(g) / float64(bl) * frac
			wpNum++
			wpHist[emath.ClipInt(int64(lum/wpWidth), 0, int64(len(wpHist)-1))]++
		}
	}

	clip := func(f float64) uint32 { return uint32(emath.ClipInt(int64(f+0.5), 0, emath.Max32Bits)) }
	sum := hwstats.LightSumRaw{
		RGainNor: clip(rGain),
		BGainNor: clip(bGain),
		WpNumNor: clip(wpNum),
		WpNum2:   clip(wpNum),
	}
	sum.RGainBig, sum.BGainBig, sum.WpNumBig = sum.RGainNor, sum.BGainNor, sum.WpNumNor
	b.Awb.Sum[0] = sum

	for i, n := range wpHist {
		b.Awb.WpHist[i] = hwstats.EncodeSatFlag(n)
	}
}

// }}}
// {{{ AF

func (s *Simulator) synthAf(v view, b *hwstats.RawStatBuffer, local func(geom.Window) geom.Window) {
	grid := s.dec.AfGrid()
	sr := v.rect(local(s.cfg.AfA))

	gSum := make([]uint32, grid*grid)
	hiCount := make([]uint32, grid*grid)
	count := make([]uint32, grid*grid)

	if !sr.Empty() {
		for y := sr.Min.Y; y < sr.Max.Y; y++ {
			by := (y - sr.Min.Y) * grid / sr.Dy()
			for x := sr.Min.X; x < sr.Max.X; x++ {
				i := by*grid + (x-sr.Min.X)*grid/sr.Dx()
				fv := &b.Af.Ram[i]
				fv.H1 += gradient(v, x, y, 1, 0)
				fv.H2 += gradient(v, x, y, 2, 0)
				fv.V1 += gradient(v, x, y, 0, 1)
				fv.V2 += gradient(v, x, y, 0, 2)

				_, g, _ := v.rgb8(x, y)
				gSum[i] += g
				count[i]++
				if g >= highlit {
					hiCount[i]++
				}
			}
		}
	}
	for i := range b.Af.Luma {
		g := uint32(0)
		if count[i] > 0 {
			g = (gSum[i] << 4) / count[i] // 12 bit
		}
		b.Af.Luma[i] = hwstats.PackAfLuma(g, hiCount[i])
	}

	// Window B is one block
	srB := v.rect(local(s.cfg.AfB))
	var gB, nB uint32
	for y := srB.Min.Y; y < srB.Max.Y; y++ {
		for x := srB.Min.X; x < srB.Max.X; x++ {
			_, g, _ := v.rgb8(x, y)
			gB += g
			nB++
			b.Af.SumB += gradient(v, x, y, 1, 0)
			if g >= highlit {
				b.Af.HighlitB++
			}
		}
	}
	if nB > 0 {
		b.Af.LumB = (gB << 4) / nB
	}
}

// gradient is |G(x+dx,y+dy) - G(x,y)|, zero at the image edge.
func gradient(v view, x, y, dx, dy int) uint32 {
	if !image.Pt(x+dx, y+dy).In(v.img.Bounds()) {
		return 0
	}
	_, g0, _ := v.rgb8(x, y)
	_, g1, _ := v.rgb8(x+dx, y+dy)
	return uint32(emath.AbsInt(int(g1) - int(g0)))
}

// }}}
// {{{ Dehaze

// synthDehaze fills in the dehaze stats from the dark channel
// (min(R,G,B)) over the whole crop.
func (s *Simulator) synthDehaze(v view, b *hwstats.RawStatBuffer) {
	sr := v.rect(geom.Window{HSize: v.crop.W, VSize: v.crop.H})
	if sr.Empty() {
		return
	}

	n := len(b.Dhaz.HRgbIir)
	counts := make([]uint64, n)
	var total, sumLuma uint64
	minDark, maxLuma := uint32(255), uint32(0)

	for y := sr.Min.Y; y < sr.Max.Y; y++ {
		for x := sr.Min.X; x < sr.Max.X; x++ {
			r, g, bl := v.rgb8(x, y)
			dark := r
			if g < dark {
				dark = g
			}
			if bl < dark {
				dark = bl
			}
			if dark < minDark {
				minDark = dark
			}
			lum := luma8(r, g, bl)
			if lum > maxLuma {
				maxLuma = lum
			}
			sumLuma += uint64(lum)
			counts[int(dark)*n/256]++
			total++
		}
	}

	b.Dhaz.AirBase = maxLuma
	b.Dhaz.Wt = uint32(sumLuma / total)
	b.Dhaz.TMax = 255 - minDark
	b.Dhaz.PicSumH = uint32(emath.ClipInt(int64(total), 0, emath.Max32Bits))
	for i, c := range counts {
		b.Dhaz.HRgbIir[i] = uint32(c * emath.Max10Bits / total)
	}
}

// }}}
