package main

// ispfuse replays images through a simulated dual ISP session: each
// image is split into two overlapping crops, turned into per-ISP stats,
// fused, and fed to the auto CCM via a gray world AWB gain.
//
//   ispfuse -calib ccm.yaml [-config fusion.yaml] [-frames 10] img.tif dir/ ...

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/ispfuse/pkg/calib"
	"github.com/abworrall/ispfuse/pkg/ccm"
	"github.com/abworrall/ispfuse/pkg/ecolor"
	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/fusion"
	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/statsim"
)

var (
	fVerbosity  int
	fCalib      string
	fConfig     string
	fFrames     int
	fGridPNG    bool
	fSensorGain float64
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fCalib, "calib", "ccm.yaml", "CCM calibration file")
	flag.StringVar(&fConfig, "config", "", "fusion config file (default: 4000x3000 sensor, full windows)")
	flag.IntVar(&fFrames, "frames", 1, "how many frames to replay each image for")
	flag.BoolVar(&fGridPNG, "png", false, "write the fused AE luma grid of each image to a PNG")
	flag.Float64Var(&fSensorGain, "gain", 0, "sensor gain to use, overriding the image's EXIF ISO")
	flag.Parse()

	log.Printf("ispfuse starting\n")
}

func defaultConfig() fusion.Config {
	c := fusion.NewConfig()
	c.Isp = geom.NewIspPair(4000, 3000, 64)
	full := geom.Window{HSize: 4000, VSize: 3000}
	c.AeLite, c.AeBig, c.HistLite, c.HistBig, c.Awb = full, full, full, full, full
	c.AfA = geom.Window{HOffs: 1000, VOffs: 750, HSize: 2000, VSize: 1500}
	c.AfB = geom.Window{HOffs: 1800, VOffs: 1400, HSize: 400, VSize: 200}
	for i := range c.SubWin {
		c.SubWin[i] = c.AfB
	}
	return c
}

// awbGain is the gray world estimate from the fused white point sums.
func awbGain(awb *fusion.MergedAwb, fracBits int) ([2]float64, bool) {
	light := awb.Light[0]
	if light.NorWpNo == 0 {
		return [2]float64{}, false
	}
	scale := float64(light.NorWpNo) * float64(int64(1)<<uint(fracBits))
	return [2]float64{float64(light.NorRGain) / scale, float64(light.NorBGain) / scale}, true
}

// meanColor averages the fused AE grid back into a linear color.
func meanColor(g *fusion.AeGrid) colorful.Color {
	var r, gr, b float64
	for i := range g.R {
		r += float64(g.R[i]) / emath.Max10Bits
		gr += float64(g.G[i]) / emath.Max12Bits
		b += float64(g.B[i]) / emath.Max10Bits
	}
	n := float64(len(g.R))
	return colorful.LinearRgb(r/n, gr/n, b/n)
}

func main() {
	cfg := defaultConfig()
	if fConfig != "" {
		var err error
		if cfg, err = fusion.LoadConfig(fConfig); err != nil {
			log.Fatal(err)
		}
	}
	cfg.Verbosity = fVerbosity
	if fFrames < 1 {
		fFrames = 1
	}

	cal, err := calib.Load(fCalib)
	if err != nil {
		log.Fatal(err)
	}

	scenes, err := statsim.LoadScenes(flag.Args()...)
	if err != nil {
		log.Fatal(err)
	} else if len(scenes) == 0 {
		log.Fatal("no images given")
	}

	sim, err := statsim.NewSimulator(cfg)
	if err != nil {
		log.Fatal(err)
	}
	engine, err := fusion.NewEngine(cfg)
	if err != nil {
		log.Fatal(err)
	}
	sel, err := ccm.New(cal)
	if err != nil {
		log.Fatal(err)
	}
	sel.Verbosity = fVerbosity

	if fVerbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", engine.Config().AsYaml())
	}

	frameID := uint32(0)
	wb := [2]float64{1, 1}

	for _, sc := range scenes {
		gain := sc.SensorGain
		if fSensorGain > 0 {
			gain = fSensorGain
		}

		var rec *fusion.MergedStatRecord
		var hw ccm.HwConfig
		for i := 0; i < fFrames; i++ {
			frameID++
			l, r, err := sim.Synthesize(sc.Image, frameID)
			if err != nil {
				log.Fatal(err)
			}
			if rec, err = engine.FuseFrame(l, r); err != nil {
				log.Fatalf("%s: %v", sc.Filename, err)
			}

			if rec.AwbValid {
				if g, ok := awbGain(rec.Awb, cfg.WpGainFracBits); ok {
					wb = g
				}
			}

			res := sel.Process(ccm.Input{SensorGain: gain, AwbGain: wb})
			if hw, err = res.Unwrap(); err != nil {
				log.Fatalf("%s: ccm: %v", sc.Filename, err)
			}
		}

		rep := sel.Report()
		fmt.Printf("%s: gain %.2f, awb [%.3f %.3f], %s (%s .. %s, sat %.1f, scale %.2f), converged=%v\n",
			sc.Filename, gain, wb[0], wb[1], rep.Illuminant, rep.Profile1, rep.Profile2, rep.Saturation, rep.FScale, rep.Converged)
		fmt.Printf("%s\n", hw.Matrix)

		if rec.AeValid {
			grid := rec.Ae.Lite
			if grid == nil {
				grid = rec.Ae.Big
			}
			mean := meanColor(grid)
			balanced := ecolor.WhiteBalance(mean, wb[0], wb[1])
			corrected := ecolor.ApplyCcm(balanced, ecolor.Ccm{Matrix: hw.Matrix, Offs: hw.Offs})
			fmt.Printf("  mean %s -> wb %s -> ccm %s\n", mean.Clamped().Hex(), balanced.Clamped().Hex(), corrected.Hex())

			if fGridPNG {
				bg := emath.BlockGridFrom(grid.Y, grid.Grid)
				out := strings.TrimSuffix(filepath.Base(sc.Filename), filepath.Ext(sc.Filename)) + "-ae.png"
				if err := bg.ToImg(filepath.Base(sc.Filename), out, 32); err != nil {
					log.Fatal(err)
				}
				log.Printf("wrote %s, %s\n", out, bg.Stats())
			}
		}
	}
}
