package fusion

import (
	"fmt"
	"io/ioutil"
	"log"

	"gopkg.in/yaml.v2"

	"github.com/abworrall/ispfuse/pkg/geom"
	"github.com/abworrall/ispfuse/pkg/hwstats"
	"github.com/abworrall/ispfuse/pkg/result"
)

/* Example config file ...

hardware: v32
isp:
  left:  {x: 0,    y: 0, w: 2064, h: 3000}
  right: {x: 1936, y: 0, w: 2064, h: 3000}

aelite:   {h_offs: 0, v_offs: 0, h_size: 4000, v_size: 3000}
aebig:    {h_offs: 0, v_offs: 0, h_size: 4000, v_size: 3000}
histlite: {h_offs: 0, v_offs: 0, h_size: 4000, v_size: 3000}
histbig:  {h_offs: 0, v_offs: 0, h_size: 4000, v_size: 3000}
awb:      {h_offs: 0, v_offs: 0, h_size: 4000, v_size: 3000}
afa:      {h_offs: 1000, v_offs: 750, h_size: 2000, v_size: 1500}
afb:      {h_offs: 1800, v_offs: 1400, h_size: 400, v_size: 200}

swapmode: s_lite
channelsel: y
yrangefull: true
histmodelite: 5
histmodebig: 5

bls:
  oboffset: 64
  obpredgain: 256
  bls1enable: true
  bls1: {r: 256, gr: 256, gb: 256, b: 256}
awbgain1: {r: 256, gr: 256, gb: 256, b: 256}

awbblkmode: realwp
awbblklumaweight: true

*/

// Quad holds one value per Bayer channel.
type Quad struct {
	R, Gr, Gb, B int64
}

type BlsConfig struct {
	ObOffset   int64 // sensor output black level, 12 bit
	ObPredGain int64 // 8.8 fixed point
	Bls1Enable bool
	Bls1       Quad
}

type Config struct {
	Verbosity int

	Hardware string // which hardware generation, see hwstats.DecoderByName
	Isp      geom.IspPair

	// Measurement windows, in stitched image coordinates
	AeLite   geom.Window
	AeBig    geom.Window
	HistLite geom.Window
	HistBig  geom.Window
	SubWin   [4]geom.Window
	Awb      geom.Window
	AfA      geom.Window
	AfB      geom.Window

	// The AWB windows as programmed into each ISP. Derived from Awb if
	// not set.
	AwbLeft  geom.Window
	AwbRight geom.Window

	SwapMode string // s_lite, m_lite
	Hdr      bool

	Bls      BlsConfig
	AwbGain1 Quad // 256 == 1.0

	ChannelSel   string // y, all, r, g, b, rgb
	YRangeFull   bool
	HistModeLite int // 2:R, 3:G, 4:B, 5:Y
	HistModeBig  int
	LiteWeight   []uint8
	BigWeight    []uint8

	AwbBlkMode       string // normal, realwp
	AwbBlkLumaWeight bool
	AwbMaxArea       int
	WpWeightBits     int
	WpGainFracBits   int

	AfFromAwb bool
	AfFromYnr bool

	DhazPicSumMin uint32
	DhazIirMax    uint32
}

func NewConfig() Config {
	return Config{
		Hardware:       "v32",
		SwapMode:       "s_lite",
		ChannelSel:     "y",
		YRangeFull:     true,
		HistModeLite:   5,
		HistModeBig:    5,
		AwbBlkMode:     "normal",
		AwbMaxArea:     5000 * 5000 / 2,
		WpWeightBits:   6,
		WpGainFracBits: 4,
		DhazPicSumMin:  1,
		DhazIirMax:     1023,
	}
}

func LoadConfig(filename string) (Config, error) {
	c := NewConfig()

	if contents, err := ioutil.ReadFile(filename); err != nil {
		return c, fmt.Errorf("read '%s': %v", filename, err)
	} else if err := yaml.Unmarshal(contents, &c); err != nil {
		return c, fmt.Errorf("parse '%s': %v", filename, err)
	}

	return c, c.Validate()
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// Validate does sanity checks, and fills in anything derivable that was
// left unset.
func (c *Config) Validate() error {
	dec, err := hwstats.DecoderByName(c.Hardware)
	if err != nil {
		return err
	}

	if err := c.Isp.Validate(); err != nil {
		return result.Configf("config", "%v", err)
	}

	switch c.SwapMode {
	case "":
		c.SwapMode = "s_lite"
	case "s_lite", "m_lite":
	default:
		return result.Configf("config", "no swapmode named '%s'", c.SwapMode)
	}

	switch c.ChannelSel {
	case "":
		c.ChannelSel = "y"
	case "y", "all", "r", "g", "b", "rgb":
	default:
		return result.Configf("config", "no channelsel named '%s'", c.ChannelSel)
	}

	switch c.AwbBlkMode {
	case "":
		c.AwbBlkMode = "normal"
	case "normal", "realwp":
	default:
		return result.Configf("config", "no awbblkmode named '%s'", c.AwbBlkMode)
	}

	if c.LiteWeight, err = fillWeights(c.LiteWeight, dec.LiteGrid()); err != nil {
		return result.Configf("config", "liteweight: %v", err)
	}
	if c.BigWeight, err = fillWeights(c.BigWeight, dec.BigGrid()); err != nil {
		return result.Configf("config", "bigweight: %v", err)
	}

	if c.AwbLeft == (geom.Window{}) {
		c.AwbLeft = c.Isp.LocalWindow(c.Awb, false)
	}
	if c.AwbRight == (geom.Window{}) {
		c.AwbRight = c.Isp.LocalWindow(c.Awb, true)
	}

	if c.AwbMaxArea <= 0 {
		c.AwbMaxArea = 5000 * 5000 / 2
	}
	if c.WpWeightBits <= 0 {
		c.WpWeightBits = 6
	}
	if c.WpGainFracBits <= 0 {
		c.WpGainFracBits = 4
	}
	if c.DhazPicSumMin == 0 {
		c.DhazPicSumMin = 1
	}
	if c.DhazIirMax == 0 {
		c.DhazIirMax = 1023
	}

	return nil
}

// Weights default to all ones.
func fillWeights(w []uint8, grid int) ([]uint8, error) {
	if len(w) == 0 {
		w = make([]uint8, grid*grid)
		for i := range w {
			w[i] = 1
		}
		return w, nil
	} else if len(w) != grid*grid {
		return w, fmt.Errorf("%d weights, expected %d", len(w), grid*grid)
	}
	return w, nil
}
