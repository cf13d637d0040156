package hwstats

import (
	"fmt"
	"strings"

	"github.com/abworrall/ispfuse/pkg/result"
)

// A StatDecoder describes the statistics layout of one ISP hardware
// generation. Pick one at startup with DecoderByName.
type StatDecoder interface {
	Name() string

	LiteGrid() int // AE lite window is LiteGrid x LiteGrid blocks
	BigGrid() int
	AfGrid() int
	AwbGrid() int

	LiteHistBins() int
	BigHistBins() int
	WpHistBins() int

	LightNum() int
	ExcRangeNum() int
	DehazeIirNum() int

	// Validate checks a buffer has the right shape for this generation
	Validate(*RawStatBuffer) error
}

// HistBins is the number of bins in a fused AE histogram, whatever the
// generation produced.
const HistBins = 256

// {{{ V32

type V32 struct{}

func (V32) Name() string       { return "v32" }
func (V32) LiteGrid() int      { return 5 }
func (V32) BigGrid() int       { return 15 }
func (V32) AfGrid() int        { return 15 }
func (V32) AwbGrid() int       { return 15 }
func (V32) LiteHistBins() int  { return HistBins }
func (V32) BigHistBins() int   { return HistBins }
func (V32) WpHistBins() int    { return 8 }
func (V32) LightNum() int      { return 7 }
func (V32) ExcRangeNum() int   { return 4 }
func (V32) DehazeIirNum() int  { return 64 }
func (d V32) Validate(b *RawStatBuffer) error { return validate(d, b) }

// }}}
// {{{ V32Lite

// V32Lite is the cut down V32: the lite histogram only has 32 bins,
// and AF only has a 5x5 grid.
type V32Lite struct{ V32 }

func (V32Lite) Name() string      { return "v32lite" }
func (V32Lite) AfGrid() int       { return 5 }
func (V32Lite) LiteHistBins() int { return 32 }
func (d V32Lite) Validate(b *RawStatBuffer) error { return validate(d, b) }

// }}}

func DecoderByName(name string) (StatDecoder, error) {
	switch strings.ToLower(name) {
	case "v32", "":
		return V32{}, nil
	case "v32lite", "v32-lite", "v32_lite":
		return V32Lite{}, nil
	default:
		return nil, result.Configf("decoder", "no hardware generation named '%s'", name)
	}
}

func validate(d StatDecoder, b *RawStatBuffer) error {
	if b == nil {
		return fmt.Errorf("%s: nil buffer", d.Name())
	}

	sq := func(n int) int { return n * n }
	checks := []struct {
		what      string
		have, exp int
	}{
		{"ae lite", len(b.Ae.Lite), sq(d.LiteGrid())},
		{"ae big", len(b.Ae.Big), sq(d.BigGrid())},
		{"ae lite hist", len(b.Ae.LiteHist), d.LiteHistBins()},
		{"ae big hist", len(b.Ae.BigHist), d.BigHistBins()},
		{"awb light sums", len(b.Awb.Sum), d.LightNum()},
		{"awb exc sums", len(b.Awb.SumExc), d.ExcRangeNum()},
		{"awb blocks", len(b.Awb.Ram), sq(d.AwbGrid())},
		{"awb wp hist", len(b.Awb.WpHist), d.WpHistBins()},
		{"af fv", len(b.Af.Ram), sq(d.AfGrid())},
		{"af luma", len(b.Af.Luma), sq(d.AfGrid())},
		{"dehaze iir", len(b.Dhaz.HRgbIir), d.DehazeIirNum()},
	}

	for _, c := range checks {
		if c.have != c.exp {
			return fmt.Errorf("%s: %s has %d entries, expected %d", d.Name(), c.what, c.have, c.exp)
		}
	}
	return nil
}
