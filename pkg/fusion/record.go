package fusion

import (
	"fmt"

	"github.com/abworrall/ispfuse/pkg/geom"
)

// MergedStatRecord is everything fused from one frame. A new one is
// made every frame, and handed over to whoever consumes the stats.
type MergedStatRecord struct {
	FrameID uint32 `json:"frame_id" yaml:"frame_id"`

	Ae   *MergedAe     `json:"ae,omitempty" yaml:"ae,omitempty"`
	Awb  *MergedAwb    `json:"awb,omitempty" yaml:"awb,omitempty"`
	Af   *MergedAf     `json:"af,omitempty" yaml:"af,omitempty"`
	Dhaz *MergedDehaze `json:"dhaz,omitempty" yaml:"dhaz,omitempty"`

	AeValid   bool `json:"ae_valid" yaml:"ae_valid"`
	AwbValid  bool `json:"awb_valid" yaml:"awb_valid"`
	AfValid   bool `json:"af_valid" yaml:"af_valid"`
	DhazValid bool `json:"dhaz_valid" yaml:"dhaz_valid"`
}

func (r MergedStatRecord) String() string {
	return fmt.Sprintf("rec[%d]{ae:%v awb:%v af:%v dhaz:%v}", r.FrameID, r.AeValid, r.AwbValid, r.AfValid, r.DhazValid)
}

// AeGrid is a fused AE window. R and B are 10 bit, G is 12 bit, Y is 8 bit.
type AeGrid struct {
	Grid int
	R    []uint16
	G    []uint16
	B    []uint16
	Y    []uint8
}

type SubWinSum struct {
	R, G, B uint64
}

type MergedAe struct {
	// Which exposure channel the lite window measured; the big window
	// measured the other one.
	LiteChannel int

	Lite     *AeGrid `json:",omitempty" yaml:",omitempty"` // nil unless the lite engine was in use
	Big      *AeGrid `json:",omitempty" yaml:",omitempty"`
	LiteHist []uint32
	BigHist  []uint32
	SubWin   [4]SubWinSum

	RawMean  [2]uint16 // per channel, 8.8 fixed point
	HistMean [2]uint8  // per channel

	LiteMode, BigMode, HistLiteMode, HistBigMode geom.SplitMode
}

type LightSum struct {
	NorRGain, NorBGain, NorWpNo uint64
	BigRGain, BigBGain, BigWpNo uint64
}

type ExcSum struct {
	RGain, BGain, WpNo uint64
}

type AwbBlock struct {
	R, G, B, WpNo uint64
}

type MergedAwb struct {
	Mode   geom.SplitMode
	Light  []LightSum
	WpNo2  []uint64
	Exc    []ExcSum
	Blocks []AwbBlock
	WpHist []uint32
}

type AfFv struct {
	V1, V2, H1, H2 uint32
}

type MergedAf struct {
	Plan geom.BlockPlan

	// Window A, AfGrid x AfGrid blocks
	Fv      []AfFv
	Luma    []uint32
	Highlit []uint32

	// Window B
	LumaB      uint32
	SharpnessB uint32
	HighlitB   uint32

	CompBls uint32
}

type MergedDehaze struct {
	AirBase, Wt, GRatio, TMax, PicSumH uint32
	HRgbIir                            []uint32
}
