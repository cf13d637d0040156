package hwstats

// A RawStatBuffer is what one ISP writes out at the end of a frame. The
// fusion code only ever reads these.
type RawStatBuffer struct {
	FrameID  uint32
	MeasType MeasType

	Ae   AeRaw
	Awb  AwbRaw
	Af   AfRaw
	Dhaz DehazeRaw
}

type AeRaw struct {
	Lite     []AeBlock // LiteGrid x LiteGrid
	Big      []AeBlock // BigGrid x BigGrid
	LiteHist []uint32
	BigHist  []uint32
	SubWin   [4]SubWinRaw // big window only
}

// SubWinRaw holds the channel sums over one AE sub-window.
type SubWinRaw struct {
	SumR, SumG, SumB uint32
}

type AwbRaw struct {
	Sum    []LightSumRaw // one per light source
	SumExc []ExcSumRaw   // one per excluded range
	Ram    []AwbBlockRaw // AwbGrid x AwbGrid
	WpHist []uint16      // saturation flagged, see DecodeSatFlag
}

type LightSumRaw struct {
	RGainNor, BGainNor, WpNumNor uint32
	RGainBig, BGainBig, WpNumBig uint32
	WpNum2                       uint32
}

type ExcSumRaw struct {
	RGain, BGain, WpNum uint32
}

type AwbBlockRaw struct {
	R, G, B, Wp uint32
}

type AfRaw struct {
	Ram  []AfFvRaw // AfGrid x AfGrid
	Luma []AfLuma  // AfGrid x AfGrid

	// Window B is a single block
	LumB, SumB, HighlitB uint32
}

// AfFvRaw are the focus values (filter energies) for one block
type AfFvRaw struct {
	V1, V2, H1, H2 uint32
}

type DehazeRaw struct {
	AirBase, Wt, GRatio, TMax, PicSumH uint32
	HRgbIir                            []uint32
}

// NewRawStatBuffer allocates a zeroed buffer, sized for the hardware
// generation.
func NewRawStatBuffer(d StatDecoder) *RawStatBuffer {
	sq := func(n int) int { return n * n }
	return &RawStatBuffer{
		Ae: AeRaw{
			Lite:     make([]AeBlock, sq(d.LiteGrid())),
			Big:      make([]AeBlock, sq(d.BigGrid())),
			LiteHist: make([]uint32, d.LiteHistBins()),
			BigHist:  make([]uint32, d.BigHistBins()),
		},
		Awb: AwbRaw{
			Sum:    make([]LightSumRaw, d.LightNum()),
			SumExc: make([]ExcSumRaw, d.ExcRangeNum()),
			Ram:    make([]AwbBlockRaw, sq(d.AwbGrid())),
			WpHist: make([]uint16, d.WpHistBins()),
		},
		Af: AfRaw{
			Ram:  make([]AfFvRaw, sq(d.AfGrid())),
			Luma: make([]AfLuma, sq(d.AfGrid())),
		},
		Dhaz: DehazeRaw{
			HRgbIir: make([]uint32, d.DehazeIirNum()),
		},
	}
}

// CopyAwbRam returns a private copy of the AWB block sums, for code
// that needs to rescale them.
func (b *RawStatBuffer) CopyAwbRam() []AwbBlockRaw {
	out := make([]AwbBlockRaw, len(b.Awb.Ram))
	copy(out, b.Awb.Ram)
	return out
}
