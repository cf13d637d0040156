package hwstats

import "fmt"

// Packed hardware fields. Each accessor names its bit range; nothing
// else in the codebase should be shifting and masking these.

// AeBlock is one block of an AE window: 10 bits R, 12 bits G, 10 bits B.
type AeBlock uint32

const (
	aeRBits = 10
	aeGBits = 12
	aeBBits = 10
)

func (b AeBlock) R() uint32 { return uint32(b) & (1<<aeRBits - 1) }
func (b AeBlock) G() uint32 { return (uint32(b) >> aeRBits) & (1<<aeGBits - 1) }
func (b AeBlock) B() uint32 { return (uint32(b) >> (aeRBits + aeGBits)) & (1<<aeBBits - 1) }

// PackAeBlock silently truncates values wider than their fields.
func PackAeBlock(r, g, b uint32) AeBlock {
	return AeBlock((r & (1<<aeRBits - 1)) |
		(g&(1<<aeGBits-1))<<aeRBits |
		(b&(1<<aeBBits-1))<<(aeRBits+aeGBits))
}

func (b AeBlock) String() string { return fmt.Sprintf("ae{%d,%d,%d}", b.R(), b.G(), b.B()) }

// AfLuma is the per-block luma word that AF reads from the AE engine:
// 12 bits of green, 16 bits of highlight count, 4 bits unused.
type AfLuma uint32

const (
	afGBits       = 12
	afHighlitBits = 16
)

func (l AfLuma) G() uint32       { return uint32(l) & (1<<afGBits - 1) }
func (l AfLuma) Highlit() uint32 { return (uint32(l) >> afGBits) & (1<<afHighlitBits - 1) }

func PackAfLuma(g, highlit uint32) AfLuma {
	return AfLuma((g & (1<<afGBits - 1)) | (highlit&(1<<afHighlitBits-1))<<afGBits)
}

// DecodeSatFlag unpacks a 16 bit white point histogram bin. If the top
// bit is set, the counter saturated and the hardware switched to
// counting in units of 8.
func DecodeSatFlag(v uint16) uint32 {
	if v&0x8000 != 0 {
		return uint32(v&0x7fff) << 3
	}
	return uint32(v)
}

// EncodeSatFlag is the inverse, for simulation. Precision is lost above
// 0x7fff.
func EncodeSatFlag(v uint32) uint16 {
	if v <= 0x7fff {
		return uint16(v)
	}
	v >>= 3
	if v > 0x7fff {
		v = 0x7fff
	}
	return uint16(v) | 0x8000
}
