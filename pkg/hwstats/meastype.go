package hwstats

import (
	"fmt"
	"strings"
)

// MeasType is the header bitmask saying which statistics engines
// produced data this frame.
type MeasType uint32

// Bit positions
const (
	MeasAwb       = 5
	MeasAf        = 6
	MeasAeLiteS   = 7
	MeasAeBigM    = 8
	MeasHistLiteS = 11
	MeasHistBigM  = 12
	MeasDehaze    = 17
)

var measNames = map[uint]string{
	MeasAwb:       "awb",
	MeasAf:        "af",
	MeasAeLiteS:   "ae-lite",
	MeasAeBigM:    "ae-big",
	MeasHistLiteS: "hist-lite",
	MeasHistBigM:  "hist-big",
	MeasDehaze:    "dehaze",
}

// Has is true if every one of the bits is set.
func (m MeasType) Has(bits ...uint) bool {
	for _, b := range bits {
		if (uint32(m)>>b)&1 == 0 {
			return false
		}
	}
	return true
}

func (m MeasType) With(bits ...uint) MeasType {
	for _, b := range bits {
		m |= 1 << b
	}
	return m
}

func (m MeasType) String() string {
	names := []string{}
	for _, b := range []uint{MeasAwb, MeasAf, MeasAeLiteS, MeasAeBigM, MeasHistLiteS, MeasHistBigM, MeasDehaze} {
		if m.Has(b) {
			names = append(names, measNames[b])
		}
	}
	return fmt.Sprintf("0x%x[%s]", uint32(m), strings.Join(names, ","))
}
