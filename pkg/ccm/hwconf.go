package ccm

import (
	"fmt"

	"github.com/abworrall/ispfuse/pkg/calib"
	"github.com/abworrall/ispfuse/pkg/emath"
)

const (
	alpYSymPoints  = 17
	alpYAsymPoints = 9
	alpYOne        = 1024 // the fixed last point of the symmetric curve
)

// HwConfig is the CCM register payload.
type HwConfig struct {
	CcmEnable bool        `yaml:"ccm_enable"`
	Matrix    emath.Mat3  `yaml:"matrix"`
	Offs      emath.Vec3  `yaml:"offs"`
	AlpY      [18]float64 `yaml:"alp_y"`
	BoundBit  uint8       `yaml:"bound_bit"`
	RightBit  uint8       `yaml:"right_bit"`

	HighYAdjEn bool `yaml:"highy_adj_en"`
	AsymAdjEn  bool `yaml:"asym_adj_en"`

	Rgb2YPara    [3]float64 `yaml:"rgb2y_para"`
	EnhRgb2YPara [3]float64 `yaml:"enh_rgb2y_para"`
	EnhAdjEn     bool       `yaml:"enh_adj_en"`
	EnhRatMax    float64    `yaml:"enh_rat_max"`
}

func (hw HwConfig) String() string {
	return fmt.Sprintf("ccm{en:%v offs:%v bound:%d/%d}\n%s", hw.CcmEnable, hw.Offs, hw.BoundBit, hw.RightBit, hw.Matrix)
}

// configureFromCalib sets the fields that come straight from the luma
// and enhancement calibration.
func (hw *HwConfig) configureFromCalib(cal *calib.Calibration) {
	luma := cal.LumaCcm
	hw.AsymAdjEn = luma.AsymEnable
	if luma.AsymEnable {
		hw.HighYAdjEn = true
		hw.BoundBit = luma.YAlphaAsym.BoundPosBit
		hw.RightBit = luma.YAlphaAsym.RightPosBit
	} else {
		hw.HighYAdjEn = luma.YAlphaSym.HighYAdjEn
		hw.BoundBit = luma.YAlphaSym.BoundPosBit
		hw.RightBit = hw.BoundBit
		hw.AlpY[alpYSymPoints] = alpYOne
	}
	hw.Rgb2YPara = luma.Rgb2YPara
	hw.EnhRgb2YPara = cal.EnhCcm.Rgb2YPara
}

// setAlpY scales the luma alpha curve(s) by fScale.
func (hw *HwConfig) setAlpY(luma calib.LumaCcm, fScale float64) {
	if luma.AsymEnable {
		for i := 0; i < alpYAsymPoints; i++ {
			hw.AlpY[i] = fScale * luma.YAlphaAsym.LeftCurve[i]
			hw.AlpY[alpYAsymPoints+i] = fScale * luma.YAlphaAsym.RightCurve[i]
		}
		return
	}
	for i := 0; i < alpYSymPoints; i++ {
		hw.AlpY[i] = fScale * luma.YAlphaSym.Curve[i]
	}
}

func (hw *HwConfig) applyManual(m ManualCcm) {
	hw.Matrix = m.Matrix
	hw.Offs = m.Offs
	hw.HighYAdjEn = m.HighYAdjEn
	hw.AsymAdjEn = m.AsymEnable
	hw.BoundBit = m.BoundBit
	hw.RightBit = m.RightBit
	hw.AlpY = m.AlpY
	hw.EnhRgb2YPara = m.EnhRgb2YPara
	hw.EnhAdjEn = m.EnhAdjEn
	hw.EnhRatMax = m.EnhRatMax
}

// Damp moves the programmed matrix and offset toward the target, by
// new = d*old + (1-d)*target. It reports whether every cell has
// arrived.
func Damp(d float64, oldM emath.Mat3, oldO emath.Vec3, m emath.Mat3, o emath.Vec3) (emath.Mat3, emath.Vec3, bool) {
	newM := emath.Lerp(oldM, m, d)
	newO := emath.LerpVec(oldO, o, d)
	converged := newM.MaxAbsDiff(m) <= emath.DivMin && newO.MaxAbsDiff(o) <= emath.DivMin
	return newM, newO, converged
}
