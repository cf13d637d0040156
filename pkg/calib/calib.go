package calib

import (
	"fmt"
	"sort"

	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/result"
)

// Calibration is the CCM tuning for one sensor module. Once loaded (and
// finalized) it is treated as immutable; a new calibration replaces it
// wholesale.
type Calibration struct {
	Control     Control      `yaml:"control"`
	DampEnable  bool         `yaml:"damp_enable"`
	IirDampCoef float64      `yaml:"iir_damp_coef"` // used when the caller has no AWB damping coefficient
	IlluEst     IlluEst      `yaml:"illu_est"`
	LumaCcm     LumaCcm      `yaml:"luma_ccm"`
	EnhCcm      EnhCcm       `yaml:"enh_ccm"`
	Illuminants []Illuminant `yaml:"illuminants"`
	Matrices    []Matrix     `yaml:"matrices"`

	alphaScale emath.Curve
	enhAdjEn   emath.Curve
	enhRatMax  emath.Curve
	finalized  bool
}

type Control struct {
	Enable          bool    `yaml:"enable"`
	GainTolerance   float64 `yaml:"gain_tolerance"`
	WbGainTolerance float64 `yaml:"wbgain_tolerance"`
}

// IlluEst configures the illuminant estimator.
type IlluEst struct {
	InterpEnable bool       `yaml:"interp_enable"` // probability mode, rather than best match
	DefaultIllu  string     `yaml:"default_illu"`
	WeightRB     [2]float64 `yaml:"weight_rb"`
	ProbLimit    float64    `yaml:"prob_limit"`
	FrameNo      int        `yaml:"frame_no"`
}

type GainAlphaScale struct {
	Gain  [9]float64 `yaml:"gain"`
	Scale [9]float64 `yaml:"scale"`
}

type YAlphaSym struct {
	BoundPosBit uint8       `yaml:"bound_pos_bit"`
	HighYAdjEn  bool        `yaml:"highy_adj_en"`
	Curve       [17]float64 `yaml:"curve"`
}

type YAlphaAsym struct {
	BoundPosBit uint8      `yaml:"bound_pos_bit"`
	RightPosBit uint8      `yaml:"right_pos_bit"`
	LeftCurve   [9]float64 `yaml:"left_curve"`
	RightCurve  [9]float64 `yaml:"right_curve"`
}

// LumaCcm controls how strongly the CCM applies at each luma level.
type LumaCcm struct {
	Rgb2YPara      [3]float64     `yaml:"rgb2y_para"`
	GainAlphaScale GainAlphaScale `yaml:"gain_alpha_scale"`
	AsymEnable     bool           `yaml:"asym_enable"`
	YAlphaSym      YAlphaSym      `yaml:"y_alpha_sym"`
	YAlphaAsym     YAlphaAsym     `yaml:"y_alpha_asym"`
}

type EnhCcm struct {
	Rgb2YPara [3]float64 `yaml:"rgb2y_para"`
	Gains     [9]float64 `yaml:"gains"`
	EnhAdjEn  [9]float64 `yaml:"enh_adj_en"`
	EnhRatMax [9]float64 `yaml:"enh_rat_max"`
}

type GainSatCurve struct {
	Gains [4]float64 `yaml:"gains"`
	Sat   [4]float64 `yaml:"sat"`
}

// An Illuminant is a calibrated light source: the AWB gain it produces,
// and the matrices to use under it.
type Illuminant struct {
	Name         string       `yaml:"name"`
	AwbGain      [2]float64   `yaml:"awb_gain"` // R/G, B/G
	MinDist      float64      `yaml:"min_dist"`
	MatrixUsed   []string     `yaml:"matrix_used"`
	GainSatCurve GainSatCurve `yaml:"gain_sat_curve"`

	// Profiles are the resolved MatrixUsed, highest saturation first.
	Profiles []*Matrix `yaml:"-"`

	satCurve emath.Curve
}

type Matrix struct {
	Name         string     `yaml:"name"`
	Illumination string     `yaml:"illumination"`
	Saturation   float64    `yaml:"saturation"`
	Matrix       emath.Mat3 `yaml:"matrix"`
	Offsets      emath.Vec3 `yaml:"offsets"`
}

func (m Matrix) String() string { return fmt.Sprintf("%s(sat=%.1f)", m.Name, m.Saturation) }

// Finalize resolves matrix names, orders each illuminant's profiles by
// saturation, and fits all the curves. It can be called more than once.
func (c *Calibration) Finalize() error {
	if len(c.Illuminants) == 0 {
		return result.Configf("calib", "no illuminants")
	} else if len(c.Matrices) == 0 {
		return result.Configf("calib", "no matrices")
	}

	byName := map[string]*Matrix{}
	for i := range c.Matrices {
		byName[c.Matrices[i].Name] = &c.Matrices[i]
	}

	for i := range c.Illuminants {
		illu := &c.Illuminants[i]
		if len(illu.MatrixUsed) == 0 {
			return result.Configf("calib", "illuminant '%s' uses no matrices", illu.Name)
		}

		illu.Profiles = nil
		for _, name := range illu.MatrixUsed {
			m, exists := byName[name]
			if !exists {
				return result.Configf("calib", "illuminant '%s': no matrix named '%s'", illu.Name, name)
			}
			illu.Profiles = append(illu.Profiles, m)
		}
		sort.SliceStable(illu.Profiles, func(a, b int) bool {
			return illu.Profiles[a].Saturation > illu.Profiles[b].Saturation
		})

		var err error
		if illu.satCurve, err = emath.NewCurve(illu.GainSatCurve.Gains[:], illu.GainSatCurve.Sat[:]); err != nil {
			return result.Configf("calib", "illuminant '%s' gain_sat_curve: %v", illu.Name, err)
		}
	}

	var err error
	if c.alphaScale, err = emath.NewCurve(c.LumaCcm.GainAlphaScale.Gain[:], c.LumaCcm.GainAlphaScale.Scale[:]); err != nil {
		return result.Configf("calib", "gain_alpha_scale: %v", err)
	}
	if c.enhAdjEn, err = emath.NewCurve(c.EnhCcm.Gains[:], c.EnhCcm.EnhAdjEn[:]); err != nil {
		return result.Configf("calib", "enh_ccm: %v", err)
	}
	if c.enhRatMax, err = emath.NewCurve(c.EnhCcm.Gains[:], c.EnhCcm.EnhRatMax[:]); err != nil {
		return result.Configf("calib", "enh_ccm: %v", err)
	}

	if c.IlluEst.FrameNo < 0 {
		return result.Configf("calib", "illu_est frame_no %d", c.IlluEst.FrameNo)
	}

	c.finalized = true
	return nil
}

func (c *Calibration) Finalized() bool { return c.finalized }

// IlluminantIndex returns the index of the named illuminant, or -1.
func (c *Calibration) IlluminantIndex(name string) int {
	for i, illu := range c.Illuminants {
		if illu.Name == name {
			return i
		}
	}
	return -1
}

// Saturation is the target saturation under this illuminant at the
// given sensor gain.
func (illu Illuminant) Saturation(sensorGain float64) float64 {
	return illu.satCurve.At(sensorGain)
}

// AlphaScale is how much of the CCM to apply at the given sensor gain.
func (c *Calibration) AlphaScale(sensorGain float64) float64 {
	return c.alphaScale.At(sensorGain)
}

// Enhance returns the color enhancement controls for the sensor gain;
// the ratio is only meaningful if enabled.
func (c *Calibration) Enhance(sensorGain float64) (bool, float64) {
	if uint16(c.enhAdjEn.At(sensorGain)) == 0 {
		return false, 0
	}
	return true, c.enhRatMax.At(sensorGain)
}
