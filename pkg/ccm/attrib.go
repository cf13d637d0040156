package ccm

import (
	"fmt"

	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/result"
)

type Mode int

const (
	ModeAuto Mode = iota
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Modes are written by name in yaml
func (m Mode) MarshalYAML() (interface{}, error) { return m.String(), nil }

func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	switch s {
	case "auto":
		*m = ModeAuto
	case "manual":
		*m = ModeManual
	default:
		return fmt.Errorf("no ccm mode named '%s'", s)
	}
	return nil
}

// GainLevels is a user level (0-100) as a function of sensor gain, over
// four points.
type GainLevels struct {
	SensorGain [4]float64 `yaml:"sensor_gain"`
	Level      [4]float64 `yaml:"level"`
}

func FlatLevels(level float64) GainLevels {
	return GainLevels{
		SensorGain: [4]float64{1, 1, 1, 1},
		Level:      [4]float64{level, level, level, level},
	}
}

func (gl GainLevels) curve() (emath.Curve, error) {
	for _, l := range gl.Level {
		if l < 0 || l > 100 {
			return emath.Curve{}, fmt.Errorf("level %v out of range [0,100]", l)
		}
	}
	return emath.NewCurve(gl.SensorGain[:], gl.Level[:])
}

type AutoAttrib struct {
	Inhibition GainLevels `yaml:"inhibition"` // 100 turns the CCM off
	Saturation GainLevels `yaml:"saturation"` // 50 leaves the matrix alone
}

// ManualCcm is everything programmed into the hardware in manual mode.
type ManualCcm struct {
	Matrix       emath.Mat3  `yaml:"matrix"`
	Offs         emath.Vec3  `yaml:"offs"`
	AlpY         [18]float64 `yaml:"alp_y"`
	HighYAdjEn   bool        `yaml:"highy_adj_en"`
	AsymEnable   bool        `yaml:"asym_enable"`
	BoundBit     uint8       `yaml:"bound_bit"`
	RightBit     uint8       `yaml:"right_bit"`
	EnhRgb2YPara [3]float64  `yaml:"enh_rgb2y_para"`
	EnhAdjEn     bool        `yaml:"enh_adj_en"`
	EnhRatMax    float64     `yaml:"enh_rat_max"`
}

// Attrib is the user facing control of the CCM.
type Attrib struct {
	Bypass bool       `yaml:"bypass"`
	Mode   Mode       `yaml:"mode"`
	Auto   AutoAttrib `yaml:"auto"`
	Manual ManualCcm  `yaml:"manual"`
}

func (a Attrib) validate() error {
	if a.Mode != ModeAuto && a.Mode != ModeManual {
		return result.Paramf("ccm attrib", "bad mode %d", int(a.Mode))
	}
	if _, err := a.Auto.Inhibition.curve(); err != nil {
		return result.Paramf("ccm attrib", "inhibition: %v", err)
	}
	if _, err := a.Auto.Saturation.curve(); err != nil {
		return result.Paramf("ccm attrib", "saturation: %v", err)
	}
	return nil
}
