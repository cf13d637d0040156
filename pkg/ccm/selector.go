package ccm

import (
	"fmt"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/abworrall/ispfuse/pkg/calib"
	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/illum"
	"github.com/abworrall/ispfuse/pkg/result"
)

type State int

const (
	Uninitialized State = iota
	Stable
	Recomputing
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Stable:
		return "stable"
	case Recomputing:
		return "recomputing"
	default:
		return "?"
	}
}

// Input is what the AWB algorithm hands over each frame.
type Input struct {
	SensorGain     float64
	AwbGain        [2]float64 // R/G, B/G
	AwbIIRDampCoef float64    // if zero, the calibration's iir_damp_coef
	GrayMode       bool
}

// Report describes the latest decision, for logging and tools.
type Report struct {
	Illuminant string
	Profile1   string
	Profile2   string
	Saturation float64
	FScale     float64
	Level      float64
	Prob       []float64 `yaml:",omitempty"`
	Converged  bool
}

// A Selector picks, interpolates and damps the color correction matrix
// each frame. It is owned by one caller, and not safe for concurrent use.
type Selector struct {
	Verbosity int

	cal   *calib.Calibration
	attr  Attrib
	est   *illum.Estimator
	state State
	count int

	hw HwConfig

	// Last sensor and wb gain that triggered a recompute
	lastGain float64
	lastWb   [2]float64

	illuIdx            int
	saturation         float64
	profile1, profile2 *calib.Matrix
	prob               []float64
	haveBase           bool

	base     emath.Mat3 // interpolated, before saturation adjustment
	baseOffs emath.Vec3
	undamped emath.Mat3

	fScale, level float64
	inhibition    emath.Curve
	satLevels     emath.Curve

	converged   bool
	calibUpdate bool
	attrUpdate  bool
	reCal       bool
	lastReCal   bool
}

// New creates a selector from a calibration, with the default
// attributes.
func New(cal *calib.Calibration) (*Selector, error) {
	s := &Selector{
		lastGain: 1.0,
		lastWb:   [2]float64{1, 1},
		fScale:   1,
		level:    100,
	}
	if err := s.Prepare(cal); err != nil {
		return nil, err
	}
	return s, nil
}

// Prepare installs a new calibration. Everything is recomputed on the
// next frame, and the illuminant history starts again.
func (s *Selector) Prepare(cal *calib.Calibration) error {
	if cal == nil {
		return result.Configf("ccm prepare", "no calibration")
	}
	if !cal.Finalized() {
		if err := cal.Finalize(); err != nil {
			return err
		}
	}

	first := s.state == Uninitialized
	s.cal = cal

	s.hw.configureFromCalib(cal)
	s.hw.setAlpY(cal.LumaCcm, 1)
	s.hw.EnhAdjEn = uint16(cal.EnhCcm.EnhAdjEn[0]) != 0
	s.hw.EnhRatMax = cal.EnhCcm.EnhRatMax[0]

	s.est = illum.NewEstimator(illum.ConfigFromCalib(cal), len(cal.Illuminants))
	s.haveBase = false
	s.converged = false
	s.calibUpdate = true

	if first {
		if err := s.setAttrib(DefaultAttrib(cal, s.hw)); err != nil {
			return err
		}
		s.attrUpdate = false
		s.reCal = true
		s.state = Stable
	} else {
		switch s.attr.Mode {
		case ModeAuto:
			s.attr.Bypass = !cal.Control.Enable
		case ModeManual:
			// The calibration values above don't apply in manual mode
			s.hw.applyManual(s.attr.Manual)
		}
		s.state = Recomputing
	}

	if s.Verbosity > 0 {
		log.Printf("ccm: prepared with %d illuminants, %d matrices (first=%v)\n", len(cal.Illuminants), len(cal.Matrices), first)
	}
	return nil
}

// DefaultAttrib is auto mode with no inhibition and neutral saturation;
// the manual matrix is the first one in the calibration.
func DefaultAttrib(cal *calib.Calibration, hw HwConfig) Attrib {
	a := Attrib{
		Bypass: !cal.Control.Enable,
		Mode:   ModeAuto,
		Auto: AutoAttrib{
			Inhibition: FlatLevels(0),
			Saturation: FlatLevels(50),
		},
		Manual: ManualCcm{
			Matrix:       emath.Identity3(),
			AlpY:         hw.AlpY,
			HighYAdjEn:   hw.HighYAdjEn,
			AsymEnable:   hw.AsymAdjEn,
			BoundBit:     hw.BoundBit,
			RightBit:     hw.RightBit,
			EnhRgb2YPara: hw.EnhRgb2YPara,
			EnhAdjEn:     hw.EnhAdjEn,
			EnhRatMax:    hw.EnhRatMax,
		},
	}
	if len(cal.Matrices) > 0 {
		a.Manual.Matrix = cal.Matrices[0].Matrix
		a.Manual.Offs = cal.Matrices[0].Offsets
	}
	return a
}

// SetAttrib replaces the attributes; they take effect on the next frame.
func (s *Selector) SetAttrib(a Attrib) error {
	if err := s.setAttrib(a); err != nil {
		return err
	}
	if s.state != Uninitialized {
		s.state = Recomputing
	}
	return nil
}

func (s *Selector) setAttrib(a Attrib) error {
	if err := a.validate(); err != nil {
		return err
	}
	s.inhibition, _ = a.Auto.Inhibition.curve()
	s.satLevels, _ = a.Auto.Saturation.curve()
	s.attr = a
	s.attrUpdate = true
	return nil
}

func (s *Selector) Attrib() Attrib     { return s.attr }
func (s *Selector) State() State       { return s.state }
func (s *Selector) HwConfig() HwConfig { return s.hw }

// IsReCal says whether the last frame changed anything that needs
// programming into the hardware.
func (s *Selector) IsReCal() bool { return s.lastReCal }

func (s *Selector) Report() Report {
	r := Report{
		Saturation: s.saturation,
		FScale:     s.fScale,
		Level:      s.level,
		Prob:       append([]float64(nil), s.prob...),
		Converged:  s.converged,
	}
	if s.cal != nil && s.illuIdx < len(s.cal.Illuminants) {
		r.Illuminant = s.cal.Illuminants[s.illuIdx].Name
	}
	if s.profile1 != nil {
		r.Profile1 = s.profile1.Name
	}
	if s.profile2 != nil {
		r.Profile2 = s.profile2.Name
	}
	return r
}

// judgeConverge snaps small changes of gain back to the last values
// used, so the matrix isn't recomputed for every flicker of AWB.
func (s *Selector) judgeConverge(in Input) (gain float64, wb [2]float64, gainUpd, wbUpd bool) {
	ctl := s.cal.Control

	gain = s.lastGain
	if math.Abs(in.SensorGain-s.lastGain) > ctl.GainTolerance {
		gain, gainUpd = in.SensorGain, true
	}

	wb = s.lastWb
	dr, db := s.lastWb[0]-in.AwbGain[0], s.lastWb[1]-in.AwbGain[1]
	if dr*dr+db*db > ctl.WbGainTolerance*ctl.WbGainTolerance {
		wb, wbUpd = in.AwbGain, true
	}
	return
}

// Process runs one frame. On error nothing has changed.
func (s *Selector) Process(in Input) result.Result[HwConfig] {
	if s.state == Uninitialized || s.cal == nil {
		return result.Fail[HwConfig](result.Configf("ccm process", "no calibration"))
	}

	reCal := s.reCal

	if !s.attr.Bypass && !in.GrayMode {
		switch s.attr.Mode {
		case ModeAuto:
			gain, wb, gainUpd, wbUpd := s.judgeConverge(in)
			fScale, level, err := s.levels(gain)
			if err != nil {
				return result.Fail[HwConfig](err)
			}

			s.lastGain, s.lastWb = gain, wb
			update := gainUpd || wbUpd || s.calibUpdate || !s.haveBase

			if update || s.attrUpdate || !s.converged {
				in.SensorGain, in.AwbGain = gain, wb
				changed, err := s.autoConfig(in, update, fScale, level)
				if err != nil {
					return result.Fail[HwConfig](err)
				}
				reCal = reCal || changed
			}

		case ModeManual:
			if s.attrUpdate || s.calibUpdate {
				s.hw.applyManual(s.attr.Manual)
				reCal = true
			}
		}
		s.hw.CcmEnable = true

	} else {
		s.hw.CcmEnable = false
		reCal = reCal || s.attrUpdate || s.calibUpdate
	}

	s.attrUpdate = false
	s.calibUpdate = false
	s.reCal = false
	s.lastReCal = reCal
	if s.count+2 > 65536 {
		s.count = 2
	} else {
		s.count++
	}

	s.state = Stable
	if s.attr.Mode == ModeAuto && !s.attr.Bypass && !in.GrayMode && !s.converged {
		s.state = Recomputing
	}

	if s.Verbosity > 1 {
		log.Printf("ccm: frame %d, %s, recal=%v, %+v\n", s.count, s.state, reCal, s.Report())
	}

	return result.Ok(s.hw)
}

// levels works out the CCM scale and saturation level at a sensor gain.
func (s *Selector) levels(gain float64) (float64, float64, error) {
	inhibition := s.inhibition.At(gain)
	if inhibition < 0 || inhibition > 100 {
		return 0, 0, result.Paramf("ccm", "inhibition level %v out of range [0,100]", inhibition)
	}
	level := s.satLevels.At(gain)
	if level < 0 || level > 100 {
		return 0, 0, result.Paramf("ccm", "saturation level %v out of range [0,100]", level)
	}

	fScale := s.cal.AlphaScale(gain) * (100 - inhibition) / 100
	return fScale, level, nil
}

// autoConfig recomputes whatever the frame's changes call for, and
// damps toward the result. It reports whether the hardware needs
// reprogramming.
func (s *Selector) autoConfig(in Input, update bool, fScale, level float64) (bool, error) {
	cal := s.cal
	reCal := false
	baseChanged := false
	illuSwitched := false

	if update {
		var err error
		prevIdx := s.illuIdx
		if cal.IlluEst.InterpEnable {
			reCal = true
			baseChanged, err = s.interpolateByProbability(in)
		} else {
			baseChanged, err = s.selectByBestMatch(in)
		}
		if err != nil {
			return false, err
		}
		illuSwitched = cal.IlluEst.InterpEnable && s.illuIdx != prevIdx
	}

	undampedChanged, alpYChanged := false, false
	if update || s.attrUpdate {
		if baseChanged || math.Abs(fScale-s.fScale) > emath.DivMin || math.Abs(level-s.level) > emath.DivMin {
			s.fScale, s.level = fScale, level
			s.undamped = SaturationAdjust(fScale, level, s.base)
			s.hw.setAlpY(cal.LumaCcm, fScale)
			undampedChanged, alpYChanged = true, true
		}
	}

	matChanged := false
	if !s.converged || undampedChanged {
		d := in.AwbIIRDampCoef
		if d == 0 {
			d = cal.IirDampCoef
		}
		if !cal.DampEnable || s.count <= 1 || illuSwitched {
			d = 0
		}
		s.hw.Matrix, s.hw.Offs, s.converged = Damp(d, s.hw.Matrix, s.hw.Offs, s.undamped, s.baseOffs)
		matChanged = true
	}

	enhChanged := false
	if update {
		en, ratMax := cal.Enhance(in.SensorGain)
		enhChanged = en != s.hw.EnhAdjEn || math.Abs(ratMax-s.hw.EnhRatMax) > emath.DivMin
		s.hw.EnhAdjEn, s.hw.EnhRatMax = en, ratMax
	}

	return reCal || matChanged || alpYChanged || enhChanged, nil
}

// selectByBestMatch uses the single nearest illuminant.
func (s *Selector) selectByBestMatch(in Input) (bool, error) {
	table := s.cal.Illuminants
	idx, err := illum.BestMatch(in.AwbGain, table)
	if err != nil {
		return false, err
	}
	sat := table[idx].Saturation(in.SensorGain)

	if s.haveBase && !s.calibUpdate && idx == s.illuIdx && math.Abs(sat-s.saturation) <= emath.DivMin {
		return false, nil
	}

	p1, p2, _, err := Bracket(sat, table[idx].Profiles)
	if err != nil {
		return false, err
	}
	changed := !s.haveBase || s.calibUpdate || sat != s.saturation || p1 != s.profile1 || p2 != s.profile2

	s.illuIdx, s.saturation = idx, sat
	s.profile1, s.profile2 = p1, p2
	s.prob = nil

	if changed {
		if s.base, s.baseOffs, err = Interpolate(sat, table[idx].Profiles); err != nil {
			return false, err
		}
		s.haveBase = true
		if s.Verbosity > 0 {
			log.Printf("ccm: %s at gain %.2f, sat %.1f (%s .. %s)\n", table[idx].Name, in.SensorGain, sat, p1, p2)
		}
	}
	return changed, nil
}

// interpolateByProbability blends the matrices of every likely
// illuminant, weighted by probability.
func (s *Selector) interpolateByProbability(in Input) (bool, error) {
	table := s.cal.Illuminants
	prob, err := s.est.Estimate(in.AwbGain, table)
	if err != nil {
		return false, err
	}

	var m emath.Mat3
	var o emath.Vec3
	sat := 0.0
	for i, p := range prob {
		if math.Abs(p) < emath.DivMin {
			continue
		}
		illuSat := table[i].Saturation(in.SensorGain)
		im, io, err := Interpolate(illuSat, table[i].Profiles)
		if err != nil {
			return false, err
		}

		m = m.AddScaled(im, p)
		o = o.AddScaled(io, p)
		sat += illuSat * p
	}

	s.illuIdx = floats.MaxIdx(prob)
	s.profile1, s.profile2, _, _ = Bracket(table[s.illuIdx].Saturation(in.SensorGain), table[s.illuIdx].Profiles)
	s.prob = prob
	s.saturation = sat
	s.base, s.baseOffs = m, o
	s.haveBase = true

	if s.Verbosity > 0 {
		log.Printf("ccm: prob %s at gain %.2f, sat %.1f\n", fmtProb(prob, table), in.SensorGain, sat)
	}
	return true, nil
}

func fmtProb(prob []float64, table []calib.Illuminant) string {
	str := ""
	for i, p := range prob {
		if p > 0 {
			str += fmt.Sprintf("%s=%.3f ", table[i].Name, p)
		}
	}
	return str
}
