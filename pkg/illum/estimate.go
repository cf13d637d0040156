package illum

import (
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/ispfuse/pkg/calib"
	"github.com/abworrall/ispfuse/pkg/emath"
	"github.com/abworrall/ispfuse/pkg/result"
)

// Below this (after the first normalisation), probabilities are
// considered noise and dropped.
const probFloor = 0.333333

type EstimatorConfig struct {
	WeightRB    [2]float64
	ProbLimit   float64
	DefaultIllu string
	FrameNo     int
	Verbosity   int
}

func ConfigFromCalib(c *calib.Calibration) EstimatorConfig {
	return EstimatorConfig{
		WeightRB:    c.IlluEst.WeightRB,
		ProbLimit:   c.IlluEst.ProbLimit,
		DefaultIllu: c.IlluEst.DefaultIllu,
		FrameNo:     c.IlluEst.FrameNo,
	}
}

// BestMatch returns the illuminant whose reference AWB gain is closest
// to gain. Ties go to the first in the table.
func BestMatch(gain [2]float64, table []calib.Illuminant) (int, error) {
	if len(table) == 0 {
		return 0, result.Configf("illuminant estimate", "no illuminants")
	}

	best, bestDist := 0, math.MaxFloat64
	for i, illu := range table {
		dr := gain[0] - illu.AwbGain[0]
		db := gain[1] - illu.AwbGain[1]
		if d := dr*dr + db*db; d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, nil
}

// Candidates returns a probability for each illuminant in the table,
// summing to 1.
func Candidates(gain [2]float64, table []calib.Illuminant, cfg EstimatorConfig) ([]float64, error) {
	n := len(table)
	if n == 0 {
		return nil, result.Configf("illuminant estimate", "no illuminants")
	}

	prob := make([]float64, n)
	if n == 1 {
		prob[0] = 1
		return prob, nil
	}

	dist := make([]float64, n)
	defIdx, minIdx := 0, 0
	for i, illu := range table {
		dr := gain[0] - illu.AwbGain[0]
		db := gain[1] - illu.AwbGain[1]
		dist[i] = math.Sqrt(dr*dr*cfg.WeightRB[0] + db*db*cfg.WeightRB[1])
		if illu.Name == cfg.DefaultIllu {
			defIdx = i
		}
		if dist[i] < dist[minIdx] {
			minIdx = i
		}
	}

	// Close enough to one illuminant that we don't need the others
	if dist[minIdx] < table[minIdx].MinDist {
		prob[minIdx] = 1
		return prob, nil
	}

	sigma := stat.PopVariance(dist, nil)
	if math.Abs(sigma) <= emath.DivMin {
		if cfg.Verbosity > 0 {
			log.Printf("illum: all distances equal, using default '%s'\n", table[defIdx].Name)
		}
		prob[defIdx] = 1
		return prob, nil
	}

	weight := make([]float64, n)
	for i := range dist {
		weight[i] = math.Exp(-0.5 * dist[i] * dist[i] / sigma)
	}
	total := floats.Sum(weight)

	for i := range weight {
		if weight[i]/total >= cfg.ProbLimit {
			prob[i] = weight[i]
		}
	}
	kept := floats.Sum(prob)

	if math.Abs(kept) < emath.DivMin {
		if cfg.Verbosity > 0 {
			log.Printf("illum: prob_limit %.3f dropped everything\n", cfg.ProbLimit)
		}
		best := floats.MaxIdx(weight)
		prob = make([]float64, n)
		prob[best] = 1
		return prob, nil
	}

	// Second pass: drop the minor contributors, unless that drops all
	second := make([]float64, n)
	for i := range prob {
		if p := prob[i] / kept; p >= probFloor {
			second[i] = p
		}
	}
	if sum := floats.Sum(second); math.Abs(sum) >= emath.DivMin {
		floats.Scale(1/sum, second)
		return second, nil
	}

	floats.Scale(1/kept, prob)
	return prob, nil
}

// An Estimator runs the probability mode each frame, and smooths it
// over the last FrameNo frames.
type Estimator struct {
	cfg  EstimatorConfig
	hist *History
}

func NewEstimator(cfg EstimatorConfig, numIlluminants int) *Estimator {
	frames := cfg.FrameNo
	if frames < 0 {
		frames = 0
	}
	return &Estimator{
		cfg:  cfg,
		hist: NewHistory(frames * numIlluminants),
	}
}

// Estimate returns the stable (averaged) distribution once enough
// frames have been seen, and the instantaneous one until then.
func (e *Estimator) Estimate(gain [2]float64, table []calib.Illuminant) ([]float64, error) {
	prob, err := Candidates(gain, table, e.cfg)
	if err != nil {
		return nil, err
	}

	for i, p := range prob {
		e.hist.Push(i, p)
	}

	if !e.hist.Full() {
		return prob, nil
	}
	return e.hist.Mean(len(table), e.cfg.FrameNo), nil
}

func (e *Estimator) Reset() { e.hist.Reset() }

func (e *Estimator) History() *History { return e.hist }
