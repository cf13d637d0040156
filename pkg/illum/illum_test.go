package illum

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/abworrall/ispfuse/pkg/calib"
	"github.com/abworrall/ispfuse/pkg/result"
)

func twoIlluminants() []calib.Illuminant {
	return []calib.Illuminant{
		{Name: "A", AwbGain: [2]float64{1.0, 1.0}},
		{Name: "B", AwbGain: [2]float64{2.0, 0.5}},
	}
}

func fourIlluminants() []calib.Illuminant {
	return []calib.Illuminant{
		{Name: "A", AwbGain: [2]float64{1.0, 2.6}, MinDist: 0.02},
		{Name: "CWF", AwbGain: [2]float64{1.35, 2.05}, MinDist: 0.02},
		{Name: "D50", AwbGain: [2]float64{1.55, 1.71}, MinDist: 0.02},
		{Name: "D65", AwbGain: [2]float64{1.8, 1.45}, MinDist: 0.02},
	}
}

var testCfg = EstimatorConfig{WeightRB: [2]float64{1, 1}, ProbLimit: 0.2, DefaultIllu: "D50", FrameNo: 4}

func TestBestMatch(t *testing.T) {
	// Exactly midway between the two; the first one wins
	idx, err := BestMatch([2]float64{1.5, 0.75}, twoIlluminants())
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = BestMatch([2]float64{1.9, 0.6}, twoIlluminants())
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = BestMatch([2]float64{1.5, 1.7}, fourIlluminants())
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	_, err = BestMatch([2]float64{1, 1}, nil)
	assert.True(t, errors.Is(err, result.ErrConfig))
}

func TestCandidatesSumToOne(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for _, table := range [][]calib.Illuminant{twoIlluminants(), fourIlluminants()} {
		for i := 0; i < 500; i++ {
			gain := [2]float64{0.8 + 1.2*rnd.Float64(), 1.2 + 1.6*rnd.Float64()}
			prob, err := Candidates(gain, table, testCfg)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, floats.Sum(prob), 1e-6, "gain %v: %v", gain, prob)
			for _, p := range prob {
				assert.GreaterOrEqual(t, p, 0.0)
			}
		}
	}
}

func TestCandidates(t *testing.T) {
	table := fourIlluminants()

	// Only one illuminant
	prob, err := Candidates([2]float64{3, 3}, table[:1], testCfg)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, prob)

	// Within D65's min_dist
	prob, err = Candidates([2]float64{1.81, 1.45}, table, testCfg)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1}, prob)

	// Between D50 and D65: both kept, A and CWF dropped
	prob, err = Candidates([2]float64{1.67, 1.58}, table, testCfg)
	require.NoError(t, err)
	assert.Equal(t, 0.0, prob[0])
	assert.Equal(t, 0.0, prob[1])
	assert.Greater(t, prob[2], 0.333)
	assert.Greater(t, prob[3], 0.333)

	// All equally far away: the default
	square := []calib.Illuminant{
		{Name: "x", AwbGain: [2]float64{1, 1}},
		{Name: "y", AwbGain: [2]float64{3, 1}},
		{Name: "z", AwbGain: [2]float64{2, 2}},
		{Name: "w", AwbGain: [2]float64{2, 0}},
	}
	cfg := testCfg
	cfg.DefaultIllu = "z"
	prob, err = Candidates([2]float64{2, 1}, square, cfg)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0}, prob)

	// A limit nothing can reach: the most likely one
	cfg.ProbLimit = 1.1
	prob, err = Candidates([2]float64{1.75, 1.5}, table, cfg)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 1}, prob)

	_, err = Candidates([2]float64{1, 1}, nil, testCfg)
	assert.True(t, errors.Is(err, result.ErrConfig))
}

func TestHistory(t *testing.T) {
	h := NewHistory(4)
	assert.False(t, h.Full())

	for i := 0; i < 10; i++ {
		h.Push(i%2, float64(i))
		assert.LessOrEqual(t, h.Len(), h.Cap())
	}
	assert.True(t, h.Full())

	// Holds samples 6..9
	assert.Equal(t, []float64{(6 + 8) / 2.0, (7 + 9) / 2.0}, h.Mean(2, 2))

	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Full())

	empty := NewHistory(0)
	empty.Push(0, 1)
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Full())
}

func TestEstimator(t *testing.T) {
	table := fourIlluminants()
	e := NewEstimator(testCfg, len(table))
	assert.Equal(t, 16, e.History().Cap())

	d65 := [2]float64{1.81, 1.45}
	d50 := [2]float64{1.56, 1.71}

	for i := 0; i < 4; i++ {
		prob, err := e.Estimate(d65, table)
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 0, 1}, prob)
	}

	// Half the window has moved over to D50
	var prob []float64
	for i := 0; i < 2; i++ {
		var err error
		prob, err = e.Estimate(d50, table)
		require.NoError(t, err)
	}
	assert.InDeltaSlice(t, []float64{0, 0, 0.5, 0.5}, prob, 1e-12)
	assert.InDelta(t, 1.0, floats.Sum(prob), 1e-6)

	e.Reset()
	prob, err := e.Estimate(d50, table)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0}, prob, "instantaneous until the window refills")
}
