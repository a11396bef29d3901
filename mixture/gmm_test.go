package mixture

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthdata/tabprep/pkg/errors"
)

// bimodal returns two well-separated clusters of equal size.
func bimodal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		out = append(out, 0+rng.NormFloat64())
		out = append(out, 50+rng.NormFloat64())
	}
	return out
}

func TestGaussianMixtureFitBimodal(t *testing.T) {
	x := bimodal(200, 3)
	gm := NewGaussianMixture(2, WithSeed(1))
	require.NoError(t, gm.Fit(x))
	require.True(t, gm.IsFitted())

	means := gm.Means()
	sort.Float64s(means)
	assert.InDelta(t, 0, means[0], 0.5)
	assert.InDelta(t, 50, means[1], 0.5)

	for _, s := range gm.StdDevs() {
		assert.InDelta(t, 1, s, 0.5)
	}

	weights := gm.Weights()
	assert.InDelta(t, 1.0, weights[0]+weights[1], 1e-9)
	assert.Greater(t, gm.NIter(), 0)
}

func TestGaussianMixturePredictProbaNormalized(t *testing.T) {
	x := bimodal(100, 5)
	gm := NewGaussianMixture(2, WithSeed(9))
	require.NoError(t, gm.Fit(x))

	probs, err := gm.PredictProba(x)
	require.NoError(t, err)

	r, c := probs.Dims()
	require.Equal(t, len(x), r)
	require.Equal(t, 2, c)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			p := probs.At(i, j)
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestGaussianMixtureDeterministicWithSeed(t *testing.T) {
	x := bimodal(100, 7)

	a := NewGaussianMixture(2, WithSeed(42))
	require.NoError(t, a.Fit(x))
	b := NewGaussianMixture(2, WithSeed(42))
	require.NoError(t, b.Fit(x))

	assert.Equal(t, a.Means(), b.Means())
	assert.Equal(t, a.StdDevs(), b.StdDevs())
	assert.Equal(t, a.Weights(), b.Weights())
}

func TestGaussianMixtureNotFitted(t *testing.T) {
	gm := NewGaussianMixture(2)
	_, err := gm.PredictProba([]float64{1, 2, 3})
	require.Error(t, err)

	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))
}

func TestGaussianMixtureDegenerateData(t *testing.T) {
	// Fewer distinct values than components cannot support the fit.
	gm := NewGaussianMixture(5, WithSeed(1))
	err := gm.Fit([]float64{1, 1, 2, 2, 3, 3})
	require.Error(t, err)

	var validation *errors.ValidationError
	assert.True(t, errors.As(err, &validation))
	assert.False(t, gm.IsFitted())
}

func TestGaussianMixtureEmptyData(t *testing.T) {
	gm := NewGaussianMixture(2)
	require.Error(t, gm.Fit(nil))
}

func TestGaussianMixtureNonConvergence(t *testing.T) {
	// A single-iteration budget can never satisfy the stability check.
	gm := NewGaussianMixture(2, WithSeed(1), WithMaxIter(1))
	err := gm.Fit(bimodal(50, 11))
	require.Error(t, err)

	var conv *errors.ConvergenceError
	require.True(t, errors.As(err, &conv))
	assert.Equal(t, 1, conv.Iterations)
	assert.False(t, gm.IsFitted())
}

func TestResponsibilities(t *testing.T) {
	probs, err := Responsibilities([]float64{0, 10}, []float64{0, 10}, []float64{1, 1})
	require.NoError(t, err)

	// A value at a component mean, far from the other, belongs to it almost
	// entirely.
	assert.Greater(t, probs.At(0, 0), 0.999)
	assert.Greater(t, probs.At(1, 1), 0.999)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, 1.0, probs.At(i, 0)+probs.At(i, 1), 1e-9)
	}
}

func TestResponsibilitiesValidation(t *testing.T) {
	_, err := Responsibilities([]float64{1}, []float64{0, 1}, []float64{1})
	require.Error(t, err)

	_, err = Responsibilities([]float64{1}, []float64{0}, []float64{0})
	require.Error(t, err)

	_, err = Responsibilities(nil, []float64{0}, []float64{1})
	require.Error(t, err)
}

func TestGaussianMixtureSingleComponent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	x := make([]float64, 500)
	mean, std := 7.0, 2.0
	for i := range x {
		x[i] = mean + std*rng.NormFloat64()
	}

	gm := NewGaussianMixture(1, WithSeed(3))
	require.NoError(t, gm.Fit(x))
	assert.InDelta(t, mean, gm.Means()[0], 0.3)
	assert.InDelta(t, std, gm.StdDevs()[0], 0.3)
	assert.InDelta(t, 1.0, gm.Weights()[0], 1e-12)
	assert.False(t, math.IsNaN(gm.LowerBound()))
}
