// Package mixture implements a one-dimensional Gaussian mixture model fitted
// by expectation-maximization. It backs the mode decomposition of continuous
// columns: the fitted component means and standard deviations become column
// metadata, and the posterior responsibilities become part of the encoding.
package mixture

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/synthdata/tabprep/core/model"
	"github.com/synthdata/tabprep/core/parallel"
	"github.com/synthdata/tabprep/pkg/errors"
	"github.com/synthdata/tabprep/pkg/log"
)

const (
	ln2Pi = 1.8378770664093453

	// minComponentWeight guards the M-step against division by an empty
	// component.
	minComponentWeight = 1e-10

	// parallelThreshold is the row count above which responsibility
	// computation fans out across cores.
	parallelThreshold = 4096
)

// GaussianMixture models a univariate distribution as a weighted sum of
// Gaussian components, fitted with EM. The zero value is not usable; create
// instances with NewGaussianMixture.
type GaussianMixture struct {
	model.BaseEstimator

	nComponents int
	maxIter     int
	tol         float64
	regCovar    float64
	randomState int64

	weights   []float64
	means     []float64
	variances []float64

	nIter      int
	lowerBound float64
}

// Option configures a GaussianMixture.
type Option func(*GaussianMixture)

// WithMaxIter sets the EM iteration budget (default 100).
func WithMaxIter(maxIter int) Option {
	return func(g *GaussianMixture) { g.maxIter = maxIter }
}

// WithTolerance sets the convergence tolerance on the change in mean
// log-likelihood between iterations (default 1e-3).
func WithTolerance(tol float64) Option {
	return func(g *GaussianMixture) { g.tol = tol }
}

// WithSeed fixes the random seed used for initialization. Negative seeds
// (the default) derive the seed from the clock.
func WithSeed(seed int64) Option {
	return func(g *GaussianMixture) { g.randomState = seed }
}

// WithCovarianceFloor sets the variance added to every component at each
// M-step to keep covariances away from zero (default 1e-6).
func WithCovarianceFloor(reg float64) Option {
	return func(g *GaussianMixture) { g.regCovar = reg }
}

// NewGaussianMixture creates an unfitted mixture with nComponents components.
func NewGaussianMixture(nComponents int, opts ...Option) *GaussianMixture {
	g := &GaussianMixture{
		nComponents: nComponents,
		maxIter:     100,
		tol:         1e-3,
		regCovar:    1e-6,
		randomState: -1,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Fit estimates the mixture parameters from x by EM.
//
// Means are seeded k-means++ style from the data, variances start at the
// sample variance, and weights start uniform. The E-step works in log space
// with log-sum-exp so narrow components cannot underflow. Fit returns a
// ConvergenceError when the mean log-likelihood has not stabilized within
// the iteration budget, and a ValidationError when the data cannot support
// the requested number of components.
func (g *GaussianMixture) Fit(x []float64) error {
	n := len(x)
	if n == 0 {
		return errors.Wrap(errors.ErrEmptyData, "GaussianMixture.Fit")
	}
	if g.nComponents < 1 {
		return errors.NewValidationError("nComponents", "must be at least 1", g.nComponents)
	}
	if distinct := countDistinct(x); distinct < g.nComponents {
		return errors.NewValidationError("data",
			"needs at least as many distinct values as mixture components", distinct)
	}

	seed := g.randomState
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	g.initParameters(x, rng)

	resp := mat.NewDense(n, g.nComponents, nil)
	prevLL := math.Inf(-1)
	converged := false

	logger := log.With("mixture")
	for iter := 0; iter < g.maxIter; iter++ {
		ll := g.eStep(x, resp)
		g.mStep(x, resp)

		if iter > 0 && math.Abs(ll-prevLL) < g.tol {
			g.nIter = iter + 1
			g.lowerBound = ll
			converged = true
			break
		}
		prevLL = ll
	}

	if !converged {
		return errors.NewConvergenceError("GaussianMixture", g.maxIter, "")
	}

	logger.Debug().
		Int("components", g.nComponents).
		Int("samples", n).
		Int("iterations", g.nIter).
		Float64("log_likelihood", g.lowerBound).
		Msg("mixture fit converged")

	g.SetFitted()
	return nil
}

// PredictProba returns the posterior responsibility of each component for
// each value of x, as an (len(x), nComponents) matrix. Every row is
// non-negative and sums to 1.
func (g *GaussianMixture) PredictProba(x []float64) (*mat.Dense, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianMixture", "PredictProba")
	}
	if len(x) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "GaussianMixture.PredictProba")
	}
	return posterior(x, g.weights, g.means, g.variances), nil
}

// Means returns a copy of the fitted component means.
func (g *GaussianMixture) Means() []float64 {
	out := make([]float64, len(g.means))
	copy(out, g.means)
	return out
}

// StdDevs returns a copy of the fitted component standard deviations.
func (g *GaussianMixture) StdDevs() []float64 {
	out := make([]float64, len(g.variances))
	for i, v := range g.variances {
		out[i] = math.Sqrt(v)
	}
	return out
}

// Weights returns a copy of the fitted component weights.
func (g *GaussianMixture) Weights() []float64 {
	out := make([]float64, len(g.weights))
	copy(out, g.weights)
	return out
}

// NIter returns the number of EM iterations the last Fit performed.
func (g *GaussianMixture) NIter() int { return g.nIter }

// LowerBound returns the mean log-likelihood reached by the last Fit.
func (g *GaussianMixture) LowerBound() float64 { return g.lowerBound }

// Responsibilities computes posterior component probabilities for x given
// per-component means and standard deviations, with uniform component
// weights. It is used to re-encode new data from stored column metadata,
// which records means and stds but not mixture weights.
func Responsibilities(x, means, stds []float64) (*mat.Dense, error) {
	if len(x) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "mixture.Responsibilities")
	}
	if len(means) == 0 || len(means) != len(stds) {
		return nil, errors.NewValidationError("means/stds",
			"must be non-empty and of equal length", len(stds))
	}
	k := len(means)
	weights := make([]float64, k)
	variances := make([]float64, k)
	for j := 0; j < k; j++ {
		if stds[j] <= 0 {
			return nil, errors.NewValidationError("stds", "must be positive", stds[j])
		}
		weights[j] = 1.0 / float64(k)
		variances[j] = stds[j] * stds[j]
	}
	return posterior(x, weights, means, variances), nil
}

// initParameters seeds means k-means++ style (each new mean drawn with
// probability proportional to squared distance from the nearest chosen one),
// variances at the sample variance, and weights uniform.
func (g *GaussianMixture) initParameters(x []float64, rng *rand.Rand) {
	k := g.nComponents
	n := len(x)

	g.means = make([]float64, k)
	g.means[0] = x[rng.Intn(n)]

	d2 := make([]float64, n)
	for j := 1; j < k; j++ {
		var total float64
		for i, v := range x {
			d := math.Inf(1)
			for _, m := range g.means[:j] {
				if dd := (v - m) * (v - m); dd < d {
					d = dd
				}
			}
			d2[i] = d
			total += d
		}

		if total == 0 {
			// Remaining points coincide with chosen means; fall back to a
			// uniform draw. Distinct-value validation makes this rare.
			g.means[j] = x[rng.Intn(n)]
			continue
		}

		target := rng.Float64() * total
		var cum float64
		idx := n - 1
		for i, d := range d2 {
			cum += d
			if cum >= target {
				idx = i
				break
			}
		}
		g.means[j] = x[idx]
	}

	variance := stat.Variance(x, nil) + g.regCovar
	g.variances = make([]float64, k)
	g.weights = make([]float64, k)
	for j := 0; j < k; j++ {
		g.variances[j] = variance
		g.weights[j] = 1.0 / float64(k)
	}
}

// eStep fills resp with posterior responsibilities and returns the mean
// log-likelihood of x under the current parameters.
func (g *GaussianMixture) eStep(x []float64, resp *mat.Dense) float64 {
	n := len(x)
	k := g.nComponents

	logW := make([]float64, k)
	for j := 0; j < k; j++ {
		logW[j] = math.Log(g.weights[j])
	}

	llSums := make([]float64, n)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		buf := make([]float64, k)
		for i := start; i < end; i++ {
			for j := 0; j < k; j++ {
				buf[j] = logW[j] + logNormPDF(x[i], g.means[j], g.variances[j])
			}
			lse := floats.LogSumExp(buf)
			llSums[i] = lse
			for j := 0; j < k; j++ {
				resp.Set(i, j, math.Exp(buf[j]-lse))
			}
		}
	})

	return floats.Sum(llSums) / float64(n)
}

// mStep re-estimates weights, means and variances from the responsibilities.
func (g *GaussianMixture) mStep(x []float64, resp *mat.Dense) {
	n := len(x)
	k := g.nComponents

	for j := 0; j < k; j++ {
		var nk, sum float64
		for i := 0; i < n; i++ {
			r := resp.At(i, j)
			nk += r
			sum += r * x[i]
		}
		if nk < minComponentWeight {
			nk = minComponentWeight
		}

		mean := sum / nk
		var sq float64
		for i := 0; i < n; i++ {
			d := x[i] - mean
			sq += resp.At(i, j) * d * d
		}

		g.weights[j] = nk / float64(n)
		g.means[j] = mean
		g.variances[j] = sq/nk + g.regCovar
	}
}

func posterior(x, weights, means, variances []float64) *mat.Dense {
	n := len(x)
	k := len(means)
	logW := make([]float64, k)
	for j := 0; j < k; j++ {
		logW[j] = math.Log(weights[j])
	}

	out := mat.NewDense(n, k, nil)
	parallel.ParallelizeWithThreshold(n, parallelThreshold, func(start, end int) {
		buf := make([]float64, k)
		for i := start; i < end; i++ {
			for j := 0; j < k; j++ {
				buf[j] = logW[j] + logNormPDF(x[i], means[j], variances[j])
			}
			lse := floats.LogSumExp(buf)
			for j := 0; j < k; j++ {
				out.Set(i, j, math.Exp(buf[j]-lse))
			}
		}
	})
	return out
}

func logNormPDF(x, mean, variance float64) float64 {
	d := x - mean
	return -0.5 * (ln2Pi + math.Log(variance) + d*d/variance)
}

func countDistinct(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		seen[v] = struct{}{}
	}
	return len(seen)
}
