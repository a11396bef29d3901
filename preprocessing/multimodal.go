// Package preprocessing converts tabular columns into reversible numeric
// encodings: mode decomposition for continuous columns, vocabulary indexing
// for categorical columns, and a Preprocessor that applies both consistently
// across a whole table.
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/synthdata/tabprep/core/parallel"
	"github.com/synthdata/tabprep/mixture"
	"github.com/synthdata/tabprep/pkg/errors"
)

// clipBound is the closed interval limit for the normalized scalar. Clipping
// bounds the value a downstream model has to regress, at the cost of exact
// recovery for extreme outliers.
const clipBound = 0.99

// encodeParallelThreshold is the row count above which per-row encoding fans
// out across cores.
const encodeParallelThreshold = 4096

// MultiModalTransformer encodes a continuous column that may exhibit a
// multimodal distribution. A Gaussian mixture with a fixed number of modes is
// fitted per column; each value becomes a scalar normalized within its
// dominant mode plus the vector of mode responsibilities. A downstream model
// then sees each mode as near-Gaussian instead of the raw multimodal
// distribution.
//
// A fixed mode count is intentional simplicity: on a near-unimodal column the
// mixture assigns near-zero weight to the unneeded components, which
// degenerates gracefully into plain normalization.
//
// The transformer itself is a stateless helper reused across columns; the
// fitted parameters live in the ColumnDescriptor it returns.
type MultiModalTransformer struct {
	modes       int
	mixtureOpts []mixture.Option
}

// NewMultiModalTransformer creates a transformer that fits modes mixture
// components per column. opts are forwarded to every per-column mixture fit.
func NewMultiModalTransformer(modes int, opts ...mixture.Option) *MultiModalTransformer {
	return &MultiModalTransformer{modes: modes, mixtureOpts: opts}
}

// FitTransform fits a mixture to the single column X of shape (n, 1) and
// encodes it. The returned block has shape (n, 1+modes): column 0 is the
// normalized scalar (x-μ)/(2σ) of the dominant mode, clipped to
// [-clipBound, clipBound]; columns 1..modes are the responsibilities. The
// returned descriptor carries the fitted means and standard deviations.
//
// A failed mixture fit propagates as an error; no degenerate descriptor is
// ever returned.
func (m *MultiModalTransformer) FitTransform(X mat.Matrix) (*mat.Dense, *ColumnDescriptor, error) {
	const op = "MultiModalTransformer.FitTransform"
	if err := checkSingleColumn(op, X); err != nil {
		return nil, nil, err
	}
	x := columnData(X)

	gm := mixture.NewGaussianMixture(m.modes, m.mixtureOpts...)
	if err := gm.Fit(x); err != nil {
		return nil, nil, errors.Wrap(err, op)
	}

	probs, err := gm.PredictProba(x)
	if err != nil {
		return nil, nil, errors.Wrap(err, op)
	}

	desc := &ColumnDescriptor{
		Kind:  KindValue,
		Means: gm.Means(),
		Stds:  gm.StdDevs(),
		N:     m.modes,
	}
	block := encodeModes(x, probs, desc)
	return block, desc, nil
}

// Transform re-encodes a new single column using the parameters already
// captured in info, without re-fitting. Responsibilities come from the
// stored means and stds (see mixture.Responsibilities).
func (m *MultiModalTransformer) Transform(X mat.Matrix, info *ColumnDescriptor) (*mat.Dense, error) {
	const op = "MultiModalTransformer.Transform"
	if err := checkSingleColumn(op, X); err != nil {
		return nil, err
	}
	if info == nil || info.Kind != KindValue {
		return nil, errors.NewSchemaError(op, -1, "descriptor is not a value column")
	}
	if err := info.Validate(-1); err != nil {
		return nil, err
	}

	x := columnData(X)
	probs, err := mixture.Responsibilities(x, info.Means, info.Stds)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	return encodeModes(x, probs, info), nil
}

// ReverseTransform maps an encoded block of shape (n, 1+n_modes) back to a
// single column. For each row the dominant mode k is the responsibility
// argmax and the value is recovered as scalar·2σ_k + μ_k. The inverse is
// approximate: forward clipping and mode misassignment near cluster
// boundaries introduce bounded error.
func (m *MultiModalTransformer) ReverseTransform(X mat.Matrix, info *ColumnDescriptor) (*mat.Dense, error) {
	const op = "MultiModalTransformer.ReverseTransform"
	if info == nil || info.Kind != KindValue {
		return nil, errors.NewSchemaError(op, -1, "descriptor is not a value column")
	}
	if err := info.Validate(-1); err != nil {
		return nil, err
	}
	if X == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if c != 1+info.N {
		return nil, errors.NewDimensionError(op, 1+info.N, c, 1)
	}

	out := mat.NewDense(r, 1, nil)
	parallel.ParallelizeWithThreshold(r, encodeParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			k := 0
			best := X.At(i, 1)
			for j := 1; j < info.N; j++ {
				if p := X.At(i, 1+j); p > best {
					best = p
					k = j
				}
			}
			out.Set(i, 0, X.At(i, 0)*2*info.Stds[k]+info.Means[k])
		}
	})
	return out, nil
}

// encodeModes builds the (n, 1+modes) block from values and their
// responsibilities.
func encodeModes(x []float64, probs *mat.Dense, info *ColumnDescriptor) *mat.Dense {
	n := len(x)
	block := mat.NewDense(n, 1+info.N, nil)
	parallel.ParallelizeWithThreshold(n, encodeParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			k := 0
			best := probs.At(i, 0)
			for j := 1; j < info.N; j++ {
				if p := probs.At(i, j); p > best {
					best = p
					k = j
				}
			}
			v := (x[i] - info.Means[k]) / (2 * info.Stds[k])
			block.Set(i, 0, clip(v, clipBound))
			for j := 0; j < info.N; j++ {
				block.Set(i, 1+j, probs.At(i, j))
			}
		}
	})
	return block
}

func clip(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}
