package preprocessing

import (
	"strconv"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/synthdata/tabprep/core/model"
	"github.com/synthdata/tabprep/mixture"
	"github.com/synthdata/tabprep/pkg/errors"
	"github.com/synthdata/tabprep/pkg/log"
)

// DefaultModes is the number of mixture components fitted per continuous
// column. Fixed for every column; an effectively unimodal column degenerates
// gracefully because the mixture assigns the spare components near-zero
// weight.
const DefaultModes = 5

// TransformedTable maps a position-derived column key (see ColumnKey) to
// that column's encoded numeric block: (n, 1+modes) for value columns,
// (n, 1) for category columns.
type TransformedTable map[string]*mat.Dense

// Preprocessor converts whole tables back and forth between human-readable
// values and the numeric encoding a generative model trains on. Column roles
// are declared up front via the continuous-column index set; everything else
// is treated as categorical.
//
// A Preprocessor is either unfit (only Fit/FitTransform valid) or fitted
// (Transform/ReverseTransform valid, metadata immutable). It does not re-fit
// in place: a changed schema needs a new instance. Concurrent use after a
// completed fit is safe for the read-only operations.
type Preprocessor struct {
	model.BaseEstimator

	continuousColumns map[int]struct{}
	modes             int
	mixtureOpts       []mixture.Option

	metadata    *Metadata
	continuous  *MultiModalTransformer
	categorical *CategoricalTransformer
	logger      zerolog.Logger
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithModes sets the number of mixture components per continuous column
// (default DefaultModes).
func WithModes(modes int) Option {
	return func(p *Preprocessor) { p.modes = modes }
}

// WithSeed fixes the random seed used by every per-column mixture fit,
// making Fit reproducible.
func WithSeed(seed int64) Option {
	return func(p *Preprocessor) { p.mixtureOpts = append(p.mixtureOpts, mixture.WithSeed(seed)) }
}

// WithMaxIter sets the EM iteration budget for mixture fits.
func WithMaxIter(maxIter int) Option {
	return func(p *Preprocessor) { p.mixtureOpts = append(p.mixtureOpts, mixture.WithMaxIter(maxIter)) }
}

// WithTolerance sets the EM convergence tolerance for mixture fits.
func WithTolerance(tol float64) Option {
	return func(p *Preprocessor) { p.mixtureOpts = append(p.mixtureOpts, mixture.WithTolerance(tol)) }
}

// NewPreprocessor creates an unfit preprocessor. continuousColumns lists the
// positional indices to encode by mode decomposition; all other columns are
// categorical.
func NewPreprocessor(continuousColumns []int, opts ...Option) *Preprocessor {
	p := &Preprocessor{
		continuousColumns: make(map[int]struct{}, len(continuousColumns)),
		modes:             DefaultModes,
		logger:            log.With("preprocessor"),
	}
	for _, c := range continuousColumns {
		p.continuousColumns[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.continuous = NewMultiModalTransformer(p.modes, p.mixtureOpts...)
	p.categorical = NewCategoricalTransformer()
	return p
}

// NewFittedPreprocessor creates a preprocessor from existing metadata,
// skipping fitting. Column roles are taken from the metadata itself. The
// metadata is validated and then owned by the preprocessor; it must not be
// modified afterwards.
func NewFittedPreprocessor(md *Metadata, opts ...Option) (*Preprocessor, error) {
	if err := md.Validate(); err != nil {
		return nil, err
	}
	continuous := make([]int, 0, md.NumFeatures)
	for i := range md.Details {
		if md.Details[i].Kind == KindValue {
			continuous = append(continuous, i)
		}
	}
	p := NewPreprocessor(continuous, opts...)
	p.metadata = md
	p.SetFitted()
	return p, nil
}

// Metadata returns the fitted metadata, or nil before fitting. The result is
// immutable and must not be modified.
func (p *Preprocessor) Metadata() *Metadata {
	return p.metadata
}

// Fit fits every column of t and stores the resulting metadata. The fit is
// atomic: on any per-column error the preprocessor's previous state is left
// untouched.
func (p *Preprocessor) Fit(t *Table) error {
	_, err := p.FitTransform(t)
	return err
}

// FitTransform fits every column of t and returns the transformed table.
// Continuous columns (per the declared index set) go through mode
// decomposition; all others through vocabulary encoding. Metadata is
// replaced as a unit only when the whole table fits successfully.
func (p *Preprocessor) FitTransform(t *Table) (TransformedTable, error) {
	const op = "Preprocessor.FitTransform"
	if t == nil || t.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}

	cols := t.NumCols()
	details := make([]ColumnDescriptor, 0, cols)
	transformed := make(TransformedTable, cols)

	for i := 0; i < cols; i++ {
		block, desc, err := p.fitColumn(t, i)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: column %d", op, i)
		}
		details = append(details, *desc)
		transformed[ColumnKey(i)] = block
	}

	p.metadata = &Metadata{NumFeatures: cols, Details: details}
	p.SetFitted()
	p.logger.Info().
		Int("rows", t.NumRows()).
		Int("columns", cols).
		Int("continuous", len(p.continuousColumns)).
		Msg("fitted table")
	return transformed, nil
}

func (p *Preprocessor) fitColumn(t *Table, i int) (*mat.Dense, *ColumnDescriptor, error) {
	if _, ok := p.continuousColumns[i]; ok {
		x, err := t.FloatColumn(i)
		if err != nil {
			return nil, nil, err
		}
		block, desc, err := p.continuous.FitTransform(mat.NewDense(len(x), 1, x))
		if err != nil {
			return nil, nil, err
		}
		p.logger.Debug().Int("column", i).Str("kind", desc.Kind.String()).Msg("fitted column")
		return block, desc, nil
	}

	values, err := t.Column(i)
	if err != nil {
		return nil, nil, err
	}
	block, desc, err := p.categorical.FitTransform(values)
	if err != nil {
		return nil, nil, err
	}
	p.logger.Debug().Int("column", i).Str("kind", desc.Kind.String()).Int("vocabulary", desc.N).Msg("fitted column")
	return block, desc, nil
}

// Transform encodes a new table with the same schema using the already
// fitted parameters: stored means/stds for value columns, the stored
// vocabulary for category columns. It never re-fits and never mutates the
// metadata.
func (p *Preprocessor) Transform(t *Table) (TransformedTable, error) {
	const op = "Preprocessor.Transform"
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Preprocessor", "Transform")
	}
	if t == nil || t.NumRows() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if t.NumCols() != p.metadata.NumFeatures {
		return nil, errors.NewSchemaError(op, -1,
			"table has "+strconv.Itoa(t.NumCols())+" columns, fitted layout has "+strconv.Itoa(p.metadata.NumFeatures))
	}

	transformed := make(TransformedTable, p.metadata.NumFeatures)
	for i := range p.metadata.Details {
		desc := &p.metadata.Details[i]
		var (
			block *mat.Dense
			err   error
		)
		switch desc.Kind {
		case KindValue:
			var x []float64
			if x, err = t.FloatColumn(i); err == nil {
				block, err = p.continuous.Transform(mat.NewDense(len(x), 1, x), desc)
			}
		case KindCategory:
			var values []string
			if values, err = t.Column(i); err == nil {
				block, err = p.categorical.Transform(values, desc)
			}
		default:
			err = errors.NewSchemaError(op, i, "unsupported column type "+desc.Kind.String())
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: column %d", op, i)
		}
		transformed[ColumnKey(i)] = block
	}
	return transformed, nil
}

// ReverseTransform maps a transformed table back into the original domain,
// walking the stored descriptors in column order. The result's column order
// matches the raw table the metadata was fitted on.
func (p *Preprocessor) ReverseTransform(transformed TransformedTable) (*Table, error) {
	const op = "Preprocessor.ReverseTransform"
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("Preprocessor", "ReverseTransform")
	}
	if len(transformed) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if len(transformed) != p.metadata.NumFeatures {
		return nil, errors.NewSchemaError(op, -1,
			"transformed table has "+strconv.Itoa(len(transformed))+" blocks, fitted layout has "+strconv.Itoa(p.metadata.NumFeatures))
	}

	columns := make([][]string, p.metadata.NumFeatures)
	rows := -1
	for i := range p.metadata.Details {
		desc := &p.metadata.Details[i]
		block, ok := transformed[ColumnKey(i)]
		if !ok {
			return nil, errors.NewSchemaError(op, i, "missing block "+strconv.Quote(ColumnKey(i)))
		}
		r, _ := block.Dims()
		if rows < 0 {
			rows = r
		} else if r != rows {
			return nil, errors.NewDimensionError(op+": block "+ColumnKey(i), rows, r, 0)
		}

		column, err := p.reverseColumn(block, desc, i)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: column %d", op, i)
		}
		columns[i] = column
	}
	return NewTableFromColumns(columns)
}

func (p *Preprocessor) reverseColumn(block *mat.Dense, desc *ColumnDescriptor, i int) ([]string, error) {
	switch desc.Kind {
	case KindValue:
		recovered, err := p.continuous.ReverseTransform(block, desc)
		if err != nil {
			return nil, err
		}
		r, _ := recovered.Dims()
		out := make([]string, r)
		for j := 0; j < r; j++ {
			out[j] = strconv.FormatFloat(recovered.At(j, 0), 'g', -1, 64)
		}
		return out, nil
	case KindCategory:
		return p.categorical.ReverseTransform(block, desc)
	default:
		return nil, errors.NewSchemaError("Preprocessor.ReverseTransform", i,
			"unsupported column type "+desc.Kind.String())
	}
}
