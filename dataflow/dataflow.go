// Package dataflow exposes a transformed table as a finite, restartable
// sequence of fixed-shape rows for a downstream training consumer. It never
// touches the statistical logic: it only re-slices blocks the Preprocessor
// already produced.
package dataflow

import (
	"iter"
	"math/rand"
	"strconv"
	"time"

	"github.com/synthdata/tabprep/pkg/errors"
	"github.com/synthdata/tabprep/preprocessing"
)

// Slot is one column's contribution to a row: value columns carry the
// normalized scalar and the responsibility vector, category columns carry
// the vocabulary index.
type Slot struct {
	Kind   preprocessing.ColumnKind
	Scalar float64
	Probs  []float64
	Index  int
}

// Row is one record's per-column slots, in original column order.
type Row []Slot

// DataFlow is a row-iterable view over a transformed table. When shuffling
// is enabled each fresh iteration applies a new pseudo-random permutation;
// otherwise iteration preserves the original row order.
type DataFlow struct {
	rows    []Row
	shuffle bool
	rng     *rand.Rand
}

// Option configures a DataFlow.
type Option func(*DataFlow)

// WithShuffle enables or disables per-iteration shuffling (default enabled).
func WithShuffle(shuffle bool) Option {
	return func(d *DataFlow) { d.shuffle = shuffle }
}

// WithSeed fixes the shuffle seed, making the permutation sequence
// reproducible.
func WithSeed(seed int64) Option {
	return func(d *DataFlow) { d.rng = rand.New(rand.NewSource(seed)) }
}

// New builds a DataFlow from a transformed table and its metadata. Every
// column's block must be present with the width the descriptor implies;
// a missing block or an unsupported column kind is a SchemaError.
func New(transformed preprocessing.TransformedTable, md *preprocessing.Metadata, opts ...Option) (*DataFlow, error) {
	const op = "dataflow.New"
	if err := md.Validate(); err != nil {
		return nil, err
	}
	if len(transformed) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if len(transformed) != md.NumFeatures {
		return nil, errors.NewSchemaError(op, -1,
			"transformed table has "+strconv.Itoa(len(transformed))+" blocks, metadata describes "+strconv.Itoa(md.NumFeatures))
	}

	rows := -1
	for i := range md.Details {
		desc := &md.Details[i]
		block, ok := transformed[preprocessing.ColumnKey(i)]
		if !ok {
			return nil, errors.NewSchemaError(op, i, "missing block "+strconv.Quote(preprocessing.ColumnKey(i)))
		}
		r, c := block.Dims()
		if c != desc.Width() {
			return nil, errors.NewDimensionError(op+": block "+preprocessing.ColumnKey(i), desc.Width(), c, 1)
		}
		if rows < 0 {
			rows = r
		} else if r != rows {
			return nil, errors.NewDimensionError(op+": block "+preprocessing.ColumnKey(i), rows, r, 0)
		}
	}

	d := &DataFlow{
		rows:    make([]Row, rows),
		shuffle: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.rng == nil {
		d.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for i := 0; i < rows; i++ {
		row := make(Row, len(md.Details))
		for j := range md.Details {
			desc := &md.Details[j]
			block := transformed[preprocessing.ColumnKey(j)]
			switch desc.Kind {
			case preprocessing.KindValue:
				probs := make([]float64, desc.N)
				for k := 0; k < desc.N; k++ {
					probs[k] = block.At(i, 1+k)
				}
				row[j] = Slot{Kind: preprocessing.KindValue, Scalar: block.At(i, 0), Probs: probs}
			case preprocessing.KindCategory:
				row[j] = Slot{Kind: preprocessing.KindCategory, Index: int(block.At(i, 0))}
			default:
				return nil, errors.NewSchemaError(op, j, "unsupported column type "+desc.Kind.String())
			}
		}
		d.rows[i] = row
	}
	return d, nil
}

// Size returns the number of rows.
func (d *DataFlow) Size() int {
	return len(d.rows)
}

// Rows returns a finite, restartable sequence over the rows. Each fresh
// iteration draws a new permutation when shuffling is enabled.
func (d *DataFlow) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		if d.shuffle {
			for _, k := range d.rng.Perm(len(d.rows)) {
				if !yield(d.rows[k]) {
					return
				}
			}
			return
		}
		for _, row := range d.rows {
			if !yield(row) {
				return
			}
		}
	}
}
