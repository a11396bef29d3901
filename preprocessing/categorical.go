package preprocessing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/synthdata/tabprep/pkg/errors"
)

// CategoricalTransformer encodes a categorical column as dense integer
// indices into a sorted vocabulary of the distinct values seen at fit time.
// Sorting makes the mapping deterministic: re-fitting on the same set of
// distinct values reproduces the identical vocabulary.
//
// Like MultiModalTransformer it is a stateless helper; the vocabulary lives
// in the returned ColumnDescriptor.
type CategoricalTransformer struct{}

// NewCategoricalTransformer creates a categorical transformer.
func NewCategoricalTransformer() *CategoricalTransformer {
	return &CategoricalTransformer{}
}

// FitTransform builds the vocabulary from values and encodes them. The block
// has shape (n, 1) holding the index of each value in the ascending-sorted
// vocabulary.
func (c *CategoricalTransformer) FitTransform(values []string) (*mat.Dense, *ColumnDescriptor, error) {
	const op = "CategoricalTransformer.FitTransform"
	if len(values) == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, op)
	}

	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	mapping := make([]string, 0, len(seen))
	for v := range seen {
		mapping = append(mapping, v)
	}
	sort.Strings(mapping)

	desc := &ColumnDescriptor{Kind: KindCategory, Mapping: mapping, N: len(mapping)}
	block, err := c.Transform(values, desc)
	if err != nil {
		return nil, nil, err
	}
	return block, desc, nil
}

// Transform encodes values against the vocabulary stored in info. A value
// absent from the vocabulary is a LookupError.
func (c *CategoricalTransformer) Transform(values []string, info *ColumnDescriptor) (*mat.Dense, error) {
	const op = "CategoricalTransformer.Transform"
	if len(values) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if info == nil || info.Kind != KindCategory {
		return nil, errors.NewSchemaError(op, -1, "descriptor is not a category column")
	}
	if err := info.Validate(-1); err != nil {
		return nil, err
	}

	index := make(map[string]int, info.N)
	for i, v := range info.Mapping {
		index[v] = i
	}

	block := mat.NewDense(len(values), 1, nil)
	for i, v := range values {
		idx, ok := index[v]
		if !ok {
			return nil, errors.NewValueLookupError(op, -1, v, info.N)
		}
		block.Set(i, 0, float64(idx))
	}
	return block, nil
}

// ReverseTransform maps an encoded (n, 1) block of indices back to the
// original values. Indices are rounded to the nearest integer; anything
// outside [0, n) is a LookupError, never clamped.
func (c *CategoricalTransformer) ReverseTransform(X mat.Matrix, info *ColumnDescriptor) ([]string, error) {
	const op = "CategoricalTransformer.ReverseTransform"
	if info == nil || info.Kind != KindCategory {
		return nil, errors.NewSchemaError(op, -1, "descriptor is not a category column")
	}
	if err := info.Validate(-1); err != nil {
		return nil, err
	}
	if err := checkSingleColumn(op, X); err != nil {
		return nil, err
	}

	r, _ := X.Dims()
	out := make([]string, r)
	for i := 0; i < r; i++ {
		idx := int(math.Round(X.At(i, 0)))
		if idx < 0 || idx >= info.N {
			return nil, errors.NewIndexLookupError(op, -1, idx, info.N)
		}
		out[i] = info.Mapping[idx]
	}
	return out, nil
}
