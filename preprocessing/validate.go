package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/synthdata/tabprep/pkg/errors"
)

// checkSingleColumn validates that X is a non-empty (n, 1) matrix. It is the
// explicit precondition check invoked at the start of every public transform
// entry point that operates on one column.
func checkSingleColumn(op string, X mat.Matrix) error {
	if X == nil {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	r, c := X.Dims()
	if r == 0 {
		return errors.Wrap(errors.ErrEmptyData, op)
	}
	if c != 1 {
		return errors.NewDimensionError(op, 1, c, 1)
	}
	return nil
}

// columnData flattens a validated (n, 1) matrix into a slice.
func columnData(X mat.Matrix) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = X.At(i, 0)
	}
	return out
}
