// Package dataset is the file I/O boundary of the pipeline: reading and
// writing headerless CSV tables, splitting them, and the end-to-end
// conveniences that turn a CSV into a training-ready sample source or an
// encoded archive and back.
package dataset

import (
	"encoding/csv"
	"math/rand"
	"os"

	"github.com/synthdata/tabprep/pkg/errors"
	"github.com/synthdata/tabprep/preprocessing"
)

// ReadCSV reads a headerless CSV file into a table.
func ReadCSV(path string) (*preprocessing.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "dataset.ReadCSV")
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "dataset.ReadCSV")
	}
	return preprocessing.NewTable(records)
}

// WriteCSV writes a table to path as headerless CSV.
func WriteCSV(path string, t *preprocessing.Table) error {
	if t == nil {
		return errors.Wrap(errors.ErrEmptyData, "dataset.WriteCSV")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "dataset.WriteCSV")
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(t.Records()); err != nil {
		f.Close()
		return errors.Wrap(err, "dataset.WriteCSV")
	}
	return errors.Wrap(f.Close(), "dataset.WriteCSV")
}

// Split partitions t row-wise into two tables: each row lands in the first
// with probability ratio. The seed makes the partition reproducible.
func Split(t *preprocessing.Table, ratio float64, seed int64) (*preprocessing.Table, *preprocessing.Table, error) {
	if t == nil || t.NumRows() == 0 {
		return nil, nil, errors.Wrap(errors.ErrEmptyData, "dataset.Split")
	}
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, errors.NewValidationError("ratio", "must be in (0, 1)", ratio)
	}

	rng := rand.New(rand.NewSource(seed))
	var first, second [][]string
	for _, row := range t.Records() {
		if rng.Float64() < ratio {
			first = append(first, row)
		} else {
			second = append(second, row)
		}
	}

	a, err := preprocessing.NewTable(first)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataset.Split: first partition is empty")
	}
	b, err := preprocessing.NewTable(second)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dataset.Split: second partition is empty")
	}
	return a, b, nil
}
