package preprocessing

import (
	"strconv"
	"strings"

	"github.com/synthdata/tabprep/pkg/errors"
)

// Table is row-major tabular data with positionally addressed columns. Cells
// are held in canonical string form; continuous columns are parsed on demand
// with FloatColumn.
type Table struct {
	rows [][]string
	cols int
}

// NewTable creates a table from row-major records. All rows must have the
// same length.
func NewTable(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewTable")
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewTable")
	}
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.NewDimensionError("NewTable: row "+strconv.Itoa(i), cols, len(row), 1)
		}
	}
	return &Table{rows: rows, cols: cols}, nil
}

// NewTableFromColumns creates a table from column slices. All columns must
// have the same length.
func NewTableFromColumns(columns [][]string) (*Table, error) {
	if len(columns) == 0 || len(columns[0]) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "NewTableFromColumns")
	}
	n := len(columns[0])
	for j, col := range columns {
		if len(col) != n {
			return nil, errors.NewDimensionError("NewTableFromColumns: column "+strconv.Itoa(j), n, len(col), 0)
		}
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(columns))
		for j := range columns {
			row[j] = columns[j][i]
		}
		rows[i] = row
	}
	return &Table{rows: rows, cols: len(columns)}, nil
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return t.cols }

// Cell returns the cell at row i, column j.
func (t *Table) Cell(i, j int) string { return t.rows[i][j] }

// Records returns the underlying row-major records. The result must not be
// modified.
func (t *Table) Records() [][]string { return t.rows }

// Column returns a copy of column j.
func (t *Table) Column(j int) ([]string, error) {
	if j < 0 || j >= t.cols {
		return nil, errors.NewDimensionError("Table.Column", t.cols, j, 1)
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[j]
	}
	return out, nil
}

// FloatColumn parses column j as float64 values. A cell that cannot be
// parsed is a ValueError naming the offending row and column.
func (t *Table) FloatColumn(j int) ([]float64, error) {
	if j < 0 || j >= t.cols {
		return nil, errors.NewDimensionError("Table.FloatColumn", t.cols, j, 1)
	}
	out := make([]float64, len(t.rows))
	for i, row := range t.rows {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
		if err != nil {
			return nil, errors.NewValueError("Table.FloatColumn",
				"column "+strconv.Itoa(j)+", row "+strconv.Itoa(i)+": cannot parse "+strconv.Quote(row[j])+" as number")
		}
		out[i] = v
	}
	return out, nil
}
