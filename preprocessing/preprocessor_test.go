package preprocessing

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synthdata/tabprep/pkg/errors"
)

// mixedTable builds a table with a bimodal continuous column 0 (narrow
// uniform clusters at 0 and 100, so no scalar clips) and two categorical
// columns.
func mixedTable(rows int) *Table {
	records := make([][]string, rows)
	statuses := []string{"active", "closed", "pending"}
	grades := []string{"A", "B"}
	for i := 0; i < rows; i++ {
		center := 0.0
		if i%2 == 1 {
			center = 100.0
		}
		offset := float64(i%50)/50.0 - 0.5
		records[i] = []string{
			strconv.FormatFloat(center+offset, 'g', -1, 64),
			statuses[i%3],
			grades[i%2],
		}
	}
	t, err := NewTable(records)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestPreprocessor() *Preprocessor {
	return NewPreprocessor([]int{0}, WithModes(2), WithSeed(11))
}

func TestPreprocessorFitTransform(t *testing.T) {
	table := mixedTable(200)
	prep := newTestPreprocessor()
	require.False(t, prep.IsFitted())

	transformed, err := prep.FitTransform(table)
	require.NoError(t, err)
	require.True(t, prep.IsFitted())

	md := prep.Metadata()
	require.NotNil(t, md)
	require.NoError(t, md.Validate())
	require.Equal(t, 3, md.NumFeatures)
	assert.Equal(t, KindValue, md.Details[0].Kind)
	assert.Equal(t, KindCategory, md.Details[1].Kind)
	assert.Equal(t, KindCategory, md.Details[2].Kind)

	require.Len(t, transformed, 3)
	for i := 0; i < 3; i++ {
		block, ok := transformed[ColumnKey(i)]
		require.True(t, ok, "missing %s", ColumnKey(i))
		r, c := block.Dims()
		assert.Equal(t, 200, r)
		assert.Equal(t, md.Details[i].Width(), c)
	}
}

func TestPreprocessorRoundTrip(t *testing.T) {
	table := mixedTable(200)
	prep := newTestPreprocessor()

	transformed, err := prep.FitTransform(table)
	require.NoError(t, err)

	recovered, err := prep.ReverseTransform(transformed)
	require.NoError(t, err)
	require.Equal(t, table.NumRows(), recovered.NumRows())
	require.Equal(t, table.NumCols(), recovered.NumCols())

	for i := 0; i < table.NumRows(); i++ {
		// Continuous: recovered within tolerance of the original.
		want, err := strconv.ParseFloat(table.Cell(i, 0), 64)
		require.NoError(t, err)
		got, err := strconv.ParseFloat(recovered.Cell(i, 0), 64)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-8, "row %d", i)

		// Categorical: exact.
		assert.Equal(t, table.Cell(i, 1), recovered.Cell(i, 1))
		assert.Equal(t, table.Cell(i, 2), recovered.Cell(i, 2))
	}
}

func TestPreprocessorTransformReusesParameters(t *testing.T) {
	prep := newTestPreprocessor()
	_, err := prep.FitTransform(mixedTable(200))
	require.NoError(t, err)

	md := prep.Metadata()
	meansBefore := append([]float64(nil), md.Details[0].Means...)

	// A second table with the same schema but different rows.
	other := mixedTable(80)
	transformed, err := prep.Transform(other)
	require.NoError(t, err)

	// Transform must not re-fit: metadata identical afterwards.
	assert.Equal(t, meansBefore, prep.Metadata().Details[0].Means)

	// And the encoding inverts against the stored parameters.
	recovered, err := prep.ReverseTransform(transformed)
	require.NoError(t, err)
	for i := 0; i < other.NumRows(); i++ {
		want, _ := strconv.ParseFloat(other.Cell(i, 0), 64)
		got, _ := strconv.ParseFloat(recovered.Cell(i, 0), 64)
		assert.InDelta(t, want, got, 1e-8)
		assert.Equal(t, other.Cell(i, 1), recovered.Cell(i, 1))
	}
}

func TestPreprocessorStateErrors(t *testing.T) {
	prep := newTestPreprocessor()

	_, err := prep.Transform(mixedTable(10))
	require.Error(t, err)
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	_, err = prep.ReverseTransform(TransformedTable{})
	require.Error(t, err)
	assert.True(t, errors.As(err, &notFitted))
}

func TestPreprocessorSchemaMismatch(t *testing.T) {
	prep := newTestPreprocessor()
	_, err := prep.FitTransform(mixedTable(200))
	require.NoError(t, err)

	// Fewer columns than the fitted layout.
	narrow, err := NewTable([][]string{{"1.5", "active"}, {"2.5", "closed"}})
	require.NoError(t, err)

	_, err = prep.Transform(narrow)
	require.Error(t, err)
	var schema *errors.SchemaError
	assert.True(t, errors.As(err, &schema))

	// Reverse with a missing block.
	transformed, err := prep.Transform(mixedTable(20))
	require.NoError(t, err)
	delete(transformed, ColumnKey(2))
	_, err = prep.ReverseTransform(transformed)
	require.Error(t, err)
	assert.True(t, errors.As(err, &schema))
}

func TestPreprocessorFitAtomicity(t *testing.T) {
	prep := newTestPreprocessor()
	require.NoError(t, prep.Fit(mixedTable(200)))
	before := prep.Metadata()

	// Column 0 is declared continuous but holds a non-numeric cell: the fit
	// fails and the previously fitted metadata stays in place.
	bad, err := NewTable([][]string{
		{"1.5", "active", "A"},
		{"oops", "closed", "B"},
	})
	require.NoError(t, err)

	require.Error(t, prep.Fit(bad))
	assert.Same(t, before, prep.Metadata())
	assert.True(t, prep.IsFitted())
}

func TestPreprocessorUnfitMetadataAbsent(t *testing.T) {
	prep := newTestPreprocessor()
	assert.Nil(t, prep.Metadata())
}

func TestNewFittedPreprocessor(t *testing.T) {
	fitted := newTestPreprocessor()
	transformed, err := fitted.FitTransform(mixedTable(100))
	require.NoError(t, err)

	// Inject the metadata into a fresh instance and reverse with it.
	prep, err := NewFittedPreprocessor(fitted.Metadata())
	require.NoError(t, err)
	require.True(t, prep.IsFitted())

	recovered, err := prep.ReverseTransform(transformed)
	require.NoError(t, err)
	assert.Equal(t, 100, recovered.NumRows())
}

func TestNewFittedPreprocessorRejectsInvalid(t *testing.T) {
	_, err := NewFittedPreprocessor(&Metadata{NumFeatures: 1})
	require.Error(t, err)
	var schema *errors.SchemaError
	assert.True(t, errors.As(err, &schema))
}

func TestPreprocessorEmptyTable(t *testing.T) {
	prep := newTestPreprocessor()
	_, err := prep.FitTransform(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}
