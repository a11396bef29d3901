package dataset

import (
	"github.com/synthdata/tabprep/archive"
	"github.com/synthdata/tabprep/dataflow"
	"github.com/synthdata/tabprep/preprocessing"
)

// Dataset bundles everything a training consumer needs: the fitted
// preprocessor (for reverse-transforming generated output), its metadata,
// the transformed blocks, and a row-iterable sample source over them.
type Dataset struct {
	Preprocessor *preprocessing.Preprocessor
	Metadata     *preprocessing.Metadata
	Transformed  preprocessing.TransformedTable
	Flow         *dataflow.DataFlow
}

// LoadData reads a headerless CSV, fits a preprocessor on it with the given
// continuous-column declaration, and wraps the result as a Dataset. flowOpts
// configure the sample source (shuffling defaults to on).
func LoadData(path string, continuousColumns []int, prepOpts []preprocessing.Option, flowOpts ...dataflow.Option) (*Dataset, error) {
	t, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}

	prep := preprocessing.NewPreprocessor(continuousColumns, prepOpts...)
	transformed, err := prep.FitTransform(t)
	if err != nil {
		return nil, err
	}

	flow, err := dataflow.New(transformed, prep.Metadata(), flowOpts...)
	if err != nil {
		return nil, err
	}

	return &Dataset{
		Preprocessor: prep,
		Metadata:     prep.Metadata(),
		Transformed:  transformed,
		Flow:         flow,
	}, nil
}

// EncodeCSV fits a preprocessor on the CSV at csvPath and writes the encoded
// blocks plus metadata to a container at archivePath.
func EncodeCSV(csvPath, archivePath string, continuousColumns []int, opts ...preprocessing.Option) error {
	t, err := ReadCSV(csvPath)
	if err != nil {
		return err
	}

	prep := preprocessing.NewPreprocessor(continuousColumns, opts...)
	transformed, err := prep.FitTransform(t)
	if err != nil {
		return err
	}
	return archive.WriteFile(archivePath, prep.Metadata(), transformed)
}

// DecodeCSV reads an encoded container and writes the reverse-transformed
// table to csvPath.
func DecodeCSV(archivePath, csvPath string) error {
	md, transformed, err := archive.ReadFile(archivePath)
	if err != nil {
		return err
	}

	prep, err := preprocessing.NewFittedPreprocessor(md)
	if err != nil {
		return err
	}
	t, err := prep.ReverseTransform(transformed)
	if err != nil {
		return err
	}
	return WriteCSV(csvPath, t)
}
