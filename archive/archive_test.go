package archive

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/synthdata/tabprep/preprocessing"
)

func fixtures() (*preprocessing.Metadata, preprocessing.TransformedTable) {
	md := &preprocessing.Metadata{
		NumFeatures: 2,
		Details: []preprocessing.ColumnDescriptor{
			{Kind: preprocessing.KindValue, Means: []float64{1.5, -2.25}, Stds: []float64{0.5, 3.0}, N: 2},
			{Kind: preprocessing.KindCategory, Mapping: []string{"no", "yes"}, N: 2},
		},
	}
	tt := preprocessing.TransformedTable{
		preprocessing.ColumnKey(0): mat.NewDense(3, 3, []float64{
			0.25, 0.9, 0.1,
			-0.5, 0.2, 0.8,
			0.99, 0.6, 0.4,
		}),
		preprocessing.ColumnKey(1): mat.NewDense(3, 1, []float64{1, 0, 1}),
	}
	return md, tt
}

func TestArchiveRoundTrip(t *testing.T) {
	md, tt := fixtures()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, md, tt))

	gotMD, gotTT, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, md, gotMD)
	require.Len(t, gotTT, len(tt))
	for key, block := range tt {
		got, ok := gotTT[key]
		require.True(t, ok, "missing %s", key)
		assert.True(t, mat.Equal(block, got), "block %s differs", key)
	}
}

func TestArchiveDeterministicOutput(t *testing.T) {
	md, tt := fixtures()

	var a, b bytes.Buffer
	require.NoError(t, Write(&a, md, tt))
	require.NoError(t, Write(&b, md, tt))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestArchiveFileRoundTrip(t *testing.T) {
	md, tt := fixtures()
	path := filepath.Join(t.TempDir(), "table.tbpk")

	require.NoError(t, WriteFile(path, md, tt))
	gotMD, gotTT, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, md, gotMD)
	assert.Len(t, gotTT, 2)
}

func TestArchiveBadMagic(t *testing.T) {
	md, tt := fixtures()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, md, tt))

	data := buf.Bytes()
	data[0] = 'X'
	_, _, err := Read(bytes.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic")
}

func TestArchiveUnsupportedVersion(t *testing.T) {
	md, tt := fixtures()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, md, tt))

	data := buf.Bytes()
	data[4] = 0xEE
	_, _, err := Read(bytes.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestArchiveCorruptPayload(t *testing.T) {
	md, tt := fixtures()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, md, tt))

	// Flip a byte near the end: inside the last block's compressed payload.
	data := buf.Bytes()
	data[len(data)-3] ^= 0xFF
	_, _, err := Read(bytes.NewReader(data))
	require.Error(t, err)
}

func TestArchiveTruncated(t *testing.T) {
	md, tt := fixtures()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, md, tt))

	for _, cut := range []int{3, 5, 20, buf.Len() - 4} {
		_, _, err := Read(bytes.NewReader(buf.Bytes()[:cut]))
		require.Error(t, err, "cut at %d", cut)
	}
}

func TestArchiveMissingBlock(t *testing.T) {
	md, tt := fixtures()
	delete(tt, preprocessing.ColumnKey(1))

	var buf bytes.Buffer
	require.Error(t, Write(&buf, md, tt))
}

func TestArchiveInvalidMetadata(t *testing.T) {
	md, tt := fixtures()
	md.NumFeatures = 9

	var buf bytes.Buffer
	require.Error(t, Write(&buf, md, tt))
}
