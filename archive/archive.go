// Package archive persists a transformed table together with its metadata in
// a single binary container, filling the role an npz bundle plays in the
// Python ecosystem. The layout is a magic/version header, a zstd-compressed
// JSON metadata section, then one section per column block in key order.
// Every section carries an xxhash64 checksum of its uncompressed payload so
// corruption is detected at read time instead of surfacing as garbage
// training data.
package archive

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/synthdata/tabprep/pkg/errors"
	"github.com/synthdata/tabprep/preprocessing"
)

const (
	version = 1

	// maxSectionSize bounds a single decompressed section, so a corrupted
	// length field cannot trigger a huge allocation.
	maxSectionSize = 1 << 31
)

var magic = [4]byte{'T', 'B', 'P', 'K'}

// Write serializes md and its transformed blocks to w. Blocks are written in
// column order, so output for identical input is byte-for-byte identical.
func Write(w io.Writer, md *preprocessing.Metadata, transformed preprocessing.TransformedTable) error {
	const op = "archive.Write"
	if err := md.Validate(); err != nil {
		return err
	}
	if len(transformed) != md.NumFeatures {
		return errors.NewSchemaError(op, -1,
			"transformed table has "+strconv.Itoa(len(transformed))+" blocks, metadata describes "+strconv.Itoa(md.NumFeatures))
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return errors.Wrap(err, op)
	}
	defer enc.Close()

	if _, err := w.Write(magic[:]); err != nil {
		return errors.Wrap(err, op+": header")
	}
	if _, err := w.Write([]byte{version}); err != nil {
		return errors.Wrap(err, op+": header")
	}

	rawMeta, err := json.Marshal(md)
	if err != nil {
		return errors.Wrap(err, op+": metadata")
	}
	if err := writeSection(w, enc, rawMeta); err != nil {
		return errors.Wrap(err, op+": metadata")
	}

	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(md.NumFeatures))
	if _, err := w.Write(count[:]); err != nil {
		return errors.Wrap(err, op)
	}

	for i := 0; i < md.NumFeatures; i++ {
		key := preprocessing.ColumnKey(i)
		block, ok := transformed[key]
		if !ok {
			return errors.NewSchemaError(op, i, "missing block "+strconv.Quote(key))
		}
		if err := writeBlock(w, enc, key, block); err != nil {
			return errors.Wrapf(err, "%s: block %s", op, key)
		}
	}
	return nil
}

// Read deserializes a container written by Write. Bad magic, an unsupported
// version, a checksum mismatch or truncation is an error naming the
// offending section; block shapes are validated against the metadata.
func Read(r io.Reader) (*preprocessing.Metadata, preprocessing.TransformedTable, error) {
	const op = "archive.Read"

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, op)
	}
	defer dec.Close()

	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, nil, errors.Wrap(err, op+": header")
	}
	if [4]byte(header[:4]) != magic {
		return nil, nil, errors.Newf("%s: bad magic %q", op, header[:4])
	}
	if header[4] != version {
		return nil, nil, errors.Newf("%s: unsupported version %d", op, header[4])
	}

	rawMeta, err := readSection(r, dec)
	if err != nil {
		return nil, nil, errors.Wrap(err, op+": metadata")
	}
	md := &preprocessing.Metadata{}
	if err := json.Unmarshal(rawMeta, md); err != nil {
		return nil, nil, errors.Wrap(err, op+": metadata")
	}
	if err := md.Validate(); err != nil {
		return nil, nil, err
	}

	var count [4]byte
	if _, err := io.ReadFull(r, count[:]); err != nil {
		return nil, nil, errors.Wrap(err, op)
	}
	numBlocks := int(binary.LittleEndian.Uint32(count[:]))
	if numBlocks != md.NumFeatures {
		return nil, nil, errors.Newf("%s: container has %d blocks, metadata describes %d", op, numBlocks, md.NumFeatures)
	}

	transformed := make(preprocessing.TransformedTable, numBlocks)
	rows := -1
	for i := 0; i < numBlocks; i++ {
		key, block, err := readBlock(r, dec)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s: block %d", op, i)
		}
		if key != preprocessing.ColumnKey(i) {
			return nil, nil, errors.Newf("%s: block %d keyed %q, expected %q", op, i, key, preprocessing.ColumnKey(i))
		}
		r0, c0 := block.Dims()
		if c0 != md.Details[i].Width() {
			return nil, nil, errors.NewDimensionError(op+": block "+key, md.Details[i].Width(), c0, 1)
		}
		if rows < 0 {
			rows = r0
		} else if r0 != rows {
			return nil, nil, errors.NewDimensionError(op+": block "+key, rows, r0, 0)
		}
		transformed[key] = block
	}
	return md, transformed, nil
}

// WriteFile writes the container to path.
func WriteFile(path string, md *preprocessing.Metadata, transformed preprocessing.TransformedTable) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "archive.WriteFile")
	}
	if err := Write(f, md, transformed); err != nil {
		f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "archive.WriteFile")
}

// ReadFile reads a container from path.
func ReadFile(path string) (*preprocessing.Metadata, preprocessing.TransformedTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "archive.ReadFile")
	}
	defer f.Close()
	return Read(f)
}

// writeSection writes a length-prefixed, checksummed, zstd-compressed
// payload: rawLen, compLen (uint32 LE), xxhash64 of raw, compressed bytes.
func writeSection(w io.Writer, enc *zstd.Encoder, raw []byte) error {
	comp := enc.EncodeAll(raw, nil)

	var head [16]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(len(raw)))
	binary.LittleEndian.PutUint32(head[4:8], uint32(len(comp)))
	binary.LittleEndian.PutUint64(head[8:16], xxhash.Sum64(raw))
	if _, err := w.Write(head[:]); err != nil {
		return err
	}
	_, err := w.Write(comp)
	return err
}

func readSection(r io.Reader, dec *zstd.Decoder) ([]byte, error) {
	var head [16]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	rawLen := binary.LittleEndian.Uint32(head[0:4])
	compLen := binary.LittleEndian.Uint32(head[4:8])
	sum := binary.LittleEndian.Uint64(head[8:16])
	if rawLen > maxSectionSize || compLen > maxSectionSize {
		return nil, errors.Newf("section length out of range (raw %d, compressed %d)", rawLen, compLen)
	}

	comp := make([]byte, compLen)
	if _, err := io.ReadFull(r, comp); err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(comp, make([]byte, 0, rawLen))
	if err != nil {
		return nil, err
	}
	if uint32(len(raw)) != rawLen {
		return nil, errors.Newf("section decompressed to %d bytes, expected %d", len(raw), rawLen)
	}
	if got := xxhash.Sum64(raw); got != sum {
		return nil, errors.Newf("checksum mismatch: got %016x, expected %016x", got, sum)
	}
	return raw, nil
}

func writeBlock(w io.Writer, enc *zstd.Encoder, key string, block *mat.Dense) error {
	var keyLen [2]byte
	binary.LittleEndian.PutUint16(keyLen[:], uint16(len(key)))
	if _, err := w.Write(keyLen[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, key); err != nil {
		return err
	}

	r, c := block.Dims()
	var dims [8]byte
	binary.LittleEndian.PutUint32(dims[0:4], uint32(r))
	binary.LittleEndian.PutUint32(dims[4:8], uint32(c))
	if _, err := w.Write(dims[:]); err != nil {
		return err
	}

	raw := make([]byte, r*c*8)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			binary.LittleEndian.PutUint64(raw[(i*c+j)*8:], math.Float64bits(block.At(i, j)))
		}
	}
	return writeSection(w, enc, raw)
}

func readBlock(r io.Reader, dec *zstd.Decoder) (string, *mat.Dense, error) {
	var keyLen [2]byte
	if _, err := io.ReadFull(r, keyLen[:]); err != nil {
		return "", nil, err
	}
	keyBuf := make([]byte, binary.LittleEndian.Uint16(keyLen[:]))
	if _, err := io.ReadFull(r, keyBuf); err != nil {
		return "", nil, err
	}

	var dims [8]byte
	if _, err := io.ReadFull(r, dims[:]); err != nil {
		return "", nil, err
	}
	rows := int(binary.LittleEndian.Uint32(dims[0:4]))
	cols := int(binary.LittleEndian.Uint32(dims[4:8]))

	raw, err := readSection(r, dec)
	if err != nil {
		return "", nil, err
	}
	if len(raw) != rows*cols*8 {
		return "", nil, errors.Newf("block payload is %d bytes, expected %d for %dx%d", len(raw), rows*cols*8, rows, cols)
	}

	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return string(keyBuf), mat.NewDense(rows, cols, data), nil
}
