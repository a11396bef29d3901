package preprocessing

import (
	"encoding/json"
	"strconv"

	"github.com/synthdata/tabprep/pkg/errors"
)

// ColumnKind tags a column descriptor variant.
type ColumnKind int

const (
	// KindValue marks a continuous column encoded by mode decomposition.
	KindValue ColumnKind = iota
	// KindCategory marks a categorical column encoded against a vocabulary.
	KindCategory
)

// Wire tags for the metadata JSON form.
const (
	typeValue    = "value"
	typeCategory = "category"
)

// String returns the wire tag for the kind.
func (k ColumnKind) String() string {
	switch k {
	case KindValue:
		return typeValue
	case KindCategory:
		return typeCategory
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ColumnDescriptor is the per-column metadata needed to invert that column's
// transform. It is a tagged variant: value columns carry Means/Stds, category
// columns carry Mapping. N is the number of modes or vocabulary size.
type ColumnDescriptor struct {
	Kind    ColumnKind
	Means   []float64
	Stds    []float64
	Mapping []string
	N       int
}

// Width returns the number of numeric sub-columns the column occupies in a
// transformed block: 1+N for a value column (scalar plus responsibilities),
// 1 for a category column.
func (d *ColumnDescriptor) Width() int {
	if d.Kind == KindValue {
		return 1 + d.N
	}
	return 1
}

// Validate checks the descriptor's internal invariants. column is the
// position reported in errors.
func (d *ColumnDescriptor) Validate(column int) error {
	const op = "ColumnDescriptor.Validate"
	switch d.Kind {
	case KindValue:
		if d.N <= 0 {
			return errors.NewSchemaError(op, column, "value column must have n > 0")
		}
		if len(d.Means) != d.N || len(d.Stds) != d.N {
			return errors.NewSchemaError(op, column,
				"means/stds length must equal n ("+strconv.Itoa(d.N)+"), got "+
					strconv.Itoa(len(d.Means))+"/"+strconv.Itoa(len(d.Stds)))
		}
		if len(d.Mapping) != 0 {
			return errors.NewSchemaError(op, column, "value column must not carry a mapping")
		}
		return nil
	case KindCategory:
		if d.N <= 0 || len(d.Mapping) != d.N {
			return errors.NewSchemaError(op, column,
				"mapping length must equal n ("+strconv.Itoa(d.N)+"), got "+strconv.Itoa(len(d.Mapping)))
		}
		seen := make(map[string]struct{}, d.N)
		for _, v := range d.Mapping {
			if _, dup := seen[v]; dup {
				return errors.NewSchemaError(op, column, "mapping entries must be distinct, duplicate "+strconv.Quote(v))
			}
			seen[v] = struct{}{}
		}
		if len(d.Means) != 0 || len(d.Stds) != 0 {
			return errors.NewSchemaError(op, column, "category column must not carry means/stds")
		}
		return nil
	default:
		return errors.NewSchemaError(op, column, "unsupported column type "+d.Kind.String())
	}
}

// columnDescriptorJSON is the wire form of a descriptor.
type columnDescriptorJSON struct {
	Type    string    `json:"type"`
	Means   []float64 `json:"means,omitempty"`
	Stds    []float64 `json:"stds,omitempty"`
	Mapping []string  `json:"mapping,omitempty"`
	N       int       `json:"n"`
}

// MarshalJSON encodes the descriptor in its tagged wire form.
func (d ColumnDescriptor) MarshalJSON() ([]byte, error) {
	aux := columnDescriptorJSON{N: d.N}
	switch d.Kind {
	case KindValue:
		aux.Type = typeValue
		aux.Means = d.Means
		aux.Stds = d.Stds
	case KindCategory:
		aux.Type = typeCategory
		aux.Mapping = d.Mapping
	default:
		return nil, errors.NewSchemaError("ColumnDescriptor.MarshalJSON", -1,
			"unsupported column type "+d.Kind.String())
	}
	return json.Marshal(aux)
}

// UnmarshalJSON decodes the tagged wire form. An unknown type tag is a
// SchemaError.
func (d *ColumnDescriptor) UnmarshalJSON(data []byte) error {
	var aux columnDescriptorJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return errors.Wrap(err, "ColumnDescriptor.UnmarshalJSON")
	}
	switch aux.Type {
	case typeValue:
		*d = ColumnDescriptor{Kind: KindValue, Means: aux.Means, Stds: aux.Stds, N: aux.N}
	case typeCategory:
		*d = ColumnDescriptor{Kind: KindCategory, Mapping: aux.Mapping, N: aux.N}
	default:
		return errors.NewSchemaError("ColumnDescriptor.UnmarshalJSON", -1,
			"unsupported column type "+strconv.Quote(aux.Type))
	}
	return nil
}

// Metadata describes a fitted table layout: one descriptor per column, in
// original column order. It is created once by a successful fit (or injected
// directly) and treated as immutable afterwards.
type Metadata struct {
	NumFeatures int                `json:"num_features"`
	Details     []ColumnDescriptor `json:"details"`
}

// Validate checks the table-level and per-column invariants.
func (m *Metadata) Validate() error {
	if m == nil {
		return errors.NewSchemaError("Metadata.Validate", -1, "nil metadata")
	}
	if m.NumFeatures != len(m.Details) {
		return errors.NewSchemaError("Metadata.Validate", -1,
			"num_features ("+strconv.Itoa(m.NumFeatures)+") does not match details length ("+strconv.Itoa(len(m.Details))+")")
	}
	for i := range m.Details {
		if err := m.Details[i].Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// ColumnKey returns the deterministic, position-derived key a column's
// transformed block is stored under.
func ColumnKey(column int) string {
	out := strconv.Itoa(column)
	if column < 10 {
		out = "0" + out
	}
	return "f" + out
}
