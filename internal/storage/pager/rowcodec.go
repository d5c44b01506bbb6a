package pager

import (
	"encoding/binary"
	"fmt"
	"math"
)

// ───────────────────────────────────────────────────────────────────────────
// Row codec
// ───────────────────────────────────────────────────────────────────────────
//
// A leaf cell payload is the row itself: the primary key's serialized bytes
// followed by the remaining column values in column order. Each value is
// encoded exactly like a key of its type (fixed width for int/real/bool,
// u16 length prefix for text/blob), so the payload needs no per-column
// framing — column types alone describe the layout.

// Value is one typed column value.
type Value struct {
	Type DataType
	Int  int64
	Real float64
	Text string
	Blob []byte
	Bool bool
}

// IntValue, RealValue, TextValue, BlobValue and BoolValue build Values.
func IntValue(v int64) Value    { return Value{Type: TypeInt, Int: v} }
func RealValue(v float64) Value { return Value{Type: TypeReal, Real: v} }
func TextValue(v string) Value  { return Value{Type: TypeText, Text: v} }
func BlobValue(v []byte) Value  { return Value{Type: TypeBlob, Blob: v} }
func BoolValue(v bool) Value    { return Value{Type: TypeBool, Bool: v} }

// encodeValue appends nothing: it returns the serialized form of v as dt.
func encodeValue(dt DataType, v Value) ([]byte, error) {
	if v.Type != dt {
		return nil, fmt.Errorf("value of type %s where %s expected", v.Type, dt)
	}
	switch dt {
	case TypeInt:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v.Int))
		return b[:], nil
	case TypeReal:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.Real))
		return b[:], nil
	case TypeText:
		if len(v.Text) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: text of %d bytes", ErrRowTooBig, len(v.Text))
		}
		b := make([]byte, 2+len(v.Text))
		binary.LittleEndian.PutUint16(b, uint16(len(v.Text)))
		copy(b[2:], v.Text)
		return b, nil
	case TypeBlob:
		if len(v.Blob) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: blob of %d bytes", ErrRowTooBig, len(v.Blob))
		}
		b := make([]byte, 2+len(v.Blob))
		binary.LittleEndian.PutUint16(b, uint16(len(v.Blob)))
		copy(b[2:], v.Blob)
		return b, nil
	case TypeBool:
		if v.Bool {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	default:
		return nil, fmt.Errorf("unknown data type %d", uint8(dt))
	}
}

// decodeValue reads one value of type dt from data, returning it and the
// number of bytes consumed.
func decodeValue(dt DataType, data []byte) (Value, int, error) {
	switch dt {
	case TypeInt:
		if len(data) < 8 {
			return Value{}, 0, fmt.Errorf("%w: truncated int value", ErrCorruptedPage)
		}
		return IntValue(int64(binary.LittleEndian.Uint64(data))), 8, nil
	case TypeReal:
		if len(data) < 8 {
			return Value{}, 0, fmt.Errorf("%w: truncated real value", ErrCorruptedPage)
		}
		return RealValue(math.Float64frombits(binary.LittleEndian.Uint64(data))), 8, nil
	case TypeText, TypeBlob:
		if len(data) < 2 {
			return Value{}, 0, fmt.Errorf("%w: truncated %s length", ErrCorruptedPage, dt)
		}
		n := int(binary.LittleEndian.Uint16(data))
		if len(data) < 2+n {
			return Value{}, 0, fmt.Errorf("%w: %s value of %d bytes, %d available", ErrCorruptedPage, dt, n, len(data)-2)
		}
		if dt == TypeText {
			return TextValue(string(data[2 : 2+n])), 2 + n, nil
		}
		blob := make([]byte, n)
		copy(blob, data[2:2+n])
		return BlobValue(blob), 2 + n, nil
	case TypeBool:
		if len(data) < 1 {
			return Value{}, 0, fmt.Errorf("%w: truncated bool value", ErrCorruptedPage)
		}
		return BoolValue(data[0] != 0), 1, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: unknown data type %d", ErrCorruptedPage, uint8(dt))
	}
}

// EncodeRow serializes a full row for a table's column set. The first
// column must be the primary key; its bytes double as the cell's search
// key. The encoded payload is bounded by MaxPayloadSize.
func EncodeRow(cols []ColumnDef, values []Value) ([]byte, error) {
	if len(values) != len(cols) {
		return nil, fmt.Errorf("row has %d values for %d columns", len(values), len(cols))
	}
	var payload []byte
	for i, col := range cols {
		b, err := encodeValue(col.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		payload = append(payload, b...)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrRowTooBig, len(payload), MaxPayloadSize)
	}
	return payload, nil
}

// DecodeRow deserializes a cell payload back into column values.
func DecodeRow(cols []ColumnDef, payload []byte) ([]Value, error) {
	values := make([]Value, len(cols))
	off := 0
	for i, col := range cols {
		v, n, err := decodeValue(col.Type, payload[off:])
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col.Name, err)
		}
		values[i] = v
		off += n
	}
	if off != len(payload) {
		return nil, fmt.Errorf("%w: %d trailing bytes after row", ErrCorruptedPage, len(payload)-off)
	}
	return values, nil
}
