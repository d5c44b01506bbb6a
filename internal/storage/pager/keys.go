package pager

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// ───────────────────────────────────────────────────────────────────────────
// Key encoding and ordering
// ───────────────────────────────────────────────────────────────────────────
//
// Keys travel through the B+Tree in serialized form; a cell payload begins
// with the key bytes and ordering is defined per column type:
//
//   Int   — 8 bytes LE, compared as int64 in natural order
//   Real  — 8 bytes LE (IEEE-754 bits), compared as float64
//   Text  — u16 LE length prefix + bytes, compared lexicographically
//   Blob  — same as Text
//   Bool  — 1 byte; forbidden as a primary key
//
// The serialized length of a key is implied by its type, which lets a row
// payload carry the key with no extra framing.

// DataType identifies a column's value type.
type DataType uint8

const (
	TypeInt DataType = iota + 1
	TypeReal
	TypeText
	TypeBlob
	TypeBool
)

// String returns a human-readable label for the data type.
func (dt DataType) String() string {
	switch dt {
	case TypeInt:
		return "int"
	case TypeReal:
		return "real"
	case TypeText:
		return "text"
	case TypeBlob:
		return "blob"
	case TypeBool:
		return "bool"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(dt))
	}
}

// validKeyType reports whether the type may serve as a primary key.
func validKeyType(dt DataType) bool {
	switch dt {
	case TypeInt, TypeReal, TypeText, TypeBlob:
		return true
	default:
		return false
	}
}

// keyLen returns the serialized key length at the start of payload, or an
// error if payload is too short to hold one.
func keyLen(dt DataType, payload []byte) (int, error) {
	switch dt {
	case TypeInt, TypeReal:
		if len(payload) < 8 {
			return 0, fmt.Errorf("%w: %d-byte payload for %s key", ErrCorruptedPage, len(payload), dt)
		}
		return 8, nil
	case TypeText, TypeBlob:
		if len(payload) < 2 {
			return 0, fmt.Errorf("%w: missing length prefix for %s key", ErrCorruptedPage, dt)
		}
		n := 2 + int(binary.LittleEndian.Uint16(payload))
		if len(payload) < n {
			return 0, fmt.Errorf("%w: %s key of %d bytes in %d-byte payload", ErrCorruptedPage, dt, n, len(payload))
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: type %s cannot key a tree", ErrCorruptedPage, dt)
	}
}

// keyBytes extracts the serialized key prefix of a cell payload.
func keyBytes(dt DataType, payload []byte) ([]byte, error) {
	n, err := keyLen(dt, payload)
	if err != nil {
		return nil, err
	}
	return payload[:n], nil
}

// compareKeys orders two serialized keys of the same type. Both arguments
// may be full payloads; only the key prefix participates.
func compareKeys(dt DataType, a, b []byte) int {
	switch dt {
	case TypeInt:
		ai := int64(binary.LittleEndian.Uint64(a))
		bi := int64(binary.LittleEndian.Uint64(b))
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case TypeReal:
		af := math.Float64frombits(binary.LittleEndian.Uint64(a))
		bf := math.Float64frombits(binary.LittleEndian.Uint64(b))
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	default: // Text, Blob
		al := int(binary.LittleEndian.Uint16(a))
		bl := int(binary.LittleEndian.Uint16(b))
		return bytes.Compare(a[2:2+al], b[2:2+bl])
	}
}

// EncodeKey serializes a key value for descent and storage.
func EncodeKey(dt DataType, v Value) ([]byte, error) {
	if !validKeyType(dt) {
		return nil, fmt.Errorf("%s primary keys are not supported", dt)
	}
	key, err := encodeValue(dt, v)
	if err != nil {
		return nil, err
	}
	if len(key) > MaxKeySize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrKeyTooLong, len(key), MaxKeySize)
	}
	return key, nil
}
