package pager

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompareIntKeys(t *testing.T) {
	cases := []struct {
		a, b int64
		want int
	}{
		{1, 2, -1},
		{2, 1, 1},
		{5, 5, 0},
		{-3, 2, -1},
		{-1, -2, 1},
	}
	for _, c := range cases {
		ka, _ := EncodeKey(TypeInt, IntValue(c.a))
		kb, _ := EncodeKey(TypeInt, IntValue(c.b))
		if got := compareKeys(TypeInt, ka, kb); got != c.want {
			t.Errorf("compare(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareRealKeys(t *testing.T) {
	cases := []struct {
		a, b float64
		want int
	}{
		{1.5, 2.5, -1},
		{2.5, 1.5, 1},
		{0.0, 0.0, 0},
		{-7.25, 0.5, -1},
	}
	for _, c := range cases {
		ka, _ := EncodeKey(TypeReal, RealValue(c.a))
		kb, _ := EncodeKey(TypeReal, RealValue(c.b))
		if got := compareKeys(TypeReal, ka, kb); got != c.want {
			t.Errorf("compare(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareTextKeysLexicographic(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"a", "b", -1},
		{"b", "a", 1},
		{"same", "same", 0},
		{"ab", "abc", -1},
		{"", "a", -1},
	}
	for _, c := range cases {
		ka, _ := EncodeKey(TypeText, TextValue(c.a))
		kb, _ := EncodeKey(TypeText, TextValue(c.b))
		if got := compareKeys(TypeText, ka, kb); got != c.want {
			t.Errorf("compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareIgnoresTrailingPayload(t *testing.T) {
	// A cell payload carries the key followed by other columns; only the
	// key prefix participates in ordering.
	cols := []ColumnDef{
		{Name: "pk", Type: TypeText, PrimaryKey: true},
		{Name: "n", Type: TypeInt},
	}
	a, err := EncodeRow(cols, []Value{TextValue("aa"), IntValue(99)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := EncodeRow(cols, []Value{TextValue("ab"), IntValue(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := compareKeys(TypeText, a, b); got != -1 {
		t.Fatalf("compare = %d, want -1", got)
	}
}

func TestKeyBytesExtractsPrefix(t *testing.T) {
	cols := []ColumnDef{
		{Name: "pk", Type: TypeInt, PrimaryKey: true},
		{Name: "data", Type: TypeBlob},
	}
	row, err := EncodeRow(cols, []Value{IntValue(7), BlobValue([]byte("xyz"))})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	kb, err := keyBytes(TypeInt, row)
	if err != nil {
		t.Fatalf("key bytes: %v", err)
	}
	want, _ := EncodeKey(TypeInt, IntValue(7))
	if !bytes.Equal(kb, want) {
		t.Fatal("key prefix mismatch")
	}
}

func TestKeyBytesRejectsTruncation(t *testing.T) {
	if _, err := keyBytes(TypeInt, []byte{1, 2}); !errors.Is(err, ErrCorruptedPage) {
		t.Fatalf("short int: %v, want ErrCorruptedPage", err)
	}
	if _, err := keyBytes(TypeText, []byte{200, 0, 'a'}); !errors.Is(err, ErrCorruptedPage) {
		t.Fatalf("short text: %v, want ErrCorruptedPage", err)
	}
}

func TestBooleanKeysForbidden(t *testing.T) {
	if _, err := EncodeKey(TypeBool, BoolValue(true)); err == nil {
		t.Fatal("bool key must be rejected")
	}
}

func TestEncodeKeyEnforcesMaxSize(t *testing.T) {
	long := make([]byte, MaxKeySize+1)
	if _, err := EncodeKey(TypeBlob, BlobValue(long)); !errors.Is(err, ErrKeyTooLong) {
		t.Fatalf("oversized key: %v, want ErrKeyTooLong", err)
	}
	ok := make([]byte, MaxKeySize-2)
	if _, err := EncodeKey(TypeBlob, BlobValue(ok)); err != nil {
		t.Fatalf("max-size key rejected: %v", err)
	}
}

func TestRowRoundTrip(t *testing.T) {
	cols := []ColumnDef{
		{Name: "pk", Type: TypeText, PrimaryKey: true},
		{Name: "count", Type: TypeInt},
		{Name: "ratio", Type: TypeReal},
		{Name: "active", Type: TypeBool},
		{Name: "raw", Type: TypeBlob},
	}
	in := []Value{
		TextValue("device-1"),
		IntValue(-42),
		RealValue(3.25),
		BoolValue(true),
		BlobValue([]byte{0, 1, 2}),
	}
	payload, err := EncodeRow(cols, in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeRow(cols, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out[0].Text != "device-1" || out[1].Int != -42 || out[2].Real != 3.25 || !out[3].Bool || !bytes.Equal(out[4].Blob, []byte{0, 1, 2}) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestDecodeRowRejectsTrailingBytes(t *testing.T) {
	cols := []ColumnDef{{Name: "pk", Type: TypeInt, PrimaryKey: true}}
	payload, err := EncodeRow(cols, []Value{IntValue(1)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRow(cols, append(payload, 0xff)); !errors.Is(err, ErrCorruptedPage) {
		t.Fatalf("trailing bytes: %v, want ErrCorruptedPage", err)
	}
}
