package pager

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestTreePageRoundTrip(t *testing.T) {
	tp := &TreePage{
		RightChild: 9,
		Cells: []Cell{
			{LeftChild: 3, Payload: []byte("alpha")},
			{LeftChild: 5, Payload: []byte("bravo-longer-payload")},
			{LeftChild: 7, Payload: []byte("charlie")},
		},
	}
	buf := encodeToPage(tp)
	got, err := decodeTreePage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RightChild != tp.RightChild || got.Left != tp.Left || got.Right != tp.Right {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.Cells) != len(tp.Cells) {
		t.Fatalf("cells: got %d want %d", len(got.Cells), len(tp.Cells))
	}
	for i := range tp.Cells {
		if got.Cells[i].LeftChild != tp.Cells[i].LeftChild || !bytes.Equal(got.Cells[i].Payload, tp.Cells[i].Payload) {
			t.Fatalf("cell %d mismatch", i)
		}
	}
	// Serialized pages round-trip byte-identically.
	if !bytes.Equal(encodeToPage(got), buf) {
		t.Fatal("re-encode differs from original image")
	}
}

func TestTreePageLeafSiblingFields(t *testing.T) {
	tp := &TreePage{Left: 11, Right: 12, Cells: []Cell{{Payload: []byte("x")}}}
	if !tp.IsLeaf() {
		t.Fatal("zero right child must mean leaf")
	}
	got, err := decodeTreePage(encodeToPage(tp))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Left != 11 || got.Right != 12 || !got.IsLeaf() {
		t.Fatalf("sibling fields lost: %+v", got)
	}
}

func TestTreePageDecodeRejectsBadOffsets(t *testing.T) {
	tp := &TreePage{Cells: []Cell{{Payload: []byte("payload")}}}
	buf := encodeToPage(tp)

	// Point slot 0 outside the content area.
	buf[treeHeaderSize] = 0xff
	buf[treeHeaderSize+1] = 0xff
	if _, err := decodeTreePage(buf); !errors.Is(err, ErrCorruptedPage) {
		t.Fatalf("bad offset: %v, want ErrCorruptedPage", err)
	}
}

func TestTreePageDecodeRejectsContentMismatch(t *testing.T) {
	tp := &TreePage{Cells: []Cell{{Payload: []byte("payload")}}}
	buf := encodeToPage(tp)
	buf[16] = 0x01 // content size no longer matches the cells
	buf[17] = 0x00
	if _, err := decodeTreePage(buf); !errors.Is(err, ErrCorruptedPage) {
		t.Fatalf("content mismatch: %v, want ErrCorruptedPage", err)
	}
}

func TestFreePageRoundTrip(t *testing.T) {
	fp := &FreePage{Next: 77}
	got, err := decodeFreePage(encodeToPage(fp))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Next != 77 {
		t.Fatalf("next=%d, want 77", got.Next)
	}
}

func TestOverflowPageRoundTrip(t *testing.T) {
	op := &OverflowPage{Next: 5, Content: bytes.Repeat([]byte{0xab}, 1000)}
	buf := encodeToPage(op)
	got, err := decodeOverflowPage(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Next != 5 || !bytes.Equal(got.Content, op.Content) {
		t.Fatal("overflow page mismatch")
	}
	if !bytes.Equal(encodeToPage(got), buf) {
		t.Fatal("re-encode differs")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	m := &Metadata{
		TotalPages:    42,
		FreePages:     3,
		FirstFreePage: 17,
		Tables: []TableInfo{{
			ID:       uuid.New(),
			Name:     "devices",
			RootPage: 2,
			Columns: []ColumnDef{
				{Name: "pk", Type: TypeText, PrimaryKey: true},
				{Name: "datetime", Type: TypeInt},
			},
			Indexes: []IndexDef{{Name: "by_time", Columns: []string{"datetime"}, RootPage: 0}},
		}},
	}
	buf := encodeToPage(m)
	got, err := decodeMetadata(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.TotalPages != 42 || got.FreePages != 3 || got.FirstFreePage != 17 {
		t.Fatalf("allocator state mismatch: %+v", got)
	}
	tbl, ok := got.Table("devices")
	if !ok {
		t.Fatal("table lost in round trip")
	}
	if tbl.ID != m.Tables[0].ID || tbl.RootPage != 2 || len(tbl.Columns) != 2 || tbl.KeyType() != TypeText {
		t.Fatalf("table mismatch: %+v", tbl)
	}
	if len(tbl.Indexes) != 1 || tbl.Indexes[0].Name != "by_time" {
		t.Fatalf("indexes mismatch: %+v", tbl.Indexes)
	}
	if !bytes.Equal(encodeToPage(got), buf) {
		t.Fatal("re-encode differs from original image")
	}
}

func TestMetadataRejectsOversizedCatalog(t *testing.T) {
	m := &Metadata{TotalPages: 1}
	for i := 0; i < 200; i++ {
		m.Tables = append(m.Tables, TableInfo{
			ID:      uuid.New(),
			Name:    "a_table_with_a_reasonably_long_name",
			Columns: []ColumnDef{{Name: "pk", Type: TypeInt}},
		})
	}
	if err := m.validateCatalogSize(); !errors.Is(err, ErrRowTooBig) {
		t.Fatalf("oversized catalog: %v, want ErrRowTooBig", err)
	}
}
