package pager

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ───────────────────────────────────────────────────────────────────────────
// Metadata page & table catalog
// ───────────────────────────────────────────────────────────────────────────
//
// Page 0 is the metadata page: allocator state plus the serialized table
// catalog. Layout:
//
//   [0:4]   TotalPages     (uint32 LE)
//   [4:8]   FreePages      (uint32 LE)
//   [8:12]  FirstFreePage  (uint32 LE, 0 ⇒ empty freelist)
//   [12:16] TablesLen      (uint32 LE)
//   [16:]   Tables         (UTF-8 JSON, TablesLen bytes, max 4080)
//
// The catalog maps table names to root pages and column definitions. Each
// table carries a stable UUID assigned at creation so external tooling can
// track a table across renames.

// ColumnDef describes one column of a table.
type ColumnDef struct {
	Name       string   `json:"name"`
	Type       DataType `json:"type"`
	PrimaryKey bool     `json:"primary_key,omitempty"`
}

// IndexDef reserves a slot for secondary indexes in the catalog. The
// rebalancing engine operates on the primary-key tree only; index roots are
// carried through the catalog untouched.
type IndexDef struct {
	Name     string     `json:"name"`
	Columns  []string   `json:"columns"`
	RootPage PageNumber `json:"root_page"`
}

// TableInfo is one catalog entry.
type TableInfo struct {
	ID       uuid.UUID   `json:"id"`
	Name     string      `json:"name"`
	RootPage PageNumber  `json:"root_page"`
	Columns  []ColumnDef `json:"columns"`
	Indexes  []IndexDef  `json:"indexes,omitempty"`
}

// KeyType returns the primary key column's type. The first column is the
// key when none is flagged explicitly.
func (t *TableInfo) KeyType() DataType {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c.Type
		}
	}
	if len(t.Columns) > 0 {
		return t.Columns[0].Type
	}
	return 0
}

// Metadata is the deserialized metadata page.
type Metadata struct {
	TotalPages    uint32
	FreePages     uint32
	FirstFreePage PageNumber
	Tables        []TableInfo
}

func (m *Metadata) encodePage(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], m.TotalPages)
	binary.LittleEndian.PutUint32(buf[4:8], m.FreePages)
	binary.LittleEndian.PutUint32(buf[8:12], m.FirstFreePage)
	tables := m.tablesJSON()
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(tables)))
	copy(buf[16:], tables)
}

// tablesJSON serializes the catalog; an empty catalog serializes to no
// bytes at all so a fresh metadata page is all zeros past the header.
func (m *Metadata) tablesJSON() []byte {
	if len(m.Tables) == 0 {
		return nil
	}
	b, err := json.Marshal(m.Tables)
	if err != nil {
		// Every field of TableInfo is marshalable; reaching this is a bug.
		panic(fmt.Sprintf("marshal table catalog: %v", err))
	}
	return b
}

// validateCatalogSize fails when the serialized catalog outgrows page 0.
func (m *Metadata) validateCatalogSize() error {
	if n := len(m.tablesJSON()); n > metadataTablesMax {
		return fmt.Errorf("%w: table catalog of %d bytes (max %d)", ErrRowTooBig, n, metadataTablesMax)
	}
	return nil
}

func decodeMetadata(buf []byte) (*Metadata, error) {
	m := &Metadata{
		TotalPages:    binary.LittleEndian.Uint32(buf[0:4]),
		FreePages:     binary.LittleEndian.Uint32(buf[4:8]),
		FirstFreePage: binary.LittleEndian.Uint32(buf[8:12]),
	}
	tablesLen := binary.LittleEndian.Uint32(buf[12:16])
	if tablesLen > metadataTablesMax {
		return nil, fmt.Errorf("%w: catalog length %d", ErrCorruptedPage, tablesLen)
	}
	if tablesLen > 0 {
		if err := json.Unmarshal(buf[16:16+tablesLen], &m.Tables); err != nil {
			return nil, fmt.Errorf("%w: table catalog: %v", ErrCorruptedPage, err)
		}
	}
	return m, nil
}

// Table finds a catalog entry by name.
func (m *Metadata) Table(name string) (*TableInfo, bool) {
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			return &m.Tables[i], true
		}
	}
	return nil, false
}

// clone deep-copies the metadata so callers can hold it as a value.
func (m *Metadata) clone() *Metadata {
	out := &Metadata{
		TotalPages:    m.TotalPages,
		FreePages:     m.FreePages,
		FirstFreePage: m.FirstFreePage,
	}
	if m.Tables != nil {
		out.Tables = make([]TableInfo, len(m.Tables))
		for i := range m.Tables {
			t := m.Tables[i]
			t.Columns = append([]ColumnDef(nil), t.Columns...)
			if t.Indexes != nil {
				t.Indexes = append([]IndexDef(nil), t.Indexes...)
			}
			out.Tables[i] = t
		}
	}
	return out
}
