// Package muscle provides the storage and indexing core of an embeddable
// single-node relational database.
//
// The core is a fixed-page file manager with a rollback journal, a buffer
// pool with a freelist allocator, and a slotted-page B+Tree supporting
// variable-length keys and values with full rebalancing. It is the layer a
// SQL front end (tokenizer, parser, query dispatcher) drives: resolve a
// table's root page through the catalog, open a tree view, run
// search/insert/update/delete, then commit — or roll back on error.
//
// # Basic usage
//
//	db, err := muscle.Open("data.db")
//	if err != nil { ... }
//	defer db.Close()
//
//	table, err := db.CreateTable("devices", []muscle.ColumnDef{
//	    {Name: "pk", Type: muscle.TypeText, PrimaryKey: true},
//	    {Name: "datetime", Type: muscle.TypeInt},
//	})
//	if err != nil { ... }
//
//	key, _ := muscle.EncodeKey(muscle.TypeText, muscle.TextValue("a"))
//	row, _ := muscle.EncodeRow(table.Columns, []muscle.Value{
//	    muscle.TextValue("a"), muscle.IntValue(1712345678),
//	})
//
//	tree := db.OpenTree(table.RootPage, muscle.TypeText)
//	if err := tree.Insert(key, row); err != nil {
//	    db.Rollback()
//	} else {
//	    db.Commit()
//	}
//
// Every user-visible operation either completes and is committed, or fails
// and is rolled back: the journal records page pre-images before the first
// modification, and an interrupted run is rolled back automatically on the
// next Open.
package muscle

import "github.com/s4hubhamp/muscle/internal/storage/pager"

// Core types, re-exported from the storage engine.
type (
	DB           = pager.DB
	Config       = pager.Config
	BTree        = pager.BTree
	Metadata     = pager.Metadata
	TableInfo    = pager.TableInfo
	ColumnDef    = pager.ColumnDef
	IndexDef     = pager.IndexDef
	TreePage     = pager.TreePage
	Cell         = pager.Cell
	PageNumber   = pager.PageNumber
	DataType     = pager.DataType
	Value        = pager.Value
	TreeStats    = pager.TreeStats
	Checkpointer = pager.Checkpointer
)

// Column data types.
const (
	TypeInt  = pager.TypeInt
	TypeReal = pager.TypeReal
	TypeText = pager.TypeText
	TypeBlob = pager.TypeBlob
	TypeBool = pager.TypeBool
)

// PageSize is the fixed on-disk page size in bytes.
const PageSize = pager.PageSize

// Errors crossing the core boundary.
var (
	ErrDuplicateKey   = pager.ErrDuplicateKey
	ErrKeyNotFound    = pager.ErrKeyNotFound
	ErrKeyTooLong     = pager.ErrKeyTooLong
	ErrRowTooBig      = pager.ErrRowTooBig
	ErrCorruptedPage  = pager.ErrCorruptedPage
	ErrCacheFull      = pager.ErrCacheFull
	ErrDatabaseLocked = pager.ErrDatabaseLocked
)

// Open opens (or creates) the database at path with default settings.
func Open(path string) (*DB, error) { return pager.Open(path) }

// OpenWithConfig opens the database described by cfg.
func OpenWithConfig(cfg Config) (*DB, error) { return pager.OpenWithConfig(cfg) }

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) { return pager.LoadConfig(path) }

// NewCheckpointer schedules periodic dirty-page flushes on a database.
func NewCheckpointer(db *DB, spec string) (*Checkpointer, error) {
	return pager.NewCheckpointer(db, spec)
}

// Value constructors.
var (
	IntValue  = pager.IntValue
	RealValue = pager.RealValue
	TextValue = pager.TextValue
	BlobValue = pager.BlobValue
	BoolValue = pager.BoolValue
)

// EncodeKey serializes a primary-key value for tree operations.
func EncodeKey(dt DataType, v Value) ([]byte, error) { return pager.EncodeKey(dt, v) }

// EncodeRow serializes a full row; the first column must be the key.
func EncodeRow(cols []ColumnDef, values []Value) ([]byte, error) {
	return pager.EncodeRow(cols, values)
}

// DecodeRow deserializes a cell payload back into column values.
func DecodeRow(cols []ColumnDef, payload []byte) ([]Value, error) {
	return pager.DecodeRow(cols, payload)
}
