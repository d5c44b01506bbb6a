package pager

import (
	"fmt"

	"github.com/google/uuid"
)

// ───────────────────────────────────────────────────────────────────────────
// DB — the consumer-facing surface
// ───────────────────────────────────────────────────────────────────────────
//
// DB is what the query dispatcher embeds: open/close, metadata access,
// page allocation, tree handles per table, and the commit/rollback
// boundary. The dispatcher drives one statement at a time; on success it
// calls Commit, on any error other than duplicate-key / key-not-found it
// calls Rollback.

// DB is an open database.
type DB struct {
	pager        *Pager
	checkpointer *Checkpointer
}

// Open opens (or creates) the database at path with default settings.
func Open(path string) (*DB, error) {
	return OpenWithConfig(Config{Path: path})
}

// OpenWithConfig opens the database described by cfg. When the
// configuration carries a checkpoint schedule, the background
// checkpointer starts immediately.
func OpenWithConfig(cfg Config) (*DB, error) {
	p, err := OpenPager(cfg)
	if err != nil {
		return nil, err
	}
	db := &DB{pager: p}
	if cfg.CheckpointSchedule != "" {
		cp, err := NewCheckpointer(db, cfg.CheckpointSchedule)
		if err != nil {
			p.Close()
			return nil, err
		}
		cp.Start()
		db.checkpointer = cp
	}
	return db, nil
}

// Close stops the checkpointer and releases the database. Uncommitted work
// is rolled back.
func (db *DB) Close() error {
	if db.checkpointer != nil {
		db.checkpointer.Stop()
	}
	return db.pager.Close()
}

// ── Pager surface ─────────────────────────────────────────────────────────

// Metadata returns a copy of the metadata page.
func (db *DB) Metadata() *Metadata { return db.pager.Metadata() }

// UpdateMetadata replaces the metadata page.
func (db *DB) UpdateMetadata(m *Metadata) error { return db.pager.UpdateMetadata(m) }

// AllocPage allocates a page from the freelist or the end of the file.
func (db *DB) AllocPage() (PageNumber, error) { return db.pager.AllocFreePage() }

// FreePage returns a page to the freelist.
func (db *DB) FreePage(page PageNumber) error { return db.pager.FreePage(page) }

// GetPage returns a deserialized copy of a tree page.
func (db *DB) GetPage(page PageNumber) (*TreePage, error) { return db.pager.GetTreePage(page) }

// UpdatePage installs a new image for a page.
func (db *DB) UpdatePage(page PageNumber, v PageValue) error { return db.pager.UpdatePage(page, v) }

// Commit flushes the current statement's work as a cleanly finished
// statement (Pager.Commit with executionCompleted set) and resets the
// journal epoch.
func (db *DB) Commit() error { return db.pager.Commit(true) }

// Checkpoint flushes dirty pages while keeping the journal epoch open, the
// mid-statement flush used when the dirty set saturates or when a host
// batches statements between commits.
func (db *DB) Checkpoint() error { return db.pager.Commit(false) }

// Rollback restores the state at the start of the journal epoch.
func (db *DB) Rollback() error { return db.pager.Rollback() }

// ── Trees ─────────────────────────────────────────────────────────────────

// OpenTree binds a B+Tree view to a root page and key type.
func (db *DB) OpenTree(root PageNumber, keyType DataType) *BTree {
	return OpenTree(db.pager, root, keyType)
}

// Tree binds a B+Tree view to a cataloged table.
func (db *DB) Tree(table string) (*BTree, error) {
	m := db.pager.Metadata()
	t, ok := m.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", ErrKeyNotFound, table)
	}
	return db.OpenTree(t.RootPage, t.KeyType()), nil
}

// ── Catalog operations ────────────────────────────────────────────────────

// CreateTable allocates an empty root leaf and registers the table in the
// catalog. The first column (or the one flagged PrimaryKey) is the key;
// booleans cannot key a tree.
func (db *DB) CreateTable(name string, cols []ColumnDef) (*TableInfo, error) {
	if name == "" || len(cols) == 0 {
		return nil, fmt.Errorf("create table: name and columns are required")
	}
	m := db.pager.Metadata()
	if _, exists := m.Table(name); exists {
		return nil, fmt.Errorf("%w: table %q", ErrDuplicateKey, name)
	}
	info := TableInfo{ID: uuid.New(), Name: name, Columns: cols}
	if !validKeyType(info.KeyType()) {
		return nil, fmt.Errorf("create table %q: %s primary keys are not supported", name, info.KeyType())
	}

	root, err := db.pager.AllocFreePage()
	if err != nil {
		return nil, err
	}
	if err := db.pager.UpdatePage(root, &TreePage{}); err != nil {
		return nil, err
	}
	info.RootPage = root

	m = db.pager.Metadata()
	m.Tables = append(m.Tables, info)
	if err := db.pager.UpdateMetadata(m); err != nil {
		return nil, err
	}
	return &info, nil
}

// DropTable frees every page of the table's tree and removes its catalog
// entry.
func (db *DB) DropTable(name string) error {
	m := db.pager.Metadata()
	t, ok := m.Table(name)
	if !ok {
		return fmt.Errorf("%w: table %q", ErrKeyNotFound, name)
	}
	if err := db.freeSubtree(t.RootPage); err != nil {
		return err
	}
	m = db.pager.Metadata()
	for i := range m.Tables {
		if m.Tables[i].Name == name {
			m.Tables = append(m.Tables[:i], m.Tables[i+1:]...)
			break
		}
	}
	return db.pager.UpdateMetadata(m)
}

// freeSubtree returns a whole subtree to the freelist, children first.
func (db *DB) freeSubtree(page PageNumber) error {
	tp, err := db.pager.GetTreePage(page)
	if err != nil {
		return err
	}
	if !tp.IsLeaf() {
		for i := 0; i < tp.numChildren(); i++ {
			if err := db.freeSubtree(tp.childAt(i)); err != nil {
				return err
			}
		}
	}
	return db.pager.FreePage(page)
}

// GetTable looks a table up in the catalog.
func (db *DB) GetTable(name string) (*TableInfo, error) {
	m := db.pager.Metadata()
	t, ok := m.Table(name)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", ErrKeyNotFound, name)
	}
	return t, nil
}

// ListTables returns the cataloged table names in catalog order.
func (db *DB) ListTables() []string {
	m := db.pager.Metadata()
	names := make([]string, len(m.Tables))
	for i := range m.Tables {
		names[i] = m.Tables[i].Name
	}
	return names
}
