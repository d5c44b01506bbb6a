package pager

import "errors"

// Errors surfaced across the storage-core boundary. The engine also
// reports wrapped I/O failures from the underlying files and plain,
// unclassified errors that wrap none of these sentinels (invalid
// configuration, mismatched row values, a full journal).
var (
	// ErrDuplicateKey is returned by BTree.Insert when the primary key
	// already exists. The tree is left unchanged.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyNotFound is returned by search/update/delete when the key is
	// absent. The tree is left unchanged.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyTooLong rejects keys whose serialized form cannot be used as
	// a divider in an internal node.
	ErrKeyTooLong = errors.New("key too long")

	// ErrRowTooBig rejects cells whose payload cannot fit a single page.
	ErrRowTooBig = errors.New("row too big")

	// ErrCorruptedPage reports an on-disk image that fails structural
	// validation (short read, impossible header values, bad offsets).
	ErrCorruptedPage = errors.New("corrupted page")

	// ErrCacheFull reports a buffer pool with no evictable page. With a
	// dirty limit below the cache size this is a configuration error,
	// not a data error.
	ErrCacheFull = errors.New("page cache full: no evictable page")

	// ErrDatabaseLocked reports that another process holds the database
	// file's exclusive lock.
	ErrDatabaseLocked = errors.New("database is locked by another process")

	// errPageOverflow is internal to the rebalancing machinery: a cell
	// set does not fit one page's content area. It never crosses the
	// core boundary.
	errPageOverflow = errors.New("page content overflow")
)
