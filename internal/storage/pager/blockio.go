package pager

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ───────────────────────────────────────────────────────────────────────────
// Block I/O
// ───────────────────────────────────────────────────────────────────────────
//
// A BlockFile is a page-addressed view over one file. The file is created
// if absent and guarded by an exclusive advisory lock for the lifetime of
// the handle; a second opener is refused immediately. I/O failures surface
// unmodified to the caller — there is no internal retry.

// BlockFile provides page-granular read/write/truncate on a single file.
type BlockFile struct {
	f    *os.File
	path string
}

// OpenBlockFile opens (or creates) path and acquires its exclusive lock.
func OpenBlockFile(path string) (*BlockFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, fmt.Errorf("%s: %w", path, ErrDatabaseLocked)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return &BlockFile{f: f, path: path}, nil
}

// ReadPage reads one page into buf (which must be PageSize bytes).
// It returns 0 iff the page lies past end-of-file; a partial page is
// corruption.
func (b *BlockFile) ReadPage(page PageNumber, buf []byte) (int, error) {
	n, err := b.f.ReadAt(buf[:PageSize], int64(page)*PageSize)
	if n == 0 && err == io.EOF {
		return 0, nil
	}
	if n == PageSize {
		return n, nil
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read page %d of %s: %w", page, b.path, err)
	}
	return n, fmt.Errorf("%w: short read of page %d (%d bytes)", ErrCorruptedPage, page, n)
}

// WritePage writes one page. Writing past the current end of file extends
// the file; that is how newly allocated pages come into existence.
func (b *BlockFile) WritePage(page PageNumber, buf []byte) (int, error) {
	n, err := b.f.WriteAt(buf[:PageSize], int64(page)*PageSize)
	if err != nil {
		return n, fmt.Errorf("write page %d of %s: %w", page, b.path, err)
	}
	return n, nil
}

// Truncate shrinks the file to exactly pages whole pages.
func (b *BlockFile) Truncate(pages PageNumber) error {
	if err := b.f.Truncate(int64(pages) * PageSize); err != nil {
		return fmt.Errorf("truncate %s to %d pages: %w", b.path, pages, err)
	}
	return nil
}

// NumPages reports how many whole pages the file currently holds.
func (b *BlockFile) NumPages() (PageNumber, error) {
	fi, err := b.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", b.path, err)
	}
	return PageNumber(fi.Size() / PageSize), nil
}

// Sync flushes the file to stable storage.
func (b *BlockFile) Sync() error {
	return b.f.Sync()
}

// Close releases the lock and closes the file.
func (b *BlockFile) Close() error {
	_ = unix.Flock(int(b.f.Fd()), unix.LOCK_UN)
	return b.f.Close()
}

// Path returns the underlying file path.
func (b *BlockFile) Path() string { return b.path }
