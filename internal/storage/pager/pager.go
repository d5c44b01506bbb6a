package pager

import (
	"fmt"
	"sort"
	"sync"
)

// ───────────────────────────────────────────────────────────────────────────
// Page manager: buffer pool + allocator + commit/rollback
// ───────────────────────────────────────────────────────────────────────────
//
// The Pager ties the cache, the rollback journal and the database file
// together. Reads resolve from an unordered page cache (linear scan, evict
// by swap-remove); the first write to a page in an epoch records its
// pre-image in the journal; Commit persists the journal before touching the
// database file; Rollback restores the pre-images and truncates pages
// appended during the epoch.
//
// The dirty limit stays below the cache size so the pool always holds an
// evictable clean page; when the dirty set saturates mid-statement, a
// partial commit flushes pages but keeps the journal so a later failure
// still rolls back to the statement's start.
//
// The metadata page is journaled and written like any other page — rollback
// has to restore allocator state too — but it is never evicted and never
// freed.

type cacheEntry struct {
	page PageNumber
	buf  []byte // always PageSize bytes
}

// Pager manages page-level I/O, the journal, the buffer pool and the
// freelist. A mutex serializes the exported surface: the core is
// single-writer, and the lock lets the background checkpointer share the
// handle safely.
type Pager struct {
	mu       sync.Mutex
	file     *BlockFile
	journal  *Journal
	cache    []cacheEntry
	cacheCap int
	dirty    map[PageNumber]struct{}
	dirtyCap int
	meta     *Metadata
}

// OpenPager opens (or creates) the database and its journal, then resolves
// any interrupted epoch by rolling the journal back before use.
func OpenPager(cfg Config) (*Pager, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	file, err := OpenBlockFile(cfg.Path)
	if err != nil {
		return nil, err
	}
	journal, err := OpenJournal(cfg.journalPath(), cfg.JournalRing)
	if err != nil {
		file.Close()
		return nil, err
	}

	p := &Pager{
		file:     file,
		journal:  journal,
		cache:    make([]cacheEntry, 0, cfg.CacheSize),
		cacheCap: cfg.CacheSize,
		dirty:    make(map[PageNumber]struct{}, cfg.DirtyLimit),
		dirtyCap: cfg.DirtyLimit,
	}

	pages, err := file.NumPages()
	if err != nil {
		p.closeFiles()
		return nil, err
	}
	if pages == 0 {
		// Brand-new database: page 0 exists before anything else.
		if _, err := file.WritePage(0, encodeToPage(&Metadata{TotalPages: 1})); err != nil {
			p.closeFiles()
			return nil, err
		}
	}

	// An uncleared journal means a crashed epoch; restore it first.
	if err := p.rollback(); err != nil {
		p.closeFiles()
		return nil, err
	}
	if err := p.loadMetadata(); err != nil {
		p.closeFiles()
		return nil, err
	}
	return p, nil
}

func (p *Pager) closeFiles() {
	_ = p.journal.Close()
	_ = p.file.Close()
}

// Close releases both files. Uncommitted work is rolled back first: a
// statement either commits or leaves no trace.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	if len(p.dirty) > 0 || !p.journal.IsEmpty() {
		firstErr = p.rollback()
	}
	if err := p.journal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (p *Pager) loadMetadata() error {
	buf, err := p.getPageBytes(0)
	if err != nil {
		return err
	}
	m, err := decodeMetadata(buf)
	if err != nil {
		return err
	}
	p.meta = m
	return nil
}

// ── Cache ─────────────────────────────────────────────────────────────────

// findCached returns the cache index of page, or -1.
func (p *Pager) findCached(page PageNumber) int {
	for i := range p.cache {
		if p.cache[i].page == page {
			return i
		}
	}
	return -1
}

// admit installs buf as page's cached image, evicting a clean page when the
// pool is full. Page 0 and dirty pages are never eviction candidates.
func (p *Pager) admit(page PageNumber, buf []byte) error {
	if i := p.findCached(page); i >= 0 {
		copy(p.cache[i].buf, buf)
		return nil
	}
	if len(p.cache) >= p.cacheCap {
		victim := -1
		for i := range p.cache {
			if p.cache[i].page == 0 {
				continue
			}
			if _, isDirty := p.dirty[p.cache[i].page]; !isDirty {
				victim = i
				break
			}
		}
		if victim < 0 {
			return ErrCacheFull
		}
		p.cache[victim] = p.cache[len(p.cache)-1]
		p.cache = p.cache[:len(p.cache)-1]
	}
	img := make([]byte, PageSize)
	copy(img, buf)
	p.cache = append(p.cache, cacheEntry{page: page, buf: img})
	return nil
}

// drop removes a page from the cache if present.
func (p *Pager) drop(page PageNumber) {
	if i := p.findCached(page); i >= 0 {
		p.cache[i] = p.cache[len(p.cache)-1]
		p.cache = p.cache[:len(p.cache)-1]
	}
}

// getPageBytes resolves a page image from cache or disk. A read past
// end-of-file is a programming error: pages come into being only through
// the allocator, which seeds the cache.
func (p *Pager) getPageBytes(page PageNumber) ([]byte, error) {
	if i := p.findCached(page); i >= 0 {
		return p.cache[i].buf, nil
	}
	buf := make([]byte, PageSize)
	n, err := p.file.ReadPage(page, buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		panic(fmt.Sprintf("page %d read past end of file", page))
	}
	if err := p.admit(page, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ── Typed page access ─────────────────────────────────────────────────────

// GetTreePage returns a deserialized copy of a B+Tree page.
func (p *Pager) GetTreePage(page PageNumber) (*TreePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getTreePage(page)
}

func (p *Pager) getTreePage(page PageNumber) (*TreePage, error) {
	if page == 0 {
		panic("page 0 is the metadata page, not a tree page")
	}
	buf, err := p.getPageBytes(page)
	if err != nil {
		return nil, err
	}
	return decodeTreePage(buf)
}

// GetFreePage returns a deserialized copy of a freelist page.
func (p *Pager) GetFreePage(page PageNumber) (*FreePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getFreePage(page)
}

func (p *Pager) getFreePage(page PageNumber) (*FreePage, error) {
	if page == 0 {
		panic("page 0 is the metadata page, not a free page")
	}
	buf, err := p.getPageBytes(page)
	if err != nil {
		return nil, err
	}
	return decodeFreePage(buf)
}

// GetOverflowPage returns a deserialized copy of an overflow page.
func (p *Pager) GetOverflowPage(page PageNumber) (*OverflowPage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page == 0 {
		panic("page 0 is the metadata page, not an overflow page")
	}
	buf, err := p.getPageBytes(page)
	if err != nil {
		return nil, err
	}
	return decodeOverflowPage(buf)
}

// Metadata returns a copy of the current metadata page.
func (p *Pager) Metadata() *Metadata {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.meta.clone()
}

// UpdateMetadata replaces the metadata page.
func (p *Pager) UpdateMetadata(m *Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updateMetadata(m)
}

func (p *Pager) updateMetadata(m *Metadata) error {
	if err := m.validateCatalogSize(); err != nil {
		return err
	}
	if err := p.updatePage(0, m); err != nil {
		return err
	}
	p.meta = m.clone()
	return nil
}

// UpdatePage serializes value as page's new image: the pre-image is
// journaled on the first modification of the epoch, the page joins the
// dirty set (flushing first if the set is saturated), and the new bytes
// land in the cache. Nothing reaches the database file until Commit.
func (p *Pager) UpdatePage(page PageNumber, value PageValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page == 0 {
		panic("metadata updates go through UpdateMetadata")
	}
	return p.updatePage(page, value)
}

func (p *Pager) updatePage(page PageNumber, value PageValue) error {
	newBuf := encodeToPage(value)

	if _, isDirty := p.dirty[page]; !isDirty {
		current, err := p.getPageBytes(page)
		if err != nil {
			return err
		}
		if len(p.dirty) >= p.dirtyCap {
			if err := p.commit(false); err != nil {
				return err
			}
		}
		p.dirty[page] = struct{}{}
		// The journal suppresses duplicate pages itself, so re-dirtying a
		// page after a partial commit keeps the epoch's first pre-image.
		if err := p.journal.Record(page, current); err != nil {
			return err
		}
	}
	return p.admit(page, newBuf)
}

// ── Allocation ────────────────────────────────────────────────────────────

// AllocFreePage produces a usable page: the freelist head when one exists,
// otherwise a fresh page reserved past the current end of file. A fresh
// page costs no write — its zeroed image sits dirty in the cache and
// reaches disk at commit, while the journal latches the extension point so
// rollback can shrink the file back.
func (p *Pager) AllocFreePage() (PageNumber, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocFreePage()
}

func (p *Pager) allocFreePage() (PageNumber, error) {
	m := p.meta.clone()
	if m.FirstFreePage == 0 {
		page := m.TotalPages
		p.journal.MaybeSetFirstNewlyAllocedPage(page)
		m.TotalPages++
		if err := p.updateMetadata(m); err != nil {
			return 0, err
		}
		if _, isDirty := p.dirty[page]; !isDirty {
			if len(p.dirty) >= p.dirtyCap {
				if err := p.commit(false); err != nil {
					return 0, err
				}
			}
			// No pre-image to journal: the page does not exist on disk yet
			// and rollback discards it by truncation.
			p.dirty[page] = struct{}{}
		}
		if err := p.admit(page, encodeToPage(&FreePage{})); err != nil {
			return 0, err
		}
		return page, nil
	}

	page := m.FirstFreePage
	fp, err := p.getFreePage(page)
	if err != nil {
		return 0, err
	}
	m.FirstFreePage = fp.Next
	m.FreePages--
	if err := p.updateMetadata(m); err != nil {
		return 0, err
	}
	return page, nil
}

// FreePage overwrites a page with a freelist node and pushes it onto the
// freelist head. The pre-image is journaled through the normal update path,
// so rollback resurrects the page's old contents.
func (p *Pager) FreePage(page PageNumber) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freePage(page)
}

func (p *Pager) freePage(page PageNumber) error {
	if page == 0 {
		panic("the metadata page cannot be freed")
	}
	m := p.meta.clone()
	if err := p.updatePage(page, &FreePage{Next: m.FirstFreePage}); err != nil {
		return err
	}
	m.FirstFreePage = page
	m.FreePages++
	return p.updateMetadata(m)
}

// ── Commit & rollback ─────────────────────────────────────────────────────

// Commit flushes the epoch's work to the database file. The journal's
// pre-images become durable first; only then are dirty pages written, in
// ascending page order. With executionCompleted the statement is done and
// the journal resets; without it (a mid-statement flush) the journal stays
// so a later failure still restores the statement's starting state.
func (p *Pager) Commit(executionCompleted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.commit(executionCompleted); err != nil {
		// A failed commit may have partially written the database file;
		// the journal is durable, so restore the pre-statement state
		// before resurfacing the error.
		if rbErr := p.rollback(); rbErr == nil {
			_ = p.loadMetadata()
		}
		return err
	}
	return nil
}

func (p *Pager) commit(executionCompleted bool) error {
	if len(p.dirty) == 0 {
		if executionCompleted && !p.journal.IsEmpty() {
			return p.journal.Clear()
		}
		return nil
	}

	if err := p.journal.Persist(); err != nil {
		return err
	}

	pages := make([]PageNumber, 0, len(p.dirty))
	for page := range p.dirty {
		pages = append(pages, page)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })

	for _, page := range pages {
		i := p.findCached(page)
		if i < 0 {
			panic(fmt.Sprintf("dirty page %d evicted from cache", page))
		}
		if _, err := p.file.WritePage(page, p.cache[i].buf); err != nil {
			return err
		}
	}
	if err := p.file.Sync(); err != nil {
		return err
	}

	p.dirty = make(map[PageNumber]struct{}, p.dirtyCap)
	if executionCompleted {
		return p.journal.Clear()
	}
	return nil
}

// Rollback restores every journaled pre-image, truncates pages appended
// during the epoch, and resets the epoch. The cache is dropped wholesale so
// stale images cannot outlive the restore.
func (p *Pager) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.rollback(); err != nil {
		return err
	}
	return p.loadMetadata()
}

func (p *Pager) rollback() error {
	for offset := 0; ; {
		batch, err := p.journal.BatchGetOriginalPages(offset)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			if _, err := p.file.WritePage(batch[i].Page, batch[i].Image[:]); err != nil {
				return err
			}
		}
		offset += len(batch)
	}

	if first := p.journal.FirstNewlyAllocedPage(); first != 0 {
		if err := p.file.Truncate(first); err != nil {
			return err
		}
	}
	if err := p.file.Sync(); err != nil {
		return err
	}

	p.cache = p.cache[:0]
	p.dirty = make(map[PageNumber]struct{}, p.dirtyCap)
	return p.journal.Clear()
}

// DirtyPages reports the size of the dirty set.
func (p *Pager) DirtyPages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dirty)
}

// JournalSize reports how many pre-images the current epoch has recorded.
func (p *Pager) JournalSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.journal.NumRecorded()
}
