package pager

import (
	"encoding/binary"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Rollback journal
// ───────────────────────────────────────────────────────────────────────────
//
// The journal is a sidecar file recording the original image of every page
// modified during the current epoch (the interval between two Clears), plus
// the first newly-allocated page number, so that an aborted statement can
// be rolled back to a consistent database file.
//
// File layout (same 4096-byte pages as the database):
//
//   Page 0:   u32 FirstNewAllocedPage  (0 ⇒ none)
//             u32 NPages               (count of recorded pre-images)
//             u32[1022] PageNumbers    (original page numbers, in order)
//   Page 1..NPages: the pre-images, in the order of PageNumbers.
//
// Pending pre-images accumulate in a bounded in-memory ring and reach the
// file in Persist, which writes the data pages first and the metadata page
// last. If the process dies between the two, the appended images are
// unreferenced and ignored on the next open — rollback atomicity rests on
// that write order.

const (
	// journalMetaCapacity is how many pre-image page numbers fit in the
	// journal metadata page.
	journalMetaCapacity = 1022

	// DefaultJournalRing bounds the in-memory ring of unsaved pre-images.
	DefaultJournalRing = 64

	// journalBatchSize is how many pre-images BatchGetOriginalPages
	// returns at a time during rollback.
	journalBatchSize = 16
)

type journalMeta struct {
	firstNewAlloced PageNumber
	nPages          uint32
	pageNumbers     [journalMetaCapacity]PageNumber
}

func (jm *journalMeta) encodePage(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], jm.firstNewAlloced)
	binary.LittleEndian.PutUint32(buf[4:8], jm.nPages)
	for i := uint32(0); i < jm.nPages; i++ {
		binary.LittleEndian.PutUint32(buf[8+4*i:], jm.pageNumbers[i])
	}
}

func decodeJournalMeta(buf []byte) (*journalMeta, error) {
	jm := &journalMeta{
		firstNewAlloced: binary.LittleEndian.Uint32(buf[0:4]),
		nPages:          binary.LittleEndian.Uint32(buf[4:8]),
	}
	if jm.nPages > journalMetaCapacity {
		return nil, fmt.Errorf("%w: journal records %d pre-images", ErrCorruptedPage, jm.nPages)
	}
	for i := uint32(0); i < jm.nPages; i++ {
		jm.pageNumbers[i] = binary.LittleEndian.Uint32(buf[8+4*i:])
	}
	return jm, nil
}

// contains reports whether page is already recorded in the persisted set.
func (jm *journalMeta) contains(page PageNumber) bool {
	for i := uint32(0); i < jm.nPages; i++ {
		if jm.pageNumbers[i] == page {
			return true
		}
	}
	return false
}

type journalEntry struct {
	page  PageNumber
	image [PageSize]byte
}

// OriginalPage is one restored pre-image handed to rollback.
type OriginalPage struct {
	Page  PageNumber
	Image [PageSize]byte
}

// Journal records page pre-images for the current epoch.
type Journal struct {
	file    *BlockFile
	meta    journalMeta
	unsaved []journalEntry
	ringCap int
}

// OpenJournal opens (or creates) the journal file and loads its metadata.
// An empty file yields a fresh epoch.
func OpenJournal(path string, ringCap int) (*Journal, error) {
	if ringCap <= 0 {
		ringCap = DefaultJournalRing
	}
	file, err := OpenBlockFile(path)
	if err != nil {
		return nil, err
	}
	j := &Journal{file: file, ringCap: ringCap}

	var buf [PageSize]byte
	n, err := file.ReadPage(0, buf[:])
	if err != nil {
		file.Close()
		return nil, err
	}
	if n > 0 {
		jm, err := decodeJournalMeta(buf[:])
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("journal metadata: %w", err)
		}
		j.meta = *jm
	}
	return j, nil
}

// Record remembers page's pre-image. At most one image is kept per page per
// epoch: later calls for the same page are no-ops, so the first recorded
// image always wins. A full ring is persisted before accepting the entry.
func (j *Journal) Record(page PageNumber, image []byte) error {
	if j.meta.contains(page) {
		return nil
	}
	for i := range j.unsaved {
		if j.unsaved[i].page == page {
			return nil
		}
	}
	if len(j.unsaved) >= j.ringCap {
		if err := j.Persist(); err != nil {
			return err
		}
	}
	e := journalEntry{page: page}
	copy(e.image[:], image)
	j.unsaved = append(j.unsaved, e)
	return nil
}

// Persist flushes the unsaved ring: each pre-image goes to the next
// sequential journal page, then — and only then — the updated metadata goes
// to journal page 0.
func (j *Journal) Persist() error {
	if len(j.unsaved) == 0 {
		return nil
	}
	if uint32(len(j.unsaved))+j.meta.nPages > journalMetaCapacity {
		return fmt.Errorf("journal full: %d pre-images recorded this epoch", j.meta.nPages)
	}
	next := j.meta
	for i := range j.unsaved {
		e := &j.unsaved[i]
		if _, err := j.file.WritePage(1+next.nPages, e.image[:]); err != nil {
			return err
		}
		next.pageNumbers[next.nPages] = e.page
		next.nPages++
	}
	if err := j.file.Sync(); err != nil {
		return err
	}
	if _, err := j.file.WritePage(0, encodeToPage(&next)); err != nil {
		return err
	}
	j.meta = next
	j.unsaved = j.unsaved[:0]
	return nil
}

// NumRecorded is the total number of pre-images available this epoch,
// persisted and unsaved.
func (j *Journal) NumRecorded() int {
	return int(j.meta.nPages) + len(j.unsaved)
}

// BatchGetOriginalPages returns up to journalBatchSize consecutive
// pre-images starting at offset, drawing first from the persisted journal
// and then from the unsaved ring. Rollback is the only caller.
func (j *Journal) BatchGetOriginalPages(offset int) ([]OriginalPage, error) {
	total := j.NumRecorded()
	if offset >= total {
		return nil, nil
	}
	end := offset + journalBatchSize
	if end > total {
		end = total
	}
	out := make([]OriginalPage, 0, end-offset)
	for i := offset; i < end; i++ {
		var op OriginalPage
		if i < int(j.meta.nPages) {
			op.Page = j.meta.pageNumbers[i]
			n, err := j.file.ReadPage(PageNumber(1+i), op.Image[:])
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, fmt.Errorf("%w: journal pre-image %d missing", ErrCorruptedPage, i)
			}
		} else {
			e := &j.unsaved[i-int(j.meta.nPages)]
			op.Page = e.page
			op.Image = e.image
		}
		out = append(out, op)
	}
	return out, nil
}

// MaybeSetFirstNewlyAllocedPage latches the first page allocated past the
// old end of file this epoch. The latch is monotonic: once set it ignores
// later calls, so rollback truncates at the earliest extension point.
func (j *Journal) MaybeSetFirstNewlyAllocedPage(page PageNumber) {
	if j.meta.firstNewAlloced == 0 {
		j.meta.firstNewAlloced = page
	}
}

// FirstNewlyAllocedPage returns the latched page number, 0 if none.
func (j *Journal) FirstNewlyAllocedPage() PageNumber {
	return j.meta.firstNewAlloced
}

// IsEmpty reports whether the epoch has recorded nothing at all.
func (j *Journal) IsEmpty() bool {
	return j.meta.nPages == 0 && len(j.unsaved) == 0 && j.meta.firstNewAlloced == 0
}

// Clear ends the epoch: the ring and metadata reset and the journal file is
// truncated to nothing. Called only once a statement has committed cleanly
// (or after a completed rollback).
func (j *Journal) Clear() error {
	j.unsaved = j.unsaved[:0]
	j.meta = journalMeta{}
	return j.file.Truncate(0)
}

// Close closes the journal file. The on-disk state is left as is: an
// uncleared journal is rolled back on the next open.
func (j *Journal) Close() error {
	return j.file.Close()
}
