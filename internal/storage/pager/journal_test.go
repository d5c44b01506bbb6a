package pager

import (
	"bytes"
	"path/filepath"
	"testing"
)

func newTestJournal(t *testing.T, ring int) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db-journal")
	j, err := OpenJournal(path, ring)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j, path
}

func pageImage(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, PageSize)
}

func TestJournalRecordDeduplicates(t *testing.T) {
	j, _ := newTestJournal(t, 8)

	if err := j.Record(5, pageImage(0xaa)); err != nil {
		t.Fatalf("record: %v", err)
	}
	// A second image for the same page must not displace the first.
	if err := j.Record(5, pageImage(0xbb)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := j.NumRecorded(); got != 1 {
		t.Fatalf("recorded %d, want 1", got)
	}

	batch, err := j.BatchGetOriginalPages(0)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(batch) != 1 || batch[0].Page != 5 || batch[0].Image[0] != 0xaa {
		t.Fatal("first pre-image did not win")
	}
}

func TestJournalRingFlushesWhenFull(t *testing.T) {
	j, _ := newTestJournal(t, 4)

	for i := PageNumber(1); i <= 5; i++ {
		if err := j.Record(i, pageImage(byte(i))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	// Admitting the fifth entry must have persisted the first four.
	if j.meta.nPages != 4 {
		t.Fatalf("persisted %d pre-images, want 4", j.meta.nPages)
	}
	if len(j.unsaved) != 1 {
		t.Fatalf("ring holds %d, want 1", len(j.unsaved))
	}
	// Dedup consults the persisted set too.
	if err := j.Record(2, pageImage(0xff)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := j.NumRecorded(); got != 5 {
		t.Fatalf("recorded %d, want 5", got)
	}
}

func TestJournalBatchSpansPersistedAndUnsaved(t *testing.T) {
	j, _ := newTestJournal(t, 8)

	for i := PageNumber(1); i <= 20; i++ {
		if err := j.Record(i, pageImage(byte(i))); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	var all []OriginalPage
	for offset := 0; ; {
		batch, err := j.BatchGetOriginalPages(offset)
		if err != nil {
			t.Fatalf("batch at %d: %v", offset, err)
		}
		if len(batch) == 0 {
			break
		}
		if len(batch) > journalBatchSize {
			t.Fatalf("batch of %d exceeds %d", len(batch), journalBatchSize)
		}
		all = append(all, batch...)
		offset += len(batch)
	}
	if len(all) != 20 {
		t.Fatalf("restored %d pre-images, want 20", len(all))
	}
	for i, op := range all {
		want := PageNumber(i + 1)
		if op.Page != want || op.Image[0] != byte(want) {
			t.Fatalf("pre-image %d: page %d fill %x", i, op.Page, op.Image[0])
		}
	}
}

func TestJournalMetaSurvivesReopen(t *testing.T) {
	j, path := newTestJournal(t, 4)

	j.MaybeSetFirstNewlyAllocedPage(30)
	j.MaybeSetFirstNewlyAllocedPage(9) // the latch is monotonic
	for i := PageNumber(1); i <= 3; i++ {
		if err := j.Record(i, pageImage(byte(i))); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := j.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := OpenJournal(path, 4)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()
	if j2.FirstNewlyAllocedPage() != 30 {
		t.Fatalf("first newly alloced %d, want 30", j2.FirstNewlyAllocedPage())
	}
	if j2.NumRecorded() != 3 {
		t.Fatalf("recorded %d, want 3", j2.NumRecorded())
	}
	batch, err := j2.BatchGetOriginalPages(0)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(batch) != 3 || batch[2].Image[0] != 3 {
		t.Fatal("persisted pre-images lost across reopen")
	}
}

func TestJournalClearResetsEpoch(t *testing.T) {
	j, _ := newTestJournal(t, 4)

	j.MaybeSetFirstNewlyAllocedPage(12)
	if err := j.Record(3, pageImage(3)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := j.Persist(); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if err := j.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !j.IsEmpty() {
		t.Fatal("journal not empty after clear")
	}
	n, err := j.file.NumPages()
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	if n != 0 {
		t.Fatalf("journal file holds %d pages after clear", n)
	}
}
