// Package pager implements the storage and indexing core of a single-node
// embedded relational database: a fixed-page file manager with a rollback
// journal, a buffer pool with a freelist allocator, and a slotted-page
// B+Tree supporting variable-length keys and values with full rebalancing.
//
// The storage format is a main database file of fixed 4096-byte pages and a
// sidecar journal file holding pre-images of modified pages. Page 0 of the
// database file is the metadata page (allocator state + table catalog);
// every other page is a B+Tree node, a freelist node, or an overflow page.
// Crash recovery rolls the journal back on open.
package pager

import (
	"encoding/binary"
	"fmt"
)

// ───────────────────────────────────────────────────────────────────────────
// Constants
// ───────────────────────────────────────────────────────────────────────────

const (
	// PageSize is the fixed size of every page in bytes. It is a
	// structural constant baked into every page layout; changing it is an
	// on-disk format change.
	PageSize = 4096

	// treeHeaderSize is the header of a slotted B+Tree page:
	//   [0:2]   NumSlots        (uint16 LE)
	//   [2:4]   LastUsedOffset  (uint16 LE, within the content area)
	//   [4:8]   RightChild      (uint32 LE, 0 ⇒ leaf)
	//   [8:12]  Left            (uint32 LE, leaf sibling)
	//   [12:16] Right           (uint32 LE, leaf sibling)
	//   [16:18] ContentSize     (uint16 LE, bytes in use)
	treeHeaderSize = 18

	// ContentMaxSize is the usable content area of a slotted page: the
	// slot array grows from its start, cells grow down from its end.
	ContentMaxSize = PageSize - treeHeaderSize // 4078

	// cellHeaderSize precedes every cell payload:
	//   [0:2] Size      (uint16 LE, total cell size = 6 + len(payload))
	//   [2:6] LeftChild (uint32 LE, 0 in leaves)
	cellHeaderSize = 6

	// slotSize is the width of one slot-array entry (a uint16 offset).
	slotSize = 2

	// MaxPayloadSize bounds a single cell payload: one cell plus its slot
	// must fit the content area.
	MaxPayloadSize = ContentMaxSize - slotSize - cellHeaderSize // 4070

	// MaxKeySize bounds a serialized key. Two divider cells must always
	// fit one internal page so that splits never produce a node with a
	// single child.
	MaxKeySize = (ContentMaxSize - 2*slotSize - 2*cellHeaderSize) / 2 // 2031

	// metadataTablesMax is the room for the serialized table catalog on
	// page 0 after the four uint32 header fields.
	metadataTablesMax = PageSize - 16 // 4080

	// overflowContentMax is the payload capacity of one overflow page.
	overflowContentMax = PageSize - 6 // 4090
)

// PageNumber identifies a page by its position in the database file.
// Page 0 is always the metadata page; 0 therefore doubles as the null
// page pointer everywhere a reference is optional.
type PageNumber = uint32

// ───────────────────────────────────────────────────────────────────────────
// Page values
// ───────────────────────────────────────────────────────────────────────────
//
// Reads yield values, writes take values: a page fetched from the pager is
// a deserialized copy of the cached 4 KiB image, never a borrow into the
// cache. Mutations are routed back through UpdatePage, which re-serializes
// and journals the pre-image on first modification.

// PageValue is the typed in-memory image of one on-disk page.
type PageValue interface {
	// encodePage serializes the value into a zeroed PageSize buffer.
	encodePage(buf []byte)
}

// Cell is a variable-length record inside a slotted page: in a leaf the
// payload is a full row (key bytes first), in an internal node it is a
// serialized divider key with LeftChild pointing at the subtree holding
// keys ≤ that divider.
type Cell struct {
	LeftChild PageNumber
	Payload   []byte
}

// diskSize is the cell's on-page footprint excluding its slot entry.
func (c *Cell) diskSize() int { return cellHeaderSize + len(c.Payload) }

// TreePage is a slotted B+Tree page, leaf or internal.
type TreePage struct {
	// RightChild is the rightmost subtree pointer; zero marks a leaf.
	RightChild PageNumber
	// Left and Right are the leaf sibling links (zero in internal pages).
	Left  PageNumber
	Right PageNumber
	// Cells are in slot order, ascending by key.
	Cells []Cell
}

// IsLeaf reports whether the page is a leaf.
func (tp *TreePage) IsLeaf() bool { return tp.RightChild == 0 }

// NumSlots returns the slot count.
func (tp *TreePage) NumSlots() int { return len(tp.Cells) }

// contentSize is the exact number of content-area bytes in use:
// one slot per cell plus every cell's on-page footprint.
func (tp *TreePage) contentSize() int {
	n := len(tp.Cells) * slotSize
	for i := range tp.Cells {
		n += tp.Cells[i].diskSize()
	}
	return n
}

// overflows reports whether the page no longer fits its content area.
func (tp *TreePage) overflows() bool { return tp.contentSize() > ContentMaxSize }

func (tp *TreePage) encodePage(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(tp.Cells)))
	binary.LittleEndian.PutUint32(buf[4:8], tp.RightChild)
	binary.LittleEndian.PutUint32(buf[8:12], tp.Left)
	binary.LittleEndian.PutUint32(buf[12:16], tp.Right)
	binary.LittleEndian.PutUint16(buf[16:18], uint16(tp.contentSize()))

	content := buf[treeHeaderSize:]
	off := ContentMaxSize
	for i := range tp.Cells {
		c := &tp.Cells[i]
		off -= c.diskSize()
		binary.LittleEndian.PutUint16(content[off:], uint16(c.diskSize()))
		binary.LittleEndian.PutUint32(content[off+2:], c.LeftChild)
		copy(content[off+cellHeaderSize:], c.Payload)
		binary.LittleEndian.PutUint16(content[i*slotSize:], uint16(off))
	}
	binary.LittleEndian.PutUint16(buf[2:4], uint16(off))
}

// decodeTreePage validates and deserializes a slotted page image.
func decodeTreePage(buf []byte) (*TreePage, error) {
	numSlots := int(binary.LittleEndian.Uint16(buf[0:2]))
	lastUsed := int(binary.LittleEndian.Uint16(buf[2:4]))
	contentSize := int(binary.LittleEndian.Uint16(buf[16:18]))

	if numSlots*slotSize > ContentMaxSize || contentSize > ContentMaxSize {
		return nil, fmt.Errorf("%w: slot count %d / content size %d", ErrCorruptedPage, numSlots, contentSize)
	}

	tp := &TreePage{
		RightChild: binary.LittleEndian.Uint32(buf[4:8]),
		Left:       binary.LittleEndian.Uint32(buf[8:12]),
		Right:      binary.LittleEndian.Uint32(buf[12:16]),
	}
	content := buf[treeHeaderSize:]
	used := numSlots * slotSize
	minOff := ContentMaxSize
	tp.Cells = make([]Cell, numSlots)
	for i := 0; i < numSlots; i++ {
		off := int(binary.LittleEndian.Uint16(content[i*slotSize:]))
		if off < numSlots*slotSize || off+cellHeaderSize > ContentMaxSize {
			return nil, fmt.Errorf("%w: slot %d offset %d", ErrCorruptedPage, i, off)
		}
		size := int(binary.LittleEndian.Uint16(content[off:]))
		if size < cellHeaderSize || off+size > ContentMaxSize {
			return nil, fmt.Errorf("%w: slot %d cell size %d", ErrCorruptedPage, i, size)
		}
		payload := make([]byte, size-cellHeaderSize)
		copy(payload, content[off+cellHeaderSize:off+size])
		tp.Cells[i] = Cell{
			LeftChild: binary.LittleEndian.Uint32(content[off+2:]),
			Payload:   payload,
		}
		used += size
		if off < minOff {
			minOff = off
		}
	}
	if used != contentSize {
		return nil, fmt.Errorf("%w: content size %d, cells occupy %d", ErrCorruptedPage, contentSize, used)
	}
	if numSlots > 0 && minOff != lastUsed {
		return nil, fmt.Errorf("%w: last used offset %d, lowest cell at %d", ErrCorruptedPage, lastUsed, minOff)
	}
	return tp, nil
}

// FreePage is a node on the free list: only the next pointer matters.
type FreePage struct {
	Next PageNumber
}

func (fp *FreePage) encodePage(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], fp.Next)
}

func decodeFreePage(buf []byte) (*FreePage, error) {
	return &FreePage{Next: binary.LittleEndian.Uint32(buf[0:4])}, nil
}

// OverflowPage chains payload bytes that do not fit inline. The variant is
// reserved: the rebalancing algorithms never emit one, oversized cells are
// rejected up front instead.
type OverflowPage struct {
	Next    PageNumber
	Content []byte
}

func (op *OverflowPage) encodePage(buf []byte) {
	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(op.Content)))
	binary.LittleEndian.PutUint32(buf[2:6], op.Next)
	copy(buf[6:], op.Content)
}

func decodeOverflowPage(buf []byte) (*OverflowPage, error) {
	size := int(binary.LittleEndian.Uint16(buf[0:2]))
	if size > overflowContentMax {
		return nil, fmt.Errorf("%w: overflow content size %d", ErrCorruptedPage, size)
	}
	content := make([]byte, size)
	copy(content, buf[6:6+size])
	return &OverflowPage{
		Next:    binary.LittleEndian.Uint32(buf[2:6]),
		Content: content,
	}, nil
}

// encodeToPage serializes any page value into a fresh zeroed page buffer.
func encodeToPage(v PageValue) []byte {
	buf := make([]byte, PageSize)
	v.encodePage(buf)
	return buf
}
