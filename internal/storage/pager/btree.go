package pager

import "fmt"

// ───────────────────────────────────────────────────────────────────────────
// B+Tree
// ───────────────────────────────────────────────────────────────────────────
//
// A BTree is a short-lived view over the pager, bound to a table's root
// page and primary-key type. Operations take serialized-byte keys; a leaf
// cell's payload is the full row with the key bytes at the front.
//
// Descent records the path of (page, child index) pairs from the root down
// to the leaf's parent, which the rebalancing machinery climbs back up when
// a leaf operation changes the shape of the tree.

// BTree operates on one table's primary-key tree.
type BTree struct {
	pager   *Pager
	root    PageNumber
	keyType DataType
}

// OpenTree binds a tree view to a root page and key type.
func OpenTree(p *Pager, root PageNumber, keyType DataType) *BTree {
	return &BTree{pager: p, root: root, keyType: keyType}
}

// Root returns the root page number. It never changes for the lifetime of
// a table: splits and collapses rewrite the root page in place.
func (bt *BTree) Root() PageNumber { return bt.root }

// maxTreeHeight guards descent against reference cycles in a corrupted
// file. A tree of this height is unreachable with 4 KiB pages.
const maxTreeHeight = 64

// pathEntry is one descent step: the internal page visited and the child
// index taken out of it.
type pathEntry struct {
	page     PageNumber
	childIdx int
}

// descend walks from the root to the leaf responsible for key.
func (bt *BTree) descend(key []byte) (path []pathEntry, leafNum PageNumber, leaf *TreePage, slot int, found bool, err error) {
	page := bt.root
	for depth := 0; ; depth++ {
		if depth > maxTreeHeight {
			return nil, 0, nil, 0, false, fmt.Errorf("%w: descent exceeded height %d", ErrCorruptedPage, maxTreeHeight)
		}
		tp, err := bt.pager.GetTreePage(page)
		if err != nil {
			return nil, 0, nil, 0, false, err
		}
		if tp.IsLeaf() {
			slot, found := tp.searchCells(bt.keyType, key)
			return path, page, tp, slot, found, nil
		}
		// Keys equal to a divider live in its left subtree, so descent
		// takes the first slot whose divider is ≥ the target.
		idx, _ := tp.searchCells(bt.keyType, key)
		path = append(path, pathEntry{page: page, childIdx: idx})
		page = tp.childAt(idx)
	}
}

// Search returns the payload of the row stored under key.
func (bt *BTree) Search(key []byte) ([]byte, error) {
	_, _, leaf, slot, found, err := bt.descend(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	return leaf.Cells[slot].Payload, nil
}

// validateCell bounds-checks a row payload before it enters the tree.
func (bt *BTree) validateCell(key, payload []byte) error {
	if len(key) > MaxKeySize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrKeyTooLong, len(key), MaxKeySize)
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrRowTooBig, len(payload), MaxPayloadSize)
	}
	return nil
}

// Insert adds a new row. The payload must begin with the serialized key.
func (bt *BTree) Insert(key, payload []byte) error {
	if err := bt.validateCell(key, payload); err != nil {
		return err
	}
	path, leafNum, leaf, slot, found, err := bt.descend(key)
	if err != nil {
		return err
	}
	if found {
		return ErrDuplicateKey
	}
	return bt.balance(leafNum, leaf, path, leafOp{
		kind: leafOpInsert,
		cell: Cell{Payload: append([]byte(nil), payload...)},
		slot: slot,
	})
}

// Update replaces the row stored under key.
func (bt *BTree) Update(key, payload []byte) error {
	if err := bt.validateCell(key, payload); err != nil {
		return err
	}
	path, leafNum, leaf, slot, found, err := bt.descend(key)
	if err != nil {
		return err
	}
	if !found {
		return ErrKeyNotFound
	}
	return bt.balance(leafNum, leaf, path, leafOp{
		kind: leafOpUpdate,
		cell: Cell{Payload: append([]byte(nil), payload...)},
		slot: slot,
	})
}

// Delete removes the row stored under key.
func (bt *BTree) Delete(key []byte) error {
	path, leafNum, leaf, slot, found, err := bt.descend(key)
	if err != nil {
		return err
	}
	if !found {
		return ErrKeyNotFound
	}
	return bt.balance(leafNum, leaf, path, leafOp{kind: leafOpDelete, slot: slot})
}

// leftmostLeaf descends to the first leaf in key order.
func (bt *BTree) leftmostLeaf() (PageNumber, *TreePage, error) {
	page := bt.root
	for depth := 0; ; depth++ {
		if depth > maxTreeHeight {
			return 0, nil, fmt.Errorf("%w: descent exceeded height %d", ErrCorruptedPage, maxTreeHeight)
		}
		tp, err := bt.pager.GetTreePage(page)
		if err != nil {
			return 0, nil, err
		}
		if tp.IsLeaf() {
			return page, tp, nil
		}
		page = tp.childAt(0)
	}
}

// Scan walks every row left to right along the leaf chain, calling fn with
// each cell payload until fn returns false or the chain ends.
func (bt *BTree) Scan(fn func(payload []byte) bool) error {
	page, leaf, err := bt.leftmostLeaf()
	if err != nil {
		return err
	}
	for {
		for i := range leaf.Cells {
			if !fn(leaf.Cells[i].Payload) {
				return nil
			}
		}
		if leaf.Right == 0 {
			return nil
		}
		page = leaf.Right
		leaf, err = bt.pager.GetTreePage(page)
		if err != nil {
			return err
		}
		if !leaf.IsLeaf() {
			return fmt.Errorf("%w: leaf chain reached internal page %d", ErrCorruptedPage, page)
		}
	}
}

// Count returns the number of rows by walking the leaf chain.
func (bt *BTree) Count() (int, error) {
	n := 0
	err := bt.Scan(func([]byte) bool { n++; return true })
	return n, err
}

// Height returns the number of levels from root to leaf.
func (bt *BTree) Height() (int, error) {
	h := 1
	page := bt.root
	for {
		tp, err := bt.pager.GetTreePage(page)
		if err != nil {
			return 0, err
		}
		if tp.IsLeaf() {
			return h, nil
		}
		h++
		page = tp.childAt(0)
		if h > maxTreeHeight {
			return 0, fmt.Errorf("%w: height exceeds %d", ErrCorruptedPage, maxTreeHeight)
		}
	}
}
