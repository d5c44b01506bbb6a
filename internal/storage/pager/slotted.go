package pager

// ───────────────────────────────────────────────────────────────────────────
// Slotted-page cell operations
// ───────────────────────────────────────────────────────────────────────────
//
// TreePage is a value, so cell operations are slice manipulation plus a
// space check against the content area. Slots stay ordered by key; a
// mutation that would overflow the content area reports errPageOverflow
// and leaves the page untouched, which is the signal that drives
// rebalancing.

// searchCells binary-searches the page's cells for a serialized key.
// It returns the slot holding the key (found=true), or the slot at which
// the key would be inserted (found=false).
func (tp *TreePage) searchCells(dt DataType, key []byte) (int, bool) {
	lo, hi := 0, len(tp.Cells)
	for lo < hi {
		mid := (lo + hi) / 2
		if compareKeys(dt, tp.Cells[mid].Payload, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(tp.Cells) && compareKeys(dt, tp.Cells[lo].Payload, key) == 0 {
		return lo, true
	}
	return lo, false
}

// childAt returns the subtree pointer for descent position i: the cell's
// left child for i < NumSlots, the page's right child past the last slot.
func (tp *TreePage) childAt(i int) PageNumber {
	if i < len(tp.Cells) {
		return tp.Cells[i].LeftChild
	}
	return tp.RightChild
}

// numChildren counts an internal page's subtree pointers.
func (tp *TreePage) numChildren() int { return len(tp.Cells) + 1 }

// insertCellAt places a cell at slot i, shifting later slots right.
func (tp *TreePage) insertCellAt(i int, c Cell) error {
	if tp.contentSize()+slotSize+c.diskSize() > ContentMaxSize {
		return errPageOverflow
	}
	tp.Cells = append(tp.Cells, Cell{})
	copy(tp.Cells[i+1:], tp.Cells[i:])
	tp.Cells[i] = c
	return nil
}

// updateCellAt replaces the cell at slot i.
func (tp *TreePage) updateCellAt(i int, c Cell) error {
	old := tp.Cells[i]
	if tp.contentSize()-old.diskSize()+c.diskSize() > ContentMaxSize {
		return errPageOverflow
	}
	tp.Cells[i] = c
	return nil
}

// removeCellAt deletes the cell at slot i, shifting later slots left.
func (tp *TreePage) removeCellAt(i int) {
	tp.Cells = append(tp.Cells[:i], tp.Cells[i+1:]...)
}

// clone deep-copies the page so speculative mutations can be discarded.
func (tp *TreePage) clone() *TreePage {
	out := &TreePage{
		RightChild: tp.RightChild,
		Left:       tp.Left,
		Right:      tp.Right,
		Cells:      make([]Cell, len(tp.Cells)),
	}
	for i := range tp.Cells {
		c := tp.Cells[i]
		c.Payload = append([]byte(nil), c.Payload...)
		out.Cells[i] = c
	}
	return out
}
