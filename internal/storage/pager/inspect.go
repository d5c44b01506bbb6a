package pager

import (
	"fmt"
	"io"
	"strings"
)

// ───────────────────────────────────────────────────────────────────────────
// Inspection & verification
// ───────────────────────────────────────────────────────────────────────────
//
// Validate walks every table tree and the freelist against the structural
// invariants: slot ordering, divider bounds, uniform leaf depth, the leaf
// sibling chain, and full page accounting (every page reachable from a
// root or on the freelist, never both). Dump renders the same walk for
// humans.

// TreeStats summarizes one table's tree.
type TreeStats struct {
	Height        int
	InternalPages int
	LeafPages     int
	Cells         int
	FreeBytes     int
}

// Stats walks the tree and reports its shape.
func (bt *BTree) Stats() (TreeStats, error) {
	var st TreeStats
	err := bt.walkStats(bt.root, 1, &st)
	return st, err
}

func (bt *BTree) walkStats(page PageNumber, depth int, st *TreeStats) error {
	tp, err := bt.pager.GetTreePage(page)
	if err != nil {
		return err
	}
	if depth > st.Height {
		st.Height = depth
	}
	st.FreeBytes += ContentMaxSize - tp.contentSize()
	if tp.IsLeaf() {
		st.LeafPages++
		st.Cells += len(tp.Cells)
		return nil
	}
	st.InternalPages++
	for i := 0; i < tp.numChildren(); i++ {
		if err := bt.walkStats(tp.childAt(i), depth+1, st); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the whole database's structural invariants.
func (db *DB) Validate() error {
	m := db.pager.Metadata()

	reachable := map[PageNumber]struct{}{}
	for i := range m.Tables {
		t := &m.Tables[i]
		bt := db.OpenTree(t.RootPage, t.KeyType())
		v := &treeValidator{bt: bt, reachable: reachable}
		if err := v.validate(); err != nil {
			return fmt.Errorf("table %q: %w", t.Name, err)
		}
	}

	free := map[PageNumber]struct{}{}
	page := m.FirstFreePage
	for page != 0 {
		if page >= m.TotalPages {
			return fmt.Errorf("freelist page %d beyond total pages %d", page, m.TotalPages)
		}
		if _, dup := free[page]; dup {
			return fmt.Errorf("freelist cycles at page %d", page)
		}
		if _, used := reachable[page]; used {
			return fmt.Errorf("page %d is both reachable and free", page)
		}
		free[page] = struct{}{}
		fp, err := db.pager.GetFreePage(page)
		if err != nil {
			return err
		}
		page = fp.Next
	}
	if uint32(len(free)) != m.FreePages {
		return fmt.Errorf("freelist holds %d pages, metadata says %d", len(free), m.FreePages)
	}

	if got := uint32(len(reachable)+len(free)) + 1; got != m.TotalPages {
		return fmt.Errorf("page accounting: %d reachable + %d free + metadata = %d, total is %d",
			len(reachable), len(free), got, m.TotalPages)
	}
	return nil
}

type treeValidator struct {
	bt        *BTree
	reachable map[PageNumber]struct{}
	leaves    []PageNumber // filled left-to-right by the structural walk
	leafDepth int
}

func (v *treeValidator) validate() error {
	if err := v.walk(v.bt.root, 1, nil, nil); err != nil {
		return err
	}
	return v.checkLeafChain()
}

// walk checks one subtree: slot ordering, divider bounds (lower exclusive,
// upper inclusive), uniform leaf depth, and records reachability.
func (v *treeValidator) walk(page PageNumber, depth int, lower, upper []byte) error {
	if _, dup := v.reachable[page]; dup {
		return fmt.Errorf("page %d reached twice", page)
	}
	v.reachable[page] = struct{}{}

	tp, err := v.bt.pager.GetTreePage(page)
	if err != nil {
		return err
	}
	if tp.contentSize() > ContentMaxSize {
		return fmt.Errorf("page %d content %d exceeds %d", page, tp.contentSize(), ContentMaxSize)
	}

	dt := v.bt.keyType
	var prev []byte
	for i := range tp.Cells {
		kb, err := keyBytes(dt, tp.Cells[i].Payload)
		if err != nil {
			return fmt.Errorf("page %d slot %d: %w", page, i, err)
		}
		if prev != nil && compareKeys(dt, prev, kb) >= 0 {
			return fmt.Errorf("page %d: slots %d and %d out of order", page, i-1, i)
		}
		if lower != nil && compareKeys(dt, kb, lower) <= 0 {
			return fmt.Errorf("page %d slot %d: key ≤ lower bound", page, i)
		}
		if upper != nil && compareKeys(dt, kb, upper) > 0 {
			return fmt.Errorf("page %d slot %d: key above divider", page, i)
		}
		prev = kb
	}

	if tp.IsLeaf() {
		if v.leafDepth == 0 {
			v.leafDepth = depth
		} else if depth != v.leafDepth {
			return fmt.Errorf("leaf %d at depth %d, expected %d", page, depth, v.leafDepth)
		}
		v.leaves = append(v.leaves, page)
		return nil
	}

	if page != v.bt.root && len(tp.Cells) == 0 {
		return fmt.Errorf("non-root internal page %d has a single child", page)
	}

	childLower := lower
	for i := range tp.Cells {
		divider, err := keyBytes(dt, tp.Cells[i].Payload)
		if err != nil {
			return err
		}
		if err := v.walk(tp.Cells[i].LeftChild, depth+1, childLower, divider); err != nil {
			return err
		}
		childLower = divider
	}
	return v.walk(tp.RightChild, depth+1, childLower, upper)
}

// checkLeafChain verifies the doubly-linked leaf list matches the
// structural left-to-right order exactly.
func (v *treeValidator) checkLeafChain() error {
	for i, page := range v.leaves {
		tp, err := v.bt.pager.GetTreePage(page)
		if err != nil {
			return err
		}
		wantLeft, wantRight := PageNumber(0), PageNumber(0)
		if i > 0 {
			wantLeft = v.leaves[i-1]
		}
		if i < len(v.leaves)-1 {
			wantRight = v.leaves[i+1]
		}
		if tp.Left != wantLeft {
			return fmt.Errorf("leaf %d: left link %d, want %d", page, tp.Left, wantLeft)
		}
		if tp.Right != wantRight {
			return fmt.Errorf("leaf %d: right link %d, want %d", page, tp.Right, wantRight)
		}
	}
	return nil
}

// Dump writes a human-readable rendering of the database structure.
func (db *DB) Dump(w io.Writer) error {
	m := db.pager.Metadata()
	fmt.Fprintf(w, "pages: %d total, %d free (freelist head %d)\n", m.TotalPages, m.FreePages, m.FirstFreePage)
	for i := range m.Tables {
		t := &m.Tables[i]
		cols := make([]string, len(t.Columns))
		for j, c := range t.Columns {
			cols[j] = fmt.Sprintf("%s %s", c.Name, c.Type)
		}
		fmt.Fprintf(w, "table %q (%s) root=%d id=%s\n", t.Name, strings.Join(cols, ", "), t.RootPage, t.ID)
		bt := db.OpenTree(t.RootPage, t.KeyType())
		if err := dumpSubtree(w, bt, t.RootPage, 1); err != nil {
			return err
		}
	}
	return nil
}

func dumpSubtree(w io.Writer, bt *BTree, page PageNumber, depth int) error {
	tp, err := bt.pager.GetTreePage(page)
	if err != nil {
		return err
	}
	indent := strings.Repeat("  ", depth)
	if tp.IsLeaf() {
		fmt.Fprintf(w, "%sleaf %d: %d cells, %d bytes, left=%d right=%d\n",
			indent, page, len(tp.Cells), tp.contentSize(), tp.Left, tp.Right)
		return nil
	}
	fmt.Fprintf(w, "%sinternal %d: %d dividers, right-child=%d\n", indent, page, len(tp.Cells), tp.RightChild)
	for i := 0; i < tp.numChildren(); i++ {
		if err := dumpSubtree(w, bt, tp.childAt(i), depth+1); err != nil {
			return err
		}
	}
	return nil
}
