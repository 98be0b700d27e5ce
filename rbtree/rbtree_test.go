// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rbtree_test

import (
	"math/rand/v2"
	"sort"
	"testing"
	"testing/quick"

	"code.hybscloud.com/libos/rbtree"
)

type item struct {
	node  rbtree.Node[*item]
	key   int
	seq   int
	size  int
	min   int
	stamp uint64
}

func newItem(key, seq int) *item {
	it := &item{key: key, seq: seq}
	it.node.Value = it
	return it
}

// sizeOps maintains subtree size and minimum key, and checks on every
// Update that both children were refreshed before their parent.
type sizeOps struct {
	t       *testing.T
	counter uint64
	calls   int
}

func (o *sizeOps) Less(a, b *rbtree.Node[*item]) bool {
	return a.Value.key < b.Value.key
}

func (o *sizeOps) Update(n *rbtree.Node[*item]) {
	o.calls++
	o.counter++
	it := n.Value
	it.size = 1
	it.min = it.key
	for _, c := range []*rbtree.Node[*item]{n.Left(), n.Right()} {
		if c == nil {
			continue
		}
		if !consistent(c) {
			o.t.Fatalf("child %d refreshed after parent %d", c.Value.key, it.key)
		}
		if c.Value.stamp == 0 {
			o.t.Fatalf("child %d never stamped before parent %d", c.Value.key, it.key)
		}
		it.size += c.Value.size
		if c.Value.min < it.min {
			it.min = c.Value.min
		}
	}
	it.stamp = o.counter
}

func consistent(n *rbtree.Node[*item]) bool {
	want := 1
	if l := n.Left(); l != nil {
		want += l.Value.size
	}
	if r := n.Right(); r != nil {
		want += r.Value.size
	}
	return n.Value.size == want
}

// blackHeight returns the black-height of n, or -1 on any violation.
func blackHeight(n *rbtree.Node[*item]) int {
	if n == nil {
		return 1
	}
	if n.Color() == rbtree.Red {
		for _, c := range []*rbtree.Node[*item]{n.Left(), n.Right()} {
			if c != nil && c.Color() == rbtree.Red {
				return -1
			}
		}
	}
	for _, c := range []*rbtree.Node[*item]{n.Left(), n.Right()} {
		if c != nil && c.Parent() != n {
			return -1
		}
	}
	l := blackHeight(n.Left())
	r := blackHeight(n.Right())
	if l < 0 || r < 0 || l != r {
		return -1
	}
	if n.Color() == rbtree.Black {
		return l + 1
	}
	return l
}

func checkTree(t *testing.T, tr *rbtree.Tree[*item], want int) {
	t.Helper()
	if tr.Len() != want {
		t.Fatalf("Len got %d, want %d", tr.Len(), want)
	}
	root := tr.Root()
	if root != nil && root.Color() != rbtree.Black {
		t.Fatal("root is red")
	}
	if blackHeight(root) < 0 {
		t.Fatal("red-black invariant violated")
	}
	if root != nil && root.Value.size != want {
		t.Fatalf("root aggregate size got %d, want %d", root.Value.size, want)
	}
	n := 0
	prev := -1 << 62
	tr.Walk(func(nd *rbtree.Node[*item]) bool {
		if nd.Value.key < prev {
			t.Fatalf("walk out of order: %d after %d", nd.Value.key, prev)
		}
		if !consistent(nd) {
			t.Fatalf("stale aggregate at %d", nd.Value.key)
		}
		prev = nd.Value.key
		n++
		return true
	})
	if n != want {
		t.Fatalf("walk visited %d, want %d", n, want)
	}
	if root != nil && root.Value.min != tr.Min().Value.key {
		t.Fatalf("root min aggregate %d, want %d", root.Value.min, tr.Min().Value.key)
	}
}

func TestInsertRemoveAscending(t *testing.T) {
	ops := &sizeOps{t: t}
	var tr rbtree.Tree[*item]
	tr.Init(ops)
	items := make([]*item, 256)
	for i := range items {
		items[i] = newItem(i, i)
		tr.Insert(&items[i].node)
		checkTree(t, &tr, i+1)
	}
	for i, it := range items {
		tr.Remove(&it.node)
		if it.node.Linked() {
			t.Fatalf("node %d still linked after Remove", it.key)
		}
		checkTree(t, &tr, len(items)-i-1)
	}
	if !tr.Empty() || tr.Root() != nil || tr.Min() != nil || tr.Max() != nil {
		t.Fatal("tree not empty after removing everything")
	}
}

func TestRemoveTwoChildrenSplicesSuccessor(t *testing.T) {
	ops := &sizeOps{t: t}
	tr := rbtree.New[*item](ops)
	items := map[int]*item{}
	for _, k := range []int{50, 30, 70, 20, 40, 60, 80} {
		items[k] = newItem(k, k)
		tr.Insert(&items[k].node)
	}
	root := tr.Root()
	if root.Value.key != 50 {
		t.Fatalf("root got %d, want 50", root.Value.key)
	}
	tr.Remove(&items[50].node)
	if got := tr.Root().Value.key; got != 60 {
		t.Fatalf("successor not spliced into root: got %d, want 60", got)
	}
	if items[50].node.Linked() {
		t.Fatal("removed node still linked")
	}
	checkTree(t, tr, 6)

	// the freed node is reusable immediately
	tr.Insert(&items[50].node)
	checkTree(t, tr, 7)
}

func TestEqualKeysFIFO(t *testing.T) {
	ops := &sizeOps{t: t}
	tr := rbtree.New[*item](ops)
	for i := range 32 {
		tr.Insert(&newItem(i%4, i).node)
	}
	lastSeq := map[int]int{}
	tr.Walk(func(n *rbtree.Node[*item]) bool {
		if s, ok := lastSeq[n.Value.key]; ok && n.Value.seq < s {
			t.Fatalf("key %d: seq %d after %d", n.Value.key, n.Value.seq, s)
		}
		lastSeq[n.Value.key] = n.Value.seq
		return true
	})
}

func TestNextPrev(t *testing.T) {
	ops := &sizeOps{t: t}
	tr := rbtree.New[*item](ops)
	for _, k := range []int{5, 1, 9, 3, 7} {
		tr.Insert(&newItem(k, k).node)
	}
	var fwd []int
	for n := tr.Min(); n != nil; n = tr.Next(n) {
		fwd = append(fwd, n.Value.key)
	}
	var back []int
	for n := tr.Max(); n != nil; n = tr.Prev(n) {
		back = append(back, n.Value.key)
	}
	want := []int{1, 3, 5, 7, 9}
	for i := range want {
		if fwd[i] != want[i] || back[len(want)-1-i] != want[i] {
			t.Fatalf("traversal got fwd=%v back=%v, want %v", fwd, back, want)
		}
	}

	stopped := 0
	tr.Walk(func(*rbtree.Node[*item]) bool {
		stopped++
		return stopped < 2
	})
	if stopped != 2 {
		t.Fatalf("Walk did not stop: visited %d", stopped)
	}
}

func TestInsertAt(t *testing.T) {
	ops := &sizeOps{t: t}
	tr := rbtree.New[*item](ops)
	a := newItem(10, 0)
	tr.InsertAt(nil, false, &a.node)
	b := newItem(5, 1)
	tr.InsertAt(&a.node, true, &b.node)
	c := newItem(1, 2)
	tr.InsertAt(&b.node, true, &c.node)
	checkTree(t, tr, 3)
	if tr.Root().Value.key != 5 {
		t.Fatalf("root got %d, want 5 after rebalance", tr.Root().Value.key)
	}
}

func TestRotationUpdatesChildFirst(t *testing.T) {
	ops := &sizeOps{t: t}
	tr := rbtree.New[*item](ops)
	// ascending inserts force a rotation on almost every step
	for i := range 64 {
		before := ops.calls
		tr.Insert(&newItem(i, i).node)
		if ops.calls == before {
			t.Fatalf("insert %d made no Update calls", i)
		}
	}
	checkTree(t, tr, 64)
}

// TestPropertyRandomOps proves that for any sequence of inserts and
// removals the tree stays sorted, balanced, and aggregate-exact.
func TestPropertyRandomOps(t *testing.T) {
	property := func(seed uint64, nops uint16) bool {
		r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		ops := &sizeOps{t: t}
		tr := rbtree.New[*item](ops)
		var live []*item
		for i := range int(nops%512) + 1 {
			if len(live) > 0 && r.IntN(3) == 0 {
				j := r.IntN(len(live))
				tr.Remove(&live[j].node)
				live[j] = live[len(live)-1]
				live = live[:len(live)-1]
			} else {
				it := newItem(r.IntN(64), i)
				tr.Insert(&it.node)
				live = append(live, it)
			}
			if blackHeight(tr.Root()) < 0 || tr.Len() != len(live) {
				return false
			}
		}
		keys := make([]int, 0, len(live))
		for _, it := range live {
			keys = append(keys, it.key)
		}
		sort.Ints(keys)
		i := 0
		ok := true
		tr.Walk(func(n *rbtree.Node[*item]) bool {
			if n.Value.key != keys[i] || !consistent(n) {
				ok = false
				return false
			}
			i++
			return true
		})
		return ok && i == len(keys)
	}
	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

func TestColorString(t *testing.T) {
	if rbtree.Red.String() != "red" || rbtree.Black.String() != "black" {
		t.Fatalf("unexpected color names %q %q", rbtree.Red, rbtree.Black)
	}
}

func BenchmarkInsertRemove(b *testing.B) {
	ops := &benchOps{}
	tr := rbtree.New[*item](ops)
	items := make([]*item, 1024)
	for i := range items {
		items[i] = newItem(int(uint32(i)*2654435761%1024), i)
	}
	b.ReportAllocs()
	for b.Loop() {
		for _, it := range items {
			tr.Insert(&it.node)
		}
		for _, it := range items {
			tr.Remove(&it.node)
		}
	}
}

type benchOps struct{}

func (benchOps) Less(a, b *rbtree.Node[*item]) bool { return a.Value.key < b.Value.key }
func (benchOps) Update(*rbtree.Node[*item])         {}
