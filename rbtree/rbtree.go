// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package rbtree

// Color is the color of a tree node.
type Color uint8

const (
	Red Color = iota
	Black
)

func (c Color) String() string {
	if c == Red {
		return "red"
	}
	return "black"
}

// Node is the intrusive link embedded in every ordered object.
// Value is set once by the owner, typically to a pointer back to itself.
type Node[T any] struct {
	left   *Node[T]
	right  *Node[T]
	parent *Node[T]
	color  Color
	isNil  bool
	Value  T
}

// Color returns the node color.
func (n *Node[T]) Color() Color { return n.color }

// IsNil reports whether n is a tree sentinel.
func (n *Node[T]) IsNil() bool { return n.isNil }

// Linked reports whether n is currently linked into a tree.
func (n *Node[T]) Linked() bool { return n.parent != nil }

// Left returns the left child, or nil at a leaf.
func (n *Node[T]) Left() *Node[T] { return visible(n.left) }

// Right returns the right child, or nil at a leaf.
func (n *Node[T]) Right() *Node[T] { return visible(n.right) }

// Parent returns the parent, or nil for the root.
func (n *Node[T]) Parent() *Node[T] { return visible(n.parent) }

func visible[T any](n *Node[T]) *Node[T] {
	if n == nil || n.isNil {
		return nil
	}
	return n
}

// Ops supplies ordering and aggregate maintenance for a tree.
type Ops[T any] interface {
	// Less orders a before b. Equal keys are kept in insertion order.
	Less(a, b *Node[T]) bool
	// Update recomputes the cached aggregate of n from n and its children.
	Update(n *Node[T])
}

// Tree is an intrusive red-black tree.
// A Tree must be initialized with Init and must not be copied afterwards,
// since every leaf points at the sentinel stored inside it.
type Tree[T any] struct {
	sentinel Node[T]
	root     *Node[T]
	ops      Ops[T]
	n        int
}

// New allocates and initializes a tree.
func New[T any](ops Ops[T]) *Tree[T] {
	return new(Tree[T]).Init(ops)
}

// Init resets t to the empty tree ordered by ops.
// Nodes previously linked into t are abandoned, not unlinked.
func (t *Tree[T]) Init(ops Ops[T]) *Tree[T] {
	s := &t.sentinel
	*s = Node[T]{color: Black, isNil: true}
	s.left, s.right, s.parent = s, s, s
	t.root = s
	t.ops = ops
	t.n = 0
	return t
}

// Len returns the number of linked nodes.
func (t *Tree[T]) Len() int { return t.n }

// Empty reports whether the tree holds no nodes.
func (t *Tree[T]) Empty() bool { return t.n == 0 }

// Root returns the root node, or nil if the tree is empty.
func (t *Tree[T]) Root() *Node[T] { return visible(t.root) }

// Min returns the first node in order, or nil.
func (t *Tree[T]) Min() *Node[T] {
	if t.root == &t.sentinel {
		return nil
	}
	return t.min(t.root)
}

// Max returns the last node in order, or nil.
func (t *Tree[T]) Max() *Node[T] {
	if t.root == &t.sentinel {
		return nil
	}
	return t.max(t.root)
}

// Next returns the in-order successor of n, or nil.
func (t *Tree[T]) Next(n *Node[T]) *Node[T] {
	s := &t.sentinel
	if n.right != s {
		return t.min(n.right)
	}
	p := n.parent
	for p != s && n == p.right {
		n = p
		p = p.parent
	}
	return visible(p)
}

// Prev returns the in-order predecessor of n, or nil.
func (t *Tree[T]) Prev(n *Node[T]) *Node[T] {
	s := &t.sentinel
	if n.left != s {
		return t.max(n.left)
	}
	p := n.parent
	for p != s && n == p.left {
		n = p
		p = p.parent
	}
	return visible(p)
}

// Walk calls fn for each node in order until fn returns false.
// fn must not modify the tree.
func (t *Tree[T]) Walk(fn func(n *Node[T]) bool) {
	for n := t.Min(); n != nil; n = t.Next(n) {
		if !fn(n) {
			return
		}
	}
}

func (t *Tree[T]) min(n *Node[T]) *Node[T] {
	for n.left != &t.sentinel {
		n = n.left
	}
	return n
}

func (t *Tree[T]) max(n *Node[T]) *Node[T] {
	for n.right != &t.sentinel {
		n = n.right
	}
	return n
}

// Insert links n in order and rebalances.
// Among equal keys n is placed after the existing ones.
func (t *Tree[T]) Insert(n *Node[T]) {
	s := &t.sentinel
	p := s
	left := false
	for x := t.root; x != s; {
		p = x
		left = t.ops.Less(n, x)
		if left {
			x = x.left
		} else {
			x = x.right
		}
	}
	t.InsertAt(p, left, n)
}

// InsertAt links n as the left or right child of parent, which must
// currently be a leaf on that side, and rebalances. A nil parent links
// n as the root of an empty tree. Callers that already performed the
// ordered descent use InsertAt directly.
func (t *Tree[T]) InsertAt(parent *Node[T], left bool, n *Node[T]) {
	s := &t.sentinel
	if parent == nil {
		parent = s
	}
	n.left, n.right = s, s
	n.color = Red
	n.parent = parent
	switch {
	case parent == s:
		t.root = n
	case left:
		parent.left = n
	default:
		parent.right = n
	}
	t.n++
	t.propagate(n)
	t.insertFixup(n)
}

func (t *Tree[T]) insertFixup(z *Node[T]) {
	for z.parent.color == Red {
		p := z.parent
		g := p.parent
		if p == g.left {
			u := g.right
			if u.color == Red {
				p.color = Black
				u.color = Black
				g.color = Red
				z = g
				continue
			}
			if z == p.right {
				z = p
				t.rotateLeft(z)
				p = z.parent
			}
			p.color = Black
			g.color = Red
			t.rotateRight(g)
		} else {
			u := g.left
			if u.color == Red {
				p.color = Black
				u.color = Black
				g.color = Red
				z = g
				continue
			}
			if z == p.left {
				z = p
				t.rotateRight(z)
				p = z.parent
			}
			p.color = Black
			g.color = Red
			t.rotateLeft(g)
		}
	}
	t.root.color = Black
}

// Remove unlinks n and rebalances. If n has two children its in-order
// successor takes over n's position and color; n itself is left
// unlinked and free for reuse.
func (t *Tree[T]) Remove(n *Node[T]) {
	s := &t.sentinel
	var x *Node[T]
	col := n.color
	switch {
	case n.left == s:
		x = n.right
		t.transplant(n, n.right)
	case n.right == s:
		x = n.left
		t.transplant(n, n.left)
	default:
		y := t.min(n.right)
		col = y.color
		x = y.right
		if y.parent == n {
			x.parent = y
		} else {
			t.transplant(y, y.right)
			y.right = n.right
			y.right.parent = y
		}
		t.transplant(n, y)
		y.left = n.left
		y.left.parent = y
		y.color = n.color
	}
	t.n--
	t.propagate(x.parent)
	if col == Black {
		t.removeFixup(x)
	}
	n.left, n.right, n.parent = nil, nil, nil
	// x may be the sentinel; restore its self links.
	s.parent = s
}

func (t *Tree[T]) removeFixup(x *Node[T]) {
	for x != t.root && x.color == Black {
		p := x.parent
		if x == p.left {
			w := p.right
			if w.color == Red {
				w.color = Black
				p.color = Red
				t.rotateLeft(p)
				w = p.right
			}
			if w.left.color == Black && w.right.color == Black {
				w.color = Red
				x = p
				continue
			}
			if w.right.color == Black {
				w.left.color = Black
				w.color = Red
				t.rotateRight(w)
				w = p.right
			}
			w.color = p.color
			p.color = Black
			w.right.color = Black
			t.rotateLeft(p)
			x = t.root
		} else {
			w := p.left
			if w.color == Red {
				w.color = Black
				p.color = Red
				t.rotateRight(p)
				w = p.left
			}
			if w.right.color == Black && w.left.color == Black {
				w.color = Red
				x = p
				continue
			}
			if w.left.color == Black {
				w.right.color = Black
				w.color = Red
				t.rotateLeft(w)
				w = p.left
			}
			w.color = p.color
			p.color = Black
			w.left.color = Black
			t.rotateRight(p)
			x = t.root
		}
	}
	x.color = Black
}

// transplant replaces the subtree rooted at u with the one rooted at v.
func (t *Tree[T]) transplant(u, v *Node[T]) {
	switch {
	case u.parent == &t.sentinel:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	v.parent = u.parent
}

// propagate refreshes aggregates from n up to the root.
func (t *Tree[T]) propagate(n *Node[T]) {
	for s := &t.sentinel; n != s; n = n.parent {
		t.ops.Update(n)
	}
}

func (t *Tree[T]) rotateLeft(x *Node[T]) {
	s := &t.sentinel
	y := x.right
	x.right = y.left
	if y.left != s {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == s:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
	t.ops.Update(x)
	t.ops.Update(y)
}

func (t *Tree[T]) rotateRight(x *Node[T]) {
	s := &t.sentinel
	y := x.left
	x.left = y.right
	if y.right != s {
		y.right.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == s:
		t.root = y
	case x == x.parent.right:
		x.parent.right = y
	default:
		x.parent.left = y
	}
	y.right = x
	x.parent = y
	t.ops.Update(x)
	t.ops.Update(y)
}
