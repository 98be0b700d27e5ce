// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package rbtree provides an intrusive, allocation-free red-black tree.
//
// A [Node] is embedded in the object being ordered; the [Tree] links
// nodes together but never owns their memory. Each tree carries its own
// black sentinel which terminates every leaf and stands in as the
// parent of the root.
//
// # Ordering and aggregates
//
// Ordering and per-subtree aggregates are supplied by an [Ops] value.
// [Ops.Update] recomputes the cached aggregate of a node from its
// children. It is called:
//
//   - on every node along the path to the root after a link or unlink,
//     bottom-up;
//   - on both nodes of every rotation, always on the node that becomes
//     the lower subtree root before the node that becomes the higher
//     subtree root.
//
// Children are therefore always up to date when a parent is recomputed.
//
// # Membership
//
// [Tree.Insert] and [Tree.Remove] never fail and never allocate.
// Removing a node that is not in the tree is undefined; callers track
// membership themselves. [Node.Linked] is provided for assertions.
//
// # Example
//
//	type item struct {
//		node rbtree.Node[*item]
//		key  int
//	}
//
//	type byKey struct{}
//
//	func (byKey) Less(a, b *rbtree.Node[*item]) bool { return a.Value.key < b.Value.key }
//	func (byKey) Update(*rbtree.Node[*item])         {}
//
//	var t rbtree.Tree[*item]
//	t.Init(byKey{})
//	it := &item{key: 7}
//	it.node.Value = it
//	t.Insert(&it.node)
package rbtree
