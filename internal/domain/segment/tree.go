// Package segment models the microsegment database: an arbitrarily deep,
// ordered tree whose inner nodes are taxonomy labels (region, building type,
// fuel, end use, technology, value category) and whose leaves carry a tagged
// Value.  A Region Tree is simply a Tree whose top-level keys are regions.
//
// Two trees for different regions on the same axis are expected to share
// their key sets at every level; SameKeys and the merge engine enforce it.
package segment

import (
	"sort"
	"strings"

	errs "github.com/turtacn/mseg-regionalizer/pkg/errors"
)

// Tree is either a node (ordered children) or a leaf (a Value).
type Tree struct {
	keys     []string
	children map[string]*Tree
	leaf     *Value
}

// NewNode returns an empty inner node.
func NewNode() *Tree {
	return &Tree{children: make(map[string]*Tree)}
}

// NewLeaf returns a leaf holding v.
func NewLeaf(v Value) *Tree {
	return &Tree{leaf: &v}
}

// IsLeaf reports whether t is a leaf.
func (t *Tree) IsLeaf() bool { return t.leaf != nil }

// IsNode reports whether t is an inner node.
func (t *Tree) IsNode() bool { return t.leaf == nil }

// Leaf returns the leaf value for in-place updates, or nil for nodes.
func (t *Tree) Leaf() *Value { return t.leaf }

// SetLeaf turns t into a leaf holding v, dropping any children.
func (t *Tree) SetLeaf(v Value) {
	t.keys = nil
	t.children = nil
	t.leaf = &v
}

// Len returns the number of children of a node.
func (t *Tree) Len() int { return len(t.keys) }

// Keys returns the child keys in insertion order.
func (t *Tree) Keys() []string {
	return append([]string(nil), t.keys...)
}

// SortedKeys returns the child keys in lexical order.
func (t *Tree) SortedKeys() []string {
	ks := t.Keys()
	sort.Strings(ks)
	return ks
}

// Child returns the named child.
func (t *Tree) Child(key string) (*Tree, bool) {
	if t.leaf != nil {
		return nil, false
	}
	c, ok := t.children[key]
	return c, ok
}

// Has reports whether the node has a child named key.
func (t *Tree) Has(key string) bool {
	_, ok := t.Child(key)
	return ok
}

// Set assigns child under key, keeping the position of an existing key.
// Calling Set on a leaf turns it into a node.
func (t *Tree) Set(key string, child *Tree) {
	if t.leaf != nil {
		t.leaf = nil
	}
	if t.children == nil {
		t.children = make(map[string]*Tree)
	}
	if _, ok := t.children[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.children[key] = child
}

// SetValue is shorthand for Set(key, NewLeaf(v)).
func (t *Tree) SetValue(key string, v Value) {
	t.Set(key, NewLeaf(v))
}

// Delete removes key from a node.
func (t *Tree) Delete(key string) {
	if _, ok := t.children[key]; !ok {
		return
	}
	delete(t.children, key)
	for i, k := range t.keys {
		if k == key {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
}

// Get descends along path.
func (t *Tree) Get(path ...string) (*Tree, bool) {
	cur := t
	for _, k := range path {
		next, ok := cur.Child(k)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Clone returns a deep copy.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	if t.leaf != nil {
		return NewLeaf(t.leaf.Clone())
	}
	out := &Tree{
		keys:     append([]string(nil), t.keys...),
		children: make(map[string]*Tree, len(t.children)),
	}
	for k, c := range t.children {
		out.children[k] = c.Clone()
	}
	return out
}

// Zero returns a deep copy in which every numeric leaf is replaced by its
// additive identity.  Subtrees for which keep returns true are copied as is.
func (t *Tree) Zero(keep func(key string, child *Tree) bool) *Tree {
	if t.leaf != nil {
		return NewLeaf(t.leaf.Zero())
	}
	out := NewNode()
	for _, k := range t.keys {
		c := t.children[k]
		if keep != nil && keep(k, c) {
			out.Set(k, c.Clone())
			continue
		}
		out.Set(k, c.Zero(keep))
	}
	return out
}

// WalkFunc is called for every node and leaf in pre-order.  path holds the
// keys from the root to t and must not be retained.
type WalkFunc func(path []string, t *Tree) error

// Walk visits t and every descendant in insertion order.
func (t *Tree) Walk(fn WalkFunc) error {
	return t.walk(nil, fn)
}

func (t *Tree) walk(path []string, fn WalkFunc) error {
	if err := fn(path, t); err != nil {
		return err
	}
	if t.leaf != nil {
		return nil
	}
	for _, k := range t.keys {
		if err := t.children[k].walk(append(path, k), fn); err != nil {
			return err
		}
	}
	return nil
}

// SameKeys reports whether two nodes carry the same key set.  Leaves compare
// equal to leaves only.
func SameKeys(a, b *Tree) bool {
	if a.IsLeaf() || b.IsLeaf() {
		return a.IsLeaf() && b.IsLeaf()
	}
	if len(a.keys) != len(b.keys) {
		return false
	}
	for _, k := range a.keys {
		if _, ok := b.children[k]; !ok {
			return false
		}
	}
	return true
}

// CheckIsomorphic verifies that a and b share keys at every level and have
// leaves of the same kind at every path.
func CheckIsomorphic(a, b *Tree) error {
	return checkIsomorphic(nil, a, b)
}

func checkIsomorphic(path []string, a, b *Tree) error {
	if !SameKeys(a, b) {
		return errs.StructureMismatch("merge keys do not match").
			WithDetail(PathString(path))
	}
	if a.IsLeaf() {
		if a.leaf.Kind != b.leaf.Kind {
			return errs.StructureMismatch("leaf kinds differ").
				WithDetailf("%s: %s vs %s", PathString(path), a.leaf.Kind, b.leaf.Kind)
		}
		return nil
	}
	for _, k := range a.keys {
		if err := checkIsomorphic(append(path, k), a.children[k], b.children[k]); err != nil {
			return err
		}
	}
	return nil
}

// PathString renders a tree path for messages.
func PathString(path []string) string {
	if len(path) == 0 {
		return "<root>"
	}
	return strings.Join(path, " > ")
}

//Personal.AI order the ending
