package block

import "sort"

// Node is one entry of the nested forest view. Children are ordered by
// position ascending; ties keep the relative order of the flat input.
type Node struct {
	Block
	Children []*Node
}

// resolve computes the nesting depth of b by walking parent references.
// The second result reports whether b should hang under its parent in the
// assembled forest; it is false for roots, for blocks whose own parent id
// does not resolve within the set, and for blocks caught in a reference
// cycle. A block whose ancestor (not immediate parent) holds a dangling
// reference keeps its relative depth below that ancestor.
func resolve(b *Block, byID map[string]*Block, limit int) (int, bool) {
	if b.ParentID == nil {
		return 0, false
	}
	if _, ok := byID[*b.ParentID]; !ok {
		return 0, false
	}

	level := 0
	cur := b
	for cur.ParentID != nil {
		parent, ok := byID[*cur.ParentID]
		if !ok {
			// the ancestor with the dangling reference acts as a root
			return level, true
		}
		level++
		if level > limit {
			// cycle guard: the chain never reaches a root
			return 0, false
		}
		cur = parent
	}
	return level, true
}

// AnnotateLevels computes each block's nesting level (roots are 0) and
// returns a copy of the set ordered by (level, position). The sort is
// stable, so equal positions keep the order they arrived in.
func AnnotateLevels(blocks []Block) []Block {
	byID := make(map[string]*Block, len(blocks))
	for i := range blocks {
		byID[blocks[i].ID] = &blocks[i]
	}

	out := make([]Block, len(blocks))
	copy(out, blocks)
	for i := range out {
		out[i].Level, _ = resolve(&out[i], byID, len(blocks))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// BuildTree assembles the nested forest from a flat block set. Every
// node's child list and the root list are ordered by position ascending,
// stable on ties. Blocks whose parent reference does not resolve become
// roots instead of being dropped.
func BuildTree(blocks []Block) []*Node {
	byID := make(map[string]*Block, len(blocks))
	for i := range blocks {
		byID[blocks[i].ID] = &blocks[i]
	}

	nodes := make([]*Node, len(blocks))
	lookup := make(map[string]*Node, len(blocks))
	attach := make([]bool, len(blocks))
	for i := range blocks {
		n := &Node{Block: blocks[i], Children: []*Node{}}
		n.Level, attach[i] = resolve(&blocks[i], byID, len(blocks))
		nodes[i] = n
		lookup[n.ID] = n
	}

	roots := []*Node{}
	for i, n := range nodes {
		if attach[i] {
			parent := lookup[*n.ParentID]
			parent.Children = append(parent.Children, n)
		} else {
			roots = append(roots, n)
		}
	}

	sortSiblings(roots)
	for _, n := range nodes {
		sortSiblings(n.Children)
	}
	return roots
}

func sortSiblings(ns []*Node) {
	sort.SliceStable(ns, func(i, j int) bool {
		return ns[i].Position < ns[j].Position
	})
}
