// Package classifier resolves classifier nodes to their descendant closure so
// that filtering by a category includes every sub-category.
package classifier

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
)

var (
	// ErrCycle is returned when the parent relation is not a forest.
	ErrCycle = errors.New("classifier parent relation contains a cycle")
	// ErrDanglingParent is returned when a node names a parent that does not exist.
	ErrDanglingParent = errors.New("classifier parent not found")
	// ErrDuplicateNode is returned when two nodes share an id.
	ErrDuplicateNode = errors.New("duplicate classifier id")
)

// IsTopologyError reports whether err came from an invalid parent relation
// rather than from the store.
func IsTopologyError(err error) bool {
	return errors.Is(err, ErrCycle) || errors.Is(err, ErrDanglingParent) || errors.Is(err, ErrDuplicateNode)
}

// Tree is an arena of classifier nodes indexed by id. Nodes refer to their
// parent by id, never by pointer. Ancestor sets are computed once from the
// parent chain, so IsAncestor is a map lookup. A Tree is immutable after
// NewTree and safe for concurrent reads.
type Tree struct {
	nodes     map[string]domain.ClassifierNode
	children  map[string][]string
	ancestors map[string][]string // nearest parent first
	ancSet    map[string]map[string]struct{}
	roots     []string
}

// NewTree validates the forest and precomputes ancestor closures.
func NewTree(nodes []domain.ClassifierNode) (*Tree, error) {
	t := &Tree{
		nodes:     make(map[string]domain.ClassifierNode, len(nodes)),
		children:  make(map[string][]string),
		ancestors: make(map[string][]string, len(nodes)),
		ancSet:    make(map[string]map[string]struct{}, len(nodes)),
	}
	for _, n := range nodes {
		if _, exists := t.nodes[n.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}
		t.nodes[n.ID] = n
	}
	for _, n := range nodes {
		if n.IsRoot() {
			t.roots = append(t.roots, n.ID)
			continue
		}
		if _, ok := t.nodes[*n.ParentID]; !ok {
			return nil, fmt.Errorf("%w: %s (parent of %s)", ErrDanglingParent, *n.ParentID, n.ID)
		}
		t.children[*n.ParentID] = append(t.children[*n.ParentID], n.ID)
	}
	for id := range t.nodes {
		chain, err := t.walkParents(id)
		if err != nil {
			return nil, err
		}
		t.ancestors[id] = chain
		set := make(map[string]struct{}, len(chain))
		for _, a := range chain {
			set[a] = struct{}{}
		}
		t.ancSet[id] = set
	}
	sort.Strings(t.roots)
	for parent := range t.children {
		sort.Strings(t.children[parent])
	}
	return t, nil
}

func (t *Tree) walkParents(id string) ([]string, error) {
	var chain []string
	seen := map[string]struct{}{id: {}}
	current := t.nodes[id]
	for !current.IsRoot() {
		parent := *current.ParentID
		if _, loop := seen[parent]; loop {
			return nil, fmt.Errorf("%w: through %s", ErrCycle, id)
		}
		seen[parent] = struct{}{}
		chain = append(chain, parent)
		current = t.nodes[parent]
	}
	return chain, nil
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node looks up a node by id.
func (t *Tree) Node(id string) (domain.ClassifierNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Roots returns the root ids, sorted.
func (t *Tree) Roots() []string {
	return slices.Clone(t.roots)
}

// Children returns the direct children of id, sorted.
func (t *Tree) Children(id string) []string {
	return slices.Clone(t.children[id])
}

// AncestorsOf returns the strict ancestors of id, nearest parent first.
func (t *Tree) AncestorsOf(id string) []string {
	return slices.Clone(t.ancestors[id])
}

// RootOf returns the root of id's tree, or id itself for roots and unknown ids.
func (t *Tree) RootOf(id string) string {
	chain := t.ancestors[id]
	if len(chain) == 0 {
		return id
	}
	return chain[len(chain)-1]
}

// IsAncestor reports whether a is a strict ancestor of d.
func (t *Tree) IsAncestor(a, d string) bool {
	_, ok := t.ancSet[d][a]
	return ok
}

// DescendantsOf returns id and every node below it, sorted. An unknown id
// yields just {id}, so filters degrade to an exact match.
func (t *Tree) DescendantsOf(id string) []string {
	out := []string{id}
	if _, ok := t.nodes[id]; !ok {
		return out
	}
	stack := slices.Clone(t.children[id])
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, next)
		stack = append(stack, t.children[next]...)
	}
	sort.Strings(out)
	return out
}

// ClosureMismatch describes a node whose stored closure fields disagree with
// its parent chain.
type ClosureMismatch struct {
	NodeID string `json:"node_id"`
	Field  string `json:"field"`
	Stored string `json:"stored"`
	Want   string `json:"want"`
}

// VerifyClosure compares each node's stored Ancestors, RootID and Level with
// the values implied by ParentID.
func (t *Tree) VerifyClosure() []ClosureMismatch {
	ids := make([]string, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []ClosureMismatch
	for _, id := range ids {
		n := t.nodes[id]
		chain := t.ancestors[id]

		stored := slices.Clone(n.Ancestors)
		want := slices.Clone(chain)
		sort.Strings(stored)
		sort.Strings(want)
		if !slices.Equal(stored, want) {
			out = append(out, ClosureMismatch{NodeID: id, Field: "ancestors", Stored: strings.Join(stored, ","), Want: strings.Join(want, ",")})
		}
		if root := t.RootOf(id); n.RootID != root {
			out = append(out, ClosureMismatch{NodeID: id, Field: "rootId", Stored: n.RootID, Want: root})
		}
		// levels are relative to the root's own level, which may be 0 or 1
		wantLevel := t.nodes[t.RootOf(id)].Level + len(chain)
		if n.Level != wantLevel {
			out = append(out, ClosureMismatch{NodeID: id, Field: "level", Stored: fmt.Sprint(n.Level), Want: fmt.Sprint(wantLevel)})
		}
	}
	return out
}
