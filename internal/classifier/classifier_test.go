package classifier

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
)

func strPtr(s string) *string { return &s }

// scenarioNodes builds A > B > C plus an unrelated root D.
func scenarioNodes() []domain.ClassifierNode {
	return []domain.ClassifierNode{
		{ID: "A", Name: "Soporte", RootID: "A", Level: 0},
		{ID: "B", Name: "Hardware", ParentID: strPtr("A"), RootID: "A", Ancestors: []string{"A"}, Level: 1},
		{ID: "C", Name: "Impresoras", ParentID: strPtr("B"), RootID: "A", Ancestors: []string{"A", "B"}, Level: 2},
		{ID: "D", Name: "Facturacion", RootID: "D", Level: 0},
	}
}

type fakeNodes struct {
	nodes []domain.ClassifierNode
	err   error
	calls int
}

func (f *fakeNodes) FindClassifierNode(ctx context.Context, id string) (*domain.ClassifierNode, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.nodes {
		if f.nodes[i].ID == id {
			n := f.nodes[i]
			return &n, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeNodes) FindClassifierNodesWithAncestor(ctx context.Context, id string) ([]domain.ClassifierNode, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.ClassifierNode
	for _, n := range f.nodes {
		if slices.Contains(n.Ancestors, id) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNodes) ListClassifierNodes(ctx context.Context) ([]domain.ClassifierNode, error) {
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.nodes), nil
}

func TestTree_DescendantsOf(t *testing.T) {
	tree, err := NewTree(scenarioNodes())
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	cases := map[string][]string{
		"A":       {"A", "B", "C"},
		"B":       {"B", "C"},
		"C":       {"C"},
		"missing": {"missing"},
	}
	for id, want := range cases {
		if got := tree.DescendantsOf(id); !slices.Equal(got, want) {
			t.Fatalf("DescendantsOf(%s) = %v, want %v", id, got, want)
		}
	}
}

func TestTree_AncestorClosure(t *testing.T) {
	tree, err := NewTree(scenarioNodes())
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	ids := []string{"A", "B", "C", "D"}
	for _, a := range ids {
		for _, d := range ids {
			inDesc := a != d && slices.Contains(tree.DescendantsOf(a), d)
			if inDesc != tree.IsAncestor(a, d) {
				t.Fatalf("IsAncestor(%s, %s) = %v, descendant membership = %v", a, d, tree.IsAncestor(a, d), inDesc)
			}
		}
	}
	if got := tree.AncestorsOf("C"); !slices.Equal(got, []string{"B", "A"}) {
		t.Fatalf("AncestorsOf(C) = %v, want [B A]", got)
	}
	if got := tree.RootOf("C"); got != "A" {
		t.Fatalf("RootOf(C) = %s, want A", got)
	}
	if got := tree.Roots(); !slices.Equal(got, []string{"A", "D"}) {
		t.Fatalf("Roots = %v", got)
	}
}

func TestNewTree_RejectsBadForests(t *testing.T) {
	cases := []struct {
		name  string
		nodes []domain.ClassifierNode
		want  error
	}{
		{
			name: "cycle",
			nodes: []domain.ClassifierNode{
				{ID: "X", ParentID: strPtr("Y")},
				{ID: "Y", ParentID: strPtr("X")},
			},
			want: ErrCycle,
		},
		{
			name:  "dangling parent",
			nodes: []domain.ClassifierNode{{ID: "X", ParentID: strPtr("ghost")}},
			want:  ErrDanglingParent,
		},
		{
			name:  "duplicate",
			nodes: []domain.ClassifierNode{{ID: "X"}, {ID: "X"}},
			want:  ErrDuplicateNode,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewTree(tc.nodes); !errors.Is(err, tc.want) {
				t.Fatalf("NewTree err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestTree_VerifyClosure(t *testing.T) {
	nodes := scenarioNodes()
	tree, err := NewTree(nodes)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if got := tree.VerifyClosure(); len(got) != 0 {
		t.Fatalf("VerifyClosure on consistent tree = %+v", got)
	}

	nodes[2].Ancestors = []string{"B"}
	nodes[2].Level = 5
	tree, err = NewTree(nodes)
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	got := tree.VerifyClosure()
	if len(got) != 2 {
		t.Fatalf("VerifyClosure = %+v, want ancestors and level mismatches", got)
	}
	for _, m := range got {
		if m.NodeID != "C" {
			t.Fatalf("unexpected mismatch %+v", m)
		}
	}
}

func TestResolver_Descendants(t *testing.T) {
	ctx := context.Background()
	store := &fakeNodes{nodes: scenarioNodes()}
	r := NewResolver(store, NewMemoryCache(), nil)

	cases := map[string][]string{
		"A":       {"A", "B", "C"},
		"B":       {"B", "C"},
		"missing": {"missing"},
	}
	for id, want := range cases {
		got, err := r.Descendants(ctx, id)
		if err != nil {
			t.Fatalf("Descendants(%s): %v", id, err)
		}
		if !slices.Equal(got, want) {
			t.Fatalf("Descendants(%s) = %v, want %v", id, got, want)
		}
	}
}

func TestResolver_CacheAndInvalidate(t *testing.T) {
	ctx := context.Background()
	store := &fakeNodes{nodes: scenarioNodes()}
	r := NewResolver(store, NewMemoryCache(), nil)

	if _, err := r.Descendants(ctx, "B"); err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if _, err := r.Descendants(ctx, "B"); err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store lookups = %d, want 1 (second call cached)", store.calls)
	}

	store.nodes = append(store.nodes, domain.ClassifierNode{ID: "E", ParentID: strPtr("B"), RootID: "A", Ancestors: []string{"A", "B"}, Level: 2})
	got, _ := r.Descendants(ctx, "B")
	if !slices.Equal(got, []string{"B", "C"}) {
		t.Fatalf("before invalidation = %v, want stale cached set", got)
	}

	if err := r.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	got, err := r.Descendants(ctx, "B")
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	if !slices.Equal(got, []string{"B", "C", "E"}) {
		t.Fatalf("after invalidation = %v, want [B C E]", got)
	}
}

func TestResolver_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewResolver(&fakeNodes{err: boom}, nil, nil)
	if _, err := r.Descendants(context.Background(), "A"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped store failure", err)
	}
}

func TestMemoryCache_DropsStaleWrites(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	v, _ := c.Version(ctx)
	if _, err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if err := c.Set(ctx, v, "A", []string{"A"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, v, "A"); ok {
		t.Fatal("write at an invalidated version must be dropped")
	}
}
