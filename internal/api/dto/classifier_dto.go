package dto

import "github.com/Jessir1108/Capta-Tickets/internal/classifier"

// DescendantsResponse answers GET /v1/classifiers/:id/descendants.
type DescendantsResponse struct {
	NodeID      string   `json:"node_id"`
	Descendants []string `json:"descendants"`
}

// ClassifierTreeNode is one node of GET /v1/classifiers, children nested.
type ClassifierTreeNode struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Path     string               `json:"path"`
	Level    int                  `json:"level"`
	Children []ClassifierTreeNode `json:"children,omitempty"`
}

// ClassifierTreeResponse answers GET /v1/classifiers.
type ClassifierTreeResponse struct {
	Nodes int                  `json:"nodes"`
	Roots []ClassifierTreeNode `json:"roots"`
}

// NewClassifierTreeResponse nests the forest from its roots down.
func NewClassifierTreeResponse(t *classifier.Tree) ClassifierTreeResponse {
	return ClassifierTreeResponse{Nodes: t.Len(), Roots: classifierSubtrees(t, t.Roots())}
}

func classifierSubtrees(t *classifier.Tree, ids []string) []ClassifierTreeNode {
	out := make([]ClassifierTreeNode, 0, len(ids))
	for _, id := range ids {
		n, _ := t.Node(id)
		out = append(out, ClassifierTreeNode{
			ID:       n.ID,
			Name:     n.Name,
			Path:     n.Path,
			Level:    n.Level,
			Children: classifierSubtrees(t, t.Children(id)),
		})
	}
	return out
}
