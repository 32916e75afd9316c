package domain

// ClassifierNode is one category in a classification forest. Ancestors is the
// precomputed closure of ParentID up to the root; Path and Level are display
// helpers derived from the same chain.
type ClassifierNode struct {
	ID        string
	Name      string
	ParentID  *string
	RootID    string
	Ancestors []string
	Path      string
	Level     int
}

// IsRoot reports whether the node has no parent.
func (n ClassifierNode) IsRoot() bool {
	return n.ParentID == nil || *n.ParentID == ""
}
