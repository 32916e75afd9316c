package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
)

var (
	// ErrNotFound is returned by point lookups for missing documents.
	ErrNotFound = errors.New("not found")
	// ErrStopScan ends a scan early when returned from a visitor. Scans
	// treat it as success.
	ErrStopScan = errors.New("stop scan")
)

// SortOrder orders ticket results.
type SortOrder int

const (
	SortNone SortOrder = iota
	SortCreatedAsc
	SortCreatedDesc
)

// ClassificationFilter keeps tickets whose classification in Dimension is one
// of NodeIDs. NodeIDs is usually a resolved descendant set.
type ClassificationFilter struct {
	Dimension string
	NodeIDs   []string
}

// TicketPredicate is the set of cheap, index-backed filters a store applies.
// Nil and zero fields do not constrain. Time bounds are half-open: *From is
// inclusive, *Before is exclusive.
type TicketPredicate struct {
	CreatedFrom   *time.Time
	CreatedBefore *time.Time
	// OpenOrClosedSince keeps tickets still open or closed at or after the
	// given instant.
	OpenOrClosedSince *time.Time
	ClosedFrom        *time.Time
	ClosedBefore      *time.Time
	Closed            *bool
	State             domain.TicketState
	Classification    *ClassificationFilter
	MinReopenCount    int
	Limit             int
	Sort              SortOrder
}

// Matches applies the predicate to a loaded ticket. Limit and Sort are ignored.
func (p TicketPredicate) Matches(t *domain.Ticket) bool {
	if p.CreatedFrom != nil && t.CreatedAt.Before(*p.CreatedFrom) {
		return false
	}
	if p.CreatedBefore != nil && !t.CreatedAt.Before(*p.CreatedBefore) {
		return false
	}
	if p.OpenOrClosedSince != nil && t.ClosedAt != nil && t.ClosedAt.Before(*p.OpenOrClosedSince) {
		return false
	}
	if p.ClosedFrom != nil && (t.ClosedAt == nil || t.ClosedAt.Before(*p.ClosedFrom)) {
		return false
	}
	if p.ClosedBefore != nil && (t.ClosedAt == nil || !t.ClosedAt.Before(*p.ClosedBefore)) {
		return false
	}
	if p.Closed != nil && (t.ClosedAt != nil) != *p.Closed {
		return false
	}
	if p.State != "" && t.CurrentState != p.State {
		return false
	}
	if p.Classification != nil {
		node, ok := t.Classification(p.Classification.Dimension)
		if !ok || !slices.Contains(p.Classification.NodeIDs, node) {
			return false
		}
	}
	if p.MinReopenCount > 0 && t.ReopenCount < p.MinReopenCount {
		return false
	}
	return true
}

// EventPredicate selects history events across tickets.
type EventPredicate struct {
	From    *time.Time
	Before  *time.Time
	Actions []domain.ActionKind
	// ToState keeps only state changes into the given state.
	ToState domain.TicketState
	// Tickets restricts events to tickets matching the predicate; its Limit
	// and Sort are ignored.
	Tickets *TicketPredicate
	Limit   int
	Desc    bool
}

// MatchesEvent applies the event-level part of the predicate.
func (p EventPredicate) MatchesEvent(e domain.HistoryEvent) bool {
	if p.From != nil && e.Timestamp.Before(*p.From) {
		return false
	}
	if p.Before != nil && !e.Timestamp.Before(*p.Before) {
		return false
	}
	if len(p.Actions) > 0 && !slices.Contains(p.Actions, e.Kind()) {
		return false
	}
	if p.ToState != "" {
		sc, ok := e.StateChange()
		if !ok || sc.To != p.ToState {
			return false
		}
	}
	return true
}

// TicketVisitor receives tickets from a scan. Returning ErrStopScan ends the
// scan; any other error aborts it.
type TicketVisitor func(t *domain.Ticket) error

// EventVisitor receives events from a stream, with the same stop rules as
// TicketVisitor.
type EventVisitor func(e domain.TicketEvent) error

// Store is the read interface the analytics layer runs on. Implementations
// must report backend failures wrapped in apperrors.ErrStoreUnavailable.
type Store interface {
	FindTicket(ctx context.Context, id string) (*domain.Ticket, error)
	FindTickets(ctx context.Context, p TicketPredicate) ([]domain.Ticket, error)
	ScanTickets(ctx context.Context, p TicketPredicate, fn TicketVisitor) error
	CountTickets(ctx context.Context, p TicketPredicate) (int64, error)
	StreamHistoryEvents(ctx context.Context, p EventPredicate, fn EventVisitor) error

	FindClassifierNode(ctx context.Context, id string) (*domain.ClassifierNode, error)
	FindClassifierNodesWithAncestor(ctx context.Context, id string) ([]domain.ClassifierNode, error)
	ListClassifierNodes(ctx context.Context) ([]domain.ClassifierNode, error)
}
