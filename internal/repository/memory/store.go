// Package memory implements repository.Store over in-process maps. It backs
// tests and fixture-driven runs where no Postgres is configured.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
)

// Store keeps tickets and classifier nodes by id. Reads return copies.
type Store struct {
	mu          sync.RWMutex
	tickets     map[string]domain.Ticket
	classifiers map[string]domain.ClassifierNode
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets:     make(map[string]domain.Ticket),
		classifiers: make(map[string]domain.ClassifierNode),
	}
}

var _ repository.Store = (*Store)(nil)

// Fixture is the on-disk dump format: ticket and classifier documents.
type Fixture struct {
	Tickets     []domain.Ticket         `json:"tickets"`
	Classifiers []domain.ClassifierNode `json:"classifiers"`
}

// LoadFixture reads a JSON fixture from path into the store.
func (s *Store) LoadFixture(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fx Fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("decode fixture %s: %w", path, err)
	}
	s.PutClassifiers(fx.Classifiers...)
	s.PutTickets(fx.Tickets...)
	return nil
}

// PutTickets inserts or replaces tickets.
func (s *Store) PutTickets(tickets ...domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		s.tickets[t.ID] = cloneTicket(t)
	}
}

// PutClassifiers inserts or replaces classifier nodes.
func (s *Store) PutClassifiers(nodes ...domain.ClassifierNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		n.Ancestors = slices.Clone(n.Ancestors)
		s.classifiers[n.ID] = n
	}
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	t.History = slices.Clone(t.History)
	t.Classifications = maps.Clone(t.Classifications)
	return t
}

// sortedTickets returns matching tickets in id order. Callers hold the lock.
func (s *Store) sortedTickets(p repository.TicketPredicate) []domain.Ticket {
	out := make([]domain.Ticket, 0)
	for _, t := range s.tickets {
		if p.Matches(&t) {
			out = append(out, cloneTicket(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) FindTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %s: %w", id, repository.ErrNotFound)
	}
	t = cloneTicket(t)
	return &t, nil
}

func (s *Store) FindTickets(ctx context.Context, p repository.TicketPredicate) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := s.sortedTickets(p)
	s.mu.RUnlock()

	switch p.Sort {
	case repository.SortCreatedAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case repository.SortCreatedDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (s *Store) ScanTickets(ctx context.Context, p repository.TicketPredicate, fn repository.TicketVisitor) error {
	s.mu.RLock()
	matched := s.sortedTickets(p)
	s.mu.RUnlock()

	for i := range matched {
		if p.Limit > 0 && i >= p.Limit {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(&matched[i]); err != nil {
			if errors.Is(err, repository.ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Store) CountTickets(ctx context.Context, p repository.TicketPredicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, t := range s.tickets {
		if p.Matches(&t) {
			n++
		}
	}
	return n, nil
}

func (s *Store) StreamHistoryEvents(ctx context.Context, p repository.EventPredicate, fn repository.EventVisitor) error {
	s.mu.RLock()
	var events []domain.TicketEvent
	for _, t := range s.tickets {
		if p.Tickets != nil && !p.Tickets.Matches(&t) {
			continue
		}
		for i, e := range t.History {
			if p.MatchesEvent(e) {
				events = append(events, domain.TicketEvent{TicketID: t.ID, TicketTitle: t.Title, Index: i, Event: e})
			}
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Event.Timestamp.Equal(b.Event.Timestamp) {
			if p.Desc {
				return a.Event.Timestamp.After(b.Event.Timestamp)
			}
			return a.Event.Timestamp.Before(b.Event.Timestamp)
		}
		if a.TicketID != b.TicketID {
			return a.TicketID < b.TicketID
		}
		return a.Index < b.Index
	})
	if p.Limit > 0 && len(events) > p.Limit {
		events = events[:p.Limit]
	}

	for _, e := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			if errors.Is(err, repository.ErrStopScan) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (s *Store) FindClassifierNode(ctx context.Context, id string) (*domain.ClassifierNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.classifiers[id]
	if !ok {
		return nil, fmt.Errorf("classifier %s: %w", id, repository.ErrNotFound)
	}
	n.Ancestors = slices.Clone(n.Ancestors)
	return &n, nil
}

func (s *Store) FindClassifierNodesWithAncestor(ctx context.Context, id string) ([]domain.ClassifierNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ClassifierNode, 0)
	for _, n := range s.classifiers {
		if slices.Contains(n.Ancestors, id) {
			n.Ancestors = slices.Clone(n.Ancestors)
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListClassifierNodes(ctx context.Context) ([]domain.ClassifierNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ClassifierNode, 0, len(s.classifiers))
	for _, n := range s.classifiers {
		n.Ancestors = slices.Clone(n.Ancestors)
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
