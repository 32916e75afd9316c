package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
	"github.com/Jessir1108/Capta-Tickets/internal/temporal"
)

// Summary describes tickets created in a window.
type Summary struct {
	Total      int                        `json:"total"`
	ByState    map[domain.TicketState]int `json:"by_state"`
	Reopenings int                        `json:"reopenings"`
	Truncated  bool                       `json:"truncated"`
}

// Summary counts tickets created in w by current state and sums their reopen
// counts.
func (q *QueryEngine) Summary(ctx context.Context, w temporal.Window, f Filters) (s Summary, err error) {
	defer q.observe("summary", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return Summary{}, err
	}
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return Summary{}, err
	}
	pred.CreatedFrom = &w.Start
	pred.CreatedBefore = &w.End

	s.ByState = make(map[domain.TicketState]int)
	truncated, err := q.scan(ctx, pred, func(t *domain.Ticket) error {
		s.Total++
		s.ByState[t.CurrentState]++
		s.Reopenings += t.ReopenCount
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	s.Truncated = truncated
	return s, nil
}

// CountReopeningsInWindow counts closed -> non-closed transitions inside w.
func (q *QueryEngine) CountReopeningsInWindow(ctx context.Context, w temporal.Window, f Filters) (n int64, err error) {
	defer q.observe("count_reopenings_window", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return 0, err
	}
	p, err := q.eventPredicate(ctx, w, f)
	if err != nil {
		return 0, err
	}
	p.Actions = []domain.ActionKind{domain.ActionStateChange}
	err = q.store.StreamHistoryEvents(ctx, p, func(e domain.TicketEvent) error {
		if e.Event.IsReopen() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count reopenings in window: %w", err)
	}
	return n, nil
}

// ClassifierCount is one bucket of TicketsByClassifier.
type ClassifierCount struct {
	NodeID string `json:"node_id"`
	Name   string `json:"name,omitempty"`
	Count  int    `json:"count"`
}

// TicketsByClassifier groups tickets created in w by their node in dimension
// and returns the top buckets, largest first. Tickets without a
// classification in the dimension are skipped.
func (q *QueryEngine) TicketsByClassifier(ctx context.Context, w temporal.Window, dimension string, top int) (out []ClassifierCount, err error) {
	defer q.observe("tickets_by_classifier", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	if dimension == "" {
		dimension = q.cfg.Dimension
	}
	if top <= 0 {
		top = 10
	}
	pred := repository.TicketPredicate{CreatedFrom: &w.Start, CreatedBefore: &w.End}

	counts := make(map[string]int)
	if _, err := q.scan(ctx, pred, func(t *domain.Ticket) error {
		if node, ok := t.Classification(dimension); ok {
			counts[node]++
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("tickets by classifier: %w", err)
	}

	for node, c := range counts {
		out = append(out, ClassifierCount{NodeID: node, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].NodeID < out[j].NodeID
	})
	if len(out) > top {
		out = out[:top]
	}

	nodes, err := q.store.ListClassifierNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("tickets by classifier: %w", err)
	}
	names := make(map[string]string, len(nodes))
	for _, n := range nodes {
		names[n.ID] = n.Name
	}
	for i := range out {
		out[i].Name = names[out[i].NodeID]
	}
	return out, nil
}

// DailyCount is one day of CreationTrend.
type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// CreationTrend counts tickets created in w per UTC day, oldest first. Days
// without tickets are omitted.
func (q *QueryEngine) CreationTrend(ctx context.Context, w temporal.Window, f Filters) (out []DailyCount, err error) {
	defer q.observe("creation_trend", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return nil, err
	}
	pred.CreatedFrom = &w.Start
	pred.CreatedBefore = &w.End

	counts := make(map[string]int)
	if _, err := q.scan(ctx, pred, func(t *domain.Ticket) error {
		counts[t.CreatedAt.UTC().Format(time.DateOnly)]++
		return nil
	}); err != nil {
		return nil, fmt.Errorf("creation trend: %w", err)
	}
	for day, c := range counts {
		out = append(out, DailyCount{Day: day, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// ReopenStats splits tickets by whether they were ever reopened.
type ReopenStats struct {
	Total          int64 `json:"total"`
	WithReopens    int64 `json:"with_reopens"`
	WithoutReopens int64 `json:"without_reopens"`
}

// ReopenStats counts tickets matching f with and without reopenings, using the
// denormalized reopen count.
func (q *QueryEngine) ReopenStats(ctx context.Context, f Filters) (s ReopenStats, err error) {
	defer q.observe("reopen_stats", time.Now(), &err)
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return ReopenStats{}, err
	}
	if s.Total, err = q.store.CountTickets(ctx, pred); err != nil {
		return ReopenStats{}, fmt.Errorf("reopen stats: %w", err)
	}
	pred.MinReopenCount = 1
	if s.WithReopens, err = q.store.CountTickets(ctx, pred); err != nil {
		return ReopenStats{}, fmt.Errorf("reopen stats: %w", err)
	}
	s.WithoutReopens = s.Total - s.WithReopens
	return s, nil
}

// ResolutionStats summarises time to close in days.
type ResolutionStats struct {
	Closed    int     `json:"closed"`
	AvgDays   float64 `json:"avg_days"`
	MinDays   float64 `json:"min_days"`
	MaxDays   float64 `json:"max_days"`
	Truncated bool    `json:"truncated"`
}

// ResolutionTime measures CreatedAt to ClosedAt for currently closed tickets
// created in w.
func (q *QueryEngine) ResolutionTime(ctx context.Context, w temporal.Window, f Filters) (s ResolutionStats, err error) {
	defer q.observe("resolution_time", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return ResolutionStats{}, err
	}
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return ResolutionStats{}, err
	}
	closed := true
	pred.Closed = &closed
	pred.CreatedFrom = &w.Start
	pred.CreatedBefore = &w.End

	var sum float64
	truncated, err := q.scan(ctx, pred, func(t *domain.Ticket) error {
		days := t.ClosedAt.Sub(t.CreatedAt).Hours() / 24
		if s.Closed == 0 || days < s.MinDays {
			s.MinDays = days
		}
		if s.Closed == 0 || days > s.MaxDays {
			s.MaxDays = days
		}
		sum += days
		s.Closed++
		return nil
	})
	if err != nil {
		return ResolutionStats{}, fmt.Errorf("resolution time: %w", err)
	}
	s.Truncated = truncated
	if s.Closed > 0 {
		s.AvgDays = sum / float64(s.Closed)
	}
	return s, nil
}
