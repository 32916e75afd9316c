package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Jessir1108/Capta-Tickets/internal/config"
	"github.com/Jessir1108/Capta-Tickets/internal/consistency"
	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/eventlog"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
	"github.com/Jessir1108/Capta-Tickets/internal/temporal"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

// DescendantResolver expands a classifier node into itself plus descendants.
type DescendantResolver interface {
	Descendants(ctx context.Context, nodeID string) ([]string, error)
}

// QueryObserver receives per-query timings.
type QueryObserver interface {
	RecordQuery(name string, duration time.Duration, err error)
}

// QueryDependencies bundles what the engine needs.
type QueryDependencies struct {
	Store    repository.Store
	Resolver DescendantResolver
	Config   config.QueryConfig
	Logger   *zap.Logger
	Observer QueryObserver
}

// QueryEngine answers windowed analytical queries. It holds no mutable state
// and is safe for concurrent use.
type QueryEngine struct {
	store    repository.Store
	resolver DescendantResolver
	recon    temporal.Reconstructor
	cfg      config.QueryConfig
	logger   *zap.Logger
	observer QueryObserver
}

// NewQueryEngine validates the configuration and builds the engine.
func NewQueryEngine(deps QueryDependencies) (*QueryEngine, error) {
	if deps.Store == nil {
		return nil, errors.New("query engine: store is required")
	}
	policy, err := temporal.ParseFallbackPolicy(deps.Config.StateFallback)
	if err != nil {
		return nil, fmt.Errorf("query engine: %w", err)
	}
	cfg := deps.Config
	if cfg.ActionLimit <= 0 || cfg.ActionLimit > config.MaxActionLimit {
		cfg.ActionLimit = 50
	}
	if cfg.Dimension == "" {
		cfg.Dimension = domain.DefaultDimension
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryEngine{
		store:    deps.Store,
		resolver: deps.Resolver,
		recon:    temporal.NewReconstructor(policy),
		cfg:      cfg,
		logger:   logger,
		observer: deps.Observer,
	}, nil
}

// Reconstructor exposes the engine's state reconstructor.
func (q *QueryEngine) Reconstructor() temporal.Reconstructor { return q.recon }

// Filters are the optional narrowing parameters shared by all queries.
type Filters struct {
	State      domain.TicketState
	Classifier string
	// Dimension defaults to the configured classification dimension.
	Dimension string
}

// DataIssue is a per-ticket data-quality problem met while answering a query.
// The ticket is still counted where the query can answer for it.
type DataIssue struct {
	TicketID   string `json:"ticket_id"`
	Code       string `json:"code"`
	EventIndex int    `json:"event_index"`
	Message    string `json:"message"`
}

func issuesFromHistory(t *domain.Ticket) []DataIssue {
	var out []DataIssue
	for _, issue := range eventlog.Validate(t) {
		out = append(out, DataIssue{
			TicketID:   issue.TicketID,
			Code:       apperrors.CodeMalformedHistory,
			EventIndex: issue.Index,
			Message:    issue.Reason,
		})
	}
	return out
}

// Case is a ticket selected by ListCases with its state at both window
// bounds.
type Case struct {
	Ticket       domain.Ticket
	StateAtStart domain.TicketState
	StateAtEnd   domain.TicketState
}

// CaseListOptions control result shape.
type CaseListOptions struct {
	Limit int
	Sort  repository.SortOrder
}

// CaseList is the ListCases result. Total counts matches before Limit.
type CaseList struct {
	Cases     []Case
	Total     int
	Truncated bool
	Issues    []DataIssue
}

// ListCases returns tickets active at some point of w, classified under
// f.Classifier, whose state at w.End equals f.State.
func (q *QueryEngine) ListCases(ctx context.Context, w temporal.Window, f Filters, opts CaseListOptions) (result CaseList, err error) {
	defer q.observe("list_cases", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return CaseList{}, err
	}
	pred, err := q.ticketPredicate(ctx, f, false)
	if err != nil {
		return CaseList{}, err
	}
	pred.CreatedBefore = &w.End
	pred.OpenOrClosedSince = &w.Start

	truncated, err := q.scan(ctx, pred, func(t *domain.Ticket) error {
		result.Issues = append(result.Issues, issuesFromHistory(t)...)
		states, err := q.recon.StatesAt(t, []time.Time{w.Start, w.End})
		if err != nil {
			if errors.Is(err, temporal.ErrStateUnknown) {
				result.Issues = append(result.Issues, DataIssue{
					TicketID:   t.ID,
					Code:       apperrors.CodeMalformedHistory,
					EventIndex: -1,
					Message:    err.Error(),
				})
				return nil
			}
			return err
		}
		if f.State != "" && states[1] != f.State {
			return nil
		}
		result.Cases = append(result.Cases, Case{Ticket: *t, StateAtStart: states[0], StateAtEnd: states[1]})
		return nil
	})
	if err != nil {
		return CaseList{}, fmt.Errorf("list cases: %w", err)
	}
	result.Truncated = truncated

	switch opts.Sort {
	case repository.SortCreatedAsc:
		sort.SliceStable(result.Cases, func(i, j int) bool {
			return result.Cases[i].Ticket.CreatedAt.Before(result.Cases[j].Ticket.CreatedAt)
		})
	case repository.SortCreatedDesc:
		sort.SliceStable(result.Cases, func(i, j int) bool {
			return result.Cases[i].Ticket.CreatedAt.After(result.Cases[j].Ticket.CreatedAt)
		})
	}
	result.Total = len(result.Cases)
	limit := opts.Limit
	if limit <= 0 {
		limit = q.cfg.DefaultCaseLimit
	}
	if limit > 0 && len(result.Cases) > limit {
		result.Cases = result.Cases[:limit]
	}
	return result, nil
}

// TicketListOptions control ListTickets.
type TicketListOptions struct {
	Limit int
	Sort  repository.SortOrder
}

// ListTickets returns tickets created in w matching f by current state and
// classifier subtree. Ordering and the limit are applied by the store; the
// default is newest first, capped at the configured case limit.
func (q *QueryEngine) ListTickets(ctx context.Context, w temporal.Window, f Filters, opts TicketListOptions) (out []domain.Ticket, err error) {
	defer q.observe("list_tickets", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return nil, err
	}
	pred.CreatedFrom = &w.Start
	pred.CreatedBefore = &w.End
	pred.Sort = opts.Sort
	if pred.Sort == repository.SortNone {
		pred.Sort = repository.SortCreatedDesc
	}
	pred.Limit = opts.Limit
	if pred.Limit <= 0 {
		pred.Limit = q.cfg.DefaultCaseLimit
	}
	out, err = q.store.FindTickets(ctx, pred)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return out, nil
}

// ReopenTotals compares the denormalized and history-derived reopen counts.
type ReopenTotals struct {
	Tickets            int                       `json:"tickets"`
	Denormalized       int                       `json:"denormalized"`
	Derived            int                       `json:"derived"`
	Consistent         bool                      `json:"consistent"`
	TicketsWithReopens int                       `json:"tickets_with_reopens"`
	MaxPerTicket       int                       `json:"max_per_ticket"`
	Mismatches         []consistency.ReopenCheck `json:"mismatches,omitempty"`
	Truncated          bool                      `json:"truncated"`
}

// CountReopenings sums reopen counts over every ticket matching f, both from
// the denormalized field and from the history, in one cancellable scan.
func (q *QueryEngine) CountReopenings(ctx context.Context, f Filters) (totals ReopenTotals, err error) {
	defer q.observe("count_reopenings", time.Now(), &err)
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return ReopenTotals{}, err
	}
	truncated, err := q.scan(ctx, pred, func(t *domain.Ticket) error {
		check := consistency.VerifyReopenCount(t)
		totals.Tickets++
		totals.Denormalized += check.Denormalized
		totals.Derived += check.Derived
		if check.Denormalized > 0 {
			totals.TicketsWithReopens++
		}
		totals.MaxPerTicket = max(totals.MaxPerTicket, check.Denormalized)
		if !check.Consistent {
			totals.Mismatches = append(totals.Mismatches, check)
		}
		return nil
	})
	if err != nil {
		return ReopenTotals{}, fmt.Errorf("count reopenings: %w", err)
	}
	totals.Truncated = truncated
	totals.Consistent = len(totals.Mismatches) == 0
	if !totals.Consistent {
		q.logger.Warn("reopen counts disagree with history",
			zap.Int("denormalized", totals.Denormalized),
			zap.Int("derived", totals.Derived),
			zap.Int("tickets", len(totals.Mismatches)))
	}
	return totals, nil
}

// CountEntries counts tickets created in w, optionally by current state and
// classifier subtree.
func (q *QueryEngine) CountEntries(ctx context.Context, w temporal.Window, f Filters) (n int64, err error) {
	defer q.observe("count_entries", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return 0, err
	}
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return 0, err
	}
	pred.CreatedFrom = &w.Start
	pred.CreatedBefore = &w.End
	n, err = q.store.CountTickets(ctx, pred)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

// CountClosures counts transitions into closed inside w. A ticket closed twice
// in the window counts twice.
func (q *QueryEngine) CountClosures(ctx context.Context, w temporal.Window, f Filters) (n int64, err error) {
	defer q.observe("count_closures", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return 0, err
	}
	p, err := q.eventPredicate(ctx, w, f)
	if err != nil {
		return 0, err
	}
	p.Actions = []domain.ActionKind{domain.ActionStateChange}
	p.ToState = domain.StateClosed
	err = q.store.StreamHistoryEvents(ctx, p, func(domain.TicketEvent) error {
		n++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count closures: %w", err)
	}
	return n, nil
}

// ActionLimit resolves a requested listing size against the configured
// default and the hard cap.
func (q *QueryEngine) ActionLimit(requested int) int {
	if requested <= 0 {
		return q.cfg.ActionLimit
	}
	return min(requested, config.MaxActionLimit)
}

// ListActions returns events in w across tickets, newest first, capped.
func (q *QueryEngine) ListActions(ctx context.Context, w temporal.Window, f Filters, limit int) (out []domain.TicketEvent, err error) {
	defer q.observe("list_actions", time.Now(), &err)
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	p, err := q.eventPredicate(ctx, w, f)
	if err != nil {
		return nil, err
	}
	p.Desc = true
	p.Limit = q.ActionLimit(limit)
	out = make([]domain.TicketEvent, 0, p.Limit)
	err = q.store.StreamHistoryEvents(ctx, p, func(e domain.TicketEvent) error {
		out = append(out, e)
		if len(out) >= p.Limit {
			return repository.ErrStopScan
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return out, nil
}

// StateAt loads one ticket and reconstructs its state at the instant.
func (q *QueryEngine) StateAt(ctx context.Context, ticketID string, at time.Time) (state domain.TicketState, err error) {
	defer q.observe("state_at", time.Now(), &err)
	t, err := q.store.FindTicket(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return "", err
	}
	state, err = q.recon.StateAt(t, at)
	if errors.Is(err, temporal.ErrStateUnknown) {
		return "", apperrors.NewMalformedHistory(ticketID, -1, err.Error())
	}
	return state, err
}

// ticketPredicate turns filters into a store predicate. withState applies
// f.State to the current state; ListCases applies it to the reconstructed
// state instead.
func (q *QueryEngine) ticketPredicate(ctx context.Context, f Filters, withState bool) (repository.TicketPredicate, error) {
	var pred repository.TicketPredicate
	if withState {
		pred.State = f.State
	}
	if f.Classifier == "" {
		return pred, nil
	}
	dimension := f.Dimension
	if dimension == "" {
		dimension = q.cfg.Dimension
	}
	ids := []string{f.Classifier}
	if q.resolver != nil {
		resolved, err := q.resolver.Descendants(ctx, f.Classifier)
		if err != nil {
			return pred, fmt.Errorf("resolve classifier %s: %w", f.Classifier, err)
		}
		ids = resolved
	}
	pred.Classification = &repository.ClassificationFilter{Dimension: dimension, NodeIDs: ids}
	return pred, nil
}

func (q *QueryEngine) eventPredicate(ctx context.Context, w temporal.Window, f Filters) (repository.EventPredicate, error) {
	p := repository.EventPredicate{From: &w.Start, Before: &w.End}
	if f.State == "" && f.Classifier == "" {
		return p, nil
	}
	pred, err := q.ticketPredicate(ctx, f, true)
	if err != nil {
		return p, err
	}
	p.Tickets = &pred
	return p, nil
}

// scan visits matching tickets, stopping after cfg.MaxScan when set. It
// reports whether the bound cut the scan short.
func (q *QueryEngine) scan(ctx context.Context, pred repository.TicketPredicate, fn repository.TicketVisitor) (bool, error) {
	pred.Sort = repository.SortNone
	pred.Limit = 0
	if q.cfg.MaxScan > 0 {
		pred.Limit = q.cfg.MaxScan + 1
	}
	visited, truncated := 0, false
	err := q.store.ScanTickets(ctx, pred, func(t *domain.Ticket) error {
		if q.cfg.MaxScan > 0 && visited == q.cfg.MaxScan {
			truncated = true
			return repository.ErrStopScan
		}
		visited++
		return fn(t)
	})
	if truncated {
		q.logger.Warn("scan bound reached", zap.Int("max_scan", q.cfg.MaxScan))
	}
	return truncated, err
}

func (q *QueryEngine) observe(name string, started time.Time, err *error) {
	elapsed := time.Since(started)
	if q.observer != nil {
		q.observer.RecordQuery(name, elapsed, *err)
	}
	if *err != nil {
		q.logger.Debug("query failed", zap.String("query", name), zap.Duration("duration", elapsed), zap.Error(*err))
		return
	}
	q.logger.Debug("query served", zap.String("query", name), zap.Duration("duration", elapsed))
}

func validateWindow(w temporal.Window) error {
	if err := w.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{
			"start": w.Start,
			"end":   w.End,
		})
	}
	return nil
}
