package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
)

const historyColumns = `h.ticket_id, h.seq, h.action, h.ts, COALESCE(h.user_id, ''), COALESCE(h.from_state, ''),
    COALESCE(h.to_state, ''), COALESCE(h.assigned_to, ''), COALESCE(h.comment, ''), h.details`

type detailsRow struct {
	InitialState          string `json:"initialState"`
	InitialClassification string `json:"initialClassification"`
}

type historyRow struct {
	ticketID string
	seq      int
	event    domain.HistoryEvent
}

// scanHistoryRow reads historyColumns plus any extra leading destinations.
func scanHistoryRow(rows pgx.Rows, extra ...any) (historyRow, error) {
	var (
		row                      historyRow
		action, from, to, assign string
		ts                       time.Time
		details                  []byte
	)
	dest := append(extra, &row.ticketID, &row.seq, &action, &ts, &row.event.UserID, &from, &to, &assign, &row.event.Comment, &details)
	if err := rows.Scan(dest...); err != nil {
		return row, err
	}
	row.event.Timestamp = ts
	row.event.Action = domain.NewAction(domain.ActionKind(action), domain.TicketState(from), domain.TicketState(to), assign)
	if len(details) > 0 {
		var d detailsRow
		if err := json.Unmarshal(details, &d); err != nil {
			return row, fmt.Errorf("decode details of %s#%d: %w", row.ticketID, row.seq, err)
		}
		row.event.Details = &domain.EventDetails{
			InitialState:          domain.TicketState(d.InitialState),
			InitialClassification: d.InitialClassification,
		}
	}
	return row, nil
}

// loadHistory fills History for a batch of tickets in one round trip, in
// stored sequence order.
func (s *PostgresStore) loadHistory(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	byID := make(map[string]*domain.Ticket, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		byID[tickets[i].ID] = &tickets[i]
	}

	query := `SELECT ` + historyColumns + ` FROM ticket_history h WHERE h.ticket_id = ANY($1) ORDER BY h.ticket_id, h.seq`
	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return storeErr("load history", err)
	}
	defer rows.Close()
	for rows.Next() {
		row, err := scanHistoryRow(rows)
		if err != nil {
			return storeErr("load history", err)
		}
		if t, ok := byID[row.ticketID]; ok {
			t.History = append(t.History, row.event)
		}
	}
	if err := rows.Err(); err != nil {
		return storeErr("load history", err)
	}
	return nil
}

// StreamHistoryEvents runs one query over ticket_history joined to tickets and
// hands each row to fn as it is read.
func (s *PostgresStore) StreamHistoryEvents(ctx context.Context, p EventPredicate, fn EventVisitor) error {
	var b whereBuilder
	if p.From != nil {
		b.add("h.ts >= ?", *p.From)
	}
	if p.Before != nil {
		b.add("h.ts < ?", *p.Before)
	}
	if len(p.Actions) > 0 {
		actions := make([]string, len(p.Actions))
		for i, a := range p.Actions {
			actions[i] = string(a)
		}
		b.add("h.action = ANY(?)", actions)
	}
	if p.ToState != "" {
		b.add("h.action = ?", string(domain.ActionStateChange))
		b.add("h.to_state = ?", string(p.ToState))
	}
	if p.Tickets != nil {
		addTicketPredicate(&b, *p.Tickets, "t.")
	}

	order := "ASC"
	if p.Desc {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT t.title, %s FROM ticket_history h JOIN tickets t ON t.id = h.ticket_id
        WHERE %s ORDER BY h.ts %s, h.ticket_id ASC, h.seq ASC`, historyColumns, b.sql(), order)
	if p.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, p.Limit)
	}

	rows, err := s.pool.Query(ctx, query, b.args...)
	if err != nil {
		return storeErr("stream history", err)
	}
	defer rows.Close()
	for rows.Next() {
		var title string
		row, err := scanHistoryRow(rows, &title)
		if err != nil {
			return storeErr("stream history", err)
		}
		err = fn(domain.TicketEvent{TicketID: row.ticketID, TicketTitle: title, Index: row.seq, Event: row.event})
		if errors.Is(err, ErrStopScan) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return storeErr("stream history", err)
	}
	return nil
}
