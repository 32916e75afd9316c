package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

const scanBatchSize = 500

const ticketColumns = `%[1]sid, %[1]stitle, COALESCE(%[1]sdescription, ''), COALESCE(%[1]screated_by, ''), %[1]sassigned_to,
    COALESCE(%[1]sclassifications, '{}'::jsonb), %[1]screated_at, %[1]scurrent_state, %[1]sclosed_at,
    %[1]sreopen_count, %[1]sstate_change_count, %[1]scomment_count, %[1]slast_state_change_at, %[1]slast_modified_at`

// PostgresStore implements Store on the tickets, ticket_history and
// classifiers tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

var _ Store = (*PostgresStore)(nil)

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStoreUnavailable, err)
}

// whereBuilder collects SQL conditions, numbering "?" placeholders in order.
type whereBuilder struct {
	clauses []string
	args    []any
}

func (b *whereBuilder) add(expr string, vals ...any) {
	for _, v := range vals {
		b.args = append(b.args, v)
		expr = strings.Replace(expr, "?", fmt.Sprintf("$%d", len(b.args)), 1)
	}
	b.clauses = append(b.clauses, expr)
}

func (b *whereBuilder) sql() string {
	if len(b.clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(b.clauses, " AND ")
}

// addTicketPredicate writes p as conditions on the tickets table, whose columns
// are qualified by alias (e.g. "t.").
func addTicketPredicate(b *whereBuilder, p TicketPredicate, alias string) {
	col := func(name string) string { return alias + name }
	if p.CreatedFrom != nil {
		b.add(col("created_at")+" >= ?", *p.CreatedFrom)
	}
	if p.CreatedBefore != nil {
		b.add(col("created_at")+" < ?", *p.CreatedBefore)
	}
	if p.OpenOrClosedSince != nil {
		b.add("("+col("closed_at")+" IS NULL OR "+col("closed_at")+" >= ?)", *p.OpenOrClosedSince)
	}
	if p.ClosedFrom != nil {
		b.add(col("closed_at")+" >= ?", *p.ClosedFrom)
	}
	if p.ClosedBefore != nil {
		b.add(col("closed_at")+" < ?", *p.ClosedBefore)
	}
	if p.Closed != nil {
		if *p.Closed {
			b.add(col("closed_at") + " IS NOT NULL")
		} else {
			b.add(col("closed_at") + " IS NULL")
		}
	}
	if p.State != "" {
		b.add(col("current_state")+" = ?", string(p.State))
	}
	if p.Classification != nil {
		b.add(col("classifications")+" ->> ? = ANY(?)", p.Classification.Dimension, p.Classification.NodeIDs)
	}
	if p.MinReopenCount > 0 {
		b.add(col("reopen_count")+" >= ?", p.MinReopenCount)
	}
}

func (s *PostgresStore) FindTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, fmt.Sprintf(ticketColumns, ""))
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, storeErr("find ticket", err)
	}
	tickets, err := scanTicketRows(rows)
	if err != nil {
		return nil, storeErr("find ticket", err)
	}
	if len(tickets) == 0 {
		return nil, fmt.Errorf("ticket %s: %w", id, ErrNotFound)
	}
	if err := s.loadHistory(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (s *PostgresStore) FindTickets(ctx context.Context, p TicketPredicate) ([]domain.Ticket, error) {
	var b whereBuilder
	addTicketPredicate(&b, p, "")

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s`, fmt.Sprintf(ticketColumns, ""), b.sql())
	switch p.Sort {
	case SortCreatedAsc:
		query += ` ORDER BY created_at ASC, id ASC`
	case SortCreatedDesc:
		query += ` ORDER BY created_at DESC, id ASC`
	default:
		query += ` ORDER BY id ASC`
	}
	if p.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, p.Limit)
	}

	rows, err := s.pool.Query(ctx, query, b.args...)
	if err != nil {
		return nil, storeErr("find tickets", err)
	}
	tickets, err := scanTicketRows(rows)
	if err != nil {
		return nil, storeErr("find tickets", err)
	}
	if err := s.loadHistory(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

// ScanTickets pages through matching tickets by id so memory stays bounded by
// the batch size. Sort is ignored; Limit bounds the total visited.
func (s *PostgresStore) ScanTickets(ctx context.Context, p TicketPredicate, fn TicketVisitor) error {
	visited := 0
	lastID := ""
	for {
		batch := scanBatchSize
		if p.Limit > 0 {
			if visited >= p.Limit {
				return nil
			}
			batch = min(batch, p.Limit-visited)
		}

		var b whereBuilder
		addTicketPredicate(&b, p, "")
		if lastID != "" {
			b.add("id > ?", lastID)
		}
		query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY id ASC LIMIT %d`,
			fmt.Sprintf(ticketColumns, ""), b.sql(), batch)

		rows, err := s.pool.Query(ctx, query, b.args...)
		if err != nil {
			return storeErr("scan tickets", err)
		}
		tickets, err := scanTicketRows(rows)
		if err != nil {
			return storeErr("scan tickets", err)
		}
		if len(tickets) == 0 {
			return nil
		}
		if err := s.loadHistory(ctx, tickets); err != nil {
			return err
		}
		for i := range tickets {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(&tickets[i]); err != nil {
				if errors.Is(err, ErrStopScan) {
					return nil
				}
				return err
			}
		}
		visited += len(tickets)
		lastID = tickets[len(tickets)-1].ID
		if len(tickets) < batch {
			return nil
		}
	}
}

func (s *PostgresStore) CountTickets(ctx context.Context, p TicketPredicate) (int64, error) {
	var b whereBuilder
	addTicketPredicate(&b, p, "")
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+b.sql(), b.args...).Scan(&count); err != nil {
		return 0, storeErr("count tickets", err)
	}
	return count, nil
}

func scanTicketRows(rows pgx.Rows) ([]domain.Ticket, error) {
	defer rows.Close()
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket domain.Ticket
			state  string
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Description,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.Classifications,
			&ticket.CreatedAt,
			&state,
			&ticket.ClosedAt,
			&ticket.ReopenCount,
			&ticket.StateChangeCount,
			&ticket.CommentCount,
			&ticket.LastStateChangeAt,
			&ticket.LastModifiedAt,
		); err != nil {
			return nil, err
		}
		ticket.CurrentState = domain.TicketState(state)
		result = append(result, ticket)
	}
	return result, rows.Err()
}
