package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
)

const classifierColumns = `id, COALESCE(name, ''), parent_id, root_id, COALESCE(ancestors, '{}'::text[]), COALESCE(path, ''), level`

func (s *PostgresStore) FindClassifierNode(ctx context.Context, id string) (*domain.ClassifierNode, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+classifierColumns+` FROM classifiers WHERE id=$1`, id)
	node, err := scanClassifier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("classifier %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("find classifier", err)
	}
	return &node, nil
}

// FindClassifierNodesWithAncestor uses the GIN index on ancestors.
func (s *PostgresStore) FindClassifierNodesWithAncestor(ctx context.Context, id string) ([]domain.ClassifierNode, error) {
	return s.queryClassifiers(ctx, `SELECT `+classifierColumns+` FROM classifiers WHERE ancestors @> ARRAY[$1]::text[] ORDER BY id`, id)
}

func (s *PostgresStore) ListClassifierNodes(ctx context.Context) ([]domain.ClassifierNode, error) {
	return s.queryClassifiers(ctx, `SELECT `+classifierColumns+` FROM classifiers ORDER BY root_id, level, id`)
}

func (s *PostgresStore) queryClassifiers(ctx context.Context, query string, args ...any) ([]domain.ClassifierNode, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list classifiers", err)
	}
	defer rows.Close()

	var result []domain.ClassifierNode
	for rows.Next() {
		node, err := scanClassifier(rows)
		if err != nil {
			return nil, storeErr("list classifiers", err)
		}
		result = append(result, node)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list classifiers", err)
	}
	return result, nil
}

func scanClassifier(row pgx.Row) (domain.ClassifierNode, error) {
	var node domain.ClassifierNode
	err := row.Scan(
		&node.ID,
		&node.Name,
		&node.ParentID,
		&node.RootID,
		&node.Ancestors,
		&node.Path,
		&node.Level,
	)
	return node, err
}
