package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
)

// NodeReader is the part of the store the resolver needs.
type NodeReader interface {
	FindClassifierNode(ctx context.Context, id string) (*domain.ClassifierNode, error)
	FindClassifierNodesWithAncestor(ctx context.Context, id string) ([]domain.ClassifierNode, error)
	ListClassifierNodes(ctx context.Context) ([]domain.ClassifierNode, error)
}

// Resolver answers descendant queries against the store's ancestor index,
// caching results per topology version.
type Resolver struct {
	nodes  NodeReader
	cache  DescendantCache
	logger *zap.Logger
}

// NewResolver builds a resolver. cache may be nil to disable caching.
func NewResolver(nodes NodeReader, cache DescendantCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{nodes: nodes, cache: cache, logger: logger}
}

// Descendants returns nodeID and all nodes whose ancestors contain it, sorted.
// An id missing from the store resolves to {nodeID}; only store failures are
// returned as errors.
func (r *Resolver) Descendants(ctx context.Context, nodeID string) ([]string, error) {
	version, cached := int64(0), false
	if r.cache != nil {
		v, err := r.cache.Version(ctx)
		if err != nil {
			r.logger.Warn("classifier cache unavailable", zap.Error(err))
		} else {
			version, cached = v, true
			if ids, ok, err := r.cache.Get(ctx, version, nodeID); err != nil {
				r.logger.Warn("classifier cache read failed", zap.String("node_id", nodeID), zap.Error(err))
			} else if ok {
				return ids, nil
			}
		}
	}

	if _, err := r.nodes.FindClassifierNode(ctx, nodeID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.logger.Debug("classifier not found; exact match only", zap.String("node_id", nodeID))
			return []string{nodeID}, nil
		}
		return nil, fmt.Errorf("find classifier %s: %w", nodeID, err)
	}

	below, err := r.nodes.FindClassifierNodesWithAncestor(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("find descendants of %s: %w", nodeID, err)
	}
	ids := unionIDs(nodeID, below)

	if cached {
		if err := r.cache.Set(ctx, version, nodeID, ids); err != nil {
			r.logger.Warn("classifier cache write failed", zap.String("node_id", nodeID), zap.Error(err))
		}
	}
	return ids, nil
}

// Invalidate drops every cached descendant set. Whatever changes classifier
// topology must call it.
func (r *Resolver) Invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	v, err := r.cache.Invalidate(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("classifier cache invalidated", zap.Int64("version", v))
	return nil
}

// Tree loads every node and builds the in-memory forest.
func (r *Resolver) Tree(ctx context.Context) (*Tree, error) {
	nodes, err := r.nodes.ListClassifierNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list classifiers: %w", err)
	}
	return NewTree(nodes)
}

func unionIDs(nodeID string, nodes []domain.ClassifierNode) []string {
	seen := map[string]struct{}{nodeID: {}}
	ids := []string{nodeID}
	for _, n := range nodes {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		ids = append(ids, n.ID)
	}
	sort.Strings(ids)
	return ids
}
