package consistency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Jessir1108/Capta-Tickets/internal/classifier"
	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/events"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
)

// maxReportsKept bounds the findings an audit result carries back to callers.
const maxReportsKept = 200

// Checker runs consistency checks against the store.
type Checker struct {
	store      repository.Store
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
	trees      TreeSource
}

// TreeSource builds the classifier forest from the stored nodes.
type TreeSource interface {
	Tree(ctx context.Context) (*classifier.Tree, error)
}

// NewChecker builds a checker. dispatcher may be nil.
func NewChecker(store repository.Store, dispatcher events.Dispatcher, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{store: store, dispatcher: dispatcher, logger: logger, now: time.Now}
}

// WithClassifiers makes Audit also verify the stored classifier closure.
func (c *Checker) WithClassifiers(src TreeSource) *Checker {
	c.trees = src
	return c
}

// CheckTicket loads one ticket and checks it.
func (c *Checker) CheckTicket(ctx context.Context, id string) (Report, error) {
	t, err := c.store.FindTicket(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return Check(t), nil
}

// AuditOptions bounds an audit.
type AuditOptions struct {
	// MaxTickets stops the scan after this many tickets; 0 means no bound.
	MaxTickets int
	Predicate  repository.TicketPredicate
}

// AuditResult summarises a scan. Reports holds only tickets with findings and
// is capped.
type AuditResult struct {
	Scanned      int              `json:"scanned"`
	Inconsistent int              `json:"inconsistent"`
	Malformed    int              `json:"malformed"`
	Truncated    bool             `json:"truncated"`
	Duration     time.Duration    `json:"duration_ns"`
	Reports      []Report         `json:"reports,omitempty"`
	Classifiers  ClassifierReport `json:"classifiers"`
}

// ClassifierReport is the verdict on the stored classifier closure.
type ClassifierReport struct {
	Nodes      int                          `json:"nodes"`
	Mismatches []classifier.ClosureMismatch `json:"mismatches,omitempty"`
	// Topology holds the reason the parent relation is not a forest.
	Topology string `json:"topology_error,omitempty"`
}

// Consistent reports whether the closure matched and the forest was valid.
func (r ClassifierReport) Consistent() bool {
	return len(r.Mismatches) == 0 && r.Topology == ""
}

// findings counts mismatches plus one for a topology failure.
func (r ClassifierReport) findings() int {
	n := len(r.Mismatches)
	if r.Topology != "" {
		n++
	}
	return n
}

// CheckClassifiers compares every node's stored ancestors, root and level
// with the values its parent chain implies. An invalid parent relation is
// reported, not returned; store failures are returned.
func (c *Checker) CheckClassifiers(ctx context.Context) (ClassifierReport, error) {
	if c.trees == nil {
		return ClassifierReport{}, nil
	}
	tree, err := c.trees.Tree(ctx)
	if err != nil {
		if classifier.IsTopologyError(err) {
			return ClassifierReport{Topology: err.Error()}, nil
		}
		return ClassifierReport{}, err
	}
	return ClassifierReport{Nodes: tree.Len(), Mismatches: tree.VerifyClosure()}, nil
}

// Audit checks every ticket matching opts.Predicate, publishing an event per
// finding and one audit_completed event at the end. When a TreeSource is set
// the classifier closure is verified after the ticket scan. It stops early,
// returning the partial result and ctx.Err(), when ctx is cancelled.
func (c *Checker) Audit(ctx context.Context, opts AuditOptions) (AuditResult, error) {
	started := c.now()
	var res AuditResult

	pred := opts.Predicate
	pred.Sort = repository.SortNone
	pred.Limit = 0
	if opts.MaxTickets > 0 {
		pred.Limit = opts.MaxTickets + 1
	}

	err := c.store.ScanTickets(ctx, pred, func(t *domain.Ticket) error {
		if opts.MaxTickets > 0 && res.Scanned == opts.MaxTickets {
			res.Truncated = true
			return repository.ErrStopScan
		}
		res.Scanned++
		report := Check(t)
		if report.Consistent() && !report.Malformed() {
			return nil
		}
		if !report.Consistent() {
			res.Inconsistent++
		}
		if report.Malformed() {
			res.Malformed++
		}
		if len(res.Reports) < maxReportsKept {
			res.Reports = append(res.Reports, report)
		}
		c.publishFindings(ctx, report)
		return nil
	})
	if err == nil {
		res.Classifiers, err = c.CheckClassifiers(ctx)
		if err == nil {
			c.publishClassifierFindings(ctx, res.Classifiers)
		}
	}
	res.Duration = c.now().Sub(started)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			c.logger.Warn("consistency audit interrupted", zap.Int("scanned", res.Scanned), zap.Error(err))
			return res, err
		}
		return res, fmt.Errorf("consistency audit: %w", err)
	}

	c.logger.Info("consistency audit completed",
		zap.Int("scanned", res.Scanned),
		zap.Int("inconsistent", res.Inconsistent),
		zap.Int("malformed", res.Malformed),
		zap.Int("classifier_mismatches", res.Classifiers.findings()),
		zap.Bool("truncated", res.Truncated),
		zap.Duration("duration", res.Duration))
	c.publish(ctx, events.NewEvent(events.EventAuditCompleted, "", events.AuditCompletedPayload{
		Scanned:              res.Scanned,
		Inconsistent:         res.Inconsistent,
		Malformed:            res.Malformed,
		ClassifierMismatches: res.Classifiers.findings(),
		Truncated:            res.Truncated,
		Duration:             res.Duration,
	}))
	return res, nil
}

func (c *Checker) publishFindings(ctx context.Context, r Report) {
	for _, m := range r.Mismatches {
		c.logger.Warn("denormalized field disagrees with history",
			zap.String("ticket_id", r.TicketID),
			zap.String("field", m.Field),
			zap.String("denormalized", m.Denormalized),
			zap.String("derived", m.Derived))
		c.publish(ctx, events.NewEvent(events.EventInconsistencyDetected, r.TicketID, events.InconsistencyPayload{
			Field:        m.Field,
			Denormalized: m.Denormalized,
			Derived:      m.Derived,
		}))
	}
	for _, issue := range r.Issues {
		c.logger.Warn("malformed history",
			zap.String("ticket_id", r.TicketID),
			zap.Int("event_index", issue.Index),
			zap.String("reason", issue.Reason))
		c.publish(ctx, events.NewEvent(events.EventMalformedHistory, r.TicketID, events.MalformedHistoryPayload{
			EventIndex: issue.Index,
			Reason:     issue.Reason,
		}))
	}
}

func (c *Checker) publishClassifierFindings(ctx context.Context, r ClassifierReport) {
	if r.Topology != "" {
		c.logger.Warn("classifier parent relation is not a forest", zap.String("reason", r.Topology))
		c.publish(ctx, events.NewEvent(events.EventInconsistencyDetected, "", events.InconsistencyPayload{
			Field:   "parentId",
			Derived: r.Topology,
		}))
	}
	for _, m := range r.Mismatches {
		c.logger.Warn("classifier closure disagrees with parent chain",
			zap.String("node_id", m.NodeID),
			zap.String("field", m.Field),
			zap.String("stored", m.Stored),
			zap.String("derived", m.Want))
		c.publish(ctx, events.NewEvent(events.EventInconsistencyDetected, "", events.InconsistencyPayload{
			NodeID:       m.NodeID,
			Field:        m.Field,
			Denormalized: m.Stored,
			Derived:      m.Want,
		}))
	}
}

func (c *Checker) publish(ctx context.Context, e events.Event) {
	if c.dispatcher == nil {
		return
	}
	if err := c.dispatcher.Publish(ctx, e); err != nil {
		c.logger.Warn("event handler failed", zap.String("event_type", string(e.Type)), zap.Error(err))
	}
}
