package service

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Jessir1108/Capta-Tickets/internal/config"
	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/temporal"
)

func TestSummary(t *testing.T) {
	q := newEngine(t, seededStore(t), config.QueryConfig{})
	s, err := q.Summary(context.Background(), september, Filters{})
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := map[domain.TicketState]int{
		domain.StateOpen:       1,
		domain.StateClosed:     1,
		domain.StateInProgress: 1,
	}
	if s.Total != 3 || s.Reopenings != 1 || !reflect.DeepEqual(s.ByState, want) {
		t.Fatalf("summary = %+v", s)
	}
}

func TestCountReopeningsInWindow(t *testing.T) {
	q := newEngine(t, seededStore(t), config.QueryConfig{})
	ctx := context.Background()

	n, err := q.CountReopeningsInWindow(ctx, september, Filters{})
	if err != nil || n != 1 {
		t.Fatalf("September reopenings = %d, %v", n, err)
	}
	october := temporal.Window{Start: day(time.October, 1), End: day(time.November, 1)}
	n, err = q.CountReopeningsInWindow(ctx, october, Filters{})
	if err != nil || n != 0 {
		t.Fatalf("October reopenings = %d, %v", n, err)
	}
}

func TestTicketsByClassifier(t *testing.T) {
	q := newEngine(t, seededStore(t), config.QueryConfig{})
	got, err := q.TicketsByClassifier(context.Background(), september, "", 2)
	if err != nil {
		t.Fatalf("TicketsByClassifier: %v", err)
	}
	want := []ClassifierCount{
		{NodeID: "A", Name: "Soporte", Count: 1},
		{NodeID: "B", Name: "Hardware", Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buckets = %+v", got)
	}
}

func TestCreationTrend(t *testing.T) {
	q := newEngine(t, seededStore(t), config.QueryConfig{})
	got, err := q.CreationTrend(context.Background(), september, Filters{})
	if err != nil {
		t.Fatalf("CreationTrend: %v", err)
	}
	want := []DailyCount{{"2025-09-01", 1}, {"2025-09-05", 1}, {"2025-09-10", 1}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("trend = %+v", got)
	}
}

func TestReopenStats(t *testing.T) {
	q := newEngine(t, seededStore(t), config.QueryConfig{})
	s, err := q.ReopenStats(context.Background(), Filters{})
	if err != nil {
		t.Fatalf("ReopenStats: %v", err)
	}
	if s != (ReopenStats{Total: 4, WithReopens: 1, WithoutReopens: 3}) {
		t.Fatalf("stats = %+v", s)
	}
}

func TestResolutionTime(t *testing.T) {
	q := newEngine(t, seededStore(t), config.QueryConfig{})
	s, err := q.ResolutionTime(context.Background(), september, Filters{})
	if err != nil {
		t.Fatalf("ResolutionTime: %v", err)
	}
	// only ticket_c2 was created in September and is closed: Sep 5 to Oct 5
	if s.Closed != 1 || s.AvgDays != 30 || s.MinDays != 30 || s.MaxDays != 30 {
		t.Fatalf("resolution = %+v", s)
	}
}
