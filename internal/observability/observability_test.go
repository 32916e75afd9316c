package observability

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/Jessir1108/Capta-Tickets/internal/config"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/v1/analytics/entries", "GET", 200, time.Millisecond)
	m.RecordRequest("/v1/analytics/entries", "GET", 200, time.Millisecond)
	m.RecordError("/v1/analytics/entries", "GET", "VALIDATION_FAILED")
	m.RecordQuery("count_entries", 2*time.Millisecond, nil)
	m.RecordQuery("count_entries", 4*time.Millisecond, errors.New("boom"))

	s := m.Snapshot()
	if s.Requests["/v1/analytics/entries|GET|200"] != 2 {
		t.Fatalf("requests = %v", s.Requests)
	}
	if s.Errors["/v1/analytics/entries|GET|VALIDATION_FAILED"] != 1 {
		t.Fatalf("errors = %v", s.Errors)
	}
	if len(s.Queries) != 1 {
		t.Fatalf("queries = %+v", s.Queries)
	}
	q := s.Queries[0]
	if q.Count != 2 || q.Failures != 1 || q.AvgMillis != 3 || q.MaxMillis != 4 {
		t.Fatalf("query snapshot = %+v", q)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordQuery("x", 0, nil)
	if s := m.Snapshot(); len(s.Queries) != 0 {
		t.Fatalf("nil snapshot = %+v", s)
	}
}

func TestNewLogger_FallsBackOnBadLevel(t *testing.T) {
	logger, err := NewLogger(config.AppConfig{Env: "production"}, config.LoggerConfig{Level: "loud"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug must be disabled when the level falls back to info")
	}
}

func TestNewLogger_DevelopmentFollowsEnv(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"Development", true},
		{"production", false},
		{"", false},
	}
	for _, tt := range tests {
		logger, err := NewLogger(config.AppConfig{Env: tt.env, Name: "svc"}, config.LoggerConfig{Level: "info"})
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", tt.env, err)
		}
		// DPanic only panics in development loggers.
		panicked := func() (p bool) {
			defer func() { p = recover() != nil }()
			logger.DPanic("check")
			return false
		}()
		if panicked != tt.want {
			t.Errorf("env %q: development = %v, want %v", tt.env, panicked, tt.want)
		}
	}
}
