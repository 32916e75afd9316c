package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Jessir1108/Capta-Tickets/internal/api/dto"
	"github.com/Jessir1108/Capta-Tickets/internal/api/http/handlers"
	"github.com/Jessir1108/Capta-Tickets/internal/classifier"
	"github.com/Jessir1108/Capta-Tickets/internal/config"
	"github.com/Jessir1108/Capta-Tickets/internal/consistency"
	"github.com/Jessir1108/Capta-Tickets/internal/domain"
	"github.com/Jessir1108/Capta-Tickets/internal/observability"
	"github.com/Jessir1108/Capta-Tickets/internal/repository"
	"github.com/Jessir1108/Capta-Tickets/internal/repository/memory"
	"github.com/Jessir1108/Capta-Tickets/internal/service"
	apperrors "github.com/Jessir1108/Capta-Tickets/pkg/util"
)

const fixturePath = "../../../repository/memory/testdata/fixture.json"

type envelope struct {
	Data  json.RawMessage    `json:"data"`
	Error *dto.ErrorResponse `json:"error"`
}

func newTestApp(t *testing.T, store repository.Store) (*fiber.App, *observability.Metrics) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	resolver := classifier.NewResolver(store, classifier.NewMemoryCache(), logger)
	engine, err := service.NewQueryEngine(service.QueryDependencies{
		Store:    store,
		Resolver: resolver,
		Config:   config.QueryConfig{ActionLimit: 50, StateFallback: "current", DefaultCaseLimit: 200},
		Logger:   logger,
		Observer: metrics,
	})
	if err != nil {
		t.Fatalf("NewQueryEngine: %v", err)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:      handlers.NewHealthHandler("test", "dev", map[string]handlers.Pinger{"postgres": nil}),
		Metrics:     handlers.NewMetricsHandler(metrics),
		Analytics:   handlers.NewAnalyticsHandler(engine),
		Tickets:     handlers.NewTicketsHandler(engine, consistency.NewChecker(store, nil, logger)),
		Classifiers: handlers.NewClassifiersHandler(resolver),
	})
	return app, metrics
}

func fixtureStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	if err := s.LoadFixture(fixturePath); err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return s
}

func do(t *testing.T, app *fiber.App, method, target string) (int, envelope) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, target, raw, err)
		}
	}
	return resp.StatusCode, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return out
}

const september = "start=2025-09-01&end=2025-10-01"

func TestAnalyticsCounts(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))

	tests := []struct {
		name  string
		path  string
		count int64
	}{
		{"entries", "/v1/analytics/entries?" + september, 2},
		{"entries with unencoded offsets", "/v1/analytics/entries?start=2025-09-01T02:00:00+02:00&end=2025-10-01T02:00:00+02:00", 2},
		{"entries under classifier A", "/v1/analytics/entries?" + september + "&classifier=A", 1},
		{"entries by state", "/v1/analytics/entries?" + september + "&state=closed", 1},
		{"closures", "/v1/analytics/closures?" + september, 2},
		{"closures in october", "/v1/analytics/closures?start=2025-10-01&end=2025-11-01", 1},
		{"reopenings in window", "/v1/analytics/reopenings/window?" + september, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := do(t, app, fiber.MethodGet, tt.path)
			if status != fiber.StatusOK {
				t.Fatalf("status = %d, error = %+v", status, env.Error)
			}
			if got := decode[dto.CountResponse](t, env); got.Count != tt.count {
				t.Fatalf("count = %d, want %d", got.Count, tt.count)
			}
		})
	}
}

func TestAnalyticsCases_StateAtWindowEnd(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	status, env := do(t, app, fiber.MethodGet, "/v1/analytics/cases?"+september+"&state=closed")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	res := decode[dto.CaseListResponse](t, env)
	if res.Total != 1 || len(res.Cases) != 1 || res.Cases[0].ID != "ticket_c1" {
		t.Fatalf("cases = %+v", res)
	}
	if res.Cases[0].StateAtEnd != "closed" || res.Cases[0].StateAtStart != "in_progress" {
		t.Fatalf("states = %s -> %s", res.Cases[0].StateAtStart, res.Cases[0].StateAtEnd)
	}
}

func TestTicketList(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	status, env := do(t, app, fiber.MethodGet, "/v1/tickets?"+september+"&sort=created_asc")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	res := decode[dto.TicketListResponse](t, env)
	if len(res.Tickets) != 2 || res.Tickets[0].ID != "ticket_a" || res.Tickets[1].ID != "ticket_c2" {
		t.Fatalf("tickets = %+v", res.Tickets)
	}

	_, env = do(t, app, fiber.MethodGet, "/v1/tickets?"+september+"&limit=1")
	if res := decode[dto.TicketListResponse](t, env); len(res.Tickets) != 1 || res.Tickets[0].ID != "ticket_c2" {
		t.Fatalf("newest ticket = %+v", res.Tickets)
	}
}

func TestAnalyticsActions_NewestFirst(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	status, env := do(t, app, fiber.MethodGet, "/v1/analytics/actions?"+september+"&limit=2")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	res := decode[dto.ActionListResponse](t, env)
	if res.Limit != 2 || len(res.Actions) != 2 {
		t.Fatalf("actions = %+v", res)
	}
	first := res.Actions[0]
	if first.TicketID != "ticket_a" || first.FromState != "closed" || first.ToState != "open" {
		t.Fatalf("first action = %+v", first)
	}
	if !first.Timestamp.After(res.Actions[1].Timestamp) {
		t.Fatalf("actions not newest first: %+v", res.Actions)
	}
}

func TestAnalyticsReopenings(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	_, env := do(t, app, fiber.MethodGet, "/v1/analytics/reopenings")
	totals := decode[service.ReopenTotals](t, env)
	if totals.Denormalized != 1 || totals.Derived != 1 || !totals.Consistent {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestAnalytics_ValidationErrors(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	for _, path := range []string{
		"/v1/analytics/entries?end=2025-10-01",
		"/v1/analytics/entries?start=yesterday&end=2025-10-01",
		"/v1/analytics/entries?start=2025-10-01&end=2025-09-01",
		"/v1/analytics/entries?" + september + "&state=frozen",
		"/v1/analytics/actions?" + september + "&limit=-1",
		"/v1/analytics/cases?" + september + "&sort=sideways",
	} {
		status, env := do(t, app, fiber.MethodGet, path)
		if status != fiber.StatusBadRequest || env.Error == nil || env.Error.Code != apperrors.CodeValidation {
			t.Errorf("%s: status = %d, error = %+v", path, status, env.Error)
		}
	}
}

func TestTicketStateAt(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))

	_, env := do(t, app, fiber.MethodGet, "/v1/tickets/ticket_a/state?at=2025-09-16T00:00:00Z")
	if got := decode[dto.StateAtResponse](t, env); got.State != "closed" {
		t.Fatalf("state = %+v", got)
	}

	status, env := do(t, app, fiber.MethodGet, "/v1/tickets/ghost/state")
	if status != fiber.StatusNotFound || env.Error.Code != apperrors.CodeNotFound {
		t.Fatalf("ghost: status = %d, error = %+v", status, env.Error)
	}
}

func TestTicketConsistency(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	_, env := do(t, app, fiber.MethodGet, "/v1/tickets/ticket_a/consistency")
	got := decode[dto.ConsistencyResponse](t, env)
	if !got.Consistent || got.Malformed || got.Reopen.Derived != 1 || len(got.Findings) != 0 {
		t.Fatalf("report = %+v", got)
	}

	status, _ := do(t, app, fiber.MethodGet, "/v1/tickets/ghost/consistency")
	if status != fiber.StatusNotFound {
		t.Fatalf("ghost status = %d", status)
	}
}

func TestClassifiers(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	_, env := do(t, app, fiber.MethodGet, "/v1/classifiers/A/descendants")
	got := decode[dto.DescendantsResponse](t, env)
	if fmt.Sprint(got.Descendants) != "[A B C]" {
		t.Fatalf("descendants = %v", got.Descendants)
	}

	status, _ := do(t, app, fiber.MethodPost, "/v1/classifiers/cache/invalidate")
	if status != fiber.StatusNoContent {
		t.Fatalf("invalidate status = %d", status)
	}
}

func TestClassifierTree(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	status, env := do(t, app, fiber.MethodGet, "/v1/classifiers")
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	got := decode[dto.ClassifierTreeResponse](t, env)
	if got.Nodes != 4 || len(got.Roots) != 2 {
		t.Fatalf("tree = %+v", got)
	}
	a, d := got.Roots[0], got.Roots[1]
	if a.ID != "A" || d.ID != "D" || len(d.Children) != 0 {
		t.Fatalf("roots = %s, %s", a.ID, d.ID)
	}
	if len(a.Children) != 1 || a.Children[0].ID != "B" {
		t.Fatalf("children of A = %+v", a.Children)
	}
	b := a.Children[0]
	if len(b.Children) != 1 || b.Children[0].ID != "C" || b.Children[0].Path != "Soporte/Hardware/Impresoras" {
		t.Fatalf("children of B = %+v", b.Children)
	}
}

func TestClassifierTree_DanglingParent(t *testing.T) {
	store := memory.New()
	parent := "gone"
	store.PutClassifiers(domain.ClassifierNode{ID: "X", ParentID: &parent, RootID: "gone", Level: 1})
	app, _ := newTestApp(t, store)

	status, env := do(t, app, fiber.MethodGet, "/v1/classifiers")
	if status != fiber.StatusUnprocessableEntity {
		t.Fatalf("status = %d", status)
	}
	if env.Error == nil || env.Error.Code != apperrors.CodeInconsistentState {
		t.Fatalf("error = %+v", env.Error)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	if status, _ := do(t, app, fiber.MethodGet, "/health/live"); status != fiber.StatusOK {
		t.Fatalf("live status = %d", status)
	}
	if status, _ := do(t, app, fiber.MethodGet, "/health/ready"); status != fiber.StatusOK {
		t.Fatalf("ready status = %d", status)
	}

	do(t, app, fiber.MethodGet, "/v1/analytics/entries?"+september)
	_, env := do(t, app, fiber.MethodGet, "/metrics")
	snap := decode[observability.Snapshot](t, env)
	if snap.Requests["/v1/analytics/entries|GET|200"] != 1 {
		t.Fatalf("requests = %v", snap.Requests)
	}
	if len(snap.Queries) == 0 || snap.Queries[0].Name != "count_entries" {
		t.Fatalf("queries = %+v", snap.Queries)
	}
}

func TestUnknownRoute(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))
	status, env := do(t, app, fiber.MethodGet, "/v1/nowhere")
	if status != fiber.StatusNotFound || env.Error == nil || env.Error.Code != apperrors.CodeNotFound {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
}

type unavailableStore struct {
	*memory.Store
}

func (unavailableStore) CountTickets(context.Context, repository.TicketPredicate) (int64, error) {
	return 0, fmt.Errorf("count tickets: %w: connection refused", apperrors.ErrStoreUnavailable)
}

func TestStoreUnavailable(t *testing.T) {
	app, metrics := newTestApp(t, unavailableStore{fixtureStore(t)})
	status, env := do(t, app, fiber.MethodGet, "/v1/analytics/entries?"+september)
	if status != nethttp.StatusServiceUnavailable || env.Error.Code != apperrors.CodeStoreUnavailable {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	if metrics.Snapshot().Errors["/v1/analytics/entries|GET|"+apperrors.CodeStoreUnavailable] != 1 {
		t.Fatalf("errors = %v", metrics.Snapshot().Errors)
	}
}

func TestDashboardRoutes(t *testing.T) {
	app, _ := newTestApp(t, fixtureStore(t))

	_, env := do(t, app, fiber.MethodGet, "/v1/analytics/summary?"+september)
	summary := decode[service.Summary](t, env)
	if summary.Total != 2 || summary.ByState["open"] != 1 || summary.ByState["closed"] != 1 || summary.Reopenings != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	_, env = do(t, app, fiber.MethodGet, "/v1/analytics/trend?"+september)
	trend := decode[[]service.DailyCount](t, env)
	if len(trend) != 2 || trend[0].Day != "2025-09-01" || trend[1].Day != "2025-09-05" {
		t.Fatalf("trend = %+v", trend)
	}

	_, env = do(t, app, fiber.MethodGet, "/v1/analytics/classifiers?"+september)
	buckets := decode[[]service.ClassifierCount](t, env)
	if len(buckets) != 2 || buckets[0].NodeID != "B" || buckets[0].Name != "Hardware" {
		t.Fatalf("classifiers = %+v", buckets)
	}

	_, env = do(t, app, fiber.MethodGet, "/v1/analytics/reopen-stats")
	stats := decode[service.ReopenStats](t, env)
	if stats.Total != 3 || stats.WithReopens != 1 || stats.WithoutReopens != 2 {
		t.Fatalf("reopen stats = %+v", stats)
	}

	_, env = do(t, app, fiber.MethodGet, "/v1/analytics/resolution-time?"+september)
	res := decode[service.ResolutionStats](t, env)
	if res.Closed != 1 || res.AvgDays != 30 {
		t.Fatalf("resolution = %+v", res)
	}
}
