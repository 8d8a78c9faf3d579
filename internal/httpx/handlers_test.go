package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-fulfillment/internal/clock"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
)

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) Lookup(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *memIdempotency) Claim(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = ""
	return true, nil
}

func (m *memIdempotency) Bind(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *memIdempotency) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type testApp struct {
	router http.Handler
	store  *orders.Store
	saga   *fulfillment.Orchestrator
	idem   *memIdempotency
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	store := orders.NewStore(orders.WithClock(clock.NewFixed(now)))
	ledger := inventory.NewLedger()
	if err := ledger.Seed(inventory.DefaultSeed()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		store.Close()
		ledger.Close()
	})
	sim := payment.NewSimulator(payment.WithClock(clock.NewFixed(now)), payment.WithSuccessRate(1))
	saga := fulfillment.New(store, ledger, sim, fulfillment.WithClock(clock.NewFixed(now)))
	svc := fulfillment.NewService(store, ledger, saga, nil)
	idem := &memIdempotency{keys: map[string]string{}}

	return &testApp{
		router: NewRouter(Handlers{
			Orders:  &OrdersHandler{Service: svc, Idem: idem},
			Metrics: &MetricsHandler{Registry: saga.Metrics().Registry},
			Events:  &EventsHandler{Orders: store, Stock: ledger},
		}),
		store: store,
		saga:  saga,
		idem:  idem,
	}
}

func (a *testApp) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

const orderBody = `{
	"customer_id": "C1",
	"customer_name": "Ada",
	"customer_email": "ada@example.com",
	"items": [{"product_id": "PROD-001", "quantity": 2, "price": 19.5}]
}`

func TestOrders_CreateAndQuery(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/orders", orderBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body)
	}
	created := decode[orders.Order](t, rec)
	if created.TotalAmount != 39 || created.Items[0].ProductName == "" {
		t.Fatalf("unexpected order %+v", created)
	}

	rec = app.do(t, http.MethodGet, "/orders/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if got := decode[orders.Order](t, rec); got.ID != created.ID {
		t.Fatalf("got %s", got.ID)
	}

	rec = app.do(t, http.MethodGet, "/orders", "")
	if list := decode[[]orders.Order](t, rec); len(list) != 1 {
		t.Fatalf("expected 1 order, got %d", len(list))
	}

	rec = app.do(t, http.MethodGet, "/orders/ORD-missing", "")
	if rec.Code != http.StatusNotFound || decode[errorBody](t, rec).Code != "not_found" {
		t.Fatalf("missing order: %d %s", rec.Code, rec.Body)
	}
}

func TestOrders_CreateRejects(t *testing.T) {
	app := newTestApp(t)

	cases := []struct {
		name string
		body string
		code int
		err  string
	}{
		{"bad json", `{`, http.StatusBadRequest, "invalid_json"},
		{"no items", `{"customer_id":"C1","customer_name":"Ada","customer_email":"ada@example.com","items":[]}`, http.StatusBadRequest, "invalid_order"},
		{"unknown product", strings.Replace(orderBody, "PROD-001", "PROD-999", 1), http.StatusNotFound, "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := app.do(t, http.MethodPost, "/orders", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d %s", tc.code, rec.Code, rec.Body)
			}
			if got := decode[errorBody](t, rec).Code; got != tc.err {
				t.Fatalf("expected code %s, got %s", tc.err, got)
			}
		})
	}
}

func TestOrders_IdempotencyKey(t *testing.T) {
	app := newTestApp(t)

	first := app.do(t, http.MethodPost, "/orders", orderBody, HeaderIdempotencyKey, "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("first: %d %s", first.Code, first.Body)
	}
	second := app.do(t, http.MethodPost, "/orders", orderBody, HeaderIdempotencyKey, "k-1")
	if second.Code != http.StatusOK || second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("replay: %d %v", second.Code, second.Header())
	}
	if decode[orders.Order](t, first).ID != decode[orders.Order](t, second).ID {
		t.Fatal("replay must return the original order")
	}
	if n := len(app.store.GetAllOrders()); n != 1 {
		t.Fatalf("expected one order, got %d", n)
	}

	if _, err := app.idem.Claim(context.Background(), "k-2"); err != nil {
		t.Fatal(err)
	}
	rec := app.do(t, http.MethodPost, "/orders", orderBody, HeaderIdempotencyKey, "k-2")
	if rec.Code != http.StatusConflict || decode[errorBody](t, rec).Code != "request_in_flight" {
		t.Fatalf("in flight: %d %s", rec.Code, rec.Body)
	}

	bad := app.do(t, http.MethodPost, "/orders", strings.Replace(orderBody, "PROD-001", "PROD-999", 1), HeaderIdempotencyKey, "k-3")
	if bad.Code != http.StatusNotFound {
		t.Fatalf("bad: %d", bad.Code)
	}
	if _, found, _ := app.idem.Lookup(context.Background(), "k-3"); found {
		t.Fatal("failed request must release its key")
	}
}

func TestOrders_Cancel(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodPost, "/orders/ORD-missing/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", rec.Code)
	}

	created := decode[orders.Order](t, app.do(t, http.MethodPost, "/orders", orderBody))
	select {
	case <-app.saga.Done(created.ID):
	case <-time.After(5 * time.Second):
		t.Fatal("saga did not finish")
	}

	rec = app.do(t, http.MethodPost, "/orders/"+created.ID+"/cancel", `{"reason":"too slow"}`)
	if rec.Code != http.StatusConflict || decode[errorBody](t, rec).Code != "not_cancellable" {
		t.Fatalf("delivered order: %d %s", rec.Code, rec.Body)
	}
}

func TestInventoryAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/inventory", "")
	items := decode[[]inventory.Item](t, rec)
	if len(items) != 4 || items[0].ProductID != "PROD-001" {
		t.Fatalf("unexpected inventory %+v", items)
	}

	rec = app.do(t, http.MethodGet, "/inventory/low-stock", "")
	for _, it := range decode[[]inventory.Item](t, rec) {
		if !it.NeedsReorder() {
			t.Fatalf("%s is not low", it.ProductID)
		}
	}

	app.do(t, http.MethodPost, "/orders", orderBody)
	rec = app.do(t, http.MethodGet, "/metrics", "")
	m := decode[map[string]map[string]any](t, rec)
	if m["saga.started"]["count"] != float64(1) {
		t.Fatalf("unexpected metrics %v", m["saga.started"])
	}

	rec = app.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}

func TestEvents_StreamsOrderChanges(t *testing.T) {
	app := newTestApp(t)
	srv := httptest.NewServer(app.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() || lines.Text() != ": connected" {
		t.Fatalf("expected greeting, got %q", lines.Text())
	}

	o := app.store.CreateOrder(orders.NewOrder{CustomerID: "C9", Items: []orders.Item{{ProductID: "PROD-002", Quantity: 1, Price: 5}}})
	for lines.Scan() {
		if lines.Text() != "event: "+orders.EventOrderCreated {
			continue
		}
		if !lines.Scan() || !strings.Contains(lines.Text(), o.ID) {
			t.Fatalf("expected data for %s, got %q", o.ID, lines.Text())
		}
		return
	}
	t.Fatalf("stream ended: %v", lines.Err())
}
