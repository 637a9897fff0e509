package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/api"
	"github.com/xraph/conduit/signature"
	"github.com/xraph/conduit/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConduit starts a Conduit backed by a memory store.
func testConduit(t *testing.T) *conduit.Conduit {
	t.Helper()

	c, err := conduit.New(
		conduit.WithStore(memory.New()),
		conduit.WithLogger(discardLogger()),
	)
	if err != nil {
		t.Fatalf("new conduit: %v", err)
	}
	c.Start(context.Background())
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

// testServer creates a Handler backed by a memory store and returns the test server.
func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(api.NewHandler(testConduit(t), discardLogger()))
	t.Cleanup(srv.Close)
	return srv
}

// upstream answers every call with status and counts the hits.
func upstream(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	return doWithHeaders(t, method, url, body, nil)
}

func doWithHeaders(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func routeBody(baseURL string) map[string]any {
	return map[string]any{
		"name": "orders to erp",
		"source": map[string]any{
			"name":   "shop",
			"event":  "order.created",
			"active": true,
		},
		"target": map[string]any{
			"name":     "erp",
			"base_url": baseURL,
			"path":     "/orders",
			"active":   true,
		},
		"mapping": []map[string]any{
			{"source": "id", "target": "order_id"},
			{"source": "qty", "target": "quantity", "transform": "to_int"},
		},
		"retry":   map[string]any{"max_attempts": 2, "base_delay_sec": 0.01, "max_delay_sec": 0.01},
		"circuit": map[string]any{"failure_threshold": 10, "recovery_timeout_sec": 60},
	}
}

func createRoute(t *testing.T, srvURL string, body map[string]any) string {
	t.Helper()
	resp := doJSON(t, "POST", srvURL+"/routes", body)
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		t.Fatalf("create route: expected 201, got %d", resp.StatusCode)
	}
	var created map[string]any
	decodeBody(t, resp, &created)
	return created["id"].(string)
}

// --- Routes ---

func TestRoutes_CRUD(t *testing.T) {
	srv := testServer(t)
	up, _ := upstream(t, 200)

	routeID := createRoute(t, srv.URL, routeBody(up.URL))

	// Get
	resp := doJSON(t, "GET", srv.URL+"/routes/"+routeID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var got map[string]any
	decodeBody(t, resp, &got)
	if got["name"] != "orders to erp" || got["enabled"] != true {
		t.Errorf("get: unexpected route %v", got)
	}

	// Disable
	resp = doJSON(t, "PATCH", srv.URL+"/routes/"+routeID+"/disable", nil)
	decodeBody(t, resp, &got)
	if resp.StatusCode != http.StatusOK || got["enabled"] != false {
		t.Fatalf("disable: status %d, route %v", resp.StatusCode, got)
	}

	// List enabled only
	resp = doJSON(t, "GET", srv.URL+"/routes?enabled=true", nil)
	var list []map[string]any
	decodeBody(t, resp, &list)
	if len(list) != 0 {
		t.Errorf("list enabled: expected 0 routes, got %d", len(list))
	}

	// Enable
	resp = doJSON(t, "PATCH", srv.URL+"/routes/"+routeID+"/enable", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enable: expected 200, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "GET", srv.URL+"/routes", nil)
	decodeBody(t, resp, &list)
	if len(list) != 1 {
		t.Errorf("list: expected 1 route, got %d", len(list))
	}

	// Delete
	resp = doJSON(t, "DELETE", srv.URL+"/routes/"+routeID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, "GET", srv.URL+"/routes/"+routeID, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: expected 404, got %d", resp.StatusCode)
	}
}

func TestRoutes_CreateInvalid(t *testing.T) {
	srv := testServer(t)

	body := routeBody("http://erp.local")
	body["mapping"] = []map[string]any{{"source": "id", "target": "order_id", "transform": "reverse"}}

	resp := doJSON(t, "POST", srv.URL+"/routes", body)
	var errBody map[string]string
	decodeBody(t, resp, &errBody)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if errBody["error"] == "" {
		t.Error("expected an error message")
	}
}

func TestRoutes_InvalidID(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "GET", srv.URL+"/routes/not-an-id", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// --- Dispatch ---

func TestRunRoute_Success(t *testing.T) {
	srv := testServer(t)
	up, hits := upstream(t, 201)
	routeID := createRoute(t, srv.URL, routeBody(up.URL))

	resp := doWithHeaders(t, "POST", srv.URL+"/routes/"+routeID+"/run",
		map[string]any{"id": "A1", "qty": "3"},
		map[string]string{"X-Request-Id": "req-1"})

	var out map[string]any
	decodeBody(t, resp, &out)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %v", resp.StatusCode, out)
	}
	if out["status"] != "SUCCEEDED" || out["route_id"] != routeID || out["correlation_id"] != "req-1" {
		t.Errorf("unexpected response %v", out)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}

	// The run is readable.
	resp = doJSON(t, "GET", srv.URL+"/runs/"+out["run_id"].(string), nil)
	var rn map[string]any
	decodeBody(t, resp, &rn)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get run: expected 200, got %d", resp.StatusCode)
	}
	mapped, _ := rn["mapped_payload"].(map[string]any)
	if mapped["order_id"] != "A1" || mapped["quantity"] != float64(3) {
		t.Errorf("mapped payload = %v", rn["mapped_payload"])
	}
}

func TestRunRoute_UnknownRoute(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/routes/route_01h455vb4pex5vsknk084sn02q/run", map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRunRoute_InvalidJSON(t *testing.T) {
	srv := testServer(t)
	up, _ := upstream(t, 200)
	routeID := createRoute(t, srv.URL, routeBody(up.URL))

	req, _ := http.NewRequestWithContext(context.Background(), "POST",
		srv.URL+"/routes/"+routeID+"/run", bytes.NewReader([]byte("{not json")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRunRoute_FailureDeadLetters(t *testing.T) {
	srv := testServer(t)
	up, hits := upstream(t, 503)
	routeID := createRoute(t, srv.URL, routeBody(up.URL))

	resp := doJSON(t, "POST", srv.URL+"/routes/"+routeID+"/run", map[string]any{"id": "A1", "qty": "3"})
	var out map[string]any
	decodeBody(t, resp, &out)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if out["status"] != "FAILED" || out["run_id"] == "" || out["error"] == "" {
		t.Errorf("unexpected response %v", out)
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", hits.Load())
	}

	resp = doJSON(t, "GET", srv.URL+"/dead-letters?status=PENDING&route_id="+routeID, nil)
	var entries []map[string]any
	decodeBody(t, resp, &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(entries))
	}
	if entries[0]["run_id"] != out["run_id"] {
		t.Errorf("dead letter run_id = %v, want %v", entries[0]["run_id"], out["run_id"])
	}

	resp = doJSON(t, "GET", srv.URL+"/metrics", nil)
	var summary conduit.Summary
	decodeBody(t, resp, &summary)
	if summary.TotalRuns != 1 || summary.FailedRuns != 1 || summary.PendingDeadLetters != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunRoute_Idempotent(t *testing.T) {
	srv := testServer(t)
	up, hits := upstream(t, 200)
	routeID := createRoute(t, srv.URL, routeBody(up.URL))

	headers := map[string]string{"Idempotency-Key": "order-A1"}
	var first, second map[string]any

	resp := doWithHeaders(t, "POST", srv.URL+"/routes/"+routeID+"/run", map[string]any{"id": "A1"}, headers)
	decodeBody(t, resp, &first)
	resp = doWithHeaders(t, "POST", srv.URL+"/routes/"+routeID+"/run", map[string]any{"id": "A1"}, headers)
	decodeBody(t, resp, &second)

	if first["run_id"] != second["run_id"] {
		t.Errorf("expected the same run, got %v and %v", first["run_id"], second["run_id"])
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestRunRoute_Async(t *testing.T) {
	srv := testServer(t)
	up, _ := upstream(t, 200)
	routeID := createRoute(t, srv.URL, routeBody(up.URL))

	resp := doJSON(t, "POST", srv.URL+"/routes/"+routeID+"/run?async=true", map[string]any{"id": "A1"})
	var out map[string]any
	decodeBody(t, resp, &out)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	runURL := srv.URL + "/runs/" + out["run_id"].(string)
	deadline := time.Now().Add(5 * time.Second)
	for {
		var rn map[string]any
		decodeBody(t, doJSON(t, "GET", runURL, nil), &rn)
		if rn["status"] == "SUCCEEDED" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("run did not finish: %v", rn)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebhook_Signature(t *testing.T) {
	srv := testServer(t)
	up, hits := upstream(t, 200)

	body := routeBody(up.URL)
	body["source"].(map[string]any)["secret"] = "whsec_test"
	routeID := createRoute(t, srv.URL, body)

	payload := []byte(`{"id":"A1","qty":"2"}`)
	post := func(headers map[string]string) int {
		req, _ := http.NewRequestWithContext(context.Background(), "POST",
			srv.URL+"/webhooks/"+routeID, bytes.NewReader(payload))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("do: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if status := post(nil); status != http.StatusUnauthorized {
		t.Errorf("unsigned: expected 401, got %d", status)
	}

	ts := time.Now().Unix()
	if status := post(map[string]string{
		signature.HeaderSignature: signature.Sign(payload, "wrong", ts),
		signature.HeaderTimestamp: strconv.FormatInt(ts, 10),
	}); status != http.StatusUnauthorized {
		t.Errorf("wrong secret: expected 401, got %d", status)
	}
	if hits.Load() != 0 {
		t.Fatalf("rejected webhooks must not reach the target, got %d hits", hits.Load())
	}

	if status := post(map[string]string{
		signature.HeaderSignature: signature.Sign(payload, "whsec_test", ts),
		signature.HeaderTimestamp: strconv.FormatInt(ts, 10),
	}); status != http.StatusAccepted {
		t.Errorf("signed: expected 202, got %d", status)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}
}

func TestEvents_Dispatch(t *testing.T) {
	srv := testServer(t)
	up, hits := upstream(t, 200)
	createRoute(t, srv.URL, routeBody(up.URL))

	resp := doJSON(t, "POST", srv.URL+"/events/order.created", map[string]any{"id": "A1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits.Load())
	}

	resp = doJSON(t, "POST", srv.URL+"/events/invoice.paid", map[string]any{"id": "A1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unmatched event: expected 404, got %d", resp.StatusCode)
	}
}

// --- Runs ---

func TestRuns_ListByRoute(t *testing.T) {
	srv := testServer(t)
	up, _ := upstream(t, 200)
	first := createRoute(t, srv.URL, routeBody(up.URL))
	second := createRoute(t, srv.URL, routeBody(up.URL))

	for _, routeID := range []string{first, first, second} {
		resp := doJSON(t, "POST", srv.URL+"/routes/"+routeID+"/run", map[string]any{"id": "A1"})
		resp.Body.Close()
	}

	var runs []map[string]any
	decodeBody(t, doJSON(t, "GET", srv.URL+"/runs?route_id="+first, nil), &runs)
	if len(runs) != 2 {
		t.Errorf("runs for first route: expected 2, got %d", len(runs))
	}

	decodeBody(t, doJSON(t, "GET", srv.URL+"/routes/"+second+"/runs", nil), &runs)
	if len(runs) != 1 {
		t.Errorf("runs for second route: expected 1, got %d", len(runs))
	}

	decodeBody(t, doJSON(t, "GET", srv.URL+"/runs?limit=1", nil), &runs)
	if len(runs) != 1 {
		t.Errorf("limited list: expected 1, got %d", len(runs))
	}

	resp := doJSON(t, "GET", srv.URL+"/runs/run_01h455vb4pex5vsknk084sn02q", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown run: expected 404, got %d", resp.StatusCode)
	}
}

// --- Dead letters ---

func TestDeadLetters_ReplayAndPurge(t *testing.T) {
	srv := testServer(t)

	var fail atomic.Bool
	fail.Store(true)
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer up.Close()

	routeID := createRoute(t, srv.URL, routeBody(up.URL))
	resp := doJSON(t, "POST", srv.URL+"/routes/"+routeID+"/run", map[string]any{"id": "A1"})
	resp.Body.Close()

	var entries []map[string]any
	decodeBody(t, doJSON(t, "GET", srv.URL+"/dead-letters", nil), &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(entries))
	}
	entryID := entries[0]["id"].(string)

	// Replay while the target still fails.
	resp = doJSON(t, "POST", srv.URL+"/dead-letters/"+entryID+"/replay", nil)
	var replay map[string]any
	decodeBody(t, resp, &replay)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("failed replay: expected 502, got %d", resp.StatusCode)
	}
	if replay["replay_count"] != float64(1) || replay["dead_letter_id"] != entryID {
		t.Errorf("failed replay response = %v", replay)
	}

	// Replay once the target recovers.
	fail.Store(false)
	resp = doJSON(t, "POST", srv.URL+"/dead-letters/"+entryID+"/replay", nil)
	decodeBody(t, resp, &replay)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", resp.StatusCode)
	}
	if replay["status"] != "SUCCEEDED" || replay["replay_count"] != float64(2) {
		t.Errorf("replay response = %v", replay)
	}

	var entry map[string]any
	decodeBody(t, doJSON(t, "GET", srv.URL+"/dead-letters/"+entryID, nil), &entry)
	if entry["status"] != "REPLAYED" {
		t.Errorf("entry status = %v, want REPLAYED", entry["status"])
	}

	// A replayed entry is not delivered again.
	resp = doJSON(t, "POST", srv.URL+"/dead-letters/"+entryID+"/replay", nil)
	decodeBody(t, resp, &replay)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second replay: expected 409, got %d", resp.StatusCode)
	}

	// Purge requires a timestamp.
	resp = doJSON(t, "DELETE", srv.URL+"/dead-letters", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("purge without before: expected 400, got %d", resp.StatusCode)
	}

	before := time.Now().Add(time.Minute).UTC().Format(time.RFC3339)
	var purged map[string]int64
	decodeBody(t, doJSON(t, "DELETE", srv.URL+"/dead-letters?before="+before, nil), &purged)
	if purged["purged"] != 1 {
		t.Errorf("purged = %d, want 1", purged["purged"])
	}
}

func TestDeadLetters_ReplayUnknown(t *testing.T) {
	srv := testServer(t)

	resp := doJSON(t, "POST", srv.URL+"/dead-letters/dlq_01h455vb4pex5vsknk084sn02q/replay", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

// --- Ops ---

func TestOps_HealthAndCircuit(t *testing.T) {
	srv := testServer(t)

	var health map[string]string
	resp := doJSON(t, "GET", srv.URL+"/health", nil)
	decodeBody(t, resp, &health)
	if resp.StatusCode != http.StatusOK || health["status"] != "ok" {
		t.Errorf("health: %d %v", resp.StatusCode, health)
	}

	var snap map[string]any
	decodeBody(t, doJSON(t, "GET", srv.URL+"/circuits/erp", nil), &snap)
	if snap["key"] != "erp" || snap["state"] != "CLOSED" {
		t.Errorf("circuit snapshot = %v", snap)
	}

	var summary conduit.Summary
	decodeBody(t, doJSON(t, "GET", srv.URL+"/metrics", nil), &summary)
	if summary.TotalRuns != 0 || summary.SuccessRate != 0 {
		t.Errorf("empty summary = %+v", summary)
	}
}

func TestOps_ResetCircuit(t *testing.T) {
	srv := testServer(t)
	up, hits := upstream(t, 503)

	body := routeBody(up.URL)
	body["retry"] = map[string]any{"max_attempts": 1}
	body["circuit"] = map[string]any{"failure_threshold": 1, "recovery_timeout_sec": 60}
	routeID := createRoute(t, srv.URL, body)

	run := func() {
		resp := doJSON(t, "POST", srv.URL+"/routes/"+routeID+"/run", map[string]any{"id": "A1"})
		resp.Body.Close()
	}

	run()
	var snap map[string]any
	decodeBody(t, doJSON(t, "GET", srv.URL+"/circuits/erp", nil), &snap)
	if snap["state"] != "OPEN" {
		t.Fatalf("circuit after failure = %v, want OPEN", snap)
	}

	// An open circuit rejects without calling the target.
	run()
	if hits.Load() != 1 {
		t.Fatalf("upstream hits = %d, want 1", hits.Load())
	}

	resp := doJSON(t, "POST", srv.URL+"/circuits/erp/reset", nil)
	decodeBody(t, resp, &snap)
	if resp.StatusCode != http.StatusOK || snap["state"] != "CLOSED" || snap["failures"] != float64(0) {
		t.Fatalf("reset: %d %v", resp.StatusCode, snap)
	}

	run()
	if hits.Load() != 2 {
		t.Errorf("upstream hits after reset = %d, want 2", hits.Load())
	}
}
