package extension_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/extension"
	"github.com/xraph/conduit/store/memory"
)

func ctx() context.Context { return context.Background() }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitRequiresStore(t *testing.T) {
	ext := extension.New()
	if err := ext.Init(ctx()); !errors.Is(err, conduit.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
	if err := ext.Start(ctx()); !errors.Is(err, extension.ErrNotInitialized) {
		t.Errorf("Start before Init: expected ErrNotInitialized, got %v", err)
	}
}

func TestHandlerServesUnderPrefix(t *testing.T) {
	s := memory.New()
	ext := extension.New(
		extension.WithStore(s),
		extension.WithPrefix("/integrations/"),
		extension.WithLogger(discardLogger()),
	)
	if err := ext.Init(ctx()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := ext.Start(ctx()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if ext.Prefix() != "/integrations" {
		t.Errorf("Prefix = %q", ext.Prefix())
	}

	mux := http.NewServeMux()
	mux.Handle(ext.Prefix()+"/", ext.Handler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/integrations/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health: %d %v", resp.StatusCode, body)
	}

	if err := ext.Stop(ctx()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := ext.Health(ctx()); !errors.Is(err, conduit.ErrStoreClosed) {
		t.Errorf("Health after Stop: expected ErrStoreClosed, got %v", err)
	}
}

func TestConfigToConduitOptions(t *testing.T) {
	cfg := extension.Config{
		Config: conduit.Config{
			Concurrency: 4,
			CallTimeout: 2 * time.Second,
		},
	}
	if got := len(cfg.ToConduitOptions()); got != 2 {
		t.Errorf("expected 2 options for the non-zero fields, got %d", got)
	}
	if got := len(extension.DefaultConfig().ToConduitOptions()); got != 5 {
		t.Errorf("expected 5 options from the defaults, got %d", got)
	}
}

func TestHandlerBeforeInit(t *testing.T) {
	ext := extension.New(extension.WithStore(memory.New()))

	rec := httptest.NewRecorder()
	ext.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
