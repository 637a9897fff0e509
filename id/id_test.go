package id_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xraph/conduit/id"
)

func TestNewHasPrefix(t *testing.T) {
	tests := []struct {
		gen    func() id.ID
		prefix id.Prefix
	}{
		{id.NewRouteID, id.PrefixRoute},
		{id.NewRunID, id.PrefixRun},
		{id.NewDeadLetterID, id.PrefixDeadLetter},
	}

	for _, tt := range tests {
		got := tt.gen()
		if got.Prefix() != tt.prefix {
			t.Errorf("prefix = %q, want %q", got.Prefix(), tt.prefix)
		}
		if !strings.HasPrefix(got.String(), string(tt.prefix)+"_") {
			t.Errorf("String() = %q, want %q prefix", got.String(), tt.prefix)
		}
	}
}

func TestParseWithPrefix(t *testing.T) {
	runID := id.NewRunID()

	parsed, err := id.ParseRunID(runID.String())
	if err != nil {
		t.Fatalf("ParseRunID: %v", err)
	}
	if parsed.String() != runID.String() {
		t.Fatalf("round trip = %q, want %q", parsed, runID)
	}

	if _, err := id.ParseRouteID(runID.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
	if _, err := id.Parse(""); !errors.Is(err, id.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestJSONNil(t *testing.T) {
	var v struct {
		ID id.ID `json:"id"`
	}

	if err := json.Unmarshal([]byte(`{"id":""}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !v.ID.IsNil() {
		t.Fatal("expected Nil ID")
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"id":""}` {
		t.Fatalf("marshal = %s", out)
	}
}
