package codec_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/store/internal/codec"
)

func TestRouteSpecRoundTrip(t *testing.T) {
	in := route.NewInput()
	r := &route.Route{
		ID:      id.NewRouteID(),
		Name:    "orders",
		Source:  route.Source{Name: "shop", Event: "order.*", Active: true, Schema: json.RawMessage(`{"type":"object"}`)},
		Target:  in.Target,
		Mapping: []mapping.Rule{{Source: "id", Target: "order_id", Default: "n/a"}},
		Credential: &credential.Credential{
			ID:     "erp",
			Type:   credential.TypeBearerToken,
			Config: map[string]any{"token": "t"},
		},
		Retry:   in.Retry,
		Circuit: in.Circuit,
	}

	raw, err := codec.EncodeRouteSpec(r)
	if err != nil {
		t.Fatalf("EncodeRouteSpec: %v", err)
	}

	got := &route.Route{ID: r.ID}
	if err := codec.DecodeRouteSpec(raw, got); err != nil {
		t.Fatalf("DecodeRouteSpec: %v", err)
	}

	if diff := cmp.Diff(r.Mapping, got.Mapping); diff != "" {
		t.Errorf("mapping mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(r.Credential, got.Credential); diff != "" {
		t.Errorf("credential mismatch (-want +got):\n%s", diff)
	}
	if string(got.Source.Schema) != `{"type":"object"}` || got.Source.Event != "order.*" {
		t.Errorf("source not preserved: %+v", got.Source)
	}
	if diff := cmp.Diff(r.Target, got.Target); diff != "" {
		t.Errorf("target mismatch (-want +got):\n%s", diff)
	}
	if got.Retry != r.Retry || got.Circuit != r.Circuit {
		t.Errorf("policies not preserved: %+v %+v", got.Retry, got.Circuit)
	}
}

func TestValueNil(t *testing.T) {
	raw, err := codec.EncodeValue(nil)
	if err != nil || raw != nil {
		t.Fatalf("EncodeValue(nil) = %q, %v", raw, err)
	}

	for _, in := range [][]byte{nil, []byte("null")} {
		v, err := codec.DecodeValue(in)
		if err != nil || v != nil {
			t.Errorf("DecodeValue(%q) = %v, %v", in, v, err)
		}
	}
}

func TestValueNumbersBecomeFloat(t *testing.T) {
	raw, err := codec.EncodeValue(map[string]any{"qty": 3, "tags": []string{"a"}})
	if err != nil {
		t.Fatal(err)
	}
	v, err := codec.DecodeValue(raw)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"qty": float64(3), "tags": []any{"a"}}
	if diff := cmp.Diff(want, v); diff != "" {
		t.Errorf("decoded mismatch (-want +got):\n%s", diff)
	}
}
