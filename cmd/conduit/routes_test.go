package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/store/memory"
)

const sampleRoutes = `
routes:
  - name: orders-to-crm
    source:
      name: shop
      event: "order.*"
      schema:
        type: object
        required: [email]
    target:
      name: crm
      base_url: https://crm.example.com
      path: /contacts
    mapping:
      - {source: email, target: contact.email, transform: lower}
      - {source: tier, target: contact.tier, default: basic}
    retry:
      max_attempts: 5
  - name: audit
    enabled: false
    source: {name: shop, event: "order.created"}
    target: {name: audit, protocol: kafka, base_url: "broker:9092", topic: audit}
`

func writeRoutes(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routes.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseRoutes(t *testing.T) {
	inputs, err := parseRoutes([]byte(sampleRoutes))
	if err != nil {
		t.Fatalf("parseRoutes: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(inputs))
	}

	first := inputs[0]
	if !first.Enabled || !first.Source.Active || !first.Target.Active {
		t.Errorf("defaults lost: %+v", first)
	}
	if first.Target.Method != "POST" || first.Target.Protocol != connector.ProtocolHTTP {
		t.Errorf("target defaults lost: %+v", first.Target)
	}
	if len(first.Source.Schema) == 0 || !strings.Contains(string(first.Source.Schema), `"required"`) {
		t.Errorf("inline schema not carried: %s", first.Source.Schema)
	}
	if first.Retry.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d", first.Retry.MaxAttempts)
	}
	if first.Retry.BaseDelaySec == 0 {
		t.Error("omitted retry fields should keep their defaults")
	}
	if len(first.Mapping) != 2 || first.Mapping[0].Transform != mapping.TransformLower || first.Mapping[1].Default != "basic" {
		t.Errorf("mapping = %+v", first.Mapping)
	}

	second := inputs[1]
	if second.Enabled {
		t.Error("enabled: false should be honored")
	}
	if second.Target.Protocol != connector.ProtocolKafka || second.Target.Topic != "audit" {
		t.Errorf("kafka target = %+v", second.Target)
	}
}

func TestParseRoutesInvalidYAML(t *testing.T) {
	if _, err := parseRoutes([]byte("routes: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRoutesFile(t *testing.T) {
	var out bytes.Buffer
	if err := validateRoutesFile(&out, writeRoutes(t, sampleRoutes)); err != nil {
		t.Fatalf("validate: %v (%s)", err, out.String())
	}
	if !strings.Contains(out.String(), "2 routes ok") {
		t.Errorf("output = %q", out.String())
	}

	bad := `
routes:
  - name: broken
    source: {name: s, event: e}
    target: {name: t, base_url: "http://x"}
    mapping:
      - {source: a, target: b, transform: reverse}
`
	out.Reset()
	if err := validateRoutesFile(&out, writeRoutes(t, bad)); err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(out.String(), "broken") {
		t.Errorf("output should name the route: %q", out.String())
	}
}

func TestImportRoutes(t *testing.T) {
	c, err := conduit.New(conduit.WithStore(memory.New()))
	if err != nil {
		t.Fatal(err)
	}

	n, err := importRoutes(context.Background(), c, writeRoutes(t, sampleRoutes))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Errorf("imported %d", n)
	}

	routes, err := c.Routes().List(context.Background(), route.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(routes) != 2 || routes[0].Name != "orders-to-crm" {
		t.Errorf("routes = %v", routes)
	}
}
