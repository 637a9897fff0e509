package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xraph/conduit"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/store/memory"
)

// routesFile is the on-disk shape of a routes file:
//
//	routes:
//	  - name: orders-to-crm
//	    source: {name: shop, event: "order.*"}
//	    target: {name: crm, base_url: "https://crm.example.com", path: /contacts}
//	    mapping:
//	      - {source: customer.email, target: email, transform: lower}
type routesFile struct {
	Routes []any `yaml:"routes"`
}

// readRoutesFile decodes path into route inputs. Entries go through the JSON
// field names so a source schema can be written inline as YAML.
func readRoutesFile(path string) ([]route.Input, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRoutes(raw)
}

func parseRoutes(raw []byte) ([]route.Input, error) {
	var f routesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}

	inputs := make([]route.Input, 0, len(f.Routes))
	for i, entry := range f.Routes {
		doc, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		in := route.NewInput()
		if err := json.Unmarshal(doc, &in); err != nil {
			return nil, fmt.Errorf("route %d: %w", i, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// importRoutes creates every route in path.
func importRoutes(ctx context.Context, c *conduit.Conduit, path string) (int, error) {
	inputs, err := readRoutesFile(path)
	if err != nil {
		return 0, err
	}
	for i, in := range inputs {
		if _, err := c.Routes().Create(ctx, in); err != nil {
			return i, fmt.Errorf("route %d (%s): %w", i, in.Name, err)
		}
	}
	return len(inputs), nil
}

func validateRoutesFile(w io.Writer, path string) error {
	inputs, err := readRoutesFile(path)
	if err != nil {
		return err
	}

	c, err := conduit.New(conduit.WithStore(memory.New()))
	if err != nil {
		return err
	}

	var failed int
	for i, in := range inputs {
		if err := c.Routes().Validate(in); err != nil {
			failed++
			fmt.Fprintf(w, "route %d (%s): %v\n", i, in.Name, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d routes invalid", failed, len(inputs))
	}
	fmt.Fprintf(w, "%d routes ok\n", len(inputs))
	return nil
}
