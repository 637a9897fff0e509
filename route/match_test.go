package route_test

import (
	"testing"

	"github.com/xraph/conduit/route"
)

func TestMatchEvent(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"order.created", "order.created", true},
		{"order.created", "order.paid", false},
		{"order.*", "order.created", true},
		{"order.*", "order.item.created", false},
		{"*.created", "invoice.created", true},
		{"*", "anything.at.all", true},
		{"erp/*/created", "erp/order/created", true},
		{"erp/*", "erp/order/created", false},
		{"shop.order", "shop.orders", false},
	}

	for _, tt := range tests {
		if got := route.MatchEvent(tt.pattern, tt.name); got != tt.want {
			t.Errorf("MatchEvent(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestAccepts(t *testing.T) {
	r := &route.Route{
		Enabled: true,
		Source:  route.Source{Event: "order.*", Active: true},
	}
	r.Target.Active = true

	if !r.Accepts("order.created") {
		t.Error("expected route to accept order.created")
	}

	r.Target.Active = false
	if r.Accepts("order.created") {
		t.Error("inactive target must not accept events")
	}
}
