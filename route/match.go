package route

import "strings"

// MatchEvent reports whether an event name matches a source pattern.
//
//	"order.created"  exact match
//	"order.*"        one wildcard segment: order.created, order.paid
//	"erp/*/created"  "/" separates segments too
//	"*"              everything
func MatchEvent(pattern, name string) bool {
	if pattern == "*" || pattern == name {
		return true
	}

	pp := splitEvent(pattern)
	np := splitEvent(name)
	if len(pp) != len(np) {
		return false
	}

	for i, seg := range pp {
		if seg == "*" {
			continue
		}
		if seg != np[i] {
			return false
		}
	}
	return true
}

func splitEvent(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '/' })
}
