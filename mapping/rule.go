package mapping

// Op selects how a rule writes its value.
type Op string

const (
	// OpCopy copies one value, optionally transformed.
	OpCopy Op = "copy"

	// OpMapArray maps every element of a sequence with ItemRules.
	OpMapArray Op = "map_array"
)

// Rule is a declarative instruction for producing one target value.
// A nil Default means the rule has no default.
type Rule struct {
	Source    string `json:"source"                yaml:"source"`
	Target    string `json:"target"                yaml:"target"`
	Op        Op     `json:"op,omitempty"          yaml:"op,omitempty"`
	Transform string `json:"transform,omitempty"   yaml:"transform,omitempty"`
	Default   any    `json:"default,omitempty"     yaml:"default,omitempty"`
	ItemRules []Rule `json:"item_rules,omitempty"  yaml:"item_rules,omitempty"`
}

func (r Rule) op() Op {
	if r.Op == "" {
		return OpCopy
	}
	return r.Op
}

func (r Rule) hasDefault() bool { return r.Default != nil }
