package mapping

import "fmt"

// Validate checks rules without evaluating them: every target is set, every
// op is known and every transform exists. Item rules are checked
// recursively. Errors match ErrMapping.
func Validate(rules []Rule) error {
	for i, r := range rules {
		if err := validateRule(r); err != nil {
			return &RuleError{Index: i, Op: r.op(), Target: r.Target, Err: err}
		}
	}
	return nil
}

func validateRule(r Rule) error {
	if r.Target == "" || r.Target == "." {
		return errMissingTarget
	}

	if r.Transform != "" {
		if _, ok := transforms[r.Transform]; !ok {
			return &TransformError{Name: r.Transform}
		}
	}

	switch r.op() {
	case OpCopy:
		return nil
	case OpMapArray:
		for j, item := range r.ItemRules {
			if err := validateRule(item); err != nil {
				return fmt.Errorf("item rule %d: %w", j, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported operation %q", r.Op)
	}
}
