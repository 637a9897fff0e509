// Package mapping transforms a source document into a target document
// through declarative rules.
//
// Apply is pure: it never mutates its input, never aliases it in the output,
// and yields identical results for identical inputs.
package mapping

import "fmt"

// Apply evaluates rules in order against source and returns the target
// document. Every returned error matches ErrMapping.
func Apply(source any, rules []Rule) (map[string]any, error) {
	out := map[string]any{}

	for i, r := range rules {
		if err := applyRule(out, source, r); err != nil {
			return nil, &RuleError{Index: i, Op: r.op(), Target: r.Target, Err: err}
		}
	}

	return out, nil
}

func applyRule(out map[string]any, source any, r Rule) error {
	if r.Target == "" || r.Target == "." {
		return errMissingTarget
	}

	var (
		value any
		set   bool
		err   error
	)

	switch r.op() {
	case OpCopy:
		value, set, err = resolveCopy(source, r)
	case OpMapArray:
		value, err = resolveMapArray(source, r)
		set = true
	default:
		return fmt.Errorf("unsupported operation %q", r.Op)
	}

	if err != nil || !set {
		return err
	}

	_, err = SetPath(out, r.Target, value)
	return err
}

func resolveCopy(source any, r Rule) (any, bool, error) {
	value, found := GetPath(source, r.Source)
	if found {
		value = deepCopy(value)
	}
	if (!found || value == nil) && r.hasDefault() {
		value, found = deepCopy(r.Default), true
	}
	if !found {
		return nil, false, nil
	}

	out, err := applyTransform(r.Transform, value)
	if err == nil {
		return out, true, nil
	}
	if !r.hasDefault() {
		return nil, false, err
	}

	out, derr := applyTransform(r.Transform, deepCopy(r.Default))
	if derr != nil {
		return nil, false, err
	}

	return out, true, nil
}

func resolveMapArray(source any, r Rule) (any, error) {
	raw, _ := GetPath(source, r.Source)

	items, ok := raw.([]any)
	if !ok {
		if !r.hasDefault() {
			return []any{}, nil
		}
		items, ok = deepCopy(r.Default).([]any)
		if !ok {
			return []any{}, nil
		}
	}

	mapped := make([]any, 0, len(items))
	for i, item := range items {
		m, err := Apply(item, r.ItemRules)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		mapped = append(mapped, m)
	}

	return mapped, nil
}
