package mapping

import (
	"fmt"
	"strconv"
	"strings"
)

// maxSequenceIndex bounds how far SetPath will pad a sequence.
const maxSequenceIndex = 1 << 16

func splitPath(path string) []string {
	if path == "" || path == "." {
		return nil
	}

	return strings.Split(path, ".")
}

// sequenceIndex parses seg as a non-negative decimal index.
func sequenceIndex(seg string) (int, bool) {
	if seg == "" {
		return 0, false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	n, err := strconv.Atoi(seg)
	if err != nil {
		return 0, false
	}

	return n, true
}

// GetPath resolves a dotted path inside v. Numeric segments index sequences,
// other segments are map keys, and "" or "." address v itself. A missing key,
// an out-of-range or non-numeric index, or a scalar in the way reports
// found=false.
func GetPath(v any, path string) (any, bool) {
	cur := v

	for _, seg := range splitPath(path) {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, ok := sequenceIndex(seg)
			if !ok || i >= len(c) {
				return nil, false
			}
			cur = c[i]
		default:
			return nil, false
		}
	}

	return cur, true
}

// SetPath writes value at path inside root and returns the (possibly new)
// root. Absent intermediates are created as sequences when addressed by a
// numeric segment and as maps otherwise; sequences are padded with nil.
// Descending through an existing scalar fails with *PathError.
func SetPath(root any, path string, value any) (any, error) {
	parts := splitPath(path)
	if len(parts) == 0 {
		return value, nil
	}

	return setIn(root, parts, 0, path, value)
}

func setIn(cur any, parts []string, pos int, path string, value any) (any, error) {
	seg := parts[pos]
	last := pos == len(parts)-1

	if cur == nil {
		if _, ok := sequenceIndex(seg); ok {
			cur = []any{}
		} else {
			cur = map[string]any{}
		}
	}

	switch c := cur.(type) {
	case map[string]any:
		if last {
			c[seg] = value
			return c, nil
		}

		child, err := setIn(c[seg], parts, pos+1, path, value)
		if err != nil {
			return nil, err
		}
		c[seg] = child

		return c, nil

	case []any:
		i, ok := sequenceIndex(seg)
		if !ok {
			return nil, &PathError{Path: path, Segment: seg, Reason: "sequence requires a numeric index"}
		}
		if i > maxSequenceIndex {
			return nil, &PathError{Path: path, Segment: seg, Reason: "index out of range"}
		}
		for len(c) <= i {
			c = append(c, nil)
		}

		if last {
			c[i] = value
			return c, nil
		}

		child, err := setIn(c[i], parts, pos+1, path, value)
		if err != nil {
			return nil, err
		}
		c[i] = child

		return c, nil

	default:
		return nil, &PathError{Path: path, Segment: seg, Reason: fmt.Sprintf("cannot descend into %T", cur)}
	}
}

// deepCopy clones maps and sequences so the result never aliases v.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = deepCopy(x)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = deepCopy(x)
		}
		return s
	default:
		return v
	}
}
