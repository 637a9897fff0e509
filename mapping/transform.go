package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Transform names accepted in Rule.Transform.
const (
	TransformIdentity = "identity"
	TransformToFloat  = "to_float"
	TransformFloat    = "float"
	TransformToInt    = "to_int"
	TransformInt      = "int"
	TransformToStr    = "to_str"
	TransformUpper    = "upper"
	TransformLower    = "lower"
)

type transformFunc func(any) (any, error)

var transforms = map[string]transformFunc{
	TransformIdentity: func(v any) (any, error) { return v, nil },
	TransformToFloat:  toFloat,
	TransformFloat:    toFloat,
	TransformToInt:    toInt,
	TransformInt:      toInt,
	TransformToStr:    toStr,
	TransformUpper:    caseFold(strings.ToUpper),
	TransformLower:    caseFold(strings.ToLower),
}

// applyTransform runs the named transform. An empty name is identity and
// nil values pass through unchanged.
func applyTransform(name string, v any) (any, error) {
	if name == "" {
		return v, nil
	}

	fn, ok := transforms[name]
	if !ok {
		return nil, &TransformError{Name: name}
	}
	if v == nil {
		return nil, nil
	}

	out, err := fn(v)
	if err != nil {
		return nil, &TransformError{Name: name, Value: v, Err: err}
	}

	return out, nil
}

var errNotFinite = errors.New("value is not finite")

func toFloat(v any) (any, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case uint:
		return float64(t), nil
	case uint32:
		return float64(t), nil
	case uint64:
		return float64(t), nil
	case bool:
		if t {
			return 1.0, nil
		}
		return 0.0, nil
	case json.Number:
		return t.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to float", v)
	}
}

func toInt(v any) (any, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", t)
		}
		return int64(t), nil
	case float32:
		return floatToInt(float64(t))
	case float64:
		return floatToInt(t)
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		return t.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return nil, fmt.Errorf("cannot convert %T to int", v)
	}
}

// floatToInt truncates toward zero.
func floatToInt(f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errNotFinite
	}
	if f >= math.MaxInt64 || f <= math.MinInt64 {
		return nil, fmt.Errorf("%g overflows int64", f)
	}

	return int64(math.Trunc(f)), nil
}

func toStr(v any) (any, error) {
	return stringify(v)
}

func stringify(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case bool:
		return strconv.FormatBool(t), nil
	case json.Number:
		return t.String(), nil
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func caseFold(fold func(string) string) transformFunc {
	return func(v any) (any, error) {
		s, err := stringify(v)
		if err != nil {
			return nil, err
		}
		return fold(s), nil
	}
}
