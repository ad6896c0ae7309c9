// Package compare implements tolerant structural comparison between an
// arbitrary nested result and an expected nested result.
//
// Values are compared in their JSON-decoded shape: float64, string, nil,
// and map[string]any. Numeric values match within an absolute tolerance;
// an absent (nil) expected value matches only an absent actual value;
// mappings must agree on their exact key sets.
package compare

// Default tolerances by comparison context. Time-window results compound
// per-row float rounding through sums and a percentage computation, so
// they get a coarser allowance than generic aggregates.
const (
	DefaultTolerance = 0.01
	WindowTolerance  = 0.1
)

// Equal reports whether actual matches expected within tolerance.
//
// Rules, in order:
//   - two mappings: equal key sets and Equal holds for every key
//   - two absent values (nil): match
//   - two numerics: |actual-expected| <= tolerance
//   - anything else: Go equality
//
// Tolerance is an absolute difference, not relative; callers comparing
// large-magnitude metrics must size it accordingly.
func Equal(actual, expected any, tolerance float64) bool {
	am, aIsMap := asMap(actual)
	em, eIsMap := asMap(expected)
	if aIsMap && eIsMap {
		if len(am) != len(em) {
			return false
		}
		for k, ev := range em {
			av, ok := am[k]
			if !ok {
				return false
			}
			if !Equal(av, ev, tolerance) {
				return false
			}
		}
		return true
	}
	if aIsMap != eIsMap {
		return false
	}

	an, aNull := normalize(actual)
	en, eNull := normalize(expected)
	if aNull || eNull {
		return aNull == eNull
	}

	af, aNum := asFloat(an)
	ef, eNum := asFloat(en)
	if aNum && eNum {
		diff := af - ef
		if diff < 0 {
			diff = -diff
		}
		return diff <= tolerance
	}

	return an == en
}

// asMap recognizes the mapping shapes produced by the engines and by
// JSON decoding.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]*float64:
		out := make(map[string]any, len(m))
		for k, p := range m {
			if p == nil {
				out[k] = nil
			} else {
				out[k] = *p
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// normalize collapses typed-nil pointers into untyped nil so that a
// *float64 null from an engine matches a JSON null.
func normalize(v any) (any, bool) {
	switch p := v.(type) {
	case nil:
		return nil, true
	case *float64:
		if p == nil {
			return nil, true
		}
		return *p, false
	default:
		return v, false
	}
}

// asFloat widens any integer or float scalar to float64.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
