package restgraph

import (
	"fmt"
	"strconv"
)

// NormalizePayload rewrites a request body so graph objects travel in their
// wire shape. Nodes collapse to their transport value, collections to a list
// of transport values, and maps and slices are walked recursively. Everything
// else passes through untouched.
func NormalizePayload(v any) any {
	switch value := v.(type) {
	case *Node:
		return value.TransportValue()
	case *Collection:
		return value.TransportValues()
	case map[string]any:
		out := make(map[string]any, len(value))
		for key, item := range value {
			out[key] = NormalizePayload(item)
		}

		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = NormalizePayload(item)
		}

		return out
	default:
		return v
	}
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = value
	}

	return out
}

// identString renders an attribute value as an identifier segment. Decoded
// JSON numbers arrive as float64; integral ones must not grow a trailing
// ".0" when they end up in an address.
func identString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}

		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return fmt.Sprintf("%v", value)
	}
}
