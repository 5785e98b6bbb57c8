// Package batch provides generic helpers for loading related records of a
// batch of parents with one query per relation.
package batch

import (
	"fmt"
	"math"
)

// KeyFunc extracts a key from a value.
type KeyFunc[K comparable, V any] func(V) K

// Normalize converts a key value read from a driver or set by a user into a
// comparable canonical form, so that int(1), int64(1) and float64(1) group
// together and []byte keys compare by content.
func Normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return uintKey(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return uintKey(v)
	case float32:
		return floatKey(float64(v))
	case float64:
		return floatKey(v)
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	return v
}

func uintKey(v uint64) any {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}

func floatKey(v float64) any {
	if v == math.Trunc(v) && v >= math.MinInt64 && v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}

// Keys returns the distinct, non-nil, normalized keys of values in first-seen
// order.
func Keys[V any](values []V, keyFn func(V) any) []any {
	seen := make(map[any]struct{}, len(values))
	keys := make([]any, 0, len(values))
	for _, v := range values {
		k := Normalize(keyFn(v))
		if k == nil {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// GroupByKey groups values by their normalized key.
// Useful for one-to-many relationships where multiple values share the same
// foreign key. Values with a nil key are dropped.
func GroupByKey[V any](values []V, keyFn func(V) any) map[any][]V {
	result := make(map[any][]V)
	for _, v := range values {
		key := Normalize(keyFn(v))
		if key == nil {
			continue
		}
		result[key] = append(result[key], v)
	}
	return result
}

// IndexByKey maps each normalized key to the first value carrying it.
func IndexByKey[V any](values []V, keyFn func(V) any) map[any]V {
	result := make(map[any]V, len(values))
	for _, v := range values {
		key := Normalize(keyFn(v))
		if key == nil {
			continue
		}
		if _, ok := result[key]; !ok {
			result[key] = v
		}
	}
	return result
}
