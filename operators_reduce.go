package streamflow

import (
	"context"
	"fmt"
	"strconv"

	"github.com/OneOfOne/xxhash"
)

// First builds an operator that emits the first value matching pred (or,
// with no predicate, the first value at all) and then completes. If source
// completes without a match, the output errors with ErrNoElements.
func First[T any](pred func(T) bool) Operator {
	return CreateOperator("first", func(ctx context.Context, source Iterator, opIndex int) Iterator {
		done := false
		return newFuncIterator(func(ctx context.Context) (Value, bool, error) {
			if done {
				return nil, true, nil
			}
			for {
				v, d, err := source.Next(ctx)
				if err != nil {
					return nil, false, WrapOperatorError(err, opIndex, "first", "", false)
				}
				if d {
					done = true
					return nil, false, WrapOperatorError(ErrNoElements, opIndex, "first", "", false)
				}
				if pred == nil || pred(v.(T)) {
					done = true
					return v, false, nil
				}
			}
		})
	})
}

// KeyComparator decides whether two values (or two derived keys) are equal,
// for use by DistinctUntilChanged / DistinctUntilKeyChanged.
type KeyComparator func(a, b Value) bool

func defaultComparator(a, b Value) bool { return a == b }

// DistinctUntilChanged builds an operator that suppresses a value equal
// (per comparator, or == if nil) to the immediately preceding one.
func DistinctUntilChanged[T any](comparator KeyComparator) Operator {
	if comparator == nil {
		comparator = defaultComparator
	}
	return CreateOperator("distinctUntilChanged", func(ctx context.Context, source Iterator, opIndex int) Iterator {
		var prev Value
		hasPrev := false
		return &transformIterator{
			source: source, opIndex: opIndex, name: "distinctUntilChanged",
			transform: func(v Value) (Value, bool, error) {
				if hasPrev && comparator(prev, v) {
					return nil, false, nil
				}
				prev, hasPrev = v, true
				return v, true, nil
			},
		}
	})
}

// DistinctUntilKeyChanged is DistinctUntilChanged compared on keyOf(value)
// instead of the whole value.
func DistinctUntilKeyChanged[T any, K any](keyOf func(T) K, comparator KeyComparator) Operator {
	if comparator == nil {
		comparator = defaultComparator
	}
	return CreateOperator("distinctUntilKeyChanged", func(ctx context.Context, source Iterator, opIndex int) Iterator {
		var prevKey Value
		hasPrev := false
		return &transformIterator{
			source: source, opIndex: opIndex, name: "distinctUntilKeyChanged",
			transform: func(v Value) (Value, bool, error) {
				key := Value(keyOf(v.(T)))
				if hasPrev && comparator(prevKey, key) {
					return nil, false, nil
				}
				prevKey, hasPrev = key, true
				return v, true, nil
			},
		}
	})
}

// HashKeyComparator compares keys by xxhash digest of their string form
// instead of deep equality — cheaper for callers whose keys are large byte
// slices or strings where the full value is expensive to compare directly.
func HashKeyComparator() KeyComparator {
	digest := func(v Value) uint64 {
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case []byte:
			return xxhash.Checksum64S(t, 0)
		default:
			s = toComparableString(t)
		}
		return xxhash.Checksum64S([]byte(s), 0)
	}
	return func(a, b Value) bool { return digest(a) == digest(b) }
}

func toComparableString(v Value) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
