// Package snapshot finds the capture nearest to a point in time.
package snapshot

import "time"

// Dated is anything captured at a point in time.
type Dated interface {
	Timestamp() time.Time
}

// Closest returns the item whose timestamp is nearest to target. On ties the
// earliest item in the slice wins. It reports false only for an empty slice.
func Closest[T Dated](items []T, target time.Time) (T, bool) {
	var (
		best  T
		bestD time.Duration
		found bool
	)
	for _, it := range items {
		d := absDuration(it.Timestamp().Sub(target))
		if !found || d < bestD {
			best, bestD, found = it, d, true
		}
	}
	return best, found
}

// Within is Closest with an upper bound on the distance. A non-positive
// tolerance disables the bound.
func Within[T Dated](items []T, target time.Time, tolerance time.Duration) (T, bool) {
	best, ok := Closest(items, target)
	if !ok || tolerance <= 0 {
		return best, ok
	}
	if absDuration(best.Timestamp().Sub(target)) > tolerance {
		var zero T
		return zero, false
	}
	return best, true
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
