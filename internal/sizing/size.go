// Package sizing provides safe size arithmetic and conversions to prevent overflow.
package sizing

import "math"

// ToUint32 converts an int64 to uint32, returning overflowErr if it doesn't fit.
func ToUint32(size int64, overflowErr error) (uint32, error) {
	if size < 0 || size > math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(size), nil
}

// AddInt64 adds two non-negative int64 values, returning (result, false) on overflow.
func AddInt64(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}

// RoundUp rounds n up to the next multiple of align. align must be a power of two.
func RoundUp(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}

// RoundDown rounds n down to a multiple of align. align must be a power of two.
func RoundDown(n, align int64) int64 {
	return n &^ (align - 1)
}
