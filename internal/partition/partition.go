// Package partition splits work items into contiguous buckets for parallel dispatch.
package partition

import "math"

// Partition slices items into contiguous buckets of round(len(items)/target)
// elements, rounding half to even. The number of buckets produced can differ
// from target and the last bucket may be shorter. Callers usually pass
// min(maxBuckets, len(items)).
//
// Empty input yields no buckets. A non-positive target is treated as one.
func Partition[T any](items []T, target int) [][]T {
	if len(items) == 0 {
		return nil
	}

	if target <= 0 {
		target = 1
	}

	size := int(math.RoundToEven(float64(len(items)) / float64(target)))
	if size < 1 {
		size = 1
	}

	buckets := make([][]T, 0, (len(items)+size-1)/size)

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		buckets = append(buckets, items[start:end:end])
	}

	return buckets
}

// Target returns the bucket count the stages hand to Partition: the number of
// items capped at maxBuckets.
func Target(itemCount, maxBuckets int) int {
	return min(maxBuckets, itemCount)
}
