package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned when the batch size is not positive.
var ErrInvalidSize = errors.New("batch size must be positive")

// Split partitions items into consecutive groups of at most size elements,
// preserving order. The final group holds the remainder. Empty input yields
// no groups. The returned groups share the backing array of items.
func Split[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups, nil
}
