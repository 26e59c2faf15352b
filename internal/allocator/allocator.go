// Package allocator picks the next free port from a set of reserved ports.
package allocator

import (
	"fmt"
	"slices"

	"github.com/localnerve/portsmith/internal/types"
)

const (
	// MinPort is the lowest valid port number.
	MinPort = 1
	// MaxPort is the highest valid port number.
	MaxPort = 65535
	// DefaultFloor is the lowest port handed out by a default deployment.
	DefaultFloor = 55001
)

// NextAvailable returns the lowest port >= floor that is not in reserved.
func NextAvailable(reserved []int, floor int) (int, error) {
	return NextAvailableInRange(reserved, floor, MaxPort)
}

// NextAvailableInRange returns the lowest port in [floor, ceiling] that is not in reserved.
// The scan walks the sorted reserved ports from floor and stops at the first gap,
// so cost is dominated by the sort. It fails with types.ErrRangeExhausted when
// every port up to ceiling is taken.
func NextAvailableInRange(reserved []int, floor, ceiling int) (int, error) {
	if ceiling > MaxPort {
		ceiling = MaxPort
	}
	if floor < MinPort || floor > ceiling {
		return 0, fmt.Errorf("%w: floor %d outside [%d, %d]", types.ErrRangeExhausted, floor, MinPort, ceiling)
	}

	above := make([]int, 0, len(reserved))
	for _, port := range reserved {
		if port >= floor {
			above = append(above, port)
		}
	}
	slices.Sort(above)

	candidate := floor
	for _, port := range above {
		if port < candidate {
			// duplicate of a port already counted
			continue
		}
		if port != candidate {
			break
		}
		candidate++
	}

	if candidate > ceiling {
		return 0, fmt.Errorf("%w: no free port in [%d, %d]", types.ErrRangeExhausted, floor, ceiling)
	}
	return candidate, nil
}
