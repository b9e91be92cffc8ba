package scheduler

import (
	"net"

	coreerrors "prtip/internal/core/errors"
)

const maxHostgroupCap = 10000

// ValidateHostgroupBounds enforces spec §4.6's startup invariant: min ≤ max,
// and max capped at 10,000 regardless of operator input.
func ValidateHostgroupBounds(min, max int) error {
	if max > maxHostgroupCap {
		return coreerrors.New(coreerrors.KindConfig, "Max hostgroup cannot exceed 10000")
	}
	if min > max {
		return coreerrors.New(coreerrors.KindConfig, "min hostgroup cannot exceed max hostgroup")
	}
	return nil
}

// Hostgroups splits an ordered address list into batches bounded by
// [min, max]; the final batch may be smaller than min (spec §4.6).
func Hostgroups(targets []net.IP, min, max int) [][]net.IP {
	if max <= 0 {
		max = len(targets)
	}
	if max == 0 {
		return nil
	}
	var groups [][]net.IP
	for i := 0; i < len(targets); i += max {
		end := i + max
		if end > len(targets) {
			end = len(targets)
		}
		groups = append(groups, targets[i:end])
	}
	return groups
}
