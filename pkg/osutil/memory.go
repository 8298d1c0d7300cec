package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

const (
	// The default cgroup v1 limit_in_bytes, which indicates that memory is not
	// restricted.
	// See https://unix.stackexchange.com/questions/420906/what-is-the-value-for-the-cgroups-limit-in-bytes-if-the-memory-is-not-restricted
	unrestrictedMemoryLimit = 9223372036854771712

	// cgroup v2 reports "max" for unrestricted memory
	unrestrictedMemoryMax = "max"
)

var cgroupMemoryLimitLocations = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// GetTotalMemory returns the total available memory size. The call is
// container-aware.
func GetTotalMemory() uint64 {
	return totalMemory(memory.TotalMemory(), cgroupMemoryLimitLocations...)
}

func totalMemory(physical uint64, limitLocations ...string) uint64 {
	for _, location := range limitLocations {
		raw, err := os.ReadFile(location)
		if err != nil {
			continue
		}

		limit, ok := parseMemoryLimit(string(raw))
		if ok && limit < physical {
			return limit
		}
	}
	return physical
}

func parseMemoryLimit(raw string) (uint64, bool) {
	value := strings.TrimSpace(raw)
	if value == unrestrictedMemoryMax {
		return 0, false
	}

	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil || limit == unrestrictedMemoryLimit {
		return 0, false
	}
	return limit, true
}
