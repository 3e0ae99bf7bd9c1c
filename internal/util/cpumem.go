package util

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// LogicalCores returns the number of logical CPUs available to this
// process, per runtime.NumCPU().
func LogicalCores() int {
	return runtime.NumCPU()
}

// PhysicalCores estimates the number of physical CPU cores by counting
// distinct "core id"/"physical id" pairs in /proc/cpuinfo. Falls back to
// LogicalCores when /proc/cpuinfo is unavailable or unparsable (e.g. on a
// non-Linux host).
func PhysicalCores() int {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return LogicalCores()
	}
	defer func() { _ = f.Close() }()

	seen := make(map[string]struct{})
	var physID, coreID string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "physical id"):
			physID = fieldAfterColon(line)
		case strings.HasPrefix(line, "core id"):
			coreID = fieldAfterColon(line)
			if physID != "" || coreID != "" {
				seen[physID+"/"+coreID] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return LogicalCores()
	}
	return len(seen)
}

func fieldAfterColon(line string) string {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(line[idx+1:])
}

// AvailableMemoryBytes returns an estimate of memory available for new
// allocations, read from /proc/meminfo's MemAvailable field. Returns 0 if
// it cannot be determined (callers should treat 0 as "unknown, assume
// sufficient" the same way GetAvailableSpace's callers do).
func AvailableMemoryBytes() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}
