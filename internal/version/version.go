// Package version implements the MAJOR.MINOR.PATCH bump policy stamped on
// every document transition. The functions are deliberately lenient: a
// malformed input falls back to a fixed default instead of failing, because
// versioning must never block a save.
package version

import (
	"strconv"
	"strings"
)

// IncrementMajor returns major+1 with minor and patch reset to zero.
// Malformed input yields "1.0.0".
func IncrementMajor(v string) string {
	major, _, _, ok := parse(v)
	if !ok {
		return "1.0.0"
	}
	return join(major+1, 0, 0)
}

// IncrementMinor returns minor+1 with patch reset to zero.
// Malformed input yields "0.1.0".
func IncrementMinor(v string) string {
	major, minor, _, ok := parse(v)
	if !ok {
		return "0.1.0"
	}
	return join(major, minor+1, 0)
}

// IncrementPatch returns patch+1, leaving major and minor untouched.
// Malformed input yields "0.0.1".
func IncrementPatch(v string) string {
	major, minor, patch, ok := parse(v)
	if !ok {
		return "0.0.1"
	}
	return join(major, minor, patch+1)
}

func parse(v string) (major, minor, patch int, ok bool) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2], true
}

func join(major, minor, patch int) string {
	return strconv.Itoa(major) + "." + strconv.Itoa(minor) + "." + strconv.Itoa(patch)
}
