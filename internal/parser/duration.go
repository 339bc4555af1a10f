package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Millisecond factors for the duration units batterystats emits.
const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// ParseDurationMillis normalizes a batterystats duration to
// milliseconds. The dump mixes encodings: a bare millisecond count
// ("45056") and unit notation with or without spaces ("1h 2m 3s 400ms",
// "13s772ms", "2d 1h"). Unknown units and empty input are errors.
func ParseDurationMillis(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	// Bare millisecond count.
	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return n, nil
	}

	var total int64
	i := 0
	for i < len(s) {
		// Skip separating spaces.
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			break
		}

		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j == i {
			return 0, fmt.Errorf("invalid duration %q: expected digit at offset %d", s, i)
		}
		n, err := strconv.ParseInt(s[i:j], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}

		k := j
		for k < len(s) && ((s[k] >= 'a' && s[k] <= 'z') || (s[k] >= 'A' && s[k] <= 'Z')) {
			k++
		}
		unit := s[j:k]

		switch unit {
		case "d":
			total += n * msPerDay
		case "h":
			total += n * msPerHour
		case "m":
			total += n * msPerMinute
		case "s":
			total += n * msPerSecond
		case "ms":
			total += n
		default:
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, unit)
		}
		i = k
	}

	return total, nil
}
