package nft

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeout converts an nft time string ("1d2h", "1h4s", "500ms", "3600")
// into a duration. nft accepts a "d" unit and bare seconds, time.ParseDuration
// does not, so days and plain integers are handled here.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if secs, err := strconv.ParseUint(s, 10, 32); err == nil {
		return time.Duration(secs) * time.Second, nil
	}

	var days time.Duration
	if i := strings.IndexByte(s, 'd'); i > 0 {
		n, err := strconv.ParseUint(s[:i], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q: %v", s, err)
		}
		days = time.Duration(n) * 24 * time.Hour
		s = s[i+1:]
		if s == "" {
			return days, nil
		}
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %v", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: negative", s)
	}
	return days + d, nil
}
