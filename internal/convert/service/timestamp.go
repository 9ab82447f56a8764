package service

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var epochSecondsRe = regexp.MustCompile(`^\d{10}(\.\d+)?$`)

// parseTimestamp accepts the timestamp encodings seen in partner payloads:
// ten-digit Unix epoch seconds (optionally fractional), ISO-8601 with a Z
// suffix or explicit offset (optionally fractional), and space-separated
// "YYYY-MM-DD HH:MM:SS[.ffffff]". Every successful parse is converted to UTC.
// Unparseable input yields nil.
func parseTimestamp(v any) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		t := x.UTC()
		return &t
	case *time.Time:
		if x == nil {
			return nil
		}
		t := x.UTC()
		return &t
	}

	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return nil
	}

	if epochSecondsRe.MatchString(s) {
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			whole, frac := math.Modf(secs)
			t := time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC()
			return &t
		}
	}

	// A literal Z suffix is rewritten to an explicit zero offset first, so
	// every zoned form goes through the same offset-aware parse.
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.999999999",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}

	return nil
}
