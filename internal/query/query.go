// Package query narrows a stored history to the window the user is viewing:
// a rolling "last N hours" cutoff, optionally combined with a calendar
// month/year filter.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ugagro/greenwatch/internal/model"
)

// All is the hours value that disables the rolling cutoff.
const All = 0

// Ranges lists the selectable rolling windows in hours.
var Ranges = []int{1, 12, 24, 72, 168}

var rangeNames = map[string]int{
	"1h":      1,
	"hour":    1,
	"12h":     12,
	"24h":     24,
	"day":     24,
	"72h":     72,
	"3days":   72,
	"3d":      72,
	"168h":    168,
	"week":    168,
	"7d":      168,
	"all":     All,
	"alldata": All,
}

// Filter returns the samples with timestamp >= now-hours, preserving order.
// hours <= 0 disables the rolling cutoff. When month and year are both
// non-zero, only samples whose calendar month and year (evaluated in now's
// location) match are kept as well. Neither input is modified.
func Filter(samples []model.Sample, now time.Time, hours, month, year int) []model.Sample {
	out := make([]model.Sample, 0, len(samples))
	var cutoff time.Time
	if hours > 0 {
		cutoff = now.Add(-time.Duration(hours) * time.Hour)
	}
	byCalendar := month != 0 && year != 0
	loc := now.Location()

	for _, s := range samples {
		if hours > 0 && s.Timestamp.Before(cutoff) {
			continue
		}
		if byCalendar {
			lt := s.Timestamp.In(loc)
			if int(lt.Month()) != month || lt.Year() != year {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// ParseRange resolves a range flag: a named window ("1h", "12h", "day",
// "3days", "week", "all") or a bare number of hours.
func ParseRange(s string) (int, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if h, ok := rangeNames[key]; ok {
		return h, nil
	}
	h, err := strconv.Atoi(strings.TrimSuffix(key, "h"))
	if err != nil || h < 0 {
		return 0, fmt.Errorf("invalid range %q (use 1h, 12h, day, 3days, week, all, or hours)", s)
	}
	return h, nil
}

// RangeLabel is the display name of a window in hours.
func RangeLabel(hours int) string {
	switch {
	case hours <= 0:
		return "all"
	case hours == 24:
		return "day"
	case hours == 72:
		return "3days"
	case hours == 168:
		return "week"
	default:
		return fmt.Sprintf("%dh", hours)
	}
}

// ValidateMonthYear checks a month/year filter pair. Both zero means no
// calendar filter; otherwise both must be set.
func ValidateMonthYear(month, year int) error {
	if month == 0 && year == 0 {
		return nil
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("month must be 1-12, got %d", month)
	}
	if year < 1970 {
		return fmt.Errorf("year must be set with month, got %d", year)
	}
	return nil
}
