package domain

import "strings"

// Weekdays is the canonical weekday ordering used by every weekday axis.
var Weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday",
	"Friday", "Saturday", "Sunday",
}

// weekdayIndex returns the position of a canonical weekday name in Weekdays,
// or len(Weekdays) for anything else.
func weekdayIndex(name string) int {
	for i, w := range Weekdays {
		if w == name {
			return i
		}
	}
	return len(Weekdays)
}

// CanonicalWeekday returns the Weekdays spelling of s, matched
// case-insensitively.
func CanonicalWeekday(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, w := range Weekdays {
		if strings.EqualFold(w, s) {
			return w, true
		}
	}
	return "", false
}
