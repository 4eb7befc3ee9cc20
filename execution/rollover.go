package execution

import (
	"strconv"
	"strings"
	"time"

	"github.com/midastrader/midas/symbol"
)

// IsRolloverDay reports whether tsNs falls on the rollover day for a
// future contract, computed from its ExpiryMonths list and TermDayRule
// (e.g. "8_business_days_before_expiry"). This is the minimal date
// arithmetic a recorded-data backtest needs without an exchange holiday
// calendar, which nothing in the retrieved pack provides — built on
// stdlib time.Time alone: weekends are skipped, holidays are not.
func IsRolloverDay(tsNs int64, fut symbol.FutureDetails) bool {
	t := time.Unix(0, tsNs).UTC()
	expiry, ok := nextExpiryMonthStart(t, fut.ExpiryMonths)
	if !ok {
		return false
	}
	offset := parseBusinessDayOffset(fut.TermDayRule)
	if offset == 0 {
		return false
	}
	rolloverDate := subtractBusinessDays(expiry, offset)
	return sameDay(t, rolloverDate)
}

// nextExpiryMonthStart parses "YYYY-MM" entries and returns the first day
// of the nearest one at or after t.
func nextExpiryMonthStart(t time.Time, expiryMonths []string) (time.Time, bool) {
	var best time.Time
	found := false
	for _, raw := range expiryMonths {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			continue
		}
		if parsed.Before(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)) {
			continue
		}
		if !found || parsed.Before(best) {
			best = parsed
			found = true
		}
	}
	return best, found
}

// parseBusinessDayOffset extracts the leading integer from a rule string
// like "8_business_days_before_expiry". Returns 0 if the rule is empty or
// unparseable.
func parseBusinessDayOffset(rule string) int {
	if rule == "" {
		return 0
	}
	head, _, found := strings.Cut(rule, "_")
	if !found {
		return 0
	}
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// subtractBusinessDays walks backward from t skipping weekends.
func subtractBusinessDays(t time.Time, n int) time.Time {
	cursor := t
	for n > 0 {
		cursor = cursor.AddDate(0, 0, -1)
		if cursor.Weekday() != time.Saturday && cursor.Weekday() != time.Sunday {
			n--
		}
	}
	return cursor
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
