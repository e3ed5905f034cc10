package history

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Policy defines which journal entries to keep.
type Policy struct {
	// MaxEntries is the maximum number of entries to keep (0 = unlimited)
	MaxEntries int
	// MaxAge is the maximum age of entries to keep (0 = unlimited)
	MaxAge time.Duration
	// KeepFailed keeps entries of faulted and interrupted runs. When false
	// they are pruned regardless of the other limits.
	KeepFailed bool
}

// DefaultPolicy returns the default retention policy
func DefaultPolicy() Policy {
	return Policy{
		MaxEntries: 1000,
		MaxAge:     90 * 24 * time.Hour,
		KeepFailed: true,
	}
}

// ApplyPolicy returns the IDs of entries the policy does not keep, newest
// first. entries is sorted in place.
func ApplyPolicy(entries []Entry, policy Policy, now time.Time) []string {
	if len(entries) == 0 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})

	var cutoff time.Time
	if policy.MaxAge > 0 {
		cutoff = now.Add(-policy.MaxAge)
	}

	var expired []string
	kept := 0
	for _, e := range entries {
		switch {
		case !policy.KeepFailed && !e.Succeeded():
		case !cutoff.IsZero() && e.StartedAt.Before(cutoff):
		case policy.MaxEntries > 0 && kept >= policy.MaxEntries:
		default:
			kept++
			continue
		}
		expired = append(expired, e.ID)
	}
	return expired
}

// ParseDuration parses a duration string, accepting the time.ParseDuration
// forms plus days (d), weeks (w), months (30 days) and years (y).
func ParseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}

	i := strings.IndexFunc(s, func(c rune) bool { return c < '0' || c > '9' })
	if i <= 0 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}
	value, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	day := 24 * time.Hour
	switch s[i:] {
	case "d", "day", "days":
		return time.Duration(value) * day, nil
	case "w", "week", "weeks":
		return time.Duration(value) * 7 * day, nil
	case "month", "months":
		return time.Duration(value) * 30 * day, nil
	case "y", "year", "years":
		return time.Duration(value) * 365 * day, nil
	default:
		return 0, fmt.Errorf("unknown duration unit: %s", s[i:])
	}
}

// FormatDuration formats a duration in a human-readable format
func FormatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	switch {
	case days >= 365:
		return fmt.Sprintf("%d years", days/365)
	case days >= 30:
		return fmt.Sprintf("%d months", days/30)
	case days >= 7:
		return fmt.Sprintf("%d weeks", days/7)
	case days > 0:
		return fmt.Sprintf("%d days", days)
	default:
		return d.String()
	}
}
