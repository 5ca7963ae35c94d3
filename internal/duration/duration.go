// Package duration computes session and task durations from UTC timestamp
// strings or manual overrides. All functions are pure; parse failures are
// returned as typed errors alongside a usable zero value so callers can log
// them without changing the numbers reports render.
package duration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Layout is the persisted timestamp format. Timestamps are always UTC.
const Layout = "2006-01-02 15:04:05"

// ParseError describes a malformed timestamp or decimal field.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Span holds the raw duration-bearing fields of a single session row.
type Span struct {
	Start       string
	Stop        string
	Manual      bool
	ManualHours string
}

// ParseUTC parses a persisted timestamp as UTC.
func ParseUTC(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, value, time.UTC)
	if err != nil {
		return time.Time{}, &ParseError{Field: field, Value: value, Err: err}
	}
	return t, nil
}

// FormatUTC renders a time in the persisted timestamp format.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(Layout)
}

// ElapsedSeconds returns the whole seconds between start and stop.
// Missing timestamps or a non-positive interval yield zero without error;
// malformed timestamps yield zero with a ParseError.
func ElapsedSeconds(start, stop string) (int64, error) {
	if start == "" || stop == "" {
		return 0, nil
	}
	startAt, err := ParseUTC("start_time", start)
	if err != nil {
		return 0, err
	}
	stopAt, err := ParseUTC("stop_time", stop)
	if err != nil {
		return 0, err
	}
	secs := int64(stopAt.Sub(startAt).Seconds())
	if secs <= 0 {
		return 0, nil
	}
	return secs, nil
}

// CeilHours rounds hours up to the next 0.01 increment. Billing-style: a
// one-minute session bills as 0.02, never 0.01.
func CeilHours(hours float64) float64 {
	return math.Ceil(hours*100) / 100
}

// Format renders hours as a fixed two-decimal string, the persisted form of
// every duration field.
func Format(hours float64) string {
	return strconv.FormatFloat(hours, 'f', 2, 64)
}

// ManualHours parses a manual duration entry and rounds it to two decimals.
// Manual entries pass through with nearest rounding; the ceiling rule applies
// only to timestamp-derived durations.
func ManualHours(value string) (string, error) {
	if value == "" {
		return Format(0), nil
	}
	hours, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return Format(0), &ParseError{Field: "manual_duration", Value: value, Err: err}
	}
	return Format(math.Round(hours*100) / 100), nil
}

// SessionHours computes the persisted calculated_duration for one session.
// The returned string is always valid; a non-nil error reports a swallowed
// parse failure the caller should log.
func SessionHours(s Span) (string, error) {
	if s.Manual {
		return ManualHours(s.ManualHours)
	}
	secs, err := ElapsedSeconds(s.Start, s.Stop)
	if err != nil {
		return Format(0), err
	}
	return Format(CeilHours(float64(secs) / 3600)), nil
}

// TaskHours computes a task total by summing the raw elapsed time of every
// span and ceiling the sum once. This is not the sum of the individually
// rounded per-session values; report parity depends on the single ceiling.
func TaskHours(spans []Span) (string, error) {
	var timedSecs int64
	var manualSum float64
	var errs []error
	for _, s := range spans {
		if s.Manual {
			if s.ManualHours == "" {
				continue
			}
			hours, err := strconv.ParseFloat(s.ManualHours, 64)
			if err != nil {
				errs = append(errs, &ParseError{Field: "manual_duration", Value: s.ManualHours, Err: err})
				continue
			}
			manualSum += hours
			continue
		}
		secs, err := ElapsedSeconds(s.Start, s.Stop)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		timedSecs += secs
	}
	total := float64(timedSecs)/3600 + manualSum
	return Format(CeilHours(total)), errors.Join(errs...)
}

// LegacyTaskHours computes the task total the way the single-timer fields
// did: sessions win if any exist, then a manual override, then the legacy
// start/stop pair with the usual ceiling.
func LegacyTaskHours(start, stop string, manual bool, manualHours string, spans []Span) (string, error) {
	if len(spans) > 0 {
		return TaskHours(spans)
	}
	if manual {
		return ManualHours(manualHours)
	}
	return SessionHours(Span{Start: start, Stop: stop})
}

// FormatClock renders seconds as HH:MM:SS for report totals.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
