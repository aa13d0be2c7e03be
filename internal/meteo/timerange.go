package meteo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// maxSpan caps the requested window at one month.
const maxSpan = 31 * 24 * time.Hour

// datetimeLayouts are the accepted ISO-8601 shapes for request datetimes.
// Inputs carry no zone designator; they are wall-clock times in the
// resolved location.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ValidateAndLocalize parses the start and end datetime strings, resolves
// location as either an IANA zone name or a fixed ±HH[:MM] offset, and
// localizes both instants as wall-clock times in that zone. It enforces
// start < end and the one-month maximum span.
func ValidateAndLocalize(startStr, endStr, location string) (time.Time, time.Time, *time.Location, error) {
	loc, err := ResolveLocation(location)
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}

	start, err := parseInLocation(startStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}
	end, err := parseInLocation(endStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, nil, err
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, nil, ErrInvalidRange
	}
	if wallClockSpan(startStr, endStr) > maxSpan {
		return time.Time{}, time.Time{}, nil, ErrRangeTooLarge
	}

	return start, end, loc, nil
}

// wallClockSpan measures the window on the unlocalized values, so the
// one-month cap judges calendar length. A 31-day window crossing a
// fall-back DST transition lasts an hour longer than 31 days but still
// passes. Both strings parsed successfully above.
func wallClockSpan(startStr, endStr string) time.Duration {
	s, _ := parseInLocation(startStr, time.UTC)
	e, _ := parseInLocation(endStr, time.UTC)
	return e.Sub(s)
}

// ResolveLocation turns a location string into a *time.Location. Names
// are looked up in the zone database; strings starting with '+' or '-'
// are fixed UTC offsets in ±HH or ±HH:MM form.
func ResolveLocation(location string) (*time.Location, error) {
	if location == "" {
		return nil, fmt.Errorf("%w: empty location", ErrInvalidInput)
	}

	if strings.HasPrefix(location, "+") || strings.HasPrefix(location, "-") {
		minutes, err := parseOffsetMinutes(location)
		if err != nil {
			return nil, err
		}
		return time.FixedZone(location, minutes*60), nil
	}

	loc, err := time.LoadLocation(location)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidInput, location)
	}
	return loc, nil
}

func parseOffsetMinutes(offset string) (int, error) {
	hoursPart := offset
	minutesPart := ""
	if i := strings.IndexByte(offset, ':'); i >= 0 {
		hoursPart, minutesPart = offset[:i], offset[i+1:]
	}

	hours, err := strconv.Atoi(hoursPart)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid UTC offset %q", ErrInvalidInput, offset)
	}

	minutes := 0
	if minutesPart != "" {
		minutes, err = strconv.Atoi(minutesPart)
		if err != nil || minutes < 0 || minutes > 59 {
			return 0, fmt.Errorf("%w: invalid UTC offset %q", ErrInvalidInput, offset)
		}
	}

	total := hours*60 + minutes
	if strings.HasPrefix(offset, "-") {
		total = hours*60 - minutes
	}
	if total < -14*60 || total > 14*60 {
		return 0, fmt.Errorf("%w: UTC offset %q out of range", ErrInvalidInput, offset)
	}
	return total, nil
}

func parseInLocation(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid datetime %q", ErrInvalidInput, value)
}
