package shared

import (
	"fmt"
	"strconv"
	"time"
)

const asanaDateLayout = "2006-01-02"

// AsanaTimeToMillis converts an Asana ISO-8601 timestamp ("2023-06-15T10:30:45.123456Z") to the
// epoch-millisecond string YouTrack expects.
//
// Precision is truncated, not rounded: whole epoch seconds followed by the first three digits of the
// fractional part. Conversion happens in UTC.
func AsanaTimeToMillis(ts string) (string, error) {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, ts, err)
	}
	t = t.UTC()
	return fmt.Sprintf("%d%03d", t.Unix(), t.Nanosecond()/int(time.Millisecond)), nil
}

// AsanaDateToMillis converts an Asana due_on date ("2023-06-15") to epoch milliseconds at UTC midnight.
//
// due_on values occasionally carry a time component; only the first ten characters are used since the
// YouTrack Due Date field stores a date.
func AsanaDateToMillis(date string) (string, error) {
	if len(date) > len(asanaDateLayout) {
		date = date[:len(asanaDateLayout)]
	}

	t, err := time.ParseInLocation(asanaDateLayout, date, time.UTC)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTimestamp, date, err)
	}
	return strconv.FormatInt(t.UnixMilli(), 10), nil
}
