package cursor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformed   = errors.New("cursor: malformed value, need at least YYYY-MM with numeric components")
	ErrCursorState = errors.New("cursor: unexpected number of components")
)

// Cursor is the versioned position marker for the mirror: up to five ordered
// components (year, month, day, hour, sequence-within-hour). A cursor with
// fewer than five components is incomplete and only becomes complete through
// Increment. The zero-padded string form sorts lexicographically in cursor
// order, which is what every comparison in the engine relies on.
type Cursor struct {
	values []int
}

// Parse builds a Cursor from a `-`-delimited string such as
// "2021-05-01-03-000002". At least year and month are required; components
// need not be zero-padded.
func Parse(text string) (*Cursor, error) {
	c := &Cursor{}
	if err := c.Set(text); err != nil {
		return nil, err
	}
	return c, nil
}

// Set replaces the cursor's components from the given string.
func (c *Cursor) Set(text string) error {
	parts := strings.Split(text, "-")
	if len(parts) < 2 || len(parts) > 5 {
		return fmt.Errorf("%w: %q", ErrMalformed, text)
	}

	values := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrMalformed, text)
		}
		values = append(values, v)
	}

	c.values = values
	return nil
}

// Len reports how many components are specified.
func (c *Cursor) Len() int {
	return len(c.values)
}

// String renders the cursor in YYYY-MM-DD-HH-IIIIII form, the same format the
// origin server uses in lastPublishedFile.txt. Incomplete cursors render only
// their specified components.
func (c *Cursor) String() string {
	return strings.Join(c.strings(len(c.values), 0), "-")
}

// strings renders up to limit components zero-padded to their fixed widths,
// adding increment to the sequence component when present.
func (c *Cursor) strings(limit, increment int) []string {
	out := make([]string, 0, limit)
	for i, v := range c.values {
		if i >= limit {
			break
		}
		switch i {
		case 0:
			out = append(out, fmt.Sprintf("%04d", v))
		case 4:
			out = append(out, fmt.Sprintf("%06d", v+increment))
		default:
			out = append(out, fmt.Sprintf("%02d", v))
		}
	}
	return out
}

// ForComparison returns the string to compare against the server's published
// marker. The marker is always one sequence number ahead of the last file that
// actually exists, so a complete cursor compares with its sequence incremented
// by one. Incomplete cursors compare with their literal string form.
func (c *Cursor) ForComparison() string {
	if len(c.values) < 5 {
		return c.String()
	}
	return strings.Join(c.strings(len(c.values), 1), "-")
}

// Behind reports whether the cursor is behind the given published marker.
func (c *Cursor) Behind(marker string) bool {
	return marker != "" && c.ForComparison() < marker
}

// Increment advances the cursor one step at its finest specified granularity.
// A year-month cursor advances to the next month and becomes complete; a
// date cursor advances one calendar day; a date-hour cursor advances one
// calendar hour; a complete cursor advances its sequence number. Day and hour
// arithmetic are calendar-correct across month and year boundaries.
func (c *Cursor) Increment() error {
	switch len(c.values) {
	case 2:
		// time.Date normalizes month 13, but the server's month convention
		// here is its own (a fresh month starts at day 0), so roll by hand.
		if c.values[1] > 11 {
			c.values[0]++
			c.values[1] = 1
		} else {
			c.values[1]++
		}
		c.values = append(c.values, 0, 0, 0)
	case 3:
		// Day 0 is the placeholder a month rollover leaves behind; the next
		// real position is the first day of that month.
		if c.values[2] == 0 {
			c.values = []int{c.values[0], c.values[1], 1, 0, 0}
			break
		}
		t := time.Date(c.values[0], time.Month(c.values[1]), c.values[2], 0, 0, 0, 0, time.UTC)
		t = t.AddDate(0, 0, 1)
		c.values = []int{t.Year(), int(t.Month()), t.Day(), 0, 0}
	case 4:
		if c.values[2] == 0 {
			c.values = []int{c.values[0], c.values[1], 1, 0, 0}
			break
		}
		t := time.Date(c.values[0], time.Month(c.values[1]), c.values[2], c.values[3], 0, 0, 0, time.UTC)
		t = t.Add(time.Hour)
		c.values = []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), 0}
	case 5:
		c.values[4]++
	default:
		return fmt.Errorf("%w: %d", ErrCursorState, len(c.values))
	}
	return nil
}

// FinishHour drops the sequence component so that the next Increment advances
// the hour instead of the sequence. The cursor must have at least the first
// four components.
func (c *Cursor) FinishHour() error {
	if len(c.values) < 4 {
		return fmt.Errorf("%w: %d, need a fully formed cursor", ErrCursorState, len(c.values))
	}
	c.values = c.values[:4]
	return nil
}

// URL returns the remote path fragment for this cursor's delta files: the
// first four components slash-joined as directories, then the full hyphenated
// cursor as the file stem, e.g. "2021/05/01/03/2021-05-01-03-000002".
func (c *Cursor) URL() string {
	if len(c.values) < 5 {
		return strings.Join(c.strings(len(c.values), 0), "/")
	}
	return strings.Join(c.strings(4, 0), "/") + "/" + c.String()
}

// Path returns the local directory for this cursor's hour, built from the
// first four components only.
func (c *Cursor) Path() string {
	return filepath.Join(c.strings(4, 0)...)
}
