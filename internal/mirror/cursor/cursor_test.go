package cursor

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RejectsMalformedValues(t *testing.T) {
	for _, text := range []string{"", "2021", "2021-xx", "2021-05-", "a-b", "2021-05-01-03-000002-7"} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestParse_AcceptsUnpaddedComponents(t *testing.T) {
	c, err := Parse("2021-5-1-3-2")
	require.NoError(t, err)
	assert.Equal(t, "2021-05-01-03-000002", c.String())
}

func TestCursor_String_RendersFixedWidths(t *testing.T) {
	c, err := Parse("2021-05-01-03-000002")
	require.NoError(t, err)
	assert.Equal(t, "2021-05-01-03-000002", c.String())

	partial, err := Parse("2021-05")
	require.NoError(t, err)
	assert.Equal(t, "2021-05", partial.String())
}

func TestCursor_Increment_MonthRollover(t *testing.T) {
	c, err := Parse("2020-11")
	require.NoError(t, err)
	require.NoError(t, c.Increment())
	assert.Equal(t, "2020-12-00-00-000000", c.String())

	c, err = Parse("2020-12")
	require.NoError(t, err)
	require.NoError(t, c.Increment())
	assert.Equal(t, "2021-01-00-00-000000", c.String())
}

func TestCursor_Increment_DayIsCalendarCorrect(t *testing.T) {
	cases := map[string]string{
		"2020-02-28": "2020-02-29-00-000000", // leap year
		"2021-02-28": "2021-03-01-00-000000",
		"2020-12-31": "2021-01-01-00-000000",
		"2020-04-30": "2020-05-01-00-000000",
	}
	for from, want := range cases {
		t.Run(from, func(t *testing.T) {
			c, err := Parse(from)
			require.NoError(t, err)
			require.NoError(t, c.Increment())
			assert.Equal(t, want, c.String())
		})
	}
}

func TestCursor_Increment_HourIsCalendarCorrect(t *testing.T) {
	cases := map[string]string{
		"2020-02-28-23": "2020-02-29-00-000000", // leap year
		"2021-02-28-23": "2021-03-01-00-000000",
		"2020-12-31-23": "2021-01-01-00-000000",
		"2021-05-01-03": "2021-05-01-04-000000",
	}
	for from, want := range cases {
		t.Run(from, func(t *testing.T) {
			c, err := Parse(from)
			require.NoError(t, err)
			require.NoError(t, c.Increment())
			assert.Equal(t, want, c.String())
		})
	}
}

func TestCursor_Increment_DayZeroPlaceholderAdvancesToFirstDay(t *testing.T) {
	// A month rollover leaves day 0 behind; once that placeholder hour is
	// exhausted, the next increment must land on the month's first real day
	// instead of drifting backwards into the previous month.
	c, err := Parse("2021-06-00-00")
	require.NoError(t, err)
	require.NoError(t, c.Increment())
	assert.Equal(t, "2021-06-01-00-000000", c.String())

	c, err = Parse("2021-06-00")
	require.NoError(t, err)
	require.NoError(t, c.Increment())
	assert.Equal(t, "2021-06-01-00-000000", c.String())
}

func TestCursor_Increment_SequenceOnCompleteCursor(t *testing.T) {
	c, err := Parse("2021-05-01-03-000002")
	require.NoError(t, err)
	require.NoError(t, c.Increment())
	assert.Equal(t, "2021-05-01-03-000003", c.String())
}

func TestCursor_Increment_IsMonotonic(t *testing.T) {
	// Every increment must sort strictly greater under the fixed-width
	// lexicographic order, regardless of the starting granularity.
	for _, start := range []string{"2020-11", "2020-02-28", "2020-12-31-23", "2021-05-01-03-000000"} {
		t.Run(start, func(t *testing.T) {
			c, err := Parse(start)
			require.NoError(t, err)
			prev := c.String()
			for i := 0; i < 50; i++ {
				require.NoError(t, c.Increment())
				next := c.String()
				assert.Greater(t, next, prev)
				prev = next
			}
		})
	}
}

func TestCursor_ForComparison_OffByOne(t *testing.T) {
	c, err := Parse("2021-05-01-03-000005")
	require.NoError(t, err)

	// The server's marker is one ahead of the last real file, so a cursor at
	// 000005 compares equal to a published marker of 000006.
	assert.Equal(t, "2021-05-01-03-000006", c.ForComparison())
	assert.False(t, c.Behind("2021-05-01-03-000006"))
	assert.True(t, c.Behind("2021-05-01-03-000007"))
}

func TestCursor_ForComparison_IncompleteIsLiteral(t *testing.T) {
	c, err := Parse("2021-05")
	require.NoError(t, err)
	assert.Equal(t, "2021-05", c.ForComparison())
	assert.True(t, c.Behind("2021-05-01-03-000002"))
}

func TestCursor_Behind_EmptyMarker(t *testing.T) {
	c, err := Parse("2021-05")
	require.NoError(t, err)
	assert.False(t, c.Behind(""))
}

func TestCursor_FinishHour_ThenIncrementAdvancesHour(t *testing.T) {
	c, err := Parse("2021-05-01-03-000002")
	require.NoError(t, err)
	require.NoError(t, c.FinishHour())
	assert.Equal(t, "2021-05-01-03", c.String())

	require.NoError(t, c.Increment())
	assert.Equal(t, "2021-05-01-04-000000", c.String())
}

func TestCursor_FinishHour_NeedsFourComponents(t *testing.T) {
	c, err := Parse("2021-05-01")
	require.NoError(t, err)
	assert.ErrorIs(t, c.FinishHour(), ErrCursorState)
}

func TestCursor_URLAndPath(t *testing.T) {
	c, err := Parse("2021-05-01-03-000002")
	require.NoError(t, err)
	assert.Equal(t, "2021/05/01/03/2021-05-01-03-000002", c.URL())
	assert.Equal(t, filepath.Join("2021", "05", "01", "03"), c.Path())
}
