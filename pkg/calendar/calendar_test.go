package calendar

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndFormat(t *testing.T) {
	d, err := Parse(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
	assert.Equal(t, "2024-03-01", d.AddDays(1).String())

	_, err = Parse("2024-13-01")
	assert.Error(t, err)
	_, err = Parse("2024/01/01")
	assert.Error(t, err)
}

func TestWeekday(t *testing.T) {
	// 2024-04-01 - понедельник
	mon := MustParse("2024-04-01")
	for i, want := range []int{1, 2, 3, 4, 5, 6, 7} {
		assert.Equal(t, want, mon.AddDays(i).Weekday())
	}
	assert.Equal(t, "周一", mon.WeekdayLabel())
	assert.Equal(t, "周日", mon.AddDays(6).WeekdayLabel())
}

func TestSpan(t *testing.T) {
	s, err := ParseSpan("2024-01-30", "2024-02-02")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Days())
	assert.True(t, s.Contains(MustParse("2024-02-01")))
	assert.False(t, s.Contains(MustParse("2024-02-03")))

	var got []string
	for d := range s.Dates() {
		got = append(got, d.String())
	}
	assert.Equal(t, []string{"2024-01-30", "2024-01-31", "2024-02-01", "2024-02-02"}, got)

	_, err = ParseSpan("2024-02-02", "2024-01-30")
	assert.ErrorIs(t, err, ErrReversedSpan)
}

func TestMonthSpanAndYear(t *testing.T) {
	s := MonthSpan(2023, time.February)
	assert.Equal(t, "2023-02-01", s.Start.String())
	assert.Equal(t, "2023-02-28", s.End.String())
	assert.Equal(t, "2023-01-01", s.End.StartOfYear().String())
}

func TestDateJSONMapKey(t *testing.T) {
	in := map[Date]int{MustParse("2024-05-06"): 1}
	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-05-06":1}`, string(b))

	var out map[Date]int
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
