package calendar

import (
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"
)

// Layout - формат дат во всех входных и выходных данных (ISO YYYY-MM-DD)
const Layout = "2006-01-02"

var ErrReversedSpan = errors.New("start date is after end date")

// Date - календарный день без часового пояса, хранится как число дней от 1970-01-01
type Date int32

// Parse - разбирает дату в формате YYYY-MM-DD
func Parse(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(Layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// MustParse используется в тестах и константах
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime - отбрасывает время и часовой пояс
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	u := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date(u.Unix() / 86400)
}

func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Date) String() string {
	return d.Time().Format(Layout)
}

func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

// Weekday - номер дня недели по ISO: понедельник=1 ... воскресенье=7
func (d Date) Weekday() int {
	wd := int(d.Time().Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

var weekdayNames = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// WeekdayLabel - подпись дня недели для выгрузки ("周一" ... "周日")
func (d Date) WeekdayLabel() string {
	return "周" + weekdayNames[d.Time().Weekday()]
}

func (d Date) Year() int {
	return d.Time().Year()
}

// StartOfYear - 1 января того же года
func (d Date) StartOfYear() Date {
	return FromTime(time.Date(d.Year(), time.January, 1, 0, 0, 0, 0, time.UTC))
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Span - включительный диапазон дат [Start, End]
type Span struct {
	Start Date `json:"start" yaml:"start"`
	End   Date `json:"end" yaml:"end"`
}

func NewSpan(start, end Date) (Span, error) {
	if start > end {
		return Span{}, fmt.Errorf("%s..%s: %w", start, end, ErrReversedSpan)
	}
	return Span{Start: start, End: end}, nil
}

// ParseSpan - разбирает пару ISO-дат и проверяет порядок
func ParseSpan(start, end string) (Span, error) {
	s, err := Parse(start)
	if err != nil {
		return Span{}, err
	}
	e, err := Parse(end)
	if err != nil {
		return Span{}, err
	}
	return NewSpan(s, e)
}

// MonthSpan - весь календарный месяц
func MonthSpan(year int, month time.Month) Span {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Span{Start: FromTime(first), End: FromTime(first.AddDate(0, 1, -1))}
}

func (s Span) Days() int {
	if s.End < s.Start {
		return 0
	}
	return int(s.End-s.Start) + 1
}

func (s Span) Contains(d Date) bool {
	return d >= s.Start && d <= s.End
}

// Dates - последовательность дней диапазона по возрастанию
func (s Span) Dates() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := s.Start; d <= s.End; d++ {
			if !yield(d) {
				return
			}
		}
	}
}

func (s Span) List() []Date {
	out := make([]Date, 0, s.Days())
	for d := range s.Dates() {
		out = append(out, d)
	}
	return out
}

func (s Span) String() string {
	return s.Start.String() + ".." + s.End.String()
}
