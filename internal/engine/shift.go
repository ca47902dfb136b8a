package engine

import (
	"fmt"
	"strings"

	"shift-planner/pkg/calendar"
)

// Shift - закрытое перечисление смен. Нулевое значение означает "не назначено".
type Shift uint8

const (
	Unassigned Shift = iota
	Day
	Mid1
	Mid2
	Night
	Rest
)

var shiftNames = [...]string{"", "DAY", "MID1", "MID2", "NIGHT", "REST"}

func (s Shift) String() string {
	if int(s) < len(shiftNames) {
		return shiftNames[s]
	}
	return fmt.Sprintf("Shift(%d)", uint8(s))
}

// IsWork - любая назначенная смена, кроме выходного
func (s Shift) IsWork() bool {
	return s != Unassigned && s != Rest
}

// breaksBlock - смены, которые разрывают рабочий блок при разбиении на циклы
func (s Shift) breaksBlock() bool {
	return s == Rest || s == Night || s == Mid2
}

// Labels - двусторонний словарь между сменами и их внешними подписями.
// Движок работает только с Shift, подписи нужны на границе ввода/вывода.
type Labels struct {
	byShift map[Shift]string
	byLabel map[string]Shift
}

// DefaultLabels - подписи, которые использует команда: 白/中1/中2/夜/休
func DefaultLabels() *Labels {
	l, _ := NewLabels(map[Shift]string{
		Day:   "白",
		Mid1:  "中1",
		Mid2:  "中2",
		Night: "夜",
		Rest:  "休",
	})
	return l
}

func NewLabels(m map[Shift]string) (*Labels, error) {
	l := &Labels{byShift: make(map[Shift]string, len(m)), byLabel: make(map[string]Shift, len(m)*2)}
	for _, s := range []Shift{Day, Mid1, Mid2, Night, Rest} {
		label := strings.TrimSpace(m[s])
		if label == "" {
			return nil, fmt.Errorf("missing label for %s", s)
		}
		if prev, ok := l.byLabel[label]; ok {
			return nil, fmt.Errorf("label %q used for both %s and %s", label, prev, s)
		}
		l.byShift[s] = label
		l.byLabel[label] = s
		l.byLabel[s.String()] = s
	}
	return l, nil
}

// Label - внешняя подпись смены, пустая строка для Unassigned
func (l *Labels) Label(s Shift) string {
	return l.byShift[s]
}

// Parse - принимает подпись или каноническое имя (DAY, MID1 ...).
// Пустая строка означает Unassigned, неизвестная подпись - ошибка.
func (l *Labels) Parse(raw string) (Shift, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Unassigned, nil
	}
	if s, ok := l.byLabel[raw]; ok {
		return s, nil
	}
	return Unassigned, fmt.Errorf("unknown shift code %q", raw)
}

// Encode - сетка в виде date -> employee -> подпись
func (l *Labels) Encode(g *Grid) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for _, d := range g.Dates() {
		r := g.Row(d)
		cells := make(map[string]string, len(r))
		for e, s := range r {
			cells[e] = l.Label(s)
		}
		out[d.String()] = cells
	}
	return out
}

// Decode - обратное к Encode. Пустые ячейки пропускаются,
// неизвестная подпись или некорректная дата возвращают ошибку.
func (l *Labels) Decode(raw map[string]map[string]string) (*Grid, error) {
	g := NewGrid()
	for ds, cells := range raw {
		d, err := calendar.Parse(ds)
		if err != nil {
			return nil, err
		}
		for e, label := range cells {
			s, err := l.Parse(label)
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", ds, e, err)
			}
			if s != Unassigned {
				g.Set(d, e, s)
			}
		}
	}
	return g, nil
}
