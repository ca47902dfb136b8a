package engine

import (
	"strconv"
	"strings"
)

// RestPair - два фиксированных выходных в неделю (ISO: пн=1 ... вс=7).
// Нулевое значение означает "предпочтения нет".
type RestPair struct {
	first, second int
}

// ParseRestPair - из строки убираются все нецифровые символы, остаться
// должны ровно две разные цифры 1..7. "17" нормализуется в "71".
func ParseRestPair(raw string) (RestPair, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) != 2 {
		return RestPair{}, false
	}
	a, b := int(digits[0]-'0'), int(digits[1]-'0')
	if a < 1 || a > 7 || b < 1 || b > 7 || a == b {
		return RestPair{}, false
	}
	if a == 1 && b == 7 {
		a, b = 7, 1
	}
	return RestPair{first: a, second: b}, true
}

func (p RestPair) IsZero() bool {
	return p.first == 0
}

// Contains - входит ли день недели (ISO) в пару
func (p RestPair) Contains(weekday int) bool {
	return !p.IsZero() && (p.first == weekday || p.second == weekday)
}

func (p RestPair) String() string {
	if p.IsZero() {
		return ""
	}
	return strconv.Itoa(p.first) + strconv.Itoa(p.second)
}

func (p RestPair) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// defaultRestPair - пара для сотрудника без предпочтения: сб/вс, вс/пн,
// пн/вт ... со сдвигом по индексу, чтобы выходные не совпадали у всех.
func defaultRestPair(index int) RestPair {
	d := (5+index)%7 + 1
	return RestPair{first: d, second: d%7 + 1}
}

// RestPrefs - предпочтения выходных по сотрудникам
type RestPrefs map[string]RestPair

// SanitizeRestPrefs - отбрасывает пустые имена и некорректные значения
func SanitizeRestPrefs(raw map[string]string) RestPrefs {
	out := make(RestPrefs, len(raw))
	for name, v := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if p, ok := ParseRestPair(v); ok {
			out[name] = p
		}
	}
	return out
}

// Strings - обратное преобразование для хранения и ответа API
func (p RestPrefs) Strings() map[string]string {
	out := make(map[string]string, len(p))
	for name, pair := range p {
		out[name] = pair.String()
	}
	return out
}

// pairFor - предпочтение сотрудника или пара по умолчанию
func (p RestPrefs) pairFor(employee string, index int) RestPair {
	if pair, ok := p[employee]; ok && !pair.IsZero() {
		return pair
	}
	return defaultRestPair(index)
}
