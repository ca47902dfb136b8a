package engine

import (
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator из x/text не потокобезопасен, поэтому доступ под мьютексом.
var (
	namesMu       sync.Mutex
	namesCollator = collate.New(language.Chinese)
)

// CompareNames - порядок имён для разрешения ничьих: китайская (pinyin)
// сортировка, при равенстве - побайтовое сравнение.
func CompareNames(a, b string) int {
	namesMu.Lock()
	c := namesCollator.CompareString(a, b)
	namesMu.Unlock()
	if c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// SortNames сортирует имена на месте
func SortNames(names []string) {
	slices.SortStableFunc(names, CompareNames)
}
