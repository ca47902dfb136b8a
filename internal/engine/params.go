package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"shift-planner/pkg/calendar"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Ratios - границы доли 中1 относительно 白: по дню (DayMin/DayMax),
// по сотруднику (PersonMin/PersonMax) и доля смешанных циклов MixMax.
type Ratios struct {
	DayMin    float64 `json:"rMin" yaml:"rMin" validate:"gte=0,lte=3"`
	DayMax    float64 `json:"rMax" yaml:"rMax" validate:"gte=0,lte=3,gtefield=DayMin"`
	PersonMin float64 `json:"pMin" yaml:"pMin" validate:"gte=0,lte=3"`
	PersonMax float64 `json:"pMax" yaml:"pMax" validate:"gte=0,lte=3,gtefield=PersonMin"`
	MixMax    float64 `json:"mixMax" yaml:"mixMax" validate:"gte=0,lte=1"`
}

func DefaultRatios() Ratios {
	return Ratios{DayMin: 0.3, DayMax: 0.7, PersonMin: 0.3, PersonMax: 0.7, MixMax: 1}
}

// Params - всё, что нужно конвейеру. Скрытого состояния между запусками нет.
type Params struct {
	Employees []string `validate:"unique,dive,required"`
	Span      calendar.Span
	// Grid - исходная сетка, может быть nil
	Grid           *Grid
	RestPrefs      RestPrefs
	Ratios         Ratios
	History        *HistoryProfile
	AdminDays      int `validate:"gte=0,lte=31"`
	YearlyOptimize bool
}

// ValidationError - ошибка входных параметров, обнаруженная до запуска проходов
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate проверяет параметры. Пустой список сотрудников допустим:
// конвейер в этом случае возвращает исходную сетку.
func (p *Params) Validate() error {
	var errs []error
	if p.Span.Start > p.Span.End {
		errs = append(errs, &ValidationError{Field: "span", Reason: calendar.ErrReversedSpan.Error()})
	}
	if err := validate.Struct(p); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		for _, fe := range ve {
			reason := fe.Tag()
			if fe.Param() != "" {
				reason += "=" + fe.Param()
			}
			errs = append(errs, &ValidationError{Field: fieldPath(fe.Namespace()), Reason: reason})
		}
	}
	return errors.Join(errs...)
}

// fieldPath - "Params.Ratios.DayMax" -> "Ratios.DayMax"
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
