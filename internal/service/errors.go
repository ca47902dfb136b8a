package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput - общий признак ошибки входных данных
	ErrInvalidInput    = errors.New("参数不合法")
	ErrVersionNotFound = errors.New("排班版本不存在")
)

// InputError - ошибка входных данных с сообщением для пользователя
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return e.Msg
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError - сохранение поверх устаревшей базовой версии
type ConflictError struct {
	LatestID uint
}

func (e *ConflictError) Error() string {
	return "保存冲突：已有新版本"
}
