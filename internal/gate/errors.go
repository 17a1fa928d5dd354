package gate

import (
	"errors"
	"fmt"

	"github.com/annel0/mmo-gates/internal/vec"
)

var (
	// ErrFormat базовая ошибка некорректного описания формата
	ErrFormat = errors.New("invalid gate format")
	// ErrConflict клетка уже занята другой структурой
	ErrConflict = errors.New("structure conflict")
	// ErrNoMatch ни один формат не подошёл
	ErrNoMatch = errors.New("no matching gate format")
)

// FormatError описывает причину отказа при разборе формата
type FormatError struct {
	Name   string // Имя формата (обычно имя файла)
	Line   int    // Номер строки, 0 если ошибка не привязана к строке
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("gate format %q line %d: %s", e.Name, e.Line, e.Reason)
	}
	return fmt.Sprintf("gate format %q: %s", e.Name, e.Reason)
}

// Is позволяет сравнивать через errors.Is(err, ErrFormat)
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// ConflictError описывает пересечение с уже зарегистрированной структурой
type ConflictError struct {
	Role  Role
	Pos   vec.Vec3
	Owner any // Владелец занятой клетки, если известен
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s cell %s is already occupied", e.Role, e.Pos)
}

// Is позволяет сравнивать через errors.Is(err, ErrConflict)
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
