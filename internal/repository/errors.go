package repository

import "errors"

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")

	// ErrConflict запись уже содержит другое значение неизменяемого поля
	ErrConflict = errors.New("conflicting record")
)
