package errors

import "errors"

var (
	ErrNotFound = errors.New("car not found")

	ErrConflict = errors.New("car is already reserved")

	ErrInvalidWindow = errors.New("reservation start must not be after its end")
)
