package repositories

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Storage-level errors. Services translate them into models.Error kinds.
var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrDuplicateKey         = errors.New("duplicate key")
	ErrVersionConflict      = errors.New("version conflict")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

// translateError maps driver errors onto the package sentinels.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return ErrDuplicateKey
	}
	return err
}

// isUniqueViolation covers connections opened without gorm's TranslateError.
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
