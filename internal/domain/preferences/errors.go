package preferences

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyUserID        = errors.New("user ID cannot be empty")
	ErrInvalidUnit        = errors.New("invalid unit")
	ErrInvalidPreferences = errors.New("invalid preferences data")
	ErrNotFound           = errors.New("preferences not found")
	ErrDuplicate          = errors.New("preferences already exist for user")
	ErrPersistence        = errors.New("persistence error")
	ErrGetPreferences     = errors.New("failed to get preferences")
	ErrRetrieveUpdated    = errors.New("failed to retrieve updated preferences")
)

// UnitParseError reports a unit field holding a value outside its declared set
type UnitParseError struct {
	Field string
	Value string
}

func (e *UnitParseError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidUnit
func (e *UnitParseError) Unwrap() error {
	return ErrInvalidUnit
}
