package campaign

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

var (
	ErrValidation       = errors.New("campaign: validation failed")
	ErrNotFound         = errors.New("campaign: not found")
	ErrStoreUnavailable = errors.New("campaign: store unavailable")
)

// wrapErr maps driver errors onto the package taxonomy. Anything that is not
// a missing record or a validation failure is treated as the store being unavailable.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("campaign: %s: %w", op, ErrNotFound)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation):
		return err
	default:
		return fmt.Errorf("campaign: %s: %w: %w", op, ErrStoreUnavailable, err)
	}
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NewRollKey returns a fresh idempotency key for a DiceRoll.
func NewRollKey() string {
	return ulid.Make().String()
}
