package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNoData        = errors.New("no data provided")
	ErrMissingFields = errors.New("missing user_id or score")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrInternal      = errors.New("internal server error")
)

// IsValidationError reports whether an error is a caller fault rather than a
// server fault. Validation errors are answered with a 4xx and never logged as
// storage failures.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrNoData) || errors.Is(err, ErrMissingFields) || errors.Is(err, ErrInvalidLimit)
}
