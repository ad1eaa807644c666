package pizza

import "errors"

var (
	// ErrNotFound is returned for an unknown user, franchise, store or menu
	// item, and for failed credential checks.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would break a uniqueness rule,
	// such as a second account with the same email.
	ErrConflict = errors.New("conflict")

	// ErrInvalid is returned for input the repository cannot store.
	ErrInvalid = errors.New("invalid input")

	// ErrInternal wraps storage failures inside a transaction. The original
	// cause stays attached for logs and errors.Is.
	ErrInternal = errors.New("internal storage error")
)
