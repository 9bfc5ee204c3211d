package message

import "errors"

var (
	ErrInvalidDescriptor = errors.New("message: invalid descriptor")
	ErrUnknownField      = errors.New("message: unknown field")
	ErrKindMismatch      = errors.New("message: field kind mismatch")
	ErrNoPresence        = errors.New("message: field does not track presence")
	ErrIndexOutOfRange   = errors.New("message: index out of range")

	// Borrow violations. These are programming errors and are raised as
	// panics.
	ErrBorrowConflict = errors.New("message: conflicting borrow")
	// ErrBorrowExpired reports use of a proxy after Done, or after the
	// slot it was taken from was borrowed again or replaced.
	ErrBorrowExpired = errors.New("message: use of an ended borrow")
	// ErrBorrowActive reports ending, releasing or freezing something that
	// is still borrowed.
	ErrBorrowActive = errors.New("message: borrow ended while reborrowed")
	ErrReleased     = errors.New("message: use after Release()")
)
