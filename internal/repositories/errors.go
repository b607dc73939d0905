package repositories

// Error categorises failures raised by repository implementations themselves,
// as opposed to errors wrapped from the backing store client.
type Error struct {
	msg         string
	cause       error
	notFound    bool
	conflict    bool
	unavailable bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

// Unwrap returns the underlying cause when present.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsNotFound reports whether the error represents a missing record.
func (e *Error) IsNotFound() bool { return e != nil && e.notFound }

// IsConflict reports whether the error represents a conflicting update.
func (e *Error) IsConflict() bool { return e != nil && e.conflict }

// IsUnavailable reports whether the error represents a transient outage.
func (e *Error) IsUnavailable() bool { return e != nil && e.unavailable }

// NewNotFoundError builds a not-found classified repository error.
func NewNotFoundError(msg string, cause error) *Error {
	return &Error{msg: msg, cause: cause, notFound: true}
}

// NewConflictError builds a conflict classified repository error.
func NewConflictError(msg string, cause error) *Error {
	return &Error{msg: msg, cause: cause, conflict: true}
}

// NewUnavailableError builds an unavailable classified repository error.
func NewUnavailableError(msg string, cause error) *Error {
	return &Error{msg: msg, cause: cause, unavailable: true}
}

var _ RepositoryError = (*Error)(nil)
