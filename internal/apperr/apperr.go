package apperr

import "errors"

// Kind classifies a failure for the HTTP boundary.
type Kind int

const (
	KindNotFound Kind = iota
	KindForbidden
	KindValidation
	KindRateLimited
	KindConflict
	KindUpstream
)

// Error carries a failure kind and a user-safe message. Internal detail never
// travels in Message; it belongs in logs.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// NotFound reports an absent resource, or one deliberately masked as absent
// for a principal without access.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Forbidden reports a resource the principal may not act on.
func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

// Validation reports an unmet precondition on input or content.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// RateLimited reports an exhausted request quota.
func RateLimited(msg string) *Error { return &Error{Kind: KindRateLimited, Message: msg} }

// Conflict reports a resource ceiling or state conflict.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Upstream reports an unreachable or failing external dependency.
func Upstream(msg string) *Error { return &Error{Kind: KindUpstream, Message: msg} }

// KindOf extracts the Kind from err, reporting ok=false for plain errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
