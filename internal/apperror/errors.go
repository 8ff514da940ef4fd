package apperror

import (
	"context"
	"errors"
	"net/http"
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindTransient
)

// Stable machine-readable codes returned to API clients.
const (
	CodeValidation         = "validation_error"
	CodeSelfFollow         = "self_follow"
	CodeAlreadyFollowing   = "already_following"
	CodeAlreadyLiked       = "already_liked"
	CodeUserExists         = "user_exists"
	CodeTargetNotFound     = "target_not_found"
	CodePostNotFound       = "post_not_found"
	CodeNotFollowing       = "not_following"
	CodeNotLiked           = "not_liked"
	CodeNotFound           = "not_found"
	CodeForbidden          = "forbidden"
	CodeUnauthorized       = "unauthorized"
	CodeInvalidCredentials = "invalid_credentials"
	CodeTransient          = "transient"
)

// Error is the typed error returned by every core operation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on the machine code so sentinels compare equal to wrapped copies.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrSelfFollow         = &Error{Kind: KindValidation, Code: CodeSelfFollow, Message: "You cannot follow yourself."}
	ErrAlreadyFollowing   = &Error{Kind: KindConflict, Code: CodeAlreadyFollowing, Message: "You are already following this user."}
	ErrAlreadyLiked       = &Error{Kind: KindConflict, Code: CodeAlreadyLiked, Message: "You have already liked this post."}
	ErrUserExists         = &Error{Kind: KindConflict, Code: CodeUserExists, Message: "A user with this username or email already exists."}
	ErrTargetNotFound     = &Error{Kind: KindNotFound, Code: CodeTargetNotFound, Message: "User not found."}
	ErrPostNotFound       = &Error{Kind: KindNotFound, Code: CodePostNotFound, Message: "Post not found."}
	ErrNotFollowing       = &Error{Kind: KindNotFound, Code: CodeNotFollowing, Message: "You are not following this user."}
	ErrNotLiked           = &Error{Kind: KindNotFound, Code: CodeNotLiked, Message: "You have not liked this post yet."}
	ErrForbidden          = &Error{Kind: KindForbidden, Code: CodeForbidden, Message: "You do not have permission to perform this action."}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Code: CodeUnauthorized, Message: "Authentication credentials were not provided or are invalid."}
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Code: CodeInvalidCredentials, Message: "No active account found with the given credentials."}
)

// Validation reports malformed input.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message}
}

// NotFound reports a missing resource that has no dedicated code.
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

// Transient wraps a storage or timeout failure. Typed errors pass through untouched.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{Kind: KindTransient, Code: CodeTransient, Message: op + " failed", Err: err}
}

// KindOf returns the kind of err, treating unknown errors as transient.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

// Retryable reports whether repeating the same request may succeed.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err) == KindTransient
}

// HTTPStatus maps a kind to the response status used by the transport layer.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}
