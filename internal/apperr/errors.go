// Package apperr holds the domain error taxonomy shared by services and the
// transport layer.
package apperr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kinds. Match them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")
)

type Error struct {
	Kind     error
	Resource string
	ID       any
	Field    string
	Reason   string
	// Retriable is set on conflicts the caller may resubmit unchanged.
	Retriable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message()
	}
	return fmt.Sprintf("%s: %v", e.Message(), e.Err)
}

// Message is the error text without the wrapped cause, safe to show to
// clients.
func (e *Error) Message() string {
	var b strings.Builder
	if e.Resource != "" {
		b.WriteString(e.Resource)
		b.WriteString(" ")
	}
	b.WriteString(e.Kind.Error())
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotFound(resource string, id any) *Error {
	return &Error{Kind: ErrNotFound, Resource: resource, ID: id}
}

func Forbidden(reason string) *Error {
	return &Error{Kind: ErrForbidden, Reason: reason}
}

func BadRequest(field, reason string) *Error {
	return &Error{Kind: ErrBadRequest, Field: field, Reason: reason}
}

func Conflict(field, reason string) *Error {
	return &Error{Kind: ErrConflict, Field: field, Reason: reason}
}

// Unauthorized means the caller could not be identified.
func Unauthorized(reason string) *Error {
	return &Error{Kind: ErrUnauthorized, Reason: reason}
}

func Internal(reason string, cause error) *Error {
	return &Error{Kind: ErrInternal, Reason: reason, Err: cause}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FromValidation turns validator failures into a BadRequest naming the first
// offending field. Other errors are returned as they are.
func FromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return BadRequest(fieldName(fe), fmt.Sprintf("failed %q validation", fe.Tag()))
}

// fieldName is the namespace below the top-level struct, e.g. "company.name"
// when the validator reports json names.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

// NewValidator reports fields by their json name so BadRequest.Field matches
// what API clients send.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}
