// Package crud holds the checks every resource service repeats around the
// store: not-found mapping, rows-affected handling, input validation and
// money rules.
package crud

import (
	"errors"
	"fmt"

	"lotmarket/internal/apperr"
	"lotmarket/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Lookup maps store.ErrNotFound to apperr.NotFound for resource.
func Lookup[T any](rec T, err error, resource string, id int64) (T, error) {
	if errors.Is(err, store.ErrNotFound) {
		var zero T
		return zero, apperr.NotFound(resource, id)
	}
	return rec, err
}

// Affected turns a zero rows-affected result into NotFound.
func Affected(n int64, err error, resource string, id int64) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound(resource, id)
	}
	return nil
}

// Validate runs struct validation and reports the first failing field.
func Validate(v *validator.Validate, in any) error {
	if err := v.Struct(in); err != nil {
		return apperr.FromValidation(err)
	}
	return nil
}

// maxMoney is the first value NUMERIC(10,2) cannot hold.
var maxMoney = decimal.New(1, 8)

// Money checks an amount against the storage column: at most two decimal
// places, below 10^8, and positive unless allowZero.
func Money(field string, d decimal.Decimal, allowZero bool) error {
	switch {
	case d.IsNegative():
		return apperr.BadRequest(field, "must not be negative")
	case d.IsZero() && !allowZero:
		return apperr.BadRequest(field, "must be positive")
	case !d.Equal(d.Round(2)):
		return apperr.BadRequest(field, "at most two decimal places")
	case d.GreaterThanOrEqual(maxMoney):
		return apperr.BadRequest(field, fmt.Sprintf("must be below %s", maxMoney))
	}
	return nil
}
