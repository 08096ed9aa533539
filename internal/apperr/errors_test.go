package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestKindsSurviveWrapping(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"not_found", NotFound("bid", 7), ErrNotFound},
		{"forbidden", Forbidden("admin only"), ErrForbidden},
		{"bad_request", BadRequest("amount", "must exceed current bid"), ErrBadRequest},
		{"conflict", Conflict("vatNumber", "duplicate"), ErrConflict},
		{"internal", Internal("reload failed", cause), ErrInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tc.err)
			require.ErrorIs(t, wrapped, tc.kind)
			e, ok := As(wrapped)
			require.True(t, ok)
			require.Equal(t, tc.kind, e.Kind)
		})
	}
	require.ErrorIs(t, Internal("reload failed", cause), cause)
}

func TestErrorMessage(t *testing.T) {
	require.Equal(t, "bad request: amount: must exceed current bid",
		BadRequest("amount", "must exceed current bid").Error())
	require.Equal(t, "lot not found", NotFound("lot", 3).Error())

	busy := &Error{Kind: ErrConflict, Resource: "lot", Reason: "lot is busy", Err: errors.New("lock timeout (SQLSTATE 55P03)")}
	require.Equal(t, "lot conflict: lot is busy: lock timeout (SQLSTATE 55P03)", busy.Error())
	require.Equal(t, "lot conflict: lot is busy", busy.Message())
}

func TestFromValidation(t *testing.T) {
	type inner struct {
		Name string `validate:"required"`
	}
	type outer struct {
		Rating int `validate:"min=1,max=5"`
		Inner  inner
	}
	v := validator.New()

	err := FromValidation(v.Struct(outer{Rating: 9, Inner: inner{Name: "x"}}))
	e, ok := As(err)
	require.True(t, ok)
	require.ErrorIs(t, err, ErrBadRequest)
	require.Equal(t, "Rating", e.Field)

	err = FromValidation(v.Struct(outer{Rating: 3}))
	e, ok = As(err)
	require.True(t, ok)
	require.Equal(t, "Inner.Name", e.Field)

	plain := errors.New("plain")
	require.Same(t, plain, FromValidation(plain))
}

func TestNewValidatorUsesJSONNames(t *testing.T) {
	type input struct {
		Amount  int `json:"amount" validate:"gt=0"`
		Company struct {
			Country string `json:"country" validate:"len=2"`
		} `json:"company"`
	}
	v := NewValidator()

	e, ok := As(FromValidation(v.Struct(input{Amount: 0})))
	require.True(t, ok)
	require.Equal(t, "amount", e.Field)

	in := input{Amount: 1}
	in.Company.Country = "BEL"
	e, ok = As(FromValidation(v.Struct(in)))
	require.True(t, ok)
	require.Equal(t, "company.country", e.Field)
}
