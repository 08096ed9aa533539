package apihandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"lotmarket/internal/apperr"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorHidesCauses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lockErr := &pgconn.PgError{Code: "55P03", Message: "lock timeout"}

	tests := []struct {
		name   string
		err    error
		status int
		body   ErrorResponse
	}{
		{
			name:   "retriable conflict",
			err:    fmt.Errorf("place bid: %w", &apperr.Error{Kind: apperr.ErrConflict, Resource: "lot", Field: "lot_id", Reason: "lot is busy, try again", Retriable: true, Err: lockErr}),
			status: http.StatusConflict,
			body: ErrorResponse{
				Error:   "lot conflict: lot_id: lot is busy, try again",
				Details: &ErrorDetails{Resource: "lot", Field: "lot_id", Retriable: true},
			},
		},
		{
			name:   "bad request",
			err:    apperr.BadRequest("amount", "must exceed current bid"),
			status: http.StatusBadRequest,
			body: ErrorResponse{
				Error:   "bad request: amount: must exceed current bid",
				Details: &ErrorDetails{Field: "amount"},
			},
		},
		{
			name:   "internal",
			err:    apperr.Internal("reload placed bid", errors.New("connection reset")),
			status: http.StatusInternalServerError,
			body:   ErrorResponse{Error: "internal error"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodPost, "/api/bids", nil)

			writeError(c, tt.err)

			require.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "SQLSTATE")
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.body, got)
		})
	}
}
