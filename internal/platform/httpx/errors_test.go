package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsWrappedSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("widget %w", ErrNotFound), http.StatusNotFound},
		{"duplicate", fmt.Errorf("widget code %w", ErrDuplicate), http.StatusConflict},
		{"insufficient stock", fmt.Errorf("widget: %w", ErrInsufficientStock), http.StatusConflict},
		{"validation", fmt.Errorf("%w: quantity must be positive", ErrValidation), http.StatusBadRequest},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}
