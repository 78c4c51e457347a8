package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternal(t *testing.T) {
	tests := []struct {
		name   string
		cause  error
		code   ErrorCode
		status int
	}{
		{"nil cause", nil, ErrCodeInternal, http.StatusInternalServerError},
		{"plain error", errors.New("boom"), ErrCodeInternal, http.StatusInternalServerError},
		{"store outage", fmt.Errorf("list codes: %w", New(ErrCodeUnavailable, "code store unavailable")), ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"deadline", fmt.Errorf("lookup: %w", context.DeadlineExceeded), ErrCodeTimeout, http.StatusGatewayTimeout},
		{"delivery", Wrap(errors.New("smtp down"), ErrCodeDeliveryFailed, "deliver code"), ErrCodeDeliveryFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Internal(tt.cause, "Sign-in failed.")
			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.status, err.HTTPStatusCode())
			assert.Equal(t, "Sign-in failed.", err.Message)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeUserLocked, GetCode(fmt.Errorf("validate: %w", AccountLocked(3))))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}
