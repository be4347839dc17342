package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewValidationError("granularity must be daily or hourly"),
			want: "[VALIDATION] granularity must be daily or hourly",
		},
		{
			name: "with cause",
			err:  NewFeedError("fetch batch", fmt.Errorf("connection reset")),
			want: "[FEED] fetch batch: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewFeedError("fetch", cause)

	assert.True(t, errors.Is(err, cause))

	var appErr *AppError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &appErr))
	assert.Equal(t, ErrTypeFeed, appErr.Type)
}

func TestAppError_WithContext(t *testing.T) {
	err := NewIntegrityError("standard feed has data after segment boundary").
		WithContext("cusip", "362320AX1").
		WithContext("batch", 3)

	assert.Equal(t, "362320AX1", err.Context["cusip"])
	assert.Equal(t, 3, err.Context["batch"])
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewIntegrityError("segment violation"))

	assert.True(t, IsType(err, ErrTypeIntegrity))
	assert.False(t, IsType(err, ErrTypeFeed))
	assert.False(t, IsType(errors.New("plain"), ErrTypeIntegrity))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation is fatal", NewValidationError("bad feed type"), true},
		{"integrity is fatal", NewIntegrityError("segment violation"), true},
		{"config is fatal", NewConfigError("load", errors.New("no file")), true},
		{"feed is not fatal", NewFeedError("fetch", errors.New("timeout")), false},
		{"parsing is not fatal", NewParsingError("volume", nil), false},
		{"plain error is not fatal", errors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}
