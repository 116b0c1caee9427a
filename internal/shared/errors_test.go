package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, CodeOK},
		{"permission", ErrPermissionDenied, CodePermissionDenied},
		{"not holder", ErrNotHolder, CodePermissionDenied},
		{"not owned wrapped", fmt.Errorf("update 3: %w", ErrNotFoundOrNotOwned), CodePermissionDenied},
		{"writing disabled", ErrWritingDisabled, CodePermissionDenied},
		{"unavailable", ErrUnavailable, CodeUnavailable},
		{"invalid", fmt.Errorf("%w: limit", ErrInvalidInput), CodeInvalidInput},
		{"storage", fmt.Errorf("%w: disk full", ErrStorage), CodeStorage},
		{"unknown", errors.New("boom"), CodeGeneral},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CodeOf(tc.err))
		})
	}
}

func TestSpecificDenialsRemainDistinct(t *testing.T) {
	assert.True(t, errors.Is(ErrNotHolder, ErrPermissionDenied))
	assert.False(t, errors.Is(ErrNotHolder, ErrNoHolder))
	assert.False(t, errors.Is(ErrNotFoundOrNotOwned, ErrNotHolder))
}
