package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrSyncInProgress", ErrSyncInProgress},
		{"ErrNotInitialized", ErrNotInitialized},
		{"ErrIndexUnavailable", ErrIndexUnavailable},
		{"ErrIndexRequest", ErrIndexRequest},
		{"ErrInvalidIndexDefinition", ErrInvalidIndexDefinition},
		{"ErrPrimaryStoreRead", ErrPrimaryStoreRead},
		{"ErrProjection", ErrProjection},
		{"ErrQueueFull", ErrQueueFull},
		{"ErrRecorderClosed", ErrRecorderClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrors_Distinct(t *testing.T) {
	assert.False(t, errors.Is(ErrIndexUnavailable, ErrIndexRequest))
	assert.False(t, errors.Is(ErrProjection, ErrPrimaryStoreRead))
	assert.False(t, errors.Is(ErrNotFound, ErrInvalidInput))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrIndexUnavailable))
	assert.True(t, IsRetryable(fmt.Errorf("bulk posts: %w", ErrIndexUnavailable)))
	assert.False(t, IsRetryable(ErrIndexRequest))
	assert.False(t, IsRetryable(fmt.Errorf("search: %w", ErrIndexRequest)))
	assert.False(t, IsRetryable(nil))
}
