package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "transient error is retryable",
			err:  transientError(Twitter, "rate limited", nil),
			want: true,
		},
		{
			name: "validation error is not retryable",
			err:  validationError(Twitter, "too long"),
			want: false,
		},
		{
			name: "auth error is not retryable",
			err:  authError(Twitter, "token revoked"),
			want: false,
		},
		{
			name: "unclassified error defaults to retryable",
			err:  errors.New("connection reset"),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(authError(Facebook, "expired")))
	assert.False(t, IsAuthError(transientError(Facebook, "timeout", nil)))
	assert.False(t, IsAuthError(errors.New("plain error")))
}

func TestClassify(t *testing.T) {
	t.Run("keeps existing publish error", func(t *testing.T) {
		orig := validationError(Instagram, "caption too long")
		got := Classify(Instagram, orig)
		assert.Same(t, orig, got)
	})

	t.Run("deadline exceeded becomes transient", func(t *testing.T) {
		got := Classify(Tiktok, context.DeadlineExceeded)
		assert.Equal(t, KindTransient, got.Kind)
		assert.True(t, got.Retryable())
	})

	t.Run("wrapped publish error is unwrapped", func(t *testing.T) {
		wrapped := &PublishError{Kind: KindAuth, Platform: LinkedIn, Reason: "revoked"}
		got := Classify(LinkedIn, wrapped)
		assert.Equal(t, KindAuth, got.Kind)
	})

	t.Run("anything else becomes transient", func(t *testing.T) {
		got := Classify(Twitter, errors.New("dns failure"))
		assert.Equal(t, KindTransient, got.Kind)
		assert.Equal(t, Twitter, got.Platform)
	})
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindAuth},
		{403, KindAuth},
		{429, KindTransient},
		{500, KindTransient},
		{503, KindTransient},
		{400, KindValidation},
		{422, KindValidation},
	}

	for _, tt := range tests {
		got := classifyStatus(Facebook, tt.status, "body")
		require.NotNil(t, got)
		assert.Equalf(t, tt.want, got.Kind, "status %d", tt.status)
	}
}
