package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeatMedia(n int, mimeType string) []Media {
	media := make([]Media, n)
	for i := range media {
		media[i] = Media{URL: "https://cdn.example.com/file", MIMEType: mimeType}
	}
	return media
}

func TestFacebookValidate(t *testing.T) {
	pub := NewFacebookPublisher()

	tests := []struct {
		name     string
		req      *PublishRequest
		wantKind ErrorKind
	}{
		{
			name: "valid text post",
			req:  &PublishRequest{AccessToken: "tok", Caption: "hello"},
		},
		{
			name:     "empty post",
			req:      &PublishRequest{AccessToken: "tok"},
			wantKind: KindValidation,
		},
		{
			name:     "caption over limit",
			req:      &PublishRequest{AccessToken: "tok", Caption: strings.Repeat("a", 63207)},
			wantKind: KindValidation,
		},
		{
			name:     "too many media items",
			req:      &PublishRequest{AccessToken: "tok", Caption: "x", Media: repeatMedia(11, "image/jpeg")},
			wantKind: KindValidation,
		},
		{
			name:     "missing token",
			req:      &PublishRequest{Caption: "hello"},
			wantKind: KindAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pub.Validate(tt.req)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			var pe *PublishError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantKind, pe.Kind)
		})
	}
}

func TestInstagramValidate(t *testing.T) {
	pub := NewInstagramPublisher()

	tests := []struct {
		name     string
		req      *PublishRequest
		wantKind ErrorKind
	}{
		{
			name: "single image",
			req:  &PublishRequest{AccessToken: "tok", Caption: "hi", Media: repeatMedia(1, "image/jpeg")},
		},
		{
			name: "full carousel",
			req:  &PublishRequest{AccessToken: "tok", Media: repeatMedia(10, "image/png")},
		},
		{
			name:     "no media",
			req:      &PublishRequest{AccessToken: "tok", Caption: "hi"},
			wantKind: KindValidation,
		},
		{
			name:     "carousel over limit",
			req:      &PublishRequest{AccessToken: "tok", Media: repeatMedia(11, "image/jpeg")},
			wantKind: KindValidation,
		},
		{
			name:     "caption over limit",
			req:      &PublishRequest{AccessToken: "tok", Caption: strings.Repeat("a", 2201), Media: repeatMedia(1, "image/jpeg")},
			wantKind: KindValidation,
		},
		{
			name:     "unsupported media type",
			req:      &PublishRequest{AccessToken: "tok", Media: repeatMedia(1, "application/pdf")},
			wantKind: KindValidation,
		},
		{
			name:     "missing token",
			req:      &PublishRequest{Media: repeatMedia(1, "image/jpeg")},
			wantKind: KindAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pub.Validate(tt.req)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			var pe *PublishError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantKind, pe.Kind)
		})
	}
}

func TestTwitterValidate(t *testing.T) {
	pub := NewTwitterPublisher()

	tests := []struct {
		name     string
		req      *PublishRequest
		wantKind ErrorKind
	}{
		{
			name: "valid tweet",
			req:  &PublishRequest{AccessToken: "tok", Caption: "hello"},
		},
		{
			name: "280 runes exactly",
			req:  &PublishRequest{AccessToken: "tok", Caption: strings.Repeat("é", 280)},
		},
		{
			name:     "281 runes",
			req:      &PublishRequest{AccessToken: "tok", Caption: strings.Repeat("é", 281)},
			wantKind: KindValidation,
		},
		{
			name:     "empty text",
			req:      &PublishRequest{AccessToken: "tok"},
			wantKind: KindValidation,
		},
		{
			name:     "too many media items",
			req:      &PublishRequest{AccessToken: "tok", Caption: "x", Media: repeatMedia(5, "image/jpeg")},
			wantKind: KindValidation,
		},
		{
			name:     "missing token",
			req:      &PublishRequest{Caption: "hello"},
			wantKind: KindAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pub.Validate(tt.req)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			var pe *PublishError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantKind, pe.Kind)
		})
	}
}

func TestLinkedInValidate(t *testing.T) {
	pub := NewLinkedInPublisher()

	assert.NoError(t, pub.Validate(&PublishRequest{AccessToken: "tok", Caption: "hello"}))

	var pe *PublishError
	err := pub.Validate(&PublishRequest{AccessToken: "tok", Caption: strings.Repeat("a", 3001)})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindValidation, pe.Kind)

	err = pub.Validate(&PublishRequest{AccessToken: "tok"})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindValidation, pe.Kind)

	err = pub.Validate(&PublishRequest{Caption: "hello"})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindAuth, pe.Kind)
}

func TestTiktokValidate(t *testing.T) {
	pub := NewTiktokPublisher()

	video := []Media{{URL: "https://cdn.example.com/v.mp4", MIMEType: "video/mp4", Size: 1024}}

	tests := []struct {
		name     string
		req      *PublishRequest
		wantKind ErrorKind
	}{
		{
			name: "valid video",
			req:  &PublishRequest{AccessToken: "tok", Title: "clip", Media: video},
		},
		{
			name:     "no media",
			req:      &PublishRequest{AccessToken: "tok"},
			wantKind: KindValidation,
		},
		{
			name:     "two media items",
			req:      &PublishRequest{AccessToken: "tok", Media: repeatMedia(2, "video/mp4")},
			wantKind: KindValidation,
		},
		{
			name:     "image instead of video",
			req:      &PublishRequest{AccessToken: "tok", Media: repeatMedia(1, "image/jpeg")},
			wantKind: KindValidation,
		},
		{
			name:     "video too large",
			req:      &PublishRequest{AccessToken: "tok", Media: []Media{{MIMEType: "video/mp4", Size: 5 << 30}}},
			wantKind: KindValidation,
		},
		{
			name:     "title over limit",
			req:      &PublishRequest{AccessToken: "tok", Title: strings.Repeat("a", 2201), Media: video},
			wantKind: KindValidation,
		},
		{
			name:     "missing token",
			req:      &PublishRequest{Media: video},
			wantKind: KindAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pub.Validate(tt.req)
			if tt.wantKind == "" {
				assert.NoError(t, err)
				return
			}
			var pe *PublishError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.wantKind, pe.Kind)
		})
	}
}
