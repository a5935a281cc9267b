package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(
		NewFacebookPublisher(),
		NewTwitterPublisher(),
	)

	pub, err := r.Get(Facebook)
	require.NoError(t, err)
	assert.Equal(t, Facebook, pub.Platform())

	_, err = r.Get("myspace")
	require.Error(t, err)

	var pe *PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindUnknownPlatform, pe.Kind)
	assert.False(t, Retryable(err))
}

func TestRegistryPlatforms(t *testing.T) {
	r := NewRegistry(
		NewFacebookPublisher(),
		NewInstagramPublisher(),
		NewTwitterPublisher(),
		NewLinkedInPublisher(),
		NewTiktokPublisher(),
	)
	assert.ElementsMatch(t, []string{Facebook, Instagram, Twitter, LinkedIn, Tiktok}, r.Platforms())
}
