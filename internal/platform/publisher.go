package platform

import (
	"context"
)

// Platform discriminants. The set is closed; adding a platform means adding
// an adapter and registering it in the registry.
const (
	Facebook  = "facebook"
	Instagram = "instagram"
	Twitter   = "twitter"
	LinkedIn  = "linkedin"
	Tiktok    = "tiktok"
)

// Media is one media reference attached to a publish request.
type Media struct {
	URL      string
	MIMEType string
	Size     int64
}

// PublishRequest carries everything an adapter needs for a single attempt:
// the content, the resolved media and the decrypted credentials of the
// target account.
type PublishRequest struct {
	AccountID   string
	AccessToken string
	Caption     string
	Title       string
	Media       []Media
}

// Publisher is the per-platform adapter contract. Validate checks content
// and media against platform constraints without touching the network;
// Publish performs exactly one platform call and returns the external post
// id. Failures from either are *PublishError values.
type Publisher interface {
	Platform() string
	Validate(req *PublishRequest) error
	Publish(ctx context.Context, req *PublishRequest) (string, error)
}
