package platform

import (
	"context"
	"fmt"
)

const (
	facebookGraphURL     = "https://graph.facebook.com/v21.0"
	facebookCaptionLimit = 63206
	facebookMediaLimit   = 10
)

type facebookPublisher struct{}

func NewFacebookPublisher() Publisher {
	return &facebookPublisher{}
}

func (p *facebookPublisher) Platform() string {
	return Facebook
}

func (p *facebookPublisher) Validate(req *PublishRequest) error {
	if req.Caption == "" && len(req.Media) == 0 {
		return validationError(Facebook, "post needs a caption or at least one media item")
	}
	if len(req.Caption) > facebookCaptionLimit {
		return validationError(Facebook, "caption exceeds %d characters", facebookCaptionLimit)
	}
	if len(req.Media) > facebookMediaLimit {
		return validationError(Facebook, "too many media items: %d (max %d)", len(req.Media), facebookMediaLimit)
	}
	if req.AccessToken == "" {
		return authError(Facebook, "missing access token")
	}
	return nil
}

func (p *facebookPublisher) Publish(ctx context.Context, req *PublishRequest) (string, error) {
	if err := p.Validate(req); err != nil {
		return "", err
	}

	if len(req.Media) > 1 {
		return p.publishAlbum(ctx, req)
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}

	if len(req.Media) == 1 {
		url := fmt.Sprintf("%s/%s/photos", facebookGraphURL, req.AccountID)
		payload := map[string]interface{}{
			"url":          req.Media[0].URL,
			"caption":      req.Caption,
			"access_token": req.AccessToken,
		}
		if err := postJSON(ctx, Facebook, url, nil, payload, &result); err != nil {
			return "", err
		}
	} else {
		url := fmt.Sprintf("%s/%s/feed", facebookGraphURL, req.AccountID)
		payload := map[string]interface{}{
			"message":      req.Caption,
			"access_token": req.AccessToken,
		}
		if err := postJSON(ctx, Facebook, url, nil, payload, &result); err != nil {
			return "", err
		}
	}

	externalID := result.PostID
	if externalID == "" {
		externalID = result.ID
	}
	if externalID == "" {
		return "", transientError(Facebook, "no post id returned", nil)
	}
	return externalID, nil
}

// publishAlbum uploads every photo unpublished, then creates a single feed
// post attaching them all. Publishing the photos directly would produce one
// separate story per photo instead of one multi-photo post.
func (p *facebookPublisher) publishAlbum(ctx context.Context, req *PublishRequest) (string, error) {
	attached := make([]map[string]string, 0, len(req.Media))
	for _, m := range req.Media {
		var photo struct {
			ID string `json:"id"`
		}
		url := fmt.Sprintf("%s/%s/photos", facebookGraphURL, req.AccountID)
		payload := map[string]interface{}{
			"url":          m.URL,
			"published":    false,
			"access_token": req.AccessToken,
		}
		if err := postJSON(ctx, Facebook, url, nil, payload, &photo); err != nil {
			return "", err
		}
		if photo.ID == "" {
			return "", transientError(Facebook, "no photo id returned", nil)
		}
		attached = append(attached, map[string]string{"media_fbid": photo.ID})
	}

	var result struct {
		ID string `json:"id"`
	}
	url := fmt.Sprintf("%s/%s/feed", facebookGraphURL, req.AccountID)
	payload := map[string]interface{}{
		"message":        req.Caption,
		"attached_media": attached,
		"access_token":   req.AccessToken,
	}
	if err := postJSON(ctx, Facebook, url, nil, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", transientError(Facebook, "no post id returned", nil)
	}
	return result.ID, nil
}
