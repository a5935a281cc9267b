package platform

import (
	"context"
	"fmt"
	"strings"
)

const (
	instagramGraphURL      = "https://graph.instagram.com/v21.0"
	instagramCaptionLimit  = 2200
	instagramCarouselLimit = 10
)

type instagramPublisher struct{}

func NewInstagramPublisher() Publisher {
	return &instagramPublisher{}
}

func (p *instagramPublisher) Platform() string {
	return Instagram
}

func (p *instagramPublisher) Validate(req *PublishRequest) error {
	if len(req.Media) == 0 {
		return validationError(Instagram, "post needs at least one media item")
	}
	if len(req.Media) > instagramCarouselLimit {
		return validationError(Instagram, "too many media items: %d (max %d)", len(req.Media), instagramCarouselLimit)
	}
	if len(req.Caption) > instagramCaptionLimit {
		return validationError(Instagram, "caption exceeds %d characters", instagramCaptionLimit)
	}
	for _, m := range req.Media {
		if !strings.HasPrefix(m.MIMEType, "image/") && !strings.HasPrefix(m.MIMEType, "video/") {
			return validationError(Instagram, "unsupported media type %s", m.MIMEType)
		}
	}
	if req.AccessToken == "" {
		return authError(Instagram, "missing access token")
	}
	return nil
}

// Publish creates one media container per item (plus a carousel container
// when there is more than one) and then publishes the container. The
// container dance is the Graph API contract.
func (p *instagramPublisher) Publish(ctx context.Context, req *PublishRequest) (string, error) {
	if err := p.Validate(req); err != nil {
		return "", err
	}

	mediaURL := fmt.Sprintf("%s/%s/media", instagramGraphURL, req.AccountID)

	var creationID string
	if len(req.Media) == 1 {
		var result struct {
			ID string `json:"id"`
		}
		payload := map[string]interface{}{
			"image_url":    req.Media[0].URL,
			"caption":      req.Caption,
			"access_token": req.AccessToken,
		}
		if err := postJSON(ctx, Instagram, mediaURL, nil, payload, &result); err != nil {
			return "", err
		}
		if result.ID == "" {
			return "", transientError(Instagram, "no media container id returned", nil)
		}
		creationID = result.ID
	} else {
		childIDs := make([]string, 0, len(req.Media))
		for _, m := range req.Media {
			var result struct {
				ID string `json:"id"`
			}
			payload := map[string]interface{}{
				"image_url":        m.URL,
				"is_carousel_item": true,
				"access_token":     req.AccessToken,
			}
			if err := postJSON(ctx, Instagram, mediaURL, nil, payload, &result); err != nil {
				return "", err
			}
			if result.ID == "" {
				return "", transientError(Instagram, "no media container id returned", nil)
			}
			childIDs = append(childIDs, result.ID)
		}

		var result struct {
			ID string `json:"id"`
		}
		payload := map[string]interface{}{
			"media_type":   "CAROUSEL",
			"caption":      req.Caption,
			"children":     childIDs,
			"access_token": req.AccessToken,
		}
		if err := postJSON(ctx, Instagram, mediaURL, nil, payload, &result); err != nil {
			return "", err
		}
		if result.ID == "" {
			return "", transientError(Instagram, "no carousel container id returned", nil)
		}
		creationID = result.ID
	}

	publishURL := fmt.Sprintf("%s/%s/media_publish", instagramGraphURL, req.AccountID)
	var published struct {
		ID string `json:"id"`
	}
	payload := map[string]string{
		"creation_id":  creationID,
		"access_token": req.AccessToken,
	}
	if err := postJSON(ctx, Instagram, publishURL, nil, payload, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", transientError(Instagram, "no post id returned", nil)
	}
	return published.ID, nil
}
