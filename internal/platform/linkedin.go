package platform

import (
	"context"
	"fmt"
)

const (
	linkedinPostURL      = "https://api.linkedin.com/v2/ugcPosts"
	linkedinCaptionLimit = 3000
)

type linkedinPublisher struct{}

func NewLinkedInPublisher() Publisher {
	return &linkedinPublisher{}
}

func (p *linkedinPublisher) Platform() string {
	return LinkedIn
}

func (p *linkedinPublisher) Validate(req *PublishRequest) error {
	if req.Caption == "" {
		return validationError(LinkedIn, "post text cannot be empty")
	}
	if len(req.Caption) > linkedinCaptionLimit {
		return validationError(LinkedIn, "post text exceeds %d characters", linkedinCaptionLimit)
	}
	if req.AccessToken == "" {
		return authError(LinkedIn, "missing access token")
	}
	return nil
}

func (p *linkedinPublisher) Publish(ctx context.Context, req *PublishRequest) (string, error) {
	if err := p.Validate(req); err != nil {
		return "", err
	}

	shareContent := map[string]interface{}{
		"shareCommentary": map[string]string{
			"text": req.Caption,
		},
		"shareMediaCategory": "NONE",
	}
	if len(req.Media) > 0 {
		media := make([]map[string]interface{}, 0, len(req.Media))
		for _, m := range req.Media {
			media = append(media, map[string]interface{}{
				"status":      "READY",
				"originalUrl": m.URL,
			})
		}
		shareContent["shareMediaCategory"] = "IMAGE"
		shareContent["media"] = media
	}

	payload := map[string]interface{}{
		"author":         fmt.Sprintf("urn:li:person:%s", req.AccountID),
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]interface{}{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	headers := map[string]string{
		"Authorization":             "Bearer " + req.AccessToken,
		"X-Restli-Protocol-Version": "2.0.0",
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := postJSON(ctx, LinkedIn, linkedinPostURL, headers, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", transientError(LinkedIn, "no post id returned", nil)
	}
	return result.ID, nil
}
