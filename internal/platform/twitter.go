package platform

import (
	"context"
	"unicode/utf8"
)

const (
	twitterPostURL      = "https://api.twitter.com/2/tweets"
	twitterTextLimit    = 280
	twitterMediaLimit   = 4
)

type twitterPublisher struct{}

func NewTwitterPublisher() Publisher {
	return &twitterPublisher{}
}

func (p *twitterPublisher) Platform() string {
	return Twitter
}

func (p *twitterPublisher) Validate(req *PublishRequest) error {
	if req.Caption == "" {
		return validationError(Twitter, "post text cannot be empty")
	}
	if utf8.RuneCountInString(req.Caption) > twitterTextLimit {
		return validationError(Twitter, "post text exceeds %d characters", twitterTextLimit)
	}
	if len(req.Media) > twitterMediaLimit {
		return validationError(Twitter, "too many media items: %d (max %d)", len(req.Media), twitterMediaLimit)
	}
	if req.AccessToken == "" {
		return authError(Twitter, "missing access token")
	}
	return nil
}

func (p *twitterPublisher) Publish(ctx context.Context, req *PublishRequest) (string, error) {
	if err := p.Validate(req); err != nil {
		return "", err
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	payload := map[string]interface{}{
		"text": req.Caption,
	}
	headers := map[string]string{
		"Authorization": "Bearer " + req.AccessToken,
	}
	if err := postJSON(ctx, Twitter, twitterPostURL, headers, payload, &result); err != nil {
		return "", err
	}
	if result.Data.ID == "" {
		return "", transientError(Twitter, "no tweet id returned", nil)
	}
	return result.Data.ID, nil
}
