package platform

import (
	"context"
	"strings"
)

const (
	tiktokPublishURL   = "https://open.tiktokapis.com/v2/post/publish/video/init/"
	tiktokTitleLimit   = 2200
	tiktokMaxVideoSize = 4 * 1024 * 1024 * 1024
)

type tiktokPublisher struct{}

func NewTiktokPublisher() Publisher {
	return &tiktokPublisher{}
}

func (p *tiktokPublisher) Platform() string {
	return Tiktok
}

func (p *tiktokPublisher) Validate(req *PublishRequest) error {
	if len(req.Media) != 1 {
		return validationError(Tiktok, "post needs exactly one video, got %d media items", len(req.Media))
	}
	if !strings.HasPrefix(req.Media[0].MIMEType, "video/") {
		return validationError(Tiktok, "unsupported media type %s, video required", req.Media[0].MIMEType)
	}
	if req.Media[0].Size > tiktokMaxVideoSize {
		return validationError(Tiktok, "video exceeds maximum size")
	}
	if len(req.Title) > tiktokTitleLimit {
		return validationError(Tiktok, "title exceeds %d characters", tiktokTitleLimit)
	}
	if req.AccessToken == "" {
		return authError(Tiktok, "missing access token")
	}
	return nil
}

func (p *tiktokPublisher) Publish(ctx context.Context, req *PublishRequest) (string, error) {
	if err := p.Validate(req); err != nil {
		return "", err
	}

	title := req.Title
	if title == "" {
		title = req.Caption
	}

	payload := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":           title,
			"privacy_level":   "PUBLIC_TO_EVERYONE",
			"disable_comment": false,
		},
		"source_info": map[string]interface{}{
			"source":    "PULL_FROM_URL",
			"video_url": req.Media[0].URL,
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + req.AccessToken,
	}

	var result struct {
		Data struct {
			PublishID string `json:"publish_id"`
		} `json:"data"`
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := postJSON(ctx, Tiktok, tiktokPublishURL, headers, payload, &result); err != nil {
		return "", err
	}
	if result.Error.Code != "" && result.Error.Code != "ok" {
		if result.Error.Code == "access_token_invalid" {
			return "", authError(Tiktok, result.Error.Message)
		}
		return "", validationError(Tiktok, "publish rejected: %s", result.Error.Message)
	}
	if result.Data.PublishID == "" {
		return "", transientError(Tiktok, "no publish id returned", nil)
	}
	return result.Data.PublishID, nil
}
