package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/transfer"
	"github.com/socialflowhq/socialflow/pkg/utils"
)

const (
	tiktokTokenURL    = "https://open.tiktokapis.com/v2/oauth/token/"
	instagramTokenURL = "https://api.instagram.com/oauth/access_token"
)

// ConnectService handles the OAuth callback for every supported platform
// and keeps stored tokens fresh.
type ConnectService interface {
	Callback(ctx context.Context, platform, code string, userID int64) error
	RefreshToken(ctx context.Context, acc *models.SocialAccount) error
}

type connectService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewConnectService(cfg config.Config, sa repository.SocialAccountRepository) ConnectService {
	return &connectService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *connectService) Callback(ctx context.Context, platform, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}

	var (
		account *models.SocialAccount
		err     error
	)

	switch platform {
	case "facebook":
		account, err = s.facebookCallback(ctx, code)
	case "instagram":
		account, err = s.instagramCallback(ctx, code)
	case "twitter":
		account, err = s.twitterCallback(ctx, code)
	case "linkedin":
		account, err = s.linkedinCallback(ctx, code)
	case "tiktok":
		account, err = s.tiktokCallback(ctx, code)
	default:
		err = fmt.Errorf("unsupported platform: %s", platform)
		slog.Info(err.Error())
		return err
	}
	if err != nil {
		return err
	}

	account.UserID = userID
	account.Platform = platform
	account.AccountStatus = models.AccountStatusActive

	_, err = s.sa.Create(ctx, nil, account)
	if err != nil {
		return err
	}

	return nil
}

func (s *connectService) facebookCallback(ctx context.Context, code string) (*models.SocialAccount, error) {
	token, err := FacebookOAuthConfig(s.cfg).Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("facebook code exchange failed: %w", err)
	}

	var userInfo transfer.FacebookUserInfo
	infoURL := "https://graph.facebook.com/v21.0/me?fields=id,name,picture&access_token=" + url.QueryEscape(token.AccessToken)
	if err := getJSON(ctx, infoURL, "", &userInfo); err != nil {
		return nil, err
	}

	return s.buildAccount(token.AccessToken, token.RefreshToken, token.Expiry,
		userInfo.ID, userInfo.Name, "", userInfo.Picture.Data.URL)
}

func (s *connectService) instagramCallback(ctx context.Context, code string) (*models.SocialAccount, error) {
	data := url.Values{}
	data.Add("client_id", s.cfg.InstagramClientID)
	data.Add("client_secret", s.cfg.InstagramClientSecret)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.InstagramRedirectURI)
	data.Add("code", code)

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		UserID      int64  `json:"user_id"`
	}
	if err := postForm(ctx, instagramTokenURL, data, &tokenResponse); err != nil {
		return nil, err
	}

	var userInfo transfer.MetaUserInfo
	infoURL := "https://graph.instagram.com/v21.0/me?fields=id,username,name,profile_picture_url&access_token=" + url.QueryEscape(tokenResponse.AccessToken)
	if err := getJSON(ctx, infoURL, "", &userInfo); err != nil {
		return nil, err
	}

	// Instagram tokens obtained this way are short lived, about an hour.
	// The refresh job trades them for long lived ones before they expire.
	return s.buildAccount(tokenResponse.AccessToken, "", time.Now().Add(time.Hour),
		userInfo.UserID, userInfo.Name, userInfo.Username, userInfo.ProfilePicture)
}

func (s *connectService) twitterCallback(ctx context.Context, code string) (*models.SocialAccount, error) {
	token, err := TwitterOAuthConfig(s.cfg).Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", "challenge"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("twitter code exchange failed: %w", err)
	}

	var userInfo transfer.TwitterUserInfo
	infoURL := "https://api.twitter.com/2/users/me?user.fields=profile_image_url"
	if err := getJSON(ctx, infoURL, token.AccessToken, &userInfo); err != nil {
		return nil, err
	}

	return s.buildAccount(token.AccessToken, token.RefreshToken, token.Expiry,
		userInfo.Data.ID, userInfo.Data.Name, userInfo.Data.Username, userInfo.Data.ProfileImageURL)
}

func (s *connectService) linkedinCallback(ctx context.Context, code string) (*models.SocialAccount, error) {
	token, err := LinkedInOAuthConfig(s.cfg).Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("linkedin code exchange failed: %w", err)
	}

	var userInfo transfer.LinkedInUserInfo
	if err := getJSON(ctx, "https://api.linkedin.com/v2/userinfo", token.AccessToken, &userInfo); err != nil {
		return nil, err
	}

	return s.buildAccount(token.AccessToken, token.RefreshToken, token.Expiry,
		userInfo.Sub, userInfo.Name, "", userInfo.Picture)
}

func (s *connectService) tiktokCallback(ctx context.Context, code string) (*models.SocialAccount, error) {
	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.TiktokRedirectURI)

	var tokenResponse transfer.TiktokTokenResponse
	if err := postForm(ctx, tiktokTokenURL, data, &tokenResponse); err != nil {
		return nil, err
	}

	var userInfo transfer.TikTokResponse
	infoURL := "https://open.tiktokapis.com/v2/user/info/?fields=open_id,avatar_url,display_name,username"
	if err := getJSON(ctx, infoURL, tokenResponse.AccessToken, &userInfo); err != nil {
		return nil, err
	}

	return s.buildAccount(tokenResponse.AccessToken, tokenResponse.RefreshToken,
		GetExpiresAt(tokenResponse.ExpiresIn),
		userInfo.Data.User.OpenID, userInfo.Data.User.DisplayName,
		userInfo.Data.User.Username, userInfo.Data.User.AvatarURL)
}

// buildAccount encrypts the token pair and fills the common account fields.
func (s *connectService) buildAccount(accessToken, refreshToken string, expiresAt time.Time, accountID, name, username, picture string) (*models.SocialAccount, error) {
	encryptedAccessToken, err := utils.Encrypt([]byte(accessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	var encryptedRefreshToken string
	if refreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(refreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return nil, err
		}
	}

	return &models.SocialAccount{
		AccountID:       accountID,
		AccountName:     name,
		AccountUsername: username,
		ProfilePicture:  picture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  expiresAt,
	}, nil
}

func (s *connectService) RefreshToken(ctx context.Context, acc *models.SocialAccount) error {
	switch acc.Platform {
	case "tiktok":
		return s.refreshTiktokToken(ctx, acc)
	case "twitter":
		return s.refreshOAuthToken(ctx, acc, TwitterOAuthConfig(s.cfg))
	case "linkedin":
		return s.refreshOAuthToken(ctx, acc, LinkedInOAuthConfig(s.cfg))
	case "instagram":
		return s.refreshInstagramToken(ctx, acc)
	case "facebook":
		return s.refreshFacebookToken(ctx, acc)
	default:
		return fmt.Errorf("unsupported platform: %s", acc.Platform)
	}
}

// refreshOAuthToken covers the platforms that follow the standard refresh
// token grant.
func (s *connectService) refreshOAuthToken(ctx context.Context, acc *models.SocialAccount, conf *oauth2.Config) error {
	if acc.RefreshToken == "" {
		return errors.New("account has no refresh token")
	}

	decryptedRefreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	src := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: decryptedRefreshToken})
	token, err := src.Token()
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		refreshToken = decryptedRefreshToken
	}

	return s.saveToken(ctx, acc.ID, token.AccessToken, refreshToken, token.Expiry)
}

func (s *connectService) refreshTiktokToken(ctx context.Context, acc *models.SocialAccount) error {
	decryptedRefreshToken, err := utils.Decrypt(acc.RefreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", decryptedRefreshToken)

	var tokenResponse transfer.TiktokTokenResponse
	if err := postForm(ctx, tiktokTokenURL, data, &tokenResponse); err != nil {
		return err
	}
	if tokenResponse.AccessToken == "" {
		return errors.New("tiktok refresh returned no access token")
	}

	return s.saveToken(ctx, acc.ID, tokenResponse.AccessToken, tokenResponse.RefreshToken,
		GetExpiresAt(tokenResponse.ExpiresIn))
}

func (s *connectService) refreshInstagramToken(ctx context.Context, acc *models.SocialAccount) error {
	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	refreshURL := "https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=" + url.QueryEscape(decryptedAccessToken)
	if err := getJSON(ctx, refreshURL, "", &tokenResponse); err != nil {
		return err
	}
	if tokenResponse.AccessToken == "" {
		return errors.New("instagram refresh returned no access token")
	}

	return s.saveToken(ctx, acc.ID, tokenResponse.AccessToken, "", GetExpiresAt(tokenResponse.ExpiresIn))
}

func (s *connectService) refreshFacebookToken(ctx context.Context, acc *models.SocialAccount) error {
	decryptedAccessToken, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Add("grant_type", "fb_exchange_token")
	params.Add("client_id", s.cfg.FacebookAppID)
	params.Add("client_secret", s.cfg.FacebookAppSecret)
	params.Add("fb_exchange_token", decryptedAccessToken)

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	exchangeURL := "https://graph.facebook.com/v21.0/oauth/access_token?" + params.Encode()
	if err := getJSON(ctx, exchangeURL, "", &tokenResponse); err != nil {
		return err
	}
	if tokenResponse.AccessToken == "" {
		return errors.New("facebook refresh returned no access token")
	}

	return s.saveToken(ctx, acc.ID, tokenResponse.AccessToken, "", GetExpiresAt(tokenResponse.ExpiresIn))
}

func (s *connectService) saveToken(ctx context.Context, accountID int64, accessToken, refreshToken string, expiresAt time.Time) error {
	encryptedAccessToken, err := utils.Encrypt([]byte(accessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var encryptedRefreshToken string
	if refreshToken != "" {
		encryptedRefreshToken, err = utils.Encrypt([]byte(refreshToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
	}

	account := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: expiresAt,
	}

	return s.sa.SetToken(ctx, accountID, &account)
}

func postForm(ctx context.Context, apiURL string, data url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info(fmt.Sprintf("token endpoint returned status %d", resp.StatusCode))
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to decode token response: %w", err)
	}

	return nil
}

func getJSON(ctx context.Context, apiURL, bearerToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info(fmt.Sprintf("request to %s returned status %d", apiURL, resp.StatusCode))
		return fmt.Errorf("request returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}
