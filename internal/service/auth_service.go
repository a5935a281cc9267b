package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	config "github.com/socialflowhq/socialflow/configs"
	"github.com/socialflowhq/socialflow/internal/models"
	"github.com/socialflowhq/socialflow/internal/repository"
	"github.com/socialflowhq/socialflow/internal/transfer"
)

// AuthService signs users in through Facebook Login. The same app
// credentials also back the facebook publishing connection.
type AuthService interface {
	LoginCallback(ctx context.Context, code string) (int64, error)
}

type authService struct {
	cfg config.Config
	u   repository.UserRepository
}

func NewAuthService(cfg config.Config, u repository.UserRepository) AuthService {
	return &authService{
		cfg: cfg,
		u:   u,
	}
}

func (s *authService) LoginCallback(ctx context.Context, code string) (int64, error) {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return 0, err
	}

	oauth2Config := FacebookOAuthConfig(s.cfg)

	if oauth2Config.ClientID == "" || oauth2Config.ClientSecret == "" || oauth2Config.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return 0, err
	}

	token, err := oauth2Config.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	var userInfo transfer.FacebookUserInfo
	infoURL := "https://graph.facebook.com/v21.0/me?fields=id,name,email,picture&access_token=" + url.QueryEscape(token.AccessToken)
	if err := getJSON(ctx, infoURL, "", &userInfo); err != nil {
		return 0, err
	}

	user, err := s.u.GetByExternalID(ctx, userInfo.ID)
	if err != nil {
		return 0, err
	}

	if user != nil {
		return user.ID, nil
	}

	userID, err := s.u.Create(ctx, &models.User{
		ExternalID:     userInfo.ID,
		Name:           userInfo.Name,
		ProfilePicture: userInfo.Picture.Data.URL,
	})
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return userID, nil
}
