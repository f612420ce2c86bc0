package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/yiback/gatherly/internal/config"
	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/utils"
	"github.com/yiback/gatherly/internal/validation"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

const (
	loginCodeTTL  = 15 * time.Minute
	oauthStateTTL = 10 * time.Minute
	googleUserURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

type AuthService struct {
	db          *gorm.DB
	jwtConfig   *config.JWTConfig
	appURL      string
	mailer      Mailer
	profiles    *ProfileService
	oauth       *oauth2.Config
	userInfoURL string
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, cfg *config.Config, mailer Mailer, profiles *ProfileService) *AuthService {
	s := &AuthService{
		db:          db,
		jwtConfig:   &cfg.JWT,
		appURL:      strings.TrimSuffix(cfg.App.URL, "/"),
		mailer:      mailer,
		profiles:    profiles,
		userInfoURL: googleUserURL,
		now:         time.Now,
	}
	if cfg.OAuth.GoogleClientID != "" {
		s.oauth = &oauth2.Config{
			ClientID:     cfg.OAuth.GoogleClientID,
			ClientSecret: cfg.OAuth.GoogleClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return s
}

type EmailLinkRequest struct {
	Email string `json:"email" form:"email" validate:"required,email,max=255"`
}

type ExchangeRequest struct {
	Code string `json:"code" form:"code" validate:"required"`
}

// LoginResult is a signed session for the profile.
type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Profile   *models.Profile `json:"profile"`
}

// RequestEmailLink issues a one-time code and mails the callback link.
// Only the bcrypt hash of the secret is stored.
func (s *AuthService) RequestEmailLink(ctx context.Context, req *EmailLinkRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return invalid(err)
	}

	code, err := s.issueLoginCode(ctx, req.Email)
	if err != nil {
		return err
	}
	link := s.appURL + "/api/auth/callback?code=" + url.QueryEscape(code)
	if err := s.mailer.SendLoginLink(ctx, req.Email, link); err != nil {
		return upstream("send sign-in email", err)
	}
	return nil
}

// issueLoginCode returns "<id>.<secret>" so the exchange can look up the row
// by id and compare the secret against its hash.
func (s *AuthService) issueLoginCode(ctx context.Context, email string) (string, error) {
	secret, err := utils.NewLoginSecret()
	if err != nil {
		return "", upstream("issue sign-in code", err)
	}
	hash, err := utils.HashCode(secret)
	if err != nil {
		return "", upstream("issue sign-in code", err)
	}
	login := &models.LoginCode{
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: s.now().UTC().Add(loginCodeTTL),
	}
	if err := s.db.WithContext(ctx).Create(login).Error; err != nil {
		return "", upstream("issue sign-in code", err)
	}
	return login.ID + "." + secret, nil
}

// ExchangeCode consumes a sign-in code and returns a session. The first
// successful exchange for an email creates its profile.
func (s *AuthService) ExchangeCode(ctx context.Context, req *ExchangeRequest) (*LoginResult, error) {
	if err := validation.Struct(req); err != nil {
		return nil, invalid(err)
	}
	id, secret, ok := strings.Cut(strings.TrimSpace(req.Code), ".")
	if !ok || id == "" || secret == "" {
		return nil, ErrInvalidLoginCode
	}

	now := s.now().UTC()
	var login models.LoginCode
	if err := s.db.WithContext(ctx).First(&login, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(ErrInvalidLoginCode, "verify sign-in code", err)
	}
	if login.UsedAt != nil || now.After(login.ExpiresAt) || !utils.CheckCode(secret, login.CodeHash) {
		return nil, ErrInvalidLoginCode
	}

	result := s.db.WithContext(ctx).Model(&models.LoginCode{}).
		Where("id = ? AND used_at IS NULL", login.ID).
		Update("used_at", now)
	if result.Error != nil {
		return nil, upstream("verify sign-in code", result.Error)
	}
	if result.RowsAffected != 1 {
		return nil, ErrInvalidLoginCode
	}

	profile, err := s.profiles.EnsureProfile(ctx, login.Email, "", "")
	if err != nil {
		return nil, err
	}
	return s.session(profile)
}

func (s *AuthService) session(profile *models.Profile) (*LoginResult, error) {
	token, err := utils.GenerateToken(profile.ID, profile.Email, s.jwtConfig.ExpireHour)
	if err != nil {
		return nil, upstream("sign session", err)
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: s.now().Add(time.Duration(s.jwtConfig.ExpireHour) * time.Hour),
		Profile:   profile,
	}, nil
}

// OAuthEnabled reports whether Google sign-in is configured.
func (s *AuthService) OAuthEnabled() bool {
	return s.oauth != nil
}

// GoogleAuthURL stores a fresh state and returns the consent page URL.
func (s *AuthService) GoogleAuthURL(ctx context.Context) (string, error) {
	if s.oauth == nil {
		return "", ErrInvalidState
	}
	state, err := gonanoid.New(32)
	if err != nil {
		return "", upstream("start sign-in", err)
	}
	record := &models.OAuthState{State: state, ExpiresAt: s.now().UTC().Add(oauthStateTTL)}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return "", upstream("start sign-in", err)
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

type googleUser struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleCallback consumes the state, exchanges the authorization code and
// signs in the Google account's verified email.
func (s *AuthService) GoogleCallback(ctx context.Context, state, code string) (*LoginResult, error) {
	if s.oauth == nil || state == "" || code == "" {
		return nil, ErrInvalidState
	}

	var record models.OAuthState
	if err := s.db.WithContext(ctx).First(&record, "state = ?", state).Error; err != nil {
		return nil, notFoundOr(ErrInvalidState, "verify sign-in state", err)
	}
	if err := s.db.WithContext(ctx).Delete(&record).Error; err != nil {
		return nil, upstream("verify sign-in state", err)
	}
	if s.now().UTC().After(record.ExpiresAt) {
		return nil, ErrInvalidState
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, upstream("exchange authorization code", err)
	}
	user, err := s.fetchGoogleUser(ctx, token)
	if err != nil {
		return nil, upstream("load google account", err)
	}
	if user.Email == "" || !user.EmailVerified {
		return nil, ErrInvalidState
	}

	profile, err := s.profiles.EnsureProfile(ctx, user.Email, user.Name, user.Picture)
	if err != nil {
		return nil, err
	}
	return s.session(profile)
}

func (s *AuthService) fetchGoogleUser(ctx context.Context, token *oauth2.Token) (*googleUser, error) {
	client := s.oauth.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var user googleUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CleanupExpired drops expired sign-in codes and OAuth states.
func (s *AuthService) CleanupExpired(ctx context.Context) error {
	now := s.now().UTC()
	return errors.Join(
		s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.LoginCode{}).Error,
		s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.OAuthState{}).Error,
	)
}
