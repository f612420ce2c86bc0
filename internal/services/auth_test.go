package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/yiback/gatherly/internal/models"
	"github.com/yiback/gatherly/internal/utils"
	"golang.org/x/oauth2"
)

type capturingMailer struct {
	to   string
	link string
}

func (m *capturingMailer) SendLoginLink(_ context.Context, to, link string) error {
	m.to, m.link = to, link
	return nil
}

func newAuthService(t *testing.T) (*fixture, *capturingMailer, *AuthService) {
	t.Helper()
	f := newFixture(t)
	mailer := &capturingMailer{}
	profiles := NewProfileService(f.db, f.cache, f.store, f.cfg)
	return f, mailer, NewAuthService(f.db, f.cfg, mailer, profiles)
}

func codeFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return u.Query().Get("code")
}

func TestAuthService_EmailLinkExchange(t *testing.T) {
	f, mailer, svc := newAuthService(t)
	ctx := context.Background()

	if err := svc.RequestEmailLink(ctx, &EmailLinkRequest{Email: " Newcomer@Example.com "}); err != nil {
		t.Fatalf("RequestEmailLink: %v", err)
	}
	if mailer.to != "newcomer@example.com" {
		t.Errorf("mail sent to %q", mailer.to)
	}
	if !strings.HasPrefix(mailer.link, f.cfg.App.URL+"/api/auth/callback?code=") {
		t.Errorf("link = %q", mailer.link)
	}

	var stored models.LoginCode
	f.db.First(&stored)
	code := codeFromLink(t, mailer.link)
	if strings.Contains(stored.CodeHash, strings.SplitN(code, ".", 2)[1]) {
		t.Error("the secret should only be stored hashed")
	}

	result, err := svc.ExchangeCode(ctx, &ExchangeRequest{Code: code})
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if result.Profile.Email != "newcomer@example.com" {
		t.Errorf("Profile = %+v", result.Profile)
	}
	claims, err := utils.ParseToken(result.Token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != result.Profile.ID {
		t.Errorf("token subject = %q, expected %q", claims.UserID, result.Profile.ID)
	}

	if _, err := svc.ExchangeCode(ctx, &ExchangeRequest{Code: code}); !errors.Is(err, ErrInvalidLoginCode) {
		t.Errorf("reused code: expected ErrInvalidLoginCode, got %v", err)
	}
}

func TestAuthService_ExchangeRejectsBadCodes(t *testing.T) {
	_, mailer, svc := newAuthService(t)
	ctx := context.Background()

	for _, code := range []string{"garbage", ".secret", "id.", "unknown-id.secret"} {
		if _, err := svc.ExchangeCode(ctx, &ExchangeRequest{Code: code}); !errors.Is(err, ErrInvalidLoginCode) {
			t.Errorf("code %q: expected ErrInvalidLoginCode, got %v", code, err)
		}
	}

	if err := svc.RequestEmailLink(ctx, &EmailLinkRequest{Email: "member@example.com"}); err != nil {
		t.Fatal(err)
	}
	code := codeFromLink(t, mailer.link)
	id := strings.SplitN(code, ".", 2)[0]
	if _, err := svc.ExchangeCode(ctx, &ExchangeRequest{Code: id + ".wrong-secret"}); !errors.Is(err, ErrInvalidLoginCode) {
		t.Errorf("wrong secret: expected ErrInvalidLoginCode, got %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(loginCodeTTL + time.Minute) }
	if _, err := svc.ExchangeCode(ctx, &ExchangeRequest{Code: code}); !errors.Is(err, ErrInvalidLoginCode) {
		t.Errorf("expired code: expected ErrInvalidLoginCode, got %v", err)
	}
}

func TestAuthService_ExistingProfileSignsIn(t *testing.T) {
	f, mailer, svc := newAuthService(t)
	ctx := context.Background()

	if err := svc.RequestEmailLink(ctx, &EmailLinkRequest{Email: "member@example.com"}); err != nil {
		t.Fatal(err)
	}
	result, err := svc.ExchangeCode(ctx, &ExchangeRequest{Code: codeFromLink(t, mailer.link)})
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if result.Profile.ID != f.member.ID {
		t.Errorf("signed in as %s, expected existing profile %s", result.Profile.ID, f.member.ID)
	}

	if err := svc.RequestEmailLink(ctx, &EmailLinkRequest{Email: "not-an-email"}); err == nil {
		t.Error("an invalid email should be rejected")
	}
}

func TestAuthService_GoogleCallback(t *testing.T) {
	f, _, svc := newAuthService(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/token":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"access_token": "access",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
		case "/userinfo":
			if r.Header.Get("Authorization") != "Bearer access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"email":          "Googler@Example.com",
				"email_verified": true,
				"name":           "Goo Gler",
				"picture":        "https://img.test/me.png",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	svc.oauth = &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "https://app.test/api/auth/oauth/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}
	svc.userInfoURL = srv.URL + "/userinfo"

	authURL, err := svc.GoogleAuthURL(ctx)
	if err != nil {
		t.Fatalf("GoogleAuthURL: %v", err)
	}
	u, _ := url.Parse(authURL)
	state := u.Query().Get("state")
	if state == "" {
		t.Fatal("auth URL should carry a state")
	}

	if _, err := svc.GoogleCallback(ctx, "forged", "code"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("forged state: expected ErrInvalidState, got %v", err)
	}

	result, err := svc.GoogleCallback(ctx, state, "code")
	if err != nil {
		t.Fatalf("GoogleCallback: %v", err)
	}
	if result.Profile.Email != "googler@example.com" || result.Profile.DisplayName != "Goo Gler" {
		t.Errorf("Profile = %+v", result.Profile)
	}

	var states int64
	f.db.Model(&models.OAuthState{}).Count(&states)
	if states != 0 {
		t.Error("the state should be consumed")
	}
	if _, err := svc.GoogleCallback(ctx, state, "code"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("replayed state: expected ErrInvalidState, got %v", err)
	}
}

func TestAuthService_GoogleDisabled(t *testing.T) {
	_, _, svc := newAuthService(t)
	if svc.OAuthEnabled() {
		t.Fatal("OAuth should be disabled without a client id")
	}
	if _, err := svc.GoogleAuthURL(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}
