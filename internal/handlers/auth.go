package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/middleware"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

type AuthHandler struct {
	authService    *services.AuthService
	profileService *services.ProfileService
	appURL         string
}

func NewAuthHandler(authService *services.AuthService, profileService *services.ProfileService, appURL string) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		profileService: profileService,
		appURL:         strings.TrimSuffix(appURL, "/"),
	}
}

// wantsJSON reports whether the client asked for an API answer rather than
// a browser redirect.
func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// finishLogin hands the session to the web app in the URL fragment, which is
// never sent to servers or logged by proxies. API clients get JSON.
func (h *AuthHandler) finishLogin(c *gin.Context, result *services.LoginResult, err error) {
	if wantsJSON(c) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, result)
		return
	}
	if err != nil {
		c.Redirect(http.StatusSeeOther, h.appURL+"/login?error="+url.QueryEscape(err.Error()))
		return
	}
	c.Redirect(http.StatusSeeOther, h.appURL+"/auth/complete#token="+url.QueryEscape(result.Token))
}

// GetCurrentUser returns the signed-in profile
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	profile, err := h.profileService.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, profile)
}

// GetAuthConfig lists the enabled sign-in methods
// GET /api/auth/config
func (h *AuthHandler) GetAuthConfig(c *gin.Context) {
	response.Success(c, gin.H{
		"email_link":   true,
		"google_oauth": h.authService.OAuthEnabled(),
	})
}

// RequestEmailLink always answers the same way so addresses cannot be probed
// POST /api/auth/email-link
func (h *AuthHandler) RequestEmailLink(c *gin.Context) {
	var req services.EmailLinkRequest
	if !bind(c, &req) {
		return
	}

	if err := h.authService.RequestEmailLink(c.Request.Context(), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"sent": true})
}

// Callback is the target of the emailed link
// GET /api/auth/callback?code=
func (h *AuthHandler) Callback(c *gin.Context) {
	result, err := h.authService.ExchangeCode(c.Request.Context(), &services.ExchangeRequest{Code: c.Query("code")})
	h.finishLogin(c, result, err)
}

// POST /api/auth/exchange
func (h *AuthHandler) Exchange(c *gin.Context) {
	var req services.ExchangeRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.authService.ExchangeCode(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GoogleLogin starts the OAuth consent flow
// GET /api/auth/oauth/google
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if !h.authService.OAuthEnabled() {
		response.NotFound(c, "google sign-in is not configured")
		return
	}

	authURL, err := h.authService.GoogleAuthURL(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if wantsJSON(c) {
		response.Success(c, gin.H{"url": authURL})
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// GET /api/auth/oauth/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	result, err := h.authService.GoogleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	h.finishLogin(c, result, err)
}
