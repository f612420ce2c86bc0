package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func protectedRouter(mw gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw)
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"user_id": GetUserID(c), "email": GetEmail(c)})
	})
	return router
}

func get(router http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired_NoHeader(t *testing.T) {
	w := get(protectedRouter(AuthRequired()), "/protected", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := protectedRouter(AuthRequired())

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
		"Bearer    ",
		"Bearer invalid.jwt.token",
	}

	for _, authHeader := range testCases {
		w := get(router, "/protected", authHeader)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_ValidToken(t *testing.T) {
	token, err := utils.GenerateToken("user-1", "ana@example.com", 24)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	w := get(protectedRouter(AuthRequired()), "/protected", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	expected := `{"email":"ana@example.com","user_id":"user-1"}`
	if w.Body.String() != expected {
		t.Errorf("body = %s, expected %s", w.Body.String(), expected)
	}
}

func TestOptionalAuth(t *testing.T) {
	router := protectedRouter(OptionalAuth())
	token, _ := utils.GenerateToken("user-2", "ben@example.com", 24)

	tests := []struct {
		name       string
		header     string
		expectCode int
		expectUser string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"valid token", "Bearer " + token, http.StatusOK, "user-2"},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, "/protected", tt.header)
			if w.Code != tt.expectCode {
				t.Fatalf("status = %d, expected %d", w.Code, tt.expectCode)
			}
			if tt.expectCode == http.StatusOK {
				expected := `"user_id":"` + tt.expectUser + `"`
				if !strings.Contains(w.Body.String(), expected) {
					t.Errorf("body = %s, expected it to contain %s", w.Body.String(), expected)
				}
			}
		})
	}
}

func TestGetUserID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if id := GetUserID(c); id != "" {
		t.Errorf("expected empty id for anonymous context, got %q", id)
	}

	c.Set(ContextUserID, "user-42")
	if id := GetUserID(c); id != "user-42" {
		t.Errorf("expected %q, got %q", "user-42", id)
	}
}

func TestContextConstants(t *testing.T) {
	if ContextUserID != "user_id" {
		t.Errorf("ContextUserID = %q, expected %q", ContextUserID, "user_id")
	}
	if ContextEmail != "email" {
		t.Errorf("ContextEmail = %q, expected %q", ContextEmail, "email")
	}
}
