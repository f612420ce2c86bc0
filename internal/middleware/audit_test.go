package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRouteAction(t *testing.T) {
	tests := []struct {
		path, method   string
		module, action string
	}{
		{"/api/groups", "POST", "groups", "create"},
		{"/api/groups/:id", "PUT", "groups", "update"},
		{"/api/groups/:id/events", "POST", "events", "create"},
		{"/api/events/:id/images/:imageId", "DELETE", "images", "delete"},
		{"/api/events/:id/participants/me", "PATCH", "me", "update"},
		{"", "POST", "unknown", "create"},
	}

	for _, tt := range tests {
		module, action := routeAction(tt.path, tt.method)
		if module != tt.module || action != tt.action {
			t.Errorf("routeAction(%q, %q) = (%q, %q), expected (%q, %q)",
				tt.path, tt.method, module, action, tt.module, tt.action)
		}
	}
}

func TestMaskBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"empty", "", ""},
		{"plain fields", `{"title":"Match"}`, `{"title":"Match"}`},
		{"login code", `{"code":"abc.def"}`, `{"code":"***"}`},
		{"nested keys", `{"endpoint":"https://push","keys":{"auth":"x","p256dh":"y"}}`,
			`{"endpoint":"https://push","keys":{"auth":"***","p256dh":"***"}}`},
		{"not json", "title=Match", "[unparsed]"},
		{"oversized", `{"content":"` + strings.Repeat("a", auditBodyLimit) + `"}`, "[truncated]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskBody([]byte(tt.body)); got != tt.expected {
				t.Errorf("maskBody() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestAuditLog_PreservesRequestBody(t *testing.T) {
	router := gin.New()
	router.Use(AuditLog())
	var received string
	router.POST("/api/groups", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		received = string(b)
		c.Status(http.StatusCreated)
	})

	body := `{"name":"Sunday Football","description":"` + strings.Repeat("x", auditBodyLimit) + `"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/groups", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, expected %d", w.Code, http.StatusCreated)
	}
	if received != body {
		t.Errorf("handler saw %d bytes, expected %d", len(received), len(body))
	}
}
