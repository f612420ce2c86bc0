package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/services"
)

const auditBodyLimit = 2000

var sensitiveKeys = map[string]bool{
	"code":         true,
	"token":        true,
	"auth":         true,
	"p256dh":       true,
	"secret":       true,
	"password":     true,
	"access_token": true,
	"invite_code":  true,
}

// AuditLog records every mutating request to system_logs after it ran.
func AuditLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
			c.Next()
			return
		}

		var body string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			raw, _ := io.ReadAll(io.LimitReader(c.Request.Body, auditBodyLimit+1))
			c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))
			body = maskBody(raw)
		}

		c.Next()

		status := c.Writer.Status()
		module, action := routeAction(c.FullPath(), method)
		extra := map[string]interface{}{
			"method": method,
			"path":   c.Request.URL.Path,
			"status": status,
			"audit":  true,
		}
		if body != "" {
			extra["body"] = body
		}

		log := services.LogInfo
		if status >= http.StatusInternalServerError {
			log = services.LogError
		} else if status >= http.StatusBadRequest {
			log = services.LogWarning
		}
		log(module, action, auditMessage(method, c.Request.URL.Path, status),
			GetUserID(c), c.ClientIP(), c.Request.UserAgent(), extra)
	}
}

// routeAction names the resource by the last static segment of the route.
// "/api/groups/:id/events" with POST gives ("events", "create").
func routeAction(fullPath, method string) (module, action string) {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(fullPath, "/api"), "/"), "/")
	module = "unknown"
	for i := len(segments) - 1; i >= 0; i-- {
		seg := segments[i]
		if seg != "" && seg[0] != ':' && seg[0] != '*' {
			module = seg
			break
		}
	}

	switch method {
	case http.MethodPost:
		action = "create"
	case http.MethodPut, http.MethodPatch:
		action = "update"
	case http.MethodDelete:
		action = "delete"
	default:
		action = strings.ToLower(method)
	}
	return module, action
}

func auditMessage(method, path string, status int) string {
	outcome := "ok"
	if status >= http.StatusBadRequest {
		outcome = "failed"
	}
	return method + " " + path + " " + outcome
}

// maskBody hides credential-like values. Oversized or non-object bodies are
// not recorded verbatim.
func maskBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if len(raw) > auditBodyLimit {
		return "[truncated]"
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "[unparsed]"
	}
	maskFields(fields)
	masked, err := json.Marshal(fields)
	if err != nil {
		return "[unparsed]"
	}
	return string(masked)
}

func maskFields(fields map[string]interface{}) {
	for key, value := range fields {
		if sensitiveKeys[strings.ToLower(key)] {
			fields[key] = "***"
			continue
		}
		if nested, ok := value.(map[string]interface{}); ok {
			maskFields(nested)
		}
	}
}
