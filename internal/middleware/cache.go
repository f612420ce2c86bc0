package middleware

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/cache"
	"github.com/yiback/gatherly/pkg/logger"
)

type bodyRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// CacheResponse serves repeated GETs of a view from store. Entries are keyed
// by path, caller and query, and dropped by cache.PathInvalidator when the
// underlying data changes. Only 200 JSON responses are stored.
func CacheResponse(store cache.Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := cache.Key(strings.TrimSuffix(c.Request.URL.Path, "/"), GetUserID(c), c.Request.URL.RawQuery)

		if cached, ok, err := store.Get(ctx, key); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		} else if ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			c.Abort()
			return
		}

		recorder := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder
		c.Header("X-Cache", "MISS")
		c.Next()

		if recorder.Status() != http.StatusOK ||
			!strings.HasPrefix(recorder.Header().Get("Content-Type"), "application/json") {
			return
		}
		if err := store.Set(ctx, key, recorder.body.Bytes(), ttl); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
}
