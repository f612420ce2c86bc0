package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yiback/gatherly/internal/services"
	"github.com/yiback/gatherly/pkg/response"
)

const multipartOverhead = 1 << 20

// bind decodes a JSON or form body into req. Field rules are enforced by the
// services, so only malformed bodies fail here.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBind(req); err != nil {
		response.BadRequest(c, "invalid request body")
		return false
	}
	return true
}

func pageRequest(c *gin.Context) (services.PageRequest, bool) {
	var req services.PageRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid pagination parameters")
		return req, false
	}
	return req, true
}

// readUpload returns the multipart "file" field. At most maxBytes+1 bytes are
// read so the service can report an oversized image without buffering it all.
func readUpload(c *gin.Context, maxBytes int) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(maxBytes)+multipartOverhead)
	header, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, response.NewPayloadTooLarge("file: too large"))
		return nil, false
	}
	if err != nil {
		response.BadRequest(c, "file: is required")
		return nil, false
	}

	f, err := header.Open()
	if err != nil {
		response.BadRequest(c, "file: unreadable")
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		response.BadRequest(c, "file: unreadable")
		return nil, false
	}
	return data, true
}
