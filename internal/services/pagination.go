package services

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/yiback/gatherly/pkg/response"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// PageRequest is the infinite-scroll query: an opaque cursor and a page size.
type PageRequest struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit"`
}

func (p PageRequest) size() int {
	if p.Limit <= 0 {
		return defaultPageSize
	}
	if p.Limit > maxPageSize {
		return maxPageSize
	}
	return p.Limit
}

type cursor struct {
	At time.Time
	ID string
}

func encodeCursor(at time.Time, id string) string {
	raw := at.UTC().Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, response.NewBadRequest("cursor: is invalid")
	}
	at, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, response.NewBadRequest("cursor: is invalid")
	}
	t, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return nil, response.NewBadRequest("cursor: is invalid")
	}
	return &cursor{At: t, ID: id}, nil
}

// paginate orders q newest first on column (ties broken by id) and applies the
// cursor from req. It fetches one extra row to detect the next page.
func paginate(q *gorm.DB, column string, req PageRequest) (*gorm.DB, error) {
	c, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}
	if c != nil {
		q = q.Where("("+column+" < ? OR ("+column+" = ? AND id < ?))", c.At, c.At, c.ID)
	}
	return q.Order(column + " DESC").Order("id DESC").Limit(req.size() + 1), nil
}

// buildPage trims the look-ahead row and computes the next cursor.
func buildPage[T any](items []T, req PageRequest, key func(T) (time.Time, string)) *response.Page[T] {
	page := &response.Page[T]{Items: items}
	if len(items) > req.size() {
		page.Items = items[:req.size()]
		at, id := key(page.Items[len(page.Items)-1])
		page.NextCursor = encodeCursor(at, id)
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}
