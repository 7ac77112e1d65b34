package pagination

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
	DefaultPage  = 1
	// MaxPage keeps (page-1)*limit well inside int64.
	MaxPage = math.MaxInt32
)

// PageRequest is an offset page over the newest-first event sequence.
type PageRequest struct {
	Limit int
	Page  int
}

// NewPageRequest clamps limit to [1, MaxLimit] and page to [1, MaxPage].
// A non-positive limit means "not specified" and becomes DefaultLimit.
func NewPageRequest(limit, page int) PageRequest {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	switch {
	case page < 1:
		page = DefaultPage
	case page > MaxPage:
		page = MaxPage
	}
	return PageRequest{Limit: limit, Page: page}
}

// ParsePageRequest reads limit and page from query values. Unparseable values
// fall back to the defaults rather than failing the request.
func ParsePageRequest(values url.Values) PageRequest {
	return NewPageRequest(parseInt(values.Get("limit")), parseInt(values.Get("page")))
}

// Skip is the number of records before this page.
func (p PageRequest) Skip() int64 {
	return int64(p.Page-1) * int64(p.Limit)
}

// TotalPages is ceil(total/limit); an empty store has zero pages.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	pages := (total + int64(limit) - 1) / int64(limit)
	if pages > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(pages)
}

func parseInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		// Out-of-range digits still express "as large as possible".
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
			return math.MaxInt
		}
		return 0
	}
	return value
}
