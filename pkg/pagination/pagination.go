package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPage  = 1
	DefaultLimit = 15
	MaxLimit     = 100
)

// Params holds page-number pagination extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// FromContext reads ?page and ?limit. Missing, non-numeric or non-positive
// values fall back to the defaults; limit is capped at MaxLimit.
func FromContext(c echo.Context) Params {
	return New(c.QueryParam("page"), c.QueryParam("limit"))
}

// New normalises raw page/limit strings.
func New(page, limit string) Params {
	p, err := strconv.Atoi(page)
	if err != nil || p <= 0 {
		p = DefaultPage
	}
	l, err := strconv.Atoi(limit)
	if err != nil || l <= 0 {
		l = DefaultLimit
	}
	if l > MaxLimit {
		l = MaxLimit
	}
	return Params{Page: p, Limit: l}
}

// Offset is the number of rows skipped before this page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta describes where a page sits in the full result set.
type Meta struct {
	CurrentPage  int `json:"currentPage"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalItems   int `json:"totalItems"`
	TotalPages   int `json:"totalPages"`
}

// NewMeta computes TotalPages as ceil(total/limit). A page past the end is
// still reported as the requested page; its item list is simply empty.
func NewMeta(p Params, total int) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return Meta{
		CurrentPage:  p.Page,
		ItemsPerPage: p.Limit,
		TotalItems:   total,
		TotalPages:   pages,
	}
}

// Page is one page of items together with its metadata.
type Page[T any] struct {
	Items []T
	Meta  Meta
}

func NewPage[T any](items []T, total int, p Params) *Page[T] {
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Meta: NewMeta(p, total)}
}

// HasNext reports whether a later page exists.
func (m Meta) HasNext() bool {
	return m.CurrentPage < m.TotalPages
}
