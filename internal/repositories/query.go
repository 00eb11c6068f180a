package repositories

import (
	"strings"

	"carshop/internal/models"

	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// Pagination selects one page of a listing. Sort is a field name, prefixed
// with "-" for descending order.
type Pagination struct {
	Page  int
	Limit int
	Sort  string
}

// PageMeta describes the page returned by a listing.
type PageMeta struct {
	Page      int   `json:"page"`
	Limit     int   `json:"limit"`
	Total     int64 `json:"total"`
	TotalPage int   `json:"totalPage"`
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Pagination) offset() int {
	return (p.Page - 1) * p.Limit
}

func newPageMeta(p Pagination, total int64) PageMeta {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return PageMeta{Page: p.Page, Limit: p.Limit, Total: total, TotalPage: pages}
}

// OrderQuery filters an order listing.
type OrderQuery struct {
	Pagination
	Search string
	UserID string
	Status models.OrderStatus
}

// UserQuery filters a user listing.
type UserQuery struct {
	Pagination
	Role      string
	IsBlocked *bool
}

// CarFilter filters a catalog listing.
type CarFilter struct {
	Pagination
	Search   string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  *bool
}

var orderSortColumns = map[string]string{
	"createdAt":     "created_at",
	"orderId":       "order_id",
	"totalPrice":    "total_price",
	"quantity":      "quantity",
	"currentStatus": "current_status",
}

var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"name":      "name",
	"email":     "email",
}

var carSortColumns = map[string]string{
	"createdAt": "created_at",
	"price":     "price",
	"year":      "year",
	"brand":     "brand",
	"mileage":   "mileage",
}

// parseSort resolves sort against the allowed keys. Unknown keys fall back to
// newest first.
func parseSort(sort string, allowed map[string]string) (key, column string, desc bool) {
	desc = strings.HasPrefix(sort, "-")
	key = strings.TrimPrefix(sort, "-")
	column, ok := allowed[key]
	if !ok {
		return "createdAt", "created_at", true
	}
	return key, column, desc
}

func orderByClause(sort string, allowed map[string]string) string {
	_, column, desc := parseSort(sort, allowed)
	if desc {
		return column + " DESC"
	}
	return column + " ASC"
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
