package sales

import (
	shoperrors "github.com/jrsteele09/go-shop-client/internal/errors"
)

// DefaultPerPage is the page size of the sales table.
const DefaultPerPage = 10

// Filter narrows a sales list. Zero fields match everything.
type Filter struct {
	ShopID int
	// Date is a calendar day, YYYY-MM-DD, compared against the sale's UTC date.
	Date string
}

func (f Filter) Match(s Sale) bool {
	if f.ShopID != 0 && s.Shop != f.ShopID {
		return false
	}
	if f.Date != "" {
		day, ok := s.Day()
		if !ok || day != f.Date {
			return false
		}
	}
	return true
}

// Apply returns the matching sales in their original order.
func (f Filter) Apply(sales []Sale) []Sale {
	out := make([]Sale, 0, len(sales))
	for _, s := range sales {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
	Total      int
}

func (p Page[T]) HasPrevious() bool {
	return p.Number > 1
}

func (p Page[T]) HasNext() bool {
	return p.Number < p.TotalPages
}

// Paginate returns page (1-based) of items. An empty list has a single empty
// first page; any other page outside 1..TotalPages is ErrPageOutOfRange.
func Paginate[T any](items []T, page, perPage int) (Page[T], error) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := len(items)
	totalPages := (total + perPage - 1) / perPage

	last := max(totalPages, 1)
	if page < 1 || page > last {
		return Page[T]{}, shoperrors.Wrapf(shoperrors.ErrPageOutOfRange, "page %d of %d", page, totalPages)
	}

	start := min((page-1)*perPage, total)
	end := min(start+perPage, total)
	return Page[T]{
		Items:      items[start:end],
		Number:     page,
		TotalPages: totalPages,
		Total:      total,
	}, nil
}
