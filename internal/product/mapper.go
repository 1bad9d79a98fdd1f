package product

import (
	"regexp"
	"strings"
)

// Response is the catalog view returned to clients.
type Response struct {
	*Product
	EffectivePrice float64 `json:"effectivePrice"`
	InStock        bool    `json:"inStock"`
}

func ToResponse(p *Product) Response {
	return Response{Product: p, EffectivePrice: p.EffectivePrice(), InStock: p.Stock > 0}
}

func ToResponses(ps []Product) []Response {
	out := make([]Response, 0, len(ps))
	for i := range ps {
		out = append(out, ToResponse(&ps[i]))
	}
	return out
}

var (
	nonAlnumRegex  = regexp.MustCompile(`[^a-z0-9]+`)
	multiDashRegex = regexp.MustCompile(`-+`)
)

func Slugify(input string) string {
	slug := strings.ToLower(strings.TrimSpace(input))
	slug = nonAlnumRegex.ReplaceAllString(slug, "-")
	slug = multiDashRegex.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}
