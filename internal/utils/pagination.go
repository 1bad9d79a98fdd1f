package utils

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps page to >= 1 and limit to (0, max], using def when unset.
func (p Pagination) Normalize(def, max int) Pagination {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = def
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	return p
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func NewPageInfo(p Pagination, total int) PageInfo {
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageInfo{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}
