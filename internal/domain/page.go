package domain

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type Page struct {
	Page       int
	Limit      int
	TotalCount int
	TotalPages int
	HasMore    bool
}

// NormalizePage: page >= 1, limit в [1..100], нули и мусор заменяются дефолтами.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

func NewPage(page, limit, total int) Page {
	page, limit = NormalizePage(page, limit)
	pages := (total + limit - 1) / limit
	return Page{
		Page:       page,
		Limit:      limit,
		TotalCount: total,
		TotalPages: pages,
		HasMore:    page < pages,
	}
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }
