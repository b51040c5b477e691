package pagination

const (
	// DefaultPerPage is the standard page size when one is not provided.
	DefaultPerPage = 20
	// MaxPerPage caps how many rows any listing can request.
	MaxPerPage = 100
)

// Page holds page-numbered pagination inputs from controllers.
type Page struct {
	Number  int
	PerPage int
}

// Normalize enforces the default and maximum page sizes and a 1-based page number.
func (p Page) Normalize() Page {
	out := p
	if out.Number <= 0 {
		out.Number = 1
	}
	if out.PerPage <= 0 {
		out.PerPage = DefaultPerPage
	}
	if out.PerPage > MaxPerPage {
		out.PerPage = MaxPerPage
	}
	return out
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.PerPage
}

// Pages returns how many pages a total row count spans.
func (p Page) Pages(total int64) int {
	n := p.Normalize()
	if total <= 0 {
		return 0
	}
	pages := int(total) / n.PerPage
	if int(total)%n.PerPage != 0 {
		pages++
	}
	return pages
}

// Window holds offset/limit pagination inputs for the station queue views.
type Window struct {
	Limit  int
	Offset int
}

// Normalize clamps the window to sane bounds.
func (w Window) Normalize() Window {
	out := w
	if out.Limit <= 0 {
		out.Limit = 50
	}
	if out.Limit > MaxPerPage {
		out.Limit = MaxPerPage
	}
	if out.Offset < 0 {
		out.Offset = 0
	}
	return out
}
