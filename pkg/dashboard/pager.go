package dashboard

// DefaultPageSize is the number of rows shown per dashboard page.
const DefaultPageSize = 10

// Pager tracks the current page of a filtered result. Pages are 1-based.
type Pager struct {
	Page int `form:"page" json:"page" binding:"min=1"`
	Size int `form:"size" json:"size" binding:"min=1,max=1000"`
}

// NewPager returns a pager on the first page.
func NewPager(size int) Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return Pager{Page: 1, Size: size}
}

func (p Pager) normalized() Pager {
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	return p
}

// Offset returns the index of the first row of the current page.
func (p Pager) Offset() int {
	p = p.normalized()
	return (p.Page - 1) * p.Size
}

// Pages returns the number of pages needed for total rows, at least 1.
func (p Pager) Pages(total int) int {
	p = p.normalized()
	if total <= 0 {
		return 1
	}
	return (total + p.Size - 1) / p.Size
}

// Next moves to the following page, staying on the last page of total rows.
func (p Pager) Next(total int) Pager {
	p = p.normalized()
	if p.Page < p.Pages(total) {
		p.Page++
	}
	return p
}

// Prev moves to the previous page, never below the first.
func (p Pager) Prev() Pager {
	p = p.normalized()
	if p.Page > 1 {
		p.Page--
	}
	return p
}

// Reset returns to the first page. Filters changing should reset the pager.
func (p Pager) Reset() Pager {
	p = p.normalized()
	p.Page = 1
	return p
}
