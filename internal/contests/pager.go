package contests

import (
	"sync"

	"github.com/and161185/contest-shell/internal/model"
)

// Pager is the caller-side guard against late list responses: it remembers
// which page the view currently wants and accepts a result only if it was
// requested for that page.
type Pager struct {
	mu      sync.Mutex
	current int
	result  model.PageResult
	loaded  bool
}

// NewPager starts at page 1.
func NewPager() *Pager { return &Pager{current: 1} }

// Request records page as the one the view now displays and returns it.
func (p *Pager) Request(page int) int {
	page = model.ClampPage(page, 0)
	p.mu.Lock()
	p.current = page
	p.mu.Unlock()
	return page
}

// Resolve applies res if requested is still the current page and reports
// whether it did. A clamped result moves the current page along with it.
func (p *Pager) Resolve(requested int, res model.PageResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if requested != p.current {
		return false
	}
	p.result = res
	p.loaded = true
	if res.Page > 0 {
		p.current = res.Page
	}
	return true
}

// Current returns the displayed page number and its last applied result.
func (p *Pager) Current() (int, model.PageResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.result, p.loaded
}
