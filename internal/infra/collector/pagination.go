package collector

// Pager decides when a paginated crawl stops: at the item cap, on an empty
// page, or when a page yields materially fewer items than the one before it.
type Pager struct {
	Cap      int
	MaxPages int
	// DeclineRatio is the fraction of the previous page's yield below which
	// the next page is considered exhausted. Zero means 0.5.
	DeclineRatio float64

	total int
	pages int
	prev  int
}

// Add records a fetched page and reports whether to keep paging.
func (p *Pager) Add(items int) bool {
	p.pages++
	p.total += items
	prev := p.prev
	p.prev = items

	if items == 0 {
		return false
	}
	if p.Cap > 0 && p.total >= p.Cap {
		return false
	}
	if p.MaxPages > 0 && p.pages >= p.MaxPages {
		return false
	}
	ratio := p.DeclineRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	if prev > 0 && float64(items) < float64(prev)*ratio {
		return false
	}
	return true
}

// Remaining is how many items may still be taken before the cap.
func (p *Pager) Remaining() int {
	if p.Cap <= 0 {
		return int(^uint(0) >> 1)
	}
	return max(p.Cap-p.total, 0)
}

func (p *Pager) Pages() int { return p.pages }
func (p *Pager) Total() int { return p.total }
