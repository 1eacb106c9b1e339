package types

// Collection accumulates articles keyed by ID. Re-adding an ID keeps
// the original position but replaces the stored record, so the freshest
// scrape of a story wins without reshuffling output order.
//
// Collection is not safe for concurrent use; callers merge per-source
// result slices after their scrape goroutines have finished.
type Collection struct {
	order []string
	byID  map[string]*Article
}

// NewCollection creates an empty Collection.
func NewCollection() *Collection {
	return &Collection{
		byID: make(map[string]*Article),
	}
}

// Add inserts or replaces a single article. Nil articles and articles
// without an ID are ignored.
func (c *Collection) Add(a *Article) {
	if a == nil || a.ID == "" {
		return
	}
	if _, seen := c.byID[a.ID]; !seen {
		c.order = append(c.order, a.ID)
	}
	c.byID[a.ID] = a
}

// AddAll inserts every article in the slice, in order.
func (c *Collection) AddAll(articles []*Article) {
	for _, a := range articles {
		c.Add(a)
	}
}

// Len returns the number of distinct articles held.
func (c *Collection) Len() int {
	return len(c.order)
}

// Articles returns the deduplicated records in first-seen order.
func (c *Collection) Articles() []*Article {
	out := make([]*Article, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Get looks up an article by ID.
func (c *Collection) Get(id string) (*Article, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// ByRegion returns the held articles belonging to the given region,
// preserving insertion order.
func (c *Collection) ByRegion(region Region) []*Article {
	var out []*Article
	for _, id := range c.order {
		if a := c.byID[id]; a.Region == region {
			out = append(out, a)
		}
	}
	return out
}

// BySource returns the held articles scraped from the named source.
func (c *Collection) BySource(sourceName string) []*Article {
	var out []*Article
	for _, id := range c.order {
		if a := c.byID[id]; a.SourceName == sourceName {
			out = append(out, a)
		}
	}
	return out
}

// ByCategory returns the held articles carrying the given label.
func (c *Collection) ByCategory(category string) []*Article {
	var out []*Article
	for _, id := range c.order {
		if a := c.byID[id]; a.HasCategory(category) {
			out = append(out, a)
		}
	}
	return out
}

// CountByRegion tallies held articles per region name.
func (c *Collection) CountByRegion() map[string]int {
	counts := make(map[string]int)
	for _, id := range c.order {
		counts[c.byID[id].Region.String()]++
	}
	return counts
}
