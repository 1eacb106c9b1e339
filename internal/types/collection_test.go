package types

import (
	"fmt"
	"testing"
)

func testArticle(id int, region Region, source string) *Article {
	url := fmt.Sprintf("https://example.com/story-%d", id)
	title := fmt.Sprintf("Story %d", id)
	return &Article{
		ID:         ArticleID(url, title),
		Title:      title,
		URL:        url,
		Region:     region,
		SourceName: source,
	}
}

func TestCollectionDedup(t *testing.T) {
	c := NewCollection()
	a := testArticle(1, RegionKenya, "Source A")
	c.Add(a)
	c.Add(testArticle(2, RegionUSA, "Source B"))

	// Same story scraped again with a fresher summary.
	dup := testArticle(1, RegionKenya, "Source A")
	dup.Summary = "updated summary"
	c.Add(dup)

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	got, ok := c.Get(a.ID)
	if !ok {
		t.Fatal("article missing after re-add")
	}
	if got.Summary != "updated summary" {
		t.Errorf("duplicate add did not replace payload: summary = %q", got.Summary)
	}

	// First-seen position is preserved.
	all := c.Articles()
	if all[0].ID != a.ID {
		t.Errorf("re-added article lost its original position")
	}
}

func TestCollectionFilters(t *testing.T) {
	c := NewCollection()
	c.Add(testArticle(1, RegionKenya, "Nation Africa"))
	c.Add(testArticle(2, RegionUSA, "CNN"))
	c.Add(testArticle(3, RegionKenya, "The Standard"))
	c.Add(testArticle(4, RegionUSA, "CNN"))

	if got := len(c.ByRegion(RegionKenya)); got != 2 {
		t.Errorf("ByRegion(kenya) = %d articles, want 2", got)
	}
	if got := len(c.BySource("CNN")); got != 2 {
		t.Errorf("BySource(CNN) = %d articles, want 2", got)
	}
	counts := c.CountByRegion()
	if counts["kenya"] != 2 || counts["usa"] != 2 {
		t.Errorf("CountByRegion = %v", counts)
	}
}

func TestCollectionByCategory(t *testing.T) {
	c := NewCollection()
	a := testArticle(1, RegionUSA, "NPR")
	a.Categories = []string{"Science", "culture"}
	c.Add(a)
	c.Add(testArticle(2, RegionUSA, "NPR"))

	if got := len(c.ByCategory("science")); got != 1 {
		t.Errorf("ByCategory(science) = %d, want 1 (case-insensitive)", got)
	}
	if got := len(c.ByCategory("sports")); got != 0 {
		t.Errorf("ByCategory(sports) = %d, want 0", got)
	}
}

func TestCollectionIgnoresNilAndBlank(t *testing.T) {
	c := NewCollection()
	c.Add(nil)
	c.Add(&Article{Title: "no id"})
	if c.Len() != 0 {
		t.Errorf("Len = %d, want 0", c.Len())
	}
}
