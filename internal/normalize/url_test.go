package normalize

import "testing"

func TestURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		base string
		want string
	}{
		{
			name: "relative path resolved against base",
			raw:  "/news/story",
			base: "https://example.com",
			want: "https://example.com/news/story",
		},
		{
			name: "http upgraded to https",
			raw:  "http://example.com/a",
			want: "https://example.com/a",
		},
		{
			name: "https untouched",
			raw:  "https://example.com/a",
			base: "https://other.com",
			want: "https://example.com/a",
		},
		{
			name: "empty stays empty",
			raw:  "",
			base: "https://example.com",
			want: "",
		},
		{
			name: "relative without base returned as is",
			raw:  "/news/story",
			want: "/news/story",
		},
		{
			name: "base with path resolves like a browser",
			raw:  "story.html",
			base: "https://example.com/section/index.html",
			want: "https://example.com/section/story.html",
		},
		{
			name: "http base producing http result still upgraded",
			raw:  "/x",
			base: "http://example.com",
			want: "https://example.com/x",
		},
		{
			name: "surrounding whitespace trimmed",
			raw:  "  https://example.com/a  ",
			want: "https://example.com/a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := URL(tt.raw, tt.base); got != tt.want {
				t.Errorf("URL(%q, %q) = %q, want %q", tt.raw, tt.base, got, tt.want)
			}
		})
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://www.standardmedia.co.ke/article/1", "standardmedia.co.ke"},
		{"https://nation.africa/kenya/news", "nation.africa"},
		{"https://Example.COM/x", "example.com"},
		{"https://example.com:8080/x", "example.com"},
		{"not a url at all ://", ""},
	}

	for _, tt := range tests {
		if got := Domain(tt.raw); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestIsArticleURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		base string
		want bool
	}{
		{"plain story", "https://example.com/news/big-story", "example.com", true},
		{"base as full url", "https://www.example.com/news/story", "https://www.example.com", true},
		{"subdomain still matches", "https://kenya.example.com/story", "example.com", true},
		{"different host rejected", "https://evil.com/news/story", "example.com", false},
		{"tag page rejected", "https://example.com/tag/politics", "example.com", false},
		{"category page rejected", "https://example.com/category/sports", "example.com", false},
		{"author page rejected", "https://example.com/author/jane", "example.com", false},
		{"search page rejected", "https://example.com/search?q=x", "example.com", false},
		{"login rejected", "https://example.com/login", "example.com", false},
		{"subscribe rejected", "https://example.com/subscribe", "example.com", false},
		{"pdf rejected", "https://example.com/report.pdf", "example.com", false},
		{"image rejected", "https://example.com/photo.jpg", "example.com", false},
		{"relative rejected", "/news/story", "example.com", false},
		{"no scheme rejected", "example.com/news/story", "example.com", false},
		{"no base skips host check", "https://anywhere.com/story", "", true},
		{"jpg in query string allowed", "https://example.com/story?img=a.jpg&p=1", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsArticleURL(tt.url, tt.base); got != tt.want {
				t.Errorf("IsArticleURL(%q, %q) = %v, want %v", tt.url, tt.base, got, tt.want)
			}
		})
	}
}
