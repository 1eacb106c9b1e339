package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

// nonArticle matches link targets that never lead to a story page.
var nonArticle = []*regexp.Regexp{
	regexp.MustCompile(`/tag/`),
	regexp.MustCompile(`/category/`),
	regexp.MustCompile(`/author/`),
	regexp.MustCompile(`/search`),
	regexp.MustCompile(`/login`),
	regexp.MustCompile(`/register`),
	regexp.MustCompile(`/subscribe`),
	regexp.MustCompile(`/advertisement`),
	regexp.MustCompile(`\.pdf$`),
	regexp.MustCompile(`\.jpg$`),
	regexp.MustCompile(`\.png$`),
	regexp.MustCompile(`\.gif$`),
}

// URL returns the canonical absolute form of raw: relative paths are
// resolved against base and plain http is upgraded to https. Empty
// input stays empty; unparseable input is returned as given.
func URL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if base != "" && !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		bu, err := url.Parse(base)
		if err == nil {
			ru, err := url.Parse(raw)
			if err == nil {
				raw = bu.ResolveReference(ru).String()
			}
		}
	}
	if strings.HasPrefix(raw, "http://") {
		raw = "https://" + strings.TrimPrefix(raw, "http://")
	}
	return raw
}

// ValidURL reports whether raw parses with both a scheme and a host.
func ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Domain extracts the host of a URL with any www prefix removed.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsArticleURL reports whether rawURL plausibly points at a story page.
// The URL must be absolute, its host must contain baseDomain (full URL
// or bare domain, empty to skip the check) and its path must not match
// a known non-article pattern.
func IsArticleURL(rawURL, baseDomain string) bool {
	if !ValidURL(rawURL) {
		return false
	}
	if baseDomain != "" {
		base := baseDomain
		if strings.Contains(base, "://") {
			base = Domain(base)
		}
		base = strings.TrimPrefix(strings.ToLower(base), "www.")
		if !strings.Contains(Domain(rawURL), base) {
			return false
		}
	}
	lower := strings.ToLower(rawURL)
	for _, re := range nonArticle {
		if re.MatchString(lower) {
			return false
		}
	}
	return true
}
