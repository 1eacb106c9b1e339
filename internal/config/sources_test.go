package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/habarihub/habari/internal/types"
)

func TestBuiltinSources(t *testing.T) {
	sources := BuiltinSources()
	require.Len(t, sources, 12)

	var kenya, usa int
	for _, s := range sources {
		require.NotEmpty(t, s.Name)
		require.NoError(t, ValidateURL(s.BaseURL), "source %s", s.Name)
		if s.RSSFeed != "" {
			require.NoError(t, ValidateURL(s.RSSFeed), "source %s feed", s.Name)
		}
		require.NotEmpty(t, s.Selectors.ArticleList, "source %s", s.Name)
		switch s.Region {
		case types.RegionKenya:
			kenya++
		case types.RegionUSA:
			usa++
		default:
			t.Fatalf("source %s has region %q", s.Name, s.Region)
		}
	}
	require.Equal(t, 6, kenya)
	require.Equal(t, 6, usa)
}

func TestRegistryLookups(t *testing.T) {
	reg, err := NewRegistry(BuiltinSources())
	require.NoError(t, err)

	s, ok := reg.Get("CNN")
	require.True(t, ok)
	require.Equal(t, types.RegionUSA, s.Region)

	s, ok = reg.Get("the standard")
	require.True(t, ok, "name lookup must be case-insensitive")
	require.Equal(t, "The Standard", s.Name)

	_, ok = reg.Get("Daily Bugle")
	require.False(t, ok)

	require.Len(t, reg.ByRegion(types.RegionKenya), 6)
	require.Len(t, reg.ByRegion(types.RegionUSA), 6)

	names := reg.Names()
	require.Contains(t, names["kenya"], "Nation Africa")
	require.Contains(t, names["usa"], "NPR")
}

func TestRegistrySkipsDisabledByRegion(t *testing.T) {
	off := false
	sources := BuiltinSources()
	sources[0].Enabled = &off

	reg, err := NewRegistry(sources)
	require.NoError(t, err)
	require.Len(t, reg.ByRegion(types.RegionKenya), 5)
	require.Len(t, reg.Enabled(), 11)
	require.Len(t, reg.All(), 12, "All includes disabled sources")
}

func TestNewRegistryRejectsBadTables(t *testing.T) {
	_, err := NewRegistry(nil)
	require.ErrorIs(t, err, types.ErrNoSources)

	_, err = NewRegistry([]Source{
		{Name: "A", Region: "kenya", BaseURL: "https://a.example.com"},
		{Name: "a", Region: "kenya", BaseURL: "https://a2.example.com"},
	})
	require.ErrorContains(t, err, "duplicate")

	_, err = NewRegistry([]Source{
		{Name: "Mars Times", Region: "mars", BaseURL: "https://mars.example.com"},
	})
	require.ErrorIs(t, err, types.ErrUnknownRegion)

	_, err = NewRegistry([]Source{
		{Name: "No URL", Region: "usa", BaseURL: "not-a-url"},
	})
	require.Error(t, err)
}

func TestLoadSourcesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	content := `
sources:
  - name: Test Herald
    region: KENYA
    base_url: https://herald.example.com
    rss_feed: https://herald.example.com/feed.xml
    categories: [general, politics]
    selectors:
      article_list: "article.story"
      headline: "h2"
      link: "a"
  - name: Test Tribune
    region: usa
    base_url: https://tribune.example.com
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 2)

	require.Equal(t, types.RegionKenya, sources[0].Region, "region is normalized to lowercase")
	require.Equal(t, "article.story", sources[0].Selectors.ArticleList)
	require.True(t, sources[0].IsEnabled(), "missing enabled flag means on")
	require.False(t, sources[1].IsEnabled())
}

func TestLoadSourcesFailures(t *testing.T) {
	_, err := LoadSources("/nonexistent/sources.yaml")
	require.Error(t, err)

	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("sources: []\n"), 0o644))
	_, err = LoadSources(empty)
	require.ErrorIs(t, err, types.ErrNoSources)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sources:\n  - name: X\n    region: nowhere\n    base_url: https://x.example.com\n"), 0o644))
	_, err = LoadSources(bad)
	require.ErrorIs(t, err, types.ErrUnknownRegion)
}

func TestLoadSourcesEmptyPathUsesBuiltin(t *testing.T) {
	sources, err := LoadSources("")
	require.NoError(t, err)
	require.Len(t, sources, 12)
}
