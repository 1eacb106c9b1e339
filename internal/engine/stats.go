package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/habarihub/habari/internal/types"
)

// RunStats summarizes one scrape run: raw per-source and per-region
// counts, the deduplicated total, and the errors of sources that
// failed outright.
type RunStats struct {
	TotalArticles int            `json:"total_articles"`
	ByRegion      map[string]int `json:"by_region"`
	BySource      map[string]int `json:"by_source"`
	Errors        []string       `json:"errors"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`

	mu sync.Mutex
}

func newRunStats() *RunStats {
	return &RunStats{
		ByRegion:  make(map[string]int),
		BySource:  make(map[string]int),
		Errors:    []string{},
		StartTime: time.Now().UTC(),
	}
}

// recordSource notes a successful source scrape. Region counts are
// pre-dedup sums of what each source produced.
func (s *RunStats) recordSource(name string, region types.Region, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BySource[name] = count
	s.ByRegion[region.String()] += count
}

// recordError notes a source that failed outright.
func (s *RunStats) recordError(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", name, err))
}

// finish stamps the end time and the deduplicated article total.
func (s *RunStats) finish(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalArticles = total
	s.EndTime = time.Now().UTC()
}

// Duration returns the run's wall time, live if the run is still going.
func (s *RunStats) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Snapshot returns the stats as a flat map for logging and the API.
func (s *RunStats) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRegion := make(map[string]int, len(s.ByRegion))
	for k, v := range s.ByRegion {
		byRegion[k] = v
	}
	bySource := make(map[string]int, len(s.BySource))
	for k, v := range s.BySource {
		bySource[k] = v
	}

	snap := map[string]any{
		"total_articles": s.TotalArticles,
		"by_region":      byRegion,
		"by_source":      bySource,
		"errors":         append([]string{}, s.Errors...),
		"start_time":     s.StartTime,
		"end_time":       s.EndTime,
	}
	if !s.EndTime.IsZero() {
		snap["duration"] = s.EndTime.Sub(s.StartTime).String()
	}
	return snap
}
