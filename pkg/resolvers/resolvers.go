// Package resolvers turns a free-text VOD query into playable media URLs.
// Three strategies are registered at startup: direct embed scraping backed by
// metadata search, and two external CLI programs driven as subprocesses.
package resolvers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"iptv-bridge-go/pkg/subproc"
)

var (
	// ErrUnknownProvider is returned when the requested provider id is not
	// registered. Handlers map it to 404.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNoPlayableURLs is returned when resolution completed but produced
	// nothing usable.
	ErrNoPlayableURLs = errors.New("no playable URLs found")
)

// UnavailableError reports a provider whose external dependency is missing.
type UnavailableError struct {
	Provider string
	Binary   string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %s not found on PATH", e.Provider, e.Binary)
}

// Query is one VOD resolution request.
type Query struct {
	Text      string
	Episode   int    // fallback episode when the query text carries no marker
	Quality   string // e.g. "1080", advisory
	MediaType string // "movie" or "tv"; empty means infer from the query
}

// Resolved is a successful resolution. URLs is ordered; the first entry is
// the primary playback candidate.
type Resolved struct {
	Title    string
	URLs     []string
	EmbedURL string
	Raw      string
}

// Provider is one resolution strategy.
type Provider interface {
	ID() string
	Label() string
	Description() string
	// Requires names the external binary the provider depends on, or ""
	// for providers with no such dependency.
	Requires() string
	Available() bool
	Resolve(ctx context.Context, q Query) (*Resolved, error)
}

// commandRunner is the subprocess surface the CLI-backed providers need.
// Satisfied by *subproc.Runner; tests substitute stubs.
type commandRunner interface {
	Run(ctx context.Context, binary string, args []string, env map[string]string, timeout time.Duration) (*subproc.Result, error)
	CommandExists(name string) bool
}

var seasonEpisodePattern = regexp.MustCompile(`(?i)\bs(\d{1,2})e(\d{1,3})\b`)

// ParseSeasonEpisode extracts an sNNeNN-style marker from query text.
// Without a marker the season defaults to 1 and the episode to the
// caller-supplied fallback.
func ParseSeasonEpisode(text string, fallbackEpisode int) (season, episode int) {
	m := seasonEpisodePattern.FindStringSubmatch(text)
	if m == nil {
		return 1, fallbackEpisode
	}
	season, _ = strconv.Atoi(m[1])
	episode, _ = strconv.Atoi(m[2])
	return season, episode
}

// stripSeasonEpisode removes the marker so catalog searches see only the
// title.
func stripSeasonEpisode(text string) string {
	return strings.TrimSpace(seasonEpisodePattern.ReplaceAllString(text, ""))
}
