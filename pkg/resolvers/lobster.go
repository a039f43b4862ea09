package resolvers

import (
	"context"
	"strconv"
	"time"

	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/subproc"
)

// LobsterProvider resolves through the lobster CLI. When the CLI yields no
// URLs it falls back to the scraping provider with the same query; the
// original lobster error still takes precedence in reporting, since that is
// the failure the user asked about.
type LobsterProvider struct {
	runner   commandRunner
	binary   string
	timeout  time.Duration
	fallback Provider
	log      *logging.Logger
}

// NewLobster creates the lobster-backed provider. fallback may be nil to
// disable the fallback chain.
func NewLobster(runner commandRunner, binary string, timeout time.Duration, fallback Provider, log *logging.Logger) *LobsterProvider {
	return &LobsterProvider{
		runner:   runner,
		binary:   binary,
		timeout:  timeout,
		fallback: fallback,
		log:      log.WithComponent("lobster"),
	}
}

func (p *LobsterProvider) ID() string          { return "lobster" }
func (p *LobsterProvider) Label() string       { return "Lobster" }
func (p *LobsterProvider) Description() string { return "lobster CLI with scraping fallback" }
func (p *LobsterProvider) Requires() string    { return p.binary }
func (p *LobsterProvider) Available() bool     { return p.runner.CommandExists(p.binary) }

func (p *LobsterProvider) Resolve(ctx context.Context, q Query) (*Resolved, error) {
	args := []string{"--json"}
	if q.Quality != "" {
		args = append(args, "--quality", q.Quality)
	}
	if q.MediaType == "tv" {
		season, episode := ParseSeasonEpisode(q.Text, q.Episode)
		args = append(args, "--tv", "--season", strconv.Itoa(season), "--episode", strconv.Itoa(episode))
	}
	args = append(args, stripSeasonEpisode(q.Text))

	var urls []string
	var raw string
	res, runErr := p.runner.Run(ctx, p.binary, args, map[string]string{"NO_COLOR": "1"}, p.timeout)
	if res != nil {
		raw = res.Stdout
		urls = subproc.ExtractURLs(res.Stdout)
	}

	if len(urls) > 0 {
		return &Resolved{Title: q.Text, URLs: urls, Raw: raw}, nil
	}

	if runErr != nil {
		p.log.Warn("lobster resolution failed", "error", runErr)
	} else {
		p.log.Warn("lobster produced no playable URLs")
	}

	if p.fallback == nil {
		if runErr != nil {
			return nil, runErr
		}
		return nil, ErrNoPlayableURLs
	}

	fbRes, fbErr := p.fallback.Resolve(ctx, q)
	if fbErr == nil {
		return fbRes, nil
	}
	// Both chains failed. The lobster error explains the preferred path,
	// so it wins whenever one was captured.
	if runErr != nil {
		return nil, runErr
	}
	return nil, fbErr
}
