package resolvers

import (
	"context"
	"strconv"
	"time"

	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/subproc"
)

// AniCLIProvider resolves anime through the ani-cli program. No fallback:
// the scraping provider searches a different catalog and would rarely match
// anime queries.
type AniCLIProvider struct {
	runner  commandRunner
	binary  string
	timeout time.Duration
	log     *logging.Logger
}

// NewAniCLI creates the ani-cli-backed provider.
func NewAniCLI(runner commandRunner, binary string, timeout time.Duration, log *logging.Logger) *AniCLIProvider {
	return &AniCLIProvider{
		runner:  runner,
		binary:  binary,
		timeout: timeout,
		log:     log.WithComponent("anicli"),
	}
}

func (p *AniCLIProvider) ID() string          { return "anicli" }
func (p *AniCLIProvider) Label() string       { return "ani-cli" }
func (p *AniCLIProvider) Description() string { return "ani-cli anime resolver" }
func (p *AniCLIProvider) Requires() string    { return p.binary }
func (p *AniCLIProvider) Available() bool     { return p.runner.CommandExists(p.binary) }

func (p *AniCLIProvider) Resolve(ctx context.Context, q Query) (*Resolved, error) {
	_, episode := ParseSeasonEpisode(q.Text, q.Episode)

	args := []string{"--no-detach"}
	if q.Quality != "" {
		args = append(args, "-q", q.Quality)
	}
	if episode > 0 {
		args = append(args, "-e", strconv.Itoa(episode))
	}
	args = append(args, stripSeasonEpisode(q.Text))

	res, err := p.runner.Run(ctx, p.binary, args, map[string]string{"NO_COLOR": "1"}, p.timeout)
	if err != nil {
		return nil, err
	}

	urls := subproc.ExtractURLs(res.Stdout)
	if len(urls) == 0 {
		return nil, ErrNoPlayableURLs
	}

	p.log.Info("resolved via ani-cli", "urls", len(urls))
	return &Resolved{Title: q.Text, URLs: urls, Raw: res.Stdout}, nil
}
