package resolvers

import (
	"context"
	"fmt"

	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/metadata"
	"iptv-bridge-go/pkg/scraper"
)

// defaultMirrors are the embed hosts tried in order. All serve the same
// catalog; scraping the union papers over per-mirror outages.
var defaultMirrors = []string{
	"https://vidsrc.xyz",
	"https://vidsrc.in",
	"https://vidsrc.pm",
	"https://vidsrc.net",
}

// VidsrcProvider resolves titles by searching the metadata catalog and
// scraping the matching embed pages across mirror domains.
type VidsrcProvider struct {
	meta    *metadata.Client
	scraper *scraper.Scraper
	mirrors []string
	log     *logging.Logger
}

// NewVidsrc creates the scraping-backed provider.
func NewVidsrc(meta *metadata.Client, s *scraper.Scraper, log *logging.Logger) *VidsrcProvider {
	return &VidsrcProvider{
		meta:    meta,
		scraper: s,
		mirrors: defaultMirrors,
		log:     log.WithComponent("vidsrc"),
	}
}

// WithMirrors overrides the embed hosts. Used by tests.
func (p *VidsrcProvider) WithMirrors(mirrors []string) *VidsrcProvider {
	p.mirrors = mirrors
	return p
}

func (p *VidsrcProvider) ID() string          { return "vidsrc" }
func (p *VidsrcProvider) Label() string       { return "VidSrc" }
func (p *VidsrcProvider) Description() string { return "Embed scraping across vidsrc mirrors" }
func (p *VidsrcProvider) Requires() string    { return "" }
func (p *VidsrcProvider) Available() bool     { return true }

// Resolve searches the catalog for the best title match, then scrapes one
// embed page per mirror for that title.
func (p *VidsrcProvider) Resolve(ctx context.Context, q Query) (*Resolved, error) {
	season, episode := ParseSeasonEpisode(q.Text, q.Episode)

	category := q.MediaType
	if category == "" {
		category = "movie"
		if episode > 0 {
			category = "tv"
		}
	}

	id, title, err := p.meta.BestMatch(ctx, stripSeasonEpisode(q.Text), category)
	if err != nil {
		return nil, err
	}

	res, err := p.ResolveID(ctx, category, id, season, episode)
	if err != nil {
		return nil, err
	}
	res.Title = title
	return res, nil
}

// ResolveID scrapes the embed pages for an already-known catalog id. The
// watch endpoints use this directly, skipping the search step.
func (p *VidsrcProvider) ResolveID(ctx context.Context, category, id string, season, episode int) (*Resolved, error) {
	if season < 1 {
		season = 1
	}
	if episode < 1 {
		episode = 1
	}

	embeds := make([]string, 0, len(p.mirrors))
	for _, mirror := range p.mirrors {
		if category == "tv" {
			embeds = append(embeds, fmt.Sprintf("%s/embed/tv/%s/%d/%d", mirror, id, season, episode))
		} else {
			embeds = append(embeds, fmt.Sprintf("%s/embed/movie/%s", mirror, id))
		}
	}

	urls := p.scraper.Scrape(ctx, embeds)
	if len(urls) == 0 {
		return nil, ErrNoPlayableURLs
	}

	p.log.Info("resolved via embed scraping", "id", id, "category", category, "urls", len(urls))
	return &Resolved{URLs: urls, EmbedURL: embeds[0]}, nil
}
