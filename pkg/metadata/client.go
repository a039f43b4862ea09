// Package metadata queries the external title catalogs (TMDB for movies and
// TV, Jikan for anime). Responses are treated as opaque JSON and passed
// through; only the handful of fields needed for resolution are plucked out.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"iptv-bridge-go/pkg/cache"
	"iptv-bridge-go/pkg/httpclient"
	"iptv-bridge-go/pkg/logging"

	"github.com/tidwall/gjson"
)

// ErrNotConfigured is returned for TMDB-backed calls when no API key is set.
// Handlers turn this into a 500 with an explicit message instead of letting
// the call fail upstream.
var ErrNotConfigured = errors.New("TMDB API key not configured")

// ErrNoResults is returned when a search yields nothing to resolve against.
var ErrNoResults = errors.New("no matching title found")

// StatusError reports a non-2xx response from a metadata API.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("metadata API returned %d for %s", e.Status, e.URL)
}

const (
	defaultTMDBBase  = "https://api.themoviedb.org/3"
	defaultJikanBase = "https://api.jikan.moe/v4"
)

// Client calls the metadata APIs through the bounded fetcher, memoizing
// responses in the TTL cache to shield the rate-limited upstreams from
// request bursts.
type Client struct {
	http      *httpclient.Client
	cache     *cache.Cache
	apiKey    string
	tmdbBase  string
	jikanBase string
	log       *logging.Logger
}

// New creates a metadata client. apiKey may be empty; TMDB-backed calls then
// fail with ErrNotConfigured.
func New(client *httpclient.Client, c *cache.Cache, apiKey string, log *logging.Logger) *Client {
	return &Client{
		http:      client,
		cache:     c,
		apiKey:    apiKey,
		tmdbBase:  defaultTMDBBase,
		jikanBase: defaultJikanBase,
		log:       log.WithComponent("metadata"),
	}
}

// WithBaseURLs overrides the API endpoints. Used by tests.
func (c *Client) WithBaseURLs(tmdbBase, jikanBase string) *Client {
	c.tmdbBase = tmdbBase
	c.jikanBase = jikanBase
	return c
}

// SearchMovies returns the raw TMDB movie search response.
func (c *Client) SearchMovies(ctx context.Context, query string) (json.RawMessage, error) {
	return c.tmdb(ctx, "/search/movie", url.Values{"query": {query}})
}

// PopularMovies returns the raw TMDB popular movies response.
func (c *Client) PopularMovies(ctx context.Context) (json.RawMessage, error) {
	return c.tmdb(ctx, "/movie/popular", nil)
}

// SearchTV returns the raw TMDB TV search response.
func (c *Client) SearchTV(ctx context.Context, query string) (json.RawMessage, error) {
	return c.tmdb(ctx, "/search/tv", url.Values{"query": {query}})
}

// PopularTV returns the raw TMDB popular TV response.
func (c *Client) PopularTV(ctx context.Context) (json.RawMessage, error) {
	return c.tmdb(ctx, "/tv/popular", nil)
}

// TVSeasons returns the raw TMDB show details, which carry the season list.
func (c *Client) TVSeasons(ctx context.Context, id string) (json.RawMessage, error) {
	return c.tmdb(ctx, "/tv/"+url.PathEscape(id), nil)
}

// SearchAnime returns the raw Jikan anime search response.
func (c *Client) SearchAnime(ctx context.Context, query string) (json.RawMessage, error) {
	return c.get(ctx, c.jikanBase+"/anime?"+url.Values{"q": {query}}.Encode())
}

// PopularAnime returns the raw Jikan top anime response.
func (c *Client) PopularAnime(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, c.jikanBase+"/top/anime")
}

// AnimeEpisodes returns the raw Jikan episode list for an anime.
func (c *Client) AnimeEpisodes(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, c.jikanBase+"/anime/"+url.PathEscape(id)+"/episodes")
}

// MovieTitle looks up the display title for a TMDB movie id.
func (c *Client) MovieTitle(ctx context.Context, id string) (string, error) {
	body, err := c.tmdb(ctx, "/movie/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}
	title := gjson.GetBytes(body, "title").String()
	if title == "" {
		return "", ErrNoResults
	}
	return title, nil
}

// TVTitle looks up the display name for a TMDB show id.
func (c *Client) TVTitle(ctx context.Context, id string) (string, error) {
	body, err := c.tmdb(ctx, "/tv/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}
	title := gjson.GetBytes(body, "name").String()
	if title == "" {
		return "", ErrNoResults
	}
	return title, nil
}

// AnimeTitle looks up the display title for a Jikan anime id.
func (c *Client) AnimeTitle(ctx context.Context, id string) (string, error) {
	body, err := c.get(ctx, c.jikanBase+"/anime/"+url.PathEscape(id))
	if err != nil {
		return "", err
	}
	title := gjson.GetBytes(body, "data.title_english").String()
	if title == "" {
		title = gjson.GetBytes(body, "data.title").String()
	}
	if title == "" {
		return "", ErrNoResults
	}
	return title, nil
}

// BestMatch searches the catalog for the closest title and returns its id
// and display title. category is "movie" or "tv".
func (c *Client) BestMatch(ctx context.Context, query, category string) (string, string, error) {
	var body json.RawMessage
	var err error
	titleField := "results.0.title"

	switch category {
	case "movie":
		body, err = c.SearchMovies(ctx, query)
	default:
		body, err = c.SearchTV(ctx, query)
		titleField = "results.0.name"
	}
	if err != nil {
		return "", "", err
	}

	id := gjson.GetBytes(body, "results.0.id")
	if !id.Exists() {
		return "", "", ErrNoResults
	}
	return id.String(), gjson.GetBytes(body, titleField).String(), nil
}

// tmdb issues a token-gated TMDB call.
func (c *Client) tmdb(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	return c.get(ctx, c.tmdbBase+path+"?"+params.Encode())
}

// get fetches a metadata URL, consulting the TTL cache first. The cache key
// is the full request URL.
func (c *Client) get(ctx context.Context, rawURL string) (json.RawMessage, error) {
	if cached, ok := c.cache.Get(rawURL); ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("metadata fetch failed", "url", rawURL, "code", httpclient.ClassifyError(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	c.cache.Set(rawURL, body)
	return body, nil
}
