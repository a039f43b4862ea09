// Package scraper pulls playable media URLs out of embed pages by pattern
// matching over the raw page text.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"iptv-bridge-go/pkg/httpclient"
	"iptv-bridge-go/pkg/logging"
)

// mediaURLPattern matches candidate playable URLs: http(s), no whitespace or
// quoting characters, ending in a known media extension. Shared with the
// subprocess output scanner.
var mediaURLPattern = regexp.MustCompile(`https?://[^\s"'<>]+?\.(?:m3u8|m3u|mp4|mov|mkv|avi|flv|mpd|webm|ts)\b`)

// ExtractMediaURLs returns every media URL found in text, deduplicated,
// in order of first appearance.
func ExtractMediaURLs(text string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, u := range mediaURLPattern.FindAllString(text, -1) {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// Scraper fetches embed pages and collects the media URLs they reference.
type Scraper struct {
	client *httpclient.Client
	log    *logging.Logger
}

// New creates an embed scraper on the given outbound client.
func New(client *httpclient.Client, log *logging.Logger) *Scraper {
	return &Scraper{
		client: client,
		log:    log.WithComponent("scraper"),
	}
}

// Scrape fetches each candidate embed URL in turn and returns the union of
// media URLs found, deduplicated. Fetches are sequential to bound the number
// of concurrent connections to mirror domains. A failed fetch gets exactly
// one retry on a fresh connection outside the shared pool; after that the
// URL is skipped. Scrape never fails: an empty result is the caller's signal.
func (s *Scraper) Scrape(ctx context.Context, urls []string) []string {
	seen := make(map[string]struct{})
	collected := make([]string, 0)

	for _, embedURL := range urls {
		body, err := s.fetch(ctx, embedURL, false)
		if err != nil {
			s.log.Debug("embed fetch failed, retrying off-pool", "url", embedURL, "error", err)
			body, err = s.fetch(ctx, embedURL, true)
		}
		if err != nil {
			s.log.Warn("embed fetch failed", "url", embedURL, "error", err)
			continue
		}

		found := ExtractMediaURLs(body)
		s.log.Debug("scraped embed page", "url", embedURL, "found", len(found))

		for _, u := range found {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			collected = append(collected, u)
		}
	}

	return collected
}

func (s *Scraper) fetch(ctx context.Context, embedURL string, bare bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, embedURL, nil)
	if err != nil {
		return "", err
	}

	// Browser-like headers; trivially bot-blocked origins check all three
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", embedURL)

	var resp *http.Response
	if bare {
		resp, err = s.client.DoBare(req)
	} else {
		resp, err = s.client.Do(req)
	}
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("embed page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
