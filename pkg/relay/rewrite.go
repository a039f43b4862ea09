package relay

import (
	"net/url"
	"strings"

	"iptv-bridge-go/pkg/urlutil"
)

// WrapURL returns the same-origin relay URL for a target. Playback always
// flows back through /api/stream.
func WrapURL(target string) string {
	return "/api/stream?url=" + url.QueryEscape(target)
}

// Rewrite transforms an HLS manifest so every reference routes through the
// relay. Tag lines, blank lines and inline-data lines pass through verbatim;
// everything else is resolved against sourceURL and replaced with wrap(abs).
// Line order and count are preserved exactly: tag-to-segment adjacency is
// load-bearing in HLS.
func Rewrite(body, sourceURL string, wrap func(string) string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, len(lines))

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "data:") {
			out[i] = line
			continue
		}
		out[i] = wrap(urlutil.ResolveURL(trimmed, sourceURL))
	}

	return strings.Join(out, "\n")
}
