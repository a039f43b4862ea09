// Package relay proxies media streams and HLS manifests through the local
// server so browsers never contact origin servers directly.
package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"iptv-bridge-go/pkg/httpclient"
	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/urlutil"
)

// Validation failures, mapped to 400 by the HTTP layer.
var (
	ErrMissingURL      = errors.New("url parameter required")
	ErrInvalidURL      = errors.New("Invalid URL")
	ErrInvalidProtocol = errors.New("Invalid protocol")
)

// UpstreamError reports a non-2xx response from the origin.
type UpstreamError struct {
	Status int
	URL    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.Status, e.URL)
}

// ProxyError reports a transport-level fetch failure with a stable code.
type ProxyError struct {
	Code string
	Err  error
}

func (e *ProxyError) Error() string {
	return fmt.Sprintf("proxy failure (%s): %v", e.Code, e.Err)
}

func (e *ProxyError) Unwrap() error { return e.Err }

// Content types that mark an HLS manifest. Manifests are buffered because
// every line may need rewriting; anything else is piped byte-for-byte.
var manifestContentTypes = []string{
	"application/vnd.apple.mpegurl",
	"application/x-mpegurl",
	"application/octet-stream",
}

// Result is a relayed upstream response ready to serialize.
type Result struct {
	ContentType string
	Headers     map[string]string
	Body        io.ReadCloser
	Status      int
}

// Relay fetches a validated target and either rewrites it as a manifest or
// pipes it through unmodified.
type Relay struct {
	client *httpclient.Client
	log    *logging.Logger
}

// New creates a stream relay on the given outbound client.
func New(client *httpclient.Client, log *logging.Logger) *Relay {
	return &Relay{
		client: client,
		log:    log.WithComponent("relay"),
	}
}

// ValidateTarget checks that raw is an absolute http(s) URL.
func ValidateTarget(raw string) error {
	if raw == "" {
		return ErrMissingURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidProtocol
	}
	return nil
}

// Fetch relays the target URL. The caller must have validated it.
func (r *Relay) Fetch(ctx context.Context, target string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &ProxyError{Code: httpclient.CodeUnknown, Err: err}
	}

	// Many stream origins reject refererless requests
	if origin := urlutil.Origin(target); origin != "" {
		req.Header.Set("Referer", origin+"/")
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		code := httpclient.ClassifyError(err)
		// Timeouts and DNS misses are routine for dead playlist entries;
		// keep them quieter than real transport errors
		if code == httpclient.CodeTimeout || code == httpclient.CodeNotFound {
			r.log.Warn("upstream fetch failed", "url", target, "code", code)
		} else {
			r.log.Error("upstream fetch failed", "url", target, "code", code, "error", err)
		}
		return nil, &ProxyError{Code: code, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		r.log.Warn("upstream non-success", "url", target, "status", resp.StatusCode)
		return nil, &UpstreamError{Status: resp.StatusCode, URL: target}
	}

	contentType := resp.Header.Get("Content-Type")
	if isManifestContentType(contentType) {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &ProxyError{Code: httpclient.CodeUnknown, Err: err}
		}

		rewritten := Rewrite(string(body), target, WrapURL)
		return &Result{
			ContentType: "application/vnd.apple.mpegurl",
			Headers: map[string]string{
				"Cache-Control": "no-cache, no-store, must-revalidate",
			},
			Body:   io.NopCloser(bytes.NewReader([]byte(rewritten))),
			Status: http.StatusOK,
		}, nil
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Result{
		ContentType: contentType,
		Headers: map[string]string{
			"Cache-Control": "no-cache, no-store, must-revalidate",
		},
		Body:   resp.Body,
		Status: resp.StatusCode,
	}, nil
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func isManifestContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = strings.TrimSpace(ct[:idx])
	}
	for _, m := range manifestContentTypes {
		if ct == m {
			return true
		}
	}
	return false
}
