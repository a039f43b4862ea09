// Package api provides HTTP handlers for the bridge API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"iptv-bridge-go/internal/metrics"
	"iptv-bridge-go/pkg/config"
	"iptv-bridge-go/pkg/httpclient"
	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/metadata"
	"iptv-bridge-go/pkg/playlist"
	"iptv-bridge-go/pkg/relay"
	"iptv-bridge-go/pkg/resolvers"
)

// Handlers contains all API handlers.
type Handlers struct {
	cfg      *config.Config
	log      *logging.Logger
	client   *httpclient.Client
	relay    *relay.Relay
	meta     *metadata.Client
	pipeline *resolvers.Pipeline
	vidsrc   *resolvers.VidsrcProvider
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *config.Config, log *logging.Logger, client *httpclient.Client, rl *relay.Relay, meta *metadata.Client, pipeline *resolvers.Pipeline, vidsrc *resolvers.VidsrcProvider) *Handlers {
	return &Handlers{
		cfg:      cfg,
		log:      log.WithComponent("api"),
		client:   client,
		relay:    rl,
		meta:     meta,
		pipeline: pipeline,
		vidsrc:   vidsrc,
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleIndex)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/channels", h.handleChannels)
	mux.HandleFunc("GET /api/stream", h.handleStream)

	mux.HandleFunc("GET /api/movies/search", h.handleMovieSearch)
	mux.HandleFunc("GET /api/movies/popular", h.handleMoviePopular)
	mux.HandleFunc("GET /api/movies/{id}/watch", h.handleMovieWatch)

	mux.HandleFunc("GET /api/tv/search", h.handleTVSearch)
	mux.HandleFunc("GET /api/tv/popular", h.handleTVPopular)
	mux.HandleFunc("GET /api/tv/{id}/seasons", h.handleTVSeasons)
	mux.HandleFunc("GET /api/tv/{id}/watch", h.handleTVWatch)

	mux.HandleFunc("GET /api/anime/search", h.handleAnimeSearch)
	mux.HandleFunc("GET /api/anime/popular", h.handleAnimePopular)
	mux.HandleFunc("GET /api/anime/{id}/episodes", h.handleAnimeEpisodes)
	mux.HandleFunc("GET /api/anime/{id}/watch", h.handleAnimeWatch)

	mux.HandleFunc("GET /api/vod/providers", h.handleVODProviders)
	mux.HandleFunc("GET /api/vod/play", h.handleVODPlay)
}

func (h *Handlers) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>IPTV Bridge</title></head>
<body>
<h1>IPTV Bridge</h1>
<ul>
<li><code>GET /api/health</code></li>
<li><code>GET /api/channels?playlist=&lt;url&gt;|mac=&lt;addr&gt;</code></li>
<li><code>GET /api/stream?url=&lt;url&gt;</code></li>
<li><code>GET /api/movies/search?q=</code>, <code>/api/movies/popular</code>, <code>/api/movies/{id}/watch</code></li>
<li><code>GET /api/tv/search?q=</code>, <code>/api/tv/popular</code>, <code>/api/tv/{id}/seasons</code>, <code>/api/tv/{id}/watch</code></li>
<li><code>GET /api/anime/search?q=</code>, <code>/api/anime/popular</code>, <code>/api/anime/{id}/episodes</code>, <code>/api/anime/{id}/watch</code></li>
<li><code>GET /api/vod/providers</code>, <code>/api/vod/play?provider=&amp;query=</code></li>
</ul>
</body>
</html>`)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// MAC address forms accepted by the portal lookup: colon-separated,
// hyphen-separated, or 12 bare hex digits.
var macPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`),
	regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}-){5}[0-9A-Fa-f]{2}$`),
	regexp.MustCompile(`^[0-9A-Fa-f]{12}$`),
}

func isValidMAC(mac string) bool {
	for _, p := range macPatterns {
		if p.MatchString(mac) {
			return true
		}
	}
	return false
}

func (h *Handlers) handleChannels(w http.ResponseWriter, r *http.Request) {
	playlistURL := r.URL.Query().Get("playlist")
	mac := r.URL.Query().Get("mac")

	if playlistURL == "" && mac != "" {
		if !isValidMAC(mac) {
			h.writeError(w, http.StatusBadRequest, "Invalid MAC address format")
			return
		}
		if h.cfg.MACPortalURL == "" {
			h.writeError(w, http.StatusInternalServerError, "MAC portal URL not configured")
			return
		}
		playlistURL = fmt.Sprintf(h.cfg.MACPortalURL, url.QueryEscape(mac))
	}
	if playlistURL == "" {
		playlistURL = h.cfg.DefaultPlaylistURL
	}
	if playlistURL == "" {
		h.writeError(w, http.StatusBadRequest, "playlist parameter required")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, playlistURL, nil)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid URL")
		return
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.WithError(err).Warn("playlist fetch failed", "url", playlistURL)
		h.writeError(w, http.StatusBadGateway, "Failed to fetch playlist")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.writeJSON(w, resp.StatusCode, map[string]any{
			"error": fmt.Sprintf("Playlist source returned %d", resp.StatusCode),
			"url":   playlistURL,
		})
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		h.writeError(w, http.StatusBadGateway, "Failed to read playlist")
		return
	}

	channels := playlist.Parse(string(body), relay.WrapURL)
	if channels == nil {
		channels = []playlist.Channel{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"playlistUrl": playlistURL,
		"count":       len(channels),
		"channels":    channels,
	})
}

func (h *Handlers) handleStream(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if err := relay.ValidateTarget(target); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.relay.Fetch(r.Context(), target)
	if err != nil {
		var upstream *relay.UpstreamError
		if errors.As(err, &upstream) {
			h.writeJSON(w, upstream.Status, map[string]any{
				"error": fmt.Sprintf("Upstream returned %d", upstream.Status),
				"url":   target,
			})
			return
		}
		var proxyErr *relay.ProxyError
		if errors.As(err, &proxyErr) {
			metrics.RelayUpstreamErrors.WithLabelValues(proxyErr.Code).Inc()
			h.writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":   "Proxy failure",
				"code":    proxyErr.Code,
				"message": proxyErr.Err.Error(),
			})
			return
		}
		h.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	defer res.Body.Close()

	w.Header().Set("Content-Type", res.ContentType)
	for k, v := range res.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(res.Status)
	io.Copy(w, res.Body)
}

// catalogCall funnels every metadata pass-through endpoint through one error
// translation.
func (h *Handlers) catalogCall(w http.ResponseWriter, body json.RawMessage, err error) {
	if err != nil {
		if errors.Is(err, metadata.ErrNotConfigured) {
			h.writeError(w, http.StatusInternalServerError, metadata.ErrNotConfigured.Error())
			return
		}
		var statusErr *metadata.StatusError
		if errors.As(err, &statusErr) {
			h.writeError(w, statusErr.Status, fmt.Sprintf("Catalog returned %d", statusErr.Status))
			return
		}
		h.log.WithError(err).Warn("catalog call failed")
		h.writeError(w, http.StatusBadGateway, "Catalog unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (h *Handlers) requireQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query().Get("q")
	if q == "" {
		h.writeError(w, http.StatusBadRequest, "q parameter required")
		return "", false
	}
	return q, true
}

func (h *Handlers) handleMovieSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := h.requireQuery(w, r)
	if !ok {
		return
	}
	body, err := h.meta.SearchMovies(r.Context(), q)
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleMoviePopular(w http.ResponseWriter, r *http.Request) {
	body, err := h.meta.PopularMovies(r.Context())
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleTVSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := h.requireQuery(w, r)
	if !ok {
		return
	}
	body, err := h.meta.SearchTV(r.Context(), q)
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleTVPopular(w http.ResponseWriter, r *http.Request) {
	body, err := h.meta.PopularTV(r.Context())
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleTVSeasons(w http.ResponseWriter, r *http.Request) {
	body, err := h.meta.TVSeasons(r.Context(), r.PathValue("id"))
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleAnimeSearch(w http.ResponseWriter, r *http.Request) {
	q, ok := h.requireQuery(w, r)
	if !ok {
		return
	}
	body, err := h.meta.SearchAnime(r.Context(), q)
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleAnimePopular(w http.ResponseWriter, r *http.Request) {
	body, err := h.meta.PopularAnime(r.Context())
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleAnimeEpisodes(w http.ResponseWriter, r *http.Request) {
	body, err := h.meta.AnimeEpisodes(r.Context(), r.PathValue("id"))
	h.catalogCall(w, body, err)
}

func (h *Handlers) handleMovieWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	title, err := h.meta.MovieTitle(r.Context(), id)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	res, err := h.vidsrc.ResolveID(r.Context(), "movie", id, 1, 1)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	h.writeWatch(w, title, res)
}

func (h *Handlers) handleTVWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	season := queryInt(r, "season", 1)
	episode := queryInt(r, "episode", 1)

	title, err := h.meta.TVTitle(r.Context(), id)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	res, err := h.vidsrc.ResolveID(r.Context(), "tv", id, season, episode)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	h.writeWatch(w, title, res)
}

func (h *Handlers) handleAnimeWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	episode := queryInt(r, "episode", 1)

	// The anime catalog has no embed ids of its own; resolve the display
	// title and feed it through the scraping provider's search path.
	title, err := h.meta.AnimeTitle(r.Context(), id)
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	res, err := h.vidsrc.Resolve(r.Context(), resolvers.Query{
		Text:      title,
		Episode:   episode,
		MediaType: "tv",
	})
	if err != nil {
		h.writeResolveError(w, err)
		return
	}

	h.writeWatch(w, title, res)
}

func (h *Handlers) writeWatch(w http.ResponseWriter, title string, res *resolvers.Resolved) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"title":         title,
		"streamUrl":     relay.WrapURL(res.URLs[0]),
		"embedUrl":      res.EmbedURL,
		"alternateUrls": res.URLs,
	})
}

func (h *Handlers) handleVODProviders(w http.ResponseWriter, r *http.Request) {
	type providerInfo struct {
		ID          string `json:"id"`
		Label       string `json:"label"`
		Description string `json:"description"`
		Available   bool   `json:"available"`
	}

	providers := make([]providerInfo, 0)
	for _, p := range h.pipeline.Registry().All() {
		providers = append(providers, providerInfo{
			ID:          p.ID(),
			Label:       p.Label(),
			Description: p.Description(),
			Available:   p.Available(),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}

func (h *Handlers) handleVODPlay(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter required")
		return
	}

	providerID := r.URL.Query().Get("provider")
	if providerID == "" {
		providerID = "vidsrc"
	}

	res, err := h.pipeline.Play(r.Context(), providerID, resolvers.Query{
		Text:      query,
		Episode:   queryInt(r, "episode", 0),
		Quality:   r.URL.Query().Get("quality"),
		MediaType: r.URL.Query().Get("type"),
	})
	if err != nil {
		metrics.ResolutionsTotal.WithLabelValues(providerID, "error").Inc()
		h.writeResolveError(w, err)
		return
	}
	metrics.ResolutionsTotal.WithLabelValues(providerID, "success").Inc()

	primary := res.URLs[0]
	h.writeJSON(w, http.StatusOK, map[string]any{
		"provider":     providerID,
		"title":        res.Title,
		"url":          primary,
		"streamUrl":    relay.WrapURL(primary),
		"alternatives": res.URLs,
	})
}

// writeResolveError translates resolution failures to their HTTP statuses:
// unknown provider 404, missing dependency 400, everything else 500.
func (h *Handlers) writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, resolvers.ErrUnknownProvider):
		h.writeError(w, http.StatusNotFound, "Unknown provider")
	case errors.Is(err, metadata.ErrNotConfigured):
		h.writeError(w, http.StatusInternalServerError, metadata.ErrNotConfigured.Error())
	default:
		var unavailable *resolvers.UnavailableError
		if errors.As(err, &unavailable) {
			h.writeError(w, http.StatusBadRequest, unavailable.Error())
			return
		}
		h.log.WithError(err).Warn("resolution failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("response encoding failed")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
