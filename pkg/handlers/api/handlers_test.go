package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"iptv-bridge-go/pkg/cache"
	"iptv-bridge-go/pkg/config"
	"iptv-bridge-go/pkg/httpclient"
	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/metadata"
	"iptv-bridge-go/pkg/relay"
	"iptv-bridge-go/pkg/resolvers"
	"iptv-bridge-go/pkg/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	id       string
	requires string
	res      *resolvers.Resolved
	err      error
}

func (f *fakeProvider) ID() string          { return f.id }
func (f *fakeProvider) Label() string       { return f.id }
func (f *fakeProvider) Description() string { return "fake " + f.id }
func (f *fakeProvider) Requires() string    { return f.requires }
func (f *fakeProvider) Available() bool     { return f.requires == "" }

func (f *fakeProvider) Resolve(context.Context, resolvers.Query) (*resolvers.Resolved, error) {
	return f.res, f.err
}

type fixture struct {
	mux *http.ServeMux
}

func newFixture(t *testing.T, cfg *config.Config, catalogURL, mirrorURL string, extra ...resolvers.Provider) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 5 * time.Second
	}

	log := logging.New("error", false, nil)
	client := httpclient.New(cfg, log)
	meta := metadata.New(client, cache.New(time.Minute), "test-key", log)
	if catalogURL != "" {
		meta = meta.WithBaseURLs(catalogURL, catalogURL)
	}

	vidsrc := resolvers.NewVidsrc(meta, scraper.New(client, log), log)
	if mirrorURL != "" {
		vidsrc = vidsrc.WithMirrors([]string{mirrorURL})
	}

	providers := append([]resolvers.Provider{vidsrc}, extra...)
	pipeline := resolvers.NewPipeline(resolvers.NewRegistry(providers...), log)

	h := NewHandlers(cfg, log, client, relay.New(client, log), meta, pipeline, vidsrc)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return &fixture{mux: mux}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestChannelsFromPlaylistParam(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTM3U\n#EXTINF:-1 tvg-logo=\"http://x/logo.png\",Channel One\nhttp://x/stream1.ts\n")
	}))
	defer src.Close()

	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/channels?playlist="+url.QueryEscape(src.URL))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, float64(1), body["count"])
	assert.Equal(t, src.URL, body["playlistUrl"])

	channels := body["channels"].([]any)
	ch := channels[0].(map[string]any)
	assert.Equal(t, "Channel One", ch["name"])
	assert.Equal(t, "http://x/stream1.ts", ch["url"])
	assert.Equal(t, "/api/stream?url=http%3A%2F%2Fx%2Fstream1.ts", ch["streamUrl"])

	// streamUrl round-trips back to the raw channel URL
	wrapped, err := url.Parse(ch["streamUrl"].(string))
	require.NoError(t, err)
	assert.Equal(t, "http://x/stream1.ts", wrapped.Query().Get("url"))
}

func TestChannelsInvalidMAC(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/channels?mac=not-a-mac")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid MAC address format"}`, rec.Body.String())
}

func TestChannelsMACPortal(t *testing.T) {
	var gotPath string
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		io.WriteString(w, "#EXTINF:-1,Portal Channel\nhttp://p/1.ts\n")
	}))
	defer portal.Close()

	cfg := &config.Config{MACPortalURL: portal.URL + "/get.php?mac=%s"}

	tests := []string{"AA:BB:CC:DD:EE:FF", "AA-BB-CC-DD-EE-FF", "AABBCCDDEEFF"}
	for _, mac := range tests {
		t.Run(mac, func(t *testing.T) {
			f := newFixture(t, cfg, "", "")
			rec := f.get(t, "/api/channels?mac="+url.QueryEscape(mac))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, gotPath, "/get.php?mac=")
			assert.Equal(t, float64(1), decodeJSON(t, rec)["count"])
		})
	}
}

func TestChannelsNoSourceConfigured(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/channels")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChannelsDefaultPlaylistFallback(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "#EXTINF:-1,Default\nhttp://d/1.ts\n")
	}))
	defer src.Close()

	f := newFixture(t, &config.Config{DefaultPlaylistURL: src.URL}, "", "")
	rec := f.get(t, "/api/channels")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeJSON(t, rec)["count"])
}

func TestStreamValidation(t *testing.T) {
	f := newFixture(t, nil, "", "")

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"missing url", "/api/stream", "url parameter required"},
		{"bad scheme", "/api/stream?url=" + url.QueryEscape("ftp://x/file"), "Invalid protocol"},
		{"not a url", "/api/stream?url=%20", "Invalid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.get(t, tt.path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decodeJSON(t, rec)["error"])
		})
	}
}

func TestStreamRelaysManifest(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		io.WriteString(w, "#EXTM3U\nsegment1.ts\n")
	}))
	defer origin.Close()

	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/stream?url="+url.QueryEscape(origin.URL+"/live/index.m3u8"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "/api/stream?url=")
	assert.Contains(t, rec.Body.String(), url.QueryEscape(origin.URL+"/live/segment1.ts"))
}

func TestStreamUpstreamErrorPassthrough(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer origin.Close()

	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/stream?url="+url.QueryEscape(origin.URL+"/x.ts"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, origin.URL+"/x.ts", body["url"])
}

func TestSearchRequiresQuery(t *testing.T) {
	f := newFixture(t, nil, "", "")
	for _, path := range []string{"/api/movies/search", "/api/tv/search", "/api/anime/search"} {
		rec := f.get(t, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestSearchPassthrough(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[{"id":1,"title":"Dune"}]}`)
	}))
	defer catalog.Close()

	f := newFixture(t, nil, catalog.URL, "")
	rec := f.get(t, "/api/movies/search?q=dune")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[{"id":1,"title":"Dune"}]}`, rec.Body.String())
}

func TestTVSeasonsPassthrough(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1399", r.URL.Path)
		io.WriteString(w, `{"id":1399,"seasons":[{"season_number":1}]}`)
	}))
	defer catalog.Close()

	f := newFixture(t, nil, catalog.URL, "")
	rec := f.get(t, "/api/tv/1399/seasons")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "season_number")
}

func TestMovieWatch(t *testing.T) {
	catalog := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/438631", r.URL.Path)
		io.WriteString(w, `{"id":438631,"title":"Dune"}`)
	}))
	defer catalog.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed/movie/438631", r.URL.Path)
		io.WriteString(w, `file: "https://cdn.example.com/dune.m3u8"`)
	}))
	defer mirror.Close()

	f := newFixture(t, nil, catalog.URL, mirror.URL)
	rec := f.get(t, "/api/movies/438631/watch")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Dune", body["title"])
	assert.Equal(t, "/api/stream?url="+url.QueryEscape("https://cdn.example.com/dune.m3u8"), body["streamUrl"])
	assert.Equal(t, mirror.URL+"/embed/movie/438631", body["embedUrl"])
}

func TestVODProviders(t *testing.T) {
	f := newFixture(t, nil, "", "", &fakeProvider{id: "cli", requires: "missing-binary"})
	rec := f.get(t, "/api/vod/providers")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	providers := body["providers"].([]any)
	require.Len(t, providers, 2)

	first := providers[0].(map[string]any)
	assert.Equal(t, "vidsrc", first["id"])
	assert.Equal(t, true, first["available"])

	second := providers[1].(map[string]any)
	assert.Equal(t, "cli", second["id"])
	assert.Equal(t, false, second["available"])
}

func TestVODPlayUnknownProvider(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/vod/play?provider=bogus&query=test")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Unknown provider"}`, rec.Body.String())
}

func TestVODPlayMissingQuery(t *testing.T) {
	f := newFixture(t, nil, "", "")
	rec := f.get(t, "/api/vod/play?provider=vidsrc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVODPlayUnavailableProvider(t *testing.T) {
	f := newFixture(t, nil, "", "", &fakeProvider{id: "cli", requires: "missing-binary"})
	rec := f.get(t, "/api/vod/play?provider=cli&query=test")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeJSON(t, rec)["error"], "missing-binary")
}

func TestVODPlaySuccess(t *testing.T) {
	prov := &fakeProvider{id: "fake", res: &resolvers.Resolved{
		Title: "Dune",
		URLs:  []string{"https://cdn.example.com/a.m3u8", "https://cdn.example.com/b.mp4"},
	}}
	f := newFixture(t, nil, "", "", prov)
	rec := f.get(t, "/api/vod/play?provider=fake&query=dune")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "fake", body["provider"])
	assert.Equal(t, "Dune", body["title"])
	assert.Equal(t, "https://cdn.example.com/a.m3u8", body["url"])
	assert.Equal(t, "/api/stream?url="+url.QueryEscape("https://cdn.example.com/a.m3u8"), body["streamUrl"])
	assert.Len(t, body["alternatives"].([]any), 2)
}

func TestVODPlayResolutionFailure(t *testing.T) {
	prov := &fakeProvider{id: "fake", err: resolvers.ErrNoPlayableURLs}
	f := newFixture(t, nil, "", "", prov)
	rec := f.get(t, "/api/vod/play?provider=fake&query=dune")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
