// Package app provides the main application setup and dependency injection.
package app

import (
	"iptv-bridge-go/pkg/cache"
	"iptv-bridge-go/pkg/config"
	"iptv-bridge-go/pkg/handlers/api"
	"iptv-bridge-go/pkg/httpclient"
	"iptv-bridge-go/pkg/logging"
	"iptv-bridge-go/pkg/metadata"
	"iptv-bridge-go/pkg/relay"
	"iptv-bridge-go/pkg/resolvers"
	"iptv-bridge-go/pkg/scraper"
	"iptv-bridge-go/pkg/server"
	"iptv-bridge-go/pkg/subproc"
)

// App is the main application container.
type App struct {
	Config *config.Config
	Log    *logging.Logger
	Server *server.Server
}

// New creates and initializes the application.
func New() (*App, error) {
	cfg := config.Load()

	log := logging.New(cfg.LogLevel, cfg.LogJSON, nil)
	log.Info("initializing IPTV bridge", "port", cfg.Port, "log_level", cfg.LogLevel)
	if cfg.TLSInsecure {
		log.Warn("TLS certificate verification disabled for all outbound connections")
	}

	client := httpclient.New(cfg, log)
	metaCache := cache.New(cfg.CacheTTL)
	meta := metadata.New(client, metaCache, cfg.TMDBAPIKey, log)
	if cfg.TMDBAPIKey == "" {
		log.Warn("TMDB_API_KEY not set, movie/tv endpoints will report not configured")
	}

	runner := subproc.NewRunner(log)
	embedScraper := scraper.New(client, log)

	vidsrc := resolvers.NewVidsrc(meta, embedScraper, log)
	lobster := resolvers.NewLobster(runner, cfg.LobsterPath, cfg.SubprocessTimeout, vidsrc, log)
	anicli := resolvers.NewAniCLI(runner, cfg.AniCLIPath, cfg.SubprocessTimeout, log)

	registry := resolvers.NewRegistry(vidsrc, lobster, anicli)
	for _, p := range registry.All() {
		log.Info("registered provider", "id", p.ID(), "available", p.Available())
	}
	pipeline := resolvers.NewPipeline(registry, log)

	srv := server.New(cfg, log)
	handlers := api.NewHandlers(cfg, log, client, relay.New(client, log), meta, pipeline, vidsrc)
	handlers.RegisterRoutes(srv.Router())

	return &App{
		Config: cfg,
		Log:    log,
		Server: srv,
	}, nil
}

// Run starts the application.
func (a *App) Run() error {
	a.Log.Info("starting IPTV bridge server", "port", a.Config.Port)
	return a.Server.Start()
}
