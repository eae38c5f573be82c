// Package app wires configuration, storage, clients and services into the
// shared core used by cmd/dividendos-server.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/dividendos/internal/clients/eleconomista"
	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/services/dividend"
	"github.com/bobmcallan/dividendos/internal/services/enrich"
	"github.com/bobmcallan/dividendos/internal/services/extract"
	"github.com/bobmcallan/dividendos/internal/services/jobtracker"
	"github.com/bobmcallan/dividendos/internal/storage/cachefs"
	"github.com/bobmcallan/dividendos/internal/storage/filestore"
)

// App holds all initialized services and clients.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Files           *filestore.Store
	Cache           *cachefs.Store
	Tracker         *jobtracker.Tracker
	JobHub          *jobtracker.JobWSHub
	Client          *eleconomista.Client
	DividendService *dividend.Service
	StartupTime     time.Time

	scheduler *cron.Cron
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: the given path, DIVIDENDOS_CONFIG,
// dividendos.toml next to the binary, then config/dividendos.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("DIVIDENDOS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "dividendos.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/dividendos.toml"
		}
	}
	return configPath
}

// NewApp loads configuration from configPath (resolved by ResolveConfigPath)
// and initializes storage, the job tracker, the scraping client and the
// dividend service.
func NewApp(configPath string) (*App, error) {
	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewAppWithConfig(config, common.NewLoggerFromConfig(config.Logging))
}

// NewAppWithConfig initializes the app from an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	files, err := filestore.New(logger, config.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if n := files.PurgeTemp(); n > 0 {
		logger.Info().Int("files", n).Msg("Removed leftover temp files")
	}

	hub := jobtracker.NewJobWSHub(logger)
	go hub.Run()

	tracker := jobtracker.NewTracker(logger, files, hub)
	if tracker.Recover() {
		logger.Warn().Msg("Previous update was interrupted and has been marked failed")
	}

	cache := cachefs.NewStore(logger, files)

	client := eleconomista.NewClient(
		eleconomista.WithBaseURL(config.Scraper.BaseURL),
		eleconomista.WithListingPath(config.Scraper.ListingPath),
		eleconomista.WithTimeout(config.Scraper.GetTimeout()),
		eleconomista.WithRateLimit(config.Scraper.RateLimit),
		eleconomista.WithLogger(logger),
	)

	extractor, err := extract.New(config.Scraper.Strategy, client.BaseURL(), logger)
	if err != nil {
		hub.Stop()
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	enricher := enrich.NewEnricher(client, logger, enrich.WithDelay(config.Scraper.GetDelay()))

	service := dividend.NewService(logger, client, extractor, enricher, cache, tracker, dividend.Config{
		TTL:            config.Cache.GetTTL(),
		SampleFallback: config.Scraper.SampleFallback,
	})

	a := &App{
		Config:          config,
		Logger:          logger,
		Files:           files,
		Cache:           cache,
		Tracker:         tracker,
		JobHub:          hub,
		Client:          client,
		DividendService: service,
		StartupTime:     startupStart,
	}

	logger.Info().
		Str("data_dir", files.Dir()).
		Str("listing_url", client.ListingURL()).
		Str("extractor", extractor.Name()).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, cancel running jobs, stop websocket hub.
func (a *App) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	if a.DividendService != nil {
		a.DividendService.Close()
	}
	if a.JobHub != nil {
		a.JobHub.Stop()
		a.JobHub = nil
	}
}
