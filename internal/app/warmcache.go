package app

import (
	"os"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/services/dividend"
)

type cacheProbe interface {
	backgroundUpdater
	HasCachedData() bool
}

// warmCache starts a background refresh on startup when nothing is cached
// yet, so the first dashboard load has data. It reports whether a job was
// started.
func warmCache(svc cacheProbe, logger *common.Logger) bool {
	if os.Getenv("DIVIDENDOS_WARM_CACHE") == "off" {
		logger.Info().Msg("Warm cache: disabled via DIVIDENDOS_WARM_CACHE=off")
		return false
	}

	if svc.HasCachedData() {
		logger.Info().Msg("Warm cache: cached calendar present, skipping")
		return false
	}

	res := svc.StartBackgroundUpdate()
	if !res.Accepted {
		logger.Info().Msg("Warm cache: update already running")
		return false
	}

	logger.Info().Msg("Warm cache: started initial update")
	return true
}

// StartWarmCache runs the startup refresh check when enabled.
func (a *App) StartWarmCache() {
	if !a.Config.Scheduler.WarmOnStart {
		return
	}
	warmCache(a.DividendService, a.Logger)
}

var _ cacheProbe = (*dividend.Service)(nil)
