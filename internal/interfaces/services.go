// Package interfaces defines the contracts between dividendos packages
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/dividendos/internal/models"
)

// PageFetcher retrieves page markup from the dividend source site.
type PageFetcher interface {
	// Fetch returns the body of url, or an error on network failure,
	// timeout or a non-2xx status.
	Fetch(ctx context.Context, url string) (string, error)

	// FetchListing returns the dividend calendar page.
	FetchListing(ctx context.Context) (string, error)
}

// Extractor turns listing page markup into grouped dividend records.
type Extractor interface {
	Name() string
	Extract(markup string) models.DividendSet
}

// ProgressFunc is called before each record is enriched with the global
// index of that record and its company name.
type ProgressFunc func(done int, label string)

// Enricher fills in recommendation and price fields from detail pages.
type Enricher interface {
	Enrich(ctx context.Context, records []models.DividendRecord, offset int, progress ProgressFunc) []models.DividendRecord
}

// CacheStore persists the last successful DividendSet.
type CacheStore interface {
	Load() *models.CacheEnvelope
	Save(set models.DividendSet, timestamp time.Time) bool
	Info() models.CacheInfo
	Clear() bool
}

// JobTracker records the refresh job's lifecycle.
type JobTracker interface {
	TryStart() bool
	Start(total int) error
	ReportProgress(done int, label string) error
	Complete() error
	Fail(message string) error
	Read() models.JobStatus
}

// DividendService is the surface the HTTP layer depends on.
type DividendService interface {
	GetDividends(ctx context.Context, force bool) *models.DividendsResult
	StartBackgroundUpdate() *models.BackgroundUpdateResult
	GetJobStatus() models.JobStatus
	GetCacheInfo() models.CacheInfo
	ClearCache() bool
}
