// Package enrich completes dividend records with analyst data scraped from
// each company's detail page.
package enrich

import (
	"context"
	"net/url"
	"regexp"
	"time"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/interfaces"
	"github.com/bobmcallan/dividendos/internal/models"
)

// DefaultDelay is the pause after each record.
const DefaultDelay = time.Second

// detailPathRe matches /empresa/<slug> and any page below it.
var detailPathRe = regexp.MustCompile(`^/empresa/[^/?#]+(/|$)`)

// Enricher fetches detail pages one at a time with a fixed pause between
// records.
type Enricher struct {
	fetcher interfaces.PageFetcher
	logger  *common.Logger
	delay   time.Duration
}

// Option configures the enricher
type Option func(*Enricher)

// WithDelay sets the pause taken after every record. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(e *Enricher) {
		e.delay = d
	}
}

// NewEnricher returns an enricher using fetcher for detail pages.
func NewEnricher(fetcher interfaces.PageFetcher, logger *common.Logger, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher: fetcher,
		logger:  logger,
		delay:   DefaultDelay,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns a copy of records with recommendation, prices and
// potential filled in where the detail page provides them. progress is
// called before each record with offset+i. Fetch failures leave the
// record's placeholders in place. If ctx is cancelled the remaining
// records are returned unenriched.
func (e *Enricher) Enrich(ctx context.Context, records []models.DividendRecord, offset int, progress interfaces.ProgressFunc) []models.DividendRecord {
	out := make([]models.DividendRecord, len(records))
	copy(out, records)

	for i := range out {
		if ctx.Err() != nil {
			e.logger.Warn().Int("remaining", len(out)-i).Msg("Enrichment interrupted")
			break
		}
		if progress != nil {
			progress(offset+i, out[i].Company)
		}

		e.enrichOne(ctx, &out[i])

		sleep(ctx, e.delay)
	}
	return out
}

func (e *Enricher) enrichOne(ctx context.Context, rec *models.DividendRecord) {
	if !IsDetailLink(rec.DetailLink) {
		e.logger.Debug().Str("company", rec.Company).Str("link", rec.DetailLink).Msg("No detail page, skipping enrichment")
		return
	}

	start := time.Now()
	page, err := e.fetcher.Fetch(ctx, rec.DetailLink)
	if err != nil {
		e.logger.Warn().Err(err).Str("company", rec.Company).Msg("Detail page fetch failed, keeping placeholders")
		return
	}

	d := ParseDetail(page)
	rec.Recommendation = &d.Recommendation
	rec.TargetPrice = d.TargetPrice
	rec.PreviousPrice = d.PreviousPrice
	rec.PotentialPct = Potential(d.TargetPrice, d.PreviousPrice)

	e.logger.Debug().
		Str("company", rec.Company).
		Str("recommendation", rec.Recommendation.String()).
		Int("analysts", rec.Recommendation.Total()).
		Str("target", rec.TargetPrice).
		Str("previous", rec.PreviousPrice).
		Str("potential", rec.PotentialPct).
		Dur("elapsed", time.Since(start)).
		Msg("Company enriched")
}

// IsDetailLink reports whether link points at a company detail page.
func IsDetailLink(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return false
	}
	return detailPathRe.MatchString(u.Path)
}

// sleep waits for d or until ctx is done. It reports whether the full
// pause elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
