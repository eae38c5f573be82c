// Package extract pulls dividend calendar rows out of the listing page.
//
// The page carries two tables: the first lists confirmed dividends, the
// second forecast ones. Any further tables are ignored. Two strategies are
// provided behind interfaces.Extractor: PatternExtractor works on the raw
// markup with regular expressions, MarkupExtractor walks a parsed HTML tree.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/interfaces"
	"github.com/bobmcallan/dividendos/internal/models"
)

// Strategy names accepted by New.
const (
	StrategyPattern = "pattern"
	StrategyMarkup  = "markup"
)

// minCells is the number of cells a row needs to be a dividend record:
// company, date, amount and yield.
const minCells = 4

// New returns the extractor for strategy, resolving links against origin.
func New(strategy, origin string, logger *common.Logger) (interfaces.Extractor, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid site origin %q: %w", origin, err)
	}
	switch strategy {
	case StrategyPattern, "":
		return NewPatternExtractor(base, logger), nil
	case StrategyMarkup:
		return NewMarkupExtractor(base, logger), nil
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}
}

// row is one table row reduced to cleaned cell text plus the first link
// found in the company cell.
type row struct {
	cells []string
	href  string
}

// collector assigns rows to groups by table index and drops noise and
// duplicates.
type collector struct {
	base   *url.URL
	set    models.DividendSet
	seen   [2]map[string]bool
	logger *common.Logger
}

func newCollector(base *url.URL, logger *common.Logger) *collector {
	return &collector{
		base:   base,
		set:    models.NewDividendSet(),
		seen:   [2]map[string]bool{{}, {}},
		logger: logger,
	}
}

func (c *collector) add(table int, r row) {
	if table > 1 {
		return
	}
	if len(r.cells) < minCells {
		return
	}
	company, date := r.cells[0], r.cells[1]
	if company == "" || date == "" {
		return
	}

	key := company + "\x00" + date
	if c.seen[table][key] {
		c.logger.Debug().Str("company", company).Str("date", date).Msg("Skipping duplicate row")
		return
	}
	c.seen[table][key] = true

	rec := models.NewDividendRecord(company, date, r.cells[2], r.cells[3], c.resolve(r.href))
	if table == 0 {
		c.set.Confirmed = append(c.set.Confirmed, rec)
	} else {
		c.set.Forecast = append(c.set.Forecast, rec)
	}
}

// resolve turns an href into an absolute URL against the site origin.
func (c *collector) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return c.base.ResolveReference(ref).String()
}

func (c *collector) result(strategy string, tables int) models.DividendSet {
	c.logger.Info().
		Str("strategy", strategy).
		Int("tables", tables).
		Int("confirmed", len(c.set.Confirmed)).
		Int("forecast", len(c.set.Forecast)).
		Msg("Dividend calendar extracted")
	return c.set
}
