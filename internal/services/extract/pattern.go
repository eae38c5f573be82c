package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
)

var (
	tableRe  = regexp.MustCompile(`(?is)<table[^>]*>.*?</table>`)
	rowRe    = regexp.MustCompile(`(?is)<tr[^>]*>.*?</tr>`)
	cellRe   = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']*)["']`)

	entityReplacer = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">")
)

// PatternExtractor finds tables, rows and cells with regular expressions.
// Nested tables are not supported.
type PatternExtractor struct {
	base   *url.URL
	logger *common.Logger
}

// NewPatternExtractor returns a pattern extractor resolving links against base.
func NewPatternExtractor(base *url.URL, logger *common.Logger) *PatternExtractor {
	return &PatternExtractor{base: base, logger: logger}
}

// Name returns the strategy name.
func (e *PatternExtractor) Name() string { return StrategyPattern }

// Extract parses markup into a DividendSet with enrichment fields unset.
func (e *PatternExtractor) Extract(markup string) models.DividendSet {
	c := newCollector(e.base, e.logger)

	tables := tableRe.FindAllString(markup, -1)
	for ti, table := range tables {
		for _, tr := range rowRe.FindAllString(table, -1) {
			matches := cellRe.FindAllStringSubmatch(tr, -1)
			if len(matches) == 0 {
				continue
			}
			r := row{cells: make([]string, len(matches))}
			for i, m := range matches {
				r.cells[i] = cleanCell(m[1])
			}
			if a := anchorRe.FindStringSubmatch(matches[0][1]); a != nil {
				r.href = a[1]
			}
			c.add(ti, r)
		}
	}

	return c.result(e.Name(), len(tables))
}

// cleanCell strips tags, decodes the four common entities and trims.
func cleanCell(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	return strings.TrimSpace(s)
}
