package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/bobmcallan/dividendos/internal/common"
	"github.com/bobmcallan/dividendos/internal/models"
)

// MarkupExtractor parses the page into a document and reads table rows
// with selectors. Rows of nested tables belong to the nested table only.
type MarkupExtractor struct {
	base   *url.URL
	logger *common.Logger
}

// NewMarkupExtractor returns a selector-based extractor resolving links against base.
func NewMarkupExtractor(base *url.URL, logger *common.Logger) *MarkupExtractor {
	return &MarkupExtractor{base: base, logger: logger}
}

// Name returns the strategy name.
func (e *MarkupExtractor) Name() string { return StrategyMarkup }

// Extract parses markup into a DividendSet with enrichment fields unset.
// Unparseable input yields an empty set.
func (e *MarkupExtractor) Extract(markup string) models.DividendSet {
	c := newCollector(e.base, e.logger)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to parse listing markup")
		return c.result(e.Name(), 0)
	}

	tables := doc.Find("table")
	tables.Each(func(ti int, table *goquery.Selection) {
		ownRows(table).Each(func(_ int, tr *goquery.Selection) {
			r := readRow(tr)
			if len(r.cells) == 0 {
				return
			}
			c.add(ti, r)
		})
	})

	return c.result(e.Name(), tables.Length())
}

// ownRows returns the rows whose nearest table is table, including those
// under thead, tbody and tfoot.
func ownRows(table *goquery.Selection) *goquery.Selection {
	return table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})
}

// readRow collects the text of each td cell and the first link in the
// first cell. Header cells are skipped.
func readRow(tr *goquery.Selection) row {
	var r row
	tr.ChildrenFiltered("td").Each(func(i int, td *goquery.Selection) {
		r.cells = append(r.cells, cellText(td))
		if i == 0 {
			r.href = firstHref(td)
		}
	})
	return r
}

func cellText(td *goquery.Selection) string {
	return strings.TrimSpace(strings.ReplaceAll(td.Text(), "\u00a0", " "))
}

func firstHref(td *goquery.Selection) string {
	link := td.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return a.AttrOr("href", "") != ""
	}).First()
	return link.AttrOr("href", "")
}
