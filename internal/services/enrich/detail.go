package enrich

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/dividendos/internal/models"
)

// Detail is what a company page contributes to a dividend record.
type Detail struct {
	Recommendation models.Recommendation
	TargetPrice    string
	PreviousPrice  string
}

// headingCell matches the text of the cell following the one labelled heading.
func headingCell(heading string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)data-heading="` + regexp.QuoteMeta(heading) + `"[^>]*>.*?<td[^>]*>([^<]+)</td>`)
}

var (
	buyRe          = headingCell("Recomendaciones de compra")
	buyModerateRe  = headingCell("Recomendaciones de compra moderada")
	holdRe         = headingCell("Recomendaciones de mantener")
	sellModerateRe = headingCell("Recomendaciones de venta moderada")
	sellRe         = headingCell("Recomendaciones de venta")

	// Tried in order; the first plausible price wins.
	targetPriceRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)data-heading="Precio objetivo"[^>]*>.*?<td[^>]*>.*?<span[^>]*class="[^"]*h4[^"]*"[^>]*>([^<]+)</span>`),
		regexp.MustCompile(`(?is)data-heading="Precio objetivo"[^>]*>.*?<td[^>]*>.*?<span[^>]*>([^<]+)</span>`),
		headingCell("Precio objetivo"),
		regexp.MustCompile(`(?is)Precio objetivo.*?<td[^>]*>.*?<span[^>]*>([^<]+)</span>`),
		regexp.MustCompile(`(?is)Precio objetivo.*?<td[^>]*>([^<]+)</td>`),
	}
	previousPriceRes = []*regexp.Regexp{
		headingCell("Anterior"),
		regexp.MustCompile(`(?is)Anterior.*?<td[^>]*>([^<]+)</td>`),
	}

	leadingDigitsRe = regexp.MustCompile(`^\d+`)
	bareNumberRe    = regexp.MustCompile(`^\d+[,.]?\d*$`)
	leadingNumberRe = regexp.MustCompile(`^-?\d+(\.\d+)?`)
	priceStripper   = strings.NewReplacer("€", "", " ", "", "\u00a0", "", "\t", "", "\n", "", "\r", "")

	hundred = decimal.NewFromInt(100)
)

// ParseDetail extracts the recommendation tally and both prices from a
// company page. Missing tallies count as zero; missing prices stay "-".
func ParseDetail(page string) Detail {
	return Detail{
		Recommendation: models.Recommendation{
			Buy:          tally(buyRe, page),
			BuyModerate:  tally(buyModerateRe, page),
			Hold:         tally(holdRe, page),
			SellModerate: tally(sellModerateRe, page),
			Sell:         tally(sellRe, page),
		},
		TargetPrice:   firstPrice(targetPriceRes, page),
		PreviousPrice: firstPrice(previousPriceRes, page),
	}
}

// tally returns the last labelled cell that starts with a number. Cells
// such as "n/d" are skipped.
func tally(re *regexp.Regexp, page string) int {
	n := 0
	for _, m := range re.FindAllStringSubmatch(page, -1) {
		digits := leadingDigitsRe.FindString(strings.TrimSpace(m[1]))
		v, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		n = v
	}
	return n
}

// firstPrice returns the first match that looks like a price rather than,
// say, a date sharing the same table.
func firstPrice(patterns []*regexp.Regexp, page string) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(page)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if text != "" && IsPlausiblePrice(text) {
			return text
		}
	}
	return models.Placeholder
}

// IsPlausiblePrice accepts text carrying a euro sign or shaped like a
// plain decimal number.
func IsPlausiblePrice(text string) bool {
	if strings.Contains(text, "€") {
		return true
	}
	return bareNumberRe.MatchString(priceStripper.Replace(text))
}

// ParsePrice reads a display price such as "12,80 €" or "1.234,50€".
func ParsePrice(text string) (decimal.Decimal, bool) {
	s := priceStripper.Replace(strings.TrimSpace(text))
	if s == "" || s == models.Placeholder {
		return decimal.Zero, false
	}
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")

	num := leadingNumberRe.FindString(s)
	if num == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Potential returns the change from previous to target as "{pct}%" with two
// decimals, or "-" when either price is unusable or previous is not positive.
func Potential(target, previous string) string {
	t, ok := ParsePrice(target)
	if !ok {
		return models.Placeholder
	}
	p, ok := ParsePrice(previous)
	if !ok || !p.IsPositive() {
		return models.Placeholder
	}
	return t.Sub(p).Div(p).Mul(hundred).StringFixed(2) + "%"
}
