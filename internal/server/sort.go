package server

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bobmcallan/dividendos/internal/models"
	"github.com/bobmcallan/dividendos/internal/services/enrich"
)

// sortable lists the record fields accepted by the sort query parameter.
var sortable = map[string]bool{
	"empresa":        true,
	"fecha":          true,
	"importe":        true,
	"rentabilidad":   true,
	"precioObjetivo": true,
	"potencial":      true,
}

var spanishMonths = map[string]int{
	"ene": 1, "feb": 2, "mar": 3, "abr": 4, "may": 5, "jun": 6,
	"jul": 7, "ago": 8, "sep": 9, "oct": 10, "nov": 11, "dic": 12,
}

// sortKey is a parsed field value. Missing values order after present ones
// in both directions.
type sortKey struct {
	ok   bool
	num  decimal.Decimal
	text string
}

// sortDividendSet orders both groups in place by field.
func sortDividendSet(set *models.DividendSet, field string, desc bool) {
	sortRecords(set.Confirmed, field, desc)
	sortRecords(set.Forecast, field, desc)
}

func sortRecords(records []models.DividendRecord, field string, desc bool) {
	if len(records) < 2 {
		return
	}

	keys := make([]sortKey, len(records))
	for i := range records {
		keys[i] = recordKey(records[i], field)
	}

	// records and keys are permuted together
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}

	var col *collate.Collator
	if field == "empresa" {
		col = collate.New(language.Spanish, collate.Loose, collate.Numeric)
	}

	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.ok != kb.ok {
			return ka.ok
		}
		if !ka.ok {
			return false
		}
		var c int
		if col != nil {
			c = col.CompareString(ka.text, kb.text)
		} else {
			c = ka.num.Cmp(kb.num)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	sorted := make([]models.DividendRecord, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

func recordKey(r models.DividendRecord, field string) sortKey {
	switch field {
	case "empresa":
		text := strings.TrimSpace(r.Company)
		return sortKey{ok: text != "", text: text}
	case "fecha":
		return dateKey(r.ExDate)
	case "importe":
		return numericKey(r.Amount)
	case "rentabilidad":
		return numericKey(r.YieldPct)
	case "precioObjetivo":
		return numericKey(r.TargetPrice)
	case "potencial":
		return numericKey(r.PotentialPct)
	}
	return sortKey{}
}

func numericKey(text string) sortKey {
	d, ok := enrich.ParsePrice(strings.TrimSuffix(strings.TrimSpace(text), "%"))
	return sortKey{ok: ok, num: d}
}

// dateKey reads "DD-Mon" dates such as "26-Ago" as month*100+day.
func dateKey(text string) sortKey {
	day, month, found := strings.Cut(strings.TrimSpace(text), "-")
	if !found {
		return sortKey{}
	}
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil || d < 1 || d > 31 {
		return sortKey{}
	}
	m, ok := spanishMonths[strings.ToLower(strings.TrimSpace(month))]
	if !ok {
		return sortKey{}
	}
	return sortKey{ok: true, num: decimal.NewFromInt(int64(m*100 + d))}
}
