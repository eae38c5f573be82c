// Package models defines the data types shared across dividendos
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Placeholder marks an enrichment field that could not be resolved.
const Placeholder = "-"

// Recommendation is the analyst tally scraped from a company page.
type Recommendation struct {
	Buy          int
	BuyModerate  int
	Hold         int
	SellModerate int
	Sell         int
}

// String renders the tally as "buy-buyModerate-hold-sellModerate-sell".
func (r Recommendation) String() string {
	return fmt.Sprintf("%d-%d-%d-%d-%d", r.Buy, r.BuyModerate, r.Hold, r.SellModerate, r.Sell)
}

// Total returns the number of analysts counted in the tally.
func (r Recommendation) Total() int {
	return r.Buy + r.BuyModerate + r.Hold + r.SellModerate + r.Sell
}

// ParseRecommendation parses the five-field dash form. Any other text,
// including the placeholder and free-text labels, is reported as not ok.
func ParseRecommendation(s string) (*Recommendation, bool) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 5 {
		return nil, false
	}
	var n [5]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return nil, false
		}
		n[i] = v
	}
	return &Recommendation{Buy: n[0], BuyModerate: n[1], Hold: n[2], SellModerate: n[3], Sell: n[4]}, true
}

// DividendRecord is one row of the dividend calendar.
type DividendRecord struct {
	Company        string
	ExDate         string
	Amount         string
	YieldPct       string
	DetailLink     string
	Recommendation *Recommendation // nil until enriched
	TargetPrice    string
	PreviousPrice  string
	PotentialPct   string
}

// NewDividendRecord returns a record with every enrichment field at its placeholder.
func NewDividendRecord(company, exDate, amount, yieldPct, link string) DividendRecord {
	return DividendRecord{
		Company:       company,
		ExDate:        exDate,
		Amount:        amount,
		YieldPct:      yieldPct,
		DetailLink:    link,
		TargetPrice:   Placeholder,
		PreviousPrice: Placeholder,
		PotentialPct:  Placeholder,
	}
}

// dividendWire is the JSON shape the dashboard reads.
type dividendWire struct {
	Company        string `json:"empresa"`
	ExDate         string `json:"fecha"`
	Amount         string `json:"importe"`
	YieldPct       string `json:"rentabilidad"`
	DetailLink     string `json:"empresaLink"`
	Recommendation string `json:"recomendacion"`
	TargetPrice    string `json:"precioObjetivo"`
	PreviousPrice  string `json:"precioAnterior"`
	PotentialPct   string `json:"potencial"`
}

// MarshalJSON writes the record with the tally flattened to its dash form.
func (d DividendRecord) MarshalJSON() ([]byte, error) {
	rec := Placeholder
	if d.Recommendation != nil {
		rec = d.Recommendation.String()
	}
	return json.Marshal(dividendWire{
		Company:        d.Company,
		ExDate:         d.ExDate,
		Amount:         d.Amount,
		YieldPct:       d.YieldPct,
		DetailLink:     d.DetailLink,
		Recommendation: rec,
		TargetPrice:    placeholderIfEmpty(d.TargetPrice),
		PreviousPrice:  placeholderIfEmpty(d.PreviousPrice),
		PotentialPct:   placeholderIfEmpty(d.PotentialPct),
	})
}

// UnmarshalJSON reads the dashboard shape. Recommendation strings that are
// not a five-field tally decode to nil.
func (d *DividendRecord) UnmarshalJSON(data []byte) error {
	var w dividendWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	rec, _ := ParseRecommendation(w.Recommendation)
	*d = DividendRecord{
		Company:        w.Company,
		ExDate:         w.ExDate,
		Amount:         w.Amount,
		YieldPct:       w.YieldPct,
		DetailLink:     w.DetailLink,
		Recommendation: rec,
		TargetPrice:    placeholderIfEmpty(w.TargetPrice),
		PreviousPrice:  placeholderIfEmpty(w.PreviousPrice),
		PotentialPct:   placeholderIfEmpty(w.PotentialPct),
	}
	return nil
}

func placeholderIfEmpty(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

// DividendSet is the full calendar split into its two groups.
type DividendSet struct {
	Confirmed []DividendRecord `json:"confirmados"`
	Forecast  []DividendRecord `json:"previstos"`
}

// NewDividendSet returns a set with both groups empty but non-nil.
func NewDividendSet() DividendSet {
	return DividendSet{Confirmed: []DividendRecord{}, Forecast: []DividendRecord{}}
}

// Len returns the number of records across both groups.
func (s DividendSet) Len() int {
	return len(s.Confirmed) + len(s.Forecast)
}

// MarshalJSON keeps empty groups as [] rather than null.
func (s DividendSet) MarshalJSON() ([]byte, error) {
	type alias DividendSet
	out := alias(s)
	if out.Confirmed == nil {
		out.Confirmed = []DividendRecord{}
	}
	if out.Forecast == nil {
		out.Forecast = []DividendRecord{}
	}
	return json.Marshal(out)
}

// DividendsResult is returned by reads and forced refreshes.
type DividendsResult struct {
	Dividends  DividendSet `json:"dividendos"`
	LastUpdate *time.Time  `json:"lastUpdate"`
	FromCache  bool        `json:"fromCache"`
	Updating   bool        `json:"updating"`
	Error      string      `json:"error,omitempty"`
}

// BackgroundUpdateResult is returned when a background refresh is requested.
type BackgroundUpdateResult struct {
	Accepted       bool   `json:"accepted"`
	AlreadyRunning bool   `json:"alreadyRunning"`
	Progress       int    `json:"progress"`
	CurrentItem    string `json:"currentCompany"`
	Message        string `json:"message"`
}
