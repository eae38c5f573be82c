package extract

import "github.com/bobmcallan/dividendos/internal/models"

// SampleSet returns the fixed calendar served when the listing page cannot
// be fetched and the sample fallback is enabled. Prices are filled in so
// the dashboard renders every column; recommendation tallies are unknown.
func SampleSet() models.DividendSet {
	rec := func(company, date, amount, yield, slug, target, prev, potential string) models.DividendRecord {
		d := models.NewDividendRecord(company, date, amount, yield, "https://www.eleconomista.es/empresa/"+slug)
		d.TargetPrice = target
		d.PreviousPrice = prev
		d.PotentialPct = potential
		return d
	}

	return models.DividendSet{
		Confirmed: []models.DividendRecord{
			rec("Telefónica", "15-Ene", "0.30€", "3.2%", "telefonica", "12.80€", "11.50€", "11.30%"),
			rec("BBVA", "20-Ene", "0.25€", "2.8%", "bbva", "9.50€", "8.90€", "6.74%"),
			rec("Repsol", "25-Ene", "0.40€", "4.1%", "repsol", "15.20€", "14.80€", "2.70%"),
		},
		Forecast: []models.DividendRecord{
			rec("Santander", "01-Feb", "0.20€", "2.5%", "santander", "8.20€", "7.80€", "5.13%"),
			rec("Iberdrola", "05-Feb", "0.35€", "3.8%", "iberdrola", "11.50€", "10.90€", "5.50%"),
		},
	}
}
