// Package reports aggregates back-office records into the tables shown on
// the report pages. All arithmetic is done in decimal to keep column totals
// exact to the cent.
package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"stationdesk/internal/core"
)

type (
	// SalesRow is one day of the daily sales breakdown.
	SalesRow struct {
		Date         core.Date
		FuelSales    decimal.Decimal
		StoreSales   decimal.Decimal
		LotterySales decimal.Decimal
		CardPayments decimal.Decimal
		CashPayments decimal.Decimal
		Safedrops    decimal.Decimal
		CashInHand   decimal.Decimal
		TotalSales   decimal.Decimal
	}

	// SalesBreakdown is the daily sales table with its footer.
	SalesBreakdown struct {
		Rows   []SalesRow
		Totals SalesRow
	}

	// VolumeRow is one grade on one day with the change from the previous
	// recorded day of the same grade.
	VolumeRow struct {
		Date     core.Date
		Grade    string
		Volume   decimal.Decimal
		Delta    decimal.Decimal
		HasDelta bool
	}

	// GradeVolumes groups the rows of one grade in date order.
	GradeVolumes struct {
		Grade      string
		Rows       []VolumeRow
		TotalDelta decimal.Decimal
	}

	SettlementRow struct {
		Date        core.Date
		Description string
		Debit       decimal.Decimal
		Credit      decimal.Decimal
		Balance     decimal.Decimal
	}

	// Settlement is the ledger with totals; Net is credit minus debit.
	Settlement struct {
		Rows        []SettlementRow
		TotalDebit  decimal.Decimal
		TotalCredit decimal.Decimal
		Net         decimal.Decimal
	}
)

// DailySalesBreakdown sorts the days and sums every column.
func DailySalesBreakdown(sales []core.DailySale) SalesBreakdown {
	sorted := append([]core.DailySale(nil), sales...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date.Time) })

	out := SalesBreakdown{Rows: make([]SalesRow, 0, len(sorted))}
	for _, s := range sorted {
		row := SalesRow{
			Date:         s.Date,
			FuelSales:    s.FuelSales.Decimal(),
			StoreSales:   s.StoreSales.Decimal(),
			LotterySales: s.LotterySales.Decimal(),
			CardPayments: s.CardPayments.Decimal(),
			CashPayments: s.CashPayments.Decimal(),
			Safedrops:    s.Safedrops.Decimal(),
			CashInHand:   s.CashInHand.Decimal(),
		}
		row.TotalSales = row.FuelSales.Add(row.StoreSales).Add(row.LotterySales)
		out.Rows = append(out.Rows, row)

		t := &out.Totals
		t.FuelSales = t.FuelSales.Add(row.FuelSales)
		t.StoreSales = t.StoreSales.Add(row.StoreSales)
		t.LotterySales = t.LotterySales.Add(row.LotterySales)
		t.CardPayments = t.CardPayments.Add(row.CardPayments)
		t.CashPayments = t.CashPayments.Add(row.CashPayments)
		t.Safedrops = t.Safedrops.Add(row.Safedrops)
		t.CashInHand = t.CashInHand.Add(row.CashInHand)
		t.TotalSales = t.TotalSales.Add(row.TotalSales)
	}
	return out
}

// FuelVolumeDeltas groups volumes by grade (alphabetical) and computes the
// day-over-day change. The first recorded day of a grade has no delta.
func FuelVolumeDeltas(volumes []core.FuelVolume) []GradeVolumes {
	byGrade := map[string][]core.FuelVolume{}
	for _, v := range volumes {
		byGrade[v.Grade] = append(byGrade[v.Grade], v)
	}
	grades := make([]string, 0, len(byGrade))
	for g := range byGrade {
		grades = append(grades, g)
	}
	sort.Strings(grades)

	out := make([]GradeVolumes, 0, len(grades))
	for _, g := range grades {
		list := byGrade[g]
		sort.SliceStable(list, func(i, j int) bool { return list[i].Date.Before(list[j].Date.Time) })

		gv := GradeVolumes{Grade: g, Rows: make([]VolumeRow, 0, len(list))}
		for i, v := range list {
			row := VolumeRow{Date: v.Date, Grade: g, Volume: v.Volume.Decimal()}
			if i > 0 {
				row.Delta = row.Volume.Sub(gv.Rows[i-1].Volume)
				row.HasDelta = true
				gv.TotalDelta = gv.TotalDelta.Add(row.Delta)
			}
			gv.Rows = append(gv.Rows, row)
		}
		out = append(out, gv)
	}
	return out
}

// SettlementLedger sorts entries by date and tracks a running balance.
func SettlementLedger(entries []core.SettlementEntry) Settlement {
	sorted := append([]core.SettlementEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date.Time) })

	out := Settlement{Rows: make([]SettlementRow, 0, len(sorted))}
	balance := decimal.Zero
	for _, e := range sorted {
		debit, credit := e.Debit.Decimal(), e.Credit.Decimal()
		balance = balance.Add(credit).Sub(debit)
		out.Rows = append(out.Rows, SettlementRow{
			Date:        e.Date,
			Description: e.Description,
			Debit:       debit,
			Credit:      credit,
			Balance:     balance,
		})
		out.TotalDebit = out.TotalDebit.Add(debit)
		out.TotalCredit = out.TotalCredit.Add(credit)
	}
	out.Net = out.TotalCredit.Sub(out.TotalDebit)
	return out
}
