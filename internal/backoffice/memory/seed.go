package memory

import (
	"time"

	"stationdesk/internal/core"
)

// DefaultSeed returns a small station with a week of activity ending today.
func DefaultSeed() Seed {
	today := time.Now().UTC()
	day := func(offset int) core.Date {
		y, m, d := today.AddDate(0, 0, -offset).Date()
		return core.NewDate(y, int(m), d)
	}
	side := func(total, resolved float64) core.AmountBreakdown {
		return core.AmountBreakdown{
			TotalAmount:    core.Amount(total),
			ResolvedAmount: core.Amount(resolved),
			PendingAmount:  core.Amount(core.Round2(total - resolved)),
		}
	}

	seed := Seed{
		PendingItems: []core.PendingItem{
			{ID: 101, Date: day(3), User: "Morgan", Safedrops: side(1250, 1000), CashInHand: side(180.4, 180.4)},
			{ID: 102, Date: day(2), User: "Riley", Safedrops: side(980.75, 0), CashInHand: side(210, 60)},
			{ID: 103, Date: day(1), User: "Morgan", Safedrops: side(1105.2, 500), CashInHand: side(95.5, 0)},
		},
		BankAccounts: []core.BankAccount{
			{ID: 1, AccountName: "Operating", AccountType: "checking", Balance: 15230.55, IsActive: true},
			{ID: 2, AccountName: "Fuel supplier escrow", AccountType: "checking", Balance: 4200, IsActive: true},
			{ID: 3, AccountName: "Reserve", AccountType: "savings", Balance: 25000, IsActive: true},
			{ID: 4, AccountName: "Legacy", AccountType: "checking", Balance: 0, IsActive: false},
		},
	}

	grades := []struct {
		name  string
		start float64
		usage float64
	}{
		{"regular", 18000, 1450.5},
		{"premium", 9000, 420.25},
		{"diesel", 12000, 880},
	}
	var volumeID, saleID, entryID int64
	for offset := 6; offset >= 0; offset-- {
		d := day(offset)
		n := float64(6 - offset)
		for _, g := range grades {
			volumeID++
			seed.FuelVolumes = append(seed.FuelVolumes, core.FuelVolume{
				ID:     volumeID,
				Date:   d,
				Grade:  g.name,
				Volume: core.Amount(core.Round2(g.start - n*g.usage)),
			})
		}
		saleID++
		fuel := 4200 + 35.5*n
		seed.DailySales = append(seed.DailySales, core.DailySale{
			ID:           saleID,
			Date:         d,
			FuelSales:    core.Amount(fuel),
			StoreSales:   core.Amount(860.25 + 12*n),
			LotterySales: core.Amount(140),
			CardPayments: core.Amount(core.Round2(fuel * 0.7)),
			CashPayments: core.Amount(core.Round2(fuel*0.3 + 1000.25 + 12*n)),
			Safedrops:    core.Amount(1100),
			CashInHand:   core.Amount(150),
		})
		entryID++
		seed.Settlement = append(seed.Settlement, core.SettlementEntry{
			ID:          entryID,
			Date:        d,
			Description: "Card settlement",
			Credit:      core.Amount(core.Round2(fuel * 0.7)),
		})
		entryID++
		seed.Settlement = append(seed.Settlement, core.SettlementEntry{
			ID:          entryID,
			Date:        d,
			Description: "Processing fees",
			Debit:       core.Amount(core.Round2(fuel * 0.7 * 0.025)),
		})
	}
	return seed
}
