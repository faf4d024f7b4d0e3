package reports

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stationdesk/internal/core"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDailySalesBreakdown(t *testing.T) {
	sales := []core.DailySale{
		{Date: core.NewDate(2025, 1, 2), FuelSales: 0.1, StoreSales: 0.2, LotterySales: 10, CardPayments: 5},
		{Date: core.NewDate(2025, 1, 1), FuelSales: 100.55, StoreSales: 20.45, CashPayments: 121},
	}
	got := DailySalesBreakdown(sales)

	require.Len(t, got.Rows, 2)
	require.Equal(t, "2025-01-01", got.Rows[0].Date.String())
	require.True(t, got.Rows[0].TotalSales.Equal(dec("121")))
	require.True(t, got.Rows[1].TotalSales.Equal(dec("10.3")), got.Rows[1].TotalSales.String())
	require.True(t, got.Totals.FuelSales.Equal(dec("100.65")))
	require.True(t, got.Totals.TotalSales.Equal(dec("131.3")))
	require.True(t, got.Totals.CardPayments.Equal(dec("5")))
	require.True(t, got.Totals.CashPayments.Equal(dec("121")))
}

func TestDailySalesBreakdownEmpty(t *testing.T) {
	got := DailySalesBreakdown(nil)
	require.Empty(t, got.Rows)
	require.True(t, got.Totals.TotalSales.IsZero())
}

func TestFuelVolumeDeltas(t *testing.T) {
	volumes := []core.FuelVolume{
		{Date: core.NewDate(2025, 1, 2), Grade: "regular", Volume: 900},
		{Date: core.NewDate(2025, 1, 1), Grade: "regular", Volume: 1000},
		{Date: core.NewDate(2025, 1, 1), Grade: "diesel", Volume: 500},
		{Date: core.NewDate(2025, 1, 3), Grade: "regular", Volume: 1200.5},
	}
	got := FuelVolumeDeltas(volumes)

	require.Len(t, got, 2)
	require.Equal(t, "diesel", got[0].Grade)
	require.Len(t, got[0].Rows, 1)
	require.False(t, got[0].Rows[0].HasDelta)

	regular := got[1]
	require.Equal(t, "regular", regular.Grade)
	require.Len(t, regular.Rows, 3)
	require.False(t, regular.Rows[0].HasDelta, "first day has no delta")
	require.True(t, regular.Rows[1].Delta.Equal(dec("-100")))
	require.True(t, regular.Rows[2].Delta.Equal(dec("300.5")))
	require.True(t, regular.TotalDelta.Equal(dec("200.5")))
}

func TestSettlementLedger(t *testing.T) {
	entries := []core.SettlementEntry{
		{Date: core.NewDate(2025, 1, 2), Description: "Fees", Debit: 12.5},
		{Date: core.NewDate(2025, 1, 1), Description: "Card batch", Credit: 500},
		{Date: core.NewDate(2025, 1, 3), Description: "Chargeback", Debit: 40.25, Credit: 0.25},
	}
	got := SettlementLedger(entries)

	require.Len(t, got.Rows, 3)
	require.Equal(t, "Card batch", got.Rows[0].Description)
	require.True(t, got.TotalDebit.Equal(dec("52.75")))
	require.True(t, got.TotalCredit.Equal(dec("500.25")))
	require.True(t, got.Net.Equal(dec("447.5")))
	require.True(t, got.Rows[len(got.Rows)-1].Balance.Equal(got.Net), "last running balance equals net")
	require.True(t, got.Rows[1].Balance.Equal(dec("487.5")))
}
