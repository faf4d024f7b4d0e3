package core

// DailySale is the per-day sales record the reports aggregate over.
type DailySale struct {
	ID           int64  `json:"id"`
	Date         Date   `json:"date"`
	FuelSales    Amount `json:"fuel_sales"`
	StoreSales   Amount `json:"store_sales"`
	LotterySales Amount `json:"lottery_sales"`
	CardPayments Amount `json:"card_payments"`
	CashPayments Amount `json:"cash_payments"`
	Safedrops    Amount `json:"safedrops"`
	CashInHand   Amount `json:"cash_in_hand"`
}

// FuelVolume is the recorded tank volume of one grade on one day.
type FuelVolume struct {
	ID     int64  `json:"id"`
	Date   Date   `json:"date"`
	Grade  string `json:"grade"`
	Volume Amount `json:"volume"`
}

// SettlementEntry is one debit/credit line of the settlement ledger.
type SettlementEntry struct {
	ID          int64  `json:"id"`
	Date        Date   `json:"date"`
	Description string `json:"description"`
	Debit       Amount `json:"debit"`
	Credit      Amount `json:"credit"`
}

// HistoryPage is one page of resolution history.
type HistoryPage struct {
	Items    []SafedropResolution
	Page     int
	PerPage  int
	LastPage int
	Total    int
}

// HasNext reports whether another page follows.
func (p HistoryPage) HasNext() bool {
	if p.LastPage > 0 {
		return p.Page < p.LastPage
	}
	return p.PerPage > 0 && len(p.Items) == p.PerPage
}
