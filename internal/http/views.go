package http

import (
	"errors"
	"strconv"

	"stationdesk/internal/core"
)

type sideView struct {
	Type       core.ResolutionType
	Total      string
	Resolved   string
	Pending    string
	HasPending bool
	InFlight   bool
}

// sideCell is what one side's cells of a pending row render from.
type sideCell struct {
	ID         int64
	Side       sideView
	CanResolve bool
	NoAccounts bool
}

func newSideCell(id int64, side sideView, canResolve, noAccounts bool) sideCell {
	return sideCell{ID: id, Side: side, CanResolve: canResolve, NoAccounts: noAccounts}
}

type pendingRow struct {
	ID         int64
	Date       string
	User       string
	Safedrops  sideView
	CashInHand sideView
}

type pendingItemsView struct {
	Items      []pendingRow
	CanResolve bool
	NoAccounts bool
	Error      string
}

type historyRow struct {
	Date      string
	Type      string
	Amount    string
	Account   string
	User      string
	Notes     string
	CreatedAt string
}

type historyView struct {
	Items    []historyRow
	Page     int
	LastPage int
	PrevPage int
	NextPage int
	HasPrev  bool
	HasNext  bool
	Error    string
}

type accountOption struct {
	ID       int64
	Label    string
	Selected bool
}

type rowView struct {
	Index     int
	Amount    string
	Notes     string
	Accounts  []accountOption
	Problems  []string
	CanRemove bool
}

type summaryView struct {
	Pending   string
	Allocated string
	Remaining string
	Status    core.RemainingStatus
	Color     string
	Valid     bool
	Problems  []string
}

type modalView struct {
	DailySaleID   int64
	Type          core.ResolutionType
	TypeLabel     string
	Date          string
	DateValue     string
	PendingAmount string
	MaxAmount     string
	Rows          []rowView
	Summary       summaryView
	CanAdd        bool
	CanAutoFill   bool
	NoAccounts    bool
	InFlight      bool
	Error         string
	FieldErrors   []string
}

func newSideView(t core.ResolutionType, b core.AmountBreakdown) sideView {
	return sideView{
		Type:       t,
		Total:      formatMoney(b.TotalAmount.Float64()),
		Resolved:   formatMoney(b.ResolvedAmount.Float64()),
		Pending:    formatMoney(b.PendingAmount.Float64()),
		HasPending: b.PendingAmount.Float64() > 0,
	}
}

func newPendingRow(p core.PendingItem) pendingRow {
	return pendingRow{
		ID:         p.ID,
		Date:       formatDate(p.Date),
		User:       p.User,
		Safedrops:  newSideView(core.Safedrops, p.Safedrops),
		CashInHand: newSideView(core.CashInHand, p.CashInHand),
	}
}

func newHistoryView(p core.HistoryPage) historyView {
	v := historyView{
		Page:     p.Page,
		LastPage: p.LastPage,
		HasPrev:  p.Page > 1,
		HasNext:  p.HasNext(),
		PrevPage: p.Page - 1,
		NextPage: p.Page + 1,
	}
	for _, r := range p.Items {
		row := historyRow{
			Type:      r.Type.Label(),
			Amount:    formatMoney(r.Amount.Float64()),
			Notes:     r.Notes,
			CreatedAt: formatTimestamp(r.CreatedAt),
		}
		if r.DailySale != nil {
			row.Date = formatDate(r.DailySale.Date)
		}
		if r.BankAccount != nil {
			row.Account = r.BankAccount.AccountName
		}
		if r.User != nil {
			row.User = r.User.Name
		}
		v.Items = append(v.Items, row)
	}
	return v
}

func accountLabel(a core.BankAccount) string {
	if a.AccountType == "" {
		return a.AccountName
	}
	return a.AccountName + " (" + a.AccountType + ")"
}

func newSummaryView(s core.Summary) summaryView {
	v := summaryView{
		Pending:   formatMoney(s.PendingAmount),
		Allocated: formatMoney(s.TotalAllocated),
		Remaining: formatMoney(s.Remaining),
		Status:    s.Status(),
		Color:     s.Status().Color(),
		Valid:     s.Valid,
	}
	for _, err := range s.SetProblems {
		// Nothing allocated is already obvious from the totals while the
		// rows are still being filled in.
		if errors.Is(err, core.ErrNothingAllocated) && len(s.RowProblems) > 0 {
			continue
		}
		v.Problems = append(v.Problems, problemText(err))
	}
	return v
}

func problemText(err error) string {
	switch {
	case errors.Is(err, core.ErrAccountNotSelected):
		return "Select a bank account"
	case errors.Is(err, core.ErrAmountNotPositive):
		return "Enter an amount greater than zero"
	case errors.Is(err, core.ErrNothingAllocated):
		return "Allocate at least part of the pending amount"
	case errors.Is(err, core.ErrOverAllocated):
		return "Allocated total exceeds the pending amount"
	case errors.Is(err, core.ErrNoRows):
		return "Add at least one allocation"
	default:
		return err.Error()
	}
}

// newModalView renders the row record with its derived summary. accounts
// are the selectable (active) accounts.
func newModalView(item core.PendingItem, t core.ResolutionType, accounts []core.BankAccount, rows core.Allocations) modalView {
	pending := item.PendingFor(t).PendingAmount.Float64()
	summary := core.Summarize(pending, rows)

	v := modalView{
		DailySaleID:   item.ID,
		Type:          t,
		TypeLabel:     t.Label(),
		Date:          formatDate(item.Date),
		PendingAmount: strconv.FormatFloat(core.Round2(pending), 'f', 2, 64),
		MaxAmount:     strconv.FormatFloat(core.MaxRowAmount(pending), 'f', 2, 64),
		Summary:       newSummaryView(summary),
		CanAdd:        len(rows) < maxRows,
		CanAutoFill:   len(rows) == 1 && rows[0].BankAccountID > 0,
		NoAccounts:    len(accounts) == 0,
	}
	if !item.Date.IsZero() {
		v.DateValue = item.Date.String()
	}
	for i, row := range rows {
		rv := rowView{
			Index:     i,
			Amount:    amountInput(row.Amount),
			Notes:     row.Notes,
			CanRemove: len(rows) > 1,
		}
		for _, a := range accounts {
			rv.Accounts = append(rv.Accounts, accountOption{
				ID:       a.ID,
				Label:    accountLabel(a),
				Selected: a.ID == row.BankAccountID,
			})
		}
		// Untouched rows show no errors until something was entered.
		if row != (core.Allocation{}) || len(rows) > 1 {
			for _, err := range summary.ProblemsForRow(i) {
				rv.Problems = append(rv.Problems, problemText(err))
			}
		}
		v.Rows = append(v.Rows, rv)
	}
	return v
}
