package core

import (
	"errors"
	"fmt"
	"math"
)

const (
	// ValidityEpsilon absorbs float noise left after cent rounding when
	// comparing the allocated total against the pending ceiling. It is far
	// below one cent so real over-allocation is never masked.
	ValidityEpsilon = 0.001

	// DisplayEpsilon decides when the remaining amount is shown as settled.
	// It is looser than ValidityEpsilon on purpose; the two are not unified.
	DisplayEpsilon = 0.01
)

type (
	// Allocation is one row of the resolution modal.
	Allocation struct {
		BankAccountID int64   `json:"bank_account_id" validate:"gt=0"`
		Amount        float64 `json:"amount" validate:"gt=0"`
		Notes         string  `json:"notes" validate:"max=500"`
	}

	// Allocations is the row record owned by one open resolution modal.
	// Every operation returns a new record and leaves the receiver untouched.
	Allocations []Allocation

	// RowProblem describes why a single row blocks submission.
	RowProblem struct {
		Row int
		Err error
	}

	// Summary is the derived state of an allocation record.
	Summary struct {
		PendingAmount  float64
		TotalAllocated float64
		Remaining      float64
		Valid          bool
		RowProblems    []RowProblem
		SetProblems    []error
	}

	RemainingStatus string

	// ResolveRequest is the body POSTed to the backend resolve endpoint.
	ResolveRequest struct {
		DailySaleID int64          `json:"daily_sale_id" validate:"gt=0"`
		Type        ResolutionType `json:"type" validate:"oneof=safedrops cash_in_hand"`
		Resolutions []Allocation   `json:"resolutions" validate:"required,min=1,dive"`
	}

	// ResolveResult is the backend answer to a successful resolve.
	ResolveResult struct {
		Success bool   `json:"success"`
		Message string `json:"message,omitempty"`
	}
)

const (
	RemainingOver     RemainingStatus = "over"
	RemainingBalanced RemainingStatus = "balanced"
	RemainingPartial  RemainingStatus = "partial"
)

var (
	ErrAccountNotSelected = errors.New("select a bank account")
	ErrAmountNotPositive  = errors.New("amount must be greater than zero")
	ErrNothingAllocated   = errors.New("nothing allocated")
	ErrOverAllocated      = errors.New("allocated total exceeds pending amount")
	ErrNoRows             = errors.New("no allocations to submit")
)

// NewAllocations returns the record a freshly opened modal starts with.
func NewAllocations() Allocations {
	return Allocations{{}}
}

func (a Allocations) clone() Allocations {
	out := make(Allocations, len(a))
	copy(out, a)
	return out
}

// Add appends an empty row.
func (a Allocations) Add() Allocations {
	return append(a.clone(), Allocation{})
}

// Remove drops row i. The last remaining row is never removed, and an
// out-of-range index returns an unchanged copy.
func (a Allocations) Remove(i int) Allocations {
	if i < 0 || i >= len(a) || len(a) <= 1 {
		return a.clone()
	}
	out := make(Allocations, 0, len(a)-1)
	out = append(out, a[:i]...)
	return append(out, a[i+1:]...)
}

// Update replaces row i using fn. Out-of-range indexes are ignored.
func (a Allocations) Update(i int, fn func(Allocation) Allocation) Allocations {
	out := a.clone()
	if i < 0 || i >= len(out) {
		return out
	}
	out[i] = fn(out[i])
	return out
}

func (a Allocations) SetAccount(i int, bankAccountID int64) Allocations {
	return a.Update(i, func(row Allocation) Allocation {
		row.BankAccountID = bankAccountID
		return row
	})
}

func (a Allocations) SetAmount(i int, amount float64) Allocations {
	return a.Update(i, func(row Allocation) Allocation {
		row.Amount = amount
		return row
	})
}

func (a Allocations) SetNotes(i int, notes string) Allocations {
	return a.Update(i, func(row Allocation) Allocation {
		row.Notes = notes
		return row
	})
}

// Total sums the row amounts without rounding.
func (a Allocations) Total() float64 {
	var total float64
	for _, row := range a {
		total += row.Amount
	}
	return total
}

// AutoFill puts the whole rounded pending amount on the single row. It only
// applies when there is exactly one row and it already has a bank account;
// the second return value reports whether anything changed.
func (a Allocations) AutoFill(pendingAmount float64) (Allocations, bool) {
	if len(a) != 1 || a[0].BankAccountID <= 0 {
		return a.clone(), false
	}
	return a.SetAmount(0, Round2(pendingAmount)), true
}

// Summarize computes totals, remaining amount and validity for the record.
func Summarize(pendingAmount float64, rows Allocations) Summary {
	totalRounded := Round2(rows.Total())
	pendingRounded := Round2(pendingAmount)

	s := Summary{
		PendingAmount:  pendingRounded,
		TotalAllocated: totalRounded,
		Remaining:      pendingRounded - totalRounded,
	}

	for i, row := range rows {
		if row.BankAccountID <= 0 {
			s.RowProblems = append(s.RowProblems, RowProblem{Row: i, Err: ErrAccountNotSelected})
		}
		if !(row.Amount > 0) {
			s.RowProblems = append(s.RowProblems, RowProblem{Row: i, Err: ErrAmountNotPositive})
		}
	}
	if len(rows) == 0 {
		s.SetProblems = append(s.SetProblems, ErrNoRows)
	}
	if !(totalRounded > 0) {
		s.SetProblems = append(s.SetProblems, ErrNothingAllocated)
	}
	if totalRounded > pendingRounded+ValidityEpsilon {
		s.SetProblems = append(s.SetProblems, ErrOverAllocated)
	}

	s.Valid = len(s.RowProblems) == 0 && len(s.SetProblems) == 0
	return s
}

// Err joins every problem into one error, nil when the summary is valid.
func (s Summary) Err() error {
	if s.Valid {
		return nil
	}
	errs := make([]error, 0, len(s.RowProblems)+len(s.SetProblems))
	for _, p := range s.RowProblems {
		errs = append(errs, fmt.Errorf("row %d: %w", p.Row+1, p.Err))
	}
	errs = append(errs, s.SetProblems...)
	return errors.Join(errs...)
}

// ProblemsForRow returns the errors attached to row i.
func (s Summary) ProblemsForRow(i int) []error {
	var out []error
	for _, p := range s.RowProblems {
		if p.Row == i {
			out = append(out, p.Err)
		}
	}
	return out
}

// Status classifies the remaining amount for display.
func (s Summary) Status() RemainingStatus {
	return StatusForRemaining(s.Remaining)
}

// StatusForRemaining maps a remaining amount to its display status. A
// value within DisplayEpsilon of zero counts as balanced before the sign
// is looked at.
func StatusForRemaining(remaining float64) RemainingStatus {
	switch {
	case math.Abs(remaining) < DisplayEpsilon:
		return RemainingBalanced
	case remaining < 0:
		return RemainingOver
	default:
		return RemainingPartial
	}
}

// Color returns the UI colour token for the status.
func (r RemainingStatus) Color() string {
	switch r {
	case RemainingOver:
		return "error"
	case RemainingBalanced:
		return "success"
	default:
		return "warning"
	}
}

// MaxRowAmount is the UI ceiling for a single row.
func MaxRowAmount(pendingAmount float64) float64 {
	return Round2(pendingAmount)
}

// ClampAmount limits a row amount to [0, MaxRowAmount(pending)]. This is an
// input affordance only; Summarize remains the authoritative check.
func ClampAmount(amount, pendingAmount float64) float64 {
	if math.IsNaN(amount) || amount < 0 {
		return 0
	}
	if max := MaxRowAmount(pendingAmount); amount > max {
		return max
	}
	return amount
}

// BuildResolveRequest produces the wire payload, dropping rows with a
// non-positive amount.
func BuildResolveRequest(dailySaleID int64, t ResolutionType, rows Allocations) ResolveRequest {
	out := make([]Allocation, 0, len(rows))
	for _, row := range rows {
		if row.Amount <= 0 {
			continue
		}
		out = append(out, row)
	}
	return ResolveRequest{
		DailySaleID: dailySaleID,
		Type:        t,
		Resolutions: out,
	}
}

// TotalCents sums the payload in integer cents.
func (r ResolveRequest) TotalCents() int64 {
	var cents int64
	for _, row := range r.Resolutions {
		cents += int64(math.Round(row.Amount * 100))
	}
	return cents
}

// Validate checks the request without struct tags.
func (r ResolveRequest) Validate() error {
	if r.DailySaleID <= 0 {
		return ErrMissingDailySale
	}
	if err := r.Type.Validate(); err != nil {
		return err
	}
	if len(r.Resolutions) == 0 {
		return ErrNoRows
	}
	for i, row := range r.Resolutions {
		if row.BankAccountID <= 0 {
			return fmt.Errorf("resolution %d: %w", i+1, ErrAccountNotSelected)
		}
		if !(row.Amount > 0) {
			return fmt.Errorf("resolution %d: %w", i+1, ErrAmountNotPositive)
		}
	}
	return nil
}
