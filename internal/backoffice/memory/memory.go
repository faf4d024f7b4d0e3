package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"stationdesk/internal/backoffice"
	"stationdesk/internal/core"
	"stationdesk/internal/ports"
)

// SeedFile is the file NewFromFiles looks for in the data directory.
const SeedFile = "seed.json"

// Seed is the initial content of the store.
type Seed struct {
	PendingItems []core.PendingItem        `json:"pending_items"`
	BankAccounts []core.BankAccount        `json:"bank_accounts"`
	DailySales   []core.DailySale          `json:"daily_sales"`
	FuelVolumes  []core.FuelVolume         `json:"fuel_volumes"`
	Settlement   []core.SettlementEntry    `json:"settlement"`
	History      []core.SafedropResolution `json:"history"`
}

// Store is an in-process back office used for local development and tests.
// It applies resolutions atomically, like the real backend.
type Store struct {
	mu       sync.Mutex
	validate *validator.Validate
	now      func() time.Time

	pending    []core.PendingItem
	accounts   []core.BankAccount
	sales      []core.DailySale
	volumes    []core.FuelVolume
	settlement []core.SettlementEntry
	history    []core.SafedropResolution
	nextID     int64
}

var (
	_ ports.PendingItemReader = (*Store)(nil)
	_ ports.BankAccountReader = (*Store)(nil)
	_ ports.Resolver          = (*Store)(nil)
	_ ports.HistoryReader     = (*Store)(nil)
	_ ports.ReportReader      = (*Store)(nil)
)

func New(seed Seed) *Store {
	s := &Store{
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		now:        time.Now,
		pending:    append([]core.PendingItem(nil), seed.PendingItems...),
		accounts:   append([]core.BankAccount(nil), seed.BankAccounts...),
		sales:      append([]core.DailySale(nil), seed.DailySales...),
		volumes:    append([]core.FuelVolume(nil), seed.FuelVolumes...),
		settlement: append([]core.SettlementEntry(nil), seed.Settlement...),
		history:    append([]core.SafedropResolution(nil), seed.History...),
	}
	for _, h := range s.history {
		if h.ID > s.nextID {
			s.nextID = h.ID
		}
	}
	return s
}

// NewFromFiles loads seed.json from base, falling back to DefaultSeed when
// the file is missing.
func NewFromFiles(base string) (*Store, error) {
	raw, err := os.ReadFile(filepath.Join(base, SeedFile))
	if errors.Is(err, os.ErrNotExist) {
		return New(DefaultSeed()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return New(seed), nil
}

// SetClock overrides the time source used for history timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// ListPendingItems returns the days that still have something to resolve.
func (s *Store) ListPendingItems(_ context.Context) ([]core.PendingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PendingItem, 0, len(s.pending))
	for _, p := range s.pending {
		if p.HasPending() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListBankAccounts(_ context.Context, activeOnly bool) ([]core.BankAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if activeOnly {
		return core.ActiveAccounts(s.accounts), nil
	}
	return append([]core.BankAccount(nil), s.accounts...), nil
}

// Resolve applies every allocation or none of them.
func (s *Store) Resolve(_ context.Context, req core.ResolveRequest) (core.ResolveResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return core.ResolveResult{}, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.pending {
		if p.ID == req.DailySaleID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return core.ResolveResult{}, &backoffice.APIError{
			Status:  http.StatusNotFound,
			Message: fmt.Sprintf("Daily sale %d not found", req.DailySaleID),
		}
	}

	accounts := make(map[int64]int, len(s.accounts))
	for i, a := range s.accounts {
		accounts[a.ID] = i
	}
	fieldErrs := map[string][]string{}
	for i, row := range req.Resolutions {
		ai, ok := accounts[row.BankAccountID]
		if !ok || !s.accounts[ai].IsActive {
			key := fmt.Sprintf("resolutions.%d.bank_account_id", i)
			fieldErrs[key] = append(fieldErrs[key], "The selected bank account is invalid.")
		}
	}
	if len(fieldErrs) > 0 {
		return core.ResolveResult{}, &backoffice.APIError{
			Status:  http.StatusUnprocessableEntity,
			Message: "The given data was invalid.",
			Errors:  fieldErrs,
		}
	}

	item := s.pending[idx]
	side := item.PendingFor(req.Type)
	total := core.Round2(core.Allocations(req.Resolutions).Total())
	if total > side.PendingAmount.Rounded()+core.ValidityEpsilon {
		msg := fmt.Sprintf("Total allocation %s exceeds pending amount %s",
			core.FormatMoney(total), core.FormatMoney(side.PendingAmount.Float64()))
		return core.ResolveResult{}, &backoffice.APIError{Status: http.StatusUnprocessableEntity, Message: msg}
	}

	// Validation passed; from here on nothing can fail.
	side.ResolvedAmount = core.Amount(core.Round2(side.ResolvedAmount.Float64() + total))
	side.PendingAmount = core.Amount(core.Round2(side.PendingAmount.Float64() - total))
	if req.Type == core.CashInHand {
		item.CashInHand = side
	} else {
		item.Safedrops = side
	}
	s.pending[idx] = item

	now := s.now().UTC()
	for _, row := range req.Resolutions {
		ai := accounts[row.BankAccountID]
		acct := s.accounts[ai]
		acct.Balance = core.Amount(core.Round2(acct.Balance.Float64() + row.Amount))
		s.accounts[ai] = acct

		s.nextID++
		s.history = append(s.history, core.SafedropResolution{
			ID:          s.nextID,
			Type:        req.Type,
			Amount:      core.Amount(row.Amount),
			Notes:       row.Notes,
			BankAccount: &core.BankAccountRef{ID: acct.ID, AccountName: acct.AccountName},
			User:        &core.UserRef{Name: item.User},
			CreatedAt:   now,
			DailySale:   &core.DailySaleRef{ID: item.ID, Date: item.Date},
		})
	}

	return core.ResolveResult{
		Success: true,
		Message: fmt.Sprintf("%s resolved for %s", req.Type.Label(), item.Date.String()),
	}, nil
}

// ListResolutionHistory pages history newest first.
func (s *Store) ListResolutionHistory(_ context.Context, page, perPage int) (core.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 15
	}
	s.mu.Lock()
	sorted := append([]core.SafedropResolution(nil), s.history...)
	s.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	total := len(sorted)
	lastPage := (total + perPage - 1) / perPage
	if lastPage == 0 {
		lastPage = 1
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return core.HistoryPage{
		Items:    sorted[start:end],
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
		Total:    total,
	}, nil
}

func (s *Store) ListDailySales(_ context.Context, from, to core.Date) ([]core.DailySale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.DailySale
	for _, d := range s.sales {
		if inRange(d.Date, from, to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) ListFuelVolumes(_ context.Context, from, to core.Date) ([]core.FuelVolume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.FuelVolume
	for _, v := range s.volumes {
		if inRange(v.Date, from, to) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *Store) ListSettlementEntries(_ context.Context, from, to core.Date) ([]core.SettlementEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.SettlementEntry
	for _, e := range s.settlement {
		if inRange(e.Date, from, to) {
			out = append(out, e)
		}
	}
	return out, nil
}

// inRange treats a zero bound as open.
func inRange(d, from, to core.Date) bool {
	if !from.IsZero() && d.Before(from.Time) {
		return false
	}
	if !to.IsZero() && d.After(to.Time) {
		return false
	}
	return true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &backoffice.APIError{Status: http.StatusUnprocessableEntity, Message: err.Error()}
	}
	fields := map[string][]string{}
	for _, fe := range verrs {
		key := fe.Namespace()
		fields[key] = append(fields[key], fmt.Sprintf("failed %s validation", fe.Tag()))
	}
	return &backoffice.APIError{
		Status:  http.StatusUnprocessableEntity,
		Message: "The given data was invalid.",
		Errors:  fields,
	}
}
