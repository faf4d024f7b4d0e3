package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Safedrops  ResolutionType = "safedrops"
	CashInHand ResolutionType = "cash_in_hand"

	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type (
	ResolutionType string

	Date struct {
		time.Time
	}

	// AmountBreakdown is one side (safedrops or cash in hand) of a pending day.
	AmountBreakdown struct {
		TotalAmount    Amount `json:"total_amount"`
		ResolvedAmount Amount `json:"resolved_amount"`
		PendingAmount  Amount `json:"pending_amount"`
	}

	PendingItem struct {
		ID         int64           `json:"id"`
		Date       Date            `json:"date"`
		User       string          `json:"user"`
		Safedrops  AmountBreakdown `json:"safedrops"`
		CashInHand AmountBreakdown `json:"cash_in_hand"`
	}

	BankAccount struct {
		ID          int64  `json:"id"`
		AccountName string `json:"account_name"`
		AccountType string `json:"account_type"`
		Balance     Amount `json:"balance"`
		IsActive    bool   `json:"is_active"`
	}

	BankAccountRef struct {
		ID          int64  `json:"id"`
		AccountName string `json:"account_name"`
	}

	UserRef struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	DailySaleRef struct {
		ID   int64 `json:"id"`
		Date Date  `json:"date"`
	}

	// SafedropResolution is a history record created by the backend.
	SafedropResolution struct {
		ID          int64           `json:"id"`
		Type        ResolutionType  `json:"type"`
		Amount      Amount          `json:"amount"`
		Notes       string          `json:"notes,omitempty"`
		BankAccount *BankAccountRef `json:"bank_account,omitempty"`
		User        *UserRef        `json:"user,omitempty"`
		CreatedAt   time.Time       `json:"created_at"`
		DailySale   *DailySaleRef   `json:"daily_sale,omitempty"`
	}

	// User is the request-scoped identity of whoever is operating the back office.
	User struct {
		Name string
		Role string
	}
)

var (
	ErrInvalidType      = errors.New("invalid resolution type")
	ErrInvalidDate      = errors.New("invalid date")
	ErrMissingDailySale = errors.New("missing daily sale id")
)

func (t ResolutionType) Validate() error {
	switch t {
	case Safedrops, CashInHand:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, string(t))
	}
}

// Label returns the human label used in tables and modal titles.
func (t ResolutionType) Label() string {
	switch t {
	case Safedrops:
		return "Safedrops"
	case CashInHand:
		return "Cash in hand"
	default:
		return string(t)
	}
}

func ParseResolutionType(s string) (ResolutionType, error) {
	t := ResolutionType(strings.TrimSpace(s))
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// PendingFor returns the breakdown for the given resolution type.
func (p PendingItem) PendingFor(t ResolutionType) AmountBreakdown {
	if t == CashInHand {
		return p.CashInHand
	}
	return p.Safedrops
}

// HasPending reports whether either side still has something to resolve.
func (p PendingItem) HasPending() bool {
	return p.Safedrops.PendingAmount.Float64() > 0 || p.CashInHand.PendingAmount.Float64() > 0
}

// ActiveAccounts filters accounts down to the selectable allocation targets.
func ActiveAccounts(accounts []BankAccount) []BankAccount {
	out := make([]BankAccount, 0, len(accounts))
	for _, a := range accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

func (u User) IsZero() bool {
	return u.Name == "" && u.Role == ""
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD and RFC 3339 timestamps.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	y, m, d := t.Date()
	return NewDate(y, int(m), d), nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
