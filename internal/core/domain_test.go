package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestResolutionTypeValidate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"safedrops", true},
		{"cash_in_hand", true},
		{" safedrops ", true},
		{"cash", false},
		{"", false},
	}
	for i, tc := range cases {
		_, err := ParseResolutionType(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidType) {
			t.Fatalf("case %d expected ErrInvalidType, got %v", i, err)
		}
	}
}

func TestPendingFor(t *testing.T) {
	item := PendingItem{
		Safedrops:  AmountBreakdown{PendingAmount: 10},
		CashInHand: AmountBreakdown{PendingAmount: 20},
	}
	if item.PendingFor(Safedrops).PendingAmount != 10 {
		t.Fatalf("safedrops side mismatch")
	}
	if item.PendingFor(CashInHand).PendingAmount != 20 {
		t.Fatalf("cash in hand side mismatch")
	}
	if !item.HasPending() {
		t.Fatalf("expected pending")
	}
	if (PendingItem{}).HasPending() {
		t.Fatalf("zero item should have nothing pending")
	}
}

func TestActiveAccounts(t *testing.T) {
	accounts := []BankAccount{
		{ID: 1, AccountName: "Operating", IsActive: true},
		{ID: 2, AccountName: "Closed", IsActive: false},
		{ID: 3, AccountName: "Payroll", IsActive: true},
	}
	got := ActiveAccounts(accounts)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected active accounts: %+v", got)
	}
}

func TestUserIsAdmin(t *testing.T) {
	if !(User{Name: "a", Role: "Admin"}).IsAdmin() {
		t.Fatalf("role match should be case-insensitive")
	}
	if (User{Name: "b", Role: RoleStaff}).IsAdmin() {
		t.Fatalf("staff is not admin")
	}
	if !(User{}).IsZero() {
		t.Fatalf("empty user should be zero")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-31")
	if err != nil || d.Day() != 31 || d.Month() != time.January {
		t.Fatalf("unexpected date %v err=%v", d, err)
	}
	d, err = ParseDate("2025-02-03T10:15:00Z")
	if err != nil || d.String() != "2025-02-03" {
		t.Fatalf("rfc3339 date %v err=%v", d, err)
	}
	if _, err := ParseDate("03/02/2025"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}
	var w wrapper
	if err := json.Unmarshal([]byte(`{"d":"2024-12-24"}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"d":"2024-12-24"}` {
		t.Fatalf("unexpected json %s", out)
	}
	if err := json.Unmarshal([]byte(`{"d":null}`), &w); err != nil || !w.D.IsZero() {
		t.Fatalf("null date should be zero, err=%v", err)
	}
}
