package core

import (
	"errors"
	"math"
	"testing"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < ValidityEpsilon
}

func rows(amounts ...float64) Allocations {
	out := make(Allocations, len(amounts))
	for i, a := range amounts {
		out[i] = Allocation{BankAccountID: int64(i + 1), Amount: a}
	}
	return out
}

func TestSummarizeScenarios(t *testing.T) {
	tests := []struct {
		name          string
		pending       float64
		rows          Allocations
		wantTotal     float64
		wantRemaining float64
		wantValid     bool
	}{
		{
			name:          "exact split across two accounts",
			pending:       100,
			rows:          rows(60, 40),
			wantTotal:     100,
			wantRemaining: 0,
			wantValid:     true,
		},
		{
			name:          "over allocation",
			pending:       100,
			rows:          rows(60, 50),
			wantTotal:     110,
			wantRemaining: -10,
			wantValid:     false,
		},
		{
			name:          "row without account",
			pending:       50,
			rows:          Allocations{{BankAccountID: 0, Amount: 50}},
			wantTotal:     50,
			wantRemaining: 0,
			wantValid:     false,
		},
		{
			name:          "thirds absorb float drift",
			pending:       100,
			rows:          rows(33.33, 33.33, 33.34),
			wantTotal:     100,
			wantRemaining: 0,
			wantValid:     true,
		},
		{
			name:          "partial allocation is valid",
			pending:       80,
			rows:          rows(30),
			wantTotal:     30,
			wantRemaining: 50,
			wantValid:     true,
		},
		{
			name:          "nothing allocated",
			pending:       80,
			rows:          NewAllocations(),
			wantTotal:     0,
			wantRemaining: 80,
			wantValid:     false,
		},
		{
			name:          "partially filled row invalidates set",
			pending:       80,
			rows:          Allocations{{BankAccountID: 1, Amount: 40}, {BankAccountID: 2}},
			wantTotal:     40,
			wantRemaining: 40,
			wantValid:     false,
		},
		{
			name:          "one cent over is rejected",
			pending:       100,
			rows:          rows(100.01),
			wantTotal:     100.01,
			wantRemaining: -0.01,
			wantValid:     false,
		},
		{
			name:          "pending given with sub-cent digits",
			pending:       99.999,
			rows:          rows(100),
			wantTotal:     100,
			wantRemaining: 0,
			wantValid:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize(tt.pending, tt.rows)
			if !near(s.TotalAllocated, tt.wantTotal) {
				t.Errorf("TotalAllocated = %v, want %v", s.TotalAllocated, tt.wantTotal)
			}
			if !near(s.Remaining, tt.wantRemaining) {
				t.Errorf("Remaining = %v, want %v", s.Remaining, tt.wantRemaining)
			}
			if s.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (err=%v)", s.Valid, tt.wantValid, s.Err())
			}
			if s.Valid != (s.Err() == nil) {
				t.Errorf("Err() disagrees with Valid: %v", s.Err())
			}
		})
	}
}

func TestSummarizeValidityProperty(t *testing.T) {
	pendings := []float64{0, 0.01, 10, 99.995, 100, 250.5}
	sets := []Allocations{
		rows(0.005),
		rows(10),
		rows(5, 5),
		rows(33.33, 33.33, 33.34),
		rows(100, 0.004),
		rows(250.5),
		{{BankAccountID: 1, Amount: 10}, {BankAccountID: 0, Amount: 1}},
	}
	for _, p := range pendings {
		for _, set := range sets {
			allRowsOK := true
			for _, r := range set {
				if r.BankAccountID <= 0 || r.Amount <= 0 {
					allRowsOK = false
				}
			}
			total := Round2(set.Total())
			want := allRowsOK && total > 0 && total <= Round2(p)+ValidityEpsilon
			if got := Summarize(p, set).Valid; got != want {
				t.Fatalf("pending=%v rows=%+v valid=%v want %v", p, set, got, want)
			}
		}
	}
}

func TestSummarizeProblems(t *testing.T) {
	s := Summarize(10, Allocations{{BankAccountID: 0, Amount: 0}, {BankAccountID: 2, Amount: 20}})
	if len(s.ProblemsForRow(0)) != 2 {
		t.Fatalf("row 0 should have two problems, got %v", s.ProblemsForRow(0))
	}
	if len(s.ProblemsForRow(1)) != 0 {
		t.Fatalf("row 1 should be clean, got %v", s.ProblemsForRow(1))
	}
	if !errors.Is(s.Err(), ErrOverAllocated) {
		t.Fatalf("expected ErrOverAllocated in %v", s.Err())
	}
	if !errors.Is(s.Err(), ErrAccountNotSelected) {
		t.Fatalf("expected ErrAccountNotSelected in %v", s.Err())
	}
}

func TestAutoFill(t *testing.T) {
	t.Run("single row with account", func(t *testing.T) {
		in := Allocations{{BankAccountID: 4}}
		out, ok := in.AutoFill(123.456)
		if !ok {
			t.Fatal("expected auto-fill to apply")
		}
		if out[0].Amount != 123.46 {
			t.Fatalf("amount = %v, want 123.46", out[0].Amount)
		}
		if in[0].Amount != 0 {
			t.Fatal("receiver was mutated")
		}
		s := Summarize(123.456, out)
		if !near(s.Remaining, 0) || !s.Valid {
			t.Fatalf("remaining = %v valid=%v", s.Remaining, s.Valid)
		}
	})

	t.Run("single row without account", func(t *testing.T) {
		out, ok := NewAllocations().AutoFill(50)
		if ok || out[0].Amount != 0 {
			t.Fatalf("auto-fill should not apply: %+v", out)
		}
	})

	t.Run("multiple rows", func(t *testing.T) {
		out, ok := rows(0, 0).AutoFill(50)
		if ok || out[0].Amount != 0 || out[1].Amount != 0 {
			t.Fatalf("auto-fill should not apply to multi-row sets: %+v", out)
		}
	})
}

func TestRowOperations(t *testing.T) {
	base := NewAllocations()
	if len(base) != 1 {
		t.Fatalf("new record should have one row")
	}

	added := base.Add()
	if len(added) != 2 || len(base) != 1 {
		t.Fatalf("Add must not mutate receiver: base=%d added=%d", len(base), len(added))
	}

	updated := added.SetAccount(1, 9).SetAmount(1, 12.5).SetNotes(1, "night shift")
	if updated[1] != (Allocation{BankAccountID: 9, Amount: 12.5, Notes: "night shift"}) {
		t.Fatalf("unexpected row: %+v", updated[1])
	}
	if added[1] != (Allocation{}) {
		t.Fatalf("Update must not mutate receiver: %+v", added[1])
	}

	removed := updated.Remove(0)
	if len(removed) != 1 || removed[0].BankAccountID != 9 {
		t.Fatalf("unexpected record after remove: %+v", removed)
	}
	if last := removed.Remove(0); len(last) != 1 {
		t.Fatalf("last row must be kept, got %d rows", len(last))
	}
	if same := updated.Remove(7); len(same) != len(updated) {
		t.Fatalf("out of range remove should be a no-op")
	}
	if same := updated.SetAmount(-1, 5); same[0].Amount != updated[0].Amount {
		t.Fatalf("out of range update should be a no-op")
	}
}

func TestStatusForRemaining(t *testing.T) {
	cases := []struct {
		remaining float64
		status    RemainingStatus
		color     string
	}{
		{-10, RemainingOver, "error"},
		{-0.01, RemainingOver, "error"},
		{0, RemainingBalanced, "success"},
		{0.005, RemainingBalanced, "success"},
		{-0.005, RemainingBalanced, "success"},
		{0.01, RemainingPartial, "warning"},
		{42, RemainingPartial, "warning"},
	}
	for _, tc := range cases {
		got := StatusForRemaining(tc.remaining)
		if got != tc.status || got.Color() != tc.color {
			t.Fatalf("StatusForRemaining(%v) = %s/%s, want %s/%s", tc.remaining, got, got.Color(), tc.status, tc.color)
		}
	}
}

func TestEpsilonsStayDistinct(t *testing.T) {
	// A sub-cent overshoot rounds up to a whole cent and fails validity.
	s := Summarize(100, rows(100.006))
	if s.TotalAllocated != 100.01 {
		t.Fatalf("total = %v", s.TotalAllocated)
	}
	if s.Valid {
		t.Fatal("over by a cent must be invalid")
	}
	if DisplayEpsilon <= ValidityEpsilon {
		t.Fatal("display epsilon must be looser than validity epsilon")
	}
}

func TestClampAmount(t *testing.T) {
	if got := ClampAmount(500, 123.456); got != 123.46 {
		t.Fatalf("clamp high = %v", got)
	}
	if got := ClampAmount(-3, 100); got != 0 {
		t.Fatalf("clamp negative = %v", got)
	}
	if got := ClampAmount(math.NaN(), 100); got != 0 {
		t.Fatalf("clamp NaN = %v", got)
	}
	if got := ClampAmount(40, 100); got != 40 {
		t.Fatalf("clamp inside = %v", got)
	}
}

func TestBuildResolveRequestDropsNonPositiveRows(t *testing.T) {
	in := Allocations{
		{BankAccountID: 1, Amount: 60, Notes: "deposit"},
		{BankAccountID: 2, Amount: 0},
		{BankAccountID: 3, Amount: -5},
		{BankAccountID: 4, Amount: 40},
	}
	req := BuildResolveRequest(11, Safedrops, in)
	if len(req.Resolutions) != 2 {
		t.Fatalf("expected 2 rows, got %+v", req.Resolutions)
	}
	for _, r := range req.Resolutions {
		if r.Amount <= 0 {
			t.Fatalf("non-positive row leaked into payload: %+v", r)
		}
	}
	if req.TotalCents() != 10000 {
		t.Fatalf("total cents = %d", req.TotalCents())
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(in) != 4 {
		t.Fatal("input record was mutated")
	}
}

func TestResolveRequestValidate(t *testing.T) {
	bad := []ResolveRequest{
		{DailySaleID: 0, Type: Safedrops, Resolutions: rows(1)},
		{DailySaleID: 1, Type: "other", Resolutions: rows(1)},
		{DailySaleID: 1, Type: CashInHand},
		{DailySaleID: 1, Type: CashInHand, Resolutions: []Allocation{{BankAccountID: 0, Amount: 1}}},
	}
	for i, r := range bad {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
