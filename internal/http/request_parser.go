// Package http provides HTTP server and handler implementations.
//
// This file parses the resolution modal form and report query strings.
// Forms carry the complete row record on every request, so handlers never
// keep modal state between requests.

package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stationdesk/internal/core"
)

const (
	// maxRows bounds how many allocation rows one modal may post.
	maxRows = 20

	maxNotesLen = 500

	// defaultReportDays is the report range when none is given, today included.
	defaultReportDays = 7

	maxReportDays = 366
)

// Modal row actions.
const (
	ActionUpdate   = "update"
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionAutoFill = "autofill"
)

var (
	ErrTooManyRows  = fmt.Errorf("at most %d allocation rows are allowed", maxRows)
	ErrInvalidRange = errors.New("invalid date range")
)

// ModalForm is the decoded resolution modal.
type ModalForm struct {
	DailySaleID   int64
	Type          core.ResolutionType
	PendingAmount float64
	Rows          core.Allocations
	Action        string
	Index         int
}

// ParseModalForm decodes daily_sale_id, type, pending_amount and the
// parallel row arrays bank_account_id[], amount[] and notes[]. Missing array
// entries read as zero values. An unparseable amount reads as zero, which
// the validator then reports on that row.
func ParseModalForm(form url.Values) (ModalForm, error) {
	var f ModalForm

	id, err := strconv.ParseInt(strings.TrimSpace(form.Get("daily_sale_id")), 10, 64)
	if err != nil || id <= 0 {
		return f, core.ErrMissingDailySale
	}
	f.DailySaleID = id

	t, err := core.ParseResolutionType(form.Get("type"))
	if err != nil {
		return f, err
	}
	f.Type = t

	if v := strings.TrimSpace(form.Get("pending_amount")); v != "" {
		if a, err := core.ParseAmount(v); err == nil {
			f.PendingAmount = a.Float64()
		}
	}

	accounts := form["bank_account_id[]"]
	amounts := form["amount[]"]
	notes := form["notes[]"]
	n := max(len(accounts), len(amounts), len(notes))
	if n > maxRows {
		return f, ErrTooManyRows
	}

	f.Rows = make(core.Allocations, n)
	for i := 0; i < n; i++ {
		if i < len(accounts) {
			if v, err := strconv.ParseInt(strings.TrimSpace(accounts[i]), 10, 64); err == nil && v > 0 {
				f.Rows[i].BankAccountID = v
			}
		}
		if i < len(amounts) {
			if a, err := core.ParseAmount(amounts[i]); err == nil {
				f.Rows[i].Amount = a.Float64()
			}
		}
		if i < len(notes) {
			note := sanitizeInput(notes[i])
			if runes := []rune(note); len(runes) > maxNotesLen {
				note = string(runes[:maxNotesLen])
			}
			f.Rows[i].Notes = note
		}
	}
	if len(f.Rows) == 0 {
		f.Rows = core.NewAllocations()
	}

	f.Action = strings.TrimSpace(form.Get("action"))
	if f.Action == "" {
		f.Action = ActionUpdate
	}
	if v := strings.TrimSpace(form.Get("index")); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			f.Index = i
		}
	}
	return f, nil
}

// Apply runs the requested row action and returns the new record. It
// reports false when the action changed nothing, e.g. AutoFill without a
// selected account.
func (f ModalForm) Apply() (core.Allocations, bool) {
	switch f.Action {
	case ActionAdd:
		if len(f.Rows) >= maxRows {
			return f.Rows, false
		}
		return f.Rows.Add(), true
	case ActionRemove:
		if len(f.Rows) <= 1 || f.Index < 0 || f.Index >= len(f.Rows) {
			return f.Rows, false
		}
		return f.Rows.Remove(f.Index), true
	case ActionAutoFill:
		return f.Rows.AutoFill(f.PendingAmount)
	default:
		return f.Rows, true
	}
}

// DateRange is the inclusive range of a report page.
type DateRange struct {
	From core.Date
	To   core.Date
}

// ParseDateRange reads from and to (YYYY-MM-DD). Missing values default to
// the last defaultReportDays days ending today.
func ParseDateRange(query url.Values, now time.Time) (DateRange, error) {
	y, m, d := now.Date()
	today := core.NewDate(y, int(m), d)
	r := DateRange{
		From: core.Date{Time: today.AddDate(0, 0, -(defaultReportDays - 1))},
		To:   today,
	}

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		from, err := core.ParseDate(v)
		if err != nil {
			return r, fmt.Errorf("%w: from %q", ErrInvalidRange, v)
		}
		r.From = from
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		to, err := core.ParseDate(v)
		if err != nil {
			return r, fmt.Errorf("%w: to %q", ErrInvalidRange, v)
		}
		r.To = to
	}
	if r.From.After(r.To.Time) {
		return r, fmt.Errorf("%w: from is after to", ErrInvalidRange)
	}
	if r.To.Sub(r.From.Time) > maxReportDays*24*time.Hour {
		return r, fmt.Errorf("%w: at most %d days", ErrInvalidRange, maxReportDays)
	}
	return r, nil
}

// parsePage reads a 1-based page number, defaulting to 1.
func parsePage(query url.Values) int {
	if p, err := strconv.Atoi(strings.TrimSpace(query.Get("page"))); err == nil && p > 0 {
		return p
	}
	return 1
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *Response {
	if err := r.ParseForm(); err != nil {
		return alert(http.StatusBadRequest, "Invalid request format")
	}
	return nil
}
