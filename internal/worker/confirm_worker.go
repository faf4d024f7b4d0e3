package worker

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"stationdesk/internal/amqp"
	"stationdesk/internal/core"
	"stationdesk/internal/ports"
)

// Journal is the part of the submission journal the worker needs.
type Journal interface {
	GetSubmission(ctx context.Context, reference string) (core.Submission, error)
	MarkChecked(ctx context.Context, reference string, status core.SubmissionStatus) error
	ListUnchecked(ctx context.Context, limit int) ([]core.Submission, error)
}

// Backend history records may be stamped before our own journal timestamp.
const clockSkew = 5 * time.Minute

// ConfirmWorker compares journaled submissions against the backend history
// and marks them confirmed or unconfirmed.
type ConfirmWorker struct {
	journal   Journal
	history   ports.HistoryReader
	batchSize int
	perPage   int
	maxPages  int
}

func NewConfirmWorker(journal Journal, history ports.HistoryReader, batchSize int) *ConfirmWorker {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &ConfirmWorker{
		journal:   journal,
		history:   history,
		batchSize: batchSize,
		perPage:   50,
		maxPages:  4,
	}
}

// HandleResolutionSubmitted processes one event from AMQP. Returning an
// error requeues the message.
func (w *ConfirmWorker) HandleResolutionSubmitted(ctx context.Context, msg *amqp.ResolutionSubmittedMessage) error {
	slog.InfoContext(ctx, "Processing resolution event",
		"reference", msg.Reference,
		"event_id", msg.EventID,
		"daily_sale_id", msg.DailySaleID)

	sub, err := w.journal.GetSubmission(ctx, msg.Reference)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}
	if sub.Checked() {
		slog.DebugContext(ctx, "Submission already checked", "reference", sub.Reference, "status", sub.Status)
		return nil
	}

	records, err := w.loadHistory(ctx)
	if err != nil {
		return err
	}
	return w.confirm(ctx, sub, records, nil)
}

// ProcessUnchecked re-checks accepted submissions nobody has looked at.
// It is the fallback for lost AMQP messages.
func (w *ConfirmWorker) ProcessUnchecked(ctx context.Context) error {
	pending, err := w.journal.ListUnchecked(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unchecked submissions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Checking unconfirmed submissions", "count", len(pending))

	records, err := w.loadHistory(ctx)
	if err != nil {
		return err
	}
	// Oldest first, and a history record confirms at most one submission
	// of the sweep, so a double submit leaves one of them unconfirmed.
	slices.SortStableFunc(pending, func(a, b core.Submission) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	used := make([]bool, len(records))
	var confirmed, failed int
	for _, sub := range pending {
		if err := w.confirm(ctx, sub, records, used); err != nil {
			slog.ErrorContext(ctx, "Failed to check submission", "reference", sub.Reference, "error", err)
			failed++
			continue
		}
		confirmed++
	}
	slog.InfoContext(ctx, "Submission check completed",
		"total", len(pending),
		"checked", confirmed,
		"errors", failed)
	return nil
}

func (w *ConfirmWorker) confirm(ctx context.Context, sub core.Submission, records []core.SafedropResolution, used []bool) error {
	status := core.SubmissionUnconfirmed
	if Matches(sub, records, used) {
		status = core.SubmissionConfirmed
	}
	if err := w.journal.MarkChecked(ctx, sub.Reference, status); err != nil {
		return err
	}
	if status == core.SubmissionUnconfirmed {
		slog.WarnContext(ctx, "Submission not found in backend history",
			"reference", sub.Reference,
			"daily_sale_id", sub.DailySaleID,
			"type", sub.Type)
	} else {
		slog.InfoContext(ctx, "Submission confirmed", "reference", sub.Reference)
	}
	return nil
}

func (w *ConfirmWorker) loadHistory(ctx context.Context) ([]core.SafedropResolution, error) {
	var out []core.SafedropResolution
	for page := 1; page <= w.maxPages; page++ {
		hp, err := w.history.ListResolutionHistory(ctx, page, w.perPage)
		if err != nil {
			return nil, fmt.Errorf("read resolution history page %d: %w", page, err)
		}
		out = append(out, hp.Items...)
		if !hp.HasNext() {
			break
		}
	}
	return out, nil
}

// Matches reports whether records hold one distinct history entry per
// allocation of sub: same daily sale, type, bank account and amount in cents.
// used marks records already claimed by earlier submissions; on a match the
// records sub claims are marked too. used may be nil.
func Matches(sub core.Submission, records []core.SafedropResolution, used []bool) bool {
	if len(sub.Allocations) == 0 {
		return false
	}
	claimed := make([]bool, len(records))
	if used != nil {
		copy(claimed, used)
	}
	for _, alloc := range sub.Allocations {
		cents := core.Amount(alloc.Amount).Cents()
		found := false
		for i, r := range records {
			if claimed[i] || r.Type != sub.Type || r.Amount.Cents() != cents {
				continue
			}
			if r.DailySale == nil || r.DailySale.ID != sub.DailySaleID {
				continue
			}
			if r.BankAccount == nil || r.BankAccount.ID != alloc.BankAccountID {
				continue
			}
			if !sub.CreatedAt.IsZero() && !r.CreatedAt.IsZero() && r.CreatedAt.Before(sub.CreatedAt.Add(-clockSkew)) {
				continue
			}
			claimed[i] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	copy(used, claimed)
	return true
}
