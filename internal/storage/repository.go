package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"stationdesk/internal/core"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("submission not found")

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
	schema  uint
}

// NewSQLiteRepository opens the journal database and brings the schema up to date.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer keeps SQLite from returning SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := Migrate(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
		schema:  schema,
	}, nil
}

// Schema is the journal schema version applied at open.
func (r *SQLiteRepository) Schema() uint {
	return r.schema
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordSubmission journals a resolve attempt. An empty reference gets a new uuid.
func (r *SQLiteRepository) RecordSubmission(ctx context.Context, s core.Submission) (core.Submission, error) {
	if s.Reference == "" {
		s.Reference = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	allocations := s.Allocations
	if allocations == nil {
		allocations = []core.Allocation{}
	}
	payload, err := json.Marshal(allocations)
	if err != nil {
		return core.Submission{}, fmt.Errorf("encode allocations: %w", err)
	}

	row, err := r.queries.CreateSubmission(ctx, CreateSubmissionParams{
		Reference:       s.Reference,
		DailySaleID:     s.DailySaleID,
		ResolutionType:  string(s.Type),
		SubmittedBy:     s.SubmittedBy,
		TotalCents:      s.TotalCents,
		AllocationsJson: string(payload),
		Status:          string(s.Status),
		ErrorMessage:    s.ErrorMessage,
		CreatedAt:       s.CreatedAt.UTC().Format(timeLayout),
	})
	if err != nil {
		return core.Submission{}, fmt.Errorf("create submission: %w", err)
	}

	slog.InfoContext(ctx, "Submission journaled",
		"reference", row.Reference,
		"daily_sale_id", row.DailySaleID,
		"type", row.ResolutionType,
		"status", row.Status,
		"total_cents", row.TotalCents)

	return toSubmission(row)
}

func (r *SQLiteRepository) GetSubmission(ctx context.Context, reference string) (core.Submission, error) {
	row, err := r.queries.GetSubmissionByReference(ctx, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Submission{}, fmt.Errorf("%w: %s", ErrNotFound, reference)
	}
	if err != nil {
		return core.Submission{}, fmt.Errorf("get submission %s: %w", reference, err)
	}
	return toSubmission(row)
}

// MarkChecked stores the reconciliation outcome.
func (r *SQLiteRepository) MarkChecked(ctx context.Context, reference string, status core.SubmissionStatus) error {
	err := r.queries.MarkSubmissionChecked(ctx, MarkSubmissionCheckedParams{
		Status:    string(status),
		CheckedAt: sql.NullString{String: r.now().UTC().Format(timeLayout), Valid: true},
		Reference: reference,
	})
	if err != nil {
		return fmt.Errorf("mark submission %s: %w", reference, err)
	}
	return nil
}

// ListUnchecked returns accepted submissions reconciliation has not seen yet, oldest first.
func (r *SQLiteRepository) ListUnchecked(ctx context.Context, limit int) ([]core.Submission, error) {
	rows, err := r.queries.ListUncheckedSubmissions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unchecked submissions: %w", err)
	}
	return toSubmissions(rows)
}

func (r *SQLiteRepository) ListRecent(ctx context.Context, limit int) ([]core.Submission, error) {
	rows, err := r.queries.ListRecentSubmissions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent submissions: %w", err)
	}
	return toSubmissions(rows)
}

func toSubmissions(rows []ResolutionSubmission) ([]core.Submission, error) {
	out := make([]core.Submission, 0, len(rows))
	for _, row := range rows {
		s, err := toSubmission(row)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func toSubmission(row ResolutionSubmission) (core.Submission, error) {
	s := core.Submission{
		ID:           row.ID,
		Reference:    row.Reference,
		DailySaleID:  row.DailySaleID,
		Type:         core.ResolutionType(row.ResolutionType),
		SubmittedBy:  row.SubmittedBy,
		TotalCents:   row.TotalCents,
		Status:       core.SubmissionStatus(row.Status),
		ErrorMessage: row.ErrorMessage,
	}
	if err := json.Unmarshal([]byte(row.AllocationsJson), &s.Allocations); err != nil {
		return core.Submission{}, fmt.Errorf("decode allocations of %s: %w", row.Reference, err)
	}
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return core.Submission{}, fmt.Errorf("parse created_at of %s: %w", row.Reference, err)
	}
	s.CreatedAt = created
	if row.CheckedAt.Valid {
		checked, err := time.Parse(timeLayout, row.CheckedAt.String)
		if err != nil {
			return core.Submission{}, fmt.Errorf("parse checked_at of %s: %w", row.Reference, err)
		}
		s.CheckedAt = &checked
	}
	return s, nil
}
