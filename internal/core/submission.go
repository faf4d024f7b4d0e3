package core

import "time"

type SubmissionStatus string

const (
	// SubmissionAccepted means the backend answered success; not yet reconciled.
	SubmissionAccepted    SubmissionStatus = "accepted"
	SubmissionRejected    SubmissionStatus = "rejected"
	SubmissionConfirmed   SubmissionStatus = "confirmed"
	SubmissionUnconfirmed SubmissionStatus = "unconfirmed"
)

// Submission is one journaled resolve attempt.
type Submission struct {
	ID           int64
	Reference    string
	DailySaleID  int64
	Type         ResolutionType
	SubmittedBy  string
	TotalCents   int64
	Allocations  []Allocation
	Status       SubmissionStatus
	ErrorMessage string
	CreatedAt    time.Time
	CheckedAt    *time.Time
}

// Checked reports whether reconciliation already ran for the submission.
func (s Submission) Checked() bool {
	return s.CheckedAt != nil
}
