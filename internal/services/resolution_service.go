package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"stationdesk/internal/amqp"
	"stationdesk/internal/backoffice"
	"stationdesk/internal/core"
	applog "stationdesk/internal/log"
	"stationdesk/internal/ports"
)

var (
	ErrForbidden          = errors.New("only admins can resolve pending amounts")
	ErrSubmissionInFlight = errors.New("a resolution for this day is already being submitted")
)

// ValidationError carries the local validation outcome of a rejected submit.
type ValidationError struct {
	Summary core.Summary
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid allocations: %v", e.Summary.Err())
}

func (e *ValidationError) Unwrap() error {
	return e.Summary.Err()
}

// Journal stores submission attempts. Optional.
type Journal interface {
	RecordSubmission(ctx context.Context, s core.Submission) (core.Submission, error)
}

// EventPublisher announces accepted submissions. Optional.
type EventPublisher interface {
	PublishResolutionSubmitted(ctx context.Context, msg *amqp.ResolutionSubmittedMessage) error
}

// SubmitInput is what the modal posts.
type SubmitInput struct {
	DailySaleID   int64
	Type          core.ResolutionType
	PendingAmount float64
	Rows          core.Allocations
}

// SubmitResult is returned for a submission the backend accepted.
type SubmitResult struct {
	Reference string
	Message   string
	Summary   core.Summary
}

type inFlightKey struct {
	dailySaleID int64
	kind        core.ResolutionType
}

// ResolutionService validates, submits and journals resolutions.
type ResolutionService struct {
	resolver  ports.Resolver
	journal   Journal
	publisher EventPublisher
	validate  *validator.Validate

	mu       sync.Mutex
	inFlight map[inFlightKey]struct{}
}

// NewResolutionService wires the service. journal and publisher may be nil.
func NewResolutionService(resolver ports.Resolver, journal Journal, publisher EventPublisher) *ResolutionService {
	return &ResolutionService{
		resolver:  resolver,
		journal:   journal,
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		inFlight:  map[inFlightKey]struct{}{},
	}
}

// Submit sends the allocations of one modal to the backend.
//
// Errors: ErrForbidden for non-admins, ErrSubmissionInFlight when the same
// day and type is already being submitted, *ValidationError when the rows
// fail local validation, and the backend error (see backoffice.MessageFrom)
// when the backend rejects the request.
func (s *ResolutionService) Submit(ctx context.Context, user core.User, in SubmitInput) (SubmitResult, error) {
	if !user.IsAdmin() {
		return SubmitResult{}, ErrForbidden
	}
	if err := in.Type.Validate(); err != nil {
		return SubmitResult{}, err
	}
	if in.DailySaleID <= 0 {
		return SubmitResult{}, core.ErrMissingDailySale
	}

	summary := core.Summarize(in.PendingAmount, in.Rows)
	if !summary.Valid {
		return SubmitResult{Summary: summary}, &ValidationError{Summary: summary}
	}

	req := core.BuildResolveRequest(in.DailySaleID, in.Type, in.Rows)
	if err := s.validate.Struct(req); err != nil {
		return SubmitResult{Summary: summary}, fmt.Errorf("resolve payload: %w", err)
	}

	key := inFlightKey{dailySaleID: in.DailySaleID, kind: in.Type}
	if !s.acquire(key) {
		return SubmitResult{Summary: summary}, ErrSubmissionInFlight
	}
	defer s.release(key)

	reference := uuid.NewString()
	res, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		s.record(ctx, user, reference, req, core.SubmissionRejected,
			backoffice.MessageFrom(err, backoffice.DefaultResolveErrorMessage))
		applog.FromContext(ctx).WithComponent(applog.ComponentResolution).
			ResolutionRejected(ctx, resolutionEvent(user, reference, req), err)
		return SubmitResult{Reference: reference, Summary: summary}, err
	}

	s.record(ctx, user, reference, req, core.SubmissionAccepted, "")
	s.publish(ctx, reference, req)

	applog.FromContext(ctx).WithComponent(applog.ComponentResolution).
		ResolutionAccepted(ctx, resolutionEvent(user, reference, req))

	return SubmitResult{Reference: reference, Message: res.Message, Summary: summary}, nil
}

// InFlight reports whether a submission for the day and type is running.
func (s *ResolutionService) InFlight(dailySaleID int64, t core.ResolutionType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[inFlightKey{dailySaleID: dailySaleID, kind: t}]
	return ok
}

func (s *ResolutionService) acquire(key inFlightKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[key]; busy {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *ResolutionService) release(key inFlightKey) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

// record never fails the request; the backend outcome is what counts.
func (s *ResolutionService) record(ctx context.Context, user core.User, reference string, req core.ResolveRequest, status core.SubmissionStatus, msg string) {
	if s.journal == nil {
		return
	}
	_, err := s.journal.RecordSubmission(ctx, core.Submission{
		Reference:    reference,
		DailySaleID:  req.DailySaleID,
		Type:         req.Type,
		SubmittedBy:  user.Name,
		TotalCents:   req.TotalCents(),
		Allocations:  req.Resolutions,
		Status:       status,
		ErrorMessage: msg,
	})
	if err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentStorage).
			ErrorContext(ctx, "Failed to journal submission", applog.FieldReference, reference, applog.FieldError, err)
	}
}

func (s *ResolutionService) publish(ctx context.Context, reference string, req core.ResolveRequest) {
	if s.publisher == nil {
		applog.FromContext(ctx).DebugContext(ctx, "AMQP publisher not available, skipping resolution event")
		return
	}
	msg := amqp.NewResolutionSubmittedMessage(reference, req.DailySaleID, string(req.Type), req.TotalCents())
	if err := s.publisher.PublishResolutionSubmitted(ctx, msg); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to publish resolution event", applog.FieldReference, reference, applog.FieldError, err)
	}
}

// Close releases the journal and publisher when they support it.
func (s *ResolutionService) Close() error {
	var errs []error
	if c, ok := s.journal.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close resolution service: %w", errors.Join(errs...))
	}
	return nil
}

func resolutionEvent(user core.User, reference string, req core.ResolveRequest) applog.Resolution {
	return applog.Resolution{
		User:        user.Name,
		DailySaleID: req.DailySaleID,
		Type:        string(req.Type),
		Rows:        len(req.Resolutions),
		TotalCents:  req.TotalCents(),
		Reference:   reference,
	}
}
