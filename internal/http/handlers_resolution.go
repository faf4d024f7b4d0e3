package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"stationdesk/internal/backoffice"
	"stationdesk/internal/core"
	applog "stationdesk/internal/log"
	"stationdesk/internal/middleware/security"
	"stationdesk/internal/services"
)

var errNothingPending = errors.New("nothing left to resolve")

// handleResolveModal opens the resolution modal for one side of one day.
func (s *Server) handleResolveModal(w http.ResponseWriter, r *http.Request) {
	user := security.UserFromContext(r.Context())
	if !user.IsAdmin() {
		alert(http.StatusForbidden, "Only admins can resolve pending amounts").Write(w)
		return
	}

	q := r.URL.Query()
	id, err := strconv.ParseInt(strings.TrimSpace(q.Get("daily_sale_id")), 10, 64)
	if err != nil || id <= 0 {
		alert(http.StatusBadRequest, "Missing daily sale").Write(w)
		return
	}
	t, err := core.ParseResolutionType(q.Get("type"))
	if err != nil {
		alert(http.StatusBadRequest, "Unknown resolution type").Write(w)
		return
	}

	ctx, cancel := s.backendContext(r.Context())
	defer cancel()

	item, err := s.findPending(ctx, id, t)
	if err != nil {
		s.pendingLookupFailed(w, r, id, err)
		return
	}
	accounts, err := s.deps.Accounts.ListBankAccounts(ctx, true)
	if err != nil {
		s.log(r, applog.ComponentBackend).ErrorContext(r.Context(), "Failed to load bank accounts",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpList)
		alert(http.StatusBadGateway, "Could not load bank accounts. Please try again.").Write(w)
		return
	}

	view := newModalView(item, t, core.ActiveAccounts(accounts), core.NewAllocations())
	view.InFlight = s.deps.Resolutions.InFlight(id, t)
	s.render(w, r, http.StatusOK, "resolve_modal", view)
}

// handleResolveRows applies a row action (add, remove, autofill or a plain
// field update) to the posted rows and re-renders the modal body.
func (s *Server) handleResolveRows(w http.ResponseWriter, r *http.Request) {
	if !security.UserFromContext(r.Context()).IsAdmin() {
		alert(http.StatusForbidden, "Only admins can resolve pending amounts").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form, err := ParseModalForm(r.PostForm)
	if err != nil {
		s.log(r, applog.ComponentResolution).WarnContext(r.Context(), "Invalid modal form",
			applog.FieldOperation, applog.OpParse,
			applog.FieldError, err)
		alert(http.StatusBadRequest, formErrorText(err)).Write(w)
		return
	}

	ctx, cancel := s.backendContext(r.Context())
	defer cancel()

	accounts, err := s.deps.Accounts.ListBankAccounts(ctx, true)
	if err != nil {
		s.log(r, applog.ComponentBackend).ErrorContext(r.Context(), "Failed to load bank accounts",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpList)
		alert(http.StatusBadGateway, "Could not load bank accounts. Please try again.").Write(w)
		return
	}

	rows, _ := form.Apply()
	for i := range rows {
		rows = rows.SetAmount(i, core.ClampAmount(rows[i].Amount, form.PendingAmount))
	}

	view := newModalView(formItem(form, r.PostForm.Get("date")), form.Type, core.ActiveAccounts(accounts), rows)
	view.InFlight = s.deps.Resolutions.InFlight(form.DailySaleID, form.Type)
	s.render(w, r, http.StatusOK, "resolve_body", view)
}

// handleSubmitResolution validates the rows against the pending amount the
// backend reports now and submits them.
func (s *Server) handleSubmitResolution(w http.ResponseWriter, r *http.Request) {
	user := security.UserFromContext(r.Context())
	if !user.IsAdmin() {
		s.resolutions.invalid.Add(1)
		alert(http.StatusForbidden, "Only admins can resolve pending amounts").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	form, err := ParseModalForm(r.PostForm)
	if err != nil {
		s.resolutions.invalid.Add(1)
		alert(http.StatusBadRequest, formErrorText(err)).Write(w)
		return
	}

	ctx, cancel := s.backendContext(r.Context())
	defer cancel()

	item, err := s.findPending(ctx, form.DailySaleID, form.Type)
	if err != nil {
		s.pendingLookupFailed(w, r, form.DailySaleID, err)
		return
	}

	res, err := s.deps.Resolutions.Submit(ctx, user, services.SubmitInput{
		DailySaleID:   form.DailySaleID,
		Type:          form.Type,
		PendingAmount: item.PendingFor(form.Type).PendingAmount.Float64(),
		Rows:          form.Rows,
	})
	if err == nil {
		s.resolutions.accepted.Add(1)
		msg := res.Message
		if strings.TrimSpace(msg) == "" {
			msg = form.Type.Label() + " resolved for " + formatDate(item.Date)
		}
		NewHTMXResponse().Resolved(msg).Write(w)
		return
	}

	var (
		validationErr *services.ValidationError
		apiErr        *backoffice.APIError
	)
	switch {
	case errors.Is(err, services.ErrForbidden):
		s.resolutions.invalid.Add(1)
		alert(http.StatusForbidden, "Only admins can resolve pending amounts").Write(w)
	case errors.Is(err, services.ErrSubmissionInFlight):
		s.renderModalError(ctx, w, r, http.StatusConflict, item, form, "This resolution is already being submitted.", nil)
	case errors.As(err, &validationErr):
		s.resolutions.invalid.Add(1)
		s.renderModalError(ctx, w, r, http.StatusUnprocessableEntity, item, form, "", nil)
	case errors.As(err, &apiErr):
		s.resolutions.rejected.Add(1)
		status := http.StatusBadGateway
		if apiErr.IsValidation() || apiErr.Status < 500 {
			status = http.StatusUnprocessableEntity
		}
		s.renderModalError(ctx, w, r, status, item, form,
			backoffice.MessageFrom(err, backoffice.DefaultResolveErrorMessage), apiErr.FieldErrors())
	default:
		s.resolutions.rejected.Add(1)
		s.log(r, applog.ComponentResolution).ErrorContext(r.Context(), "Resolution submit failed",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpResolve,
			applog.FieldDailySaleID, form.DailySaleID)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		s.renderModalError(ctx, w, r, status, item, form, backoffice.DefaultResolveErrorMessage, nil)
	}
}

// renderModalError re-renders the modal body with the submitted rows so
// nothing typed is lost.
func (s *Server) renderModalError(ctx context.Context, w http.ResponseWriter, r *http.Request, status int, item core.PendingItem, form ModalForm, msg string, fieldErrors []string) {
	accounts, err := s.deps.Accounts.ListBankAccounts(ctx, true)
	if err != nil {
		s.log(r, applog.ComponentBackend).WarnContext(r.Context(), "Failed to reload bank accounts for modal",
			applog.FieldError, err)
	}
	view := newModalView(item, form.Type, core.ActiveAccounts(accounts), form.Rows)
	view.Error = msg
	view.FieldErrors = fieldErrors
	view.InFlight = status == http.StatusConflict

	b := NewHTMXResponse().Status(status)
	if msg != "" {
		b.Notify(NotificationError, msg)
	}
	s.renderWith(w, r, b, "resolve_body", view)
}

// findPending returns the current pending item for the day, failing with
// errNothingPending when the requested side is already settled.
func (s *Server) findPending(ctx context.Context, id int64, t core.ResolutionType) (core.PendingItem, error) {
	items, err := s.deps.Pending.ListPendingItems(ctx)
	if err != nil {
		return core.PendingItem{}, err
	}
	for _, item := range items {
		if item.ID != id {
			continue
		}
		if item.PendingFor(t).PendingAmount.Float64() <= 0 {
			return item, errNothingPending
		}
		return item, nil
	}
	return core.PendingItem{}, errNothingPending
}

func (s *Server) pendingLookupFailed(w http.ResponseWriter, r *http.Request, id int64, err error) {
	if errors.Is(err, errNothingPending) {
		alert(http.StatusNotFound, "This day has nothing left to resolve.").
			Emit(EventPendingRefresh, EventModalClose).
			Notify(NotificationWarning, "This day has nothing left to resolve.").
			Write(w)
		return
	}
	s.log(r, applog.ComponentBackend).ErrorContext(r.Context(), "Failed to load pending items",
		applog.FieldError, err,
		applog.FieldOperation, applog.OpRead,
		applog.FieldDailySaleID, id)
	alert(http.StatusBadGateway, "Could not load pending amounts. Please try again.").Write(w)
}

// formItem rebuilds the pending item the modal was opened for from its
// hidden fields. It is used for display only.
func formItem(f ModalForm, date string) core.PendingItem {
	item := core.PendingItem{ID: f.DailySaleID}
	if d, err := core.ParseDate(date); err == nil {
		item.Date = d
	}
	side := core.AmountBreakdown{PendingAmount: core.Amount(f.PendingAmount)}
	if f.Type == core.CashInHand {
		item.CashInHand = side
	} else {
		item.Safedrops = side
	}
	return item
}

func formErrorText(err error) string {
	switch {
	case errors.Is(err, core.ErrMissingDailySale):
		return "Missing daily sale"
	case errors.Is(err, core.ErrInvalidType):
		return "Unknown resolution type"
	case errors.Is(err, ErrTooManyRows):
		return ErrTooManyRows.Error()
	default:
		return "Invalid request format"
	}
}
