package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"stationdesk/internal/core"
	applog "stationdesk/internal/log"
	"stationdesk/internal/middleware/security"
)

// pendingPageView is the data of the pending amounts page.
type pendingPageView struct {
	Pending pendingItemsView
	History historyView
}

func (s *Server) handlePendingPage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.backendContext(r.Context())
	defer cancel()

	user := security.UserFromContext(r.Context())

	var (
		items    []core.PendingItem
		accounts []core.BankAccount
		history  core.HistoryPage
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.deps.Pending.ListPendingItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = s.deps.Accounts.ListBankAccounts(gctx, true)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.deps.History.ListResolutionHistory(gctx, 1, s.opts.HistoryPageSize)
		return err
	})

	view := pendingPageView{}
	if err := g.Wait(); err != nil {
		s.log(r, applog.ComponentBackend).ErrorContext(r.Context(), "Failed to load pending page",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpRead)
		view.Pending.Error = "Could not load pending amounts. Please try again."
		view.History.Error = "Could not load resolution history."
	} else {
		view.Pending = s.pendingItemsView(user, items, accounts)
		view.History = newHistoryView(history)
	}

	s.render(w, r, http.StatusOK, "pending.html", s.page(r, "Pending amounts", "pending", view))
}

// handlePendingItems re-renders the pending table after a refresh trigger.
func (s *Server) handlePendingItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.backendContext(r.Context())
	defer cancel()

	user := security.UserFromContext(r.Context())

	var (
		items    []core.PendingItem
		accounts []core.BankAccount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.deps.Pending.ListPendingItems(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = s.deps.Accounts.ListBankAccounts(gctx, true)
		return err
	})

	if err := g.Wait(); err != nil {
		s.log(r, applog.ComponentBackend).ErrorContext(r.Context(), "Failed to load pending items",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpList)
		s.render(w, r, http.StatusBadGateway, "pending_items", pendingItemsView{
			Error: "Could not load pending amounts. Please try again.",
		})
		return
	}

	s.render(w, r, http.StatusOK, "pending_items", s.pendingItemsView(user, items, accounts))
}

func (s *Server) handleResolutionHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.backendContext(r.Context())
	defer cancel()

	page := parsePage(r.URL.Query())
	history, err := s.deps.History.ListResolutionHistory(ctx, page, s.opts.HistoryPageSize)
	if err != nil {
		s.log(r, applog.ComponentBackend).ErrorContext(r.Context(), "Failed to load resolution history",
			applog.FieldError, err,
			applog.FieldOperation, applog.OpList,
			"page", page)
		s.render(w, r, http.StatusBadGateway, "resolution_history", historyView{
			Page:  page,
			Error: "Could not load resolution history.",
		})
		return
	}

	s.render(w, r, http.StatusOK, "resolution_history", newHistoryView(history))
}

// pendingItemsView keeps only days with something left to resolve.
func (s *Server) pendingItemsView(user core.User, items []core.PendingItem, accounts []core.BankAccount) pendingItemsView {
	v := pendingItemsView{
		CanResolve: user.IsAdmin(),
		NoAccounts: len(core.ActiveAccounts(accounts)) == 0,
	}
	for _, item := range items {
		if !item.HasPending() {
			continue
		}
		row := newPendingRow(item)
		row.Safedrops.InFlight = s.deps.Resolutions.InFlight(item.ID, core.Safedrops)
		row.CashInHand.InFlight = s.deps.Resolutions.InFlight(item.ID, core.CashInHand)
		v.Items = append(v.Items, row)
	}
	return v
}
