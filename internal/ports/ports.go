package ports

import (
	"context"

	"stationdesk/internal/core"
)

// Ports for the back-office backend.
type (
	PendingItemReader interface {
		ListPendingItems(ctx context.Context) ([]core.PendingItem, error)
	}

	BankAccountReader interface {
		// ListBankAccounts returns bank accounts, only active ones when activeOnly is set.
		ListBankAccounts(ctx context.Context, activeOnly bool) ([]core.BankAccount, error)
	}

	// Resolver applies allocations to a pending amount. The backend applies
	// them atomically or not at all.
	Resolver interface {
		Resolve(ctx context.Context, req core.ResolveRequest) (core.ResolveResult, error)
	}

	HistoryReader interface {
		// ListResolutionHistory returns one page of history, pages start at 1.
		ListResolutionHistory(ctx context.Context, page, perPage int) (core.HistoryPage, error)
	}

	// ReportReader provides the raw records behind the report pages.
	ReportReader interface {
		ListDailySales(ctx context.Context, from, to core.Date) ([]core.DailySale, error)
		ListFuelVolumes(ctx context.Context, from, to core.Date) ([]core.FuelVolume, error)
		ListSettlementEntries(ctx context.Context, from, to core.Date) ([]core.SettlementEntry, error)
	}
)
