package backend

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"stationdesk/internal/cache"
	"stationdesk/internal/core"
	"stationdesk/internal/ports"
)

// AccountCache serves bank account lists from a short-lived LRU cache.
// Concurrent misses for the same key share one backend call.
type AccountCache struct {
	next  ports.BankAccountReader
	cache *cache.LRU[string, []core.BankAccount]
	group singleflight.Group
}

var _ ports.BankAccountReader = (*AccountCache)(nil)

// fetchTimeout bounds a shared fetch, which outlives any single caller.
const fetchTimeout = 15 * time.Second

func NewAccountCache(next ports.BankAccountReader, ttl time.Duration) *AccountCache {
	return &AccountCache{
		next:  next,
		cache: cache.NewLRU[string, []core.BankAccount](2, ttl),
	}
}

func accountsKey(activeOnly bool) string {
	if activeOnly {
		return "accounts:active"
	}
	return "accounts:all"
}

func (c *AccountCache) ListBankAccounts(ctx context.Context, activeOnly bool) ([]core.BankAccount, error) {
	key := accountsKey(activeOnly)
	if accounts, ok := c.cache.Get(key); ok {
		return cloneAccounts(accounts), nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		accounts, err := c.next.ListBankAccounts(fetchCtx, activeOnly)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, accounts)
		return accounts, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAccounts(v.([]core.BankAccount)), nil
}

// Invalidate drops cached lists, e.g. after balances changed.
func (c *AccountCache) Invalidate() {
	c.cache.Purge()
}

func (c *AccountCache) CleanExpired() int {
	return c.cache.CleanExpired()
}

func cloneAccounts(in []core.BankAccount) []core.BankAccount {
	out := make([]core.BankAccount, len(in))
	copy(out, in)
	return out
}

// CachedBackend wraps a Backend with an AccountCache. A successful resolve
// moves money between accounts, so it invalidates the cache.
type CachedBackend struct {
	Backend
	accounts *AccountCache
}

func NewCachedBackend(b Backend, ttl time.Duration) *CachedBackend {
	return &CachedBackend{
		Backend:  b,
		accounts: NewAccountCache(b, ttl),
	}
}

func (b *CachedBackend) Accounts() *AccountCache {
	return b.accounts
}

func (b *CachedBackend) ListBankAccounts(ctx context.Context, activeOnly bool) ([]core.BankAccount, error) {
	return b.accounts.ListBankAccounts(ctx, activeOnly)
}

func (b *CachedBackend) Resolve(ctx context.Context, req core.ResolveRequest) (core.ResolveResult, error) {
	res, err := b.Backend.Resolve(ctx, req)
	if err == nil {
		b.accounts.Invalidate()
	}
	return res, err
}
