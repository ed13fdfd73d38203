package view

import (
	"context"
	"sync"

	"sitevisor.org/internal/feed"
	"sitevisor.org/internal/model"
	"sitevisor.org/internal/obs"
	"sitevisor.org/internal/resource"
)

// Wallet feeds the balance card and the transaction history screen. The
// balance updates live from wallet change events; the transaction list is
// refetched on demand and on resync.
type Wallet struct {
	svc   *resource.Service
	scope resource.Scope

	mu      sync.Mutex
	balance int64
	loaded  bool
	txs     []model.WalletTransaction

	bridge *feed.Bridge
}

// NewWallet binds the adapter to one principal's scope.
func NewWallet(svc *resource.Service, source feed.Source, scope resource.Scope) *Wallet {
	w := &Wallet{svc: svc, scope: scope}
	w.bridge = feed.NewBridge(source, feed.Filter{
		Table:   resource.TableWallets,
		OwnerID: scope.PrincipalID,
	}, w.onEvent)
	w.bridge.OnResync = func() { w.reload(context.Background()) }
	return w
}

// Run performs the initial load and drives the realtime bridge until the
// context ends.
func (w *Wallet) Run(ctx context.Context) {
	w.reload(ctx)
	w.bridge.Run(ctx)
}

func (w *Wallet) reload(ctx context.Context) {
	wallet, err := w.svc.Wallet(ctx, w.scope)
	if err != nil {
		obs.Error("view: wallet load failed", err)
		return
	}
	txs, err := w.svc.WalletTransactions(ctx, w.scope)
	if err != nil {
		obs.Error("view: wallet transactions load failed", err)
		txs = nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = wallet.Balance
	w.loaded = true
	w.txs = txs
}

func (w *Wallet) onEvent(ev feed.Event) {
	wallet, ok := ev.Record.(model.Wallet)
	if !ok {
		return
	}
	w.mu.Lock()
	w.balance = wallet.Balance
	w.loaded = true
	w.mu.Unlock()
	// A balance change implies a new transaction row behind it.
	w.reloadTransactions()
}

func (w *Wallet) reloadTransactions() {
	txs, err := w.svc.WalletTransactions(context.Background(), w.scope)
	if err != nil {
		obs.Error("view: wallet transactions reload failed", err)
		return
	}
	w.mu.Lock()
	w.txs = txs
	w.mu.Unlock()
}

// Balance returns the current balance in minor units and whether it has
// loaded at least once. Screens render a spinner until loaded is true.
func (w *Wallet) Balance() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, w.loaded
}

// Transactions returns the movement history, newest first.
func (w *Wallet) Transactions() []model.WalletTransaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.WalletTransaction(nil), w.txs...)
}

// Stale reports whether the realtime bridge is currently disconnected.
func (w *Wallet) Stale() bool {
	return w.bridge.Stale()
}
