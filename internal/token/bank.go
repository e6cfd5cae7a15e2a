package token

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Bank is an in-memory Gateway with per-account balances and pull
// allowances. Used for testing and single-node deployments; a production
// deployment would put an external ledger behind the same interface.
type Bank struct {
	mu         sync.Mutex
	balances   map[string]decimal.Decimal
	allowances map[string]decimal.Decimal
	custody    decimal.Decimal
}

// NewBank creates an empty bank.
func NewBank() *Bank {
	return &Bank{
		balances:   make(map[string]decimal.Decimal),
		allowances: make(map[string]decimal.Decimal),
	}
}

// Mint credits an account balance. Test and bootstrap funding only.
func (b *Bank) Mint(account string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = b.balances[account].Add(amount)
}

// Approve authorizes the engine to pull up to amount from account.
// Replaces any prior allowance.
func (b *Bank) Approve(account string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allowances[account] = amount
}

// BalanceOf returns the free balance of an account.
func (b *Bank) BalanceOf(account string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account]
}

// Allowance returns the remaining pull authorization for an account.
func (b *Bank) Allowance(account string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowances[account]
}

// Custody returns the total amount held on behalf of the engine.
func (b *Bank) Custody() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.custody
}

// TransferIn implements Gateway.
func (b *Bank) TransferIn(_ context.Context, from string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.allowances[from].LessThan(amount) {
		return ErrInsufficientAllowance
	}
	if b.balances[from].LessThan(amount) {
		return ErrInsufficientFunds
	}

	b.allowances[from] = b.allowances[from].Sub(amount)
	b.balances[from] = b.balances[from].Sub(amount)
	b.custody = b.custody.Add(amount)
	return nil
}

// TransferOut implements Gateway.
func (b *Bank) TransferOut(_ context.Context, to string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrNonPositiveAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.custody.LessThan(amount) {
		return ErrInsufficientCustody
	}

	b.custody = b.custody.Sub(amount)
	b.balances[to] = b.balances[to].Add(amount)
	return nil
}
