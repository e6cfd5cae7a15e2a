// Package token models the settlement-token ledger the engine settles
// against. The engine only ever sees the Gateway interface; custody of
// pooled funds is the gateway's concern.
//
// All monetary values use shopspring/decimal — never float64 for money.
package token

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned when a payer's balance cannot cover
	// a transfer into engine custody.
	ErrInsufficientFunds = errors.New("token: insufficient balance")

	// ErrInsufficientAllowance is returned when a payer has not authorized
	// the engine to pull the requested amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")

	// ErrInsufficientCustody is returned when engine custody cannot cover
	// an outbound transfer.
	ErrInsufficientCustody = errors.New("token: insufficient custody balance")

	// ErrNonPositiveAmount is returned for zero or negative transfer amounts.
	ErrNonPositiveAmount = errors.New("token: amount must be positive")
)

// Gateway moves settlement-token balances between user accounts and engine
// custody. A failed transfer aborts the engine operation that requested it;
// the engine never trusts a transfer's success silently.
type Gateway interface {
	// TransferIn debits from's externally tracked balance into engine
	// custody, failing if from has not authorized at least amount.
	TransferIn(ctx context.Context, from string, amount decimal.Decimal) error

	// TransferOut credits to from engine custody, failing if the custody
	// balance is insufficient.
	TransferOut(ctx context.Context, to string, amount decimal.Decimal) error
}
