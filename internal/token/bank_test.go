package token

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func d(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestTransferIn_MovesBalanceIntoCustody(t *testing.T) {
	b := NewBank()
	b.Mint("alice", d(1000))
	b.Approve("alice", d(600))

	if err := b.TransferIn(context.Background(), "alice", d(400)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !b.BalanceOf("alice").Equal(d(600)) {
		t.Errorf("expected balance 600, got %s", b.BalanceOf("alice"))
	}
	if !b.Allowance("alice").Equal(d(200)) {
		t.Errorf("expected allowance 200, got %s", b.Allowance("alice"))
	}
	if !b.Custody().Equal(d(400)) {
		t.Errorf("expected custody 400, got %s", b.Custody())
	}
}

func TestTransferIn_InsufficientAllowance(t *testing.T) {
	b := NewBank()
	b.Mint("alice", d(1000))
	b.Approve("alice", d(100))

	if err := b.TransferIn(context.Background(), "alice", d(200)); err != ErrInsufficientAllowance {
		t.Errorf("expected ErrInsufficientAllowance, got %v", err)
	}
	if !b.Custody().IsZero() {
		t.Errorf("custody should be unchanged, got %s", b.Custody())
	}
}

func TestTransferIn_InsufficientFunds(t *testing.T) {
	b := NewBank()
	b.Mint("alice", d(50))
	b.Approve("alice", d(200))

	if err := b.TransferIn(context.Background(), "alice", d(100)); err != ErrInsufficientFunds {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
	// Allowance must not be partially consumed.
	if !b.Allowance("alice").Equal(d(200)) {
		t.Errorf("allowance should be unchanged, got %s", b.Allowance("alice"))
	}
}

func TestTransferOut_RequiresCustody(t *testing.T) {
	b := NewBank()
	if err := b.TransferOut(context.Background(), "bob", d(1)); err != ErrInsufficientCustody {
		t.Errorf("expected ErrInsufficientCustody, got %v", err)
	}

	b.Mint("alice", d(100))
	b.Approve("alice", d(100))
	if err := b.TransferIn(context.Background(), "alice", d(100)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.TransferOut(context.Background(), "bob", d(60)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !b.BalanceOf("bob").Equal(d(60)) {
		t.Errorf("expected bob balance 60, got %s", b.BalanceOf("bob"))
	}
	if !b.Custody().Equal(d(40)) {
		t.Errorf("expected custody 40, got %s", b.Custody())
	}
}

func TestTransfer_RejectsNonPositiveAmounts(t *testing.T) {
	b := NewBank()
	if err := b.TransferIn(context.Background(), "alice", decimal.Zero); err != ErrNonPositiveAmount {
		t.Errorf("expected ErrNonPositiveAmount, got %v", err)
	}
	if err := b.TransferOut(context.Background(), "bob", d(-5)); err != ErrNonPositiveAmount {
		t.Errorf("expected ErrNonPositiveAmount, got %v", err)
	}
}
