// Package curve implements the constant-ratio bonding curve used to price
// answer shares.
//
// The curve maintains price = poolValue / totalShares explicitly: a buy adds
// the after-fee amount to the pool and mints proportionally many shares, a
// sell burns shares and pays out the proportional slice of the pool. The
// trade mechanics alone leave the ratio unchanged; price impact emerges
// because fees are taken off the top before the proportional mint, and
// because integer truncation never rounds in the trader's favor.
//
// All monetary values use shopspring/decimal — never float64 for money.
// Values are integers counted in base units of the settlement token
// (six decimals, so 1 token = 1,000,000 base units). Every division here
// truncates toward zero via decimal.QuoRem with precision 0.
package curve

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyPool is returned when a quote is requested against an answer
	// whose pool or share supply is empty. The engine's reserve floors make
	// this unreachable through public entry points.
	ErrEmptyPool = errors.New("curve: pool value and share supply must be positive")

	// Unit is one settlement token in base units (six decimal places).
	Unit = decimal.New(1, 6)

	// MinPoolReserve is the pool floor an answer must retain after any
	// sell: one settlement-token unit.
	MinPoolReserve = Unit

	// MinSharesReserve is the share-supply floor after any sell.
	MinSharesReserve = decimal.NewFromInt(1)

	// BpsDenominator converts basis points to a fraction.
	BpsDenominator = decimal.NewFromInt(10000)
)

// mulDiv returns a*b/c truncated toward zero. All callers pass non-negative
// operands, so truncation always shaves value off the trader's side.
func mulDiv(a, b, c decimal.Decimal) decimal.Decimal {
	q, _ := a.Mul(b).QuoRem(c, 0)
	return q
}

// Fee returns amount * bps / 10000, truncated.
func Fee(amount decimal.Decimal, bps int64) decimal.Decimal {
	q, _ := amount.Mul(decimal.NewFromInt(bps)).QuoRem(BpsDenominator, 0)
	return q
}

// GenesisShares converts a proposal stake into the initial share supply at
// the genesis price of exactly one token per share.
func GenesisShares(stake decimal.Decimal) decimal.Decimal {
	q, _ := stake.QuoRem(Unit, 0)
	return q
}

// SharesOut quotes the shares minted for an after-fee buy amount:
//
//	sharesOut = amountAfterFees * totalShares / poolValue
func SharesOut(amountAfterFees, totalShares, poolValue decimal.Decimal) (decimal.Decimal, error) {
	if poolValue.Sign() <= 0 || totalShares.Sign() <= 0 {
		return decimal.Zero, ErrEmptyPool
	}
	return mulDiv(amountAfterFees, totalShares, poolValue), nil
}

// GrossPayout quotes the pool slice redeemed by burning sharesIn:
//
//	usdcOut = sharesIn * poolValue / totalShares
func GrossPayout(sharesIn, poolValue, totalShares decimal.Decimal) (decimal.Decimal, error) {
	if poolValue.Sign() <= 0 || totalShares.Sign() <= 0 {
		return decimal.Zero, ErrEmptyPool
	}
	return mulDiv(sharesIn, poolValue, totalShares), nil
}

// SpotPrice returns poolValue / totalShares in base units per share,
// truncated. At genesis this is exactly Unit.
func SpotPrice(poolValue, totalShares decimal.Decimal) (decimal.Decimal, error) {
	if totalShares.Sign() <= 0 {
		return decimal.Zero, ErrEmptyPool
	}
	q, _ := poolValue.QuoRem(totalShares, 0)
	return q, nil
}

// Apportion returns total * part / whole truncated toward zero. Used for
// pro-rata cost-basis reduction on partial sells.
func Apportion(total, part, whole decimal.Decimal) decimal.Decimal {
	if whole.Sign() <= 0 {
		return decimal.Zero
	}
	return mulDiv(total, part, whole)
}

// ViolatesReserve reports whether a sell of sharesIn redeeming gross would
// drop the answer below either reserve floor. Such a sell is rejected
// outright rather than partially filled.
func ViolatesReserve(totalShares, sharesIn, poolValue, gross decimal.Decimal) bool {
	if totalShares.Sub(sharesIn).LessThan(MinSharesReserve) {
		return true
	}
	return poolValue.Sub(gross).LessThan(MinPoolReserve)
}
