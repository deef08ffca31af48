// Package backtester provides position and equity bookkeeping for a run.
package backtester

import (
	"time"

	"github.com/quantbench/strategy-tester/pkg/types"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ledger tracks the zero-or-one open position, realized equity, and the
// completed trade history of a single run. It is owned exclusively by
// the engine loop, so no locking is needed.
type ledger struct {
	config   *types.EngineConfig
	equity   decimal.Decimal
	position *types.Position
	trades   []types.Trade
}

func newLedger(config *types.EngineConfig) *ledger {
	return &ledger{
		config: config,
		equity: config.InitialCapital,
		trades: make([]types.Trade, 0),
	}
}

// flat reports whether no position is open.
func (l *ledger) flat() bool { return l.position == nil }

// state returns the open position's direction, or "" when flat.
func (l *ledger) state() types.Direction {
	if l.position == nil {
		return ""
	}
	return l.position.Direction
}

// commission returns the fee for one leg on the given notional.
func (l *ledger) commission(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Mul(l.config.CommissionPct).Div(hundred)
}

// open enters a position at the fill price, sized as a percentage of
// current realized equity. Ignored while a position is already open
// (no pyramiding). The entry-leg commission is deducted from equity
// immediately and carried on the position until closure.
func (l *ledger) open(direction types.Direction, fill decimal.Decimal, at time.Time) {
	if l.position != nil {
		return
	}

	qty := l.equity.Mul(l.config.PositionSizePct).Div(hundred).Div(fill)
	commission := l.commission(qty, fill)
	l.equity = l.equity.Sub(commission)

	signed := qty
	if direction == types.DirectionShort {
		signed = qty.Neg()
	}

	l.position = &types.Position{
		Direction:       direction,
		Quantity:        signed,
		EntryPrice:      fill,
		EntryTime:       at,
		EntryCommission: commission,
	}
}

// close exits the open position at the fill price and appends a Trade.
// Ignored when flat or when the direction does not match the open
// position. The recorded commission is the round-trip total, so the
// trade record matches its aggregate equity impact exactly.
func (l *ledger) close(direction types.Direction, fill decimal.Decimal, at time.Time) {
	if l.position == nil || l.position.Direction != direction {
		return
	}

	qty := l.position.Quantity.Abs()
	exitCommission := l.commission(qty, fill)

	var pnl decimal.Decimal
	if direction == types.DirectionLong {
		pnl = qty.Mul(fill.Sub(l.position.EntryPrice))
	} else {
		pnl = qty.Mul(l.position.EntryPrice.Sub(fill))
	}
	l.equity = l.equity.Add(pnl).Sub(exitCommission)

	l.trades = append(l.trades, types.Trade{
		Direction:  direction,
		EntryTime:  l.position.EntryTime,
		EntryPrice: l.position.EntryPrice,
		ExitTime:   at,
		ExitPrice:  fill,
		Quantity:   qty,
		PnL:        pnl,
		Commission: l.position.EntryCommission.Add(exitCommission),
	})
	l.position = nil
}

// markToMarket values the account at the given close price: realized
// equity plus unrealized PnL of the open position, if any.
func (l *ledger) markToMarket(close decimal.Decimal) decimal.Decimal {
	if l.position == nil {
		return l.equity
	}

	qty := l.position.Quantity.Abs()
	if l.position.Direction == types.DirectionLong {
		return l.equity.Add(qty.Mul(close.Sub(l.position.EntryPrice)))
	}
	return l.equity.Add(qty.Mul(l.position.EntryPrice.Sub(close)))
}
