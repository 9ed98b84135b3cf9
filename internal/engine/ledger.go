package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger holds the bets of the live round keyed by player id. It is not
// safe for concurrent use; the owning Engine serializes access.
type Ledger struct {
	roundID string
	locked  bool
	bets    map[string]*Bet
	order   []string
	now     func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		bets: make(map[string]*Bet),
		now:  time.Now,
	}
}

func (l *Ledger) Lock()        { l.locked = true }
func (l *Ledger) Unlock()      { l.locked = false }
func (l *Ledger) Locked() bool { return l.locked }

// SetRound tags bets placed from now on with roundID.
func (l *Ledger) SetRound(roundID string) { l.roundID = roundID }

func (l *Ledger) PlaceBet(playerID string, amount float64, autoCashout *float64) (Bet, error) {
	if l.locked {
		return Bet{}, ErrRoundLocked
	}
	if playerID == "" {
		return Bet{}, fmt.Errorf("%w: missing player id", ErrInvalidBet)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return Bet{}, fmt.Errorf("%w: amount must be a positive number", ErrInvalidBet)
	}
	stake := decimal.NewFromFloat(amount).Round(2)
	if !stake.IsPositive() {
		return Bet{}, fmt.Errorf("%w: amount rounds to zero", ErrInvalidBet)
	}

	var target Multiplier
	if autoCashout != nil {
		f := *autoCashout
		if math.IsNaN(f) || math.IsInf(f, 0) || f < One.Float64() {
			return Bet{}, fmt.Errorf("%w: auto cashout must be at least 1.00x", ErrInvalidBet)
		}
		target = MultiplierFromFloat(f)
	}

	if _, ok := l.bets[playerID]; ok {
		return Bet{}, fmt.Errorf("%w: player %s", ErrDuplicateBet, playerID)
	}

	b := &Bet{
		ID:          uuid.NewString(),
		RoundID:     l.roundID,
		PlayerID:    playerID,
		Amount:      stake,
		AutoCashout: target,
		Status:      BetActive,
		Profit:      decimal.Zero,
		PlacedAt:    l.now(),
	}
	l.bets[playerID] = b
	l.order = append(l.order, playerID)
	return *b, nil
}

// EvaluateAutoCashouts settles every active bet whose target has been
// reached. The bet is paid at its target, not at current.
func (l *Ledger) EvaluateAutoCashouts(current Multiplier) []Bet {
	var resolved []Bet
	for _, id := range l.order {
		b := l.bets[id]
		if b.Status != BetActive || b.AutoCashout == 0 || b.AutoCashout > current {
			continue
		}
		cashOut(b, b.AutoCashout)
		resolved = append(resolved, *b)
	}
	return resolved
}

func (l *Ledger) Cashout(playerID string, at Multiplier) (Bet, error) {
	b, ok := l.bets[playerID]
	if !ok || b.Status != BetActive {
		return Bet{}, fmt.Errorf("%w: player %s", ErrNoActiveBet, playerID)
	}
	cashOut(b, at)
	return *b, nil
}

func (l *Ledger) SettleAllAsLost() []Bet {
	var lost []Bet
	for _, id := range l.order {
		b := l.bets[id]
		if b.Status != BetActive {
			continue
		}
		b.Status = BetLost
		b.Profit = b.Amount.Neg()
		lost = append(lost, *b)
	}
	return lost
}

func (l *Ledger) Clear() {
	clear(l.bets)
	l.order = l.order[:0]
}

// Bets returns copies in placement order.
func (l *Ledger) Bets() []Bet {
	out := make([]Bet, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.bets[id])
	}
	return out
}

func (l *Ledger) Get(playerID string) (Bet, bool) {
	b, ok := l.bets[playerID]
	if !ok {
		return Bet{}, false
	}
	return *b, true
}

func (l *Ledger) Len() int { return len(l.order) }

type Totals struct {
	Wagered decimal.Decimal
	Profit  decimal.Decimal // net player profit; the house takes the negation
}

func (l *Ledger) Totals() Totals {
	return SumBets(l.Bets())
}

func SumBets(bets []Bet) Totals {
	t := Totals{Wagered: decimal.Zero, Profit: decimal.Zero}
	for _, b := range bets {
		t.Wagered = t.Wagered.Add(b.Amount)
		t.Profit = t.Profit.Add(b.Profit)
	}
	return t
}

func cashOut(b *Bet, at Multiplier) {
	b.Status = BetCashedOut
	b.CashoutAt = at
	b.Profit = b.Amount.Mul((at - One).Decimal()).Round(2)
}
