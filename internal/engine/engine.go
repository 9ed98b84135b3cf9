package engine

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidBet = errors.New("invalid bet")
var ErrRoundLocked = errors.New("bets are locked for this round")
var ErrNoActiveBet = errors.New("no active bet")
var ErrNotActivePhase = errors.New("round is not active")
var ErrDuplicateBet = errors.New("bet already placed this round")

type Phase string

const (
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseCrashed   Phase = "crashed"
)

type BetStatus string

const (
	BetActive    BetStatus = "active"
	BetCashedOut BetStatus = "cashed_out"
	BetLost      BetStatus = "lost"
)

type Bet struct {
	ID          string
	RoundID     string
	PlayerID    string
	Amount      decimal.Decimal
	AutoCashout Multiplier // zero means manual cashout only
	Status      BetStatus
	CashoutAt   Multiplier
	Profit      decimal.Decimal
	PlacedAt    time.Time
}

// Payout is the gross amount returned to the player, principal included.
func (b Bet) Payout() decimal.Decimal {
	if b.Status != BetCashedOut {
		return decimal.Zero
	}
	return b.Amount.Mul(b.CashoutAt.Decimal()).Round(2)
}

type BetRequest struct {
	PlayerID    string
	Amount      float64
	AutoCashout *float64
}

type PhaseChange struct {
	Phase      Phase
	RoundID    string
	Remaining  int        // countdown seconds, Countdown only
	Multiplier Multiplier // Active and Crashed
	CrashPoint Multiplier // Crashed only
	Message    string
}

type RoundResult struct {
	RoundID    string
	CrashPoint Multiplier
	Bets       []Bet
	CrashedAt  time.Time
}

// Listener receives state changes from an Engine. Calls are synchronous and
// happen on the engine's goroutine; a panicking listener is recovered.
type Listener interface {
	OnPhaseChange(PhaseChange)
	OnMultiplierTick(Multiplier)
	OnRoundCrashed(RoundResult)
	OnBetPlaced(Bet)
	OnBetResolved(Bet)
	OnHistoryUpdated([]Multiplier) // oldest first
}

type Snapshot struct {
	Phase      Phase
	RoundID    string
	Remaining  int
	Multiplier Multiplier
	CrashPoint Multiplier // zero until the round crashes
	Bets       []Bet
	History    []Multiplier
}

// Rules holds the round timing.
type Rules struct {
	CountdownSeconds int
	CountdownTick    time.Duration
	FlightTick       time.Duration
	CrashPause       time.Duration
	HistorySize      int
}
