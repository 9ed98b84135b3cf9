package engine

import (
	"fmt"
	"time"

	"github.com/DoyleJ11/crash-backend/internal/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	Rules        Rules
	Scheduler    clock.Scheduler
	Distribution Distribution
	Listener     Listener
	Logger       *zap.Logger
}

// Engine drives one table through Countdown -> Active -> Crashed ->
// Countdown. It is single-threaded: every method and every timer callback
// must run on the same goroutine.
type Engine struct {
	rules    Rules
	sched    clock.Scheduler
	dist     Distribution
	listener Listener
	log      *zap.Logger
	now      func() time.Time

	ledger  *Ledger
	history *History

	phase      Phase
	roundID    string
	remaining  int
	multiplier Multiplier
	crashPoint Multiplier

	// the only live timer; nil before Start and after Stop
	timer   clock.Timer
	started bool
}

func New(cfg Config) *Engine {
	rules := cfg.Rules
	if rules == (Rules{}) {
		rules = DefaultRules()
	}
	e := &Engine{
		rules:    rules,
		sched:    cfg.Scheduler,
		dist:     cfg.Distribution,
		listener: cfg.Listener,
		log:      cfg.Logger,
		now:      time.Now,
		ledger:   NewLedger(),
		history:  NewHistory(rules.HistorySize),
	}
	if e.dist == nil {
		e.dist = NewDistribution(nil)
	}
	if e.listener == nil {
		e.listener = NopListener{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	// nothing can be bet on until the first countdown opens
	e.ledger.Lock()
	return e
}

// Start begins the first countdown. Rounds run with or without bets.
// Start is one-shot: later calls, including after Stop, do nothing.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	e.beginCountdown()
}

// Stop cancels the live timer for good. The engine keeps its state, and
// open bets stay as they are.
func (e *Engine) Stop() {
	e.cancelTimer()
}

func (e *Engine) PlaceBet(req BetRequest) (Bet, error) {
	bet, err := e.ledger.PlaceBet(req.PlayerID, req.Amount, req.AutoCashout)
	if err != nil {
		return Bet{}, err
	}
	e.log.Debug("bet placed",
		zap.String("round_id", e.roundID),
		zap.String("player_id", bet.PlayerID),
		zap.String("amount", bet.Amount.StringFixed(2)),
		zap.Stringer("auto_cashout", bet.AutoCashout),
	)
	e.notify(func(l Listener) { l.OnBetPlaced(bet) })
	return bet, nil
}

// RequestCashout settles the player's bet at the current multiplier.
func (e *Engine) RequestCashout(playerID string) (Bet, error) {
	if e.phase != PhaseActive {
		return Bet{}, fmt.Errorf("%w: phase is %s", ErrNotActivePhase, e.phase)
	}
	bet, err := e.ledger.Cashout(playerID, e.multiplier)
	if err != nil {
		return Bet{}, err
	}
	e.resolved(bet)
	return bet, nil
}

func (e *Engine) Phase() Phase { return e.phase }

func (e *Engine) History() []Multiplier { return e.history.Values() }

func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		Phase:      e.phase,
		RoundID:    e.roundID,
		Multiplier: e.multiplier,
		Bets:       e.ledger.Bets(),
		History:    e.history.Values(),
	}
	switch e.phase {
	case PhaseCountdown:
		s.Remaining = e.remaining
	case PhaseCrashed:
		s.CrashPoint = e.crashPoint
	}
	return s
}

func (e *Engine) beginCountdown() {
	e.cancelTimer()
	e.ledger.Clear()
	e.ledger.Unlock()

	e.roundID = uuid.NewString()
	e.ledger.SetRound(e.roundID)
	e.phase = PhaseCountdown
	e.remaining = e.rules.CountdownSeconds
	e.multiplier = One
	e.crashPoint = 0

	e.log.Debug("countdown started", zap.String("round_id", e.roundID), zap.Int("seconds", e.remaining))
	e.emitPhase()
	e.timer = e.sched.Every(e.rules.CountdownTick, e.countdownTick)
}

func (e *Engine) countdownTick() {
	if e.phase != PhaseCountdown {
		return
	}
	e.remaining--
	if e.remaining > 0 {
		e.emitPhase()
		return
	}
	e.ledger.Lock()
	e.launch()
}

func (e *Engine) launch() {
	e.cancelTimer()
	e.phase = PhaseActive
	e.remaining = 0
	e.multiplier = One
	e.crashPoint = max(e.dist.Draw(), MinCrashPoint)

	e.log.Debug("round active", zap.String("round_id", e.roundID), zap.Int("bets", e.ledger.Len()))
	e.emitPhase()
	e.timer = e.sched.Every(e.rules.FlightTick, e.flightTick)
}

func (e *Engine) flightTick() {
	if e.phase != PhaseActive {
		return
	}
	// never step past the crash point; the frozen value is the crash point
	e.multiplier = min(e.multiplier.Next(), e.crashPoint)
	m := e.multiplier
	e.notify(func(l Listener) { l.OnMultiplierTick(m) })

	for _, bet := range e.ledger.EvaluateAutoCashouts(e.multiplier) {
		e.resolved(bet)
	}

	if e.multiplier >= e.crashPoint {
		e.crash()
	}
}

func (e *Engine) crash() {
	e.cancelTimer()
	e.phase = PhaseCrashed
	e.multiplier = e.crashPoint

	for _, bet := range e.ledger.SettleAllAsLost() {
		e.resolved(bet)
	}
	e.history.Push(e.crashPoint)

	result := RoundResult{
		RoundID:    e.roundID,
		CrashPoint: e.crashPoint,
		Bets:       e.ledger.Bets(),
		CrashedAt:  e.now(),
	}
	totals := SumBets(result.Bets)
	e.log.Info("round crashed",
		zap.String("round_id", e.roundID),
		zap.Stringer("crash_point", e.crashPoint),
		zap.Int("bets", len(result.Bets)),
		zap.String("wagered", totals.Wagered.StringFixed(2)),
		zap.String("player_profit", totals.Profit.StringFixed(2)),
	)

	history := e.history.Values()
	e.notify(func(l Listener) { l.OnRoundCrashed(result) })
	e.notify(func(l Listener) { l.OnHistoryUpdated(history) })
	e.emitPhase()

	e.timer = e.sched.After(e.rules.CrashPause, e.beginCountdown)
}

func (e *Engine) resolved(bet Bet) {
	e.log.Debug("bet resolved",
		zap.String("round_id", bet.RoundID),
		zap.String("player_id", bet.PlayerID),
		zap.String("status", string(bet.Status)),
		zap.Stringer("at", bet.CashoutAt),
		zap.String("profit", bet.Profit.StringFixed(2)),
	)
	e.notify(func(l Listener) { l.OnBetResolved(bet) })
}

func (e *Engine) cancelTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) emitPhase() {
	pc := PhaseChange{Phase: e.phase, RoundID: e.roundID}
	switch e.phase {
	case PhaseCountdown:
		pc.Remaining = e.remaining
		pc.Message = fmt.Sprintf("Next game starts in %d seconds", e.remaining)
	case PhaseActive:
		pc.Multiplier = e.multiplier
		pc.Message = "Game is active!"
	case PhaseCrashed:
		pc.Multiplier = e.multiplier
		pc.CrashPoint = e.crashPoint
		pc.Message = "Crashed at " + e.crashPoint.String()
	}
	e.notify(func(l Listener) { l.OnPhaseChange(pc) })
}

// notify keeps a misbehaving listener from taking the engine or the other
// listeners down.
func (e *Engine) notify(call func(Listener)) {
	if ls, ok := e.listener.(Listeners); ok {
		for _, l := range ls {
			e.notifyOne(l, call)
		}
		return
	}
	e.notifyOne(e.listener, call)
}

func (e *Engine) notifyOne(l Listener, call func(Listener)) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("listener panicked", zap.Any("panic", r), zap.String("round_id", e.roundID))
		}
	}()
	call(l)
}
