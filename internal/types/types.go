package types

import "github.com/DoyleJ11/crash-backend/internal/engine"

// Client -> Server
//
//	PlaceBet: player_id, amount, auto_cashout (optional, >= 1.00)
//	Cashout:  player_id
type ClientMessage struct {
	Type        string   `json:"type"`
	PlayerID    string   `json:"player_id,omitempty"`
	Amount      float64  `json:"amount,omitempty"`
	AutoCashout *float64 `json:"auto_cashout,omitempty"`
}

const (
	MsgPlaceBet = "PlaceBet"
	MsgCashout  = "Cashout"
)

// Server -> Client
//
//	StateSnapshot: version, state{phase, round_id, remaining, multiplier, crash_point (crashed only), bets, history}
//	Phase:         phase, round_id, remaining | multiplier, crash_point, message
//	Tick:          multiplier
//	Crashed:       round_id, crash_point, bets (all settled)
//	BetPlaced:     bet
//	BetResolved:   bet
//	History:       history[{crash_point, tier}], oldest first
//	Error:         error
const (
	MsgStateSnapshot = "StateSnapshot"
	MsgPhase         = "Phase"
	MsgTick          = "Tick"
	MsgCrashed       = "Crashed"
	MsgBetPlaced     = "BetPlaced"
	MsgBetResolved   = "BetResolved"
	MsgHistory       = "History"
	MsgError         = "Error"
)

type ServerMessage struct {
	Type       string             `json:"type"`
	Version    int                `json:"version,omitempty"`
	Phase      engine.Phase       `json:"phase,omitempty"`
	RoundID    string             `json:"round_id,omitempty"`
	Remaining  int                `json:"remaining,omitempty"`
	Multiplier *engine.Multiplier `json:"multiplier,omitempty"`
	CrashPoint *engine.Multiplier `json:"crash_point,omitempty"`
	Message    string             `json:"message,omitempty"`
	Bet        *BetView           `json:"bet,omitempty"`
	Bets       []BetView          `json:"bets,omitempty"`
	History    []HistoryEntry     `json:"history,omitempty"`
	State      *StateView         `json:"state,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type BetView struct {
	ID          string             `json:"id"`
	RoundID     string             `json:"round_id"`
	PlayerID    string             `json:"player_id"`
	Amount      float64            `json:"amount"`
	AutoCashout *engine.Multiplier `json:"auto_cashout,omitempty"`
	Status      engine.BetStatus   `json:"status"`
	CashoutAt   *engine.Multiplier `json:"cashout_at,omitempty"`
	Profit      float64            `json:"profit"`
	Payout      float64            `json:"payout"`
}

type HistoryEntry struct {
	CrashPoint engine.Multiplier `json:"crash_point"`
	Tier       engine.Tier       `json:"tier"`
}

type StateView struct {
	Phase      engine.Phase       `json:"phase"`
	RoundID    string             `json:"round_id"`
	Remaining  int                `json:"remaining,omitempty"`
	Multiplier engine.Multiplier  `json:"multiplier"`
	CrashPoint *engine.Multiplier `json:"crash_point,omitempty"`
	Bets       []BetView          `json:"bets"`
	History    []HistoryEntry     `json:"history"`
}

func ToBetView(b engine.Bet) BetView {
	v := BetView{
		ID:       b.ID,
		RoundID:  b.RoundID,
		PlayerID: b.PlayerID,
		Amount:   b.Amount.InexactFloat64(),
		Status:   b.Status,
		Profit:   b.Profit.InexactFloat64(),
		Payout:   b.Payout().InexactFloat64(),
	}
	if b.AutoCashout != 0 {
		v.AutoCashout = ptr(b.AutoCashout)
	}
	if b.Status == engine.BetCashedOut {
		v.CashoutAt = ptr(b.CashoutAt)
	}
	return v
}

func ToHistory(points []engine.Multiplier) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(points))
	for _, p := range points {
		out = append(out, HistoryEntry{CrashPoint: p, Tier: engine.Classify(p)})
	}
	return out
}

func ToStateView(s engine.Snapshot) StateView {
	v := StateView{
		Phase:      s.Phase,
		RoundID:    s.RoundID,
		Remaining:  s.Remaining,
		Multiplier: s.Multiplier,
		Bets:       make([]BetView, 0, len(s.Bets)),
		History:    ToHistory(s.History),
	}
	if s.CrashPoint != 0 {
		v.CrashPoint = ptr(s.CrashPoint)
	}
	for _, b := range s.Bets {
		v.Bets = append(v.Bets, ToBetView(b))
	}
	return v
}

func PhaseMessage(pc engine.PhaseChange) ServerMessage {
	msg := ServerMessage{
		Type:      MsgPhase,
		Phase:     pc.Phase,
		RoundID:   pc.RoundID,
		Remaining: pc.Remaining,
		Message:   pc.Message,
	}
	if pc.Multiplier != 0 {
		msg.Multiplier = ptr(pc.Multiplier)
	}
	if pc.CrashPoint != 0 {
		msg.CrashPoint = ptr(pc.CrashPoint)
	}
	return msg
}

func TickMessage(m engine.Multiplier) ServerMessage {
	return ServerMessage{Type: MsgTick, Multiplier: ptr(m)}
}

func CrashedMessage(r engine.RoundResult) ServerMessage {
	msg := ServerMessage{
		Type:       MsgCrashed,
		RoundID:    r.RoundID,
		CrashPoint: ptr(r.CrashPoint),
		Message:    "Crashed at " + r.CrashPoint.String(),
		Bets:       make([]BetView, 0, len(r.Bets)),
	}
	for _, b := range r.Bets {
		msg.Bets = append(msg.Bets, ToBetView(b))
	}
	return msg
}

func BetMessage(typ string, b engine.Bet) ServerMessage {
	v := ToBetView(b)
	return ServerMessage{Type: typ, RoundID: b.RoundID, Bet: &v}
}

func HistoryMessage(points []engine.Multiplier) ServerMessage {
	return ServerMessage{Type: MsgHistory, History: ToHistory(points)}
}

func StateMessage(version int, s engine.Snapshot) ServerMessage {
	v := ToStateView(s)
	return ServerMessage{Type: MsgStateSnapshot, Version: version, State: &v}
}

func ErrorMessage(err error) ServerMessage {
	return ServerMessage{Type: MsgError, Error: err.Error()}
}

func ptr[T any](v T) *T { return &v }
