package engine

import "time"

func DefaultRules() Rules {
	return Rules{
		CountdownSeconds: 10,
		CountdownTick:    time.Second,
		FlightTick:       100 * time.Millisecond,
		CrashPause:       time.Second,
		HistorySize:      DefaultHistorySize,
	}
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) OnPhaseChange(PhaseChange) {}
func (NopListener) OnMultiplierTick(Multiplier) {}
func (NopListener) OnRoundCrashed(RoundResult) {}
func (NopListener) OnBetPlaced(Bet) {}
func (NopListener) OnBetResolved(Bet) {}
func (NopListener) OnHistoryUpdated([]Multiplier) {}

// Listeners fans every event out in order.
type Listeners []Listener

func (ls Listeners) OnPhaseChange(pc PhaseChange) {
	for _, l := range ls {
		l.OnPhaseChange(pc)
	}
}

func (ls Listeners) OnMultiplierTick(m Multiplier) {
	for _, l := range ls {
		l.OnMultiplierTick(m)
	}
}

func (ls Listeners) OnRoundCrashed(r RoundResult) {
	for _, l := range ls {
		l.OnRoundCrashed(r)
	}
}

func (ls Listeners) OnBetPlaced(b Bet) {
	for _, l := range ls {
		l.OnBetPlaced(b)
	}
}

func (ls Listeners) OnBetResolved(b Bet) {
	for _, l := range ls {
		l.OnBetResolved(b)
	}
}

func (ls Listeners) OnHistoryUpdated(h []Multiplier) {
	for _, l := range ls {
		l.OnHistoryUpdated(h)
	}
}
