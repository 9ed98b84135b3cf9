package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/DoyleJ11/crash-backend/internal/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	NopListener
	phases   []PhaseChange
	ticks    []Multiplier
	crashes  []RoundResult
	placed   []Bet
	resolved []Bet
	history  [][]Multiplier
}

func (r *recorder) OnPhaseChange(pc PhaseChange) { r.phases = append(r.phases, pc) }
func (r *recorder) OnMultiplierTick(m Multiplier) { r.ticks = append(r.ticks, m) }
func (r *recorder) OnRoundCrashed(res RoundResult) { r.crashes = append(r.crashes, res) }
func (r *recorder) OnBetPlaced(b Bet) { r.placed = append(r.placed, b) }
func (r *recorder) OnBetResolved(b Bet) { r.resolved = append(r.resolved, b) }
func (r *recorder) OnHistoryUpdated(h []Multiplier) { r.history = append(r.history, h) }

func newTestEngine(t *testing.T, dist Distribution) (*Engine, *clock.Manual, *recorder) {
	t.Helper()
	m := clock.NewManual()
	rec := &recorder{}
	e := New(Config{
		Rules:        DefaultRules(),
		Scheduler:    m,
		Distribution: dist,
		Listener:     rec,
	})
	e.Start()
	return e, m, rec
}

func float(f float64) *float64 { return &f }

// untilActive skips the default ten second countdown.
func untilActive(m *clock.Manual) { m.Advance(10 * time.Second) }

func flightTicks(m *clock.Manual, n int) { m.Advance(time.Duration(n) * 100 * time.Millisecond) }

func TestCountdown_AutoStartsWithNoBets(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(350))

	require.Equal(t, PhaseCountdown, e.Phase())
	require.Equal(t, 10, e.Snapshot().Remaining)
	require.Equal(t, "Next game starts in 10 seconds", rec.phases[0].Message)

	m.Advance(9 * time.Second)
	assert.Equal(t, PhaseCountdown, e.Phase())
	assert.Equal(t, 1, e.Snapshot().Remaining)

	m.Advance(time.Second)
	assert.Equal(t, PhaseActive, e.Phase())
	assert.Equal(t, One, e.Snapshot().Multiplier)
	assert.Equal(t, 1, m.Pending())
}

func TestFlight_MultiplierStepsBelowAndAboveTen(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(1500))
	untilActive(m)

	// 900 ticks to reach 10.00x, 100 more to reach 15.00x
	flightTicks(m, 1000)
	require.Equal(t, PhaseCrashed, e.Phase())
	require.Len(t, rec.ticks, 1000)

	prev := One
	for i, cur := range rec.ticks {
		want := Multiplier(1)
		if prev >= 1000 {
			want = 5
		}
		if cur-prev != want {
			t.Fatalf("tick %d: %v -> %v, want step %d", i, prev, cur, want)
		}
		prev = cur
	}
	assert.Equal(t, Multiplier(1500), rec.ticks[len(rec.ticks)-1])
}

func TestFlight_StepIsCappedAtCrashPoint(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(1002))
	untilActive(m)

	flightTicks(m, 901)
	require.Equal(t, PhaseCrashed, e.Phase())
	assert.Equal(t, Multiplier(1002), rec.ticks[len(rec.ticks)-1])
	assert.Equal(t, Multiplier(1002), e.Snapshot().Multiplier)
	assert.Equal(t, Multiplier(1002), e.Snapshot().CrashPoint)
}

func TestAutoCashout_LocksInTarget(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(350))

	_, err := e.PlaceBet(BetRequest{PlayerID: "alice", Amount: 10, AutoCashout: float(2.00)})
	require.NoError(t, err)

	untilActive(m)
	flightTicks(m, 250)
	require.Equal(t, PhaseCrashed, e.Phase())

	require.Len(t, rec.resolved, 1)
	bet := rec.resolved[0]
	assert.Equal(t, BetCashedOut, bet.Status)
	assert.Equal(t, Multiplier(200), bet.CashoutAt)
	assert.True(t, bet.Profit.Equal(decimal.NewFromInt(10)), "profit %s", bet.Profit)
	assert.True(t, bet.Payout().Equal(decimal.NewFromInt(20)), "payout %s", bet.Payout())
}

func TestAutoCashout_OvershootPaysTargetNotTick(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(2000))

	_, err := e.PlaceBet(BetRequest{PlayerID: "bob", Amount: 10, AutoCashout: float(10.02)})
	require.NoError(t, err)

	untilActive(m)
	flightTicks(m, 901) // 10.00x -> 10.05x
	require.Equal(t, Multiplier(1005), e.Snapshot().Multiplier)

	require.Len(t, rec.resolved, 1)
	assert.Equal(t, Multiplier(1002), rec.resolved[0].CashoutAt)
	assert.Equal(t, "90.20", rec.resolved[0].Profit.StringFixed(2))
}

func TestAutoCashout_AtMinimumCrashPoint(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(101))

	_, err := e.PlaceBet(BetRequest{PlayerID: "carol", Amount: 10, AutoCashout: float(1.01)})
	require.NoError(t, err)
	_, err = e.PlaceBet(BetRequest{PlayerID: "dave", Amount: 10, AutoCashout: float(1.02)})
	require.NoError(t, err)

	untilActive(m)
	flightTicks(m, 1)
	require.Equal(t, PhaseCrashed, e.Phase())

	bets := rec.crashes[0].Bets
	assert.Equal(t, BetCashedOut, bets[0].Status)
	assert.Equal(t, "0.10", bets[0].Profit.StringFixed(2))
	assert.Equal(t, BetLost, bets[1].Status)
}

func TestAutoCashout_ResolvesEachBetOnce(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(500))

	_, err := e.PlaceBet(BetRequest{PlayerID: "alice", Amount: 5, AutoCashout: float(1.50)})
	require.NoError(t, err)

	untilActive(m)
	flightTicks(m, 400)
	require.Equal(t, PhaseCrashed, e.Phase())

	require.Len(t, rec.resolved, 1)
	assert.Equal(t, Multiplier(150), rec.crashes[0].Bets[0].CashoutAt)
}

func TestCrash_UncashedBetIsLost(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(150))

	_, err := e.PlaceBet(BetRequest{PlayerID: "alice", Amount: 10})
	require.NoError(t, err)

	untilActive(m)
	flightTicks(m, 50)
	require.Equal(t, PhaseCrashed, e.Phase())

	require.Len(t, rec.resolved, 1)
	assert.Equal(t, BetLost, rec.resolved[0].Status)
	assert.Equal(t, "-10.00", rec.resolved[0].Profit.StringFixed(2))
	assert.Equal(t, []Multiplier{150}, e.History())
}

func TestPlaceBet_RejectedWhileActive(t *testing.T) {
	e, m, _ := newTestEngine(t, Fixed(500))
	untilActive(m)

	before := e.Snapshot().Bets
	_, err := e.PlaceBet(BetRequest{PlayerID: "late", Amount: 10})
	require.True(t, errors.Is(err, ErrRoundLocked), "got %v", err)
	assert.Equal(t, before, e.Snapshot().Bets)
}

func TestPlaceBet_RejectedWhileCrashed(t *testing.T) {
	e, m, _ := newTestEngine(t, Fixed(101))
	untilActive(m)
	flightTicks(m, 1)
	require.Equal(t, PhaseCrashed, e.Phase())

	_, err := e.PlaceBet(BetRequest{PlayerID: "late", Amount: 10})
	assert.ErrorIs(t, err, ErrRoundLocked)
}

func TestPlaceBet_RejectedBeforeStart(t *testing.T) {
	e := New(Config{Scheduler: clock.NewManual()})
	_, err := e.PlaceBet(BetRequest{PlayerID: "early", Amount: 10})
	assert.ErrorIs(t, err, ErrRoundLocked)
}

func TestManualCashout(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(300))

	_, err := e.PlaceBet(BetRequest{PlayerID: "alice", Amount: 10})
	require.NoError(t, err)
	_, err = e.PlaceBet(BetRequest{PlayerID: "bob", Amount: 4})
	require.NoError(t, err)

	_, err = e.RequestCashout("alice")
	require.ErrorIs(t, err, ErrNotActivePhase)

	untilActive(m)
	flightTicks(m, 50)

	bet, err := e.RequestCashout("alice")
	require.NoError(t, err)
	assert.Equal(t, Multiplier(150), bet.CashoutAt)
	assert.Equal(t, "5.00", bet.Profit.StringFixed(2))

	_, err = e.RequestCashout("alice")
	assert.ErrorIs(t, err, ErrNoActiveBet)
	_, err = e.RequestCashout("nobody")
	assert.ErrorIs(t, err, ErrNoActiveBet)

	// only the caller's bet moved
	b, ok := e.ledger.Get("bob")
	require.True(t, ok)
	assert.Equal(t, BetActive, b.Status)

	flightTicks(m, 150)
	require.Equal(t, PhaseCrashed, e.Phase())
	require.Len(t, rec.resolved, 2)
	assert.Equal(t, "bob", rec.resolved[1].PlayerID)
	assert.Equal(t, BetLost, rec.resolved[1].Status)

	_, err = e.RequestCashout("bob")
	assert.ErrorIs(t, err, ErrNotActivePhase)
}

func TestSettlement_ProfitInvariant(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(420))

	reqs := []BetRequest{
		{PlayerID: "a", Amount: 10, AutoCashout: float(2)},
		{PlayerID: "b", Amount: 25, AutoCashout: float(4.19)},
		{PlayerID: "c", Amount: 7.25, AutoCashout: float(4.21)},
		{PlayerID: "d", Amount: 3},
		{PlayerID: "e", Amount: 100},
	}
	for _, r := range reqs {
		_, err := e.PlaceBet(r)
		require.NoError(t, err)
	}

	untilActive(m)
	flightTicks(m, 100)
	_, err := e.RequestCashout("d")
	require.NoError(t, err)
	flightTicks(m, 400)
	require.Equal(t, PhaseCrashed, e.Phase())
	require.Len(t, rec.crashes, 1)

	want := decimal.Zero
	for _, b := range rec.crashes[0].Bets {
		require.NotEqual(t, BetActive, b.Status, "bet %s left active", b.PlayerID)
		switch b.Status {
		case BetCashedOut:
			want = want.Add(b.Amount.Mul(b.CashoutAt.Decimal().Sub(decimal.NewFromInt(1))))
		case BetLost:
			want = want.Sub(b.Amount)
		}
	}
	got := SumBets(rec.crashes[0].Bets).Profit
	assert.True(t, got.Equal(want.Round(2)), "sum profit %s, want %s", got, want)
	assert.Equal(t, "-14.50", got.StringFixed(2))
}

func TestCrashed_ReturnsToCountdownAfterPause(t *testing.T) {
	e, m, _ := newTestEngine(t, Fixed(150))

	_, err := e.PlaceBet(BetRequest{PlayerID: "alice", Amount: 10})
	require.NoError(t, err)
	firstRound := e.Snapshot().RoundID

	untilActive(m)
	flightTicks(m, 50)
	require.Equal(t, PhaseCrashed, e.Phase())
	require.Len(t, e.Snapshot().Bets, 1)

	m.Advance(999 * time.Millisecond)
	require.Equal(t, PhaseCrashed, e.Phase())

	m.Advance(time.Millisecond)
	snap := e.Snapshot()
	assert.Equal(t, PhaseCountdown, snap.Phase)
	assert.Equal(t, 10, snap.Remaining)
	assert.Empty(t, snap.Bets)
	assert.NotEqual(t, firstRound, snap.RoundID)

	_, err = e.PlaceBet(BetRequest{PlayerID: "alice", Amount: 10})
	assert.NoError(t, err)
}

func TestHistory_KeepsTenMostRecentRounds(t *testing.T) {
	points := make([]Multiplier, 15)
	for i := range points {
		points[i] = Multiplier(110 + i)
	}
	e, m, rec := newTestEngine(t, NewSequence(points...))

	for guard := 0; len(rec.crashes) < 15; guard++ {
		require.Less(t, guard, 100_000, "rounds did not complete")
		m.Advance(100 * time.Millisecond)
	}

	assert.Equal(t, points[5:], e.History())
	assert.Equal(t, points[5:], rec.history[len(rec.history)-1])
}

func TestTimers_AtMostOneLive(t *testing.T) {
	e, m, rec := newTestEngine(t, NewSequence(101, 250))

	for len(rec.crashes) < 2 {
		require.LessOrEqual(t, m.Pending(), 1)
		m.Advance(50 * time.Millisecond)
	}
	require.LessOrEqual(t, m.Pending(), 1)

	e.Stop()
	assert.Equal(t, 0, m.Pending())
	phase := e.Phase()
	m.Advance(time.Minute)
	assert.Equal(t, phase, e.Phase())
}

func TestStart_IsOneShot(t *testing.T) {
	e, m, rec := newTestEngine(t, Fixed(500))
	_, err := e.PlaceBet(BetRequest{PlayerID: "alice", Amount: 10})
	require.NoError(t, err)
	untilActive(m)
	flightTicks(m, 5)
	round := e.Snapshot().RoundID

	e.Stop()
	e.Start()
	e.Start()

	// no fresh countdown: the open bet is neither cleared nor silently dropped
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, PhaseActive, e.Phase())
	assert.Equal(t, round, e.Snapshot().RoundID)
	bets := e.Snapshot().Bets
	require.Len(t, bets, 1)
	assert.Equal(t, BetActive, bets[0].Status)
	assert.Empty(t, rec.resolved)

	m.Advance(time.Minute)
	assert.Equal(t, PhaseActive, e.Phase())
}

type panicky struct{ NopListener }

func (panicky) OnMultiplierTick(Multiplier) { panic("display broke") }
func (panicky) OnPhaseChange(PhaseChange) { panic("display broke") }

func TestListenerPanicDoesNotStopEngine(t *testing.T) {
	m := clock.NewManual()
	rec := &recorder{}
	e := New(Config{
		Scheduler:    m,
		Distribution: Fixed(120),
		Listener:     Listeners{panicky{}, rec},
	})
	e.Start()

	untilActive(m)
	flightTicks(m, 20)

	assert.Equal(t, PhaseCrashed, e.Phase())
	assert.Len(t, rec.ticks, 20, "listeners after a panicking one still get events")
	assert.Len(t, rec.crashes, 1)
}

func TestSnapshot_HidesCrashPointUntilCrash(t *testing.T) {
	e, m, _ := newTestEngine(t, Fixed(200))
	untilActive(m)
	flightTicks(m, 10)

	snap := e.Snapshot()
	assert.Equal(t, PhaseActive, snap.Phase)
	assert.Zero(t, snap.CrashPoint)
	assert.Equal(t, Multiplier(110), snap.Multiplier)
}
