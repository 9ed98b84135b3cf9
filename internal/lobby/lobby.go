package lobby

import (
	"context"
	"errors"

	"github.com/DoyleJ11/crash-backend/internal/clock"
	"github.com/DoyleJ11/crash-backend/internal/engine"
	"github.com/DoyleJ11/crash-backend/internal/types"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("lobby closed")

type Msg interface{ isLobbyMsg() }

type Join struct {
	ClientID string
	Outbox   chan types.ServerMessage // where this client wants to receive updates
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type PlaceBet struct {
	Req   engine.BetRequest
	Reply chan BetReply
}

func (PlaceBet) isLobbyMsg() {}

type Cashout struct {
	PlayerID string
	Reply    chan BetReply
}

func (Cashout) isLobbyMsg() {}

type BetReply struct {
	Bet engine.Bet
	Err error
}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// timerFired carries a scheduler callback onto the lobby goroutine.
type timerFired struct{ fn func() }

func (timerFired) isLobbyMsg() {}

type View struct {
	Code       string
	Version    int
	NumClients int
	State      engine.Snapshot
}

type Deps struct {
	Code         string
	Rules        engine.Rules
	Distribution engine.Distribution
	// Listeners receive every engine event after the client broadcast.
	Listeners []engine.Listener
	Logger    *zap.Logger
}

// Lobby owns one crash table. The engine, the client set and every timer
// callback are only touched from loop().
type Lobby struct {
	code    string
	inbox   chan Msg
	engine  *engine.Engine
	version int
	clients map[string]chan types.ServerMessage
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLobby(parent context.Context, deps Deps) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("table", deps.Code))

	l := &Lobby{
		code:    deps.Code,
		inbox:   make(chan Msg, 64),
		clients: make(map[string]chan types.ServerMessage),
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	listeners := engine.Listeners{feed{l}}
	listeners = append(listeners, deps.Listeners...)
	l.engine = engine.New(engine.Config{
		Rules:        deps.Rules,
		Scheduler:    clock.NewReal(ctx, l.dispatch),
		Distribution: deps.Distribution,
		Listener:     listeners,
		Logger:       log,
	})

	go l.loop()
	return l
}

func (l *Lobby) Code() string { return l.code }

// Inbox exposes the inbox so the hub, tests and the WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the lobby has shut down.
func (l *Lobby) Done() <-chan struct{} { return l.done }

func (l *Lobby) dispatch(fn func()) {
	select {
	case l.inbox <- timerFired{fn: fn}:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) loop() {
	defer close(l.done)
	l.engine.Start()
	l.log.Info("table opened")

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// a rejoin under the same id replaces the old feed
				if old, ok := l.clients[msg.ClientID]; ok && old != msg.Outbox {
					l.drop(msg.ClientID)
				}
				l.clients[msg.ClientID] = msg.Outbox
				l.send(msg.ClientID, types.StateMessage(l.version, l.engine.Snapshot()))

			case Leave:
				l.drop(msg.ClientID)

			case PlaceBet:
				bet, err := l.engine.PlaceBet(msg.Req)
				msg.Reply <- BetReply{Bet: bet, Err: err}

			case Cashout:
				bet, err := l.engine.RequestCashout(msg.PlayerID)
				msg.Reply <- BetReply{Bet: bet, Err: err}

			case GetState:
				msg.Reply <- View{
					Code:       l.code,
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.engine.Snapshot(),
				}

			case timerFired:
				msg.fn()

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) shutdown() {
	l.engine.Stop()
	for id := range l.clients {
		l.drop(id)
	}
	l.cancel()
	l.log.Info("table closed")
}

func (l *Lobby) broadcast(msg types.ServerMessage) {
	for id := range l.clients {
		l.send(id, msg)
	}
}

func (l *Lobby) send(id string, msg types.ServerMessage) {
	ch := l.clients[id]
	select {
	case ch <- msg:
	default:
		// slow or full client: drop it
		l.log.Warn("dropping slow client", zap.String("client_id", id))
		l.drop(id)
	}
}

// drop closes a client's outbox so whoever ranges over it stops.
func (l *Lobby) drop(id string) {
	if ch, ok := l.clients[id]; ok {
		close(ch)
		delete(l.clients, id)
	}
}

// PlaceBet and RequestCashout are request/reply helpers for callers outside
// the lobby goroutine.
func (l *Lobby) PlaceBet(ctx context.Context, req engine.BetRequest) (engine.Bet, error) {
	reply := make(chan BetReply, 1)
	return l.request(ctx, PlaceBet{Req: req, Reply: reply}, reply)
}

func (l *Lobby) RequestCashout(ctx context.Context, playerID string) (engine.Bet, error) {
	reply := make(chan BetReply, 1)
	return l.request(ctx, Cashout{PlayerID: playerID, Reply: reply}, reply)
}

func (l *Lobby) request(ctx context.Context, msg Msg, reply chan BetReply) (engine.Bet, error) {
	select {
	case l.inbox <- msg:
	case <-l.done:
		return engine.Bet{}, ErrClosed
	case <-ctx.Done():
		return engine.Bet{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.Bet, r.Err
	case <-l.done:
		return engine.Bet{}, ErrClosed
	case <-ctx.Done():
		return engine.Bet{}, ctx.Err()
	}
}

func (l *Lobby) State(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: reply}:
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
	select {
	case v := <-reply:
		return v, nil
	case <-l.done:
		return View{}, ErrClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// feed turns engine events into client messages. It runs on the lobby
// goroutine because the engine only calls listeners from there.
type feed struct{ l *Lobby }

func (f feed) OnPhaseChange(pc engine.PhaseChange) {
	f.l.version++
	f.l.broadcast(types.PhaseMessage(pc))
}

func (f feed) OnMultiplierTick(m engine.Multiplier) {
	f.l.broadcast(types.TickMessage(m))
}

func (f feed) OnRoundCrashed(r engine.RoundResult) {
	f.l.broadcast(types.CrashedMessage(r))
}

func (f feed) OnBetPlaced(b engine.Bet) {
	f.l.version++
	f.l.broadcast(types.BetMessage(types.MsgBetPlaced, b))
}

func (f feed) OnBetResolved(b engine.Bet) {
	f.l.version++
	f.l.broadcast(types.BetMessage(types.MsgBetResolved, b))
}

func (f feed) OnHistoryUpdated(h []engine.Multiplier) {
	f.l.broadcast(types.HistoryMessage(h))
}
