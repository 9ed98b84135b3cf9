package hub

import (
	"context"

	"github.com/DoyleJ11/crash-backend/internal/lobby"
	"go.uber.org/zap"
)

type HubMsg interface{ isHubMsg() }

// CreateTable replies nil when the code is already taken.
type CreateTable struct {
	Code  string
	Reply chan *lobby.Lobby
}

type GetTable struct {
	Code  string
	Reply chan *lobby.Lobby
}

type EnsureTable struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveTable struct {
	Code string
}

type ListTables struct {
	Reply chan []string
}

type ShutdownHub struct{}

func (CreateTable) isHubMsg() {}
func (GetTable) isHubMsg()    {}
func (EnsureTable) isHubMsg() {}
func (RemoveTable) isHubMsg() {}
func (ListTables) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Factory builds the lobby for a new table code.
type Factory func(ctx context.Context, code string) *lobby.Lobby

type Hub struct {
	inbox   chan HubMsg
	tables  map[string]*lobby.Lobby
	factory Factory
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, factory Factory, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		tables:  make(map[string]*lobby.Lobby),
		factory: factory,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateTable:
				if h.tables[msg.Code] != nil {
					msg.Reply <- nil
					break
				}
				msg.Reply <- h.open(msg.Code)

			case GetTable:
				msg.Reply <- h.tables[msg.Code] // may be nil

			case EnsureTable:
				if lb := h.tables[msg.Code]; lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.open(msg.Code)

			case RemoveTable:
				if lb := h.tables[msg.Code]; lb != nil {
					stop(lb)
					delete(h.tables, msg.Code)
					h.log.Info("table removed", zap.String("table", msg.Code))
				}

			case ListTables:
				codes := make([]string, 0, len(h.tables))
				for code := range h.tables {
					codes = append(codes, code)
				}
				msg.Reply <- codes

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) open(code string) *lobby.Lobby {
	lb := h.factory(h.ctx, code)
	h.tables[code] = lb
	h.log.Info("table created", zap.String("table", code))
	return lb
}

func (h *Hub) shutdown() {
	for _, lb := range h.tables {
		stop(lb)
	}
	for _, lb := range h.tables {
		<-lb.Done()
	}
	clear(h.tables)
	h.cancel()
}

func stop(lb *lobby.Lobby) {
	select {
	case lb.Inbox() <- lobby.Shutdown{}:
	case <-lb.Done():
	}
}

// Get is a request/reply helper around GetTable.
func (h *Hub) Get(code string) *lobby.Lobby {
	return h.ask(func(reply chan *lobby.Lobby) HubMsg { return GetTable{Code: code, Reply: reply} })
}

func (h *Hub) Create(code string) *lobby.Lobby {
	return h.ask(func(reply chan *lobby.Lobby) HubMsg { return CreateTable{Code: code, Reply: reply} })
}

func (h *Hub) Ensure(code string) *lobby.Lobby {
	return h.ask(func(reply chan *lobby.Lobby) HubMsg { return EnsureTable{Code: code, Reply: reply} })
}

func (h *Hub) ask(build func(chan *lobby.Lobby) HubMsg) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- build(reply):
	case <-h.done:
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-h.done:
		return nil
	}
}
