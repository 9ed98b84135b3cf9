package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/DoyleJ11/crash-backend/internal/engine"
	"github.com/DoyleJ11/crash-backend/internal/hub"
	"github.com/DoyleJ11/crash-backend/internal/lobby"
	"github.com/DoyleJ11/crash-backend/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	outboxSize   = 64
	writeTimeout = 3 * time.Second
)

var errUnknownType = errors.New("unknown message type")

// Handler streams a table's events to one websocket client and turns the
// client's PlaceBet/Cashout messages into lobby requests.
func Handler(h *hub.Hub, origins []string, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		lb := h.Get(code)
		if lb == nil {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
		if err != nil {
			log.Debug("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		clog := log.With(zap.String("table", code), zap.String("client_id", clientID))

		out := make(chan types.ServerMessage, outboxSize)
		select {
		case lb.Inbox() <- lobby.Join{ClientID: clientID, Outbox: out}:
		case <-lb.Done():
			return
		}
		defer func() {
			select {
			case lb.Inbox() <- lobby.Leave{ClientID: clientID}:
			case <-lb.Done():
			}
		}()
		clog.Debug("client joined")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine. The lobby closes out on Leave, on a slow-client
		// drop and on shutdown.
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-out:
					if !ok {
						conn.Close(websocket.StatusGoingAway, "table closed")
						return
					}
					if err := writeJSON(ctx, conn, msg); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					clog.Debug("client read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = writeJSON(ctx, conn, types.ServerMessage{Type: types.MsgError, Error: "bad json"})
				continue
			}

			if err := handleClient(ctx, lb, cm); err != nil {
				_ = writeJSON(ctx, conn, types.ErrorMessage(err))
			}
		}
	}
}

// handleClient forwards one client message. Successful requests are
// announced to everyone through the lobby broadcast.
func handleClient(ctx context.Context, lb *lobby.Lobby, cm types.ClientMessage) error {
	switch cm.Type {
	case types.MsgPlaceBet:
		_, err := lb.PlaceBet(ctx, engine.BetRequest{
			PlayerID:    cm.PlayerID,
			Amount:      cm.Amount,
			AutoCashout: cm.AutoCashout,
		})
		return err
	case types.MsgCashout:
		_, err := lb.RequestCashout(ctx, cm.PlayerID)
		return err
	default:
		return errUnknownType
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
