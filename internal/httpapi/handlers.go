package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/DoyleJ11/crash-backend/internal/archive"
	"github.com/DoyleJ11/crash-backend/internal/engine"
	"github.com/DoyleJ11/crash-backend/internal/hub"
	"github.com/DoyleJ11/crash-backend/internal/lobby"
	"github.com/DoyleJ11/crash-backend/internal/types"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxCodeAttempts = 10

// RoundLister serves archived rounds. *archive.Store satisfies it.
type RoundLister interface {
	Recent(ctx context.Context, tableCode string, limit int) ([]archive.Round, error)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type betBody struct {
	PlayerID    string   `json:"player_id"`
	Amount      float64  `json:"amount"`
	AutoCashout *float64 `json:"auto_cashout,omitempty"`
}

type cashoutBody struct {
	PlayerID string `json:"player_id"`
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateTable(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for range maxCodeAttempts {
			code, err := GenerateCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "failed to generate code")
				return
			}
			if h.Create(code) != nil {
				writeJSON(w, http.StatusCreated, struct {
					Code string `json:"code"`
				}{Code: code})
				return
			}
			log.Debug("collision on code, regenerating", zap.String("code", code))
		}
		writeError(w, http.StatusServiceUnavailable, "internal", "failed to create table")
	}
}

func GetTable(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := table(w, r, h)
		if !ok {
			return
		}
		view, err := lb.State(r.Context())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.StateMessage(view.Version, view.State))
	}
}

func PlaceBet(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := table(w, r, h)
		if !ok {
			return
		}
		var body betBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "bad json")
			return
		}
		bet, err := lb.PlaceBet(r.Context(), engine.BetRequest{
			PlayerID:    body.PlayerID,
			Amount:      body.Amount,
			AutoCashout: body.AutoCashout,
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, types.ToBetView(bet))
	}
}

func Cashout(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := table(w, r, h)
		if !ok {
			return
		}
		var body cashoutBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "bad json")
			return
		}
		bet, err := lb.RequestCashout(r.Context(), body.PlayerID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, types.ToBetView(bet))
	}
}

// Rounds lists archived rounds of a table, newest first.
func Rounds(rounds RoundLister, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rounds == nil {
			writeError(w, http.StatusServiceUnavailable, "archive_disabled", "round archive is not configured")
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 100 {
				writeError(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 100")
				return
			}
			limit = n
		}
		list, err := rounds.Recent(r.Context(), chi.URLParam(r, "code"), limit)
		if err != nil {
			log.Error("list rounds", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "failed to list rounds")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func table(w http.ResponseWriter, r *http.Request, h *hub.Hub) (*lobby.Lobby, bool) {
	lb := h.Get(chi.URLParam(r, "code"))
	if lb == nil {
		writeError(w, http.StatusNotFound, "table_not_found", "table not found")
		return nil, false
	}
	return lb, true
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidBet):
		writeError(w, http.StatusBadRequest, "invalid_bet", err.Error())
	case errors.Is(err, engine.ErrRoundLocked):
		writeError(w, http.StatusConflict, "round_locked", err.Error())
	case errors.Is(err, engine.ErrDuplicateBet):
		writeError(w, http.StatusConflict, "duplicate_bet", err.Error())
	case errors.Is(err, engine.ErrNotActivePhase):
		writeError(w, http.StatusConflict, "not_active_phase", err.Error())
	case errors.Is(err, engine.ErrNoActiveBet):
		writeError(w, http.StatusNotFound, "no_active_bet", err.Error())
	case errors.Is(err, lobby.ErrClosed):
		writeError(w, http.StatusGone, "table_closed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
