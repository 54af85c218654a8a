package httptransport

import (
	"context"
	"net/http"
	"time"

	"cipher-rooms/internal/app/rooms"

	"github.com/go-chi/chi/v5"
)

type AdminHandlers struct {
	svc *rooms.Service
}

func NewAdminHandlers(svc *rooms.Service) *AdminHandlers {
	return &AdminHandlers{svc: svc}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.svc.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			writeJSON(w, map[string]any{"ok": false, "store": "down"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "store": "up"})
	}
}

func (h *AdminHandlers) EmergencyEnd() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseRoomID(r)
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_parameters")
			return
		}
		caller, _ := PrincipalFromContext(r.Context())
		if err := h.svc.EmergencyEnd(r.Context(), caller, id); err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "room_id": id})
	}
}

func (h *AdminHandlers) Withdraw() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := PrincipalFromContext(r.Context())
		resp, err := h.svc.WithdrawFees(r.Context(), caller)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *AdminHandlers) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := PrincipalFromContext(r.Context())
		account := r.URL.Query().Get("account")
		if account == "" {
			account = h.svc.Ledger().House()
		}
		resp, err := h.svc.Balance(r.Context(), caller, account)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *AdminHandlers) Topup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body rooms.TopupRequest
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		caller, _ := PrincipalFromContext(r.Context())
		resp, err := h.svc.Topup(r.Context(), caller, body)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *AdminHandlers) Transfers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := PrincipalFromContext(r.Context())
		resp, err := h.svc.Transfers(r.Context(), caller, parseLimit(r))
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *AdminHandlers) Freeze() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body rooms.FreezeRequest
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		caller, _ := PrincipalFromContext(r.Context())
		account := chi.URLParam(r, "account")
		if err := h.svc.SetFrozen(r.Context(), caller, account, body); err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "account": account, "frozen": body.Frozen})
	}
}
