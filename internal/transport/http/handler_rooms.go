package httptransport

import (
	"net/http"

	"cipher-rooms/internal/app/rooms"

	"github.com/go-chi/chi/v5"
)

type RoomHandlers struct {
	svc *rooms.Service
}

func NewRoomHandlers(svc *rooms.Service) *RoomHandlers {
	return &RoomHandlers{svc: svc}
}

func (h *RoomHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, h.svc.Rooms())
	}
}

func (h *RoomHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseRoomID(r)
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_parameters")
			return
		}
		resp, err := h.svc.Room(id)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *RoomHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body rooms.CreateRoomRequest
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		principal, _ := PrincipalFromContext(r.Context())
		resp, err := h.svc.CreateRoom(r.Context(), principal, body)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, resp)
	}
}

func (h *RoomHandlers) Join() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseRoomID(r)
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_parameters")
			return
		}
		var body rooms.JoinRoomRequest
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		principal, _ := PrincipalFromContext(r.Context())
		if err := h.svc.JoinRoom(r.Context(), principal, id, body); err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "room_id": id})
	}
}

func (h *RoomHandlers) Move() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseRoomID(r)
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_parameters")
			return
		}
		var body rooms.SubmitMoveRequest
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		principal, _ := PrincipalFromContext(r.Context())
		if err := h.svc.SubmitMove(r.Context(), principal, id, body); err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, map[string]any{"ok": true, "room_id": id})
	}
}

func (h *RoomHandlers) Stats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Stats(chi.URLParam(r, "principal"))
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *RoomHandlers) Anonymity() http.HandlerFunc {
	return h.privacyFlag(h.svc.Anonymity)
}

func (h *RoomHandlers) MaxPrivacy() http.HandlerFunc {
	return h.privacyFlag(h.svc.MaxPrivacy)
}

func (h *RoomHandlers) privacyFlag(read func(id uint64, participant, caller string) (*rooms.CiphertextResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseRoomID(r)
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_parameters")
			return
		}
		caller, _ := PrincipalFromContext(r.Context())
		resp, err := read(id, chi.URLParam(r, "principal"), caller)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}

func (h *RoomHandlers) Reveal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body rooms.RevealRequest
		if err := decodeJSON(r, &body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		caller, _ := PrincipalFromContext(r.Context())
		resp, err := h.svc.Reveal(caller, body)
		if err != nil {
			WriteServiceError(w, r, err)
			return
		}
		writeJSON(w, resp)
	}
}
