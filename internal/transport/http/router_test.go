package httptransport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cipher-rooms/internal/ledger"
	"cipher-rooms/internal/ratelimit"
	"cipher-rooms/internal/stream"
	"cipher-rooms/internal/testutil"

	"github.com/go-chi/chi/v5"
)

type apiFixture struct {
	rooms  *testutil.Rooms
	router *chi.Mux
	tokens map[string]string
}

func newAPIFixture(t *testing.T, rateLimit int) *apiFixture {
	t.Helper()
	buf := stream.NewBuffer(50)
	t.Cleanup(buf.Close)
	r := testutil.NewRooms(t, []ledger.Option{ledger.WithPublisher(buf)}, "A", "B")
	iss := testutil.NewIssuer(t)
	router := NewRouter(r.Service, iss, ratelimit.NewMemory(rateLimit, time.Minute), buf)
	tokens := map[string]string{}
	for _, p := range []string{"A", "B", "C", testutil.Admin} {
		tokens[p] = testutil.Token(t, iss, p)
	}
	return &apiFixture{rooms: r, router: router, tokens: tokens}
}

func (f *apiFixture) do(t *testing.T, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if principal != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[principal])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d body=%s", w.Code, status, w.Body.String())
	}
	if got := decodeBody(t, w)["error"]; got != code {
		t.Fatalf("error = %v, want %s", got, code)
	}
}

func TestRoomFlowOverHTTP(t *testing.T) {
	f := newAPIFixture(t, 100)

	w := f.do(t, http.MethodPost, "/api/rooms", "A", map[string]any{"name": "duel", "capacity": 2, "stake": 100})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	if id := decodeBody(t, w)["room_id"]; id != float64(1) {
		t.Fatalf("room_id = %v, want 1", id)
	}
	for _, p := range []string{"A", "B"} {
		w = f.do(t, http.MethodPost, "/api/rooms/1/join", p, map[string]any{"payment": 100, "is_anonymous": true})
		if w.Code != http.StatusOK {
			t.Fatalf("join %s status = %d body=%s", p, w.Code, w.Body.String())
		}
	}
	w = f.do(t, http.MethodGet, "/api/rooms", "", nil)
	items, _ := decodeBody(t, w)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("rooms = %s", w.Body.String())
	}
	for _, p := range []string{"A", "B"} {
		w = f.do(t, http.MethodPost, "/api/rooms/1/moves", p, map[string]any{"move": 7, "is_valid": true})
		if w.Code != http.StatusOK {
			t.Fatalf("move %s status = %d body=%s", p, w.Code, w.Body.String())
		}
	}

	w = f.do(t, http.MethodGet, "/api/rooms/1", "", nil)
	room := decodeBody(t, w)
	settlement, _ := room["settlement"].(map[string]any)
	if room["active"] != false || settlement["winner"] != "A" || settlement["winner_prize"] != float64(198) || settlement["platform_fee"] != float64(2) {
		t.Fatalf("room = %s", w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/rooms/1/moves", "A", map[string]any{"move": 1})
	expectError(t, w, http.StatusConflict, "session_finished")

	w = f.do(t, http.MethodGet, "/api/participants/A/stats", "", nil)
	if stats := decodeBody(t, w); stats["games_won"] != float64(1) || stats["total_games"] != float64(1) {
		t.Fatalf("stats = %s", w.Body.String())
	}
}

func TestErrorStatusMapping(t *testing.T) {
	f := newAPIFixture(t, 100)
	if w := f.do(t, http.MethodPost, "/api/rooms", "A", map[string]any{"name": "r", "capacity": 3, "stake": 10}); w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	tests := []struct {
		name      string
		method    string
		path      string
		principal string
		body      any
		status    int
		code      string
	}{
		{"no token", http.MethodPost, "/api/rooms", "", map[string]any{"name": "r"}, http.StatusUnauthorized, "unauthorized"},
		{"bad capacity", http.MethodPost, "/api/rooms", "A", map[string]any{"name": "r", "capacity": 1, "stake": 10}, http.StatusBadRequest, "invalid_parameters"},
		{"unknown field", http.MethodPost, "/api/rooms", "A", map[string]any{"nope": 1}, http.StatusBadRequest, "invalid_json"},
		{"wrong stake", http.MethodPost, "/api/rooms/1/join", "A", map[string]any{"payment": 9}, http.StatusBadRequest, "incorrect_stake"},
		{"no funds", http.MethodPost, "/api/rooms/1/join", "C", map[string]any{"payment": 10}, http.StatusPaymentRequired, "transfer_failed"},
		{"missing room join", http.MethodPost, "/api/rooms/9/join", "A", map[string]any{"payment": 10}, http.StatusConflict, "session_inactive"},
		{"outsider move", http.MethodPost, "/api/rooms/1/moves", "B", map[string]any{"move": 1}, http.StatusForbidden, "not_a_participant"},
		{"missing room", http.MethodGet, "/api/rooms/9", "", nil, http.StatusNotFound, "not_found"},
		{"bad room id", http.MethodGet, "/api/rooms/abc", "", nil, http.StatusBadRequest, "invalid_parameters"},
		{"non-admin withdraw", http.MethodPost, "/api/admin/withdraw", "A", nil, http.StatusForbidden, "unauthorized"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, f.do(t, tc.method, tc.path, tc.principal, tc.body), tc.status, tc.code)
		})
	}
}

func TestPrivacyFlagAndReveal(t *testing.T) {
	f := newAPIFixture(t, 100)
	f.do(t, http.MethodPost, "/api/rooms", "A", map[string]any{"name": "r", "capacity": 2, "stake": 10})
	if w := f.do(t, http.MethodPost, "/api/rooms/1/join", "A", map[string]any{"payment": 10, "max_privacy": true}); w.Code != http.StatusOK {
		t.Fatalf("join status = %d", w.Code)
	}

	w := f.do(t, http.MethodGet, "/api/rooms/1/participants/A/max-privacy", "B", nil)
	expectError(t, w, http.StatusForbidden, "unauthorized")

	w = f.do(t, http.MethodGet, "/api/rooms/1/participants/A/max-privacy", "A", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("max-privacy status = %d body=%s", w.Code, w.Body.String())
	}
	ct, _ := decodeBody(t, w)["ciphertext"].(string)

	w = f.do(t, http.MethodPost, "/api/reveal", testutil.Admin, map[string]any{"ciphertext": ct})
	if w.Code != http.StatusOK || decodeBody(t, w)["value"] != float64(1) {
		t.Fatalf("reveal = %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodPost, "/api/reveal", "B", map[string]any{"ciphertext": ct})
	expectError(t, w, http.StatusForbidden, "unauthorized")

	w = f.do(t, http.MethodGet, "/api/rooms/1/participants/A/anonymity", "A", nil)
	anon, _ := decodeBody(t, w)["ciphertext"].(string)
	w = f.do(t, http.MethodPost, "/api/reveal", "A", map[string]any{"ciphertext": anon})
	if decodeBody(t, w)["value"] != float64(0) {
		t.Fatalf("anonymity reveal = %s", w.Body.String())
	}
}

func TestAdminRoutes(t *testing.T) {
	f := newAPIFixture(t, 100)
	admin := testutil.Admin

	w := f.do(t, http.MethodPost, "/api/admin/topup", admin, map[string]any{"account": "C", "amount": 25})
	if w.Code != http.StatusOK || decodeBody(t, w)["balance"] != float64(25) {
		t.Fatalf("topup = %d %s", w.Code, w.Body.String())
	}

	f.do(t, http.MethodPost, "/api/rooms", "A", map[string]any{"name": "r", "capacity": 3, "stake": 20})
	for _, p := range []string{"A", "C"} {
		if w := f.do(t, http.MethodPost, "/api/rooms/1/join", p, map[string]any{"payment": 20}); w.Code != http.StatusOK {
			t.Fatalf("join %s = %d %s", p, w.Code, w.Body.String())
		}
	}
	w = f.do(t, http.MethodGet, "/api/admin/balance", admin, nil)
	if bal := decodeBody(t, w); bal["balance"] != float64(40) || bal["holdings"] != float64(40) {
		t.Fatalf("house balance = %s", w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/admin/rooms/1/emergency-end", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("emergency-end = %d %s", w.Code, w.Body.String())
	}
	w = f.do(t, http.MethodGet, "/api/admin/balance?account=C", admin, nil)
	if decodeBody(t, w)["balance"] != float64(25) {
		t.Fatalf("C balance after refund = %s", w.Body.String())
	}
	w = f.do(t, http.MethodPost, "/api/admin/rooms/1/emergency-end", admin, nil)
	expectError(t, w, http.StatusConflict, "session_inactive")

	w = f.do(t, http.MethodPost, "/api/admin/withdraw", admin, nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["amount"] != float64(0) {
		t.Fatalf("withdraw = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/admin/transfers?limit=2", admin, nil)
	items, _ := decodeBody(t, w)["items"].([]any)
	if w.Code != http.StatusOK || len(items) != 2 {
		t.Fatalf("transfers = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/admin/accounts/C/frozen", admin, map[string]any{"frozen": true})
	if w.Code != http.StatusOK {
		t.Fatalf("freeze = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/admin/debug/vars", admin, nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("ledger_sessions_created_total")) {
		t.Fatalf("debug vars = %d", w.Code)
	}
}

func TestRateLimitedMutations(t *testing.T) {
	f := newAPIFixture(t, 1)
	body := map[string]any{"name": "r", "capacity": 2, "stake": 10}
	if w := f.do(t, http.MethodPost, "/api/rooms", "A", body); w.Code != http.StatusCreated {
		t.Fatalf("first create = %d", w.Code)
	}
	expectError(t, f.do(t, http.MethodPost, "/api/rooms", "A", body), http.StatusTooManyRequests, "rate_limited")
	if w := f.do(t, http.MethodPost, "/api/rooms", "B", body); w.Code != http.StatusCreated {
		t.Fatalf("other principal create = %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t, 10)
	w := f.do(t, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["ok"] != true {
		t.Fatalf("healthz = %d %s", w.Code, w.Body.String())
	}
}
