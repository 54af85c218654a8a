package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"cipher-rooms/internal/app/rooms"
	"cipher-rooms/internal/auth"
	"cipher-rooms/internal/mcpserver"
	"cipher-rooms/internal/ratelimit"
	"cipher-rooms/internal/stream"
	"cipher-rooms/internal/ws"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc *rooms.Service, issuer *auth.Issuer, limiter ratelimit.Limiter, events *stream.Buffer) *chi.Mux {
	mcpSrv := mcpserver.New(svc, issuer)
	wsSrv := ws.NewServer(svc, issuer, events)

	roomHandlers := NewRoomHandlers(svc)
	adminHandlers := NewAdminHandlers(svc)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())
	r.Get("/ws", wsSrv.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/rooms", roomHandlers.List())
		r.Get("/rooms/{room_id}", roomHandlers.Get())
		r.Get("/participants/{principal}/stats", roomHandlers.Stats())
		r.Get("/events", stream.Handler(events))

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(issuer))
			r.Get("/rooms/{room_id}/participants/{principal}/anonymity", roomHandlers.Anonymity())
			r.Get("/rooms/{room_id}/participants/{principal}/max-privacy", roomHandlers.MaxPrivacy())
			r.Post("/reveal", roomHandlers.Reveal())

			r.Group(func(r chi.Router) {
				r.Use(RateLimitMiddleware(limiter))
				r.Post("/rooms", roomHandlers.Create())
				r.Post("/rooms/{room_id}/join", roomHandlers.Join())
				r.Post("/rooms/{room_id}/moves", roomHandlers.Move())
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(AdminMiddleware(svc.Ledger().Admin()))
				r.Post("/rooms/{room_id}/emergency-end", adminHandlers.EmergencyEnd())
				r.Post("/withdraw", adminHandlers.Withdraw())
				r.Get("/balance", adminHandlers.Balance())
				r.Post("/topup", adminHandlers.Topup())
				r.Get("/transfers", adminHandlers.Transfers())
				r.Post("/accounts/{account}/frozen", adminHandlers.Freeze())

				r.Route("/debug", func(r chi.Router) {
					r.Use(BodyCaptureMiddleware(4096))
					r.Get("/vars", expvar.Handler().ServeHTTP)
				})
			})
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
