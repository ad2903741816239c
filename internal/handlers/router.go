package handlers

import (
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"sproutbot/internal/config"
	"sproutbot/internal/middleware"
	"sproutbot/internal/websocket"
)

type Handler struct {
	cfg       config.Config
	linker    LinkService
	incidents IncidentStore
	journal   JournalStore
	hub       *websocket.Hub
	log       *logrus.Logger
}

func New(cfg config.Config, linker LinkService, incidents IncidentStore, journal JournalStore, hub *websocket.Hub, log *logrus.Logger) *Handler {
	return &Handler{
		cfg:       cfg,
		linker:    linker,
		incidents: incidents,
		journal:   journal,
		hub:       hub,
		log:       log,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	r.Get("/oauth/callback", h.OAuthCallback)
	r.Get("/ws/balances", h.WSBalances)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.OperatorJWTSecret))
		r.Get("/admin/incidents", h.ListIncidents)
		r.Get("/admin/journal", h.ListJournal)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
