package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/middleware"
	"server/internal/notify"
	"server/internal/orchestrator"
)

type App struct {
	Repo   domain.DreamRepository
	Orch   *orchestrator.Orchestrator
	Hub    *notify.Hub
	Logger zerolog.Logger
}

func NewApp(repo domain.DreamRepository, orch *orchestrator.Orchestrator, hub *notify.Hub, logger zerolog.Logger) *App {
	return &App{Repo: repo, Orch: orch, Hub: hub, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]any{"success": false, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
