package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	botHandler "github.com/zhouzirui/panelroom/backend/internal/handler/bot"
	"github.com/zhouzirui/panelroom/backend/internal/handler/persona"
	"github.com/zhouzirui/panelroom/backend/internal/handler/room"
	sessionHandler "github.com/zhouzirui/panelroom/backend/internal/handler/session"
	"github.com/zhouzirui/panelroom/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/panelroom/backend/internal/middleware"
	personaModel "github.com/zhouzirui/panelroom/backend/internal/model/persona"
	botService "github.com/zhouzirui/panelroom/backend/internal/service/bot"
	"github.com/zhouzirui/panelroom/backend/pkg/utils"
)

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 汇总路由需要的服务。
type Deps struct {
	Personas       personaModel.Store
	Sessions       sessionHandler.Store
	Bots           *botService.Service
	Hub            *room.Hub
	Health         Pinger
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hub := deps.Hub
	if hub == nil {
		hub = room.NewHub(0, logger)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health.Ping(ctx); err != nil {
				utils.RespondError(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		persona.New(deps.Personas).RegisterRoutes(api)

		if deps.Sessions != nil {
			sessionHandler.New(deps.Sessions).RegisterRoutes(api)
		}

		if deps.Bots != nil {
			botHandler.New(deps.Bots, hub).RegisterRoutes(api)
			room.New(deps.Bots, hub, logger).RegisterRoutes(api)
			stream.New(deps.Bots, hub, logger).RegisterRoutes(api)
		}
	})

	return r
}
