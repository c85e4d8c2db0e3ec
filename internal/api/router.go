package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/lobbysync/internal/api/handler"
	"github.com/mcoot/lobbysync/internal/api/middleware"
	"github.com/mcoot/lobbysync/internal/api/response"
	"github.com/mcoot/lobbysync/internal/services/auth"
	"github.com/mcoot/lobbysync/internal/services/lobby"
	"github.com/mcoot/lobbysync/internal/services/roster"
	"github.com/mcoot/lobbysync/internal/sse"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger          *slog.Logger
	AuthService     *auth.Service
	LobbyController lobby.ControllerInterface
	RosterService   *roster.Service
	Hub             *sse.Hub
	Publisher       sse.Publisher
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	publisher := cfg.Publisher
	if publisher == nil {
		publisher = sse.NewBroadcaster(cfg.Hub, cfg.Logger)
	}

	identityHandler := handler.NewIdentityHandler(cfg.AuthService)
	lobbyHandler := handler.NewLobbyHandler(cfg.LobbyController, publisher)
	userHandler := handler.NewUserHandler(cfg.RosterService)
	connectHandler := handler.NewConnectHandler(cfg.RosterService, cfg.LobbyController, cfg.Hub, publisher, cfg.Logger)

	authMiddleware := middleware.Auth(cfg.AuthService)

	api := r.PathPrefix("/api/v1").Subrouter()
	useCommonMiddleware(api, cfg.Logger)

	// No auth: health and identity issuance
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/identities", identityHandler.Issue).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/identities/me", identityHandler.Me).Methods(http.MethodGet)

	protected.HandleFunc("/lobbies", lobbyHandler.Create).Methods(http.MethodPost)
	protected.HandleFunc("/lobbies", lobbyHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/lobbies/{code}", lobbyHandler.Get).Methods(http.MethodGet)
	protected.HandleFunc("/lobbies/{code}/join", lobbyHandler.Join).Methods(http.MethodPost)
	protected.HandleFunc("/lobbies/{code}/increment", lobbyHandler.Increment).Methods(http.MethodPost)

	protected.HandleFunc("/users", userHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/users/{identity}", userHandler.Get).Methods(http.MethodGet)

	protected.HandleFunc("/connect", connectHandler.Connect).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}

// useCommonMiddleware installs Logging outside Recovery; the request id
// must be in the context before a panic is logged
func useCommonMiddleware(r *mux.Router, logger *slog.Logger) {
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
}
