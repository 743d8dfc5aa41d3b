package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Handlers are the route groups the router mounts. Assets may be nil.
type Handlers struct {
	Auth        *AuthHandler
	Persistence *PersistenceHandler
	Control     *ControlHandler
	Assets      http.Handler
}

// withCORS wraps the whole router so preflight requests are answered even on
// method-restricted routes, which mux middleware never sees.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter 注册全部路由
func NewRouter(h Handlers) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/api/health", healthHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/token", h.Auth.TokenHandler).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(mux.MiddlewareFunc(h.Auth.Middleware))

	// 曲目
	api.HandleFunc("/tracks", h.Persistence.GetTracksHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks", h.Persistence.CreateTrackHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}", h.Persistence.GetTrackHandler).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}", h.Persistence.DeleteTrackHandler).Methods(http.MethodDelete)

	// 预设
	api.HandleFunc("/presets", h.Persistence.GetPresetsHandler).Methods(http.MethodGet)
	api.HandleFunc("/presets", h.Persistence.SavePresetHandler).Methods(http.MethodPost)
	api.HandleFunc("/presets/{id}", h.Persistence.DeletePresetHandler).Methods(http.MethodDelete)

	// 设置与播放顺序
	api.HandleFunc("/settings", h.Persistence.GetSettingsHandler).Methods(http.MethodGet)
	api.HandleFunc("/settings", h.Persistence.SaveSettingsHandler).Methods(http.MethodPut)
	api.HandleFunc("/playlist-orders", h.Persistence.GetOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/playlist-orders/{key}", h.Persistence.SaveOrderHandler).Methods(http.MethodPut)

	if h.Control != nil {
		api.HandleFunc("/intents", h.Control.IntentHandler).Methods(http.MethodPost)
		api.HandleFunc("/state", h.Control.StateHandler).Methods(http.MethodGet)
		api.HandleFunc("/catalog", h.Control.CatalogHandler).Methods(http.MethodGet)
		router.Handle("/ws", h.Auth.Middleware(http.HandlerFunc(h.Control.WebSocketHandler)))
	}

	if h.Assets != nil {
		router.PathPrefix("/assets/").Handler(h.Assets).Methods(http.MethodGet, http.MethodHead)
	}

	return withCORS(router)
}
