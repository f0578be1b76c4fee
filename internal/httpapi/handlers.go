package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weathernow/internal/alert"
	"github.com/kjstillabower/weathernow/internal/controller"
	"github.com/kjstillabower/weathernow/internal/geolocate"
	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/validation"
)

// Searcher is the city-search surface the API needs.
type Searcher interface {
	SearchCities(ctx context.Context, query string) []models.SearchResult
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	controller *controller.Controller
	searcher   Searcher
	alerts     *alert.Recorder
	logger     *zap.Logger
	// CachePing, when set, is called by the health handler to check cache
	// reachability. Used when backend is memcached.
	cachePing func() error
}

// NewHandler returns a new Handler.
func NewHandler(ctrl *controller.Controller, searcher Searcher, alerts *alert.Recorder, logger *zap.Logger, cachePing func() error) *Handler {
	return &Handler{
		controller: ctrl,
		searcher:   searcher,
		alerts:     alerts,
		logger:     logger,
		cachePing:  cachePing,
	}
}

// Register attaches the API routes to the router. /health and /metrics are
// registered separately so they bypass rate limiting.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/state", h.GetState).Methods(http.MethodGet)
	r.HandleFunc("/search", h.GetSearch).Methods(http.MethodGet)
	r.HandleFunc("/select", h.PostSelect).Methods(http.MethodPost)
	r.HandleFunc("/locate", h.PostLocate).Methods(http.MethodPost)
	r.HandleFunc("/refresh", h.PostRefresh).Methods(http.MethodPost)
	r.HandleFunc("/recents", h.GetRecents).Methods(http.MethodGet)
	r.HandleFunc("/favorites", h.GetFavorites).Methods(http.MethodGet)
	r.HandleFunc("/favorites", h.PostFavorite).Methods(http.MethodPost)
	r.HandleFunc("/favorites", h.DeleteFavorite).Methods(http.MethodDelete)
	r.HandleFunc("/alerts", h.GetAlerts).Methods(http.MethodGet)
}

// GetState handles GET /state. Returns the published weather snapshot.
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// GetSearch handles GET /search?q=. A query under two characters returns an
// empty result set without touching the upstream.
func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	results := h.searcher.SearchCities(r.Context(), query)
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type selectRequest struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// PostSelect handles POST /select. Activates an explicit city selection and
// returns the snapshot after the resulting refresh.
func (h *Handler) PostSelect(w http.ResponseWriter, r *http.Request) {
	var body selectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with name, lat, lon")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_NAME", "name is required")
		return
	}
	if err := h.controller.SelectCity(r.Context(), body.Name, body.Lat, body.Lon); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// PostLocate handles POST /locate. Switches to the device location.
func (h *Handler) PostLocate(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.UseMyLocation(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "GEOLOCATION_FAILED", geolocate.ErrorMessage(err))
		return
	}
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// PostRefresh handles POST /refresh. Triggers a manual refresh cycle.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	h.controller.Refresh(r.Context())
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// GetRecents handles GET /recents.
func (h *Handler) GetRecents(w http.ResponseWriter, r *http.Request) {
	recents := h.controller.Recents()
	if recents == nil {
		recents = []models.RecentSelection{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recents": recents})
}

// GetFavorites handles GET /favorites.
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	favorites := h.controller.Favorites()
	if favorites == nil {
		favorites = []models.Favorite{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
}

// PostFavorite handles POST /favorites.
func (h *Handler) PostFavorite(w http.ResponseWriter, r *http.Request) {
	var body selectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "request body must be JSON with name, lat, lon")
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_NAME", "name is required")
		return
	}
	if err := h.controller.AddFavorite(body.Name, body.Lat, body.Lon); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"favorites": h.controller.Favorites()})
}

// DeleteFavorite handles DELETE /favorites?lat=&lon=.
func (h *Handler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat and lon query parameters are required")
		return
	}
	if err := validation.ValidateCoordinate(lat, lon); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	h.controller.RemoveFavorite(lat, lon)
	w.WriteHeader(http.StatusNoContent)
}

// GetAlerts handles GET /alerts. Returns retained notifications, most
// recent first.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": h.alerts.Recent()})
}

// GetHealth handles GET /health. A snapshot stuck in the error state marks
// the upstream check unhealthy but the service itself stays up; previously
// published data keeps being served.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.controller.Snapshot()

	checks := make(map[string]string)
	if snap.State == controller.StateError {
		checks["openMeteo"] = "unhealthy"
	} else {
		checks["openMeteo"] = "healthy"
	}
	if h.cachePing != nil {
		if h.cachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	status := "healthy"
	for _, v := range checks {
		if v != "healthy" {
			status = "degraded"
			break
		}
	}
	resp := map[string]interface{}{
		"status":    status,
		"service":   "weathernow",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available in request
// context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}
