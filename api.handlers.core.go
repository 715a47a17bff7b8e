package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

var EmptyData = struct{}{}

// Statistics holds app stats for ops.
type Statistics struct {
	version   string
	container bool
	runtime   string
	platform  string
	called    uint64
	started   time.Time
}

// Maintenance holds app maintenance mode infos. While enabled, the routes
// changing data answer with 503 and the configured message.
type Maintenance struct {
	enabled atomic.Bool
	mu      sync.RWMutex
	message string
	started time.Time
}

// MaintenanceState is the public view of the maintenance mode.
type MaintenanceState struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
	Started string `json:"started"`
}

func (m *Maintenance) Enable(message string, at time.Time) {
	m.mu.Lock()
	m.message = message
	m.started = at
	m.mu.Unlock()
	m.enabled.Store(true)
}

func (m *Maintenance) Disable() {
	m.enabled.Store(false)
	m.mu.Lock()
	m.message = ""
	m.started = time.Time{}
	m.mu.Unlock()
}

func (m *Maintenance) Enabled() bool {
	return m.enabled.Load()
}

func (m *Maintenance) State() MaintenanceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state := MaintenanceState{Enabled: m.enabled.Load(), Message: m.message}
	if !m.started.IsZero() {
		state.Started = m.started.Format(time.RFC1123)
	}
	return state
}

// APIHandler defines the API handler.
type APIHandler struct {
	logger     *zap.Logger
	config     *Config
	stats      *Statistics
	mode       *Maintenance
	clock      Clocker
	idsHandler UIDHandler
	catalog    CatalogServiceProvider
	sessions   SessionServiceProvider
}

// NewAPIHandler provides a new instance of APIHandler.
func NewAPIHandler(
	logger *zap.Logger,
	config *Config,
	stats *Statistics,
	clock Clocker,
	idsHandler UIDHandler,
	catalog CatalogServiceProvider,
	sessions SessionServiceProvider,
) *APIHandler {
	return &APIHandler{
		logger:     logger,
		config:     config,
		stats:      stats,
		mode:       &Maintenance{},
		clock:      clock,
		idsHandler: idsHandler,
		catalog:    catalog,
		sessions:   sessions,
	}
}

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(
		map[string]interface{}{
			"requestid": requestID,
			"status":    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
			"message":   "Hello. Bookshelf api is available. Enjoy :)",
		},
	); err != nil {
		api.GetLoggerFromContext(r.Context()).Error("failed to send status response", zap.Error(err))
	}
}

// NotFound serves a json message for any unknown route.
func (api *APIHandler) NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !api.idsHandler.IsValid(requestID, RequestIDPrefix) {
			requestID = api.idsHandler.Generate(RequestIDPrefix)
		}
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")
		w.WriteHeader(http.StatusNotFound)
		if err := json.NewEncoder(w).Encode(
			map[string]interface{}{
				"requestid": requestID,
				"message":   "route does not exist",
				"path":      r.Method + " " + r.URL.Path,
			},
		); err != nil {
			api.logger.Error("failed to send not found response", zap.String("request.id", requestID), zap.Error(err))
		}
	})
}

// sendError logs the failure then writes the error response.
func (api *APIHandler) sendError(ctx context.Context, w http.ResponseWriter, status int, message string, data interface{}, err error) {
	logger := api.GetLoggerFromContext(ctx)
	logger.Error(message, zap.Int("response.status", status), zap.Error(err))
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	if err = WriteErrorResponse(ctx, w, NewAPIError(requestID, status, message, data)); err != nil {
		logger.Error("failed to send error response", zap.Error(err))
	}
}

// sendResponse writes a successful response.
func (api *APIHandler) sendResponse(ctx context.Context, w http.ResponseWriter, status int, message string, total *int, data interface{}) {
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	if err := WriteResponse(ctx, w, GenericResponse(requestID, status, message, total, data)); err != nil {
		api.GetLoggerFromContext(ctx).Error("failed to send response", zap.Error(err))
	}
}
