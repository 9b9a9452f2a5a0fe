// Package api serves the unit listing, status, journal tail and lifecycle
// actions over HTTP.
//
// Units are addressed by ordinal: their position in a listing taken at the
// start of each request. Ordinals are not identifiers. Two requests may see
// different listings, so an ordinal read from one /list response can name a
// different unit later. Every ordinal route answers with an X-Unit-Name
// header and accepts ?expect=<filename>, which makes the request fail with
// 409 instead of touching another unit.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/modoterra/unitgate/pkg/core"
)

const (
	ordinalPattern = "/{ordinal:[0-9]+}"
	verbPattern    = "{verb:start|stop|restart}"
)

// NewRouter wires every route. All routes except / and /health pass through gate.
func NewRouter(units core.UnitSource, dispatcher core.Dispatcher, gate *Gate, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	h := NewHandler(units, dispatcher, logger)

	r.HandleFunc("/", h.Welcome).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(gate.Middleware)
	api.HandleFunc("/list", h.List).Methods(http.MethodGet)
	api.HandleFunc(ordinalPattern, h.Status).Methods(http.MethodGet)
	api.HandleFunc(ordinalPattern+"/logs", h.Logs).Methods(http.MethodGet)
	api.HandleFunc(ordinalPattern+"/logs/{count:[0-9]+}", h.Logs).Methods(http.MethodGet)
	api.HandleFunc(ordinalPattern+"/"+verbPattern, h.Action).Methods(http.MethodPost)

	r.Use(Recovery(logger))
	r.Use(Logging(logger))

	// Middleware only runs for matched routes, so the fallbacks log themselves.
	r.NotFoundHandler = Logging(logger)(http.NotFoundHandler())
	r.MethodNotAllowedHandler = Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}))

	return r
}
