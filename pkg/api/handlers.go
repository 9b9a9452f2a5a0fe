package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/modoterra/unitgate/internal/buildinfo"
	"github.com/modoterra/unitgate/pkg/core"
	"github.com/modoterra/unitgate/pkg/systemctl"
)

// WelcomeText is served on / without authentication.
const WelcomeText = "Welcome to the Systemd API"

// DefaultLogLines is the tail length when the request names none.
const DefaultLogLines = 10

// UnitNameHeader carries the filename an ordinal resolved to.
const UnitNameHeader = "X-Unit-Name"

// ErrUnitMismatch is returned when ?expect= does not match the resolved unit.
var ErrUnitMismatch = errors.New("ordinal resolved to a different unit")

// ResultResponse wraps journal lines and action output.
type ResultResponse struct {
	Result []string `json:"result"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Result  []string `json:"result,omitempty"`
	Stderr  []string `json:"stderr,omitempty"`
}

// HealthResponse is served on /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Handler serves the unit routes.
type Handler struct {
	units      core.UnitSource
	dispatcher core.Dispatcher
	logger     *slog.Logger
}

// NewHandler creates a handler reading from units and acting through dispatcher.
func NewHandler(units core.UnitSource, dispatcher core.Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{units: units, dispatcher: dispatcher, logger: logger}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encode response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error, message string) {
	h.writeJSON(w, status, ErrorResponse{Error: err.Error(), Message: message})
}

// writeFailure maps a unit operation error to a status code.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var cmdErr *systemctl.CommandError
	switch {
	case errors.Is(err, core.ErrOutOfRange):
		h.writeError(w, http.StatusNotFound, err, "No unit at this ordinal")
	case errors.Is(err, ErrUnitMismatch):
		h.writeError(w, http.StatusConflict, err, "Unit listing changed; re-read /list")
	case errors.Is(err, systemctl.ErrInvalidLineCount), errors.Is(err, core.ErrInvalidVerb):
		h.writeError(w, http.StatusBadRequest, err, "Invalid request")
	case errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, err, "External command timed out")
	case errors.As(err, &cmdErr):
		stdout, stderr := cmdErr.Lines()
		h.writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   err.Error(),
			Message: "External command failed",
			Result:  stdout,
			Stderr:  stderr,
		})
	default:
		h.writeError(w, http.StatusBadGateway, err, "Service manager request failed")
	}
}

// commandContext detaches external commands from the client connection: a
// client hanging up must not interrupt a half-issued action. The runner's
// timeout still bounds every command.
func commandContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// resolve lists units and returns the one named by the {ordinal} route variable.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (core.Unit, bool) {
	ordinal, err := strconv.Atoi(mux.Vars(r)["ordinal"])
	if err != nil {
		h.writeFailure(w, fmt.Errorf("%w: %v", core.ErrOutOfRange, err))
		return core.Unit{}, false
	}

	ix, err := h.units.Units(commandContext(r))
	if err != nil {
		h.writeFailure(w, err)
		return core.Unit{}, false
	}

	unit, err := ix.Resolve(ordinal)
	if err != nil {
		h.writeFailure(w, err)
		return core.Unit{}, false
	}

	if expect := r.URL.Query().Get("expect"); expect != "" && expect != unit.Filename {
		h.logger.Info("ordinal moved", "ordinal", ordinal, "expected", expect, "resolved", unit.Filename)
		h.writeFailure(w, fmt.Errorf("%w: %d is %q, expected %q", ErrUnitMismatch, ordinal, unit.Filename, expect))
		return core.Unit{}, false
	}

	w.Header().Set(UnitNameHeader, unit.Filename)
	return unit, true
}

// Welcome serves the static greeting.
func (h *Handler) Welcome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, WelcomeText)
}

// Health reports liveness without touching systemd.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   buildinfo.Version,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// List serves the parsed unit listing.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ix, err := h.units.Units(commandContext(r))
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ix)
}

// Status serves the status fields of one unit. Output without the journal
// boundary is served in full with a Warning header.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	unit, ok := h.resolve(w, r)
	if !ok {
		return
	}

	fields, err := h.units.Status(commandContext(r), unit)
	if errors.Is(err, systemctl.ErrNoBoundary) {
		w.Header().Set("Warning", `199 unitgate "status output had no journal boundary; all lines parsed"`)
		err = nil
	}
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, fields)
}

// Logs serves the journal tail of one unit.
func (h *Handler) Logs(w http.ResponseWriter, r *http.Request) {
	count := DefaultLogLines
	if v, ok := mux.Vars(r)["count"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err, "Invalid line count")
			return
		}
		count = n
	}

	unit, ok := h.resolve(w, r)
	if !ok {
		return
	}

	lines, err := h.units.Tail(commandContext(r), unit, count)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResultResponse{Result: lines})
}

// Action forwards start, stop or restart for one unit.
func (h *Handler) Action(w http.ResponseWriter, r *http.Request) {
	verb, err := core.ParseVerb(mux.Vars(r)["verb"])
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	unit, ok := h.resolve(w, r)
	if !ok {
		return
	}

	out, err := h.dispatcher.Dispatch(commandContext(r), verb, unit)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if out == nil {
		out = []string{}
	}
	h.writeJSON(w, http.StatusOK, ResultResponse{Result: out})
}
