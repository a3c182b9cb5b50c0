package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinician-scheduling/internal/scheduling"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps the scheduling error taxonomy onto HTTP statuses.
// Infrastructure and unknown errors are logged and their details withheld.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, scheduling.ErrInvalidRange):
		status, code = http.StatusBadRequest, "invalid_range"
	case errors.Is(err, scheduling.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, scheduling.ErrUnauthenticated):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, scheduling.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, scheduling.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		status, code = http.StatusConflict, "slot_unavailable"
	case errors.Is(err, scheduling.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, scheduling.ErrAlreadyProcessed):
		status, code = http.StatusConflict, "already_processed"
	case errors.Is(err, scheduling.ErrGenerationInProgress):
		status, code = http.StatusConflict, "generation_in_progress"
	case errors.Is(err, scheduling.ErrInfrastructure):
		status, code = http.StatusServiceUnavailable, "unavailable"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).
			Str("request_id", GetRequestID(r.Context())).
			Msg("request failed")
		writeError(w, status, code, "please retry later")
		return
	}
	writeError(w, status, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func callerFrom(w http.ResponseWriter, r *http.Request) (scheduling.Caller, bool) {
	caller, ok := scheduling.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing caller identity")
		return scheduling.Caller{}, false
	}
	return caller, true
}

// dateRange reads start_date and end_date (YYYY-MM-DD). Missing values come
// back zero and the service fills them in the schedule location.
func dateRange(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	var start time.Time
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", scheduling.ErrInvalidRange)
		}
		start = t
	}
	var end time.Time
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", scheduling.ErrInvalidRange)
		}
		end = t
	}
	return start, end, nil
}

func statusFilter(r *http.Request) []scheduling.SlotStatus {
	var out []scheduling.SlotStatus
	for _, v := range r.URL.Query()["status"] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, scheduling.SlotStatus(s))
			}
		}
	}
	return out
}
