package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	gateway "github.com/skyward-io/skygate/internal"
	"github.com/skyward-io/skygate/internal/provider"
)

// handleWeather serves GET /v1/weather/{code}. The optional provider
// query parameter selects between the configured weather sources.
func (s *server) handleWeather(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing station code"))
		return
	}

	name := r.URL.Query().Get("provider")
	if name == "" {
		name = provider.OpenWeatherMap
	}
	d, err := s.deps.Providers.Get(name)
	if err != nil || d.Category != gateway.CategoryWeather {
		writeJSON(w, http.StatusBadRequest, errorResponse("unknown weather provider "+name))
		return
	}

	s.respond(w, r, s.deps.Orchestrator.Fetch(r.Context(), d, provider.Query{Term: code}))
}

// flightParams maps our query parameters onto the upstream flight search
// fields. Unknown parameters are ignored.
var flightParams = map[string]string{
	"flight":  "flight_iata",
	"airline": "airline_name",
	"dep":     "dep_iata",
	"arr":     "arr_iata",
}

// handleFlights serves GET /v1/flights: scheduled and live flight records.
func (s *server) handleFlights(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Providers.Get(provider.AviationStack)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("flight data provider disabled"))
		return
	}

	q := r.URL.Query()
	params := make(map[string]string)
	for in, out := range flightParams {
		if v := strings.TrimSpace(q.Get(in)); v != "" {
			params[out] = v
		}
	}
	if q.Get("airborne") == "true" {
		params["status"] = "active"
	}
	if q.Get("delayed") == "true" {
		params["delayed"] = "true"
	}
	if len(params) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse("at least one filter is required"))
		return
	}

	s.respond(w, r, s.deps.Orchestrator.Fetch(r.Context(), d, provider.Query{Params: params}))
}

// handlePositions serves GET /v1/positions: live aircraft state vectors,
// optionally filtered by bounding box, transponder address or callsign.
func (s *server) handlePositions(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Providers.Get(provider.OpenSky)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("position data provider disabled"))
		return
	}

	q := r.URL.Query()
	params := make(map[string]string)
	for _, side := range []string{"lamin", "lomin", "lamax", "lomax"} {
		v := q.Get(side)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse("invalid coordinate "+side))
			return
		}
		params[side] = v
	}
	// A bounding box is all four sides or none.
	if n := countBoxSides(params); n != 0 && n != 4 {
		writeJSON(w, http.StatusBadRequest, errorResponse("incomplete bounding box"))
		return
	}
	if v := strings.TrimSpace(q.Get("icao24")); v != "" {
		params["icao24"] = strings.ToLower(v)
	}
	if v := strings.TrimSpace(q.Get("callsign")); v != "" {
		params["callsign"] = v
	}

	s.respond(w, r, s.deps.Orchestrator.Fetch(r.Context(), d, provider.Query{Params: params}))
}

func countBoxSides(params map[string]string) int {
	n := 0
	for _, side := range []string{"lamin", "lomin", "lamax", "lomax"} {
		if _, ok := params[side]; ok {
			n++
		}
	}
	return n
}

// handleGeocode serves GET /v1/geocode?q=: free-text place lookup.
func (s *server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse("missing query parameter q"))
		return
	}

	d, err := s.deps.Providers.Get(provider.Nominatim)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse("geocoding provider disabled"))
		return
	}

	s.respond(w, r, s.deps.Orchestrator.Fetch(r.Context(), d, provider.Query{Term: term}))
}

// queryResponse is the wire shape for provider query results. Error is
// present only on the fully degraded path.
type queryResponse struct {
	Data     json.RawMessage    `json:"data"`
	Provider string             `json:"provider"`
	Cache    gateway.CacheStatus `json:"cache"`
	Error    string             `json:"error,omitempty"`
}

// respond writes a ProviderResponse, exposing the cache status both in
// the body and the X-Cache header. Degraded responses map budget
// exhaustion to 429 and upstream failure to 502; the body still carries
// the explicit error payload.
func (s *server) respond(w http.ResponseWriter, r *http.Request, res gateway.ProviderResponse) {
	out := queryResponse{
		Data:     res.Data,
		Provider: res.Provider,
		Cache:    res.Status,
	}
	status := http.StatusOK
	if res.Err != nil {
		out.Error = res.Err.Error()
		status = upstreamStatus(res.Err)
		slog.LogAttrs(r.Context(), slog.LevelWarn, "degraded response",
			slog.String("provider", res.Provider),
			slog.String("error", res.Err.Error()),
		)
	}
	w.Header()["X-Cache"] = []string{string(res.Status)}
	writeJSON(w, status, out)
}

// upstreamStatus maps a degraded-path error onto the response status.
// Everything besides budget exhaustion is an upstream fault: breaker open,
// retries spent, terminal provider status, bad upstream credentials.
func upstreamStatus(err error) int {
	if errors.Is(err, gateway.ErrBudgetExhausted) {
		return http.StatusTooManyRequests
	}
	return http.StatusBadGateway
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func errorResponse(msg string) apiError {
	var e apiError
	e.Error.Message = msg
	return e
}

// jsonCT is a pre-allocated header value slice; direct map assignment
// avoids the []string{v} alloc that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
