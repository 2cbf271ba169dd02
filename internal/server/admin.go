package server

import (
	"log/slog"
	"net/http"
	"time"

	gateway "github.com/skyward-io/skygate/internal"
)

// timeNow is overridden in tests.
var timeNow = time.Now

// usageResponse is the operator readout for the current UTC day.
type usageResponse struct {
	Day       string                  `json:"day"`
	Providers []gateway.UsageSnapshot `json:"providers"`
}

// handleAdminUsage serves GET /admin/usage: per-provider budget
// consumption for the current UTC day.
func (s *server) handleAdminUsage(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.deps.Ledger.Snapshot(r.Context())
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelError, "usage snapshot failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{
		Day:       gateway.DayKey(timeNow()),
		Providers: snaps,
	})
}
