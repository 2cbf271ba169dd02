package server

import "net/http"

// Probe endpoints answer in plain text. Bodies are pre-allocated since
// load balancers hit these on every check interval.
var (
	okBody       = []byte("ok")
	notReadyBody = []byte("not ready")
	plainCT      = []string{"text/plain"}
)

func writeProbe(w http.ResponseWriter, status int, body []byte) {
	w.Header()["Content-Type"] = plainCT
	w.WriteHeader(status)
	w.Write(body)
}

// handleHealthz reports liveness: the process is up and serving.
func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, http.StatusOK, okBody)
}

// handleReadyz reports readiness. With no ReadyCheck configured the
// server is always ready.
func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReadyCheck != nil {
		if err := s.deps.ReadyCheck(r.Context()); err != nil {
			writeProbe(w, http.StatusServiceUnavailable, notReadyBody)
			return
		}
	}
	writeProbe(w, http.StatusOK, okBody)
}
