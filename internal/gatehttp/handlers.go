package gatehttp

import "net/http"

// HelloHandler is the example protected endpoint served by the demo server.
func HelloHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Hello, World!"})
}

// HealthHandler reports liveness; it sits outside the rate-limited routes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
