package http

import "net/http"

// GET /api/events?after=<seq>&limit=<n> pages through the attempt event log.
func (s *server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		respond(w, http.StatusOK, []any{})
		return
	}
	after := int64(parseIntDefault(r.URL.Query().Get("after"), 0))
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
	list, err := s.Events.Since(r.Context(), after, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, list)
}
