package api

import (
	"net/http"
	"strconv"
	"strings"
)

// DivisionsHandler serves the division listing and per-division detail.
type DivisionsHandler struct {
	deps Dependencies
}

// NewDivisionsHandler creates a new divisions handler.
func NewDivisionsHandler(deps Dependencies) *DivisionsHandler {
	return &DivisionsHandler{deps: deps}
}

// HandleList handles GET /divisions/list.json: the division index flattened
// into {id, season, region, division} rows.
func (h *DivisionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	index, err := h.deps.DivisionIndex(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fetch_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, index.Rows())
}

// HandleDetail handles GET /divisions/{id}.json: it runs (or joins) an
// incremental sync scoped to the division and returns the division's team
// seasons once the run completes. A failed run yields a 500 with no partial
// payload.
func (h *DivisionsHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	division, err := divisionID(r.URL.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_division", err)
		return
	}

	if err := h.deps.SyncDivision(r.Context(), division); err != nil {
		writeError(w, http.StatusInternalServerError, "sync_failed", err)
		return
	}

	teamSeasons, err := h.deps.TeamSeasonsByEvent(r.Context(), division)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, teamSeasons)
}

// divisionID extracts the numeric id from a /divisions/{id}.json path.
func divisionID(path string) (int64, error) {
	raw := strings.TrimPrefix(path, "/divisions/")
	raw = strings.TrimSuffix(raw, ".json")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadRequest
	}
	return id, nil
}
