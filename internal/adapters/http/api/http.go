// Package api declares HTTP contracts and route registration helpers for the
// division query surface.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fwdcp/ESEADivisions/internal/adapters/feed"
	"github.com/fwdcp/ESEADivisions/internal/domain/model"
)

// Dependencies required by HTTP handlers. An interface bundle keeps the
// handler layer loosely coupled to the pipeline and store implementations.
type Dependencies interface {
	// DivisionIndex fetches the division listing from the feed.
	DivisionIndex(ctx context.Context) (*feed.DivisionIndex, error)

	// SyncDivision runs or joins an incremental sync scoped to one division.
	SyncDivision(ctx context.Context, division int64) error

	// TeamSeasonsByEvent loads every team season for a division's event.
	TeamSeasonsByEvent(ctx context.Context, event int64) ([]model.TeamSeason, error)
}

// Server wires HTTP routes for the query surface.
type Server struct {
	divisionsHandler *DivisionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		divisionsHandler: NewDivisionsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/divisions/list.json", MetricsMiddleware(s.divisionsHandler.HandleList, "divisions_list"))
	mux.HandleFunc("/divisions/", MetricsMiddleware(s.divisionsHandler.HandleDetail, "division_detail"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
