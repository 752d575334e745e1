// Package handlers exposes the ledger operations as a JSON API plus the
// /events SSE stream.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"openbar-go/internal/api"
	"openbar-go/internal/app"
)

type Server struct {
	App *app.App
}

type errBody struct {
	Error errDetail `json:"error"`
}

type errDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Shortages []api.Shortage `json:"shortages,omitempty"`
	LineID    int64          `json:"lineId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses and a uniform body.
func writeErr(w http.ResponseWriter, err error) {
	var (
		vErr    *api.ValidationError
		capErr  *api.RecipeCapacityExceeded
		selErr  *api.MissingCategorySelection
		shErr   *api.StockShortageError
		stErr   *api.SessionStateError
		permErr *api.PermissionError
		nfErr   *api.NotFoundError
	)
	switch {
	case errors.As(err, &capErr):
		writeJSON(w, http.StatusBadRequest, errBody{errDetail{Code: api.CodeValidation, Message: capErr.Error()}})
	case errors.As(err, &selErr):
		writeJSON(w, http.StatusBadRequest, errBody{errDetail{Code: api.CodeValidation, Message: selErr.Error(), LineID: selErr.LineID}})
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, errBody{errDetail{Code: api.CodeValidation, Message: vErr.Error()}})
	case errors.As(err, &shErr):
		writeJSON(w, http.StatusConflict, errBody{errDetail{Code: api.CodeStockShort, Message: shErr.Error(), Shortages: shErr.Shortages}})
	case errors.As(err, &stErr):
		writeJSON(w, http.StatusConflict, errBody{errDetail{Code: api.CodeSessionState, Message: stErr.Error()}})
	case errors.As(err, &permErr):
		writeJSON(w, http.StatusForbidden, errBody{errDetail{Code: api.CodePermission, Message: permErr.Error()}})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, errBody{errDetail{Code: api.CodeNotFound, Message: nfErr.Error()}})
	default:
		writeJSON(w, http.StatusInternalServerError, errBody{errDetail{Code: "internal", Message: "internal error"}})
	}
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.App.Store().Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
