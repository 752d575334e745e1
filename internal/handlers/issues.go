package handlers

import (
	"net/http"

	"openbar-go/internal/api"
	"openbar-go/internal/app"
)

func (s *Server) IssueCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateDrinkIssueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	issue, err := s.App.Ledger().CreateDrinkIssue(app.Actor(s.App.CurrentStaff(r)), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.CreateDrinkIssueResponse{Issue: *issue})
}

func (s *Server) IssueDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad issue id"})
		return
	}
	if err := s.App.Ledger().DeleteDrinkIssue(app.Actor(s.App.CurrentStaff(r)), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
