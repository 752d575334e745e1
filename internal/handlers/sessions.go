package handlers

import (
	"net/http"

	"openbar-go/internal/api"
	"openbar-go/internal/app"
)

func (s *Server) SessionCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	sess, err := s.App.Ledger().CreateSession(app.Actor(s.App.CurrentStaff(r)), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) SessionStart(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad session id"})
		return
	}
	sess, err := s.App.Ledger().StartSession(app.Actor(s.App.CurrentStaff(r)), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) SessionJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad session id"})
		return
	}
	if err := s.App.Ledger().JoinSession(app.Actor(s.App.CurrentStaff(r)), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) SessionLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad session id"})
		return
	}
	if err := s.App.Ledger().LeaveSession(app.Actor(s.App.CurrentStaff(r)), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) SessionClose(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad session id"})
		return
	}
	var req api.CloseSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	corrections, err := s.App.Ledger().CloseSession(app.Actor(s.App.CurrentStaff(r)), id, req.Reconciliation)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.CloseSessionResponse{Reconciliation: corrections})
}

func (s *Server) SessionIssuesList(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad session id"})
		return
	}
	issues, err := s.App.Ledger().ListSessionIssues(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"issues": issues})
}

func (s *Server) SessionDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad session id"})
		return
	}
	if err := s.App.Ledger().DeleteSession(app.Actor(s.App.CurrentStaff(r)), id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
