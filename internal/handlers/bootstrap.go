package handlers

import (
	"net/http"
	"strconv"

	"openbar-go/internal/api"
	"openbar-go/internal/app"
)

// Bootstrap serves the consolidated snapshot in one round trip so a client
// coming back online does not fan out a dozen list calls.
func (s *Server) Bootstrap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := api.BootstrapRequest{BusinessDate: q.Get("businessDate")}
	if v, err := strconv.Atoi(q.Get("sessionLimit")); err == nil {
		req.SessionLimit = v
	}
	if v, err := strconv.Atoi(q.Get("deliveryLimit")); err == nil {
		req.DeliveryLimit = v
	}
	if v, err := strconv.Atoi(q.Get("sessionIssueLimit")); err == nil {
		req.SessionIssueLimit = v
	}

	boot, err := s.App.Ledger().GetBootstrap(app.Actor(s.App.CurrentStaff(r)), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, boot)
}
