package ledger

import (
	"fmt"
	"math"
	"time"

	"openbar-go/internal/api"
	"openbar-go/internal/db"
)

// Actor is the staff member performing an operation.
type Actor struct {
	ID      int64
	Manager bool
}

func (a Actor) canAdminister(sess *api.Session) bool {
	return a.Manager || sess.CreatedBy == a.ID
}

// CreateSession creates a session from a session type. With Launch set it
// goes straight to active (the launch flow); otherwise it is a draft
// waiting for an explicit start.
func (s *Service) CreateSession(actor Actor, req api.CreateSessionRequest) (*api.Session, error) {
	st, err := s.store.Q.GetSessionTypeByID(req.SessionTypeID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, &api.NotFoundError{What: "session type"}
	}
	if req.BusinessDate == "" {
		return nil, &api.ValidationError{Msg: "business date is required"}
	}

	limit := st.DefaultTimeLimitMinutes
	if req.TimeLimitMinutes != nil {
		if *req.TimeLimitMinutes <= 0 {
			return nil, &api.ValidationError{Msg: "time limit must be positive"}
		}
		limit = *req.TimeLimitMinutes
	}
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("%s %s", st.Name, req.BusinessDate)
	}

	p := db.CreateSessionParams{
		Name:             name,
		BusinessDate:     req.BusinessDate,
		VenueID:          req.VenueID,
		SessionTypeID:    st.ID,
		Status:           string(api.SessionDraft),
		CreatedBy:        actor.ID,
		TimeLimitMinutes: limit,
	}
	if req.Launch {
		opened := s.now()
		end := opened.Add(time.Duration(limit) * time.Minute)
		p.Status = string(api.SessionActive)
		p.OpenedAt = &opened
		p.ExpectedEndAt = &end
	}

	id, err := s.store.Q.CreateSession(p)
	if err != nil {
		return nil, err
	}
	if err := s.store.Q.AddParticipant(id, actor.ID); err != nil {
		return nil, err
	}
	s.log.Info("session created", "session_id", id, "status", p.Status, "by", actor.ID)
	return s.store.Q.GetSessionByID(id)
}

// StartSession moves a draft to active and stamps the expiry window.
func (s *Service) StartSession(actor Actor, id int64) (*api.Session, error) {
	sess, err := s.mustSession(id)
	if err != nil {
		return nil, err
	}
	if sess.Status != api.SessionDraft {
		return nil, &api.SessionStateError{Reason: "only a draft session can be started"}
	}
	if !actor.canAdminister(sess) {
		return nil, &api.PermissionError{Msg: "only the creator or a manager can start a session"}
	}

	opened := s.now()
	end := opened.Add(time.Duration(sess.TimeLimitMinutes) * time.Minute)
	if err := s.store.Q.StartSession(id, opened, end); err != nil {
		return nil, err
	}
	return s.store.Q.GetSessionByID(id)
}

// JoinSession attaches the actor to an active session. Joining never
// changes session state.
func (s *Service) JoinSession(actor Actor, id int64) error {
	sess, err := s.mustSession(id)
	if err != nil {
		return err
	}
	if sess.Status != api.SessionActive {
		return &api.SessionStateError{Reason: "session is not active"}
	}
	return s.store.Q.AddParticipant(id, actor.ID)
}

// LeaveSession detaches the actor; other participants are unaffected.
func (s *Service) LeaveSession(actor Actor, id int64) error {
	if _, err := s.mustSession(id); err != nil {
		return err
	}
	return s.store.Q.RemoveParticipant(id, actor.ID)
}

// CloseSession closes an active session. With counts supplied it
// reconciles: for every ingredient whose counted stock differs from the
// system stock beyond epsilon, a correction movement lands the stock on
// the counted value. Returns the corrections applied.
func (s *Service) CloseSession(actor Actor, id int64, counts []api.ReconciliationCount) ([]api.ReconciliationCorrection, error) {
	sess, err := s.mustSession(id)
	if err != nil {
		return nil, err
	}
	if sess.Status != api.SessionActive {
		return nil, &api.SessionStateError{Reason: "only an active session can be closed"}
	}
	if !actor.canAdminister(sess) {
		return nil, &api.PermissionError{Msg: "only the creator or a manager can close a session"}
	}

	var movements []db.CreateMovementParams
	var corrections []api.ReconciliationCorrection
	for _, c := range counts {
		ing, err := s.store.Q.GetIngredientByID(c.IngredientID)
		if err != nil {
			return nil, err
		}
		if ing == nil {
			return nil, &api.NotFoundError{What: "ingredient"}
		}
		delta := c.CountedStock - ing.CurrentStock
		if math.Abs(delta) <= StockEpsilon {
			continue
		}
		sid := id
		movements = append(movements, db.CreateMovementParams{
			IngredientID:  c.IngredientID,
			MovementType:  string(api.MovementCorrection),
			QuantityDelta: delta,
			SessionID:     &sid,
			Note:          "close reconciliation",
		})
		corrections = append(corrections, api.ReconciliationCorrection{
			IngredientID:  c.IngredientID,
			QuantityDelta: delta,
		})
	}

	if err := s.store.Q.CloseSessionTx(id, s.now(), movements); err != nil {
		return nil, err
	}
	s.log.Info("session closed", "session_id", id, "corrections", len(corrections))
	return corrections, nil
}

// DeleteSession removes a session and cascades its issues and movements.
// Administrative, not a lifecycle step.
func (s *Service) DeleteSession(actor Actor, id int64) error {
	sess, err := s.mustSession(id)
	if err != nil {
		return err
	}
	if !actor.canAdminister(sess) {
		return &api.PermissionError{Msg: "only the creator or a manager can delete a session"}
	}
	if err := s.store.Q.DeleteSession(id); err != nil {
		return err
	}
	s.log.Info("session deleted", "session_id", id, "by", actor.ID)
	return nil
}

// ListSessionIssues returns one session's issues, oldest first.
func (s *Service) ListSessionIssues(id int64) ([]api.DrinkIssue, error) {
	if _, err := s.mustSession(id); err != nil {
		return nil, err
	}
	return s.store.Q.ListIssuesForSession(id)
}

func (s *Service) mustSession(id int64) (*api.Session, error) {
	sess, err := s.store.Q.GetSessionByID(id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, &api.NotFoundError{What: "session"}
	}
	return sess, nil
}
