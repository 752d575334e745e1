package ledger

import (
	"openbar-go/internal/api"
)

const (
	defaultSessionLimit      = 20
	defaultDeliveryLimit     = 20
	defaultSessionIssueLimit = 200
)

// GetBootstrap assembles the consolidated snapshot for one actor and
// business date. Read-only.
func (s *Service) GetBootstrap(actor Actor, req api.BootstrapRequest) (*api.Bootstrap, error) {
	if req.BusinessDate == "" {
		return nil, &api.ValidationError{Msg: "business date is required"}
	}
	sessionLimit := req.SessionLimit
	if sessionLimit <= 0 {
		sessionLimit = defaultSessionLimit
	}
	deliveryLimit := req.DeliveryLimit
	if deliveryLimit <= 0 {
		deliveryLimit = defaultDeliveryLimit
	}
	issueLimit := req.SessionIssueLimit
	if issueLimit <= 0 {
		issueLimit = defaultSessionIssueLimit
	}

	var (
		b   api.Bootstrap
		err error
	)
	if b.Ingredients, err = s.store.Q.ListIngredients(); err != nil {
		return nil, err
	}
	if b.Categories, err = s.store.Q.ListCategories(); err != nil {
		return nil, err
	}
	if b.Variants, err = s.store.Q.ListVariants(); err != nil {
		return nil, err
	}
	if b.Recipes, err = s.store.Q.ListRecipes(); err != nil {
		return nil, err
	}
	if b.Sessions, err = s.store.Q.ListSessionsForStaff(req.BusinessDate, actor.ID, sessionLimit); err != nil {
		return nil, err
	}
	if b.JoinableSessions, err = s.store.Q.ListJoinableSessions(req.BusinessDate, actor.ID); err != nil {
		return nil, err
	}
	if b.SessionTypes, err = s.store.Q.ListSessionTypes(); err != nil {
		return nil, err
	}
	if b.Venues, err = s.store.Q.ListVenues(); err != nil {
		return nil, err
	}
	if b.Deliveries, err = s.store.Q.ListDeliveries(deliveryLimit); err != nil {
		return nil, err
	}
	if b.SessionIssues, err = s.store.Q.ListSessionIssues(req.BusinessDate, issueLimit); err != nil {
		return nil, err
	}
	return &b, nil
}
