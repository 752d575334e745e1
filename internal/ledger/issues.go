package ledger

import (
	"openbar-go/internal/api"
	"openbar-go/internal/db"
	"openbar-go/internal/volume"
)

// CreateDrinkIssue is the authoritative issuance path: it validates the
// session and recipe, resolves the committed category selections, computes
// the ingredient requirements through the volume model, checks stock and
// posts the deduction movements with the issue in one transaction.
func (s *Service) CreateDrinkIssue(actor Actor, req api.CreateDrinkIssueRequest) (*api.DrinkIssue, error) {
	if req.Servings < 1 || req.Servings > 99 {
		return nil, &api.ValidationError{Msg: "servings must be between 1 and 99"}
	}

	sess, err := s.mustSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	override := req.AllowInactiveSession && actor.Manager
	if !override {
		if sess.Status != api.SessionActive {
			return nil, &api.SessionStateError{Reason: "session is not active"}
		}
		if sess.Expired(s.now()) {
			return nil, &api.SessionStateError{Reason: "session time limit has passed"}
		}
	}

	recipe, err := s.store.Q.GetRecipeByID(req.RecipeID)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, &api.NotFoundError{What: "recipe"}
	}

	selected := make(map[int64]int64, len(req.CategorySelections))
	for _, sel := range req.CategorySelections {
		selected[sel.LineID] = sel.IngredientID
	}

	// requirements per serving, keyed by ingredient id
	perServing, err := s.requirements(recipe, req, selected)
	if err != nil {
		return nil, err
	}

	var shortages []api.Shortage
	var movements []db.CreateMovementParams
	sid := req.SessionID
	for ingID, q := range perServing {
		need := q * float64(req.Servings)
		if need <= StockEpsilon {
			continue
		}
		ing, err := s.store.Q.GetIngredientByID(ingID)
		if err != nil {
			return nil, err
		}
		if ing == nil {
			return nil, &api.NotFoundError{What: "ingredient"}
		}
		if ing.CurrentStock+StockEpsilon < need {
			shortages = append(shortages, api.Shortage{
				IngredientName: ing.Name,
				Missing:        need - ing.CurrentStock,
			})
			continue
		}
		movements = append(movements, db.CreateMovementParams{
			IngredientID:  ingID,
			MovementType:  string(api.MovementDrinkIssue),
			QuantityDelta: -need,
			SessionID:     &sid,
		})
	}
	if len(shortages) > 0 {
		return nil, &api.StockShortageError{Shortages: shortages}
	}

	issuedAt := s.now()
	id, err := s.store.Q.CreateIssueTx(db.CreateIssueParams{
		SessionID:    req.SessionID,
		RecipeID:     req.RecipeID,
		Servings:     req.Servings,
		Strength:     req.Strength,
		IncludeIce:   req.IncludeIce,
		IsStaffDrink: req.IsStaffDrink,
		IssuedBy:     actor.ID,
		IssuedAt:     issuedAt,
		Notes:        req.Notes,
	}, req.CategorySelections, movements)
	if err != nil {
		return nil, err
	}

	issue := &api.DrinkIssue{
		ID:           id,
		SessionID:    req.SessionID,
		RecipeID:     req.RecipeID,
		Servings:     req.Servings,
		Strength:     req.Strength,
		IncludeIce:   req.IncludeIce,
		IsStaffDrink: req.IsStaffDrink,
		IssuedBy:     actor.ID,
		IssuedAt:     issuedAt,
		Notes:        req.Notes,
		Selections:   req.CategorySelections,
	}
	s.log.Info("drink issued", "issue_id", id, "session_id", req.SessionID, "recipe_id", req.RecipeID, "servings", req.Servings)
	s.events.DrinkIssueCreated(req.SessionID, *issue)
	return issue, nil
}

// requirements resolves one serving into base-unit quantities per
// ingredient: recipe lines through the volume model, plus one cup per
// serving and the ice cubes when ice is in.
func (s *Service) requirements(recipe *api.Recipe, req api.CreateDrinkIssueRequest, selected map[int64]int64) (map[int64]float64, error) {
	vr, err := s.volumeRecipe(recipe.CupIngredientID, recipe.HasIce, recipe.IceCubes, recipe.AskStrength, recipe.Lines)
	if err != nil {
		return nil, err
	}

	// every required category line must carry a selection
	for _, ln := range recipe.Lines {
		if ln.Kind != api.LineCategorySelector || ln.IsOptional {
			continue
		}
		if _, ok := selected[ln.ID]; !ok {
			return nil, &api.MissingCategorySelection{LineID: ln.ID}
		}
	}

	quantities := volume.PortionQuantities(vr, req.Strength, func(lineID int64) bool {
		_, ok := selected[lineID]
		return ok
	})

	out := map[int64]float64{}
	for _, ln := range recipe.Lines {
		q, ok := quantities[ln.ID]
		if !ok || q <= 0 {
			continue
		}
		switch ln.Kind {
		case api.LineFixedIngredient:
			out[ln.IngredientID] += q
		case api.LineCategorySelector:
			ingID, ok := selected[ln.ID]
			if !ok {
				continue // optional, unselected
			}
			ing, err := s.store.Q.GetIngredientByID(ingID)
			if err != nil {
				return nil, err
			}
			if ing == nil {
				return nil, &api.NotFoundError{What: "ingredient"}
			}
			if ing.CategoryID != ln.CategoryID {
				return nil, &api.ValidationError{Msg: "selected ingredient is outside the line's category"}
			}
			out[ingID] += q
		}
	}

	if recipe.CupIngredientID != nil {
		out[*recipe.CupIngredientID] += 1
	}

	includeIce := recipe.HasIce
	if req.IncludeIce != nil {
		includeIce = *req.IncludeIce
	}
	if includeIce && recipe.HasIce {
		ice, err := s.store.Q.FindIceIngredient()
		if err != nil {
			return nil, err
		}
		if ice != nil {
			out[ice.ID] += float64(volume.ResolveIceCubes(true, recipe.IceCubes))
		}
	}
	return out, nil
}

// DeleteDrinkIssue removes an issue and reverses its stock deduction by
// posting opposing reversal movements.
func (s *Service) DeleteDrinkIssue(actor Actor, issueID int64) error {
	issue, err := s.store.Q.GetIssueByID(issueID)
	if err != nil {
		return err
	}
	if issue == nil {
		return &api.NotFoundError{What: "drink issue"}
	}
	sess, err := s.mustSession(issue.SessionID)
	if err != nil {
		return err
	}
	if !actor.Manager && actor.ID != issue.IssuedBy && actor.ID != sess.CreatedBy {
		return &api.PermissionError{Msg: "only the issuer, session creator or a manager can delete an issue"}
	}

	movements, err := s.store.Q.ListMovementsForIssue(issueID)
	if err != nil {
		return err
	}
	var reversals []db.CreateMovementParams
	sid := issue.SessionID
	for _, m := range movements {
		if m.MovementType != api.MovementDrinkIssue {
			continue
		}
		reversals = append(reversals, db.CreateMovementParams{
			IngredientID:  m.IngredientID,
			MovementType:  string(api.MovementIssueReversal),
			QuantityDelta: -m.QuantityDelta,
			SessionID:     &sid,
			Note:          "issue deleted",
		})
	}
	if err := s.store.Q.DeleteIssueTx(issueID, reversals); err != nil {
		return err
	}
	s.log.Info("drink issue deleted", "issue_id", issueID, "session_id", issue.SessionID)
	s.events.DrinkIssueDeleted(issue.SessionID, issueID)
	return nil
}
