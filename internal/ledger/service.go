// Package ledger is the authoritative inventory service: every stock change
// goes through here as a movement row, and drink issuance performs its
// stock check and deduction inside one transaction.
package ledger

import (
	"fmt"
	"log/slog"
	"time"

	"openbar-go/internal/api"
	"openbar-go/internal/db"
	"openbar-go/internal/volume"
)

// StockEpsilon bounds float noise when comparing stock levels.
const StockEpsilon = 1e-6

// Events receives push notifications after a mutation commits. The SSE hub
// implements it; tests use a recorder.
type Events interface {
	DrinkIssueCreated(sessionID int64, issue api.DrinkIssue)
	DrinkIssueDeleted(sessionID, issueID int64)
}

type noopEvents struct{}

func (noopEvents) DrinkIssueCreated(int64, api.DrinkIssue) {}
func (noopEvents) DrinkIssueDeleted(int64, int64)          {}

type Service struct {
	store  *db.Store
	log    *slog.Logger
	events Events
	now    func() time.Time
}

func New(store *db.Store, logger *slog.Logger, events Events) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = noopEvents{}
	}
	return &Service{store: store, log: logger, events: events, now: time.Now}
}

// SetNow swaps the clock. Test helper.
func (s *Service) SetNow(now func() time.Time) { s.now = now }

/* ---------------- Categories ---------------- */

func (s *Service) CreateCategory(p db.CreateCategoryParams) (int64, error) {
	if p.Name == "" {
		return 0, &api.ValidationError{Msg: "category name is required"}
	}
	return s.store.Q.CreateCategory(p)
}

func (s *Service) UpdateCategory(p db.UpdateCategoryParams) error {
	if p.Name == "" {
		return &api.ValidationError{Msg: "category name is required"}
	}
	return s.store.Q.UpdateCategory(p)
}

/* ---------------- Ingredients ---------------- */

func validateIngredientFlags(isCup, isIce bool, cupType string, capML *float64) error {
	if isCup && isIce {
		return &api.ValidationError{Msg: "an ingredient cannot be both a cup and ice"}
	}
	if isCup {
		if cupType != string(api.CupDisposable) && cupType != string(api.CupReusable) {
			return &api.ValidationError{Msg: "cup ingredients need a cup type"}
		}
		if capML == nil || *capML <= 0 {
			return &api.ValidationError{Msg: "cup ingredients need a positive capacity"}
		}
	} else if cupType != "" || capML != nil {
		return &api.ValidationError{Msg: "cup fields only apply to cup ingredients"}
	}
	return nil
}

func (s *Service) CreateIngredient(p db.CreateIngredientParams) (int64, error) {
	if p.Name == "" {
		return 0, &api.ValidationError{Msg: "ingredient name is required"}
	}
	if p.BaseUnit != string(api.UnitML) && p.BaseUnit != string(api.UnitUnit) {
		return 0, &api.ValidationError{Msg: "base unit must be ml or unit"}
	}
	if err := validateIngredientFlags(p.IsCup, p.IsIce, p.CupType, p.CupCapacityML); err != nil {
		return 0, err
	}
	return s.store.Q.CreateIngredient(p)
}

func (s *Service) UpdateIngredient(p db.UpdateIngredientParams) error {
	if p.BaseUnit != string(api.UnitML) && p.BaseUnit != string(api.UnitUnit) {
		return &api.ValidationError{Msg: "base unit must be ml or unit"}
	}
	if err := validateIngredientFlags(p.IsCup, p.IsIce, p.CupType, p.CupCapacityML); err != nil {
		return err
	}
	existing, err := s.store.Q.GetIngredientByID(p.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return &api.NotFoundError{What: "ingredient"}
	}
	return s.store.Q.UpdateIngredient(p)
}

/* ---------------- Variants ---------------- */

func (s *Service) CreateVariant(p db.CreateVariantParams) (int64, error) {
	if p.BaseQuantity <= 0 {
		return 0, &api.ValidationError{Msg: "variant base quantity must be positive"}
	}
	ing, err := s.store.Q.GetIngredientByID(p.IngredientID)
	if err != nil {
		return 0, err
	}
	if ing == nil {
		return 0, &api.NotFoundError{What: "ingredient"}
	}
	return s.store.Q.CreateVariant(p)
}

func (s *Service) UpdateVariant(p db.UpdateVariantParams) error {
	if p.BaseQuantity <= 0 {
		return &api.ValidationError{Msg: "variant base quantity must be positive"}
	}
	return s.store.Q.UpdateVariant(p)
}

/* ---------------- Recipes ---------------- */

// volumeRecipe builds the pure model view of a recipe for capacity checks
// and portioning. Fixed lines take IsLiquid from their ingredient's base
// unit; category selector lines are treated as liquid, which is what a
// category pour means in practice.
func (s *Service) volumeRecipe(cupIngredientID *int64, hasIce bool, iceCubes float64, askStrength bool, lines []api.RecipeLine) (volume.Recipe, error) {
	rec := volume.Recipe{HasIce: hasIce, IceCubes: iceCubes, AskStrength: askStrength}

	if cupIngredientID != nil {
		cup, err := s.store.Q.GetIngredientByID(*cupIngredientID)
		if err != nil {
			return rec, err
		}
		if cup == nil || !cup.IsCup {
			return rec, &api.ValidationError{Msg: "cup reference is not a cup ingredient"}
		}
		rec.CupCapacityML = cup.CupCapacityML
	}

	for _, ln := range lines {
		vl := volume.Line{
			ID:              ln.ID,
			Quantity:        ln.Quantity,
			IsOptional:      ln.IsOptional,
			AffectsStrength: ln.AffectsStrength,
			IsTopUp:         ln.IsTopUp,
			IsLiquid:        true,
		}
		if ln.Kind == api.LineFixedIngredient {
			ing, err := s.store.Q.GetIngredientByID(ln.IngredientID)
			if err != nil {
				return rec, err
			}
			if ing == nil {
				return rec, &api.NotFoundError{What: "ingredient"}
			}
			vl.IsLiquid = ing.BaseUnit == api.UnitML
		}
		rec.Lines = append(rec.Lines, vl)
	}
	return rec, nil
}

func validateRecipeLines(items []db.RecipeLineUpsertItem) error {
	for i, it := range items {
		switch it.Kind {
		case string(api.LineFixedIngredient):
			if it.IngredientID == nil {
				return &api.ValidationError{Msg: fmt.Sprintf("line %d: fixed line needs an ingredient", i)}
			}
			if it.IsTopUp {
				return &api.ValidationError{Msg: fmt.Sprintf("line %d: top-up lines must be category selectors", i)}
			}
			if it.Quantity == nil || *it.Quantity <= 0 {
				return &api.ValidationError{Msg: fmt.Sprintf("line %d: fixed line needs a positive quantity", i)}
			}
		case string(api.LineCategorySelector):
			if it.CategoryID == nil {
				return &api.ValidationError{Msg: fmt.Sprintf("line %d: category line needs a category", i)}
			}
			if it.IsTopUp && it.Quantity != nil {
				return &api.ValidationError{Msg: fmt.Sprintf("line %d: top-up lines carry no fixed quantity", i)}
			}
			if !it.IsTopUp && (it.Quantity == nil || *it.Quantity <= 0) {
				return &api.ValidationError{Msg: fmt.Sprintf("line %d: category line needs a positive quantity", i)}
			}
		default:
			return &api.ValidationError{Msg: fmt.Sprintf("line %d: unknown line kind %q", i, it.Kind)}
		}
	}
	return nil
}

// SaveRecipe creates or updates a recipe and replaces its lines, enforcing
// the capacity invariant before anything is written.
func (s *Service) SaveRecipe(id int64, p db.CreateRecipeParams, lines []db.RecipeLineUpsertItem) (int64, error) {
	if p.Name == "" {
		return 0, &api.ValidationError{Msg: "recipe name is required"}
	}
	if err := validateRecipeLines(lines); err != nil {
		return 0, err
	}

	apiLines := make([]api.RecipeLine, len(lines))
	for i, it := range lines {
		apiLines[i] = api.RecipeLine{
			ID:              int64(i),
			Kind:            api.LineKind(it.Kind),
			Quantity:        it.Quantity,
			IsOptional:      it.IsOptional,
			AffectsStrength: it.AffectsStrength,
			IsTopUp:         it.IsTopUp,
		}
		if it.IngredientID != nil {
			apiLines[i].IngredientID = *it.IngredientID
		}
		if it.CategoryID != nil {
			apiLines[i].CategoryID = *it.CategoryID
		}
	}
	rec, err := s.volumeRecipe(p.CupIngredientID, p.HasIce, p.IceCubes, p.AskStrength, apiLines)
	if err != nil {
		return 0, err
	}
	if err := volume.ValidateCapacity(rec); err != nil {
		return 0, err
	}

	if id == 0 {
		id, err = s.store.Q.CreateRecipe(p)
		if err != nil {
			return 0, err
		}
	} else {
		existing, err := s.store.Q.GetRecipeByID(id)
		if err != nil {
			return 0, err
		}
		if existing == nil {
			return 0, &api.NotFoundError{What: "recipe"}
		}
		if err := s.store.Q.UpdateRecipe(db.UpdateRecipeParams{
			ID: id, Name: p.Name, DrinkType: p.DrinkType, CupIngredientID: p.CupIngredientID,
			HasIce: p.HasIce, IceCubes: p.IceCubes, AskStrength: p.AskStrength, LabelMode: p.LabelMode,
		}); err != nil {
			return 0, err
		}
	}
	if err := s.store.Q.ReplaceRecipeLines(id, lines); err != nil {
		return 0, err
	}
	return id, nil
}

/* ---------------- Venues & session types ---------------- */

func (s *Service) CreateVenue(name string) (int64, error) {
	if name == "" {
		return 0, &api.ValidationError{Msg: "venue name is required"}
	}
	return s.store.Q.CreateVenue(name)
}

func (s *Service) CreateSessionType(p db.CreateSessionTypeParams) (int64, error) {
	if p.Name == "" {
		return 0, &api.ValidationError{Msg: "session type name is required"}
	}
	if p.DefaultTimeLimitMinutes <= 0 {
		return 0, &api.ValidationError{Msg: "default time limit must be positive"}
	}
	return s.store.Q.CreateSessionType(p)
}

/* ---------------- Deliveries ---------------- */

// CreateDelivery converts purchased SKUs into base-unit stock increases and
// folds the purchase cost into a weighted average cost per base unit.
func (s *Service) CreateDelivery(req api.CreateDeliveryRequest) (*api.Delivery, error) {
	if len(req.Items) == 0 {
		return nil, &api.ValidationError{Msg: "delivery needs at least one item"}
	}

	items := make([]db.CreateDeliveryItemParams, 0, len(req.Items))
	var movements []db.CreateMovementParams
	var costs []db.CostUpdate

	for i, it := range req.Items {
		if it.PurchaseUnits <= 0 {
			return nil, &api.ValidationError{Msg: fmt.Sprintf("item %d: purchase units must be positive", i)}
		}
		variant, err := s.store.Q.GetVariantByID(it.VariantID)
		if err != nil {
			return nil, err
		}
		if variant == nil {
			return nil, &api.NotFoundError{What: "variant"}
		}
		if !variant.IsActive {
			return nil, &api.ValidationError{Msg: fmt.Sprintf("item %d: variant is inactive", i)}
		}
		ing, err := s.store.Q.GetIngredientByID(variant.IngredientID)
		if err != nil {
			return nil, err
		}
		if ing == nil {
			return nil, &api.NotFoundError{What: "ingredient"}
		}

		baseQty := variant.BaseQuantity * it.PurchaseUnits
		items = append(items, db.CreateDeliveryItemParams{
			VariantID:        it.VariantID,
			PurchaseUnits:    it.PurchaseUnits,
			PurchaseUnitCost: it.PurchaseUnitCost,
			BaseQuantity:     baseQty,
		})
		movements = append(movements, db.CreateMovementParams{
			IngredientID:  ing.ID,
			MovementType:  string(api.MovementDelivery),
			QuantityDelta: baseQty,
			Note:          req.InvoiceRef,
		})

		if it.PurchaseUnitCost != nil && variant.BaseQuantity > 0 {
			unitCost := *it.PurchaseUnitCost / variant.BaseQuantity
			total := ing.CurrentStock + baseQty
			if total > StockEpsilon {
				avg := (ing.CurrentStock*ing.CostPerUnit + baseQty*unitCost) / total
				costs = append(costs, db.CostUpdate{IngredientID: ing.ID, CostPerUnit: avg})
			}
		}
	}

	deliveredAt := req.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = s.now()
	}
	id, err := s.store.Q.CreateDeliveryTx(db.CreateDeliveryParams{
		SupplierName: req.SupplierName,
		InvoiceRef:   req.InvoiceRef,
		DeliveredAt:  deliveredAt,
		Notes:        req.Notes,
	}, items, movements, costs)
	if err != nil {
		return nil, err
	}

	out := &api.Delivery{
		ID: id, SupplierName: req.SupplierName, InvoiceRef: req.InvoiceRef,
		DeliveredAt: deliveredAt, Notes: req.Notes,
	}
	for _, it := range items {
		out.Items = append(out.Items, api.DeliveryItem{
			VariantID:        it.VariantID,
			PurchaseUnits:    it.PurchaseUnits,
			PurchaseUnitCost: it.PurchaseUnitCost,
			BaseQuantity:     it.BaseQuantity,
		})
	}
	s.log.Info("delivery posted", "delivery_id", id, "items", len(items))
	return out, nil
}

/* ---------------- Adjustments ---------------- */

// CreateAdjustment posts a manual movement. Only adjustment, waste and
// correction types may be posted by hand; issue movements come from the
// issuance path alone.
func (s *Service) CreateAdjustment(req api.CreateAdjustmentRequest) (float64, error) {
	switch req.MovementType {
	case api.MovementAdjustment, api.MovementWaste, api.MovementCorrection:
	default:
		return 0, &api.ValidationError{Msg: "movement type must be adjustment, waste or correction"}
	}
	if req.QuantityDelta == 0 {
		return 0, &api.ValidationError{Msg: "quantity delta must be non-zero"}
	}
	ing, err := s.store.Q.GetIngredientByID(req.IngredientID)
	if err != nil {
		return 0, err
	}
	if ing == nil {
		return 0, &api.NotFoundError{What: "ingredient"}
	}
	return s.store.Q.ApplyMovement(db.CreateMovementParams{
		IngredientID:  req.IngredientID,
		MovementType:  string(req.MovementType),
		QuantityDelta: req.QuantityDelta,
		Note:          req.Note,
	})
}
