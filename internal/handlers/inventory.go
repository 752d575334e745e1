package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"openbar-go/internal/api"
	"openbar-go/internal/db"
)

func urlID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

/* ---------------- categories ---------------- */

func (s *Server) CategoryCreate(w http.ResponseWriter, r *http.Request) {
	var req api.SaveCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	id, err := s.App.Ledger().CreateCategory(db.CreateCategoryParams{Name: req.Name, SortOrder: req.SortOrder})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.IDResponse{ID: id})
}

func (s *Server) CategoryUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad category id"})
		return
	}
	var req api.SaveCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	if err := s.App.Ledger().UpdateCategory(db.UpdateCategoryParams{ID: id, Name: req.Name, SortOrder: req.SortOrder}); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.IDResponse{ID: id})
}

/* ---------------- ingredients ---------------- */

func (s *Server) IngredientCreate(w http.ResponseWriter, r *http.Request) {
	var req api.SaveIngredientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	id, err := s.App.Ledger().CreateIngredient(db.CreateIngredientParams{
		Name: req.Name, CategoryID: req.CategoryID, BaseUnit: string(req.BaseUnit),
		CurrentStock: req.CurrentStock, ParLevel: req.ParLevel, ReorderLevel: req.ReorderLevel,
		CostPerUnit: req.CostPerUnit, IsCup: req.IsCup, IsIce: req.IsIce,
		CupType: string(req.CupType), CupCapacityML: req.CupCapacityML,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.IDResponse{ID: id})
}

func (s *Server) IngredientUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad ingredient id"})
		return
	}
	var req api.SaveIngredientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	if err := s.App.Ledger().UpdateIngredient(db.UpdateIngredientParams{
		ID: id, Name: req.Name, CategoryID: req.CategoryID, BaseUnit: string(req.BaseUnit),
		ParLevel: req.ParLevel, ReorderLevel: req.ReorderLevel,
		IsCup: req.IsCup, IsIce: req.IsIce, CupType: string(req.CupType), CupCapacityML: req.CupCapacityML,
	}); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.IDResponse{ID: id})
}

/* ---------------- variants ---------------- */

func (s *Server) VariantCreate(w http.ResponseWriter, r *http.Request) {
	var req api.SaveVariantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	id, err := s.App.Ledger().CreateVariant(db.CreateVariantParams{
		IngredientID: req.IngredientID, Name: req.Name, Brand: req.Brand,
		PackageLabel: req.PackageLabel, BaseQuantity: req.BaseQuantity, IsActive: req.IsActive,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.IDResponse{ID: id})
}

func (s *Server) VariantUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad variant id"})
		return
	}
	var req api.SaveVariantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	if err := s.App.Ledger().UpdateVariant(db.UpdateVariantParams{
		ID: id, Name: req.Name, Brand: req.Brand, PackageLabel: req.PackageLabel,
		BaseQuantity: req.BaseQuantity, IsActive: req.IsActive,
	}); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.IDResponse{ID: id})
}

/* ---------------- recipes ---------------- */

func (s *Server) saveRecipe(w http.ResponseWriter, r *http.Request, id int64) {
	var req api.SaveRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	lines := make([]db.RecipeLineUpsertItem, len(req.Lines))
	for i, ln := range req.Lines {
		lines[i] = db.RecipeLineUpsertItem{
			Kind: string(ln.Kind), IngredientID: ln.IngredientID, CategoryID: ln.CategoryID,
			Quantity: ln.Quantity, IsOptional: ln.IsOptional,
			AffectsStrength: ln.AffectsStrength, IsTopUp: ln.IsTopUp,
		}
	}
	id, err := s.App.Ledger().SaveRecipe(id, db.CreateRecipeParams{
		Name: req.Name, DrinkType: string(req.DrinkType), CupIngredientID: req.CupIngredientID,
		HasIce: req.HasIce, IceCubes: req.IceCubes, AskStrength: req.AskStrength, LabelMode: req.LabelMode,
	}, lines)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.IDResponse{ID: id})
}

func (s *Server) RecipeCreate(w http.ResponseWriter, r *http.Request) {
	s.saveRecipe(w, r, 0)
}

func (s *Server) RecipeUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r)
	if !ok {
		writeErr(w, &api.ValidationError{Msg: "bad recipe id"})
		return
	}
	s.saveRecipe(w, r, id)
}

/* ---------------- venues & session types ---------------- */

func (s *Server) VenueCreate(w http.ResponseWriter, r *http.Request) {
	var req api.SaveVenueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	id, err := s.App.Ledger().CreateVenue(req.Name)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.IDResponse{ID: id})
}

func (s *Server) SessionTypeCreate(w http.ResponseWriter, r *http.Request) {
	var req api.SaveSessionTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	id, err := s.App.Ledger().CreateSessionType(db.CreateSessionTypeParams{
		Name: req.Name, DefaultTimeLimitMinutes: req.DefaultTimeLimitMinutes})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.IDResponse{ID: id})
}

/* ---------------- deliveries & adjustments ---------------- */

func (s *Server) DeliveryCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateDeliveryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	d, err := s.App.Ledger().CreateDelivery(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) AdjustmentCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, &api.ValidationError{Msg: "bad request body"})
		return
	}
	newStock, err := s.App.Ledger().CreateAdjustment(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, api.CreateAdjustmentResponse{NewStock: newStock})
}
