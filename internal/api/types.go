// Package api holds the wire types shared by the ledger HTTP handlers and
// the typed client. Quantities are ml for liquid ingredients and whole
// units otherwise; timestamps travel as unix seconds.
package api

import "time"

type BaseUnit string

const (
	UnitML   BaseUnit = "ml"
	UnitUnit BaseUnit = "unit"
)

type CupType string

const (
	CupDisposable CupType = "disposable"
	CupReusable   CupType = "reusable"
)

type Ingredient struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	CategoryID    int64    `json:"categoryId"`
	BaseUnit      BaseUnit `json:"baseUnit"`
	CurrentStock  float64  `json:"currentStock"`
	ParLevel      float64  `json:"parLevel"`
	ReorderLevel  float64  `json:"reorderLevel"`
	CostPerUnit   float64  `json:"costPerUnit"`
	IsCup         bool     `json:"isCup"`
	IsIce         bool     `json:"isIce"`
	CupType       CupType  `json:"cupType,omitempty"`
	CupCapacityML *float64 `json:"cupCapacityMl,omitempty"`
}

type IngredientCategory struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int64  `json:"sortOrder"`
}

type IngredientVariant struct {
	ID           int64   `json:"id"`
	IngredientID int64   `json:"ingredientId"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand,omitempty"`
	PackageLabel string  `json:"packageLabel,omitempty"`
	BaseQuantity float64 `json:"baseQuantity"`
	IsActive     bool    `json:"isActive"`
}

type DrinkType string

const (
	DrinkClassic  DrinkType = "classic"
	DrinkCocktail DrinkType = "cocktail"
	DrinkBeer     DrinkType = "beer"
	DrinkSoft     DrinkType = "soft"
	DrinkCustom   DrinkType = "custom"
)

type LineKind string

const (
	LineFixedIngredient  LineKind = "fixed_ingredient"
	LineCategorySelector LineKind = "category_selector"
)

type RecipeLine struct {
	ID              int64    `json:"id"`
	Kind            LineKind `json:"kind"`
	IngredientID    int64    `json:"ingredientId,omitempty"`
	CategoryID      int64    `json:"categoryId,omitempty"`
	Quantity        *float64 `json:"quantity,omitempty"`
	IsOptional      bool     `json:"isOptional"`
	AffectsStrength bool     `json:"affectsStrength"`
	IsTopUp         bool     `json:"isTopUp"`
}

type Recipe struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	DrinkType       DrinkType    `json:"drinkType"`
	CupIngredientID *int64       `json:"cupIngredientId,omitempty"`
	HasIce          bool         `json:"hasIce"`
	IceCubes        float64      `json:"iceCubes"`
	AskStrength     bool         `json:"askStrength"`
	LabelMode       string       `json:"labelMode,omitempty"`
	Lines           []RecipeLine `json:"lines"`
}

type SessionStatus string

const (
	SessionDraft  SessionStatus = "draft"
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

type SessionType struct {
	ID                      int64  `json:"id"`
	Name                    string `json:"name"`
	DefaultTimeLimitMinutes int64  `json:"defaultTimeLimitMinutes"`
}

type Venue struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Session struct {
	ID               int64         `json:"id"`
	Name             string        `json:"name"`
	BusinessDate     string        `json:"businessDate"`
	VenueID          *int64        `json:"venueId,omitempty"`
	SessionTypeID    int64         `json:"sessionTypeId"`
	Status           SessionStatus `json:"status"`
	CreatedBy        int64         `json:"createdBy"`
	TimeLimitMinutes int64         `json:"timeLimitMinutes"`
	OpenedAt         *time.Time    `json:"openedAt,omitempty"`
	ExpectedEndAt    *time.Time    `json:"expectedEndAt,omitempty"`
	ClosedAt         *time.Time    `json:"closedAt,omitempty"`
}

// Expired reports whether the session's time limit has elapsed at the given
// instant. Derived, never stored.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpectedEndAt == nil {
		return false
	}
	return !now.Before(*s.ExpectedEndAt)
}

type CategorySelection struct {
	LineID       int64 `json:"lineId"`
	IngredientID int64 `json:"ingredientId"`
}

type DrinkIssue struct {
	ID           int64               `json:"id"`
	SessionID    int64               `json:"sessionId"`
	RecipeID     int64               `json:"recipeId"`
	Servings     int64               `json:"servings"`
	Strength     string              `json:"strength,omitempty"`
	IncludeIce   *bool               `json:"includeIce,omitempty"`
	IsStaffDrink bool                `json:"isStaffDrink"`
	IssuedBy     int64               `json:"issuedBy"`
	IssuedAt     time.Time           `json:"issuedAt"`
	Notes        string              `json:"notes,omitempty"`
	Selections   []CategorySelection `json:"categorySelections,omitempty"`
}

type MovementType string

const (
	MovementDelivery       MovementType = "delivery"
	MovementAdjustment     MovementType = "adjustment"
	MovementWaste          MovementType = "waste"
	MovementCorrection     MovementType = "correction"
	MovementDrinkIssue     MovementType = "drink_issue"
	MovementIssueReversal  MovementType = "drink_issue_reversal"
)

type InventoryMovement struct {
	ID            int64        `json:"id"`
	IngredientID  int64        `json:"ingredientId"`
	MovementType  MovementType `json:"movementType"`
	QuantityDelta float64      `json:"quantityDelta"`
	IssueID       *int64       `json:"issueId,omitempty"`
	DeliveryID    *int64       `json:"deliveryId,omitempty"`
	SessionID     *int64       `json:"sessionId,omitempty"`
	Note          string       `json:"note,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type Delivery struct {
	ID           int64          `json:"id"`
	SupplierName string         `json:"supplierName,omitempty"`
	InvoiceRef   string         `json:"invoiceRef,omitempty"`
	DeliveredAt  time.Time      `json:"deliveredAt"`
	Notes        string         `json:"notes,omitempty"`
	Items        []DeliveryItem `json:"items"`
}

type DeliveryItem struct {
	ID               int64    `json:"id"`
	VariantID        int64    `json:"variantId"`
	PurchaseUnits    float64  `json:"purchaseUnits"`
	PurchaseUnitCost *float64 `json:"purchaseUnitCost,omitempty"`
	BaseQuantity     float64  `json:"baseQuantity"`
}

/* ---------------- requests ---------------- */

type SaveCategoryRequest struct {
	Name      string `json:"name"`
	SortOrder int64  `json:"sortOrder"`
}

type SaveIngredientRequest struct {
	Name          string   `json:"name"`
	CategoryID    int64    `json:"categoryId"`
	BaseUnit      BaseUnit `json:"baseUnit"`
	CurrentStock  float64  `json:"currentStock,omitempty"`
	ParLevel      float64  `json:"parLevel,omitempty"`
	ReorderLevel  float64  `json:"reorderLevel,omitempty"`
	CostPerUnit   float64  `json:"costPerUnit,omitempty"`
	IsCup         bool     `json:"isCup,omitempty"`
	IsIce         bool     `json:"isIce,omitempty"`
	CupType       CupType  `json:"cupType,omitempty"`
	CupCapacityML *float64 `json:"cupCapacityMl,omitempty"`
}

type SaveVariantRequest struct {
	IngredientID int64   `json:"ingredientId"`
	Name         string  `json:"name"`
	Brand        string  `json:"brand,omitempty"`
	PackageLabel string  `json:"packageLabel,omitempty"`
	BaseQuantity float64 `json:"baseQuantity"`
	IsActive     bool    `json:"isActive"`
}

type SaveRecipeLine struct {
	Kind            LineKind `json:"kind"`
	IngredientID    *int64   `json:"ingredientId,omitempty"`
	CategoryID      *int64   `json:"categoryId,omitempty"`
	Quantity        *float64 `json:"quantity,omitempty"`
	IsOptional      bool     `json:"isOptional,omitempty"`
	AffectsStrength bool     `json:"affectsStrength,omitempty"`
	IsTopUp         bool     `json:"isTopUp,omitempty"`
}

type SaveRecipeRequest struct {
	Name            string           `json:"name"`
	DrinkType       DrinkType        `json:"drinkType"`
	CupIngredientID *int64           `json:"cupIngredientId,omitempty"`
	HasIce          bool             `json:"hasIce,omitempty"`
	IceCubes        float64          `json:"iceCubes,omitempty"`
	AskStrength     bool             `json:"askStrength,omitempty"`
	LabelMode       string           `json:"labelMode,omitempty"`
	Lines           []SaveRecipeLine `json:"lines"`
}

type SaveVenueRequest struct {
	Name string `json:"name"`
}

type SaveSessionTypeRequest struct {
	Name                    string `json:"name"`
	DefaultTimeLimitMinutes int64  `json:"defaultTimeLimitMinutes"`
}

// IDResponse is the body of every create/update that only needs to hand an
// id back.
type IDResponse struct {
	ID int64 `json:"id"`
}

type CreateDeliveryRequest struct {
	SupplierName string                      `json:"supplierName,omitempty"`
	InvoiceRef   string                      `json:"invoiceRef,omitempty"`
	DeliveredAt  time.Time                   `json:"deliveredAt"`
	Notes        string                      `json:"notes,omitempty"`
	Items        []CreateDeliveryItemRequest `json:"items"`
}

type CreateDeliveryItemRequest struct {
	VariantID        int64    `json:"variantId"`
	PurchaseUnits    float64  `json:"purchaseUnits"`
	PurchaseUnitCost *float64 `json:"purchaseUnitCost,omitempty"`
}

type CreateAdjustmentRequest struct {
	IngredientID  int64        `json:"ingredientId"`
	MovementType  MovementType `json:"movementType"`
	QuantityDelta float64      `json:"quantityDelta"`
	Note          string       `json:"note,omitempty"`
}

type CreateAdjustmentResponse struct {
	NewStock float64 `json:"newStock"`
}

type CreateDrinkIssueRequest struct {
	SessionID            int64               `json:"sessionId"`
	RecipeID             int64               `json:"recipeId"`
	Servings             int64               `json:"servings"`
	Strength             string              `json:"strength,omitempty"`
	IncludeIce           *bool               `json:"includeIce,omitempty"`
	IsStaffDrink         bool                `json:"isStaffDrink,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	CategorySelections   []CategorySelection `json:"categorySelections,omitempty"`
	AllowInactiveSession bool                `json:"allowInactiveSession,omitempty"`
}

type CreateDrinkIssueResponse struct {
	Issue DrinkIssue `json:"issue"`
}

type CreateSessionRequest struct {
	SessionTypeID    int64  `json:"sessionTypeId"`
	BusinessDate     string `json:"businessDate"`
	VenueID          *int64 `json:"venueId,omitempty"`
	Name             string `json:"name,omitempty"`
	TimeLimitMinutes *int64 `json:"timeLimitMinutes,omitempty"`
	// Launch creates the session directly into the active state.
	Launch bool `json:"launch,omitempty"`
}

type ReconciliationCount struct {
	IngredientID int64   `json:"ingredientId"`
	CountedStock float64 `json:"countedStock"`
}

type CloseSessionRequest struct {
	Reconciliation []ReconciliationCount `json:"reconciliation,omitempty"`
}

type ReconciliationCorrection struct {
	IngredientID  int64   `json:"ingredientId"`
	QuantityDelta float64 `json:"quantityDelta"`
}

type CloseSessionResponse struct {
	Reconciliation []ReconciliationCorrection `json:"reconciliation"`
}

type BootstrapRequest struct {
	BusinessDate      string `json:"businessDate"`
	SessionLimit      int    `json:"sessionLimit,omitempty"`
	DeliveryLimit     int    `json:"deliveryLimit,omitempty"`
	SessionIssueLimit int    `json:"sessionIssueLimit,omitempty"`
}

// Bootstrap is the consolidated snapshot the client loads on startup and
// after push-triggered refreshes.
type Bootstrap struct {
	Ingredients      []Ingredient         `json:"ingredients"`
	Categories       []IngredientCategory `json:"categories"`
	Variants         []IngredientVariant  `json:"variants"`
	Recipes          []Recipe             `json:"recipes"`
	Sessions         []Session            `json:"sessions"`
	JoinableSessions []Session            `json:"joinableSessions"`
	SessionTypes     []SessionType        `json:"sessionTypes"`
	Venues           []Venue              `json:"venues"`
	Deliveries       []Delivery           `json:"deliveries"`
	SessionIssues    []DrinkIssue         `json:"sessionIssues"`
}

/* ---------------- push events ---------------- */

const (
	EventDrinkIssueCreated = "drink_issue_created"
	EventDrinkIssueDeleted = "drink_issue_deleted"
)
