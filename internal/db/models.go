package db

import "time"

// Read models are the shared api types; this file keeps the store-only
// records and the parameter structs.

type Staff struct {
	ID        int64
	Name      string
	Role      string
	PinHash   string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

/* ---------- parameter structs ---------- */

type CreateStaffParams struct {
	Name     string
	Role     string
	PinHash  string
	IsActive bool
}

type CreateCategoryParams struct {
	Name      string
	SortOrder int64
}

type UpdateCategoryParams struct {
	ID        int64
	Name      string
	SortOrder int64
}

type CreateIngredientParams struct {
	Name          string
	CategoryID    int64
	BaseUnit      string
	CurrentStock  float64
	ParLevel      float64
	ReorderLevel  float64
	CostPerUnit   float64
	IsCup         bool
	IsIce         bool
	CupType       string
	CupCapacityML *float64
}

type UpdateIngredientParams struct {
	ID            int64
	Name          string
	CategoryID    int64
	BaseUnit      string
	ParLevel      float64
	ReorderLevel  float64
	IsCup         bool
	IsIce         bool
	CupType       string
	CupCapacityML *float64
}

type CreateVariantParams struct {
	IngredientID int64
	Name         string
	Brand        string
	PackageLabel string
	BaseQuantity float64
	IsActive     bool
}

type UpdateVariantParams struct {
	ID           int64
	Name         string
	Brand        string
	PackageLabel string
	BaseQuantity float64
	IsActive     bool
}

type CreateRecipeParams struct {
	Name            string
	DrinkType       string
	CupIngredientID *int64
	HasIce          bool
	IceCubes        float64
	AskStrength     bool
	LabelMode       string
}

type UpdateRecipeParams struct {
	ID              int64
	Name            string
	DrinkType       string
	CupIngredientID *int64
	HasIce          bool
	IceCubes        float64
	AskStrength     bool
	LabelMode       string
}

type RecipeLineUpsertItem struct {
	Kind            string
	IngredientID    *int64
	CategoryID      *int64
	Quantity        *float64
	IsOptional      bool
	AffectsStrength bool
	IsTopUp         bool
}

type CreateSessionTypeParams struct {
	Name                    string
	DefaultTimeLimitMinutes int64
}

type CreateSessionParams struct {
	Name             string
	BusinessDate     string
	VenueID          *int64
	SessionTypeID    int64
	Status           string
	CreatedBy        int64
	TimeLimitMinutes int64
	OpenedAt         *time.Time
	ExpectedEndAt    *time.Time
}

type CreateDeliveryParams struct {
	SupplierName string
	InvoiceRef   string
	DeliveredAt  time.Time
	Notes        string
}

type CreateDeliveryItemParams struct {
	DeliveryID       int64
	VariantID        int64
	PurchaseUnits    float64
	PurchaseUnitCost *float64
	BaseQuantity     float64
}

type CreateIssueParams struct {
	SessionID    int64
	RecipeID     int64
	Servings     int64
	Strength     string
	IncludeIce   *bool
	IsStaffDrink bool
	IssuedBy     int64
	IssuedAt     time.Time
	Notes        string
}

type CreateMovementParams struct {
	IngredientID  int64
	MovementType  string
	QuantityDelta float64
	IssueID       *int64
	DeliveryID    *int64
	SessionID     *int64
	Note          string
}
