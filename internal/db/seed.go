package db

import (
	"database/sql"
	"fmt"
)

type seedIngredient struct {
	Name          string
	Category      string
	BaseUnit      string
	Stock         float64
	Par           float64
	Reorder       float64
	Cost          float64
	IsCup         bool
	IsIce         bool
	CupType       string
	CupCapacityML *float64
}

type seedLine struct {
	Kind            string
	Ingredient      string // fixed_ingredient
	Category        string // category_selector
	Quantity        *float64
	IsOptional      bool
	AffectsStrength bool
	IsTopUp         bool
}

type seedRecipe struct {
	Name        string
	DrinkType   string
	Cup         string
	HasIce      bool
	IceCubes    float64
	AskStrength bool
	Lines       []seedLine
}

func fp(v float64) *float64 { return &v }

// SeedCatalog loads a starter catalog so a fresh install has something to
// pour. Never touches staff, sessions or the movement ledger.
func SeedCatalog(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	categories := []string{"Basics", "Cups", "Spirits", "Mixers", "Juice", "Beer", "Soft Drinks"}

	ingredients := []seedIngredient{
		{Name: "Ice Cubes", Category: "Basics", BaseUnit: "unit", Stock: 2000, Par: 3000, Reorder: 500, IsIce: true},
		{Name: "Cup 350ml", Category: "Cups", BaseUnit: "unit", Stock: 400, Par: 500, Reorder: 100, Cost: 0.08, IsCup: true, CupType: "disposable", CupCapacityML: fp(350)},
		{Name: "Glass 250ml", Category: "Cups", BaseUnit: "unit", Stock: 120, Par: 150, Reorder: 30, IsCup: true, CupType: "reusable", CupCapacityML: fp(250)},
		{Name: "Gin", Category: "Spirits", BaseUnit: "ml", Stock: 5000, Par: 7000, Reorder: 1500, Cost: 0.025},
		{Name: "Vodka", Category: "Spirits", BaseUnit: "ml", Stock: 5000, Par: 7000, Reorder: 1500, Cost: 0.022},
		{Name: "White Rum", Category: "Spirits", BaseUnit: "ml", Stock: 3500, Par: 5000, Reorder: 1000, Cost: 0.024},
		{Name: "Tonic Water", Category: "Mixers", BaseUnit: "ml", Stock: 12000, Par: 15000, Reorder: 3000, Cost: 0.003},
		{Name: "Soda Water", Category: "Mixers", BaseUnit: "ml", Stock: 12000, Par: 15000, Reorder: 3000, Cost: 0.002},
		{Name: "Cola", Category: "Soft Drinks", BaseUnit: "ml", Stock: 15000, Par: 20000, Reorder: 4000, Cost: 0.002},
		{Name: "Orange Juice", Category: "Juice", BaseUnit: "ml", Stock: 8000, Par: 10000, Reorder: 2000, Cost: 0.004},
		{Name: "Lager", Category: "Beer", BaseUnit: "ml", Stock: 20000, Par: 30000, Reorder: 5000, Cost: 0.005},
	}

	recipes := []seedRecipe{
		{
			Name: "Gin & Tonic", DrinkType: "classic", Cup: "Cup 350ml",
			HasIce: true, IceCubes: 3, AskStrength: true,
			Lines: []seedLine{
				{Kind: "fixed_ingredient", Ingredient: "Gin", Quantity: fp(40), AffectsStrength: true},
				{Kind: "fixed_ingredient", Ingredient: "Tonic Water", Quantity: fp(150)},
			},
		},
		{
			Name: "Mixed Spirit & Soft", DrinkType: "cocktail", Cup: "Cup 350ml",
			HasIce: true, IceCubes: 3, AskStrength: true,
			Lines: []seedLine{
				{Kind: "category_selector", Category: "Spirits", Quantity: fp(40), AffectsStrength: true},
				{Kind: "category_selector", Category: "Soft Drinks", IsTopUp: true},
			},
		},
		{
			Name: "Draft Lager", DrinkType: "beer", Cup: "Glass 250ml",
			Lines: []seedLine{
				{Kind: "fixed_ingredient", Ingredient: "Lager", IsTopUp: false, Quantity: fp(250)},
			},
		},
	}

	catIDs := map[string]int64{}
	for i, name := range categories {
		res, err := tx.Exec(`
			INSERT INTO ingredient_categories(name,sort_order,created_at,updated_at)
			VALUES(?,?,?,?)`, name, i, unixNow(), unixNow())
		if err != nil {
			return fmt.Errorf("seed category %q: %w", name, err)
		}
		id, _ := res.LastInsertId()
		catIDs[name] = id
	}

	ingIDs := map[string]int64{}
	for _, ing := range ingredients {
		var cupType any
		if ing.CupType != "" {
			cupType = ing.CupType
		}
		res, err := tx.Exec(`
			INSERT INTO ingredients(name,category_id,base_unit,current_stock,par_level,reorder_level,cost_per_unit,is_cup,is_ice,cup_type,cup_capacity_ml,created_at,updated_at)
			VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			ing.Name, catIDs[ing.Category], ing.BaseUnit, ing.Stock, ing.Par, ing.Reorder, ing.Cost,
			b2i(ing.IsCup), b2i(ing.IsIce), cupType, ing.CupCapacityML, unixNow(), unixNow())
		if err != nil {
			return fmt.Errorf("seed ingredient %q: %w", ing.Name, err)
		}
		id, _ := res.LastInsertId()
		ingIDs[ing.Name] = id
	}

	// One purchasable SKU per ml ingredient so deliveries work out of the box.
	variants := map[string]float64{
		"Gin": 700, "Vodka": 700, "White Rum": 700,
		"Tonic Water": 1000, "Soda Water": 1000, "Cola": 1500,
		"Orange Juice": 1000, "Lager": 30000,
	}
	for name, baseQty := range variants {
		if _, err := tx.Exec(`
			INSERT INTO ingredient_variants(ingredient_id,name,brand,package_label,base_quantity,is_active,created_at,updated_at)
			VALUES(?,?,?,?,?,1,?,?)`,
			ingIDs[name], name+" bottle", "", fmt.Sprintf("%.0f ml", baseQty), baseQty, unixNow(), unixNow()); err != nil {
			return fmt.Errorf("seed variant %q: %w", name, err)
		}
	}

	for _, r := range recipes {
		var cupID any
		if r.Cup != "" {
			cupID = ingIDs[r.Cup]
		}
		res, err := tx.Exec(`
			INSERT INTO recipes(name,drink_type,cup_ingredient_id,has_ice,ice_cubes,ask_strength,label_mode,created_at,updated_at)
			VALUES(?,?,?,?,?,?,?,?,?)`,
			r.Name, r.DrinkType, cupID, b2i(r.HasIce), r.IceCubes, b2i(r.AskStrength), "", unixNow(), unixNow())
		if err != nil {
			return fmt.Errorf("seed recipe %q: %w", r.Name, err)
		}
		rid, _ := res.LastInsertId()

		for i, ln := range r.Lines {
			var ingID, catID any
			if ln.Ingredient != "" {
				ingID = ingIDs[ln.Ingredient]
			}
			if ln.Category != "" {
				catID = catIDs[ln.Category]
			}
			if _, err := tx.Exec(`
				INSERT INTO recipe_lines(recipe_id,position,kind,ingredient_id,category_id,quantity,is_optional,affects_strength,is_top_up)
				VALUES(?,?,?,?,?,?,?,?,?)`,
				rid, i, ln.Kind, ingID, catID, ln.Quantity,
				b2i(ln.IsOptional), b2i(ln.AffectsStrength), b2i(ln.IsTopUp)); err != nil {
				return fmt.Errorf("seed recipe line %q/%d: %w", r.Name, i, err)
			}
		}
	}

	sessionTypes := map[string]int64{
		"Evening service": 240,
		"Private event":   180,
		"Tasting":         90,
	}
	for name, mins := range sessionTypes {
		if _, err := tx.Exec(`
			INSERT INTO session_types(name,default_time_limit_minutes,created_at,updated_at)
			VALUES(?,?,?,?)`, name, mins, unixNow(), unixNow()); err != nil {
			return fmt.Errorf("seed session type %q: %w", name, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO venues(name,created_at) VALUES('Main bar',?)`, unixNow()); err != nil {
		return err
	}

	return tx.Commit()
}
