package db

import (
	"database/sql"
	"time"

	"openbar-go/internal/api"
)

type Queries struct {
	db *sql.DB
}

func unixNow() int64 { return time.Now().Unix() }
func b2i(b bool) int { if b { return 1 }; return 0 }
func i2b(i int) bool { return i != 0 }

func tFromUnix(u int64) time.Time {
	if u <= 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func tPtrFromNull(n sql.NullInt64) *time.Time {
	if !n.Valid || n.Int64 <= 0 {
		return nil
	}
	t := time.Unix(n.Int64, 0)
	return &t
}

func nullFromTPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func ptrFromNullI64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func ptrFromNullF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

/* ---------------- Staff ---------------- */

func (q *Queries) HasAnyManager() (bool, error) {
	row := q.db.QueryRow(`SELECT COUNT(1) FROM staff WHERE role='MANAGER'`)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (q *Queries) GetStaffByID(id int64) (*Staff, error) {
	row := q.db.QueryRow(`
		SELECT id,name,role,pin_hash,is_active,created_at,updated_at
		FROM staff WHERE id=?`, id)
	var s Staff
	var isActive int
	var ca, ua int64
	if err := row.Scan(&s.ID, &s.Name, &s.Role, &s.PinHash, &isActive, &ca, &ua); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	s.IsActive = i2b(isActive)
	s.CreatedAt = tFromUnix(ca)
	s.UpdatedAt = tFromUnix(ua)
	return &s, nil
}

func (q *Queries) CreateStaff(p CreateStaffParams) (int64, error) {
	res, err := q.db.Exec(`
		INSERT INTO staff(name,role,pin_hash,is_active,created_at,updated_at)
		VALUES(?,?,?,?,?,?)`,
		p.Name, p.Role, p.PinHash, b2i(p.IsActive), unixNow(), unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

/* ---------------- Categories ---------------- */

func (q *Queries) ListCategories() ([]api.IngredientCategory, error) {
	rows, err := q.db.Query(`
		SELECT id,name,sort_order FROM ingredient_categories ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.IngredientCategory
	for rows.Next() {
		var c api.IngredientCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) CreateCategory(p CreateCategoryParams) (int64, error) {
	res, err := q.db.Exec(`
		INSERT INTO ingredient_categories(name,sort_order,created_at,updated_at)
		VALUES(?,?,?,?)`, p.Name, p.SortOrder, unixNow(), unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateCategory(p UpdateCategoryParams) error {
	_, err := q.db.Exec(`
		UPDATE ingredient_categories SET name=?, sort_order=?, updated_at=? WHERE id=?`,
		p.Name, p.SortOrder, unixNow(), p.ID)
	return err
}

/* ---------------- Ingredients ---------------- */

const ingredientCols = `id,name,category_id,base_unit,current_stock,par_level,reorder_level,cost_per_unit,is_cup,is_ice,COALESCE(cup_type,''),cup_capacity_ml`

func scanIngredient(row interface{ Scan(...any) error }) (*api.Ingredient, error) {
	var ing api.Ingredient
	var isCup, isIce int
	var cupType string
	var capML sql.NullFloat64
	if err := row.Scan(&ing.ID, &ing.Name, &ing.CategoryID, &ing.BaseUnit, &ing.CurrentStock,
		&ing.ParLevel, &ing.ReorderLevel, &ing.CostPerUnit, &isCup, &isIce, &cupType, &capML); err != nil {
		return nil, err
	}
	ing.IsCup = i2b(isCup)
	ing.IsIce = i2b(isIce)
	ing.CupType = api.CupType(cupType)
	ing.CupCapacityML = ptrFromNullF64(capML)
	return &ing, nil
}

func (q *Queries) GetIngredientByID(id int64) (*api.Ingredient, error) {
	row := q.db.QueryRow(`SELECT `+ingredientCols+` FROM ingredients WHERE id=?`, id)
	ing, err := scanIngredient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ing, err
}

func (q *Queries) ListIngredients() ([]api.Ingredient, error) {
	rows, err := q.db.Query(`SELECT ` + ingredientCols + ` FROM ingredients ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Ingredient
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ing)
	}
	return out, rows.Err()
}

// FindIceIngredient returns the ice bucket ingredient, or nil if the venue
// does not track ice stock.
func (q *Queries) FindIceIngredient() (*api.Ingredient, error) {
	row := q.db.QueryRow(`SELECT ` + ingredientCols + ` FROM ingredients WHERE is_ice=1 ORDER BY id LIMIT 1`)
	ing, err := scanIngredient(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ing, err
}

func (q *Queries) CreateIngredient(p CreateIngredientParams) (int64, error) {
	var cupType any
	if p.CupType != "" {
		cupType = p.CupType
	}
	res, err := q.db.Exec(`
		INSERT INTO ingredients(name,category_id,base_unit,current_stock,par_level,reorder_level,cost_per_unit,is_cup,is_ice,cup_type,cup_capacity_ml,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.Name, p.CategoryID, p.BaseUnit, p.CurrentStock, p.ParLevel, p.ReorderLevel, p.CostPerUnit,
		b2i(p.IsCup), b2i(p.IsIce), cupType, p.CupCapacityML, unixNow(), unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateIngredient(p UpdateIngredientParams) error {
	var cupType any
	if p.CupType != "" {
		cupType = p.CupType
	}
	_, err := q.db.Exec(`
		UPDATE ingredients
		SET name=?, category_id=?, base_unit=?, par_level=?, reorder_level=?, is_cup=?, is_ice=?, cup_type=?, cup_capacity_ml=?, updated_at=?
		WHERE id=?`,
		p.Name, p.CategoryID, p.BaseUnit, p.ParLevel, p.ReorderLevel,
		b2i(p.IsCup), b2i(p.IsIce), cupType, p.CupCapacityML, unixNow(), p.ID)
	return err
}

/* ---------------- Variants ---------------- */

func (q *Queries) GetVariantByID(id int64) (*api.IngredientVariant, error) {
	row := q.db.QueryRow(`
		SELECT id,ingredient_id,name,brand,package_label,base_quantity,is_active
		FROM ingredient_variants WHERE id=?`, id)
	var v api.IngredientVariant
	var active int
	if err := row.Scan(&v.ID, &v.IngredientID, &v.Name, &v.Brand, &v.PackageLabel, &v.BaseQuantity, &active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	v.IsActive = i2b(active)
	return &v, nil
}

func (q *Queries) ListVariants() ([]api.IngredientVariant, error) {
	rows, err := q.db.Query(`
		SELECT id,ingredient_id,name,brand,package_label,base_quantity,is_active
		FROM ingredient_variants ORDER BY ingredient_id, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.IngredientVariant
	for rows.Next() {
		var v api.IngredientVariant
		var active int
		if err := rows.Scan(&v.ID, &v.IngredientID, &v.Name, &v.Brand, &v.PackageLabel, &v.BaseQuantity, &active); err != nil {
			return nil, err
		}
		v.IsActive = i2b(active)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (q *Queries) CreateVariant(p CreateVariantParams) (int64, error) {
	res, err := q.db.Exec(`
		INSERT INTO ingredient_variants(ingredient_id,name,brand,package_label,base_quantity,is_active,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		p.IngredientID, p.Name, p.Brand, p.PackageLabel, p.BaseQuantity, b2i(p.IsActive), unixNow(), unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateVariant(p UpdateVariantParams) error {
	_, err := q.db.Exec(`
		UPDATE ingredient_variants
		SET name=?, brand=?, package_label=?, base_quantity=?, is_active=?, updated_at=?
		WHERE id=?`,
		p.Name, p.Brand, p.PackageLabel, p.BaseQuantity, b2i(p.IsActive), unixNow(), p.ID)
	return err
}

/* ---------------- Recipes ---------------- */

func (q *Queries) GetRecipeByID(id int64) (*api.Recipe, error) {
	row := q.db.QueryRow(`
		SELECT id,name,drink_type,cup_ingredient_id,has_ice,ice_cubes,ask_strength,COALESCE(label_mode,'')
		FROM recipes WHERE id=?`, id)
	var r api.Recipe
	var cupID sql.NullInt64
	var hasIce, askStrength int
	if err := row.Scan(&r.ID, &r.Name, &r.DrinkType, &cupID, &hasIce, &r.IceCubes, &askStrength, &r.LabelMode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	r.CupIngredientID = ptrFromNullI64(cupID)
	r.HasIce = i2b(hasIce)
	r.AskStrength = i2b(askStrength)

	lines, err := q.getRecipeLines(r.ID)
	if err != nil {
		return nil, err
	}
	r.Lines = lines
	return &r, nil
}

func (q *Queries) ListRecipes() ([]api.Recipe, error) {
	rows, err := q.db.Query(`
		SELECT id,name,drink_type,cup_ingredient_id,has_ice,ice_cubes,ask_strength,COALESCE(label_mode,'')
		FROM recipes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Recipe
	for rows.Next() {
		var r api.Recipe
		var cupID sql.NullInt64
		var hasIce, askStrength int
		if err := rows.Scan(&r.ID, &r.Name, &r.DrinkType, &cupID, &hasIce, &r.IceCubes, &askStrength, &r.LabelMode); err != nil {
			return nil, err
		}
		r.CupIngredientID = ptrFromNullI64(cupID)
		r.HasIce = i2b(hasIce)
		r.AskStrength = i2b(askStrength)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		lines, err := q.getRecipeLines(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Lines = lines
	}
	return out, nil
}

func (q *Queries) getRecipeLines(recipeID int64) ([]api.RecipeLine, error) {
	rows, err := q.db.Query(`
		SELECT id,kind,ingredient_id,category_id,quantity,is_optional,affects_strength,is_top_up
		FROM recipe_lines WHERE recipe_id=? ORDER BY position, id`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.RecipeLine
	for rows.Next() {
		var ln api.RecipeLine
		var ingID, catID sql.NullInt64
		var qty sql.NullFloat64
		var opt, str, top int
		if err := rows.Scan(&ln.ID, &ln.Kind, &ingID, &catID, &qty, &opt, &str, &top); err != nil {
			return nil, err
		}
		if ingID.Valid {
			ln.IngredientID = ingID.Int64
		}
		if catID.Valid {
			ln.CategoryID = catID.Int64
		}
		ln.Quantity = ptrFromNullF64(qty)
		ln.IsOptional = i2b(opt)
		ln.AffectsStrength = i2b(str)
		ln.IsTopUp = i2b(top)
		out = append(out, ln)
	}
	return out, rows.Err()
}

func (q *Queries) CreateRecipe(p CreateRecipeParams) (int64, error) {
	res, err := q.db.Exec(`
		INSERT INTO recipes(name,drink_type,cup_ingredient_id,has_ice,ice_cubes,ask_strength,label_mode,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		p.Name, p.DrinkType, p.CupIngredientID, b2i(p.HasIce), p.IceCubes, b2i(p.AskStrength), p.LabelMode, unixNow(), unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateRecipe(p UpdateRecipeParams) error {
	_, err := q.db.Exec(`
		UPDATE recipes
		SET name=?, drink_type=?, cup_ingredient_id=?, has_ice=?, ice_cubes=?, ask_strength=?, label_mode=?, updated_at=?
		WHERE id=?`,
		p.Name, p.DrinkType, p.CupIngredientID, b2i(p.HasIce), p.IceCubes, b2i(p.AskStrength), p.LabelMode, unixNow(), p.ID)
	return err
}

func (q *Queries) ReplaceRecipeLines(recipeID int64, items []RecipeLineUpsertItem) error {
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM recipe_lines WHERE recipe_id=?`, recipeID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for i, it := range items {
		if _, err := tx.Exec(`
			INSERT INTO recipe_lines(recipe_id,position,kind,ingredient_id,category_id,quantity,is_optional,affects_strength,is_top_up)
			VALUES(?,?,?,?,?,?,?,?,?)`,
			recipeID, i, it.Kind, it.IngredientID, it.CategoryID, it.Quantity,
			b2i(it.IsOptional), b2i(it.AffectsStrength), b2i(it.IsTopUp)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
