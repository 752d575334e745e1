package db

import "database/sql"

func Migrate(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,

		`CREATE TABLE IF NOT EXISTS staff (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL CHECK(role IN ('BARTENDER','MANAGER')),
			pin_hash TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);`,

		`CREATE TABLE IF NOT EXISTS ingredient_categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			sort_order INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);`,

		`CREATE TABLE IF NOT EXISTS ingredients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			category_id INTEGER NOT NULL,
			base_unit TEXT NOT NULL CHECK(base_unit IN ('ml','unit')),
			current_stock REAL NOT NULL DEFAULT 0,
			par_level REAL NOT NULL DEFAULT 0,
			reorder_level REAL NOT NULL DEFAULT 0,
			cost_per_unit REAL NOT NULL DEFAULT 0,
			is_cup INTEGER NOT NULL DEFAULT 0,
			is_ice INTEGER NOT NULL DEFAULT 0,
			cup_type TEXT NULL CHECK(cup_type IN ('disposable','reusable')),
			cup_capacity_ml REAL NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			CHECK (is_cup = 0 OR is_ice = 0),
			FOREIGN KEY(category_id) REFERENCES ingredient_categories(id) ON DELETE RESTRICT
		);`,

		`CREATE TABLE IF NOT EXISTS ingredient_variants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ingredient_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			brand TEXT NOT NULL DEFAULT '',
			package_label TEXT NOT NULL DEFAULT '',
			base_quantity REAL NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			FOREIGN KEY(ingredient_id) REFERENCES ingredients(id) ON DELETE CASCADE
		);`,

		`CREATE TABLE IF NOT EXISTS recipes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			drink_type TEXT NOT NULL CHECK(drink_type IN ('classic','cocktail','beer','soft','custom')),
			cup_ingredient_id INTEGER NULL,
			has_ice INTEGER NOT NULL DEFAULT 0,
			ice_cubes REAL NOT NULL DEFAULT 3,
			ask_strength INTEGER NOT NULL DEFAULT 0,
			label_mode TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			FOREIGN KEY(cup_ingredient_id) REFERENCES ingredients(id) ON DELETE SET NULL
		);`,

		`CREATE TABLE IF NOT EXISTS recipe_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recipe_id INTEGER NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			kind TEXT NOT NULL CHECK(kind IN ('fixed_ingredient','category_selector')),
			ingredient_id INTEGER NULL,
			category_id INTEGER NULL,
			quantity REAL NULL,
			is_optional INTEGER NOT NULL DEFAULT 0,
			affects_strength INTEGER NOT NULL DEFAULT 0,
			is_top_up INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE CASCADE,
			FOREIGN KEY(ingredient_id) REFERENCES ingredients(id) ON DELETE RESTRICT,
			FOREIGN KEY(category_id) REFERENCES ingredient_categories(id) ON DELETE RESTRICT
		);`,

		`CREATE TABLE IF NOT EXISTS venues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);`,

		`CREATE TABLE IF NOT EXISTS session_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			default_time_limit_minutes INTEGER NOT NULL DEFAULT 120,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			business_date TEXT NOT NULL,
			venue_id INTEGER NULL,
			session_type_id INTEGER NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('draft','active','closed')),
			created_by INTEGER NOT NULL,
			time_limit_minutes INTEGER NOT NULL,
			opened_at INTEGER NULL,
			expected_end_at INTEGER NULL,
			closed_at INTEGER NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			FOREIGN KEY(venue_id) REFERENCES venues(id) ON DELETE SET NULL,
			FOREIGN KEY(session_type_id) REFERENCES session_types(id) ON DELETE RESTRICT,
			FOREIGN KEY(created_by) REFERENCES staff(id) ON DELETE RESTRICT
		);`,

		`CREATE TABLE IF NOT EXISTS session_participants (
			session_id INTEGER NOT NULL,
			staff_id INTEGER NOT NULL,
			joined_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			PRIMARY KEY(session_id, staff_id),
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			FOREIGN KEY(staff_id) REFERENCES staff(id) ON DELETE CASCADE
		);`,

		`CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			supplier_name TEXT NOT NULL DEFAULT '',
			invoice_ref TEXT NOT NULL DEFAULT '',
			delivered_at INTEGER NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		);`,

		`CREATE TABLE IF NOT EXISTS delivery_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			delivery_id INTEGER NOT NULL,
			variant_id INTEGER NOT NULL,
			purchase_units REAL NOT NULL,
			purchase_unit_cost REAL NULL,
			base_quantity REAL NOT NULL,
			FOREIGN KEY(delivery_id) REFERENCES deliveries(id) ON DELETE CASCADE,
			FOREIGN KEY(variant_id) REFERENCES ingredient_variants(id) ON DELETE RESTRICT
		);`,

		`CREATE TABLE IF NOT EXISTS drink_issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			recipe_id INTEGER NOT NULL,
			servings INTEGER NOT NULL DEFAULT 1,
			strength TEXT NOT NULL DEFAULT '',
			include_ice INTEGER NULL,
			is_staff_drink INTEGER NOT NULL DEFAULT 0,
			issued_by INTEGER NOT NULL,
			issued_at INTEGER NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE,
			FOREIGN KEY(recipe_id) REFERENCES recipes(id) ON DELETE RESTRICT,
			FOREIGN KEY(issued_by) REFERENCES staff(id) ON DELETE RESTRICT
		);`,

		`CREATE TABLE IF NOT EXISTS drink_issue_selections (
			issue_id INTEGER NOT NULL,
			line_id INTEGER NOT NULL,
			ingredient_id INTEGER NOT NULL,
			PRIMARY KEY(issue_id, line_id),
			FOREIGN KEY(issue_id) REFERENCES drink_issues(id) ON DELETE CASCADE,
			FOREIGN KEY(line_id) REFERENCES recipe_lines(id) ON DELETE CASCADE,
			FOREIGN KEY(ingredient_id) REFERENCES ingredients(id) ON DELETE RESTRICT
		);`,

		`CREATE TABLE IF NOT EXISTS inventory_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ingredient_id INTEGER NOT NULL,
			movement_type TEXT NOT NULL CHECK(movement_type IN
				('delivery','adjustment','waste','correction','drink_issue','drink_issue_reversal')),
			quantity_delta REAL NOT NULL,
			issue_id INTEGER NULL,
			delivery_id INTEGER NULL,
			session_id INTEGER NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			FOREIGN KEY(ingredient_id) REFERENCES ingredients(id) ON DELETE CASCADE,
			FOREIGN KEY(issue_id) REFERENCES drink_issues(id) ON DELETE SET NULL,
			FOREIGN KEY(delivery_id) REFERENCES deliveries(id) ON DELETE SET NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);`,

		`CREATE INDEX IF NOT EXISTS idx_ingredients_category ON ingredients(category_id);`,
		`CREATE INDEX IF NOT EXISTS idx_variants_ingredient ON ingredient_variants(ingredient_id);`,
		`CREATE INDEX IF NOT EXISTS idx_recipe_lines_recipe ON recipe_lines(recipe_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_date_status ON sessions(business_date, status);`,
		`CREATE INDEX IF NOT EXISTS idx_issues_session ON drink_issues(session_id, issued_at);`,
		`CREATE INDEX IF NOT EXISTS idx_movements_ingredient ON inventory_movements(ingredient_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_movements_issue ON inventory_movements(issue_id);`,
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
