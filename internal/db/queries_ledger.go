package db

import (
	"database/sql"
	"time"

	"openbar-go/internal/api"
)

/* ---------------- Venues & session types ---------------- */

func (q *Queries) CreateVenue(name string) (int64, error) {
	res, err := q.db.Exec(`INSERT INTO venues(name,created_at) VALUES(?,?)`, name, unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) ListVenues() ([]api.Venue, error) {
	rows, err := q.db.Query(`SELECT id,name FROM venues ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Venue
	for rows.Next() {
		var v api.Venue
		if err := rows.Scan(&v.ID, &v.Name); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (q *Queries) CreateSessionType(p CreateSessionTypeParams) (int64, error) {
	res, err := q.db.Exec(`
		INSERT INTO session_types(name,default_time_limit_minutes,created_at,updated_at)
		VALUES(?,?,?,?)`, p.Name, p.DefaultTimeLimitMinutes, unixNow(), unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) GetSessionTypeByID(id int64) (*api.SessionType, error) {
	row := q.db.QueryRow(`SELECT id,name,default_time_limit_minutes FROM session_types WHERE id=?`, id)
	var st api.SessionType
	if err := row.Scan(&st.ID, &st.Name, &st.DefaultTimeLimitMinutes); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &st, nil
}

func (q *Queries) ListSessionTypes() ([]api.SessionType, error) {
	rows, err := q.db.Query(`SELECT id,name,default_time_limit_minutes FROM session_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.SessionType
	for rows.Next() {
		var st api.SessionType
		if err := rows.Scan(&st.ID, &st.Name, &st.DefaultTimeLimitMinutes); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

/* ---------------- Sessions ---------------- */

const sessionCols = `id,name,business_date,venue_id,session_type_id,status,created_by,time_limit_minutes,opened_at,expected_end_at,closed_at`

func scanSession(row interface{ Scan(...any) error }) (*api.Session, error) {
	var s api.Session
	var venueID sql.NullInt64
	var openedAt, expectedEnd, closedAt sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.BusinessDate, &venueID, &s.SessionTypeID, &s.Status,
		&s.CreatedBy, &s.TimeLimitMinutes, &openedAt, &expectedEnd, &closedAt); err != nil {
		return nil, err
	}
	s.VenueID = ptrFromNullI64(venueID)
	s.OpenedAt = tPtrFromNull(openedAt)
	s.ExpectedEndAt = tPtrFromNull(expectedEnd)
	s.ClosedAt = tPtrFromNull(closedAt)
	return &s, nil
}

func (q *Queries) GetSessionByID(id int64) (*api.Session, error) {
	row := q.db.QueryRow(`SELECT `+sessionCols+` FROM sessions WHERE id=?`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (q *Queries) CreateSession(p CreateSessionParams) (int64, error) {
	res, err := q.db.Exec(`
		INSERT INTO sessions(name,business_date,venue_id,session_type_id,status,created_by,time_limit_minutes,opened_at,expected_end_at,closed_at,created_at,updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,NULL,?,?)`,
		p.Name, p.BusinessDate, p.VenueID, p.SessionTypeID, p.Status, p.CreatedBy, p.TimeLimitMinutes,
		nullFromTPtr(p.OpenedAt), nullFromTPtr(p.ExpectedEndAt), unixNow(), unixNow())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) StartSession(id int64, openedAt, expectedEndAt time.Time) error {
	_, err := q.db.Exec(`
		UPDATE sessions SET status='active', opened_at=?, expected_end_at=?, updated_at=? WHERE id=?`,
		openedAt.Unix(), expectedEndAt.Unix(), unixNow(), id)
	return err
}

func (q *Queries) DeleteSession(id int64) error {
	// issues, selections, participants and movements cascade via FK
	_, err := q.db.Exec(`DELETE FROM sessions WHERE id=?`, id)
	return err
}

func (q *Queries) AddParticipant(sessionID, staffID int64) error {
	_, err := q.db.Exec(`
		INSERT OR IGNORE INTO session_participants(session_id,staff_id,joined_at) VALUES(?,?,?)`,
		sessionID, staffID, unixNow())
	return err
}

func (q *Queries) RemoveParticipant(sessionID, staffID int64) error {
	_, err := q.db.Exec(`DELETE FROM session_participants WHERE session_id=? AND staff_id=?`, sessionID, staffID)
	return err
}

func (q *Queries) IsParticipant(sessionID, staffID int64) (bool, error) {
	row := q.db.QueryRow(`SELECT COUNT(1) FROM session_participants WHERE session_id=? AND staff_id=?`, sessionID, staffID)
	var n int
	if err := row.Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSessionsForStaff returns sessions on the business date that the actor
// created or has joined, newest first.
func (q *Queries) ListSessionsForStaff(businessDate string, staffID int64, limit int) ([]api.Session, error) {
	rows, err := q.db.Query(`
		SELECT `+sessionCols+` FROM sessions s
		WHERE s.business_date=?
		  AND (s.created_by=? OR EXISTS (
			SELECT 1 FROM session_participants sp WHERE sp.session_id=s.id AND sp.staff_id=?))
		ORDER BY s.created_at DESC
		LIMIT ?`, businessDate, staffID, staffID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListJoinableSessions returns active sessions on the business date created
// by someone else that the actor has not yet joined.
func (q *Queries) ListJoinableSessions(businessDate string, staffID int64) ([]api.Session, error) {
	rows, err := q.db.Query(`
		SELECT `+sessionCols+` FROM sessions s
		WHERE s.business_date=? AND s.status='active' AND s.created_by<>?
		  AND NOT EXISTS (
			SELECT 1 FROM session_participants sp WHERE sp.session_id=s.id AND sp.staff_id=?)
		ORDER BY s.created_at DESC`, businessDate, staffID, staffID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]api.Session, error) {
	var out []api.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CloseSessionTx closes the session and posts the reconciliation correction
// movements in one transaction; each correction also lands the ingredient's
// stock on the counted value.
func (q *Queries) CloseSessionTx(sessionID int64, closedAt time.Time, corrections []CreateMovementParams) error {
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE sessions SET status='closed', closed_at=?, updated_at=? WHERE id=?`,
		closedAt.Unix(), unixNow(), sessionID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, m := range corrections {
		if err := applyMovementTx(tx, m); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

/* ---------------- Deliveries ---------------- */

type CostUpdate struct {
	IngredientID int64
	CostPerUnit  float64
}

// CreateDeliveryTx inserts the delivery header and items, posts the
// base-unit stock movements and applies the cost-average updates, all in
// one transaction.
func (q *Queries) CreateDeliveryTx(p CreateDeliveryParams, items []CreateDeliveryItemParams, movements []CreateMovementParams, costs []CostUpdate) (int64, error) {
	tx, err := q.db.Begin()
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`
		INSERT INTO deliveries(supplier_name,invoice_ref,delivered_at,notes,created_at)
		VALUES(?,?,?,?,?)`,
		p.SupplierName, p.InvoiceRef, p.DeliveredAt.Unix(), p.Notes, unixNow())
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	id, _ := res.LastInsertId()

	for _, it := range items {
		if _, err := tx.Exec(`
			INSERT INTO delivery_items(delivery_id,variant_id,purchase_units,purchase_unit_cost,base_quantity)
			VALUES(?,?,?,?,?)`,
			id, it.VariantID, it.PurchaseUnits, it.PurchaseUnitCost, it.BaseQuantity); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	for _, m := range movements {
		m.DeliveryID = &id
		if err := applyMovementTx(tx, m); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	for _, c := range costs {
		if _, err := tx.Exec(`
			UPDATE ingredients SET cost_per_unit=?, updated_at=? WHERE id=?`,
			c.CostPerUnit, unixNow(), c.IngredientID); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	return id, tx.Commit()
}

func (q *Queries) ListDeliveries(limit int) ([]api.Delivery, error) {
	rows, err := q.db.Query(`
		SELECT id,supplier_name,invoice_ref,delivered_at,notes
		FROM deliveries ORDER BY delivered_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.Delivery
	for rows.Next() {
		var d api.Delivery
		var da int64
		if err := rows.Scan(&d.ID, &d.SupplierName, &d.InvoiceRef, &da, &d.Notes); err != nil {
			return nil, err
		}
		d.DeliveredAt = tFromUnix(da)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		items, err := q.listDeliveryItems(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (q *Queries) listDeliveryItems(deliveryID int64) ([]api.DeliveryItem, error) {
	rows, err := q.db.Query(`
		SELECT id,variant_id,purchase_units,purchase_unit_cost,base_quantity
		FROM delivery_items WHERE delivery_id=? ORDER BY id`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.DeliveryItem
	for rows.Next() {
		var it api.DeliveryItem
		var cost sql.NullFloat64
		if err := rows.Scan(&it.ID, &it.VariantID, &it.PurchaseUnits, &cost, &it.BaseQuantity); err != nil {
			return nil, err
		}
		it.PurchaseUnitCost = ptrFromNullF64(cost)
		out = append(out, it)
	}
	return out, rows.Err()
}

/* ---------------- Movements ---------------- */

func applyMovementTx(tx *sql.Tx, p CreateMovementParams) error {
	if _, err := tx.Exec(`
		INSERT INTO inventory_movements(ingredient_id,movement_type,quantity_delta,issue_id,delivery_id,session_id,note,created_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		p.IngredientID, p.MovementType, p.QuantityDelta, p.IssueID, p.DeliveryID, p.SessionID, p.Note, unixNow()); err != nil {
		return err
	}
	_, err := tx.Exec(`
		UPDATE ingredients SET current_stock = current_stock + ?, updated_at=? WHERE id=?`,
		p.QuantityDelta, unixNow(), p.IngredientID)
	return err
}

// ApplyMovement posts one ledger row and moves the materialized stock with
// it, atomically. Returns the new stock level.
func (q *Queries) ApplyMovement(p CreateMovementParams) (float64, error) {
	tx, err := q.db.Begin()
	if err != nil {
		return 0, err
	}
	if err := applyMovementTx(tx, p); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	var stock float64
	if err := tx.QueryRow(`SELECT current_stock FROM ingredients WHERE id=?`, p.IngredientID).Scan(&stock); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return stock, tx.Commit()
}

func (q *Queries) ListMovementsForIssue(issueID int64) ([]api.InventoryMovement, error) {
	rows, err := q.db.Query(`
		SELECT id,ingredient_id,movement_type,quantity_delta,issue_id,delivery_id,session_id,note,created_at
		FROM inventory_movements WHERE issue_id=? ORDER BY id`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.InventoryMovement
	for rows.Next() {
		var m api.InventoryMovement
		var issueID, deliveryID, sessionID sql.NullInt64
		var ca int64
		if err := rows.Scan(&m.ID, &m.IngredientID, &m.MovementType, &m.QuantityDelta,
			&issueID, &deliveryID, &sessionID, &m.Note, &ca); err != nil {
			return nil, err
		}
		m.IssueID = ptrFromNullI64(issueID)
		m.DeliveryID = ptrFromNullI64(deliveryID)
		m.SessionID = ptrFromNullI64(sessionID)
		m.CreatedAt = tFromUnix(ca)
		out = append(out, m)
	}
	return out, rows.Err()
}

/* ---------------- Drink issues ---------------- */

// CreateIssueTx inserts the issue, its category selections and the stock
// deduction movements in one transaction.
func (q *Queries) CreateIssueTx(p CreateIssueParams, selections []api.CategorySelection, movements []CreateMovementParams) (int64, error) {
	tx, err := q.db.Begin()
	if err != nil {
		return 0, err
	}
	var includeIce any
	if p.IncludeIce != nil {
		includeIce = b2i(*p.IncludeIce)
	}
	res, err := tx.Exec(`
		INSERT INTO drink_issues(session_id,recipe_id,servings,strength,include_ice,is_staff_drink,issued_by,issued_at,notes)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		p.SessionID, p.RecipeID, p.Servings, p.Strength, includeIce, b2i(p.IsStaffDrink), p.IssuedBy, p.IssuedAt.Unix(), p.Notes)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	id, _ := res.LastInsertId()

	for _, sel := range selections {
		if _, err := tx.Exec(`
			INSERT INTO drink_issue_selections(issue_id,line_id,ingredient_id)
			VALUES(?,?,?)`, id, sel.LineID, sel.IngredientID); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	for _, m := range movements {
		m.IssueID = &id
		if err := applyMovementTx(tx, m); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	return id, tx.Commit()
}

// DeleteIssueTx posts the reversal movements and removes the issue row in
// one transaction. The original deduction rows survive with a NULL issue
// reference; the ledger stays append-only.
func (q *Queries) DeleteIssueTx(issueID int64, reversals []CreateMovementParams) error {
	tx, err := q.db.Begin()
	if err != nil {
		return err
	}
	for _, m := range reversals {
		m.IssueID = nil
		if err := applyMovementTx(tx, m); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM drink_issues WHERE id=?`, issueID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const issueCols = `id,session_id,recipe_id,servings,COALESCE(strength,''),include_ice,is_staff_drink,issued_by,issued_at,COALESCE(notes,'')`

func scanIssue(row interface{ Scan(...any) error }) (*api.DrinkIssue, error) {
	var di api.DrinkIssue
	var includeIce sql.NullInt64
	var staffDrink int
	var ia int64
	if err := row.Scan(&di.ID, &di.SessionID, &di.RecipeID, &di.Servings, &di.Strength,
		&includeIce, &staffDrink, &di.IssuedBy, &ia, &di.Notes); err != nil {
		return nil, err
	}
	if includeIce.Valid {
		b := includeIce.Int64 != 0
		di.IncludeIce = &b
	}
	di.IsStaffDrink = i2b(staffDrink)
	di.IssuedAt = tFromUnix(ia)
	return &di, nil
}

func (q *Queries) GetIssueByID(id int64) (*api.DrinkIssue, error) {
	row := q.db.QueryRow(`SELECT `+issueCols+` FROM drink_issues WHERE id=?`, id)
	di, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sels, err := q.getIssueSelections(di.ID)
	if err != nil {
		return nil, err
	}
	di.Selections = sels
	return di, nil
}

func (q *Queries) getIssueSelections(issueID int64) ([]api.CategorySelection, error) {
	rows, err := q.db.Query(`
		SELECT line_id,ingredient_id FROM drink_issue_selections WHERE issue_id=? ORDER BY line_id`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.CategorySelection
	for rows.Next() {
		var s api.CategorySelection
		if err := rows.Scan(&s.LineID, &s.IngredientID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListSessionIssues returns issues for sessions on the business date,
// newest first.
func (q *Queries) ListSessionIssues(businessDate string, limit int) ([]api.DrinkIssue, error) {
	rows, err := q.db.Query(`
		SELECT `+issueCols+` FROM drink_issues
		WHERE session_id IN (SELECT id FROM sessions WHERE business_date=?)
		ORDER BY issued_at DESC, id DESC LIMIT ?`, businessDate, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.DrinkIssue
	for rows.Next() {
		di, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *di)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		sels, err := q.getIssueSelections(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Selections = sels
	}
	return out, nil
}

// ListIssuesForSession returns every issue of one session, oldest first.
func (q *Queries) ListIssuesForSession(sessionID int64) ([]api.DrinkIssue, error) {
	rows, err := q.db.Query(`
		SELECT `+issueCols+` FROM drink_issues WHERE session_id=? ORDER BY issued_at, id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.DrinkIssue
	for rows.Next() {
		di, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *di)
	}
	return out, rows.Err()
}
