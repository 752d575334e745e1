package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openbar-go/internal/api"
	"openbar-go/internal/db"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

type eventRecorder struct {
	created []api.DrinkIssue
	deleted []int64
}

func (r *eventRecorder) DrinkIssueCreated(_ int64, issue api.DrinkIssue) {
	r.created = append(r.created, issue)
}
func (r *eventRecorder) DrinkIssueDeleted(_ int64, issueID int64) {
	r.deleted = append(r.deleted, issueID)
}

// fixture is a small venue: one category of spirits, one of mixers, a cup,
// ice, a gin+tonic recipe with a strength line and a mixer top-up recipe.
type fixture struct {
	svc    *Service
	store  *db.Store
	events *eventRecorder
	now    time.Time

	bartender Actor
	manager   Actor

	spirits, mixers       int64
	gin, tonic, cup, ice  int64
	ginVariant            int64
	gt, mixed             int64 // recipes
	sessionType           int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{store: store, events: &eventRecorder{}, now: time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)}
	f.svc = New(store, nil, f.events)
	f.svc.SetNow(func() time.Time { return f.now })

	barID, err := store.Q.CreateStaff(db.CreateStaffParams{Name: "Sam", Role: "BARTENDER", PinHash: "x", IsActive: true})
	require.NoError(t, err)
	mgrID, err := store.Q.CreateStaff(db.CreateStaffParams{Name: "Alex", Role: "MANAGER", PinHash: "x", IsActive: true})
	require.NoError(t, err)
	f.bartender = Actor{ID: barID}
	f.manager = Actor{ID: mgrID, Manager: true}

	f.spirits, err = f.svc.CreateCategory(db.CreateCategoryParams{Name: "Spirits"})
	require.NoError(t, err)
	f.mixers, err = f.svc.CreateCategory(db.CreateCategoryParams{Name: "Mixers"})
	require.NoError(t, err)
	cups, err := f.svc.CreateCategory(db.CreateCategoryParams{Name: "Cups"})
	require.NoError(t, err)
	basics, err := f.svc.CreateCategory(db.CreateCategoryParams{Name: "Basics"})
	require.NoError(t, err)

	f.gin, err = f.svc.CreateIngredient(db.CreateIngredientParams{
		Name: "Gin", CategoryID: f.spirits, BaseUnit: "ml", CurrentStock: 1000, CostPerUnit: 0.02})
	require.NoError(t, err)
	f.tonic, err = f.svc.CreateIngredient(db.CreateIngredientParams{
		Name: "Tonic", CategoryID: f.mixers, BaseUnit: "ml", CurrentStock: 2000})
	require.NoError(t, err)
	f.cup, err = f.svc.CreateIngredient(db.CreateIngredientParams{
		Name: "Cup 350", CategoryID: cups, BaseUnit: "unit", CurrentStock: 50,
		IsCup: true, CupType: "disposable", CupCapacityML: fp(350)})
	require.NoError(t, err)
	f.ice, err = f.svc.CreateIngredient(db.CreateIngredientParams{
		Name: "Ice", CategoryID: basics, BaseUnit: "unit", CurrentStock: 500, IsIce: true})
	require.NoError(t, err)

	f.ginVariant, err = f.svc.CreateVariant(db.CreateVariantParams{
		IngredientID: f.gin, Name: "Gin 700", BaseQuantity: 700, IsActive: true})
	require.NoError(t, err)

	f.gt, err = f.svc.SaveRecipe(0, db.CreateRecipeParams{
		Name: "Gin & Tonic", DrinkType: "classic", CupIngredientID: ip(f.cup),
		HasIce: true, IceCubes: 3, AskStrength: true,
	}, []db.RecipeLineUpsertItem{
		{Kind: "fixed_ingredient", IngredientID: ip(f.gin), Quantity: fp(40), AffectsStrength: true},
		{Kind: "fixed_ingredient", IngredientID: ip(f.tonic), Quantity: fp(150)},
	})
	require.NoError(t, err)

	f.mixed, err = f.svc.SaveRecipe(0, db.CreateRecipeParams{
		Name: "Spirit & Mixer", DrinkType: "cocktail", CupIngredientID: ip(f.cup),
		HasIce: true, IceCubes: 3, AskStrength: true,
	}, []db.RecipeLineUpsertItem{
		{Kind: "category_selector", CategoryID: ip(f.spirits), Quantity: fp(40), AffectsStrength: true},
		{Kind: "category_selector", CategoryID: ip(f.mixers), IsTopUp: true},
	})
	require.NoError(t, err)

	f.sessionType, err = f.svc.CreateSessionType(db.CreateSessionTypeParams{
		Name: "Evening", DefaultTimeLimitMinutes: 240})
	require.NoError(t, err)

	return f
}

func (f *fixture) launch(t *testing.T) *api.Session {
	t.Helper()
	sess, err := f.svc.CreateSession(f.bartender, api.CreateSessionRequest{
		SessionTypeID: f.sessionType, BusinessDate: "2026-03-14", Launch: true})
	require.NoError(t, err)
	return sess
}

func (f *fixture) stock(t *testing.T, id int64) float64 {
	t.Helper()
	ing, err := f.store.Q.GetIngredientByID(id)
	require.NoError(t, err)
	require.NotNil(t, ing)
	return ing.CurrentStock
}

/* ---------------- recipes ---------------- */

func TestSaveRecipeCapacityInvariant(t *testing.T) {
	f := newFixture(t)

	// fixed lines overflowing the ice-adjusted cup are rejected
	_, err := f.svc.SaveRecipe(0, db.CreateRecipeParams{
		Name: "Overflow", DrinkType: "custom", CupIngredientID: ip(f.cup),
		HasIce: true, IceCubes: 3,
	}, []db.RecipeLineUpsertItem{
		{Kind: "fixed_ingredient", IngredientID: ip(f.tonic), Quantity: fp(300)},
	})
	var capErr *api.RecipeCapacityExceeded
	require.True(t, errors.As(err, &capErr))
	assert.InDelta(t, 300-281.225, capErr.OverageML, 1e-6)
}

func TestSaveRecipeTopUpMustBeCategory(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SaveRecipe(0, db.CreateRecipeParams{
		Name: "Bad", DrinkType: "custom",
	}, []db.RecipeLineUpsertItem{
		{Kind: "fixed_ingredient", IngredientID: ip(f.gin), Quantity: fp(40), IsTopUp: true},
	})
	var vErr *api.ValidationError
	require.True(t, errors.As(err, &vErr))
}

/* ---------------- deliveries & adjustments ---------------- */

func TestCreateDeliveryConvertsAndAveragesCost(t *testing.T) {
	f := newFixture(t)

	d, err := f.svc.CreateDelivery(api.CreateDeliveryRequest{
		SupplierName: "VineCo",
		Items: []api.CreateDeliveryItemRequest{
			{VariantID: f.ginVariant, PurchaseUnits: 2, PurchaseUnitCost: fp(21)},
		},
	})
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, 1400.0, d.Items[0].BaseQuantity)
	assert.InDelta(t, 2400, f.stock(t, f.gin), 1e-6)

	// weighted average: (1000*0.02 + 1400*0.03) / 2400
	ing, err := f.store.Q.GetIngredientByID(f.gin)
	require.NoError(t, err)
	assert.InDelta(t, (1000*0.02+1400*0.03)/2400, ing.CostPerUnit, 1e-9)
}

func TestCreateAdjustmentMovesStock(t *testing.T) {
	f := newFixture(t)

	newStock, err := f.svc.CreateAdjustment(api.CreateAdjustmentRequest{
		IngredientID: f.tonic, MovementType: api.MovementWaste, QuantityDelta: -250, Note: "spill"})
	require.NoError(t, err)
	assert.InDelta(t, 1750, newStock, 1e-6)

	_, err = f.svc.CreateAdjustment(api.CreateAdjustmentRequest{
		IngredientID: f.tonic, MovementType: api.MovementDrinkIssue, QuantityDelta: -1})
	var vErr *api.ValidationError
	assert.True(t, errors.As(err, &vErr), "issue movements cannot be posted by hand")
}

/* ---------------- sessions ---------------- */

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)

	sess, err := f.svc.CreateSession(f.bartender, api.CreateSessionRequest{
		SessionTypeID: f.sessionType, BusinessDate: "2026-03-14"})
	require.NoError(t, err)
	assert.Equal(t, api.SessionDraft, sess.Status)
	assert.Nil(t, sess.OpenedAt)

	started, err := f.svc.StartSession(f.bartender, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, api.SessionActive, started.Status)
	require.NotNil(t, started.OpenedAt)
	require.NotNil(t, started.ExpectedEndAt)
	assert.Equal(t, started.OpenedAt.Add(240*time.Minute), *started.ExpectedEndAt)

	// expiry is derived from the clock
	assert.False(t, started.Expired(started.ExpectedEndAt.Add(-time.Second)))
	assert.True(t, started.Expired(*started.ExpectedEndAt))

	// a second start is rejected
	_, err = f.svc.StartSession(f.bartender, sess.ID)
	var stErr *api.SessionStateError
	assert.True(t, errors.As(err, &stErr))
}

func TestLaunchCreatesActiveSession(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)
	assert.Equal(t, api.SessionActive, sess.Status)
	require.NotNil(t, sess.ExpectedEndAt)
	assert.True(t, f.now.Add(240*time.Minute).Equal(*sess.ExpectedEndAt))
}

func TestJoinLeaveSession(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	require.NoError(t, f.svc.JoinSession(f.manager, sess.ID))
	joined, err := f.store.Q.IsParticipant(sess.ID, f.manager.ID)
	require.NoError(t, err)
	assert.True(t, joined)

	require.NoError(t, f.svc.LeaveSession(f.manager, sess.ID))
	joined, err = f.store.Q.IsParticipant(sess.ID, f.manager.ID)
	require.NoError(t, err)
	assert.False(t, joined)

	// joining never changes session state
	got, err := f.store.Q.GetSessionByID(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, api.SessionActive, got.Status)
}

func TestClosePermissions(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	// neither creator nor manager
	_, err := f.svc.CloseSession(Actor{ID: 9999}, sess.ID, nil)
	var pErr *api.PermissionError
	require.True(t, errors.As(err, &pErr))

	// manager may close someone else's session
	_, err = f.svc.CloseSession(f.manager, sess.ID, nil)
	require.NoError(t, err)

	got, _ := f.store.Q.GetSessionByID(sess.ID)
	assert.Equal(t, api.SessionClosed, got.Status)
	require.NotNil(t, got.ClosedAt)
}

func TestCloseRequiresActiveSession(t *testing.T) {
	f := newFixture(t)

	draft, err := f.svc.CreateSession(f.bartender, api.CreateSessionRequest{
		SessionTypeID: f.sessionType, BusinessDate: "2026-03-14"})
	require.NoError(t, err)

	var stErr *api.SessionStateError
	_, err = f.svc.CloseSession(f.bartender, draft.ID, nil)
	require.True(t, errors.As(err, &stErr), "a draft was never opened, start it first")

	sess := f.launch(t)
	_, err = f.svc.CloseSession(f.bartender, sess.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.CloseSession(f.bartender, sess.ID, nil)
	require.True(t, errors.As(err, &stErr))
}

func TestCloseWithReconciliation(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	// system stock 40, counted 35 -> exactly one -5 correction
	_, err := f.svc.CreateAdjustment(api.CreateAdjustmentRequest{
		IngredientID: f.gin, MovementType: api.MovementAdjustment, QuantityDelta: -960})
	require.NoError(t, err)
	require.InDelta(t, 40, f.stock(t, f.gin), 1e-6)

	corrections, err := f.svc.CloseSession(f.bartender, sess.ID, []api.ReconciliationCount{
		{IngredientID: f.gin, CountedStock: 35},
		{IngredientID: f.tonic, CountedStock: 2000}, // matches system stock
	})
	require.NoError(t, err)
	require.Len(t, corrections, 1)
	assert.Equal(t, f.gin, corrections[0].IngredientID)
	assert.InDelta(t, -5, corrections[0].QuantityDelta, 1e-6)
	assert.InDelta(t, 35, f.stock(t, f.gin), 1e-6)
	assert.InDelta(t, 2000, f.stock(t, f.tonic), 1e-6)
}

/* ---------------- issuance ---------------- */

func TestCreateDrinkIssueDeductsStock(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	iceBefore := f.stock(t, f.ice)
	issue, err := f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 2, Strength: "double",
	})
	require.NoError(t, err)
	require.NotZero(t, issue.ID)

	assert.InDelta(t, 1000-2*80, f.stock(t, f.gin), 1e-6, "double strength doubles the gin")
	assert.InDelta(t, 2000-2*150, f.stock(t, f.tonic), 1e-6)
	assert.InDelta(t, 48, f.stock(t, f.cup), 1e-6, "one cup per serving")
	assert.InDelta(t, iceBefore-2*3, f.stock(t, f.ice), 1e-6, "three cubes per serving")

	require.Len(t, f.events.created, 1)
	assert.Equal(t, issue.ID, f.events.created[0].ID)
}

func TestCreateDrinkIssueTopUpSelection(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	_, err := f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.mixed, Servings: 1, Strength: "single",
	})
	var missing *api.MissingCategorySelection
	require.True(t, errors.As(err, &missing), "required selections must be present")

	recipe, err := f.store.Q.GetRecipeByID(f.mixed)
	require.NoError(t, err)
	spiritLine := recipe.Lines[0].ID
	topUpLine := recipe.Lines[1].ID

	_, err = f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.mixed, Servings: 1, Strength: "single",
		CategorySelections: []api.CategorySelection{
			{LineID: spiritLine, IngredientID: f.gin},
			{LineID: topUpLine, IngredientID: f.tonic},
		},
	})
	require.NoError(t, err)

	// top-up = capacity(350 - 3 cubes) - 40 spirit
	topUp := 350 - 3*25*0.917 - 40
	assert.InDelta(t, 1000-40, f.stock(t, f.gin), 1e-6)
	assert.InDelta(t, 2000-topUp, f.stock(t, f.tonic), 1e-6)
}

func TestCreateDrinkIssueShortage(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	_, err := f.svc.CreateAdjustment(api.CreateAdjustmentRequest{
		IngredientID: f.gin, MovementType: api.MovementAdjustment, QuantityDelta: -970})
	require.NoError(t, err)

	before := f.stock(t, f.tonic)
	_, err = f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 1, Strength: "single",
	})
	var short *api.StockShortageError
	require.True(t, errors.As(err, &short))
	require.Len(t, short.Shortages, 1)
	assert.Equal(t, "Gin", short.Shortages[0].IngredientName)
	assert.InDelta(t, 10, short.Shortages[0].Missing, 1e-6)

	// a rejected issue must not touch any stock
	assert.InDelta(t, before, f.stock(t, f.tonic), 1e-6)
	assert.Empty(t, f.events.created)
}

func TestCreateDrinkIssueSessionGuards(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	// expired session rejects, manager override passes
	f.now = sess.ExpectedEndAt.Add(time.Minute)
	_, err := f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 1})
	var stErr *api.SessionStateError
	require.True(t, errors.As(err, &stErr))

	_, err = f.svc.CreateDrinkIssue(f.manager, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 1, AllowInactiveSession: true})
	require.NoError(t, err)

	// the override flag means nothing without manager privilege
	_, err = f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 1, AllowInactiveSession: true})
	require.True(t, errors.As(err, &stErr))
}

func TestDeleteDrinkIssueRestoresStock(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	ginBefore := f.stock(t, f.gin)
	tonicBefore := f.stock(t, f.tonic)
	cupBefore := f.stock(t, f.cup)
	iceBefore := f.stock(t, f.ice)

	issue, err := f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 3, Strength: "single"})
	require.NoError(t, err)
	require.NotEqual(t, ginBefore, f.stock(t, f.gin))

	require.NoError(t, f.svc.DeleteDrinkIssue(f.bartender, issue.ID))

	assert.InDelta(t, ginBefore, f.stock(t, f.gin), 1e-6)
	assert.InDelta(t, tonicBefore, f.stock(t, f.tonic), 1e-6)
	assert.InDelta(t, cupBefore, f.stock(t, f.cup), 1e-6)
	assert.InDelta(t, iceBefore, f.stock(t, f.ice), 1e-6)

	gone, err := f.store.Q.GetIssueByID(issue.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Equal(t, []int64{issue.ID}, f.events.deleted)
}

/* ---------------- bootstrap ---------------- */

func TestGetBootstrap(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	other, err := f.svc.CreateSession(f.manager, api.CreateSessionRequest{
		SessionTypeID: f.sessionType, BusinessDate: "2026-03-14", Launch: true})
	require.NoError(t, err)

	issue, err := f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 1})
	require.NoError(t, err)

	b, err := f.svc.GetBootstrap(f.bartender, api.BootstrapRequest{BusinessDate: "2026-03-14"})
	require.NoError(t, err)

	assert.Len(t, b.Ingredients, 4)
	assert.Len(t, b.Recipes, 2)
	assert.Len(t, b.SessionTypes, 1)
	require.Len(t, b.Sessions, 1, "only own/joined sessions")
	assert.Equal(t, sess.ID, b.Sessions[0].ID)
	require.Len(t, b.JoinableSessions, 1)
	assert.Equal(t, other.ID, b.JoinableSessions[0].ID)
	require.Len(t, b.SessionIssues, 1)
	assert.Equal(t, issue.ID, b.SessionIssues[0].ID)

	// other business dates see nothing
	empty, err := f.svc.GetBootstrap(f.bartender, api.BootstrapRequest{BusinessDate: "2026-03-15"})
	require.NoError(t, err)
	assert.Empty(t, empty.Sessions)
	assert.Empty(t, empty.SessionIssues)
}

func TestDeleteSessionCascades(t *testing.T) {
	f := newFixture(t)
	sess := f.launch(t)

	issue, err := f.svc.CreateDrinkIssue(f.bartender, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: f.gt, Servings: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSession(f.manager, sess.ID))

	gone, err := f.store.Q.GetIssueByID(issue.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
