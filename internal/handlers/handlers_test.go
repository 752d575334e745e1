package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"openbar-go/internal/api"
	"openbar-go/internal/app"
	"openbar-go/internal/client"
	"openbar-go/internal/db"
	"openbar-go/internal/handlers"
	"openbar-go/internal/localstore"
	"openbar-go/internal/syncq"
)

const (
	managerPIN   = "4321"
	bartenderPIN = "7777"
	businessDate = "2026-08-29"
)

type env struct {
	srv       *httptest.Server
	manager   *client.Client
	bartender *client.Client
}

// newEnv stands up the full stack: sqlite store, seeded catalog, router and
// an httptest server, with a manager and a bartender to act as.
func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	a, err := app.New(app.Config{
		DataDir:              dir,
		DBPath:               filepath.Join(dir, "openbar.db"),
		BootstrapManagerName: "Dana",
		BootstrapManagerPIN:  managerPIN,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	hash, err := app.HashPIN(bartenderPIN)
	require.NoError(t, err)
	bartenderID, err := a.Store().Q.CreateStaff(db.CreateStaffParams{
		Name: "Sam", Role: app.RoleBartender, PinHash: hash, IsActive: true,
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	h := &handlers.Server{App: a}
	r.Get("/health", h.Health)
	r.Route("/api", func(ar chi.Router) {
		ar.Use(a.RequireStaff)
		ar.Get("/bootstrap", h.Bootstrap)
		ar.Post("/adjustments", h.AdjustmentCreate)
		ar.Post("/deliveries", h.DeliveryCreate)
		ar.Post("/sessions", h.SessionCreate)
		ar.Post("/sessions/{id}/start", h.SessionStart)
		ar.Post("/sessions/{id}/join", h.SessionJoin)
		ar.Post("/sessions/{id}/leave", h.SessionLeave)
		ar.Post("/sessions/{id}/close", h.SessionClose)
		ar.Get("/sessions/{id}/issues", h.SessionIssuesList)
		ar.Delete("/sessions/{id}", h.SessionDelete)
		ar.Post("/issues", h.IssueCreate)
		ar.Delete("/issues/{id}", h.IssueDelete)
	})
	r.Group(func(er chi.Router) {
		er.Use(a.RequireStaff)
		er.Get("/events", h.SSEGet)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &env{
		srv:       srv,
		manager:   client.New(srv.URL, client.Credentials{StaffID: 1, PIN: managerPIN}),
		bartender: client.New(srv.URL, client.Credentials{StaffID: bartenderID, PIN: bartenderPIN}),
	}
}

func (e *env) boot(t *testing.T, c *client.Client) *api.Bootstrap {
	t.Helper()
	b, err := c.Bootstrap(context.Background(), api.BootstrapRequest{BusinessDate: businessDate})
	require.NoError(t, err)
	return b
}

func (e *env) launch(t *testing.T, c *client.Client) *api.Session {
	t.Helper()
	b := e.boot(t, c)
	sess, err := c.CreateSession(context.Background(), api.CreateSessionRequest{
		SessionTypeID: sessionTypeID(t, b, "Evening service"),
		BusinessDate:  businessDate,
		Launch:        true,
	})
	require.NoError(t, err)
	require.Equal(t, api.SessionActive, sess.Status)
	require.NotNil(t, sess.ExpectedEndAt)
	return sess
}

func ingredientByName(t *testing.T, b *api.Bootstrap, name string) api.Ingredient {
	t.Helper()
	for _, ing := range b.Ingredients {
		if ing.Name == name {
			return ing
		}
	}
	t.Fatalf("ingredient %q not in snapshot", name)
	return api.Ingredient{}
}

func recipeByName(t *testing.T, b *api.Bootstrap, name string) api.Recipe {
	t.Helper()
	for _, r := range b.Recipes {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("recipe %q not in snapshot", name)
	return api.Recipe{}
}

func sessionTypeID(t *testing.T, b *api.Bootstrap, name string) int64 {
	t.Helper()
	for _, st := range b.SessionTypes {
		if st.Name == name {
			return st.ID
		}
	}
	t.Fatalf("session type %q not in snapshot", name)
	return 0
}

func TestBootstrapSnapshot(t *testing.T) {
	e := newEnv(t)
	b := e.boot(t, e.manager)

	require.Len(t, b.Recipes, 3)
	require.Len(t, b.SessionTypes, 3)
	require.Len(t, b.Venues, 1)
	require.GreaterOrEqual(t, len(b.Ingredients), 11)

	gin := ingredientByName(t, b, "Gin")
	require.Equal(t, 5000.0, gin.CurrentStock)

	gt := recipeByName(t, b, "Gin & Tonic")
	require.True(t, gt.AskStrength)
	require.Len(t, gt.Lines, 2)
}

func TestIssueRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := e.launch(t, e.manager)

	b := e.boot(t, e.manager)
	gt := recipeByName(t, b, "Gin & Tonic")

	issue, err := e.manager.CreateDrinkIssue(ctx, api.CreateDrinkIssueRequest{
		SessionID: sess.ID,
		RecipeID:  gt.ID,
		Servings:  1,
		Strength:  "double",
	})
	require.NoError(t, err)
	require.NotZero(t, issue.ID)

	// double strength doubles the gin, not the tonic
	after := e.boot(t, e.manager)
	require.Equal(t, 5000.0-80, ingredientByName(t, after, "Gin").CurrentStock)
	require.Equal(t, 12000.0-150, ingredientByName(t, after, "Tonic Water").CurrentStock)
	require.Equal(t, 400.0-1, ingredientByName(t, after, "Cup 350ml").CurrentStock)
	require.Equal(t, 2000.0-3, ingredientByName(t, after, "Ice Cubes").CurrentStock)
	require.Len(t, after.SessionIssues, 1)

	listed, err := e.manager.ListSessionIssues(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, issue.ID, listed[0].ID)

	require.NoError(t, e.manager.DeleteDrinkIssue(ctx, issue.ID))

	restored := e.boot(t, e.manager)
	require.Equal(t, 5000.0, ingredientByName(t, restored, "Gin").CurrentStock)
	require.Equal(t, 400.0, ingredientByName(t, restored, "Cup 350ml").CurrentStock)
	require.Empty(t, restored.SessionIssues)
}

func TestCloseWithReconciliation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := e.launch(t, e.manager)

	b := e.boot(t, e.manager)
	gin := ingredientByName(t, b, "Gin")

	resp, err := e.manager.CloseSession(ctx, sess.ID, api.CloseSessionRequest{
		Reconciliation: []api.ReconciliationCount{
			{IngredientID: gin.ID, CountedStock: 4990},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Reconciliation, 1)
	require.Equal(t, -10.0, resp.Reconciliation[0].QuantityDelta)

	after := e.boot(t, e.manager)
	require.Equal(t, 4990.0, ingredientByName(t, after, "Gin").CurrentStock)

	// closed means no more issuing
	gt := recipeByName(t, b, "Gin & Tonic")
	_, err = e.manager.CreateDrinkIssue(ctx, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: gt.ID, Servings: 1,
	})
	var stErr *api.SessionStateError
	require.ErrorAs(t, err, &stErr)
}

func TestErrorDecoding(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := e.launch(t, e.manager)
	b := e.boot(t, e.manager)

	t.Run("missing category selection", func(t *testing.T) {
		mixed := recipeByName(t, b, "Mixed Spirit & Soft")
		_, err := e.manager.CreateDrinkIssue(ctx, api.CreateDrinkIssueRequest{
			SessionID: sess.ID, RecipeID: mixed.ID, Servings: 1,
		})
		var selErr *api.MissingCategorySelection
		require.ErrorAs(t, err, &selErr)
		require.NotZero(t, selErr.LineID)
	})

	t.Run("stock shortage", func(t *testing.T) {
		gin := ingredientByName(t, b, "Gin")
		_, err := e.manager.CreateAdjustment(ctx, api.CreateAdjustmentRequest{
			IngredientID: gin.ID, MovementType: api.MovementWaste, QuantityDelta: -(gin.CurrentStock - 10),
		})
		require.NoError(t, err)

		gt := recipeByName(t, b, "Gin & Tonic")
		_, err = e.manager.CreateDrinkIssue(ctx, api.CreateDrinkIssueRequest{
			SessionID: sess.ID, RecipeID: gt.ID, Servings: 1, Strength: "double",
		})
		var shErr *api.StockShortageError
		require.ErrorAs(t, err, &shErr)
		require.Len(t, shErr.Shortages, 1)
		require.Equal(t, "Gin", shErr.Shortages[0].IngredientName)
		require.InDelta(t, 70, shErr.Shortages[0].Missing, 1e-6)
	})

	t.Run("permission", func(t *testing.T) {
		_, err := e.bartender.CloseSession(ctx, sess.ID, api.CloseSessionRequest{})
		var permErr *api.PermissionError
		require.ErrorAs(t, err, &permErr)
	})

	t.Run("not found", func(t *testing.T) {
		err := e.manager.DeleteDrinkIssue(ctx, 9999)
		var nfErr *api.NotFoundError
		require.ErrorAs(t, err, &nfErr)
	})
}

func TestJoinAndScope(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	sess := e.launch(t, e.manager)

	// joinable for the bartender until they join
	bb := e.boot(t, e.bartender)
	require.Empty(t, bb.Sessions)
	require.Len(t, bb.JoinableSessions, 1)

	require.NoError(t, e.bartender.JoinSession(ctx, sess.ID))

	bb = e.boot(t, e.bartender)
	require.Len(t, bb.Sessions, 1)
	require.Empty(t, bb.JoinableSessions)

	require.NoError(t, e.bartender.LeaveSession(ctx, sess.ID))
	bb = e.boot(t, e.bartender)
	require.Empty(t, bb.Sessions)
}

func TestUnauthorized(t *testing.T) {
	e := newEnv(t)
	bad := client.New(e.srv.URL, client.Credentials{StaffID: 1, PIN: "wrong"})
	_, err := bad.Bootstrap(context.Background(), api.BootstrapRequest{BusinessDate: businessDate})
	require.Error(t, err)
	var connErr *api.ConnectivityError
	require.False(t, errors.As(err, &connErr), "a 401 is a rejection, not an outage")
}

func TestConnectivityError(t *testing.T) {
	e := newEnv(t)
	url := e.srv.URL
	e.srv.Close()

	c := client.New(url, client.Credentials{StaffID: 1, PIN: managerPIN})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Bootstrap(ctx, api.BootstrapRequest{BusinessDate: businessDate})
	var connErr *api.ConnectivityError
	require.ErrorAs(t, err, &connErr)
}

func awaitEvent(t *testing.T, ch <-chan client.Event, name string) client.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("no %q event arrived", name)
		}
	}
}

func TestEventStreamDrivesQueueRefresh(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := e.launch(t, e.manager)
	b := e.boot(t, e.manager)
	gt := recipeByName(t, b, "Gin & Tonic")

	store, err := localstore.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	q := syncq.New(e.manager, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	var refreshes atomic.Int32
	q.OnRefresh(func() { refreshes.Add(1) })

	events := make(chan client.Event, 16)
	go func() {
		_ = e.manager.StreamEvents(ctx, sess.ID, func(ev client.Event) {
			switch ev.Name {
			case api.EventDrinkIssueCreated, api.EventDrinkIssueDeleted:
				q.NotifyPush()
			}
			events <- ev
		})
	}()
	awaitEvent(t, events, "hello") // subscription is live

	issue, err := e.manager.CreateDrinkIssue(ctx, api.CreateDrinkIssueRequest{
		SessionID: sess.ID, RecipeID: gt.ID, Servings: 1, Strength: "single"})
	require.NoError(t, err)

	created := awaitEvent(t, events, api.EventDrinkIssueCreated)
	var createdBody struct {
		Issue api.DrinkIssue `json:"issue"`
	}
	require.NoError(t, json.Unmarshal([]byte(created.Data), &createdBody))
	require.Equal(t, issue.ID, createdBody.Issue.ID)
	require.Eventually(t, func() bool { return refreshes.Load() == 1 },
		2*time.Second, 10*time.Millisecond, "the push event lands a debounced refresh")

	require.NoError(t, e.manager.DeleteDrinkIssue(ctx, issue.ID))
	deleted := awaitEvent(t, events, api.EventDrinkIssueDeleted)
	var deletedBody struct {
		IssueID int64 `json:"issue_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(deleted.Data), &deletedBody))
	require.Equal(t, issue.ID, deletedBody.IssueID)
	require.Eventually(t, func() bool { return refreshes.Load() == 2 },
		2*time.Second, 10*time.Millisecond)
}
