package app

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"openbar-go/internal/db"
	"openbar-go/internal/ledger"
)

const (
	RoleBartender = "BARTENDER"
	RoleManager   = "MANAGER"
)

const (
	headerStaffID  = "X-Staff-Id"
	headerStaffPIN = "X-Staff-Pin"
)

func HashPIN(pin string) (string, error) {
	pin = strings.TrimSpace(pin)
	if len(pin) < 4 {
		return "", errors.New("pin too short")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPIN(hash string, pin string) bool {
	if hash == "" || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

type ctxKey int

const staffKey ctxKey = 1

// RequireStaff authenticates the request's staff headers against the store
// and puts the actor on the context.
func (a *App) RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(headerStaffID)), 10, 64)
		if err != nil {
			http.Error(w, "missing staff id", http.StatusUnauthorized)
			return
		}
		staff, err := a.store.Q.GetStaffByID(id)
		if err != nil {
			http.Error(w, "staff lookup failed", http.StatusInternalServerError)
			return
		}
		if staff == nil || !staff.IsActive || !CheckPIN(staff.PinHash, r.Header.Get(headerStaffPIN)) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), staffKey, staff)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CurrentStaff returns the authenticated actor, or nil.
func (a *App) CurrentStaff(r *http.Request) *db.Staff {
	s, _ := r.Context().Value(staffKey).(*db.Staff)
	return s
}

// Actor converts a staff record into the ledger's actor view.
func Actor(s *db.Staff) ledger.Actor {
	if s == nil {
		return ledger.Actor{}
	}
	return ledger.Actor{ID: s.ID, Manager: s.Role == RoleManager}
}
