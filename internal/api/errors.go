package api

import (
	"fmt"
	"strings"
)

// Error codes carried on the wire. The client maps them back to the typed
// errors below so callers can use errors.As on either side.
const (
	CodeValidation   = "validation"
	CodeStockShort   = "insufficient_stock"
	CodeSessionState = "session_state"
	CodePermission   = "permission"
	CodeNotFound     = "not_found"
)

// ValidationError rejects malformed input before any stock is touched.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// RecipeCapacityExceeded fails a recipe save whose fixed lines overflow the
// cup. OverageML is how far past capacity the fixed lines land; NoTopUpRoom
// marks the variant where the fixed lines fit but leave a required top-up
// line with no liquid room.
type RecipeCapacityExceeded struct {
	CapacityML  float64
	OverageML   float64
	NoTopUpRoom bool
}

func (e *RecipeCapacityExceeded) Error() string {
	if e.NoTopUpRoom {
		return fmt.Sprintf("recipe leaves no room for its required top-up (cup capacity %.1f ml)", e.CapacityML)
	}
	return fmt.Sprintf("recipe exceeds cup capacity by %.1f ml", e.OverageML)
}

// MissingCategorySelection blocks a commit with an unmet required
// category_selector line.
type MissingCategorySelection struct {
	LineID int64
}

func (e *MissingCategorySelection) Error() string {
	return fmt.Sprintf("category selection missing for line %d", e.LineID)
}

// Shortage is one ingredient the store could not cover.
type Shortage struct {
	IngredientName string  `json:"ingredientName"`
	Missing        float64 `json:"missing"`
}

// StockShortageError is the server-confirmed insufficient-stock rejection.
type StockShortageError struct {
	Shortages []Shortage
}

func (e *StockShortageError) Error() string {
	return "insufficient stock: " + FormatShortages(e.Shortages)
}

// FormatShortages renders shortages for display, truncated to the first
// three plus a remainder count.
func FormatShortages(shortages []Shortage) string {
	if len(shortages) == 0 {
		return "unknown ingredient"
	}
	parts := make([]string, 0, 3)
	for i, s := range shortages {
		if i == 3 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (missing %s)", s.IngredientName, trimFloat(s.Missing)))
	}
	out := strings.Join(parts, ", ")
	if rest := len(shortages) - 3; rest > 0 {
		out += fmt.Sprintf(" and %d more", rest)
	}
	return out
}

// SessionStateError rejects an issuance into an absent, expired or closed
// session.
type SessionStateError struct {
	Reason string
}

func (e *SessionStateError) Error() string { return e.Reason }

// PermissionError rejects a close/delete/override by a non-creator,
// non-manager actor. Non-retryable.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string { return e.Msg }

// NotFoundError reports a missing record by noun.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string { return e.What + " not found" }

// ConnectivityError marks a submit attempt that never reached the server,
// as opposed to a genuine rejection.
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string { return "no connection: " + e.Err.Error() }
func (e *ConnectivityError) Unwrap() error { return e.Err }

// SanitizeMessage strips trailing JSON/object noise from a message before
// it is shown to a person. "stock check failed {\"code\":...}" becomes
// "stock check failed".
func SanitizeMessage(msg string) string {
	for _, open := range []string{"{", "["} {
		if i := strings.Index(msg, open); i >= 0 {
			msg = msg[:i]
		}
	}
	return strings.TrimRight(strings.TrimSpace(msg), ":,;")
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
