// Package client is the typed HTTP client for the ledger API. It speaks the
// api wire types, maps error bodies back to the typed errors, and wraps
// transport failures in api.ConnectivityError so callers can tell "the server
// said no" apart from "the server never answered". It does no retrying; the
// offline queue owns that policy.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"openbar-go/internal/api"
)

// Credentials are the staff headers every request carries.
type Credentials struct {
	StaffID int64
	PIN     string
}

type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
}

func New(baseURL string, creds Credentials) *Client {
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetHTTPClient swaps the transport, mainly for httptest servers.
func (c *Client) SetHTTPClient(h *http.Client) { c.http = h }

// do runs one request. A non-2xx response is decoded into a typed api error;
// anything that keeps the request from completing at all becomes a
// ConnectivityError.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Staff-Id", strconv.FormatInt(c.creds.StaffID, 10))
	req.Header.Set("X-Staff-Pin", c.creds.PIN)

	resp, err := c.http.Do(req)
	if err != nil {
		return &api.ConnectivityError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return decodeError(resp)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code      string         `json:"code"`
			Message   string         `json:"message"`
			Shortages []api.Shortage `json:"shortages"`
			LineID    int64          `json:"lineId"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Code == "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, api.SanitizeMessage(string(raw)))
	}

	switch body.Error.Code {
	case api.CodeValidation:
		if body.Error.LineID != 0 {
			return &api.MissingCategorySelection{LineID: body.Error.LineID}
		}
		return &api.ValidationError{Msg: body.Error.Message}
	case api.CodeStockShort:
		return &api.StockShortageError{Shortages: body.Error.Shortages}
	case api.CodeSessionState:
		return &api.SessionStateError{Reason: body.Error.Message}
	case api.CodePermission:
		return &api.PermissionError{Msg: body.Error.Message}
	case api.CodeNotFound:
		return &api.NotFoundError{What: api.SanitizeMessage(body.Error.Message)}
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error.Message)
	}
}

/* ---------------- catalog ---------------- */

func (c *Client) CreateCategory(ctx context.Context, req api.SaveCategoryRequest) (int64, error) {
	var out api.IDResponse
	err := c.do(ctx, http.MethodPost, "/api/categories", req, &out)
	return out.ID, err
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, req api.SaveCategoryRequest) error {
	return c.do(ctx, http.MethodPut, "/api/categories/"+strconv.FormatInt(id, 10), req, nil)
}

func (c *Client) CreateIngredient(ctx context.Context, req api.SaveIngredientRequest) (int64, error) {
	var out api.IDResponse
	err := c.do(ctx, http.MethodPost, "/api/ingredients", req, &out)
	return out.ID, err
}

func (c *Client) UpdateIngredient(ctx context.Context, id int64, req api.SaveIngredientRequest) error {
	return c.do(ctx, http.MethodPut, "/api/ingredients/"+strconv.FormatInt(id, 10), req, nil)
}

func (c *Client) CreateVariant(ctx context.Context, req api.SaveVariantRequest) (int64, error) {
	var out api.IDResponse
	err := c.do(ctx, http.MethodPost, "/api/variants", req, &out)
	return out.ID, err
}

func (c *Client) UpdateVariant(ctx context.Context, id int64, req api.SaveVariantRequest) error {
	return c.do(ctx, http.MethodPut, "/api/variants/"+strconv.FormatInt(id, 10), req, nil)
}

func (c *Client) CreateRecipe(ctx context.Context, req api.SaveRecipeRequest) (int64, error) {
	var out api.IDResponse
	err := c.do(ctx, http.MethodPost, "/api/recipes", req, &out)
	return out.ID, err
}

func (c *Client) UpdateRecipe(ctx context.Context, id int64, req api.SaveRecipeRequest) error {
	return c.do(ctx, http.MethodPut, "/api/recipes/"+strconv.FormatInt(id, 10), req, nil)
}

func (c *Client) CreateVenue(ctx context.Context, req api.SaveVenueRequest) (int64, error) {
	var out api.IDResponse
	err := c.do(ctx, http.MethodPost, "/api/venues", req, &out)
	return out.ID, err
}

func (c *Client) CreateSessionType(ctx context.Context, req api.SaveSessionTypeRequest) (int64, error) {
	var out api.IDResponse
	err := c.do(ctx, http.MethodPost, "/api/session-types", req, &out)
	return out.ID, err
}

/* ---------------- stock ---------------- */

func (c *Client) CreateDelivery(ctx context.Context, req api.CreateDeliveryRequest) (*api.Delivery, error) {
	var out api.Delivery
	if err := c.do(ctx, http.MethodPost, "/api/deliveries", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAdjustment(ctx context.Context, req api.CreateAdjustmentRequest) (float64, error) {
	var out api.CreateAdjustmentResponse
	err := c.do(ctx, http.MethodPost, "/api/adjustments", req, &out)
	return out.NewStock, err
}

/* ---------------- sessions ---------------- */

func (c *Client) CreateSession(ctx context.Context, req api.CreateSessionRequest) (*api.Session, error) {
	var out api.Session
	if err := c.do(ctx, http.MethodPost, "/api/sessions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartSession(ctx context.Context, id int64) (*api.Session, error) {
	var out api.Session
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "start"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) JoinSession(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, sessionPath(id, "join"), nil, nil)
}

func (c *Client) LeaveSession(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, sessionPath(id, "leave"), nil, nil)
}

func (c *Client) CloseSession(ctx context.Context, id int64, req api.CloseSessionRequest) (*api.CloseSessionResponse, error) {
	var out api.CloseSessionResponse
	if err := c.do(ctx, http.MethodPost, sessionPath(id, "close"), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) ListSessionIssues(ctx context.Context, id int64) ([]api.DrinkIssue, error) {
	var out struct {
		Issues []api.DrinkIssue `json:"issues"`
	}
	if err := c.do(ctx, http.MethodGet, sessionPath(id, "issues"), nil, &out); err != nil {
		return nil, err
	}
	return out.Issues, nil
}

func sessionPath(id int64, verb string) string {
	return "/api/sessions/" + strconv.FormatInt(id, 10) + "/" + verb
}

/* ---------------- issues ---------------- */

func (c *Client) CreateDrinkIssue(ctx context.Context, req api.CreateDrinkIssueRequest) (*api.DrinkIssue, error) {
	var out api.CreateDrinkIssueResponse
	if err := c.do(ctx, http.MethodPost, "/api/issues", req, &out); err != nil {
		return nil, err
	}
	return &out.Issue, nil
}

func (c *Client) DeleteDrinkIssue(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/issues/"+strconv.FormatInt(id, 10), nil, nil)
}

/* ---------------- bootstrap ---------------- */

func (c *Client) Bootstrap(ctx context.Context, req api.BootstrapRequest) (*api.Bootstrap, error) {
	q := url.Values{}
	if req.BusinessDate != "" {
		q.Set("businessDate", req.BusinessDate)
	}
	if req.SessionLimit > 0 {
		q.Set("sessionLimit", strconv.Itoa(req.SessionLimit))
	}
	if req.DeliveryLimit > 0 {
		q.Set("deliveryLimit", strconv.Itoa(req.DeliveryLimit))
	}
	if req.SessionIssueLimit > 0 {
		q.Set("sessionIssueLimit", strconv.Itoa(req.SessionIssueLimit))
	}
	path := "/api/bootstrap"
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}
	var out api.Bootstrap
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

/* ---------------- health ---------------- */

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
