package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// Gateway1 exchanges its static credentials for a bearer token on a /login
// call. The token is cached for the lifetime of the client instance and is
// only acquired when missing; there is no expiry handling because the
// gateway does not expose one.
type Gateway1 struct {
	baseURL string
	email   string
	token   string
	client  *http.Client

	mu     sync.RWMutex
	bearer string
}

func NewGateway1(baseURL, email, token string, client *http.Client) *Gateway1 {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway1{
		baseURL: strings.TrimRight(baseURL, "/"),
		email:   email,
		token:   token,
		client:  client,
	}
}

func (g *Gateway1) ListTransactions(ctx context.Context) ([]RawTransaction, error) {
	body, err := g.do(ctx, http.MethodGet, g.baseURL+"/transactions", nil)
	if err != nil {
		return nil, err
	}

	var out []RawTransaction
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gateway1: decode transactions: %w", err)
	}
	return out, nil
}

func (g *Gateway1) CreateTransaction(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	payload := struct {
		Amount     int64  `json:"amount"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		CardNumber string `json:"cardNumber"`
		CVV        string `json:"cvv"`
	}{
		Amount:     req.AmountMinor,
		Name:       req.Name,
		Email:      req.Email,
		CardNumber: req.CardNumber,
		CVV:        req.CVV,
	}

	body, err := g.do(ctx, http.MethodPost, g.baseURL+"/transactions", payload)
	if err != nil {
		return ChargeResult{}, err
	}

	var resp struct {
		ID string `json:"id"`
	}
	// The charge already went through at this point; a malformed body only
	// costs us the external id.
	_ = json.Unmarshal(body, &resp)

	return ChargeResult{ExternalID: resp.ID}, nil
}

func (g *Gateway1) Refund(ctx context.Context, transactionID string) (RefundResult, error) {
	url := fmt.Sprintf("%s/transactions/%s/charge_back", g.baseURL, transactionID)

	body, err := g.do(ctx, http.MethodPost, url, nil)
	if err != nil {
		return RefundResult{}, err
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)

	return RefundResult{ExternalID: resp.ID}, nil
}

// do runs one authenticated call. Every transport error and non-2xx status
// maps to ErrUnavailable so the caller sees a single failure kind.
func (g *Gateway1) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	bearer, err := g.authenticate(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway1: encode payload: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("gateway1: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway1: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway1: %w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway1: %w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return body, nil
}

// authenticate returns the cached bearer token, logging in only when no
// token is cached yet. The double check under the write lock keeps two
// concurrent first callers from both hitting /login.
func (g *Gateway1) authenticate(ctx context.Context) (string, error) {
	g.mu.RLock()
	bearer := g.bearer
	g.mu.RUnlock()
	if bearer != "" {
		return bearer, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bearer != "" {
		return g.bearer, nil
	}

	payload := struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}{Email: g.email, Token: g.token}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gateway1: encode login: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/login", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("gateway1: build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway1: %w: login: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gateway1: %w: login status %d", ErrUnavailable, resp.StatusCode)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("gateway1: decode login response: %w", err)
	}
	if loginResp.Token == "" {
		return "", fmt.Errorf("gateway1: %w: login response has no token", ErrUnavailable)
	}

	g.bearer = loginResp.Token
	return g.bearer, nil
}
