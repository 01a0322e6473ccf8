package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Gateway2 authenticates with two static headers on every call; there is no
// session step. Its wire fields are in Portuguese.
type Gateway2 struct {
	baseURL    string
	authToken  string
	authSecret string
	client     *http.Client
}

func NewGateway2(baseURL, authToken, authSecret string, client *http.Client) *Gateway2 {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway2{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authToken:  authToken,
		authSecret: authSecret,
		client:     client,
	}
}

func (g *Gateway2) ListTransactions(ctx context.Context) ([]RawTransaction, error) {
	body, err := g.do(ctx, http.MethodGet, g.baseURL+"/transacoes", nil)
	if err != nil {
		return nil, err
	}

	var out []RawTransaction
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("gateway2: decode transactions: %w", err)
	}
	return out, nil
}

func (g *Gateway2) CreateTransaction(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	payload := struct {
		Valor        int64  `json:"valor"`
		Nome         string `json:"nome"`
		Email        string `json:"email"`
		NumeroCartao string `json:"numeroCartao"`
		CVV          string `json:"cvv"`
	}{
		Valor:        req.AmountMinor,
		Nome:         req.Name,
		Email:        req.Email,
		NumeroCartao: req.CardNumber,
		CVV:          req.CVV,
	}

	body, err := g.do(ctx, http.MethodPost, g.baseURL+"/transacoes", payload)
	if err != nil {
		return ChargeResult{}, err
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)

	return ChargeResult{ExternalID: resp.ID}, nil
}

func (g *Gateway2) Refund(ctx context.Context, transactionID string) (RefundResult, error) {
	payload := struct {
		ID string `json:"id"`
	}{ID: transactionID}

	body, err := g.do(ctx, http.MethodPost, g.baseURL+"/transacoes/reembolso", payload)
	if err != nil {
		return RefundResult{}, err
	}

	var resp struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &resp)

	return RefundResult{ExternalID: resp.ID}, nil
}

func (g *Gateway2) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("gateway2: encode payload: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("gateway2: build request: %w", err)
	}
	req.Header.Set("Gateway-Auth-Token", g.authToken)
	req.Header.Set("Gateway-Auth-Secret", g.authSecret)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway2: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gateway2: %w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway2: %w: status %d", ErrUnavailable, resp.StatusCode)
	}

	return body, nil
}
