package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
)

func newGateway1Server(t *testing.T, loginCount *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(loginCount, 1)

		var body struct {
			Email string `json:"email"`
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Token == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "bearer-abc"})
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bearer-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]any{{"id": "t1"}})
		case http.MethodPost:
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			for _, field := range []string{"amount", "name", "email", "cardNumber", "cvv"} {
				if _, ok := body[field]; !ok {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "ext-123"})
		}
	})
	mux.HandleFunc("/transactions/42/charge_back", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer bearer-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "ext-123"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGateway1CreateTransaction(t *testing.T) {
	var logins int32
	srv := newGateway1Server(t, &logins)
	g := NewGateway1(srv.URL, "dev@example.com", "secret", srv.Client())

	res, err := g.CreateTransaction(context.Background(), ChargeRequest{
		AmountMinor: 56373,
		Name:        "Maria",
		Email:       "maria@example.com",
		CardNumber:  "4111111111111111",
		CVV:         "123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExternalID != "ext-123" {
		t.Fatalf("expected external id ext-123, got %q", res.ExternalID)
	}
	if n := atomic.LoadInt32(&logins); n != 1 {
		t.Fatalf("expected exactly 1 login, got %d", n)
	}
}

func TestGateway1TokenCachedAcrossCalls(t *testing.T) {
	var logins int32
	srv := newGateway1Server(t, &logins)
	g := NewGateway1(srv.URL, "dev@example.com", "secret", srv.Client())

	for i := 0; i < 3; i++ {
		if _, err := g.ListTransactions(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&logins); n != 1 {
		t.Fatalf("expected 1 login across 3 calls, got %d", n)
	}
}

func TestGateway1ConcurrentAuthSingleLogin(t *testing.T) {
	var logins int32
	srv := newGateway1Server(t, &logins)
	g := NewGateway1(srv.URL, "dev@example.com", "secret", srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.ListTransactions(context.Background()); err != nil {
				t.Errorf("concurrent call: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt32(&logins); n != 1 {
		t.Fatalf("expected 1 login under concurrent load, got %d", n)
	}
}

func TestGateway1Refund(t *testing.T) {
	var logins int32
	srv := newGateway1Server(t, &logins)
	g := NewGateway1(srv.URL, "dev@example.com", "secret", srv.Client())

	res, err := g.Refund(context.Background(), "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExternalID != "ext-123" {
		t.Fatalf("unexpected refund external id %q", res.ExternalID)
	}
}

func TestGateway1NonSuccessStatusIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			json.NewEncoder(w).Encode(map[string]string{"token": "bearer-abc"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewGateway1(srv.URL, "dev@example.com", "secret", srv.Client())
	_, err := g.CreateTransaction(context.Background(), ChargeRequest{AmountMinor: 100})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGateway1LoginFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGateway1(srv.URL, "dev@example.com", "secret", srv.Client())
	_, err := g.ListTransactions(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGateway1TransportFailureIsUnavailable(t *testing.T) {
	g := NewGateway1("http://127.0.0.1:1", "dev@example.com", "secret", nil)
	_, err := g.CreateTransaction(context.Background(), ChargeRequest{AmountMinor: 100})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGateway1AmountSentInMinorUnits(t *testing.T) {
	var gotAmount float64
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "bearer-abc"})
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		gotAmount, _ = body["amount"].(float64)
		fmt.Fprint(w, `{"id":"x"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewGateway1(srv.URL, "dev@example.com", "secret", srv.Client())
	if _, err := g.CreateTransaction(context.Background(), ChargeRequest{AmountMinor: 56373}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAmount != 56373 {
		t.Fatalf("expected amount 56373, got %v", gotAmount)
	}
}
