package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/harissonmatos/betalent-multigateway/internal/config"
	httpd "github.com/harissonmatos/betalent-multigateway/internal/delivery/http"
	"github.com/harissonmatos/betalent-multigateway/internal/gateway"
	"github.com/harissonmatos/betalent-multigateway/internal/idempotency"
	"github.com/harissonmatos/betalent-multigateway/internal/repository"
	"github.com/harissonmatos/betalent-multigateway/internal/usecase"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	repo, err := repository.NewSQLiteRepo(cfg.SQLiteDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer repo.Close()

	idem, err := idempotency.New(cfg.IdempotencyDBPath)
	if err != nil {
		log.Fatalf("open idempotency store: %v", err)
	}
	defer idem.Close()

	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}

	registry := gateway.NewRegistry()
	registry.Register("gateway1", gateway.NewGateway1(cfg.Gateway1BaseURL, cfg.Gateway1Email, cfg.Gateway1Token, httpClient))
	registry.Register("gateway2", gateway.NewGateway2(cfg.Gateway2BaseURL, cfg.Gateway2AuthToken, cfg.Gateway2AuthSecret, httpClient))

	uc := usecase.NewCheckoutUsecase(repo, registry, logger)
	h := httpd.NewHandler(uc, repo, idem, logger)

	addr := ":" + cfg.AppPort
	logger.Info("server listening", "addr", addr)
	log.Fatal(http.ListenAndServe(addr, h.Routes(cfg.CORSOrigins)))
}
