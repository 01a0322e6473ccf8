package httpd

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/harissonmatos/betalent-multigateway/internal/domain"
	"github.com/harissonmatos/betalent-multigateway/internal/idempotency"
	"github.com/harissonmatos/betalent-multigateway/internal/repository"
	"github.com/harissonmatos/betalent-multigateway/internal/usecase"
)

type Handler struct {
	uc       *usecase.CheckoutUsecase
	repo     *repository.SQLiteRepo
	idem     *idempotency.Store
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(uc *usecase.CheckoutUsecase, repo *repository.SQLiteRepo, idem *idempotency.Store, logger *slog.Logger) *Handler {
	return &Handler{
		uc:       uc,
		repo:     repo,
		idem:     idem,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *Handler) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(RequestID)
	r.Use(RequestLogger(h.logger))

	r.Post("/api/v1/checkout", h.Checkout)

	r.Get("/api/v1/transactions", h.ListTransactions)
	r.Get("/api/v1/transactions/{id}", h.GetTransaction)
	r.Put("/api/v1/transactions/{id}/refund", h.Refund)

	r.Get("/api/v1/gateways", h.ListGateways)
	r.Put("/api/v1/gateways/{id}/activate", h.ActivateGateway)
	r.Put("/api/v1/gateways/{id}/deactivate", h.DeactivateGateway)
	r.Put("/api/v1/gateways/{id}/priority", h.ReprioritizeGateway)

	r.Get("/api/v1/products", h.ListProducts)
	r.Post("/api/v1/products", h.CreateProduct)
	r.Get("/api/v1/products/{id}", h.GetProduct)
	r.Put("/api/v1/products/{id}", h.UpdateProduct)
	r.Delete("/api/v1/products/{id}", h.DeleteProduct)

	r.Get("/api/v1/clients", h.ListClients)
	r.Get("/api/v1/clients/{id}", h.GetClient)

	r.Get("/api/v1/healthz", h.Healthz)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// ---- checkout ----

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A replayed checkout with the same key returns the original
	// transaction instead of charging again.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if txID, found, err := h.idem.Get(idemKey); err == nil && found {
			h.respondWithTransaction(w, r, http.StatusOK, txID)
			return
		}
	}

	items := make([]usecase.CheckoutItem, 0, len(req.Products))
	for _, p := range req.Products {
		items = append(items, usecase.CheckoutItem{ProductID: p.ID, Quantity: p.Quantity})
	}

	result, err := h.uc.Checkout(r.Context(), usecase.CheckoutInput{
		ClientName:  req.Client.Name,
		ClientEmail: req.Client.Email,
		CardNumber:  req.Payment.CardNumber,
		CVV:         req.Payment.CVV,
		Expiry:      req.Payment.Expiry,
		Items:       items,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrUnknownProduct) {
			writeError(w, http.StatusUnprocessableEntity, "product not found")
			return
		}
		h.logger.Error("checkout failed", "request_id", GetRequestID(r.Context()), "err", err)
		writeError(w, http.StatusInternalServerError, "checkout failed")
		return
	}

	if idemKey != "" {
		if err := h.idem.Put(idemKey, result.Transaction.ID); err != nil {
			h.logger.Warn("store idempotency key", "err", err)
		}
	}

	vm := toTransactionVM(result.Transaction, result.Items, result.Gateway)
	writeJSON(w, http.StatusCreated, CheckoutResp{Success: true, Transaction: vm})
}

func (h *Handler) respondWithTransaction(w http.ResponseWriter, r *http.Request, code int, txID int64) {
	t, err := h.repo.GetTransaction(r.Context(), txID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load transaction")
		return
	}
	items, _ := h.repo.GetTransactionProducts(r.Context(), t.ID)
	var gw *domain.Gateway
	if t.GatewayID != nil {
		gw, _ = h.repo.GetGateway(r.Context(), *t.GatewayID)
	}
	writeJSON(w, code, CheckoutResp{Success: true, Transaction: toTransactionVM(*t, items, gw)})
}

// ---- transactions ----

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repository.TxFilter{}
	if st := q.Get("status"); st != "" {
		filter.Status = domain.TxStatus(st)
	}
	if v := q.Get("clientId"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ClientID = n
		}
	}

	limit, offset := parsePage(q.Get("limit"), q.Get("offset"))

	items, err := h.repo.ListTransactions(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]TransactionVM, 0, len(items))
	for _, t := range items {
		out = append(out, toTransactionVM(t, nil, nil))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := h.repo.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}

	items, _ := h.repo.GetTransactionProducts(r.Context(), t.ID)
	var gw *domain.Gateway
	if t.GatewayID != nil {
		gw, _ = h.repo.GetGateway(r.Context(), *t.GatewayID)
	}
	writeJSON(w, http.StatusOK, toTransactionVM(*t, items, gw))
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	t, err := h.uc.Refund(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "transaction not found")
		case errors.Is(err, usecase.ErrInvalidState):
			writeError(w, http.StatusUnprocessableEntity, "transaction cannot be refunded")
		case errors.Is(err, usecase.ErrGatewayInactive):
			writeError(w, http.StatusUnprocessableEntity, "gateway unavailable for refund")
		default:
			writeError(w, http.StatusInternalServerError, "failed to process refund with gateway")
		}
		return
	}

	items, _ := h.repo.GetTransactionProducts(r.Context(), t.ID)
	var gw *domain.Gateway
	if t.GatewayID != nil {
		gw, _ = h.repo.GetGateway(r.Context(), *t.GatewayID)
	}
	writeJSON(w, http.StatusOK, toTransactionVM(*t, items, gw))
}

// ---- gateways ----

func (h *Handler) ListGateways(w http.ResponseWriter, r *http.Request) {
	gws, err := h.repo.ListGateways(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]GatewayVM, 0, len(gws))
	for _, g := range gws {
		out = append(out, toGatewayVM(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ActivateGateway(w http.ResponseWriter, r *http.Request) {
	h.setGatewayActive(w, r, true)
}

func (h *Handler) DeactivateGateway(w http.ResponseWriter, r *http.Request) {
	h.setGatewayActive(w, r, false)
}

func (h *Handler) setGatewayActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	g, err := h.repo.SetGatewayActive(r.Context(), id, active)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "gateway not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toGatewayVM(*g))
}

func (h *Handler) ReprioritizeGateway(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req PriorityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.repo.ReprioritizeGateway(r.Context(), id, req.Priority)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "gateway not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toGatewayVM(*g))
}

// ---- products ----

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))

	products, err := h.repo.ListProducts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]ProductVM, 0, len(products))
	for _, p := range products {
		out = append(out, toProductVM(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amountMinor, err := parseAmountToMinor(req.Amount)
	if err != nil || amountMinor <= 0 {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	p := &domain.Product{Name: req.Name, AmountMinor: amountMinor}
	if err := h.repo.InsertProduct(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toProductVM(*p))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	p, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, toProductVM(*p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req ProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amountMinor, err := parseAmountToMinor(req.Amount)
	if err != nil || amountMinor <= 0 {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	p := &domain.Product{ID: id, Name: req.Name, AmountMinor: amountMinor}
	if err := h.repo.UpdateProduct(r.Context(), p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updated, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toProductVM(*updated))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.repo.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "product removed"})
}

// ---- clients ----

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePage(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))

	clients, err := h.repo.ListClients(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]ClientVM, 0, len(clients))
	for _, c := range clients {
		out = append(out, ClientVM{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	c, err := h.repo.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}

	txs, err := h.repo.ListTransactions(r.Context(), repository.TxFilter{ClientID: c.ID}, 50, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	vm := ClientVM{ID: c.ID, Name: c.Name, Email: c.Email, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
	for _, t := range txs {
		vm.Transactions = append(vm.Transactions, toTransactionVM(t, nil, nil))
	}
	writeJSON(w, http.StatusOK, vm)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---- helpers ----

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parsePage(limitStr, offsetStr string) (int, int) {
	limit := 20
	offset := 0
	if limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if offsetStr != "" {
		if n, err := strconv.Atoi(offsetStr); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func toTransactionVM(t domain.Transaction, items []domain.TransactionProduct, gw *domain.Gateway) TransactionVM {
	vm := TransactionVM{
		ID:              t.ID,
		ClientID:        t.ClientID,
		GatewayID:       t.GatewayID,
		ExternalID:      t.ExternalID,
		Amount:          formatMinorToString(t.AmountMinor),
		Status:          string(t.Status),
		CardLastNumbers: t.CardLastNumbers,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if gw != nil {
		g := toGatewayVM(*gw)
		vm.Gateway = &g
	}
	for _, item := range items {
		vm.Products = append(vm.Products, LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return vm
}

func toGatewayVM(g domain.Gateway) GatewayVM {
	return GatewayVM{ID: g.ID, Name: g.Name, Slug: g.Slug, Priority: g.Priority, IsActive: g.IsActive}
}

func toProductVM(p domain.Product) ProductVM {
	return ProductVM{
		ID:        p.ID,
		Name:      p.Name,
		Amount:    formatMinorToString(p.AmountMinor),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// parseAmountToMinor converts a decimal string like "100.50" to integer
// minor units without going through floating point.
func parseAmountToMinor(value string) (int64, error) {
	r := new(big.Rat)
	_, ok := r.SetString(value)
	if !ok {
		return 0, errors.New("invalid amount format")
	}

	r.Mul(r, big.NewRat(100, 1))
	i := new(big.Int)
	i.Div(r.Num(), r.Denom())

	return i.Int64(), nil
}

func formatMinorToString(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}

	intPart := minor / 100
	decPart := minor % 100
	return sign + strconv.FormatInt(intPart, 10) + "." + twoDigits(int(decPart))
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
