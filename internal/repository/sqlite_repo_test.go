package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/harissonmatos/betalent-multigateway/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	dir := t.TempDir()
	r, err := NewSQLiteRepo(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test repo: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestGatewaysSeeded(t *testing.T) {
	r := newTestRepo(t)

	gws, err := r.ListGateways(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gws) != 2 {
		t.Fatalf("expected 2 seeded gateways, got %d", len(gws))
	}
	if gws[0].Slug != "gateway1" || gws[0].Priority != 1 {
		t.Fatalf("expected gateway1 at priority 1, got %s/%d", gws[0].Slug, gws[0].Priority)
	}
	if gws[1].Slug != "gateway2" || gws[1].Priority != 2 {
		t.Fatalf("expected gateway2 at priority 2, got %s/%d", gws[1].Slug, gws[1].Priority)
	}
}

func TestActiveGatewaysExcludesInactive(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	if _, err := r.SetGatewayActive(ctx, 1, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	active, err := r.ActiveGatewaysByPriority(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 1 || active[0].Slug != "gateway2" {
		t.Fatalf("expected only gateway2 active, got %+v", active)
	}
}

func TestSetGatewayActiveNotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.SetGatewayActive(context.Background(), 99, true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func assertDensePriorities(t *testing.T, gws []domain.Gateway) {
	t.Helper()
	prios := make([]int, 0, len(gws))
	for _, g := range gws {
		prios = append(prios, g.Priority)
	}
	sort.Ints(prios)
	for i, p := range prios {
		if p != i+1 {
			t.Fatalf("priorities not dense 1..N: %v", prios)
		}
	}
}

func TestReprioritizeMovesToFront(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	g, err := r.ReprioritizeGateway(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Priority != 1 {
		t.Fatalf("expected gateway2 at priority 1, got %d", g.Priority)
	}

	gws, _ := r.ListGateways(ctx)
	if gws[0].ID != 2 || gws[1].ID != 1 {
		t.Fatalf("unexpected ordering: %+v", gws)
	}
	assertDensePriorities(t, gws)
}

func TestReprioritizeClampsPastEnd(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	g, err := r.ReprioritizeGateway(ctx, 1, 999)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Priority != 2 {
		t.Fatalf("expected priority clamped to 2, got %d", g.Priority)
	}

	gws, _ := r.ListGateways(ctx)
	assertDensePriorities(t, gws)
}

func TestReprioritizeSequenceKeepsDenseInvariant(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	moves := []struct {
		id       int64
		priority int
	}{
		{1, 2}, {2, 2}, {1, 1}, {2, 999}, {1, 5}, {2, 1},
	}
	for _, m := range moves {
		if _, err := r.ReprioritizeGateway(ctx, m.id, m.priority); err != nil {
			t.Fatalf("reprioritize(%d, %d): %v", m.id, m.priority, err)
		}
		gws, err := r.ListGateways(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		assertDensePriorities(t, gws)
	}
}

func TestReprioritizeNotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.ReprioritizeGateway(context.Background(), 99, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFirstOrCreateClient(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	c1, err := r.FirstOrCreateClient(ctx, "maria@example.com", "Maria")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Same email again must return the same record, not create another.
	c2, err := r.FirstOrCreateClient(ctx, "maria@example.com", "Maria Silva")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c2.ID != c1.ID {
		t.Fatalf("expected same client id, got %d and %d", c1.ID, c2.ID)
	}
	if c2.Name != "Maria" {
		t.Fatalf("existing client name should be untouched, got %q", c2.Name)
	}
}

func TestCreateTransactionWithProducts(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	client, _ := r.FirstOrCreateClient(ctx, "maria@example.com", "Maria")
	p1 := &domain.Product{Name: "Produto 1", AmountMinor: 10050}
	p2 := &domain.Product{Name: "Produto 2", AmountMinor: 15441}
	if err := r.InsertProduct(ctx, p1); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if err := r.InsertProduct(ctx, p2); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	txn := &domain.Transaction{
		ClientID:        client.ID,
		AmountMinor:     56373,
		Status:          domain.StatusPending,
		CardLastNumbers: "1111",
	}
	items := []domain.TransactionProduct{
		{ProductID: p1.ID, Quantity: 1},
		{ProductID: p2.ID, Quantity: 3},
	}
	if err := r.CreateTransactionWithProducts(ctx, txn, items); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.ID == 0 {
		t.Fatal("expected transaction id to be set")
	}

	got, err := r.GetTransaction(ctx, txn.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPending || got.GatewayID != nil || got.ExternalID != nil {
		t.Fatalf("unexpected pending record: %+v", got)
	}

	lines, err := r.GetTransactionProducts(ctx, txn.ID)
	if err != nil {
		t.Fatalf("get products: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(lines))
	}
	if lines[1].Quantity != 3 {
		t.Fatalf("expected quantity 3 on second line, got %d", lines[1].Quantity)
	}
}

func TestFinalizeTransaction(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	client, _ := r.FirstOrCreateClient(ctx, "maria@example.com", "Maria")
	txn := &domain.Transaction{ClientID: client.ID, AmountMinor: 100, Status: domain.StatusPending, CardLastNumbers: "1111"}
	if err := r.CreateTransactionWithProducts(ctx, txn, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	gwID := int64(2)
	extID := "ext-789"
	if err := r.FinalizeTransaction(ctx, txn.ID, domain.StatusPaid, &gwID, &extID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	got, _ := r.GetTransaction(ctx, txn.ID)
	if got.Status != domain.StatusPaid {
		t.Fatalf("expected paid, got %s", got.Status)
	}
	if got.GatewayID == nil || *got.GatewayID != 2 {
		t.Fatalf("expected gateway id 2, got %v", got.GatewayID)
	}
	if got.ExternalID == nil || *got.ExternalID != "ext-789" {
		t.Fatalf("expected external id ext-789, got %v", got.ExternalID)
	}
}

func TestGetTransactionNotFound(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.GetTransaction(context.Background(), 123)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProductCRUD(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	p := &domain.Product{Name: "Produto", AmountMinor: 9990}
	if err := r.InsertProduct(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	p.Name = "Produto atualizado"
	p.AmountMinor = 12000
	if err := r.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Produto atualizado" || got.AmountMinor != 12000 {
		t.Fatalf("unexpected product: %+v", got)
	}

	if err := r.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.GetProduct(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListTransactionsFilterByStatus(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	client, _ := r.FirstOrCreateClient(ctx, "maria@example.com", "Maria")
	for _, status := range []domain.TxStatus{domain.StatusPaid, domain.StatusFailed, domain.StatusPaid} {
		txn := &domain.Transaction{ClientID: client.ID, AmountMinor: 100, Status: domain.StatusPending, CardLastNumbers: "1111"}
		if err := r.CreateTransactionWithProducts(ctx, txn, nil); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := r.UpdateTransactionStatus(ctx, txn.ID, status); err != nil {
			t.Fatalf("update status: %v", err)
		}
	}

	paid, err := r.ListTransactions(ctx, TxFilter{Status: domain.StatusPaid}, 20, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paid) != 2 {
		t.Fatalf("expected 2 paid transactions, got %d", len(paid))
	}
}
