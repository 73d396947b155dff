package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/AxelBaudrand/Pedidos/internal/database"
	"github.com/AxelBaudrand/Pedidos/internal/handler"
	"github.com/AxelBaudrand/Pedidos/internal/middleware"
	"github.com/AxelBaudrand/Pedidos/internal/service"
)

// --- Mock stores ---

type mockTableStore struct {
	createTableFn func(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	getTableFn    func(ctx context.Context, id uuid.UUID) (database.Table, error)
	listTablesFn  func(ctx context.Context) ([]database.Table, error)
}

func (m *mockTableStore) CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
	if m.createTableFn != nil {
		return m.createTableFn(ctx, arg)
	}
	return database.Table{}, pgx.ErrNoRows
}
func (m *mockTableStore) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	if m.getTableFn != nil {
		return m.getTableFn(ctx, id)
	}
	return database.Table{}, pgx.ErrNoRows
}
func (m *mockTableStore) ListTables(ctx context.Context) ([]database.Table, error) {
	if m.listTablesFn != nil {
		return m.listTablesFn(ctx)
	}
	return []database.Table{}, nil
}

type mockTableRegistrar struct {
	occupyFn  func(ctx context.Context, id uuid.UUID) (database.Table, error)
	releaseFn func(ctx context.Context, id uuid.UUID) (database.Table, error)
}

func (m *mockTableRegistrar) Occupy(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.occupyFn(ctx, id)
}
func (m *mockTableRegistrar) Release(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return m.releaseFn(ctx, id)
}

type mockBillComputer struct {
	tableBillFn func(ctx context.Context, tableID uuid.UUID, discountPct decimal.Decimal, split int) (*service.Bill, error)
}

func (m *mockBillComputer) TableBill(ctx context.Context, tableID uuid.UUID, discountPct decimal.Decimal, split int) (*service.Bill, error) {
	return m.tableBillFn(ctx, tableID, discountPct, split)
}

func setupTableRouter(store *mockTableStore, registry *mockTableRegistrar, bills *mockBillComputer) *chi.Mux {
	if store == nil {
		store = &mockTableStore{}
	}
	if registry == nil {
		registry = &mockTableRegistrar{}
	}
	if bills == nil {
		bills = &mockBillComputer{}
	}
	h := handler.NewTableHandler(store, registry, bills)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/tables", h.RegisterRoutes)
	return r
}

func testTable(label string, occupied bool) database.Table {
	return database.Table{ID: uuid.New(), Label: label, Occupied: occupied, CreatedAt: time.Now()}
}

// --- Tests ---

func TestOccupyHandler_Success(t *testing.T) {
	table := testTable("Mesa 4", true)
	registry := &mockTableRegistrar{
		occupyFn: func(ctx context.Context, id uuid.UUID) (database.Table, error) {
			return table, nil
		},
	}
	router := setupTableRouter(nil, registry, nil)

	rr := doAuthRequest(t, router, "POST", "/tables/"+table.ID.String()+"/occupy", nil, "WAITER")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeBody(t, rr)
	if resp["occupied"] != true {
		t.Errorf("occupied: got %v, want true", resp["occupied"])
	}
}

func TestOccupyHandler_OccupiedTableStillOK(t *testing.T) {
	table := testTable("Mesa 4", true)
	registry := &mockTableRegistrar{
		occupyFn: func(ctx context.Context, id uuid.UUID) (database.Table, error) {
			return table, nil
		},
	}
	router := setupTableRouter(nil, registry, nil)

	rr := doAuthRequest(t, router, "POST", "/tables/"+table.ID.String()+"/occupy", nil, "WAITER")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestOccupyHandler_NotFound(t *testing.T) {
	registry := &mockTableRegistrar{
		occupyFn: func(ctx context.Context, id uuid.UUID) (database.Table, error) {
			return database.Table{}, service.ErrTableNotFound
		},
	}
	router := setupTableRouter(nil, registry, nil)

	rr := doAuthRequest(t, router, "POST", "/tables/"+uuid.New().String()+"/occupy", nil, "WAITER")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestReleaseHandler_Success(t *testing.T) {
	table := testTable("Mesa 2", false)
	registry := &mockTableRegistrar{
		releaseFn: func(ctx context.Context, id uuid.UUID) (database.Table, error) {
			return table, nil
		},
	}
	router := setupTableRouter(nil, registry, nil)

	rr := doAuthRequest(t, router, "POST", "/tables/"+table.ID.String()+"/release", nil, "WAITER")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestCreateTableHandler_RequiresManagerRole(t *testing.T) {
	router := setupTableRouter(nil, nil, nil)

	rr := doAuthRequest(t, router, "POST", "/tables", map[string]string{"label": "Terraza 1"}, "WAITER")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCreateTableHandler_Success(t *testing.T) {
	store := &mockTableStore{
		createTableFn: func(ctx context.Context, arg database.CreateTableParams) (database.Table, error) {
			if arg.Label != "Terraza 1" {
				t.Fatalf("label: got %q", arg.Label)
			}
			return database.Table{ID: uuid.New(), Label: arg.Label}, nil
		},
	}
	router := setupTableRouter(store, nil, nil)

	rr := doAuthRequest(t, router, "POST", "/tables", map[string]string{"label": "Terraza 1"}, "MANAGER")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestCreateTableHandler_EmptyLabel(t *testing.T) {
	router := setupTableRouter(nil, nil, nil)

	rr := doAuthRequest(t, router, "POST", "/tables", map[string]string{"label": ""}, "MANAGER")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestBillHandler_ForwardsQueryParams(t *testing.T) {
	tableID := uuid.New()
	var gotDiscount decimal.Decimal
	var gotSplit int
	bills := &mockBillComputer{
		tableBillFn: func(ctx context.Context, id uuid.UUID, discountPct decimal.Decimal, split int) (*service.Bill, error) {
			gotDiscount = discountPct
			gotSplit = split
			return &service.Bill{
				TableID:    tableID,
				TableLabel: "Mesa 4",
				Orders:     []service.OrderBill{},
				Subtotal:   decimal.RequireFromString("31.50"),
				Total:      decimal.RequireFromString("25.20"),
				Split:      split,
				PerPerson:  decimal.RequireFromString("8.40"),
			}, nil
		},
	}
	router := setupTableRouter(nil, nil, bills)

	rr := doAuthRequest(t, router, "GET", "/tables/"+tableID.String()+"/bill?discount=20&split=3", nil, "WAITER")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if !gotDiscount.Equal(decimal.RequireFromString("20")) {
		t.Errorf("discount: got %s, want 20", gotDiscount)
	}
	if gotSplit != 3 {
		t.Errorf("split: got %d, want 3", gotSplit)
	}
	resp := decodeBody(t, rr)
	if resp["per_person"] != "8.40" {
		t.Errorf("per_person: got %v", resp["per_person"])
	}
}

func TestBillHandler_DefaultsWhenNoParams(t *testing.T) {
	var gotDiscount decimal.Decimal
	var gotSplit int
	bills := &mockBillComputer{
		tableBillFn: func(ctx context.Context, id uuid.UUID, discountPct decimal.Decimal, split int) (*service.Bill, error) {
			gotDiscount = discountPct
			gotSplit = split
			return &service.Bill{Split: split}, nil
		},
	}
	router := setupTableRouter(nil, nil, bills)

	rr := doAuthRequest(t, router, "GET", "/tables/"+uuid.New().String()+"/bill", nil, "WAITER")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if !gotDiscount.IsZero() {
		t.Errorf("discount: got %s, want 0", gotDiscount)
	}
	if gotSplit != 1 {
		t.Errorf("split: got %d, want 1", gotSplit)
	}
}

func TestBillHandler_BadParams(t *testing.T) {
	router := setupTableRouter(nil, nil, &mockBillComputer{
		tableBillFn: func(ctx context.Context, id uuid.UUID, discountPct decimal.Decimal, split int) (*service.Bill, error) {
			t.Fatal("service must not be reached")
			return nil, nil
		},
	})

	for _, q := range []string{"?discount=abc", "?split=abc"} {
		rr := doAuthRequest(t, router, "GET", "/tables/"+uuid.New().String()+"/bill"+q, nil, "WAITER")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d, want %d", q, rr.Code, http.StatusBadRequest)
		}
	}
}

func TestBillHandler_InvalidSplitFromService(t *testing.T) {
	bills := &mockBillComputer{
		tableBillFn: func(ctx context.Context, id uuid.UUID, discountPct decimal.Decimal, split int) (*service.Bill, error) {
			return nil, service.ErrInvalidSplit
		},
	}
	router := setupTableRouter(nil, nil, bills)

	rr := doAuthRequest(t, router, "GET", "/tables/"+uuid.New().String()+"/bill?split=0", nil, "WAITER")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestGetTableHandler_NotFound(t *testing.T) {
	router := setupTableRouter(nil, nil, nil)

	rr := doAuthRequest(t, router, "GET", "/tables/"+uuid.New().String(), nil, "WAITER")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}
