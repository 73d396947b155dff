package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AxelBaudrand/Pedidos/internal/database"
)

// mockTableStore implements TableStore with configurable behavior.
type mockTableStore struct {
	table        database.Table
	activeOrders int64
	setCalls     []bool
}

func (m *mockTableStore) GetTable(ctx context.Context, id uuid.UUID) (database.Table, error) {
	if id != m.table.ID {
		return database.Table{}, pgx.ErrNoRows
	}
	return m.table, nil
}

func (m *mockTableStore) SetTableOccupied(ctx context.Context, arg database.SetTableOccupiedParams) (database.Table, error) {
	if arg.ID != m.table.ID {
		return database.Table{}, pgx.ErrNoRows
	}
	m.table.Occupied = arg.Occupied
	m.setCalls = append(m.setCalls, arg.Occupied)
	return m.table, nil
}

func (m *mockTableStore) CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	return m.activeOrders, nil
}

func TestOccupy_FreeTable(t *testing.T) {
	store := &mockTableStore{table: database.Table{ID: uuid.New(), Label: "Mesa 1"}}
	registry := NewTableRegistry(store)

	table, err := registry.Occupy(context.Background(), store.table.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !table.Occupied {
		t.Fatal("expected table to be occupied")
	}
}

func TestOccupy_OccupiedTableIsNoOp(t *testing.T) {
	store := &mockTableStore{table: database.Table{ID: uuid.New(), Occupied: true}}
	registry := NewTableRegistry(store)

	table, err := registry.Occupy(context.Background(), store.table.ID)
	if err != nil {
		t.Fatalf("occupying an occupied table must succeed, got: %v", err)
	}
	if !table.Occupied {
		t.Fatal("expected table to stay occupied")
	}
}

func TestOccupy_UnknownTable(t *testing.T) {
	store := &mockTableStore{table: database.Table{ID: uuid.New()}}
	registry := NewTableRegistry(store)

	_, err := registry.Occupy(context.Background(), uuid.New())
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got: %v", err)
	}
}

func TestRelease_AlwaysFrees(t *testing.T) {
	store := &mockTableStore{table: database.Table{ID: uuid.New(), Occupied: true}, activeOrders: 3}
	registry := NewTableRegistry(store)

	table, err := registry.Release(context.Background(), store.table.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Occupied {
		t.Fatal("manual release must free the table regardless of open orders")
	}
}

func TestReleaseIfIdle_WithActiveOrders(t *testing.T) {
	store := &mockTableStore{table: database.Table{ID: uuid.New(), Occupied: true}, activeOrders: 1}
	registry := NewTableRegistry(store)

	if err := registry.ReleaseIfIdle(context.Background(), store.table.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.setCalls) != 0 {
		t.Fatal("table with active orders must not be released")
	}
}

func TestReleaseIfIdle_NoActiveOrders(t *testing.T) {
	store := &mockTableStore{table: database.Table{ID: uuid.New(), Occupied: true}, activeOrders: 0}
	registry := NewTableRegistry(store)

	if err := registry.ReleaseIfIdle(context.Background(), store.table.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.table.Occupied {
		t.Fatal("idle table must be released")
	}
}
