package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/AxelBaudrand/Pedidos/internal/database"
)

var ErrTableNotFound = errors.New("table not found")

// TableStore defines the DB methods the table registry needs.
// Satisfied by *database.Queries.
type TableStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	SetTableOccupied(ctx context.Context, arg database.SetTableOccupiedParams) (database.Table, error)
	CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error)
}

// TableRegistry tracks seating occupancy. Occupancy is an explicit
// operation, not a side effect of order creation: a waiter seats guests
// first, then opens orders against the table.
type TableRegistry struct {
	store TableStore
}

func NewTableRegistry(store TableStore) *TableRegistry {
	return &TableRegistry{store: store}
}

// Occupy marks a table as seated. Idempotent: occupying an occupied table
// leaves it occupied.
func (r *TableRegistry) Occupy(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return r.setOccupied(ctx, id, true)
}

// Release frees a table regardless of open orders. Manual override for
// walk-outs; ReleaseIfIdle is the automatic path.
func (r *TableRegistry) Release(ctx context.Context, id uuid.UUID) (database.Table, error) {
	return r.setOccupied(ctx, id, false)
}

// IsOccupied reports whether guests are seated at the table.
func (r *TableRegistry) IsOccupied(ctx context.Context, id uuid.UUID) (bool, error) {
	table, err := r.store.GetTable(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrTableNotFound
		}
		return false, fmt.Errorf("get table: %w", err)
	}
	return table.Occupied, nil
}

// ReleaseIfIdle frees the table when no active order remains on it.
// Called after deliveries, cancellations and deletions.
func (r *TableRegistry) ReleaseIfIdle(ctx context.Context, id uuid.UUID) error {
	active, err := r.store.CountActiveOrdersByTable(ctx, id)
	if err != nil {
		return fmt.Errorf("count active orders: %w", err)
	}
	if active > 0 {
		return nil
	}
	_, err = r.setOccupied(ctx, id, false)
	return err
}

func (r *TableRegistry) setOccupied(ctx context.Context, id uuid.UUID, occupied bool) (database.Table, error) {
	table, err := r.store.SetTableOccupied(ctx, database.SetTableOccupiedParams{
		ID:       id,
		Occupied: occupied,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Table{}, ErrTableNotFound
		}
		return database.Table{}, fmt.Errorf("set table occupied: %w", err)
	}
	return table, nil
}
