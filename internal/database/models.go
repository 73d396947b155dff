package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Staff is a restaurant employee able to log in and own orders.
type Staff struct {
	ID             uuid.UUID
	Username       string
	FullName       string
	HashedPassword string
	Role           string
	IsActive       bool
	CreatedAt      time.Time
}

// Table is a physical restaurant table with an occupancy flag.
type Table struct {
	ID        uuid.UUID
	Label     string
	Occupied  bool
	CreatedAt time.Time
}

// MenuItem is a dish on the menu. ExternalID links the dish to the
// external stock service; a dish without it cannot be stock-checked.
type MenuItem struct {
	ID         uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Available  bool
	ExternalID pgtype.Int4
	CreatedAt  time.Time
}

// Order is one customer order on a table, advancing through the
// lifecycle state machine.
type Order struct {
	ID             uuid.UUID
	Code           string
	TableID        uuid.UUID
	StaffID        uuid.UUID
	State          string
	KitchenNote    pgtype.Text
	DiscountPct    pgtype.Numeric
	ReservationID  pgtype.Text
	StockValidated bool
	StockConsumed  bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	SentAt         pgtype.Timestamptz
	DeliveredAt    pgtype.Timestamptz
	CancelledAt    pgtype.Timestamptz
	CancelReason   pgtype.Text
}

// OrderLine is one menu item within an order. Lines with the same
// (order, item, note) are merged rather than duplicated.
type OrderLine struct {
	ID       uuid.UUID
	OrderID  uuid.UUID
	ItemID   uuid.UUID
	Quantity int32
	Note     string
}

// OrderLineDetail joins a line with the menu item fields the engine
// needs for totals and stock submission.
type OrderLineDetail struct {
	OrderLine
	ItemName       string
	ItemPrice      pgtype.Numeric
	ItemAvailable  bool
	ItemExternalID pgtype.Int4
}
