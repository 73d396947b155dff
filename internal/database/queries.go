package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Staff ---

const getStaffByUsername = `
SELECT id, username, full_name, hashed_password, role, is_active, created_at
FROM staff
WHERE username = $1 AND is_active = true
`

func (q *Queries) GetStaffByUsername(ctx context.Context, username string) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByUsername, username)
	var s Staff
	err := row.Scan(&s.ID, &s.Username, &s.FullName, &s.HashedPassword, &s.Role, &s.IsActive, &s.CreatedAt)
	return s, err
}

const getStaffByID = `
SELECT id, username, full_name, hashed_password, role, is_active, created_at
FROM staff
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetStaffByID(ctx context.Context, id uuid.UUID) (Staff, error) {
	row := q.db.QueryRow(ctx, getStaffByID, id)
	var s Staff
	err := row.Scan(&s.ID, &s.Username, &s.FullName, &s.HashedPassword, &s.Role, &s.IsActive, &s.CreatedAt)
	return s, err
}

// --- Tables ---

const createTable = `
INSERT INTO tables (label, occupied)
VALUES ($1, $2)
RETURNING id, label, occupied, created_at
`

type CreateTableParams struct {
	Label    string
	Occupied bool
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, createTable, arg.Label, arg.Occupied)
	var t Table
	err := row.Scan(&t.ID, &t.Label, &t.Occupied, &t.CreatedAt)
	return t, err
}

const getTable = `
SELECT id, label, occupied, created_at
FROM tables
WHERE id = $1
`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	var t Table
	err := row.Scan(&t.ID, &t.Label, &t.Occupied, &t.CreatedAt)
	return t, err
}

const listTables = `
SELECT id, label, occupied, created_at
FROM tables
ORDER BY label
`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Label, &t.Occupied, &t.CreatedAt); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

const setTableOccupied = `
UPDATE tables
SET occupied = $2
WHERE id = $1
RETURNING id, label, occupied, created_at
`

type SetTableOccupiedParams struct {
	ID       uuid.UUID
	Occupied bool
}

func (q *Queries) SetTableOccupied(ctx context.Context, arg SetTableOccupiedParams) (Table, error) {
	row := q.db.QueryRow(ctx, setTableOccupied, arg.ID, arg.Occupied)
	var t Table
	err := row.Scan(&t.ID, &t.Label, &t.Occupied, &t.CreatedAt)
	return t, err
}

// --- Menu items ---

const createMenuItem = `
INSERT INTO menu_items (name, price, available, external_id)
VALUES ($1, $2, $3, $4)
RETURNING id, name, price, available, external_id, created_at
`

type CreateMenuItemParams struct {
	Name       string
	Price      pgtype.Numeric
	Available  bool
	ExternalID pgtype.Int4
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem, arg.Name, arg.Price, arg.Available, arg.ExternalID)
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.ExternalID, &m.CreatedAt)
	return m, err
}

const getMenuItem = `
SELECT id, name, price, available, external_id, created_at
FROM menu_items
WHERE id = $1
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, id)
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.ExternalID, &m.CreatedAt)
	return m, err
}

const listMenuItems = `
SELECT id, name, price, available, external_id, created_at
FROM menu_items
ORDER BY name
`

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		var m MenuItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.ExternalID, &m.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, price = $3, available = $4, external_id = $5
WHERE id = $1
RETURNING id, name, price, available, external_id, created_at
`

type UpdateMenuItemParams struct {
	ID         uuid.UUID
	Name       string
	Price      pgtype.Numeric
	Available  bool
	ExternalID pgtype.Int4
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem, arg.ID, arg.Name, arg.Price, arg.Available, arg.ExternalID)
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Price, &m.Available, &m.ExternalID, &m.CreatedAt)
	return m, err
}

const deleteMenuItem = `
DELETE FROM menu_items
WHERE id = $1
`

// DeleteMenuItem removes a dish. The order_lines FK is RESTRICT, so a dish
// still referenced by any order line fails with a 23503 foreign key error.
func (q *Queries) DeleteMenuItem(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteMenuItem, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// --- Orders ---

const getNextOrderNumber = `
SELECT nextval('order_code_seq')
`

func (q *Queries) GetNextOrderNumber(ctx context.Context) (int64, error) {
	row := q.db.QueryRow(ctx, getNextOrderNumber)
	var n int64
	err := row.Scan(&n)
	return n, err
}

const orderColumns = `id, code, table_id, staff_id, state, kitchen_note, discount_pct,
	reservation_id, stock_validated, stock_consumed,
	created_at, updated_at, sent_at, delivered_at, cancelled_at, cancel_reason`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.Code, &o.TableID, &o.StaffID, &o.State, &o.KitchenNote, &o.DiscountPct,
		&o.ReservationID, &o.StockValidated, &o.StockConsumed,
		&o.CreatedAt, &o.UpdatedAt, &o.SentAt, &o.DeliveredAt, &o.CancelledAt, &o.CancelReason,
	)
	return o, err
}

const createOrder = `
INSERT INTO orders (code, table_id, staff_id, state, kitchen_note, discount_pct)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	Code        string
	TableID     uuid.UUID
	StaffID     uuid.UUID
	State       string
	KitchenNote pgtype.Text
	DiscountPct pgtype.Numeric
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.Code, arg.TableID, arg.StaffID, arg.State, arg.KitchenNote, arg.DiscountPct)
	return scanOrder(row)
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
ORDER BY created_at DESC
LIMIT $1 OFFSET $2
`

type ListOrdersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const listOrdersByTable = `
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1
ORDER BY created_at
`

func (q *Queries) ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByTable, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

const listDeliveredOrdersByTable = `
SELECT ` + orderColumns + `
FROM orders
WHERE table_id = $1 AND state = 'DELIVERED'
ORDER BY created_at
`

func (q *Queries) ListDeliveredOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listDeliveredOrdersByTable, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const countActiveOrdersByTable = `
SELECT count(*)
FROM orders
WHERE table_id = $1 AND state NOT IN ('DELIVERED', 'CANCELLED')
`

// CountActiveOrdersByTable counts orders still in flight for a table.
// A table is released when this drops to zero.
func (q *Queries) CountActiveOrdersByTable(ctx context.Context, tableID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countActiveOrdersByTable, tableID)
	var n int64
	err := row.Scan(&n)
	return n, err
}

// Guarded state transitions. Each UPDATE carries the expected current state
// in the WHERE clause so concurrent transitions on the same order cannot
// both succeed; zero rows updated surfaces as pgx.ErrNoRows.

const markStockValidated = `
UPDATE orders
SET state = $3, reservation_id = $4, stock_validated = true, updated_at = now()
WHERE id = $1 AND state = $2
RETURNING ` + orderColumns

type MarkStockValidatedParams struct {
	ID            uuid.UUID
	FromState     string
	ToState       string
	ReservationID pgtype.Text
}

func (q *Queries) MarkStockValidated(ctx context.Context, arg MarkStockValidatedParams) (Order, error) {
	row := q.db.QueryRow(ctx, markStockValidated, arg.ID, arg.FromState, arg.ToState, arg.ReservationID)
	return scanOrder(row)
}

const markStockConsumed = `
UPDATE orders
SET stock_consumed = true, updated_at = now()
WHERE id = $1 AND state = $2
RETURNING ` + orderColumns

type MarkStockConsumedParams struct {
	ID        uuid.UUID
	FromState string
}

func (q *Queries) MarkStockConsumed(ctx context.Context, arg MarkStockConsumedParams) (Order, error) {
	row := q.db.QueryRow(ctx, markStockConsumed, arg.ID, arg.FromState)
	return scanOrder(row)
}

const markSentToKitchen = `
UPDATE orders
SET state = $3, sent_at = now(), updated_at = now()
WHERE id = $1 AND state = $2
RETURNING ` + orderColumns

type MarkSentToKitchenParams struct {
	ID        uuid.UUID
	FromState string
	ToState   string
}

func (q *Queries) MarkSentToKitchen(ctx context.Context, arg MarkSentToKitchenParams) (Order, error) {
	row := q.db.QueryRow(ctx, markSentToKitchen, arg.ID, arg.FromState, arg.ToState)
	return scanOrder(row)
}

const updateOrderState = `
UPDATE orders
SET state = $3, updated_at = now()
WHERE id = $1 AND state = $2
RETURNING ` + orderColumns

type UpdateOrderStateParams struct {
	ID        uuid.UUID
	FromState string
	ToState   string
}

func (q *Queries) UpdateOrderState(ctx context.Context, arg UpdateOrderStateParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderState, arg.ID, arg.FromState, arg.ToState)
	return scanOrder(row)
}

const markDelivered = `
UPDATE orders
SET state = $3, delivered_at = now(), updated_at = now()
WHERE id = $1 AND state = $2
RETURNING ` + orderColumns

type MarkDeliveredParams struct {
	ID        uuid.UUID
	FromState string
	ToState   string
}

func (q *Queries) MarkDelivered(ctx context.Context, arg MarkDeliveredParams) (Order, error) {
	row := q.db.QueryRow(ctx, markDelivered, arg.ID, arg.FromState, arg.ToState)
	return scanOrder(row)
}

const cancelOrder = `
UPDATE orders
SET state = $3, cancelled_at = now(), cancel_reason = $4, updated_at = now()
WHERE id = $1 AND state = $2
RETURNING ` + orderColumns

type CancelOrderParams struct {
	ID           uuid.UUID
	FromState    string
	ToState      string
	CancelReason pgtype.Text
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.FromState, arg.ToState, arg.CancelReason)
	return scanOrder(row)
}

const overrideOrderState = `
UPDATE orders
SET state = $2,
    delivered_at = CASE WHEN $2 = 'DELIVERED' AND delivered_at IS NULL THEN now() ELSE delivered_at END,
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type OverrideOrderStateParams struct {
	ID    uuid.UUID
	State string
}

// OverrideOrderState applies a state unconditionally. Recovery escape hatch;
// callers are expected to log its use separately from guarded transitions.
func (q *Queries) OverrideOrderState(ctx context.Context, arg OverrideOrderStateParams) (Order, error) {
	row := q.db.QueryRow(ctx, overrideOrderState, arg.ID, arg.State)
	return scanOrder(row)
}

const deleteOrder = `
DELETE FROM orders
WHERE id = $1
`

// DeleteOrder removes the order record; lines cascade with it.
func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// --- Order lines ---

const createOrderLine = `
INSERT INTO order_lines (order_id, item_id, quantity, note)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, item_id, quantity, note
`

type CreateOrderLineParams struct {
	OrderID  uuid.UUID
	ItemID   uuid.UUID
	Quantity int32
	Note     string
}

func (q *Queries) CreateOrderLine(ctx context.Context, arg CreateOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, createOrderLine, arg.OrderID, arg.ItemID, arg.Quantity, arg.Note)
	var l OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Quantity, &l.Note)
	return l, err
}

const getOrderLine = `
SELECT id, order_id, item_id, quantity, note
FROM order_lines
WHERE id = $1 AND order_id = $2
`

type GetOrderLineParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) GetOrderLine(ctx context.Context, arg GetOrderLineParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, getOrderLine, arg.ID, arg.OrderID)
	var l OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Quantity, &l.Note)
	return l, err
}

const getOrderLineByItemNote = `
SELECT id, order_id, item_id, quantity, note
FROM order_lines
WHERE order_id = $1 AND item_id = $2 AND note = $3
`

type GetOrderLineByItemNoteParams struct {
	OrderID uuid.UUID
	ItemID  uuid.UUID
	Note    string
}

func (q *Queries) GetOrderLineByItemNote(ctx context.Context, arg GetOrderLineByItemNoteParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, getOrderLineByItemNote, arg.OrderID, arg.ItemID, arg.Note)
	var l OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Quantity, &l.Note)
	return l, err
}

const updateOrderLineQuantity = `
UPDATE order_lines
SET quantity = $2
WHERE id = $1
RETURNING id, order_id, item_id, quantity, note
`

type UpdateOrderLineQuantityParams struct {
	ID       uuid.UUID
	Quantity int32
}

func (q *Queries) UpdateOrderLineQuantity(ctx context.Context, arg UpdateOrderLineQuantityParams) (OrderLine, error) {
	row := q.db.QueryRow(ctx, updateOrderLineQuantity, arg.ID, arg.Quantity)
	var l OrderLine
	err := row.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Quantity, &l.Note)
	return l, err
}

const deleteOrderLine = `
DELETE FROM order_lines
WHERE id = $1 AND order_id = $2
`

type DeleteOrderLineParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) DeleteOrderLine(ctx context.Context, arg DeleteOrderLineParams) error {
	tag, err := q.db.Exec(ctx, deleteOrderLine, arg.ID, arg.OrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const listOrderLineDetails = `
SELECT l.id, l.order_id, l.item_id, l.quantity, l.note,
       m.name, m.price, m.available, m.external_id
FROM order_lines l
JOIN menu_items m ON m.id = l.item_id
WHERE l.order_id = $1
ORDER BY m.name, l.note
`

// ListOrderLineDetails returns an order's lines joined with the menu item
// fields needed for totals and stock submission.
func (q *Queries) ListOrderLineDetails(ctx context.Context, orderID uuid.UUID) ([]OrderLineDetail, error) {
	rows, err := q.db.Query(ctx, listOrderLineDetails, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []OrderLineDetail
	for rows.Next() {
		var d OrderLineDetail
		if err := rows.Scan(
			&d.ID, &d.OrderID, &d.ItemID, &d.Quantity, &d.Note,
			&d.ItemName, &d.ItemPrice, &d.ItemAvailable, &d.ItemExternalID,
		); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
