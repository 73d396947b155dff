package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/AxelBaudrand/Pedidos/internal/database"
	"github.com/AxelBaudrand/Pedidos/internal/enum"
	"github.com/AxelBaudrand/Pedidos/internal/kitchen"
	"github.com/AxelBaudrand/Pedidos/internal/stock"
)

const (
	maxOrderCodeRetries = 3

	minLineQuantity = 1
	maxLineQuantity = 20
)

// Errors returned by the order lifecycle engine.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("menu item not found")
	ErrLineNotFound      = errors.New("order line not found")
	ErrTableNotOccupied  = errors.New("table is not occupied")
	ErrEmptyOrder        = errors.New("order has no lines")
	ErrInvalidQuantity   = errors.New("quantity must be between 1 and 20")
	ErrQuantityLimit     = errors.New("merged quantity would exceed 20")
	ErrItemUnavailable   = errors.New("menu item is not available")
	ErrInvalidState      = errors.New("operation not allowed in current order state")
	ErrUnknownState      = errors.New("unknown order state")
	ErrInvalidDiscount   = errors.New("discount must be between 0 and 100")
	ErrStateConflict     = errors.New("order state changed concurrently, retry")
	ErrMissingExternalID = errors.New("menu items missing stock service id")

	// ErrStockConsume marks the partial-failure window after a successful
	// reservation: the order stays STOCK_PENDING and the caller must retry
	// the submit or cancel (which releases the reservation).
	ErrStockConsume = errors.New("stock consume failed")

	// ErrKitchenNotify marks the known compensation gap: stock is consumed
	// but the kitchen never heard about the order. Operators reconcile
	// manually; retrying the submit only repeats the notification.
	ErrKitchenNotify = errors.New("kitchen notification failed")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods the lifecycle engine needs.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)

	GetNextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	CreateOrderLine(ctx context.Context, arg database.CreateOrderLineParams) (database.OrderLine, error)
	GetOrderLineByItemNote(ctx context.Context, arg database.GetOrderLineByItemNoteParams) (database.OrderLine, error)
	UpdateOrderLineQuantity(ctx context.Context, arg database.UpdateOrderLineQuantityParams) (database.OrderLine, error)
	DeleteOrderLine(ctx context.Context, arg database.DeleteOrderLineParams) error
	ListOrderLineDetails(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineDetail, error)

	MarkStockValidated(ctx context.Context, arg database.MarkStockValidatedParams) (database.Order, error)
	MarkStockConsumed(ctx context.Context, arg database.MarkStockConsumedParams) (database.Order, error)
	MarkSentToKitchen(ctx context.Context, arg database.MarkSentToKitchenParams) (database.Order, error)
	UpdateOrderState(ctx context.Context, arg database.UpdateOrderStateParams) (database.Order, error)
	MarkDelivered(ctx context.Context, arg database.MarkDeliveredParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	OverrideOrderState(ctx context.Context, arg database.OverrideOrderStateParams) (database.Order, error)

	ListDeliveredOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx), so the
// engine can bind store instances to transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// StockClient is the slice of the stock service the engine uses.
// Satisfied by *stock.Client.
type StockClient interface {
	ValidateReserve(ctx context.Context, items []stock.Item) (*stock.Reservation, error)
	Consume(ctx context.Context, orderID string, items []stock.Item) error
	Release(ctx context.Context, items []stock.Item) error
}

// KitchenNotifier is the slice of the kitchen service the engine uses.
// Satisfied by *kitchen.Notifier.
type KitchenNotifier interface {
	NotifyNewOrder(ctx context.Context, ticket kitchen.Ticket) error
	ConfirmDelivery(ctx context.Context, orderID string) error
}

// Event types published on lifecycle transitions.
const (
	EventOrderCreated      = "order_created"
	EventOrderStateChanged = "order_state_changed"
	EventOrderCancelled    = "order_cancelled"
	EventOrderDelivered    = "order_delivered"
)

// OrderEvent is a lifecycle notification for connected dashboards.
type OrderEvent struct {
	Type  string
	Order database.Order
}

// Publisher receives lifecycle events. Satisfied by the ws hub adapter;
// tests use a capture double. A nil Publisher disables publishing.
type Publisher interface {
	PublishOrderEvent(evt OrderEvent)
}

// Options tunes the engine.
type Options struct {
	// StrictSubmit splits kitchen submission in two: the first call only
	// validates and reserves stock, a second call consumes it and notifies
	// the kitchen. When false the whole chain runs in a single call.
	StrictSubmit bool
}

// OrderService is the order lifecycle engine. It owns every state
// transition and the external side effects around them.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	stock    StockClient
	kitchen  KitchenNotifier
	tables   *TableRegistry
	pub      Publisher
	strict   bool
}

// NewOrderService creates the lifecycle engine. All collaborators are
// injected so tests can substitute doubles. store serves single-statement
// operations; newStore binds stores to transactions.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, stockClient StockClient, kitchenNotifier KitchenNotifier, tables *TableRegistry, pub Publisher, opts Options) *OrderService {
	return &OrderService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		stock:    stockClient,
		kitchen:  kitchenNotifier,
		tables:   tables,
		pub:      pub,
		strict:   opts.StrictSubmit,
	}
}

func (s *OrderService) publish(eventType string, o database.Order) {
	if s.pub != nil {
		s.pub.PublishOrderEvent(OrderEvent{Type: eventType, Order: o})
	}
}

// --- Create ---

// CreateOrderRequest is the validated input for opening a new order.
type CreateOrderRequest struct {
	TableID     uuid.UUID
	StaffID     uuid.UUID
	KitchenNote string
	DiscountPct string
}

// CreateOrder opens a DRAFT order on an occupied table and assigns its
// permanent code. Retries on code unique-constraint races.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	discount := decimal.Zero
	if req.DiscountPct != "" {
		d, err := decimal.NewFromString(req.DiscountPct)
		if err != nil || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(100)) {
			return database.Order{}, ErrInvalidDiscount
		}
		discount = d
	}

	occupied, err := s.tables.IsOccupied(ctx, req.TableID)
	if err != nil {
		return database.Order{}, err
	}
	if !occupied {
		return database.Order{}, ErrTableNotOccupied
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderCodeRetries; attempt++ {
		order, err := s.createOrderTx(ctx, req, discount)
		if err == nil {
			s.publish(EventOrderCreated, order)
			return order, nil
		}
		if isOrderCodeConflict(err) {
			lastErr = err
			continue
		}
		return database.Order{}, err
	}
	return database.Order{}, lastErr
}

func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest, discount decimal.Decimal) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	next, err := store.GetNextOrderNumber(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("get next order number: %w", err)
	}
	code := fmt.Sprintf("PED-%03d-%s", next, time.Now().Format("20060102"))

	note := pgtype.Text{}
	if req.KitchenNote != "" {
		note = pgtype.Text{String: req.KitchenNote, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		Code:        code,
		TableID:     req.TableID,
		StaffID:     req.StaffID,
		State:       enum.OrderStateDraft,
		KitchenNote: note,
		DiscountPct: decimalToNumeric(discount),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// isOrderCodeConflict checks for a unique constraint violation on the order
// code (pgconn error code 23505): concurrent creates racing the sequence date.
func isOrderCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_code_key"
	}
	return false
}

// --- Lines ---

// AddLineRequest adds one dish to a draft order.
type AddLineRequest struct {
	ItemID   uuid.UUID
	Quantity int32
	Note     string
}

// AddLine appends a dish to a DRAFT order, merging into an existing line
// with the same (item, note). Note comparison is exact; no normalization.
// A merge that would push the quantity past the per-line cap is rejected
// whole, leaving the existing line untouched.
func (s *OrderService) AddLine(ctx context.Context, orderID uuid.UUID, req AddLineRequest) (database.OrderLine, error) {
	if req.Quantity < minLineQuantity || req.Quantity > maxLineQuantity {
		return database.OrderLine{}, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.OrderLine{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderLine{}, ErrOrderNotFound
		}
		return database.OrderLine{}, fmt.Errorf("get order: %w", err)
	}
	if order.State != enum.OrderStateDraft {
		return database.OrderLine{}, ErrInvalidState
	}

	item, err := store.GetMenuItem(ctx, req.ItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.OrderLine{}, ErrItemNotFound
		}
		return database.OrderLine{}, fmt.Errorf("get menu item: %w", err)
	}
	if !item.Available {
		return database.OrderLine{}, fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
	}

	var line database.OrderLine
	existing, err := store.GetOrderLineByItemNote(ctx, database.GetOrderLineByItemNoteParams{
		OrderID: orderID,
		ItemID:  req.ItemID,
		Note:    req.Note,
	})
	switch {
	case err == nil:
		merged := existing.Quantity + req.Quantity
		if merged > maxLineQuantity {
			return database.OrderLine{}, ErrQuantityLimit
		}
		line, err = store.UpdateOrderLineQuantity(ctx, database.UpdateOrderLineQuantityParams{
			ID:       existing.ID,
			Quantity: merged,
		})
		if err != nil {
			return database.OrderLine{}, fmt.Errorf("merge order line: %w", err)
		}
	case errors.Is(err, pgx.ErrNoRows):
		line, err = store.CreateOrderLine(ctx, database.CreateOrderLineParams{
			OrderID:  orderID,
			ItemID:   req.ItemID,
			Quantity: req.Quantity,
			Note:     req.Note,
		})
		if err != nil {
			return database.OrderLine{}, fmt.Errorf("create order line: %w", err)
		}
	default:
		return database.OrderLine{}, fmt.Errorf("find existing line: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.OrderLine{}, fmt.Errorf("commit tx: %w", err)
	}
	return line, nil
}

// RemoveLine drops a line from a DRAFT order.
func (s *OrderService) RemoveLine(ctx context.Context, orderID, lineID uuid.UUID) error {
	store := s.store

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	if order.State != enum.OrderStateDraft {
		return ErrInvalidState
	}

	err = store.DeleteOrderLine(ctx, database.DeleteOrderLineParams{ID: lineID, OrderID: orderID})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrLineNotFound
	}
	return err
}

// --- Submit ---

// SubmitToKitchen drives an order toward the kitchen. From DRAFT it
// validates and reserves stock; from STOCK_PENDING it consumes the
// reservation and notifies the kitchen. In strict mode the two phases
// always take separate calls; otherwise one call runs the whole chain.
//
// Failure semantics per phase:
//   - validation failure leaves the order in DRAFT, untouched;
//   - consume failure leaves it STOCK_PENDING (reservation alive) and
//     returns ErrStockConsume: retry the submit or cancel;
//   - notify failure leaves it STOCK_PENDING with stock consumed and
//     returns ErrKitchenNotify so operators can reconcile.
func (s *OrderService) SubmitToKitchen(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	store := s.store

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}

	details, err := store.ListOrderLineDetails(ctx, orderID)
	if err != nil {
		return database.Order{}, fmt.Errorf("list order lines: %w", err)
	}

	switch order.State {
	case enum.OrderStateDraft:
		if len(details) == 0 {
			return database.Order{}, ErrEmptyOrder
		}
		order, err = s.validateAndReserve(ctx, store, order, details)
		if err != nil {
			return database.Order{}, err
		}
		if s.strict {
			return order, nil
		}
		return s.consumeAndNotify(ctx, store, order, details)
	case enum.OrderStateStockPending:
		return s.consumeAndNotify(ctx, store, order, details)
	default:
		return database.Order{}, ErrInvalidState
	}
}

// validateAndReserve runs the stock validation phase: DRAFT → STOCK_PENDING.
func (s *OrderService) validateAndReserve(ctx context.Context, store OrderStore, order database.Order, details []database.OrderLineDetail) (database.Order, error) {
	items, missing := stockItems(details)
	if len(missing) > 0 {
		return database.Order{}, fmt.Errorf("%w: %s", ErrMissingExternalID, strings.Join(missing, ", "))
	}

	res, err := s.stock.ValidateReserve(ctx, items)
	if err != nil {
		// Order untouched: the waiter can adjust lines or cancel.
		return database.Order{}, err
	}

	reservation := pgtype.Text{}
	if res.ReservationID != "" {
		reservation = pgtype.Text{String: res.ReservationID, Valid: true}
	}

	updated, err := store.MarkStockValidated(ctx, database.MarkStockValidatedParams{
		ID:            order.ID,
		FromState:     enum.OrderStateDraft,
		ToState:       enum.OrderStateStockPending,
		ReservationID: reservation,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStateConflict
		}
		return database.Order{}, fmt.Errorf("mark stock validated: %w", err)
	}

	s.publish(EventOrderStateChanged, updated)
	return updated, nil
}

// consumeAndNotify runs the confirmation phase: STOCK_PENDING → IN_KITCHEN.
func (s *OrderService) consumeAndNotify(ctx context.Context, store OrderStore, order database.Order, details []database.OrderLineDetail) (database.Order, error) {
	items, missing := stockItems(details)
	if len(missing) > 0 {
		return database.Order{}, fmt.Errorf("%w: %s", ErrMissingExternalID, strings.Join(missing, ", "))
	}

	if !order.StockConsumed {
		if err := s.stock.Consume(ctx, order.ID.String(), items); err != nil {
			return database.Order{}, fmt.Errorf("%w: %w", ErrStockConsume, err)
		}
		updated, err := store.MarkStockConsumed(ctx, database.MarkStockConsumedParams{
			ID:        order.ID,
			FromState: enum.OrderStateStockPending,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return database.Order{}, ErrStateConflict
			}
			return database.Order{}, fmt.Errorf("mark stock consumed: %w", err)
		}
		order = updated
	}

	table, err := store.GetTable(ctx, order.TableID)
	if err != nil {
		return database.Order{}, fmt.Errorf("get table: %w", err)
	}

	if err := s.kitchen.NotifyNewOrder(ctx, buildTicket(order, table, details)); err != nil {
		return database.Order{}, fmt.Errorf("%w: %w", ErrKitchenNotify, err)
	}

	updated, err := store.MarkSentToKitchen(ctx, database.MarkSentToKitchenParams{
		ID:        order.ID,
		FromState: enum.OrderStateStockPending,
		ToState:   enum.OrderStateInKitchen,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStateConflict
		}
		return database.Order{}, fmt.Errorf("mark sent to kitchen: %w", err)
	}

	s.publish(EventOrderStateChanged, updated)
	return updated, nil
}

// stockItems projects line details into stock service items, collecting the
// names of dishes that lack an external id.
func stockItems(details []database.OrderLineDetail) ([]stock.Item, []string) {
	var items []stock.Item
	var missing []string
	for _, d := range details {
		if !d.ItemExternalID.Valid {
			missing = append(missing, d.ItemName)
			continue
		}
		items = append(items, stock.Item{
			DishID:   d.ItemExternalID.Int32,
			Quantity: d.Quantity,
		})
	}
	return items, missing
}

// buildTicket projects an order into the read-only snapshot the kitchen
// sees: table label, dish names, quantities, notes. Nothing else leaks.
func buildTicket(order database.Order, table database.Table, details []database.OrderLineDetail) kitchen.Ticket {
	lines := make([]kitchen.TicketLine, len(details))
	for i, d := range details {
		lines[i] = kitchen.TicketLine{
			Name:     d.ItemName,
			Quantity: d.Quantity,
			Note:     d.Note,
		}
	}
	return kitchen.Ticket{
		OrderID: order.ID.String(),
		Table:   table.Label,
		Lines:   lines,
	}
}

// --- Cancel / delete ---

// Cancel aborts an order before the kitchen has seen it. A live stock
// reservation is released best-effort: a failed release is logged and the
// cancellation proceeds (a leaked reservation beats a stuck order).
func (s *OrderService) Cancel(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error) {
	store := s.store

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.State != enum.OrderStateDraft && order.State != enum.OrderStateStockPending {
		return database.Order{}, ErrInvalidState
	}

	if order.StockValidated && !order.StockConsumed {
		details, err := store.ListOrderLineDetails(ctx, orderID)
		if err != nil {
			return database.Order{}, fmt.Errorf("list order lines: %w", err)
		}
		items, _ := stockItems(details)
		if len(items) > 0 {
			if err := s.stock.Release(ctx, items); err != nil {
				log.Printf("WARN: release reservation for order %s: %v", order.Code, err)
			}
		}
	}

	cancelReason := pgtype.Text{}
	if reason != "" {
		cancelReason = pgtype.Text{String: reason, Valid: true}
	}

	cancelled, err := store.CancelOrder(ctx, database.CancelOrderParams{
		ID:           orderID,
		FromState:    order.State,
		ToState:      enum.OrderStateCancelled,
		CancelReason: cancelReason,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStateConflict
		}
		return database.Order{}, fmt.Errorf("cancel order: %w", err)
	}

	if err := s.tables.ReleaseIfIdle(ctx, cancelled.TableID); err != nil {
		log.Printf("WARN: release table after cancelling order %s: %v", cancelled.Code, err)
	}

	s.publish(EventOrderCancelled, cancelled)
	return cancelled, nil
}

// DeleteOrder removes an order record entirely (lines cascade) and frees
// the table if no other active order remains. Only orders the kitchen has
// never seen may be deleted.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	store := s.store

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("get order: %w", err)
	}
	if order.State != enum.OrderStateDraft && order.State != enum.OrderStateCancelled {
		return ErrInvalidState
	}

	if err := store.DeleteOrder(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}

	if err := s.tables.ReleaseIfIdle(ctx, order.TableID); err != nil {
		log.Printf("WARN: release table after deleting order %s: %v", order.Code, err)
	}
	return nil
}

// --- Kitchen-side transitions ---

// MarkReady records that the kitchen finished the order. Manual override
// here; in full deployments the kitchen system drives this.
func (s *OrderService) MarkReady(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	return s.guardedTransition(ctx, orderID, enum.OrderStateInKitchen, enum.OrderStateReady)
}

// MarkDelivered closes out a READY order, stamping delivered_at exactly
// once. The kitchen delivery confirmation is best-effort: a failure is
// logged, never blocks the transition.
func (s *OrderService) MarkDelivered(ctx context.Context, orderID uuid.UUID) (database.Order, error) {
	store := s.store

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.State != enum.OrderStateReady {
		return database.Order{}, ErrInvalidState
	}

	delivered, err := store.MarkDelivered(ctx, database.MarkDeliveredParams{
		ID:        orderID,
		FromState: enum.OrderStateReady,
		ToState:   enum.OrderStateDelivered,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStateConflict
		}
		return database.Order{}, fmt.Errorf("mark delivered: %w", err)
	}

	if err := s.kitchen.ConfirmDelivery(ctx, delivered.ID.String()); err != nil {
		log.Printf("WARN: confirm delivery for order %s: %v", delivered.Code, err)
	}

	if err := s.tables.ReleaseIfIdle(ctx, delivered.TableID); err != nil {
		log.Printf("WARN: release table after delivering order %s: %v", delivered.Code, err)
	}

	s.publish(EventOrderDelivered, delivered)
	return delivered, nil
}

func (s *OrderService) guardedTransition(ctx context.Context, orderID uuid.UUID, from, to string) (database.Order, error) {
	store := s.store

	order, err := store.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order.State != from {
		return database.Order{}, ErrInvalidState
	}

	updated, err := store.UpdateOrderState(ctx, database.UpdateOrderStateParams{
		ID:        orderID,
		FromState: from,
		ToState:   to,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStateConflict
		}
		return database.Order{}, fmt.Errorf("update order state: %w", err)
	}

	s.publish(EventOrderStateChanged, updated)
	return updated, nil
}

// --- Administrative override ---

// SetState applies a state unconditionally, bypassing the guarded
// transitions. Recovery escape hatch only; every use is logged apart from
// normal transitions. delivered_at is still stamped on the first entry
// into DELIVERED.
func (s *OrderService) SetState(ctx context.Context, orderID uuid.UUID, target string) (database.Order, error) {
	if !enum.IsOrderState(target) {
		return database.Order{}, fmt.Errorf("%w: %q", ErrUnknownState, target)
	}

	store := s.store
	updated, err := store.OverrideOrderState(ctx, database.OverrideOrderStateParams{
		ID:    orderID,
		State: target,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("override order state: %w", err)
	}

	log.Printf("ADMIN OVERRIDE: order %s forced to state %s", updated.Code, target)
	s.publish(EventOrderStateChanged, updated)
	return updated, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
