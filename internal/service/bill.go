package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/AxelBaudrand/Pedidos/internal/database"
)

var ErrInvalidSplit = errors.New("split must be at least 1")

// OrderBill is one delivered order's slice of a table bill.
type OrderBill struct {
	OrderID     uuid.UUID       `json:"order_id"`
	Code        string          `json:"code"`
	Net         decimal.Decimal `json:"net"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Total       decimal.Decimal `json:"total"`
}

// Bill is the check for one table: every delivered order, an optional
// bill-level discount on top of per-order discounts, and an even split.
type Bill struct {
	TableID     uuid.UUID       `json:"table_id"`
	TableLabel  string          `json:"table_label"`
	Orders      []OrderBill     `json:"orders"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DiscountPct decimal.Decimal `json:"discount_pct"`
	Total       decimal.Decimal `json:"total"`
	Split       int             `json:"split"`
	PerPerson   decimal.Decimal `json:"per_person"`
}

// TableBill computes the check for a table over its delivered orders.
// All money math runs on decimals; only the final figures are rounded,
// to 2 places.
func (s *OrderService) TableBill(ctx context.Context, tableID uuid.UUID, discountPct decimal.Decimal, split int) (*Bill, error) {
	if discountPct.IsNegative() || discountPct.GreaterThan(decimal.NewFromInt(100)) {
		return nil, ErrInvalidDiscount
	}
	if split < 1 {
		return nil, ErrInvalidSplit
	}

	table, err := s.tables.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTableNotFound
		}
		return nil, fmt.Errorf("get table: %w", err)
	}

	orders, err := s.store.ListDeliveredOrdersByTable(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("list delivered orders: %w", err)
	}

	bill := &Bill{
		TableID:     tableID,
		TableLabel:  table.Label,
		Orders:      make([]OrderBill, 0, len(orders)),
		Subtotal:    decimal.Zero,
		DiscountPct: discountPct,
		Split:       split,
	}

	for _, o := range orders {
		details, err := s.store.ListOrderLineDetails(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("list lines for order %s: %w", o.Code, err)
		}
		net := orderNet(details)
		orderDiscount := numericToDecimal(o.DiscountPct)
		total := applyDiscount(net, orderDiscount)
		bill.Orders = append(bill.Orders, OrderBill{
			OrderID:     o.ID,
			Code:        o.Code,
			Net:         net,
			DiscountPct: orderDiscount,
			Total:       total,
		})
		bill.Subtotal = bill.Subtotal.Add(total)
	}

	bill.Total = applyDiscount(bill.Subtotal, discountPct).Round(2)
	bill.Subtotal = bill.Subtotal.Round(2)
	bill.PerPerson = bill.Total.DivRound(decimal.NewFromInt(int64(split)), 2)
	return bill, nil
}

// orderNet totals an order's lines: sum of quantity times unit price.
func orderNet(details []database.OrderLineDetail) decimal.Decimal {
	net := decimal.Zero
	for _, d := range details {
		price := numericToDecimal(d.ItemPrice)
		net = net.Add(price.Mul(decimal.NewFromInt32(d.Quantity)))
	}
	return net
}

// applyDiscount deducts a percentage from an amount.
func applyDiscount(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return amount
	}
	return amount.Sub(amount.Mul(pct).Div(decimal.NewFromInt(100)))
}
