package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/AxelBaudrand/Pedidos/internal/database"
	"github.com/AxelBaudrand/Pedidos/internal/enum"
	"github.com/AxelBaudrand/Pedidos/internal/kitchen"
	"github.com/AxelBaudrand/Pedidos/internal/middleware"
	"github.com/AxelBaudrand/Pedidos/internal/service"
	"github.com/AxelBaudrand/Pedidos/internal/stock"
)

// OrderServicer defines the lifecycle operations order handlers need.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (database.Order, error)
	AddLine(ctx context.Context, orderID uuid.UUID, req service.AddLineRequest) (database.OrderLine, error)
	RemoveLine(ctx context.Context, orderID, lineID uuid.UUID) error
	SubmitToKitchen(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, reason string) (database.Order, error)
	MarkReady(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (database.Order, error)
	SetState(ctx context.Context, orderID uuid.UUID, target string) (database.Order, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}

// OrderReadStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderReadStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrdersByTable(ctx context.Context, tableID uuid.UUID) ([]database.Order, error)
	ListOrderLineDetails(ctx context.Context, orderID uuid.UUID) ([]database.OrderLineDetail, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderReadStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderReadStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/lines", h.AddLine)
	r.Delete("/{id}/lines/{lineID}", h.RemoveLine)
	r.Post("/{id}/submit", h.Submit)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/ready", h.Ready)
	r.Post("/{id}/deliver", h.Deliver)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.StaffRoleManager, enum.StaffRoleAdmin))
		r.Patch("/{id}/state", h.SetState)
		r.Delete("/{id}", h.Delete)
	})
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID     string `json:"table_id"`
	KitchenNote string `json:"kitchen_note"`
	DiscountPct string `json:"discount_pct"`
}

type addLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int32  `json:"quantity"`
	Note     string `json:"note"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type setStateRequest struct {
	State string `json:"state"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	Code           string              `json:"code"`
	TableID        uuid.UUID           `json:"table_id"`
	StaffID        uuid.UUID           `json:"staff_id"`
	State          string              `json:"state"`
	KitchenNote    *string             `json:"kitchen_note"`
	DiscountPct    string              `json:"discount_pct"`
	StockValidated bool                `json:"stock_validated"`
	StockConsumed  bool                `json:"stock_consumed"`
	ReservationID  *string             `json:"reservation_id"`
	CancelReason   *string             `json:"cancel_reason"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	SentAt         *time.Time          `json:"sent_at"`
	DeliveredAt    *time.Time          `json:"delivered_at"`
	CancelledAt    *time.Time          `json:"cancelled_at"`
	Lines          []orderLineResponse `json:"lines,omitempty"`
}

type orderLineResponse struct {
	ID        uuid.UUID `json:"id"`
	ItemID    uuid.UUID `json:"item_id"`
	ItemName  string    `json:"item_name,omitempty"`
	UnitPrice string    `json:"unit_price,omitempty"`
	Quantity  int32     `json:"quantity"`
	Note      string    `json:"note,omitempty"`
}

func toOrderResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		Code:           o.Code,
		TableID:        o.TableID,
		StaffID:        o.StaffID,
		State:          o.State,
		KitchenNote:    textPtr(o.KitchenNote),
		DiscountPct:    numericString(o.DiscountPct),
		StockValidated: o.StockValidated,
		StockConsumed:  o.StockConsumed,
		ReservationID:  textPtr(o.ReservationID),
		CancelReason:   textPtr(o.CancelReason),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		SentAt:         timePtr(o.SentAt),
		DeliveredAt:    timePtr(o.DeliveredAt),
		CancelledAt:    timePtr(o.CancelledAt),
	}
}

func toOrderLineResponses(details []database.OrderLineDetail) []orderLineResponse {
	lines := make([]orderLineResponse, len(details))
	for i, d := range details {
		lines[i] = orderLineResponse{
			ID:        d.ID,
			ItemID:    d.ItemID,
			ItemName:  d.ItemName,
			UnitPrice: numericString(d.ItemPrice),
			Quantity:  d.Quantity,
			Note:      d.Note,
		}
	}
	return lines
}

// --- Handlers ---

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	tableID, err := uuid.Parse(req.TableID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
		return
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TableID:     tableID,
		StaffID:     claims.StaffID,
		KitchenNote: req.KitchenNote,
		DiscountPct: req.DiscountPct,
	})
	if err != nil {
		respondOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("table_id"); raw != "" {
		tableID, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
		orders, err := h.store.ListOrdersByTable(r.Context(), tableID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		h.respondOrderList(w, orders)
		return
	}

	limit := int32(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = int32(n)
	}
	offset := int32(0)
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		offset = int32(n)
	}

	orders, err := h.store.ListOrders(r.Context(), database.ListOrdersParams{Limit: limit, Offset: offset})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.respondOrderList(w, orders)
}

func (h *OrderHandler) respondOrderList(w http.ResponseWriter, orders []database.Order) {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	details, err := h.store.ListOrderLineDetails(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(order)
	resp.Lines = toOrderLineResponses(details)
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req addLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item_id"})
		return
	}

	line, err := h.svc.AddLine(r.Context(), id, service.AddLineRequest{
		ItemID:   itemID,
		Quantity: req.Quantity,
		Note:     req.Note,
	})
	if err != nil {
		respondOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderLineResponse{
		ID:       line.ID,
		ItemID:   line.ItemID,
		Quantity: line.Quantity,
		Note:     line.Note,
	})
}

func (h *OrderHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	lineID, err := uuid.Parse(chi.URLParam(r, "lineID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid line id"})
		return
	}

	if err := h.svc.RemoveLine(r.Context(), id, lineID); err != nil {
		respondOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.SubmitToKitchen(r.Context(), id)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	order, err := h.svc.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) Ready(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.MarkReady(r.Context(), id)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.MarkDelivered(r.Context(), id)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) SetState(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.svc.SetState(r.Context(), id, req.State)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		respondOrderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return uuid.Nil, false
	}
	return id, true
}

// respondOrderError maps lifecycle errors onto HTTP statuses: validation
// failures 400, missing records 404, state and precondition conflicts 409,
// upstream service failures 502.
func respondOrderError(w http.ResponseWriter, err error) {
	var stockErr *stock.Error
	var kitchenErr *kitchen.Error

	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrLineNotFound),
		errors.Is(err, service.ErrTableNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidDiscount),
		errors.Is(err, service.ErrUnknownState),
		errors.Is(err, service.ErrEmptyOrder):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrTableNotOccupied),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrStateConflict),
		errors.Is(err, service.ErrQuantityLimit),
		errors.Is(err, service.ErrItemUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &stockErr), errors.As(err, &kitchenErr),
		errors.Is(err, service.ErrStockConsume),
		errors.Is(err, service.ErrKitchenNotify):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrMissingExternalID):
		// Operator misconfiguration, not a client mistake: names the dishes.
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
