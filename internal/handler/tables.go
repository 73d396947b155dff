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
	"github.com/shopspring/decimal"

	"github.com/AxelBaudrand/Pedidos/internal/database"
	"github.com/AxelBaudrand/Pedidos/internal/enum"
	"github.com/AxelBaudrand/Pedidos/internal/middleware"
	"github.com/AxelBaudrand/Pedidos/internal/service"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.Table, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.Table, error)
	ListTables(ctx context.Context) ([]database.Table, error)
}

// TableRegistrar defines the occupancy operations table handlers need.
// Satisfied by *service.TableRegistry.
type TableRegistrar interface {
	Occupy(ctx context.Context, id uuid.UUID) (database.Table, error)
	Release(ctx context.Context, id uuid.UUID) (database.Table, error)
}

// BillComputer produces the check for a table.
// Satisfied by *service.OrderService.
type BillComputer interface {
	TableBill(ctx context.Context, tableID uuid.UUID, discountPct decimal.Decimal, split int) (*service.Bill, error)
}

// TableHandler handles table endpoints.
type TableHandler struct {
	store    TableStore
	registry TableRegistrar
	bills    BillComputer
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore, registry TableRegistrar, bills BillComputer) *TableHandler {
	return &TableHandler{store: store, registry: registry, bills: bills}
}

// RegisterRoutes registers table endpoints on the given Chi router.
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/occupy", h.Occupy)
	r.Post("/{id}/release", h.Release)
	r.Get("/{id}/bill", h.Bill)
	r.With(middleware.RequireRole(enum.StaffRoleManager, enum.StaffRoleAdmin)).Post("/", h.Create)
}

// --- Request / Response types ---

type createTableRequest struct {
	Label string `json:"label"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Occupied  bool      `json:"occupied"`
	CreatedAt time.Time `json:"created_at"`
}

func toTableResponse(t database.Table) tableResponse {
	return tableResponse{
		ID:        t.ID,
		Label:     t.Label,
		Occupied:  t.Occupied,
		CreatedAt: t.CreatedAt,
	}
}

// --- Handlers ---

func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label is required"})
		return
	}

	table, err := h.store.CreateTable(r.Context(), database.CreateTableParams{Label: req.Label})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(table))
}

func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *TableHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table id"})
		return
	}

	table, err := h.store.GetTable(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Occupy(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table id"})
		return
	}

	table, err := h.registry.Occupy(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

func (h *TableHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table id"})
		return
	}

	table, err := h.registry.Release(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTableNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toTableResponse(table))
}

// Bill computes the table's check. Query params: discount (percentage,
// default 0) and split (number of guests sharing, default 1).
func (h *TableHandler) Bill(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table id"})
		return
	}

	discount := decimal.Zero
	if raw := r.URL.Query().Get("discount"); raw != "" {
		discount, err = decimal.NewFromString(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount"})
			return
		}
	}

	split := 1
	if raw := r.URL.Query().Get("split"); raw != "" {
		split, err = strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid split"})
			return
		}
	}

	bill, err := h.bills.TableBill(r.Context(), id, discount, split)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTableNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "table not found"})
		case errors.Is(err, service.ErrInvalidDiscount):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "discount must be between 0 and 100"})
		case errors.Is(err, service.ErrInvalidSplit):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "split must be at least 1"})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, bill)
}
