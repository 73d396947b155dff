package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/AxelBaudrand/Pedidos/internal/auth"
	"github.com/AxelBaudrand/Pedidos/internal/database"
	"github.com/AxelBaudrand/Pedidos/internal/handler"
)

type mockAuthStore struct {
	getByUsernameFn func(ctx context.Context, username string) (database.Staff, error)
	getByIDFn       func(ctx context.Context, id uuid.UUID) (database.Staff, error)
}

func (m *mockAuthStore) GetStaffByUsername(ctx context.Context, username string) (database.Staff, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return database.Staff{}, pgx.ErrNoRows
}
func (m *mockAuthStore) GetStaffByID(ctx context.Context, id uuid.UUID) (database.Staff, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return database.Staff{}, pgx.ErrNoRows
}

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func activeStaff(t *testing.T, username, password, role string) database.Staff {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return database.Staff{
		ID:             uuid.New(),
		Username:       username,
		FullName:       "Ana Garcia",
		HashedPassword: string(hash),
		Role:           role,
		IsActive:       true,
	}
}

func TestLogin_Success(t *testing.T) {
	staff := activeStaff(t, "ana", "secreto123", "WAITER")
	store := &mockAuthStore{
		getByUsernameFn: func(ctx context.Context, username string) (database.Staff, error) {
			if username == "ana" {
				return staff, nil
			}
			return database.Staff{}, pgx.ErrNoRows
		},
	}
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "ana",
		"password": "secreto123",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeBody(t, rr)
	access, ok := resp["access_token"].(string)
	if !ok || access == "" {
		t.Fatal("expected access_token in response")
	}
	claims, err := auth.ValidateToken(testJWTSecret, access)
	if err != nil {
		t.Fatalf("access token does not validate: %v", err)
	}
	if claims.StaffID != staff.ID || claims.Role != "WAITER" {
		t.Errorf("claims: got %v/%s", claims.StaffID, claims.Role)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	staff := activeStaff(t, "ana", "secreto123", "WAITER")
	store := &mockAuthStore{
		getByUsernameFn: func(ctx context.Context, username string) (database.Staff, error) {
			return staff, nil
		},
	}
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "ana",
		"password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UnknownUser(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "nadie",
		"password": "whatever",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_InactiveStaff(t *testing.T) {
	staff := activeStaff(t, "ana", "secreto123", "WAITER")
	staff.IsActive = false
	store := &mockAuthStore{
		getByUsernameFn: func(ctx context.Context, username string) (database.Staff, error) {
			return staff, nil
		},
	}
	router := setupAuthRouter(store)

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{
		"username": "ana",
		"password": "secreto123",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})

	rr := doRequest(t, router, "POST", "/auth/login", map[string]string{"username": "ana"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestRefresh_Success(t *testing.T) {
	staff := activeStaff(t, "ana", "secreto123", "MANAGER")
	store := &mockAuthStore{
		getByIDFn: func(ctx context.Context, id uuid.UUID) (database.Staff, error) {
			if id == staff.ID {
				return staff, nil
			}
			return database.Staff{}, pgx.ErrNoRows
		},
	}
	router := setupAuthRouter(store)

	refresh, err := auth.GenerateRefreshToken(testJWTSecret, staff.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refresh_token": refresh})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["refresh_token"] == "" {
		t.Error("expected a fresh refresh token")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refresh_token": "garbage"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	router := setupAuthRouter(&mockAuthStore{})

	access, err := auth.GenerateToken(testJWTSecret, uuid.New(), "WAITER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	rr := doRequest(t, router, "POST", "/auth/refresh", map[string]string{"refresh_token": access})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
