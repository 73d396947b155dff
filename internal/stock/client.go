// Package stock is a thin synchronous client for the external
// menu-and-inventory service. It exposes the three stock operations the
// order lifecycle needs: validate/reserve, consume, and release.
package stock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrorKind classifies a failed stock call.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnreachable ErrorKind = "unreachable"
	KindRejected    ErrorKind = "rejected"
)

// Error is the uniform failure returned by every client method. Rejected
// errors carry the remote-supplied message verbatim.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("stock service %s: %s", e.Kind, e.Message)
}

// Item addresses one dish in the external service by its external id.
type Item struct {
	DishID   int32 `json:"plato_id"`
	Quantity int32 `json:"cantidad"`
}

// Reservation is the stock hold returned by a successful validation.
// ReservationID may be empty when the remote does not issue one.
type Reservation struct {
	ReservationID string `json:"reserva_id"`
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the stock service over HTTP. Calls are never retried here;
// retry policy belongs to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a stock client with a fixed per-call timeout (default 10s).
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type validateRequest struct {
	Items []Item `json:"platos"`
}

type consumeRequest struct {
	OrderID string `json:"pedido_id"`
	Items   []Item `json:"platos"`
}

type releaseRequest struct {
	Items []Item `json:"platos"`
}

type remoteError struct {
	Message string `json:"message"`
}

// ValidateReserve checks availability and places a temporary hold on the
// given items.
func (c *Client) ValidateReserve(ctx context.Context, items []Item) (*Reservation, error) {
	var res Reservation
	if err := c.post(ctx, "/stock/validar", validateRequest{Items: items}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Consume permanently deducts previously reserved stock for an order.
func (c *Client) Consume(ctx context.Context, orderID string, items []Item) error {
	return c.post(ctx, "/stock/consumir", consumeRequest{OrderID: orderID, Items: items}, nil)
}

// Release cancels a temporary reservation, returning stock to availability.
func (c *Client) Release(ctx context.Context, items []Item) error {
	return c.post(ctx, "/stock/cancelar-reserva", releaseRequest{Items: items}, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindUnreachable, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := remoteMessage(respBody)
		if msg == "" {
			msg = resp.Status
		}
		return &Error{Kind: KindRejected, Message: msg, StatusCode: resp.StatusCode}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &Error{Kind: KindRejected, Message: fmt.Sprintf("malformed response: %v", err), StatusCode: resp.StatusCode}
		}
	}
	return nil
}

func classifyTransport(err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: KindTimeout, Message: "stock service did not respond in time"}
	}
	return &Error{Kind: KindUnreachable, Message: fmt.Sprintf("cannot reach stock service: %v", err)}
}

func remoteMessage(body []byte) string {
	var re remoteError
	if err := json.Unmarshal(body, &re); err != nil {
		return ""
	}
	return re.Message
}
