// Package kitchen notifies the external kitchen/display service about new
// orders and completed deliveries.
package kitchen

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

// ErrorKind classifies a failed kitchen call.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnreachable ErrorKind = "unreachable"
	KindRejected    ErrorKind = "rejected"
)

// Error is the uniform failure returned by every notifier method.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
}

func (e *Error) Error() string {
	return fmt.Sprintf("kitchen service %s: %s", e.Kind, e.Message)
}

// TicketLine is one dish on a kitchen ticket.
type TicketLine struct {
	Name     string `json:"nombre"`
	Quantity int32  `json:"cantidad"`
	Note     string `json:"observaciones,omitempty"`
}

// Ticket is the read-only order projection sent to the kitchen. It carries
// only what the kitchen needs: the order id, the table label, and the dishes.
type Ticket struct {
	OrderID string       `json:"pedido_id"`
	Table   string       `json:"mesa"`
	Lines   []TicketLine `json:"platos"`
}

// Config holds notifier configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Notifier calls the kitchen service over HTTP. No retries; the lifecycle
// engine decides what a failure means.
type Notifier struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a kitchen notifier with a fixed per-call timeout (default 10s).
func New(cfg Config) *Notifier {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NotifyNewOrder sends a ticket for a freshly confirmed order.
func (n *Notifier) NotifyNewOrder(ctx context.Context, ticket Ticket) error {
	return n.post(ctx, "/cocina/pedidos", ticket)
}

type deliveryConfirmation struct {
	OrderID string `json:"pedido_id"`
}

// ConfirmDelivery tells the kitchen the order reached the table.
func (n *Notifier) ConfirmDelivery(ctx context.Context, orderID string) error {
	return n.post(ctx, "/cocina/pedido_entregado", deliveryConfirmation{OrderID: orderID})
}

func (n *Notifier) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return &Error{Kind: KindTimeout, Message: "kitchen service did not respond in time"}
		}
		return &Error{Kind: KindUnreachable, Message: fmt.Sprintf("cannot reach kitchen service: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		msg := remoteMessage(respBody)
		if msg == "" {
			msg = resp.Status
		}
		return &Error{Kind: KindRejected, Message: msg, StatusCode: resp.StatusCode}
	}
	return nil
}

func remoteMessage(body []byte) string {
	var re struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &re); err != nil {
		return ""
	}
	return re.Message
}
