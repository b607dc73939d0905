package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linden-market/api/internal/services"
)

const defaultEndpoint = "https://api.mail.example.ro/v1/send"

// ErrUnknownMailType is returned when a queued message carries a type the
// dispatcher has no template for.
var ErrUnknownMailType = errors.New("mail: unknown message type")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher renders queued order mail messages and hands them to the mail
// provider. Without a provider token it runs in log-only mode, which is how
// local and emulator environments operate.
type Dispatcher struct {
	client   httpDoer
	endpoint string
	sender   string
	operator string
	token    string
	logger   *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used to reach the provider.
func WithHTTPClient(client httpDoer) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithEndpoint overrides the provider send endpoint.
func WithEndpoint(endpoint string) Option {
	return func(d *Dispatcher) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			d.endpoint = trimmed
		}
	}
}

// WithLogger attaches a logger for dispatch outcomes.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a Dispatcher. Sender is the from-address stamped on
// every message; operator receives the admin notifications.
func NewDispatcher(sender, operator, token string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: defaultEndpoint,
		sender:   strings.TrimSpace(sender),
		operator: strings.TrimSpace(operator),
		token:    strings.TrimSpace(token),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type providerPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Dispatch renders the message and sends it. The recipient defaults to the
// operator address for admin notifications when the message carries none.
func (d *Dispatcher) Dispatch(ctx context.Context, msg services.OrderMailMessage) error {
	payload, err := d.render(msg)
	if err != nil {
		return err
	}
	if payload.To == "" {
		return fmt.Errorf("mail: message %s for order %s has no recipient", msg.Type, msg.OrderID)
	}

	if d.token == "" {
		d.logger.Info("mail dispatched in log-only mode",
			zap.String("type", msg.Type),
			zap.String("order_id", msg.OrderID),
			zap.String("to", payload.To),
			zap.String("subject", payload.Subject),
		)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mail: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mail: provider returned status %d", resp.StatusCode)
	}

	d.logger.Info("mail dispatched",
		zap.String("type", msg.Type),
		zap.String("order_id", msg.OrderID),
		zap.String("to", payload.To),
	)
	return nil
}

func (d *Dispatcher) render(msg services.OrderMailMessage) (providerPayload, error) {
	recipient := strings.TrimSpace(msg.Recipient)

	switch msg.Type {
	case services.MailTypeOrderConfirmation:
		return providerPayload{
			From:    d.sender,
			To:      recipient,
			Subject: fmt.Sprintf("Comanda %s a fost înregistrată", msg.OrderNumber),
			Text: fmt.Sprintf(
				"Mulțumim pentru comandă!\n\nComanda %s în valoare de %.2f RON a fost înregistrată și va fi livrată cu plata ramburs.\n",
				msg.OrderNumber, float64(msg.Total)/100,
			),
		}, nil
	case services.MailTypeOrderAdminNotify:
		if recipient == "" {
			recipient = d.operator
		}
		return providerPayload{
			From:    d.sender,
			To:      recipient,
			Subject: fmt.Sprintf("Comandă nouă: %s", msg.OrderNumber),
			Text: fmt.Sprintf(
				"Comandă nouă %s (id %s), total %.2f RON, plasată la %s.\n",
				msg.OrderNumber, msg.OrderID, float64(msg.Total)/100, msg.OccurredAt.Format(time.RFC3339),
			),
		}, nil
	default:
		return providerPayload{}, fmt.Errorf("%w: %q", ErrUnknownMailType, msg.Type)
	}
}
