package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linden-market/api/internal/platform/httpx"
	"github.com/linden-market/api/internal/platform/mail"
	"github.com/linden-market/api/internal/services"
)

const maxPushBodySize = 64 * 1024

// MailDispatcher delivers a rendered order mail message.
type MailDispatcher interface {
	Dispatch(ctx context.Context, msg services.OrderMailMessage) error
}

// InternalHandlers serves service-to-service callbacks. The Pub/Sub push
// subscription for order mail lands here; OIDC verification is applied by the
// router, not by the handlers themselves.
type InternalHandlers struct {
	mail   MailDispatcher
	logger *zap.Logger
}

// NewInternalHandlers constructs the internal callback handlers.
func NewInternalHandlers(dispatcher MailDispatcher, logger *zap.Logger) *InternalHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalHandlers{
		mail:   dispatcher,
		logger: logger,
	}
}

// Routes wires the /internal endpoints onto the provided router.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/mail/deliver", h.deliverMail)
}

// pushEnvelope is the wrapper Pub/Sub wraps around pushed messages.
type pushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data"`
		Attributes map[string]string `json:"attributes"`
		MessageID  string            `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func (h *InternalHandlers) deliverMail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.mail == nil {
		httpx.WriteError(ctx, w, httpx.NewError("mail_unavailable", "mail dispatcher is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxPushBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "push envelope must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(envelope.Message.Data) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "push envelope carries no message data", http.StatusBadRequest))
		return
	}

	var msg services.OrderMailMessage
	if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "message data is not a valid mail job", http.StatusBadRequest))
		return
	}

	if err := h.mail.Dispatch(ctx, msg); err != nil {
		// Malformed jobs are acked with a 4xx so Pub/Sub stops redelivering
		// them; transient failures return 503 to trigger a retry.
		if errors.Is(err, mail.ErrUnknownMailType) {
			h.logger.Warn("dropping mail job with unknown type",
				zap.String("type", msg.Type),
				zap.String("order_id", msg.OrderID),
				zap.String("message_id", envelope.Message.MessageID),
			)
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown mail job type", http.StatusBadRequest))
			return
		}
		h.logger.Error("mail dispatch failed",
			zap.String("type", msg.Type),
			zap.String("order_id", msg.OrderID),
			zap.Error(err),
		)
		httpx.WriteError(ctx, w, httpx.NewError("mail_dispatch_failed", "mail dispatch failed; retry", http.StatusServiceUnavailable))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
