package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linden-market/api/internal/platform/httpx"
	"github.com/linden-market/api/internal/services"
)

const maxNewsletterBodySize = 4 * 1024

// NewsletterHandlers manages mailing-list signups. Subscribe is throttled per
// client IP because the endpoint is unauthenticated.
type NewsletterHandlers struct {
	newsletter services.NewsletterService
	limiter    rateLimiter
}

// NewNewsletterHandlers constructs the newsletter handlers. A limit of zero
// disables throttling.
func NewNewsletterHandlers(newsletter services.NewsletterService, limitPerMinute int) *NewsletterHandlers {
	return &NewsletterHandlers{
		newsletter: newsletter,
		limiter:    newSimpleRateLimiter(limitPerMinute, time.Minute, nil),
	}
}

// Routes wires the /newsletter endpoints onto the provided router.
func (h *NewsletterHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/subscribe", h.subscribe)
	r.Post("/unsubscribe", h.unsubscribe)
}

type newsletterRequest struct {
	Email string `json:"email"`
}

type newsletterResponse struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	SubscribedAt string `json:"subscribed_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

func (h *NewsletterHandlers) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many subscription attempts; try again later", http.StatusTooManyRequests))
		return
	}
	h.handle(w, r, func(email string) (services.NewsletterSubscriber, error) {
		return h.newsletter.Subscribe(ctx, email)
	})
}

func (h *NewsletterHandlers) unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, func(email string) (services.NewsletterSubscriber, error) {
		return h.newsletter.Unsubscribe(r.Context(), email)
	})
}

func (h *NewsletterHandlers) handle(w http.ResponseWriter, r *http.Request, op func(string) (services.NewsletterSubscriber, error)) {
	ctx := r.Context()
	if h.newsletter == nil {
		httpx.WriteError(ctx, w, httpx.NewError("newsletter_unavailable", "newsletter service is unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxNewsletterBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		} else {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req newsletterRequest
	if err := decodeJSONBody(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	subscriber, err := op(req.Email)
	if err != nil {
		h.writeNewsletterError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newsletterResponse{
		Email:        subscriber.Email,
		Status:       subscriber.Status,
		SubscribedAt: formatTime(subscriber.SubscribedAt),
		UpdatedAt:    formatTime(subscriber.UpdatedAt),
	})
}

func (h *NewsletterHandlers) writeNewsletterError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNewsletterInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "a valid email address is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrNewsletterUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("newsletter_unavailable", "newsletter service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("newsletter_error", "failed to process newsletter request", http.StatusInternalServerError))
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
