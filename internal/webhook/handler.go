package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"screening-platform/internal/screening"
	"screening-platform/internal/voice"
	"screening-platform/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

// Sink receives correlated provider events.
type Sink interface {
	HandleEvent(ctx context.Context, ev voice.Event) error
	ResolveWithData(ctx context.Context, screeningCallID string, data voice.CallData) (screening.Status, error)
}

// Handler converts provider webhooks into orchestrator calls.
//
// It answers 200 for everything except a bad signature, including unknown
// calls and bodies it cannot read, so the provider never retries in a loop.
type Handler struct {
	Sink     Sink
	Store    screening.Store
	Secret   string
	Validate *validator.Validate
}

func NewHandler(sink Sink, store screening.Store, secret string) *Handler {
	return &Handler{Sink: sink, Store: store, Secret: secret, Validate: validator.New()}
}

func (h *Handler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Warn("webhook body read failed", "err", err)
		ack(c, "unreadable")
		return
	}
	if !VerifySignature(h.Secret, body, c.GetHeader(SignatureHeader)) {
		log.Warn("webhook signature mismatch")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	p, err := Decode(h.Validate, body)
	if err != nil {
		log.Warn("webhook payload rejected", "err", err)
		ack(c, "invalid payload")
		return
	}
	ev := p.Event()
	log = log.With("event", p.Type, "provider_call_id", ev.ProviderCallID)
	if ev.Type == voice.EventUnknown {
		log.Debug("webhook event type ignored")
		ack(c, "ignored")
		return
	}

	ctx := c.Request.Context()
	callID, err := h.correlate(ctx, ev)
	if errors.Is(err, screening.ErrNotFound) {
		log.Info("webhook for unknown call")
		ack(c, "unknown call")
		return
	}
	if err != nil {
		log.Error("webhook correlation failed", "err", err)
		ack(c, "deferred")
		return
	}
	ev.ScreeningCallID = callID
	log = log.With("screening_call_id", callID)

	if ev.Type == voice.EventEndOfCallReport {
		status, err := h.Sink.ResolveWithData(ctx, callID, *ev.Data)
		if err != nil {
			log.Error("webhook resolve failed", "err", err)
			ack(c, "deferred")
			return
		}
		log.Info("end-of-call report applied", "status", string(status))
		c.JSON(http.StatusOK, gin.H{"received": true, "status": status})
		return
	}

	if err := h.Sink.HandleEvent(ctx, ev); err != nil && !errors.Is(err, screening.ErrNotFound) {
		log.Error("webhook event failed", "err", err)
	}
	ack(c, "")
}

// correlate finds the screening call id: metadata first, then the stored
// provider correlation.
func (h *Handler) correlate(ctx context.Context, ev voice.Event) (string, error) {
	if ev.ScreeningCallID != "" {
		c, err := h.Store.Get(ctx, ev.ScreeningCallID)
		if err == nil {
			return c.ID, nil
		}
		if !errors.Is(err, screening.ErrNotFound) || ev.ProviderCallID == "" {
			return "", err
		}
	}
	c, err := h.Store.GetByProviderCallID(ctx, ev.ProviderCallID)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func ack(c *gin.Context, note string) {
	if note == "" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "note": note})
}
