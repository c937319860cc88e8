package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/chatpush/internal/metrics"
	"github.com/stanstork/chatpush/internal/models"
	"github.com/stanstork/chatpush/internal/notification"
)

const maxWebhookBody = 1 << 20

type MessageDispatcher interface {
	Handle(ctx context.Context, evt models.MessageEvent) (models.DispatchResult, error)
}

type WebhookHandler struct {
	dispatcher MessageDispatcher
	logger     zerolog.Logger
}

func NewWebhookHandler(dispatcher MessageDispatcher, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		logger:     logger.With().Str("handler", "webhook").Logger(),
	}
}

// MessageInserted handles the database webhook fired for new rows in the messages table.
func (h *WebhookHandler) MessageInserted(w http.ResponseWriter, r *http.Request) {
	var evt models.MessageEvent
	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&evt); err != nil {
		h.logger.Error().Err(err).Msg("failed to decode webhook payload")
		metrics.WebhookEventsTotal.WithLabelValues("invalid_payload").Inc()
		writeError(w, http.StatusBadRequest, notification.ErrInvalidPayload.Error(), err.Error())
		return
	}

	// Deliveries outlive the caller; send timeouts bound them instead.
	result, err := h.dispatcher.Handle(context.WithoutCancel(r.Context()), evt)
	if err != nil {
		var dispatchErr *notification.DispatchError
		if errors.As(err, &dispatchErr) {
			writeError(w, http.StatusBadRequest, dispatchErr.Kind.Error(), dispatchErr.Detail())
			return
		}
		h.logger.Error().Err(err).Msg("unexpected dispatch failure")
		writeError(w, http.StatusBadRequest, "notification dispatch failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}
