package notification

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
	"github.com/stanstork/chatpush/internal/credential"
	"github.com/stanstork/chatpush/internal/dedup"
	"github.com/stanstork/chatpush/internal/metrics"
	"github.com/stanstork/chatpush/internal/models"
	"github.com/stanstork/chatpush/internal/repository"
)

const (
	MessageNoParticipants = "no participants in room"
	MessageNoOtherMembers = "no other members in room"
	ReasonDuplicate       = "duplicate"

	DefaultSendTimeout = 10 * time.Second
)

type DispatcherOptions struct {
	// MaxConcurrency caps parallel sends per event; zero means one goroutine per recipient.
	MaxConcurrency int
	SendTimeout    time.Duration
}

// Dispatcher turns one inserted message into one push per reachable room member.
type Dispatcher struct {
	repo   repository.ChatRepository
	tokens credential.Source
	sender Sender
	guard  dedup.Guard
	logger zerolog.Logger
	opts   DispatcherOptions
}

func NewDispatcher(repo repository.ChatRepository, tokens credential.Source, sender Sender, guard dedup.Guard, logger zerolog.Logger, opts DispatcherOptions) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		repo:   repo,
		tokens: tokens,
		sender: sender,
		guard:  guard,
		logger: logger.With().Str("component", "dispatcher").Str("sender", senderName(sender)).Logger(),
		opts:   opts,
	}
}

// Handle processes one webhook event. Only whole-invocation failures are
// returned as errors; per-recipient failures are reported in the result.
func (d *Dispatcher) Handle(ctx context.Context, evt models.MessageEvent) (models.DispatchResult, error) {
	start := time.Now()
	result, err := d.handle(ctx, evt)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	metrics.WebhookEventsTotal.WithLabelValues(resultLabel(err)).Inc()
	return result, err
}

func (d *Dispatcher) handle(ctx context.Context, evt models.MessageEvent) (models.DispatchResult, error) {
	if err := validateEvent(evt); err != nil {
		d.logger.Error().Err(err).Str("type", evt.Type).Str("table", evt.Table).Msg("rejected webhook payload")
		return models.DispatchResult{}, newDispatchError(ErrInvalidPayload, err)
	}

	msg := *evt.Record
	logger := d.logger.With().Int64("message_id", msg.ID).Str("room_id", msg.RoomID).Logger()
	logger.Info().Str("sender_id", msg.UserID).Msg("message event received")

	room, err := d.repo.GetRoom(ctx, msg.RoomID)
	if err != nil {
		logger.Error().Err(err).Msg("chat room lookup failed")
		return models.DispatchResult{}, newDispatchError(ErrRoomNotFound, err)
	}

	if len(room.Participants) == 0 {
		logger.Info().Msg("room has no participants")
		return models.DispatchResult{Success: true, Message: MessageNoParticipants}, nil
	}

	recipients, err := ResolveRecipients(ctx, d.repo, room.Participants, msg.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("recipient lookup failed")
		return models.DispatchResult{}, newDispatchError(ErrRecipientsUnavailable, err)
	}
	if len(recipients) == 0 {
		logger.Info().Msg("room has no other reachable members")
		return models.DispatchResult{Success: true, Message: MessageNoOtherMembers}, nil
	}
	logger.Info().Int("recipients", len(recipients)).Msg("recipients resolved")

	sender, err := d.repo.GetProfile(ctx, msg.UserID)
	if err != nil {
		logger.Error().Err(err).Str("sender_id", msg.UserID).Msg("sender lookup failed")
		return models.DispatchResult{}, newDispatchError(ErrSenderNotFound, err)
	}

	token, err := d.tokens.AccessToken(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("access token request failed")
		return models.DispatchResult{}, newDispatchError(ErrCredential, err)
	}

	mapper := iter.Mapper[models.Recipient, models.DeliveryOutcome]{
		MaxGoroutines: d.concurrency(len(recipients)),
	}
	outcomes := mapper.Map(recipients, func(r *models.Recipient) models.DeliveryOutcome {
		return d.deliver(ctx, logger, token.Value, msg, sender, room, *r)
	})

	logger.Info().Int("results", len(outcomes)).Msg("all notifications completed")
	return models.DispatchResult{Success: true, Results: outcomes}, nil
}

func (d *Dispatcher) deliver(ctx context.Context, logger zerolog.Logger, accessToken string, msg models.Message, sender models.Profile, room models.ChatRoom, r models.Recipient) models.DeliveryOutcome {
	receiver := r.Username
	if receiver == "" {
		receiver = r.ProfileID
	}
	logger = logger.With().Str("receiver", receiver).Logger()

	payload := Compose(msg, sender, room, r.Token)

	key := dedup.Key{MessageID: msg.ID, Token: r.Token}
	if d.guard.Seen(ctx, key) {
		logger.Info().Str("key", key.String()).Msg("notification already sent")
		metrics.PushSendsTotal.WithLabelValues(string(models.DeliveryStatusSkipped)).Inc()
		return models.DeliveryOutcome{
			Receiver: receiver,
			Status:   models.DeliveryStatusSkipped,
			Skipped:  true,
			Reason:   ReasonDuplicate,
		}
	}

	logger.Debug().Interface("payload", payload).Msg("sending notification")

	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	resp, err := d.sender.Send(sendCtx, accessToken, payload)
	if err != nil {
		logger.Error().Err(err).Msg("notification delivery failed")
		metrics.PushSendsTotal.WithLabelValues(string(models.DeliveryStatusError)).Inc()
		return models.DeliveryOutcome{
			Receiver: receiver,
			Status:   models.DeliveryStatusError,
			Error:    errorMessage(err),
		}
	}

	d.guard.MarkSent(ctx, key)
	logger.Info().RawJSON("response", resp).Msg("notification sent")
	metrics.PushSendsTotal.WithLabelValues(string(models.DeliveryStatusSent)).Inc()
	return models.DeliveryOutcome{
		Receiver: receiver,
		Status:   models.DeliveryStatusSent,
		Response: resp,
	}
}

func (d *Dispatcher) concurrency(n int) int {
	if d.opts.MaxConcurrency > 0 && d.opts.MaxConcurrency < n {
		return d.opts.MaxConcurrency
	}
	return n
}

func validateEvent(evt models.MessageEvent) error {
	if evt.Type != models.EventTypeInsert {
		return errors.Errorf("unexpected event type %q", evt.Type)
	}
	if evt.Table != models.MessagesTable {
		return errors.Errorf("unexpected table %q", evt.Table)
	}
	if evt.Record == nil {
		return errors.New("missing record")
	}
	return nil
}

// errorMessage prefers the provider's own message over transport wrapping.
func errorMessage(err error) string {
	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Error()
	}
	return err.Error()
}
