package inbox

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/metrics"
	"github.com/hms/hms/internal/platform/notification"
)

const fallbackMessage = "You have a new notification. Please log into your account for details."

// DispatcherConfig wires the delivery channels. A nil Email or SMS sender
// means the channel is not configured and is never attempted.
type DispatcherConfig struct {
	Email     notification.EmailSender
	SMS       notification.SMSSender
	Templates *notification.TemplateEngine
	Publisher notification.Publisher
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Dispatcher delivers notifications on a best-effort basis: every call
// persists exactly one Notification record, and no failure is ever returned
// to the caller.
type Dispatcher struct {
	repo      NotificationRepository
	email     notification.EmailSender
	sms       notification.SMSSender
	templates *notification.TemplateEngine
	publisher notification.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewDispatcher(repo NotificationRepository, cfg DispatcherConfig) *Dispatcher {
	if cfg.Templates == nil {
		cfg.Templates = notification.NewTemplateEngine()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = notification.NopPublisher{}
	}
	return &Dispatcher{
		repo:      repo,
		email:     cfg.Email,
		sms:       cfg.SMS,
		templates: cfg.Templates,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// NotifyEvent renders the template registered for t with data and
// dispatches the result. An unknown template falls back to a generic
// message so the record is still written.
func (d *Dispatcher) NotifyEvent(ctx context.Context, r Recipient, t Type, data map[string]string) (del Delivery) {
	defer d.recoverDispatch(r, t)

	title, message, err := d.templates.Render(string(t), data)
	if err != nil {
		d.logger.Warn().Err(err).Str("type", string(t)).Msg("notification template missing, using fallback")
		title, message = t.Title(), fallbackMessage
	}
	return d.Notify(ctx, r, t, title, message)
}

// Notify attempts email and SMS independently, then persists the record
// with the attempt flags and publishes it.
func (d *Dispatcher) Notify(ctx context.Context, r Recipient, t Type, title, message string) (del Delivery) {
	defer d.recoverDispatch(r, t)

	log := d.logger.With().
		Str("recipient_id", r.UserID.String()).
		Str("type", string(t)).
		Logger()

	if r.Email != "" && d.email != nil {
		del.EmailAttempted = true
		del.EmailErr = d.email.SendEmail(ctx, r.Email, title, message)
		d.metrics.DeliveryAttempted("email", del.EmailErr)
		if del.EmailErr != nil {
			log.Warn().Err(del.EmailErr).Msg("email delivery failed")
		}
	}

	if r.Phone != "" && d.sms != nil {
		del.SMSAttempted = true
		del.SMSErr = d.sms.SendSMS(ctx, r.Phone, message)
		d.metrics.DeliveryAttempted("sms", del.SMSErr)
		if del.SMSErr != nil {
			log.Warn().Err(del.SMSErr).Msg("sms delivery failed")
		}
	}

	n := &Notification{
		RecipientID: r.UserID,
		Type:        t,
		Title:       title,
		Message:     message,
		EmailSent:   del.EmailAttempted,
		SMSSent:     del.SMSAttempted,
	}
	if err := d.repo.Create(ctx, n); err != nil {
		log.Error().Err(err).Msg("persist notification failed")
		return del
	}
	del.Persisted = true
	del.NotificationID = n.ID
	d.metrics.NotificationDispatched(string(t))

	evt := notification.Event{
		ID:               n.ID.String(),
		Type:             notification.EventNotificationCreated,
		RecipientID:      n.RecipientID.String(),
		NotificationType: string(n.Type),
		Title:            n.Title,
		Message:          n.Message,
		EmailSent:        n.EmailSent,
		SMSSent:          n.SMSSent,
		CreatedAt:        n.CreatedAt,
	}
	if err := d.publisher.Publish(ctx, evt); err != nil {
		log.Warn().Err(err).Msg("publish notification event failed")
	}

	log.Debug().
		Bool("email_attempted", del.EmailAttempted).
		Bool("sms_attempted", del.SMSAttempted).
		Msg("notification dispatched")
	return del
}

func (d *Dispatcher) recoverDispatch(r Recipient, t Type) {
	if p := recover(); p != nil {
		d.logger.Error().
			Str("recipient_id", r.UserID.String()).
			Str("type", string(t)).
			Str("panic", fmt.Sprint(p)).
			Msg("notification dispatch panicked")
	}
}
