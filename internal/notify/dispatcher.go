// Package notify delivers user notifications: an in-app row always, plus
// optional SES email and SNS event fan-out.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"intent-broker/internal/common/aws"
	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/common/metrics"
	"intent-broker/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type Store interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	GetProfiles(ctx context.Context, ids []string) (map[string]*models.Profile, error)
}

type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Config struct {
	FromEmail string
	TopicARN  string
}

type Dispatcher struct {
	config    Config
	store     Store
	email     EmailSender
	publisher Publisher
	logger    logger.Logger
}

// NewDispatcher builds a dispatcher. A nil email sender or publisher disables that channel.
func NewDispatcher(config Config, store Store, email EmailSender, publisher Publisher, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		config:    config,
		store:     store,
		email:     email,
		publisher: publisher,
		logger:    log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// event is the SNS payload.
type event struct {
	NotificationID    string `json:"notificationId"`
	UserID            string `json:"userId"`
	Type              string `json:"type"`
	Title             string `json:"title"`
	Message           string `json:"message"`
	RelatedEntityType string `json:"relatedEntityType,omitempty"`
	RelatedEntityID   string `json:"relatedEntityId,omitempty"`
	CreatedAt         string `json:"createdAt"`
}

// Notify stores the notification and pushes it to the enabled channels. Only a
// failure to store it is returned; channel failures are logged and counted.
func (d *Dispatcher) Notify(ctx context.Context, n models.Notification) error {
	if err := d.store.InsertNotification(ctx, &n); err != nil {
		metrics.NotificationsDispatched.WithLabelValues("inapp", "failed").Inc()
		return apperrors.NewNotificationSendFailedError(n.Kind, err)
	}
	metrics.NotificationsDispatched.WithLabelValues("inapp", "sent").Inc()

	d.sendEmail(ctx, n)
	d.publish(ctx, n)
	return nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, n models.Notification) {
	if d.email == nil {
		return
	}

	profiles, err := d.store.GetProfiles(ctx, []string{n.UserID})
	if err != nil {
		d.failed("email", n, err)
		return
	}
	p := profiles[n.UserID]
	if p == nil || p.Email == "" {
		metrics.NotificationsDispatched.WithLabelValues("email", "skipped").Inc()
		return
	}

	if _, err := d.email.SendEmail(ctx, aws.TextEmail(d.config.FromEmail, p.Email, n.Title, n.Message)); err != nil {
		d.failed("email", n, err)
		return
	}
	metrics.NotificationsDispatched.WithLabelValues("email", "sent").Inc()
}

func (d *Dispatcher) publish(ctx context.Context, n models.Notification) {
	if d.publisher == nil {
		return
	}

	body, err := json.Marshal(event{
		NotificationID:    n.ID,
		UserID:            n.UserID,
		Type:              n.Kind,
		Title:             n.Title,
		Message:           n.Message,
		RelatedEntityType: n.RelatedEntityType,
		RelatedEntityID:   n.RelatedEntityID,
		CreatedAt:         n.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		d.failed("sns", n, err)
		return
	}

	if _, err := d.publisher.Publish(ctx, aws.EventMessage(d.config.TopicARN, n.Kind, string(body))); err != nil {
		d.failed("sns", n, err)
		return
	}
	metrics.NotificationsDispatched.WithLabelValues("sns", "sent").Inc()
}

func (d *Dispatcher) failed(channel string, n models.Notification, err error) {
	metrics.NotificationsDispatched.WithLabelValues(channel, "failed").Inc()
	d.logger.Warn("notification channel failed", map[string]interface{}{
		"channel": channel,
		"userId":  n.UserID,
		"type":    n.Kind,
		"error":   err.Error(),
	})
}
