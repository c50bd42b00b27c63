package alerting

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"
)

// EmailOptions 配置 SMTP 告警通道。
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// EmailNotifier delivers notifications over SMTP.
type EmailNotifier struct {
	opts   EmailOptions
	dialer *gomail.Dialer
	logger zerolog.Logger
}

// NewEmailNotifier 构造邮件告警器。
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Port == 0 {
		opts.Port = 587
	}
	return &EmailNotifier{
		opts:   opts,
		dialer: gomail.NewDialer(opts.Host, opts.Port, opts.Username, opts.Password),
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
}

// Notify sends the notification as a plain-text mail. gomail has no
// context support; cancellation is checked before dialing only.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.opts.From)
	msg.SetHeader("To", n.opts.To)
	msg.SetHeader("Subject", note.Title)
	msg.SetBody("text/plain", renderMessage(note))

	if err := n.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}

	n.logger.Info().Int64("subscriber_id", note.SubscriberID).
		Int64("artist_id", note.ArtistID).
		Str("kind", note.Kind).
		Msg("告警已发送 (Email)")
	return nil
}

var _ Notifier = (*EmailNotifier)(nil)
