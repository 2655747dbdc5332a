// Package notify delivers digests to chat and email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/TobiSchelling/chartpulse/internal/config"
)

// Notifier sends one message. Disabled notifiers are skipped by Dispatcher.
type Notifier interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, title, markdown string) error
}

// Dispatcher fans a message out to every enabled notifier.
type Dispatcher struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher over the given notifiers.
func NewDispatcher(logger *zap.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifiers: notifiers, logger: logger}
}

// Enabled reports whether at least one channel will receive messages.
func (d *Dispatcher) Enabled() bool {
	for _, n := range d.notifiers {
		if n.Enabled() {
			return true
		}
	}
	return false
}

// Send delivers to every enabled notifier. A failing channel does not stop
// the others; all failures are returned joined.
func (d *Dispatcher) Send(ctx context.Context, title, markdown string) (int, error) {
	var errs []error
	sent := 0
	for _, n := range d.notifiers {
		if !n.Enabled() {
			d.logger.Debug("notifier disabled", zap.String("notifier", n.Name()))
			continue
		}
		if err := n.Send(ctx, title, markdown); err != nil {
			d.logger.Warn("notification failed", zap.String("notifier", n.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		sent++
		d.logger.Info("notification sent", zap.String("notifier", n.Name()))
	}
	return sent, errors.Join(errs...)
}

// FromConfig builds a Dispatcher for the configured channels, reading the
// webhook URL and SMTP credentials from the environment.
func FromConfig(cfg *config.Config, logger *zap.Logger) *Dispatcher {
	n := cfg.Notify
	email := NewEmail(EmailConfig{
		Host:     n.Email.SMTPHost,
		Port:     n.Email.SMTPPort,
		User:     env(n.Email.UserEnv),
		Password: env(n.Email.PasswordEnv),
		To:       n.Email.To,
	})
	return NewDispatcher(logger, NewWeCom(env(n.WeCom.WebhookURLEnv)), email)
}

func env(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
