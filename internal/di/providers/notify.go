package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/booksswap/booksswap-server/internal/billing"
	"github.com/booksswap/booksswap-server/internal/config"
	"github.com/booksswap/booksswap-server/internal/logger"
	"github.com/booksswap/booksswap-server/internal/metrics"
	"github.com/booksswap/booksswap-server/internal/notify"
)

// ProvideEmailSender provides SendGrid delivery, or a log-only sender when
// no API key is configured.
func ProvideEmailSender(i do.Injector) (notify.EmailSender, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Email.APIKey == "" {
		log.Warn("SendGrid API key not set, emails will only be logged")
		return notify.NewLogSender(log.Component("email")), nil
	}
	return notify.NewSendGridSender(cfg.Email.APIKey, cfg.Email.FromEmail, cfg.Email.FromName), nil
}

// DispatcherHandle wraps the notification dispatcher with shutdown capability.
type DispatcherHandle struct {
	*notify.Dispatcher
}

// Shutdown implements do.Shutdownable. Queued notifications are drained
// until the shutdown timeout.
func (h *DispatcherHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Dispatcher.Shutdown(ctx)
}

// ProvideDispatcher provides the notification queue with email and in-app
// push channels.
func ProvideDispatcher(i do.Injector) (*DispatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sender := do.MustInvoke[notify.EmailSender](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*logger.Logger](i)

	channels := []notify.Channel{
		notify.NewEmailChannel(sender, cfg.Email.AppURL),
		notify.NewPushChannel(sseHandle.Manager, cfg.Email.AppURL),
	}

	d := notify.NewDispatcher(notify.DispatcherConfig{
		QueueSize:   cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
		SendTimeout: cfg.Notify.SendTimeout,
	}, channels, m, log.Component("notify"))

	return &DispatcherHandle{Dispatcher: d}, nil
}

// ProvideBillingProvider provides Stripe, or a provider that reports
// billing as unavailable when Stripe is not configured.
func ProvideBillingProvider(i do.Injector) (billing.Provider, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Billing.Enabled() {
		log.Warn("Stripe not configured, checkout and webhooks are disabled")
		return billing.Unconfigured{}, nil
	}

	log.Info("Stripe billing enabled", "trial_days", cfg.Billing.TrialDays)
	return billing.NewStripeProvider(billing.StripeConfig{
		SecretKey:     cfg.Billing.SecretKey,
		PriceID:       cfg.Billing.PriceID,
		WebhookSecret: cfg.Billing.WebhookSecret,
		TrialDays:     cfg.Billing.TrialDays,
		FrontendURL:   cfg.Billing.FrontendURL,
	}), nil
}
