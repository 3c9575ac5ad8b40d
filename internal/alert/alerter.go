// Package alert builds and dispatches flood warning digests to subscribers.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kentwatersensors/floodwatch/internal/domain"
	"github.com/kentwatersensors/floodwatch/internal/observability"
)

// WarningFetcher queries active flood warnings around a point.
type WarningFetcher interface {
	WarningsNear(ctx context.Context, center domain.Point, distKm float64) ([]domain.FloodWarning, error)
}

// SubscriberSource lists the registered digest recipients.
type SubscriberSource interface {
	Subscribers(ctx context.Context) ([]domain.Subscriber, error)
}

// EmailSender delivers one HTML email.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	Send(ctx context.Context, to, text string) error
}

// Alerter runs the daily digest fan-out and the on-demand test path.
// Either sender may be nil when the corresponding channel is not configured;
// affected deliveries are skipped with a log line.
type Alerter struct {
	warnings    WarningFetcher
	subscribers SubscriberSource
	email       EmailSender
	sms         SMSSender
	metrics     *observability.Metrics
	logger      *slog.Logger
	radiusKm    float64
}

// New creates an Alerter.
func New(warnings WarningFetcher, subscribers SubscriberSource, email EmailSender, sms SMSSender, metrics *observability.Metrics, logger *slog.Logger, radiusKm float64) *Alerter {
	return &Alerter{
		warnings:    warnings,
		subscribers: subscribers,
		email:       email,
		sms:         sms,
		metrics:     metrics,
		logger:      logger,
		radiusKm:    radiusKm,
	}
}

// RunDaily sends the digest to every subscriber. Each subscriber's pipeline
// is independent: a fetch or dispatch failure for one is logged and the loop
// moves on to the next.
func (a *Alerter) RunDaily(ctx context.Context) error {
	subs, err := a.subscribers.Subscribers(ctx)
	if err != nil {
		a.metrics.DigestRuns.WithLabelValues("error").Inc()
		return fmt.Errorf("list subscribers: %w", err)
	}

	for _, sub := range subs {
		if err := a.digestFor(ctx, sub); err != nil {
			a.logger.Error("digest failed for subscriber", "subscriber", sub.ID, "error", err)
		}
		if ctx.Err() != nil {
			a.metrics.DigestRuns.WithLabelValues("error").Inc()
			return ctx.Err()
		}
	}

	a.metrics.DigestRuns.WithLabelValues("success").Inc()
	a.logger.Info("daily digest run complete", "subscribers", len(subs))
	return nil
}

func (a *Alerter) digestFor(ctx context.Context, sub domain.Subscriber) error {
	warnings, err := a.warnings.WarningsNear(ctx, domain.Point{Lat: sub.Latitude, Lon: sub.Longitude}, a.radiusKm)
	if err != nil {
		return fmt.Errorf("fetch warnings: %w", err)
	}

	digest := domain.BuildDailyDigest(warnings)

	if sub.Email != "" {
		a.send("email", func() error {
			return a.sendEmail(ctx, sub.Email, digest.Subject, digest.HTML)
		})
	}
	if sub.ContactNumber != "" {
		a.send("sms", func() error {
			return a.sendSMS(ctx, sub.ContactNumber, digest.Text)
		})
	}
	return nil
}

// Test sends the digest for arbitrary coordinates to a single email address,
// independent of the subscriber store. Used to preview alert content before
// subscribing.
func (a *Alerter) Test(ctx context.Context, email string, lat, lon float64) error {
	warnings, err := a.warnings.WarningsNear(ctx, domain.Point{Lat: lat, Lon: lon}, a.radiusKm)
	if err != nil {
		return fmt.Errorf("fetch warnings: %w", err)
	}

	digest := domain.BuildTestDigest(warnings)
	return a.sendEmail(ctx, email, digest.Subject, digest.HTML)
}

// Welcome sends the one-off subscription confirmations for whichever
// contact details are present.
func (a *Alerter) Welcome(ctx context.Context, email, phone string) {
	if email != "" {
		a.send("email", func() error {
			return a.sendEmail(ctx, email, "Subscription", domain.SubscribeEmailHTML)
		})
	}
	if phone != "" {
		a.send("sms", func() error {
			return a.sendSMS(ctx, phone, domain.SubscribeSMSText)
		})
	}
}

// send runs one dispatch, recording outcome metrics. Dispatch errors are
// contained here; they never abort the caller's loop.
func (a *Alerter) send(channel string, dispatch func() error) {
	if err := dispatch(); err != nil {
		a.metrics.DigestsSent.WithLabelValues(channel, "error").Inc()
		a.logger.Error("dispatch failed", "channel", channel, "error", err)
		return
	}
	a.metrics.DigestsSent.WithLabelValues(channel, "success").Inc()
}

func (a *Alerter) sendEmail(ctx context.Context, to, subject, html string) error {
	if a.email == nil {
		a.logger.Warn("email channel not configured, skipping", "to", to)
		return nil
	}
	return a.email.Send(ctx, to, subject, html)
}

func (a *Alerter) sendSMS(ctx context.Context, to, text string) error {
	if a.sms == nil {
		a.logger.Warn("sms channel not configured, skipping", "to", to)
		return nil
	}
	return a.sms.Send(ctx, to, text)
}
