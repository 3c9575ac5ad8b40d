package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/kentwatersensors/floodwatch/internal/adapter/floodapi"
	"github.com/kentwatersensors/floodwatch/internal/adapter/httpapi"
	mqttadapter "github.com/kentwatersensors/floodwatch/internal/adapter/mqtt"
	"github.com/kentwatersensors/floodwatch/internal/adapter/notify"
	"github.com/kentwatersensors/floodwatch/internal/alert"
	"github.com/kentwatersensors/floodwatch/internal/config"
	"github.com/kentwatersensors/floodwatch/internal/domain"
	"github.com/kentwatersensors/floodwatch/internal/observability"
	"github.com/kentwatersensors/floodwatch/internal/poll"
	"github.com/kentwatersensors/floodwatch/internal/schedule"
	"github.com/kentwatersensors/floodwatch/internal/stations"
	"github.com/kentwatersensors/floodwatch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open record store", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := st.InitSchema(ctx); err != nil {
		logger.Error("failed to init record store schema", "error", err)
		os.Exit(1)
	}

	cals := domain.DefaultCalibrations().Merge(calibrationsFromConfig(cfg))
	home := domain.Point{Lat: cfg.HomeLat, Lon: cfg.HomeLon}

	agency := floodapi.NewClient(cfg.AgencyBaseURL, cfg.AgencyTimeout, metrics, logger)
	finder := stations.NewFinder(agency, logger)
	poller := poll.New(finder, agency, st, metrics, logger, home, cfg.SearchRadiusKm, cfg.StationCount)

	var mailer alert.EmailSender
	if cfg.MailEnabled {
		mailer = notify.NewMailer(cfg)
	} else {
		logger.Info("email channel disabled (SMTP_HOST not set)")
	}
	var texter alert.SMSSender
	if cfg.SMSEnabled {
		texter = notify.NewSMSClient(cfg)
	} else {
		logger.Info("sms channel disabled (VONAGE_API_KEY not set)")
	}
	alerter := alert.New(agency, st, mailer, texter, metrics, logger, cfg.SearchRadiusKm)

	listener := mqttadapter.NewListener(cfg, cals, st, metrics, logger)
	if err := listener.Start(); err != nil {
		logger.Error("failed to start telemetry listener", "error", err)
		os.Exit(1)
	}

	srv := httpapi.NewServer(cfg.HTTPAddr, st, agency, alerter, listener, home, cfg.SearchRadiusKm, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start scheduled jobs.
	sched := schedule.New(clockwork.NewRealClock(), metrics, logger)
	go sched.Every(ctx, "agency_poll", cfg.PollInterval, true, poller.Run)
	go sched.DailyAt(ctx, "daily_digest", cfg.DigestHour, 0, alerter.RunDaily)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	listener.Close()
	if err := st.Close(); err != nil {
		logger.Error("record store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

func calibrationsFromConfig(cfg *config.Config) domain.CalibrationTable {
	if len(cfg.ExtraCalibrations) == 0 {
		return nil
	}
	cals := make(domain.CalibrationTable, len(cfg.ExtraCalibrations))
	for id, c := range cfg.ExtraCalibrations {
		cals[id] = domain.Calibration{
			SensorToRiverBedMM:     c.SensorToRiverBedMM,
			FloodPlainToRiverBedMM: c.FloodPlainToRiverBedMM,
		}
	}
	return cals
}
