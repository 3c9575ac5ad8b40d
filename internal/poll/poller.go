// Package poll periodically captures the latest readings from the nearest
// Environment Agency water-level stations.
package poll

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kentwatersensors/floodwatch/internal/domain"
	"github.com/kentwatersensors/floodwatch/internal/observability"
)

// levelCategory is the station measure the poller tracks.
const levelCategory = "level"

// StationFinder resolves the nearest matching stations to a point.
type StationFinder interface {
	FindNearest(ctx context.Context, center domain.Point, radiusKm float64, category string, n int) ([]string, error)
}

// ReadingFetcher fetches a station's single latest reading. The value is in
// meters.
type ReadingFetcher interface {
	LatestReading(ctx context.Context, stationReference string) (time.Time, float64, error)
}

// AgencyWriter persists a cycle's readings atomically.
type AgencyWriter interface {
	InsertAgencyReadings(ctx context.Context, readings []domain.AgencyReading) error
}

// Poller runs one external-reading capture cycle per invocation. Scheduling
// lives in the schedule package.
type Poller struct {
	finder  StationFinder
	fetcher ReadingFetcher
	writer  AgencyWriter
	metrics *observability.Metrics
	logger  *slog.Logger

	home     domain.Point
	radiusKm float64
	count    int
}

// New creates a Poller for the fixed home coordinate.
func New(finder StationFinder, fetcher ReadingFetcher, writer AgencyWriter, metrics *observability.Metrics, logger *slog.Logger, home domain.Point, radiusKm float64, count int) *Poller {
	return &Poller{
		finder:   finder,
		fetcher:  fetcher,
		writer:   writer,
		metrics:  metrics,
		logger:   logger,
		home:     home,
		radiusKm: radiusKm,
		count:    count,
	}
}

// Run executes one poll cycle: re-resolve the nearest stations, fetch each
// station's latest reading concurrently, and commit the full result set.
// If any single fetch fails the whole cycle is abandoned with no partial
// commit; the next scheduled tick retries naturally.
func (p *Poller) Run(ctx context.Context) error {
	refs, err := p.finder.FindNearest(ctx, p.home, p.radiusKm, levelCategory, p.count)
	if err != nil {
		p.metrics.PollCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("resolve nearest stations: %w", err)
	}

	readings := make([]domain.AgencyReading, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			ts, meters, err := p.fetcher.LatestReading(gctx, ref)
			if err != nil {
				return fmt.Errorf("latest reading for %s: %w", ref, err)
			}
			readings[i] = domain.AgencyReading{
				Timestamp:        ts,
				StationReference: ref,
				ReadingValueMM:   meters * 1000,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.metrics.PollCycles.WithLabelValues("error").Inc()
		return err
	}

	if err := p.writer.InsertAgencyReadings(ctx, readings); err != nil {
		p.metrics.PollCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("persist agency readings: %w", err)
	}

	p.metrics.PollCycles.WithLabelValues("success").Inc()
	p.metrics.ReadingsPolled.Add(float64(len(readings)))
	p.logger.Info("poll cycle complete", "stations", len(refs), "readings", len(readings))
	return nil
}
