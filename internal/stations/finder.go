// Package stations ranks Environment Agency stations by distance from a
// reference point.
package stations

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/kentwatersensors/floodwatch/internal/domain"
)

// Directory queries the external station directory.
type Directory interface {
	StationsNear(ctx context.Context, center domain.Point, distKm float64) ([]domain.Station, error)
}

// Finder performs the nearest-station search over a station directory.
type Finder struct {
	directory Directory
	logger    *slog.Logger
}

// NewFinder creates a Finder backed by the given directory.
func NewFinder(directory Directory, logger *slog.Logger) *Finder {
	return &Finder{directory: directory, logger: logger}
}

// FindNearest returns the notations of the up-to-n stations closest to
// center, among stations within radiusKm whose first measure matches
// category ("level" or "rainfall"). Results are ordered nearest first; ties
// keep directory order (stable sort). Directory failures propagate to the
// caller; retry policy belongs to the scheduler.
func (f *Finder) FindNearest(ctx context.Context, center domain.Point, radiusKm float64, category string, n int) ([]string, error) {
	all, err := f.directory.StationsNear(ctx, center, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("station directory: %w", err)
	}

	ranked := rank(center, all, category)

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	notations := make([]string, len(ranked))
	for i, s := range ranked {
		notations[i] = s.notation
	}

	f.logger.Debug("nearest station search",
		"candidates", len(all),
		"matched", len(notations),
		"category", category,
	)
	return notations, nil
}

type rankedStation struct {
	notation string
	distKm   float64
}

// rank filters stations to the requested measure category, collapses
// duplicate notations (a station may appear once per measure in the
// directory response), and sorts ascending by great-circle distance.
// Only the first measure entry is matched, and the first occurrence of a
// notation supplies its coordinates.
func rank(center domain.Point, all []domain.Station, category string) []rankedStation {
	seen := make(map[string]bool, len(all))
	ranked := make([]rankedStation, 0, len(all))

	for _, s := range all {
		if len(s.Measures) == 0 || s.Measures[0].Parameter != category {
			continue
		}
		if seen[s.Notation] {
			continue
		}
		seen[s.Notation] = true

		ranked = append(ranked, rankedStation{
			notation: s.Notation,
			distKm:   domain.HaversineKm(center, domain.Point{Lat: s.Lat, Lon: s.Lon}),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].distKm < ranked[j].distKm
	})
	return ranked
}
