package stations_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentwatersensors/floodwatch/internal/domain"
	"github.com/kentwatersensors/floodwatch/internal/stations"
)

var home = domain.Point{Lat: 51.2802, Lon: 1.0789}

type mockDirectory struct {
	stations []domain.Station
	err      error
}

func (m *mockDirectory) StationsNear(_ context.Context, _ domain.Point, _ float64) ([]domain.Station, error) {
	return m.stations, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// station builds a level station offset from home by dLat degrees north.
func levelStation(notation string, dLat float64) domain.Station {
	return domain.Station{
		Notation: notation,
		Lat:      home.Lat + dLat,
		Lon:      home.Lon,
		Measures: []domain.Measure{{Parameter: "level"}},
	}
}

func TestFindNearest_ReturnsClosestNSorted(t *testing.T) {
	// Eight level stations in range, deliberately unsorted.
	dir := &mockDirectory{stations: []domain.Station{
		levelStation("S4", 0.020),
		levelStation("S1", 0.002),
		levelStation("S7", 0.035),
		levelStation("S3", 0.015),
		levelStation("S6", 0.030),
		levelStation("S2", 0.010),
		levelStation("S8", 0.040),
		levelStation("S5", 0.025),
	}}

	finder := stations.NewFinder(dir, discardLogger())
	got, err := finder.FindNearest(context.Background(), home, 5, "level", 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2", "S3", "S4", "S5"}, got)
}

func TestFindNearest_FiltersByFirstMeasureCategory(t *testing.T) {
	rainfall := domain.Station{
		Notation: "R1",
		Lat:      home.Lat,
		Lon:      home.Lon,
		Measures: []domain.Measure{{Parameter: "rainfall"}, {Parameter: "level"}},
	}
	noMeasures := domain.Station{Notation: "X1", Lat: home.Lat, Lon: home.Lon}

	dir := &mockDirectory{stations: []domain.Station{rainfall, noMeasures, levelStation("S1", 0.01)}}

	finder := stations.NewFinder(dir, discardLogger())
	got, err := finder.FindNearest(context.Background(), home, 5, "level", 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, got)
}

func TestFindNearest_CollapsesDuplicateNotations(t *testing.T) {
	// A station reporting a measure more than once appears multiple times
	// in the directory response.
	dir := &mockDirectory{stations: []domain.Station{
		levelStation("S1", 0.010),
		levelStation("S1", 0.010),
		levelStation("S2", 0.005),
	}}

	finder := stations.NewFinder(dir, discardLogger())
	got, err := finder.FindNearest(context.Background(), home, 5, "level", 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"S2", "S1"}, got)
}

func TestFindNearest_NeverReturnsMoreThanN(t *testing.T) {
	dir := &mockDirectory{stations: []domain.Station{
		levelStation("S1", 0.01),
		levelStation("S2", 0.02),
		levelStation("S3", 0.03),
	}}

	finder := stations.NewFinder(dir, discardLogger())

	got, err := finder.FindNearest(context.Background(), home, 5, "level", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Fewer matches than requested returns what exists.
	got, err = finder.FindNearest(context.Background(), home, 5, "level", 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFindNearest_DirectoryErrorPropagates(t *testing.T) {
	dir := &mockDirectory{err: errors.New("connection refused")}

	finder := stations.NewFinder(dir, discardLogger())
	_, err := finder.FindNearest(context.Background(), home, 5, "level", 5)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "station directory")
}
