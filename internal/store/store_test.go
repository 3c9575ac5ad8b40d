package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kentwatersensors/floodwatch/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "floodwatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.InitSchema(context.Background()))
	return s
}

func ts(hour, minute int) time.Time {
	return time.Date(2026, 1, 15, hour, minute, 0, 0, time.UTC)
}

func TestSensorReadings_LatestAndPeriod(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	readings := []domain.SensorReading{
		{Timestamp: ts(8, 0), DeviceID: "lairdc0ee400001012345", DistanceToSensorMM: 600, WaterLevelMM: 740},
		{Timestamp: ts(9, 0), DeviceID: "lairdc0ee400001012345", DistanceToSensorMM: 500, WaterLevelMM: 840},
		{Timestamp: ts(9, 30), DeviceID: "lairdc0ee4000010109f3", DistanceToSensorMM: 900, WaterLevelMM: 920},
	}
	for _, r := range readings {
		require.NoError(t, s.InsertSensorReading(ctx, r))
	}

	latest, err := s.LatestSensorReading(ctx, "lairdc0ee400001012345")
	require.NoError(t, err)
	assert.Equal(t, 840, latest.WaterLevelMM)
	assert.Equal(t, ts(9, 0), latest.Timestamp)

	period, err := s.SensorReadingsBetween(ctx, "lairdc0ee400001012345", ts(7, 0), ts(8, 30))
	require.NoError(t, err)
	require.Len(t, period, 1)
	assert.Equal(t, 740, period[0].WaterLevelMM)

	all, err := s.SensorReadingsBetween(ctx, "lairdc0ee400001012345", ts(0, 0), ts(23, 59))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Timestamp.Before(all[1].Timestamp), "oldest first")
}

func TestSensorReadings_SubSecondOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Timestamps differing only in sub-second precision must still order
	// correctly under the text comparison.
	whole := ts(9, 0)
	half := whole.Add(500 * time.Millisecond)
	next := whole.Add(time.Second)

	for i, at := range []time.Time{half, whole, next} {
		require.NoError(t, s.InsertSensorReading(ctx, domain.SensorReading{
			Timestamp: at, DeviceID: "d", DistanceToSensorMM: i, WaterLevelMM: i,
		}))
	}

	latest, err := s.LatestSensorReading(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, next, latest.Timestamp)

	all, err := s.SensorReadingsBetween(ctx, "d", whole, next)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, whole, all[0].Timestamp)
	assert.Equal(t, half, all[1].Timestamp)
	assert.Equal(t, next, all[2].Timestamp)
}

func TestLatestSensorReading_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LatestSensorReading(context.Background(), "unknown")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInsertSensorReading_DuplicatesAccepted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := domain.SensorReading{Timestamp: ts(9, 0), DeviceID: "d", DistanceToSensorMM: 500, WaterLevelMM: 840}
	require.NoError(t, s.InsertSensorReading(ctx, r))
	require.NoError(t, s.InsertSensorReading(ctx, r))

	all, err := s.SensorReadingsBetween(ctx, "d", ts(0, 0), ts(23, 59))
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestAgencyReadings_BatchAndQueries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []domain.AgencyReading{
		{Timestamp: ts(9, 0), StationReference: "E3966", ReadingValueMM: 482},
		{Timestamp: ts(9, 0), StationReference: "E4012", ReadingValueMM: 1210.5},
		{Timestamp: ts(9, 15), StationReference: "E3966", ReadingValueMM: 490},
	}
	require.NoError(t, s.InsertAgencyReadings(ctx, batch))

	latest, err := s.LatestAgencyReading(ctx, "E3966")
	require.NoError(t, err)
	assert.Equal(t, 490.0, latest.ReadingValueMM)

	period, err := s.AgencyReadingsBetween(ctx, "E3966", ts(8, 0), ts(9, 5))
	require.NoError(t, err)
	require.Len(t, period, 1)
	assert.Equal(t, 482.0, period[0].ReadingValueMM)

	_, err = s.LatestAgencyReading(ctx, "E9999")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInsertAgencyReadings_EmptyBatchIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.InsertAgencyReadings(context.Background(), nil))
}

func TestSubscribers_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	subs := []domain.Subscriber{
		{Name: "Sam", Email: "sam@example.com", ContactNumber: "447700900123", Latitude: 51.28, Longitude: 1.08, County: "Kent"},
		{Name: "Alex", Email: "alex@example.com", Latitude: 51.29, Longitude: 1.09, County: "Kent"},
		{Name: "Jo", ContactNumber: "447700900456", Latitude: 51.30, Longitude: 1.10, County: "Kent"},
	}
	for _, sub := range subs {
		require.NoError(t, s.AddSubscriber(ctx, sub))
	}

	got, err := s.Subscribers(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Sam", got[0].Name)
	assert.Equal(t, "sam@example.com", got[0].Email)
	assert.Equal(t, "447700900123", got[0].ContactNumber)
	assert.Equal(t, "Kent", got[0].County)

	// Missing contact fields come back as empty strings, not errors.
	assert.Empty(t, got[1].ContactNumber)
	assert.Empty(t, got[2].Email)

	assert.NotZero(t, got[0].ID)
}

func TestSubscribers_EmptyTable(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Subscribers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InitSchema(context.Background()))

	require.NoError(t, s.InsertSensorReading(context.Background(), domain.SensorReading{
		Timestamp: ts(9, 0), DeviceID: "d", DistanceToSensorMM: 1, WaterLevelMM: 2,
	}))
}
