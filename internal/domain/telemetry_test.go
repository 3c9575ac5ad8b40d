package domain

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testDevice45 = "lairdc0ee400001012345"
	testDeviceF3 = "lairdc0ee4000010109f3"
)

func encodeDistance(mm int) string {
	return base64.StdEncoding.EncodeToString([]byte{byte(mm >> 8), byte(mm)})
}

func TestDecodeTelemetry(t *testing.T) {
	cals := DefaultCalibrations()
	ts := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("distance 500mm derives water level 840mm", func(t *testing.T) {
		reading, err := DecodeTelemetry(cals, testDevice45, encodeDistance(500), ts)

		require.NoError(t, err)
		assert.Equal(t, testDevice45, reading.DeviceID)
		assert.Equal(t, 500, reading.DistanceToSensorMM)
		assert.Equal(t, 840, reading.WaterLevelMM)
		assert.Equal(t, ts, reading.Timestamp)
		assert.False(t, reading.Alert)
	})

	t.Run("water level above sensor mount goes negative", func(t *testing.T) {
		reading, err := DecodeTelemetry(cals, testDeviceF3, encodeDistance(2000), ts)

		require.NoError(t, err)
		assert.Equal(t, -180, reading.WaterLevelMM)
	})

	t.Run("distance at flood plain threshold raises alert", func(t *testing.T) {
		// Device 45 threshold: 1340 - 1200 = 140mm.
		reading, err := DecodeTelemetry(cals, testDevice45, encodeDistance(140), ts)
		require.NoError(t, err)
		assert.True(t, reading.Alert)

		reading, err = DecodeTelemetry(cals, testDevice45, encodeDistance(141), ts)
		require.NoError(t, err)
		assert.False(t, reading.Alert)
	})

	t.Run("unknown device yields drop signal", func(t *testing.T) {
		_, err := DecodeTelemetry(cals, "not-a-known-device", encodeDistance(500), ts)
		assert.ErrorIs(t, err, ErrUnknownDevice)
	})

	t.Run("invalid base64 is malformed", func(t *testing.T) {
		_, err := DecodeTelemetry(cals, testDevice45, "not base64!!", ts)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("empty payload is malformed", func(t *testing.T) {
		_, err := DecodeTelemetry(cals, testDevice45, "", ts)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("payload wider than eight bytes is malformed", func(t *testing.T) {
		wide := base64.StdEncoding.EncodeToString(make([]byte, 9))
		_, err := DecodeTelemetry(cals, testDevice45, wide, ts)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("eight MSB-set bytes do not wrap negative", func(t *testing.T) {
		full := base64.StdEncoding.EncodeToString([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		_, err := DecodeTelemetry(cals, testDevice45, full, ts)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("largest non-wrapping eight-byte distance decodes", func(t *testing.T) {
		max := base64.StdEncoding.EncodeToString([]byte{0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
		reading, err := DecodeTelemetry(cals, testDevice45, max, ts)
		require.NoError(t, err)
		assert.Positive(t, reading.DistanceToSensorMM)
	})

	t.Run("malformed payload does not consult calibration", func(t *testing.T) {
		// Drop classification must hold for uncalibrated devices too.
		_, err := DecodeTelemetry(cals, "not-a-known-device", "%%%", ts)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("zero timestamp falls back to the clock", func(t *testing.T) {
		frozen := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
		SetClock(clockwork.NewFakeClockAt(frozen))
		defer SetClock(nil)

		reading, err := DecodeTelemetry(cals, testDevice45, encodeDistance(500), time.Time{})
		require.NoError(t, err)
		assert.Equal(t, frozen, reading.Timestamp)
	})
}

func TestCalibrationTable_Merge(t *testing.T) {
	base := DefaultCalibrations()
	merged := base.Merge(CalibrationTable{
		"newdevice": {SensorToRiverBedMM: 1000, FloodPlainToRiverBedMM: 800},
		testDevice45: {SensorToRiverBedMM: 1500, FloodPlainToRiverBedMM: 1300},
	})

	assert.Len(t, merged, 3)
	assert.Equal(t, 1000, merged["newdevice"].SensorToRiverBedMM)
	assert.Equal(t, 1500, merged[testDevice45].SensorToRiverBedMM)

	// Source table is untouched.
	assert.Equal(t, 1340, base[testDevice45].SensorToRiverBedMM)
}
