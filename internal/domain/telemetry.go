package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrUnknownDevice marks telemetry from a device with no calibration entry.
	// Expected in normal operation; callers drop the message and continue.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrMalformedPayload marks a payload that cannot be interpreted as a
	// distance measurement. Treated exactly like ErrUnknownDevice.
	ErrMalformedPayload = errors.New("malformed payload")
)

// maxPayloadBytes bounds the big-endian integer width. Deployed sensors send
// two bytes; anything past eight bytes cannot be a distance.
const maxPayloadBytes = 8

// DecodeTelemetry converts a raw device payload into a SensorReading.
//
// The payload is base64-encoded bytes holding a big-endian unsigned integer:
// the measured distance from the sensor down to the water surface in
// millimeters. A zero ts falls back to the current clock time.
//
// Returns ErrUnknownDevice when the device has no calibration entry and
// ErrMalformedPayload when the payload cannot be decoded; both are expected
// drop conditions, not failures of the ingestion path.
func DecodeTelemetry(cals CalibrationTable, deviceID, payloadB64 string, ts time.Time) (SensorReading, error) {
	raw, err := base64.StdEncoding.DecodeString(payloadB64)
	if err != nil {
		return SensorReading{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(raw) == 0 || len(raw) > maxPayloadBytes {
		return SensorReading{}, fmt.Errorf("%w: payload is %d bytes", ErrMalformedPayload, len(raw))
	}

	cal, ok := cals[deviceID]
	if !ok {
		return SensorReading{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	var acc uint64
	for _, b := range raw {
		acc = acc<<8 | uint64(b)
	}
	if acc > math.MaxInt {
		return SensorReading{}, fmt.Errorf("%w: distance %d out of range", ErrMalformedPayload, acc)
	}
	distance := int(acc)

	if ts.IsZero() {
		ts = clock.Now().UTC()
	}

	return SensorReading{
		Timestamp:          ts,
		DeviceID:           deviceID,
		DistanceToSensorMM: distance,
		WaterLevelMM:       cal.SensorToRiverBedMM - distance,
		Alert:              distance <= cal.FloodThresholdMM(),
	}, nil
}
