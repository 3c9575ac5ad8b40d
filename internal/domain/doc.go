// Package domain models river water-level telemetry and flood alerting data.
//
// # Data Sources
//
// Two independent feeds are combined:
//
//  1. Private distance sensors publishing over MQTT. Each device sits above the
//     river and measures the distance down to the water surface. Messages arrive
//     on the wildcard topic "kentwatersensors/devices/+/up" wrapped in a TTN-style
//     envelope: {"dev_id": ..., "payload_raw": <base64>, "metadata": {"time": <RFC3339>}}.
//     The payload bytes are a big-endian unsigned integer: distance to the water
//     in millimeters.
//
//  2. The Environment Agency flood-monitoring API
//     (https://environment.data.gov.uk/flood-monitoring), which provides
//     government station directories, latest readings (meters), and active
//     flood warnings.
//
// # Water Level Derivation
//
// Each known device carries two calibration constants, both in millimeters:
//
//	sensorToRiverBed:     mount height of the sensor above the river bed
//	floodPlainToRiverBed: height of the flood plain above the river bed
//
// A raw distance reading d derives:
//
//	waterLevel = sensorToRiverBed - d
//
// which may be negative when the water surface sits above the sensor mount.
// The flood alert condition holds when d <= sensorToRiverBed - floodPlainToRiverBed,
// i.e. the water has reached the flood plain. The alert flag travels with the
// in-memory reading but is not persisted.
//
// Telemetry from a device without calibration constants cannot be interpreted
// and is dropped, as are payloads that fail base64 decoding or exceed the
// integer width. Both are expected conditions, surfaced as [ErrUnknownDevice]
// and [ErrMalformedPayload], never as a crash.
//
// # Severity Model
//
// Environment Agency flood warnings carry a severity level from 1 to 4,
// 1 being the most severe:
//
//	1  Severe Flood Warning   severe flooding, danger to life
//	2  Flood Warning          flooding expected, immediate action required
//	3  Flood Alert            flooding possible, be prepared
//	4  Warning No Longer In Force
//
// See [SeverityAdvice] for the advice text attached to digests.
package domain
