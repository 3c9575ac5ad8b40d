package domain

import "time"

// SensorReading is a single decoded measurement from a private distance sensor.
// Readings are append-only once written to the store.
type SensorReading struct {
	Timestamp          time.Time `json:"timestamp"`
	DeviceID           string    `json:"deviceId"`
	DistanceToSensorMM int       `json:"distanceToSensor"`
	WaterLevelMM       int       `json:"waterLevel"`

	// Alert reports whether the reading met the flood plain threshold at
	// decode time. Informational only; not persisted.
	Alert bool `json:"-"`
}

// AgencyReading is a water-level reading polled from an Environment Agency
// station, converted to millimeters.
type AgencyReading struct {
	Timestamp        time.Time `json:"timestamp"`
	StationReference string    `json:"stationReference"`
	ReadingValueMM   float64   `json:"readingValue"`
}

// Station is an entry from the Environment Agency station directory.
// Transient; fetched per search and never persisted.
type Station struct {
	Notation string
	Lat      float64
	Lon      float64
	Measures []Measure
}

// Measure describes one quantity a station reports, e.g. "level" or "rainfall".
type Measure struct {
	Parameter string
}

// Subscriber is a contact registered for daily flood digests.
type Subscriber struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	ContactNumber string  `json:"contactNumber"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	County        string  `json:"county"`
}

// FloodWarning is an active warning returned by the Environment Agency
// flood-warning API for an area.
type FloodWarning struct {
	Description   string
	Message       string
	Severity      string
	SeverityLevel int
}
