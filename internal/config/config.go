package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	MQTTBroker   string
	MQTTUsername string
	MQTTPassword string
	MQTTTopic    string
	MQTTClientID string

	AgencyBaseURL string
	AgencyTimeout time.Duration

	HomeLat        float64
	HomeLon        float64
	SearchRadiusKm float64
	StationCount   int

	PollInterval time.Duration
	DigestHour   int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailEnabled  bool

	VonageAPIKey    string
	VonageAPISecret string
	SMSFrom         string
	SMSEnabled      bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	DatabasePath    string

	// ExtraCalibrations extends the built-in device calibration table.
	// Keyed by device id; values in millimeters.
	ExtraCalibrations map[string]Calibration
}

// Calibration mirrors domain.Calibration for config-supplied devices.
type Calibration struct {
	SensorToRiverBedMM     int `json:"sensor_to_river_bed_mm"`
	FloodPlainToRiverBedMM int `json:"flood_plain_to_river_bed_mm"`
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	agencyTimeout, err := parseDuration("AGENCY_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration("POLL_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	homeLat, err := parseFloat("HOME_LAT", "51.280233")
	if err != nil {
		return nil, err
	}
	homeLon, err := parseFloat("HOME_LON", "1.0789089")
	if err != nil {
		return nil, err
	}
	radius, err := parseFloat("SEARCH_RADIUS_KM", "5")
	if err != nil {
		return nil, err
	}

	stationCount, err := parseInt("STATION_COUNT", "5")
	if err != nil {
		return nil, err
	}
	digestHour, err := parseInt("DIGEST_HOUR", "9")
	if err != nil {
		return nil, err
	}
	smtpPort, err := parseInt("SMTP_PORT", "587")
	if err != nil {
		return nil, err
	}

	extraCals, err := parseCalibrations(os.Getenv("DEVICE_CALIBRATIONS"))
	if err != nil {
		return nil, err
	}

	smtpHost := os.Getenv("SMTP_HOST")
	vonageKey := os.Getenv("VONAGE_API_KEY")

	cfg := &Config{
		MQTTBroker:   envOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTUsername: os.Getenv("MQTT_USERNAME"),
		MQTTPassword: os.Getenv("MQTT_PASSWORD"),
		MQTTTopic:    envOrDefault("MQTT_TOPIC", "kentwatersensors/devices/+/up"),
		MQTTClientID: envOrDefault("MQTT_CLIENT_ID", "floodwatch"),

		AgencyBaseURL: envOrDefault("AGENCY_BASE_URL", "https://environment.data.gov.uk/flood-monitoring"),
		AgencyTimeout: agencyTimeout,

		HomeLat:        homeLat,
		HomeLon:        homeLon,
		SearchRadiusKm: radius,
		StationCount:   stationCount,

		PollInterval: pollInterval,
		DigestHour:   digestHour,

		SMTPHost:     smtpHost,
		SMTPPort:     smtpPort,
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     envOrDefault("MAIL_FROM", "floodalertskentuk@gmail.com"),
		MailEnabled:  smtpHost != "",

		VonageAPIKey:    vonageKey,
		VonageAPISecret: os.Getenv("VONAGE_API_SECRET"),
		SMSFrom:         envOrDefault("SMS_FROM", "floodalertskentuk"),
		SMSEnabled:      vonageKey != "",

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		DatabasePath:    envOrDefault("DB_PATH", "data/floodwatch.db"),

		ExtraCalibrations: extraCals,
	}

	if cfg.MQTTBroker == "" {
		return nil, errors.New("MQTT_BROKER is required")
	}
	if cfg.AgencyBaseURL == "" {
		return nil, errors.New("AGENCY_BASE_URL is required")
	}
	if cfg.SearchRadiusKm <= 0 {
		return nil, errors.New("SEARCH_RADIUS_KM must be positive")
	}
	if cfg.StationCount <= 0 {
		return nil, errors.New("STATION_COUNT must be positive")
	}
	if cfg.PollInterval <= 0 {
		return nil, errors.New("POLL_INTERVAL must be positive")
	}
	if cfg.DigestHour < 0 || cfg.DigestHour > 23 {
		return nil, errors.New("DIGEST_HOUR must be between 0 and 23")
	}
	if cfg.SMSEnabled && cfg.VonageAPISecret == "" {
		return nil, errors.New("VONAGE_API_KEY is set but VONAGE_API_SECRET is not")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(envOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(envOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseCalibrations(raw string) (map[string]Calibration, error) {
	if raw == "" {
		return nil, nil
	}
	var cals map[string]Calibration
	if err := json.Unmarshal([]byte(raw), &cals); err != nil {
		return nil, fmt.Errorf("invalid DEVICE_CALIBRATIONS: %w", err)
	}
	return cals, nil
}
