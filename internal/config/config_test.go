package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, "kentwatersensors/devices/+/up", cfg.MQTTTopic)
	assert.Equal(t, "floodwatch", cfg.MQTTClientID)
	assert.Equal(t, "https://environment.data.gov.uk/flood-monitoring", cfg.AgencyBaseURL)
	assert.Equal(t, 10*time.Second, cfg.AgencyTimeout)
	assert.InDelta(t, 51.280233, cfg.HomeLat, 1e-9)
	assert.InDelta(t, 1.0789089, cfg.HomeLon, 1e-9)
	assert.Equal(t, 5.0, cfg.SearchRadiusKm)
	assert.Equal(t, 5, cfg.StationCount)
	assert.Equal(t, 15*time.Minute, cfg.PollInterval)
	assert.Equal(t, 9, cfg.DigestHour)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "floodalertskentuk@gmail.com", cfg.MailFrom)
	assert.Equal(t, "floodalertskentuk", cfg.SMSFrom)
	assert.False(t, cfg.MailEnabled)
	assert.False(t, cfg.SMSEnabled)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data/floodwatch.db", cfg.DatabasePath)
	assert.Nil(t, cfg.ExtraCalibrations)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("MQTT_BROKER", "ssl://eu1.cloud.thethings.network:8883")
	t.Setenv("MQTT_USERNAME", "kentwatersensors")
	t.Setenv("MQTT_PASSWORD", "ttn-api-key")
	t.Setenv("AGENCY_TIMEOUT", "30s")
	t.Setenv("HOME_LAT", "51.5")
	t.Setenv("HOME_LON", "-0.12")
	t.Setenv("SEARCH_RADIUS_KM", "10")
	t.Setenv("STATION_COUNT", "3")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("DIGEST_HOUR", "7")
	t.Setenv("SMTP_HOST", "smtp.gmail.com")
	t.Setenv("VONAGE_API_KEY", "key")
	t.Setenv("VONAGE_API_SECRET", "secret")
	t.Setenv("DB_PATH", "/tmp/test.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ssl://eu1.cloud.thethings.network:8883", cfg.MQTTBroker)
	assert.Equal(t, "kentwatersensors", cfg.MQTTUsername)
	assert.Equal(t, 30*time.Second, cfg.AgencyTimeout)
	assert.Equal(t, 51.5, cfg.HomeLat)
	assert.Equal(t, -0.12, cfg.HomeLon)
	assert.Equal(t, 10.0, cfg.SearchRadiusKm)
	assert.Equal(t, 3, cfg.StationCount)
	assert.Equal(t, 5*time.Minute, cfg.PollInterval)
	assert.Equal(t, 7, cfg.DigestHour)
	assert.True(t, cfg.MailEnabled)
	assert.True(t, cfg.SMSEnabled)
	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
}

func TestLoad_DeviceCalibrations(t *testing.T) {
	t.Setenv("DEVICE_CALIBRATIONS", `{"lairdc0ee400001099999":{"sensor_to_river_bed_mm":2000,"flood_plain_to_river_bed_mm":1500}}`)

	cfg, err := Load()
	require.NoError(t, err)

	require.Contains(t, cfg.ExtraCalibrations, "lairdc0ee400001099999")
	cal := cfg.ExtraCalibrations["lairdc0ee400001099999"]
	assert.Equal(t, 2000, cal.SensorToRiverBedMM)
	assert.Equal(t, 1500, cal.FloodPlainToRiverBedMM)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad poll interval", "POLL_INTERVAL", "often"},
		{"zero poll interval", "POLL_INTERVAL", "0s"},
		{"bad latitude", "HOME_LAT", "north"},
		{"zero radius", "SEARCH_RADIUS_KM", "0"},
		{"zero station count", "STATION_COUNT", "0"},
		{"digest hour out of range", "DIGEST_HOUR", "24"},
		{"bad calibrations", "DEVICE_CALIBRATIONS", "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_SMSSecretRequiredWithKey(t *testing.T) {
	t.Setenv("VONAGE_API_KEY", "key")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VONAGE_API_SECRET")
}
