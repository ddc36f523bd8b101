package params

import (
	"os"
	"time"
)

// InfluxDBConfig configures the snapshot exporter.
// An empty URL disables export.
type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

func DefaultInfluxDBConfig() *InfluxDBConfig {
	return &InfluxDBConfig{
		URL:    os.Getenv("INFLUXDB_URL"),
		Token:  os.Getenv("INFLUXDB_TOKEN"),
		Org:    os.Getenv("INFLUXDB_ORG"),
		Bucket: os.Getenv("INFLUXDB_BUCKET"),
	}
}

func (c *InfluxDBConfig) Enabled() bool {
	return c != nil && c.URL != ""
}

// DefaultMeterInterval is how often event rates are logged.
var DefaultMeterInterval = 30 * time.Second
