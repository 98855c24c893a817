package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/memorelay/internal/flagx"
	"github.com/dmitrijs2005/memorelay/internal/timex"
)

// JsonConfig is the on-disk form of Config. Interval fields use
// timex.Duration, which accepts strings such as "1m" as well as integer
// nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC    string         `json:"endpoint_addr_grpc"`
	StorageDriver       string         `json:"storage_driver"`
	DatabaseDSN         string         `json:"database_dsn"`
	StaticDir           string         `json:"static_dir"`
	SweepInterval       timex.Duration `json:"sweep_interval"`
	HealthCheckInterval timex.Duration `json:"health_check_interval"`
	MaxBodyBytes        int64          `json:"max_body_bytes"`
	LogLevel            string         `json:"log_level"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file named by -c or
// -config. Without either flag nothing is loaded. Keys absent from the file
// keep their current values. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.StaticDir, c.StaticDir)
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.HealthCheckInterval.Duration != 0 {
		config.HealthCheckInterval = c.HealthCheckInterval.Duration
	}
	if c.MaxBodyBytes != 0 {
		config.MaxBodyBytes = c.MaxBodyBytes
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
