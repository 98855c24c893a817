package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/memorelay/internal/flagx"
	"github.com/dmitrijs2005/memorelay/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	IDLength       int            `json:"id_length"`
	KeyLength      int            `json:"key_length"`
	Charset        string         `json:"charset"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Keys missing from the file keep their current values.
// Panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.IDLength != 0 {
		cfg.IDLength = jc.IDLength
	}
	if jc.KeyLength != 0 {
		cfg.KeyLength = jc.KeyLength
	}
	if jc.Charset != "" {
		cfg.Charset = jc.Charset
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
