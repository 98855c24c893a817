package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/memorelay/internal/common"
)

const (
	MinCodeLength = 4
	MaxCodeLength = 32
)

// Config holds runtime settings for the memorelay CLI.
//
// Fields:
//   - ServerURL: base URL of the relay, also the prefix of share links.
//   - IDLength / KeyLength: length of generated identifiers and passcodes.
//   - Charset: comma-separated character classes for generated codes
//     ("digits", "lower", "upper").
//   - RequestTimeout: per-request HTTP timeout.
type Config struct {
	ServerURL      string
	IDLength       int
	KeyLength      int
	Charset        string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.IDLength = 4
	c.KeyLength = 4
	c.Charset = "digits"
	c.RequestTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

// Alphabet resolves Charset to the characters codes are drawn from. An empty
// selection falls back to digits.
func (c *Config) Alphabet() (string, error) {
	var b strings.Builder
	seen := map[string]bool{}
	for _, part := range strings.Split(c.Charset, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		switch part {
		case "digits", "num":
			b.WriteString(common.CharsetDigits)
		case "lower", "low":
			b.WriteString(common.CharsetLower)
		case "upper", "up":
			b.WriteString(common.CharsetUpper)
		default:
			return "", fmt.Errorf("unknown charset %q", part)
		}
	}
	if b.Len() == 0 {
		return common.CharsetDigits, nil
	}
	return b.String(), nil
}

// ClampLength bounds n to the accepted code length range.
func ClampLength(n int) int {
	return min(max(n, MinCodeLength), MaxCodeLength)
}
