package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/memorelay/internal/common"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 4, c.IDLength)
	assert.Equal(t, 4, c.KeyLength)
	assert.Equal(t, "digits", c.Charset)
	assert.Equal(t, 15*time.Second, c.RequestTimeout)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"memorelay", "seal"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
}

func TestAlphabet(t *testing.T) {
	tests := []struct {
		charset string
		want    string
		wantErr bool
	}{
		{"digits", common.CharsetDigits, false},
		{"", common.CharsetDigits, false},
		{"lower,upper", common.CharsetLower + common.CharsetUpper, false},
		{" Digits , upper, digits", common.CharsetDigits + common.CharsetUpper, false},
		{"num,low,up", common.CharsetDigits + common.CharsetLower + common.CharsetUpper, false},
		{"emoji", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.charset, func(t *testing.T) {
			c := Config{Charset: tt.charset}
			got, err := c.Alphabet()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClampLength(t *testing.T) {
	assert.Equal(t, 4, ClampLength(0))
	assert.Equal(t, 4, ClampLength(4))
	assert.Equal(t, 12, ClampLength(12))
	assert.Equal(t, 32, ClampLength(32))
	assert.Equal(t, 32, ClampLength(33))
}
