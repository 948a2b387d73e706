package reactorecho

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePortArg(t *testing.T) {
	assert.Equal(t, DefaultPort, ParsePortArg(nil))
	assert.Equal(t, 9000, ParsePortArg([]string{"9000"}))
	assert.Equal(t, 9000, ParsePortArg([]string{"9000", "extra"}))
	assert.Equal(t, 12, ParsePortArg([]string{"12abc"}))
	assert.Equal(t, 0, ParsePortArg([]string{"abc"}))
	assert.Equal(t, 0, ParsePortArg([]string{""}))
	assert.Equal(t, 9000, ParsePortArg([]string{" 9000"}))
	assert.Equal(t, 9000, ParsePortArg([]string{"\t+9000"}))
	assert.Equal(t, -1, ParsePortArg([]string{"-1"}))
	assert.Equal(t, 0, ParsePortArg([]string{"+"}))
	assert.Equal(t, 0, ParsePortArg([]string{"+-9"}))
	assert.Error(t, Config{Port: ParsePortArg([]string{"-1"}), MaxMessageSize: 1, MaxEvents: 1, ListenBacklog: 1}.Validate())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"zero message size", func(c *Config) { c.MaxMessageSize = 0 }},
		{"zero max events", func(c *Config) { c.MaxEvents = 0 }},
		{"zero backlog", func(c *Config) { c.ListenBacklog = 0 }},
		{"negative stats interval", func(c *Config) { c.StatsInterval = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
