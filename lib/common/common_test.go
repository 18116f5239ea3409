package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	old := Output
	Output = &buf
	defer func() { Output = old }()

	l := CreateLogger("store")
	l.Infof("hidden")
	l.SetLevel(logger.INFO)
	l.Infof("opened %s", "files-store")
	l.Debugf("hidden")

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "INFO  | store      | opened files-store")
	assert.Panics(t, func() { l.Panicf("boom") })
}

func TestParseEngineType(t *testing.T) {
	e, err := ParseEngineType("SQLite")
	require.NoError(t, err)
	assert.Equal(t, EngineSQLite, e)
	assert.True(t, e.Durable())
	assert.False(t, EngineMaple.Durable())

	_, err = ParseEngineType("redis")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Engine: EngineBolt, Database: "files-store", Collection: "files", LogLevel: "warn", Volume: 0.5}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*Config){
		"empty database": func(c *Config) { c.Database = "" },
		"volume":         func(c *Config) { c.Volume = 1.5 },
		"retries":        func(c *Config) { c.Retries = -1 },
		"log level":      func(c *Config) { c.LogLevel = "verbose" },
	} {
		c := valid
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}

	s := valid.String()
	assert.Contains(t, s, "STORAGE")
	assert.Contains(t, s, "Data Directory")
}
