package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Engine selection
// --------------------------------------------------------------------------

type EngineType string

const (
	EngineMaple  EngineType = "maple"
	EngineBolt   EngineType = "bolt"
	EngineSQLite EngineType = "sqlite"
)

// EngineTypes lists all supported engines
var EngineTypes = []EngineType{EngineMaple, EngineBolt, EngineSQLite}

// ParseEngineType validates an engine name
func ParseEngineType(s string) (EngineType, error) {
	for _, e := range EngineTypes {
		if strings.EqualFold(s, string(e)) {
			return e, nil
		}
	}
	return "", fmt.Errorf("invalid engine: %s. must be one of maple, bolt, sqlite", s)
}

// Durable reports whether the engine keeps its data across restarts
func (e EngineType) Durable() bool {
	return e != EngineMaple
}

// --------------------------------------------------------------------------
// Configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters of the tkv CLI.
type Config struct {
	// storage
	Engine     EngineType
	DataDir    string
	Database   string
	Collection string
	Codec      string

	// operation
	Timeout time.Duration
	Retries int

	// observability
	LogLevel string
	Metrics  bool

	// audio player
	Player string
	Volume float64
}

// Validate checks value ranges that the flag parser cannot check
func (c *Config) Validate() error {
	if c.Database == "" || c.Collection == "" {
		return fmt.Errorf("database and collection must not be empty")
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be in [0, 1], got %v", c.Volume)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Storage")
	addField("Engine", string(c.Engine))
	if c.Engine.Durable() {
		addField("Data Directory", c.DataDir)
	}
	addField("Database", c.Database)
	addField("Collection", c.Collection)
	addField("Codec", c.Codec)

	addSection("Operation")
	addField("Timeout", c.Timeout.String())
	addField("Retries", strconv.Itoa(c.Retries))

	addSection("Logging")
	addField("Log Level", c.LogLevel)
	addField("Metrics", strconv.FormatBool(c.Metrics))

	addSection("Player")
	addField("Command", c.Player)
	addField("Volume", strconv.FormatFloat(c.Volume, 'f', 2, 64))

	return sb.String()
}
