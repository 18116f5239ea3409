package util

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ValentinKolb/tKV/lib/codec"
	"github.com/ValentinKolb/tKV/lib/common"
	"github.com/ValentinKolb/tKV/lib/db"
	"github.com/ValentinKolb/tKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/tKV/lib/db/engines/maple"
	"github.com/ValentinKolb/tKV/lib/db/engines/sqlite"
	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

var Logger = logger.GetLogger("cli")

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupStoreFlags adds the storage and logging flags to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "engine"
	cmd.PersistentFlags().String(key, string(common.EngineBolt), WrapString("Storage engine to use (maple, bolt, sqlite). maple keeps the data in memory only"))

	key = "data-dir"
	cmd.PersistentFlags().String(key, "./data", WrapString("Directory the durable engines store their databases in"))

	key = "database"
	cmd.PersistentFlags().String(key, store.DefaultDatabase, WrapString("Name of the database"))

	key = "collection"
	cmd.PersistentFlags().String(key, store.DefaultCollection, WrapString("Name of the collection inside the database"))

	key = "codec"
	cmd.PersistentFlags().String(key, "json", WrapString("Codec for structured values (json, gob, raw)"))

	key = "timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("Timeout of a single command"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry an operation whose transaction aborted"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("Log level (debug, info, warn, error)"))

	key = "metrics"
	cmd.PersistentFlags().Bool(key, false, WrapString("Print the store metrics in Prometheus format on exit"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("tkv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the configuration from viper
func GetConfig() (*common.Config, error) {
	engine, err := common.ParseEngineType(viper.GetString("engine"))
	if err != nil {
		return nil, err
	}

	conf := &common.Config{
		Engine:     engine,
		DataDir:    viper.GetString("data-dir"),
		Database:   viper.GetString("database"),
		Collection: viper.GetString("collection"),
		Codec:      viper.GetString("codec"),
		Timeout:    viper.GetDuration("timeout"),
		Retries:    viper.GetInt("retries"),
		LogLevel:   viper.GetString("log-level"),
		Metrics:    viper.GetBool("metrics"),
		Player:     viper.GetString("player"),
		Volume:     viper.GetFloat64("volume"),
	}
	return conf, conf.Validate()
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// Session bundles what a command needs to work with the store
type Session struct {
	Config   *common.Config
	Registry *store.Registry
	Accessor *store.Accessor
	Codec    codec.ICodec
}

// NewSession binds the flags of cmd, sets up logging and opens the configured engine
func NewSession(cmd *cobra.Command) (*Session, error) {
	if err := BindCommandFlags(cmd); err != nil {
		return nil, err
	}

	conf, err := GetConfig()
	if err != nil {
		return nil, err
	}

	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return nil, err
	}
	Logger.Debugf("configuration:%s", conf)

	c, err := codec.ByName(conf.Codec)
	if err != nil {
		return nil, err
	}

	engine, err := GetEngine(conf)
	if err != nil {
		return nil, err
	}

	registry := store.NewRegistry(engine)
	return &Session{
		Config:   conf,
		Registry: registry,
		Accessor: registry.Accessor(conf.Database, conf.Collection),
		Codec:    c,
	}, nil
}

// Context returns a context bounded by the configured timeout
func (s *Session) Context() (context.Context, context.CancelFunc) {
	if s.Config.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.Config.Timeout)
}

// Close closes the registry and prints the metrics if requested
func (s *Session) Close() error {
	err := s.Registry.Close()
	if s.Config.Metrics {
		fmt.Fprintln(os.Stderr)
		store.WriteMetrics(os.Stderr)
	}
	return err
}

// GetEngine creates the engine based on configuration
func GetEngine(conf *common.Config) (db.Engine, error) {
	switch conf.Engine {
	case common.EngineMaple:
		return maple.NewEngine(nil), nil
	case common.EngineBolt:
		opts := bolt.DefaultOptions()
		opts.Dir = conf.DataDir
		return bolt.NewEngine(opts)
	case common.EngineSQLite:
		opts := sqlite.DefaultOptions()
		opts.Dir = conf.DataDir
		return sqlite.NewEngine(opts)
	default:
		return nil, fmt.Errorf("invalid engine %s", conf.Engine)
	}
}

// --------------------------------------------------------------------------
// Retry
// --------------------------------------------------------------------------

// Retry runs op and retries it with exponential backoff as long as it fails with
// a retryable store error. Other errors are returned right away.
func Retry[T any](ctx context.Context, retries int, op func() (T, error)) (T, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(retries)), ctx)
	return backoff.RetryNotifyWithData(func() (T, error) {
		v, err := op()
		if err != nil && !store.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy, func(err error, next time.Duration) {
		Logger.Warningf("retrying in %s: %v", next, err)
	})
}
