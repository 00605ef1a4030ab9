// Package config loads the worklist SCP settings from flags, the environment
// and an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Worklist source kinds.
const (
	SourceStatic   = "static"
	SourcePostgres = "postgres"
	SourceDicomDir = "dicomdir"
	SourceHTTP     = "http"
)

// MPPS store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	AETitle        string        `mapstructure:"AE_TITLE" validate:"required,max=16"`
	Port           int           `mapstructure:"PORT" validate:"min=1,max=65535"`
	StrictCalledAE bool          `mapstructure:"STRICT_CALLED_AE"`
	MaxPDULength   uint32        `mapstructure:"MAX_PDU_LENGTH" validate:"min=4096,max=16777216"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT" validate:"gte=0"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT" validate:"gte=0"`
	Timezone       string        `mapstructure:"TIMEZONE"`

	RefreshInterval time.Duration `mapstructure:"REFRESH_INTERVAL" validate:"gt=0"`
	WorklistSource  string        `mapstructure:"WORKLIST_SOURCE" validate:"oneof=static postgres dicomdir http"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL" validate:"required_if=WorklistSource postgres"`
	DBMaxConns      int32         `mapstructure:"DB_MAX_CONNS" validate:"min=1"`
	DBMinConns      int32         `mapstructure:"DB_MIN_CONNS" validate:"min=0"`
	DBLookback      time.Duration `mapstructure:"DB_LOOKBACK" validate:"gte=0"`
	WorklistDir     string        `mapstructure:"WORKLIST_DIR" validate:"required_if=WorklistSource dicomdir"`
	WorklistURL     string        `mapstructure:"WORKLIST_URL" validate:"required_if=WorklistSource http,omitempty,url"`
	HTTPRetryMax    int           `mapstructure:"HTTP_RETRY_MAX" validate:"min=0,max=10"`

	MPPSStore     string `mapstructure:"MPPS_STORE" validate:"oneof=memory redis"`
	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required_if=MPPSStore redis,omitempty,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB" validate:"min=0"`
	RedisKey      string `mapstructure:"REDIS_KEY"`

	HTTPAddr  string `mapstructure:"HTTP_ADDR" validate:"omitempty,hostname_port"`
	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=json console"`
}

type setting struct {
	key   string
	flag  string
	value any
	usage string
}

var settings = []setting{
	{"AE_TITLE", "ae-title", "QRSCP", "AE title of this SCP"},
	{"PORT", "port", 8005, "DICOM listen port"},
	{"STRICT_CALLED_AE", "strict-called-ae", true, "reject associations addressed to another AE title"},
	{"MAX_PDU_LENGTH", "max-pdu-length", 16384, "maximum PDU length advertised to peers"},
	{"READ_TIMEOUT", "read-timeout", 5 * time.Minute, "idle timeout per association read"},
	{"WRITE_TIMEOUT", "write-timeout", 30 * time.Second, "timeout per PDU write"},
	{"TIMEZONE", "timezone", "Local", "IANA zone used to interpret worklist dates"},
	{"REFRESH_INTERVAL", "refresh-interval", 30 * time.Second, "worklist snapshot refresh interval"},
	{"WORKLIST_SOURCE", "worklist-source", SourceStatic, "worklist source: static, postgres, dicomdir or http"},
	{"DATABASE_URL", "database-url", "", "Postgres connection string"},
	{"DB_MAX_CONNS", "db-max-conns", 10, "maximum Postgres connections"},
	{"DB_MIN_CONNS", "db-min-conns", 1, "minimum Postgres connections"},
	{"DB_LOOKBACK", "db-lookback", 24 * time.Hour, "how far back scheduled exams are loaded"},
	{"WORKLIST_DIR", "worklist-dir", "", "directory of .wl worklist files"},
	{"WORKLIST_URL", "worklist-url", "", "RIS endpoint returning the worklist as JSON"},
	{"HTTP_RETRY_MAX", "http-retry-max", 3, "retries for the RIS endpoint"},
	{"MPPS_STORE", "mpps-store", StoreMemory, "pending MPPS store: memory or redis"},
	{"REDIS_ADDR", "redis-addr", "", "Redis host:port"},
	{"REDIS_PASSWORD", "redis-password", "", "Redis password"},
	{"REDIS_DB", "redis-db", 0, "Redis database number"},
	{"REDIS_KEY", "redis-key", "", "Redis hash holding pending procedures"},
	{"HTTP_ADDR", "http-addr", "", "operational HTTP API address, empty to disable"},
	{"LOG_LEVEL", "log-level", "info", "trace, debug, info, warn or error"},
	{"LOG_FORMAT", "log-format", "json", "json or console"},
}

// RegisterFlags defines one flag per setting.
func RegisterFlags(flags *pflag.FlagSet) {
	for _, s := range settings {
		switch v := s.value.(type) {
		case string:
			flags.String(s.flag, v, s.usage)
		case int:
			flags.Int(s.flag, v, s.usage)
		case bool:
			flags.Bool(s.flag, v, s.usage)
		case time.Duration:
			flags.Duration(s.flag, v, s.usage)
		}
	}
}

// Load reads the .env file at envFile if it exists, then builds the Config
// from defaults, the environment and any flags that were set. flags may be
// nil. The result is validated.
func Load(envFile string, flags *pflag.FlagSet) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.key, s.value)
		v.BindEnv(s.key)
		if flags == nil {
			continue
		}
		if f := flags.Lookup(s.flag); f != nil {
			if err := v.BindPFlag(s.key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", s.flag, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the settings that depend on each other.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: TIMEZONE: %w", err)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid config: DB_MIN_CONNS %d exceeds DB_MAX_CONNS %d", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}

// ListenAddress is the DICOM listener address.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort("", strconv.Itoa(c.Port))
}

// Location resolves TIMEZONE; "Local" and "" mean the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// NewLogger builds the root logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
	}
	if c.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("ae_title", c.AETitle).Logger(), nil
}
