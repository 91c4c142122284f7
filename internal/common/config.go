package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds database-related configuration.
// A postgres:// or postgresql:// DSN selects Postgres; anything else is a SQLite path/DSN.
type DatabaseConfig struct {
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	ConnectAttempts  uint          `mapstructure:"connect_attempts"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string        `mapstructure:"grpc_addr"`
	HTTPAddr       string        `mapstructure:"http_addr"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine       string `mapstructure:"engine"`
	Language     string `mapstructure:"language"`
	TessdataDir  string `mapstructure:"tessdata_dir"`
	DPI          int    `mapstructure:"dpi"`
	MaxPages     int    `mapstructure:"max_pages"`
	PSM          int    `mapstructure:"psm"`
	PDFTextFirst bool   `mapstructure:"pdf_text_first"`
}

// ExtractConfig holds parameter-extraction configuration
type ExtractConfig struct {
	// ReferenceTable is an optional YAML/JSON file replacing the built-in ranges.
	ReferenceTable string `mapstructure:"reference_table"`
	// FailOnEmpty reports documents with no recognized lines as failures.
	FailOnEmpty bool `mapstructure:"fail_on_empty"`
}

// QueueConfig holds background worker configuration
type QueueConfig struct {
	Workers        int           `mapstructure:"workers"`
	Size           int           `mapstructure:"size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// WatchConfig holds directory watcher configuration
type WatchConfig struct {
	Roots       []string      `mapstructure:"roots"`
	InitialScan bool          `mapstructure:"initial_scan"`
	Debounce    time.Duration `mapstructure:"debounce"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" | "json"
}

// EnvPrefix is prepended to every environment variable, e.g. LABREPORTS_DATABASE_DSN.
const EnvPrefix = "LABREPORTS"

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "file:labreports.db?_pragma=busy_timeout(5000)")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.request_timeout", 90*time.Second)

	v.SetDefault("ocr.engine", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 0)
	v.SetDefault("ocr.psm", 0)
	v.SetDefault("ocr.pdf_text_first", false)

	v.SetDefault("extract.reference_table", "")
	v.SetDefault("extract.fail_on_empty", false)

	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.size", 256)
	v.SetDefault("queue.process_timeout", 3*time.Minute)

	v.SetDefault("watch.roots", []string{})
	v.SetDefault("watch.initial_scan", true)
	v.SetDefault("watch.debounce", 500*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads configuration from defaults, an optional config file and
// LABREPORTS_* environment variables, in increasing order of precedence.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("labreports")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.labreports")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("database.dsn", c.Database.DSN, Required)
	v.Field("server.grpc_addr", c.Server.GRPCAddr, Required)
	v.Field("server.http_addr", c.Server.HTTPAddr, Required)
	v.Field("log.format", c.Log.Format, OneOf("text", "json"))
	v.Field("log.level", c.Log.Level, OneOf("debug", "info", "warn", "error"))
	v.Field("ocr.engine", c.OCR.Engine, OneOf("tesseract", "gosseract"))
	if c.Queue.Workers < 1 {
		v.Add("queue.workers", c.Queue.Workers, "must be at least 1")
	}
	if c.Server.MaxUploadBytes <= 0 {
		v.Add("server.max_upload_bytes", c.Server.MaxUploadBytes, "must be positive")
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// IsPostgres reports whether the DSN points at Postgres rather than SQLite.
func (d DatabaseConfig) IsPostgres() bool {
	dsn := strings.ToLower(strings.TrimSpace(d.DSN))
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// String hides credentials when the config is logged.
func (d DatabaseConfig) String() string {
	return fmt.Sprintf("DatabaseConfig{postgres=%t max_conns=%d}", d.IsPostgres(), d.MaxConns)
}
