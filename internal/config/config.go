package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"monogest/backend/internal/domain"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string
	Port int
}

// MailboxConfig holds the conversation subsystem settings.
type MailboxConfig struct {
	PollInterval      time.Duration // reconciliation poll period for open sessions
	AttachmentRules   domain.FileRules
	LogoRules         domain.FileRules
	MaxRequestBytes   int64 // multipart request ceiling enforced by the body-limit middleware
	ListCacheTTL      time.Duration
	ReplyRatePerMin   int // per-sender compose/reply ceiling
	NotifyWorkers     int
	NotifyQueueLength int
}

// CORSConfig holds the allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level       string
	Development bool
	LogFile     string
}

// DatabaseConfig holds the conversation store connection settings.
// An empty Type selects the in-memory store.
type DatabaseConfig struct {
	Type            string // "mysql", "postgres" or "" for memory
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the Redis settings; an empty Address disables Redis.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// JWTConfig holds the bearer-token verification settings. Token issuing
// belongs to the authentication subsystem; this side only verifies.
type JWTConfig struct {
	Secret string
	Issuer string
}

// ObjectStoreConfig holds the attachment blob store settings.
type ObjectStoreConfig struct {
	BaseDir string
	BaseURL string
}

// DirectoryConfig holds the counterparty directory settings. An empty DSN
// selects the in-memory directory.
type DirectoryConfig struct {
	DSN string
}

// Config is the root configuration.
type Config struct {
	Server      ServerConfig
	Mailbox     MailboxConfig
	CORS        CORSConfig
	Log         LogConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	ObjectStore ObjectStoreConfig
	Directory   DirectoryConfig
}

// Load reads configuration from environment variables and an optional .env
// file. Precedence: environment variables, then .env, then defaults.
// Variables use the MONOGEST_ prefix, e.g. MONOGEST_SERVER_PORT.
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("monogest")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mailbox.poll_interval", "2m")
	viper.SetDefault("mailbox.attachment_max_bytes", int64(100_000_000))
	viper.SetDefault("mailbox.attachment_mime_prefixes", "image/,video/")
	viper.SetDefault("mailbox.attachment_extensions", "pdf,doc,docx,xls,xlsx")
	viper.SetDefault("mailbox.max_request_bytes", int64(105_000_000))
	viper.SetDefault("mailbox.list_cache_ttl", "30s")
	viper.SetDefault("mailbox.reply_rate_per_min", 30)
	viper.SetDefault("mailbox.notify_workers", 4)
	viper.SetDefault("mailbox.notify_queue_length", 256)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // empty selects the in-memory store
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("jwt.issuer", "monogest")
	viper.SetDefault("objectstore.base_dir", "./data/attachments")
	viper.SetDefault("objectstore.base_url", "/files")
	viper.SetDefault("directory.dsn", "")

	pollInterval, err := time.ParseDuration(viper.GetString("mailbox.poll_interval"))
	if err != nil {
		return nil, fmt.Errorf("invalid mailbox.poll_interval: %w", err)
	}
	if pollInterval < time.Second {
		return nil, fmt.Errorf("mailbox.poll_interval must be at least 1s")
	}

	listCacheTTL, err := time.ParseDuration(viper.GetString("mailbox.list_cache_ttl"))
	if err != nil {
		listCacheTTL = 30 * time.Second
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	attachmentRules := domain.FileRules{
		MaxBytes:            viper.GetInt64("mailbox.attachment_max_bytes"),
		AllowedMimePrefixes: parseList(viper.GetString("mailbox.attachment_mime_prefixes")),
		AllowedExtensions:   parseList(viper.GetString("mailbox.attachment_extensions")),
	}
	if attachmentRules.MaxBytes <= 0 {
		return nil, fmt.Errorf("mailbox.attachment_max_bytes must be positive")
	}

	jwtSecret := viper.GetString("jwt.secret")
	if jwtSecret != "" && len(jwtSecret) < 32 {
		return nil, fmt.Errorf("jwt.secret must be at least 32 characters long")
	}

	dbType := viper.GetString("database.type")
	if dbType != "" && dbType != "mysql" && dbType != "postgres" {
		return nil, fmt.Errorf("database.type must be one of: mysql, postgres (or empty for memory)")
	}
	if dbType != "" && viper.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is set")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mailbox: MailboxConfig{
			PollInterval:      pollInterval,
			AttachmentRules:   attachmentRules,
			LogoRules:         domain.LogoFileRules(),
			MaxRequestBytes:   viper.GetInt64("mailbox.max_request_bytes"),
			ListCacheTTL:      listCacheTTL,
			ReplyRatePerMin:   viper.GetInt("mailbox.reply_rate_per_min"),
			NotifyWorkers:     viper.GetInt("mailbox.notify_workers"),
			NotifyQueueLength: viper.GetInt("mailbox.notify_queue_length"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			Issuer: viper.GetString("jwt.issuer"),
		},
		ObjectStore: ObjectStoreConfig{
			BaseDir: viper.GetString("objectstore.base_dir"),
			BaseURL: viper.GetString("objectstore.base_url"),
		},
		Directory: DirectoryConfig{
			DSN: viper.GetString("directory.dsn"),
		},
	}

	return cfg, nil
}

// parseList splits a comma-separated string, trimming whitespace.
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile loads an optional .env from the working directory or its
// parent. Existing environment variables are never overwritten.
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
