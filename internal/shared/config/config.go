package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Encryption   EncryptionConfig
	Scheduler    SchedulerConfig
	TLS          TLSConfig
	Plaid        PlaidConfig
	Sync         SyncConfig
	Firebase     FirebaseConfig
	Telemetry    TelemetryConfig
	Archive      ArchiveConfig
	Log          LogConfig
	MessagesFile string
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	Secret string
}

type EncryptionConfig struct {
	Key string
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type PlaidConfig struct {
	ClientID          string
	Secret            string
	Environment       string
	WebhookURL        string
	VerifyWebhooks    bool
	RequestsPerSecond float64
	CountryCodes      []string
}

// SyncConfig bounds a single item sync.
type SyncConfig struct {
	MaxPages        int
	MaxDuration     time.Duration
	DefaultLookback time.Duration
	TaskMaxAttempts int
}

type FirebaseConfig struct {
	CredentialsFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	Environment  string
	OTLPEndpoint string
	MetricsPort  string
}

type ArchiveConfig struct {
	Bucket string
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "finsync")
	v.SetDefault("DB_NAME", "finsync")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("SCHEDULER_TIMES", "00:00,06:00,12:00,18:00")
	v.SetDefault("SCHEDULER_WORKERS", "5")
	v.SetDefault("SCHEDULER_JOB_DELAY", "1s")
	v.SetDefault("SCHEDULER_QUEUE_SIZE", "100")
	v.SetDefault("PLAID_ENV", "sandbox")
	v.SetDefault("PLAID_REQUESTS_PER_SECOND", "5")
	v.SetDefault("PLAID_COUNTRY_CODES", "US")
	v.SetDefault("SYNC_MAX_PAGES", "50")
	v.SetDefault("SYNC_MAX_DURATION", "2m")
	v.SetDefault("SYNC_DEFAULT_LOOKBACK", "720h")
	v.SetDefault("SYNC_TASK_MAX_ATTEMPTS", "3")
	v.SetDefault("OTEL_SERVICE_NAME", "finsync-api")
	v.SetDefault("OTEL_ENVIRONMENT", "development")
	v.SetDefault("OTEL_EXPORTER_ENDPOINT", "localhost:4317")
	v.SetDefault("METRICS_PORT", "9464")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("MESSAGES_FILE", "messages.json")
}

func newEnv() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func Load() (*Config, error) {
	v := newEnv()

	dbPort, err := getInt(v, "DB_PORT")
	if err != nil {
		return nil, err
	}

	schedulerWorkers, err := getInt(v, "SCHEDULER_WORKERS")
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := getDuration(v, "SCHEDULER_JOB_DELAY")
	if err != nil {
		return nil, err
	}
	schedulerQueueSize, err := getInt(v, "SCHEDULER_QUEUE_SIZE")
	if err != nil {
		return nil, err
	}

	syncMaxPages, err := getInt(v, "SYNC_MAX_PAGES")
	if err != nil {
		return nil, err
	}
	syncMaxDuration, err := getDuration(v, "SYNC_MAX_DURATION")
	if err != nil {
		return nil, err
	}
	syncLookback, err := getDuration(v, "SYNC_DEFAULT_LOOKBACK")
	if err != nil {
		return nil, err
	}
	taskAttempts, err := getInt(v, "SYNC_TASK_MAX_ATTEMPTS")
	if err != nil {
		return nil, err
	}

	var plaidRPS float64
	if _, err := fmt.Sscanf(v.GetString("PLAID_REQUESTS_PER_SECOND"), "%g", &plaidRPS); err != nil {
		return nil, fmt.Errorf("invalid PLAID_REQUESTS_PER_SECOND: %w", err)
	}

	plaidEnv := strings.ToLower(v.GetString("PLAID_ENV"))

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			Host:         v.GetString("HOST"),
			AllowedHosts: splitList(v.GetString("ALLOWED_HOSTS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     dbPort,
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
		},
		Encryption: EncryptionConfig{
			Key: v.GetString("ENCRYPTION_KEY"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBool(v, "SCHEDULER_ENABLED", true),
			ScheduleTimes: splitList(v.GetString("SCHEDULER_TIMES")),
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBool(v, "SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      getBool(v, "TLS_ENABLED", false),
			CertPath:     v.GetString("TLS_CERT_PATH"),
			KeyPath:      v.GetString("TLS_KEY_PATH"),
			RedirectHTTP: getBool(v, "TLS_REDIRECT_HTTP", false),
		},
		Plaid: PlaidConfig{
			ClientID:          v.GetString("PLAID_CLIENT_ID"),
			Secret:            v.GetString("PLAID_SECRET"),
			Environment:       plaidEnv,
			WebhookURL:        v.GetString("PLAID_WEBHOOK_URL"),
			VerifyWebhooks:    getBool(v, "PLAID_VERIFY_WEBHOOKS", plaidEnv == "production"),
			RequestsPerSecond: plaidRPS,
			CountryCodes:      splitList(strings.ToUpper(v.GetString("PLAID_COUNTRY_CODES"))),
		},
		Sync: SyncConfig{
			MaxPages:        syncMaxPages,
			MaxDuration:     syncMaxDuration,
			DefaultLookback: syncLookback,
			TaskMaxAttempts: taskAttempts,
		},
		Firebase: FirebaseConfig{
			CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBool(v, "OTEL_ENABLED", false),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
			Environment:  v.GetString("OTEL_ENVIRONMENT"),
			OTLPEndpoint: v.GetString("OTEL_EXPORTER_ENDPOINT"),
			MetricsPort:  v.GetString("METRICS_PORT"),
		},
		Archive: ArchiveConfig{
			Bucket: v.GetString("ARCHIVE_BUCKET"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		MessagesFile: v.GetString("MESSAGES_FILE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	switch c.Plaid.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("PLAID_ENV must be sandbox or production, got %q", c.Plaid.Environment)
	}

	if c.Sync.MaxPages <= 0 {
		return fmt.Errorf("SYNC_MAX_PAGES must be positive")
	}
	if c.Scheduler.WorkerCount <= 0 {
		return fmt.Errorf("SCHEDULER_WORKERS must be positive")
	}

	return nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getInt(v *viper.Viper, key string) (int, error) {
	var n int
	raw := strings.TrimSpace(v.GetString(key))
	if _, err := fmt.Sscanf(raw, "%d", &n); err != nil || fmt.Sprint(n) != raw {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getBool(v *viper.Viper, key string, defaultValue bool) bool {
	value := v.GetString(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
