package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	Storefront StorefrontConfig
	Sync       SyncConfig
	Scheduler  SchedulerConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, ":memory:" allowed
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string
	SlowThreshold   time.Duration
	AutoMigrate     bool // apply the schema on startup
}

// RedisConfig holds Redis connection settings; the order lock is only used
// when Enabled is set
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// StorefrontConfig holds the storefront admin API connection settings
type StorefrontConfig struct {
	BaseURL      string
	APIVersion   string
	AccessToken  string
	PageSize     int
	Timeout      time.Duration
	MaxBodyBytes int64
}

// TaxAccountConfig maps one storefront tax or shipping title to an account
type TaxAccountConfig struct {
	Title   string `mapstructure:"title"`
	Account string `mapstructure:"account"`
}

// SyncConfig holds the document sync options
type SyncConfig struct {
	Warehouse            string
	Company              string
	CompanyOverride      string
	PriceList            string
	CostCenter           string
	CashBankAccount      string
	SalesOrderSeries     string
	SalesInvoiceSeries   string
	DeliveryNoteSeries   string
	SyncSalesInvoice     bool
	SyncDeliveryNote     bool
	FulfillmentMatchMode string
	TaxAccounts          []TaxAccountConfig
	Concurrency          int
	LockTTL              time.Duration
	ItemCacheSize        int
}

// SchedulerConfig holds the periodic sync settings
type SchedulerConfig struct {
	Enabled       bool
	Interval      time.Duration
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	HistorySize   int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
	DBTraceEnabled    bool
}

// Load reads configuration from a TOML file and SYNC_-prefixed environment
// variables. An empty path searches config.toml in the usual places; a
// missing file is not an error.
//
// Priority (highest to lowest):
//  1. Environment variables (e.g. SYNC_STOREFRONT_ACCESS_TOKEN)
//  2. config file
//  3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/storefront-sync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("sync.sync_sales_invoice", true)
	v.SetDefault("sync.sync_delivery_note", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Storefront: StorefrontConfig{
			BaseURL:      v.GetString("storefront.base_url"),
			APIVersion:   v.GetString("storefront.api_version"),
			AccessToken:  v.GetString("storefront.access_token"),
			PageSize:     v.GetInt("storefront.page_size"),
			Timeout:      v.GetDuration("storefront.timeout"),
			MaxBodyBytes: v.GetInt64("storefront.max_body_bytes"),
		},
		Sync: SyncConfig{
			Warehouse:            v.GetString("sync.warehouse"),
			Company:              v.GetString("sync.company"),
			CompanyOverride:      v.GetString("sync.company_override"),
			PriceList:            v.GetString("sync.price_list"),
			CostCenter:           v.GetString("sync.cost_center"),
			CashBankAccount:      v.GetString("sync.cash_bank_account"),
			SalesOrderSeries:     v.GetString("sync.sales_order_series"),
			SalesInvoiceSeries:   v.GetString("sync.sales_invoice_series"),
			DeliveryNoteSeries:   v.GetString("sync.delivery_note_series"),
			SyncSalesInvoice:     v.GetBool("sync.sync_sales_invoice"),
			SyncDeliveryNote:     v.GetBool("sync.sync_delivery_note"),
			FulfillmentMatchMode: v.GetString("sync.fulfillment_match_mode"),
			Concurrency:          v.GetInt("sync.concurrency"),
			LockTTL:              v.GetDuration("sync.lock_ttl"),
			ItemCacheSize:        v.GetInt("sync.item_cache_size"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			Interval:      v.GetDuration("scheduler.interval"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
			MaxRetryDelay: v.GetDuration("scheduler.max_retry_delay"),
			HistorySize:   v.GetInt("scheduler.history_size"),
		},
		HTTP: HTTPConfig{
			Port:         v.GetString("http.port"),
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	if err := v.UnmarshalKey("sync.tax_accounts", &cfg.Sync.TaxAccounts); err != nil {
		return nil, fmt.Errorf("sync.tax_accounts: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "erp"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "storefront-sync.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Storefront.APIVersion == "" {
		cfg.Storefront.APIVersion = "2024-01"
	}
	if cfg.Storefront.PageSize == 0 {
		cfg.Storefront.PageSize = 50
	}
	if cfg.Storefront.Timeout == 0 {
		cfg.Storefront.Timeout = 30 * time.Second
	}
	if cfg.Storefront.MaxBodyBytes == 0 {
		cfg.Storefront.MaxBodyBytes = 10 << 20 // 10MB
	}

	if cfg.Sync.FulfillmentMatchMode == "" {
		cfg.Sync.FulfillmentMatchMode = string(integration.FulfillmentMatchLenient)
	}
	if cfg.Sync.Concurrency == 0 {
		cfg.Sync.Concurrency = 1
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 5 * time.Minute
	}
	if cfg.Sync.ItemCacheSize == 0 {
		cfg.Sync.ItemCacheSize = 1024
	}

	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 15 * time.Minute
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 10 * time.Minute
	}
	if cfg.Scheduler.RetryAttempts == 0 {
		cfg.Scheduler.RetryAttempts = 3
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = 30 * time.Second
	}
	if cfg.Scheduler.MaxRetryDelay == 0 {
		cfg.Scheduler.MaxRetryDelay = 5 * time.Minute
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 50
	}

	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		// a synchronous sync run is served on this connection
		cfg.HTTP.WriteTimeout = 15 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 30 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch integration.FulfillmentMatchMode(c.Sync.FulfillmentMatchMode) {
	case integration.FulfillmentMatchLenient, integration.FulfillmentMatchStrict:
	default:
		return fmt.Errorf("sync.fulfillment_match_mode must be lenient or strict, got %q", c.Sync.FulfillmentMatchMode)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("sync.concurrency must be positive")
	}
	seen := make(map[string]bool, len(c.Sync.TaxAccounts))
	for _, ta := range c.Sync.TaxAccounts {
		if ta.Title == "" || ta.Account == "" {
			return fmt.Errorf("sync.tax_accounts entries need both title and account")
		}
		if seen[ta.Title] {
			return fmt.Errorf("sync.tax_accounts: duplicate title %q", ta.Title)
		}
		seen[ta.Title] = true
	}

	if c.Storefront.PageSize < 1 || c.Storefront.PageSize > 250 {
		return fmt.Errorf("storefront.page_size must be between 1 and 250, got %d", c.Storefront.PageSize)
	}
	if c.Storefront.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Storefront.BaseURL); err != nil {
			return fmt.Errorf("storefront.base_url: %w", err)
		}
	}

	if c.App.Env == "production" {
		if c.Storefront.AccessToken == "" {
			return fmt.Errorf("storefront.access_token is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// DSN returns the postgres connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Settings converts the sync section into the settings the runner works with
func (s *SyncConfig) Settings() integration.SyncSettings {
	taxAccounts := make(map[string]string, len(s.TaxAccounts))
	for _, ta := range s.TaxAccounts {
		taxAccounts[ta.Title] = ta.Account
	}
	return integration.SyncSettings{
		Warehouse:            s.Warehouse,
		Company:              s.Company,
		PriceList:            s.PriceList,
		CostCenter:           s.CostCenter,
		CashBankAccount:      s.CashBankAccount,
		SalesOrderSeries:     s.SalesOrderSeries,
		SalesInvoiceSeries:   s.SalesInvoiceSeries,
		DeliveryNoteSeries:   s.DeliveryNoteSeries,
		SyncSalesInvoice:     s.SyncSalesInvoice,
		SyncDeliveryNote:     s.SyncDeliveryNote,
		FulfillmentMatchMode: integration.FulfillmentMatchMode(s.FulfillmentMatchMode),
		TaxAccounts:          taxAccounts,
	}
}
