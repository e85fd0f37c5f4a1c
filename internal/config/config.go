package config

import (
	"errors"
	"fmt"
	"time"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"

	defaultRegistrarBaseURL = "https://api.namecheap.com/xml.response"
	defaultRegistrarPage    = 100

	defaultFilterBaseURL   = "https://trustpositif.komdigi.go.id"
	defaultFilterHost      = "trustpositif.komdigi.go.id"
	defaultFilterBatchSize = 50
	defaultFilterTimeout   = 30 * time.Second
	defaultScriptTimeout   = 5 * time.Minute

	defaultDNSTimeout         = 5 * time.Second
	defaultNameserverInterval = time.Hour
	defaultFilterInterval     = 15 * time.Minute
)

type Config struct {
	Debug         bool                `env:"APP_DEBUG"             yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Registrar     RegistrarConfig     `yaml:"registrar"`
	ContentFilter ContentFilterConfig `yaml:"content_filter"`
	DNS           DNSConfig           `yaml:"dns"`
	Sync          SyncConfig          `yaml:"sync"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST"     yaml:"host"`
	Port            int           `env:"DB_PORT"     yaml:"port"`
	User            string        `env:"DB_USER"     yaml:"user"`
	Password        string        `env:"DB_PASSWORD" yaml:"password"`
	DBName          string        `env:"DB_NAME"     yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis connection configuration for event publishing.
type RedisConfig struct {
	Address  string `env:"REDIS_ADDRESS"        yaml:"address"`
	Password string `env:"REDIS_PASSWORD"       yaml:"password"`
	DB       int    `env:"REDIS_DB"             yaml:"db"`
	Enabled  bool   `env:"REDIS_EVENTS_ENABLED" yaml:"enabled"` // Feature flag for event publishing
}

// RegistrarConfig holds credentials for the registrar's XML command API.
// Credentials are not validated at load time: deployments that never trigger
// a registrar sync may run without them, and the client reports a typed
// missing-config error on first use instead.
type RegistrarConfig struct {
	BaseURL  string `env:"REGISTRAR_BASE_URL"  yaml:"base_url"`
	APIUser  string `env:"REGISTRAR_API_USER"  yaml:"api_user"`
	APIKey   string `env:"REGISTRAR_API_KEY"   yaml:"api_key"`
	Username string `env:"REGISTRAR_USERNAME"  yaml:"username"`
	ClientIP string `env:"REGISTRAR_CLIENT_IP" yaml:"client_ip"`
	PageSize int    `yaml:"page_size"`
}

// ContentFilterConfig configures the block-status checker.
//
// BaseURL may be an https://IP URL for hosts where resolving the service name
// routes around the required network path; Host is then sent as the Host
// header and pinned as the TLS server name. LocalAddr optionally binds the
// outgoing connection to a specific source address.
type ContentFilterConfig struct {
	BaseURL   string        `env:"CONTENT_FILTER_BASE_URL"   yaml:"base_url"`
	Host      string        `env:"CONTENT_FILTER_HOST"       yaml:"host"`
	LocalAddr string        `env:"CONTENT_FILTER_LOCAL_ADDR" yaml:"local_addr"`
	Transport string        `env:"CONTENT_FILTER_TRANSPORT"  yaml:"transport"` // "http" (default) or "curl"
	CurlPath  string        `yaml:"curl_path"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`

	// ScriptPath, when set, makes the reconciler delegate the whole check to an
	// external script (which does its own bootstrap+submit) instead of running
	// it in-process.
	ScriptPath    string        `env:"CONTENT_FILTER_SCRIPT" yaml:"script_path"`
	ScriptTimeout time.Duration `yaml:"script_timeout"`
}

type DNSConfig struct {
	// Server is the "host:port" of the DNS server to query. Empty means the
	// first nameserver from /etc/resolv.conf.
	Server  string        `env:"DNS_SERVER" yaml:"server"`
	Timeout time.Duration `yaml:"timeout"`
}

type SyncConfig struct {
	Enabled            bool          `env:"SYNC_SCHEDULER_ENABLED" yaml:"enabled"`
	NameserverInterval time.Duration `yaml:"nameserver_interval"`
	FilterInterval     time.Duration `yaml:"filter_interval"`
}

func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return errors.New("server.host is required")
	}
	if c.Server.Port <= 0 {
		return errors.New("server.port is required and must be positive")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 {
		return errors.New("database.port is required and must be positive")
	}
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if t := c.ContentFilter.Transport; t != "" && t != "http" && t != "curl" {
		return fmt.Errorf("content_filter.transport must be \"http\" or \"curl\", got %q", t)
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg, err := load(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultDatabasePort
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = defaultMaxOpenConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	if cfg.Registrar.BaseURL == "" {
		cfg.Registrar.BaseURL = defaultRegistrarBaseURL
	}
	if cfg.Registrar.PageSize == 0 {
		cfg.Registrar.PageSize = defaultRegistrarPage
	}
	if cfg.ContentFilter.BaseURL == "" {
		cfg.ContentFilter.BaseURL = defaultFilterBaseURL
	}
	if cfg.ContentFilter.Host == "" {
		cfg.ContentFilter.Host = defaultFilterHost
	}
	if cfg.ContentFilter.Transport == "" {
		cfg.ContentFilter.Transport = "http"
	}
	if cfg.ContentFilter.CurlPath == "" {
		cfg.ContentFilter.CurlPath = "curl"
	}
	if cfg.ContentFilter.BatchSize == 0 {
		cfg.ContentFilter.BatchSize = defaultFilterBatchSize
	}
	if cfg.ContentFilter.Timeout == 0 {
		cfg.ContentFilter.Timeout = defaultFilterTimeout
	}
	if cfg.ContentFilter.ScriptTimeout == 0 {
		cfg.ContentFilter.ScriptTimeout = defaultScriptTimeout
	}
	if cfg.DNS.Timeout == 0 {
		cfg.DNS.Timeout = defaultDNSTimeout
	}
	if cfg.Sync.NameserverInterval == 0 {
		cfg.Sync.NameserverInterval = defaultNameserverInterval
	}
	if cfg.Sync.FilterInterval == 0 {
		cfg.Sync.FilterInterval = defaultFilterInterval
	}
}
