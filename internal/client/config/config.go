package config

import "time"

// Config holds runtime settings for the whattodo client.
//
// Units: every interval and delay is a time.Duration.
type Config struct {
	// ServerEndpointAddr is host:port of the remote authority.
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration

	DatabasePath string
	LogFile      string

	// Reconciler and scheduler.
	ReconcileInterval time.Duration
	EntityTimeout     time.Duration
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	Concurrency       int

	// Routing layer.
	OriginURL            string
	ListenAddr           string
	AssetRefreshInterval time.Duration
	PrecacheAssets       []string
	BypassPatterns       []string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second

	c.DatabasePath = "whattodo.db"
	c.LogFile = "whattodo.log"

	c.ReconcileInterval = 30 * time.Second
	c.EntityTimeout = 30 * time.Second
	c.RetryBaseDelay = 2 * time.Second
	c.RetryMaxDelay = time.Minute
	c.Concurrency = 4

	c.OriginURL = "http://127.0.0.1:3000"
	c.ListenAddr = "127.0.0.1:8080"
	c.AssetRefreshInterval = time.Hour
	c.PrecacheAssets = []string{"/", "/app/lists", "/app/inbox", "/app/activity", "/marketplace", "/offline"}
	c.BypassPatterns = []string{"/api/**"}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// a config file (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
