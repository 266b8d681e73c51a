package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/whattodo/internal/flagx"
	"github.com/dmitrijs2005/whattodo/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is a DTO used exclusively for unmarshalling config files.
// Pointers distinguish "absent" from zero so a file only overrides what it
// names.
type FileConfig struct {
	ServerEndpointAddr  *string         `json:"server_endpoint_addr" yaml:"server_endpoint_addr"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`

	DatabasePath *string `json:"database_path" yaml:"database_path"`
	LogFile      *string `json:"log_file" yaml:"log_file"`

	ReconcileInterval *timex.Duration `json:"reconcile_interval" yaml:"reconcile_interval"`
	EntityTimeout     *timex.Duration `json:"entity_timeout" yaml:"entity_timeout"`
	RetryBaseDelay    *timex.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`
	RetryMaxDelay     *timex.Duration `json:"retry_max_delay" yaml:"retry_max_delay"`
	Concurrency       *int            `json:"concurrency" yaml:"concurrency"`

	OriginURL            *string         `json:"origin_url" yaml:"origin_url"`
	ListenAddr           *string         `json:"listen_addr" yaml:"listen_addr"`
	AssetRefreshInterval *timex.Duration `json:"asset_refresh_interval" yaml:"asset_refresh_interval"`
	PrecacheAssets       []string        `json:"precache_assets" yaml:"precache_assets"`
	BypassPatterns       []string        `json:"bypass_patterns" yaml:"bypass_patterns"`
}

// parseFile overlays Config with values loaded from the file named by -c or
// -config. Without the flag nothing happens. Read or decode errors panic.
func parseFile(cfg *Config) {
	path := flagx.ConfigFile(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		panic(err)
	}

	fc.apply(cfg)
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	setDuration(&cfg.OnlineCheckInterval, fc.OnlineCheckInterval)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.LogFile, fc.LogFile)
	setDuration(&cfg.ReconcileInterval, fc.ReconcileInterval)
	setDuration(&cfg.EntityTimeout, fc.EntityTimeout)
	setDuration(&cfg.RetryBaseDelay, fc.RetryBaseDelay)
	setDuration(&cfg.RetryMaxDelay, fc.RetryMaxDelay)
	if fc.Concurrency != nil {
		cfg.Concurrency = *fc.Concurrency
	}
	setString(&cfg.OriginURL, fc.OriginURL)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setDuration(&cfg.AssetRefreshInterval, fc.AssetRefreshInterval)
	if fc.PrecacheAssets != nil {
		cfg.PrecacheAssets = fc.PrecacheAssets
	}
	if fc.BypassPatterns != nil {
		cfg.BypassPatterns = fc.BypassPatterns
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *timex.Duration) {
	if v != nil {
		*dst = v.Duration
	}
}
