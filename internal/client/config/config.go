package config

import (
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/persist"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/netx"
	"github.com/dmitrijs2005/gophsync/internal/shared"
)

// Config holds runtime settings of the GophSync client.
//
// Durations accept Go duration strings ("3s") or integer nanoseconds when
// read from a config file.
type Config struct {
	ServerEndpointAddr  string        `mapstructure:"server_endpoint_addr"`
	OnlineCheckInterval time.Duration `mapstructure:"online_check_interval"`

	Persist persist.Config `mapstructure:"persist"`
	// Codec is the snapshot codec, json or proto.
	Codec string `mapstructure:"codec"`

	TodoPageSize   int `mapstructure:"todo_page_size"`
	ClientPageSize int `mapstructure:"client_page_size"`

	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay"`
	// WatermarkSkew widens every incremental pull window. Negative disables it.
	WatermarkSkew     time.Duration `mapstructure:"watermark_skew"`
	FullRecordUpdates bool          `mapstructure:"full_record_updates"`
	DisableFeed       bool          `mapstructure:"disable_feed"`

	// StatusAddr is where the status API listens. Empty disables it.
	StatusAddr string `mapstructure:"status_addr"`
	// StatusToken, when set, is required as a bearer token by the status API.
	StatusToken string `mapstructure:"status_token"`

	Log logging.Options `mapstructure:"log"`

	// ConfigFile is the file the settings were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.Persist = persist.Config{Engine: "sqlite", DSN: "gophsync.db"}
	c.Codec = "json"
	c.TodoPageSize = shared.Todo.PageSize
	c.ClientPageSize = shared.Client.PageSize
	c.RetryBaseDelay = netx.DefaultBaseDelay
	c.RetryMaxDelay = netx.DefaultMaxDelay
	c.WatermarkSkew = time.Second
	c.StatusAddr = "127.0.0.1:7070"
	c.Log = logging.Options{Backend: "slog", Format: "text", Level: "warn"}
}

// Backoff is the retry policy the settings describe.
func (c *Config) Backoff() netx.Backoff {
	return netx.Backoff{Base: c.RetryBaseDelay, Max: c.RetryMaxDelay}
}

// PageSize returns the configured page size for model, falling back to the
// model's own default.
func (c *Config) PageSize(m shared.Model) int {
	switch m.Name {
	case shared.Todo.Name:
		if c.TodoPageSize > 0 {
			return c.TodoPageSize
		}
	case shared.Client.Name:
		if c.ClientPageSize > 0 {
			return c.ClientPageSize
		}
	}
	return m.PageSize
}

// LoadConfig constructs a Config from defaults, then the config file named
// by -c/-config, then command-line flags. Later sources win.
func LoadConfig(args []string) *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg, args)
	parseFlags(cfg, args)
	return cfg
}
