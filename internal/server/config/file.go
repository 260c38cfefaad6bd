package config

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/filex"
	"github.com/dmitrijs2005/gophsync/internal/flagx"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/spf13/viper"
)

// parseFile overlays cfg with the config file named by -c/-config. It panics
// when the file cannot be read or decoded.
func parseFile(cfg *Config, args []string) {
	path := flagx.ConfigFile(args)
	if path == "" {
		return
	}
	if err := readFile(path, cfg); err != nil {
		panic(err)
	}
}

func readFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return nil
}

// Watch reloads path on every write and passes the result to onChange.
// Only settings that are safe to change at runtime should be applied.
func Watch(path string, log logging.Logger, onChange func(*Config)) (*filex.Watcher, error) {
	ctx := context.Background()
	return filex.Watch(path, func() {
		cfg := &Config{}
		cfg.LoadDefaults()
		if err := readFile(path, cfg); err != nil {
			log.Warn(ctx, "config reload failed", "error", err)
			return
		}
		onChange(cfg)
	}, func(err error) {
		log.Warn(ctx, "config watcher error", "error", err)
	})
}
