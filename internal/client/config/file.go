package config

import (
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/flagx"
	"github.com/spf13/viper"
)

// parseFile overlays cfg with the config file named by -c/-config. Keys
// missing from the file keep their current values. It panics when the file
// cannot be read or decoded.
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
