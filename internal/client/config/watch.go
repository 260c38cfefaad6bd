package config

import (
	"context"

	"github.com/dmitrijs2005/gophsync/internal/filex"
	"github.com/dmitrijs2005/gophsync/internal/logging"
)

// Watch calls onChange with a freshly loaded Config (defaults overlaid with
// the file) after every write to path. Invalid contents are logged and
// skipped.
func Watch(path string, log logging.Logger, onChange func(*Config)) (*filex.Watcher, error) {
	ctx := context.Background()
	return filex.Watch(path, func() {
		cfg := &Config{}
		cfg.LoadDefaults()
		if err := readFile(path, cfg); err != nil {
			log.Warn(ctx, "config reload failed", "error", err)
			return
		}
		log.Debug(ctx, "config reloaded", "file", path)
		onChange(cfg)
	}, func(err error) {
		log.Warn(ctx, "config watcher error", "error", err)
	})
}
