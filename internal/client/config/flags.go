package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophsync/internal/flagx"
)

var clientFlags = []string{"-a", "-i", "-e", "-d", "-k", "-w", "-s", "-l"}

// parseFlags overlays command-line flags on cfg; other arguments are left to
// whoever else reads os.Args. Malformed values panic.
func parseFlags(cfg *Config, args []string) {
	fs := flag.NewFlagSet("gophsync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "sync server address")
	fs.DurationVar(&cfg.OnlineCheckInterval, "i", cfg.OnlineCheckInterval, "how often to probe the server")
	fs.StringVar(&cfg.Persist.Engine, "e", cfg.Persist.Engine, "persistence engine (sqlite, memory, s3)")
	fs.StringVar(&cfg.Persist.DSN, "d", cfg.Persist.DSN, "sqlite database path")
	fs.StringVar(&cfg.Codec, "k", cfg.Codec, "snapshot codec (json, proto)")
	fs.DurationVar(&cfg.WatermarkSkew, "w", cfg.WatermarkSkew, "widen incremental pulls by this much, negative disables")
	fs.StringVar(&cfg.StatusAddr, "s", cfg.StatusAddr, "status API address, empty to disable")
	fs.StringVar(&cfg.Log.Level, "l", cfg.Log.Level, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, clientFlags)); err != nil {
		panic(err)
	}
}
