package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/gophsync/internal/flagx"
)

var serverFlags = []string{"-a", "-m", "-d", "-s", "-t", "-r", "-p", "-b", "-l"}

// parseFlags overlays command-line flags on cfg. Durations use Go syntax
// ("15m", "24h"). Malformed values panic, as the server cannot start anyway.
//
//	-a  gRPC listen address
//	-m  storage engine: postgres or memory
//	-d  PostgreSQL DSN
//	-s  JWT signing secret
//	-t  access token lifetime
//	-r  refresh token lifetime
//	-p  largest List page served
//	-b  per-subscriber event buffer
//	-l  log level
func parseFlags(cfg *Config, args []string) {
	fs := flag.NewFlagSet("gophsync-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrGRPC, "a", cfg.EndpointAddrGRPC, "gRPC listen address")
	fs.StringVar(&cfg.Storage, "m", cfg.Storage, "storage engine (postgres, memory)")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "PostgreSQL DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "JWT signing secret")
	fs.DurationVar(&cfg.AccessTokenValidityDuration, "t", cfg.AccessTokenValidityDuration, "access token lifetime")
	fs.DurationVar(&cfg.RefreshTokenValidityDuration, "r", cfg.RefreshTokenValidityDuration, "refresh token lifetime")
	fs.IntVar(&cfg.ListPageMax, "p", cfg.ListPageMax, "largest List page")
	fs.IntVar(&cfg.SubscriptionBuffer, "b", cfg.SubscriptionBuffer, "events buffered per subscriber")
	fs.StringVar(&cfg.Log.Level, "l", cfg.Log.Level, "log level")

	if err := fs.Parse(flagx.FilterArgs(args, serverFlags)); err != nil {
		panic(err)
	}
}
