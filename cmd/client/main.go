package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/client/cli"
	"github.com/dmitrijs2005/gophsync/internal/client/client"
	"github.com/dmitrijs2005/gophsync/internal/client/config"
	"github.com/dmitrijs2005/gophsync/internal/client/persist"
	"github.com/dmitrijs2005/gophsync/internal/client/services"
	"github.com/dmitrijs2005/gophsync/internal/client/statusapi"
	"github.com/dmitrijs2005/gophsync/internal/client/syncer"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/shared"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig(os.Args[1:])

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("%v", err)
	}

}

func run(ctx context.Context, cfg *config.Config) error {
	logger, logs, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger init error: %w", err)
	}
	defer logs.Close()

	adapter, err := persist.Open(ctx, cfg.Persist)
	if err != nil {
		return fmt.Errorf("persistence init error: %w", err)
	}
	defer adapter.Close()

	codec, err := persist.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	c, err := client.NewGophSyncClient(cfg.ServerEndpointAddr)
	if err != nil {
		return fmt.Errorf("grpc client init error: %w", err)
	}
	defer c.Close()

	cols := make([]syncer.CollectionConfig, 0, len(shared.Models()))
	for _, m := range shared.Models() {
		cols = append(cols, syncer.CollectionConfig{
			Model:    m,
			Remote:   c.Remote(m.Name),
			PageSize: cfg.PageSize(m),
		})
	}

	engine, err := syncer.New(ctx, syncer.Options{
		Adapter:           adapter,
		Codec:             codec,
		Logger:            logger.With("module", "syncer"),
		Backoff:           cfg.Backoff(),
		WatermarkSkew:     cfg.WatermarkSkew,
		FullRecordUpdates: cfg.FullRecordUpdates,
		DisableFeed:       cfg.DisableFeed,
	}, cols...)
	if err != nil {
		return fmt.Errorf("sync engine init error: %w", err)
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := engine.Close(cctx); err != nil {
			logger.Error(cctx, "engine close error", "error", err)
		}
	}()

	todos, err := engine.Collection(shared.Todo.Name)
	if err != nil {
		return err
	}

	if cfg.StatusAddr != "" {
		api := statusapi.New(engine, logger.With("module", "statusapi"), statusapi.Options{Token: cfg.StatusToken})
		if _, err := api.Start(cfg.StatusAddr); err != nil {
			logger.Warn(ctx, "status api disabled", "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				api.Shutdown(sctx)
			}()
		}
	}

	if cfg.ConfigFile != "" {
		w, err := config.Watch(cfg.ConfigFile, logger, func(n *config.Config) {
			if err := logs.SetLevel(n.Log.Level); err != nil {
				logger.Warn(ctx, "bad log level in config", "error", err)
			}
		})
		if err != nil {
			logger.Warn(ctx, "config watch disabled", "error", err)
		} else {
			defer w.Close()
		}
	}

	as := services.NewAuthService(c, engine, adapter, logger.With("module", "auth"))
	ts := services.NewTodoService(todos.Store())

	app := cli.NewApp(cfg, engine, as, ts, logger.With("module", "cli"))
	app.Run(ctx)
	return nil
}
