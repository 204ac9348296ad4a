package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/chatsync/internal/config"
	httpapi "github.com/tbourn/chatsync/internal/http"
	"github.com/tbourn/chatsync/internal/node"
	"github.com/tbourn/chatsync/internal/observability"
	"github.com/tbourn/chatsync/internal/repo"
	"github.com/tbourn/chatsync/internal/store"
	"github.com/tbourn/chatsync/internal/syncproto"
)

const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a chat node",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, lg, err := bootstrap("")
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, cfg.NodeName, version)
		if err != nil {
			return err
		}
		defer flush(shutdownOTel, lg)

		local, remote, err := openStores(cfg)
		if err != nil {
			return err
		}

		opts := node.Options{
			Name:                cfg.NodeName,
			Mode:                store.Mode(cfg.Storage.Mode),
			Local:               local,
			Remote:              remote,
			ReadChannelLimit:    cfg.Cache.ReadChannelLimit,
			HistoryCap:          cfg.Cache.HistoryCap,
			InactivityThreshold: cfg.Cache.InactivityThreshold,
			MailRetention:       cfg.Cache.MailRetention,
			Workers:             cfg.Loop.Workers,
			QueueSize:           cfg.Loop.QueueSize,
			Tick:                cfg.Loop.Tick,
			SyncInterval:        cfg.Sync.Interval,
			DedupWindow:         cfg.Sync.DedupWindow,
		}
		if cfg.Sync.RelayURL != "" {
			opts.Publisher = syncproto.NewHTTPPublisher(cfg.Sync.RelayURL+syncproto.RelayPath, cfg.Sync.Token, cfg.NodeName)
		} else {
			lg.Warn().Msg("no relay configured; running standalone")
		}

		n, err := node.New(opts)
		if err != nil {
			return err
		}
		if err := n.Start(ctx); err != nil {
			return err
		}

		gin.SetMode(cfg.GinMode)
		r := gin.New()
		httpapi.RegisterNodeRoutes(r, n, cfg)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return n.Run(gctx) })
		g.Go(func() error { return listen(gctx, newServer(cfg, r), lg) })
		return g.Wait()
	},
}

// openStores opens the node's SQLite file and, in remote mode, the shared
// database. Both are migrated before use.
func openStores(cfg config.Config) (local, remote *gorm.DB, err error) {
	if local, err = repo.OpenSQLite(cfg.Storage.LocalPath); err != nil {
		return nil, nil, err
	}
	dbs := []*gorm.DB{local}
	if cfg.Remote() {
		if remote, err = repo.Open(cfg.Storage.RemoteDialect, cfg.Storage.RemoteDSN); err != nil {
			return nil, nil, err
		}
		dbs = append(dbs, remote)
	}
	for _, db := range dbs {
		if err := repo.AutoMigrate(db); err != nil {
			return nil, nil, err
		}
		if cfg.OTEL.Enabled {
			if err := repo.EnableTracing(db); err != nil {
				return nil, nil, err
			}
		}
	}
	return local, remote, nil
}

func newServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}

// listen serves until ctx is done, then drains connections.
func listen(ctx context.Context, srv *http.Server, lg zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	lg.Info().Msg("shutting down")
	return srv.Shutdown(sctx)
}

func flush(shutdown func(context.Context) error, lg zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		lg.Warn().Err(err).Msg("otel shutdown")
	}
}
