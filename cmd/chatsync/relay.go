package main

import (
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpapi "github.com/tbourn/chatsync/internal/http"
	"github.com/tbourn/chatsync/internal/observability"
	"github.com/tbourn/chatsync/internal/relay"
	"github.com/tbourn/chatsync/internal/syncproto"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the relay that fans packets out between nodes",
	Long: "The relay keeps the latest roster of every node, broadcasts the merged " +
		"snapshot and forwards update packets to every node but their origin. " +
		"Peers come from SYNC_PEERS as name=url entries.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, lg, err := bootstrap(relay.Name)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, relay.Name, version)
		if err != nil {
			return err
		}
		defer flush(shutdownOTel, lg)

		urls, err := relay.ParsePeers(cfg.Sync.Peers)
		if err != nil {
			return err
		}
		peers := make(map[string]syncproto.Publisher, len(urls))
		for name, url := range urls {
			peers[name] = syncproto.NewHTTPPublisher(url+syncproto.IngestPath, cfg.Sync.Token, relay.Name)
		}
		lg.Info().Int("peers", len(peers)).Msg("relay configured")

		rl := relay.New(peers, relay.Options{
			Interval:   cfg.Sync.Interval,
			StaleAfter: cfg.Sync.StaleAfter,
			Dedup:      syncproto.NewDeduper(cfg.Sync.DedupWindow, nil),
		})

		gin.SetMode(cfg.GinMode)
		r := gin.New()
		httpapi.RegisterRelayRoutes(r, rl, cfg)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return rl.Run(gctx) })
		g.Go(func() error { return listen(gctx, newServer(cfg, r), lg) })
		return g.Wait()
	},
}
