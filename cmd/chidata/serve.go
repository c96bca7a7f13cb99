package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dsworkflows/chidata/internal/server"
	"github.com/dsworkflows/chidata/pkg/cache"
	"github.com/dsworkflows/chidata/pkg/dataset"
	"github.com/dsworkflows/chidata/pkg/logging"
	"github.com/dsworkflows/chidata/pkg/pagination"
	"github.com/dsworkflows/chidata/pkg/predict"
	"github.com/dsworkflows/chidata/pkg/store"
	"github.com/dsworkflows/chidata/pkg/table"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the licensing dashboard and raw snapshots over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := logging.NewLogger("serve")
			if a.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			rdb, err := a.newRedis(ctx)
			if err != nil {
				return err
			}
			if rdb != nil {
				defer rdb.Close()
				logger.Info().Str("addr", a.cfg.Redis.Addr).Msg("Connected to Redis")
			}

			c, err := a.newClient(rdb)
			if err != nil {
				return err
			}
			defer c.Close()
			opener := pagination.ClientOpener(c)

			opts := []server.Option{server.WithPredictor(predict.NewPlaceholder(seed))}
			if rdb != nil {
				opts = append(opts, server.WithCache(cache.NewManager(rdb)))
			}
			if a.cfg.Postgres.DSN != "" {
				sc := store.DefaultConfig(a.cfg.Postgres.DSN)
				if a.cfg.Postgres.MaxConns > 0 {
					sc.MaxConns = a.cfg.Postgres.MaxConns
				}
				st, err := store.New(ctx, sc, logging.NewLogger("store"))
				if err != nil {
					return err
				}
				defer st.Close()
				opts = append(opts, server.WithStore(st))
			}

			srv, err := server.New(server.Config{
				Addr:            a.cfg.Server.Addr,
				LicenseCount:    a.cfg.Server.LicenseCount,
				CacheTTL:        a.cfg.Server.CacheTTL,
				PageSize:        a.cfg.Server.PageSize,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
			}, func(ctx context.Context, n int) (*table.Table, error) {
				return dataset.BusinessLicense.Get(ctx, opener, n)
			}, opts...)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.String("postgres-dsn", "", "Postgres DSN for the /resource snapshot endpoint")
	flags.Int("license-count", 1000, "business licenses loaded into the dashboard")
	flags.Duration("cache-ttl", 0, "how long the license snapshot is cached (default from config)")
	flags.Int("page-size", 10, "dashboard rows per page")
	flags.Uint64Var(&seed, "seed", 1, "seed of the placeholder risk predictor")
	return cmd
}
