package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dsworkflows/chidata/internal/config"
	"github.com/dsworkflows/chidata/pkg/client"
	"github.com/dsworkflows/chidata/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const userAgent = "chidata/1.0"

// app carries the loaded configuration to subcommands.
type app struct {
	cfgFile string
	envFile string
	cfg     *config.Config
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "chidata",
		Short:         "City of Chicago open data fetcher and licensing dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is optional
			if a.envFile != "" {
				_ = godotenv.Load(a.envFile)
			}

			cfg, err := config.Load(a.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg

			logging.Setup(logging.Config{
				Level:   logging.LogLevel(cfg.Log.Level),
				Pretty:  cfg.Log.Pretty,
				Service: "chidata",
				Output:  cmd.ErrOrStderr(),
			})
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (YAML)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.Bool("log-pretty", false, "human-readable console logs")
	flags.String("base-url", client.DefaultBaseURL, "portal resource root")
	flags.String("app-token", "", "portal application token (X-App-Token)")
	flags.Duration("timeout", 0, "per-request timeout (default from config)")
	flags.Int("max-retries", 0, "retries for server and network errors")
	flags.String("redis-addr", "", "Redis address for shared cache and throttle state")

	root.AddCommand(newFetchCmd(a), newServeCmd(a))
	return root
}

// newClient builds the open data client from the loaded configuration.
func (a *app) newClient(rdb *redis.Client) (*client.Client, error) {
	cc := client.DefaultConfig(a.cfg.Portal.UserAgent)
	if cc.UserAgent == "" {
		cc.UserAgent = userAgent
	}
	cc.BaseURL = a.cfg.Portal.BaseURL
	cc.AppToken = a.cfg.Portal.AppToken
	cc.Timeout = a.cfg.Portal.Timeout
	cc.MaxRetries = a.cfg.Portal.MaxRetries
	cc.Redis = rdb
	return client.New(cc)
}

// newRedis connects to Redis when an address is configured.
func (a *app) newRedis(ctx context.Context) (*redis.Client, error) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.Redis.Addr, err)
	}
	return rdb, nil
}
