package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	goredis "github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/hotmirror"
	zaplog "github.com/unkn0wn-root/hotmirror/log/zap"
	redisstore "github.com/unkn0wn-root/hotmirror/store/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mirrorctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	app := cli.App{
		Name:    "mirrorctl",
		Usage:   "inspect and edit mirrored collections in Redis",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL",
			Value:   "redis://localhost:6379/0",
			EnvVars: []string{"MIRRORCTL_REDIS_URL", "REDIS_URL"},
		},
		&cli.BoolFlag{
			Name:    "transactional",
			Usage:   "wrap batches in MULTI/EXEC",
			EnvVars: []string{"MIRRORCTL_TRANSACTIONAL"},
		},
		&cli.DurationFlag{
			Name:    "refresh-interval",
			Usage:   "staleness budget of the mirrors opened by this command",
			Value:   10 * time.Second,
			EnvVars: []string{"MIRRORCTL_REFRESH_INTERVAL"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "log reconciliations and version checks",
			EnvVars: []string{"MIRRORCTL_DEBUG"},
		},
	}

	app.Commands = []*cli.Command{
		setCmd,
		mapCmd,
		idCmd,
		watchCmd,
	}

	return app.RunContext(ctx, args)
}

// env is what every subcommand needs. close releases the client and flushes logs.
type env struct {
	store    *redisstore.Store
	log      hotmirror.Logger
	interval time.Duration
	close    func()
}

func setup(cctx *cli.Context) (*env, error) {
	zl, err := newZap(cctx.Bool("debug"))
	if err != nil {
		return nil, err
	}
	opts, err := goredis.ParseURL(cctx.String("redis-url"))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	st, err := redisstore.New(redisstore.Config{
		Client:        rdb,
		CloseClient:   true,
		Transactional: cctx.Bool("transactional"),
	})
	if err != nil {
		return nil, err
	}
	return &env{
		store:    st,
		log:      zaplog.New(zl),
		interval: cctx.Duration("refresh-interval"),
		close: func() {
			_ = st.Close(context.Background())
			_ = zl.Sync()
		},
	}, nil
}

func newZap(debug bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
