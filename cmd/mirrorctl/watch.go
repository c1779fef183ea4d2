package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v2"

	"github.com/unkn0wn-root/hotmirror"
	"github.com/unkn0wn-root/hotmirror/codec"
	promhooks "github.com/unkn0wn-root/hotmirror/hooks/prom"
	"github.com/unkn0wn-root/hotmirror/provider/ristretto"
	"github.com/unkn0wn-root/hotmirror/uniqueid"
)

var watchCmd = &cli.Command{
	Name:      "watch",
	Usage:     "keep a set mirrored and report its size, exposing mirror metrics",
	ArgsUsage: "<name>",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "every",
			Usage: "how often to report",
			Value: 5 * time.Second,
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to serve /metrics on; empty disables",
			Value:   ":9464",
			EnvVars: []string{"MIRRORCTL_METRICS_LISTEN"},
		},
	},
	Action: withEnv(1, "watch <name>", func(cctx *cli.Context, e *env) error {
		reg := prometheus.NewRegistry()
		s, err := hotmirror.NewSet(cctx.Context, hotmirror.SetOptions[string]{
			Name:            cctx.Args().First(),
			Store:           e.store,
			Codec:           codec.String{},
			RefreshInterval: e.interval,
			StartupInit:     true,
			Logger:          e.log,
			Hooks:           promhooks.New(reg),
		})
		if err != nil {
			return err
		}

		if addr := cctx.String("metrics-listen"); addr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					e.log.Error("metrics server", hotmirror.Fields{"addr": addr, "err": err})
				}
			}()
			defer srv.Close()
		}

		t := time.NewTicker(cctx.Duration("every"))
		defer t.Stop()
		for {
			n, err := s.Len(cctx.Context)
			if err != nil {
				e.log.Warn("watch: size unavailable", hotmirror.Fields{"key": s.ValueKey(), "err": err})
			} else {
				e.log.Info("watch", hotmirror.Fields{"key": s.ValueKey(), "size": n})
			}
			select {
			case <-cctx.Context.Done():
				return nil
			case <-t.C:
			}
		}
	}),
}

var idCmd = &cli.Command{
	Name:      "id",
	Usage:     "print the unique id of a key, allocating one if needed",
	ArgsUsage: "<class> <key>...",
	Action: withEnv(2, "id <class> <key>...", func(cctx *cli.Context, e *env) error {
		memo, err := ristretto.New(ristretto.Defaults())
		if err != nil {
			return err
		}
		defer memo.Close(cctx.Context)

		a, err := uniqueid.New(uniqueid.Options{
			Class:  cctx.Args().First(),
			Store:  e.store,
			Memo:   memo,
			Logger: e.log,
		})
		if err != nil {
			return err
		}
		for _, k := range cctx.Args().Tail() {
			id, err := a.GetOrCreate(cctx.Context, k)
			if err != nil {
				return err
			}
			fmt.Fprintf(cctx.App.Writer, "%s\t%d\n", k, id)
		}
		return nil
	}),
}
