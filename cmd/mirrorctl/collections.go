package main

import (
	"fmt"

	cli "github.com/urfave/cli/v2"

	"github.com/unkn0wn-root/hotmirror"
	"github.com/unkn0wn-root/hotmirror/codec"
)

func openSet(cctx *cli.Context, e *env, name string) (*hotmirror.Set[string], error) {
	return hotmirror.NewSet(cctx.Context, hotmirror.SetOptions[string]{
		Name:            name,
		Store:           e.store,
		Codec:           codec.String{},
		RefreshInterval: e.interval,
		Logger:          e.log,
	})
}

func openMap(cctx *cli.Context, e *env, name string) (*hotmirror.Map[string, string], error) {
	return hotmirror.NewMap(cctx.Context, hotmirror.MapOptions[string, string]{
		Name:            name,
		Store:           e.store,
		KeyCodec:        codec.String{},
		ValueCodec:      codec.String{},
		RefreshInterval: e.interval,
		Logger:          e.log,
	})
}

// withEnv runs fn after checking that at least n positional args were given.
func withEnv(n int, usage string, fn func(cctx *cli.Context, e *env) error) cli.ActionFunc {
	return func(cctx *cli.Context) error {
		if cctx.Args().Len() < n {
			return cli.Exit("usage: "+usage, 2)
		}
		e, err := setup(cctx)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(cctx, e)
	}
}

var setCmd = &cli.Command{
	Name:  "set",
	Usage: "operate on a mirrored set",
	Subcommands: []*cli.Command{
		{
			Name:      "add",
			ArgsUsage: "<name> <member>...",
			Action: withEnv(2, "set add <name> <member>...", func(cctx *cli.Context, e *env) error {
				s, err := openSet(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				return s.Update(cctx.Context, cctx.Args().Tail()...)
			}),
		},
		{
			Name:      "rm",
			ArgsUsage: "<name> <member>...",
			Action: withEnv(2, "set rm <name> <member>...", func(cctx *cli.Context, e *env) error {
				s, err := openSet(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				for _, m := range cctx.Args().Tail() {
					if err := s.Discard(cctx.Context, m); err != nil {
						return err
					}
				}
				return nil
			}),
		},
		{
			Name:      "has",
			ArgsUsage: "<name> <member>",
			Action: withEnv(2, "set has <name> <member>", func(cctx *cli.Context, e *env) error {
				s, err := openSet(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				ok, err := s.Contains(cctx.Context, cctx.Args().Get(1))
				if err != nil {
					return err
				}
				fmt.Fprintln(cctx.App.Writer, ok)
				if !ok {
					return cli.Exit("", 1)
				}
				return nil
			}),
		},
		{
			Name:      "ls",
			ArgsUsage: "<name>",
			Action: withEnv(1, "set ls <name>", func(cctx *cli.Context, e *env) error {
				s, err := openSet(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				members, err := s.Members(cctx.Context)
				if err != nil {
					return err
				}
				for _, m := range members {
					fmt.Fprintln(cctx.App.Writer, m)
				}
				return nil
			}),
		},
	},
}

var mapCmd = &cli.Command{
	Name:  "map",
	Usage: "operate on a mirrored map",
	Subcommands: []*cli.Command{
		{
			Name:      "get",
			ArgsUsage: "<name> <key>",
			Action: withEnv(2, "map get <name> <key>", func(cctx *cli.Context, e *env) error {
				m, err := openMap(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				v, err := m.Get(cctx.Context, cctx.Args().Get(1))
				if err != nil {
					return err
				}
				fmt.Fprintln(cctx.App.Writer, v)
				return nil
			}),
		},
		{
			Name:      "set",
			ArgsUsage: "<name> <key> <value>",
			Action: withEnv(3, "map set <name> <key> <value>", func(cctx *cli.Context, e *env) error {
				m, err := openMap(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				return m.Set(cctx.Context, cctx.Args().Get(1), cctx.Args().Get(2))
			}),
		},
		{
			Name:      "del",
			ArgsUsage: "<name> <key>...",
			Action: withEnv(2, "map del <name> <key>...", func(cctx *cli.Context, e *env) error {
				m, err := openMap(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				for _, k := range cctx.Args().Tail() {
					if err := m.Delete(cctx.Context, k); err != nil {
						return err
					}
				}
				return nil
			}),
		},
		{
			Name:      "ls",
			ArgsUsage: "<name>",
			Action: withEnv(1, "map ls <name>", func(cctx *cli.Context, e *env) error {
				m, err := openMap(cctx, e, cctx.Args().First())
				if err != nil {
					return err
				}
				items, err := m.Items(cctx.Context)
				if err != nil {
					return err
				}
				for _, it := range items {
					fmt.Fprintf(cctx.App.Writer, "%s\t%s\n", it.Key, it.Value)
				}
				return nil
			}),
		},
	},
}
