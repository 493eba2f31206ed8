package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/ItsNotGoodName/wacom-randr/internal/app"
	"github.com/ItsNotGoodName/wacom-randr/internal/build"
	"github.com/ItsNotGoodName/wacom-randr/internal/tablet"
	"github.com/ItsNotGoodName/wacom-randr/internal/topology"
	"github.com/ItsNotGoodName/wacom-randr/internal/xserver"
	"github.com/ItsNotGoodName/wacom-randr/pkg/sutureext"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Output  string `doc:"output to map tablets to" short:"o"`
	Watch   bool   `doc:"keep running and remap tablets when outputs or devices change" short:"w"`
	Display string `doc:"X display to connect to, defaults to $DISPLAY"`
	Prefix  string `doc:"name prefix of tablet devices" default:"Wacom"`
	Refresh bool   `doc:"re-resolve outputs when devices change"`
	DryRun  bool   `doc:"compute the matrix without writing it"`
	Debug   bool   `doc:"enable debug"`
}

func main() {
	godotenv.Load()

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, options *Options) {
		if options.Debug {
			InitLogger(slog.LevelDebug)
		} else {
			InitLogger(slog.LevelInfo)
		}

		OnServe(hooks, func(ctx context.Context) error {
			if options.Output == "" {
				return PrintUsage(cli.Root())
			}

			server, err := xserver.Connect(options.Display)
			if err != nil {
				return err
			}
			defer server.Close()

			watcher := app.NewWatcher(server, app.Options{
				Output:  options.Output,
				Prefix:  options.Prefix,
				DryRun:  options.DryRun,
				Refresh: options.Refresh,
			})

			if !options.Watch {
				_, report, err := watcher.Apply()
				if err != nil {
					return err
				}
				return report.Err()
			}

			if err := server.SelectEvents(); err != nil {
				return err
			}

			return sutureext.Run(ctx, "wacom-randr", watcher)
		})
	})

	cli.Root().Use = "wacom-randr"
	cli.Root().Short = "Map Wacom tablets to a single RandR output"
	cli.Root().Version = build.Current.String()

	cli.Root().AddCommand(&cobra.Command{
		Use:   "outputs",
		Short: "Print the active outputs",
		Args:  cobra.NoArgs,
		Run: WithServer(func(cmd *cobra.Command, server *xserver.Server, options *Options) error {
			snapshot, err := topology.Resolve(server)
			if err != nil {
				return err
			}
			return PrintYAML(cmd.OutOrStdout(), snapshot)
		}),
	})

	cli.Root().AddCommand(&cobra.Command{
		Use:   "devices",
		Short: "Print tablet devices and their current matrix",
		Args:  cobra.NoArgs,
		Run: WithServer(func(cmd *cobra.Command, server *xserver.Server, options *Options) error {
			states, err := tablet.NewMapper(server, options.Prefix, true).Inspect()
			if err != nil {
				return err
			}
			return PrintYAML(cmd.OutOrStdout(), states)
		}),
	})

	cli.Run()
}

func InitLogger(level slog.Level) {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: level,
	})))
}

func OnServe(hooks humacli.Hooks, serveFn func(ctx context.Context) error) {
	stopC := make(chan struct{})
	hooks.OnStart(func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errC := make(chan error, 1)

		go func() { errC <- serveFn(ctx) }()

		select {
		case <-stopC:
			cancel()
		case err := <-errC:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Fatal(err)
			}
			return
		}

		<-errC
		<-stopC
	})
	hooks.OnStop(func() {
		stopC <- struct{}{}
		stopC <- struct{}{}
	})
}

// WithServer runs fn with a connection to the display from the options.
func WithServer(fn func(cmd *cobra.Command, server *xserver.Server, options *Options) error) func(cmd *cobra.Command, args []string) {
	return humacli.WithOptions(func(cmd *cobra.Command, args []string, options *Options) {
		err := func() error {
			server, err := xserver.Connect(options.Display)
			if err != nil {
				return err
			}
			defer server.Close()

			return fn(cmd, server, options)
		}()
		if err != nil {
			log.Fatal(err)
		}
	})
}

// PrintUsage writes the help text to stdout.
func PrintUsage(cmd *cobra.Command) error {
	return cmd.Help()
}

func PrintYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
