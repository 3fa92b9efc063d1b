package isorender

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vango-dev/isorender/internal/config"
	"github.com/vango-dev/isorender/internal/errors"
	"github.com/vango-dev/isorender/pkg/export"
)

// Command returns the root command with serve, export, routes and version.
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   a.name,
		Short: "Server-rendered site with preloaded data",
		Long: `Serve, export or inspect the site.

Configuration is read from isorender.yaml (or .json, .toml), from
ISORENDER_* environment variables, from .env files and from flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	config.AddGlobalFlags(root.PersistentFlags())

	root.AddCommand(
		a.serveCmd(),
		a.exportCmd(),
		a.routesCmd(),
		a.versionCmd(),
	)
	return root
}

// loadConfig merges the command's flags, including the inherited global
// ones, into the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	fs := cmd.Flags()
	file, _ := fs.GetString("config")
	return config.Load(config.Options{File: file, Flags: fs})
}

func (a *App) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Long: `Start the server-side renderer and the live transport.

Pages are preloaded and rendered on every request. Browsers then connect
to the live endpoint, where navigations are preloaded before they commit.

Examples:
  site serve
  site serve --port 3000 --dev
  site serve --snapshots redis --redis-url redis://localhost:6379/0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.serve(cmd.Context(), cfg)
		},
	}
	config.AddServeFlags(cmd.Flags())
	return cmd
}

func (a *App) serve(ctx context.Context, cfg *config.Config) error {
	rt, err := a.build(cfg, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.printBanner()
	a.info("Listening on %s", cfg.Address())
	if cfg.Server.Basename != "" {
		a.info("Basename    %s", cfg.Server.Basename)
	}
	if rt.live != nil {
		a.info("Live        %s (snapshots: %s)", cfg.Live.Path, cfg.Snapshot.Backend)
	}
	if cfg.Metrics.Enabled {
		a.info("Metrics     %s", cfg.Metrics.Path)
	}
	if cfg.Server.Development {
		a.warn("Development mode: error pages show stack traces")
	}
	if f := cfg.File(); f != "" {
		a.info("Config      %s", f)
	}
	fmt.Fprintln(a.stdout)

	if err := rt.serve(ctx); err != nil {
		return err
	}
	a.success("Server stopped")
	return nil
}

func (a *App) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [paths...]",
		Short: "Prerender pages to a directory or an S3 bucket",
		Long: `Prerender pages to static HTML.

Every path is preloaded and rendered as it would be on a request. The
paths are the arguments, the export.paths setting, and every page
without parameters. The document shell is written as isorender-base.html.

Examples:
  site export --dir public
  site export /pricing /docs --dir public
  site export --bucket www.example.com --region eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateExport(); err != nil {
				return err
			}
			return a.export(cmd.Context(), cfg, args)
		},
	}
	config.AddExportFlags(cmd.Flags())
	return cmd
}

func (a *App) export(ctx context.Context, cfg *config.Config, args []string) error {
	paths := append(append([]string{}, args...), cfg.Export.Paths...)
	if cfg.Export.IncludeRoutes {
		paths = append(paths, export.StaticPaths(a.routes)...)
	}
	if len(paths) == 0 {
		return errors.New("X004")
	}

	var sink export.Sink
	dest := cfg.Export.Dir
	if cfg.Export.Bucket != "" {
		client, err := export.NewS3Client(export.S3Config{
			Region:   cfg.Export.Region,
			Endpoint: cfg.Export.Endpoint,
		})
		if err != nil {
			return errors.New("C011").WithKey("export").Wrap(err)
		}
		sink = export.NewS3Sink(client, cfg.Export.Bucket, cfg.Export.Prefix)
		dest = "s3://" + cfg.Export.Bucket + "/" + strings.TrimPrefix(cfg.Export.Prefix, "/")
	} else {
		sink = export.DirSink{Root: cfg.Export.Dir}
	}

	rt, err := a.build(cfg, false)
	if err != nil {
		return err
	}
	defer rt.close()

	exp := export.New(rt.server, sink,
		export.WithConcurrency(cfg.Export.Concurrency),
		export.WithLogger(rt.logger.With("component", "export")))

	report, err := exp.Export(ctx, paths)
	for _, p := range report.Pages {
		switch {
		case p.Err != nil:
			a.failure("%s  %v", p.Path, p.Err)
		case p.Redirect != "":
			a.success("%s -> %s  (%s)", p.Path, p.Redirect, p.Key)
		default:
			a.success("%s  (%s, %d bytes)", p.Path, p.Key, p.Bytes)
		}
	}
	if err != nil {
		return errors.New("X002").
			WithDetail(fmt.Sprintf("%d of %d pages failed.", len(report.Failed()), len(report.Pages))).
			Wrap(err)
	}
	fmt.Fprintln(a.stdout)
	a.success("Exported %d pages to %s", len(report.Pages), dest)
	return nil
}

func (a *App) routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the route table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tPATTERN\tNAME\tPRELOAD\tSTATUS\tTARGET")
			for _, r := range a.routes.Routes() {
				preloads, status := "", ""
				if r.Preloads {
					preloads = "yes"
				}
				if r.Status != 0 {
					status = fmt.Sprint(r.Status)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Kind, r.Pattern, r.Name, preloads, status, r.Target)
			}
			return w.Flush()
		},
	}
}

func (a *App) versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			if short {
				fmt.Fprintln(a.stdout, a.version)
				return
			}
			fmt.Fprintf(a.stdout, "  Version:    %s\n", a.version)
			fmt.Fprintf(a.stdout, "  Commit:     %s\n", a.commit)
			fmt.Fprintf(a.stdout, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "print only the version number")
	return cmd
}

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func (a *App) printBanner() {
	fmt.Fprintf(a.stdout, "\n  %s %s\n\n", bold(a.name), a.version)
}

func (a *App) success(format string, args ...any) {
	fmt.Fprintf(a.stdout, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

func (a *App) info(format string, args ...any) {
	fmt.Fprintf(a.stdout, "  %s\n", fmt.Sprintf(format, args...))
}

func (a *App) warn(format string, args ...any) {
	fmt.Fprintf(a.stdout, "%s %s\n", yellow("!"), fmt.Sprintf(format, args...))
}

func (a *App) failure(format string, args ...any) {
	fmt.Fprintf(a.stdout, "%s %s\n", red("✗"), fmt.Sprintf(format, args...))
}
