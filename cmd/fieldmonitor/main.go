// Command fieldmonitor serves the field-program monitoring API and offers
// operator commands over the same store.
package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"fieldmonitor/internal/adapters/exports"
	"fieldmonitor/internal/adapters/httpapi"
	"fieldmonitor/internal/config"
	"fieldmonitor/internal/log"
	"fieldmonitor/internal/seed"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}
	if err := newRootCommand(os.Stdout, nil).Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCommand builds the CLI. Command output goes to out; logs go to
// logw, or stderr when nil.
func newRootCommand(out, logw io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "fieldmonitor",
		Usage:  "Field program monitoring server and CLI",
		Writer: out,
		Commands: []*cli.Command{
			serveCommand(logw),
			summaryCommand(logw),
			reportCommand(logw),
			exportCommand(logw),
			seedCommand(logw),
		},
	}
}

func serveCommand(logw io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides FIELDMONITOR_ADDR)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := config.Load()
			if addr := c.String("addr"); addr != "" {
				cfg.Addr = addr
			}
			return runServe(ctx, cfg, logw)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logw io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logw)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	worker := exports.NewWorker(a.service, a.blobs, a.logger)
	worker.Start()

	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/", httpapi.NewRouter(httpapi.Deps{
		Service:   a.service,
		Reporter:  a.reporter,
		Exports:   worker,
		Artifacts: a.blobs,
		Metrics:   promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		Logger:    a.logger,
	}))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server listening", log.FieldOperation, log.OpStartup, log.FieldAddr, cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), worker.Stop(shutdownCtx))
	})
	return g.Wait()
}

func summaryCommand(logw io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Print the dashboard aggregates",
		Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := openApp(ctx, config.Load(), logw)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return printSummary(c.Root().Writer, a.service.Snapshot(), c.Bool("json"))
		},
	}
}

func reportCommand(logw io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Generate the narrative donor report",
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := openApp(ctx, config.Load(), logw)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			_, err = fmt.Fprintln(c.Root().Writer, a.reporter.Generate(ctx, a.service.Snapshot()))
			return err
		},
	}
}

func exportCommand(logw io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Render a dataset to stdout or a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dataset", Value: string(exports.DatasetBudget), Usage: "budget, dashboard or snapshot"},
			&cli.StringFlag{Name: "format", Usage: "csv or json (defaults to the dataset's first format)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "destination file (default stdout)"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			dataset := exports.Dataset(c.String("dataset"))
			formats := dataset.Formats()
			if len(formats) == 0 {
				return fmt.Errorf("unknown dataset %q", dataset)
			}
			format := formats[0]
			if f := strings.ToLower(c.String("format")); f != "" {
				format = exports.Format(f)
			}
			if !dataset.Supports(format) {
				return fmt.Errorf("format %s not supported by dataset %s", format, dataset)
			}

			a, err := openApp(ctx, config.Load(), logw)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			out := c.Root().Writer
			if path := c.String("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				out = f
			}
			return exports.Render(out, dataset, format, a.service.Snapshot())
		},
	}
}

func seedCommand(logw io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Replace every collection with the contents of a YAML seed file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Required: true, Usage: "seed YAML path"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			snap, err := seed.Load(c.String("file"))
			if err != nil {
				return err
			}
			a, err := openApp(ctx, config.Load(), logw)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := a.store.Import(ctx, snap); err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.Root().Writer, "imported %d activities, %d beneficiaries, %d budget lines, %d compliance items, %d GIS metrics, %d layers, %d province stats\n",
				len(snap.Activities), len(snap.Beneficiaries), len(snap.Budget), len(snap.Compliance),
				len(snap.GISMetrics), len(snap.GISLayers), len(snap.GISProvinceStats))
			return err
		},
	}
}
