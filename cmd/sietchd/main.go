// Command sietchd serves a widget repository over REST on a configurable
// storage backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/seb7887/gofw/predicate"
	"github.com/seb7887/gofw/sietch"
)

const shutdownTimeout = 10 * time.Second

func main() {
	app := &cli.App{
		Name:  "sietchd",
		Usage: "REST server over a sietch repository",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Directory holding sietchd.yaml",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override the configured logging level (debug, info, warn, error)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address, overrides server.addr",
					},
					&cli.StringFlag{
						Name:  "backend",
						Usage: "Storage backend, overrides storage.backend",
					},
				},
			},
			{
				Name:   "schema",
				Usage:  "Print the CREATE TABLE statement for the SQL backends",
				Action: schemaCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads the configuration and installs the default logger.
func setup(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	c.App.Metadata = map[string]any{"config": cfg}
	return nil
}

func configFrom(c *cli.Context) *Config {
	return c.App.Metadata["config"].(*Config)
}

func serveCommand(c *cli.Context) error {
	cfg := configFrom(c)
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if backend := c.String("backend"); backend != "" {
		cfg.Storage.Backend = backend
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing resources", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "backend", cfg.Storage.Backend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func schemaCommand(c *cli.Context) error {
	s, err := predicate.SchemaOf[widgetRow]()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, sietch.GenerateCreateTableSQL(sietch.InferTableDef(s, "widgets")))
	return err
}
