package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seb7887/gofw/eventbus"
	"github.com/seb7887/gofw/ginsrv"
	"github.com/seb7887/gofw/loader"
	"github.com/seb7887/gofw/observability"
	"github.com/seb7887/gofw/sietch"
	"github.com/seb7887/gofw/wp"
)

// app holds everything a running sietchd owns.
type app struct {
	router  *gin.Engine
	pool    *wp.Pool
	closers []func() error
}

func (a *app) Close() error {
	a.pool.Stop()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *Config, logger *slog.Logger) (*app, error) {
	gin.SetMode(gin.ReleaseMode)

	a := &app{pool: wp.NewPool(cfg.Loader.Workers, cfg.Loader.Queue)}
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	store, closeStore, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, closeStore)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetricsCollector(registry)
	tracer := observability.NewTracer(nil)

	opts := []sietch.Option{
		sietch.WithLogger(sietch.NewSlogLogger(logger)),
		sietch.WithMetrics(metrics),
		sietch.WithTracer(tracer),
	}
	switch cfg.Keys.Generator {
	case "ulid":
		opts = append(opts, sietch.WithKeyGenerator(sietch.ULIDKeys[string]()))
	case "uuidv7":
		opts = append(opts, sietch.WithKeyGenerator(sietch.UUIDv7Keys[string]()))
	case "uuid", "":
	default:
		return fail(fmt.Errorf("unknown key generator %q", cfg.Keys.Generator))
	}

	if cfg.Events.Enabled {
		bus, err := openBus(cfg.Events, logger)
		if err != nil {
			return fail(err)
		}
		a.closers = append(a.closers, bus.Close)
		publisher, err := sietch.NewEventPublisher[Widget](bus, cfg.Events.Topic, logger)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, sietch.WithObservers[Widget](publisher))
	}

	repo, err := sietch.NewRepository[Widget, widgetRow, string](store, opts...)
	if err != nil {
		return fail(err)
	}

	routes, err := ginsrv.RepositoryRoutes[Widget, string]("widgets", repo, ginsrv.StringKey)
	if err != nil {
		return fail(err)
	}
	routes = append(routes,
		ginsrv.Route{Method: http.MethodGet, Path: "/metrics", Handler: gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))},
		ginsrv.Route{Method: http.MethodGet, Path: "/healthz", Handler: func(c *gin.Context) { c.Status(http.StatusNoContent) }},
	)

	a.router = ginsrv.SetupRouter(routes,
		ginsrv.ErrorFormatterMiddleware(),
		ginsrv.LoaderScopeMiddleware(
			loader.WithPool(a.pool),
			loader.WithMetrics(metrics),
			loader.WithTracer(tracer),
			loader.WithLogger(logger),
		),
		ginsrv.LoggerMiddleware(logger),
		gin.Recovery(),
	)
	return a, nil
}

// openBus connects to NATS when a URL is configured. Otherwise events stay
// in process and are logged.
func openBus(cfg EventsConfig, logger *slog.Logger) (eventbus.Bus, error) {
	if cfg.NatsURL != "" {
		bus, err := eventbus.NewNatsBus[*sietch.RepositoryEvent](cfg.NatsURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to nats: %w", err)
		}
		return bus, nil
	}

	bus := eventbus.NewInMemBus()
	err := bus.Subscribe(cfg.Topic, eventbus.ReceiverFunc(func(ctx context.Context, msg eventbus.Message) {
		if ev, ok := msg.(*sietch.RepositoryEvent); ok {
			logger.DebugContext(ctx, "repository event", "kind", ev.Kind, "entity", ev.Entity, "key", ev.Key)
		}
	}))
	if err != nil {
		return nil, err
	}
	return bus, nil
}
