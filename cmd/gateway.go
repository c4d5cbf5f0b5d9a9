package cmd

import (
	"context"
	"net/http"
	"time"

	log "github.com/jensneuse/abstractlogger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/datasource/httpclient"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/plan"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/engine/resolve"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/federation"
	gatewayhttp "github.com/TykTechnologies/graphql-federation-gateway/pkg/http"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/introspection"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/metrics"
	"github.com/TykTechnologies/graphql-federation-gateway/pkg/registry"
)

const (
	graphqlEndpoint = "/graphql"
	metricsEndpoint = "/metrics"

	shutdownTimeout = 10 * time.Second
)

type gateway struct {
	logger log.Logger
	server *http.Server
}

func newGateway(config gatewayConfig, logger log.Logger, promRegistry *prometheus.Registry) (*gateway, error) {
	registryConfig, err := federation.LoadConfigFile(config.Supergraph)
	if err != nil {
		return nil, err
	}
	reg := registry.New(registryConfig)

	planCache, err := plan.NewCache(config.PlanCacheSize, reg)
	if err != nil {
		return nil, errors.Wrap(err, "create plan cache")
	}

	hooks, err := metrics.NewPrometheusHooks(promRegistry)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}

	transport := httpclient.NewTransport(httpclient.Options{
		MaxConcurrencyPerService: config.MaxConcurrencyPerService,
		Logger:                   logger,
	})
	options := resolve.Options{
		FetchTimeout: config.FetchTimeout,
		Logger:       logger,
		Hooks:        hooks,
	}
	if config.Introspection {
		resolver, err := newIntrospectionResolver(config.Supergraph)
		if err != nil {
			return nil, errors.Wrap(err, "build introspection")
		}
		options.Introspection = resolver
	}
	executor := resolve.NewExecutor(reg, transport, options)

	mux := http.NewServeMux()
	mux.Handle(graphqlEndpoint, gatewayhttp.NewGatewayHandler(reg, planCache, executor, logger))
	mux.Handle(metricsEndpoint, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	for _, service := range reg.Services() {
		logger.Info("service registered",
			log.String("service", service.ID),
			log.String("url", service.URL),
		)
	}

	return &gateway{
		logger: logger,
		server: &http.Server{
			Addr:    config.ListenAddr,
			Handler: mux,
		},
	}, nil
}

func newIntrospectionResolver(supergraphPath string) (*introspection.Resolver, error) {
	document, err := federation.LoadSchemaFile(supergraphPath)
	if err != nil {
		return nil, err
	}
	var data introspection.Data
	if err := introspection.NewGenerator().Generate(document, &data); err != nil {
		return nil, err
	}
	return introspection.NewResolver(&data)
}

// serve blocks until ctx is done or the listener fails. In-flight requests get shutdownTimeout to finish.
func (g *gateway) serve(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		g.logger.Info("listening",
			log.String("addr", g.server.Addr),
		)
		serveErr <- g.server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	g.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := g.server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
