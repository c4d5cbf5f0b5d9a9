package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "starts the gateway",
	Example: "gateway serve --supergraph supergraph.graphql --listen_addr 0.0.0.0:4000",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadGatewayConfig(viper.GetViper())
		if err != nil {
			return err
		}

		logger, zapLogger, err := newLogger(config.LogLevel)
		if err != nil {
			return err
		}
		defer zapLogger.Sync() // nolint

		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector())

		g, err := newGateway(config, logger, promRegistry)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return g.serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String(keyListenAddr, defaultListenAddr, "address the gateway listens on")
	serveCmd.Flags().Duration(keyFetchTimeout, defaultFetchTimeout, "timeout of a single upstream fetch, 0 disables it")
	serveCmd.Flags().Int64(keyMaxConcurrencyPerService, 0, "maximum in-flight requests per service, 0 is unbounded")
	serveCmd.Flags().Int(keyPlanCacheSize, defaultPlanCacheSize, "number of cached query plans")
	serveCmd.Flags().Bool(keyIntrospection, true, "answer __schema and __type queries from the supergraph")

	_ = viper.BindPFlag(keyListenAddr, serveCmd.Flags().Lookup(keyListenAddr))
	_ = viper.BindPFlag(keyFetchTimeout, serveCmd.Flags().Lookup(keyFetchTimeout))
	_ = viper.BindPFlag(keyMaxConcurrencyPerService, serveCmd.Flags().Lookup(keyMaxConcurrencyPerService))
	_ = viper.BindPFlag(keyPlanCacheSize, serveCmd.Flags().Lookup(keyPlanCacheSize))
	_ = viper.BindPFlag(keyIntrospection, serveCmd.Flags().Lookup(keyIntrospection))
}
