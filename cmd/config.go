package cmd

import (
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	log "github.com/jensneuse/abstractlogger"
)

const envPrefix = "GATEWAY"

const (
	keyListenAddr               = "listen_addr"
	keySupergraph               = "supergraph"
	keyFetchTimeout             = "fetch_timeout"
	keyMaxConcurrencyPerService = "max_concurrency_per_service"
	keyPlanCacheSize            = "plan_cache_size"
	keyLogLevel                 = "log_level"
	keyIntrospection            = "introspection"
)

const (
	defaultListenAddr    = "0.0.0.0:4000"
	defaultFetchTimeout  = 10 * time.Second
	defaultPlanCacheSize = 1024
	defaultLogLevel      = "info"
)

type gatewayConfig struct {
	ListenAddr               string
	Supergraph               string
	FetchTimeout             time.Duration
	MaxConcurrencyPerService int64
	PlanCacheSize            int
	LogLevel                 string
	Introspection            bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyFetchTimeout, defaultFetchTimeout)
	v.SetDefault(keyMaxConcurrencyPerService, 0)
	v.SetDefault(keyPlanCacheSize, defaultPlanCacheSize)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyIntrospection, true)
}

func loadGatewayConfig(v *viper.Viper) (gatewayConfig, error) {
	config := gatewayConfig{
		ListenAddr:               v.GetString(keyListenAddr),
		FetchTimeout:             v.GetDuration(keyFetchTimeout),
		MaxConcurrencyPerService: v.GetInt64(keyMaxConcurrencyPerService),
		PlanCacheSize:            v.GetInt(keyPlanCacheSize),
		LogLevel:                 v.GetString(keyLogLevel),
		Introspection:            v.GetBool(keyIntrospection),
	}

	supergraph := v.GetString(keySupergraph)
	if supergraph == "" {
		return gatewayConfig{}, errors.Errorf("no supergraph configured, set --%s or %s_%s", keySupergraph, envPrefix, "SUPERGRAPH")
	}
	expanded, err := homedir.Expand(supergraph)
	if err != nil {
		return gatewayConfig{}, errors.Wrapf(err, "expand supergraph path '%s'", supergraph)
	}
	config.Supergraph = expanded

	if config.FetchTimeout < 0 {
		return gatewayConfig{}, errors.Errorf("%s must not be negative", keyFetchTimeout)
	}
	if config.MaxConcurrencyPerService < 0 {
		return gatewayConfig{}, errors.Errorf("%s must not be negative", keyMaxConcurrencyPerService)
	}
	return config, nil
}

// newLogger builds the zap backend and wraps it into an abstractlogger.Logger.
func newLogger(level string) (log.Logger, *zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, nil, errors.Wrapf(err, "invalid %s '%s'", keyLogLevel, level)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)
	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, err
	}
	return log.NewZapLogger(zapLogger, abstractLevel(zapLevel)), zapLogger, nil
}

func abstractLevel(level zapcore.Level) log.Level {
	switch level {
	case zapcore.DebugLevel:
		return log.DebugLevel
	case zapcore.InfoLevel:
		return log.InfoLevel
	case zapcore.WarnLevel:
		return log.WarnLevel
	case zapcore.ErrorLevel:
		return log.ErrorLevel
	case zapcore.PanicLevel, zapcore.DPanicLevel:
		return log.PanicLevel
	default:
		return log.FatalLevel
	}
}
