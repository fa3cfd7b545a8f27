// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/spf13/viper"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/httpaux"
	"github.com/xmidt-org/httpaux/recovery"
	"github.com/xmidt-org/touchstone/touchhttp"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/autostart"
)

// serverConfig holds the listen settings of one server.
type serverConfig struct {
	Address string
}

type PrimaryRoutesIn struct {
	fx.In
	LC        fx.Lifecycle
	V         *viper.Viper
	Logger    *zap.Logger
	AuthChain alice.Chain                  `name:"auth_chain"`
	Metrics   touchhttp.ServerInstrumenter `name:"servers.primary.metrics"`
	Tracing   candlelight.Tracing

	TriggerCycle   autostart.Handler `name:"trigger_cycle_handler"`
	StartAnalysis  autostart.Handler `name:"start_analysis_handler"`
	AnalysisEvents autostart.Handler `name:"analysis_events_handler"`
}

type MetricsRoutesIn struct {
	fx.In
	LC      fx.Lifecycle
	V       *viper.Viper
	Logger  *zap.Logger
	Handler http.Handler `name:"servers.metrics.handler"`
}

type HealthRoutesIn struct {
	fx.In
	LC      fx.Lifecycle
	V       *viper.Viper
	Logger  *zap.Logger
	Metrics touchhttp.ServerInstrumenter `name:"servers.health.metrics"`
}

// BuildPrimaryRoutes mounts the autostart API behind the auth chain and
// starts the primary server.
func BuildPrimaryRoutes(in PrimaryRoutesIn) error {
	router := mux.NewRouter()

	options := []otelmux.Option{
		otelmux.WithTracerProvider(in.Tracing.TracerProvider()),
		otelmux.WithPropagators(in.Tracing.Propagator()),
	}
	router.Use(
		recovery.Middleware(recovery.WithStatusCode(http.StatusInternalServerError)),
		otelmux.Middleware("server_primary", options...),
		candlelight.EchoFirstTraceNodeInfo(in.Tracing.Propagator()),
	)

	router.Handle(fmt.Sprintf("/%s/autostart", apiBase), in.TriggerCycle).Methods(http.MethodPost)
	router.Handle(fmt.Sprintf("/%s/analyses/{id}/start", apiBase), in.StartAnalysis).Methods(http.MethodPost)
	router.Handle(fmt.Sprintf("/%s/analyses/{id}/events", apiBase), in.AnalysisEvents).Methods(http.MethodGet)

	return serveHTTP(in.LC, in.Logger, in.V, "servers.primary",
		in.Metrics.Then(in.AuthChain.Then(router)))
}

// BuildMetricsRoutes starts the prometheus scrape server.
func BuildMetricsRoutes(in MetricsRoutesIn) error {
	router := mux.NewRouter()
	router.Handle("/metrics", in.Handler).Methods(http.MethodGet)
	return serveHTTP(in.LC, in.Logger, in.V, "servers.metrics", router)
}

// BuildHealthRoutes starts the health server.
func BuildHealthRoutes(in HealthRoutesIn) error {
	router := mux.NewRouter()
	router.Handle("/health", httpaux.ConstantHandler{
		StatusCode: http.StatusOK,
	}).Methods(http.MethodGet)
	return serveHTTP(in.LC, in.Logger, in.V, "servers.health", in.Metrics.Then(router))
}

// serveHTTP binds an http.Server for the named config key to the fx
// lifecycle. Servers with no configured address are skipped; the
// process can run polling-only.
func serveHTTP(lc fx.Lifecycle, logger *zap.Logger, v *viper.Viper, key string, handler http.Handler) error {
	var config serverConfig
	if err := v.UnmarshalKey(key, &config); err != nil {
		return err
	}
	if config.Address == "" {
		logger.Info("server has no configured address, not starting it", zap.String("server", key))
		return nil
	}

	server := &http.Server{
		Addr:    config.Address,
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			listener, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			logger.Info("starting server", zap.String("server", key), zap.String("address", server.Addr))
			go func() {
				if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
					logger.Error("server exited", zap.String("server", key), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
	return nil
}
