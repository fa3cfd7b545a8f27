// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/auth"
	"github.com/fedanalytics/hubgate/autostart"
	"github.com/fedanalytics/hubgate/events"
	"github.com/fedanalytics/hubgate/events/db"
	"github.com/fedanalytics/hubgate/gwadmin"
	"github.com/fedanalytics/hubgate/hub"
	"github.com/fedanalytics/hubgate/identity"
	"github.com/fedanalytics/hubgate/orchestrator"
)

// autostartConfig holds the settings of the poll driver.
type autostartConfig struct {
	// RobotID identifies this deployment's robot credential at the hub.
	RobotID string

	// PollInterval is how often a poll cycle runs. Zero keeps the
	// package default.
	PollInterval time.Duration
}

func provideClients() fx.Option {
	return fx.Provide(
		func(v *viper.Viper, logger *zap.Logger) (autostart.HubClient, error) {
			var config hub.ClientConfig
			if err := v.UnmarshalKey("hub", &config); err != nil {
				return nil, err
			}
			config.Logger = logger
			return hub.New(config)
		},
		func(v *viper.Viper, logger *zap.Logger) (autostart.GatewayAdmin, error) {
			var config gwadmin.ClientConfig
			if err := v.UnmarshalKey("gatewayAdmin", &config); err != nil {
				return nil, err
			}
			config.Logger = logger
			return gwadmin.New(config)
		},
		func(v *viper.Viper, logger *zap.Logger) (autostart.Orchestrator, error) {
			var config orchestrator.ClientConfig
			if err := v.UnmarshalKey("orchestrator", &config); err != nil {
				return nil, err
			}
			config.Logger = logger
			return orchestrator.New(config)
		},
		func(v *viper.Viper, logger *zap.Logger) (*identity.Provider, error) {
			var config identity.Config
			if err := v.UnmarshalKey("identity", &config); err != nil {
				return nil, err
			}
			config.Logger = logger
			return identity.New(config)
		},
		func(p *identity.Provider) autostart.TokenSource {
			return p
		},
		func(v *viper.Viper) (db.Configs, error) {
			var configs db.Configs
			err := v.UnmarshalKey("events", &configs)
			return configs, err
		},
		func(v *viper.Viper) (auth.Config, error) {
			var config auth.Config
			err := v.UnmarshalKey("authx.inbound", &config)
			return config, err
		},
	)
}

func provideAutostart() fx.Option {
	return fx.Options(
		autostart.ProvideMetrics(),
		autostart.ProvideHandlers(),
		fx.Provide(
			func(v *viper.Viper) (autostartConfig, error) {
				var config autostartConfig
				err := v.UnmarshalKey("autostart", &config)
				return config, err
			},
			func(config autostartConfig, client autostart.HubClient, logger *zap.Logger) *autostart.NodeCache {
				return autostart.NewNodeCache(client, config.RobotID, logger)
			},
			func(gateway autostart.GatewayAdmin, logger *zap.Logger) *autostart.ProjectResolver {
				return autostart.NewProjectResolver(gateway, logger)
			},
			func(logger *zap.Logger) *autostart.Filter {
				return autostart.NewFilter(logger)
			},
			func(client autostart.HubClient, gateway autostart.GatewayAdmin, orch autostart.Orchestrator, tokens autostart.TokenSource, sink events.Sink, logger *zap.Logger) *autostart.Engine {
				return autostart.NewEngine(client, gateway, orch, tokens, sink, logger)
			},
			func(config autostartConfig, engine *autostart.Engine, client autostart.HubClient, nodes *autostart.NodeCache, projects *autostart.ProjectResolver, filter *autostart.Filter, measures autostart.Measures, logger *zap.Logger) *autostart.Driver {
				return autostart.NewDriver(autostart.DriverConfig{
					PollInterval: config.PollInterval,
					Logger:       logger,
				}, engine, client, nodes, projects, filter, measures)
			},
		),
		fx.Invoke(
			func(lc fx.Lifecycle, d *autostart.Driver) {
				lc.Append(fx.Hook{
					OnStart: d.Start,
					OnStop:  d.Stop,
				})
			},
		),
	)
}
