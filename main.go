// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/xmidt-org/arrange"
	"github.com/xmidt-org/bascule/basculehttp"
	"github.com/xmidt-org/candlelight"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/auth"
	"github.com/fedanalytics/hubgate/events"
	"github.com/fedanalytics/hubgate/events/db"
	"github.com/fedanalytics/hubgate/identity"
)

const (
	applicationName = "hubgate"

	apiBase = "api/v1"
)

var (
	GitCommit = "undefined"
	Version   = "undefined"
	BuildTime = "undefined"
)

func main() {
	v, logger, err := setup(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app := fx.New(
		arrange.LoggerFunc(logger.Sugar().Infof),
		arrange.ForViper(v),
		fx.Supply(logger, v),
		touchstone.Provide(),
		basculehttp.ProvideMetrics(),
		events.ProvideMetrics(),
		db.Provide(),
		provideServerMetrics(),
		provideClients(),
		provideAutostart(),
		fx.Provide(
			auth.ProvideAuthChain,
			candlelight.New,
			func(v *viper.Viper) (candlelight.Config, error) {
				var config candlelight.Config
				err := v.UnmarshalKey("tracing", &config)
				if err != nil {
					return candlelight.Config{}, err
				}
				config.ApplicationName = applicationName
				return config, nil
			},
		),

		fx.Invoke(
			warnOnIssuerMismatch,
			BuildPrimaryRoutes,
			BuildMetricsRoutes,
			BuildHealthRoutes,
		),
	)

	switch err := app.Err(); {
	case errors.Is(err, pflag.ErrHelp):
		return
	case err == nil:
		app.Run()
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

// warnOnIssuerMismatch flags deployments whose pods will present tokens
// from a different issuer than the gateway validates against.
func warnOnIssuerMismatch(p *identity.Provider, logger *zap.Logger) {
	if !p.ConfigsMatch() {
		logger.Warn("internal and external identity provider URLs differ, pod tokens will carry the internal issuer")
	}
}
