// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xmidt-org/touchstone/touchhttp"
	"go.uber.org/fx"
)

// provideServerMetrics builds the per-server HTTP instrumenters and the
// prometheus scrape handler.
func provideServerMetrics() fx.Option {
	return fx.Provide(
		fx.Annotated{
			Name: "servers.primary.metrics",
			Target: touchhttp.ServerBundle{}.NewInstrumenter(
				touchhttp.ServerLabel, "primary",
			),
		},
		fx.Annotated{
			Name: "servers.health.metrics",
			Target: touchhttp.ServerBundle{}.NewInstrumenter(
				touchhttp.ServerLabel, "health",
			),
		},
		fx.Annotated{
			Name: "servers.metrics.handler",
			Target: func(g prometheus.Gatherer) http.Handler {
				return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
			},
		},
	)
}
