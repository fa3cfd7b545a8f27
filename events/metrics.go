// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	QuerySuccessCounter = "events_query_success_count"
	QueryFailureCounter = "events_query_failure_count"
)

// ProvideMetrics returns the metrics relevant to this package.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: QuerySuccessCounter,
				Help: "Counter for successful outcome sink operations.",
			},
			TypeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: QueryFailureCounter,
				Help: "Counter for failed outcome sink operations.",
			},
			TypeLabel,
		),
	)
}

type Measures struct {
	fx.In
	QuerySuccessCount *prometheus.CounterVec `name:"events_query_success_count"`
	QueryFailureCount *prometheus.CounterVec `name:"events_query_failure_count"`
}
