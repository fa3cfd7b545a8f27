// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	PollCounter    = "autostart_polls_total"
	StartedCounter = "autostart_started_total"
)

// Labels
const (
	OutcomeLabel = "outcome"
)

// Label Values
const (
	SuccessOutcome = "success"
	FailureOutcome = "failure"
)

// ProvideMetrics returns the metrics relevant to this package.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: PollCounter,
				Help: "Counter for the number of autostart poll cycles and their outcomes.",
			},
			OutcomeLabel,
		),
		touchstone.Counter(
			prometheus.CounterOpts{
				Name: StartedCounter,
				Help: "Counter for analyses whose start request was accepted.",
			},
		),
	)
}

type Measures struct {
	fx.In
	Polls   *prometheus.CounterVec `name:"autostart_polls_total"`
	Started prometheus.Counter     `name:"autostart_started_total"`
}
