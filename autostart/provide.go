// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"net/http"

	kithttp "github.com/go-kit/kit/transport/http"
	"go.uber.org/fx"

	"github.com/fedanalytics/hubgate/events"
)

type Handler http.Handler

func newTriggerCycleHandler(d *Driver) Handler {
	return kithttp.NewServer(
		newTriggerCycleEndpoint(d),
		decodeTriggerCycleRequest,
		encodeTriggerCycleResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

func newStartAnalysisHandler(d *Driver) Handler {
	return kithttp.NewServer(
		newStartAnalysisEndpoint(d),
		decodeAnalysisRequest,
		encodeStartAnalysisResponse,
		kithttp.ServerErrorEncoder(encodeError),
	)
}

type eventsHandlerIn struct {
	fx.In

	Sink events.Sink
}

// ProvideHandlers builds the three autostart handlers the primary
// server mounts.
func ProvideHandlers() fx.Option {
	return fx.Provide(
		fx.Annotated{
			Name:   "trigger_cycle_handler",
			Target: newTriggerCycleHandler,
		},
		fx.Annotated{
			Name:   "start_analysis_handler",
			Target: newStartAnalysisHandler,
		},
		fx.Annotated{
			Name: "analysis_events_handler",
			Target: func(in eventsHandlerIn) Handler {
				return kithttp.NewServer(
					newGetEventsEndpoint(in.Sink),
					decodeAnalysisRequest,
					encodeGetEventsResponse,
					kithttp.ServerErrorEncoder(encodeError),
				)
			},
		},
	)
}
