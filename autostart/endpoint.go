// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-kit/kit/endpoint"

	"github.com/fedanalytics/hubgate/events"
)

func newTriggerCycleEndpoint(d *Driver) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		started, err := d.AutoStartAnalyses(ctx)
		if err != nil {
			return nil, CycleAbortedErr{Err: err}
		}
		return &triggerCycleResponse{Started: sortedStarted(started)}, nil
	}
}

func newStartAnalysisEndpoint(d *Driver) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(*analysisRequest)
		if !ok {
			return nil, ErrCasting
		}

		body, code, err := d.StartAnalysis(ctx, req.analysisID)
		if errors.Is(err, ErrAnalysisNotStartable) {
			return nil, analysisNotFoundErr{Err: err}
		}
		if err != nil {
			return nil, CycleAbortedErr{Err: err}
		}

		if code >= http.StatusBadRequest {
			if _, normalized := body.(ErrorBody); !normalized {
				body = ErrorBody{
					Message:    http.StatusText(code),
					Service:    serviceTag,
					StatusCode: code,
				}
			}
		}
		return &startAnalysisResponse{body: body, code: code}, nil
	}
}

func newGetEventsEndpoint(sink events.Sink) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (interface{}, error) {
		req, ok := request.(*analysisRequest)
		if !ok {
			return nil, ErrCasting
		}

		outcomes, err := sink.ByAnalysis(ctx, req.analysisID)
		if errors.Is(err, events.ErrNotFound) {
			return nil, analysisNotFoundErr{Err: err}
		}
		if err != nil {
			return nil, err
		}
		return outcomes, nil
	}
}
