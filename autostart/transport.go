// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/mux"

	"github.com/fedanalytics/hubgate/events"
)

// request URL path keys
const analysisVarKey = "id"

const analysisVarMissingMsg = "{id} URL path parameter missing"

// ErrorHeaderKey carries the raw error message of a failed request.
const ErrorHeaderKey = "X-Hubgate-Error"

// ErrCasting indicates there was a middleware wiring mistake with the
// go-kit style encoders.
var ErrCasting = errors.New("casting error due to middleware wiring mistake")

type BadRequestErr struct {
	Message string
}

func (bre BadRequestErr) Error() string {
	return bre.Message
}

func (bre BadRequestErr) StatusCode() int {
	return http.StatusBadRequest
}

// CycleAbortedErr wraps the error that made a poll cycle abort before
// any item was attempted.
type CycleAbortedErr struct {
	Err error
}

func (cae CycleAbortedErr) Error() string {
	return "cycle aborted: " + cae.Err.Error()
}

func (cae CycleAbortedErr) Unwrap() error {
	return cae.Err
}

func (cae CycleAbortedErr) StatusCode() int {
	return http.StatusServiceUnavailable
}

type analysisNotFoundErr struct {
	Err error
}

func (e analysisNotFoundErr) Error() string {
	return e.Err.Error()
}

func (e analysisNotFoundErr) Unwrap() error {
	return e.Err
}

func (e analysisNotFoundErr) StatusCode() int {
	return http.StatusNotFound
}

type analysisRequest struct {
	analysisID string
}

type triggerCycleResponse struct {
	Started []string `json:"started"`
}

type startAnalysisResponse struct {
	body interface{}
	code int
}

func decodeTriggerCycleRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	return nil, nil
}

func decodeAnalysisRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	vars := mux.Vars(r)
	analysisID, ok := vars[analysisVarKey]
	if !ok || analysisID == "" {
		return nil, &BadRequestErr{Message: analysisVarMissingMsg}
	}
	return &analysisRequest{analysisID: analysisID}, nil
}

func encodeTriggerCycleResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	r, ok := response.(*triggerCycleResponse)
	if !ok {
		return ErrCasting
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	rw.Header().Add("Content-Type", "application/json")
	rw.Write(data)
	return nil
}

func encodeStartAnalysisResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	r, ok := response.(*startAnalysisResponse)
	if !ok {
		return ErrCasting
	}
	if r.body == nil {
		rw.WriteHeader(r.code)
		return nil
	}
	data, err := json.Marshal(r.body)
	if err != nil {
		return err
	}
	rw.Header().Add("Content-Type", "application/json")
	rw.WriteHeader(r.code)
	rw.Write(data)
	return nil
}

func encodeGetEventsResponse(ctx context.Context, rw http.ResponseWriter, response interface{}) error {
	outcomes, ok := response.([]events.Outcome)
	if !ok {
		return ErrCasting
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].CreatedAt.Before(outcomes[j].CreatedAt)
	})
	data, err := json.Marshal(outcomes)
	if err != nil {
		return err
	}
	rw.Header().Add("Content-Type", "application/json")
	rw.Write(data)
	return nil
}

func encodeError(ctx context.Context, err error, w http.ResponseWriter) {
	w.Header().Set(ErrorHeaderKey, err.Error())
	code := http.StatusInternalServerError
	if sc, ok := err.(kithttp.StatusCoder); ok {
		code = sc.StatusCode()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	body, marshalErr := json.Marshal(ErrorBody{
		Message:    err.Error(),
		Service:    serviceTag,
		StatusCode: code,
	})
	if marshalErr != nil {
		return
	}
	w.Write(body)
}

func sortedStarted(started map[string]struct{}) []string {
	list := make([]string, 0, len(started))
	for id := range started {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}
