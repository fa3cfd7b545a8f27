// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fedanalytics/hubgate/events"
	"github.com/fedanalytics/hubgate/gwadmin"
	"github.com/fedanalytics/hubgate/model"
)

func TestDecodeAnalysisRequest(t *testing.T) {
	t.Run("Path parameter present", func(t *testing.T) {
		assert := assert.New(t)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/analysis-1/start", nil)
		r = mux.SetURLVars(r, map[string]string{analysisVarKey: "analysis-1"})

		decoded, err := decodeAnalysisRequest(context.Background(), r)
		assert.NoError(err)
		assert.Equal(&analysisRequest{analysisID: "analysis-1"}, decoded)
	})

	t.Run("Path parameter missing", func(t *testing.T) {
		assert := assert.New(t)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/analyses//start", nil)

		_, err := decodeAnalysisRequest(context.Background(), r)
		assert.Equal(&BadRequestErr{Message: analysisVarMissingMsg}, err)
	})
}

func TestEncodeError(t *testing.T) {
	type testCase struct {
		Description  string
		Err          error
		ExpectedCode int
	}

	tcs := []testCase{
		{
			Description:  "Bad request",
			Err:          &BadRequestErr{Message: "missing id"},
			ExpectedCode: http.StatusBadRequest,
		},
		{
			Description:  "Aborted cycle",
			Err:          CycleAbortedErr{Err: errors.New("hub down")},
			ExpectedCode: http.StatusServiceUnavailable,
		},
		{
			Description:  "Unknown analysis",
			Err:          analysisNotFoundErr{Err: ErrAnalysisNotStartable},
			ExpectedCode: http.StatusNotFound,
		},
		{
			Description:  "Untyped error",
			Err:          errors.New("boom"),
			ExpectedCode: http.StatusInternalServerError,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)
			recorder := httptest.NewRecorder()

			encodeError(context.Background(), tc.Err, recorder)

			assert.Equal(tc.ExpectedCode, recorder.Code)
			assert.Equal(tc.Err.Error(), recorder.Header().Get(ErrorHeaderKey))

			var body ErrorBody
			require.NoError(json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.Equal(tc.Err.Error(), body.Message)
			assert.Equal(serviceTag, body.Service)
			assert.Equal(tc.ExpectedCode, body.StatusCode)
		})
	}
}

func TestStartAnalysisEndpointNormalizesFailures(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	hubClient := singleNodeHub(model.NodeTypeDefault, []model.WorkItem{freshItem("analysis-1")})
	gateway := new(mockGatewayAdmin)
	gateway.On("ListRoutes", mock.Anything).
		Return([]model.Route{{Name: "project-1-fhir"}}, nil)
	gateway.On("CreateDataConsumer", mock.Anything, "analysis-1", "project-1").
		Return(model.Registration{}, gwadmin.ErrConflict)

	orch := new(mockOrchestrator)
	orch.On("PodStatus", mock.Anything, "analysis-1").Return("started", nil)
	sink := new(mockSink)
	sink.On("Record", mock.Anything, mock.Anything).Return(nil)

	engine := newTestEngine(hubClient, gateway, orch, new(mockTokenSource), sink)
	d := newTestDriver(engine, hubClient, gateway, "robot-1")

	response, err := newStartAnalysisEndpoint(d)(context.Background(), &analysisRequest{analysisID: "analysis-1"})
	require.NoError(err)

	resp, ok := response.(*startAnalysisResponse)
	require.True(ok)
	assert.Equal(http.StatusConflict, resp.code)
	assert.Equal(ErrorBody{
		Message:    http.StatusText(http.StatusConflict),
		Service:    serviceTag,
		StatusCode: http.StatusConflict,
	}, resp.body)
}

func TestGetEventsEndpoint(t *testing.T) {
	t.Run("Outcomes are returned", func(t *testing.T) {
		assert := assert.New(t)
		require := require.New(t)
		recorded := []events.Outcome{{
			ID:         "o-1",
			AnalysisID: "analysis-1",
			StatusCode: http.StatusCreated,
			Phase:      events.PhaseStart,
			CreatedAt:  time.Now().UTC(),
		}}
		sink := new(mockSink)
		sink.On("ByAnalysis", mock.Anything, "analysis-1").Return(recorded, nil)

		response, err := newGetEventsEndpoint(sink)(context.Background(), &analysisRequest{analysisID: "analysis-1"})
		require.NoError(err)
		assert.Equal(recorded, response)
	})

	t.Run("Unknown analysis maps to not found", func(t *testing.T) {
		assert := assert.New(t)
		sink := new(mockSink)
		sink.On("ByAnalysis", mock.Anything, "analysis-9").
			Return([]events.Outcome{}, events.ErrNotFound)

		_, err := newGetEventsEndpoint(sink)(context.Background(), &analysisRequest{analysisID: "analysis-9"})
		var notFound analysisNotFoundErr
		assert.ErrorAs(err, &notFound)
	})
}
