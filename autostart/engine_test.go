// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/gwadmin"
	"github.com/fedanalytics/hubgate/model"
	"github.com/fedanalytics/hubgate/orchestrator"
)

var testCandidate = model.Candidate{
	AnalysisID:  "analysis-1",
	ProjectID:   "project-1",
	NodeID:      "node-1",
	BuildStatus: model.BuildFinished,
}

var testRegistry = model.RegistryProject{
	ExternalName:  "project-one",
	RegistryHost:  "registry.example.org",
	AccountID:     "robot$project-one",
	AccountSecret: "secret",
}

func newTestEngine(h *mockHub, g *mockGatewayAdmin, o *mockOrchestrator, t *mockTokenSource, s *mockSink) *Engine {
	e := NewEngine(h, g, o, t, s, zap.NewNop())
	e.grace = time.Millisecond
	return e
}

func TestRegisterAnalysis(t *testing.T) {
	type testCase struct {
		Description      string
		CreateResults    []error
		PodStatus        string
		PodStatusErr     error
		DeleteErr        error
		ExpectedCode     int
		ExpectedDeletes  int
		ExpectedKey      string
		ExpectedRecorded bool
	}

	tcs := []testCase{
		{
			Description:   "First attempt succeeds",
			CreateResults: []error{nil},
			ExpectedCode:  http.StatusCreated,
			ExpectedKey:   "issued-key",
		},
		{
			Description:      "Gateway admin unavailable",
			CreateResults:    []error{gwadmin.ErrUnavailable},
			ExpectedCode:     http.StatusServiceUnavailable,
			ExpectedRecorded: true,
		},
		{
			Description:      "Conflict with running pod",
			CreateResults:    []error{gwadmin.ErrConflict},
			PodStatus:        "started",
			ExpectedCode:     http.StatusConflict,
			ExpectedRecorded: true,
		},
		{
			Description:      "Conflict with indeterminate pod state",
			CreateResults:    []error{gwadmin.ErrConflict},
			PodStatusErr:     errors.New("probe exploded"),
			ExpectedCode:     http.StatusConflict,
			ExpectedRecorded: true,
		},
		{
			Description:     "Stale consumer repaired on second attempt",
			CreateResults:   []error{gwadmin.ErrConflict, nil},
			PodStatus:       "failed",
			ExpectedCode:    http.StatusCreated,
			ExpectedDeletes: 1,
			ExpectedKey:     "issued-key",
		},
		{
			Description: "Attempts exhausted",
			CreateResults: []error{
				gwadmin.ErrConflict, gwadmin.ErrConflict, gwadmin.ErrConflict,
				gwadmin.ErrConflict, gwadmin.ErrConflict,
			},
			PodStatus:        "failed",
			ExpectedCode:     http.StatusConflict,
			ExpectedDeletes:  5,
			ExpectedRecorded: true,
		},
		{
			Description:      "Stale consumer delete fails",
			CreateResults:    []error{gwadmin.ErrConflict},
			PodStatus:        "failed",
			DeleteErr:        gwadmin.APIError{Code: http.StatusBadRequest, Message: "nope"},
			ExpectedCode:     http.StatusBadRequest,
			ExpectedDeletes:  1,
			ExpectedRecorded: true,
		},
		{
			Description:      "Application error from gateway admin",
			CreateResults:    []error{gwadmin.APIError{Code: http.StatusUnprocessableEntity, Message: "bad name"}},
			ExpectedCode:     http.StatusUnprocessableEntity,
			ExpectedRecorded: true,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)

			gateway := new(mockGatewayAdmin)
			orch := new(mockOrchestrator)
			sink := new(mockSink)

			for _, err := range tc.CreateResults {
				reg := model.Registration{}
				if err == nil {
					reg = model.Registration{ConsumerID: "c-1", Key: "issued-key"}
				}
				gateway.On("CreateDataConsumer", mock.Anything, "analysis-1", "project-1").Return(reg, err).Once()
			}
			orch.On("PodStatus", mock.Anything, "analysis-1").Return(tc.PodStatus, tc.PodStatusErr)
			gateway.On("DeleteConsumer", mock.Anything, "analysis-1").Return(tc.DeleteErr)
			sink.On("Record", mock.Anything, mock.Anything).Return(nil)

			e := newTestEngine(new(mockHub), gateway, orch, new(mockTokenSource), sink)
			reg, code := e.RegisterAnalysis(context.Background(), "analysis-1", "project-1")

			assert.Equal(tc.ExpectedCode, code)
			assert.Equal(tc.ExpectedKey, reg.Key)
			gateway.AssertNumberOfCalls(t, "DeleteConsumer", tc.ExpectedDeletes)
			if tc.ExpectedRecorded {
				sink.AssertNumberOfCalls(t, "Record", 1)
			} else {
				sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
			}
			gateway.AssertExpectations(t)
		})
	}
}

func TestSendStartRequest(t *testing.T) {
	type testCase struct {
		Description    string
		AuthHeaderErr  error
		RegistryErr    error
		CreatePodCode  int
		CreatePodErr   error
		ExpectedCode   int
		ExpectedBody   interface{}
		ExpectNoCreate bool
	}

	tcs := []testCase{
		{
			Description:   "Start accepted",
			CreatePodCode: http.StatusCreated,
			ExpectedCode:  http.StatusCreated,
			ExpectedBody:  orchestrator.StatusMap{"analysis-1": "starting"},
		},
		{
			Description:    "Registry metadata unavailable",
			RegistryErr:    errors.New("hub hiccup"),
			ExpectedCode:   http.StatusInternalServerError,
			ExpectNoCreate: true,
		},
		{
			Description:    "No internal auth header",
			AuthHeaderErr:  errors.New("identity provider down"),
			ExpectedCode:   http.StatusNotFound,
			ExpectNoCreate: true,
		},
		{
			Description:  "Read timeout resolves to 408 after grace",
			CreatePodErr: orchestrator.ErrReadTimeout,
			ExpectedCode: http.StatusRequestTimeout,
			ExpectedBody: ErrorBody{
				Message:    "orchestrator did not answer the start request in time",
				Service:    "PO",
				StatusCode: http.StatusRequestTimeout,
			},
		},
		{
			Description:  "Orchestrator unreachable",
			CreatePodErr: orchestrator.ErrUnavailable,
			ExpectedCode: http.StatusInternalServerError,
		},
		{
			Description:  "Orchestrator rejection is normalized",
			CreatePodErr: orchestrator.StatusError{Code: http.StatusUnprocessableEntity, Message: "image not found"},
			ExpectedCode: http.StatusUnprocessableEntity,
			ExpectedBody: ErrorBody{
				Message:    "image not found",
				Service:    "PO",
				StatusCode: http.StatusUnprocessableEntity,
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)

			hubClient := new(mockHub)
			orch := new(mockOrchestrator)
			tokens := new(mockTokenSource)
			sink := new(mockSink)

			hubClient.On("RegistryProject", mock.Anything, "project-1").Return(testRegistry, tc.RegistryErr)
			tokens.On("AuthHeader").Return("Bearer internal", tc.AuthHeaderErr)
			sink.On("Record", mock.Anything, mock.Anything).Return(nil)

			var successBody orchestrator.StatusMap
			if tc.CreatePodErr == nil {
				successBody = orchestrator.StatusMap{"analysis-1": "starting"}
			}
			orch.On("CreatePod", mock.Anything, mock.Anything, "Bearer internal").
				Return(successBody, tc.CreatePodCode, tc.CreatePodErr)

			e := newTestEngine(hubClient, new(mockGatewayAdmin), orch, tokens, sink)
			body, code := e.SendStartRequest(context.Background(), testCandidate, "issued-key")

			assert.Equal(tc.ExpectedCode, code)
			if tc.ExpectedBody != nil {
				assert.Equal(tc.ExpectedBody, body)
			} else {
				assert.Nil(body)
			}
			if tc.ExpectNoCreate {
				orch.AssertNotCalled(t, "CreatePod", mock.Anything, mock.Anything, mock.Anything)
			}
			sink.AssertNumberOfCalls(t, "Record", 1)
		})
	}
}

func TestSendStartRequestComposesProperties(t *testing.T) {
	assert := assert.New(t)

	hubClient := new(mockHub)
	orch := new(mockOrchestrator)
	tokens := new(mockTokenSource)
	sink := new(mockSink)

	hubClient.On("RegistryProject", mock.Anything, "project-1").Return(testRegistry, nil)
	tokens.On("AuthHeader").Return("Bearer internal", nil)
	sink.On("Record", mock.Anything, mock.Anything).Return(nil)

	var captured model.StartProperties
	orch.On("CreatePod", mock.Anything, mock.Anything, "Bearer internal").
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(model.StartProperties)
		}).
		Return(orchestrator.StatusMap{}, http.StatusCreated, nil)

	e := newTestEngine(hubClient, new(mockGatewayAdmin), orch, tokens, sink)
	_, code := e.SendStartRequest(context.Background(), testCandidate, "issued-key")

	assert.Equal(http.StatusCreated, code)
	assert.Equal("analysis-1", captured.AnalysisID)
	assert.Equal("project-1", captured.ProjectID)
	assert.Equal("node-1", captured.NodeID)
	assert.Equal("issued-key", captured.KongToken)
	assert.Equal("registry.example.org/project-one/analysis-1", captured.ImageURL)
	assert.Equal("registry.example.org", captured.RegistryURL)
	assert.Equal("robot$project-one", captured.RegistryUser)
	assert.Equal("secret", captured.RegistryPassword)
}

func TestRegisterAndStart(t *testing.T) {
	t.Run("Aggregator skips registration", func(t *testing.T) {
		assert := assert.New(t)

		hubClient := new(mockHub)
		gateway := new(mockGatewayAdmin)
		orch := new(mockOrchestrator)
		tokens := new(mockTokenSource)
		sink := new(mockSink)

		hubClient.On("RegistryProject", mock.Anything, "project-1").Return(testRegistry, nil)
		tokens.On("AuthHeader").Return("Bearer internal", nil)
		sink.On("Record", mock.Anything, mock.Anything).Return(nil)

		var captured model.StartProperties
		orch.On("CreatePod", mock.Anything, mock.Anything, "Bearer internal").
			Run(func(args mock.Arguments) {
				captured = args.Get(1).(model.StartProperties)
			}).
			Return(orchestrator.StatusMap{}, http.StatusCreated, nil)

		e := newTestEngine(hubClient, gateway, orch, tokens, sink)
		_, code := e.RegisterAndStart(context.Background(), testCandidate, model.NodeTypeAggregator)

		assert.Equal(http.StatusCreated, code)
		assert.Equal("not-required", captured.KongToken)
		gateway.AssertNotCalled(t, "CreateDataConsumer", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Failed registration stops the item", func(t *testing.T) {
		assert := assert.New(t)

		gateway := new(mockGatewayAdmin)
		orch := new(mockOrchestrator)
		sink := new(mockSink)

		gateway.On("CreateDataConsumer", mock.Anything, "analysis-1", "project-1").
			Return(model.Registration{}, gwadmin.ErrUnavailable)
		sink.On("Record", mock.Anything, mock.Anything).Return(nil)

		e := newTestEngine(new(mockHub), gateway, orch, new(mockTokenSource), sink)
		body, code := e.RegisterAndStart(context.Background(), testCandidate, model.NodeTypeDefault)

		assert.Equal(http.StatusServiceUnavailable, code)
		assert.Nil(body)
		orch.AssertNotCalled(t, "CreatePod", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPodRunning(t *testing.T) {
	type testCase struct {
		Description string
		Status      string
		Err         error
		Expected    Liveness
	}

	tcs := []testCase{
		{Description: "Started pod is live", Status: "started", Expected: LivenessRunning},
		{Description: "Executing pod is live", Status: "executing", Expected: LivenessRunning},
		{Description: "Failed pod is not live", Status: "failed", Expected: LivenessNotRunning},
		{Description: "No pod at all", Err: orchestrator.ErrNotFound, Expected: LivenessNotRunning},
		{Description: "Probe failure is unknown", Err: orchestrator.ErrUnavailable, Expected: LivenessUnknown},
	}

	for _, tc := range tcs {
		t.Run(tc.Description, func(t *testing.T) {
			assert := assert.New(t)
			orch := new(mockOrchestrator)
			orch.On("PodStatus", mock.Anything, "analysis-1").Return(tc.Status, tc.Err)

			e := newTestEngine(new(mockHub), new(mockGatewayAdmin), orch, new(mockTokenSource), new(mockSink))
			assert.Equal(tc.Expected, e.PodRunning(context.Background(), "analysis-1"))
		})
	}
}
