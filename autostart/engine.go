// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/events"
	"github.com/fedanalytics/hubgate/gwadmin"
	"github.com/fedanalytics/hubgate/hub"
	"github.com/fedanalytics/hubgate/model"
	"github.com/fedanalytics/hubgate/orchestrator"
)

// Fixed policy constants.
const (
	// maxRegistrationAttempts bounds the conflict-repair loop.
	maxRegistrationAttempts = 5

	// startGracePeriod is how long a read timeout on the create-pod
	// call is tolerated before the attempt resolves to 408. Image
	// pulls are a known slow path, so the batch deliberately stalls
	// here instead of abandoning a possibly-still-succeeding start.
	startGracePeriod = 60 * time.Second

	// aggregatorToken is the fixed token handed to pods on aggregator
	// nodes, which have no data store to authenticate against.
	aggregatorToken = "not-required"

	// serviceTag names the orchestrator in normalized error bodies.
	serviceTag = "PO"
)

// Liveness is the answer of the pod-liveness probe. Unknown means the
// probe itself failed: callers must not treat that as "not running".
type Liveness int

const (
	LivenessUnknown Liveness = iota
	LivenessRunning
	LivenessNotRunning
)

// liveStatuses are the per-analysis pod states that count as a live
// pod. Absent, executed, failed and stopped pods do not.
var liveStatuses = map[string]struct{}{
	"started":   {},
	"starting":  {},
	"executing": {},
	"stopping":  {},
}

// ErrorBody is the normalized failure shape handed back to callers and
// re-raised by the on-demand HTTP path.
type ErrorBody struct {
	Message    string `json:"message"`
	Service    string `json:"service"`
	StatusCode int    `json:"status_code"`
}

// Engine provisions and starts one analysis at a time. Failures never
// escape an item: every path resolves to a (body, code) pair and
// records exactly one outcome event, so a batch caller is never
// interrupted by a single item.
type Engine struct {
	hub     HubClient
	gateway GatewayAdmin
	orch    Orchestrator
	tokens  TokenSource
	sink    events.Sink
	logger  *zap.Logger

	// grace overrides startGracePeriod in tests.
	grace time.Duration
}

// NewEngine assembles the provisioning engine from its collaborators.
func NewEngine(hub HubClient, gateway GatewayAdmin, orch Orchestrator, tokens TokenSource, sink events.Sink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = sallust.Default()
	}
	return &Engine{
		hub:     hub,
		gateway: gateway,
		orch:    orch,
		tokens:  tokens,
		sink:    sink,
		logger:  logger,
		grace:   startGracePeriod,
	}
}

// RegisterAndStart drives one work item to a started pod or a terminal
// failure. Default nodes register the analysis with the gateway-admin
// plane first and hand the issued key-auth token to the pod; a
// registration that does not come back created stops the item right
// there, no start is attempted. Aggregator nodes have no data store, so
// they skip registration and use the fixed token.
func (e *Engine) RegisterAndStart(ctx context.Context, cand model.Candidate, nodeType model.NodeType) (interface{}, int) {
	token := aggregatorToken

	if nodeType != model.NodeTypeAggregator {
		reg, code := e.RegisterAnalysis(ctx, cand.AnalysisID, cand.ProjectID)
		if code != http.StatusCreated {
			return nil, code
		}
		token = reg.Key
	}

	return e.SendStartRequest(ctx, cand, token)
}

// RegisterAnalysis creates the consumer + key-auth + ACL triple for an
// analysis, repairing stale leftovers from an earlier failed attempt.
//
// A conflict means a consumer with this name already exists. Whether
// that is fine depends on the pod: if one is running, the registration
// already served its purpose; if none is, the consumer is a stale
// leftover, deleted and re-created on the next attempt; if the pod
// state cannot be determined, nothing is touched and the next poll
// cycle re-derives the situation fresh.
func (e *Engine) RegisterAnalysis(ctx context.Context, analysisID, projectID string) (model.Registration, int) {
	for attempt := 1; attempt <= maxRegistrationAttempts; attempt++ {
		reg, err := e.gateway.CreateDataConsumer(ctx, analysisID, projectID)
		if err == nil {
			return reg, http.StatusCreated
		}

		switch {
		case errors.Is(err, gwadmin.ErrUnavailable):
			e.logger.Error("gateway-admin unavailable, deferring registration to next cycle",
				zap.String("analysisId", analysisID), zap.Error(err))
			e.record(ctx, events.PhaseRegistration, analysisID, projectID, http.StatusServiceUnavailable, err.Error())
			return model.Registration{}, http.StatusServiceUnavailable

		case errors.Is(err, gwadmin.ErrConflict):
			switch e.PodRunning(ctx, analysisID) {
			case LivenessUnknown:
				e.logger.Warn("registration conflict with indeterminate pod state, deferring to next cycle",
					zap.String("analysisId", analysisID))
				e.record(ctx, events.PhaseRegistration, analysisID, projectID, http.StatusConflict,
					"registration exists and pod state is indeterminate")
				return model.Registration{}, http.StatusConflict

			case LivenessRunning:
				e.logger.Info("registration conflict but pod is already running, nothing to do",
					zap.String("analysisId", analysisID))
				e.record(ctx, events.PhaseRegistration, analysisID, projectID, http.StatusConflict,
					"analysis is already registered and running")
				return model.Registration{}, http.StatusConflict

			case LivenessNotRunning:
				e.logger.Info("removing stale registration of analysis without a running pod",
					zap.String("analysisId", analysisID), zap.Int("attempt", attempt))
				if err := e.gateway.DeleteConsumer(ctx, analysisID); err != nil {
					code := statusCodeOf(err, http.StatusInternalServerError)
					e.logger.Error("failed to delete stale consumer",
						zap.String("analysisId", analysisID), zap.Error(err))
					e.record(ctx, events.PhaseRegistration, analysisID, projectID, code, err.Error())
					return model.Registration{}, code
				}
				// stale consumer removed, take the next attempt
			}

		default:
			code := statusCodeOf(err, http.StatusInternalServerError)
			e.logger.Error("gateway-admin rejected the registration",
				zap.String("analysisId", analysisID), zap.Int("code", code), zap.Error(err))
			e.record(ctx, events.PhaseRegistration, analysisID, projectID, code, err.Error())
			return model.Registration{}, code
		}
	}

	e.logger.Error("registration attempts exhausted",
		zap.String("analysisId", analysisID), zap.Int("attempts", maxRegistrationAttempts))
	e.record(ctx, events.PhaseRegistration, analysisID, projectID, http.StatusConflict,
		fmt.Sprintf("registration still conflicting after %d attempts", maxRegistrationAttempts))
	return model.Registration{}, http.StatusConflict
}

// SendStartRequest composes the start properties for a work item and
// asks the orchestrator to create its pod.
func (e *Engine) SendStartRequest(ctx context.Context, cand model.Candidate, token string) (interface{}, int) {
	registry, err := e.hub.RegistryProject(ctx, cand.ProjectID)
	if err != nil {
		code := statusCodeOf(err, http.StatusInternalServerError)
		e.logger.Error("failed to fetch registry metadata for project",
			zap.String("projectId", cand.ProjectID), zap.Error(err))
		e.record(ctx, events.PhaseStart, cand.AnalysisID, cand.ProjectID, code, err.Error())
		return nil, code
	}

	authorization, err := e.tokens.AuthHeader()
	if err != nil {
		e.logger.Error("no internal auth header could be obtained, cannot start analysis",
			zap.String("analysisId", cand.AnalysisID), zap.Error(err))
		e.record(ctx, events.PhaseStart, cand.AnalysisID, cand.ProjectID, http.StatusNotFound, err.Error())
		return nil, http.StatusNotFound
	}

	props := model.StartProperties{
		AnalysisID:       cand.AnalysisID,
		ProjectID:        cand.ProjectID,
		NodeID:           cand.NodeID,
		KongToken:        token,
		ImageURL:         fmt.Sprintf("%s/%s/%s", registry.RegistryHost, registry.ExternalName, cand.AnalysisID),
		RegistryURL:      registry.RegistryHost,
		RegistryUser:     registry.AccountID,
		RegistryPassword: registry.AccountSecret,
	}

	body, code, err := e.orch.CreatePod(ctx, props, authorization)

	switch {
	case err == nil:
		e.logger.Info("start request accepted",
			zap.String("analysisId", cand.AnalysisID), zap.Int("code", code))
		e.record(ctx, events.PhaseStart, cand.AnalysisID, cand.ProjectID, code, "start request accepted")
		return body, code

	case errors.Is(err, orchestrator.ErrReadTimeout):
		// Known slow path: grant the orchestrator a grace period, the
		// pod may still come up behind the timed-out response.
		e.logger.Warn("orchestrator read timed out while starting analysis, granting grace period",
			zap.String("analysisId", cand.AnalysisID), zap.Duration("grace", e.grace))
		e.wait(ctx)
		e.record(ctx, events.PhaseStart, cand.AnalysisID, cand.ProjectID, http.StatusRequestTimeout, err.Error())
		return ErrorBody{
			Message:    "orchestrator did not answer the start request in time",
			Service:    serviceTag,
			StatusCode: http.StatusRequestTimeout,
		}, http.StatusRequestTimeout

	case errors.Is(err, orchestrator.ErrUnavailable):
		e.logger.Error("orchestrator unreachable while starting analysis",
			zap.String("analysisId", cand.AnalysisID), zap.Error(err))
		e.record(ctx, events.PhaseStart, cand.AnalysisID, cand.ProjectID, http.StatusInternalServerError, err.Error())
		return nil, http.StatusInternalServerError

	default:
		var statusErr orchestrator.StatusError
		if errors.As(err, &statusErr) {
			e.logger.Error("orchestrator rejected the start request",
				zap.String("analysisId", cand.AnalysisID), zap.Int("code", statusErr.Code))
			e.record(ctx, events.PhaseStart, cand.AnalysisID, cand.ProjectID, statusErr.Code, statusErr.Message)
			return ErrorBody{
				Message:    statusErr.Message,
				Service:    serviceTag,
				StatusCode: statusErr.Code,
			}, statusErr.Code
		}

		e.logger.Error("start request failed",
			zap.String("analysisId", cand.AnalysisID), zap.Error(err))
		e.record(ctx, events.PhaseStart, cand.AnalysisID, cand.ProjectID, http.StatusInternalServerError, err.Error())
		return nil, http.StatusInternalServerError
	}
}

// PodRunning probes the orchestrator for a live pod of the analysis.
func (e *Engine) PodRunning(ctx context.Context, analysisID string) Liveness {
	status, err := e.orch.PodStatus(ctx, analysisID)
	if errors.Is(err, orchestrator.ErrNotFound) {
		return LivenessNotRunning
	}
	if err != nil {
		e.logger.Warn("pod liveness probe failed",
			zap.String("analysisId", analysisID), zap.Error(err))
		return LivenessUnknown
	}
	if _, live := liveStatuses[status]; live {
		return LivenessRunning
	}
	return LivenessNotRunning
}

func (e *Engine) wait(ctx context.Context) {
	timer := time.NewTimer(e.grace)
	select {
	case <-ctx.Done():
		if !timer.Stop() {
			<-timer.C
		}
	case <-timer.C:
	}
}

// record emits the one structured outcome event every terminal result
// produces. Sink failures are logged, never propagated: losing a record
// must not change provisioning behavior.
func (e *Engine) record(ctx context.Context, phase, analysisID, projectID string, code int, message string) {
	err := e.sink.Record(ctx, events.Outcome{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		ProjectID:  projectID,
		StatusCode: code,
		Phase:      phase,
		Message:    message,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		e.logger.Error("failed to record outcome event",
			zap.String("analysisId", analysisID), zap.Error(err))
	}
}

type statusCoder interface {
	StatusCode() int
}

// statusCodeOf recovers an HTTP-equivalent code from a typed error,
// falling back when the error carries none.
func statusCodeOf(err error, fallback int) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	switch {
	case errors.Is(err, gwadmin.ErrUnavailable), errors.Is(err, hub.ErrHubUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, gwadmin.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, hub.ErrNotFound):
		return http.StatusNotFound
	}
	return fallback
}
