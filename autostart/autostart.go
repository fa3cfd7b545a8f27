// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package autostart drives unattended analysis provisioning: it polls
// the hub for eligible work items, provisions the per-analysis
// access-control objects in the gateway-admin plane, starts a compute
// pod per item, repairs conflicting leftover state from earlier failed
// attempts, and records one outcome per attempt.
package autostart

import (
	"context"

	"github.com/fedanalytics/hubgate/model"
	"github.com/fedanalytics/hubgate/orchestrator"
)

// HubClient captures the hub operations the autostart core consumes.
type HubClient interface {
	FindNodes(ctx context.Context, robotID string) ([]model.NodeDescriptor, error)
	GetNode(ctx context.Context, nodeID string) (model.NodeDescriptor, error)
	ListAnalysisNodes(ctx context.Context, nodeID string) ([]model.WorkItem, error)
	RegistryProject(ctx context.Context, id string) (model.RegistryProject, error)
}

// GatewayAdmin captures the gateway-admin operations the autostart core
// consumes.
type GatewayAdmin interface {
	ListRoutes(ctx context.Context) ([]model.Route, error)
	CreateDataConsumer(ctx context.Context, analysisID, projectID string) (model.Registration, error)
	DeleteConsumer(ctx context.Context, analysisID string) error
}

// Orchestrator captures the pod-orchestrator operations the autostart
// core consumes.
type Orchestrator interface {
	CreatePod(ctx context.Context, props model.StartProperties, authorization string) (orchestrator.StatusMap, int, error)
	PodStatus(ctx context.Context, analysisID string) (string, error)
}

// TokenSource hands out Authorization header values for internal
// orchestrator calls.
type TokenSource interface {
	AuthHeader() (string, error)
}
