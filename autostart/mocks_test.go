// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/fedanalytics/hubgate/events"
	"github.com/fedanalytics/hubgate/model"
	"github.com/fedanalytics/hubgate/orchestrator"
)

type mockHub struct {
	mock.Mock
}

func (m *mockHub) FindNodes(ctx context.Context, robotID string) ([]model.NodeDescriptor, error) {
	args := m.Called(ctx, robotID)
	return args.Get(0).([]model.NodeDescriptor), args.Error(1)
}

func (m *mockHub) GetNode(ctx context.Context, nodeID string) (model.NodeDescriptor, error) {
	args := m.Called(ctx, nodeID)
	return args.Get(0).(model.NodeDescriptor), args.Error(1)
}

func (m *mockHub) ListAnalysisNodes(ctx context.Context, nodeID string) ([]model.WorkItem, error) {
	args := m.Called(ctx, nodeID)
	return args.Get(0).([]model.WorkItem), args.Error(1)
}

func (m *mockHub) RegistryProject(ctx context.Context, id string) (model.RegistryProject, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.RegistryProject), args.Error(1)
}

type mockGatewayAdmin struct {
	mock.Mock
}

func (m *mockGatewayAdmin) ListRoutes(ctx context.Context) ([]model.Route, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Route), args.Error(1)
}

func (m *mockGatewayAdmin) CreateDataConsumer(ctx context.Context, analysisID, projectID string) (model.Registration, error) {
	args := m.Called(ctx, analysisID, projectID)
	return args.Get(0).(model.Registration), args.Error(1)
}

func (m *mockGatewayAdmin) DeleteConsumer(ctx context.Context, analysisID string) error {
	args := m.Called(ctx, analysisID)
	return args.Error(0)
}

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) CreatePod(ctx context.Context, props model.StartProperties, authorization string) (orchestrator.StatusMap, int, error) {
	args := m.Called(ctx, props, authorization)
	return args.Get(0).(orchestrator.StatusMap), args.Int(1), args.Error(2)
}

func (m *mockOrchestrator) PodStatus(ctx context.Context, analysisID string) (string, error) {
	args := m.Called(ctx, analysisID)
	return args.String(0), args.Error(1)
}

type mockTokenSource struct {
	mock.Mock
}

func (m *mockTokenSource) AuthHeader() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Record(ctx context.Context, outcome events.Outcome) error {
	args := m.Called(ctx, outcome)
	return args.Error(0)
}

func (m *mockSink) ByAnalysis(ctx context.Context, analysisID string) ([]events.Outcome, error) {
	args := m.Called(ctx, analysisID)
	return args.Get(0).([]events.Outcome), args.Error(1)
}
