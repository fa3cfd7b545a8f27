// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// BuildStatus tracks the remote image build for an analysis.
// "finished" means the image is ready to run.
type BuildStatus string

const (
	BuildStarting BuildStatus = "starting"
	BuildStarted  BuildStatus = "started"
	BuildStopping BuildStatus = "stopping"
	BuildStopped  BuildStatus = "stopped"
	BuildFinished BuildStatus = "finished"
	BuildFailed   BuildStatus = "failed"
)

// ApprovalStatus governs whether this node is allowed to run an item.
type ApprovalStatus string

const (
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// NodeType distinguishes default nodes, which provision a data store
// route per project, from aggregator nodes, which do not.
type NodeType string

const (
	NodeTypeDefault    NodeType = "default"
	NodeTypeAggregator NodeType = "aggregator"
)

// WorkItem is a tenant-scoped unit of potential work tracked by the hub.
// It is read-only from this system's perspective: the hub owns it, and
// the only indirect mutation is the remote start eventually changing
// RunStatus upstream.
type WorkItem struct {
	// AnalysisID is the stable, opaque identifier of the analysis.
	AnalysisID string `json:"analysis_id"`

	// ProjectID identifies the tenant/project the analysis belongs to.
	ProjectID string `json:"project_id"`

	// NodeID is this node's identifier as seen by the hub.
	NodeID string `json:"node_id"`

	BuildStatus BuildStatus `json:"build_status"`

	// RunStatus is empty when no run has been attempted yet.
	RunStatus string `json:"run_status,omitempty"`

	ApprovalStatus ApprovalStatus `json:"approval_status"`

	CreatedAt time.Time `json:"created_at"`
}

// NodeDescriptor is this deployment's identity within the federation.
// An empty ID is a valid "no node associated" result, not an error.
type NodeDescriptor struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`

	// RobotID is the robot credential the node was resolved from.
	RobotID string `json:"robot_id,omitempty"`
}

// Route is a provisioned data-store route in the gateway-admin plane.
// Names follow the "{project_id}-{datastore_type}" convention.
type Route struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// Registration is the per-analysis access-control triple created in the
// gateway-admin service: a consumer identity, its key-auth credential,
// and its ACL group membership. The consumer's existence is the durable
// signal that registration was attempted; the key-auth key is the token
// handed to the compute pod.
type Registration struct {
	ConsumerID   string `json:"consumer_id"`
	ConsumerName string `json:"consumer_name"`

	// Key is the key-auth credential issued to the analysis.
	Key string `json:"key"`

	// Group is the ACL group, matching the project group.
	Group string `json:"group"`
}

// RegistryProject is the container-registry metadata the hub keeps for
// a project, used to compose the image URL for a start request.
type RegistryProject struct {
	ID            string `json:"id"`
	ExternalName  string `json:"external_name"`
	RegistryHost  string `json:"registry_host"`
	AccountID     string `json:"account_id"`
	AccountSecret string `json:"account_secret"`
}

// StartProperties is the exact request shape the orchestrator's
// create-pod endpoint expects.
type StartProperties struct {
	AnalysisID       string `json:"analysis_id" validate:"required"`
	ProjectID        string `json:"project_id" validate:"required"`
	NodeID           string `json:"node_id" validate:"required"`
	KongToken        string `json:"kong_token" validate:"required"`
	ImageURL         string `json:"image_url" validate:"required"`
	RegistryURL      string `json:"registry_url" validate:"required"`
	RegistryUser     string `json:"registry_user"`
	RegistryPassword string `json:"registry_password"`
}

// Candidate is the eligibility tuple produced by the autostart filter.
type Candidate struct {
	AnalysisID  string
	ProjectID   string
	NodeID      string
	BuildStatus BuildStatus
	RunStatus   string
}
