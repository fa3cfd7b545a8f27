// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

// Package events records one structured outcome per provisioning
// attempt of the autostart engine, behind a pluggable sink.
package events

import (
	"context"
	"errors"
	"time"
)

const (
	// TypeLabel is for labeling metrics; the corresponding operation
	// type is used when incrementing the query counters.
	TypeLabel  = "type"
	InsertType = "insert"
	ReadType   = "read"
	PingType   = "ping"
)

// Phases an outcome can be recorded from.
const (
	PhaseRegistration = "registration"
	PhaseStart        = "start"
)

var (
	ErrOutcomeIDEmpty  = errors.New("outcome ID is required")
	ErrAnalysisIDEmpty = errors.New("analysis ID is required")

	// ErrNotFound means no outcomes are recorded for the analysis.
	ErrNotFound = errors.New("no outcomes found for analysis")
)

// Outcome is the record written once per terminal provisioning result,
// success or failure, for one work item.
type Outcome struct {
	// ID is the unique id of this record.
	ID string `json:"id"`

	AnalysisID string `json:"analysis_id"`
	ProjectID  string `json:"project_id"`
	NodeID     string `json:"node_id,omitempty"`

	// StatusCode is the HTTP-equivalent code the attempt resolved to.
	StatusCode int `json:"status_code"`

	// Phase names the step the outcome belongs to, registration or
	// start.
	Phase string `json:"phase"`

	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// TTL is the retention of this record in seconds, where the
	// backing store supports expiry. Zero keeps the backend default.
	TTL int64 `json:"ttl,omitempty"`
}

// Sink is the destination outcome records are written to.
type Sink interface {
	Record(ctx context.Context, outcome Outcome) error
	ByAnalysis(ctx context.Context, analysisID string) ([]Outcome, error)
}

// Validate checks the fields every backend relies on.
func (o Outcome) Validate() error {
	if o.ID == "" {
		return ErrOutcomeIDEmpty
	}
	if o.AnalysisID == "" {
		return ErrAnalysisIDEmpty
	}
	return nil
}
