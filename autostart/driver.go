// SPDX-FileCopyrightText: 2026 fedanalytics
// SPDX-License-Identifier: Apache-2.0

package autostart

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"

	"github.com/fedanalytics/hubgate/model"
)

var (
	ErrDriverNotStopped = errors.New("poll driver is either running or starting")
	ErrDriverNotRunning = errors.New("poll driver is either stopped or stopping")

	// ErrAnalysisNotStartable means the requested analysis is not among
	// this node's approved, finished work items.
	ErrAnalysisNotStartable = errors.New("analysis is not a startable work item of this node")
)

// driver states
const (
	stopped int32 = iota
	running
	transitioning
)

const defaultPollInterval = 1 * time.Minute

// DriverConfig contains config data for the poll driver.
type DriverConfig struct {
	// PollInterval is how often a poll cycle runs.
	// (Optional). Defaults to 1 minute.
	PollInterval time.Duration

	// Logger to be used by the driver.
	// (Optional). By default a no op logger will be used.
	Logger *zap.Logger
}

// Driver runs poll cycles: resolve the node, fetch candidate work
// items, filter them, and hand each eligible one to the engine,
// strictly sequentially. One cycle runs to completion before the next
// starts; there are no overlapping cycles against the same node.
type Driver struct {
	engine   *Engine
	hub      HubClient
	nodes    *NodeCache
	projects *ProjectResolver
	filter   *Filter
	logger   *zap.Logger
	measures Measures

	ticker       *time.Ticker
	pollInterval time.Duration
	shutdown     chan struct{}
	state        int32
}

// NewDriver assembles the poll driver.
func NewDriver(config DriverConfig, engine *Engine, hub HubClient, nodes *NodeCache, projects *ProjectResolver, filter *Filter, measures Measures) *Driver {
	if config.Logger == nil {
		config.Logger = sallust.Default()
	}
	if config.PollInterval == 0 {
		config.PollInterval = defaultPollInterval
	}

	return &Driver{
		engine:       engine,
		hub:          hub,
		nodes:        nodes,
		projects:     projects,
		filter:       filter,
		logger:       config.Logger,
		measures:     measures,
		ticker:       time.NewTicker(config.PollInterval),
		pollInterval: config.PollInterval,
		shutdown:     make(chan struct{}),
	}
}

// AutoStartAnalyses runs one poll cycle and returns the set of analysis
// ids whose start request was accepted. A nil set with an error means
// the whole cycle was aborted because the node identity or type could
// not be resolved; an empty set is a cycle that ran and started
// nothing.
func (d *Driver) AutoStartAnalyses(ctx context.Context) (map[string]struct{}, error) {
	desc, err := d.nodes.DescribeNode(ctx, false)
	if err != nil {
		d.logger.Error("aborting poll cycle, node could not be resolved", zap.Error(err))
		return nil, err
	}
	if desc.ID == "" {
		d.logger.Info("no node associated with this robot credential, nothing to start")
		return map[string]struct{}{}, nil
	}

	items, err := d.hub.ListAnalysisNodes(ctx, desc.ID)
	if err != nil {
		d.logger.Error("aborting poll cycle, candidate work items could not be fetched", zap.Error(err))
		return nil, err
	}

	datastoreRequired := desc.Type != model.NodeTypeAggregator
	validProjects := map[string]struct{}{}
	if datastoreRequired {
		validProjects = d.projects.ValidProjects(ctx)
	}

	eligible := d.filter.Eligible(items, validProjects, datastoreRequired, true)

	started := map[string]struct{}{}
	for cand := range eligible {
		if d.provision(ctx, cand, desc.Type) {
			started[cand.AnalysisID] = struct{}{}
			d.measures.Started.Add(1)
		}
	}

	d.logger.Info("poll cycle finished",
		zap.Int("eligible", len(eligible)), zap.Int("started", len(started)))
	return started, nil
}

// StartAnalysis starts one analysis on demand. The freshness and
// run-status checks are switched off: a caller asking for a specific
// analysis may deliberately re-trigger an old or already-attempted one.
// The approval, build and data-route checks still apply.
func (d *Driver) StartAnalysis(ctx context.Context, analysisID string) (interface{}, int, error) {
	desc, err := d.nodes.DescribeNode(ctx, false)
	if err != nil {
		return nil, 0, err
	}
	if desc.ID == "" {
		return nil, 0, ErrAnalysisNotStartable
	}

	items, err := d.hub.ListAnalysisNodes(ctx, desc.ID)
	if err != nil {
		return nil, 0, err
	}

	datastoreRequired := desc.Type != model.NodeTypeAggregator
	validProjects := map[string]struct{}{}
	if datastoreRequired {
		validProjects = d.projects.ValidProjects(ctx)
	}

	for cand := range d.filter.Eligible(items, validProjects, datastoreRequired, false) {
		if cand.AnalysisID != analysisID {
			continue
		}
		body, code := d.engine.RegisterAndStart(ctx, cand, desc.Type)
		if code >= 200 && code < 300 {
			d.measures.Started.Add(1)
		}
		return body, code, nil
	}

	return nil, 0, ErrAnalysisNotStartable
}

// provision runs one item through the engine. Panics and failures stay
// inside this frame so the rest of the batch is always processed.
func (d *Driver) provision(ctx context.Context, cand model.Candidate, nodeType model.NodeType) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("provisioning panicked, continuing with remaining items",
				zap.String("analysisId", cand.AnalysisID), zap.Any("panic", r))
			ok = false
		}
	}()

	_, code := d.engine.RegisterAndStart(ctx, cand, nodeType)
	return code >= 200 && code < 300
}

// Start begins polling on the configured interval. If the driver is
// already running, calling Start is an error; call Stop first to
// restart it.
func (d *Driver) Start(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&d.state, stopped, transitioning) {
		d.logger.Error("Start called when the poll driver was not in stopped state", zap.Error(ErrDriverNotStopped))
		return ErrDriverNotStopped
	}

	d.ticker.Reset(d.pollInterval)
	go func() {
		for {
			select {
			case <-d.shutdown:
				return
			case <-d.ticker.C:
				outcome := SuccessOutcome
				if _, err := d.AutoStartAnalyses(context.Background()); err != nil {
					outcome = FailureOutcome
				}
				d.measures.Polls.With(prometheus.Labels{OutcomeLabel: outcome}).Add(1)
			}
		}
	}()

	atomic.SwapInt32(&d.state, running)
	return nil
}

// Stop requests the poll goroutine to stop and waits for it to hand
// over. Calling Stop when the driver is not running returns an error.
func (d *Driver) Stop(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&d.state, running, transitioning) {
		d.logger.Error("Stop called when the poll driver was not in running state", zap.Error(ErrDriverNotRunning))
		return ErrDriverNotRunning
	}

	d.ticker.Stop()
	d.shutdown <- struct{}{}
	atomic.SwapInt32(&d.state, stopped)
	return nil
}
